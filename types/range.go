package types

import "math"

// Range is a half-open interval [Begin, End) over 64-bit file offsets or
// virtual addresses. Every combinator is overflow-safe: none of them wrap
// past math.MaxUint64.
type Range struct {
	Begin uint64
	End   uint64
}

// NewRange builds a Range from a begin offset and a byte count, reporting
// false if begin+size would overflow 64 bits instead of silently wrapping.
func NewRange(begin, size uint64) (Range, bool) {
	end := begin + size
	if end < begin {
		return Range{}, false
	}
	return Range{Begin: begin, End: end}, true
}

// Size returns End-Begin. Valid only when Begin <= End, which every
// constructor in this package guarantees.
func (r Range) Size() uint64 {
	return r.End - r.Begin
}

// ContainsLocation reports begin <= x < end.
func (r Range) ContainsLocation(x uint64) bool {
	return r.Begin <= x && x < r.End
}

// ContainsRange reports self.begin <= other.begin && other.end <= self.end.
func (r Range) ContainsRange(other Range) bool {
	return r.Begin <= other.Begin && other.End <= r.End
}

// Overlaps reports whether r and other share any location. Two empty or
// adjacent ranges ([a,b) and [b,c)) do not overlap.
func (r Range) Overlaps(other Range) bool {
	return r.Begin < other.End && other.Begin < r.End
}

// MaxUint64 is exposed so callers constructing ranges can compare against
// the overflow ceiling without importing math themselves.
const MaxUint64 = math.MaxUint64
