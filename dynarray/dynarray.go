// Package dynarray implements a comparator-driven growable array with
// sorted insertion and binary-search lookup, the shared container the
// aggregator uses for symbols, UUIDs, re-exports, and clients (spec §2's
// "dynamic array" leaf).
package dynarray

import "sort"

// Array is a slice kept sorted by cmp. Unlike a plain sort-on-read slice,
// Array exposes Find/Upsert so callers can look up-or-merge an existing
// entry in O(log n) instead of re-sorting after every insert.
type Array[T any] struct {
	items []T
	cmp   func(a, b T) int
}

// New returns an empty Array ordered by cmp, a standard three-valued
// comparator (negative/zero/positive).
func New[T any](cmp func(a, b T) int) *Array[T] {
	return &Array[T]{cmp: cmp}
}

// Len returns the number of elements.
func (a *Array[T]) Len() int { return len(a.items) }

// Items returns the backing slice in sorted order. Callers must not retain
// it across further mutation of a.
func (a *Array[T]) Items() []T { return a.items }

// find returns the index of the first item not less than v, and whether
// the item at that index compares equal to v (standard binary search over
// a sorted slice).
func (a *Array[T]) find(v T) (int, bool) {
	lo, hi := 0, len(a.items)
	for lo < hi {
		mid := (lo + hi) / 2
		if a.cmp(a.items[mid], v) < 0 {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(a.items) && a.cmp(a.items[lo], v) == 0 {
		return lo, true
	}
	return lo, false
}

// Find looks up v by comparator equality, returning the stored element.
func (a *Array[T]) Find(v T) (T, bool) {
	i, ok := a.find(v)
	if !ok {
		var zero T
		return zero, false
	}
	return a.items[i], true
}

// Insert adds v in sorted position. If an equal element already exists,
// Insert does nothing and reports false — callers that need merge
// semantics should use Upsert instead.
func (a *Array[T]) Insert(v T) bool {
	i, ok := a.find(v)
	if ok {
		return false
	}
	a.insertAt(i, v)
	return true
}

// Upsert looks up v; if an equal element exists, merge(existing, v)
// replaces it in place, otherwise v is inserted in sorted position. This
// is the aggregator's "look up (kind, name); if present, OR in this
// slice's ArchSet; else append" operation (spec §4.4/§4.6).
func (a *Array[T]) Upsert(v T, merge func(existing, incoming T) T) {
	i, ok := a.find(v)
	if ok {
		a.items[i] = merge(a.items[i], v)
		return
	}
	a.insertAt(i, v)
}

func (a *Array[T]) insertAt(i int, v T) {
	a.items = append(a.items, v)
	copy(a.items[i+1:], a.items[i:])
	a.items[i] = v
}

// Sort re-orders every element by cmp. The aggregator calls this once
// after all slices are merged, since Upsert preserves order only relative
// to comparisons made at insertion time — the symbol_info_comparator sort
// key (§4.7) differs from the lookup key used during merge (kind, name).
func (a *Array[T]) Sort(cmp func(a, b T) int) {
	sort.SliceStable(a.items, func(i, j int) bool {
		return cmp(a.items[i], a.items[j]) < 0
	})
}
