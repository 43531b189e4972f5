package macho

import (
	"encoding/binary"
	"io"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/types"
)

const maxFatArchs = 64

// parseFat validates and parses every slice of a fat (universal) archive,
// feeding each to sink in table order (spec §4.2). Merge ordering is
// therefore deterministic in the fat architectures table's order, as §5
// requires.
func parseFat(r io.ReaderAt, rng types.Range, order binary.ByteOrder, is64 bool, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	hdrBuf := make([]byte, 8)
	if _, err := r.ReadAt(hdrBuf, int64(rng.Begin)); err != nil {
		return &FormatError{Off: int64(rng.Begin), Code: ErrReadFailed, Val: err}
	}
	nArch := order.Uint32(hdrBuf[4:8])
	if nArch == 0 {
		return &FormatError{Code: ErrNoArchitectures}
	}
	if nArch > maxFatArchs {
		return &FormatError{Code: ErrTooManyArchitectures}
	}

	entrySize := 20
	if is64 {
		entrySize = 32
	}
	tableOff := rng.Begin + 8
	tableBuf := make([]byte, uint64(nArch)*uint64(entrySize))
	if err := readAt(r, rng, tableOff, tableBuf); err != nil {
		return err
	}

	type slice struct {
		arch  archset.Descriptor
		slice types.Range
	}
	var slices []slice

	for i := uint32(0); i < nArch; i++ {
		entry := tableBuf[uint64(i)*uint64(entrySize):]
		var cpu types.CPU
		var sub types.CPUSubtype
		var off, size uint64

		cpu = types.CPU(order.Uint32(entry[0:4]))
		sub = types.CPUSubtype(order.Uint32(entry[4:8]))
		if is64 {
			off = order.Uint64(entry[8:16])
			size = order.Uint64(entry[16:24])
		} else {
			off = uint64(order.Uint32(entry[8:12]))
			size = uint64(order.Uint32(entry[12:16]))
		}

		arch, ok := archset.Lookup(cpu, sub)
		if !ok {
			return &FormatError{Code: ErrInvalidArchitecture, Val: cpu}
		}

		sliceRange, ok := types.NewRange(off, size)
		if !ok || !rng.ContainsRange(sliceRange) {
			return &FormatError{Code: ErrInvalidArchitecture}
		}

		for _, s := range slices {
			if s.slice.Overlaps(sliceRange) {
				return &FormatError{Code: ErrOverlappingArchitectures}
			}
			if s.arch.CPU == arch.CPU && s.arch.SubCPU == arch.SubCPU {
				return &FormatError{Code: ErrMultipleArchsForCPUType}
			}
		}
		slices = append(slices, slice{arch: arch, slice: sliceRange})
	}

	for _, s := range slices {
		if err := parseSliceInto(r, s.slice, s.arch, sink, opts, scratch); err != nil {
			return err
		}
	}
	return nil
}

// parseSliceInto parses one fat slice in isolation, the way spec §4.2
// describes ("each slice is parsed in isolation into a scratch sub-view,
// then merged") — merging here means feeding the same sink, which already
// does the cross-slice conflict/union bookkeeping per slice.
func parseSliceInto(r io.ReaderAt, sliceRange types.Range, arch archset.Descriptor, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	magicBuf := make([]byte, 4)
	if _, err := r.ReadAt(magicBuf, int64(sliceRange.Begin)); err != nil {
		return &FormatError{Off: int64(sliceRange.Begin), Code: ErrReadFailed, Val: err}
	}
	magicLE := binary.LittleEndian.Uint32(magicBuf)
	magicBE := binary.BigEndian.Uint32(magicBuf)

	var order binary.ByteOrder
	var is64 bool
	switch {
	case magicLE == uint32(types.Magic32):
		order, is64 = binary.LittleEndian, false
	case magicLE == uint32(types.Magic64):
		order, is64 = binary.LittleEndian, true
	case magicBE == uint32(types.Magic32):
		order, is64 = binary.BigEndian, false
	case magicBE == uint32(types.Magic64):
		order, is64 = binary.BigEndian, true
	default:
		return &FormatError{Off: int64(sliceRange.Begin), Code: ErrNotMachO}
	}

	// The slice's own header carries its cputype/subtype too, but the fat
	// arch table entry is authoritative (spec §4.2) — we reuse the arch
	// descriptor the caller already validated rather than re-deriving it.
	hdr, _, err := readHeader(r, sliceRange, order, is64)
	if err != nil {
		return err
	}
	return parseHeaderCommands(r, sliceRange, hdr, arch, order, is64, sink, opts, scratch)
}
