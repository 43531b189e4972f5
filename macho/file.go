// Package macho implements a bounded, endianness-correcting parser for
// thin and fat Mach-O containers: it walks the load-command stream and
// symbol table, enforcing the range/count/size invariants of spec §4.1
// and classifying every exported symbol, feeding the result to a caller-
// supplied Sink (typically a tbd.CreateInfo).
package macho

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/types"
)

// ParseOptions is a bitmask controlling how strictly the parser enforces
// field validity and cross-slice consistency, mirroring macho_file.h's
// enum macho_file_options.
type ParseOptions uint64

const (
	IgnoreInvalidFields ParseOptions = 1 << iota
	IgnoreConflictingFields
	IgnoreMissingExports
	DontParseSymbolTable
	SectOffAbsolute
)

func (o ParseOptions) has(bit ParseOptions) bool { return o&bit != 0 }

// ParseScratch holds the load-command and string-table buffers a parse
// needs; callers may preallocate and reuse one across many files to avoid
// per-file churn, mirroring macho_file_cache's buffer reuse (spec §5,
// SPEC_FULL §13).
type ParseScratch struct {
	cmdBuf []byte
	strBuf []byte
}

func (s *ParseScratch) cmdBuffer(n int) []byte {
	if cap(s.cmdBuf) < n {
		s.cmdBuf = make([]byte, n)
	}
	return s.cmdBuf[:n]
}

func (s *ParseScratch) strBuffer(n int) []byte {
	if cap(s.strBuf) < n {
		s.strBuf = make([]byte, n)
	}
	return s.strBuf[:n]
}

// SymbolKind classifies a defined external symbol by name-prefix and
// n_desc flags (spec §4.4).
type SymbolKind int

const (
	SymbolNormal SymbolKind = iota
	SymbolWeakDef
	SymbolObjcClass
	SymbolObjcIvar
)

// Sink receives the facts a single Mach-O slice contributes to an
// aggregator. The load-command and symbol-table walkers call it as they
// go, so the core never needs to allocate a per-step callback closure —
// the visitor trait spec §9 calls for in place of C's function-pointer
// iteration callbacks. Every setter reports a conflict error if the slice
// disagrees with a value the sink already holds; the walker downgrades
// that to "first value wins" when IgnoreConflictingFields is set.
type Sink interface {
	SetIdentification(name string, current, compat types.Version) error
	SetPlatform(p types.Platform) error
	SetParentUmbrella(name string) error
	SetObjcConstraint(v uint32) error
	SetSwiftVersion(v uint8) error
	SetFlatNamespace(v bool)
	SetNotAppExtensionSafe(v bool)
	AddUUID(arch archset.Descriptor, uuid types.UUID) error
	AddClient(name string, arch archset.Descriptor)
	AddReexport(name string, arch archset.Descriptor)
	AddSymbol(kind SymbolKind, name string, arch archset.Descriptor)
	MarkArch(arch archset.Descriptor)

	// HasIdentification and HasPlatform let the load-command walker enforce
	// NO_IDENTIFICATION and NO_PLATFORM once the command stream is
	// exhausted, the way it enforces NO_SYMBOL_TABLE from sawSymtab.
	HasIdentification() bool
	HasPlatform() bool
}

// ParseFromFile classifies r's magic and dispatches to the thin or fat
// path, feeding every slice it accepts to sink.
func ParseFromFile(r io.ReaderAt, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	if scratch == nil {
		scratch = &ParseScratch{}
	}
	size, err := sizeOf(r)
	if err != nil {
		return err
	}
	return ParseFromRange(r, types.Range{Begin: 0, End: size}, sink, opts, scratch)
}

// ParseFromRange is the bounded-range counterpart of ParseFromFile, for a
// Mach-O that occupies only rng of a larger file. The DSC driver does not use
// it; a dyld_shared_cache image goes through ParseMapped instead.
func ParseFromRange(r io.ReaderAt, rng types.Range, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	if scratch == nil {
		scratch = &ParseScratch{}
	}
	if rng.Size() < 4 {
		return &FormatError{Code: ErrSizeTooSmall}
	}
	magicBuf := make([]byte, 4)
	if _, err := r.ReadAt(magicBuf, int64(rng.Begin)); err != nil {
		return &FormatError{Off: int64(rng.Begin), Code: ErrReadFailed, Val: err}
	}
	magicLE := binary.LittleEndian.Uint32(magicBuf)
	magicBE := binary.BigEndian.Uint32(magicBuf)

	switch {
	case magicLE == uint32(types.Magic32) || magicLE == uint32(types.Magic64):
		return parseThin(r, rng, binary.LittleEndian, magicLE == uint32(types.Magic64), sink, opts, scratch)
	case magicBE == uint32(types.Magic32) || magicBE == uint32(types.Magic64):
		return parseThin(r, rng, binary.BigEndian, magicBE == uint32(types.Magic64), sink, opts, scratch)
	case magicLE == uint32(types.FatMagic32) || magicLE == uint32(types.FatMagic64):
		return parseFat(r, rng, binary.LittleEndian, magicLE == uint32(types.FatMagic64), sink, opts, scratch)
	case magicBE == uint32(types.FatMagic32) || magicBE == uint32(types.FatMagic64):
		return parseFat(r, rng, binary.BigEndian, magicBE == uint32(types.FatMagic64), sink, opts, scratch)
	default:
		return &FormatError{Off: int64(rng.Begin), Code: ErrNotMachO}
	}
}

func sizeOf(r io.ReaderAt) (uint64, error) {
	if s, ok := r.(interface{ Size() int64 }); ok {
		return uint64(s.Size()), nil
	}
	// Fall back to probing: the teacher's File never needs this because
	// it always wraps an os.File-backed SectionReader; here we accept any
	// io.ReaderAt, so a bounded-search over ReadAt is the only option
	// left once the Size() fast path is unavailable.
	var lo, hi int64 = 0, 1
	buf := make([]byte, 1)
	for {
		if _, err := r.ReadAt(buf, hi-1); err != nil {
			break
		}
		lo = hi
		hi *= 2
	}
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if _, err := r.ReadAt(buf, mid-1); err != nil {
			hi = mid - 1
		} else {
			lo = mid
		}
	}
	return uint64(lo), nil
}

func parseThin(r io.ReaderAt, rng types.Range, order binary.ByteOrder, is64 bool, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	hdr, arch, err := readHeader(r, rng, order, is64)
	if err != nil {
		return err
	}
	return parseHeaderCommands(r, rng, hdr, arch, order, is64, sink, opts, scratch)
}

// readHeader decodes a thin Mach-O header at the start of rng and looks up
// its architecture descriptor.
func readHeader(r io.ReaderAt, rng types.Range, order binary.ByteOrder, is64 bool) (types.FileHeader, archset.Descriptor, error) {
	hdrSize := int64(types.FileHeaderSize32)
	if is64 {
		hdrSize = types.FileHeaderSize64
	}
	if rng.Size() < uint64(hdrSize) {
		return types.FileHeader{}, archset.Descriptor{}, &FormatError{Code: ErrSizeTooSmall}
	}
	buf := make([]byte, hdrSize)
	if _, err := r.ReadAt(buf, int64(rng.Begin)); err != nil {
		return types.FileHeader{}, archset.Descriptor{}, &FormatError{Off: int64(rng.Begin), Code: ErrReadFailed, Val: err}
	}
	var hdr types.FileHeader
	hdr.Magic = types.Magic(order.Uint32(buf[0:4]))
	hdr.CPU = types.CPU(order.Uint32(buf[4:8]))
	hdr.SubCPU = types.CPUSubtype(order.Uint32(buf[8:12]))
	hdr.Type = types.HeaderFileType(order.Uint32(buf[12:16]))
	hdr.NCommands = order.Uint32(buf[16:20])
	hdr.SizeCommands = order.Uint32(buf[20:24])
	hdr.Flags = types.HeaderFlag(order.Uint32(buf[24:28]))

	arch, ok := archset.Lookup(hdr.CPU, hdr.SubCPU)
	if !ok {
		return hdr, archset.Descriptor{}, &FormatError{Code: ErrUnsupportedCPUType, Val: hdr.CPU}
	}
	return hdr, arch, nil
}

// parseHeaderCommands walks hdr's command stream (available range = rng,
// matching the DSC driver's cache-relative-offsets requirement when rng
// spans more than this slice) and reports the header's namespace/
// app-extension flags to sink.
func parseHeaderCommands(r io.ReaderAt, rng types.Range, hdr types.FileHeader, arch archset.Descriptor, order binary.ByteOrder, is64 bool, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	return parseHeaderCommandsIn(r, rng, rng, hdr, arch, order, is64, sink, opts, scratch)
}

// parseHeaderCommandsIn is parseHeaderCommands generalized to a header
// range distinct from the wider range the reads outside the command area
// (section contents, the symbol/string tables) are bounded against — the DSC
// image driver needs exactly this split (spec §4.5 step 3): the header and
// command area are sized to one image's region, but symtab/stroff are
// cache-relative, so availRange must span the whole cache map.
func parseHeaderCommandsIn(r io.ReaderAt, hdrRange, availRange types.Range, hdr types.FileHeader, arch archset.Descriptor, order binary.ByteOrder, is64 bool, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	hdrSize := int64(types.FileHeaderSize32)
	if is64 {
		hdrSize = types.FileHeaderSize64
	}
	cmdArea := types.Range{Begin: hdrRange.Begin + uint64(hdrSize), End: hdrRange.End}
	if err := walkLoadCommands(r, cmdArea, availRange, order, is64, hdr, arch, sink, opts, scratch); err != nil {
		return err
	}
	sink.MarkArch(arch)
	sink.SetFlatNamespace(!hdr.Flags.TwoLevel())
	sink.SetNotAppExtensionSafe(!hdr.Flags.AppExtensionSafe())
	return nil
}

// ParseMapped parses a single Mach-O header found at machoRange within a
// larger mapped region, bounding the header/command-area reads to
// machoRange but the symtab, string table and section-content reads to the
// wider availRange. This is the DSC image driver's
// entry point (spec §4.5): a dyld_shared_cache image's load commands start
// at its own address, but its symbol and string tables are offset from the
// cache base, not the image. Fat magic is rejected — a dsc image is never a
// fat Mach-O.
func ParseMapped(r io.ReaderAt, machoRange, availRange types.Range, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	if scratch == nil {
		scratch = &ParseScratch{}
	}
	if machoRange.Size() < 4 {
		return &FormatError{Code: ErrSizeTooSmall}
	}
	magicBuf := make([]byte, 4)
	if _, err := r.ReadAt(magicBuf, int64(machoRange.Begin)); err != nil {
		return &FormatError{Off: int64(machoRange.Begin), Code: ErrReadFailed, Val: err}
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
	case magicLE == uint32(types.FatMagic32) || magicLE == uint32(types.FatMagic64) ||
		magicBE == uint32(types.FatMagic32) || magicBE == uint32(types.FatMagic64):
		return &FormatError{Off: int64(machoRange.Begin), Code: ErrInvalidArchitecture}
	default:
		return &FormatError{Off: int64(machoRange.Begin), Code: ErrNotMachO}
	}

	hdr, arch, err := readHeader(r, machoRange, order, is64)
	if err != nil {
		return err
	}
	return parseHeaderCommandsIn(r, machoRange, availRange, hdr, arch, order, is64, sink, opts, scratch)
}

// cstring returns the NUL-terminated string stored in b, or an error if b
// has no terminator before its end (§4.1's "reject ... missing
// terminators").
func cstring(b []byte) (string, error) {
	for i, c := range b {
		if c == 0 {
			return string(b[:i]), nil
		}
	}
	return "", fmt.Errorf("unterminated string")
}

// readAt reads exactly len(dst) bytes from r at off, scoped inside rng, the
// bounded-read helper every walker in this package funnels through (§4.1).
func readAt(r io.ReaderAt, rng types.Range, off uint64, dst []byte) error {
	want, ok := types.NewRange(off, uint64(len(dst)))
	if !ok || !rng.ContainsRange(want) {
		return &FormatError{Off: int64(off), Code: ErrInvalidRange}
	}
	if _, err := r.ReadAt(dst, int64(off)); err != nil {
		return &FormatError{Off: int64(off), Code: ErrReadFailed, Val: err}
	}
	return nil
}
