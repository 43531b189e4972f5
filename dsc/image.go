package dsc

import (
	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/macho"
	"github.com/appsworld/machotbd/types"
)

// Sink extends macho.Sink with the one extra operation the DSC image driver
// needs that a fat-slice merge never does: resetting the aggregator's arch
// set to exactly the cache's single architecture (spec §4.5 step 5,
// SPEC_FULL §14.1), rather than OR-ing it in the way MarkArch does for a
// fat slice. tbd.CreateInfo implements this in addition to macho.Sink.
type Sink interface {
	macho.Sink
	ResetSingleArch(arch archset.Descriptor)
}

// OffsetForAddress implements get_offset_from_addr (original_source's
// dsc_image.c): the first mapping whose virtual range contains address
// yields a file offset and a max_size, the rest of that mapping's size from
// address on. The mapping's size is taken as recorded, so max_size can reach
// past the end of the file; ParseImage checks the resulting range against
// the cache's real extent (SPEC_FULL §13).
func (info *Info) OffsetForAddress(address uint64) (fileOffset, maxSize uint64, ok bool) {
	for _, m := range info.Mappings {
		r, valid := types.NewRange(m.Address, m.Size)
		if !valid || !r.ContainsLocation(address) {
			continue
		}
		delta := address - m.Address
		return m.FileOffset + delta, m.Size - delta, true
	}
	return 0, 0, false
}

// ParseImage resolves img's address to a file region and drives the Mach-O
// parser over it in map-mode (spec §4.5): load commands are bounded to the
// image's own region, but the symbol/string tables and section contents are
// cache-relative, so the parser's available range is the whole cache map
// with SectOffAbsolute set. On
// success sink's arch set is reset to exactly the cache's single
// architecture (SPEC_FULL §14.1) rather than merged the way a fat slice
// would be.
func ParseImage(info *Info, img Image, sink Sink, opts macho.ParseOptions, scratch *macho.ParseScratch) error {
	fileOffset, maxSize, ok := info.OffsetForAddress(img.Address)
	if !ok {
		return Code(ErrNoMapping)
	}

	hdrMin := uint64(types.FileHeaderSize32)
	if maxSize < hdrMin {
		return Code(ErrSizeTooSmall)
	}

	machoRange, validRange := types.NewRange(fileOffset, maxSize)
	if !validRange || !info.AvailableRange.ContainsRange(machoRange) {
		return Code(ErrSizeTooSmall)
	}

	effective := (opts &^ macho.DontParseSymbolTable) | macho.SectOffAbsolute
	if err := macho.ParseMapped(byteReaderAt(info.data), machoRange, info.AvailableRange, sink, effective, scratch); err != nil {
		return translate(err)
	}

	sink.ResetSingleArch(info.Arch)
	return nil
}

// byteReaderAt adapts a plain byte slice to io.ReaderAt, the view the
// parser expects over the cache's full backing bytes.
type byteReaderAt []byte

func (b byteReaderAt) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b)) {
		return 0, Code(ErrReadFailed)
	}
	n := copy(p, b[off:])
	if n < len(p) {
		return n, Code(ErrReadFailed)
	}
	return n, nil
}

// translate maps a macho.Code into the dsc domain (spec §7: "the DSC driver
// translates the Mach-O error domain into its own, discarding codes that
// cannot occur for dsc images such as fat-related conflicts" — a dsc image
// is never fat, so not-a-Mach-O and the architecture codes collapse to
// ErrNotDyldCache and size-too-small maps to ErrSizeTooSmall; every other
// *macho.FormatError, conflict codes included, is returned unchanged).
func translate(err error) error {
	fe, ok := err.(*macho.FormatError)
	if !ok {
		return Code(ErrReadFailed)
	}
	switch fe.Code {
	case macho.ErrNotMachO, macho.ErrInvalidArchitecture, macho.ErrUnsupportedCPUType:
		return Code(ErrNotDyldCache)
	case macho.ErrSizeTooSmall:
		return Code(ErrSizeTooSmall)
	default:
		return fe
	}
}
