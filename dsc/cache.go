// Package dsc implements the dyld_shared_cache driver: it opens a cache
// file, loads its mapping and image tables, and resolves a single image's
// virtual address to a file region for the macho package to parse (spec
// §4.5). Reads are bounded the same way macho bounds Mach-O reads — every
// offset is checked against the cache's own range before use.
package dsc

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/types"
)

// header field offsets within the first 32 bytes of a dyld_shared_cache
// file. The cache header has grown many more fields across OS releases,
// but the driver only needs these to locate the mapping and (old-style)
// image tables; later fields are out of scope (spec §1 excludes decoding
// not used by ABI extraction).
const (
	magicSize          = 16
	mappingOffsetOff   = 16
	mappingCountOff    = 20
	imagesOffsetOldOff = 24
	imagesCountOldOff  = 28
	cacheHeaderMinSize = 32

	mappingEntrySize = 32 // {address, size, fileOffset uint64; maxProt, initProt uint32}
	imageEntrySize   = 32 // {address, modTime, inode uint64; pathFileOffset, pad uint32}
)

// Mapping is one dyld_shared_cache memory region: a contiguous virtual
// range backed by a contiguous region of the cache file.
type Mapping struct {
	Address    uint64
	Size       uint64
	FileOffset uint64
}

// Image is one dylib embedded in the cache, identified by its load address
// and the offset of its install-path string within the cache.
type Image struct {
	Address        uint64
	PathFileOffset uint32
}

// Info holds an opened cache: its raw bytes, mapping/image tables, the
// cache's own bounded range, and the single architecture every image in it
// shares (spec §3's DSCInfo entity).
type Info struct {
	data           []byte
	Size           uint64
	Mappings       []Mapping
	Images         []Image
	AvailableRange types.Range
	Arch           archset.Descriptor
}

// Code is a flat dsc-domain error, mirroring macho.Code's shape but scoped
// to what a dsc image parse can actually fail with (spec §7: "the DSC
// driver translates the Mach-O error domain into its own, discarding codes
// that cannot occur for dsc images").
type Code int

const (
	_ Code = iota
	ErrReadFailed
	ErrNotDyldCache
	ErrSizeTooSmall
	ErrUnsupportedArch
	ErrNoMapping
)

var codeStrings = map[Code]string{
	ErrReadFailed:      "read failed",
	ErrNotDyldCache:    "not a dyld_shared_cache file",
	ErrSizeTooSmall:    "size too small",
	ErrUnsupportedArch: "unsupported cache architecture",
	ErrNoMapping:       "no mapping contains this address",
}

func (c Code) Error() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return "dsc: unknown error code"
}

// Open reads the full cache file into memory, validates its magic, and
// loads the mapping and image tables. The cache architecture is derived
// from the trailing arch suffix of the magic string (e.g. "dyld_v1  arm64"),
// the same way the reference implementation's info->arch is set at open
// time from the header's magic.
func Open(r io.ReaderAt, size int64) (*Info, error) {
	if size < cacheHeaderMinSize {
		return nil, Code(ErrSizeTooSmall)
	}
	data := make([]byte, size)
	if _, err := r.ReadAt(data, 0); err != nil {
		return nil, Code(ErrReadFailed)
	}
	if !strings.HasPrefix(string(data[:magicSize]), "dyld_v1") && !strings.HasPrefix(string(data[:magicSize]), "dyld_v0") {
		return nil, Code(ErrNotDyldCache)
	}
	archName := strings.TrimRight(strings.TrimSpace(string(data[7:magicSize])), "\x00")
	arch, ok := archset.ByName(archName)
	if !ok {
		return nil, Code(ErrUnsupportedArch)
	}

	mappingOffset := binary.LittleEndian.Uint32(data[mappingOffsetOff : mappingOffsetOff+4])
	mappingCount := binary.LittleEndian.Uint32(data[mappingCountOff : mappingCountOff+4])
	imagesOffset := binary.LittleEndian.Uint32(data[imagesOffsetOldOff : imagesOffsetOldOff+4])
	imagesCount := binary.LittleEndian.Uint32(data[imagesCountOldOff : imagesCountOldOff+4])

	mappings := make([]Mapping, 0, mappingCount)
	for i := uint32(0); i < mappingCount; i++ {
		off := uint64(mappingOffset) + uint64(i)*mappingEntrySize
		entry, err := sliceAt(data, off, mappingEntrySize)
		if err != nil {
			return nil, err
		}
		mappings = append(mappings, Mapping{
			Address:    binary.LittleEndian.Uint64(entry[0:8]),
			Size:       binary.LittleEndian.Uint64(entry[8:16]),
			FileOffset: binary.LittleEndian.Uint64(entry[16:24]),
		})
	}

	images := make([]Image, 0, imagesCount)
	for i := uint32(0); i < imagesCount; i++ {
		off := uint64(imagesOffset) + uint64(i)*imageEntrySize
		entry, err := sliceAt(data, off, imageEntrySize)
		if err != nil {
			return nil, err
		}
		images = append(images, Image{
			Address:        binary.LittleEndian.Uint64(entry[0:8]),
			PathFileOffset: binary.LittleEndian.Uint32(entry[24:28]),
		})
	}

	return &Info{
		data:           data,
		Size:           uint64(size),
		Mappings:       mappings,
		Images:         images,
		AvailableRange: types.Range{Begin: 0, End: uint64(size)},
		Arch:           arch,
	}, nil
}

func sliceAt(data []byte, off, n uint64) ([]byte, error) {
	if off+n > uint64(len(data)) || off+n < off {
		return nil, Code(ErrReadFailed)
	}
	return data[off : off+n], nil
}

// Map returns the cache's full backing bytes, the view the image parser
// synthesizes its bounded io.ReaderAt over.
func (info *Info) Map() []byte { return info.data }

// Path resolves an image's install-name string from the cache's path pool.
func (info *Info) Path(img Image) (string, error) {
	off := uint64(img.PathFileOffset)
	if off >= uint64(len(info.data)) {
		return "", Code(ErrReadFailed)
	}
	end := off
	for end < uint64(len(info.data)) && info.data[end] != 0 {
		end++
	}
	if end >= uint64(len(info.data)) {
		return "", Code(ErrReadFailed)
	}
	return string(info.data[off:end]), nil
}
