package dsc

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/macho"
	"github.com/appsworld/machotbd/types"
)

// buildCache assembles a minimal synthetic dyld_shared_cache: a 32-byte
// header, one mapping table entry, and one image table entry, matching the
// offsets Open expects (spec §4.5).
func buildCache(t *testing.T, mappings []Mapping, images []Image, trailer []byte) []byte {
	t.Helper()
	order := binary.LittleEndian

	hdr := make([]byte, cacheHeaderMinSize)
	copy(hdr[:magicSize], []byte("dyld_v1  arm64\x00\x00"))
	mappingOffset := uint32(cacheHeaderMinSize)
	mappingCount := uint32(len(mappings))
	imagesOffset := mappingOffset + mappingCount*mappingEntrySize
	imagesCount := uint32(len(images))

	order.PutUint32(hdr[mappingOffsetOff:], mappingOffset)
	order.PutUint32(hdr[mappingCountOff:], mappingCount)
	order.PutUint32(hdr[imagesOffsetOldOff:], imagesOffset)
	order.PutUint32(hdr[imagesCountOldOff:], imagesCount)

	var buf bytes.Buffer
	buf.Write(hdr)
	for _, m := range mappings {
		entry := make([]byte, mappingEntrySize)
		order.PutUint64(entry[0:8], m.Address)
		order.PutUint64(entry[8:16], m.Size)
		order.PutUint64(entry[16:24], m.FileOffset)
		buf.Write(entry)
	}
	for _, img := range images {
		entry := make([]byte, imageEntrySize)
		order.PutUint64(entry[0:8], img.Address)
		order.PutUint32(entry[24:28], img.PathFileOffset)
		buf.Write(entry)
	}
	buf.Write(trailer)
	return buf.Bytes()
}

func TestOpenParsesMappingsAndImages(t *testing.T) {
	path := []byte("/usr/lib/libfoo.dylib\x00")
	data := buildCache(t,
		[]Mapping{{Address: 0x100000000, Size: 0x10000, FileOffset: 0}},
		[]Image{{Address: 0x100000000, PathFileOffset: 0}},
		path,
	)
	// Patch the image's path offset to point at the trailer we appended.
	pathOff := uint32(cacheHeaderMinSize + 1*mappingEntrySize + 1*imageEntrySize)
	binary.LittleEndian.PutUint32(data[cacheHeaderMinSize+1*mappingEntrySize+24:], pathOff)

	info, err := Open(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if len(info.Mappings) != 1 || info.Mappings[0].Address != 0x100000000 {
		t.Fatalf("Mappings = %+v", info.Mappings)
	}
	if len(info.Images) != 1 {
		t.Fatalf("Images = %+v", info.Images)
	}
	if info.Arch.Name != "arm64" {
		t.Fatalf("Arch = %+v, want arm64", info.Arch)
	}

	got, err := info.Path(info.Images[0])
	if err != nil {
		t.Fatalf("Path() error = %v", err)
	}
	if got != "/usr/lib/libfoo.dylib" {
		t.Fatalf("Path() = %q, want /usr/lib/libfoo.dylib", got)
	}
}

func TestOpenRejectsUnknownMagic(t *testing.T) {
	data := make([]byte, cacheHeaderMinSize)
	copy(data, []byte("not_a_cache_file"))
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	var code Code
	if !errors.As(err, &code) || code != ErrNotDyldCache {
		t.Fatalf("err = %v, want ErrNotDyldCache", err)
	}
}

func TestOpenRejectsTooSmall(t *testing.T) {
	data := make([]byte, 4)
	_, err := Open(bytes.NewReader(data), int64(len(data)))
	var code Code
	if !errors.As(err, &code) || code != ErrSizeTooSmall {
		t.Fatalf("err = %v, want ErrSizeTooSmall", err)
	}
}

func TestOffsetForAddressOutsideEveryMapping(t *testing.T) {
	info := &Info{Mappings: []Mapping{{Address: 0x100000000, Size: 0x1000, FileOffset: 0}}}
	_, _, ok := info.OffsetForAddress(0x200000000)
	if ok {
		t.Fatal("OffsetForAddress() should report false for an address outside every mapping")
	}
}

func TestOffsetForAddressComputesDelta(t *testing.T) {
	info := &Info{Mappings: []Mapping{{Address: 0x100000000, Size: 0x1000, FileOffset: 0x4000}}}
	off, maxSize, ok := info.OffsetForAddress(0x100000010)
	if !ok {
		t.Fatal("OffsetForAddress() should succeed for an address inside the mapping")
	}
	if off != 0x4010 {
		t.Fatalf("off = %#x, want 0x4010", off)
	}
	if maxSize != 0x1000-0x10 {
		t.Fatalf("maxSize = %#x, want %#x", maxSize, 0x1000-0x10)
	}
}

func TestParseImageNoMapping(t *testing.T) {
	info := &Info{Mappings: nil, AvailableRange: types.Range{Begin: 0, End: 0x1000}}
	err := ParseImage(info, Image{Address: 0x1000}, discardSink{}, 0, nil)
	var code Code
	if !errors.As(err, &code) || code != ErrNoMapping {
		t.Fatalf("err = %v, want ErrNoMapping", err)
	}
}

func TestTranslateCollapsesFatAndArchErrorsToNotDyldCache(t *testing.T) {
	tests := []struct {
		in   *macho.FormatError
		want Code
	}{
		{&macho.FormatError{Code: macho.ErrNotMachO}, ErrNotDyldCache},
		{&macho.FormatError{Code: macho.ErrInvalidArchitecture}, ErrNotDyldCache},
		{&macho.FormatError{Code: macho.ErrUnsupportedCPUType}, ErrNotDyldCache},
		{&macho.FormatError{Code: macho.ErrSizeTooSmall}, ErrSizeTooSmall},
	}
	for _, tt := range tests {
		got := translate(tt.in)
		var code Code
		if !errors.As(got, &code) || code != tt.want {
			t.Errorf("translate(%v) = %v, want %v", tt.in.Code, got, tt.want)
		}
	}
}

func TestByteReaderAtBoundsChecked(t *testing.T) {
	b := byteReaderAt([]byte{1, 2, 3, 4})
	buf := make([]byte, 2)
	n, err := b.ReadAt(buf, 1)
	if err != nil || n != 2 || buf[0] != 2 || buf[1] != 3 {
		t.Fatalf("ReadAt() = %d, %v, buf=%v", n, err, buf)
	}
	if _, err := b.ReadAt(buf, 10); err == nil {
		t.Fatal("ReadAt() past the end should report an error")
	}
}

// discardSink is a no-op macho.Sink + dsc.Sink used to exercise ParseImage's
// error paths without needing a full aggregator.
type discardSink struct{}

func (discardSink) SetIdentification(name string, current, compat types.Version) error { return nil }
func (discardSink) SetPlatform(p types.Platform) error                                 { return nil }
func (discardSink) SetParentUmbrella(name string) error                                { return nil }
func (discardSink) SetObjcConstraint(v uint32) error                                    { return nil }
func (discardSink) SetSwiftVersion(v uint8) error                                       { return nil }
func (discardSink) SetFlatNamespace(v bool)                                             {}
func (discardSink) SetNotAppExtensionSafe(v bool)                                       {}
func (discardSink) AddUUID(arch archset.Descriptor, uuid types.UUID) error              { return nil }
func (discardSink) AddClient(name string, arch archset.Descriptor)                      {}
func (discardSink) AddReexport(name string, arch archset.Descriptor)                    {}
func (discardSink) AddSymbol(kind macho.SymbolKind, name string, arch archset.Descriptor) {}
func (discardSink) MarkArch(arch archset.Descriptor)                                   {}
func (discardSink) HasIdentification() bool                                            { return true }
func (discardSink) HasPlatform() bool                                                  { return true }
func (discardSink) ResetSingleArch(arch archset.Descriptor)                            {}

var _ Sink = discardSink{}
