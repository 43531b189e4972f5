package types

// Magic identifies the byte layout of a Mach-O container: thin 32/64-bit or
// fat (universal). The low bit of a thin magic separates 32-bit from 64-bit;
// the byte-swapped ("cigam") spelling is the same value in the other byte
// order, so callers decode the first four bytes both little- and big-endian
// and compare each against Magic32/Magic64 before picking a
// binary.ByteOrder.
type Magic uint32

const (
	Magic32  Magic = 0xfeedface
	Magic64  Magic = 0xfeedfacf
	MagicFat Magic = 0xcafebabe
)

// FatMagic identifies a fat (universal archive) header, again in either
// endianness. FatMagic64 is the newer layout with 64-bit slice offsets/sizes,
// used once a fat archive must address a slice beyond 4GB.
type FatMagic uint32

const (
	FatMagic32 FatMagic = 0xcafebabe
	FatCigam32 FatMagic = 0xbebafeca
	FatMagic64 FatMagic = 0xcafebabf
	FatCigam64 FatMagic = 0xbfbafeca
)

var magicStrings = []IntName{
	{uint32(Magic32), "32-bit MachO"},
	{uint32(Magic64), "64-bit MachO"},
	{uint32(MagicFat), "Fat MachO"},
}

func (i Magic) Int() uint32      { return uint32(i) }
func (i Magic) String() string   { return StringName(uint32(i), magicStrings, false) }
func (i Magic) GoString() string { return StringName(uint32(i), magicStrings, true) }
