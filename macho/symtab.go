package macho

import (
	"encoding/binary"
	"io"
	"strings"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/types"
)

const (
	maxNsyms   = 1 << 22
	maxStrsize = 1 << 30

	nlist32Size = 12
	nlist64Size = 16
)

// walkSymtab reads symoff/nsyms/stroff/strsize entries, classifies each
// defined external symbol, and merges it into sink (spec §4.4). r/availRange
// bound every read; for a DSC image these offsets are cache-relative, so
// availRange is the whole cache map rather than one image's slice.
func walkSymtab(r io.ReaderAt, availRange types.Range, order binary.ByteOrder, is64 bool, symtab types.SymtabCmd, arch archset.Descriptor, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	if symtab.Nsyms > maxNsyms {
		return &FormatError{Code: ErrInvalidSymbolTable}
	}
	if symtab.Strsize > maxStrsize {
		return &FormatError{Code: ErrInvalidStringTable}
	}
	if symtab.Nsyms == 0 {
		return nil
	}

	entrySize := nlist32Size
	if is64 {
		entrySize = nlist64Size
	}
	tableSize := uint64(symtab.Nsyms) * uint64(entrySize)
	symBuf := make([]byte, tableSize)
	if err := readAt(r, availRange, availRange.Begin+uint64(symtab.Symoff), symBuf); err != nil {
		return &FormatError{Code: ErrInvalidSymbolTable, Val: err}
	}

	strBuf := scratch.strBuffer(int(symtab.Strsize))
	if err := readAt(r, availRange, availRange.Begin+uint64(symtab.Stroff), strBuf); err != nil {
		return &FormatError{Code: ErrInvalidStringTable, Val: err}
	}

	for i := uint32(0); i < symtab.Nsyms; i++ {
		entry := symBuf[uint64(i)*uint64(entrySize):]
		nameOff := order.Uint32(entry[0:4])
		nType := entry[4]
		nDesc := order.Uint16(entry[6:8])

		if uint64(nameOff) >= uint64(symtab.Strsize) {
			return &FormatError{Code: ErrInvalidSymbolTable}
		}
		name, err := cstring(strBuf[nameOff:])
		if err != nil {
			return &FormatError{Code: ErrInvalidStringTable, Val: err}
		}
		if name == "" {
			continue
		}

		if !types.Defined(nType) || !types.External(nType) {
			continue
		}

		sink.AddSymbol(classify(name, nDesc), name, arch)
	}
	return nil
}

// classify applies spec §4.4's name-prefix and n_desc rules. Prefix checks
// run before the weak-def flag, matching the reference implementation's
// priority (an objc class can't also be reported weak-def).
func classify(name string, nDesc uint16) SymbolKind {
	switch {
	case strings.HasPrefix(name, "_OBJC_CLASS_$"),
		strings.HasPrefix(name, "_OBJC_METACLASS_$"),
		strings.HasPrefix(name, ".objc_class_name_"):
		return SymbolObjcClass
	case strings.HasPrefix(name, "_OBJC_IVAR_$"):
		return SymbolObjcIvar
	case types.WeakDef(nDesc):
		return SymbolWeakDef
	default:
		return SymbolNormal
	}
}
