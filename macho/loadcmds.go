package macho

import (
	"encoding/binary"
	"io"
	"log"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/types"
)

const (
	maxLoadCommands = 1 << 16
	maxSections     = 1 << 14
	loadCmdHdrSize  = 8 // {cmd uint32, cmdsize uint32}
)

// walkLoadCommands iterates exactly hdr.NCommands commands inside cmdArea,
// enforcing the invariants of spec §4.3, and dispatches each recognized
// command to sink. String fields and section headers are read from the
// command bytes already loaded; availRange bounds the reads outside the
// command area (section contents, the symbol/string tables); for a thin
// file it equals cmdArea's enclosing file range, for a DSC image it is the
// whole cache map (SectOffAbsolute).
func walkLoadCommands(r io.ReaderAt, cmdArea, availRange types.Range, order binary.ByteOrder, is64 bool, hdr types.FileHeader, arch archset.Descriptor, sink Sink, opts ParseOptions, scratch *ParseScratch) error {
	if hdr.NCommands == 0 {
		return &FormatError{Code: ErrNoLoadCommands}
	}
	if hdr.NCommands > maxLoadCommands {
		return &FormatError{Code: ErrTooManyLoadCommands}
	}
	if uint64(hdr.SizeCommands) > cmdArea.Size() {
		return &FormatError{Code: ErrLoadCommandsAreaTooSmall}
	}

	cmdBuf := scratch.cmdBuffer(int(hdr.SizeCommands))
	if err := readAt(r, cmdArea, cmdArea.Begin, cmdBuf); err != nil {
		return err
	}

	var (
		consumed  uint32
		sawSymtab bool
		symtab    types.SymtabCmd
	)

	for i := uint32(0); i < hdr.NCommands; i++ {
		remaining := uint32(len(cmdBuf)) - consumed
		if remaining < loadCmdHdrSize {
			return &FormatError{Code: ErrInvalidLoadCommand}
		}
		cmd := types.LoadCmd(order.Uint32(cmdBuf[consumed:]))
		cmdsize := order.Uint32(cmdBuf[consumed+4:])
		if cmdsize < loadCmdHdrSize {
			return &FormatError{Code: ErrInvalidLoadCommand, Val: cmd}
		}
		if cmdsize > remaining {
			return &FormatError{Code: ErrInvalidLoadCommand, Val: cmd}
		}
		if cmdsize == remaining && i != hdr.NCommands-1 {
			return &FormatError{Code: ErrInvalidLoadCommand, Val: cmd}
		}

		body := cmdBuf[consumed : consumed+cmdsize]
		cmdOff := cmdArea.Begin + uint64(consumed)
		if err := dispatchCommand(r, body, cmdOff, availRange, order, is64, cmd, cmdsize, arch, sink, opts, &sawSymtab, &symtab); err != nil {
			return err
		}

		consumed += cmdsize
	}

	if consumed != hdr.SizeCommands {
		return &FormatError{Code: ErrLoadCommandsAreaTooSmall}
	}

	if !sink.HasIdentification() {
		return &FormatError{Code: ErrNoIdentification}
	}
	if !sink.HasPlatform() {
		return &FormatError{Code: ErrNoPlatform}
	}

	if !sawSymtab {
		if opts.has(DontParseSymbolTable) {
			return nil
		}
		return &FormatError{Code: ErrNoSymbolTable}
	}
	if opts.has(DontParseSymbolTable) {
		return nil
	}
	return walkSymtab(r, availRange, order, is64, symtab, arch, sink, opts, scratch)
}

func dispatchCommand(r io.ReaderAt, body []byte, cmdOff uint64, availRange types.Range, order binary.ByteOrder, is64 bool, cmd types.LoadCmd, cmdsize uint32, arch archset.Descriptor, sink Sink, opts ParseOptions, sawSymtab *bool, symtab *types.SymtabCmd) error {
	conflict := func(err error) error {
		if opts.has(IgnoreConflictingFields) {
			return nil
		}
		return err
	}

	switch cmd {
	case types.LC_ID_DYLIB:
		name, cur, compat, err := readDylibCmd(body, order)
		if err != nil {
			return invalidOrIgnored(opts, ErrInvalidInstallName, err)
		}
		return conflict(wrapConflict(sink.SetIdentification(name, cur, compat), ErrConflictingIdentification))

	case types.LC_UUID:
		if cmdsize < 8+16 {
			return &FormatError{Code: ErrInvalidUUID}
		}
		var u types.UUID
		copy(u[:], body[8:24])
		return conflict(wrapConflict(sink.AddUUID(arch, u), ErrConflictingUUID))

	case types.LC_BUILD_VERSION:
		if cmdsize < 24 {
			return &FormatError{Code: ErrInvalidLoadCommand, Val: cmd}
		}
		platform := types.Platform(order.Uint32(body[8:12]))
		if !platform.Known() {
			return invalidOrIgnored(opts, ErrInvalidPlatform, nil)
		}
		return conflict(wrapConflict(sink.SetPlatform(platform), ErrConflictingPlatform))

	case types.LC_VERSION_MIN_MACOSX:
		return conflict(wrapConflict(sink.SetPlatform(types.PlatformMacOS), ErrConflictingPlatform))
	case types.LC_VERSION_MIN_IPHONEOS:
		return conflict(wrapConflict(sink.SetPlatform(types.PlatformIOS), ErrConflictingPlatform))
	case types.LC_VERSION_MIN_TVOS:
		return conflict(wrapConflict(sink.SetPlatform(types.PlatformTvOS), ErrConflictingPlatform))
	case types.LC_VERSION_MIN_WATCHOS:
		return conflict(wrapConflict(sink.SetPlatform(types.PlatformWatchOS), ErrConflictingPlatform))

	case types.LC_SUB_FRAMEWORK:
		name, err := readLCString(r, body, cmdOff, availRange, order)
		if err != nil {
			return invalidOrIgnored(opts, ErrInvalidParentUmbrella, err)
		}
		return conflict(wrapConflict(sink.SetParentUmbrella(name), ErrConflictingParentUmbrella))

	case types.LC_SUB_CLIENT:
		name, err := readLCString(r, body, cmdOff, availRange, order)
		if err != nil {
			return invalidOrIgnored(opts, ErrInvalidClient, err)
		}
		sink.AddClient(name, arch)
		return nil

	case types.LC_REEXPORT_DYLIB:
		name, _, _, err := readDylibCmd(body, order)
		if err != nil {
			return invalidOrIgnored(opts, ErrInvalidReexport, err)
		}
		sink.AddReexport(name, arch)
		return nil

	case types.LC_SYMTAB:
		if *sawSymtab {
			return &FormatError{Code: ErrInvalidLoadCommand, Val: cmd}
		}
		*sawSymtab = true
		symtab.Symoff = order.Uint32(body[8:12])
		symtab.Nsyms = order.Uint32(body[12:16])
		symtab.Stroff = order.Uint32(body[16:20])
		symtab.Strsize = order.Uint32(body[20:24])
		return nil

	case types.LC_SEGMENT:
		return scanSections(r, body, availRange, order, false, sink, opts)
	case types.LC_SEGMENT_64:
		return scanSections(r, body, availRange, order, true, sink, opts)

	case types.LC_DYSYMTAB:
		// Present in nearly every dylib; carries no ABI fact this module
		// extracts, so it is recognized-and-skipped rather than falling
		// into the unrecognized-command log line below.
		return nil
	}

	// Unrecognized-but-harmless command: the teacher logs one diagnostic
	// line and moves on (file.go:849); we follow the identical texture.
	log.Printf("macho: skipping unrecognized load command %s", cmd)
	return nil
}

func invalidOrIgnored(opts ParseOptions, code Code, cause error) error {
	if opts.has(IgnoreInvalidFields) {
		return nil
	}
	return &FormatError{Code: code, Val: cause}
}

func wrapConflict(err error, code Code) error {
	if err == nil {
		return nil
	}
	return &FormatError{Code: code, Val: err}
}

// readDylibCmd extracts the trailing install-name/client string and the
// two packed versions from an LC_ID_DYLIB / LC_REEXPORT_DYLIB / LC_LOAD_DYLIB
// body (all share the dylib_command layout).
func readDylibCmd(body []byte, order binary.ByteOrder) (string, types.Version, types.Version, error) {
	if len(body) < 24 {
		return "", 0, 0, &FormatError{Code: ErrInvalidLoadCommand}
	}
	nameOff := order.Uint32(body[8:12])
	cur := types.Version(order.Uint32(body[16:20]))
	compat := types.Version(order.Uint32(body[20:24]))
	if uint64(nameOff) >= uint64(len(body)) {
		return "", 0, 0, &FormatError{Code: ErrInvalidInstallName}
	}
	name, err := cstring(body[nameOff:])
	if err != nil {
		return "", 0, 0, &FormatError{Code: ErrInvalidInstallName, Val: err}
	}
	return name, cur, compat, nil
}

// readLCString resolves a load-command string field that is itself stored
// inline in the command body at a 4-byte offset (LC_SUB_FRAMEWORK,
// LC_SUB_CLIENT, LC_LOAD_DYLINKER, ...).
func readLCString(r io.ReaderAt, body []byte, cmdOff uint64, availRange types.Range, order binary.ByteOrder) (string, error) {
	if len(body) < 12 {
		return "", &FormatError{Code: ErrInvalidLoadCommand}
	}
	strOff := order.Uint32(body[8:12])
	if uint64(strOff) >= uint64(len(body)) {
		return "", &FormatError{Code: ErrInvalidLoadCommand}
	}
	return cstring(body[strOff:])
}

// objcImageInfoSize is the size of objc_image_info: {version, flags} uint32
// pairs. swift-version occupies bits 8-15 of flags; objc-constraint
// occupies the low byte.
const objcImageInfoSize = 8

// Section header byte layouts, offsets relative to the start of each
// section header (the headers follow the segment command, whose size
// includes the 8-byte {cmd,cmdsize} prefix: 72 bytes for LC_SEGMENT_64,
// 56 for LC_SEGMENT):
//   section_64:  sectname[0:16] segname[16:32] addr[32:40] size[40:48]
//                offset[48:52] align[52:56] reloff[56:60] nreloc[60:64]
//                flags[64:68] reserved1[68:72] reserved2[72:76] reserved3[76:80]
//   section_32:  sectname[0:16] segname[16:32] addr[32:36] size[36:40]
//                offset[40:44] align[44:48] reloff[48:52] nreloc[52:56]
//                flags[56:60] reserved1[60:64] reserved2[64:68]
func scanSections(r io.ReaderAt, segBody []byte, availRange types.Range, order binary.ByteOrder, is64 bool, sink Sink, opts ParseOptions) error {
	var nsect uint32
	var segHdrSize, sectSize int
	if is64 {
		if len(segBody) < 72 {
			return &FormatError{Code: ErrInvalidLoadCommand}
		}
		nsect = order.Uint32(segBody[64:68])
		segHdrSize, sectSize = 72, 80
	} else {
		if len(segBody) < 56 {
			return &FormatError{Code: ErrInvalidLoadCommand}
		}
		nsect = order.Uint32(segBody[48:52])
		segHdrSize, sectSize = 56, 68
	}
	if nsect > maxSections {
		return invalidOrIgnored(opts, ErrTooManySections, nil)
	}

	off := segHdrSize
	for i := uint32(0); i < nsect; i++ {
		if off+sectSize > len(segBody) {
			return invalidOrIgnored(opts, ErrInvalidSection, nil)
		}
		sect := segBody[off : off+sectSize]
		name := string(trimNulRight(sect[0:16]))
		if name == "__objc_imageinfo" {
			var secOff, secSize uint32
			if is64 {
				secSize = uint32(order.Uint64(sect[40:48]))
				secOff = order.Uint32(sect[48:52])
			} else {
				secSize = order.Uint32(sect[36:40])
				secOff = order.Uint32(sect[40:44])
			}
			if secSize >= objcImageInfoSize {
				buf := make([]byte, objcImageInfoSize)
				if err := readAt(r, availRange, availRange.Begin+uint64(secOff), buf); err == nil {
					flags := order.Uint32(buf[4:8])
					if err := sink.SetObjcConstraint(flags & 0xff); err != nil && !opts.has(IgnoreConflictingFields) {
						return &FormatError{Code: ErrConflictingObjcConstraint, Val: err}
					}
					if err := sink.SetSwiftVersion(uint8((flags >> 8) & 0xff)); err != nil && !opts.has(IgnoreConflictingFields) {
						return &FormatError{Code: ErrConflictingSwiftVersion, Val: err}
					}
				}
			}
		}
		off += sectSize
	}
	return nil
}

func trimNulRight(b []byte) []byte {
	i := len(b)
	for i > 0 && b[i-1] == 0 {
		i--
	}
	return b[:i]
}
