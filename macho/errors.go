package macho

import "fmt"

// Code is a flat, cause-grouped Mach-O parse error, following the
// teacher's FormatError pattern (file.go) generalized to every failure
// cause of the parser. The TBD writer reports its own tbd.Code values.
type Code int

const (
	_ Code = iota

	// I/O
	ErrReadFailed

	// Shape
	ErrNotMachO
	ErrSizeTooSmall
	ErrInvalidRange

	// Architecture
	ErrUnsupportedCPUType
	ErrNoArchitectures
	ErrTooManyArchitectures
	ErrInvalidArchitecture
	ErrOverlappingArchitectures
	ErrMultipleArchsForCPUType

	// Load commands
	ErrNoLoadCommands
	ErrTooManyLoadCommands
	ErrLoadCommandsAreaTooSmall
	ErrInvalidLoadCommand
	ErrTooManySections
	ErrInvalidSection

	// Field validity
	ErrInvalidInstallName
	ErrInvalidParentUmbrella
	ErrInvalidClient
	ErrInvalidReexport
	ErrInvalidPlatform
	ErrInvalidSymbolTable
	ErrInvalidStringTable
	ErrInvalidUUID

	// Field conflict (cross-slice)
	ErrConflictingArchInfo
	ErrConflictingFlags
	ErrConflictingIdentification
	ErrConflictingObjcConstraint
	ErrConflictingParentUmbrella
	ErrConflictingPlatform
	ErrConflictingSwiftVersion
	ErrConflictingUUID

	// Missing required fields
	ErrNoIdentification
	ErrNoPlatform
	ErrNoSymbolTable
	ErrNoUUID
	ErrNoExports

	// Allocation
	ErrAllocFailed
	ErrArrayFailed
)

var codeStrings = map[Code]string{
	ErrReadFailed:               "read failed",
	ErrNotMachO:                 "not a Mach-O file",
	ErrSizeTooSmall:             "size too small",
	ErrInvalidRange:             "invalid range",
	ErrUnsupportedCPUType:       "unsupported cputype",
	ErrNoArchitectures:          "no architectures",
	ErrTooManyArchitectures:     "too many architectures",
	ErrInvalidArchitecture:      "invalid architecture",
	ErrOverlappingArchitectures: "overlapping architectures",
	ErrMultipleArchsForCPUType:  "multiple slices for the same cputype",
	ErrNoLoadCommands:           "no load commands",
	ErrTooManyLoadCommands:      "too many load commands",
	ErrLoadCommandsAreaTooSmall: "load commands area too small",
	ErrInvalidLoadCommand:       "invalid load command",
	ErrTooManySections:          "too many sections",
	ErrInvalidSection:           "invalid section",
	ErrInvalidInstallName:       "invalid install name",
	ErrInvalidParentUmbrella:    "invalid parent umbrella",
	ErrInvalidClient:            "invalid client",
	ErrInvalidReexport:          "invalid reexport",
	ErrInvalidPlatform:          "invalid platform",
	ErrInvalidSymbolTable:       "invalid symbol table",
	ErrInvalidStringTable:       "invalid string table",
	ErrInvalidUUID:              "invalid uuid",
	ErrConflictingArchInfo:      "conflicting arch info",
	ErrConflictingFlags:         "conflicting flags",
	ErrConflictingIdentification: "conflicting identification",
	ErrConflictingObjcConstraint: "conflicting objc constraint",
	ErrConflictingParentUmbrella: "conflicting parent umbrella",
	ErrConflictingPlatform:      "conflicting platform",
	ErrConflictingSwiftVersion:  "conflicting swift version",
	ErrConflictingUUID:          "conflicting uuid",
	ErrNoIdentification:         "no identification command",
	ErrNoPlatform:               "no platform",
	ErrNoSymbolTable:            "no symbol table",
	ErrNoUUID:                   "no uuid",
	ErrNoExports:                "no exports",
	ErrAllocFailed:              "allocation failed",
	ErrArrayFailed:              "array allocation failed",
}

func (c Code) Error() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("macho: unknown error code %d", int(c))
}

// FormatError records the byte offset and value involved in a parse
// failure alongside its Code, following the teacher's FormatError{off,
// msg, val} shape in file.go.
type FormatError struct {
	Off  int64
	Code Code
	Val  interface{}
}

func (e *FormatError) Error() string {
	msg := e.Code.Error()
	if e.Val != nil {
		msg += fmt.Sprintf(" (%v)", e.Val)
	}
	if e.Off != 0 {
		msg += fmt.Sprintf(" at offset 0x%x", e.Off)
	}
	return msg
}

func (e *FormatError) Unwrap() error { return e.Code }
