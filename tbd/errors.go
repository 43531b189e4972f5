package tbd

import (
	"errors"
	"fmt"
)

// errConflict is the sentinel a CreateInfo setter returns to signal "this
// slice disagrees with a value already recorded". The macho package's
// load-command walker is the only caller; it never inspects the sentinel's
// identity, only its nilness, and wraps it in its own macho.Code before
// it ever reaches the parser's caller (see macho/loadcmds.go's
// wrapConflict). Keeping the aggregator's own error vocabulary this small
// avoids a macho<->tbd code-translation table no caller needs.
var errConflict = errors.New("tbd: conflicting field value")

// Code is a flat, write-time error code, grouped the way spec §7 groups
// "Write: failed-to-write-{field}" plus the enforce_has_exports addition
// from SPEC_FULL §13.
type Code int

const (
	_ Code = iota
	ErrWriteFailedHeader
	ErrWriteFailedArchitectures
	ErrWriteFailedUUIDs
	ErrWriteFailedPlatform
	ErrWriteFailedFlags
	ErrWriteFailedInstallName
	ErrWriteFailedCurrentVersion
	ErrWriteFailedCompatibilityVersion
	ErrWriteFailedSwiftVersion
	ErrWriteFailedObjcConstraint
	ErrWriteFailedParentUmbrella
	ErrWriteFailedExports
	ErrWriteFailedFooter
	ErrHasNoExports
	ErrNoUUID
)

var codeStrings = map[Code]string{
	ErrWriteFailedHeader:               "failed to write header",
	ErrWriteFailedArchitectures:        "failed to write architectures",
	ErrWriteFailedUUIDs:                "failed to write uuids",
	ErrWriteFailedPlatform:             "failed to write platform",
	ErrWriteFailedFlags:                "failed to write flags",
	ErrWriteFailedInstallName:          "failed to write install-name",
	ErrWriteFailedCurrentVersion:       "failed to write current-version",
	ErrWriteFailedCompatibilityVersion: "failed to write compatibility-version",
	ErrWriteFailedSwiftVersion:         "failed to write swift-version",
	ErrWriteFailedObjcConstraint:       "failed to write objc-constraint",
	ErrWriteFailedParentUmbrella:       "failed to write parent-umbrella",
	ErrWriteFailedExports:              "failed to write exports",
	ErrWriteFailedFooter:               "failed to write footer",
	ErrHasNoExports:                    "create info has no exports",
	ErrNoUUID:                          "no uuid",
}

func (c Code) Error() string {
	if s, ok := codeStrings[c]; ok {
		return s
	}
	return fmt.Sprintf("tbd: unknown error code %d", int(c))
}

// WriteError wraps a Code with the underlying io error that triggered it,
// mirroring macho.FormatError's shape on the write side.
type WriteError struct {
	Code  Code
	Cause error
}

func (e *WriteError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code.Error(), e.Cause)
	}
	return e.Code.Error()
}

func (e *WriteError) Unwrap() error { return e.Cause }
