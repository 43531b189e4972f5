package tbd

import (
	"fmt"
	"io"
	"strings"
)

// GroupPolicy selects how export groups sharing an ArchSet across different
// containers are combined. Only the collapsing policy is implemented;
// the field exists as the extension seam SPEC_FULL §14.3 calls for.
type GroupPolicy int

const (
	// GroupPolicyCollapse merges every container's entries for a given
	// ArchSet into one ExportGroup — the source's documented default
	// behavior (spec §9).
	GroupPolicyCollapse GroupPolicy = iota
)

// WriteOptions mirrors tbd.h's O_TBD_CREATE_IGNORE_* bitmask, expressed as
// a plain struct of bools rather than a bitmask — idiomatic for a function
// argument with this many independent switches, and it avoids 20-odd
// exported uint64 constants nobody composes by hand.
type WriteOptions struct {
	IgnoreHeader                  bool
	IgnoreArchitectures           bool
	IgnoreUUIDs                   bool
	IgnorePlatform                bool
	IgnoreFlags                   bool
	IgnoreInstallName             bool
	IgnoreCurrentVersion          bool
	IgnoreCompatibilityVersion    bool
	IgnoreSwiftVersion            bool
	IgnoreObjcConstraint          bool
	IgnoreParentUmbrella          bool
	IgnoreExports                 bool
	IgnoreReexports               bool
	IgnoreNormalSymbols           bool
	IgnoreWeakSymbols             bool
	IgnoreObjcClassSymbols        bool
	IgnoreObjcIvarSymbols         bool
	IgnoreFooter                  bool
	IgnoreAllowableClients        bool
	IgnoreUnneededFieldsForVersion bool

	EnforceHasExports            bool
	OrderByArchitectureInfoTable bool
	GroupPolicy                  GroupPolicy
}

const keyColumn = 21 // "key:" padded to this column before the value/list starts
const wrapColumn = 105
const wrapIndent = 26

// Write renders ci as a TBD document to w, following spec §4.7's layout and
// SPEC_FULL §13's v1 unneeded-fields skip and enforce-has-exports addition.
// Any write() failure is fatal and aborts emission (spec §4.7), reported as
// a *WriteError naming the field that failed.
func Write(w io.Writer, ci *CreateInfo, opts WriteOptions) error {
	if opts.EnforceHasExports && !ci.HasExports() {
		return &WriteError{Code: ErrHasNoExports}
	}
	if ci.TBDVersion == VersionV2 && len(ci.UUIDs()) == 0 {
		return &WriteError{Code: ErrNoUUID}
	}

	v1 := ci.TBDVersion == VersionV1
	skipUnneeded := v1 && opts.IgnoreUnneededFieldsForVersion

	if !opts.IgnoreHeader {
		tag := ""
		if ci.TBDVersion == VersionV2 {
			tag = " !tapi-tbd-v2"
		}
		if err := writeLine(w, ErrWriteFailedHeader, "---%s", tag); err != nil {
			return err
		}
	}

	if !opts.IgnoreArchitectures {
		if err := writeFlowList(w, ErrWriteFailedArchitectures, "archs:", ci.Archs.Names()); err != nil {
			return err
		}
	}

	if !opts.IgnoreUUIDs {
		if err := writeUUIDs(w, ci, opts.OrderByArchitectureInfoTable); err != nil {
			return err
		}
	}

	if !opts.IgnorePlatform {
		if err := writeField(w, ErrWriteFailedPlatform, "platform:", ci.Platform.String()); err != nil {
			return err
		}
	}

	if !opts.IgnoreInstallName {
		if err := writeField(w, ErrWriteFailedInstallName, "install-name:", ci.InstallName); err != nil {
			return err
		}
	}
	if !opts.IgnoreCurrentVersion {
		if err := writeField(w, ErrWriteFailedCurrentVersion, "current-version:", ci.CurrentVersion.String()); err != nil {
			return err
		}
	}
	if !opts.IgnoreCompatibilityVersion {
		if err := writeField(w, ErrWriteFailedCompatibilityVersion, "compatibility-version:", ci.CompatVersion.String()); err != nil {
			return err
		}
	}

	if !skipUnneeded {
		if !opts.IgnoreSwiftVersion && ci.SwiftVersion != 0 {
			if err := writeField(w, ErrWriteFailedSwiftVersion, "swift-version:", fmt.Sprintf("%d", ci.SwiftVersion)); err != nil {
				return err
			}
		}
		if !opts.IgnoreObjcConstraint && ci.ObjcConstraint != 0 {
			if err := writeField(w, ErrWriteFailedObjcConstraint, "objc-constraint:", fmt.Sprintf("%d", ci.ObjcConstraint)); err != nil {
				return err
			}
		}
		if !opts.IgnoreParentUmbrella && ci.ParentUmbrella != "" {
			if err := writeField(w, ErrWriteFailedParentUmbrella, "parent-umbrella:", ci.ParentUmbrella); err != nil {
				return err
			}
		}
	}

	if !opts.IgnoreFlags {
		var flags []string
		if ci.FlatNamespace {
			flags = append(flags, "flat_namespace")
		}
		if ci.NotAppExtensionSafe {
			flags = append(flags, "not_app_extension_safe")
		}
		if len(flags) > 0 {
			if err := writeFlowList(w, ErrWriteFailedFlags, "flags:", flags); err != nil {
				return err
			}
		}
	}

	if !opts.IgnoreExports {
		if err := writeExports(w, ci, opts); err != nil {
			return err
		}
	}

	if !opts.IgnoreFooter {
		if err := writeLine(w, ErrWriteFailedFooter, "..."); err != nil {
			return err
		}
	}
	return nil
}

func writeUUIDs(w io.Writer, ci *CreateInfo, orderByTable bool) error {
	pairs := append([]UuidPair(nil), ci.UUIDs()...)
	if orderByTable {
		for i := 1; i < len(pairs); i++ {
			for j := i; j > 0 && pairs[j-1].Arch.Index > pairs[j].Arch.Index; j-- {
				pairs[j-1], pairs[j] = pairs[j], pairs[j-1]
			}
		}
	}
	items := make([]string, len(pairs))
	for i, p := range pairs {
		items[i] = fmt.Sprintf("'%s: %s'", p.Arch.Name, p.UUID.String())
	}
	return writeFlowList(w, ErrWriteFailedUUIDs, "uuids:", items)
}

func writeExports(w io.Writer, ci *CreateInfo, opts WriteOptions) error {
	groups := ExportGroups(ci)
	if len(groups) == 0 {
		return nil
	}
	if _, err := io.WriteString(w, "exports:\n"); err != nil {
		return &WriteError{Code: ErrWriteFailedExports, Cause: err}
	}
	for _, g := range groups {
		if err := writeExportGroup(w, g, opts); err != nil {
			return err
		}
	}
	return nil
}

func writeExportGroup(w io.Writer, g ExportGroup, opts WriteOptions) error {
	if err := writeFlowList(w, ErrWriteFailedExports, "  - archs:", g.Archs.Names()); err != nil {
		return err
	}
	if !opts.IgnoreReexports && len(g.Reexports) > 0 {
		if err := writeFlowList(w, ErrWriteFailedExports, "    re-exports:", g.Reexports); err != nil {
			return err
		}
	}
	if !opts.IgnoreNormalSymbols && len(g.Symbols) > 0 {
		if err := writeFlowList(w, ErrWriteFailedExports, "    symbols:", g.Symbols); err != nil {
			return err
		}
	}
	if !opts.IgnoreObjcClassSymbols && len(g.ObjcClasses) > 0 {
		if err := writeFlowList(w, ErrWriteFailedExports, "    objc-classes:", g.ObjcClasses); err != nil {
			return err
		}
	}
	if !opts.IgnoreObjcIvarSymbols && len(g.ObjcIvars) > 0 {
		if err := writeFlowList(w, ErrWriteFailedExports, "    objc-ivars:", g.ObjcIvars); err != nil {
			return err
		}
	}
	if !opts.IgnoreWeakSymbols && len(g.WeakSymbols) > 0 {
		if err := writeFlowList(w, ErrWriteFailedExports, "    weak-def-symbols:", g.WeakSymbols); err != nil {
			return err
		}
	}
	return nil
}

func writeLine(w io.Writer, code Code, format string, args ...interface{}) error {
	if _, err := fmt.Fprintf(w, format+"\n", args...); err != nil {
		return &WriteError{Code: code, Cause: err}
	}
	return nil
}

func writeField(w io.Writer, code Code, key, value string) error {
	pad := keyColumn - len(key)
	if pad < 1 {
		pad = 1
	}
	if _, err := fmt.Fprintf(w, "%s%s%s\n", key, strings.Repeat(" ", pad), value); err != nil {
		return &WriteError{Code: code, Cause: err}
	}
	return nil
}

// writeFlowList renders key followed by a bracketed, comma-separated list,
// applying spec §4.7's 105-column line-wrap rule and single-quoting any
// item beginning with "$ld".
func writeFlowList(w io.Writer, code Code, key string, items []string) error {
	pad := keyColumn - len(key)
	if pad < 1 {
		pad = 1
	}
	prefix := key + strings.Repeat(" ", pad)
	if _, err := io.WriteString(w, prefix); err != nil {
		return &WriteError{Code: code, Cause: err}
	}

	if len(items) == 0 {
		if _, err := io.WriteString(w, "[  ]\n"); err != nil {
			return &WriteError{Code: code, Cause: err}
		}
		return nil
	}

	quoted := make([]string, len(items))
	for i, it := range items {
		if strings.HasPrefix(it, "$ld") {
			quoted[i] = "'" + it + "'"
		} else {
			quoted[i] = it
		}
	}

	col := len(prefix) + 2 // "[ "
	if _, err := io.WriteString(w, "[ "); err != nil {
		return &WriteError{Code: code, Cause: err}
	}
	for i, it := range quoted {
		if i == 0 {
			if _, err := io.WriteString(w, it); err != nil {
				return &WriteError{Code: code, Cause: err}
			}
			col += len(it)
			continue
		}
		addition := ", " + it
		if col+len(addition) >= wrapColumn {
			if _, err := io.WriteString(w, ",\n"+strings.Repeat(" ", wrapIndent)); err != nil {
				return &WriteError{Code: code, Cause: err}
			}
			if _, err := io.WriteString(w, it); err != nil {
				return &WriteError{Code: code, Cause: err}
			}
			col = wrapIndent + len(it)
		} else {
			if _, err := io.WriteString(w, addition); err != nil {
				return &WriteError{Code: code, Cause: err}
			}
			col += len(addition)
		}
	}
	if _, err := io.WriteString(w, " ]\n"); err != nil {
		return &WriteError{Code: code, Cause: err}
	}
	return nil
}
