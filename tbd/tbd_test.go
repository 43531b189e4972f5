package tbd

import (
	"strings"
	"testing"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/macho"
	"github.com/appsworld/machotbd/types"
)

func mustArch(t *testing.T, name string) archset.Descriptor {
	t.Helper()
	d, ok := archset.ByName(name)
	if !ok {
		t.Fatalf("archset.ByName(%q) not found", name)
	}
	return d
}

func TestSetIdentificationFirstValueWins(t *testing.T) {
	ci := New(VersionV2)
	if err := ci.SetIdentification("libfoo.dylib", 1, 2); err != nil {
		t.Fatalf("first SetIdentification: %v", err)
	}
	if err := ci.SetIdentification("libfoo.dylib", 1, 2); err != nil {
		t.Fatalf("repeating identical identification should not conflict: %v", err)
	}
	if err := ci.SetIdentification("libbar.dylib", 1, 2); err == nil {
		t.Fatal("differing install name should report a conflict")
	}
	if ci.InstallName != "libfoo.dylib" {
		t.Fatalf("InstallName = %q, want first-seen value unchanged", ci.InstallName)
	}
}

func TestSetPlatformConflict(t *testing.T) {
	ci := New(VersionV2)
	if err := ci.SetPlatform(types.PlatformIOS); err != nil {
		t.Fatalf("SetPlatform: %v", err)
	}
	if err := ci.SetPlatform(types.PlatformMacOS); err == nil {
		t.Fatal("disagreeing platform should conflict")
	}
}

func TestSetFlatNamespaceIsOrNotConflictChecked(t *testing.T) {
	ci := New(VersionV2)
	ci.SetFlatNamespace(false)
	ci.SetFlatNamespace(true)
	ci.SetFlatNamespace(false)
	if !ci.FlatNamespace {
		t.Fatal("FlatNamespace should stay true once any slice set it, regardless of order")
	}
}

func TestAddUUIDRejectsDuplicateArchAndDuplicateUUID(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	x8664 := mustArch(t, "x86_64")
	u1 := types.UUID{1}
	u2 := types.UUID{2}

	if err := ci.AddUUID(arm64, u1); err != nil {
		t.Fatalf("AddUUID: %v", err)
	}
	if err := ci.AddUUID(arm64, u1); err != nil {
		t.Fatalf("repeating the identical pair should not conflict: %v", err)
	}
	if err := ci.AddUUID(arm64, u2); err == nil {
		t.Fatal("same arch, different uuid should conflict")
	}
	if err := ci.AddUUID(x8664, u1); err == nil {
		t.Fatal("same uuid under a different arch should conflict")
	}
}

func TestAddSymbolMergesArchsAcrossSlices(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	x8664 := mustArch(t, "x86_64")

	ci.AddSymbol(macho.SymbolNormal, "_foo", arm64)
	ci.AddSymbol(macho.SymbolNormal, "_foo", x8664)
	ci.Finalize()

	syms := ci.Symbols()
	if len(syms) != 1 {
		t.Fatalf("Symbols() = %v, want a single merged entry", syms)
	}
	if !syms[0].Archs.Test(arm64) || !syms[0].Archs.Test(x8664) {
		t.Fatalf("merged symbol archs = %v, want both arm64 and x86_64", syms[0].Archs)
	}
}

func TestMarkArchUpdatesCount(t *testing.T) {
	ci := New(VersionV2)
	ci.MarkArch(mustArch(t, "arm64"))
	ci.MarkArch(mustArch(t, "x86_64"))
	if ci.ArchsCount != 2 {
		t.Fatalf("ArchsCount = %d, want 2", ci.ArchsCount)
	}
}

func TestResetSingleArchOverwrites(t *testing.T) {
	ci := New(VersionV2)
	ci.MarkArch(mustArch(t, "arm64"))
	ci.MarkArch(mustArch(t, "x86_64"))
	ci.ResetSingleArch(mustArch(t, "arm64e"))
	if ci.ArchsCount != 1 {
		t.Fatalf("ArchsCount after ResetSingleArch = %d, want 1", ci.ArchsCount)
	}
	if !ci.Archs.Test(mustArch(t, "arm64e")) {
		t.Fatal("Archs should contain only arm64e after ResetSingleArch")
	}
}

func TestHasExports(t *testing.T) {
	ci := New(VersionV2)
	if ci.HasExports() {
		t.Fatal("empty aggregator should report HasExports() == false")
	}
	ci.AddReexport("libbar.dylib", mustArch(t, "arm64"))
	if !ci.HasExports() {
		t.Fatal("a reexport alone should count as an export")
	}
}

func TestNameCompareIncludesTerminator(t *testing.T) {
	if nameCompare("foo", "foobar") >= 0 {
		t.Fatal(`"foo" should sort before "foobar"`)
	}
	if nameCompare("foobar", "foo") <= 0 {
		t.Fatal(`"foobar" should sort after "foo"`)
	}
	if nameCompare("foo", "foo") != 0 {
		t.Fatal(`"foo" should compare equal to itself`)
	}
}

func TestSymbolSortOrdersByArchsCountThenKindThenName(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	x8664 := mustArch(t, "x86_64")

	ci.AddSymbol(macho.SymbolNormal, "_zzz", arm64)
	ci.AddSymbol(macho.SymbolNormal, "_zzz", x8664) // archs_count 2, sorts after single-arch entries
	ci.AddSymbol(macho.SymbolNormal, "_aaa", arm64)
	ci.AddSymbol(macho.SymbolWeakDef, "_aaa", arm64)
	ci.Finalize()

	syms := ci.Symbols()
	// The two single-arch arm64 symbols (_aaa normal, _aaa weak-def, sorted
	// by kind then name) must precede the two-arch _zzz entry.
	if len(syms) != 3 {
		t.Fatalf("Symbols() = %v, want 3 merged entries", syms)
	}
	if syms[2].Name != "_zzz" {
		t.Fatalf("last entry = %q, want _zzz (larger archs_count sorts last)", syms[2].Name)
	}
	if syms[0].Kind != macho.SymbolNormal || syms[1].Kind != macho.SymbolWeakDef {
		t.Fatalf("kind tie-break order = [%v %v], want [Normal WeakDef]", syms[0].Kind, syms[1].Kind)
	}
}

func TestExportGroupsCollapseSharedArchSets(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")

	ci.AddSymbol(macho.SymbolNormal, "_foo", arm64)
	ci.AddSymbol(macho.SymbolWeakDef, "_bar", arm64)
	ci.AddReexport("libbar.dylib", arm64)
	ci.Finalize()

	groups := ExportGroups(ci)
	if len(groups) != 1 {
		t.Fatalf("ExportGroups() = %v, want a single collapsed group for one ArchSet", groups)
	}
	g := groups[0]
	if len(g.Symbols) != 1 || g.Symbols[0] != "_foo" {
		t.Errorf("Symbols = %v, want [_foo]", g.Symbols)
	}
	if len(g.WeakSymbols) != 1 || g.WeakSymbols[0] != "_bar" {
		t.Errorf("WeakSymbols = %v, want [_bar]", g.WeakSymbols)
	}
	if len(g.Reexports) != 1 || g.Reexports[0] != "libbar.dylib" {
		t.Errorf("Reexports = %v, want [libbar.dylib]", g.Reexports)
	}
}

func TestWriteEnforceHasExportsFailsWhenEmpty(t *testing.T) {
	ci := New(VersionV2)
	ci.SetIdentification("libfoo.dylib", 0x10000, 0x10000)
	ci.Finalize()

	var sb strings.Builder
	err := Write(&sb, ci, WriteOptions{EnforceHasExports: true})
	if err == nil {
		t.Fatal("Write() should fail when enforce_has_exports is set and there are no exports")
	}
	we, ok := err.(*WriteError)
	if !ok || we.Code != ErrHasNoExports {
		t.Fatalf("err = %v, want *WriteError{Code: ErrHasNoExports}", err)
	}
}

func TestWriteRendersExpectedDocument(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	ci.MarkArch(arm64)
	ci.SetIdentification("libfoo.dylib", 0x10000, 0x10000)
	ci.SetPlatform(types.PlatformIOS)
	ci.AddUUID(arm64, types.UUID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	ci.AddSymbol(macho.SymbolNormal, "_foo", arm64)
	ci.Finalize()

	var sb strings.Builder
	if err := Write(&sb, ci, WriteOptions{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := sb.String()

	for _, want := range []string{
		"---", "archs:", "[ arm64 ]", "platform:", "install-name:", "libfoo.dylib",
		"current-version:", "1", "exports:", "_foo", "...",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Write() output missing %q, got:\n%s", want, out)
		}
	}
}

func TestWriteFlowListWrapsLongLists(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	ci.MarkArch(arm64)
	ci.SetIdentification("libfoo.dylib", 0x10000, 0x10000)
	ci.SetPlatform(types.PlatformIOS)
	ci.AddUUID(arm64, types.UUID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	for i := 0; i < 30; i++ {
		ci.AddSymbol(macho.SymbolNormal, strings.Repeat("_", 1)+symName(i), arm64)
	}
	ci.Finalize()

	var sb strings.Builder
	if err := Write(&sb, ci, WriteOptions{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	out := sb.String()
	for _, line := range strings.Split(out, "\n") {
		if len(line) > 105 {
			t.Errorf("line exceeds wrap column: %q (%d bytes)", line, len(line))
		}
	}
	// Wrapped continuation lines are indented to column 26.
	found := false
	for _, line := range strings.Split(out, "\n") {
		if strings.HasPrefix(line, strings.Repeat(" ", 26)) {
			found = true
		}
	}
	if !found {
		t.Error("expected at least one wrapped continuation line indented to column 26")
	}
}

func symName(i int) string {
	return "sym_with_a_fairly_long_identifier_name_" + itoa(i)
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	neg := i < 0
	if neg {
		i = -i
	}
	var b []byte
	for i > 0 {
		b = append([]byte{byte('0' + i%10)}, b...)
		i /= 10
	}
	if neg {
		b = append([]byte{'-'}, b...)
	}
	return string(b)
}

func TestWriteFlowListSingleQuotesLdPrefixedItems(t *testing.T) {
	ci := New(VersionV2)
	arm64 := mustArch(t, "arm64")
	ci.MarkArch(arm64)
	ci.SetIdentification("libfoo.dylib", 0x10000, 0x10000)
	ci.SetPlatform(types.PlatformIOS)
	ci.AddUUID(arm64, types.UUID{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16})
	ci.AddSymbol(macho.SymbolNormal, "$ld$hide$os10.5$_foo", arm64)
	ci.Finalize()

	var sb strings.Builder
	if err := Write(&sb, ci, WriteOptions{}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if !strings.Contains(sb.String(), "'$ld$hide$os10.5$_foo'") {
		t.Errorf("expected $ld-prefixed symbol to be single-quoted, got:\n%s", sb.String())
	}
}

func TestWriteIgnoreUnneededFieldsForVersionSkipsUnderV1(t *testing.T) {
	ci := New(VersionV1)
	arm64 := mustArch(t, "arm64")
	ci.MarkArch(arm64)
	ci.SetIdentification("libfoo.dylib", 0x10000, 0x10000)
	ci.SetPlatform(types.PlatformIOS)
	ci.SetSwiftVersion(5)
	ci.AddSymbol(macho.SymbolNormal, "_foo", arm64)
	ci.Finalize()

	var sb strings.Builder
	if err := Write(&sb, ci, WriteOptions{IgnoreUnneededFieldsForVersion: true}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if strings.Contains(sb.String(), "swift-version:") {
		t.Error("swift-version should be skipped under v1 with IgnoreUnneededFieldsForVersion")
	}
}
