package tbd

import (
	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/macho"
)

// ExportGroup is the unit of TBD emission: one `- archs: […]` block and the
// reexport/symbol lists that share that ArchSet (spec §3, §4.7). It is a
// derived view over a CreateInfo's sorted symbol/reexport lists, never
// persisted.
type ExportGroup struct {
	Archs       archset.ArchSet
	Reexports   []string
	Symbols     []string
	WeakSymbols []string
	ObjcClasses []string
	ObjcIvars   []string
}

// ExportGroups walks ci's sorted symbols and reexports and builds the
// sequence of ExportGroups the writer renders (spec §4.7's grouping step).
// ci.Finalize must have been called first so both lists are ordered by
// symbol_info_comparator; that ordering also happens to be exactly the
// ascending order archset.Compare imposes on the distinct ArchSets this
// function discovers, so a single bucketing pass over each list reproduces
// the source's "first reexport/symbol with that ArchSet seeds the group"
// behavior without deriving a separate ArchSet ordering of its own.
//
// When containers (reexports, the four symbol kinds) disagree about which
// ArchSet came first, "multiple containers sharing an ArchSet collapse into
// one group" (spec §9, resolved in SPEC_FULL §14.3) is this function's
// default and only implemented policy: every distinct ArchSet present in
// any container produces exactly one group, regardless of which container's
// list it was first seen in.
func ExportGroups(ci *CreateInfo) []ExportGroup {
	order := groupOrder(ci)
	groups := make([]ExportGroup, len(order))
	index := make(map[archset.ArchSet]int, len(order))
	for i, a := range order {
		groups[i].Archs = a
		index[a] = i
	}

	for _, r := range ci.Reexports() {
		i := index[r.Archs]
		groups[i].Reexports = append(groups[i].Reexports, r.Name)
	}
	for _, s := range ci.Symbols() {
		i := index[s.Archs]
		g := &groups[i]
		switch s.Kind {
		case macho.SymbolWeakDef:
			g.WeakSymbols = append(g.WeakSymbols, s.Name)
		case macho.SymbolObjcClass:
			g.ObjcClasses = append(g.ObjcClasses, s.Name)
		case macho.SymbolObjcIvar:
			g.ObjcIvars = append(g.ObjcIvars, s.Name)
		default:
			g.Symbols = append(g.Symbols, s.Name)
		}
	}
	return groups
}

// groupOrder returns every distinct ArchSet present in ci's reexports or
// symbols, in ascending archset.Compare order — the same order both sorted
// lists already share as their primary key.
func groupOrder(ci *CreateInfo) []archset.ArchSet {
	seen := make(map[archset.ArchSet]bool)
	var order []archset.ArchSet
	add := func(a archset.ArchSet) {
		if !seen[a] {
			seen[a] = true
			order = append(order, a)
		}
	}
	for _, r := range ci.Reexports() {
		add(r.Archs)
	}
	for _, s := range ci.Symbols() {
		add(s.Archs)
	}
	sortArchSets(order)
	return order
}

// sortArchSets orders a short, typically single-digit-length slice of
// distinct ArchSets by archset.Compare; an insertion sort is plenty for the
// handful of groups a real TBD ever has.
func sortArchSets(s []archset.ArchSet) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && archset.Compare(s[j-1], s[j]) > 0; j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
