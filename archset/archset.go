// Package archset provides the fixed architecture-descriptor registry and
// the 64-bit bitset type (ArchSet) used to tag every fact an aggregator
// learns with the set of architectures it holds for.
package archset

import (
	"fmt"
	"strings"

	"github.com/appsworld/machotbd/types"
)

// Descriptor is an immutable, process-lifetime entry in the architecture
// registry: {name, cputype, cpusubtype, table index}. The registry's
// cardinality ceiling is 64, so any architecture set fits a uint64 bitset.
type Descriptor struct {
	Name    string
	CPU     types.CPU
	SubCPU  types.CPUSubtype
	Index   uint
}

// table is the fixed, read-only architecture registry. It is initialized
// once at package load and never mutated — new architectures are added
// here, never constructed ad hoc, so every ArchSet bit has one fixed
// meaning for the process lifetime.
var table = []Descriptor{
	{Name: "i386", CPU: types.CPU386, SubCPU: types.CPUSubtypeX8664All},
	{Name: "x86_64", CPU: types.CPUAmd64, SubCPU: types.CPUSubtypeX8664All},
	{Name: "x86_64h", CPU: types.CPUAmd64, SubCPU: types.CPUSubtypeX86_64H},
	{Name: "armv7", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7},
	{Name: "armv7f", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7F},
	{Name: "armv7s", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7S},
	{Name: "armv7k", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7K},
	{Name: "armv6m", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV6M},
	{Name: "armv7m", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7M},
	{Name: "armv7em", CPU: types.CPUArm, SubCPU: types.CPUSubtypeArmV7Em},
	{Name: "arm64", CPU: types.CPUArm64, SubCPU: types.CPUSubtypeArm64All},
	{Name: "arm64e", CPU: types.CPUArm64, SubCPU: types.CPUSubtypeArm64E},
	{Name: "ppc", CPU: types.CPUPpc, SubCPU: 0},
	{Name: "ppc64", CPU: types.CPUPpc64, SubCPU: 0},
}

func init() {
	if len(table) > 64 {
		panic("archset: registry exceeds 64 entries, cannot fit a uint64 bitset")
	}
	for i := range table {
		table[i].Index = uint(i)
	}
}

// Lookup finds the Descriptor matching cputype/cpusubtype, masking off the
// capability bits of subtype the way the teacher's CPUSubtype.String does
// before comparing. Returns ok=false for UNSUPPORTED_CPUTYPE/INVALID_ARCHITECTURE.
func Lookup(cpu types.CPU, sub types.CPUSubtype) (Descriptor, bool) {
	masked := sub & types.CpuSubtypeMask
	for _, d := range table {
		if d.CPU == cpu && d.SubCPU&types.CpuSubtypeMask == masked {
			return d, true
		}
	}
	return Descriptor{}, false
}

// ByName finds the Descriptor with the given architecture name, used when
// rendering output in ascending architecture-table-index order.
func ByName(name string) (Descriptor, bool) {
	for _, d := range table {
		if d.Name == name {
			return d, true
		}
	}
	return Descriptor{}, false
}

// Table returns the full registry, ordered by table index.
func Table() []Descriptor {
	return table
}

// ArchSet is a bitset of architecture-registry table indices. Set
// membership is the sole way this module records "which architectures
// include this fact" — see types.Range for the analogous story on offsets.
type ArchSet uint64

// FromDescriptor returns the singleton set containing d.
func FromDescriptor(d Descriptor) ArchSet {
	return ArchSet(1) << d.Index
}

// Set adds d to the set, returning the updated value.
func (a ArchSet) Set(d Descriptor) ArchSet {
	return a | FromDescriptor(d)
}

// Test reports whether d is a member.
func (a ArchSet) Test(d Descriptor) bool {
	return a&FromDescriptor(d) != 0
}

// Or merges two sets, used by the aggregator to union a slice's ArchSet
// into an existing symbol/reexport/client entry.
func (a ArchSet) Or(b ArchSet) ArchSet {
	return a | b
}

// PopCount returns the number of member architectures, the running value
// the aggregator keeps in sync as `archs_count`.
func (a ArchSet) PopCount() int {
	n := 0
	for v := uint64(a); v != 0; v &= v - 1 {
		n++
	}
	return n
}

// Empty reports whether no architecture is a member.
func (a ArchSet) Empty() bool {
	return a == 0
}

// Descriptors returns the member descriptors in ascending table-index
// order, the order the TBD writer uses for the header `archs:` line
// (descriptor order, distinct from `order_by_architecture_info_table`,
// which the writer applies separately to the uuids line).
func (a ArchSet) Descriptors() []Descriptor {
	var out []Descriptor
	for _, d := range table {
		if a.Test(d) {
			out = append(out, d)
		}
	}
	return out
}

// Names renders the member architecture names in ascending table-index
// order, e.g. for a header `archs: [ x86_64, arm64 ]` list.
func (a ArchSet) Names() []string {
	ds := a.Descriptors()
	names := make([]string, len(ds))
	for i, d := range ds {
		names[i] = d.Name
	}
	return names
}

func (a ArchSet) String() string {
	return fmt.Sprintf("[%s]", strings.Join(a.Names(), ", "))
}

// Compare implements the ArchSet half of symbol_info_comparator's sort key:
// larger popcount sorts greater; ties broken on the raw bitset value. It
// returns a standard three-valued ordering (<0, 0, >0).
func Compare(a, b ArchSet) int {
	if pa, pb := a.PopCount(), b.PopCount(); pa != pb {
		return pa - pb
	}
	if a < b {
		return -1
	}
	if a > b {
		return 1
	}
	return 0
}
