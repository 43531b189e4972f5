package tbd

import (
	"bytes"

	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/macho"
	"github.com/appsworld/machotbd/types"
)

// Symbol is one exported name and the set of architectures it was observed
// under, merged across every slice that defines it (spec §3).
type Symbol struct {
	Kind  macho.SymbolKind
	Name  string
	Archs archset.ArchSet
}

// Reexport is a re-exported dylib install-name and the architectures that
// re-export it.
type Reexport struct {
	Name  string
	Archs archset.ArchSet
}

// Client is an allowable-client name and the architectures that allow it.
type Client struct {
	Name  string
	Archs archset.ArchSet
}

// UuidPair ties one architecture to the UUID its slice carried. A CreateInfo
// rejects a second pair that repeats either projection (arch or UUID).
type UuidPair struct {
	Arch archset.Descriptor
	UUID types.UUID
}

// symbolMergeKeyCmp orders entries by the lookup key (kind, name) used while
// merging slices — see dynarray.Array.Upsert. This is deliberately not the
// final emission order; symbolSortCmp (below) re-sorts after merge.
func symbolMergeKeyCmp(a, b Symbol) int {
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return bytes.Compare([]byte(a.Name), []byte(b.Name))
}

func reexportMergeKeyCmp(a, b Reexport) int {
	return bytes.Compare([]byte(a.Name), []byte(b.Name))
}

func clientMergeKeyCmp(a, b Client) int {
	return bytes.Compare([]byte(a.Name), []byte(b.Name))
}

func uuidArchCmp(a, b UuidPair) int {
	if a.Arch.Index != b.Arch.Index {
		if a.Arch.Index < b.Arch.Index {
			return -1
		}
		return 1
	}
	return 0
}

// nameCompare implements spec §4.7's "byte-wise name compare using the
// shorter length + 1 to include the terminator, avoiding strcmp" — a and b
// are compared over min(len(a),len(b))+1 bytes, the +1 pulling in the NUL
// terminator (or, for a prefix match, the short string's absence of one) so
// "foo" sorts before "foobar" the same way C's strcmp would.
func nameCompare(a, b string) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	n++
	ab, bb := []byte(a), []byte(b)
	for i := 0; i < n; i++ {
		var ac, bc byte
		if i < len(ab) {
			ac = ab[i]
		}
		if i < len(bb) {
			bc = bb[i]
		}
		if ac != bc {
			if ac < bc {
				return -1
			}
			return 1
		}
	}
	return 0
}

// symbolSortCmp implements the symbol_info_comparator sort key (spec §4.7):
// archs_count descending-as-greater, then archs bitset, then kind, then name.
func symbolSortCmp(a, b Symbol) int {
	if c := archset.Compare(a.Archs, b.Archs); c != 0 {
		return c
	}
	if a.Kind != b.Kind {
		return int(a.Kind) - int(b.Kind)
	}
	return nameCompare(a.Name, b.Name)
}

func reexportSortCmp(a, b Reexport) int {
	if c := archset.Compare(a.Archs, b.Archs); c != 0 {
		return c
	}
	return nameCompare(a.Name, b.Name)
}
