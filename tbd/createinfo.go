// Package tbd implements the aggregator, export grouper, and TBD text
// serializer: it receives per-slice facts through the macho.Sink interface,
// merges them under "first value wins" conflict semantics, and renders the
// merged result as a TBD v1/v2 document (spec §4.6, §4.7).
package tbd

import (
	"github.com/appsworld/machotbd/archset"
	"github.com/appsworld/machotbd/dynarray"
	"github.com/appsworld/machotbd/macho"
	"github.com/appsworld/machotbd/types"
)

// Version selects the TBD document dialect to emit.
type Version int

const (
	VersionV1 Version = iota
	VersionV2
)

// CreateInfo is the aggregator: it owns the merged ABI for one Mach-O file
// or DSC image, mutated monotonically as each slice is parsed (spec §3's
// CreateInfo entity). A CreateInfo is not safe for concurrent use; the
// concurrency model (spec §5) gives each file exactly one owning worker.
type CreateInfo struct {
	InstallName         string
	CurrentVersion      types.Version
	CompatVersion       types.Version
	ParentUmbrella      string
	Platform            types.Platform
	ObjcConstraint      uint32
	SwiftVersion        uint8
	FlatNamespace       bool
	NotAppExtensionSafe bool
	TBDVersion          Version

	Archs      archset.ArchSet
	ArchsCount int

	uuids     *dynarray.Array[UuidPair]
	symbols   *dynarray.Array[Symbol]
	reexports *dynarray.Array[Reexport]
	clients   *dynarray.Array[Client]

	haveIdentification bool
	havePlatform       bool
	haveParentUmbrella bool
	haveObjcConstraint bool
	haveSwiftVersion   bool
}

// New returns an empty aggregator ready to receive slices via the Sink
// interface.
func New(version Version) *CreateInfo {
	return &CreateInfo{
		TBDVersion: version,
		uuids:      dynarray.New(uuidArchCmp),
		symbols:    dynarray.New(symbolMergeKeyCmp),
		reexports:  dynarray.New(reexportMergeKeyCmp),
		clients:    dynarray.New(clientMergeKeyCmp),
	}
}

var _ macho.Sink = (*CreateInfo)(nil)

// SetIdentification implements macho.Sink. First sighting wins; a later
// slice disagreeing on name or either version is a conflict (spec §4.6).
func (c *CreateInfo) SetIdentification(name string, current, compat types.Version) error {
	if !c.haveIdentification {
		c.InstallName, c.CurrentVersion, c.CompatVersion = name, current, compat
		c.haveIdentification = true
		return nil
	}
	if c.InstallName != name || c.CurrentVersion != current || c.CompatVersion != compat {
		return errConflict
	}
	return nil
}

// SetPlatform implements macho.Sink.
func (c *CreateInfo) SetPlatform(p types.Platform) error {
	if !c.havePlatform {
		c.Platform = p
		c.havePlatform = true
		return nil
	}
	if c.Platform != p {
		return errConflict
	}
	return nil
}

// SetParentUmbrella implements macho.Sink.
func (c *CreateInfo) SetParentUmbrella(name string) error {
	if !c.haveParentUmbrella {
		c.ParentUmbrella = name
		c.haveParentUmbrella = true
		return nil
	}
	if c.ParentUmbrella != name {
		return errConflict
	}
	return nil
}

// SetObjcConstraint implements macho.Sink.
func (c *CreateInfo) SetObjcConstraint(v uint32) error {
	if !c.haveObjcConstraint {
		c.ObjcConstraint = v
		c.haveObjcConstraint = true
		return nil
	}
	if c.ObjcConstraint != v {
		return errConflict
	}
	return nil
}

// SetSwiftVersion implements macho.Sink.
func (c *CreateInfo) SetSwiftVersion(v uint8) error {
	if !c.haveSwiftVersion {
		c.SwiftVersion = v
		c.haveSwiftVersion = true
		return nil
	}
	if c.SwiftVersion != v {
		return errConflict
	}
	return nil
}

// SetFlatNamespace implements macho.Sink. Unlike the scalar identity fields
// above, the namespace/app-extension-safe flags are derived per-slice from
// MH_TWOLEVEL / MH_APP_EXTENSION_SAFE rather than compared for conflict —
// the source treats these as an OR across slices, matching "the library is
// flat if any slice says so".
func (c *CreateInfo) SetFlatNamespace(v bool) {
	c.FlatNamespace = c.FlatNamespace || v
}

// SetNotAppExtensionSafe implements macho.Sink.
func (c *CreateInfo) SetNotAppExtensionSafe(v bool) {
	c.NotAppExtensionSafe = c.NotAppExtensionSafe || v
}

// AddUUID implements macho.Sink. Both projections (arch, uuid) must stay
// unique (spec §3, §8 invariant 3); a second UUID for the same arch is a
// conflict, a UUID already recorded under a different arch is rejected too.
func (c *CreateInfo) AddUUID(arch archset.Descriptor, uuid types.UUID) error {
	if existing, ok := c.uuids.Find(UuidPair{Arch: arch}); ok {
		if existing.UUID != uuid {
			return errConflict
		}
		return nil
	}
	for _, p := range c.uuids.Items() {
		if p.UUID == uuid {
			return errConflict
		}
	}
	c.uuids.Insert(UuidPair{Arch: arch, UUID: uuid})
	return nil
}

// AddClient implements macho.Sink: append, or OR the arch bit into an
// existing same-name client.
func (c *CreateInfo) AddClient(name string, arch archset.Descriptor) {
	bit := archset.FromDescriptor(arch)
	c.clients.Upsert(Client{Name: name, Archs: bit}, func(existing, incoming Client) Client {
		existing.Archs = existing.Archs.Or(incoming.Archs)
		return existing
	})
}

// AddReexport implements macho.Sink.
func (c *CreateInfo) AddReexport(name string, arch archset.Descriptor) {
	bit := archset.FromDescriptor(arch)
	c.reexports.Upsert(Reexport{Name: name, Archs: bit}, func(existing, incoming Reexport) Reexport {
		existing.Archs = existing.Archs.Or(incoming.Archs)
		return existing
	})
}

// AddSymbol implements macho.Sink.
func (c *CreateInfo) AddSymbol(kind macho.SymbolKind, name string, arch archset.Descriptor) {
	bit := archset.FromDescriptor(arch)
	c.symbols.Upsert(Symbol{Kind: kind, Name: name, Archs: bit}, func(existing, incoming Symbol) Symbol {
		existing.Archs = existing.Archs.Or(incoming.Archs)
		return existing
	})
}

// MarkArch implements macho.Sink: folds arch into the running Archs bitset
// and keeps ArchsCount in sync as its popcount (spec §4.6).
func (c *CreateInfo) MarkArch(arch archset.Descriptor) {
	c.Archs = c.Archs.Set(arch)
	c.ArchsCount = c.Archs.PopCount()
}

// ResetSingleArch implements the DSC image driver's documented behavior
// (spec §9 Open Question 1, resolved in SPEC_FULL §14.1): a single-image
// DSC parse unconditionally overwrites Archs/ArchsCount with exactly the
// cache's one architecture, even if the aggregator already held others.
// Merging multiple DSC images into one CreateInfo is unsupported; a fat
// archive instead merges its slices one at a time by driving the same
// macho.Sink setters (SetIdentification, AddSymbol, MarkArch, ...) once per
// slice, the way the macho package's fat-slice loop (parseFat) does.
func (c *CreateInfo) ResetSingleArch(arch archset.Descriptor) {
	c.Archs = archset.FromDescriptor(arch)
	c.ArchsCount = 1
}

// Finalize sorts symbols and reexports by the symbol_info_comparator key
// (spec §4.7) so equal-ArchSet groups cluster; callers invoke this once
// after every slice has been merged in, before handing the aggregator to
// the export grouper.
func (c *CreateInfo) Finalize() {
	c.symbols.Sort(symbolSortCmp)
	c.reexports.Sort(reexportSortCmp)
}

// Symbols returns the merged, sorted symbol list (valid after Finalize).
func (c *CreateInfo) Symbols() []Symbol { return c.symbols.Items() }

// Reexports returns the merged, sorted reexport list (valid after Finalize).
func (c *CreateInfo) Reexports() []Reexport { return c.reexports.Items() }

// Clients returns the merged client list.
func (c *CreateInfo) Clients() []Client { return c.clients.Items() }

// UUIDs returns the UUID set, ordered by architecture table index.
func (c *CreateInfo) UUIDs() []UuidPair { return c.uuids.Items() }

// HasIdentification reports whether an LC_ID_DYLIB was ever merged in
// (NO_IDENTIFICATION, spec §4.3).
func (c *CreateInfo) HasIdentification() bool { return c.haveIdentification }

// HasPlatform reports whether a platform was ever merged in (NO_PLATFORM).
func (c *CreateInfo) HasPlatform() bool { return c.havePlatform }

// HasExports reports whether the aggregator has anything to emit under
// `exports:` — used by Write's enforce_has_exports check (SPEC_FULL §13).
func (c *CreateInfo) HasExports() bool {
	return c.symbols.Len() > 0 || c.reexports.Len() > 0
}
