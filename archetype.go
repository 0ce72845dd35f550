package depot

import (
	"github.com/TheBitDrifter/mask"

	"github.com/TheBitDrifter/depot/table"
)

type archetypeID uint32

// Archetype is the storage bundle for all entities sharing one exact
// signature of component types and tags.
type Archetype interface {
	ID() uint32
	Table() *table.Table
}

// ArchetypeImpl implements the Archetype interface.
type ArchetypeImpl struct {
	id  archetypeID
	tbl *table.Table
}

// ID returns the archetype's creation-order identifier.
func (a *ArchetypeImpl) ID() uint32 {
	return uint32(a.id)
}

// Table returns the archetype's storage table.
func (a *ArchetypeImpl) Table() *table.Table {
	return a.tbl
}

// archetypes manages archetype collections and identification.
type archetypes struct {
	nextID           archetypeID
	asSlice          []*ArchetypeImpl
	idsGroupedByMask map[mask.Mask]archetypeID
}

func newArchetypes() *archetypes {
	return &archetypes{
		nextID:           1,
		idsGroupedByMask: make(map[mask.Mask]archetypeID),
	}
}

// archetypeFor returns the archetype whose signature is exactly ids, forging
// it when absent. Signatures de-duplicate by mask, so every path to one type
// set converges on the same archetype. Caller holds the structural lock.
func (r *Registry) archetypeFor(ids []table.TypeID) *ArchetypeImpl {
	var sig mask.Mask
	for _, id := range ids {
		sig.Mark(uint32(id))
	}
	if id, found := r.archetypes.idsGroupedByMask[sig]; found {
		return r.archetypes.asSlice[id-1]
	}
	created := &ArchetypeImpl{
		id: r.archetypes.nextID,
		tbl: table.NewTable(
			r.schema,
			uint32(r.archetypes.nextID),
			r.cfg.SegmentBits,
			r.cfg.AccessChecks,
			ids,
		),
	}
	r.archetypes.asSlice = append(r.archetypes.asSlice, created)
	r.archetypes.idsGroupedByMask[sig] = created.id
	r.archetypes.nextID++
	return created
}

// Archetypes returns all archetypes in creation order.
func (r *Registry) Archetypes() []*ArchetypeImpl {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	out := make([]*ArchetypeImpl, len(r.archetypes.asSlice))
	copy(out, r.archetypes.asSlice)
	return out
}
