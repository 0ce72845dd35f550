package depot

import (
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/depot/table"
)

// Registry is the top-level facade: it creates entities, resolves handles,
// chooses archetypes per component signature, moves entities between
// archetypes on schema change, issues views, and produces snapshots.
//
// The structural lock arbitrates every operation that changes an entity's
// (archetype, row) location; resolve-and-read paths run under shared access.
// Slot map shards carry their own mutexes so same-handle operations observe
// program order.
type Registry struct {
	cfg    Config
	schema *table.Schema
	shards *table.Shards

	structMu   sync.RWMutex
	archetypes *archetypes
	size       atomic.Int64

	cacheMu   sync.Mutex
	viewCache Cache[matchList]
}

func newRegistry(cfg Config) *Registry {
	cfg = cfg.normalized()
	return &Registry{
		cfg:        cfg,
		schema:     table.NewSchema(),
		shards:     table.NewShards(cfg.Shards, cfg.SegmentBits, cfg.InitialSlots),
		archetypes: newArchetypes(),
		viewCache:  FactoryNewCache[matchList](cfg.ViewCacheCapacity),
	}
}

// Schema exposes the registry's type-id assignments.
func (r *Registry) Schema() *table.Schema {
	return r.schema
}

// Insert creates one entity. Arguments are Component (zero value),
// ComponentValue (component.With(v)), or Tag; at least one component is
// required. Values land in signature order regardless of argument order, and
// the returned handle is stable until Erase.
func (r *Registry) Insert(args ...any) (Handle, error) {
	ids := make([]table.TypeID, 0, len(args))
	values := make(map[table.TypeID]any, len(args))
	seen := make(map[table.TypeID]struct{}, len(args))
	componentCount := 0

	for _, arg := range args {
		switch v := arg.(type) {
		case ComponentValue:
			id, err := r.schema.Register(v.comp)
			if err != nil {
				return InvalidHandle, err
			}
			if _, dup := seen[id]; dup {
				return InvalidHandle, ComponentExistsError{Component: v.comp}
			}
			seen[id] = struct{}{}
			values[id] = v.value
			ids = append(ids, id)
			componentCount++
		case Component:
			id, err := r.schema.Register(v)
			if err != nil {
				return InvalidHandle, err
			}
			if _, dup := seen[id]; dup {
				return InvalidHandle, ComponentExistsError{Component: v}
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
			componentCount++
		case Tag:
			id, err := r.schema.RegisterTag(v.name)
			if err != nil {
				return InvalidHandle, err
			}
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			ids = append(ids, id)
		default:
			return InvalidHandle, InvalidArgError{Item: arg}
		}
	}
	if componentCount == 0 {
		return InvalidHandle, EmptyInsertError{}
	}

	r.structMu.Lock()
	defer r.structMu.Unlock()
	arch := r.archetypeFor(ids)
	return r.insertInto(arch, values), nil
}

// insertInto allocates a slot, pushes the row, and points the slot at it.
// Caller holds the structural lock.
func (r *Registry) insertInto(arch *ArchetypeImpl, values map[table.TypeID]any) Handle {
	tbl := arch.tbl
	shard := r.shards.Next()
	shard.Lock()
	h, slot := shard.Insert(tbl, 0)
	shard.Unlock()

	compIDs := tbl.ComponentIDs()
	vals := make([]any, len(compIDs))
	for i, id := range compIDs {
		vals[i] = values[id]
	}
	tbl.Lock()
	row := tbl.Insert(h, vals)
	tbl.Unlock()
	slot.SetRow(row)
	r.size.Add(1)
	return h
}

// Exists reports whether the handle still resolves to a live entity.
func (r *Registry) Exists(h Handle) bool {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	_, ok := r.shards.Resolve(h)
	return ok
}

// Size returns the total entity count.
func (r *Registry) Size() int {
	return int(r.size.Load())
}

// Types returns the entity's current type-id set, components and tags.
func (r *Registry) Types(h Handle) []TypeID {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return nil
	}
	types := slot.Table().Types()
	out := make([]TypeID, len(types))
	copy(out, types)
	return out
}

// Has reports whether the entity carries the component.
func (r *Registry) Has(h Handle, c Component) bool {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return false
	}
	id, ok := r.schema.IDFor(c.Type())
	return ok && slot.Table().Contains(id)
}

// HasTag reports whether the entity carries the tag.
func (r *Registry) HasTag(h Handle, t Tag) bool {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return false
	}
	id, ok := r.schema.TagIDFor(t.name)
	return ok && slot.Table().Contains(id)
}

// ArchetypeOf returns the archetype currently housing the entity.
func (r *Registry) ArchetypeOf(h Handle) (Archetype, bool) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return nil, false
	}
	tbl := slot.Table()
	for _, arch := range r.archetypes.asSlice {
		if arch.tbl == tbl {
			return arch, true
		}
	}
	return nil, false
}

// Erase destroys the entity: its row is swap-erased (or gapped while its
// archetype is under iteration) and the slot's version bump invalidates the
// handle immediately either way.
func (r *Registry) Erase(h Handle) error {
	r.structMu.Lock()
	defer r.structMu.Unlock()

	shard, ok := r.shards.Map(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	shard.Lock()
	slot, live := shard.Resolve(h)
	if !live {
		shard.Unlock()
		return StaleHandleError{Handle: h}
	}
	tbl, row := slot.Table(), slot.Row()
	shard.Erase(h)
	shard.Unlock()

	r.eraseRow(tbl, row)
	r.size.Add(-1)
	return nil
}

// eraseRow removes one physical row, re-pointing whichever entity was
// swapped into its place. Caller holds the structural lock.
func (r *Registry) eraseRow(tbl *table.Table, row int) {
	tbl.Lock()
	moved, deferred := tbl.Erase(row)
	tbl.Unlock()
	if deferred {
		if !tbl.Iterating() {
			r.fillGapsLocked(tbl)
		}
		return
	}
	if moved.IsValid() {
		r.repoint(moved, row)
	}
}

// repoint updates the slot of a handle whose row moved.
func (r *Registry) repoint(h Handle, row int) {
	shard, ok := r.shards.Map(h)
	if !ok {
		return
	}
	shard.Lock()
	if slot, live := shard.Resolve(h); live {
		slot.SetRow(row)
	}
	shard.Unlock()
}

// fillGapsLocked collapses a table's deferred erases. Caller holds the
// structural lock exclusively; tables that re-acquired iterators are left
// for the next iteration to finish.
func (r *Registry) fillGapsLocked(tbl *table.Table) {
	if tbl.Iterating() {
		return
	}
	tbl.Lock()
	tbl.FillGaps(func(moved Handle, newRow int) {
		r.repoint(moved, newRow)
	})
	tbl.Unlock()
}

// finishTable is the iteration epilogue for one archetype: the last cursor
// out triggers gap compaction.
func (r *Registry) finishTable(tbl *table.Table) {
	if tbl.LeaveIter() {
		r.structMu.Lock()
		r.fillGapsLocked(tbl)
		r.structMu.Unlock()
	}
}

// moveLocked migrates the slot's entity into dst. Caller holds the
// structural lock.
func (r *Registry) moveLocked(slot *table.Slot, dst *ArchetypeImpl) {
	src := slot.Table()
	if src == dst.tbl {
		return
	}
	oldRow := slot.Row()
	lockTables(src, dst.tbl)
	newRow, moved, deferred := dst.tbl.MoveFrom(src, oldRow)
	unlockTables(src, dst.tbl)
	slot.SetLocation(dst.tbl, newRow)
	if deferred {
		if !src.Iterating() {
			r.fillGapsLocked(src)
		}
		return
	}
	if moved.IsValid() {
		r.repoint(moved, oldRow)
	}
}

// lockTables acquires both table locks in id order so concurrent moves never
// deadlock.
func lockTables(a, b *table.Table) {
	if a.ID() < b.ID() {
		a.Lock()
		b.Lock()
	} else {
		b.Lock()
		a.Lock()
	}
}

func unlockTables(a, b *table.Table) {
	a.Unlock()
	b.Unlock()
}

// ensureLocked moves the entity, at most once, into the archetype extending
// its signature with every missing component and tag. Caller holds the
// structural lock.
func (r *Registry) ensureLocked(slot *table.Slot, comps []Component, tags []Tag) error {
	tbl := slot.Table()
	ids := append([]table.TypeID(nil), tbl.Types()...)
	changed := false
	for _, c := range comps {
		id, err := r.schema.Register(c)
		if err != nil {
			return err
		}
		if !tbl.Contains(id) && !containsID(ids, id) {
			ids = append(ids, id)
			changed = true
		}
	}
	for _, t := range tags {
		id, err := r.schema.RegisterTag(t.name)
		if err != nil {
			return err
		}
		if !tbl.Contains(id) && !containsID(ids, id) {
			ids = append(ids, id)
			changed = true
		}
	}
	if !changed {
		return nil
	}
	r.moveLocked(slot, r.archetypeFor(ids))
	return nil
}

// Ensure moves the entity, at most once, into the archetype that carries all
// listed components. Newly added components hold their zero values.
func (r *Registry) Ensure(h Handle, comps ...Component) error {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	return r.ensureLocked(slot, comps, nil)
}

// Put writes component values on the entity. Components already in the
// entity's signature are written in place; missing ones migrate the entity
// to the extended archetype first (one move for the whole set). Arguments
// are ComponentValue or Component. A bare Component writes no value: a
// missing one is added with its zero value, an existing one is left as is.
func (r *Registry) Put(h Handle, args ...any) error {
	comps := make([]Component, 0, len(args))
	values := make([]any, 0, len(args))
	for _, arg := range args {
		switch v := arg.(type) {
		case ComponentValue:
			comps = append(comps, v.comp)
			values = append(values, v.value)
		case Component:
			comps = append(comps, v)
			values = append(values, nil)
		default:
			return InvalidArgError{Item: arg}
		}
	}

	// In-place fast path under shared access.
	r.structMu.RLock()
	slot, ok := r.shards.Resolve(h)
	if ok && r.hasAllComponents(slot.Table(), comps) {
		err := r.putValues(h, slot, comps, values)
		r.structMu.RUnlock()
		return err
	}
	r.structMu.RUnlock()
	if !ok {
		return StaleHandleError{Handle: h}
	}

	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok = r.shards.Resolve(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	if err := r.ensureLocked(slot, comps, nil); err != nil {
		return err
	}
	return r.putValues(h, slot, comps, values)
}

func (r *Registry) hasAllComponents(tbl *table.Table, comps []Component) bool {
	for _, c := range comps {
		id, ok := r.schema.IDFor(c.Type())
		if !ok || !tbl.HasComponent(id) {
			return false
		}
	}
	return true
}

// putValues writes in place; the shard mutex serialises writes against other
// operations on the same handle.
func (r *Registry) putValues(h Handle, slot *table.Slot, comps []Component, values []any) error {
	shard, _ := r.shards.Map(h)
	shard.Lock()
	defer shard.Unlock()
	tbl, row := slot.Table(), slot.Row()
	for i, c := range comps {
		if values[i] == nil {
			continue
		}
		id, ok := r.schema.IDFor(c.Type())
		if !ok || !tbl.HasComponent(id) {
			return ComponentNotFoundError{Name: c.Name()}
		}
		tbl.Put(row, id, values[i])
	}
	return nil
}

// EraseComponents removes the named components from the entity by moving it
// to the shrunken archetype. Every named component must be present.
func (r *Registry) EraseComponents(h Handle, comps ...Component) error {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	tbl := slot.Table()
	remove := make(map[TypeID]struct{}, len(comps))
	for _, c := range comps {
		id, idOK := r.schema.IDFor(c.Type())
		if !idOK || !tbl.HasComponent(id) {
			return ComponentNotFoundError{Name: c.Name()}
		}
		remove[id] = struct{}{}
	}
	r.moveLocked(slot, r.archetypeFor(withoutIDs(tbl.Types(), remove)))
	return nil
}

// AddTags moves the entity into the archetype extending its signature with
// the tags. Tags already present are ignored.
func (r *Registry) AddTags(h Handle, tags ...Tag) error {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	return r.ensureLocked(slot, nil, tags)
}

// EraseTags moves the entity into the archetype without the tags. Absent
// tags are ignored.
func (r *Registry) EraseTags(h Handle, tags ...Tag) error {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return StaleHandleError{Handle: h}
	}
	tbl := slot.Table()
	remove := make(map[TypeID]struct{}, len(tags))
	for _, t := range tags {
		if id, idOK := r.schema.TagIDFor(t.name); idOK && tbl.Contains(id) {
			remove[id] = struct{}{}
		}
	}
	if len(remove) == 0 {
		return nil
	}
	r.moveLocked(slot, r.archetypeFor(withoutIDs(tbl.Types(), remove)))
	return nil
}

// Clear empties every archetype and slot map shard. Archetypes themselves
// persist; live handles are invalidated by their slots' version bumps.
func (r *Registry) Clear() {
	r.structMu.Lock()
	defer r.structMu.Unlock()
	for _, arch := range r.archetypes.asSlice {
		arch.tbl.Lock()
		arch.tbl.Clear()
		arch.tbl.Unlock()
	}
	r.shards.Clear()
	r.size.Store(0)
}

func containsID(ids []table.TypeID, id table.TypeID) bool {
	for _, x := range ids {
		if x == id {
			return true
		}
	}
	return false
}

func withoutIDs(ids []table.TypeID, remove map[table.TypeID]struct{}) []table.TypeID {
	out := make([]table.TypeID, 0, len(ids))
	for _, id := range ids {
		if _, drop := remove[id]; !drop {
			out = append(out, id)
		}
	}
	return out
}
