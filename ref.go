package depot

import (
	"reflect"

	"github.com/TheBitDrifter/bark"

	"github.com/TheBitDrifter/depot/table"
)

// Ref is a re-resolving reference to one entity's component of type T. It
// snapshots the entity's location and its archetype's change counter; a
// dereference after any structural mutation re-resolves through the slot
// map. A reference whose entity died, or whose entity no longer carries T,
// is stale: Get treats that as fatal, TryGet reports it as an error.
type Ref[T any] struct {
	registry *Registry
	handle   Handle
	slot     *table.Slot
	tbl      *table.Table
	row      int
	change   uint64
}

// GetRef returns a safe reference to the entity's T, migrating the entity
// into the extended archetype first when it lacks T (as Get does).
func GetRef[T any](r *Registry, h Handle) (*Ref[T], error) {
	if _, err := Get[T](r, h); err != nil {
		return nil, err
	}
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return nil, StaleHandleError{Handle: h}
	}
	return &Ref[T]{
		registry: r,
		handle:   h,
		slot:     slot,
		tbl:      slot.Table(),
		row:      slot.Row(),
		change:   slot.Table().Change(),
	}, nil
}

// Handle returns the referenced entity's handle.
func (rf *Ref[T]) Handle() Handle {
	return rf.handle
}

// Get dereferences the reference. A stale reference (dead entity, or an
// entity moved to an archetype without T) is a fatal error: silent
// re-resolution would mask data corruption.
func (rf *Ref[T]) Get() *T {
	p, err := rf.TryGet()
	if err != nil {
		panic(bark.AddTrace(err))
	}
	return p
}

// TryGet dereferences the reference, reporting staleness as an error
// instead of panicking.
func (rf *Ref[T]) TryGet() (*T, error) {
	r := rf.registry
	r.structMu.RLock()
	defer r.structMu.RUnlock()

	if rf.tbl != rf.slot.Table() || rf.change != rf.tbl.Change() {
		slot, ok := r.shards.Resolve(rf.handle)
		if !ok {
			return nil, StaleHandleError{Handle: rf.handle}
		}
		rf.slot = slot
		rf.tbl = slot.Table()
		rf.row = slot.Row()
		rf.change = rf.tbl.Change()
	}
	p, ok := table.At[T](rf.tbl, rf.row)
	if !ok {
		return nil, ComponentNotFoundError{Name: reflect.TypeFor[T]().String()}
	}
	return p, nil
}
