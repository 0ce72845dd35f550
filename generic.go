package depot

import "github.com/TheBitDrifter/depot/table"

// Get returns a pointer to the entity's component of type T. When the
// entity's archetype lacks T, the entity migrates into the neighbour
// archetype extending its signature with T (zero value) and the pointer into
// the new row is returned. The pointer stays valid until the next structural
// mutation of the archetype; see Ref for a reference that survives them.
func Get[T any](r *Registry, h Handle) (*T, error) {
	r.structMu.RLock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		r.structMu.RUnlock()
		return nil, StaleHandleError{Handle: h}
	}
	if p, present := table.At[T](slot.Table(), slot.Row()); present {
		r.structMu.RUnlock()
		return p, nil
	}
	r.structMu.RUnlock()

	r.structMu.Lock()
	defer r.structMu.Unlock()
	slot, ok = r.shards.Resolve(h)
	if !ok {
		return nil, StaleHandleError{Handle: h}
	}
	if err := r.ensureLocked(slot, []Component{table.FactoryNewElementType[T]()}, nil); err != nil {
		return nil, err
	}
	p, _ := table.At[T](slot.Table(), slot.Row())
	return p, nil
}

// Put writes one typed component value, migrating the entity first when its
// archetype lacks T.
func Put[T any](r *Registry, h Handle, v T) error {
	return r.Put(h, ComponentValue{comp: table.FactoryNewElementType[T](), value: v})
}

// Has reports whether the entity carries a component of type T.
func Has[T any](r *Registry, h Handle) bool {
	return r.Has(h, table.FactoryNewElementType[T]())
}

// EraseComponent removes the component of type T from the entity.
func EraseComponent[T any](r *Registry, h Handle) error {
	return r.EraseComponents(h, table.FactoryNewElementType[T]())
}
