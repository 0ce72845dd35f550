package depot

import "github.com/TheBitDrifter/depot/table"

// AccessibleComponent extends a base Component with table-based accessibility.
// It provides methods to retrieve component values using different access
// patterns.
type AccessibleComponent[T any] struct {
	Component
	table.Accessor[T] // concrete.
}

// With pairs the component with an initial value for Insert and Put.
func (c AccessibleComponent[T]) With(v T) ComponentValue {
	return ComponentValue{comp: c.Component, value: v}
}

// GetFromCursor retrieves the component value for the entity at the cursor
// position.
func (c AccessibleComponent[T]) GetFromCursor(cursor *Cursor) *T {
	return c.Get(
		cursor.entityIndex-1,
		cursor.currentArchetype.tbl,
	)
}

// GetFromCursorSafe safely retrieves a component value, checking if the
// component exists. Returns a boolean indicating success and the component
// pointer if found.
func (c AccessibleComponent[T]) GetFromCursorSafe(cursor *Cursor) (bool, *T) {
	ok := c.Accessor.Check(cursor.currentArchetype.tbl)
	if ok {
		return true, c.GetFromCursor(cursor)
	}
	return false, nil
}

// CheckCursor determines if the component exists in the archetype at the
// cursor position.
func (c AccessibleComponent[T]) CheckCursor(cursor *Cursor) bool {
	return c.Accessor.Check(cursor.currentArchetype.tbl)
}

// GetFromHandle retrieves the component value for the given entity without
// migrating it. The second result is false when the handle is dead or the
// entity lacks the component.
func (c AccessibleComponent[T]) GetFromHandle(r *Registry, h Handle) (*T, bool) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return nil, false
	}
	return table.At[T](slot.Table(), slot.Row())
}
