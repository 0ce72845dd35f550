package depot

import "github.com/TheBitDrifter/depot/table"

// Component represents a data attribute/state that can be attached to
// entities. Components can be used to create queries and views.
type Component = table.ElementType

// Handle is the opaque stable identity of an entity.
type Handle = table.Handle

// InvalidHandle never resolves to an entity.
const InvalidHandle = table.InvalidHandle

// TypeID identifies one component type or tag within a registry.
type TypeID = table.TypeID

// ComponentValue pairs a component identity with an initial value for Insert
// and Put.
type ComponentValue struct {
	comp  Component
	value any
}

// Tag is a storage-free marker. Tags share the type-id namespace with
// components: they contribute to archetype identity and view filtering but
// carry no column.
type Tag struct {
	name string
}

// Name returns the tag's registered name.
func (t Tag) Name() string {
	return t.name
}

// FactoryNewTag creates a tag identity. Tags with equal names are the same
// tag within a registry.
func FactoryNewTag(name string) Tag {
	return Tag{name: name}
}
