package depot

import "github.com/TheBitDrifter/depot/table"

// factory implements the factory pattern for depot components.
type factory struct{}

// Factory is the global factory instance for creating depot components.
var Factory factory

// NewRegistry creates a Registry. With no argument the sequential
// DefaultConfig applies; pass ParallelConfig (or a custom Config) for the
// sharded parallel mode.
func (f factory) NewRegistry(cfgs ...Config) *Registry {
	cfg := DefaultConfig
	if len(cfgs) > 0 {
		cfg = cfgs[0]
	}
	return newRegistry(cfg)
}

// NewQuery creates a new Query instance.
func (f factory) NewQuery() Query {
	return newQuery()
}

// NewCursor creates a new Cursor with the specified query and registry.
func (f factory) NewCursor(query QueryNode, registry *Registry) *Cursor {
	return newCursor(query, registry)
}

// FactoryNewComponent creates a new AccessibleComponent for type T.
func FactoryNewComponent[T any]() AccessibleComponent[T] {
	iden := table.FactoryNewElementType[T]()
	return AccessibleComponent[T]{
		Component: iden,
		Accessor:  table.FactoryNewAccessor[T](iden),
	}
}
