/*
Package depot provides an archetype-backed entity registry for games and
simulations.

Depot stores entities column-wise: every unique combination of component
types and tags owns one archetype table, and entities sharing that signature
sit in parallel columns for cache-friendly iteration. Stable generational
handles survive structural moves, and views filter archetypes by required
components and positive or negative tags.

Core Concepts:

  - Handle: a stable, copyable identity for an entity.
  - Component: a plain data type attached to entities.
  - Tag: a storage-free marker that shapes archetype identity and filtering.
  - Archetype: the shared storage for all entities with one exact signature.
  - View: a filtered, lazily evaluated iteration over matching archetypes.

Basic Usage:

	registry := depot.Factory.NewRegistry()

	// Define components
	position := depot.FactoryNewComponent[Position]()
	velocity := depot.FactoryNewComponent[Velocity]()

	// Create an entity
	h, _ := registry.Insert(
		position.With(Position{X: 1, Y: 2}),
		velocity.With(Velocity{X: 0.5}),
	)

	// Iterate entities that have both components
	cursor := registry.GetView([]depot.Component{position, velocity}, nil, nil)
	for cursor.Next() {
		pos := position.GetFromCursor(cursor)
		vel := velocity.GetFromCursor(cursor)
		pos.X += vel.X
		pos.Y += vel.Y
	}

	_ = h

Deleting entities while a view iterates is safe: the registry defers the
physical compaction until the iteration over the affected archetype ends, so
no row shifts under the cursor.

Depot is the underlying entity store for the Bappa Framework but also works as
a standalone library.
*/
package depot
