package depot

import "iter"

// Cursor provides iteration over filtered entities in a registry.
//
// Initialize snapshots the matching archetypes and their physical lengths,
// so rows appended during the iteration are not visited. Rows erased during
// the iteration become gaps: their handle turns invalid, the cursor skips
// them, and the registry compacts the archetype when its last cursor leaves.
type Cursor struct {
	query    QueryNode
	registry *Registry
	cacheKey string

	currentArchetype *ArchetypeImpl
	storageIndex     int
	entityIndex      int
	remaining        int

	initialized     bool
	matchedStorages []matchedArchetype
}

// matchedArchetype pins the length of one matching archetype at begin time.
type matchedArchetype struct {
	arch *ArchetypeImpl
	snap int
}

// newCursor creates a new cursor for the given query and registry.
func newCursor(query QueryNode, registry *Registry) *Cursor {
	return &Cursor{
		query:    query,
		registry: registry,
	}
}

// Next advances to the next live entity and returns whether one exists. When
// the iteration ends the cursor resets and can be reused.
func (c *Cursor) Next() bool {
	if !c.initialized {
		c.Initialize()
	}
	for c.storageIndex < len(c.matchedStorages) {
		cur := c.matchedStorages[c.storageIndex]
		tbl := cur.arch.tbl
		limit := min(cur.snap, tbl.Number())
		if c.entityIndex < limit {
			c.entityIndex++
			if !tbl.HandleAt(c.entityIndex - 1).IsValid() {
				continue // delayed gap
			}
			return true
		}
		c.registry.finishTable(tbl)
		c.storageIndex++
		c.entityIndex = 0
		if c.storageIndex < len(c.matchedStorages) {
			next := c.matchedStorages[c.storageIndex]
			c.currentArchetype = next.arch
			c.remaining = next.snap
			next.arch.tbl.EnterIter()
		}
	}
	c.reset()
	return false
}

// Handles returns an iterator sequence over the handles matching the query.
func (c *Cursor) Handles() iter.Seq[Handle] {
	return func(yield func(Handle) bool) {
		for c.Next() {
			if !yield(c.CurrentHandle()) {
				c.Reset()
				return
			}
		}
	}
}

// Initialize sets up the cursor by finding matching archetypes.
func (c *Cursor) Initialize() {
	if c.initialized {
		return
	}
	r := c.registry

	r.structMu.RLock()
	matches := r.matchArchetypes(c.query, c.cacheKey)
	c.matchedStorages = c.matchedStorages[:0]
	for _, arch := range matches {
		if arch.tbl.Size() > 0 {
			c.matchedStorages = append(c.matchedStorages, matchedArchetype{
				arch: arch,
				snap: arch.tbl.Number(),
			})
		}
	}
	r.structMu.RUnlock()

	c.storageIndex = 0
	c.entityIndex = 0
	if len(c.matchedStorages) > 0 {
		first := c.matchedStorages[0]
		c.currentArchetype = first.arch
		c.remaining = first.snap
		first.arch.tbl.EnterIter()
	}
	c.initialized = true
}

// Reset abandons an in-flight iteration, releasing the current archetype.
func (c *Cursor) Reset() {
	if c.initialized && c.storageIndex < len(c.matchedStorages) {
		c.registry.finishTable(c.matchedStorages[c.storageIndex].arch.tbl)
	}
	c.reset()
}

func (c *Cursor) reset() {
	c.storageIndex = 0
	c.entityIndex = 0
	c.remaining = 0
	c.matchedStorages = nil
	c.currentArchetype = nil
	c.initialized = false
}

// CurrentHandle returns the handle at the current cursor position.
func (c *Cursor) CurrentHandle() Handle {
	return c.currentArchetype.tbl.HandleAt(c.entityIndex - 1)
}

// HandleAtOffset returns the handle at the specified offset from the current
// cursor position within the current archetype. Offsets past the snapshot
// return InvalidHandle.
func (c *Cursor) HandleAtOffset(offset int) Handle {
	row := c.entityIndex - 1 + offset
	tbl := c.currentArchetype.tbl
	if row < 0 || row >= tbl.Number() || row >= c.remaining {
		return InvalidHandle
	}
	return tbl.HandleAt(row)
}

// EntityIndex returns the current entity index within the current archetype.
func (c *Cursor) EntityIndex() int {
	return c.entityIndex
}

// RemainingInArchetype returns the number of snapshot rows left in the
// current archetype.
func (c *Cursor) RemainingInArchetype() int {
	return c.remaining - c.entityIndex
}

// TotalMatched returns the total number of live entities matching the query.
func (c *Cursor) TotalMatched() int {
	if !c.initialized {
		c.Initialize()
	}
	total := 0
	for _, m := range c.matchedStorages {
		total += m.arch.tbl.Size()
	}
	c.Reset()
	return total
}
