package depot

import "github.com/TheBitDrifter/depot/table"

// Config holds the storage configuration for a registry.
type Config struct {
	// Shards is the slot map fan-out. 1 keeps the registry sequential; 16 is
	// the parallel-mode default. Must be a power of two.
	Shards int
	// SegmentBits sizes storage segments at 1<<SegmentBits elements.
	SegmentBits uint32
	// InitialSlots pre-links this many free slots per shard.
	InitialSlots int
	// AccessChecks enables the debug column arbitration asserts.
	AccessChecks bool
	// ViewCacheCapacity bounds the cached view match lists.
	ViewCacheCapacity int
}

// DefaultConfig is the sequential-mode configuration.
var DefaultConfig = Config{
	Shards:            1,
	SegmentBits:       table.DefaultSegmentBits,
	InitialSlots:      table.DefaultInitialSlots,
	ViewCacheCapacity: 64,
}

// ParallelConfig is the parallel-mode configuration: a 16-way slot map
// fan-out spreads allocation across shards.
var ParallelConfig = Config{
	Shards:            16,
	SegmentBits:       table.DefaultSegmentBits,
	InitialSlots:      table.DefaultInitialSlots,
	ViewCacheCapacity: 64,
}

func (c Config) normalized() Config {
	if c.Shards < 1 || c.Shards&(c.Shards-1) != 0 {
		c.Shards = 1
	}
	if c.SegmentBits < 1 {
		c.SegmentBits = table.DefaultSegmentBits
	}
	if c.InitialSlots < 0 {
		c.InitialSlots = 0
	}
	if c.ViewCacheCapacity < 1 {
		c.ViewCacheCapacity = DefaultConfig.ViewCacheCapacity
	}
	return c
}
