package table

import (
	"sync"
	"sync/atomic"
)

// DefaultInitialSlots pre-links this many free slots per shard so early
// inserts run without allocation.
const DefaultInitialSlots = 256

const freeListEnd = -1

// bumpVersion advances a slot generation, skipping zero on wrap so that no
// issued handle ever matches the invalid zero bit pattern.
func bumpVersion(v uint32) uint32 {
	v = (v + 1) & handleVersionMask
	if v == 0 {
		v = 1
	}
	return v
}

// Slot is one cell of a slot map shard. It carries the current location of
// its entity and a version counter; a handle resolves only while its version
// matches. Freed slots chain into the shard free list through freeNext.
// Slots are never deallocated, so pointers to them stay valid for the life of
// the shard.
type Slot struct {
	version  uint32
	tbl      *Table
	row      uint32
	freeNext int32
}

// Table returns the table the slot currently points into, nil when free.
func (s *Slot) Table() *Table { return s.tbl }

// Row returns the row inside the slot's table.
func (s *Slot) Row() int { return int(s.row) }

// Version returns the slot's current generation.
func (s *Slot) Version() uint32 { return s.version }

// SetLocation re-points the slot at a new (table, row) pair.
func (s *Slot) SetLocation(tbl *Table, row int) {
	s.tbl = tbl
	s.row = uint32(row)
}

// SetRow re-points the slot at a new row in its current table.
func (s *Slot) SetRow(row int) {
	s.row = uint32(row)
}

// SlotMap is one shard of the generational slot map. The embedded mutex is
// the shard's arbitration point; callers lock around multi-step sequences.
type SlotMap struct {
	sync.Mutex

	id        uint8
	slots     *Segmented[Slot]
	firstFree int32
	size      int
}

// NewSlotMap creates a shard with prelink slots chained into the free list.
func NewSlotMap(id uint8, bits uint32, prelink int) *SlotMap {
	m := &SlotMap{
		id:        id,
		slots:     NewSegmented[Slot](bits),
		firstFree: freeListEnd,
	}
	for i := 0; i < prelink; i++ {
		next := int32(i + 1)
		if i == prelink-1 {
			next = freeListEnd
		}
		// Versions start at 1: the zero bit pattern stays the invalid handle.
		m.slots.Append(Slot{version: 1, freeNext: next})
	}
	if prelink > 0 {
		m.firstFree = 0
	}
	return m
}

// Insert claims a slot for (tbl, row) and returns its handle. A recycled slot
// keeps its bumped version, so the new handle never collides with one issued
// before the slot was freed.
func (m *SlotMap) Insert(tbl *Table, row int) (Handle, *Slot) {
	var index int32
	var s *Slot
	if m.firstFree != freeListEnd {
		index = m.firstFree
		s = m.slots.At(int(index))
		m.firstFree = s.freeNext
		s.freeNext = freeListEnd
	} else {
		index = int32(m.slots.Append(Slot{version: 1, freeNext: freeListEnd}))
		s = m.slots.At(int(index))
	}
	s.tbl = tbl
	s.row = uint32(row)
	m.size++
	return NewHandle(uint32(index), s.version, m.id), s
}

// Resolve indexes by the handle and checks liveness: the slot is returned
// only while its version matches the handle's.
func (m *SlotMap) Resolve(h Handle) (*Slot, bool) {
	i := int(h.Index())
	if i >= m.slots.Len() {
		return nil, false
	}
	s := m.slots.At(i)
	if s.version != h.Version() || s.tbl == nil {
		return nil, false
	}
	return s, true
}

// Erase frees the handle's slot: the version bump invalidates every issued
// handle and the slot rejoins the free list.
func (m *SlotMap) Erase(h Handle) bool {
	s, ok := m.Resolve(h)
	if !ok {
		return false
	}
	s.version = bumpVersion(s.version)
	s.tbl = nil
	s.row = 0
	s.freeNext = m.firstFree
	m.firstFree = int32(h.Index())
	m.size--
	return true
}

// Size returns the number of live slots in the shard.
func (m *SlotMap) Size() int {
	return m.size
}

// Clear frees every live slot and rebuilds the free list over all slots.
func (m *SlotMap) Clear() {
	n := m.slots.Len()
	for i := 0; i < n; i++ {
		s := m.slots.At(i)
		if s.tbl != nil {
			s.version = bumpVersion(s.version)
			s.tbl = nil
			s.row = 0
		}
		if i < n-1 {
			s.freeNext = int32(i + 1)
		} else {
			s.freeNext = freeListEnd
		}
	}
	if n > 0 {
		m.firstFree = 0
	} else {
		m.firstFree = freeListEnd
	}
	m.size = 0
}

// EachLive visits every occupied slot with its handle.
func (m *SlotMap) EachLive(fn func(h Handle, s *Slot)) {
	n := m.slots.Len()
	for i := 0; i < n; i++ {
		s := m.slots.At(i)
		if s.tbl != nil {
			fn(NewHandle(uint32(i), s.version, m.id), s)
		}
	}
}

// Shards spreads handles over a power-of-two fan-out of slot map shards. An
// atomic cursor cycles inserts across shards to balance allocation.
type Shards struct {
	maps   []*SlotMap
	cursor atomic.Uint32
}

// NewShards creates k shards. k must be a power of two.
func NewShards(k int, bits uint32, prelink int) *Shards {
	if k < 1 || k&(k-1) != 0 {
		k = 1
	}
	s := &Shards{maps: make([]*SlotMap, k)}
	for i := range s.maps {
		s.maps[i] = NewSlotMap(uint8(i), bits, prelink)
	}
	return s
}

// Count returns the shard fan-out.
func (s *Shards) Count() int {
	return len(s.maps)
}

// Next returns the shard the next insert should allocate from.
func (s *Shards) Next() *SlotMap {
	return s.maps[int(s.cursor.Add(1)-1)&(len(s.maps)-1)]
}

// Map routes a handle to its owning shard.
func (s *Shards) Map(h Handle) (*SlotMap, bool) {
	i := int(h.Shard())
	if i >= len(s.maps) {
		return nil, false
	}
	return s.maps[i], true
}

// Resolve routes and resolves in one step.
func (s *Shards) Resolve(h Handle) (*Slot, bool) {
	if !h.IsValid() {
		return nil, false
	}
	m, ok := s.Map(h)
	if !ok {
		return nil, false
	}
	return m.Resolve(h)
}

// Size sums live slots over all shards.
func (s *Shards) Size() int {
	total := 0
	for _, m := range s.maps {
		total += m.Size()
	}
	return total
}

// Clear clears every shard.
func (s *Shards) Clear() {
	for _, m := range s.maps {
		m.Clear()
	}
}

// EachLive visits every occupied slot over all shards.
func (s *Shards) EachLive(fn func(h Handle, sl *Slot)) {
	for _, m := range s.maps {
		m.EachLive(fn)
	}
}
