package table

import (
	"sync"
	"sync/atomic"
)

// DefaultSegmentBits sizes segments at 64 elements, matching the block size
// the storage layer is tuned for.
const DefaultSegmentBits = 6

// Segmented is a grow-only indexed container of T. Capacity grows by whole
// segments of 1<<bits elements; element i lives at segment i>>bits, offset
// i&(segmentSize-1). Existing elements are never relocated on growth, so a
// pointer obtained from At stays valid while other goroutines append.
//
// Append is safe against concurrent readers: the segment directory is
// published through an atomic pointer and old readers keep their snapshot.
// Append, Pop, Erase, and Swap must not race each other; the owning table
// serialises them through its write arbitration.
type Segmented[T any] struct {
	bits uint32

	dir atomic.Pointer[[][]T]
	mu  sync.Mutex

	// reserved runs ahead of committed while an append is in flight.
	reserved  atomic.Int64
	committed atomic.Int64
}

// NewSegmented creates a container with one pre-allocated segment.
func NewSegmented[T any](bits uint32) *Segmented[T] {
	if bits < 1 {
		bits = DefaultSegmentBits
	}
	s := &Segmented[T]{bits: bits}
	dir := [][]T{make([]T, 1<<bits)}
	s.dir.Store(&dir)
	return s
}

// SegmentBits returns the configured segment size exponent.
func (s *Segmented[T]) SegmentBits() uint32 {
	return s.bits
}

// Len returns the number of committed elements.
func (s *Segmented[T]) Len() int {
	return int(s.committed.Load())
}

// At returns a pointer to element i. Precondition: i < Len (or i is a row the
// caller knows to be physically present, e.g. a delayed gap).
func (s *Segmented[T]) At(i int) *T {
	dir := *s.dir.Load()
	return &dir[i>>s.bits][i&(1<<s.bits-1)]
}

// Append adds v and returns its index.
func (s *Segmented[T]) Append(v T) int {
	i := int(s.reserved.Add(1) - 1)
	s.ensure(i)
	*s.At(i) = v
	s.committed.Add(1)
	return i
}

// AppendDefault adds a zero value and returns its index.
func (s *Segmented[T]) AppendDefault() int {
	var zero T
	return s.Append(zero)
}

// Pop removes the last element. When the last segment empties and is not the
// sole segment, it is released. Precondition: Len > 0.
func (s *Segmented[T]) Pop() {
	n := int(s.committed.Load()) - 1
	var zero T
	*s.At(n) = zero
	s.committed.Store(int64(n))
	s.reserved.Store(int64(n))

	s.mu.Lock()
	dir := *s.dir.Load()
	if len(dir) > 1 && n <= (len(dir)-1)<<s.bits {
		trimmed := make([][]T, len(dir)-1)
		copy(trimmed, dir[:len(dir)-1])
		s.dir.Store(&trimmed)
	}
	s.mu.Unlock()
}

// Erase moves the last element over position i (when i is not last) and pops.
// It returns the index the moved element previously occupied, letting the
// caller re-map whatever pointed at the moved row.
func (s *Segmented[T]) Erase(i int) int {
	last := s.Len() - 1
	if i < last {
		*s.At(i) = *s.At(last)
	}
	s.Pop()
	return last
}

// Swap exchanges elements i and j.
func (s *Segmented[T]) Swap(i, j int) {
	if i == j {
		return
	}
	pi, pj := s.At(i), s.At(j)
	*pi, *pj = *pj, *pi
}

// Clear drops all elements, retaining a single fresh segment.
func (s *Segmented[T]) Clear() {
	s.mu.Lock()
	dir := [][]T{make([]T, 1<<s.bits)}
	s.dir.Store(&dir)
	s.committed.Store(0)
	s.reserved.Store(0)
	s.mu.Unlock()
}

// ensure grows the segment directory until index i is addressable. The
// directory itself is copied on growth; readers holding the previous snapshot
// keep valid element pointers because segments are shared between snapshots.
func (s *Segmented[T]) ensure(i int) {
	seg := i >> s.bits
	if dir := *s.dir.Load(); seg < len(dir) {
		return
	}
	s.mu.Lock()
	dir := *s.dir.Load()
	for seg >= len(dir) {
		grown := make([][]T, len(dir)+1)
		copy(grown, dir)
		grown[len(dir)] = make([]T, 1<<s.bits)
		dir = grown
	}
	s.dir.Store(&dir)
	s.mu.Unlock()
}
