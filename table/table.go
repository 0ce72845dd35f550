package table

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
	"github.com/TheBitDrifter/mask"
)

// Table stores the rows of every entity sharing one exact set of type ids.
// Component ids own a column each; tag ids contribute to the signature only.
// An implicit handle column carries the entity handle for each row. All
// columns, the handle column included, always have equal length.
//
// Structural mutations are arbitrated by the embedded RWMutex; the registry
// acquires it around erase and move. Erase requested while an iterator is
// registered on the table is deferred into the gap list and compacted when
// the last iterator leaves.
type Table struct {
	sync.RWMutex

	id     uint32
	schema *Schema

	sig     mask.Mask
	hash    uint64
	types   []TypeID // sorted, components and tags
	compIDs []TypeID // sorted, components only
	cols    []Column // parallel to compIDs
	colSlot [MaxTypes]int8

	handles *Segmented[Handle]

	change atomic.Uint64
	iters  atomic.Int32

	gapMu sync.Mutex
	gaps  []int
}

// NewTable builds an empty table for the given type-id set.
func NewTable(schema *Schema, id uint32, bits uint32, checks bool, ids []TypeID) *Table {
	sorted := make([]TypeID, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	t := &Table{
		id:      id,
		schema:  schema,
		types:   sorted,
		handles: NewSegmented[Handle](bits),
	}
	for i := range t.colSlot {
		t.colSlot[i] = -1
	}
	for _, tid := range sorted {
		t.sig.Mark(uint32(tid))
		t.hash += splitmix64(uint64(tid))
		if elem := schema.ElementOf(tid); elem != nil {
			t.colSlot[tid] = int8(len(t.cols))
			t.compIDs = append(t.compIDs, tid)
			t.cols = append(t.cols, elem.NewColumn(bits, checks))
		}
	}
	return t
}

// ID returns the table's creation-order id; moves lock tables in id order.
func (t *Table) ID() uint32 { return t.id }

// Schema returns the schema the table's ids belong to.
func (t *Table) Schema() *Schema { return t.schema }

// Sig returns the signature mask over all type ids.
func (t *Table) Sig() mask.Mask { return t.sig }

// Hash returns the commutative signature hash.
func (t *Table) Hash() uint64 { return t.hash }

// Types returns the sorted type-id set, components and tags.
func (t *Table) Types() []TypeID { return t.types }

// ComponentIDs returns the sorted component ids (those backed by columns).
func (t *Table) ComponentIDs() []TypeID { return t.compIDs }

// Contains reports whether the id (component or tag) is in the signature.
func (t *Table) Contains(id TypeID) bool {
	var m mask.Mask
	m.Mark(uint32(id))
	return t.sig.ContainsAll(m)
}

// HasComponent reports whether the id is a component of this table.
func (t *Table) HasComponent(id TypeID) bool {
	return id < MaxTypes && t.colSlot[id] >= 0
}

// Number is the physical row count, delayed gaps included.
func (t *Table) Number() int {
	return t.handles.Len()
}

// Size is the live row count: Number minus pending gaps.
func (t *Table) Size() int {
	t.gapMu.Lock()
	n := len(t.gaps)
	t.gapMu.Unlock()
	return t.handles.Len() - n
}

// Change returns the structural change counter. References into the table are
// only safe between equal observations of this counter.
func (t *Table) Change() uint64 {
	return t.change.Load()
}

// HandleAt returns the handle stored at a physical row.
func (t *Table) HandleAt(row int) Handle {
	return *t.handles.At(row)
}

// Column returns the column for a component id, or nil.
func (t *Table) Column(id TypeID) Column {
	if !t.HasComponent(id) {
		return nil
	}
	return t.cols[t.colSlot[id]]
}

// Insert appends one row. vals runs parallel to ComponentIDs; a nil entry
// appends the column's zero value. Returns the new row index.
func (t *Table) Insert(h Handle, vals []any) int {
	for i, col := range t.cols {
		if i < len(vals) && vals[i] != nil {
			col.Append(vals[i])
		} else {
			col.AppendDefault()
		}
	}
	row := t.handles.Append(h)
	return row
}

// Put overwrites the value of one component at a row.
func (t *Table) Put(row int, id TypeID, v any) {
	t.cols[t.colSlot[id]].Set(row, v)
}

// Value returns the value of one component at a row.
func (t *Table) Value(row int, id TypeID) any {
	return t.cols[t.colSlot[id]].Value(row)
}

// Erase removes a row. While iterators are registered the erase is deferred:
// the row joins the gap list, its handle is invalidated so cursors skip it,
// and the columns stay physically untouched until FillGaps. Otherwise the row
// is swap-erased immediately and the handle that moved into its place is
// returned so the caller can re-map that entity's slot.
func (t *Table) Erase(row int) (moved Handle, deferred bool) {
	t.gapMu.Lock()
	if t.iters.Load() > 0 || len(t.gaps) > 0 {
		t.gaps = append(t.gaps, row)
		t.gapMu.Unlock()
		*t.handles.At(row) = InvalidHandle
		t.change.Add(1)
		return InvalidHandle, true
	}
	t.gapMu.Unlock()
	return t.eraseNow(row), false
}

func (t *Table) eraseNow(row int) Handle {
	last := t.handles.Len() - 1
	moved := InvalidHandle
	if row < last {
		moved = *t.handles.At(last)
	}
	for _, col := range t.cols {
		col.EraseSwap(row)
	}
	t.handles.Erase(row)
	t.change.Add(1)
	return moved
}

// MoveFrom migrates the row src/srcRow into this table: shared components are
// copied, components missing in src get zero values, and the source row is
// erased (or gapped when src is under iteration). The handle that swapped
// into srcRow, if any, is returned for slot re-mapping.
func (t *Table) MoveFrom(src *Table, srcRow int) (newRow int, moved Handle, deferred bool) {
	h := src.HandleAt(srcRow)
	for i, id := range t.compIDs {
		if srcCol := src.Column(id); srcCol != nil {
			t.cols[i].CopyFrom(srcCol, srcRow)
		} else {
			t.cols[i].AppendDefault()
		}
	}
	newRow = t.handles.Append(h)
	moved, deferred = src.Erase(srcRow)
	t.change.Add(1)
	return newRow, moved, deferred
}

// EnterIter registers an active iterator.
func (t *Table) EnterIter() {
	t.iters.Add(1)
}

// LeaveIter deregisters an iterator and reports whether the caller is the
// last one out with gaps pending compaction.
func (t *Table) LeaveIter() bool {
	if t.iters.Add(-1) != 0 {
		return false
	}
	t.gapMu.Lock()
	pending := len(t.gaps) > 0
	t.gapMu.Unlock()
	return pending
}

// Iterating reports whether any iterator is registered on the table.
func (t *Table) Iterating() bool {
	return t.iters.Load() > 0
}

// FillGaps collapses deferred erases, highest row first, so the row swapped
// into each freed row is never itself a pending gap. A surviving row can move
// more than once. repoint is invoked for every handle swapped into a freed
// row.
func (t *Table) FillGaps(repoint func(moved Handle, newRow int)) {
	t.gapMu.Lock()
	gaps := t.gaps
	t.gaps = nil
	t.gapMu.Unlock()
	if len(gaps) == 0 {
		return
	}
	sort.Sort(sort.Reverse(sort.IntSlice(gaps)))
	for _, row := range gaps {
		if moved := t.eraseNow(row); moved.IsValid() && repoint != nil {
			repoint(moved, row)
		}
	}
}

// Clear drops every row, keeping one segment per column.
func (t *Table) Clear() {
	for _, col := range t.cols {
		col.Clear()
	}
	t.handles.Clear()
	t.gapMu.Lock()
	t.gaps = nil
	t.gapMu.Unlock()
	t.change.Add(1)
}

// RowBytes returns the storage footprint of one row, handle included.
func (t *Table) RowBytes() uintptr {
	total := uintptr(8) // handle column
	for _, col := range t.cols {
		total += col.ElemSize()
	}
	return total
}

// JSONValues returns the row's component values in column order, encoded per
// the snapshot contract.
func (t *Table) JSONValues(row int) []any {
	vals := make([]any, len(t.cols))
	for i, col := range t.cols {
		vals[i] = col.JSONValue(row)
	}
	return vals
}

// Validate checks the table's own invariants: equal column lengths and a
// signature hash consistent with the type set.
func (t *Table) Validate() error {
	n := t.handles.Len()
	for _, id := range t.compIDs {
		if l := t.cols[t.colSlot[id]].Len(); l != n {
			return fmt.Errorf("column %s length %d, handle column %d", t.schema.NameOf(id), l, n)
		}
	}
	var hash uint64
	for _, id := range t.types {
		hash += splitmix64(uint64(id))
	}
	if hash != t.hash {
		return fmt.Errorf("signature hash drifted: %d != %d", t.hash, hash)
	}
	return nil
}

// At returns a typed pointer to the component T at a physical row, or false
// when the table does not carry T.
func At[T any](t *Table, row int) (*T, bool) {
	id, ok := t.schema.IDFor(reflect.TypeFor[T]())
	if !ok || !t.HasComponent(id) {
		return nil, false
	}
	return t.cols[t.colSlot[id]].(*Col[T]).At(row), true
}

// Accessor provides typed access to one component type across tables.
type Accessor[T any] struct {
	elem ElementType
}

// FactoryNewAccessor creates an accessor bound to a component identity.
func FactoryNewAccessor[T any](elem ElementType) Accessor[T] {
	return Accessor[T]{elem: elem}
}

// Check reports whether the table carries the accessor's component.
func (a Accessor[T]) Check(t *Table) bool {
	id, ok := t.schema.IDFor(a.elem.Type())
	return ok && t.HasComponent(id)
}

// Get returns a typed pointer to the component at a row. The component must
// be present; use Check first when unsure.
func (a Accessor[T]) Get(row int, t *Table) *T {
	p, ok := At[T](t, row)
	if !ok {
		panic(bark.AddTrace(fmt.Errorf("component %s not in table %d", a.elem.Name(), t.id)))
	}
	return p
}

// splitmix64 mixes one type id into the commutative signature hash. Summing
// the mixed ids keeps the hash permutation-invariant.
func splitmix64(x uint64) uint64 {
	x += 0x9E3779B97F4A7C15
	x = (x ^ (x >> 30)) * 0xBF58476D1CE4E5B9
	x = (x ^ (x >> 27)) * 0x94D049BB133111EB
	return x ^ (x >> 31)
}
