package table

import (
	"fmt"
	"reflect"

	"github.com/TheBitDrifter/bark"
)

// Column is the type-erased capability set of one component column. The table
// and registry never inspect the concrete element type; values cross type
// boundaries via CopyFrom against a column of the identical type.
type Column interface {
	Append(v any) int
	AppendDefault() int
	Pop()
	// EraseSwap moves the last row over row i and pops, reporting whether a
	// swap occurred (false when i was the last row).
	EraseSwap(i int) bool
	Swap(i, j int)
	// CopyFrom appends row of src onto this column. src must hold the same
	// element type.
	CopyFrom(src Column, row int) int
	CloneEmpty() Column
	Len() int
	ElemSize() uintptr
	Type() reflect.Type
	Value(i int) any
	Set(i int, v any)
	// JSONValue returns the row in the snapshot's primitive encoding.
	JSONValue(i int) any
	Clear()
}

// Col is the concrete column for element type T, backed by a segmented vector.
type Col[T any] struct {
	vec   *Segmented[T]
	guard accessGuard
}

// NewCol creates an empty column. checks enables the debug concurrency guard.
func NewCol[T any](bits uint32, checks bool) *Col[T] {
	return &Col[T]{vec: NewSegmented[T](bits), guard: accessGuard{enabled: checks}}
}

// At returns a pointer to row i. This is the typed fast path used by
// accessors and iterators.
func (c *Col[T]) At(i int) *T {
	return c.vec.At(i)
}

func (c *Col[T]) Append(v any) int {
	tv, ok := v.(T)
	if !ok {
		panic(bark.AddTrace(fmt.Errorf("column %v: append of %T", c.Type(), v)))
	}
	c.guard.beginWrite()
	defer c.guard.endWrite()
	return c.vec.Append(tv)
}

func (c *Col[T]) AppendDefault() int {
	c.guard.beginWrite()
	defer c.guard.endWrite()
	return c.vec.AppendDefault()
}

func (c *Col[T]) Pop() {
	c.guard.beginWrite()
	defer c.guard.endWrite()
	c.vec.Pop()
}

func (c *Col[T]) EraseSwap(i int) bool {
	c.guard.beginWrite()
	defer c.guard.endWrite()
	last := c.vec.Len() - 1
	c.vec.Erase(i)
	return i < last
}

func (c *Col[T]) Swap(i, j int) {
	c.guard.beginWrite()
	defer c.guard.endWrite()
	c.vec.Swap(i, j)
}

func (c *Col[T]) CopyFrom(src Column, row int) int {
	sc, ok := src.(*Col[T])
	if !ok {
		panic(bark.AddTrace(fmt.Errorf("column %v: copy from column %v", c.Type(), src.Type())))
	}
	c.guard.beginWrite()
	defer c.guard.endWrite()
	return c.vec.Append(*sc.At(row))
}

func (c *Col[T]) CloneEmpty() Column {
	return NewCol[T](c.vec.SegmentBits(), c.guard.enabled)
}

func (c *Col[T]) Len() int {
	return c.vec.Len()
}

func (c *Col[T]) ElemSize() uintptr {
	return reflect.TypeFor[T]().Size()
}

func (c *Col[T]) Type() reflect.Type {
	return reflect.TypeFor[T]()
}

func (c *Col[T]) Value(i int) any {
	c.guard.beginRead()
	defer c.guard.endRead()
	return *c.vec.At(i)
}

func (c *Col[T]) Set(i int, v any) {
	tv, ok := v.(T)
	if !ok {
		panic(bark.AddTrace(fmt.Errorf("column %v: set of %T", c.Type(), v)))
	}
	c.guard.beginWrite()
	defer c.guard.endWrite()
	*c.vec.At(i) = tv
}

func (c *Col[T]) JSONValue(i int) any {
	return jsonPrimitive(c.Value(i))
}

func (c *Col[T]) Clear() {
	c.guard.beginWrite()
	defer c.guard.endWrite()
	c.vec.Clear()
}

// jsonPrimitive maps a component value onto the snapshot encoding: numbers
// stay numbers, strings stay strings, anything non-primitive degrades to the
// "<unknown>" literal.
func jsonPrimitive(v any) any {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int()
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		return rv.Uint()
	case reflect.Float32, reflect.Float64:
		return rv.Float()
	case reflect.Bool:
		return rv.Bool()
	case reflect.String:
		return rv.String()
	default:
		return "<unknown>"
	}
}
