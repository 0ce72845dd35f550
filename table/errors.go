package table

import "fmt"

// SchemaFullError reports that the schema ran out of type ids.
type SchemaFullError struct {
	Capacity int
}

func (e SchemaFullError) Error() string {
	return fmt.Sprintf("schema at maximum capacity (%d type ids)", e.Capacity)
}

// StaleHandleError reports a handle whose version no longer matches its slot.
type StaleHandleError struct {
	Handle Handle
}

func (e StaleHandleError) Error() string {
	return fmt.Sprintf("stale handle: index %d version %d shard %d",
		e.Handle.Index(), e.Handle.Version(), e.Handle.Shard())
}

// RowRangeError reports a row index outside a table's physical length.
type RowRangeError struct {
	Row, Number int
}

func (e RowRangeError) Error() string {
	return fmt.Sprintf("row %d out of range (number %d)", e.Row, e.Number)
}
