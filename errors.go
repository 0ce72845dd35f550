package depot

import (
	"fmt"

	"github.com/TheBitDrifter/depot/table"
)

// StaleHandleError re-exports the substrate's stale-handle error: the
// handle's version no longer matches its slot.
type StaleHandleError = table.StaleHandleError

// SchemaFullError re-exports the substrate's id-space exhaustion error.
type SchemaFullError = table.SchemaFullError

// EmptyInsertError reports an Insert with no component arguments.
type EmptyInsertError struct{}

func (e EmptyInsertError) Error() string {
	return "insert requires at least one component"
}

// ComponentExistsError reports a component named twice in one operation.
type ComponentExistsError struct {
	Component Component
}

func (e ComponentExistsError) Error() string {
	return fmt.Sprintf("component listed more than once: %s", e.Component.Name())
}

// ComponentNotFoundError reports an operation that requires a component the
// entity does not have.
type ComponentNotFoundError struct {
	Name string
}

func (e ComponentNotFoundError) Error() string {
	return fmt.Sprintf("component does not exist on entity: %s", e.Name)
}

// InvalidArgError reports an argument type an operation cannot accept.
type InvalidArgError struct {
	Item any
}

func (e InvalidArgError) Error() string {
	return fmt.Sprintf("invalid argument type: %T. Only Component, ComponentValue, or Tag are allowed", e.Item)
}
