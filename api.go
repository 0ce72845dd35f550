package depot

import "iter"

type iCursor interface {
	Handles() iter.Seq[Handle]
	Next() bool
}

var _ iCursor = &Cursor{}

// Cache is a capacity-bounded string-keyed lookup.
type Cache[T any] interface {
	GetIndex(string) (int, bool)
	GetItem(int) *T
	GetItem32(uint32) *T
	Register(string, T) (int, error)
}
