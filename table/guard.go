package table

import (
	"errors"
	"sync/atomic"

	"github.com/TheBitDrifter/bark"
)

// accessGuard is the debug-mode arbitration check for a single column. When
// enabled it asserts that no two writers, and no writer and reader, touch the
// column at the same time. Release configurations leave it disabled and every
// method collapses to a branch.
type accessGuard struct {
	enabled bool
	writers atomic.Int32
	readers atomic.Int32
}

func (g *accessGuard) beginWrite() {
	if !g.enabled {
		return
	}
	if g.writers.Add(1) != 1 {
		panic(bark.AddTrace(errors.New("concurrent writers on one column")))
	}
	if g.readers.Load() != 0 {
		panic(bark.AddTrace(errors.New("column write during active read")))
	}
}

func (g *accessGuard) endWrite() {
	if !g.enabled {
		return
	}
	g.writers.Add(-1)
}

func (g *accessGuard) beginRead() {
	if !g.enabled {
		return
	}
	g.readers.Add(1)
	if g.writers.Load() != 0 {
		panic(bark.AddTrace(errors.New("column read during active write")))
	}
}

func (g *accessGuard) endRead() {
	if !g.enabled {
		return
	}
	g.readers.Add(-1)
}
