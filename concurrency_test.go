package depot

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

func TestParallelInserts(t *testing.T) {
	r := Factory.NewRegistry(ParallelConfig)
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	const workers = 8
	const perWorker = 200

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < perWorker; i++ {
				var err error
				if i%2 == 0 {
					_, err = r.Insert(pos.With(Position{X: float64(w)}))
				} else {
					_, err = r.Insert(pos.With(Position{X: float64(w)}), vel.With(Velocity{}))
				}
				if err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, workers*perWorker, r.Size())
	require.NoError(t, r.Validate())
}

func TestParallelInsertEraseMix(t *testing.T) {
	r := Factory.NewRegistry(ParallelConfig)
	mana := FactoryNewComponent[Mana]()

	const workers = 8
	const perWorker = 100

	var g errgroup.Group
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			local := make([]Handle, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				h, err := r.Insert(mana.With(Mana(i)))
				if err != nil {
					return err
				}
				local = append(local, h)
			}
			// Each worker erases its own odd inserts.
			for i := 1; i < perWorker; i += 2 {
				if err := r.Erase(local[i]); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	assert.Equal(t, workers*perWorker/2, r.Size())
	require.NoError(t, r.Validate())
}

// A reader holding a component pointer must keep reading its value while
// other goroutines append past it into the same archetype.
func TestReaderSurvivesConcurrentAppends(t *testing.T) {
	r := Factory.NewRegistry(ParallelConfig)
	mana := FactoryNewComponent[Mana]()

	h, err := r.Insert(mana.With(41))
	require.NoError(t, err)
	p, err := Get[Mana](r, h)
	require.NoError(t, err)

	var g errgroup.Group
	stop := make(chan struct{})
	g.Go(func() error {
		for i := 0; i < 2000; i++ {
			if _, err := r.Insert(mana.With(Mana(i))); err != nil {
				return err
			}
		}
		close(stop)
		return nil
	})
	g.Go(func() error {
		for {
			if got := *p; got != 41 {
				t.Errorf("pointer drifted to %d during appends", got)
				return nil
			}
			select {
			case <-stop:
				return nil
			default:
			}
		}
	})
	require.NoError(t, g.Wait())
	require.NoError(t, r.Validate())
}

// Erases arriving from another goroutine while a cursor iterates become
// delayed gaps and compact when the iteration ends.
func TestConcurrentEraseDuringIteration(t *testing.T) {
	r := Factory.NewRegistry(ParallelConfig)
	mana := FactoryNewComponent[Mana]()

	handles := make([]Handle, 10)
	for i := range handles {
		handles[i], _ = r.Insert(mana.With(Mana(i)))
	}

	cursor := r.GetView([]Component{mana}, nil, nil)
	require.True(t, cursor.Next())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		// Erase two rows well ahead of the cursor.
		_ = r.Erase(handles[7])
		_ = r.Erase(handles[8])
	}()
	wg.Wait()

	visited := 1
	for cursor.Next() {
		visited++
	}

	assert.Equal(t, 8, visited)
	assert.Equal(t, 8, r.Size())
	arch, ok := r.ArchetypeOf(handles[0])
	require.True(t, ok)
	assert.Equal(t, arch.Table().Size(), arch.Table().Number(), "gaps compacted")
	require.NoError(t, r.Validate())
}

func TestParallelSameHandlePuts(t *testing.T) {
	r := Factory.NewRegistry(ParallelConfig)
	mana := FactoryNewComponent[Mana]()

	h, err := r.Insert(mana.With(0))
	require.NoError(t, err)

	var g errgroup.Group
	for w := 0; w < 4; w++ {
		w := w
		g.Go(func() error {
			for i := 0; i < 100; i++ {
				if err := Put(r, h, Mana(w*1000+i)); err != nil {
					return err
				}
			}
			return nil
		})
	}
	require.NoError(t, g.Wait())

	// The final value is one of the written ones; the structure stays sound.
	v, err := Get[Mana](r, h)
	require.NoError(t, err)
	assert.Less(t, uint32(*v), uint32(4000))
	require.NoError(t, r.Validate())
}
