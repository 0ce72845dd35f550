package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestViewRequiredAndForbiddenTags(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	red := FactoryNewTag("red")
	blue := FactoryNewTag("blue")

	h1, _ := r.Insert(pos.With(Position{X: 1}), red)
	h2, _ := r.Insert(pos.With(Position{X: 2}), red, blue)
	h3, _ := r.Insert(pos.With(Position{X: 3}), blue)

	cursor := r.GetView([]Component{pos}, []Tag{red}, []Tag{blue})
	var visited []Handle
	for cursor.Next() {
		visited = append(visited, cursor.CurrentHandle())
	}

	require.Len(t, visited, 1)
	assert.Equal(t, h1, visited[0])
	_ = h2
	_ = h3
}

func TestViewRequiresAllComponents(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	r.Insert(pos.With(Position{}))
	r.Insert(pos.With(Position{}), vel.With(Velocity{}))
	r.Insert(pos.With(Position{}), vel.With(Velocity{}))

	cursor := r.GetView([]Component{pos, vel}, nil, nil)
	count := 0
	for cursor.Next() {
		count++
	}
	assert.Equal(t, 2, count)
}

func TestViewSkipsEmptyArchetypes(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()

	h, _ := r.Insert(pos.With(Position{}))
	require.NoError(t, r.Erase(h))

	cursor := r.GetView([]Component{pos}, nil, nil)
	assert.False(t, cursor.Next())
}

// Rows appended while a view iterates are not visited: sizes are pinned when
// iteration begins.
func TestViewInsertDuringIterationNotVisited(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()

	for i := 0; i < 5; i++ {
		r.Insert(pos.With(Position{X: float64(i)}))
	}

	cursor := r.GetView([]Component{pos}, nil, nil)
	visited := 0
	for cursor.Next() {
		if visited == 0 {
			_, err := r.Insert(pos.With(Position{X: 99}))
			require.NoError(t, err)
		}
		visited++
	}
	assert.Equal(t, 5, visited)
	assert.Equal(t, 6, r.Size())
	require.NoError(t, r.Validate())
}

// Deleting during iteration defers compaction: the cursor skips erased rows,
// visits every surviving row exactly once, and the archetype compacts once
// the iteration ends.
func TestViewDeleteDuringIteration(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()

	handles := make([]Handle, 10)
	for i := range handles {
		handles[i], _ = r.Insert(mana.With(Mana(i)))
	}

	var erased []Handle
	seen := map[uint64]int{}
	visit := 0
	cursor := r.GetView([]Component{mana}, nil, nil)
	for cursor.Next() {
		visit++
		h := cursor.CurrentHandle()
		seen[h.Bits()]++
		if visit == 3 {
			ahead := cursor.HandleAtOffset(2)
			require.True(t, ahead.IsValid())
			require.NoError(t, r.Erase(h))
			require.NoError(t, r.Erase(ahead))
			erased = append(erased, h, ahead)
		}
	}

	// No row visited twice, the row erased ahead of the cursor never visited.
	for bits, n := range seen {
		assert.Equal(t, 1, n, "handle %d visited %d times", bits, n)
	}
	assert.NotContains(t, seen, erased[1].Bits())
	assert.Len(t, seen, 9, "the nine rows present when reached are visited once each")

	assert.Equal(t, 8, r.Size())
	arch, ok := r.ArchetypeOf(handles[0])
	require.True(t, ok)
	assert.Equal(t, 8, arch.Table().Size())
	assert.Equal(t, 8, arch.Table().Number(), "gaps compacted after iteration")

	for _, h := range erased {
		assert.False(t, r.Exists(h))
	}
	require.NoError(t, r.Validate())
}

// Erasing every remaining entity mid-iteration still compacts cleanly.
func TestViewEraseAllDuringIteration(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()

	handles := make([]Handle, 4)
	for i := range handles {
		handles[i], _ = r.Insert(mana.With(Mana(i)))
	}

	cursor := r.GetView([]Component{mana}, nil, nil)
	for cursor.Next() {
		for _, h := range handles {
			if r.Exists(h) {
				require.NoError(t, r.Erase(h))
			}
		}
	}

	assert.Equal(t, 0, r.Size())
	arch, _ := r.ArchetypeOf(handles[0])
	assert.Nil(t, arch)
	require.NoError(t, r.Validate())
}

func TestQueryComposition(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()
	hp := FactoryNewComponent[Health]()

	r.Insert(pos.With(Position{}))
	r.Insert(pos.With(Position{}), vel.With(Velocity{}))
	r.Insert(hp.With(Health{}))

	tests := []struct {
		name  string
		build func(q Query) QueryNode
		want  int
	}{
		{
			name:  "And",
			build: func(q Query) QueryNode { return q.And(pos, vel) },
			want:  1,
		},
		{
			name:  "Or",
			build: func(q Query) QueryNode { return q.Or(vel, hp) },
			want:  2,
		},
		{
			name:  "Not",
			build: func(q Query) QueryNode { return q.Not(pos) },
			want:  1,
		},
		{
			name: "And with Not child",
			build: func(q Query) QueryNode {
				return q.And(pos, Factory.NewQuery().Not(vel))
			},
			want: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := Factory.NewQuery()
			cursor := Factory.NewCursor(tt.build(q), r)
			count := 0
			for cursor.Next() {
				count++
			}
			assert.Equal(t, tt.want, count)
		})
	}
}

func TestCursorHandlesSequence(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	for i := 0; i < 6; i++ {
		r.Insert(pos.With(Position{X: float64(i)}))
	}

	cursor := r.GetView([]Component{pos}, nil, nil)
	count := 0
	for h := range cursor.Handles() {
		require.True(t, h.IsValid())
		count++
		if count == 3 {
			break // early break must release the iteration cleanly
		}
	}
	assert.Equal(t, 3, count)

	// The registry is usable and consistent after the abandoned iteration.
	h, err := r.Insert(pos.With(Position{X: 9}))
	require.NoError(t, err)
	require.NoError(t, r.Erase(h))
	require.NoError(t, r.Validate())
}

func TestCursorAccessors(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	r.Insert(pos.With(Position{X: 1}), vel.With(Velocity{X: 10}))
	r.Insert(pos.With(Position{X: 2}), vel.With(Velocity{X: 20}))

	cursor := r.GetView([]Component{pos, vel}, nil, nil)
	sum := 0.0
	for cursor.Next() {
		p := pos.GetFromCursor(cursor)
		v := vel.GetFromCursor(cursor)
		sum += p.X + v.X

		ok, p2 := pos.GetFromCursorSafe(cursor)
		require.True(t, ok)
		assert.Equal(t, p, p2)
	}
	assert.Equal(t, 33.0, sum)
}

func TestViewMatchCacheStaysCorrect(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	r.Insert(pos.With(Position{}))

	count := func() int {
		c := r.GetView([]Component{pos}, nil, nil)
		n := 0
		for c.Next() {
			n++
		}
		return n
	}
	assert.Equal(t, 1, count())
	assert.Equal(t, 1, count(), "cached match list")

	// Forging a new matching archetype must invalidate the cached list.
	r.Insert(pos.With(Position{}), vel.With(Velocity{}))
	assert.Equal(t, 2, count())
}

func TestTotalMatched(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	r.Insert(pos.With(Position{}))
	r.Insert(pos.With(Position{}), vel.With(Velocity{}))

	cursor := r.GetView([]Component{pos}, nil, nil)
	assert.Equal(t, 2, cursor.TotalMatched())

	// TotalMatched resets the cursor; a fresh iteration still works.
	count := 0
	for cursor.Next() {
		count++
	}
	assert.Equal(t, 2, count)
}
