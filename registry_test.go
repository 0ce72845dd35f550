package depot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test component types
type Position struct {
	X, Y float64
}

type Velocity struct {
	X, Y float64
}

type Health struct {
	Current, Max int
}

type Mana uint32

type Heat float32

func TestInsertGetErase(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()
	heat := FactoryNewComponent[Heat]()

	h, err := r.Insert(mana.With(7), heat.With(2.5))
	require.NoError(t, err)
	require.True(t, h.IsValid())

	m, err := Get[Mana](r, h)
	require.NoError(t, err)
	assert.Equal(t, Mana(7), *m)

	f, err := Get[Heat](r, h)
	require.NoError(t, err)
	assert.Equal(t, Heat(2.5), *f)

	assert.Equal(t, 1, r.Size())
	require.NoError(t, r.Erase(h))
	assert.Equal(t, 0, r.Size())
	assert.False(t, r.Exists(h))
	require.NoError(t, r.Validate())
}

func TestInsertArgumentValidation(t *testing.T) {
	pos := FactoryNewComponent[Position]()
	red := FactoryNewTag("red")

	tests := []struct {
		name    string
		args    []any
		wantErr error
	}{
		{"No arguments", nil, EmptyInsertError{}},
		{"Tag only", []any{red}, EmptyInsertError{}},
		{"Duplicate component", []any{pos.With(Position{}), pos.With(Position{X: 1})}, ComponentExistsError{}},
		{"Arbitrary value", []any{Position{}}, InvalidArgError{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Factory.NewRegistry()
			_, err := r.Insert(tt.args...)
			require.Error(t, err)
			assert.IsType(t, tt.wantErr, err)
		})
	}
}

func TestArchetypeDeduplication(t *testing.T) {
	posComp := FactoryNewComponent[Position]()
	velComp := FactoryNewComponent[Velocity]()
	healthComp := FactoryNewComponent[Health]()

	tests := []struct {
		name                string
		firstComponents     []any
		secondComponents    []any
		expectSameArchetype bool
	}{
		{
			name:                "Identical components",
			firstComponents:     []any{posComp, velComp},
			secondComponents:    []any{posComp, velComp},
			expectSameArchetype: true,
		},
		{
			name:                "Different order",
			firstComponents:     []any{posComp, velComp},
			secondComponents:    []any{velComp, posComp},
			expectSameArchetype: true, // Archetypes are based on component sets, not order
		},
		{
			name:                "Different components",
			firstComponents:     []any{posComp},
			secondComponents:    []any{velComp},
			expectSameArchetype: false,
		},
		{
			name:                "Subset components",
			firstComponents:     []any{posComp, velComp},
			secondComponents:    []any{posComp},
			expectSameArchetype: false,
		},
		{
			name:                "Superset components",
			firstComponents:     []any{posComp},
			secondComponents:    []any{posComp, velComp, healthComp},
			expectSameArchetype: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Factory.NewRegistry()
			h1, err := r.Insert(tt.firstComponents...)
			require.NoError(t, err)
			h2, err := r.Insert(tt.secondComponents...)
			require.NoError(t, err)

			a1, ok := r.ArchetypeOf(h1)
			require.True(t, ok)
			a2, ok := r.ArchetypeOf(h2)
			require.True(t, ok)
			assert.Equal(t, tt.expectSameArchetype, a1.ID() == a2.ID())
		})
	}
}

// Adding a component migrates the entity into the extended archetype while
// the original archetype keeps serving its signature.
func TestMigrationOnNewComponent(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()
	pos := FactoryNewComponent[Position]()

	h1, err := r.Insert(mana.With(1))
	require.NoError(t, err)
	require.NoError(t, r.Put(h1, pos.With(Position{X: 4})))

	assert.True(t, r.Has(h1, pos))
	assert.True(t, r.Has(h1, mana))
	m, err := Get[Mana](r, h1)
	require.NoError(t, err)
	assert.Equal(t, Mana(1), *m, "value must survive the migration")

	h2, err := r.Insert(mana.With(2))
	require.NoError(t, err)
	a1, _ := r.ArchetypeOf(h1)
	a2, _ := r.ArchetypeOf(h2)
	assert.NotEqual(t, a1.ID(), a2.ID())
	require.NoError(t, r.Validate())
}

// Erasing the middle entity swap-fills its row with the last entity, and the
// slot map follows the move.
func TestSwapWithLastReindex(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()

	a, _ := r.Insert(mana.With(10))
	b, _ := r.Insert(mana.With(20))
	c, _ := r.Insert(mana.With(30))

	arch, ok := r.ArchetypeOf(b)
	require.True(t, ok)
	assert.Equal(t, b, arch.Table().HandleAt(1))

	require.NoError(t, r.Erase(b))

	va, err := Get[Mana](r, a)
	require.NoError(t, err)
	assert.Equal(t, Mana(10), *va)
	vc, err := Get[Mana](r, c)
	require.NoError(t, err)
	assert.Equal(t, Mana(30), *vc)

	// c now occupies b's former row.
	assert.Equal(t, c, arch.Table().HandleAt(1))
	require.NoError(t, r.Validate())
}

func TestHandleReuseVersionSeparation(t *testing.T) {
	r := Factory.NewRegistry() // single shard keeps the reuse deterministic
	mana := FactoryNewComponent[Mana]()

	h1, _ := r.Insert(mana.With(1))
	require.NoError(t, r.Erase(h1))
	h2, _ := r.Insert(mana.With(2))

	assert.Equal(t, h1.Index(), h2.Index())
	assert.NotEqual(t, h1.Version(), h2.Version())
	assert.False(t, r.Exists(h1))
	assert.True(t, r.Exists(h2))

	_, err := Get[Mana](r, h1)
	assert.IsType(t, StaleHandleError{}, err)
}

func TestPutInPlaceAndMigrating(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	h, _ := r.Insert(pos.With(Position{X: 1}))

	// In place: archetype unchanged.
	before, _ := r.ArchetypeOf(h)
	require.NoError(t, r.Put(h, pos.With(Position{X: 2})))
	after, _ := r.ArchetypeOf(h)
	assert.Equal(t, before.ID(), after.ID())
	p, _ := Get[Position](r, h)
	assert.Equal(t, 2.0, p.X)

	// Migrating: one move for the whole set, values written after.
	require.NoError(t, r.Put(h, vel.With(Velocity{X: 3})))
	assert.True(t, Has[Velocity](r, h))
	v, _ := Get[Velocity](r, h)
	assert.Equal(t, 3.0, v.X)
	p, _ = Get[Position](r, h)
	assert.Equal(t, 2.0, p.X)
	require.NoError(t, r.Validate())
}

func TestGetMaterialisesMissingComponent(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()

	h, _ := r.Insert(pos.With(Position{X: 1}))
	require.False(t, Has[Velocity](r, h))

	v, err := Get[Velocity](r, h)
	require.NoError(t, err)
	assert.Equal(t, Velocity{}, *v)
	assert.True(t, Has[Velocity](r, h))

	// The entity moved; its old component came along.
	p, _ := Get[Position](r, h)
	assert.Equal(t, 1.0, p.X)
	require.NoError(t, r.Validate())
}

func TestEraseComponents(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	h, _ := r.Insert(pos.With(Position{X: 1}), vel.With(Velocity{X: 2}))

	require.NoError(t, r.EraseComponents(h, vel))
	assert.False(t, Has[Velocity](r, h))
	p, _ := Get[Position](r, h)
	assert.Equal(t, 1.0, p.X)

	err := r.EraseComponents(h, vel)
	assert.IsType(t, ComponentNotFoundError{}, err)
	require.NoError(t, r.Validate())
}

func TestTagRoundTrip(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	red := FactoryNewTag("red")

	h, _ := r.Insert(pos.With(Position{X: 7}))
	before, _ := r.ArchetypeOf(h)

	require.NoError(t, r.AddTags(h, red))
	assert.True(t, r.HasTag(h, red))
	after, _ := r.ArchetypeOf(h)
	assert.NotEqual(t, before.ID(), after.ID(), "tags shape archetype identity")
	p, _ := Get[Position](r, h)
	assert.Equal(t, 7.0, p.X)

	require.NoError(t, r.EraseTags(h, red))
	assert.False(t, r.HasTag(h, red))
	back, _ := r.ArchetypeOf(h)
	assert.Equal(t, before.ID(), back.ID(), "signature paths converge on one archetype")

	// Absent tags are a no-op.
	require.NoError(t, r.EraseTags(h, red))
	require.NoError(t, r.Validate())
}

func TestTypesListsComponentsAndTags(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	red := FactoryNewTag("red")

	h, _ := r.Insert(pos.With(Position{}), red)
	types := r.Types(h)
	assert.Len(t, types, 2)
	assert.True(t, r.HasTag(h, red))
}

func TestClear(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()

	handles := make([]Handle, 5)
	for i := range handles {
		handles[i], _ = r.Insert(pos.With(Position{X: float64(i)}))
	}
	archCount := len(r.Archetypes())

	r.Clear()
	assert.Equal(t, 0, r.Size())
	for _, h := range handles {
		assert.False(t, r.Exists(h))
	}
	assert.Len(t, r.Archetypes(), archCount, "archetypes persist across Clear")

	h, err := r.Insert(pos.With(Position{X: 9}))
	require.NoError(t, err)
	p, _ := Get[Position](r, h)
	assert.Equal(t, 9.0, p.X)
	require.NoError(t, r.Validate())
}

func TestEraseAllHandles(t *testing.T) {
	r := Factory.NewRegistry()
	pos := FactoryNewComponent[Position]()
	vel := FactoryNewComponent[Velocity]()

	var handles []Handle
	for i := 0; i < 10; i++ {
		h, _ := r.Insert(pos.With(Position{X: float64(i)}))
		handles = append(handles, h)
	}
	for i := 0; i < 10; i++ {
		h, _ := r.Insert(pos.With(Position{}), vel.With(Velocity{}))
		handles = append(handles, h)
	}
	require.Equal(t, 20, r.Size())

	for _, h := range handles {
		require.NoError(t, r.Erase(h))
	}
	assert.Equal(t, 0, r.Size())
	require.NoError(t, r.Validate())
}

// A pointer into the first storage segment must survive inserts that grow
// the archetype past the segment boundary.
func TestSegmentBoundaryKeepsReferences(t *testing.T) {
	cfg := DefaultConfig
	cfg.SegmentBits = 2 // 4 rows per segment
	r := Factory.NewRegistry(cfg)
	pos := FactoryNewComponent[Position]()

	h0, _ := r.Insert(pos.With(Position{X: 42}))
	p0, err := Get[Position](r, h0)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		_, err := r.Insert(pos.With(Position{X: float64(i)}))
		require.NoError(t, err)
	}

	assert.Equal(t, 42.0, p0.X, "growth must not relocate committed rows")
	again, _ := Get[Position](r, h0)
	assert.Same(t, p0, again)
}

func TestErasedHandleLeavesOthersAlone(t *testing.T) {
	r := Factory.NewRegistry()
	mana := FactoryNewComponent[Mana]()

	h1, _ := r.Insert(mana.With(1))
	h2, _ := r.Insert(mana.With(2))
	require.NoError(t, r.Erase(h1))

	assert.False(t, r.Exists(h1))
	assert.True(t, r.Exists(h2))
	v, err := Get[Mana](r, h2)
	require.NoError(t, err)
	assert.Equal(t, Mana(2), *v)
}
