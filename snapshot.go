package depot

import (
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/TheBitDrifter/depot/table"
)

type snapshotDoc struct {
	Cmd        string                  `json:"cmd"`
	Entities   int                     `json:"entities"`
	Archetypes []snapshotArchetypeWrap `json:"archetypes"`
}

type snapshotArchetypeWrap struct {
	Hash      string            `json:"hash"`
	Archetype snapshotArchetype `json:"archetype"`
}

type snapshotArchetype struct {
	Hash     uint64            `json:"hash"`
	Types    []table.TypeID    `json:"types"`
	Maps     []snapshotTypeMap `json:"maps"`
	Entities []snapshotEntity  `json:"entities"`
}

type snapshotTypeMap struct {
	Name string       `json:"name"`
	ID   table.TypeID `json:"id"`
}

type snapshotEntity struct {
	Index    uint32 `json:"index"`
	Version  uint32 `json:"version"`
	Stgindex uint8  `json:"stgindex"`
	Value    uint64 `json:"value"`
	Values   []any  `json:"values"`
}

type liveViewDoc struct {
	Cmd      string             `json:"cmd"`
	Entities int                `json:"entities"`
	AvgComp  float64            `json:"avgComp"`
	EstSize  uint64             `json:"estSize"`
	Watched  []liveViewWatched  `json:"watched,omitempty"`
}

type liveViewWatched struct {
	Entity uint64 `json:"entity"`
	Values []any  `json:"values"`
}

// GetSnapshot serialises the full registry state for the diagnostic
// endpoint: every archetype with its signature hash, type ids, component
// maps, and live rows.
func (r *Registry) GetSnapshot() (string, error) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()

	doc := snapshotDoc{
		Cmd:        "snapshot",
		Entities:   r.Size(),
		Archetypes: make([]snapshotArchetypeWrap, 0, len(r.archetypes.asSlice)),
	}
	for _, arch := range r.archetypes.asSlice {
		doc.Archetypes = append(doc.Archetypes, r.snapshotArchetype(arch))
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (r *Registry) snapshotArchetype(arch *ArchetypeImpl) snapshotArchetypeWrap {
	tbl := arch.tbl
	sa := snapshotArchetype{
		Hash:     tbl.Hash(),
		Types:    tbl.Types(),
		Maps:     make([]snapshotTypeMap, 0, len(tbl.ComponentIDs())),
		Entities: make([]snapshotEntity, 0, tbl.Size()),
	}
	for _, id := range tbl.ComponentIDs() {
		sa.Maps = append(sa.Maps, snapshotTypeMap{Name: r.schema.NameOf(id), ID: id})
	}
	n := tbl.Number()
	for row := 0; row < n; row++ {
		h := tbl.HandleAt(row)
		if !h.IsValid() {
			continue // delayed gap
		}
		sa.Entities = append(sa.Entities, snapshotEntity{
			Index:    h.Index(),
			Version:  h.Version(),
			Stgindex: h.Shard(),
			Value:    h.Bits(),
			Values:   tbl.JSONValues(row),
		})
	}
	return snapshotArchetypeWrap{
		Hash:      strconv.FormatUint(tbl.Hash(), 10),
		Archetype: sa,
	}
}

// ToJSON serialises one entity in the snapshot's per-entity form.
func (r *Registry) ToJSON(h Handle) (string, error) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()
	slot, ok := r.shards.Resolve(h)
	if !ok {
		return "", StaleHandleError{Handle: h}
	}
	entity := snapshotEntity{
		Index:    h.Index(),
		Version:  h.Version(),
		Stgindex: h.Shard(),
		Value:    h.Bits(),
		Values:   slot.Table().JSONValues(slot.Row()),
	}
	b, err := json.Marshal(entity)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// LiveView serialises the lightweight monitoring form: totals plus, for each
// watched handle, its current values or null once deleted.
func (r *Registry) LiveView(watch []Handle) (string, error) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()

	doc := liveViewDoc{
		Cmd:      "liveview",
		Entities: r.Size(),
		AvgComp:  r.avgComponentsLocked(),
		EstSize:  r.footprintLocked(),
	}
	for _, h := range watch {
		w := liveViewWatched{Entity: h.Bits()}
		if slot, ok := r.shards.Resolve(h); ok {
			w.Values = slot.Table().JSONValues(slot.Row())
		}
		doc.Watched = append(doc.Watched, w)
	}
	b, err := json.Marshal(doc)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// avgComponentsLocked is the mean component count per live entity.
func (r *Registry) avgComponentsLocked() float64 {
	entities := r.Size()
	if entities == 0 {
		return 0
	}
	total := 0
	for _, arch := range r.archetypes.asSlice {
		total += arch.tbl.Size() * len(arch.tbl.ComponentIDs())
	}
	return float64(total) / float64(entities)
}

// footprintLocked estimates the committed storage in bytes.
func (r *Registry) footprintLocked() uint64 {
	var total uint64
	for _, arch := range r.archetypes.asSlice {
		total += uint64(arch.tbl.Number()) * uint64(arch.tbl.RowBytes())
	}
	return total
}
