package depot

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/c2h5oh/datasize"

	"github.com/TheBitDrifter/depot/table"
)

// Print writes a human-readable summary of the registry: totals, then one
// line per archetype with its signature and footprint.
func (r *Registry) Print(w io.Writer) {
	r.structMu.RLock()
	defer r.structMu.RUnlock()

	fmt.Fprintf(w, "registry: %d entities, %d archetypes, %s\n",
		r.Size(), len(r.archetypes.asSlice),
		datasize.ByteSize(r.footprintLocked()).HumanReadable())

	for _, arch := range r.archetypes.asSlice {
		tbl := arch.tbl
		bytes := uint64(tbl.Number()) * uint64(tbl.RowBytes())
		fmt.Fprintf(w, "  archetype %d %s: %d rows (%d physical), %s\n",
			arch.ID(), r.signatureString(arch),
			tbl.Size(), tbl.Number(),
			datasize.ByteSize(bytes).HumanReadable())
	}
}

// signatureString returns a sorted, formatted list of the archetype's
// component and tag names.
func (r *Registry) signatureString(arch *ArchetypeImpl) string {
	types := arch.tbl.Types()
	if len(types) == 0 {
		return "[]"
	}
	names := make([]string, 0, len(types))
	for _, id := range types {
		name := r.schema.NameOf(id)
		parts := strings.Split(name, ".")
		names = append(names, parts[len(parts)-1])
	}
	sort.Strings(names)
	return "[" + strings.Join(names, ", ") + "]"
}

// Validate sweeps the registry invariants: column parallelism and hash
// consistency per archetype, slot/row agreement for every live handle, and
// size bookkeeping across archetypes and shards.
func (r *Registry) Validate() error {
	r.structMu.Lock()
	defer r.structMu.Unlock()

	totalRows := 0
	for _, arch := range r.archetypes.asSlice {
		if err := arch.tbl.Validate(); err != nil {
			return fmt.Errorf("archetype %d: %w", arch.ID(), err)
		}
		totalRows += arch.tbl.Size()
	}
	for sig, id := range r.archetypes.idsGroupedByMask {
		if got := r.archetypes.asSlice[id-1].tbl.Sig(); got != sig {
			return fmt.Errorf("archetype %d stored under foreign signature", id)
		}
	}

	size := r.Size()
	if totalRows != size {
		return fmt.Errorf("size %d != sum of archetype sizes %d", size, totalRows)
	}
	if live := r.shards.Size(); live != size {
		return fmt.Errorf("size %d != live slots %d", size, live)
	}

	return r.validateSlots()
}

func (r *Registry) validateSlots() error {
	var err error
	r.shards.EachLive(func(h Handle, sl *table.Slot) {
		if err != nil {
			return
		}
		tbl := sl.Table()
		row := sl.Row()
		if row >= tbl.Number() {
			err = fmt.Errorf("slot for %d points past table end (%d >= %d)", h.Bits(), row, tbl.Number())
			return
		}
		if got := tbl.HandleAt(row); got != h {
			err = fmt.Errorf("slot for %d resolves to row holding %d", h.Bits(), got.Bits())
		}
	})
	return err
}
