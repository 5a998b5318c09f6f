package codegen

import (
	"sort"

	"github.com/CarbonSmasher/dpc/internal/lir"
)

// StripMode selects the function identifier shortening algorithm.
type StripMode uint8

const (
	// StripNone keeps every identifier.
	StripNone StripMode = iota
	// StripUnstable renames to the shortest unique identifiers,
	// prioritized by call frequency. The mapping is deterministic for
	// a given module but not stable across edits.
	StripUnstable
)

// FuncMapping maps original function identifiers to emitted ones.
type FuncMapping map[string]string

// Resolve maps an identifier, defaulting to itself.
func (m FuncMapping) Resolve(id string) string {
	if m == nil {
		return id
	}
	if out, ok := m[id]; ok {
		return out
	}
	return id
}

// Strip computes the identifier mapping for a module. Functions
// marked preserve or no_strip always keep their identifiers, as do
// functions whose identifier is already at least as short as the
// candidate name.
func Strip(m *lir.Module, mode StripMode, packName string) FuncMapping {
	if mode == StripNone {
		return nil
	}

	counts := m.CallCounts()

	type entry struct {
		id    string
		count int
	}
	order := make([]entry, 0, len(counts))
	for id, count := range counts {
		order = append(order, entry{id: id, count: count})
	}
	// Most-called first; ties break on the identifier so the result
	// is stable for a given module.
	sort.Slice(order, func(i, j int) bool {
		if order[i].count != order[j].count {
			return order[i].count > order[j].count
		}
		return order[i].id < order[j].id
	})

	out := FuncMapping{}
	var idx uint32
	for _, e := range order {
		f, ok := m.Funcs[e.id]
		if !ok {
			continue
		}
		ann := f.Interface.Annotations
		if ann.Preserve || ann.NoStrip {
			out[e.id] = e.id
			continue
		}
		name := packName + ":s/" + StrippedName(idx)
		if len(name) >= len(e.id) {
			out[e.id] = e.id
			continue
		}
		out[e.id] = name
		idx++
	}
	return out
}
