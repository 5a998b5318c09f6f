package lir

import (
	"sort"

	"github.com/CarbonSmasher/dpc/internal/ir"
)

// Func is a LIR function: an interface, a linear instruction
// sequence, and the registers its body references.
type Func struct {
	Interface ir.Interface
	Instrs    []*Instr
	Regs      ir.RegisterList
}

// Module maps function identifiers to LIR functions.
type Module struct {
	Funcs map[string]*Func
}

// NewModule creates an empty module.
func NewModule() *Module {
	return &Module{Funcs: map[string]*Func{}}
}

// Add inserts a function.
func (m *Module) Add(f *Func) {
	m.Funcs[f.Interface.ID] = f
}

// SortedIDs returns function identifiers in sorted order.
func (m *Module) SortedIDs() []string {
	ids := make([]string, 0, len(m.Funcs))
	for id := range m.Funcs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// CallCounts tallies how many times each function is called from
// instruction positions and if-function conditions.
func (m *Module) CallCounts() map[string]int {
	counts := map[string]int{}
	for _, f := range m.Funcs {
		for _, in := range f.Instrs {
			if in.Kind == InstrCall {
				counts[in.Func]++
			}
			for _, mod := range in.Mods {
				if mod.Kind == ir.ModIf && mod.If.Kind == ir.IfFunction {
					counts[mod.If.ID]++
				}
			}
		}
	}
	return counts
}
