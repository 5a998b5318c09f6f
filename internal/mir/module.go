package mir

import (
	"sort"

	"github.com/CarbonSmasher/dpc/internal/ir"
)

// Func is a MIR function: an interface plus a linear instruction
// sequence.
type Func struct {
	Interface ir.Interface
	Instrs    []*Instr
}

// Module maps function identifiers to MIR functions.
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

// Registers collects the register declarations of a function body.
func (f *Func) Registers() ir.RegisterList {
	regs := ir.RegisterList{}
	for _, in := range f.Instrs {
		collectDeclares(in, regs)
	}
	return regs
}

func collectDeclares(in *Instr, regs ir.RegisterList) {
	if in.Kind == InstrDeclare && in.Dst.Kind == ir.MutReg {
		regs[in.Dst.Reg] = ir.Register{ID: in.Dst.Reg, Ty: in.Ty}
	}
	if in.Body != nil {
		collectDeclares(in.Body, regs)
	}
}
