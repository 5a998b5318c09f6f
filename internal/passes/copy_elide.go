package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// CopyElisionPass removes copies between registers and the shared
// argument/return slots of the calling convention: a register
// initialized from an argument or a call's return slot is replaced
// by the slot itself until either is written again, letting the
// callee's slot share storage with the caller's value.
type CopyElisionPass struct{}

func (*CopyElisionPass) Name() string { return "copy_elision" }

func (p *CopyElisionPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	shared := lirScopeUses(m, f)
	for {
		again := runCopyElideIter(f, shared)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

func runCopyElideIter(f *lir.Func, shared map[string]bool) bool {
	changed := false
	remove := map[int]bool{}

	// Forward: a register seeded from an argument or call-return slot
	// is replaced by the slot itself, including at later writes; the
	// write redirects into the slot, which is dead to everyone else.
	mapping := map[string]ir.MutableValue{}
	usedArgs := map[int]bool{}

	for _, in := range f.Instrs {
		if in.Kind == lir.InstrSetScore && in.Dst.Kind == ir.MutReg && len(in.Mods) == 0 &&
			in.Src.Kind == ir.ValMut && !shared[in.Dst.Reg] {
			switch in.Src.Mut.Kind {
			case ir.MutArg:
				if !usedArgs[in.Src.Mut.Idx] {
					mapping[in.Dst.Reg] = in.Src.Mut
					continue
				}
			case ir.MutCallReturn:
				mapping[in.Dst.Reg] = in.Src.Mut
				continue
			}
		}
		// A fresh unrelated assignment ends the mapping; the register
		// is no longer the slot.
		if in.Kind == lir.InstrSetScore && in.Dst.Kind == ir.MutReg {
			delete(mapping, in.Dst.Reg)
		}

		// A call overwrites its return slots; mappings into them die.
		if in.Kind == lir.InstrCall {
			for reg, val := range mapping {
				if val.Kind == ir.MutCallReturn && val.Func == in.Func {
					delete(mapping, reg)
				}
			}
		}

		// Arguments read before any replacement can no longer be
		// seeded; their value may have changed since entry.
		for _, m := range []ir.MutableValue{in.Dst, in.Src2} {
			if m.Kind == ir.MutArg {
				usedArgs[m.Idx] = true
			}
		}
		if in.Src.Kind == ir.ValMut && in.Src.Mut.Kind == ir.MutArg {
			usedArgs[in.Src.Mut.Idx] = true
		}

		in.ReplaceMutVals(func(v *ir.MutableValue) {
			if v.Kind == ir.MutReg {
				if slot, ok := mapping[v.Reg]; ok {
					*v = slot
					changed = true
				}
			}
		})
	}

	// The seeding copies become dead once nothing reads the register.
	reads := map[string]bool{}
	for reg := range shared {
		reads[reg] = true
	}
	for _, in := range f.Instrs {
		for _, reg := range in.ReadRegs(nil) {
			reads[reg] = true
		}
	}
	for i, in := range f.Instrs {
		if in.Kind == lir.InstrSetScore && in.Dst.Kind == ir.MutReg &&
			len(in.Mods) == 0 && !reads[in.Dst.Reg] {
			remove[i] = true
			changed = true
		}
	}

	if len(remove) > 0 {
		f.Instrs = removeIndices(f.Instrs, remove)
	}
	return changed
}

// lirScopeUses collects registers referenced by other functions in
// the same register scope; those stay live across this function.
func lirScopeUses(m *lir.Module, f *lir.Func) map[string]bool {
	out := map[string]bool{}
	scope := f.Interface.RegScope()
	for _, id := range m.SortedIDs() {
		other := m.Funcs[id]
		if other.Interface.ID == f.Interface.ID || other.Interface.RegScope() != scope {
			continue
		}
		for _, in := range other.Instrs {
			for _, reg := range in.UsedRegs(nil) {
				out[reg] = true
			}
		}
	}
	return out
}
