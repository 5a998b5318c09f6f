package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// DSEPass removes register stores that are overwritten before any
// read, instructions with no observable effect whose result register
// is never used, and declarations of registers whose last use has
// gone away.
type DSEPass struct{}

func (*DSEPass) Name() string { return "dse" }

func (p *DSEPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	scopeUsed := cx.ScopeUses(f.Interface.RegScope())
	for {
		again := runDSEIter(f, scopeUsed)
		if !again {
			break
		}
		changed = true
	}
	if removeDeadDeclares(f, scopeUsed) {
		changed = true
	}
	return changed, nil
}

func runDSEIter(f *mir.Func, scopeUsed map[string]bool) bool {
	// candidates maps a register to the index of its latest
	// unconditional store with no read since.
	candidates := map[string]int{}
	remove := map[int]bool{}

	for i, in := range f.Instrs {
		if isPlainRegStore(in) {
			if prev, ok := candidates[in.Dst.Reg]; ok {
				// Overwritten with no intervening read.
				remove[prev] = true
			}
			candidates[in.Dst.Reg] = i
		}

		for _, reg := range in.ReadRegs(nil) {
			if at, ok := candidates[reg]; ok && at != i {
				delete(candidates, reg)
			}
		}
	}

	// Registers shared with minted sibling functions stay live.
	for reg := range scopeUsed {
		delete(candidates, reg)
	}

	// Stores never read again are dead unless they escape through a
	// non-register slot (arguments and returns are observable).
	for _, i := range sortedValues(candidates) {
		in := f.Instrs[i]
		if !in.HasSideEffect() {
			remove[i] = true
		}
	}

	if len(remove) == 0 {
		return false
	}
	f.Instrs = removeIndices(f.Instrs, remove)
	return true
}

// isPlainRegStore reports an unconditional full overwrite of a
// register.
func isPlainRegStore(in *mir.Instr) bool {
	return in.Kind == mir.InstrAssign &&
		in.Dst.Kind == ir.MutReg &&
		len(in.Mods) == 0 &&
		in.Binding.Kind == ir.BindValue
}

func removeDeadDeclares(f *mir.Func, scopeUsed map[string]bool) bool {
	used := map[string]bool{}
	for _, in := range f.Instrs {
		if in.Kind == mir.InstrDeclare {
			continue
		}
		for _, reg := range in.UsedRegs(nil) {
			used[reg] = true
		}
	}
	remove := map[int]bool{}
	for i, in := range f.Instrs {
		if in.Kind == mir.InstrDeclare && in.Dst.Kind == ir.MutReg &&
			!used[in.Dst.Reg] && !scopeUsed[in.Dst.Reg] {
			remove[i] = true
		}
	}
	if len(remove) == 0 {
		return false
	}
	f.Instrs = removeIndices(f.Instrs, remove)
	return true
}

func sortedValues(m map[string]int) []int {
	out := make([]int, 0, len(m))
	for _, v := range m {
		out = append(out, v)
	}
	// Deterministic order; the set is tiny.
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j-1] > out[j]; j-- {
			out[j-1], out[j] = out[j], out[j-1]
		}
	}
	return out
}
