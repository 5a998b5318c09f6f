package passes

import (
	"math"

	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// LIRSimplifyPass is the target-shaped peephole catalogue: identity
// operations disappear and additions normalize toward the shortest
// emitted command.
type LIRSimplifyPass struct{}

func (*LIRSimplifyPass) Name() string { return "simplify_lir" }

func (p *LIRSimplifyPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	for {
		again := runLIRSimplifyIter(f)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

func runLIRSimplifyIter(f *lir.Func) bool {
	remove := map[int]bool{}
	changed := false

	for i, in := range f.Instrs {
		if hasStoreModsLIR(in) {
			continue
		}
		c, isConst := in.Src.ConstScore()
		switch in.Kind {
		case lir.InstrSetScore:
			if in.Src.Kind == ir.ValMut && in.Src.Mut.Same(in.Dst) {
				remove[i] = true
			}
		case lir.InstrSwapScore:
			if in.Src2.Same(in.Dst) {
				remove[i] = true
			}
		case lir.InstrMulScore, lir.InstrDivScore:
			if isConst && c == 1 {
				remove[i] = true
			}
			// Dividing by zero errors and leaves the score alone.
			if in.Kind == lir.InstrDivScore && isConst && c == 0 {
				remove[i] = true
			}
		case lir.InstrModScore:
			if isConst && c == 0 {
				remove[i] = true
			}
		case lir.InstrAddScore, lir.InstrSubScore:
			if isConst && c == 0 {
				remove[i] = true
				break
			}
			// Negative adds flip to subtracts so codegen never needs
			// a signed amount.
			if isConst && c < 0 && c != math.MinInt32 {
				if in.Kind == lir.InstrAddScore {
					in.Kind = lir.InstrSubScore
				} else {
					in.Kind = lir.InstrAddScore
				}
				in.Src = ir.NewConstValue(ir.NewScoreConst(-c))
				changed = true
			}
		}
		if remove[i] {
			changed = true
		}
	}

	f.Instrs = removeIndices(f.Instrs, remove)
	return changed
}

func hasStoreModsLIR(in *lir.Instr) bool {
	for idx := range in.Mods {
		k := in.Mods[idx].Kind
		if k == ir.ModStoreResult || k == ir.ModStoreSuccess {
			return true
		}
	}
	return false
}
