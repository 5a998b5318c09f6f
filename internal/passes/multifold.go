package passes

import (
	"sort"

	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// MultifoldLogicPass recognizes hand-written logical idioms and
// re-canonicalizes condition trees.
//
// The main fold turns
//
//	let b: bool = cond c0
//	if c1: add %b, 1
//	if %b >= 1: body
//
// back into `if or(c0, c1): body`, the canonical OR. Lowering then
// regenerates the exact accumulator shape once, so manual spellings
// of the idiom are never duplicated.
//
// Nested and/or trees also flatten into chains with a deterministic
// cheapest-first ordering.
type MultifoldLogicPass struct{}

func (*MultifoldLogicPass) Name() string { return "multifold_logic" }

func (p *MultifoldLogicPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	for {
		again := runManualOrIter(f)
		if !again {
			break
		}
		changed = true
	}
	for _, in := range f.Instrs {
		if in.Kind == mir.InstrIf && canonicalizeCond(in.Cond) {
			changed = true
		}
	}
	return changed, nil
}

// orFold tracks one in-flight manual OR accumulator.
type orFold struct {
	start int
	adds  []int
	conds []*ir.Condition
	done  bool
}

func runManualOrIter(f *mir.Func) bool {
	folds := map[string]*orFold{}
	remove := map[int]bool{}
	changed := false

	for i, in := range f.Instrs {
		if remove[i] {
			continue
		}

		switch {
		case in.Kind == mir.InstrAssign &&
			in.Dst.Kind == ir.MutReg &&
			in.Binding.Kind == ir.BindCondition &&
			len(in.Mods) == 0:
			folds[in.Dst.Reg] = &orFold{
				start: i,
				conds: []*ir.Condition{in.Binding.Cond},
			}
			continue

		case in.Kind == mir.InstrIf && isAddOne(in.Body):
			reg := in.Body.Dst.Reg
			if fold, ok := folds[reg]; ok && !fold.done {
				fold.adds = append(fold.adds, i)
				fold.conds = append(fold.conds, in.Cond)
				continue
			}

		case in.Kind == mir.InstrIf && len(in.Mods) == 0:
			if reg, ok := atLeastOneCheck(in.Cond); ok {
				if fold, exists := folds[reg]; exists && !fold.done && len(fold.conds) >= 2 {
					// Collapse to the canonical OR.
					or := &ir.Condition{Kind: ir.CondOr, Sub: fold.conds}
					in.Cond = or
					remove[fold.start] = true
					for _, a := range fold.adds {
						remove[a] = true
					}
					fold.done = true
					changed = true
					continue
				}
			}
		}

		// Any other touch of an accumulator register spoils its fold.
		for _, reg := range in.UsedRegs(nil) {
			if fold, ok := folds[reg]; ok && !fold.done {
				delete(folds, reg)
			}
		}
	}

	f.Instrs = removeIndices(f.Instrs, remove)
	return changed
}

// isAddOne matches `add %r, 1` with no modifiers of its own.
func isAddOne(in *mir.Instr) bool {
	if in == nil || in.Kind != mir.InstrAdd || in.Dst.Kind != ir.MutReg || len(in.Mods) != 0 {
		return false
	}
	c, ok := in.Src.ConstScore()
	return ok && c == 1
}

// atLeastOneCheck matches `%r >= 1` (or `1 <= %r`) conditions.
func atLeastOneCheck(c *ir.Condition) (string, bool) {
	if c.Kind == ir.CondGreaterEq {
		if reg, ok := c.L.AsReg(); ok {
			if v, isConst := c.R.ConstScore(); isConst && v == 1 {
				return reg, true
			}
		}
	}
	if c.Kind == ir.CondLessEq {
		if reg, ok := c.R.AsReg(); ok {
			if v, isConst := c.L.ConstScore(); isConst && v == 1 {
				return reg, true
			}
		}
	}
	return "", false
}

// canonicalizeCond flattens nested same-kind and/or nodes and orders
// the resulting chain deterministically: cheap terms first, ties
// broken by the stable text key. Canonicalizing twice is a fixed
// point.
func canonicalizeCond(c *ir.Condition) bool {
	changed := false
	for _, s := range c.Sub {
		if canonicalizeCond(s) {
			changed = true
		}
	}
	if c.Kind != ir.CondAnd && c.Kind != ir.CondOr {
		return changed
	}

	var flat []*ir.Condition
	for _, s := range c.Sub {
		if s.Kind == c.Kind {
			flat = append(flat, s.Sub...)
			changed = true
		} else {
			flat = append(flat, s)
		}
	}

	ordered := sort.SliceIsSorted(flat, condLess(flat))
	if !ordered {
		sort.SliceStable(flat, condLess(flat))
		changed = true
	}
	c.Sub = flat
	return changed
}

func condLess(conds []*ir.Condition) func(i, j int) bool {
	return func(i, j int) bool {
		ci, cj := conds[i].Cost(), conds[j].Cost()
		if ci != cj {
			return ci < cj
		}
		return conds[i].Key() < conds[j].Key()
	}
}
