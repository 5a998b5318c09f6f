package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// ConstComboPass propagates known register values forward along the
// straight-line body, folds constant arithmetic chains back into the
// defining assignment, and evaluates conditions whose operands have
// become known. The three activities iterate together until none of
// them fires.
type ConstComboPass struct{}

func (*ConstComboPass) Name() string { return "const_combo" }

func (p *ConstComboPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	for {
		again := runConstIter(f, cx)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

// constState tracks registers with compile-time-known score values
// and the instruction that most recently defined each.
type constState struct {
	known map[string]int32
	def   map[string]int
}

func (s *constState) kill(reg string) {
	delete(s.known, reg)
	delete(s.def, reg)
}

func runConstIter(f *mir.Func, cx *MIRCx) bool {
	state := constState{known: map[string]int32{}, def: map[string]int{}}
	remove := map[int]bool{}
	changed := false

	for i, in := range f.Instrs {
		// A call into a shared register scope can touch anything.
		if callsScoped(in, cx) {
			state.known = map[string]int32{}
			state.def = map[string]int{}
		}

		// Propagation: substitute known registers read as sources.
		if propagateConsts(in, &state) {
			changed = true
		}

		// Condition evaluation: a guard known true unwraps, known
		// false deletes the guarded instruction.
		if in.Kind == mir.InstrIf {
			if v, ok := evalCond(in.Cond, &state); ok {
				if v {
					*in = *in.Body
				} else {
					remove[i] = true
					changed = true
					continue
				}
				changed = true
			}
		}

		guarded := hasConditionalMods(in) || in.Kind == mir.InstrIf
		target := in
		if in.Kind == mir.InstrIf {
			target = in.Body
		}

		// Folding: constant arithmetic on a known register folds into
		// its defining assignment.
		if !guarded && foldInto(target, &state, remove, f, i) {
			changed = true
			continue
		}

		trackWrites(target, &state, i, guarded)
	}

	f.Instrs = removeIndices(f.Instrs, remove)
	return changed
}

// propagateConsts rewrites source operands whose register value is
// known. Destinations are left alone.
func propagateConsts(in *mir.Instr, state *constState) bool {
	changed := false
	sub := func(v *ir.Value) {
		if reg, ok := v.AsReg(); ok {
			if c, known := state.known[reg]; known {
				*v = ir.NewConstValue(ir.NewScoreConst(c))
				changed = true
			}
		}
	}
	switch in.Kind {
	case mir.InstrAssign:
		if in.Binding.Kind == ir.BindValue || in.Binding.Kind == ir.BindCast {
			sub(&in.Binding.Val)
		}
		if in.Binding.Cond != nil {
			substCond(in.Binding.Cond, state, &changed)
		}
	case mir.InstrIf:
		substCond(in.Cond, state, &changed)
		if propagateConsts(in.Body, state) {
			changed = true
		}
	case mir.InstrCall:
		for idx := range in.Call.Args {
			sub(&in.Call.Args[idx])
		}
	default:
		sub(&in.Src)
	}
	return changed
}

func substCond(c *ir.Condition, state *constState, changed *bool) {
	for _, s := range c.Sub {
		substCond(s, state, changed)
	}
	for _, v := range []*ir.Value{&c.L, &c.R, &c.Val} {
		if reg, ok := v.AsReg(); ok {
			if val, known := state.known[reg]; known {
				*v = ir.NewConstValue(ir.NewScoreConst(val))
				*changed = true
			}
		}
	}
}

// evalCond decides a condition whose operands are all constants.
func evalCond(c *ir.Condition, state *constState) (bool, bool) {
	switch c.Kind {
	case ir.CondConst:
		return c.B, true
	case ir.CondNot:
		v, ok := evalCond(c.Sub[0], state)
		return !v, ok
	case ir.CondAnd, ir.CondOr, ir.CondXor:
		vals := make([]bool, len(c.Sub))
		for i, s := range c.Sub {
			v, ok := evalCond(s, state)
			if !ok {
				return false, false
			}
			vals[i] = v
		}
		switch c.Kind {
		case ir.CondAnd:
			for _, v := range vals {
				if !v {
					return false, true
				}
			}
			return true, true
		case ir.CondOr:
			for _, v := range vals {
				if v {
					return true, true
				}
			}
			return false, true
		default:
			out := false
			for _, v := range vals {
				out = out != v
			}
			return out, true
		}
	case ir.CondEqual, ir.CondGreater, ir.CondGreaterEq, ir.CondLess, ir.CondLessEq:
		l, lok := c.L.ConstScore()
		r, rok := c.R.ConstScore()
		if !lok || !rok {
			return false, false
		}
		switch c.Kind {
		case ir.CondEqual:
			return l == r, true
		case ir.CondGreater:
			return l > r, true
		case ir.CondGreaterEq:
			return l >= r, true
		case ir.CondLess:
			return l < r, true
		default:
			return l <= r, true
		}
	case ir.CondBool, ir.CondNotBool:
		v, ok := c.Val.ConstScore()
		if !ok {
			return false, false
		}
		return (v != 0) == (c.Kind == ir.CondBool), true
	}
	return false, false
}

// foldInto folds `op reg, const` into the assignment that defined
// reg, deleting the arithmetic instruction.
func foldInto(in *mir.Instr, state *constState, remove map[int]bool, f *mir.Func, i int) bool {
	if in.Dst.Kind != ir.MutReg || len(in.Mods) != 0 {
		return false
	}
	reg := in.Dst.Reg
	cur, known := state.known[reg]
	if !known {
		return false
	}
	c, ok := in.Src.ConstScore()
	if !ok && in.Kind != mir.InstrAbs {
		return false
	}

	var next int32
	switch in.Kind {
	case mir.InstrAdd:
		next = cur + c
	case mir.InstrSub:
		next = cur - c
	case mir.InstrMul:
		next = cur * c
	case mir.InstrDiv:
		if c == 0 {
			return false
		}
		next = floorDiv(cur, c)
	case mir.InstrMod:
		if c == 0 {
			return false
		}
		next = floorMod(cur, c)
	case mir.InstrMin:
		next = min32(cur, c)
	case mir.InstrMax:
		next = max32(cur, c)
	case mir.InstrAbs:
		next = cur
		if next < 0 {
			next = -next
		}
	default:
		return false
	}

	def := f.Instrs[state.def[reg]]
	def.Binding.Val = ir.NewConstValue(ir.NewScoreConst(next))
	state.known[reg] = next
	remove[i] = true
	return true
}

// trackWrites updates the known-constant state for an instruction's
// destinations. Writes under a condition only invalidate.
func trackWrites(in *mir.Instr, state *constState, i int, guarded bool) {
	killMut := func(m ir.MutableValue) {
		if m.Kind == ir.MutReg && m.Reg != "" {
			state.kill(m.Reg)
		}
	}
	for idx := range in.Mods {
		m := in.Mods[idx]
		if m.Kind == ir.ModStoreResult || m.Kind == ir.ModStoreSuccess {
			killMut(m.Store.Val)
		}
	}

	switch in.Kind {
	case mir.InstrAssign:
		if in.Dst.Kind != ir.MutReg {
			return
		}
		if guarded || len(in.Mods) != 0 {
			state.kill(in.Dst.Reg)
			return
		}
		if c, ok := in.Binding.Val.ConstScore(); ok && in.Binding.Kind == ir.BindValue {
			state.known[in.Dst.Reg] = c
			state.def[in.Dst.Reg] = i
		} else {
			state.kill(in.Dst.Reg)
		}
	case mir.InstrSwap:
		killMut(in.Dst)
		killMut(in.Src2)
	case mir.InstrCall:
		for _, r := range in.Call.Ret {
			killMut(r)
		}
	case mir.InstrIf:
		trackWrites(in.Body, state, i, true)
	default:
		killMut(in.Dst)
	}
}

func hasConditionalMods(in *mir.Instr) bool {
	for idx := range in.Mods {
		switch in.Mods[idx].Kind {
		case ir.ModIf, ir.ModStoreResult, ir.ModStoreSuccess:
			return true
		}
	}
	return false
}

// floorDiv matches the target's flooring division semantics.
func floorDiv(a, b int32) int32 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func floorMod(a, b int32) int32 {
	r := a % b
	if r != 0 && ((r < 0) != (b < 0)) {
		r += b
	}
	return r
}

func min32(a, b int32) int32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b int32) int32 {
	if a > b {
		return a
	}
	return b
}
