package lir

import (
	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
)

// condTerm is one canonical if/unless modifier.
type condTerm struct {
	cond   *ir.IfCond
	negate bool
}

// maxInlineOrCost is the total term cost above which an OR lowers to
// an internal function with early returns instead of the inline
// scoreboard accumulator. Expensive conditions benefit from the
// short-circuit.
const maxInlineOrCost = 40.0

// lowerCondition canonicalizes a condition tree into a prelude of
// instructions plus a list of if/unless terms that AND together.
// AND becomes term concatenation; OR and XOR accumulate through a
// temporary bool register; NOT distributes by De Morgan.
func (cx *blockCx) lowerCondition(cond *ir.Condition) ([]*Instr, []condTerm, error) {
	var prelude []*Instr
	var out []condTerm

	switch cond.Kind {
	case ir.CondConst:
		out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfConst, B: cond.B}})

	case ir.CondEqual:
		term, err := cx.lowerComparison(cond)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, term)

	case ir.CondGreater, ir.CondGreaterEq, ir.CondLess, ir.CondLessEq:
		term, err := cx.lowerComparison(cond)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, term)

	case ir.CondExists:
		ty, err := cond.Val.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, nil, diag.InvalidCondition("%v", err)
		}
		if ty.IsScore() {
			if cond.Val.Kind == ir.ValConst {
				out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfConst, B: true}})
			} else {
				out = append(out, condTerm{cond: &ir.IfCond{
					Kind: ir.IfScoreRange,
					Left: cond.Val.Mut,
				}})
			}
		} else {
			if cond.Val.Kind == ir.ValConst {
				out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfConst, B: true}})
			} else {
				out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfData, Data: cond.Val.Mut}})
			}
		}

	case ir.CondBool, ir.CondNotBool:
		ty, err := cond.Val.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, nil, diag.InvalidCondition("%v", err)
		}
		if !ty.IsScore() {
			return nil, nil, diag.InvalidCondition("bool check requires a score-backed value, got %s", ty)
		}
		check := cond.Kind == ir.CondBool
		if cond.Val.Kind == ir.ValConst {
			out = append(out, condTerm{cond: &ir.IfCond{
				Kind: ir.IfConst,
				B:    (cond.Val.Const.I != 0) == check,
			}})
		} else {
			out = append(out, condTerm{cond: ir.ScoreEquals(
				cond.Val.Mut,
				ir.NewConstValue(ir.NewBoolConst(check)),
			)})
		}

	case ir.CondEntity:
		out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfEntity, Sel: cond.Sel}})

	case ir.CondPredicate:
		out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfPredicate, ID: cond.ID}})

	case ir.CondBiome:
		out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfBiome, ID: cond.ID, Pos: cond.Pos}})

	case ir.CondData:
		if cond.Val.Kind != ir.ValMut {
			return nil, nil, diag.InvalidCondition("data presence check requires a mutable location")
		}
		out = append(out, condTerm{cond: &ir.IfCond{Kind: ir.IfData, Data: cond.Val.Mut}})

	case ir.CondNot:
		subPrelude, terms, err := cx.lowerCondition(cond.Sub[0])
		if err != nil {
			return nil, nil, err
		}
		prelude = append(prelude, subPrelude...)
		if len(terms) == 1 {
			terms[0].negate = !terms[0].negate
			out = append(out, terms[0])
		} else {
			// not(a && b && ...) == !a || !b || ...
			lists := make([][]condTerm, len(terms))
			for i, t := range terms {
				t.negate = !t.negate
				lists[i] = []condTerm{t}
			}
			or, orPrelude, err := cx.lowerOr(lists)
			if err != nil {
				return nil, nil, err
			}
			prelude = append(prelude, orPrelude...)
			out = append(out, or)
		}

	case ir.CondAnd:
		for _, sub := range cond.Sub {
			subPrelude, terms, err := cx.lowerCondition(sub)
			if err != nil {
				return nil, nil, err
			}
			prelude = append(prelude, subPrelude...)
			out = append(out, terms...)
		}

	case ir.CondOr:
		lists := make([][]condTerm, 0, len(cond.Sub))
		for _, sub := range cond.Sub {
			subPrelude, terms, err := cx.lowerCondition(sub)
			if err != nil {
				return nil, nil, err
			}
			prelude = append(prelude, subPrelude...)
			lists = append(lists, terms)
		}
		if len(lists) == 1 {
			out = append(out, lists[0]...)
			break
		}
		or, orPrelude, err := cx.lowerOr(lists)
		if err != nil {
			return nil, nil, err
		}
		prelude = append(prelude, orPrelude...)
		out = append(out, or)

	case ir.CondXor:
		term, xorPrelude, err := cx.lowerXor(cond.Sub[0], cond.Sub[1])
		if err != nil {
			return nil, nil, err
		}
		prelude = append(prelude, xorPrelude...)
		out = append(out, term)

	default:
		return nil, nil, diag.Internal("unhandled condition kind %d", cond.Kind)
	}

	return prelude, out, nil
}

func (cx *blockCx) lowerComparison(cond *ir.Condition) (condTerm, error) {
	lty, err := cond.L.Type(cx.regs, cx.sig)
	if err != nil {
		return condTerm{}, diag.InvalidCondition("%v", err)
	}
	rty, err := cond.R.Type(cx.regs, cx.sig)
	if err != nil {
		return condTerm{}, diag.InvalidCondition("%v", err)
	}
	if !lty.IsScore() || !rty.IsScore() {
		return condTerm{}, diag.InvalidCondition("comparison requires score operands, got %s and %s", lty, rty)
	}

	l, r := cond.L, cond.R
	if cond.Kind == ir.CondEqual {
		lc, lok := l.ConstScore()
		rc, rok := r.ConstScore()
		if lok && rok {
			return condTerm{cond: &ir.IfCond{Kind: ir.IfConst, B: lc == rc}}, nil
		}
		// Keep the mutable operand on the left.
		if lok {
			l, r = r, l
		}
		return condTerm{cond: ir.ScoreEquals(l.Mut, r)}, nil
	}

	if l.Kind != ir.ValMut {
		return condTerm{}, diag.InvalidCondition("range comparison requires a mutable left operand")
	}
	out := &ir.IfCond{Kind: ir.IfScoreRange, Left: l.Mut}
	switch cond.Kind {
	case ir.CondGreater:
		out.Min = ir.FixedEnd(r, false)
	case ir.CondGreaterEq:
		out.Min = ir.FixedEnd(r, true)
	case ir.CondLess:
		out.Max = ir.FixedEnd(r, false)
	case ir.CondLessEq:
		out.Max = ir.FixedEnd(r, true)
	}
	return condTerm{cond: out}, nil
}

// lowerOr canonicalizes a disjunction of term lists into a single
// term. Cheap disjunctions accumulate into a temporary bool register
// with `store success` and guarded adds; expensive ones move to an
// internal function whose early returns short-circuit.
func (cx *blockCx) lowerOr(lists [][]condTerm) (condTerm, []*Instr, error) {
	if len(lists) < 2 {
		return condTerm{}, nil, diag.Internal("or lowering requires at least two terms")
	}

	total := 0.0
	for _, list := range lists {
		for _, t := range list {
			total += t.cond.Cost()
		}
	}
	if total >= maxInlineOrCost {
		return cx.lowerOrFunction(lists)
	}
	return cx.lowerOrInline(lists)
}

// lowerOrInline: r = success(first); for each other term: if term:
// add r 1; result is `if score r matches 1..`.
func (cx *blockCx) lowerOrInline(lists [][]condTerm) (condTerm, []*Instr, error) {
	reg := cx.newTempReg(ir.TypeBool)
	var prelude []*Instr

	first := &Instr{Kind: InstrNoOp}
	first.Mods = append(first.Mods, ir.Modifier{
		Kind:  ir.ModStoreSuccess,
		Store: ir.ScoreStore(reg),
	})
	for _, t := range lists[0] {
		first.Mods = append(first.Mods, ir.IfModifier(t.cond, t.negate))
	}
	prelude = append(prelude, first)

	for _, list := range lists[1:] {
		add := &Instr{
			Kind: InstrAddScore,
			Dst:  reg,
			Src:  ir.NewConstValue(ir.NewScoreConst(1)),
		}
		for _, t := range list {
			add.Mods = append(add.Mods, ir.IfModifier(t.cond, t.negate))
		}
		prelude = append(prelude, add)
	}

	return condTerm{cond: ir.ScoreMatches(reg, 1)}, prelude, nil
}

// lowerOrFunction mints an internal function returning 1 on the first
// matching term and conditions on `if function`.
func (cx *blockCx) lowerOrFunction(lists [][]condTerm) (condTerm, []*Instr, error) {
	var instrs []*Instr
	for _, list := range lists {
		ret := &Instr{Kind: InstrReturnValue, Ret: 1}
		for _, t := range list {
			ret.Mods = append(ret.Mods, ir.IfModifier(t.cond, t.negate))
		}
		instrs = append(instrs, ret)
	}
	name := cx.mintFunc(instrs)
	return condTerm{cond: &ir.IfCond{Kind: ir.IfFunction, ID: name}}, nil, nil
}

// lowerXor: r = success(a); if b: remove r 1; result is
// `unless score r matches 0`, true when exactly one side held.
func (cx *blockCx) lowerXor(a, b *ir.Condition) (condTerm, []*Instr, error) {
	aPrelude, aTerms, err := cx.lowerCondition(a)
	if err != nil {
		return condTerm{}, nil, err
	}
	bPrelude, bTerms, err := cx.lowerCondition(b)
	if err != nil {
		return condTerm{}, nil, err
	}

	reg := cx.newTempReg(ir.TypeBool)
	prelude := append(aPrelude, bPrelude...)

	store := &Instr{Kind: InstrNoOp}
	store.Mods = append(store.Mods, ir.Modifier{
		Kind:  ir.ModStoreSuccess,
		Store: ir.ScoreStore(reg),
	})
	for _, t := range aTerms {
		store.Mods = append(store.Mods, ir.IfModifier(t.cond, t.negate))
	}
	prelude = append(prelude, store)

	sub := &Instr{
		Kind: InstrSubScore,
		Dst:  reg,
		Src:  ir.NewConstValue(ir.NewScoreConst(1)),
	}
	for _, t := range bTerms {
		sub.Mods = append(sub.Mods, ir.IfModifier(t.cond, t.negate))
	}
	prelude = append(prelude, sub)

	return condTerm{
		cond:   ir.ScoreEquals(reg, ir.NewConstValue(ir.NewScoreConst(0))),
		negate: true,
	}, prelude, nil
}
