package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// MergeModifiersPass merges compatible adjacent modifiers on one
// instruction. The main win is two half-open score range checks on
// the same cell collapsing into a single closed `matches a..b`.
type MergeModifiersPass struct{}

func (*MergeModifiersPass) Name() string { return "merge_modifiers" }

func (p *MergeModifiersPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	for _, in := range f.Instrs {
		if len(in.Mods) < 2 {
			continue
		}
		if mergeModWindow(in) {
			changed = true
		}
	}
	return changed, nil
}

func mergeModWindow(in *lir.Instr) bool {
	out := in.Mods[:0:0]
	changed := false
	for _, m := range in.Mods {
		if len(out) > 0 {
			if merged, ok := mergeModPair(out[len(out)-1], m); ok {
				out[len(out)-1] = merged
				changed = true
				continue
			}
		}
		out = append(out, m)
	}
	in.Mods = out
	return changed
}

func mergeModPair(a, b ir.Modifier) (ir.Modifier, bool) {
	if a.Kind != ir.ModIf || b.Kind != ir.ModIf || a.Negate || b.Negate {
		return a, false
	}
	l, r := a.If, b.If
	if l.Kind != ir.IfScoreRange || r.Kind != ir.IfScoreRange || !l.Left.Same(r.Left) {
		return a, false
	}
	// One side bounded below, the other above. Only constant ends
	// merge; a closed range with register ends has no single command
	// form.
	constEnd := func(e ir.RangeEnd) bool {
		_, ok := e.Val.ConstScore()
		return !e.Set || ok
	}
	if !constEnd(l.Min) || !constEnd(l.Max) || !constEnd(r.Min) || !constEnd(r.Max) {
		return a, false
	}
	if l.Min.Set && !l.Max.Set && !r.Min.Set && r.Max.Set {
		merged := *l
		merged.Max = r.Max
		return ir.IfModifier(&merged, false), true
	}
	if !l.Min.Set && l.Max.Set && r.Min.Set && !r.Max.Set {
		merged := *r
		merged.Max = l.Max
		return ir.IfModifier(&merged, false), true
	}
	return a, false
}

// NullModifiersPass removes modifiers that cannot affect their
// instruction: `as @s` context changes and exact duplicates of the
// preceding modifier.
type NullModifiersPass struct{}

func (*NullModifiersPass) Name() string { return "null_modifiers" }

func (p *NullModifiersPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	for _, in := range f.Instrs {
		if len(in.Mods) == 0 {
			continue
		}
		out := in.Mods[:0:0]
		for _, mod := range in.Mods {
			if mod.Kind == ir.ModAs && mod.Sel.IsBlankThis() {
				changed = true
				continue
			}
			if len(out) > 0 && sameContextMod(out[len(out)-1], mod) {
				changed = true
				continue
			}
			out = append(out, mod)
		}
		in.Mods = out
	}
	return changed, nil
}

// SelectorReorderPass reorders entity selector arguments so cheap
// filters evaluate before expensive ones, preserving the matched
// set.
type SelectorReorderPass struct{}

func (*SelectorReorderPass) Name() string { return "reorder_selectors" }

func (p *SelectorReorderPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	for _, in := range f.Instrs {
		if in.Sel.SortParams() {
			changed = true
		}
		if in.Sel2.SortParams() {
			changed = true
		}
		for idx := range in.Mods {
			mod := &in.Mods[idx]
			if mod.Kind == ir.ModAs || mod.Kind == ir.ModAt {
				if mod.Sel.SortParams() {
					changed = true
				}
			}
			if mod.Kind == ir.ModIf && mod.If.Kind == ir.IfEntity {
				if mod.If.Sel.SortParams() {
					changed = true
				}
			}
		}
	}
	return changed, nil
}
