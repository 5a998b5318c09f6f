package passes

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// inlineCostThreshold is the body cost at or below which a function
// is always an inline candidate, regardless of call count.
const inlineCostThreshold = 12

// InlinePass replaces calls to small or single-use functions with
// their bodies. Callee registers get fresh identifiers; argument and
// return slot references rewrite to the caller's values. Functions
// minted by lowering share the caller's register scope and inline
// without renaming.
type InlinePass struct {
	// fresh numbers inlined register copies across the whole run.
	fresh int
}

func (*InlinePass) Name() string { return "inline" }

func (p *InlinePass) RunModule(cx *MIRCx) (bool, error) {
	candidates := inlineCandidates(cx.Mod)
	if len(candidates) == 0 {
		return false, nil
	}

	changed := false
	for _, id := range cx.Mod.SortedIDs() {
		f := cx.Mod.Funcs[id]
		repl := map[int][]*mir.Instr{}
		for i, in := range f.Instrs {
			if in.Kind != mir.InstrCall || !candidates[in.Call.Function] || in.Call.Function == id {
				continue
			}
			callee := cx.Mod.Funcs[in.Call.Function]
			body, ok, err := p.inlinedBody(in, callee)
			if err != nil {
				return false, fmt.Errorf("inlining %s into %s: %w", in.Call.Function, id, err)
			}
			if ok {
				repl[i] = body
			}
		}
		if len(repl) > 0 {
			f.Instrs = replaceExpand(f.Instrs, repl)
			cx.Touch(id)
			changed = true
		}
	}
	return changed, nil
}

// inlineCandidates selects functions that are safe and profitable to
// inline: never preserve/no_strip, and either called exactly once or
// cheap enough to duplicate. Argument slots must be written before
// any read, a precondition of slot reuse across call sites.
func inlineCandidates(m *mir.Module) map[string]bool {
	counts := map[string]int{}
	for _, id := range m.SortedIDs() {
		for _, in := range m.Funcs[id].Instrs {
			forEachCall(in, func(target string) {
				counts[target]++
			})
		}
	}

	out := map[string]bool{}
	for _, id := range m.SortedIDs() {
		f := m.Funcs[id]
		ann := f.Interface.Annotations
		if ann.Preserve || ann.NoStrip {
			continue
		}
		if callsSelf(f) {
			continue
		}
		if counts[id] == 1 || bodyCost(f) <= inlineCostThreshold {
			out[id] = true
		}
	}
	return out
}

func forEachCall(in *mir.Instr, f func(string)) {
	if in.Kind == mir.InstrCall {
		f(in.Call.Function)
	}
	if in.Body != nil {
		forEachCall(in.Body, f)
	}
}

func callsSelf(f *mir.Func) bool {
	self := false
	for _, in := range f.Instrs {
		forEachCall(in, func(target string) {
			if target == f.Interface.ID {
				self = true
			}
		})
	}
	return self
}

// bodyCost weighs instructions by rough emitted-command expense.
func bodyCost(f *mir.Func) int {
	cost := 0
	for _, in := range f.Instrs {
		switch in.Kind {
		case mir.InstrDeclare, mir.InstrComment, mir.InstrNoOp:
		case mir.InstrCall, mir.InstrCallExtern:
			cost += 4
		case mir.InstrIf:
			cost += 2 + len(in.Mods)
		default:
			cost += 1 + len(in.Mods)
		}
	}
	return cost
}

// inlinedBody clones the callee body into a caller context. Returns
// ok=false when the call shape cannot be inlined soundly.
func (p *InlinePass) inlinedBody(call *mir.Instr, callee *mir.Func) ([]*mir.Instr, bool, error) {
	// A callee that writes its own argument slots would need
	// materialized temporaries; leave those to the calling
	// convention.
	for _, in := range callee.Instrs {
		if writesArgSlot(in) {
			return nil, false, nil
		}
	}

	shared := callee.Interface.Scope != ""
	rename := map[string]string{}

	var out []*mir.Instr
	for _, in := range callee.Instrs {
		c := in.Clone()

		if !shared {
			c.ReplaceRegs(func(reg *string) {
				to, ok := rename[*reg]
				if !ok {
					to = fmt.Sprintf("__inline_%d_%s", p.fresh, *reg)
					rename[*reg] = to
				}
				*reg = to
			})
		}

		// Scope-shared bodies already speak in the root's registers
		// and slots; only real callees need slot rewiring.
		if !shared {
			if err := rewriteSlots(c, call.Call); err != nil {
				return nil, false, err
			}
		}

		// The call's modifier stack prefixes every inlined
		// instruction, same as flattening a nested block.
		c.Mods = append(cloneMods(call.Mods), c.Mods...)
		out = append(out, c)
	}
	if !shared {
		p.fresh++
	}
	return out, true, nil
}

func writesArgSlot(in *mir.Instr) bool {
	for _, m := range []ir.MutableValue{in.Dst, in.Src2} {
		if m.Kind == ir.MutArg {
			return true
		}
	}
	if in.Body != nil {
		return writesArgSlot(in.Body)
	}
	return false
}

// rewriteSlots replaces the callee's argument and return slot
// references with the caller's argument values and destinations.
func rewriteSlots(in *mir.Instr, call *ir.Call) error {
	var err error
	sub := func(m *ir.MutableValue) {
		switch m.Kind {
		case ir.MutArg:
			if m.Idx >= len(call.Args) {
				err = fmt.Errorf("argument slot %d out of range", m.Idx)
				return
			}
			arg := call.Args[m.Idx]
			if arg.Kind == ir.ValMut {
				*m = arg.Mut
			}
		case ir.MutReturn:
			if m.Idx < len(call.Ret) {
				*m = call.Ret[m.Idx]
			}
		}
	}
	subVal := func(v *ir.Value) {
		if v.Kind != ir.ValMut {
			return
		}
		if v.Mut.Kind == ir.MutArg {
			if v.Mut.Idx >= len(call.Args) {
				err = fmt.Errorf("argument slot %d out of range", v.Mut.Idx)
				return
			}
			*v = call.Args[v.Mut.Idx]
			return
		}
		sub(&v.Mut)
	}

	sub(&in.Dst)
	sub(&in.Src2)
	subVal(&in.Src)
	subVal(&in.Binding.Val)
	subVal(&in.Binding.Index)
	if in.Binding.Cond != nil {
		rewriteCondSlots(in.Binding.Cond, call, subVal)
	}
	if in.Cond != nil {
		rewriteCondSlots(in.Cond, call, subVal)
	}
	if in.Call != nil {
		for i := range in.Call.Args {
			subVal(&in.Call.Args[i])
		}
		for i := range in.Call.Ret {
			sub(&in.Call.Ret[i])
		}
	}
	for i := range in.Mods {
		m := &in.Mods[i]
		switch m.Kind {
		case ir.ModStoreResult, ir.ModStoreSuccess:
			sub(&m.Store.Val)
		case ir.ModIf:
			// MIR modifier stacks never carry lowered conditions.
		}
	}
	if in.Body != nil {
		if bodyErr := rewriteSlots(in.Body, call); bodyErr != nil {
			return bodyErr
		}
	}
	return err
}

func rewriteCondSlots(c *ir.Condition, call *ir.Call, subVal func(*ir.Value)) {
	for _, s := range c.Sub {
		rewriteCondSlots(s, call, subVal)
	}
	subVal(&c.L)
	subVal(&c.R)
	subVal(&c.Val)
}
