// Package passes implements the MIR and LIR optimizers: fixed pass
// orderings run to a fixed point, with per-function change tracking
// so a pass skips functions nothing has touched since its last visit.
package passes

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/lir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// passBudget bounds the number of fixed-point rounds.
const passBudget = 8

// MIRFuncPass transforms one MIR function at a time. Passes run on a
// working copy; a failed pass commits nothing.
type MIRFuncPass interface {
	Name() string
	RunFunc(f *mir.Func, cx *MIRCx) (bool, error)
}

// MIRModulePass transforms the whole module (inlining, dead function
// removal).
type MIRModulePass interface {
	Name() string
	RunModule(cx *MIRCx) (bool, error)
}

// MIRCx carries the module and per-function version counters used to
// skip unchanged functions.
type MIRCx struct {
	Mod *mir.Module
	// versions bumps whenever any pass changes a function.
	versions map[string]int
	// seen[pass][fn] is the version the pass last ran against.
	seen map[string]map[string]int
}

func newMIRCx(m *mir.Module) *MIRCx {
	return &MIRCx{Mod: m, versions: map[string]int{}, seen: map[string]map[string]int{}}
}

// Touch records that a function body changed.
func (cx *MIRCx) Touch(id string) {
	cx.versions[id]++
}

func (cx *MIRCx) fresh(pass, fn string) bool {
	return cx.seen[pass][fn] != cx.versions[fn]+1
}

func (cx *MIRCx) mark(pass, fn string) {
	m := cx.seen[pass]
	if m == nil {
		m = map[string]int{}
		cx.seen[pass] = m
	}
	m[fn] = cx.versions[fn] + 1
}

// MIRPasses is the fixed MIR pass ordering.
func MIRPasses() []any {
	return []any{
		&MIRSimplifyPass{},
		&ConstComboPass{},
		&MultifoldLogicPass{},
		&DSEPass{},
		&CopyPropPass{},
		&MIRModifierPass{},
		&InlinePass{},
		&DCEPass{},
	}
}

// RunMIR runs the MIR optimizer to a fixed point or until the round
// budget is exhausted.
func RunMIR(m *mir.Module) error {
	cx := newMIRCx(m)
	ordering := MIRPasses()
	for round := 0; round < passBudget; round++ {
		changed := false
		for _, p := range ordering {
			c, err := runMIRPass(p, cx)
			if err != nil {
				return err
			}
			changed = changed || c
		}
		if !changed {
			break
		}
	}
	return nil
}

func runMIRPass(p any, cx *MIRCx) (bool, error) {
	switch pass := p.(type) {
	case MIRModulePass:
		changed, err := pass.RunModule(cx)
		if err != nil {
			return false, fmt.Errorf("pass %s: %w", pass.Name(), err)
		}
		return changed, nil
	case MIRFuncPass:
		changed := false
		for _, id := range cx.Mod.SortedIDs() {
			if !cx.fresh(pass.Name(), id) {
				continue
			}
			f := cx.Mod.Funcs[id]
			// Transactional: mutate a copy, commit only on success.
			work := cloneFunc(f)
			c, err := pass.RunFunc(work, cx)
			if err != nil {
				return false, fmt.Errorf("pass %s: function %s: %w", pass.Name(), id, err)
			}
			cx.mark(pass.Name(), id)
			if c {
				f.Instrs = work.Instrs
				cx.Touch(id)
				changed = true
			}
		}
		return changed, nil
	}
	return false, fmt.Errorf("pass %T implements no pass interface", p)
}

// ScopedCallee reports whether a MIR call targets an internal
// function sharing the caller's register namespace (an if/else or
// loop body minted by lowering). Such calls can read and write any of
// the caller's registers, so register analyses treat them as
// clobbering everything.
func (cx *MIRCx) ScopedCallee(target string) bool {
	f, ok := cx.Mod.Funcs[target]
	return ok && f.Interface.Scope != ""
}

// ScopeUses collects every register referenced by functions minted
// into the given register scope, excluding the root itself.
func (cx *MIRCx) ScopeUses(scope string) map[string]bool {
	used := map[string]bool{}
	for _, id := range cx.Mod.SortedIDs() {
		f := cx.Mod.Funcs[id]
		if f.Interface.Scope != scope || f.Interface.ID == scope {
			continue
		}
		for _, in := range f.Instrs {
			for _, reg := range in.UsedRegs(nil) {
				used[reg] = true
			}
		}
	}
	return used
}

// callsScoped walks an instruction (including boxed if-bodies) for a
// call into the caller's register scope.
func callsScoped(in *mir.Instr, cx *MIRCx) bool {
	if in.Kind == mir.InstrCall && cx.ScopedCallee(in.Call.Function) {
		return true
	}
	if in.Body != nil {
		return callsScoped(in.Body, cx)
	}
	return false
}

func cloneFunc(f *mir.Func) *mir.Func {
	out := &mir.Func{Interface: f.Interface}
	out.Instrs = make([]*mir.Instr, len(f.Instrs))
	for i, in := range f.Instrs {
		out.Instrs[i] = in.Clone()
	}
	return out
}

// LIRPass transforms one LIR function at a time.
type LIRPass interface {
	Name() string
	RunFunc(f *lir.Func, m *lir.Module) (bool, error)
}

// LIRPasses is the fixed LIR pass ordering.
func LIRPasses() []LIRPass {
	return []LIRPass{
		&LIRSimplifyPass{},
		&MergeModifiersPass{},
		&NullModifiersPass{},
		&SelectorReorderPass{},
		&StoreFusionPass{},
		&CopyElisionPass{},
	}
}

// RunLIR runs the LIR optimizer once through its fixed ordering.
func RunLIR(m *lir.Module) error {
	for _, pass := range LIRPasses() {
		for _, id := range m.SortedIDs() {
			f := m.Funcs[id]
			work := &lir.Func{Interface: f.Interface, Regs: f.Regs}
			work.Instrs = make([]*lir.Instr, len(f.Instrs))
			for i, in := range f.Instrs {
				work.Instrs[i] = in.Clone()
			}
			changed, err := pass.RunFunc(work, m)
			if err != nil {
				return fmt.Errorf("pass %s: function %s: %w", pass.Name(), id, err)
			}
			if changed {
				f.Instrs = work.Instrs
			}
		}
	}
	return nil
}
