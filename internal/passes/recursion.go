package passes

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// CheckRecursion verifies that no user function can reach itself
// through the call graph. Argument and return slots are globally
// shared across callers, so a recursive call would clobber its own
// frame; register coalescing refuses to run on such a module.
//
// Cycles made up purely of compiler-minted bodies (loop tails,
// if/else bodies) are the intended lowering of loops and pass: they
// carry no argument or return slots and share their root's register
// scope by construction.
func CheckRecursion(m *lir.Module) error {
	graph := map[string][]string{}
	for _, id := range m.SortedIDs() {
		f := m.Funcs[id]
		var targets []string
		for _, in := range f.Instrs {
			if in.Kind == lir.InstrCall {
				targets = append(targets, in.Func)
			}
			for _, mod := range in.Mods {
				if mod.Kind == ir.ModIf && mod.If.Kind == ir.IfFunction {
					targets = append(targets, mod.If.ID)
				}
			}
		}
		graph[id] = targets
	}

	minted := func(id string) bool {
		f, ok := m.Funcs[id]
		return ok && f.Interface.Scope != ""
	}

	const (
		white = 0
		gray  = 1
		black = 2
	)
	color := map[string]int{}

	var visit func(id string, stack []string) error
	visit = func(id string, stack []string) error {
		color[id] = gray
		stack = append(stack, id)
		for _, next := range graph[id] {
			switch color[next] {
			case gray:
				// Find the cycle and see whether any member is a
				// real function.
				cycle := cycleOf(stack, next)
				tolerated := true
				for _, member := range cycle {
					if !minted(member) {
						tolerated = false
						break
					}
				}
				if !tolerated {
					return fmt.Errorf("%w: %s is reachable from itself (%v)",
						diag.ErrRecursionViolation, next, cycle)
				}
			case white:
				if err := visit(next, stack); err != nil {
					return err
				}
			}
		}
		color[id] = black
		return nil
	}

	for _, id := range m.SortedIDs() {
		if color[id] == white {
			if err := visit(id, nil); err != nil {
				return err
			}
		}
	}
	return nil
}

func cycleOf(stack []string, entry string) []string {
	for i, id := range stack {
		if id == entry {
			return stack[i:]
		}
	}
	return stack
}
