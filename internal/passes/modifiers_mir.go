package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// MIRModifierPass cleans modifier stacks: adjacent identical
// modifiers collapse to one, and null context changes (`as @s`) are
// dropped.
type MIRModifierPass struct{}

func (*MIRModifierPass) Name() string { return "simplify_modifiers" }

func (p *MIRModifierPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	for _, in := range f.Instrs {
		for target := in; target != nil; target = target.Body {
			if simplifyModStack(target) {
				changed = true
			}
		}
	}
	return changed, nil
}

func simplifyModStack(in *mir.Instr) bool {
	if len(in.Mods) == 0 {
		return false
	}
	out := in.Mods[:0]
	changed := false
	for _, m := range in.Mods {
		// `as @s` never changes the executor.
		if m.Kind == ir.ModAs && m.Sel.IsBlankThis() {
			changed = true
			continue
		}
		if len(out) > 0 && sameContextMod(out[len(out)-1], m) {
			changed = true
			continue
		}
		out = append(out, m)
	}
	in.Mods = out
	return changed
}

// sameContextMod reports two adjacent modifiers that apply the exact
// same context change, making the second redundant. Store and if
// modifiers never merge here; they have effects of their own.
func sameContextMod(a, b ir.Modifier) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case ir.ModAs, ir.ModAt:
		return a.Sel.String() == b.Sel.String()
	case ir.ModPositioned:
		return a.Pos == b.Pos
	case ir.ModIn, ir.ModAnchored, ir.ModAlign:
		return a.Str == b.Str
	}
	return false
}
