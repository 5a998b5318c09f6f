package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// MIRSimplifyPass is the catalogue of algebraic peephole rewrites on
// MIR instructions.
type MIRSimplifyPass struct{}

func (*MIRSimplifyPass) Name() string { return "simplify_mir" }

func (p *MIRSimplifyPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	for {
		again := runSimplifyIter(f)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

func runSimplifyIter(f *mir.Func) bool {
	remove := map[int]bool{}
	changed := false

	for i, in := range f.Instrs {
		target := in
		if in.Kind == mir.InstrIf {
			target = in.Body
		}
		switch simplifyInstr(target) {
		case simplifyDrop:
			remove[i] = true
			changed = true
		case simplifyChanged:
			changed = true
		}
	}

	f.Instrs = removeIndices(f.Instrs, remove)
	return changed
}

type simplifyResult uint8

const (
	simplifyKeep simplifyResult = iota
	simplifyChanged
	simplifyDrop
)

func simplifyInstr(in *mir.Instr) simplifyResult {
	c, isConst := in.Src.ConstScore()
	sameOperand := in.Src.Kind == ir.ValMut && in.Src.Mut.Same(in.Dst)

	setTo := func(v int32) simplifyResult {
		*in = mir.Instr{
			Kind:    mir.InstrAssign,
			Dst:     in.Dst,
			Binding: ir.Binding{Kind: ir.BindValue, Val: ir.NewConstValue(ir.NewScoreConst(v))},
			Mods:    in.Mods,
		}
		return simplifyChanged
	}

	switch in.Kind {
	case mir.InstrSwap:
		// Reflexive: swapping a value with itself.
		if in.Src2.Same(in.Dst) {
			return simplifyDrop
		}
	case mir.InstrAdd, mir.InstrSub:
		if isConst && c == 0 {
			return simplifyDrop
		}
	case mir.InstrMul:
		if isConst && c == 1 {
			return simplifyDrop
		}
		if isConst && c == 0 && in.Dst.Kind == ir.MutReg {
			return setTo(0)
		}
	case mir.InstrDiv:
		if isConst && c == 1 {
			return simplifyDrop
		}
		// Division by zero errors out in the game and leaves the
		// score unchanged.
		if isConst && c == 0 {
			return simplifyDrop
		}
		if sameOperand && in.Dst.Kind == ir.MutReg {
			return setTo(1)
		}
	case mir.InstrMod:
		if isConst && c == 1 {
			return setTo(0)
		}
		if isConst && c == 0 {
			return simplifyDrop
		}
	case mir.InstrAnd:
		if sameOperand {
			return simplifyDrop
		}
		if isConst && c == 0 {
			return setTo(0)
		}
		if isConst && c == 1 {
			return simplifyDrop
		}
	case mir.InstrOr:
		if sameOperand {
			return simplifyDrop
		}
		if isConst && c == 1 {
			return setTo(1)
		}
		if isConst && c == 0 {
			return simplifyDrop
		}
	case mir.InstrXor:
		if sameOperand && in.Dst.Kind == ir.MutReg {
			return setTo(0)
		}
	case mir.InstrMerge:
		// Merging an empty compound does nothing.
		if in.Src.Kind == ir.ValConst && in.Src.Const.Ty == ir.TypeNAny && in.Src.Const.Raw == "{}" {
			return simplifyDrop
		}
	case mir.InstrPow:
		if in.Exp == 1 {
			return simplifyDrop
		}
	case mir.InstrAssign:
		// Self-assignment.
		if in.Binding.Kind == ir.BindValue && in.Binding.Val.Kind == ir.ValMut &&
			in.Binding.Val.Mut.Same(in.Dst) {
			return simplifyDrop
		}
	case mir.InstrNoOp:
		if !hasStoreMods(in) {
			return simplifyDrop
		}
	}
	return simplifyKeep
}

func hasStoreMods(in *mir.Instr) bool {
	for idx := range in.Mods {
		k := in.Mods[idx].Kind
		if k == ir.ModStoreResult || k == ir.ModStoreSuccess {
			return true
		}
	}
	return false
}
