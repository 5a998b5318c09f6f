package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// CopyPropPass eliminates straight-line copies `set %y, %x`: reads of
// %y are rewritten to %x while neither register is written in
// between. Once every later read has been rewritten the copy itself
// becomes a dead store and the DSE pass sweeps it.
type CopyPropPass struct{}

func (*CopyPropPass) Name() string { return "copy_prop" }

func (p *CopyPropPass) RunFunc(f *mir.Func, cx *MIRCx) (bool, error) {
	changed := false
	for {
		again := runCopyPropIter(f, cx)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

func runCopyPropIter(f *mir.Func, cx *MIRCx) bool {
	// copies maps a copied-to register to its source.
	copies := map[string]string{}
	changed := false

	killReg := func(reg string) {
		delete(copies, reg)
		for dst, src := range copies {
			if src == reg {
				delete(copies, dst)
			}
		}
	}

	for _, in := range f.Instrs {
		if callsScoped(in, cx) {
			copies = map[string]string{}
		}

		// Rewrite pure reads of copied registers to their sources.
		replaceReadRegs(in, func(reg *string) {
			if src, ok := copies[*reg]; ok {
				*reg = src
				changed = true
			}
		})

		// Any write invalidates copies in both directions.
		for _, w := range writtenRegs(in) {
			killReg(w)
		}

		if src, dst, ok := asRegCopy(in); ok {
			copies[dst] = src
		}
	}

	return changed
}

// replaceReadRegs rewrites only read positions; destinations of
// writes and read-modify-write operands stay put.
func replaceReadRegs(in *mir.Instr, f func(*string)) {
	switch in.Kind {
	case mir.InstrAssign:
		in.Binding.Val.ReplaceReg(f)
		in.Binding.Index.ReplaceReg(f)
		if in.Binding.Cond != nil {
			in.Binding.Cond.ReplaceReg(f)
		}
	case mir.InstrGet, mir.InstrUse:
		in.Dst.ReplaceReg(f)
	case mir.InstrCall:
		for idx := range in.Call.Args {
			in.Call.Args[idx].ReplaceReg(f)
		}
	case mir.InstrIf:
		in.Cond.ReplaceReg(f)
		replaceReadRegs(in.Body, f)
	case mir.InstrSwap, mir.InstrDeclare:
	default:
		in.Src.ReplaceReg(f)
	}
	for idx := range in.Mods {
		if in.Mods[idx].Kind == ir.ModIf {
			in.Mods[idx].If.ReplaceReg(f)
		}
	}
}

// asRegCopy matches an unconditional register-to-register assignment.
func asRegCopy(in *mir.Instr) (src, dst string, ok bool) {
	if in.Kind != mir.InstrAssign || in.Dst.Kind != ir.MutReg || len(in.Mods) != 0 {
		return "", "", false
	}
	if in.Binding.Kind != ir.BindValue {
		return "", "", false
	}
	srcReg, isReg := in.Binding.Val.AsReg()
	if !isReg || srcReg == in.Dst.Reg {
		return "", "", false
	}
	return srcReg, in.Dst.Reg, true
}

// writtenRegs lists registers the instruction writes.
func writtenRegs(in *mir.Instr) []string {
	var out []string
	add := func(m ir.MutableValue) {
		if m.Kind == ir.MutReg && m.Reg != "" {
			out = append(out, m.Reg)
		}
	}
	switch in.Kind {
	case mir.InstrDeclare, mir.InstrUse, mir.InstrGet:
	case mir.InstrSwap:
		add(in.Dst)
		add(in.Src2)
	case mir.InstrCall:
		for _, r := range in.Call.Ret {
			add(r)
		}
	case mir.InstrIf:
		out = append(out, writtenRegs(in.Body)...)
	default:
		add(in.Dst)
	}
	for idx := range in.Mods {
		m := in.Mods[idx]
		if m.Kind == ir.ModStoreResult || m.Kind == ir.ModStoreSuccess {
			add(m.Store.Val)
		}
	}
	return out
}
