package lir

import "github.com/CarbonSmasher/dpc/internal/ir"

// InstrKind enumerates LIR instruction kinds. Unlike MIR, opcodes are
// specialized per data domain: score arithmetic and NBT data
// operations are distinct instructions shaped like the commands that
// implement them.
type InstrKind uint8

const (
	// InstrNoOp emits nothing on its own; it exists to carry store
	// and if modifiers.
	InstrNoOp InstrKind = iota
	// InstrSetScore assigns a score cell.
	InstrSetScore
	// InstrAddScore adds to a score cell.
	InstrAddScore
	// InstrSubScore subtracts from a score cell.
	InstrSubScore
	// InstrMulScore multiplies a score cell.
	InstrMulScore
	// InstrDivScore divides a score cell.
	InstrDivScore
	// InstrModScore takes a remainder in a score cell.
	InstrModScore
	// InstrMinScore saturates a score cell downward.
	InstrMinScore
	// InstrMaxScore saturates a score cell upward.
	InstrMaxScore
	// InstrSwapScore exchanges two score cells.
	InstrSwapScore
	// InstrGetScore reads a score cell for its result.
	InstrGetScore
	// InstrResetScore resets a score cell.
	InstrResetScore
	// InstrSetData assigns an NBT cell.
	InstrSetData
	// InstrMergeData deep-merges into an NBT compound.
	InstrMergeData
	// InstrGetData reads an NBT cell for its result.
	InstrGetData
	// InstrRemoveData removes an NBT subtree.
	InstrRemoveData
	// InstrPushData appends to an NBT list.
	InstrPushData
	// InstrPushFrontData prepends to an NBT list.
	InstrPushFrontData
	// InstrInsertData inserts into an NBT list.
	InstrInsertData
	// InstrConstIndexToScore loads a constant array index into a score.
	InstrConstIndexToScore
	// InstrCall runs another function.
	InstrCall
	// InstrReturnValue returns a result value from a function.
	InstrReturnValue
	// InstrSay emits chat from the executor.
	InstrSay
	// InstrTell whispers to a target.
	InstrTell
	// InstrMe emits third-person chat.
	InstrMe
	// InstrCmd passes a raw command through.
	InstrCmd
	// InstrComment emits a source comment.
	InstrComment
	// InstrKill kills the target.
	InstrKill
	// InstrTeleport teleports a target.
	InstrTeleport
	// InstrXPSet sets experience.
	InstrXPSet
	// InstrXPAdd adds experience.
	InstrXPAdd
	// InstrXPGet reads experience.
	InstrXPGet
	// InstrUse marks a register as used for analyses.
	InstrUse
)

// Instr is one LIR instruction plus its execute-modifier stack.
type Instr struct {
	Kind InstrKind
	Dst  ir.MutableValue
	Src  ir.Value
	Src2 ir.MutableValue
	// Index is a list index for insert / const-index operations.
	Index int32
	// Func is a call target; Ret the payload of a return instruction.
	Func   string
	Ret    int32
	Str    string
	Sel    ir.Selector
	Sel2   ir.Selector
	Pos    string
	Amount int32
	Mods   []ir.Modifier
}

// WithMods attaches a modifier stack, outermost first.
func (i *Instr) WithMods(mods ...ir.Modifier) *Instr {
	i.Mods = append(mods, i.Mods...)
	return i
}

// IsScoreOp reports whether the instruction is a score-domain
// operation with a result usable by store fusion.
func (k InstrKind) IsScoreOp() bool {
	return k >= InstrSetScore && k <= InstrGetScore
}

// IsScoreArith reports score arithmetic (dst op= src).
func (k InstrKind) IsScoreArith() bool {
	return k >= InstrAddScore && k <= InstrMaxScore
}

// UsedRegs appends every register the instruction touches.
func (i *Instr) UsedRegs(regs []string) []string {
	regs = i.Dst.UsedRegs(regs)
	regs = i.Src.UsedRegs(regs)
	regs = i.Src2.UsedRegs(regs)
	for idx := range i.Mods {
		regs = i.Mods[idx].UsedRegs(regs)
	}
	return regs
}

// ReadRegs appends only registers whose value the instruction
// observes; a plain overwrite of a register does not count.
func (i *Instr) ReadRegs(regs []string) []string {
	switch i.Kind {
	case InstrSetScore, InstrSetData, InstrConstIndexToScore:
		if i.Dst.Kind != ir.MutReg {
			regs = i.Dst.UsedRegs(regs)
		}
	case InstrResetScore:
	default:
		regs = i.Dst.UsedRegs(regs)
	}
	regs = i.Src.UsedRegs(regs)
	regs = i.Src2.UsedRegs(regs)
	for idx := range i.Mods {
		regs = i.Mods[idx].UsedRegs(regs)
	}
	return regs
}

// ReplaceRegs rewrites register identifiers through f.
func (i *Instr) ReplaceRegs(f func(*string)) {
	i.Dst.ReplaceReg(f)
	i.Src.ReplaceReg(f)
	i.Src2.ReplaceReg(f)
	for idx := range i.Mods {
		i.Mods[idx].ReplaceReg(f)
	}
}

// ReplaceMutVals rewrites every mutable score value through f,
// including those inside modifiers.
func (i *Instr) ReplaceMutVals(f func(*ir.MutableValue)) {
	f(&i.Dst)
	if i.Src.Kind == ir.ValMut {
		f(&i.Src.Mut)
	}
	f(&i.Src2)
	for idx := range i.Mods {
		m := &i.Mods[idx]
		switch m.Kind {
		case ir.ModStoreResult, ir.ModStoreSuccess:
			f(&m.Store.Val)
		case ir.ModIf:
			c := m.If
			f(&c.Left)
			if c.Right.Kind == ir.ValMut {
				f(&c.Right.Mut)
			}
			if c.Min.Val.Kind == ir.ValMut {
				f(&c.Min.Val.Mut)
			}
			if c.Max.Val.Kind == ir.ValMut {
				f(&c.Max.Val.Mut)
			}
			f(&c.Data)
		}
	}
}

// Clone deep-copies the instruction.
func (i *Instr) Clone() *Instr {
	out := *i
	out.Mods = make([]ir.Modifier, len(i.Mods))
	for idx, m := range i.Mods {
		if m.Kind == ir.ModIf {
			c := *m.If
			m.If = &c
		}
		out.Mods[idx] = m
	}
	return &out
}

// HasSideEffect reports whether the instruction does something
// observable beyond writing registers.
func (i *Instr) HasSideEffect() bool {
	for idx := range i.Mods {
		if i.Mods[idx].HasExtraSideEffects() {
			return true
		}
	}
	switch i.Kind {
	case InstrNoOp, InstrUse, InstrComment, InstrGetScore, InstrGetData:
		return false
	case InstrCall, InstrReturnValue, InstrCmd, InstrSay, InstrTell, InstrMe,
		InstrKill, InstrTeleport, InstrXPSet, InstrXPAdd, InstrXPGet,
		InstrMergeData, InstrPushData, InstrPushFrontData, InstrInsertData,
		InstrRemoveData:
		return true
	}
	return i.Dst.Kind != ir.MutReg || (i.Kind == InstrSwapScore && i.Src2.Kind != ir.MutReg)
}
