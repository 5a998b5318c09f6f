package lir

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/mir"
)

// blockCx is the per-function lowering context. Minted condition
// functions and temporary registers share the root function's
// register scope, so counters live at module level for deterministic
// naming across the whole run.
type blockCx struct {
	out   *Module
	src   *mir.Module
	regs  ir.RegisterList
	sig   *ir.Signature
	scope string
	temp  *int
	mint  *int
}

func (cx *blockCx) newTempReg(ty ir.DataType) ir.MutableValue {
	id := fmt.Sprintf("__lower_%d", *cx.temp)
	*cx.temp++
	cx.regs[id] = ir.Register{ID: id, Ty: ty}
	return ir.NewReg(id)
}

// mintFunc adds an internal function in the current register scope
// and returns its identifier.
func (cx *blockCx) mintFunc(instrs []*Instr) string {
	name := fmt.Sprintf("dpc:cond_%d", *cx.mint)
	*cx.mint++
	iface := ir.NewInterface(name)
	iface.Scope = cx.scope
	cx.out.Add(&Func{Interface: iface, Instrs: instrs, Regs: cx.regs})
	return name
}

// LowerModule specializes polymorphic MIR operations by operand type
// and canonicalizes condition trees into emit-ready modifier chains.
func LowerModule(src *mir.Module) (*Module, error) {
	out := NewModule()
	mint := 0

	// Functions minted into another function's register scope
	// reference registers declared by the root, so declarations merge
	// per scope before any body lowers.
	scopeRegs := map[string]ir.RegisterList{}
	scopeTemps := map[string]*int{}
	for _, id := range src.SortedIDs() {
		f := src.Funcs[id]
		scope := f.Interface.RegScope()
		regs, ok := scopeRegs[scope]
		if !ok {
			regs = ir.RegisterList{}
			scopeRegs[scope] = regs
			temp := 0
			scopeTemps[scope] = &temp
		}
		for rid, reg := range f.Registers() {
			regs[rid] = reg
		}
	}

	for _, id := range src.SortedIDs() {
		f := src.Funcs[id]
		scope := f.Interface.RegScope()
		// Argument and return slots inside a minted body belong to
		// the scope root, so its signature governs.
		sig := &f.Interface.Sig
		if root, ok := src.Funcs[scope]; ok {
			sig = &root.Interface.Sig
		}
		cx := &blockCx{
			out:   out,
			src:   src,
			regs:  scopeRegs[scope],
			sig:   sig,
			scope: scope,
			temp:  scopeTemps[scope],
			mint:  &mint,
		}
		var instrs []*Instr
		for _, in := range f.Instrs {
			lowered, err := cx.lowerInstr(in)
			if err != nil {
				return nil, fmt.Errorf("function %s: %w", id, err)
			}
			instrs = append(instrs, lowered...)
		}
		out.Add(&Func{Interface: f.Interface, Instrs: instrs, Regs: cx.regs})
	}

	return out, nil
}

func (cx *blockCx) lowerInstr(in *mir.Instr) ([]*Instr, error) {
	switch in.Kind {
	case mir.InstrNoOp:
		return nil, nil

	case mir.InstrDeclare:
		cx.regs[in.Dst.Reg] = ir.Register{ID: in.Dst.Reg, Ty: in.Ty}
		return nil, nil

	case mir.InstrAssign:
		return cx.lowerAssign(in)

	case mir.InstrAdd, mir.InstrSub, mir.InstrMul, mir.InstrDiv, mir.InstrMod,
		mir.InstrMin, mir.InstrMax:
		return cx.lowerArith(in)

	case mir.InstrAnd, mir.InstrOr, mir.InstrXor:
		return cx.lowerLogic(in)

	case mir.InstrSwap:
		return cx.lowerSwap(in)

	case mir.InstrAbs:
		ty, err := in.Dst.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		if !ty.IsScore() {
			return nil, diag.UnsupportedType("abs on %s", ty)
		}
		mul := &Instr{
			Kind: InstrMulScore,
			Dst:  in.Dst,
			Src:  ir.NewConstValue(ir.NewScoreConst(-1)),
		}
		neg := &ir.IfCond{
			Kind: ir.IfScoreRange,
			Left: in.Dst,
			Max:  ir.FixedEnd(ir.NewConstValue(ir.NewScoreConst(-1)), true),
		}
		mul.Mods = append(cloneMods(in.Mods), ir.IfModifier(neg, false))
		return []*Instr{mul}, nil

	case mir.InstrPow:
		return cx.lowerPow(in)

	case mir.InstrGet:
		ty, err := in.Dst.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		kind := InstrGetScore
		if ty.IsNBT() {
			kind = InstrGetData
		}
		return []*Instr{{Kind: kind, Dst: in.Dst, Mods: in.Mods}}, nil

	case mir.InstrMerge, mir.InstrPush, mir.InstrPushFront, mir.InstrInsert:
		return cx.lowerDataOp(in)

	case mir.InstrRemove:
		ty, err := in.Dst.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		kind := InstrResetScore
		if ty.IsNBT() {
			kind = InstrRemoveData
		}
		return []*Instr{{Kind: kind, Dst: in.Dst, Mods: in.Mods}}, nil

	case mir.InstrUse:
		return []*Instr{{Kind: InstrUse, Dst: in.Dst, Mods: in.Mods}}, nil

	case mir.InstrCall:
		return cx.lowerCall(in)

	case mir.InstrCallExtern:
		return []*Instr{{Kind: InstrCall, Func: in.Str, Mods: in.Mods}}, nil

	case mir.InstrIf:
		return cx.lowerIf(in)
	}

	kind, ok := gameKinds[in.Kind]
	if !ok {
		return nil, diag.Internal("unhandled MIR instruction kind %d", in.Kind)
	}
	return []*Instr{{
		Kind:   kind,
		Str:    in.Str,
		Sel:    in.Sel,
		Sel2:   in.Sel2,
		Pos:    in.Pos,
		Amount: in.Amount,
		Mods:   in.Mods,
	}}, nil
}

var gameKinds = map[mir.InstrKind]InstrKind{
	mir.InstrSay:      InstrSay,
	mir.InstrTell:     InstrTell,
	mir.InstrMe:       InstrMe,
	mir.InstrCmd:      InstrCmd,
	mir.InstrComment:  InstrComment,
	mir.InstrKill:     InstrKill,
	mir.InstrTeleport: InstrTeleport,
	mir.InstrXPSet:    InstrXPSet,
	mir.InstrXPAdd:    InstrXPAdd,
	mir.InstrXPGet:    InstrXPGet,
}

func (cx *blockCx) lowerAssign(in *mir.Instr) ([]*Instr, error) {
	dstTy, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}

	switch in.Binding.Kind {
	case ir.BindNull:
		return nil, nil

	case ir.BindValue:
		return cx.lowerSet(in.Dst, dstTy, in.Binding.Val, in.Mods)

	case ir.BindCast:
		srcTy, err := in.Binding.Val.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		if srcTy.CastableTo(dstTy) {
			return cx.lowerSet(in.Dst, dstTy, in.Binding.Val, in.Mods)
		}
		if in.Binding.Val.Kind != ir.ValMut {
			return nil, diag.UnsupportedType("cannot cast constant %s to %s", srcTy, dstTy)
		}
		// Non-trivial casts round-trip through an execute store.
		get := &Instr{Kind: InstrGetScore, Dst: in.Binding.Val.Mut}
		if srcTy.IsNBT() {
			get.Kind = InstrGetData
		}
		store := ir.Modifier{Kind: ir.ModStoreResult, Store: ir.ScoreStore(in.Dst)}
		if dstTy.IsNBT() {
			store.Store = ir.DataStore(in.Dst, dstTy, 1)
		}
		get.Mods = append(cloneMods(in.Mods), store)
		return []*Instr{get}, nil

	case ir.BindIndex:
		idx, ok := in.Binding.Index.ConstScore()
		if !ok {
			return nil, diag.UnsupportedType("index binding requires a constant score index")
		}
		temp := cx.newTempReg(dstTy)
		load := &Instr{
			Kind:  InstrConstIndexToScore,
			Dst:   temp,
			Src:   in.Binding.Val,
			Index: idx,
			Mods:  in.Mods,
		}
		set, err := cx.lowerSet(in.Dst, dstTy, ir.NewMutValue(temp), cloneMods(in.Mods))
		if err != nil {
			return nil, err
		}
		return append([]*Instr{load}, set...), nil

	case ir.BindCondition:
		prelude, terms, err := cx.lowerCondition(in.Binding.Cond)
		if err != nil {
			return nil, err
		}
		if !dstTy.IsScore() {
			return nil, diag.UnsupportedType("condition binding into %s", dstTy)
		}
		store := &Instr{Kind: InstrNoOp}
		store.Mods = append(cloneMods(in.Mods), ir.Modifier{
			Kind:  ir.ModStoreSuccess,
			Store: ir.ScoreStore(in.Dst),
		})
		for _, t := range terms {
			store.Mods = append(store.Mods, ir.IfModifier(t.cond, t.negate))
		}
		return append(prelude, store), nil
	}
	return nil, diag.Internal("unhandled binding kind %d", in.Binding.Kind)
}

func (cx *blockCx) lowerSet(dst ir.MutableValue, dstTy ir.DataType, src ir.Value, mods []ir.Modifier) ([]*Instr, error) {
	srcTy, err := src.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	if dstTy.IsScore() {
		if !srcTy.IsScore() {
			// A score can read an NBT integer cell through a store.
			if srcTy.IsNBTInt() && src.Kind == ir.ValMut {
				get := &Instr{Kind: InstrGetData, Dst: src.Mut}
				get.Mods = append(cloneMods(mods), ir.Modifier{
					Kind:  ir.ModStoreResult,
					Store: ir.ScoreStore(dst),
				})
				return []*Instr{get}, nil
			}
			return nil, diag.TypeMismatch("cannot assign %s to %s", srcTy, dstTy)
		}
		return []*Instr{{Kind: InstrSetScore, Dst: dst, Src: src, Mods: mods}}, nil
	}
	if srcTy.IsScore() && src.Kind == ir.ValMut {
		// NBT cell reading a score goes through a store as well.
		get := &Instr{Kind: InstrGetScore, Dst: src.Mut}
		get.Mods = append(cloneMods(mods), ir.Modifier{
			Kind:  ir.ModStoreResult,
			Store: ir.DataStore(dst, dstTy, 1),
		})
		return []*Instr{get}, nil
	}
	if srcTy.IsScore() {
		if dstTy.IsNBTInt() {
			// Integer literals re-type to the cell they land in.
			c := src.Const
			c.Ty = dstTy
			return []*Instr{{Kind: InstrSetData, Dst: dst, Src: ir.NewConstValue(c), Mods: mods}}, nil
		}
		return nil, diag.TypeMismatch("cannot assign score constant to %s", dstTy)
	}
	return []*Instr{{Kind: InstrSetData, Dst: dst, Src: src, Mods: mods}}, nil
}

var arithKinds = map[mir.InstrKind]InstrKind{
	mir.InstrAdd: InstrAddScore,
	mir.InstrSub: InstrSubScore,
	mir.InstrMul: InstrMulScore,
	mir.InstrDiv: InstrDivScore,
	mir.InstrMod: InstrModScore,
	mir.InstrMin: InstrMinScore,
	mir.InstrMax: InstrMaxScore,
}

func (cx *blockCx) lowerArith(in *mir.Instr) ([]*Instr, error) {
	dstTy, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	srcTy, err := in.Src.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	kind := arithKinds[in.Kind]

	if dstTy.IsScore() {
		if !srcTy.IsScore() {
			return nil, diag.UnsupportedType("%s on %s and %s", opName(in.Kind), dstTy, srcTy)
		}
		return []*Instr{{Kind: kind, Dst: in.Dst, Src: in.Src, Mods: in.Mods}}, nil
	}

	if !dstTy.IsNBTInt() || !srcTy.IsScore() {
		return nil, diag.UnsupportedType("%s on %s and %s", opName(in.Kind), dstTy, srcTy)
	}

	// NBT integer arithmetic round-trips through a score: load the
	// cell, operate, and store the result back with the cell's type.
	temp := cx.newTempReg(ir.TypeScore)
	load := &Instr{Kind: InstrGetData, Dst: in.Dst}
	load.Mods = append(cloneMods(in.Mods), ir.Modifier{
		Kind:  ir.ModStoreResult,
		Store: ir.ScoreStore(temp),
	})
	op := &Instr{Kind: kind, Dst: temp, Src: in.Src, Mods: cloneMods(in.Mods)}
	store := &Instr{Kind: InstrGetScore, Dst: temp}
	store.Mods = append(cloneMods(in.Mods), ir.Modifier{
		Kind:  ir.ModStoreResult,
		Store: ir.DataStore(in.Dst, dstTy, 1),
	})
	return []*Instr{load, op, store}, nil
}

func (cx *blockCx) lowerLogic(in *mir.Instr) ([]*Instr, error) {
	dstTy, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	srcTy, err := in.Src.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	if !dstTy.IsScore() || !srcTy.IsScore() {
		return nil, diag.UnsupportedType("%s on %s and %s", opName(in.Kind), dstTy, srcTy)
	}

	switch in.Kind {
	case mir.InstrAnd:
		return []*Instr{{Kind: InstrMulScore, Dst: in.Dst, Src: in.Src, Mods: in.Mods}}, nil
	case mir.InstrOr:
		return []*Instr{{Kind: InstrMaxScore, Dst: in.Dst, Src: in.Src, Mods: in.Mods}}, nil
	}
	// xor on 0/1 cells: add then keep the parity
	return []*Instr{
		{Kind: InstrAddScore, Dst: in.Dst, Src: in.Src, Mods: in.Mods},
		{Kind: InstrModScore, Dst: in.Dst, Src: ir.NewConstValue(ir.NewScoreConst(2)), Mods: cloneMods(in.Mods)},
	}, nil
}

func (cx *blockCx) lowerSwap(in *mir.Instr) ([]*Instr, error) {
	lty, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	rty, err := in.Src2.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	if lty.IsScore() && rty.IsScore() {
		return []*Instr{{Kind: InstrSwapScore, Dst: in.Dst, Src2: in.Src2, Mods: in.Mods}}, nil
	}
	if lty.IsNBT() && rty.IsNBT() {
		// temp = a; a = b; b = temp
		temp := cx.newTempReg(lty)
		return []*Instr{
			{Kind: InstrSetData, Dst: temp, Src: ir.NewMutValue(in.Dst), Mods: in.Mods},
			{Kind: InstrSetData, Dst: in.Dst, Src: ir.NewMutValue(in.Src2), Mods: cloneMods(in.Mods)},
			{Kind: InstrSetData, Dst: in.Src2, Src: ir.NewMutValue(temp), Mods: cloneMods(in.Mods)},
		}, nil
	}
	return nil, diag.UnsupportedType("swap on %s and %s", lty, rty)
}

func (cx *blockCx) lowerPow(in *mir.Instr) ([]*Instr, error) {
	ty, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	if !ty.IsScore() {
		return nil, diag.UnsupportedType("pow on %s", ty)
	}
	switch in.Exp {
	case 0:
		return []*Instr{{
			Kind: InstrSetScore,
			Dst:  in.Dst,
			Src:  ir.NewConstValue(ir.NewScoreConst(1)),
			Mods: in.Mods,
		}}, nil
	case 1:
		return nil, nil
	case 2:
		return []*Instr{{
			Kind: InstrMulScore,
			Dst:  in.Dst,
			Src:  ir.NewMutValue(in.Dst),
			Mods: in.Mods,
		}}, nil
	}
	// Higher powers multiply by a snapshot so the base stays fixed.
	temp := cx.newTempReg(ir.TypeScore)
	out := []*Instr{{
		Kind: InstrSetScore,
		Dst:  temp,
		Src:  ir.NewMutValue(in.Dst),
		Mods: in.Mods,
	}}
	for n := uint8(1); n < in.Exp; n++ {
		out = append(out, &Instr{
			Kind: InstrMulScore,
			Dst:  in.Dst,
			Src:  ir.NewMutValue(temp),
			Mods: cloneMods(in.Mods),
		})
	}
	return out, nil
}

var dataKinds = map[mir.InstrKind]InstrKind{
	mir.InstrMerge:     InstrMergeData,
	mir.InstrPush:      InstrPushData,
	mir.InstrPushFront: InstrPushFrontData,
	mir.InstrInsert:    InstrInsertData,
}

func (cx *blockCx) lowerDataOp(in *mir.Instr) ([]*Instr, error) {
	dstTy, err := in.Dst.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	srcTy, err := in.Src.Type(cx.regs, cx.sig)
	if err != nil {
		return nil, err
	}
	if !dstTy.IsNBT() || !srcTy.IsNBT() {
		return nil, diag.UnsupportedType("%s on %s and %s", opName(in.Kind), dstTy, srcTy)
	}
	return []*Instr{{
		Kind:  dataKinds[in.Kind],
		Dst:   in.Dst,
		Src:   in.Src,
		Index: in.Index,
		Mods:  in.Mods,
	}}, nil
}

// lowerCall materializes the calling convention: arguments move into
// the callee's globally shared argument slots, then the call runs,
// then return slots move into the call's destinations.
func (cx *blockCx) lowerCall(in *mir.Instr) ([]*Instr, error) {
	callee, ok := cx.src.Funcs[in.Call.Function]
	if !ok {
		return nil, diag.UndefinedFunction(in.Call.Function)
	}
	sig := callee.Interface.Sig
	if len(in.Call.Args) != len(sig.Params) {
		return nil, diag.TypeMismatch("%s expects %d arguments, got %d",
			in.Call.Function, len(sig.Params), len(in.Call.Args))
	}

	var out []*Instr
	for i, arg := range in.Call.Args {
		argTy, err := arg.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		if !argTy.CastableTo(sig.Params[i]) {
			return nil, diag.TypeMismatch("argument %d of %s: %s is not %s",
				i, in.Call.Function, argTy, sig.Params[i])
		}
		slot := ir.NewCallArg(i, in.Call.Function, sig.Params[i])
		set, err := cx.lowerSet(slot, sig.Params[i], arg, nil)
		if err != nil {
			return nil, err
		}
		out = append(out, set...)
	}

	out = append(out, &Instr{Kind: InstrCall, Func: in.Call.Function, Mods: in.Mods})

	for i, dst := range in.Call.Ret {
		if sig.Ret == ir.TypeNone {
			return nil, diag.TypeMismatch("%s does not return a value", in.Call.Function)
		}
		dstTy, err := dst.Type(cx.regs, cx.sig)
		if err != nil {
			return nil, err
		}
		slot := ir.NewCallReturn(i, in.Call.Function, sig.Ret)
		set, err := cx.lowerSet(dst, dstTy, ir.NewMutValue(slot), nil)
		if err != nil {
			return nil, err
		}
		out = append(out, set...)
	}
	return out, nil
}

// lowerIf canonicalizes the condition and guards the lowered body.
// Single-command bodies take the if modifiers in place; longer ones
// move to a minted internal function.
func (cx *blockCx) lowerIf(in *mir.Instr) ([]*Instr, error) {
	prelude, terms, err := cx.lowerCondition(in.Cond)
	if err != nil {
		return nil, err
	}

	// Compile-time-known terms drop out, or drop the whole body.
	kept := terms[:0]
	for _, t := range terms {
		if t.cond.Kind == ir.IfConst {
			if t.cond.B == t.negate {
				return prelude, nil
			}
			continue
		}
		kept = append(kept, t)
	}

	body, err := cx.lowerInstr(in.Body)
	if err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return prelude, nil
	}

	var target *Instr
	if len(body) == 1 {
		target = body[0]
	} else {
		name := cx.mintFunc(body)
		target = &Instr{Kind: InstrCall, Func: name}
	}

	mods := cloneMods(in.Mods)
	for _, t := range kept {
		mods = append(mods, ir.IfModifier(t.cond, t.negate))
	}
	target.Mods = append(mods, target.Mods...)
	return append(prelude, target), nil
}

func opName(k mir.InstrKind) string {
	names := map[mir.InstrKind]string{
		mir.InstrAdd: "add", mir.InstrSub: "sub", mir.InstrMul: "mul",
		mir.InstrDiv: "div", mir.InstrMod: "mod", mir.InstrMin: "min",
		mir.InstrMax: "max", mir.InstrAnd: "and", mir.InstrOr: "or",
		mir.InstrXor: "xor", mir.InstrMerge: "mrg", mir.InstrPush: "psh",
		mir.InstrPushFront: "pshf", mir.InstrInsert: "ins",
	}
	return names[k]
}

func cloneMods(mods []ir.Modifier) []ir.Modifier {
	return append([]ir.Modifier(nil), mods...)
}
