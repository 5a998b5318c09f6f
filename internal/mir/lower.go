package mir

import (
	"fmt"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
)

// lowerCx carries per-run state for IR lowering. Fresh identifiers
// come from counters seeded here so two runs on the same input mint
// the same names.
type lowerCx struct {
	out     *Module
	ifBody  int
	loop    int
	called  map[string]bool
	externs map[string]bool
}

func (cx *lowerCx) newIfBodyFn() string {
	name := fmt.Sprintf("dpc:ifbody_%d", cx.ifBody)
	cx.ifBody++
	return name
}

func (cx *lowerCx) newLoopFn() string {
	name := fmt.Sprintf("dpc:loop_%d", cx.loop)
	cx.loop++
	return name
}

// LowerModule desugars structured IR control flow into linear MIR.
// Nested blocks are flattened under the enclosing modifier stack,
// if/else and loops become conditional calls to freshly minted
// internal functions, and return values become moves to the owning
// function's return slot. Call targets are resolved at the end;
// unresolved ones fail with diag.ErrUndefinedFunction.
func LowerModule(src *ir.Module) (*Module, error) {
	cx := &lowerCx{
		out:     NewModule(),
		called:  map[string]bool{},
		externs: map[string]bool{},
	}

	for _, id := range src.SortedIDs() {
		fn := src.Functions[id]
		instrs, err := cx.lowerBlock(fn, fn.Body, nil, id)
		if err != nil {
			return nil, fmt.Errorf("function %s: %w", id, err)
		}
		cx.out.Add(&Func{Interface: fn.Interface, Instrs: instrs})
	}

	for target := range cx.called {
		if _, ok := cx.out.Funcs[target]; !ok {
			return nil, diag.UndefinedFunction(target)
		}
	}

	return cx.out, nil
}

// lowerBlock flattens one IR block, prefixing every produced
// instruction with the accumulated modifier stack.
func (cx *lowerCx) lowerBlock(fn *ir.Function, block *ir.Block, prefix []ir.Modifier, scope string) ([]*Instr, error) {
	var out []*Instr
	for idx := range block.Contents {
		in := &block.Contents[idx]
		lowered, err := cx.lowerInstr(fn, in, prefix, scope)
		if err != nil {
			return nil, err
		}
		out = append(out, lowered...)
	}
	return out, nil
}

func (cx *lowerCx) lowerInstr(fn *ir.Function, in *ir.Instr, prefix []ir.Modifier, scope string) ([]*Instr, error) {
	mods := joinMods(prefix, in.Mods)

	switch in.Kind {
	case ir.InstrBlock:
		return cx.lowerBlock(fn, in.Body, mods, scope)

	case ir.InstrDeclare:
		out := []*Instr{{Kind: InstrDeclare, Dst: in.Dst, Ty: in.Ty}}
		if in.Binding.Kind != ir.BindNull {
			out = append(out, &Instr{
				Kind:    InstrAssign,
				Dst:     in.Dst,
				Binding: in.Binding,
				Mods:    mods,
			})
		}
		return out, nil

	case ir.InstrAssign:
		return []*Instr{{
			Kind:    InstrAssign,
			Dst:     in.Dst,
			Binding: ir.Binding{Kind: ir.BindValue, Val: in.Src},
			Mods:    mods,
		}}, nil

	case ir.InstrReturn:
		if fn.Interface.Sig.Ret == ir.TypeNone {
			return nil, diag.TypeMismatch("function %s does not declare a return type", fn.Interface.ID)
		}
		return []*Instr{{
			Kind:    InstrAssign,
			Dst:     ir.NewReturn(int(in.Index)),
			Binding: ir.Binding{Kind: ir.BindValue, Val: in.Src},
			Mods:    mods,
		}}, nil

	case ir.InstrIf:
		body, err := cx.lowerBlock(fn, in.Body, nil, scope)
		if err != nil {
			return nil, err
		}
		guarded, err := cx.guard(in.Cond, body, mods, scope)
		if err != nil {
			return nil, err
		}
		return []*Instr{guarded}, nil

	case ir.InstrIfElse:
		thenBody, err := cx.lowerBlock(fn, in.Body, nil, scope)
		if err != nil {
			return nil, err
		}
		elseBody, err := cx.lowerBlock(fn, in.Else, nil, scope)
		if err != nil {
			return nil, err
		}
		thenCall := cx.mintCall(cx.newIfBodyFn(), thenBody, scope)
		elseCall := cx.mintCall(cx.newIfBodyFn(), elseBody, scope)
		return []*Instr{
			{Kind: InstrIf, Cond: in.Cond, Body: thenCall, Mods: mods},
			{Kind: InstrIf, Cond: ir.Not(in.Cond.Clone()), Body: elseCall, Mods: cloneMods(mods)},
		}, nil

	case ir.InstrWhile:
		body, err := cx.lowerBlock(fn, in.Body, nil, scope)
		if err != nil {
			return nil, err
		}
		name := cx.newLoopFn()
		// Tail-recurse while the condition still holds.
		body = append(body, &Instr{
			Kind: InstrIf,
			Cond: in.Cond.Clone(),
			Body: &Instr{Kind: InstrCall, Call: &ir.Call{Function: name}},
		})
		iface := ir.NewInterface(name)
		iface.Scope = scope
		cx.out.Add(&Func{Interface: iface, Instrs: body})
		cx.called[name] = true
		return []*Instr{{
			Kind: InstrIf,
			Cond: in.Cond,
			Body: &Instr{Kind: InstrCall, Call: &ir.Call{Function: name}},
			Mods: mods,
		}}, nil

	case ir.InstrCall:
		cx.called[in.Call.Function] = true
		return []*Instr{{Kind: InstrCall, Call: in.Call, Mods: mods}}, nil

	case ir.InstrCallExtern:
		cx.externs[in.Str] = true
		return []*Instr{{Kind: InstrCallExtern, Str: in.Str, Mods: mods}}, nil
	}

	kind, ok := simpleKinds[in.Kind]
	if !ok {
		return nil, diag.Internal("unhandled IR instruction kind %d", in.Kind)
	}
	out := &Instr{
		Kind:   kind,
		Dst:    in.Dst,
		Src:    in.Src,
		Src2:   in.Src2,
		Exp:    in.Exp,
		Index:  in.Index,
		Str:    in.Str,
		Sel:    in.Sel,
		Sel2:   in.Sel2,
		Pos:    in.Pos,
		Amount: in.Amount,
		Mods:   mods,
	}
	return []*Instr{out}, nil
}

// guard wraps a lowered body in a conditional. A single instruction
// stays boxed in place; longer bodies move to a minted internal
// function called under the condition.
func (cx *lowerCx) guard(cond *ir.Condition, body []*Instr, mods []ir.Modifier, scope string) (*Instr, error) {
	if len(body) == 0 {
		return &Instr{Kind: InstrNoOp, Mods: mods}, nil
	}
	if len(body) == 1 {
		return &Instr{Kind: InstrIf, Cond: cond, Body: body[0], Mods: mods}, nil
	}
	call := cx.mintCall(cx.newIfBodyFn(), body, scope)
	return &Instr{Kind: InstrIf, Cond: cond, Body: call, Mods: mods}, nil
}

// mintCall adds an internal function holding body and returns a call
// to it. The minted function shares the register scope of its root
// function.
func (cx *lowerCx) mintCall(name string, body []*Instr, scope string) *Instr {
	f := &Func{Interface: ir.NewInterface(name), Instrs: body}
	f.Interface.Scope = scope
	cx.out.Add(f)
	cx.called[name] = true
	return &Instr{Kind: InstrCall, Call: &ir.Call{Function: name}}
}

var simpleKinds = map[ir.InstrKind]InstrKind{
	ir.InstrNoOp:      InstrNoOp,
	ir.InstrAdd:       InstrAdd,
	ir.InstrSub:       InstrSub,
	ir.InstrMul:       InstrMul,
	ir.InstrDiv:       InstrDiv,
	ir.InstrMod:       InstrMod,
	ir.InstrMin:       InstrMin,
	ir.InstrMax:       InstrMax,
	ir.InstrAnd:       InstrAnd,
	ir.InstrOr:        InstrOr,
	ir.InstrXor:       InstrXor,
	ir.InstrSwap:      InstrSwap,
	ir.InstrAbs:       InstrAbs,
	ir.InstrPow:       InstrPow,
	ir.InstrGet:       InstrGet,
	ir.InstrMerge:     InstrMerge,
	ir.InstrPush:      InstrPush,
	ir.InstrPushFront: InstrPushFront,
	ir.InstrInsert:    InstrInsert,
	ir.InstrRemove:    InstrRemove,
	ir.InstrUse:       InstrUse,
	ir.InstrSay:       InstrSay,
	ir.InstrTell:      InstrTell,
	ir.InstrMe:        InstrMe,
	ir.InstrCmd:       InstrCmd,
	ir.InstrComment:   InstrComment,
	ir.InstrKill:      InstrKill,
	ir.InstrTeleport:  InstrTeleport,
	ir.InstrXPSet:     InstrXPSet,
	ir.InstrXPAdd:     InstrXPAdd,
	ir.InstrXPGet:     InstrXPGet,
}

func joinMods(prefix, own []ir.Modifier) []ir.Modifier {
	if len(prefix) == 0 {
		return own
	}
	out := make([]ir.Modifier, 0, len(prefix)+len(own))
	out = append(out, prefix...)
	out = append(out, own...)
	return out
}

func cloneMods(mods []ir.Modifier) []ir.Modifier {
	return append([]ir.Modifier(nil), mods...)
}
