package mir

import (
	"errors"
	"testing"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
)

func scoreDecl(name string, v int32) ir.Instr {
	return ir.Instr{
		Kind:    ir.InstrDeclare,
		Dst:     ir.NewReg(name),
		Ty:      ir.TypeScore,
		Binding: ir.Binding{Kind: ir.BindValue, Val: ir.NewConstValue(ir.NewScoreConst(v))},
	}
}

func sayInstr(msg string) ir.Instr {
	return ir.Instr{Kind: ir.InstrSay, Str: msg}
}

func TestLowerDeclareSplitsIntoDeclareAndAssign(t *testing.T) {
	mod := ir.NewModule()
	body := ir.NewBlock()
	body.Push(scoreDecl("x", 3))
	mod.Add(&ir.Function{Interface: ir.NewInterface("test:main"), Body: body})

	out, err := LowerModule(mod)
	if err != nil {
		t.Fatal(err)
	}
	f := out.Funcs["test:main"]
	if len(f.Instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(f.Instrs))
	}
	if f.Instrs[0].Kind != InstrDeclare || f.Instrs[1].Kind != InstrAssign {
		t.Errorf("got kinds %d, %d", f.Instrs[0].Kind, f.Instrs[1].Kind)
	}
}

func TestLowerIfElseMintsDeterministicBodies(t *testing.T) {
	build := func() *ir.Module {
		mod := ir.NewModule()
		body := ir.NewBlock()
		body.Push(scoreDecl("x", 1))
		thenBlock := ir.NewBlock()
		thenBlock.Push(sayInstr("then a"))
		thenBlock.Push(sayInstr("then b"))
		elseBlock := ir.NewBlock()
		elseBlock.Push(sayInstr("else"))
		body.Push(ir.Instr{
			Kind: ir.InstrIfElse,
			Cond: ir.BoolCond(ir.NewRegValue("x")),
			Body: thenBlock,
			Else: elseBlock,
		})
		mod.Add(&ir.Function{Interface: ir.NewInterface("test:main"), Body: body})
		return mod
	}

	out, err := LowerModule(build())
	if err != nil {
		t.Fatal(err)
	}

	for _, name := range []string{"dpc:ifbody_0", "dpc:ifbody_1"} {
		f, ok := out.Funcs[name]
		if !ok {
			t.Fatalf("missing minted function %s", name)
		}
		if f.Interface.Scope != "test:main" {
			t.Errorf("%s scope = %q, want test:main", name, f.Interface.Scope)
		}
	}

	main := out.Funcs["test:main"]
	var conds []*Instr
	for _, in := range main.Instrs {
		if in.Kind == InstrIf {
			conds = append(conds, in)
		}
	}
	if len(conds) != 2 {
		t.Fatalf("got %d conditional instructions, want 2", len(conds))
	}
	if conds[0].Body.Kind != InstrCall || conds[1].Body.Kind != InstrCall {
		t.Fatal("if/else bodies should be calls")
	}
	if conds[1].Cond.Kind != ir.CondNot {
		t.Error("else branch should be guarded by the negated condition")
	}

	// Same input, same minted names.
	again, err := LowerModule(build())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := again.Funcs["dpc:ifbody_0"]; !ok {
		t.Error("minted names changed across runs")
	}
}

func TestLowerWhileBuildsTailRecursion(t *testing.T) {
	mod := ir.NewModule()
	body := ir.NewBlock()
	body.Push(scoreDecl("i", 0))
	loopBody := ir.NewBlock()
	loopBody.Push(ir.Instr{
		Kind: ir.InstrAdd,
		Dst:  ir.NewReg("i"),
		Src:  ir.NewConstValue(ir.NewScoreConst(1)),
	})
	body.Push(ir.Instr{
		Kind: ir.InstrWhile,
		Cond: ir.Compare(ir.CondLess, ir.NewRegValue("i"), ir.NewConstValue(ir.NewScoreConst(10))),
		Body: loopBody,
	})
	mod.Add(&ir.Function{Interface: ir.NewInterface("test:main"), Body: body})

	out, err := LowerModule(mod)
	if err != nil {
		t.Fatal(err)
	}
	loop, ok := out.Funcs["dpc:loop_0"]
	if !ok {
		t.Fatal("missing loop function")
	}
	last := loop.Instrs[len(loop.Instrs)-1]
	if last.Kind != InstrIf || last.Body.Kind != InstrCall || last.Body.Call.Function != "dpc:loop_0" {
		t.Error("loop should end with a guarded self-call")
	}
}

func TestLowerBlockPrefixesModifiers(t *testing.T) {
	mod := ir.NewModule()
	body := ir.NewBlock()
	inner := ir.NewBlock()
	inner.Push(sayInstr("a"))
	inner.Push(sayInstr("b"))
	body.Push(ir.Instr{
		Kind: ir.InstrBlock,
		Body: inner,
		Mods: []ir.Modifier{{Kind: ir.ModAs, Sel: ir.NewSelector("@e")}},
	})
	mod.Add(&ir.Function{Interface: ir.NewInterface("test:main"), Body: body})

	out, err := LowerModule(mod)
	if err != nil {
		t.Fatal(err)
	}
	main := out.Funcs["test:main"]
	if len(main.Instrs) != 2 {
		t.Fatalf("got %d instructions, want 2", len(main.Instrs))
	}
	for i, in := range main.Instrs {
		if len(in.Mods) != 1 || in.Mods[0].Kind != ir.ModAs {
			t.Errorf("instruction %d missing the hoisted modifier", i)
		}
	}
}

func TestLowerReturnWritesReturnSlot(t *testing.T) {
	mod := ir.NewModule()
	iface := ir.NewInterface("test:fn")
	iface.Sig.Ret = ir.TypeScore
	body := ir.NewBlock()
	body.Push(ir.Instr{
		Kind:  ir.InstrReturn,
		Index: 0,
		Src:   ir.NewConstValue(ir.NewScoreConst(5)),
	})
	mod.Add(&ir.Function{Interface: iface, Body: body})

	out, err := LowerModule(mod)
	if err != nil {
		t.Fatal(err)
	}
	in := out.Funcs["test:fn"].Instrs[0]
	if in.Kind != InstrAssign || in.Dst.Kind != ir.MutReturn || in.Dst.Idx != 0 {
		t.Errorf("return did not lower to a return-slot move: %+v", in)
	}
}

func TestLowerReturnWithoutSignatureFails(t *testing.T) {
	mod := ir.NewModule()
	body := ir.NewBlock()
	body.Push(ir.Instr{Kind: ir.InstrReturn, Src: ir.NewConstValue(ir.NewScoreConst(1))})
	mod.Add(&ir.Function{Interface: ir.NewInterface("test:void"), Body: body})

	_, err := LowerModule(mod)
	if !errors.Is(err, diag.ErrTypeMismatch) {
		t.Errorf("got %v, want type mismatch", err)
	}
}

func TestLowerUndefinedCallTargetIsDeferred(t *testing.T) {
	mod := ir.NewModule()
	body := ir.NewBlock()
	body.Push(ir.Instr{Kind: ir.InstrCall, Call: &ir.Call{Function: "missing:fn"}})
	mod.Add(&ir.Function{Interface: ir.NewInterface("test:main"), Body: body})

	_, err := LowerModule(mod)
	if !errors.Is(err, diag.ErrUndefinedFunction) {
		t.Errorf("got %v, want undefined function", err)
	}
}
