package parse

import (
	"testing"

	"github.com/CarbonSmasher/dpc/internal/ir"
)

func parseOne(t *testing.T, src string) *ir.Module {
	t.Helper()
	p := NewParser()
	if err := p.Parse(src); err != nil {
		t.Fatal(err)
	}
	return p.Finish()
}

func TestParseFunctionHeader(t *testing.T) {
	mod := parseOne(t, `
@preserve @no_strip "test:fn" score nint: score {
	say "hi";
}
`)
	f, ok := mod.Functions["test:fn"]
	if !ok {
		t.Fatal("function not parsed")
	}
	if !f.Interface.Annotations.Preserve || !f.Interface.Annotations.NoStrip {
		t.Error("annotations lost")
	}
	sig := f.Interface.Sig
	if len(sig.Params) != 2 || sig.Params[0] != ir.TypeScore || sig.Params[1] != ir.TypeNInt {
		t.Errorf("params = %v", sig.Params)
	}
	if sig.Ret != ir.TypeScore {
		t.Errorf("ret = %v", sig.Ret)
	}
	if len(f.Body.Contents) != 1 || f.Body.Contents[0].Kind != ir.InstrSay {
		t.Error("body not parsed")
	}
}

func TestParseLetAndArith(t *testing.T) {
	mod := parseOne(t, `
"test:main" {
	let x: score = 4;
	add %x, 3;
	mul %x, %x;
	set sco out obj, %x;
}
`)
	body := mod.Functions["test:main"].Body.Contents
	if len(body) != 4 {
		t.Fatalf("got %d instructions", len(body))
	}
	let := body[0]
	if let.Kind != ir.InstrDeclare || let.Ty != ir.TypeScore {
		t.Error("let did not parse as a declaration")
	}
	if c, ok := let.Binding.Val.ConstScore(); !ok || c != 4 {
		t.Errorf("binding = %v", let.Binding.Val)
	}
	if body[1].Kind != ir.InstrAdd || body[2].Kind != ir.InstrMul {
		t.Error("arith opcodes wrong")
	}
	if reg, ok := body[2].Src.AsReg(); !ok || reg != "x" {
		t.Error("mul source should be the register itself")
	}
	set := body[3]
	if set.Kind != ir.InstrAssign || set.Dst.Kind != ir.MutScore {
		t.Error("set to score cell wrong")
	}
	if set.Dst.Score.Holder != "out" || set.Dst.Score.Objective != "obj" {
		t.Errorf("score cell = %v", set.Dst.Score)
	}
}

func TestParseIfAndIfElse(t *testing.T) {
	mod := parseOne(t, `
"test:main" {
	let x: bool = true;
	if bool(%x): say "yes";
	ife gte(%x, 1) {
		say "a";
		say "b";
	} {
		say "c";
	}
}
`)
	body := mod.Functions["test:main"].Body.Contents
	ifInstr := body[1]
	if ifInstr.Kind != ir.InstrIf || ifInstr.Cond.Kind != ir.CondBool {
		t.Error("if did not parse")
	}
	if len(ifInstr.Body.Contents) != 1 {
		t.Error("if body should hold the single instruction")
	}
	ife := body[2]
	if ife.Kind != ir.InstrIfElse || ife.Cond.Kind != ir.CondGreaterEq {
		t.Error("ife did not parse")
	}
	if len(ife.Body.Contents) != 2 || len(ife.Else.Contents) != 1 {
		t.Errorf("branch sizes %d/%d", len(ife.Body.Contents), len(ife.Else.Contents))
	}
}

func TestParseCall(t *testing.T) {
	mod := parseOne(t, `
"test:main" {
	let out: score = 0;
	call %out run "test:callee", 1, %out;
	callx "ext:fn";
}
`)
	body := mod.Functions["test:main"].Body.Contents
	call := body[1]
	if call.Kind != ir.InstrCall || call.Call.Function != "test:callee" {
		t.Fatal("call did not parse")
	}
	if len(call.Call.Args) != 2 {
		t.Fatalf("got %d args", len(call.Call.Args))
	}
	if len(call.Call.Ret) != 1 || call.Call.Ret[0].Reg != "out" {
		t.Error("return destination lost")
	}
	if body[2].Kind != ir.InstrCallExtern || body[2].Str != "ext:fn" {
		t.Error("callx did not parse")
	}
}

func TestParseModifierBlock(t *testing.T) {
	mod := parseOne(t, `
"test:main" {
	mdf as @e[type=cow]: {
		say "moo";
		kill;
	}
	mdf str sco out o: get sco in o;
}
`)
	body := mod.Functions["test:main"].Body.Contents
	block := body[0]
	if block.Kind != ir.InstrBlock || len(block.Mods) != 1 || block.Mods[0].Kind != ir.ModAs {
		t.Fatal("mdf block did not parse")
	}
	sel := block.Mods[0].Sel
	if sel.Base != "@e" || len(sel.Params) != 1 || sel.Params[0].Key != "type" {
		t.Errorf("selector = %v", sel)
	}
	if len(block.Body.Contents) != 2 {
		t.Errorf("got %d body instructions", len(block.Body.Contents))
	}
	store := body[1]
	if store.Kind != ir.InstrBlock || store.Mods[0].Kind != ir.ModStoreResult {
		t.Error("store modifier did not parse")
	}
	if len(store.Body.Contents) != 1 || store.Body.Contents[0].Kind != ir.InstrGet {
		t.Error("store body should be the get")
	}
}

func TestParseWhileAndReturn(t *testing.T) {
	mod := parseOne(t, `
"test:count" : score {
	let i: score = 0;
	while lt(%i, 10) {
		add %i, 1;
	}
	retv 0, %i;
}
`)
	body := mod.Functions["test:count"].Body.Contents
	loop := body[1]
	if loop.Kind != ir.InstrWhile || loop.Cond.Kind != ir.CondLess {
		t.Error("while did not parse")
	}
	ret := body[2]
	if ret.Kind != ir.InstrReturn || ret.Index != 0 {
		t.Error("retv did not parse")
	}
}

func TestParseNBTLiteralsAndConditions(t *testing.T) {
	mod := parseOne(t, `
"test:nbt" {
	let n: nany = {};
	mrg stg foo:bar path, {a:1};
	if and(bool(sco p o), not(ent(@e[tag=x]))): say "both";
}
`)
	body := mod.Functions["test:nbt"].Body.Contents
	if body[0].Binding.Val.Const.Ty != ir.TypeNAny {
		t.Error("empty compound literal wrong")
	}
	mrg := body[1]
	if mrg.Kind != ir.InstrMerge || mrg.Dst.Kind != ir.MutData {
		t.Fatal("mrg did not parse")
	}
	if mrg.Dst.Data.Target != "foo:bar" || mrg.Dst.Data.Path != "path" {
		t.Errorf("data location = %v", mrg.Dst.Data)
	}
	cond := body[2].Cond
	if cond.Kind != ir.CondAnd || len(cond.Sub) != 2 {
		t.Fatal("condition tree wrong")
	}
	if cond.Sub[1].Kind != ir.CondNot || cond.Sub[1].Sub[0].Kind != ir.CondEntity {
		t.Error("nested not(ent) wrong")
	}
}

func TestParseErrors(t *testing.T) {
	cases := []string{
		`"test:x" { let a: floatt = 1; }`,
		`"test:x" { add %a 1; }`,
		`"test:x" { bogus %a; }`,
		`"test:x" { say "unterminated; }`,
		`@unknown "test:x" {}`,
	}
	for _, src := range cases {
		p := NewParser()
		if err := p.Parse(src); err == nil {
			t.Errorf("no error for %q", src)
		}
	}
}

func TestParseXPAndTeleport(t *testing.T) {
	mod := parseOne(t, `
"test:game" {
	xp add @s 5 levels;
	xp set @p 0 points;
	tp @s @p;
	kill @e[type=zombie];
}
`)
	body := mod.Functions["test:game"].Body.Contents
	if body[0].Kind != ir.InstrXPAdd || body[0].Amount != 5 || body[0].Str != "levels" {
		t.Error("xp add wrong")
	}
	if body[1].Kind != ir.InstrXPSet {
		t.Error("xp set wrong")
	}
	if body[2].Kind != ir.InstrTeleport || body[2].Sel2.Base != "@p" {
		t.Error("tp wrong")
	}
	if body[3].Kind != ir.InstrKill || body[3].Sel.Base != "@e" {
		t.Error("kill selector wrong")
	}
}
