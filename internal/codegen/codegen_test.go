package codegen

import (
	"strings"
	"testing"

	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

func genFunc(t *testing.T, f *lir.Func) *Datapack {
	t.Helper()
	mod := lir.NewModule()
	mod.Add(f)
	pack, err := Generate(mod, Settings{PackName: "dpc"})
	if err != nil {
		t.Fatal(err)
	}
	return pack
}

func mainFunc(instrs ...*lir.Instr) *lir.Func {
	return &lir.Func{
		Interface: ir.NewInterface("test:main"),
		Instrs:    instrs,
		Regs:      ir.RegisterList{"x": {ID: "x", Ty: ir.TypeScore}},
	}
}

func constVal(v int32) ir.Value {
	return ir.NewConstValue(ir.NewScoreConst(v))
}

func TestSetScoreForms(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrSetScore, Dst: ir.NewReg("x"), Src: constVal(5)},
		&lir.Instr{Kind: lir.InstrSetScore, Dst: ir.NewScoreVal("out", "o"), Src: ir.NewRegValue("x")},
	))
	lines := pack.Functions["test:main"].Contents
	if lines[0] != "scoreboard players set %rtest_main.0 _r 5" {
		t.Errorf("got %q", lines[0])
	}
	if lines[1] != "scoreboard players operation out o = %rtest_main.0 _r" {
		t.Errorf("got %q", lines[1])
	}
}

func TestAddScorePicksAddOrRemove(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("x"), Src: constVal(2)},
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("x"), Src: constVal(-2)},
		&lir.Instr{Kind: lir.InstrSubScore, Dst: ir.NewReg("x"), Src: constVal(-3)},
	))
	lines := pack.Functions["test:main"].Contents
	want := []string{
		"scoreboard players add %rtest_main.0 _r 2",
		"scoreboard players remove %rtest_main.0 _r 2",
		"scoreboard players add %rtest_main.0 _r 3",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
}

func TestMulScoreMaterializesLiteral(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrMulScore, Dst: ir.NewReg("x"), Src: constVal(2)},
	))
	lines := pack.Functions["test:main"].Contents
	if lines[0] != "scoreboard players operation %rtest_main.0 _r *= %l2 _l" {
		t.Errorf("got %q", lines[0])
	}

	init := pack.Functions["dpc:init"]
	if init == nil {
		t.Fatal("missing init function")
	}
	joined := strings.Join(init.Contents, "\n")
	for _, want := range []string{
		"scoreboard objectives add _r dummy",
		"scoreboard objectives add _l dummy",
		"scoreboard players set %l2 _l 2",
	} {
		if !strings.Contains(joined, want) {
			t.Errorf("init missing %q:\n%s", want, joined)
		}
	}
	if len(pack.Tags["minecraft:load"]) != 1 {
		t.Error("init function should register in the load tag")
	}
}

func TestResetScoreRegisterDropsObjective(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrSetScore, Dst: ir.NewReg("x"), Src: constVal(1)},
		&lir.Instr{Kind: lir.InstrResetScore, Dst: ir.NewReg("x")},
		&lir.Instr{Kind: lir.InstrResetScore, Dst: ir.NewScoreVal("out", "o")},
	))
	lines := pack.Functions["test:main"].Contents
	if lines[1] != "scoreboard players reset %rtest_main.0" {
		t.Errorf("got %q", lines[1])
	}
	if lines[2] != "scoreboard players reset out o" {
		t.Errorf("got %q", lines[2])
	}
}

func TestExecutePrefixAndShortestRange(t *testing.T) {
	guard := ir.IfModifier(ir.ScoreMatches(ir.NewReg("x"), 1), false)
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrSetScore, Dst: ir.NewReg("x"), Src: constVal(1)},
		&lir.Instr{Kind: lir.InstrSay, Str: "hi", Mods: []ir.Modifier{guard}},
	))
	lines := pack.Functions["test:main"].Contents
	if lines[1] != "execute if score %rtest_main.0 _r matches 1.. run say hi" {
		t.Errorf("got %q", lines[1])
	}
}

func TestBareModifierChainNeedsNoRun(t *testing.T) {
	store := ir.Modifier{Kind: ir.ModStoreSuccess, Store: ir.ScoreStore(ir.NewReg("x"))}
	guard := ir.IfModifier(ir.ScoreEquals(ir.NewScoreVal("p", "o"), constVal(1)), false)
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrNoOp, Mods: []ir.Modifier{store, guard}},
	))
	lines := pack.Functions["test:main"].Contents
	want := "execute store success score %rtest_main.0 _r if score p o matches 1"
	if lines[0] != want {
		t.Errorf("got %q, want %q", lines[0], want)
	}
}

func TestConstConditionsDecideEmission(t *testing.T) {
	alwaysMod := ir.IfModifier(&ir.IfCond{Kind: ir.IfConst, B: true}, false)
	neverMod := ir.IfModifier(&ir.IfCond{Kind: ir.IfConst, B: false}, false)
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrSay, Str: "always", Mods: []ir.Modifier{alwaysMod}},
		&lir.Instr{Kind: lir.InstrSay, Str: "never", Mods: []ir.Modifier{neverMod}},
	))
	lines := pack.Functions["test:main"].Contents
	if len(lines) != 1 || lines[0] != "say always" {
		t.Errorf("got %v", lines)
	}
}

func TestDataCommands(t *testing.T) {
	loc := ir.NewDataVal(ir.DataLocation{Kind: ir.DataStorage, Target: "foo:bar", Path: "a.b"})
	pack := genFunc(t, mainFunc(
		&lir.Instr{
			Kind: lir.InstrSetData,
			Dst:  loc,
			Src:  ir.NewConstValue(ir.Const{Ty: ir.TypeNInt, I: 3}),
		},
		&lir.Instr{
			Kind: lir.InstrMergeData,
			Dst:  loc,
			Src:  ir.NewConstValue(ir.Const{Ty: ir.TypeNAny, Raw: "{c:1}"}),
		},
		&lir.Instr{Kind: lir.InstrRemoveData, Dst: loc},
	))
	lines := pack.Functions["test:main"].Contents
	want := []string{
		"data modify storage foo:bar a.b set value 3",
		"data modify storage foo:bar a.b merge value {c:1}",
		"data remove storage foo:bar a.b",
	}
	for i, w := range want {
		if lines[i] != w {
			t.Errorf("line %d: got %q, want %q", i, lines[i], w)
		}
	}
}

func TestCallUsesStrippedName(t *testing.T) {
	mod := lir.NewModule()
	callee := &lir.Func{
		Interface: ir.NewInterface("verylong:function/name"),
		Instrs:    []*lir.Instr{{Kind: lir.InstrSay, Str: "x"}},
		Regs:      ir.RegisterList{},
	}
	mod.Add(callee)
	main := &lir.Func{
		Interface: ir.NewInterface("test:main"),
		Instrs: []*lir.Instr{
			{Kind: lir.InstrCall, Func: "verylong:function/name"},
		},
		Regs: ir.RegisterList{},
	}
	main.Interface.Annotations.Preserve = true
	mod.Add(main)

	pack, err := Generate(mod, Settings{PackName: "dpc", Strip: StripUnstable})
	if err != nil {
		t.Fatal(err)
	}
	line := pack.Functions["test:main"].Contents[0]
	if line != "function dpc:s/" {
		t.Errorf("got %q", line)
	}
	if _, ok := pack.Functions["dpc:s/"]; !ok {
		t.Error("stripped function not present under its new identifier")
	}
}

func TestDocumentFormat(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrSay, Str: "hi"},
	))
	doc := pack.Document()
	if !strings.HasPrefix(doc, "# === test:main === #\nsay hi\n") {
		t.Errorf("got %q", doc)
	}
}

func TestFunctionPath(t *testing.T) {
	if got := FunctionPath("test:sub/fn"); got != "test/functions/sub/fn.mcfunction" {
		t.Errorf("got %q", got)
	}
}

func TestKillShortestForm(t *testing.T) {
	pack := genFunc(t, mainFunc(
		&lir.Instr{Kind: lir.InstrKill, Sel: ir.NewSelector("@s")},
		&lir.Instr{Kind: lir.InstrKill, Sel: ir.NewSelector("@e", ir.SelectorParam{Key: "type", Value: "cow"})},
	))
	lines := pack.Functions["test:main"].Contents
	if lines[0] != "kill" {
		t.Errorf("got %q", lines[0])
	}
	if lines[1] != "kill @e[type=cow]" {
		t.Errorf("got %q", lines[1])
	}
}
