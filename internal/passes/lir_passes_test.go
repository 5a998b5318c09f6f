package passes

import (
	"errors"
	"testing"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

func lirFunc(id string, instrs ...*lir.Instr) (*lir.Module, *lir.Func) {
	mod := lir.NewModule()
	f := &lir.Func{Interface: ir.NewInterface(id), Instrs: instrs, Regs: ir.RegisterList{}}
	mod.Add(f)
	return mod, f
}

func setScore(dst ir.MutableValue, src ir.Value) *lir.Instr {
	return &lir.Instr{Kind: lir.InstrSetScore, Dst: dst, Src: src}
}

func constVal(v int32) ir.Value {
	return ir.NewConstValue(ir.NewScoreConst(v))
}

func TestLIRSimplifyNormalizesNegativeAdds(t *testing.T) {
	mod, f := lirFunc("test:main",
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("x"), Src: constVal(-3)},
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("x"), Src: constVal(0)},
		&lir.Instr{Kind: lir.InstrMulScore, Dst: ir.NewReg("x"), Src: constVal(1)},
		setScore(ir.NewReg("y"), ir.NewRegValue("y")),
	)
	pass := &LIRSimplifyPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected simplification")
	}
	if len(f.Instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(f.Instrs))
	}
	in := f.Instrs[0]
	if in.Kind != lir.InstrSubScore {
		t.Errorf("negative add should become subtract, got %d", in.Kind)
	}
	if c, _ := in.Src.ConstScore(); c != 3 {
		t.Errorf("amount should flip sign, got %d", c)
	}
}

func TestMergeModifiersClosesRanges(t *testing.T) {
	reg := ir.NewReg("x")
	lower := &ir.IfCond{Kind: ir.IfScoreRange, Left: reg, Min: ir.FixedEnd(constVal(1), true)}
	upper := &ir.IfCond{Kind: ir.IfScoreRange, Left: reg, Max: ir.FixedEnd(constVal(5), true)}
	in := &lir.Instr{
		Kind: lir.InstrSay,
		Str:  "hi",
		Mods: []ir.Modifier{ir.IfModifier(lower, false), ir.IfModifier(upper, false)},
	}
	mod, f := lirFunc("test:main", in)
	pass := &MergeModifiersPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the range halves to merge")
	}
	mods := f.Instrs[0].Mods
	if len(mods) != 1 {
		t.Fatalf("got %d modifiers, want 1", len(mods))
	}
	c := mods[0].If
	if !c.Min.Set || !c.Max.Set {
		t.Error("merged condition should be a closed range")
	}
}

func TestMergeModifiersKeepsRegisterEnds(t *testing.T) {
	reg := ir.NewReg("x")
	lower := &ir.IfCond{Kind: ir.IfScoreRange, Left: reg, Min: ir.FixedEnd(ir.NewRegValue("lo"), true)}
	upper := &ir.IfCond{Kind: ir.IfScoreRange, Left: reg, Max: ir.FixedEnd(constVal(5), true)}
	in := &lir.Instr{
		Kind: lir.InstrSay,
		Str:  "hi",
		Mods: []ir.Modifier{ir.IfModifier(lower, false), ir.IfModifier(upper, false)},
	}
	mod, f := lirFunc("test:main", in)
	pass := &MergeModifiersPass{}
	if _, err := pass.RunFunc(f, mod); err != nil {
		t.Fatal(err)
	}
	if len(f.Instrs[0].Mods) != 2 {
		t.Error("register-ended ranges must not merge")
	}
}

func TestNullModifiersDropsAsSelf(t *testing.T) {
	in := &lir.Instr{
		Kind: lir.InstrSay,
		Str:  "hi",
		Mods: []ir.Modifier{
			{Kind: ir.ModAs, Sel: ir.NewSelector("@s")},
			{Kind: ir.ModAt, Sel: ir.NewSelector("@p")},
			{Kind: ir.ModAt, Sel: ir.NewSelector("@p")},
		},
	}
	mod, f := lirFunc("test:main", in)
	pass := &NullModifiersPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected null modifiers to drop")
	}
	mods := f.Instrs[0].Mods
	if len(mods) != 1 || mods[0].Kind != ir.ModAt {
		t.Errorf("got %d modifiers, want the single at", len(mods))
	}
}

func TestSelectorReorderPass(t *testing.T) {
	in := &lir.Instr{
		Kind: lir.InstrKill,
		Sel: ir.NewSelector("@e",
			ir.SelectorParam{Key: "distance", Value: "..5"},
			ir.SelectorParam{Key: "type", Value: "cow"},
		),
	}
	mod, f := lirFunc("test:main", in)
	pass := &SelectorReorderPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected reorder")
	}
	if f.Instrs[0].Sel.Params[0].Key != "type" {
		t.Errorf("cheap filter should come first, got %s", f.Instrs[0].Sel.Params[0].Key)
	}
}

func TestStoreFusionFoldsCopyChain(t *testing.T) {
	// Three reads of the same freshly computed source merge into one
	// command with a store per reader.
	mod, f := lirFunc("test:copy_prop_multiple",
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("t"), Src: constVal(1)},
		setScore(ir.NewScoreVal("outx", "o"), ir.NewRegValue("t")),
		setScore(ir.NewScoreVal("outy", "o"), ir.NewRegValue("t")),
		setScore(ir.NewScoreVal("outz", "o"), ir.NewRegValue("t")),
	)
	pass := &StoreFusionPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the copies to fuse")
	}
	if len(f.Instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(f.Instrs))
	}
	stores := 0
	for _, m := range f.Instrs[0].Mods {
		if m.Kind == ir.ModStoreResult {
			stores++
		}
	}
	if stores != 3 {
		t.Errorf("got %d stores, want 3", stores)
	}
}

func TestStoreFusionStopsAtInterference(t *testing.T) {
	mod, f := lirFunc("test:main",
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("t"), Src: constVal(1)},
		&lir.Instr{Kind: lir.InstrSay, Str: "between"},
		setScore(ir.NewScoreVal("out", "o"), ir.NewRegValue("t")),
	)
	pass := &StoreFusionPass{}
	if _, err := pass.RunFunc(f, mod); err != nil {
		t.Fatal(err)
	}
	if len(f.Instrs) != 3 {
		t.Errorf("interposed command must keep the copy, got %d instructions", len(f.Instrs))
	}
}

func TestCopyElisionRedirectsArgReads(t *testing.T) {
	mod, f := lirFunc("test:main",
		setScore(ir.NewReg("t"), ir.NewMutValue(ir.NewArg(0))),
		&lir.Instr{Kind: lir.InstrAddScore, Dst: ir.NewReg("t"), Src: constVal(1)},
	)
	pass := &CopyElisionPass{}
	changed, err := pass.RunFunc(f, mod)
	if err != nil {
		t.Fatal(err)
	}
	if !changed {
		t.Fatal("expected the copy to elide")
	}
	if len(f.Instrs) != 1 {
		t.Fatalf("got %d instructions, want 1", len(f.Instrs))
	}
	if f.Instrs[0].Dst.Kind != ir.MutArg {
		t.Error("operation should act on the argument slot directly")
	}
}

func TestCheckRecursionDetectsCycles(t *testing.T) {
	mod := lir.NewModule()
	mod.Add(&lir.Func{Interface: ir.NewInterface("test:a"), Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "test:b"},
	}})
	mod.Add(&lir.Func{Interface: ir.NewInterface("test:b"), Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "test:a"},
	}})
	if err := CheckRecursion(mod); !errors.Is(err, diag.ErrRecursionViolation) {
		t.Errorf("got %v, want recursion violation", err)
	}
}

func TestCheckRecursionToleratesMintedLoopBodies(t *testing.T) {
	mod := lir.NewModule()
	loop := ir.NewInterface("dpc:loop_0")
	loop.Scope = "test:main"
	mod.Add(&lir.Func{Interface: loop, Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "dpc:loop_0"},
	}})
	root := ir.NewInterface("test:main")
	mod.Add(&lir.Func{Interface: root, Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "dpc:loop_0"},
	}})
	if err := CheckRecursion(mod); err != nil {
		t.Errorf("loop tail recursion rejected: %v", err)
	}
}

func TestCheckRecursionAcceptsDAGs(t *testing.T) {
	mod := lir.NewModule()
	mod.Add(&lir.Func{Interface: ir.NewInterface("test:a"), Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "test:b"},
		{Kind: lir.InstrCall, Func: "test:c"},
	}})
	mod.Add(&lir.Func{Interface: ir.NewInterface("test:b"), Instrs: []*lir.Instr{
		{Kind: lir.InstrCall, Func: "test:c"},
	}})
	mod.Add(&lir.Func{Interface: ir.NewInterface("test:c")})
	if err := CheckRecursion(mod); err != nil {
		t.Errorf("diamond call graph rejected: %v", err)
	}
}
