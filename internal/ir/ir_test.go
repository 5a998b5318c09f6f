package ir

import "testing"

func TestCastableTo(t *testing.T) {
	cases := []struct {
		from, to DataType
		want     bool
	}{
		{TypeBool, TypeScore, true},
		{TypeScore, TypeBool, false},
		{TypeNByte, TypeNInt, true},
		{TypeNInt, TypeNByte, false},
		{TypeNByte, TypeNLong, true},
		{TypeNFloat, TypeNDouble, true},
		{TypeNDouble, TypeNFloat, false},
		{TypeNInt, TypeNAny, true},
		{TypeScore, TypeNInt, false},
		{TypeScore, TypeScore, true},
	}
	for _, c := range cases {
		if got := c.from.CastableTo(c.to); got != c.want {
			t.Errorf("%s -> %s: got %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestTypeFromName(t *testing.T) {
	for ty := TypeScore; ty <= TypeNAny; ty++ {
		if got := TypeFromName(ty.String()); got != ty {
			t.Errorf("round trip of %s: got %s", ty, got)
		}
	}
	if got := TypeFromName("float"); got != TypeNone {
		t.Errorf("unknown name resolved to %s", got)
	}
}

func TestSelectorSortParams(t *testing.T) {
	sel := NewSelector("@e",
		SelectorParam{Key: "distance", Value: "..10"},
		SelectorParam{Key: "scores", Value: "{x=1}"},
		SelectorParam{Key: "tag", Value: "foo"},
		SelectorParam{Key: "type", Value: "cow"},
	)
	if !sel.SortParams() {
		t.Fatal("expected reorder to report a change")
	}
	want := []string{"type", "tag", "distance", "scores"}
	for i, p := range sel.Params {
		if p.Key != want[i] {
			t.Errorf("param %d: got %s, want %s", i, p.Key, want[i])
		}
	}
	if sel.SortParams() {
		t.Error("second sort changed an already sorted selector")
	}
}

func TestSelectorSortIsStable(t *testing.T) {
	sel := NewSelector("@e",
		SelectorParam{Key: "tag", Value: "a"},
		SelectorParam{Key: "tag", Value: "b", Invert: true},
	)
	sel.SortParams()
	if sel.Params[0].Value != "a" || sel.Params[1].Value != "b" {
		t.Errorf("equal-cost params reordered: %v", sel.Params)
	}
}

func TestSelectorString(t *testing.T) {
	sel := NewSelector("@e",
		SelectorParam{Key: "type", Value: "cow"},
		SelectorParam{Key: "tag", Value: "done", Invert: true},
	)
	if got := sel.String(); got != "@e[type=cow,tag=!done]" {
		t.Errorf("got %q", got)
	}
	if got := NewSelector("@s").String(); got != "@s" {
		t.Errorf("got %q", got)
	}
}

func TestConditionCostOrdersLeaves(t *testing.T) {
	ent := &Condition{Kind: CondEntity, Sel: NewSelector("@e")}
	pred := &Condition{Kind: CondPredicate, ID: "p:q"}
	boolc := BoolCond(NewRegValue("x"))
	if !(boolc.Cost() < pred.Cost() && pred.Cost() < ent.Cost()) {
		t.Errorf("cost ordering broken: bool=%v pred=%v ent=%v",
			boolc.Cost(), pred.Cost(), ent.Cost())
	}
}

func TestConditionKeyIsStable(t *testing.T) {
	c := And(BoolCond(NewRegValue("a")), Not(BoolCond(NewRegValue("b"))))
	if c.Key() != c.Key() {
		t.Fatal("key not deterministic")
	}
	if c.Key() != c.Clone().Key() {
		t.Fatal("clone changed the key")
	}
}

func TestConditionCloneIsDeep(t *testing.T) {
	c := Or(BoolCond(NewRegValue("a")), BoolCond(NewRegValue("b")))
	clone := c.Clone()
	clone.Sub[0].Val = NewRegValue("z")
	if c.Sub[0].Val.Mut.Reg != "a" {
		t.Error("mutating the clone changed the original")
	}
}

func TestConditionReplaceReg(t *testing.T) {
	c := And(BoolCond(NewRegValue("a")), Compare(CondEqual, NewRegValue("a"), NewConstValue(NewScoreConst(1))))
	c.ReplaceReg(func(reg *string) {
		if *reg == "a" {
			*reg = "b"
		}
	})
	regs := c.UsedRegs(nil)
	for _, reg := range regs {
		if reg == "a" {
			t.Fatal("register was not replaced")
		}
	}
}

func TestMutableValueSame(t *testing.T) {
	if !NewReg("x").Same(NewReg("x")) {
		t.Error("identical registers not same")
	}
	if NewReg("x").Same(NewReg("y")) {
		t.Error("distinct registers same")
	}
	if !NewCallArg(0, "a:b", TypeScore).Same(NewCallArg(0, "a:b", TypeScore)) {
		t.Error("identical call args not same")
	}
	if NewCallArg(0, "a:b", TypeScore).Same(NewCallArg(0, "a:c", TypeScore)) {
		t.Error("call args of different functions same")
	}
}

func TestConstLiteral(t *testing.T) {
	cases := []struct {
		c    Const
		want string
	}{
		{NewScoreConst(42), "42"},
		{NewScoreConst(-7), "-7"},
		{NewBoolConst(true), "1"},
		{Const{Ty: TypeNByte, I: 3}, "3b"},
		{Const{Ty: TypeNShort, I: 3}, "3s"},
		{Const{Ty: TypeNLong, I: 3}, "3l"},
		{Const{Ty: TypeNAny, Raw: "{a:1}"}, "{a:1}"},
	}
	for _, c := range cases {
		if got := c.c.Literal(); got != c.want {
			t.Errorf("got %q, want %q", got, c.want)
		}
	}
}

func TestRegScope(t *testing.T) {
	iface := NewInterface("ns:fn")
	if iface.RegScope() != "ns:fn" {
		t.Error("plain function should scope to itself")
	}
	iface.Scope = "ns:root"
	if iface.RegScope() != "ns:root" {
		t.Error("minted function should scope to its root")
	}
}

func TestCleanFuncID(t *testing.T) {
	if got := CleanFuncID("test:sub/fn"); got != "test_sub_fn" {
		t.Errorf("got %q", got)
	}
}
