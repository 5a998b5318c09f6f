package ir

import "strings"

// CondKind enumerates condition tree nodes.
type CondKind uint8

const (
	// CondConst is a raw boolean known at compile time.
	CondConst CondKind = iota
	// CondNot negates its single subtree.
	CondNot
	// CondAnd is the conjunction of its subtrees.
	CondAnd
	// CondOr is the disjunction of its subtrees.
	CondOr
	// CondXor is the exclusive or of its two subtrees.
	CondXor
	// CondEqual compares two score values for equality.
	CondEqual
	// CondGreater compares L > R.
	CondGreater
	// CondGreaterEq compares L >= R.
	CondGreaterEq
	// CondLess compares L < R.
	CondLess
	// CondLessEq compares L <= R.
	CondLessEq
	// CondExists checks that a value is present.
	CondExists
	// CondBool checks a bool value for truth.
	CondBool
	// CondNotBool checks a bool value for falsehood.
	CondNotBool
	// CondEntity checks that a selector matches at least one entity.
	CondEntity
	// CondPredicate invokes a target-side predicate by identifier.
	CondPredicate
	// CondBiome checks the biome at a position.
	CondBiome
	// CondData checks NBT data presence at a location.
	CondData
)

// Condition is a first-class boolean tree. Leaves compare values or
// query the game state; inner nodes combine by not/and/or/xor.
type Condition struct {
	Kind CondKind
	// Sub holds the operands of not/and/or/xor nodes.
	Sub []*Condition
	// L and R are the operands of comparison leaves.
	L, R Value
	// Val is the operand of exists/bool leaves.
	Val Value
	// Sel is the query of an entity leaf.
	Sel Selector
	// ID is a predicate or biome identifier; Pos a biome position.
	ID  string
	Pos string
	// B is the payload of a const leaf.
	B bool
}

// NewConstCond builds a compile-time-known condition.
func NewConstCond(b bool) *Condition {
	return &Condition{Kind: CondConst, B: b}
}

// Not wraps a condition in a negation node.
func Not(c *Condition) *Condition {
	return &Condition{Kind: CondNot, Sub: []*Condition{c}}
}

// And conjoins two conditions.
func And(l, r *Condition) *Condition {
	return &Condition{Kind: CondAnd, Sub: []*Condition{l, r}}
}

// Or disjoins two conditions.
func Or(l, r *Condition) *Condition {
	return &Condition{Kind: CondOr, Sub: []*Condition{l, r}}
}

// Xor combines two conditions exclusively.
func Xor(l, r *Condition) *Condition {
	return &Condition{Kind: CondXor, Sub: []*Condition{l, r}}
}

// Compare builds a comparison leaf.
func Compare(kind CondKind, l, r Value) *Condition {
	return &Condition{Kind: kind, L: l, R: r}
}

// BoolCond checks a value for truth.
func BoolCond(v Value) *Condition {
	return &Condition{Kind: CondBool, Val: v}
}

// Clone deep-copies the tree.
func (c *Condition) Clone() *Condition {
	out := *c
	if len(c.Sub) > 0 {
		out.Sub = make([]*Condition, len(c.Sub))
		for i, s := range c.Sub {
			out.Sub[i] = s.Clone()
		}
	}
	return &out
}

// UsedRegs appends the registers read anywhere in the tree.
func (c *Condition) UsedRegs(regs []string) []string {
	for _, s := range c.Sub {
		regs = s.UsedRegs(regs)
	}
	regs = c.L.UsedRegs(regs)
	regs = c.R.UsedRegs(regs)
	regs = c.Val.UsedRegs(regs)
	return regs
}

// ReplaceReg rewrites every register reference in the tree through f.
func (c *Condition) ReplaceReg(f func(*string)) {
	for _, s := range c.Sub {
		s.ReplaceReg(f)
	}
	c.L.ReplaceReg(f)
	c.R.ReplaceReg(f)
	c.Val.ReplaceReg(f)
}

// Cost estimates the runtime expense of evaluating the condition,
// used to order and/or chains and to pick the OR lowering strategy.
func (c *Condition) Cost() float64 {
	switch c.Kind {
	case CondAnd, CondOr, CondXor:
		total := 0.0
		for _, s := range c.Sub {
			total += s.Cost()
		}
		return total
	case CondNot:
		return c.Sub[0].Cost()
	case CondEntity:
		return 40
	case CondBiome:
		return 18
	case CondPredicate:
		return 12
	case CondData:
		return 8
	case CondGreater, CondGreaterEq, CondLess, CondLessEq:
		return (c.L.cost() + c.R.cost()) * 1.8
	case CondExists:
		return c.Val.cost() * 1.8
	case CondEqual:
		return (c.L.cost() + c.R.cost()) * 1.2
	case CondBool, CondNotBool:
		return c.Val.cost() * 1.1
	}
	return 0
}

func (v Value) cost() float64 {
	if v.Kind == ValConst {
		return 0.1
	}
	switch v.Mut.Kind {
	case MutData:
		return 4
	case MutScore:
		return 1.1
	}
	return 1
}

// Key renders a stable text form of the condition, used for the
// deterministic ordering of flattened and/or chains.
func (c *Condition) Key() string {
	var b strings.Builder
	c.writeKey(&b)
	return b.String()
}

func (c *Condition) writeKey(b *strings.Builder) {
	switch c.Kind {
	case CondConst:
		if c.B {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case CondNot:
		b.WriteString("not(")
		c.Sub[0].writeKey(b)
		b.WriteByte(')')
	case CondAnd, CondOr, CondXor:
		switch c.Kind {
		case CondAnd:
			b.WriteString("and(")
		case CondOr:
			b.WriteString("or(")
		default:
			b.WriteString("xor(")
		}
		for i, s := range c.Sub {
			if i > 0 {
				b.WriteByte(',')
			}
			s.writeKey(b)
		}
		b.WriteByte(')')
	case CondEqual, CondGreater, CondGreaterEq, CondLess, CondLessEq:
		b.WriteString(c.L.String())
		switch c.Kind {
		case CondEqual:
			b.WriteString("==")
		case CondGreater:
			b.WriteString(">")
		case CondGreaterEq:
			b.WriteString(">=")
		case CondLess:
			b.WriteString("<")
		default:
			b.WriteString("<=")
		}
		b.WriteString(c.R.String())
	case CondExists:
		b.WriteString("exi ")
		b.WriteString(c.Val.String())
	case CondBool:
		b.WriteString("bool ")
		b.WriteString(c.Val.String())
	case CondNotBool:
		b.WriteString("nbool ")
		b.WriteString(c.Val.String())
	case CondEntity:
		b.WriteString("ent ")
		b.WriteString(c.Sel.String())
	case CondPredicate:
		b.WriteString("pred ")
		b.WriteString(c.ID)
	case CondBiome:
		b.WriteString("bio ")
		b.WriteString(c.Pos)
		b.WriteByte(' ')
		b.WriteString(c.ID)
	case CondData:
		b.WriteString("data ")
		b.WriteString(c.Val.String())
	}
}
