package ir

import "strconv"

// ModKind enumerates execute-modifier kinds.
type ModKind uint8

const (
	// ModStoreResult stores the command's result value.
	ModStoreResult ModKind = iota
	// ModStoreSuccess stores the command's success flag.
	ModStoreSuccess
	// ModIf conditions the command on an IfCond (negated = unless).
	ModIf
	// ModAs changes the executing entity.
	ModAs
	// ModAt moves execution to an entity's position.
	ModAt
	// ModPositioned moves execution to fixed coordinates.
	ModPositioned
	// ModIn changes the execution dimension.
	ModIn
	// ModAnchored anchors at eyes or feet.
	ModAnchored
	// ModAlign snaps the position to the block grid.
	ModAlign
)

// StoreKind distinguishes score and data store targets.
type StoreKind uint8

const (
	// StoreScore stores into a scoreboard cell.
	StoreScore StoreKind = iota
	// StoreData stores into an NBT cell with a type and scale.
	StoreData
)

// StoreLocation is the target of a store result/success modifier.
type StoreLocation struct {
	Kind StoreKind
	// Val is a score-typed or NBT-typed mutable value.
	Val MutableValue
	// Ty and Scale apply to data stores.
	Ty    DataType
	Scale float64
}

// ScoreStore targets a scoreboard-backed mutable value.
func ScoreStore(val MutableValue) StoreLocation {
	return StoreLocation{Kind: StoreScore, Val: val}
}

// DataStore targets an NBT-backed mutable value.
func DataStore(val MutableValue, ty DataType, scale float64) StoreLocation {
	return StoreLocation{Kind: StoreData, Val: val, Ty: ty, Scale: scale}
}

// Modifier is one execute prefix applied to a single instruction.
// Instructions carry a stack of them, outermost first.
type Modifier struct {
	Kind   ModKind
	Store  StoreLocation
	If     *IfCond
	Negate bool
	Sel    Selector
	// Pos is raw coordinate text for positioned; Str is a dimension
	// identifier or anchor/align keyword.
	Pos string
	Str string
}

// IfModifier builds an if/unless modifier.
func IfModifier(cond *IfCond, negate bool) Modifier {
	return Modifier{Kind: ModIf, If: cond, Negate: negate}
}

// HasExtraSideEffects reports whether the modifier does something
// beyond shaping the context of its command.
func (m Modifier) HasExtraSideEffects() bool {
	return m.Kind == ModStoreResult || m.Kind == ModStoreSuccess
}

// UsedRegs appends registers read by the modifier.
func (m Modifier) UsedRegs(regs []string) []string {
	switch m.Kind {
	case ModStoreResult, ModStoreSuccess:
		regs = m.Store.Val.UsedRegs(regs)
	case ModIf:
		regs = m.If.UsedRegs(regs)
	}
	return regs
}

// ReplaceReg rewrites register references through f.
func (m *Modifier) ReplaceReg(f func(*string)) {
	switch m.Kind {
	case ModStoreResult, ModStoreSuccess:
		m.Store.Val.ReplaceReg(f)
	case ModIf:
		m.If.ReplaceReg(f)
	}
}

// IfCondKind enumerates canonical if-conditions, the form codegen can
// emit directly.
type IfCondKind uint8

const (
	// IfConst is a condition known at compile time.
	IfConst IfCondKind = iota
	// IfScoreSingle compares a score cell against a single value.
	IfScoreSingle
	// IfScoreRange checks a score cell against a (possibly open) range.
	IfScoreRange
	// IfData checks NBT presence.
	IfData
	// IfEntity checks a selector match.
	IfEntity
	// IfPredicate checks a named predicate.
	IfPredicate
	// IfBiome checks a biome at a position.
	IfBiome
	// IfFunction runs a function and checks its return.
	IfFunction
)

// RangeEnd is one side of a score range check.
type RangeEnd struct {
	// Set is false for an open (infinite) side.
	Set       bool
	Inclusive bool
	Val       Value
}

// FixedEnd builds a closed range side.
func FixedEnd(v Value, inclusive bool) RangeEnd {
	return RangeEnd{Set: true, Inclusive: inclusive, Val: v}
}

// IfCond is a canonical condition usable as an if/unless modifier.
type IfCond struct {
	Kind IfCondKind
	// Left is the checked score for score kinds; Data the checked
	// location for data kinds.
	Left  MutableValue
	Right Value
	Min   RangeEnd
	Max   RangeEnd
	Data  MutableValue
	Sel   Selector
	// ID is a predicate, biome or function identifier.
	ID  string
	Pos string
	B   bool
}

// UsedRegs appends registers read by the condition.
func (c *IfCond) UsedRegs(regs []string) []string {
	switch c.Kind {
	case IfScoreSingle:
		regs = c.Left.UsedRegs(regs)
		regs = c.Right.UsedRegs(regs)
	case IfScoreRange:
		regs = c.Left.UsedRegs(regs)
		regs = c.Min.Val.UsedRegs(regs)
		regs = c.Max.Val.UsedRegs(regs)
	case IfData:
		regs = c.Data.UsedRegs(regs)
	}
	return regs
}

// ReplaceReg rewrites register references through f.
func (c *IfCond) ReplaceReg(f func(*string)) {
	c.Left.ReplaceReg(f)
	c.Right.ReplaceReg(f)
	c.Min.Val.ReplaceReg(f)
	c.Max.Val.ReplaceReg(f)
	c.Data.ReplaceReg(f)
}

// ScoreMatches builds the canonical `score matches n..` style check
// for an at-least comparison, the shape most passes look for.
func ScoreMatches(score MutableValue, min int32) *IfCond {
	return &IfCond{
		Kind: IfScoreRange,
		Left: score,
		Min:  FixedEnd(NewConstValue(NewScoreConst(min)), true),
	}
}

// ScoreEquals builds a single-value score check.
func ScoreEquals(score MutableValue, v Value) *IfCond {
	return &IfCond{Kind: IfScoreSingle, Left: score, Right: v}
}

// Cost estimates the runtime expense of evaluating the canonical
// condition, mirroring the cost model of the source condition tree.
func (c *IfCond) Cost() float64 {
	switch c.Kind {
	case IfEntity:
		return 40
	case IfFunction:
		return 20
	case IfBiome:
		return 18
	case IfPredicate:
		return 12
	case IfData:
		return 8
	case IfScoreRange:
		return 2
	case IfScoreSingle:
		return 1.5
	}
	return 0.1
}

func (c *IfCond) String() string {
	switch c.Kind {
	case IfConst:
		return strconv.FormatBool(c.B)
	case IfScoreSingle:
		return "score " + c.Left.String() + " == " + c.Right.String()
	case IfScoreRange:
		out := "score " + c.Left.String() + " in "
		if c.Min.Set {
			out += c.Min.Val.String()
		}
		out += ".."
		if c.Max.Set {
			out += c.Max.Val.String()
		}
		return out
	case IfData:
		return "data " + c.Data.String()
	case IfEntity:
		return "entity " + c.Sel.String()
	case IfPredicate:
		return "predicate " + c.ID
	case IfBiome:
		return "biome " + c.Pos + " " + c.ID
	}
	return "function " + c.ID
}
