package codegen

import (
	"math"
	"strconv"
	"strings"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
)

// renderModifier emits one execute subcommand.
func (bx *blockCx) renderModifier(m ir.Modifier) (string, error) {
	switch m.Kind {
	case ir.ModStoreResult, ir.ModStoreSuccess:
		word := "result"
		if m.Kind == ir.ModStoreSuccess {
			word = "success"
		}
		loc, err := bx.renderStoreLocation(m.Store)
		if err != nil {
			return "", err
		}
		return "store " + word + " " + loc, nil

	case ir.ModIf:
		return bx.renderIf(m.If, m.Negate)

	case ir.ModAs:
		return "as " + m.Sel.String(), nil
	case ir.ModAt:
		return "at " + m.Sel.String(), nil
	case ir.ModPositioned:
		return "positioned " + m.Pos, nil
	case ir.ModIn:
		return "in " + m.Str, nil
	case ir.ModAnchored:
		return "anchored " + m.Str, nil
	case ir.ModAlign:
		return "align " + m.Str, nil
	}
	return "", diag.Internal("unhandled modifier kind %d", m.Kind)
}

func (bx *blockCx) renderStoreLocation(loc ir.StoreLocation) (string, error) {
	if loc.Kind == ir.StoreScore {
		score, err := bx.scoreOf(loc.Val)
		if err != nil {
			return "", err
		}
		return "score " + score.String(), nil
	}
	data, err := bx.dataOf(loc.Val)
	if err != nil {
		return "", err
	}
	scale := strconv.FormatFloat(loc.Scale, 'g', -1, 64)
	return data.String() + " " + loc.Ty.StoreKind() + " " + scale, nil
}

// renderIf emits an if/unless subcommand, choosing the shortest of
// the equivalent forms.
func (bx *blockCx) renderIf(c *ir.IfCond, negate bool) (string, error) {
	keyword := "if"
	opposite := "unless"
	if negate {
		keyword, opposite = opposite, keyword
	}

	switch c.Kind {
	case ir.IfScoreSingle:
		left, err := bx.scoreOf(c.Left)
		if err != nil {
			return "", err
		}
		if v, ok := c.Right.ConstScore(); ok {
			return keyword + " score " + left.String() + " matches " + itoa(v), nil
		}
		right, err := bx.scoreValue(c.Right)
		if err != nil {
			return "", err
		}
		return keyword + " score " + left.String() + " = " + right.String(), nil

	case ir.IfScoreRange:
		return bx.renderScoreRange(c, keyword, opposite)

	case ir.IfData:
		data, err := bx.dataOf(c.Data)
		if err != nil {
			return "", err
		}
		return keyword + " data " + data.String(), nil

	case ir.IfEntity:
		return keyword + " entity " + c.Sel.String(), nil
	case ir.IfPredicate:
		return keyword + " predicate " + c.ID, nil
	case ir.IfBiome:
		return keyword + " biome " + c.Pos + " " + c.ID, nil
	case ir.IfFunction:
		return keyword + " function " + bx.cx.Mapping.Resolve(c.ID), nil
	}
	return "", diag.Internal("constant condition reached codegen")
}

func (bx *blockCx) renderScoreRange(c *ir.IfCond, keyword, opposite string) (string, error) {
	score, err := bx.scoreOf(c.Left)
	if err != nil {
		return "", err
	}
	name := score.String()

	// Fully open: an existence check.
	if !c.Min.Set && !c.Max.Set {
		return keyword + " score " + name + " matches .." + itoa(math.MaxInt32), nil
	}

	minC, minConst := constEnd(c.Min)
	maxC, maxConst := constEnd(c.Max)

	switch {
	case c.Min.Set && c.Max.Set:
		if !minConst || !maxConst {
			return "", diag.Internal("closed score range with register ends")
		}
		lo, hi := minC, maxC
		if !c.Min.Inclusive {
			lo++
		}
		if !c.Max.Inclusive {
			hi--
		}
		return keyword + " score " + name + " matches " + itoa(lo) + ".." + itoa(hi), nil

	case c.Min.Set && minConst:
		lo := minC
		if !c.Min.Inclusive {
			lo++
		}
		// `if matches N..` and `unless matches ..N-1` are equivalent;
		// pick the shorter text.
		primary := keyword + " score " + name + " matches " + itoa(lo) + ".."
		flipped := opposite + " score " + name + " matches .." + itoa(lo-1)
		return shorter(primary, flipped), nil

	case c.Max.Set && maxConst:
		hi := maxC
		if !c.Max.Inclusive {
			hi--
		}
		primary := keyword + " score " + name + " matches .." + itoa(hi)
		flipped := opposite + " score " + name + " matches " + itoa(hi+1) + ".."
		return shorter(primary, flipped), nil

	case c.Min.Set:
		op := ">="
		if !c.Min.Inclusive {
			op = ">"
		}
		other, err := bx.scoreValue(c.Min.Val)
		if err != nil {
			return "", err
		}
		return keyword + " score " + name + " " + op + " " + other.String(), nil

	default:
		op := "<="
		if !c.Max.Inclusive {
			op = "<"
		}
		other, err := bx.scoreValue(c.Max.Val)
		if err != nil {
			return "", err
		}
		return keyword + " score " + name + " " + op + " " + other.String(), nil
	}
}

func constEnd(e ir.RangeEnd) (int32, bool) {
	if !e.Set {
		return 0, false
	}
	return e.Val.ConstScore()
}

func shorter(a, b string) string {
	if len(b) < len(a) {
		return b
	}
	return a
}

func itoa(v int32) string {
	return strconv.FormatInt(int64(v), 10)
}

// buildCommand assembles the final line from a body command and its
// rendered modifiers. A command with no modifiers skips the execute
// prefix entirely; a bare modifier chain (conditional stores) is
// legal without a run clause.
func buildCommand(body string, mods []string) string {
	if len(mods) == 0 {
		return body
	}
	var b strings.Builder
	b.WriteString("execute ")
	for i, m := range mods {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(m)
	}
	if body != "" {
		b.WriteString(" run ")
		b.WriteString(body)
	}
	return b.String()
}
