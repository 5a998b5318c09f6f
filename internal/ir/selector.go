package ir

import "strings"

// Selector is an entity query: a base variable (@s, @e, @a, @p, @r or
// a plain player name) plus bracketed filter arguments. Argument order
// is semantically free but performance-relevant, since the game
// evaluates filters left to right.
type Selector struct {
	Base   string
	Params []SelectorParam
}

// SelectorParam is a single bracketed selector argument.
type SelectorParam struct {
	Key    string
	Value  string
	Invert bool
}

// NewSelector parses nothing; it wraps a base variable with arguments.
func NewSelector(base string, params ...SelectorParam) Selector {
	return Selector{Base: base, Params: params}
}

// IsBlankThis reports whether the selector is exactly @s with no
// arguments, i.e. a no-op context change under `as`.
func (s Selector) IsBlankThis() bool {
	return s.Base == "@s" && len(s.Params) == 0
}

// IsPlayerName reports whether the selector is a plain name rather
// than a query.
func (s Selector) IsPlayerName() bool {
	return !strings.HasPrefix(s.Base, "@")
}

// paramCost orders selector arguments by evaluation expense. Cheap
// set-membership filters go first so expensive spatial ones run on a
// reduced candidate list.
func paramCost(key string) int {
	switch key {
	case "type":
		return 1
	case "tag":
		return 2
	case "team":
		return 3
	case "gamemode":
		return 4
	case "name":
		return 5
	case "limit", "sort":
		return 6
	case "level":
		return 7
	case "x", "y", "z", "dx", "dy", "dz":
		return 8
	case "distance":
		return 9
	case "scores":
		return 10
	case "predicate":
		return 11
	case "nbt":
		return 12
	}
	return 6
}

// SortParams stably reorders the arguments cheapest-first. Returns
// true if the order changed.
func (s *Selector) SortParams() bool {
	changed := false
	p := s.Params
	// Insertion sort keeps equal-cost arguments in source order.
	for i := 1; i < len(p); i++ {
		for j := i; j > 0 && paramCost(p[j-1].Key) > paramCost(p[j].Key); j-- {
			p[j-1], p[j] = p[j], p[j-1]
			changed = true
		}
	}
	return changed
}

func (s Selector) String() string {
	if len(s.Params) == 0 {
		return s.Base
	}
	var b strings.Builder
	b.WriteString(s.Base)
	b.WriteByte('[')
	for i, p := range s.Params {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(p.Key)
		b.WriteByte('=')
		if p.Invert {
			b.WriteByte('!')
		}
		b.WriteString(p.Value)
	}
	b.WriteByte(']')
	return b.String()
}
