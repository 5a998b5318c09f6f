package passes

import "github.com/CarbonSmasher/dpc/internal/ir"

// removeIndices drops the elements at the given positions, keeping
// order.
func removeIndices[T any](items []T, remove map[int]bool) []T {
	if len(remove) == 0 {
		return items
	}
	out := items[:0]
	for i, item := range items {
		if !remove[i] {
			out = append(out, item)
		}
	}
	return out
}

// replaceExpand substitutes each marked position with a sequence of
// replacement elements.
func replaceExpand[T any](items []T, repl map[int][]T) []T {
	if len(repl) == 0 {
		return items
	}
	out := make([]T, 0, len(items))
	for i, item := range items {
		if r, ok := repl[i]; ok {
			out = append(out, r...)
		} else {
			out = append(out, item)
		}
	}
	return out
}

// cloneMods copies a modifier stack.
func cloneMods(mods []ir.Modifier) []ir.Modifier {
	return append([]ir.Modifier(nil), mods...)
}
