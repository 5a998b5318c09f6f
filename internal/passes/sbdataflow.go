package passes

import (
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// StoreFusionPass fuses register copies into the producing score
// operation as `store result` modifiers. A chain of copies of the
// same source folds into a single command with one store per reader,
// which is also how multiple reads of one source canonicalize.
type StoreFusionPass struct{}

func (*StoreFusionPass) Name() string { return "store_fusion" }

func (p *StoreFusionPass) RunFunc(f *lir.Func, m *lir.Module) (bool, error) {
	changed := false
	for {
		again := runStoreFusionIter(f)
		if !again {
			break
		}
		changed = true
	}
	return changed, nil
}

// flowPoint is a score operation whose result is still current for
// its destination register.
type flowPoint struct {
	pos    int
	stores []ir.MutableValue
}

func runStoreFusionIter(f *lir.Func) bool {
	points := map[string]*flowPoint{}
	var finished []*flowPoint
	remove := map[int]bool{}

	kill := func(reg string) {
		if point, ok := points[reg]; ok {
			finished = append(finished, point)
			delete(points, reg)
		}
	}

	for i, in := range f.Instrs {
		if remove[i] {
			continue
		}

		switch {
		case in.Kind == lir.InstrSetScore && len(in.Mods) == 0:
			dst := in.Dst
			if src, ok := in.Src.AsReg(); ok {
				if point, live := points[src]; live && (i-1 == point.pos || remove[i-1]) {
					// The copy is adjacent to its producer (or to a
					// sibling copy already fused) and rides the
					// producing command as a store.
					point.stores = append(point.stores, dst)
					remove[i] = true
					continue
				}
				// An interposed instruction broke the chain.
				kill(src)
			}
			if dst.Kind == ir.MutReg {
				kill(dst.Reg)
			}

		case in.Kind.IsScoreArith() && len(in.Mods) == 0 && in.Dst.Kind == ir.MutReg:
			if src, ok := in.Src.AsReg(); ok {
				kill(src)
			}
			kill(in.Dst.Reg)
			points[in.Dst.Reg] = &flowPoint{pos: i}

		case in.Kind == lir.InstrSwapScore:
			if in.Dst.Kind == ir.MutReg {
				kill(in.Dst.Reg)
			}
			if in.Src2.Kind == ir.MutReg {
				kill(in.Src2.Reg)
			}

		case in.Kind == lir.InstrCall:
			// Calls can observe and clobber shared slots.
			for reg := range points {
				kill(reg)
			}

		default:
			for _, reg := range writtenLIRRegs(in) {
				kill(reg)
			}
		}
	}

	changed := false
	for _, point := range points {
		finished = append(finished, point)
	}
	for _, point := range finished {
		if len(point.stores) > 0 {
			attachStores(f.Instrs[point.pos], point.stores)
			changed = true
		}
	}
	if changed {
		f.Instrs = removeIndices(f.Instrs, remove)
	}
	return changed
}

func attachStores(in *lir.Instr, stores []ir.MutableValue) {
	for _, s := range stores {
		in.Mods = append(in.Mods, ir.Modifier{
			Kind:  ir.ModStoreResult,
			Store: ir.ScoreStore(s),
		})
	}
}

func writtenLIRRegs(in *lir.Instr) []string {
	var out []string
	add := func(m ir.MutableValue) {
		if m.Kind == ir.MutReg && m.Reg != "" {
			out = append(out, m.Reg)
		}
	}
	switch in.Kind {
	case lir.InstrGetScore, lir.InstrGetData, lir.InstrUse, lir.InstrComment, lir.InstrNoOp:
	default:
		add(in.Dst)
	}
	for idx := range in.Mods {
		m := in.Mods[idx]
		if m.Kind == ir.ModStoreResult || m.Kind == ir.ModStoreSuccess {
			add(m.Store.Val)
		}
	}
	return out
}
