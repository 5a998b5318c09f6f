package codegen

import (
	"sort"

	"fortio.org/safecast"

	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// allocator hands out slot numbers, reusing the numbers of registers
// whose live ranges have ended. Freed slots come back in LIFO order
// so the mapping is deterministic.
type allocator struct {
	count uint32
	avail []uint32
	freed map[uint32]bool
}

func newAllocator() *allocator {
	return &allocator{freed: map[uint32]bool{}}
}

func (a *allocator) alloc() uint32 {
	if n := len(a.avail); n > 0 {
		slot := a.avail[n-1]
		a.avail = a.avail[:n-1]
		delete(a.freed, slot)
		return slot
	}
	slot := a.count
	a.count++
	return slot
}

func (a *allocator) free(slot uint32) {
	if !a.freed[slot] {
		a.freed[slot] = true
		a.avail = append(a.avail, slot)
	}
}

// RegAllocCx tracks allocation across the whole pack, so init
// generation knows whether any working registers or locals exist.
type RegAllocCx struct {
	scoreCount uint32
	localCount uint32
}

// HasScoreRegs reports whether any scoreboard register was allocated.
func (cx *RegAllocCx) HasScoreRegs() bool { return cx.scoreCount > 0 }

// HasLocals reports whether any NBT-typed register was allocated.
func (cx *RegAllocCx) HasLocals() bool { return cx.localCount > 0 }

// AllocResult maps register identifiers to their scoreboard holders
// and storage paths for one register scope.
type AllocResult struct {
	Scores map[string]string
	Locals map[string]string
}

// AllocScope assigns scoreboard slots to the registers of a root
// function and every internal function minted into its scope.
// Registers with disjoint live ranges coalesce onto the same slot.
// The live-range walk covers the concatenation of the root's body
// followed by the minted bodies in sorted order, which is the order
// register references can appear at runtime re-entry-free.
func AllocScope(scope string, funcs []*lir.Func, racx *RegAllocCx) (AllocResult, error) {
	regs := newAllocator()
	locals := newAllocator()
	out := AllocResult{Scores: map[string]string{}, Locals: map[string]string{}}

	// Stable walk order: root first, minted functions after, sorted.
	ordered := append([]*lir.Func(nil), funcs...)
	sort.Slice(ordered, func(i, j int) bool {
		if (ordered[i].Interface.ID == scope) != (ordered[j].Interface.ID == scope) {
			return ordered[i].Interface.ID == scope
		}
		return ordered[i].Interface.ID < ordered[j].Interface.ID
	})

	var seq []*lir.Instr
	types := ir.RegisterList{}
	for _, f := range ordered {
		seq = append(seq, f.Instrs...)
		for id, reg := range f.Regs {
			types[id] = reg
		}
	}

	lastUse := lastUses(seq)

	for i, in := range seq {
		for _, regID := range in.UsedRegs(nil) {
			reg, ok := types[regID]
			if !ok {
				// Registers can appear without declarations when a
				// pass materialized them; they default to score.
				reg = ir.Register{ID: regID, Ty: ir.TypeScore}
			}
			if reg.Ty.IsScore() {
				if _, done := out.Scores[regID]; !done {
					slot := regs.alloc()
					out.Scores[regID] = FormatRegHolder(slot, scope)
					if slot+1 > racx.scoreCount {
						racx.scoreCount = slot + 1
					}
				}
			} else {
				if _, done := out.Locals[regID]; !done {
					slot := locals.alloc()
					out.Locals[regID] = FormatLocalPath(slot, scope)
					if slot+1 > racx.localCount {
						racx.localCount = slot + 1
					}
				}
			}
		}

		for _, regID := range lastUse[i] {
			reg, ok := types[regID]
			if !ok {
				reg = ir.Register{ID: regID, Ty: ir.TypeScore}
			}
			if reg.Ty.IsScore() {
				if holder, done := out.Scores[regID]; done {
					regs.free(trailingNumber(holder))
				}
			} else {
				if path, done := out.Locals[regID]; done {
					locals.free(trailingNumber(path))
				}
			}
		}
	}

	return out, nil
}

// lastUses maps each instruction index to the registers whose final
// reference it holds.
func lastUses(seq []*lir.Instr) map[int][]string {
	out := map[int][]string{}
	spent := map[string]bool{}
	for i := len(seq) - 1; i >= 0; i-- {
		used := seq[i].UsedRegs(nil)
		var last []string
		for _, reg := range used {
			if !spent[reg] {
				spent[reg] = true
				last = append(last, reg)
			}
		}
		out[i] = last
	}
	return out
}

// trailingNumber parses the slot number back out of a generated
// holder or path name; the names are the single source of truth for
// the mapping.
func trailingNumber(s string) uint32 {
	n := 0
	mult := 1
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] < '0' || s[i] > '9' {
			break
		}
		n += int(s[i]-'0') * mult
		mult *= 10
	}
	out, err := safecast.Convert[uint32](n)
	if err != nil {
		return 0
	}
	return out
}
