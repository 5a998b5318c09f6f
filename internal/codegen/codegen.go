package codegen

import (
	"fmt"
	"sort"
	"strings"

	"github.com/CarbonSmasher/dpc/internal/diag"
	"github.com/CarbonSmasher/dpc/internal/ir"
	"github.com/CarbonSmasher/dpc/internal/lir"
)

// Settings control emission.
type Settings struct {
	// PackName namespaces generated helper functions and stripped
	// names.
	PackName string
	Strip    StripMode
}

// Function is one emitted function file: one command per line.
type Function struct {
	Contents []string
}

// Datapack is the output mapping of function identifier to emitted
// commands, plus function tags.
type Datapack struct {
	Functions map[string]*Function
	Tags      map[string][]string
}

// Document renders every function into one text document, each
// section introduced by a comment header. Used for goldens.
func (d *Datapack) Document() string {
	ids := make([]string, 0, len(d.Functions))
	for id := range d.Functions {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var b strings.Builder
	for _, id := range ids {
		fmt.Fprintf(&b, "# === %s === #\n", id)
		for _, line := range d.Functions[id].Contents {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Cx is the pack-wide codegen context.
type Cx struct {
	Settings
	Mapping  FuncMapping
	racx     RegAllocCx
	literals map[int32]bool
	// usedRegObjective flips when any command addresses the register
	// objective, so init knows to create it.
	usedRegObjective bool
}

type blockCx struct {
	cx    *Cx
	alloc AllocResult
	scope string
	// extraMods are rendered modifiers an instruction body implies
	// (const-index loads store into their destination), emitted ahead
	// of the instruction's own stack.
	extraMods []string
}

// Generate emits command text for every function in the module.
func Generate(m *lir.Module, settings Settings) (*Datapack, error) {
	cx := &Cx{
		Settings: settings,
		Mapping:  Strip(m, settings.Strip, settings.PackName),
		literals: map[int32]bool{},
	}

	// Group functions by register scope and allocate each scope once.
	scopes := map[string][]*lir.Func{}
	for _, id := range m.SortedIDs() {
		f := m.Funcs[id]
		scope := f.Interface.RegScope()
		scopes[scope] = append(scopes[scope], f)
	}
	scopeIDs := make([]string, 0, len(scopes))
	for scope := range scopes {
		scopeIDs = append(scopeIDs, scope)
	}
	sort.Strings(scopeIDs)

	allocs := map[string]AllocResult{}
	for _, scope := range scopeIDs {
		alloc, err := AllocScope(scope, scopes[scope], &cx.racx)
		if err != nil {
			return nil, err
		}
		allocs[scope] = alloc
	}

	out := &Datapack{Functions: map[string]*Function{}, Tags: map[string][]string{}}
	for _, id := range m.SortedIDs() {
		f := m.Funcs[id]
		bx := &blockCx{cx: cx, alloc: allocs[f.Interface.RegScope()], scope: f.Interface.RegScope()}
		fn := &Function{}
		for i, in := range f.Instrs {
			line, ok, err := bx.codegenInstr(in)
			if err != nil {
				return nil, fmt.Errorf("function %s: instruction %d: %w", id, i, err)
			}
			if ok {
				fn.Contents = append(fn.Contents, line)
			}
		}
		out.Functions[cx.Mapping.Resolve(id)] = fn
	}

	genInit(cx, out)
	return out, nil
}

// genInit builds the pack initialization function: objective
// creation and literal constant slots.
func genInit(cx *Cx, out *Datapack) {
	var contents []string
	if cx.racx.HasScoreRegs() || cx.usedRegObjective {
		contents = append(contents, "scoreboard objectives add "+RegObjective+" dummy")
	}
	if len(cx.literals) > 0 {
		contents = append(contents, "scoreboard objectives add "+LitObjective+" dummy")
		lits := make([]int32, 0, len(cx.literals))
		for lit := range cx.literals {
			lits = append(lits, lit)
		}
		sort.Slice(lits, func(i, j int) bool { return lits[i] < lits[j] })
		for _, lit := range lits {
			contents = append(contents, fmt.Sprintf(
				"scoreboard players set %s %s %d", FormatLitHolder(lit), LitObjective, lit))
		}
	}
	if len(contents) == 0 {
		return
	}

	name := "dpc:init"
	if cx.PackName != "dpc" {
		name = cx.PackName + ":dpc_init"
	}
	out.Functions[name] = &Function{Contents: contents}
	out.Tags["minecraft:load"] = append(out.Tags["minecraft:load"], name)
}

// scoreOf resolves a mutable value to a concrete scoreboard cell.
func (bx *blockCx) scoreOf(m ir.MutableValue) (ir.Score, error) {
	switch m.Kind {
	case ir.MutScore:
		return m.Score, nil
	case ir.MutReg:
		holder, ok := bx.alloc.Scores[m.Reg]
		if !ok {
			return ir.Score{}, diag.Internal("register %%%s has no scoreboard slot", m.Reg)
		}
		bx.cx.usedRegObjective = true
		return ir.Score{Holder: holder, Objective: RegObjective}, nil
	case ir.MutArg:
		bx.cx.usedRegObjective = true
		return ir.Score{Holder: FormatArgHolder(m.Idx, bx.scope), Objective: RegObjective}, nil
	case ir.MutCallArg:
		bx.cx.usedRegObjective = true
		return ir.Score{Holder: FormatArgHolder(m.Idx, m.Func), Objective: RegObjective}, nil
	case ir.MutReturn:
		bx.cx.usedRegObjective = true
		return ir.Score{Holder: FormatRetHolder(m.Idx, bx.scope), Objective: RegObjective}, nil
	case ir.MutCallReturn:
		bx.cx.usedRegObjective = true
		return ir.Score{Holder: FormatRetHolder(m.Idx, m.Func), Objective: RegObjective}, nil
	}
	return ir.Score{}, diag.Internal("value %s is not score-backed", m)
}

// dataOf resolves a mutable value to a concrete NBT location.
func (bx *blockCx) dataOf(m ir.MutableValue) (ir.DataLocation, error) {
	switch m.Kind {
	case ir.MutData:
		return m.Data, nil
	case ir.MutReg:
		path, ok := bx.alloc.Locals[m.Reg]
		if !ok {
			return ir.DataLocation{}, diag.Internal("register %%%s has no storage slot", m.Reg)
		}
		return ir.DataLocation{Kind: ir.DataStorage, Target: RegStorage, Path: path}, nil
	case ir.MutArg:
		return ir.DataLocation{Kind: ir.DataStorage, Target: RegStorage, Path: FormatArgLocalPath(m.Idx, bx.scope)}, nil
	case ir.MutCallArg:
		return ir.DataLocation{Kind: ir.DataStorage, Target: RegStorage, Path: FormatArgLocalPath(m.Idx, m.Func)}, nil
	case ir.MutReturn:
		return ir.DataLocation{Kind: ir.DataStorage, Target: RegStorage, Path: FormatRetLocalPath(m.Idx, bx.scope)}, nil
	case ir.MutCallReturn:
		return ir.DataLocation{Kind: ir.DataStorage, Target: RegStorage, Path: FormatRetLocalPath(m.Idx, m.Func)}, nil
	}
	return ir.DataLocation{}, diag.Internal("value %s is not NBT-backed", m)
}

// scoreValue resolves a value to a scoreboard cell, materializing
// constants as literal slots in the literal objective.
func (bx *blockCx) scoreValue(v ir.Value) (ir.Score, error) {
	if v.Kind == ir.ValConst {
		lit := v.Const.Int32()
		bx.cx.literals[lit] = true
		return ir.Score{Holder: FormatLitHolder(lit), Objective: LitObjective}, nil
	}
	return bx.scoreOf(v.Mut)
}

// codegenInstr emits one command. ok=false means the instruction
// produces no output line.
func (bx *blockCx) codegenInstr(in *lir.Instr) (string, bool, error) {
	bx.extraMods = bx.extraMods[:0]
	body, emit, err := bx.instrBody(in)
	if err != nil {
		return "", false, err
	}
	if !emit {
		return "", false, nil
	}

	mods := append([]string(nil), bx.extraMods...)
	for _, m := range in.Mods {
		// Compile-time-known conditions either disappear or suppress
		// the whole command.
		if m.Kind == ir.ModIf && m.If.Kind == ir.IfConst {
			if m.If.B == m.Negate {
				return "", false, nil
			}
			continue
		}
		text, err := bx.renderModifier(m)
		if err != nil {
			return "", false, err
		}
		mods = append(mods, text)
	}

	if body == "" && len(mods) == 0 {
		return "", false, nil
	}
	return buildCommand(body, mods), true, nil
}

var scoreOpSymbols = map[lir.InstrKind]string{
	lir.InstrMulScore: "*=",
	lir.InstrDivScore: "/=",
	lir.InstrModScore: "%=",
	lir.InstrMinScore: "<",
	lir.InstrMaxScore: ">",
}

func (bx *blockCx) instrBody(in *lir.Instr) (string, bool, error) {
	switch in.Kind {
	case lir.InstrNoOp:
		return "", true, nil
	case lir.InstrUse, lir.InstrComment:
		if in.Kind == lir.InstrComment {
			return "#" + in.Str, true, nil
		}
		return "", false, nil

	case lir.InstrSetScore:
		left, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		if c, ok := in.Src.ConstScore(); ok {
			return fmt.Sprintf("scoreboard players set %s %d", left, c), true, nil
		}
		right, err := bx.scoreOf(in.Src.Mut)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("scoreboard players operation %s = %s", left, right), true, nil

	case lir.InstrAddScore, lir.InstrSubScore:
		left, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		if c, ok := in.Src.ConstScore(); ok {
			// add/remove amounts are unsigned in the command syntax
			word := "add"
			if in.Kind == lir.InstrSubScore {
				word = "remove"
			}
			if c < 0 {
				if word == "add" {
					word = "remove"
				} else {
					word = "add"
				}
				c = -c
			}
			return fmt.Sprintf("scoreboard players %s %s %d", word, left, c), true, nil
		}
		op := "+="
		if in.Kind == lir.InstrSubScore {
			op = "-="
		}
		right, err := bx.scoreOf(in.Src.Mut)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("scoreboard players operation %s %s %s", left, op, right), true, nil

	case lir.InstrMulScore, lir.InstrDivScore, lir.InstrModScore,
		lir.InstrMinScore, lir.InstrMaxScore:
		left, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		right, err := bx.scoreValue(in.Src)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("scoreboard players operation %s %s %s",
			left, scoreOpSymbols[in.Kind], right), true, nil

	case lir.InstrSwapScore:
		left, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		right, err := bx.scoreOf(in.Src2)
		if err != nil {
			return "", false, err
		}
		return fmt.Sprintf("scoreboard players operation %s >< %s", left, right), true, nil

	case lir.InstrGetScore:
		score, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		return "scoreboard players get " + score.String(), true, nil

	case lir.InstrResetScore:
		if in.Dst.Kind == ir.MutReg {
			// Registers live on a single objective, so resetting the
			// whole holder is valid and shorter.
			score, err := bx.scoreOf(in.Dst)
			if err != nil {
				return "", false, err
			}
			return "scoreboard players reset " + score.Holder, true, nil
		}
		score, err := bx.scoreOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		return "scoreboard players reset " + score.String(), true, nil

	case lir.InstrSetData, lir.InstrMergeData, lir.InstrPushData,
		lir.InstrPushFrontData, lir.InstrInsertData:
		return bx.dataModify(in)

	case lir.InstrGetData:
		data, err := bx.dataOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		return "data get " + data.String(), true, nil

	case lir.InstrRemoveData:
		data, err := bx.dataOf(in.Dst)
		if err != nil {
			return "", false, err
		}
		return "data remove " + data.String(), true, nil

	case lir.InstrConstIndexToScore:
		if in.Src.Kind != ir.ValMut {
			return "", false, diag.Internal("const index of a non-mutable value")
		}
		data, err := bx.dataOf(in.Src.Mut)
		if err != nil {
			return "", false, err
		}
		store, err := bx.renderModifier(ir.Modifier{
			Kind:  ir.ModStoreResult,
			Store: ir.ScoreStore(in.Dst),
		})
		if err != nil {
			return "", false, err
		}
		bx.extraMods = append(bx.extraMods, store)
		return fmt.Sprintf("data get %s[%d]", data, in.Index), true, nil

	case lir.InstrCall:
		return "function " + bx.cx.Mapping.Resolve(in.Func), true, nil

	case lir.InstrReturnValue:
		return fmt.Sprintf("return %d", in.Ret), true, nil

	case lir.InstrSay:
		return "say " + in.Str, true, nil
	case lir.InstrTell:
		return "tell " + in.Sel.String() + " " + in.Str, true, nil
	case lir.InstrMe:
		return "me " + in.Str, true, nil
	case lir.InstrCmd:
		return in.Str, true, nil

	case lir.InstrKill:
		// The bare form kills the executor.
		if in.Sel.IsBlankThis() {
			return "kill", true, nil
		}
		return "kill " + in.Sel.String(), true, nil

	case lir.InstrTeleport:
		if in.Pos != "" {
			return "tp " + in.Sel.String() + " " + in.Pos, true, nil
		}
		return "tp " + in.Sel.String() + " " + in.Sel2.String(), true, nil

	case lir.InstrXPSet, lir.InstrXPAdd:
		word := "set"
		if in.Kind == lir.InstrXPAdd {
			word = "add"
		}
		return fmt.Sprintf("xp %s %s %d %s", word, in.Sel, in.Amount, in.Str), true, nil
	case lir.InstrXPGet:
		return fmt.Sprintf("xp query %s %s", in.Sel, in.Str), true, nil
	}
	return "", false, diag.Internal("unhandled LIR instruction kind %d", in.Kind)
}

func (bx *blockCx) dataModify(in *lir.Instr) (string, bool, error) {
	data, err := bx.dataOf(in.Dst)
	if err != nil {
		return "", false, err
	}
	var op string
	switch in.Kind {
	case lir.InstrSetData:
		op = "set"
	case lir.InstrMergeData:
		op = "merge"
	case lir.InstrPushData:
		op = "append"
	case lir.InstrPushFrontData:
		op = "prepend"
	case lir.InstrInsertData:
		op = fmt.Sprintf("insert %d", in.Index)
	}

	if in.Src.Kind == ir.ValConst {
		return fmt.Sprintf("data modify %s %s value %s", data, op, in.Src.Const.Literal()), true, nil
	}
	src, err := bx.dataOf(in.Src.Mut)
	if err != nil {
		return "", false, err
	}
	return fmt.Sprintf("data modify %s %s from %s", data, op, src), true, nil
}
