package parse

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/CarbonSmasher/dpc/internal/ir"
)

// Parser builds an ir.Module from lexed text. Parse may be called
// multiple times; Finish returns the accumulated module.
type Parser struct {
	mod *ir.Module

	toks []Token
	pos  int
}

// NewParser creates a parser with an empty module.
func NewParser() *Parser {
	return &Parser{mod: ir.NewModule()}
}

// Finish returns the built module.
func (p *Parser) Finish() *ir.Module {
	return p.mod
}

// Parse consumes one source text of function definitions.
func (p *Parser) Parse(src string) error {
	toks, err := Lex(src)
	if err != nil {
		return err
	}
	p.toks = toks
	p.pos = 0

	for !p.at(TokEOF) {
		if p.at(TokComment) {
			p.next()
			continue
		}
		if err := p.parseFunction(); err != nil {
			return err
		}
	}
	return nil
}

func (p *Parser) cur() Token  { return p.toks[p.pos] }
func (p *Parser) at(k TokenKind) bool {
	return p.toks[p.pos].Kind == k
}
func (p *Parser) atPunct(s string) bool {
	return p.at(TokPunct) && p.cur().Text == s
}
func (p *Parser) next() Token {
	t := p.toks[p.pos]
	if t.Kind != TokEOF {
		p.pos++
	}
	return t
}

func (p *Parser) errf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", p.cur().Line, fmt.Sprintf(format, args...))
}

func (p *Parser) expectPunct(s string) error {
	if !p.atPunct(s) {
		return p.errf("expected %q, found %q", s, p.cur().Text)
	}
	p.next()
	return nil
}

// parseFunction reads one top-level definition:
//
//	[@preserve] [@no_strip] "ns:path" [types...] [: ret] { instrs }
func (p *Parser) parseFunction() error {
	var ann ir.Annotations
	for p.at(TokAnnotation) {
		switch p.cur().Text {
		case "preserve":
			ann.Preserve = true
		case "no_strip":
			ann.NoStrip = true
		default:
			return p.errf("unknown annotation @%s", p.cur().Text)
		}
		p.next()
	}

	if !p.at(TokString) {
		return p.errf("expected function identifier string")
	}
	id := p.next().Text

	sig := ir.Signature{}
	for p.at(TokIdent) {
		ty := ir.TypeFromName(p.cur().Text)
		if ty == ir.TypeNone {
			return p.errf("unknown parameter type %q", p.cur().Text)
		}
		sig.Params = append(sig.Params, ty)
		p.next()
	}
	if p.atPunct(":") {
		p.next()
		if !p.at(TokIdent) {
			return p.errf("expected return type")
		}
		ty := ir.TypeFromName(p.cur().Text)
		if ty == ir.TypeNone {
			return p.errf("unknown return type %q", p.cur().Text)
		}
		sig.Ret = ty
		p.next()
	}

	body, err := p.parseBlock()
	if err != nil {
		return err
	}

	p.mod.Add(&ir.Function{
		Interface: ir.Interface{ID: id, Sig: sig, Annotations: ann},
		Body:      body,
	})
	return nil
}

// parseBlock reads `{ instr* }`. An NBT-shaped `{}` also reads as an
// empty block.
func (p *Parser) parseBlock() (*ir.Block, error) {
	if p.at(TokSNBT) && strings.TrimSpace(strings.Trim(p.cur().Text, "{}")) == "" {
		p.next()
		return ir.NewBlock(), nil
	}
	if err := p.expectPunct("{"); err != nil {
		return nil, err
	}
	block := ir.NewBlock()
	for !p.atPunct("}") {
		if p.at(TokEOF) {
			return nil, p.errf("unterminated block")
		}
		if p.at(TokComment) {
			p.next()
			continue
		}
		in, err := p.parseInstr()
		if err != nil {
			return nil, err
		}
		block.Push(*in)
	}
	p.next()
	return block, nil
}

var arithOps = map[string]ir.InstrKind{
	"add": ir.InstrAdd, "sub": ir.InstrSub, "mul": ir.InstrMul,
	"div": ir.InstrDiv, "mod": ir.InstrMod, "min": ir.InstrMin,
	"max": ir.InstrMax, "and": ir.InstrAnd, "or": ir.InstrOr,
	"xor": ir.InstrXor,
}

var dataOps = map[string]ir.InstrKind{
	"mrg": ir.InstrMerge, "psh": ir.InstrPush, "pshf": ir.InstrPushFront,
}

// parseInstr reads one instruction including its trailing `;` (block
// forms carry no semicolon).
func (p *Parser) parseInstr() (*ir.Instr, error) {
	if !p.at(TokIdent) {
		return nil, p.errf("expected instruction, found %q", p.cur().Text)
	}
	op := p.next().Text

	if kind, ok := arithOps[op]; ok {
		return p.parseBinary(kind)
	}
	if kind, ok := dataOps[op]; ok {
		return p.parseBinary(kind)
	}

	switch op {
	case "let":
		return p.parseLet()
	case "set":
		dst, err := p.parseMutable()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		src, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return p.terminated(&ir.Instr{Kind: ir.InstrAssign, Dst: dst, Src: src})
	case "swp":
		l, err := p.parseMutable()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		r, err := p.parseMutable()
		if err != nil {
			return nil, err
		}
		return p.terminated(&ir.Instr{Kind: ir.InstrSwap, Dst: l, Src2: r})
	case "abs", "get", "use", "rm":
		dst, err := p.parseMutable()
		if err != nil {
			return nil, err
		}
		kinds := map[string]ir.InstrKind{
			"abs": ir.InstrAbs, "get": ir.InstrGet,
			"use": ir.InstrUse, "rm": ir.InstrRemove,
		}
		return p.terminated(&ir.Instr{Kind: kinds[op], Dst: dst})
	case "pow":
		dst, err := p.parseMutable()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		return p.terminated(&ir.Instr{Kind: ir.InstrPow, Dst: dst, Exp: uint8(n)})
	case "ins":
		in, err := p.parseBinaryNoSemi(ir.InstrInsert)
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		in.Index = n
		return p.terminated(in)
	case "mdf":
		return p.parseModified()
	case "if":
		return p.parseIf()
	case "ife":
		return p.parseIfElse()
	case "while":
		return p.parseWhile()
	case "call":
		return p.parseCall()
	case "callx":
		if !p.at(TokString) {
			return nil, p.errf("expected extern function identifier")
		}
		id := p.next().Text
		return p.terminated(&ir.Instr{Kind: ir.InstrCallExtern, Str: id})
	case "retv":
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return p.terminated(&ir.Instr{Kind: ir.InstrReturn, Index: n, Src: v})
	case "say", "cmd", "me", "cmt":
		if !p.at(TokString) {
			return nil, p.errf("expected string")
		}
		text := p.next().Text
		kinds := map[string]ir.InstrKind{
			"say": ir.InstrSay, "cmd": ir.InstrCmd,
			"me": ir.InstrMe, "cmt": ir.InstrComment,
		}
		return p.terminated(&ir.Instr{Kind: kinds[op], Str: text})
	case "tell":
		sel, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		if !p.at(TokString) {
			return nil, p.errf("expected message string")
		}
		msg := p.next().Text
		return p.terminated(&ir.Instr{Kind: ir.InstrTell, Sel: sel, Str: msg})
	case "kill":
		in := &ir.Instr{Kind: ir.InstrKill, Sel: ir.NewSelector("@s")}
		if p.at(TokSelector) {
			sel, err := p.parseSelector()
			if err != nil {
				return nil, err
			}
			in.Sel = sel
		}
		return p.terminated(in)
	case "tp":
		return p.parseTeleport()
	case "xp":
		return p.parseXP()
	case "noop":
		return p.terminated(&ir.Instr{Kind: ir.InstrNoOp})
	}
	return nil, p.errf("unknown opcode %q", op)
}

func (p *Parser) terminated(in *ir.Instr) (*ir.Instr, error) {
	if err := p.expectPunct(";"); err != nil {
		return nil, err
	}
	return in, nil
}

func (p *Parser) parseBinary(kind ir.InstrKind) (*ir.Instr, error) {
	in, err := p.parseBinaryNoSemi(kind)
	if err != nil {
		return nil, err
	}
	return p.terminated(in)
}

func (p *Parser) parseBinaryNoSemi(kind ir.InstrKind) (*ir.Instr, error) {
	dst, err := p.parseMutable()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(","); err != nil {
		return nil, err
	}
	src, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	return &ir.Instr{Kind: kind, Dst: dst, Src: src}, nil
}

// parseLet reads `let NAME: T = RHS;` where RHS is a value, `null`,
// `cast V`, `idx V, N`, or `cond C`.
func (p *Parser) parseLet() (*ir.Instr, error) {
	if !p.at(TokReg) && !p.at(TokIdent) {
		return nil, p.errf("expected register name")
	}
	name := p.next().Text
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	if !p.at(TokIdent) {
		return nil, p.errf("expected type")
	}
	ty := ir.TypeFromName(p.next().Text)
	if ty == ir.TypeNone {
		return nil, p.errf("unknown type")
	}

	in := &ir.Instr{Kind: ir.InstrDeclare, Dst: ir.NewReg(name), Ty: ty}
	if !p.atPunct("=") {
		in.Binding = ir.Binding{Kind: ir.BindNull}
		return p.terminated(in)
	}
	p.next()

	switch {
	case p.at(TokIdent) && p.cur().Text == "null":
		p.next()
		in.Binding = ir.Binding{Kind: ir.BindNull}
	case p.at(TokIdent) && p.cur().Text == "cast":
		p.next()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		in.Binding = ir.Binding{Kind: ir.BindCast, Val: v}
	case p.at(TokIdent) && p.cur().Text == "idx":
		p.next()
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		in.Binding = ir.Binding{
			Kind:  ir.BindIndex,
			Val:   v,
			Index: ir.NewConstValue(ir.NewScoreConst(n)),
		}
	case p.at(TokIdent) && p.cur().Text == "cond":
		p.next()
		c, err := p.parseCondition()
		if err != nil {
			return nil, err
		}
		in.Binding = ir.Binding{Kind: ir.BindCondition, Cond: c}
	default:
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		in.Binding = ir.Binding{Kind: ir.BindValue, Val: v}
	}
	return p.terminated(in)
}

// parseModified reads `mdf MOD: BODY`.
func (p *Parser) parseModified() (*ir.Instr, error) {
	mod, err := p.parseModifier()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ir.Instr{Kind: ir.InstrBlock, Body: body, Mods: []ir.Modifier{mod}}, nil
}

func (p *Parser) parseModifier() (ir.Modifier, error) {
	if !p.at(TokIdent) {
		return ir.Modifier{}, p.errf("expected modifier keyword")
	}
	switch p.next().Text {
	case "as":
		sel, err := p.parseSelector()
		return ir.Modifier{Kind: ir.ModAs, Sel: sel}, err
	case "at":
		sel, err := p.parseSelector()
		return ir.Modifier{Kind: ir.ModAt, Sel: sel}, err
	case "pos":
		var parts []string
		for p.at(TokNumber) || (p.at(TokPunct) && p.cur().Text == "~") {
			parts = append(parts, p.next().Text)
		}
		return ir.Modifier{Kind: ir.ModPositioned, Pos: strings.Join(parts, " ")}, nil
	case "in":
		if !p.at(TokIdent) {
			return ir.Modifier{}, p.errf("expected dimension identifier")
		}
		return ir.Modifier{Kind: ir.ModIn, Str: p.next().Text}, nil
	case "anc":
		if !p.at(TokIdent) {
			return ir.Modifier{}, p.errf("expected anchor keyword")
		}
		return ir.Modifier{Kind: ir.ModAnchored, Str: p.next().Text}, nil
	case "str":
		dst, err := p.parseMutable()
		if err != nil {
			return ir.Modifier{}, err
		}
		return ir.Modifier{Kind: ir.ModStoreResult, Store: ir.ScoreStore(dst)}, nil
	case "sts":
		dst, err := p.parseMutable()
		if err != nil {
			return ir.Modifier{}, err
		}
		return ir.Modifier{Kind: ir.ModStoreSuccess, Store: ir.ScoreStore(dst)}, nil
	}
	return ir.Modifier{}, p.errf("unknown modifier")
}

// parseBody reads either a braced block or a single instruction.
func (p *Parser) parseBody() (*ir.Block, error) {
	if p.atPunct("{") || p.at(TokSNBT) {
		return p.parseBlock()
	}
	in, err := p.parseInstr()
	if err != nil {
		return nil, err
	}
	block := ir.NewBlock()
	block.Push(*in)
	return block, nil
}

func (p *Parser) parseIf() (*ir.Instr, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	if err := p.expectPunct(":"); err != nil {
		return nil, err
	}
	body, err := p.parseBody()
	if err != nil {
		return nil, err
	}
	return &ir.Instr{Kind: ir.InstrIf, Cond: cond, Body: body}, nil
}

func (p *Parser) parseIfElse() (*ir.Instr, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	thenBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	elseBody, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ir.Instr{Kind: ir.InstrIfElse, Cond: cond, Body: thenBody, Else: elseBody}, nil
}

func (p *Parser) parseWhile() (*ir.Instr, error) {
	cond, err := p.parseCondition()
	if err != nil {
		return nil, err
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &ir.Instr{Kind: ir.InstrWhile, Cond: cond, Body: body}, nil
}

// parseCall reads `call [%dst] run "ns:name" [, args...]`.
func (p *Parser) parseCall() (*ir.Instr, error) {
	call := &ir.Call{}
	if p.at(TokReg) {
		call.Ret = append(call.Ret, ir.NewReg(p.next().Text))
	}
	if !p.at(TokIdent) || p.cur().Text != "run" {
		return nil, p.errf("expected `run`")
	}
	p.next()
	if !p.at(TokString) {
		return nil, p.errf("expected function identifier")
	}
	call.Function = p.next().Text
	for p.atPunct(",") {
		p.next()
		arg, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		call.Args = append(call.Args, arg)
	}
	return p.terminated(&ir.Instr{Kind: ir.InstrCall, Call: call})
}

func (p *Parser) parseTeleport() (*ir.Instr, error) {
	sel, err := p.parseSelector()
	if err != nil {
		return nil, err
	}
	in := &ir.Instr{Kind: ir.InstrTeleport, Sel: sel}
	if p.at(TokSelector) {
		dest, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		in.Sel2 = dest
	} else {
		var parts []string
		for p.at(TokNumber) || (p.at(TokPunct) && p.cur().Text == "~") {
			parts = append(parts, p.next().Text)
		}
		if len(parts) == 0 {
			return nil, p.errf("expected destination")
		}
		in.Pos = strings.Join(parts, " ")
	}
	return p.terminated(in)
}

func (p *Parser) parseXP() (*ir.Instr, error) {
	if !p.at(TokIdent) {
		return nil, p.errf("expected xp subcommand")
	}
	sub := p.next().Text
	sel, err := p.parseSelector()
	if err != nil {
		return nil, err
	}
	switch sub {
	case "set", "add":
		n, err := p.parseInt()
		if err != nil {
			return nil, err
		}
		if !p.at(TokIdent) {
			return nil, p.errf("expected points or levels")
		}
		value := p.next().Text
		kind := ir.InstrXPSet
		if sub == "add" {
			kind = ir.InstrXPAdd
		}
		return p.terminated(&ir.Instr{Kind: kind, Sel: sel, Amount: n, Str: value})
	case "get":
		if !p.at(TokIdent) {
			return nil, p.errf("expected points or levels")
		}
		value := p.next().Text
		return p.terminated(&ir.Instr{Kind: ir.InstrXPGet, Sel: sel, Str: value})
	}
	return nil, p.errf("unknown xp subcommand %q", sub)
}

// parseSelector reads one selector or player name.
func (p *Parser) parseSelector() (ir.Selector, error) {
	if p.at(TokSelector) {
		return parseSelectorText(p.next().Text), nil
	}
	if p.at(TokIdent) {
		return ir.NewSelector(p.next().Text), nil
	}
	return ir.Selector{}, p.errf("expected selector")
}

func parseSelectorText(text string) ir.Selector {
	open := strings.IndexByte(text, '[')
	if open < 0 {
		return ir.NewSelector(text)
	}
	sel := ir.NewSelector(text[:open])
	inner := strings.TrimSuffix(text[open+1:], "]")
	for _, part := range strings.Split(inner, ",") {
		kv := strings.SplitN(part, "=", 2)
		if len(kv) != 2 {
			continue
		}
		param := ir.SelectorParam{Key: strings.TrimSpace(kv[0])}
		val := strings.TrimSpace(kv[1])
		if strings.HasPrefix(val, "!") {
			param.Invert = true
			val = val[1:]
		}
		param.Value = val
		sel.Params = append(sel.Params, param)
	}
	return sel
}

// parseMutable reads a mutable value: %reg, &arg, *ret, a score
// cell, or a data location.
func (p *Parser) parseMutable() (ir.MutableValue, error) {
	switch {
	case p.at(TokReg):
		return ir.NewReg(p.next().Text), nil
	case p.at(TokArg):
		idx, err := strconv.Atoi(p.next().Text)
		if err != nil {
			return ir.MutableValue{}, p.errf("bad argument index")
		}
		return ir.NewArg(idx), nil
	case p.atPunct("*"):
		p.next()
		idx, err := p.parseInt()
		if err != nil {
			return ir.MutableValue{}, err
		}
		return ir.NewReturn(int(idx)), nil
	case p.at(TokIdent) && p.cur().Text == "sco":
		p.next()
		var holder string
		if p.at(TokSelector) {
			holder = p.next().Text
		} else if p.at(TokIdent) || p.at(TokReg) {
			t := p.next()
			holder = t.Text
			if t.Kind == TokReg {
				holder = "%" + holder
			}
		} else {
			return ir.MutableValue{}, p.errf("expected score holder")
		}
		if !p.at(TokIdent) {
			return ir.MutableValue{}, p.errf("expected objective")
		}
		return ir.NewScoreVal(holder, p.next().Text), nil
	case p.at(TokIdent) && (p.cur().Text == "stg" || p.cur().Text == "ent" || p.cur().Text == "blk"):
		kind := ir.DataStorage
		switch p.next().Text {
		case "ent":
			kind = ir.DataEntity
		case "blk":
			kind = ir.DataBlock
		}
		if !p.at(TokIdent) && !p.at(TokSelector) {
			return ir.MutableValue{}, p.errf("expected data target")
		}
		target := p.next().Text
		if !p.at(TokIdent) {
			return ir.MutableValue{}, p.errf("expected data path")
		}
		path := p.next().Text
		return ir.NewDataVal(ir.DataLocation{Kind: kind, Target: target, Path: path}), nil
	}
	return ir.MutableValue{}, p.errf("expected mutable value, found %q", p.cur().Text)
}

// parseValue reads a value: a literal constant or a mutable
// reference.
func (p *Parser) parseValue() (ir.Value, error) {
	switch {
	case p.at(TokNumber):
		return p.parseNumber()
	case p.at(TokIdent) && (p.cur().Text == "true" || p.cur().Text == "false"):
		v := p.next().Text == "true"
		return ir.NewConstValue(ir.NewBoolConst(v)), nil
	case p.at(TokSNBT):
		return ir.NewConstValue(ir.Const{Ty: ir.TypeNAny, Raw: p.next().Text}), nil
	}
	mut, err := p.parseMutable()
	if err != nil {
		return ir.Value{}, err
	}
	return ir.NewMutValue(mut), nil
}

func (p *Parser) parseNumber() (ir.Value, error) {
	text := p.next().Text
	suffix := byte(0)
	if n := len(text); n > 0 {
		switch text[n-1] {
		case 'b', 's', 'l', 'f', 'd':
			suffix = text[n-1]
			text = text[:n-1]
		}
	}
	if strings.ContainsRune(text, '.') || suffix == 'f' || suffix == 'd' {
		f, err := strconv.ParseFloat(text, 64)
		if err != nil {
			return ir.Value{}, p.errf("bad number literal")
		}
		ty := ir.TypeNDouble
		if suffix == 'f' {
			ty = ir.TypeNFloat
		}
		return ir.NewConstValue(ir.Const{Ty: ty, F: f}), nil
	}
	i, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		return ir.Value{}, p.errf("bad integer literal")
	}
	switch suffix {
	case 'b':
		return ir.NewConstValue(ir.Const{Ty: ir.TypeNByte, I: i}), nil
	case 's':
		return ir.NewConstValue(ir.Const{Ty: ir.TypeNShort, I: i}), nil
	case 'l':
		return ir.NewConstValue(ir.Const{Ty: ir.TypeNLong, I: i}), nil
	}
	return ir.NewConstValue(ir.NewScoreConst(int32(i))), nil
}

func (p *Parser) parseInt() (int32, error) {
	if !p.at(TokNumber) {
		return 0, p.errf("expected integer")
	}
	i, err := strconv.ParseInt(p.next().Text, 10, 32)
	if err != nil {
		return 0, p.errf("bad integer literal")
	}
	return int32(i), nil
}

// parseCondition reads the prefix condition grammar:
//
//	true | false | not(C) | and(C, C...) | or(C, C...) | xor(C, C)
//	eq(V, V) | gt | gte | lt | lte | exi(V) | bool(V) | nbool(V)
//	ent(SEL) | pred(id) | data(MUT)
func (p *Parser) parseCondition() (*ir.Condition, error) {
	if !p.at(TokIdent) {
		return nil, p.errf("expected condition")
	}
	head := p.next().Text
	switch head {
	case "true":
		return ir.NewConstCond(true), nil
	case "false":
		return ir.NewConstCond(false), nil
	}

	if err := p.expectPunct("("); err != nil {
		return nil, err
	}

	out := &ir.Condition{}
	switch head {
	case "not", "and", "or", "xor":
		kinds := map[string]ir.CondKind{
			"not": ir.CondNot, "and": ir.CondAnd,
			"or": ir.CondOr, "xor": ir.CondXor,
		}
		out.Kind = kinds[head]
		for {
			sub, err := p.parseCondition()
			if err != nil {
				return nil, err
			}
			out.Sub = append(out.Sub, sub)
			if !p.atPunct(",") {
				break
			}
			p.next()
		}
	case "eq", "gt", "gte", "lt", "lte":
		kinds := map[string]ir.CondKind{
			"eq": ir.CondEqual, "gt": ir.CondGreater, "gte": ir.CondGreaterEq,
			"lt": ir.CondLess, "lte": ir.CondLessEq,
		}
		out.Kind = kinds[head]
		l, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		if err := p.expectPunct(","); err != nil {
			return nil, err
		}
		r, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out.L, out.R = l, r
	case "exi", "bool", "nbool":
		kinds := map[string]ir.CondKind{
			"exi": ir.CondExists, "bool": ir.CondBool, "nbool": ir.CondNotBool,
		}
		out.Kind = kinds[head]
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out.Val = v
	case "ent":
		sel, err := p.parseSelector()
		if err != nil {
			return nil, err
		}
		out.Kind = ir.CondEntity
		out.Sel = sel
	case "pred":
		if !p.at(TokIdent) && !p.at(TokString) {
			return nil, p.errf("expected predicate identifier")
		}
		out.Kind = ir.CondPredicate
		out.ID = p.next().Text
	case "data":
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		out.Kind = ir.CondData
		out.Val = v
	default:
		return nil, p.errf("unknown condition %q", head)
	}

	if err := p.expectPunct(")"); err != nil {
		return nil, err
	}
	return out, nil
}
