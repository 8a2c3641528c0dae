package asm

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Error is an assembler diagnostic tied to a source position.
type Error struct {
	Line   int
	Column int
	Msg    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s", e.Line, e.Column, e.Msg)
}

// ErrorList collects every error found while assembling.
type ErrorList []*Error

func (l ErrorList) Error() string {
	switch len(l) {
	case 0:
		return "no errors"
	case 1:
		return l[0].Error()
	}
	return fmt.Sprintf("%s (and %d more errors)", l[0].Error(), len(l)-1)
}

// Assemble parses quest assembly into segments. A label line ("12:") starts a
// new segment unless the current segment has no instructions yet. Lines with
// errors are skipped; the returned segments are usable even when err is a
// non-empty ErrorList.
func Assemble(src string) ([]*Segment, error) {
	a := &assembler{tokens: Tokenize(src)}
	a.run()
	if len(a.errors) > 0 {
		return a.segments, a.errors
	}
	return a.segments, nil
}

// MustAssemble is like Assemble but panics on error. Intended for tests and
// package-level fixtures.
func MustAssemble(src string) []*Segment {
	segs, err := Assemble(src)
	if err != nil {
		panic(fmt.Sprintf("asm: %v", err))
	}
	return segs
}

type assembler struct {
	tokens   []Token
	pos      int
	segments []*Segment
	errors   ErrorList
}

func (a *assembler) cur() Token {
	return a.tokens[a.pos]
}

func (a *assembler) next() Token {
	tok := a.tokens[a.pos]
	if tok.Type != TokenEOF {
		a.pos++
	}
	return tok
}

func (a *assembler) errorf(tok Token, format string, args ...any) {
	a.errors = append(a.errors, &Error{Line: tok.Line, Column: tok.Column, Msg: fmt.Sprintf(format, args...)})
}

// skipLine discards tokens up to and including the next newline.
func (a *assembler) skipLine() {
	for {
		tok := a.next()
		if tok.Type == TokenNewline || tok.Type == TokenEOF {
			return
		}
	}
}

func (a *assembler) current() *Segment {
	if len(a.segments) == 0 {
		a.segments = append(a.segments, &Segment{})
	}
	return a.segments[len(a.segments)-1]
}

func (a *assembler) run() {
	for {
		tok := a.cur()
		switch tok.Type {
		case TokenEOF:
			return
		case TokenNewline:
			a.next()
		case TokenInteger:
			a.label()
		case TokenIdent:
			a.instruction()
		case TokenError:
			a.errorf(tok, "%s", tok.Literal)
			a.skipLine()
		default:
			a.errorf(tok, "unexpected %s", tok.Type)
			a.skipLine()
		}
	}
}

func (a *assembler) label() {
	tok := a.next()
	if a.cur().Type != TokenColon {
		a.errorf(tok, "expected ':' after label %s", tok.Literal)
		a.skipLine()
		return
	}
	a.next()

	value, err := parseInt(tok.Literal)
	if err != nil || value < 0 {
		a.errorf(tok, "invalid label %q", tok.Literal)
		a.skipLine()
		return
	}

	seg := a.current()
	if len(seg.Instructions) > 0 {
		seg = &Segment{}
		a.segments = append(a.segments, seg)
	}
	seg.Labels = append(seg.Labels, int32(value))
}

func (a *assembler) instruction() {
	mnemonic := a.next()
	op, ok := LookupMnemonic(mnemonic.Literal)
	if !ok {
		a.errorf(mnemonic, "unknown instruction %q", mnemonic.Literal)
		a.skipLine()
		return
	}

	var argToks []Token
	for a.cur().Type != TokenNewline && a.cur().Type != TokenEOF {
		if len(argToks) > 0 {
			if sep := a.next(); sep.Type != TokenComma {
				a.errorf(sep, "expected ',' between arguments, got %s", sep.Type)
				a.skipLine()
				return
			}
		}
		tok := a.next()
		switch tok.Type {
		case TokenRegister, TokenInteger, TokenString:
			argToks = append(argToks, tok)
		default:
			a.errorf(tok, "expected argument, got %s", tok.Type)
			a.skipLine()
			return
		}
	}
	a.skipLine()

	var args []Arg
	switch {
	case op.Stack == StackPop && len(argToks) > 0:
		a.stackCall(mnemonic, op, argToks)
		return
	case op.Stack != StackPop:
		var ok bool
		if args, ok = a.args(mnemonic, op, argToks); !ok {
			return
		}
	}
	seg := a.current()
	seg.Instructions = append(seg.Instructions, Instruction{Opcode: op, Args: args, Line: mnemonic.Line})
}

// args checks argument tokens against the opcode's parameters.
func (a *assembler) args(at Token, op *Opcode, toks []Token) ([]Arg, bool) {
	variadic := len(op.Params) > 0 && op.Params[len(op.Params)-1].Type == TypeLabels
	fixed := len(op.Params)
	if variadic {
		fixed--
	}
	if len(toks) < fixed || (!variadic && len(toks) > fixed) {
		a.errorf(at, "%s expects %d arguments, got %d", op.Mnemonic, fixed, len(toks))
		return nil, false
	}

	args := make([]Arg, len(toks))
	for i, tok := range toks {
		p := op.Params[min(i, len(op.Params)-1)]
		arg, ok := a.arg(tok, p)
		if !ok {
			return nil, false
		}
		args[i] = arg
	}
	return args, true
}

func (a *assembler) arg(tok Token, p Param) (Arg, bool) {
	switch p.Type {
	case TypeReg, TypeRegRange:
		if tok.Type != TokenRegister {
			a.errorf(tok, "%s must be a register", p.Name)
			return Arg{}, false
		}
		n, err := strconv.Atoi(tok.Literal[1:])
		if err != nil || n > 255 {
			a.errorf(tok, "invalid register %s", tok.Literal)
			return Arg{}, false
		}
		return Reg(n), true

	case TypeString:
		if tok.Type != TokenString {
			a.errorf(tok, "%s must be a string", p.Name)
			return Arg{}, false
		}
		return Str(tok.Literal), true
	}

	if tok.Type != TokenInteger {
		a.errorf(tok, "%s must be an integer", p.Name)
		return Arg{}, false
	}
	v, err := parseInt(tok.Literal)
	if err != nil {
		a.errorf(tok, "invalid integer %q", tok.Literal)
		return Arg{}, false
	}
	lo, hi := paramRange(p.Type)
	if v < lo || v > hi {
		a.errorf(tok, "%s out of range: %d", p.Name, v)
		return Arg{}, false
	}
	return Int(int32(v)), true
}

// stackCall expands "op a, b" for an argument-stack opcode into the
// arg_push instructions that feed it, followed by the bare opcode.
func (a *assembler) stackCall(at Token, op *Opcode, toks []Token) {
	if len(toks) != len(op.Params) {
		a.errorf(at, "%s expects %d arguments, got %d", op.Mnemonic, len(op.Params), len(toks))
		return
	}

	var insts []Instruction
	for i, tok := range toks {
		p := op.Params[i]
		var push uint16
		switch {
		case tok.Type == TokenRegister:
			push = OpArgPushR
		case tok.Type == TokenString:
			push = OpArgPushS
		case p.Type == TypeLabel:
			push = OpArgPushO
		case p.Type == TypeByte:
			push = OpArgPushB
		case p.Type == TypeWord:
			push = OpArgPushW
		default:
			push = OpArgPushL
		}
		pushOp := Lookup(push)
		arg, ok := a.arg(tok, pushOp.Params[0])
		if !ok {
			return
		}
		insts = append(insts, Instruction{Opcode: pushOp, Args: []Arg{arg}, Line: at.Line})
	}
	insts = append(insts, Instruction{Opcode: op, Line: at.Line})

	seg := a.current()
	seg.Instructions = append(seg.Instructions, insts...)
}

func paramRange(t ParamType) (int64, int64) {
	switch t {
	case TypeByte:
		return 0, math.MaxUint8
	case TypeWord:
		return 0, math.MaxUint16
	case TypeLabel, TypeLabels:
		return 0, math.MaxInt32
	}
	return math.MinInt32, math.MaxUint32
}

func parseInt(s string) (int64, error) {
	neg := strings.HasPrefix(s, "-")
	s = strings.TrimPrefix(s, "-")
	var v uint64
	var err error
	if strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X") {
		v, err = strconv.ParseUint(s[2:], 16, 32)
	} else {
		v, err = strconv.ParseUint(s, 10, 32)
	}
	if err != nil {
		return 0, err
	}
	if neg {
		return -int64(v), nil
	}
	return int64(v), nil
}
