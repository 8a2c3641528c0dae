// Package asm models decoded quest script code: the opcode table, instructions
// grouped into labelled segments, and a small text assembler and printer for
// the same instruction form.
package asm

import (
	"fmt"
	"strconv"
	"strings"
)

// ArgKind distinguishes integer literals from register references.
type ArgKind int

const (
	ArgInt ArgKind = iota
	ArgReg
	ArgOther // strings and anything the analyses cannot represent
)

// Arg is a single instruction argument.
type Arg struct {
	Kind  ArgKind
	Value int32  // literal value or register number
	Text  string // payload for ArgOther
}

// Int returns an integer-literal argument.
func Int(v int32) Arg { return Arg{Kind: ArgInt, Value: v} }

// Reg returns a register-reference argument.
func Reg(r int) Arg { return Arg{Kind: ArgReg, Value: int32(r)} }

// Str returns a string argument.
func Str(s string) Arg { return Arg{Kind: ArgOther, Text: s} }

func (a Arg) String() string {
	switch a.Kind {
	case ArgInt:
		return strconv.Itoa(int(a.Value))
	case ArgReg:
		return fmt.Sprintf("r%d", a.Value)
	default:
		return strconv.Quote(a.Text)
	}
}

// Instruction is one decoded instruction.
type Instruction struct {
	Opcode *Opcode
	Args   []Arg
	Line   int // 1-based source line, 0 when unknown
}

// New builds an instruction for the given code.
func New(code uint16, args ...Arg) Instruction {
	return Instruction{Opcode: Lookup(code), Args: args}
}

// BranchTargets returns the labels this instruction may transfer control to.
// Only integer-literal arguments at branch parameter positions count.
func (inst *Instruction) BranchTargets() []int32 {
	var targets []int32
	for i, a := range inst.Args {
		if a.Kind == ArgInt && inst.Opcode.IsBranchParam(i) {
			targets = append(targets, a.Value)
		}
	}
	return targets
}

// LabelRefs returns every literal label operand, including ones that are
// not branch targets such as floor handlers and arg_pusho.
func (inst *Instruction) LabelRefs() []int32 {
	params := inst.Opcode.Params
	var out []int32
	for i, a := range inst.Args {
		if a.Kind != ArgInt || len(params) == 0 {
			continue
		}
		if t := params[min(i, len(params)-1)].Type; t == TypeLabel || t == TypeLabels {
			out = append(out, a.Value)
		}
	}
	return out
}

// PopCount returns how many argument-stack values the instruction consumes.
func (inst *Instruction) PopCount() int {
	if inst.Opcode.Stack != StackPop {
		return 0
	}
	return len(inst.Opcode.Params)
}

// RegArg returns the register number held by argument i.
func (inst *Instruction) RegArg(i int) (int, bool) {
	if i >= len(inst.Args) || inst.Args[i].Kind != ArgReg {
		return 0, false
	}
	return int(inst.Args[i].Value), true
}

// IntArg returns the literal held by argument i.
func (inst *Instruction) IntArg(i int) (int32, bool) {
	if i >= len(inst.Args) || inst.Args[i].Kind != ArgInt {
		return 0, false
	}
	return inst.Args[i].Value, true
}

func (inst *Instruction) String() string {
	if len(inst.Args) == 0 {
		return inst.Opcode.Mnemonic
	}
	args := make([]string, len(inst.Args))
	for i, a := range inst.Args {
		args[i] = a.String()
	}
	return inst.Opcode.Mnemonic + " " + strings.Join(args, ", ")
}

// Segment is a run of instructions entered through its labels.
type Segment struct {
	Labels       []int32
	Instructions []Instruction
}

// HasLabel reports whether label enters this segment.
func (s *Segment) HasLabel(label int32) bool {
	for _, l := range s.Labels {
		if l == label {
			return true
		}
	}
	return false
}

// Format renders segments in assembler syntax.
func Format(segments []*Segment) string {
	var b strings.Builder
	for _, seg := range segments {
		for _, l := range seg.Labels {
			fmt.Fprintf(&b, "%d:\n", l)
		}
		for i := range seg.Instructions {
			fmt.Fprintf(&b, "    %s\n", seg.Instructions[i].String())
		}
	}
	return b.String()
}
