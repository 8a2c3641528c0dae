package asm

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Opcode classification
// ---------------------------------------------------------------------------

// Kind classifies how an opcode transfers control.
type Kind int

const (
	KindOther Kind = iota
	KindReturn
	KindJump
	KindCondJump
	KindSwitchJump
	KindCall
	KindSwitchCall
)

var kindNames = [...]string{"other", "return", "jump", "cond_jump", "switch_jump", "call", "switch_call"}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// StackEffect describes how an opcode interacts with the argument stack.
type StackEffect int

const (
	StackNone StackEffect = iota
	StackPush             // pushes one value
	StackPop              // pops one value per parameter
)

// ParamType is the declared type of an opcode parameter.
type ParamType int

const (
	TypeReg      ParamType = iota // register reference
	TypeRegRange                  // first register of a consecutive range
	TypeByte
	TypeWord
	TypeDWord
	TypeLabel
	TypeLabels // variadic list of labels, must be last
	TypeString
)

// Param describes one opcode parameter.
type Param struct {
	Name string
	Type ParamType
}

// Opcode holds the metadata for a single instruction code.
type Opcode struct {
	Code     uint16
	Mnemonic string
	Kind     Kind
	Params   []Param
	Stack    StackEffect
}

func (op *Opcode) String() string {
	return op.Mnemonic
}

// IsBranchParam reports whether the parameter at index i holds a branch target.
// Variadic label lists cover every index from their position onwards.
func (op *Opcode) IsBranchParam(i int) bool {
	if op.Kind == KindOther || op.Kind == KindReturn {
		return false
	}
	for j, p := range op.Params {
		switch {
		case p.Type == TypeLabels && i >= j:
			return true
		case j == i:
			return p.Type == TypeLabel
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Opcode codes
// ---------------------------------------------------------------------------

const (
	OpNop    uint16 = 0x00
	OpRet    uint16 = 0x01
	OpSync   uint16 = 0x02
	OpExit   uint16 = 0x03
	OpThread uint16 = 0x04

	OpLet  uint16 = 0x08 // reg = reg
	OpLetI uint16 = 0x09 // reg = dword
	OpLetB uint16 = 0x0A // reg = byte
	OpLetW uint16 = 0x0B // reg = word
	OpLetA uint16 = 0x0C // reg = address of reg
	OpLetO uint16 = 0x0D // reg = address of label

	OpSet   uint16 = 0x10
	OpClear uint16 = 0x11
	OpRev   uint16 = 0x12

	OpAdd  uint16 = 0x18
	OpAddI uint16 = 0x19
	OpSub  uint16 = 0x1A
	OpSubI uint16 = 0x1B
	OpMul  uint16 = 0x1C
	OpMulI uint16 = 0x1D
	OpDiv  uint16 = 0x1E
	OpDivI uint16 = 0x1F
	OpAnd  uint16 = 0x20
	OpAndI uint16 = 0x21
	OpOr   uint16 = 0x22
	OpOrI  uint16 = 0x23
	OpXor  uint16 = 0x24
	OpXorI uint16 = 0x25
	OpMod  uint16 = 0x26
	OpModI uint16 = 0x27

	OpJmp  uint16 = 0x28
	OpCall uint16 = 0x29

	OpJmpEq  uint16 = 0x2C
	OpJmpIEq uint16 = 0x2D
	OpJmpNe  uint16 = 0x2E
	OpJmpINe uint16 = 0x2F
	OpJmpGt  uint16 = 0x32
	OpJmpIGt uint16 = 0x33
	OpJmpLt  uint16 = 0x36
	OpJmpILt uint16 = 0x37
	OpJmpGe  uint16 = 0x3A
	OpJmpIGe uint16 = 0x3B
	OpJmpLe  uint16 = 0x3E
	OpJmpILe uint16 = 0x3F

	OpSwitchJmp  uint16 = 0x40
	OpSwitchCall uint16 = 0x41

	OpStackPush  uint16 = 0x42
	OpStackPop   uint16 = 0x43
	OpStackPushM uint16 = 0x44
	OpStackPopM  uint16 = 0x45

	OpArgPushR uint16 = 0x48
	OpArgPushL uint16 = 0x49
	OpArgPushB uint16 = 0x4A
	OpArgPushW uint16 = 0x4B
	OpArgPushA uint16 = 0x4C
	OpArgPushO uint16 = 0x4D
	OpArgPushS uint16 = 0x4E

	OpMessage         uint16 = 0x50
	OpSetFloorHandler uint16 = 0x95
	OpClrFloorHandler uint16 = 0x96

	OpMapDesignate   uint16 = 0xF80D
	OpGetRandom      uint16 = 0xF892
	OpMapDesignateEx uint16 = 0xF8A6
	OpSetEpisode     uint16 = 0xF8BC
	OpBBMapDesignate uint16 = 0xF951
)

// ---------------------------------------------------------------------------
// Opcode table
// ---------------------------------------------------------------------------

func reg(name string) Param    { return Param{name, TypeReg} }
func dword(name string) Param  { return Param{name, TypeDWord} }
func word(name string) Param   { return Param{name, TypeWord} }
func byte_(name string) Param  { return Param{name, TypeByte} }
func label(name string) Param  { return Param{name, TypeLabel} }
func str(name string) Param    { return Param{name, TypeString} }
func labels(name string) Param { return Param{name, TypeLabels} }

var opcodeList = []Opcode{
	{OpNop, "nop", KindOther, nil, StackNone},
	{OpRet, "ret", KindReturn, nil, StackNone},
	{OpSync, "sync", KindOther, nil, StackNone},
	{OpExit, "exit", KindOther, []Param{dword("code")}, StackNone},
	{OpThread, "thread", KindOther, []Param{label("entry")}, StackNone},

	{OpLet, "let", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpLetI, "leti", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpLetB, "letb", KindOther, []Param{reg("dst"), byte_("value")}, StackNone},
	{OpLetW, "letw", KindOther, []Param{reg("dst"), word("value")}, StackNone},
	{OpLetA, "leta", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpLetO, "leto", KindOther, []Param{reg("dst"), label("src")}, StackNone},

	{OpSet, "set", KindOther, []Param{reg("dst")}, StackNone},
	{OpClear, "clear", KindOther, []Param{reg("dst")}, StackNone},
	{OpRev, "rev", KindOther, []Param{reg("dst")}, StackNone},

	{OpAdd, "add", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpAddI, "addi", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpSub, "sub", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpSubI, "subi", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpMul, "mul", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpMulI, "muli", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpDiv, "div", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpDivI, "divi", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpAnd, "and", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpAndI, "andi", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpOr, "or", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpOrI, "ori", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpXor, "xor", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpXorI, "xori", KindOther, []Param{reg("dst"), dword("value")}, StackNone},
	{OpMod, "mod", KindOther, []Param{reg("dst"), reg("src")}, StackNone},
	{OpModI, "modi", KindOther, []Param{reg("dst"), dword("value")}, StackNone},

	{OpJmp, "jmp", KindJump, []Param{label("target")}, StackNone},
	{OpCall, "call", KindCall, []Param{label("target")}, StackNone},

	{OpJmpEq, "jmp_=", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpIEq, "jmpi_=", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},
	{OpJmpNe, "jmp_!=", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpINe, "jmpi_!=", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},
	{OpJmpGt, "jmp_>", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpIGt, "jmpi_>", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},
	{OpJmpLt, "jmp_<", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpILt, "jmpi_<", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},
	{OpJmpGe, "jmp_>=", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpIGe, "jmpi_>=", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},
	{OpJmpLe, "jmp_<=", KindCondJump, []Param{reg("a"), reg("b"), label("target")}, StackNone},
	{OpJmpILe, "jmpi_<=", KindCondJump, []Param{reg("a"), dword("b"), label("target")}, StackNone},

	{OpSwitchJmp, "switch_jmp", KindSwitchJump, []Param{reg("selector"), labels("targets")}, StackNone},
	{OpSwitchCall, "switch_call", KindSwitchCall, []Param{reg("selector"), labels("targets")}, StackNone},

	{OpStackPush, "stack_push", KindOther, []Param{reg("src")}, StackNone},
	{OpStackPop, "stack_pop", KindOther, []Param{reg("dst")}, StackNone},
	{OpStackPushM, "stack_pushm", KindOther, []Param{{"first", TypeRegRange}, dword("count")}, StackNone},
	{OpStackPopM, "stack_popm", KindOther, []Param{{"first", TypeRegRange}, dword("count")}, StackNone},

	{OpArgPushR, "arg_pushr", KindOther, []Param{reg("value")}, StackPush},
	{OpArgPushL, "arg_pushl", KindOther, []Param{dword("value")}, StackPush},
	{OpArgPushB, "arg_pushb", KindOther, []Param{byte_("value")}, StackPush},
	{OpArgPushW, "arg_pushw", KindOther, []Param{word("value")}, StackPush},
	{OpArgPushA, "arg_pusha", KindOther, []Param{reg("value")}, StackPush},
	{OpArgPushO, "arg_pusho", KindOther, []Param{label("value")}, StackPush},
	{OpArgPushS, "arg_pushs", KindOther, []Param{str("value")}, StackPush},

	{OpMessage, "message", KindOther, []Param{dword("id"), str("text")}, StackPop},
	{OpSetFloorHandler, "set_floor_handler", KindOther, []Param{dword("floor"), label("handler")}, StackPop},
	{OpClrFloorHandler, "clr_floor_handler", KindOther, []Param{dword("floor")}, StackPop},

	{OpMapDesignate, "map_designate", KindOther, []Param{{"base", TypeRegRange}}, StackNone},
	{OpGetRandom, "get_random", KindOther, []Param{{"range", TypeRegRange}, reg("dst")}, StackNone},
	{OpMapDesignateEx, "map_designate_ex", KindOther, []Param{{"base", TypeRegRange}}, StackNone},
	{OpSetEpisode, "set_episode", KindOther, []Param{dword("episode")}, StackNone},
	{OpBBMapDesignate, "bb_map_designate", KindOther, []Param{byte_("floor"), word("area"), byte_("variant")}, StackNone},
}

var (
	opcodesByCode     = make(map[uint16]*Opcode, len(opcodeList))
	opcodesByMnemonic = make(map[string]*Opcode, len(opcodeList))
)

func init() {
	for i := range opcodeList {
		op := &opcodeList[i]
		opcodesByCode[op.Code] = op
		opcodesByMnemonic[op.Mnemonic] = op
	}
}

// Lookup returns the opcode for a code. Unknown codes get a synthetic
// opcode of kind KindOther so decoding never fails on them.
func Lookup(code uint16) *Opcode {
	if op, ok := opcodesByCode[code]; ok {
		return op
	}
	return &Opcode{Code: code, Mnemonic: fmt.Sprintf("unknown_%04x", code)}
}

// LookupMnemonic returns the opcode with the given mnemonic.
func LookupMnemonic(name string) (*Opcode, bool) {
	op, ok := opcodesByMnemonic[strings.ToLower(name)]
	return op, ok
}

// Opcodes returns every known opcode in code order.
func Opcodes() []*Opcode {
	out := make([]*Opcode, len(opcodeList))
	for i := range opcodeList {
		out[i] = &opcodeList[i]
	}
	return out
}
