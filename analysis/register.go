package analysis

import (
	"math"

	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/valueset"
)

// RegisterValues returns every value register could hold immediately before
// inst executes. An empty set means no preceding instruction writes it.
func (a *Analyzer) RegisterValues(inst *asm.Instruction, register int) *valueset.Set {
	b, idx, ok := a.locate(inst)
	if !ok {
		return valueset.All()
	}
	return a.newSearch(inst).registerValues(b, idx, register)
}

func (s *search) registerValues(b *flow.BasicBlock, end, register int) *valueset.Set {
	if !s.step() {
		return valueset.All()
	}

	for i := end - 1; i >= b.Start; i-- {
		if v, ok := s.registerEffect(b, i, register); ok {
			return v
		}
	}

	values := valueset.Empty()
	closed := s.eachPredecessor(b, func(p *flow.BasicBlock) {
		values.Union(s.registerValues(p, p.End, register))
	})
	if !closed {
		return values.SetAll()
	}
	return values
}

// registerEffect returns the value register holds after instruction i of b,
// if that instruction determines it.
func (s *search) registerEffect(b *flow.BasicBlock, i, register int) (*valueset.Set, bool) {
	inst := s.graph.Instruction(b, i)
	dst, hasDst := inst.RegArg(0)
	writes := hasDst && dst == register

	switch inst.Opcode.Code {
	case asm.OpLet:
		if writes {
			src, ok := inst.RegArg(1)
			if !ok {
				return valueset.All(), true
			}
			return s.registerValues(b, i, src), true
		}

	case asm.OpLetI, asm.OpLetB, asm.OpLetW:
		if writes {
			v, ok := inst.IntArg(1)
			if !ok {
				return valueset.All(), true
			}
			return valueset.Of(v), true
		}

	case asm.OpLetA, asm.OpLetO:
		if writes {
			return valueset.All(), true
		}

	case asm.OpSet:
		if writes {
			return valueset.Of(1), true
		}

	case asm.OpClear:
		if writes {
			return valueset.Of(0), true
		}

	case asm.OpRev:
		if writes {
			prev := s.registerValues(b, i, register)
			if v, single := prev.Single(); prev.IsEmpty() || (single && v == 0) {
				return valueset.Of(1), true
			}
			if prev.Has(0) {
				return valueset.Of(0, 1), true
			}
			return valueset.Of(0), true
		}

	case asm.OpAddI, asm.OpSubI, asm.OpMulI, asm.OpDivI:
		if writes {
			k, ok := inst.IntArg(1)
			if !ok {
				return valueset.All(), true
			}
			return arith(inst.Opcode.Code, s.registerValues(b, i, register), k), true
		}

	case asm.OpAdd, asm.OpSub, asm.OpMul, asm.OpDiv:
		if writes {
			src, ok := inst.RegArg(1)
			if !ok {
				return valueset.All(), true
			}
			k, single := s.registerValues(b, i, src).Single()
			if !single {
				return valueset.All(), true
			}
			return arith(inst.Opcode.Code, s.registerValues(b, i, register), k), true
		}

	case asm.OpAnd, asm.OpAndI, asm.OpOr, asm.OpOrI, asm.OpXor, asm.OpXorI,
		asm.OpMod, asm.OpModI, asm.OpStackPop:
		if writes {
			return valueset.All(), true
		}

	case asm.OpStackPopM:
		count, ok := inst.IntArg(1)
		if hasDst && ok && register >= dst && int64(register) < int64(dst)+int64(count) {
			return valueset.All(), true
		}

	case asm.OpGetRandom:
		if out, ok := inst.RegArg(1); ok && out == register && hasDst {
			return s.randomRange(b, i, dst), true
		}
	}

	return nil, false
}

// randomRange resolves [min, max) from the register pair starting at base.
func (s *search) randomRange(b *flow.BasicBlock, i, base int) *valueset.Set {
	var lo int64
	if v, ok := s.registerValues(b, i, base).Min(); ok {
		lo = int64(v)
	}
	hi := lo + 1
	if v, ok := s.registerValues(b, i, base+1).Max(); ok {
		hi = max(int64(v), lo+1)
	}
	if hi-1 > math.MaxInt32 {
		return valueset.All()
	}
	return valueset.OfInterval(int32(lo), int32(hi-1))
}

func arith(code uint16, values *valueset.Set, k int32) *valueset.Set {
	switch code {
	case asm.OpAdd, asm.OpAddI:
		return values.Add(k)
	case asm.OpSub, asm.OpSubI:
		return values.Sub(k)
	case asm.OpMul, asm.OpMulI:
		return values.Mul(k)
	case asm.OpDiv, asm.OpDivI:
		return values.Div(k)
	}
	return values.SetAll()
}
