package analysis

import (
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/valueset"
)

// StackValue returns the values the argument-stack slot position entries
// below the top may hold immediately before inst executes, together with the
// push instruction that produced them. The instruction is nil when the values
// come from more than one push or could not be attributed.
func (a *Analyzer) StackValue(inst *asm.Instruction, position int) (*valueset.Set, *asm.Instruction) {
	b, idx, ok := a.locate(inst)
	if !ok {
		return valueset.All(), nil
	}
	r := a.newSearch(inst).stackValue(b, idx, position)
	return r.values, r.origin
}

type stackResult struct {
	values *valueset.Set
	origin *asm.Instruction
	mixed  bool // origins disagree or were lost
}

func unknownStack() stackResult {
	return stackResult{values: valueset.All(), mixed: true}
}

func (r *stackResult) merge(o stackResult) {
	r.values.Union(o.values)
	switch {
	case r.mixed:
	case o.mixed:
		r.mixed, r.origin = true, nil
	case o.origin == nil:
	case r.origin == nil:
		r.origin = o.origin
	case r.origin != o.origin:
		r.mixed, r.origin = true, nil
	}
}

func (s *search) stackValue(b *flow.BasicBlock, end, pos int) stackResult {
	if !s.step() {
		return unknownStack()
	}

	for i := end - 1; i >= b.Start; i-- {
		inst := s.graph.Instruction(b, i)
		if n := inst.PopCount(); n > 0 {
			pos += n
			continue
		}
		if inst.Opcode.Stack != asm.StackPush {
			continue
		}
		if pos > 0 {
			pos--
			continue
		}

		switch inst.Opcode.Code {
		case asm.OpArgPushR:
			r, ok := inst.RegArg(0)
			if !ok {
				return stackResult{values: valueset.All(), origin: inst}
			}
			return stackResult{values: s.registerValues(b, i, r), origin: inst}
		case asm.OpArgPushL, asm.OpArgPushB, asm.OpArgPushW:
			v, ok := inst.IntArg(0)
			if !ok {
				return stackResult{values: valueset.All(), origin: inst}
			}
			return stackResult{values: valueset.Of(v), origin: inst}
		default:
			return stackResult{values: valueset.All(), origin: inst}
		}
	}

	result := stackResult{values: valueset.Empty()}
	closed := s.eachPredecessor(b, func(p *flow.BasicBlock) {
		result.merge(s.stackValue(p, p.End, pos))
	})
	if !closed {
		return unknownStack()
	}
	return result
}
