package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/questscope/analysis"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/manifest"
)

// valueQuery asks for the values of a register or stack slot immediately
// before the instruction on a source line.
type valueQuery struct {
	line  int
	stack bool
	index int
}

// parseQuery parses LINE:rN (register N) or LINE:sN (stack slot N, 0 = top).
func parseQuery(s string) (valueQuery, error) {
	lineText, target, ok := strings.Cut(s, ":")
	if !ok || len(target) < 2 {
		return valueQuery{}, fmt.Errorf("invalid query %q: expected LINE:rN or LINE:sN", s)
	}

	line, err := strconv.Atoi(lineText)
	if err != nil || line < 1 {
		return valueQuery{}, fmt.Errorf("invalid query %q: bad line number", s)
	}

	q := valueQuery{line: line}
	switch target[0] {
	case 'r':
	case 's':
		q.stack = true
	default:
		return valueQuery{}, fmt.Errorf("invalid query %q: target must start with r or s", s)
	}

	q.index, err = strconv.Atoi(target[1:])
	if err != nil || q.index < 0 || (!q.stack && q.index > 255) {
		return valueQuery{}, fmt.Errorf("invalid query %q: bad index", s)
	}
	return q, nil
}

func (q valueQuery) run(segments []*asm.Segment, m *manifest.Manifest, log commonlog.Logger) (string, error) {
	insts := onLine(segments, q.line)
	if len(insts) == 0 {
		return "", fmt.Errorf("no instruction on line %d", q.line)
	}
	// Inline stack arguments expand into pushes ahead of the instruction the
	// line names. Registers are read before the pushes, the stack after.
	inst := insts[0]
	if q.stack {
		inst = insts[len(insts)-1]
	}

	opts := m.AnalysisOptions()
	opts.Diagnostics = diag.Log(log)
	a := analysis.New(flow.Build(segments), opts)

	if !q.stack {
		return fmt.Sprintf("r%d = %s", q.index, a.RegisterValues(inst, q.index)), nil
	}

	values, origin := a.StackValue(inst, q.index)
	out := fmt.Sprintf("stack[%d] = %s", q.index, values)
	if origin != nil {
		out += fmt.Sprintf(" (pushed by %s on line %d)", origin.Opcode.Mnemonic, origin.Line)
	}
	return out, nil
}

// onLine returns the instructions assembled from line, in order.
func onLine(segments []*asm.Segment, line int) []*asm.Instruction {
	var out []*asm.Instruction
	for _, seg := range segments {
		for i := range seg.Instructions {
			if seg.Instructions[i].Line == line {
				out = append(out, &seg.Instructions[i])
			}
		}
	}
	return out
}
