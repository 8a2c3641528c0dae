// Package analysis answers backward value queries over a flow.Graph: which
// values a register or an argument-stack slot may hold immediately before an
// instruction executes.
//
// Every query walks from the instruction towards the entry points, scanning
// each block in reverse and recursing into predecessors. Loops and runaway
// searches degrade to the full value range instead of failing.
package analysis

import (
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/valueset"
)

// DefaultMaxIterations bounds the number of block scans a single query may
// perform before giving up.
const DefaultMaxIterations = 100

// Options configures an Analyzer.
type Options struct {
	// MaxIterations caps the block scans per query. Zero selects
	// DefaultMaxIterations.
	MaxIterations int

	// Diagnostics receives messages about imprecise answers. May be nil.
	Diagnostics diag.Sink
}

// Analyzer runs value queries against one graph. It holds no per-query
// state and is safe for concurrent use.
type Analyzer struct {
	graph *flow.Graph
	opts  Options
}

// New returns an Analyzer over g.
func New(g *flow.Graph, opts Options) *Analyzer {
	if opts.MaxIterations <= 0 {
		opts.MaxIterations = DefaultMaxIterations
	}
	return &Analyzer{graph: g, opts: opts}
}

// Graph returns the graph the analyzer queries.
func (a *Analyzer) Graph() *flow.Graph {
	return a.graph
}

// RegisterValues runs a register query with default options.
func RegisterValues(g *flow.Graph, inst *asm.Instruction, register int) *valueset.Set {
	return New(g, Options{}).RegisterValues(inst, register)
}

// StackValue runs a stack query with default options.
func StackValue(g *flow.Graph, inst *asm.Instruction, position int) (*valueset.Set, *asm.Instruction) {
	return New(g, Options{}).StackValue(inst, position)
}

// search is the state of one query.
type search struct {
	graph      *flow.Graph
	max        int
	iterations int
	exhausted  bool
	onPath     []bool
	line       int
	sink       diag.Sink
}

func (a *Analyzer) newSearch(inst *asm.Instruction) *search {
	return &search{
		graph:  a.graph,
		max:    a.opts.MaxIterations,
		onPath: make([]bool, len(a.graph.Blocks)),
		line:   inst.Line,
		sink:   a.opts.Diagnostics,
	}
}

// locate returns the block and segment index of inst.
func (a *Analyzer) locate(inst *asm.Instruction) (*flow.BasicBlock, int, bool) {
	b, ok := a.graph.BlockFor(inst)
	if !ok {
		a.opts.Diagnostics.Warnf(inst.Line, "%s is not part of the analyzed code", inst)
		return nil, 0, false
	}
	return b, a.graph.IndexOf(inst), true
}

// step counts one block scan and reports whether the search may continue.
func (s *search) step() bool {
	if s.exhausted {
		return false
	}
	s.iterations++
	if s.iterations > s.max {
		s.exhausted = true
		s.sink.Warnf(s.line, "value search exceeded %d iterations, assuming any value", s.max)
		return false
	}
	return true
}

// eachPredecessor calls visit for every predecessor of b with b marked as on
// the current path. It reports false if a predecessor is already on the path,
// meaning the search went around a loop.
func (s *search) eachPredecessor(b *flow.BasicBlock, visit func(*flow.BasicBlock)) bool {
	prev := s.onPath[b.ID]
	s.onPath[b.ID] = true
	defer func() { s.onPath[b.ID] = prev }()

	for _, id := range b.From {
		if s.onPath[id] {
			return false
		}
		visit(s.graph.Block(id))
	}
	return true
}
