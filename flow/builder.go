package flow

import (
	"slices"

	"github.com/chazu/questscope/asm"
)

// Build partitions every segment into basic blocks and links them. Labels
// that resolve to no block are skipped, which leaves a partial but usable
// graph.
func Build(segments []*asm.Segment) *Graph {
	g := &Graph{
		Segments:   segments,
		instBlock:  make(map[*asm.Instruction]int),
		labelBlock: make(map[int32]int),
	}

	// Labels of empty segments fall through to the next block created.
	var pending []int32
	for si, seg := range segments {
		if len(seg.Instructions) == 0 {
			pending = append(pending, seg.Labels...)
			continue
		}
		g.partition(si, seg, pending)
		pending = nil
	}

	g.link()
	return g
}

// branchOf maps an opcode kind to the branch type of a block it terminates.
func branchOf(kind asm.Kind) (BranchType, bool) {
	switch kind {
	case asm.KindReturn:
		return BranchReturn, true
	case asm.KindJump, asm.KindSwitchJump:
		return BranchJump, true
	case asm.KindCondJump:
		return BranchConditionalJump, true
	case asm.KindCall, asm.KindSwitchCall:
		return BranchCall, true
	}
	return BranchNone, false
}

func (g *Graph) partition(si int, seg *asm.Segment, inherited []int32) {
	start := 0
	for i := range seg.Instructions {
		inst := &seg.Instructions[i]
		branch, ends := branchOf(inst.Opcode.Kind)
		if !ends && i < len(seg.Instructions)-1 {
			continue
		}

		id := len(g.Blocks)
		g.Blocks = append(g.Blocks, BasicBlock{
			ID:      id,
			Segment: si,
			Start:   start,
			End:     i + 1,
			Branch:  branch,
			Labels:  inst.BranchTargets(),
		})
		for j := start; j <= i; j++ {
			g.instBlock[&seg.Instructions[j]] = id
		}
		if start == 0 {
			for _, l := range inherited {
				g.registerLabel(l, id)
			}
			for _, l := range seg.Labels {
				g.registerLabel(l, id)
			}
		}
		start = i + 1
	}
}

// registerLabel maps label to block id. The first definition wins.
func (g *Graph) registerLabel(label int32, id int) {
	if _, ok := g.labelBlock[label]; !ok {
		g.labelBlock[label] = id
	}
}

func (g *Graph) connect(from, to int) {
	if slices.Contains(g.Blocks[from].To, to) {
		return
	}
	g.Blocks[from].To = append(g.Blocks[from].To, to)
	g.Blocks[to].From = append(g.Blocks[to].From, from)
}

type returnSite struct {
	caller int
	site   int
}

func (g *Graph) link() {
	var calls []returnSite

	for i := range g.Blocks {
		b := &g.Blocks[i]
		next := i + 1
		hasNext := next < len(g.Blocks)

		switch b.Branch {
		case BranchReturn:
			continue
		case BranchCall:
			if hasNext {
				calls = append(calls, returnSite{caller: i, site: next})
			}
		case BranchNone, BranchConditionalJump:
			if hasNext {
				g.connect(i, next)
			}
		case BranchJump:
		}

		for _, l := range b.Labels {
			if target, ok := g.labelBlock[l]; ok {
				g.connect(i, target)
			}
		}
	}

	// Return sites are resolved once every label edge exists.
	for _, c := range calls {
		for _, l := range g.Blocks[c.caller].Labels {
			if callee, ok := g.labelBlock[l]; ok {
				g.linkReturns(callee, c.site)
			}
		}
	}
}

// linkReturns connects every return block reachable inside the callee body
// to site. A nested call continues at its own return site rather than
// descending into the nested callee.
func (g *Graph) linkReturns(callee, site int) {
	seen := make(map[int]bool)
	work := []int{callee}
	for len(work) > 0 {
		id := work[len(work)-1]
		work = work[:len(work)-1]
		if seen[id] {
			continue
		}
		seen[id] = true

		b := &g.Blocks[id]
		switch b.Branch {
		case BranchReturn:
			g.connect(id, site)
		case BranchCall:
			if id+1 < len(g.Blocks) {
				work = append(work, id+1)
			}
		case BranchNone, BranchJump, BranchConditionalJump:
			work = append(work, b.To...)
		}
	}
}
