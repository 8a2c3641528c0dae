// Package flow builds control-flow graphs over quest script segments.
//
// Blocks live in a single arena (Graph.Blocks) and refer to each other by
// index, so predecessor and successor lists are plain []int. A graph is
// immutable once Build returns and may be shared by any number of readers.
package flow

import (
	"fmt"
	"strings"

	"github.com/chazu/questscope/asm"
)

// BranchType describes how control leaves a block.
type BranchType int

const (
	BranchNone BranchType = iota // falls off the end into the next block
	BranchReturn
	BranchJump
	BranchConditionalJump
	BranchCall
)

func (b BranchType) String() string {
	switch b {
	case BranchNone:
		return "none"
	case BranchReturn:
		return "return"
	case BranchJump:
		return "jump"
	case BranchConditionalJump:
		return "conditional_jump"
	case BranchCall:
		return "call"
	}
	return fmt.Sprintf("BranchType(%d)", int(b))
}

// BasicBlock is the instruction range [Start, End) of one segment.
type BasicBlock struct {
	ID      int
	Segment int // index into Graph.Segments
	Start   int
	End     int
	Branch  BranchType
	Labels  []int32 // branch targets of the last instruction
	From    []int   // predecessor block IDs
	To      []int   // successor block IDs
}

// Len returns the number of instructions in the block.
func (b *BasicBlock) Len() int {
	return b.End - b.Start
}

// Graph is a control-flow graph over a set of segments.
type Graph struct {
	Segments []*asm.Segment
	Blocks   []BasicBlock

	instBlock  map[*asm.Instruction]int
	labelBlock map[int32]int
}

// Block returns the block with the given ID.
func (g *Graph) Block(id int) *BasicBlock {
	return &g.Blocks[id]
}

// BlockFor returns the block containing inst.
func (g *Graph) BlockFor(inst *asm.Instruction) (*BasicBlock, bool) {
	id, ok := g.instBlock[inst]
	if !ok {
		return nil, false
	}
	return &g.Blocks[id], true
}

// IndexOf returns the segment index of inst, or -1 if it is not part of g.
func (g *Graph) IndexOf(inst *asm.Instruction) int {
	b, ok := g.BlockFor(inst)
	if !ok {
		return -1
	}
	insts := g.Segments[b.Segment].Instructions
	for i := b.Start; i < b.End; i++ {
		if &insts[i] == inst {
			return i
		}
	}
	return -1
}

// BlockForLabel returns the block a label enters.
func (g *Graph) BlockForLabel(label int32) (*BasicBlock, bool) {
	id, ok := g.labelBlock[label]
	if !ok {
		return nil, false
	}
	return &g.Blocks[id], true
}

// Instruction returns the instruction at segment index i of block b.
func (g *Graph) Instruction(b *BasicBlock, i int) *asm.Instruction {
	return &g.Segments[b.Segment].Instructions[i]
}

func (g *Graph) String() string {
	var sb strings.Builder
	for i := range g.Blocks {
		b := &g.Blocks[i]
		fmt.Fprintf(&sb, "block %d: segment %d [%d, %d) %s", b.ID, b.Segment, b.Start, b.End, b.Branch)
		if len(b.Labels) > 0 {
			fmt.Fprintf(&sb, " targets=%v", b.Labels)
		}
		fmt.Fprintf(&sb, " from=%v to=%v\n", b.From, b.To)
		for j := b.Start; j < b.End; j++ {
			fmt.Fprintf(&sb, "    %s\n", g.Instruction(b, j))
		}
	}
	return sb.String()
}
