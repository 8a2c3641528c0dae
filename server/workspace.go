package server

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/chazu/questscope/analysis"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/quest"
)

var registerPattern = regexp.MustCompile(`^r(\d+)$`)

// Workspace holds the analyzed state of every open document. It is owned by
// the Worker goroutine and must not be touched from anywhere else.
type Workspace struct {
	opts quest.Options
	docs map[string]*Document
	log  commonlog.Logger
}

// Document is one assembled and analyzed source file.
type Document struct {
	URI      string
	Segments []*asm.Segment
	Errors   asm.ErrorList
	Graph    *flow.Graph
	Report   *quest.Report

	analyzer *analysis.Analyzer
	lines    map[int][]*asm.Instruction // source line -> instructions, in order
}

// NewWorkspace creates an empty workspace. opts.Diagnostics is ignored;
// diagnostics are attached to each document's report.
func NewWorkspace(opts quest.Options) *Workspace {
	opts.Diagnostics = nil
	return &Workspace{
		opts: opts,
		docs: make(map[string]*Document),
		log:  commonlog.GetLogger("questscope.server"),
	}
}

// Update reassembles and reanalyzes uri from text.
func (w *Workspace) Update(uri, text string) *Document {
	segs, err := asm.Assemble(text)
	doc := &Document{
		URI:      uri,
		Segments: segs,
		lines:    make(map[int][]*asm.Instruction),
	}
	var list asm.ErrorList
	if errors.As(err, &list) {
		doc.Errors = list
	}

	doc.Graph = flow.Build(segs)
	doc.analyzer = analysis.New(doc.Graph, analysis.Options{MaxIterations: w.opts.MaxIterations})
	doc.Report = quest.Analyze(segs, func() *flow.Graph { return doc.Graph }, w.opts)

	for _, seg := range segs {
		for i := range seg.Instructions {
			inst := &seg.Instructions[i]
			doc.lines[inst.Line] = append(doc.lines[inst.Line], inst)
		}
	}

	w.docs[uri] = doc
	w.log.Debugf("analyzed %s: %d blocks, %d floors, %d errors",
		uri, len(doc.Graph.Blocks), len(doc.Report.Floors), len(doc.Errors))
	return doc
}

// Close forgets uri.
func (w *Workspace) Close(uri string) {
	delete(w.docs, uri)
}

// Document returns the analyzed state of uri.
func (w *Workspace) Document(uri string) (*Document, bool) {
	d, ok := w.docs[uri]
	return d, ok
}

// Len returns the number of open documents.
func (w *Workspace) Len() int {
	return len(w.docs)
}

// InstructionAt returns the instruction written on source line (1-based).
// Inline stack arguments expand into several instructions on one line; the
// last of them is the one the line names.
func (d *Document) InstructionAt(line int) *asm.Instruction {
	insts := d.lines[line]
	if len(insts) == 0 {
		return nil
	}
	return insts[len(insts)-1]
}

// Hover describes the instruction on line, or the value of the register
// named by word immediately before it.
func (d *Document) Hover(line int, word string) string {
	insts := d.lines[line]
	if len(insts) == 0 {
		return ""
	}

	if m := registerPattern.FindStringSubmatch(word); m != nil {
		r, err := strconv.Atoi(m[1])
		if err != nil || r > 255 {
			return ""
		}
		values := d.analyzer.RegisterValues(insts[0], r)
		return fmt.Sprintf("**%s** before line %d: `%s`", word, line, values)
	}

	inst := insts[len(insts)-1]
	var b strings.Builder
	fmt.Fprintf(&b, "**%s** (%s)\n\n", inst.Opcode.Mnemonic, inst.Opcode.Kind)
	if blk, ok := d.Graph.BlockFor(inst); ok {
		fmt.Fprintf(&b, "Block %d: %s, from %v, to %v\n", blk.ID, blk.Branch, blk.From, blk.To)
	}

	if n := inst.PopCount(); n > 0 {
		b.WriteString("\nArguments:\n")
		for i, p := range inst.Opcode.Params {
			values, origin := d.analyzer.StackValue(inst, n-1-i)
			fmt.Fprintf(&b, "- %s: `%s`", p.Name, values)
			if origin != nil && origin.Line > 0 {
				fmt.Fprintf(&b, " (pushed on line %d)", origin.Line)
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

// Definition returns the line of the first instruction under label.
func (d *Document) Definition(label int32) (int, bool) {
	blk, ok := d.Graph.BlockForLabel(label)
	if !ok || blk.Len() == 0 {
		return 0, false
	}
	return d.Graph.Instruction(blk, blk.Start).Line, true
}

// References returns the source lines of every instruction naming label.
func (d *Document) References(label int32) []int {
	var lines []int
	for _, seg := range d.Segments {
		for i := range seg.Instructions {
			inst := &seg.Instructions[i]
			if slices.Contains(inst.LabelRefs(), label) && !slices.Contains(lines, inst.Line) {
				lines = append(lines, inst.Line)
			}
		}
	}
	return lines
}

// Complete returns the mnemonics starting with prefix.
func Complete(prefix string) []*asm.Opcode {
	prefix = strings.ToLower(prefix)
	var out []*asm.Opcode
	for _, op := range asm.Opcodes() {
		if strings.HasPrefix(op.Mnemonic, prefix) {
			out = append(out, op)
		}
	}
	return out
}
