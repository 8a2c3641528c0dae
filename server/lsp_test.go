package server

import (
	"errors"
	"slices"
	"strings"
	"testing"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/questscope/quest"
)

const sampleDoc = `0:
    set_episode 0
    leti r10, 3
    leti r11, 8
    leti r12, 2
    map_designate r10
    set_floor_handler 1, 100
    jmp 100
100:
    ret`

func newTestDoc(t *testing.T, text string) *Document {
	t.Helper()
	return NewWorkspace(quest.Options{}).Update("file:///test.qasm", text)
}

// ---------------------------------------------------------------------------
// LSP text extraction helpers
// ---------------------------------------------------------------------------

func TestExtractPrefix(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"mnemonic", "    arg_pu", protocol.Position{Line: 0, Character: 10}, "arg_pu"},
		{"at start", "ret", protocol.Position{Line: 0, Character: 3}, "ret"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"multi line", "0:\n    nop\n    le", protocol.Position{Line: 2, Character: 6}, "le"},
		{"after comma", "leti r1, r", protocol.Position{Line: 0, Character: 10}, "r"},
		{"cursor at beginning", "leti", protocol.Position{Line: 0, Character: 0}, ""},
		{"line beyond document", "nop", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tt := range tests {
		if got := extractPrefix(tt.text, tt.pos); got != tt.want {
			t.Errorf("%s: extractPrefix = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestExtractWord(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"mnemonic", "leti r1, 5", protocol.Position{Line: 0, Character: 2}, "leti"},
		{"end of word", "leti r1, 5", protocol.Position{Line: 0, Character: 4}, "leti"},
		{"register", "leti r12, 5", protocol.Position{Line: 0, Character: 6}, "r12"},
		{"label", "    jmp 100", protocol.Position{Line: 0, Character: 9}, "100"},
		{"hex label", "jmp 0x1F", protocol.Position{Line: 0, Character: 6}, "0x1F"},
		{"underscore", "map_designate r1", protocol.Position{Line: 0, Character: 5}, "map_designate"},
		{"multi line", "0:\n    ret", protocol.Position{Line: 1, Character: 5}, "ret"},
		{"empty line", "", protocol.Position{Line: 0, Character: 0}, ""},
		{"between operands", "leti r1, 5", protocol.Position{Line: 0, Character: 8}, ""},
		{"line beyond document", "nop", protocol.Position{Line: 5, Character: 0}, ""},
	}

	for _, tt := range tests {
		if got := extractWord(tt.text, tt.pos); got != tt.want {
			t.Errorf("%s: extractWord = %q, want %q", tt.name, got, tt.want)
		}
	}
}

// ---------------------------------------------------------------------------
// boolPtr
// ---------------------------------------------------------------------------

func TestBoolPtr(t *testing.T) {
	p := boolPtr(true)
	if p == nil {
		t.Fatal("boolPtr should not return nil")
	}
	if *p != true {
		t.Errorf("boolPtr(true) = %v, want true", *p)
	}

	p = boolPtr(false)
	if *p != false {
		t.Errorf("boolPtr(false) = %v, want false", *p)
	}
}

// ---------------------------------------------------------------------------
// Workspace analysis
// ---------------------------------------------------------------------------

func TestWorkspace_Update(t *testing.T) {
	doc := newTestDoc(t, sampleDoc)

	if len(doc.Errors) != 0 {
		t.Fatalf("unexpected assembler errors: %v", doc.Errors)
	}
	want := []quest.FloorMapping{
		{Floor: 1, Area: 1, Variant: 0},
		{Floor: 3, Area: 8, Variant: 2},
	}
	if !slices.Equal(doc.Report.Floors, want) {
		t.Errorf("floors = %v, want %v", doc.Report.Floors, want)
	}
	if inst := doc.InstructionAt(7); inst == nil || inst.Opcode.Mnemonic != "set_floor_handler" {
		t.Errorf("InstructionAt(7) = %v, want set_floor_handler", inst)
	}
	if inst := doc.InstructionAt(9); inst != nil {
		t.Errorf("InstructionAt(9) = %v, want nil on a label line", inst)
	}
}

func TestWorkspace_DocumentLifecycle(t *testing.T) {
	ws := NewWorkspace(quest.Options{})
	ws.Update("file:///a.qasm", "0:\n    ret")
	ws.Update("file:///b.qasm", "0:\n    ret")
	if ws.Len() != 2 {
		t.Fatalf("Len = %d, want 2", ws.Len())
	}

	ws.Close("file:///a.qasm")
	if _, ok := ws.Document("file:///a.qasm"); ok {
		t.Error("document should be removed after close")
	}
	if _, ok := ws.Document("file:///b.qasm"); !ok {
		t.Error("other documents should survive a close")
	}
}

func TestDocument_HoverRegister(t *testing.T) {
	doc := newTestDoc(t, sampleDoc)

	got := doc.Hover(6, "r10")
	if !strings.Contains(got, "{3}") {
		t.Errorf("hover = %q, want r10's value {3}", got)
	}
	if got := doc.Hover(3, "r10"); !strings.Contains(got, "{}") {
		t.Errorf("hover before assignment = %q, want the empty set", got)
	}
	if got := doc.Hover(6, "r999"); got != "" {
		t.Errorf("hover on out-of-range register = %q, want empty", got)
	}
}

func TestDocument_HoverInstruction(t *testing.T) {
	doc := newTestDoc(t, sampleDoc)

	got := doc.Hover(7, "set_floor_handler")
	for _, want := range []string{"**set_floor_handler**", "Block", "floor: `{1}`", "pushed on line 7"} {
		if !strings.Contains(got, want) {
			t.Errorf("hover = %q, missing %q", got, want)
		}
	}

	if got := doc.Hover(9, ""); got != "" {
		t.Errorf("hover on label line = %q, want empty", got)
	}
}

func TestDocument_Definition(t *testing.T) {
	doc := newTestDoc(t, sampleDoc)

	line, ok := doc.Definition(100)
	if !ok || line != 10 {
		t.Errorf("Definition(100) = %d, %v; want 10, true", line, ok)
	}
	if _, ok := doc.Definition(5); ok {
		t.Error("Definition(5) should not resolve")
	}
}

func TestDocument_References(t *testing.T) {
	doc := newTestDoc(t, sampleDoc)

	if got := doc.References(100); !slices.Equal(got, []int{7, 8}) {
		t.Errorf("References(100) = %v, want [7 8]", got)
	}
	if got := doc.References(0); len(got) != 0 {
		t.Errorf("References(0) = %v, want none", got)
	}
}

func TestComplete(t *testing.T) {
	if got := Complete("jmpi_"); len(got) != 6 {
		t.Errorf("Complete(jmpi_) returned %d opcodes, want 6", len(got))
	}
	if got := Complete("ARG_PUSH"); len(got) != 7 {
		t.Errorf("Complete(ARG_PUSH) returned %d opcodes, want 7", len(got))
	}

	items := complete("set_fl")
	if len(items) != 1 || items[0].Label != "set_floor_handler" {
		t.Fatalf("complete(set_fl) = %v", items)
	}
	if items[0].Kind == nil || *items[0].Kind != protocol.CompletionItemKindKeyword {
		t.Error("mnemonic completion should have Kind=Keyword")
	}
	if items[0].Detail == nil || *items[0].Detail != "set_floor_handler floor, handler" {
		t.Errorf("detail = %v", items[0].Detail)
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestToDiagnostics_AssemblerError(t *testing.T) {
	doc := newTestDoc(t, "0:\n    frobnicate r1\n    ret")
	diags := toDiagnostics(doc)

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityError {
		t.Error("assembler errors should have Severity=Error")
	}
	if d.Range.Start.Line != 1 {
		t.Errorf("line = %d, want 1", d.Range.Start.Line)
	}
}

func TestToDiagnostics_AnalysisWarning(t *testing.T) {
	doc := newTestDoc(t, "0:\n    leta r10, r0\n    leti r11, 1\n    leti r12, 0\n    map_designate r10\n    ret")
	diags := toDiagnostics(doc)

	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	d := diags[0]
	if d.Severity == nil || *d.Severity != protocol.DiagnosticSeverityWarning {
		t.Error("ambiguous operands should be reported as warnings")
	}
	if d.Range.Start.Line != 4 {
		t.Errorf("line = %d, want 4", d.Range.Start.Line)
	}
}

func TestToDiagnostics_Clean(t *testing.T) {
	diags := toDiagnostics(newTestDoc(t, sampleDoc))
	if diags == nil || len(diags) != 0 {
		t.Errorf("diagnostics = %v, want an empty non-nil list", diags)
	}
}

// ---------------------------------------------------------------------------
// Worker
// ---------------------------------------------------------------------------

func TestWorker_Do(t *testing.T) {
	w := NewWorker(NewWorkspace(quest.Options{}))
	defer w.Stop()

	result, err := w.Do(func(ws *Workspace) any {
		return len(ws.Update("file:///x.qasm", sampleDoc).Report.Floors)
	})
	if err != nil {
		t.Fatalf("Do returned error: %v", err)
	}
	if result.(int) != 2 {
		t.Errorf("result = %v, want 2", result)
	}
}

func TestWorker_RecoversPanic(t *testing.T) {
	w := NewWorker(NewWorkspace(quest.Options{}))
	defer w.Stop()

	_, err := w.Do(func(ws *Workspace) any {
		panic("boom")
	})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("err = %v, want the panic value", err)
	}

	// the worker keeps serving after a panic
	if _, err := w.Do(func(ws *Workspace) any { return ws.Len() }); err != nil {
		t.Errorf("Do after panic returned error: %v", err)
	}
}

func TestWorker_Stop(t *testing.T) {
	w := NewWorker(NewWorkspace(quest.Options{}))
	w.Stop()
	w.Stop()

	if _, err := w.Do(func(ws *Workspace) any { return nil }); !errors.Is(err, errStopped) {
		t.Errorf("Do after Stop error = %v, want errStopped", err)
	}
}

// ---------------------------------------------------------------------------
// LSP document synchronization state
// ---------------------------------------------------------------------------

func TestLSP_DocumentStore(t *testing.T) {
	lsp := &LspServer{
		worker: NewWorker(NewWorkspace(quest.Options{})),
		docs:   make(map[string]string),
	}
	defer lsp.worker.Stop()

	// Simulate didOpen
	lsp.mu.Lock()
	lsp.docs["file:///test.qasm"] = sampleDoc
	lsp.mu.Unlock()

	text, ok := lsp.text("file:///test.qasm")
	if !ok || text != sampleDoc {
		t.Error("document should be stored after open")
	}

	label, ok := lsp.labelAt("file:///test.qasm", protocol.Position{Line: 7, Character: 10})
	if !ok || label != 100 {
		t.Errorf("labelAt = %d, %v; want 100, true", label, ok)
	}
	if _, ok := lsp.labelAt("file:///test.qasm", protocol.Position{Line: 7, Character: 5}); ok {
		t.Error("labelAt on a mnemonic should fail")
	}

	// Simulate didClose
	lsp.mu.Lock()
	delete(lsp.docs, "file:///test.qasm")
	lsp.mu.Unlock()

	if _, ok := lsp.text("file:///test.qasm"); ok {
		t.Error("document should be removed after close")
	}
}
