// Package server implements a language server for quest script assembly.
// Documents are assembled and analyzed on every change; the server publishes
// assembler errors and floor-extraction diagnostics, and answers hovers with
// the values registers and stack arguments may hold.
package server

import (
	"fmt"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/quest"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "questscope-lsp"

// LspServer bridges LSP editor features to document analysis via Worker.
type LspServer struct {
	worker *Worker

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// NewLSP creates a new LSP server analyzing documents with opts.
func NewLSP(opts quest.Options) *LspServer {
	s := &LspServer{
		worker:  NewWorker(NewWorkspace(opts)),
		docs:    make(map[string]string),
		version: "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,
		TextDocumentDefinition: s.textDocumentDefinition,
		TextDocumentReferences: s.textDocumentReferences,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	commonlog.NewInfoMessage(0, "questscope LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.DefinitionProvider = true
	capabilities.ReferencesProvider = true

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()

	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.mu.Lock()
			s.docs[string(uri)] = whole.Text
			s.mu.Unlock()

			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	s.worker.Do(func(ws *Workspace) any {
		ws.Close(string(uri))
		return nil
	})

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

// --- Language features ---

func (s *LspServer) text(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	text, ok := s.text(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}

	prefix := extractPrefix(text, params.Position)
	if prefix == "" {
		return nil, nil
	}
	return complete(prefix), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	uri := params.TextDocument.URI
	pos := params.Position

	text, ok := s.text(uri)
	if !ok {
		return nil, nil
	}
	word := extractWord(text, pos)

	result, err := s.worker.Do(func(ws *Workspace) any {
		doc, ok := ws.Document(string(uri))
		if !ok {
			return ""
		}
		return doc.Hover(int(pos.Line)+1, word)
	})
	if err != nil {
		return nil, nil
	}
	value, _ := result.(string)
	if value == "" {
		return nil, nil
	}

	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}, nil
}

func (s *LspServer) textDocumentDefinition(ctx *glsp.Context, params *protocol.DefinitionParams) (any, error) {
	uri := params.TextDocument.URI

	label, ok := s.labelAt(uri, params.Position)
	if !ok {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) any {
		doc, ok := ws.Document(string(uri))
		if !ok {
			return nil
		}
		line, ok := doc.Definition(label)
		if !ok {
			return nil
		}
		return []protocol.Location{lineLocation(uri, line)}
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result, nil
}

func (s *LspServer) textDocumentReferences(ctx *glsp.Context, params *protocol.ReferenceParams) ([]protocol.Location, error) {
	uri := params.TextDocument.URI

	label, ok := s.labelAt(uri, params.Position)
	if !ok {
		return nil, nil
	}

	result, err := s.worker.Do(func(ws *Workspace) any {
		doc, ok := ws.Document(string(uri))
		if !ok {
			return nil
		}
		var locations []protocol.Location
		for _, line := range doc.References(label) {
			locations = append(locations, lineLocation(uri, line))
		}
		return locations
	})
	if err != nil || result == nil {
		return nil, nil
	}

	return result.([]protocol.Location), nil
}

// labelAt parses the number under the cursor as a label.
func (s *LspServer) labelAt(uri protocol.DocumentUri, pos protocol.Position) (int32, bool) {
	text, ok := s.text(uri)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseInt(extractWord(text, pos), 0, 32)
	if err != nil || n < 0 {
		return 0, false
	}
	return int32(n), true
}

func complete(prefix string) []protocol.CompletionItem {
	var items []protocol.CompletionItem
	for _, op := range Complete(prefix) {
		kind := protocol.CompletionItemKindKeyword
		names := make([]string, len(op.Params))
		for i, p := range op.Params {
			names[i] = p.Name
		}
		detail := fmt.Sprintf("%s %s", op.Mnemonic, strings.Join(names, ", "))
		mnemonic := op.Mnemonic
		items = append(items, protocol.CompletionItem{
			Label:      op.Mnemonic,
			Kind:       &kind,
			Detail:     &detail,
			InsertText: &mnemonic,
		})
	}
	return items
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	result, err := s.worker.Do(func(ws *Workspace) any {
		return toDiagnostics(ws.Update(string(uri), text))
	})
	if err != nil {
		commonlog.GetLogger("questscope.server").Errorf("analyzing %s: %s", uri, err)
		return
	}

	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: result.([]protocol.Diagnostic),
	})
}

// toDiagnostics converts assembler errors and analysis diagnostics of doc.
func toDiagnostics(doc *Document) []protocol.Diagnostic {
	source := lspName
	diagnostics := []protocol.Diagnostic{}

	for _, e := range doc.Errors {
		severity := protocol.DiagnosticSeverityError
		pos := position(e.Line, e.Column)
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  e.Msg,
		})
	}

	for _, d := range doc.Report.Diagnostics {
		severity := protocol.DiagnosticSeverityInformation
		if d.Severity == diag.Warning {
			severity = protocol.DiagnosticSeverityWarning
		}
		pos := position(d.Line, 1)
		diagnostics = append(diagnostics, protocol.Diagnostic{
			Range:    protocol.Range{Start: pos, End: pos},
			Severity: &severity,
			Source:   &source,
			Message:  d.Message,
		})
	}

	return diagnostics
}

// position converts 1-based line and column numbers; zero means unknown.
func position(line, column int) protocol.Position {
	return protocol.Position{
		Line:      protocol.UInteger(max(line-1, 0)),
		Character: protocol.UInteger(max(column-1, 0)),
	}
}

func lineLocation(uri protocol.DocumentUri, line int) protocol.Location {
	pos := position(line, 1)
	return protocol.Location{URI: uri, Range: protocol.Range{Start: pos, End: pos}}
}

// --- Text extraction helpers ---

// extractPrefix returns the word fragment before the cursor for completion.
func extractPrefix(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Walk backwards from cursor to find the start of the mnemonic
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	if start == col {
		return ""
	}

	return line[start:col]
}

// extractWord returns the full identifier under the cursor.
func extractWord(text string, pos protocol.Position) string {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return ""
	}
	line := lines[pos.Line]
	col := int(pos.Character)
	if col > len(line) {
		col = len(line)
	}

	// Find start
	start := col
	for start > 0 {
		ch := rune(line[start-1])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			start--
		} else {
			break
		}
	}

	// Find end
	end := col
	for end < len(line) {
		ch := rune(line[end])
		if unicode.IsLetter(ch) || unicode.IsDigit(ch) || ch == '_' {
			end++
		} else {
			break
		}
	}

	if start == end {
		return ""
	}

	return line[start:end]
}

func boolPtr(b bool) *bool {
	return &b
}
