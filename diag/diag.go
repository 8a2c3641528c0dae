// Package diag carries analysis diagnostics out of otherwise pure functions.
// Producers call a Sink; callers decide whether to collect, log, or drop.
package diag

import (
	"fmt"

	"github.com/tliron/commonlog"
)

// Severity of a diagnostic.
type Severity int

const (
	Info Severity = iota
	Warning
)

func (s Severity) String() string {
	if s == Warning {
		return "warning"
	}
	return "info"
}

// Diagnostic is a single message about an instruction or the whole input.
type Diagnostic struct {
	Severity Severity `cbor:"1,keyasint"`
	Message  string   `cbor:"2,keyasint"`
	Line     int      `cbor:"3,keyasint,omitempty"` // source line of the instruction, 0 if unknown
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s: line %d: %s", d.Severity, d.Line, d.Message)
	}
	return fmt.Sprintf("%s: %s", d.Severity, d.Message)
}

// Sink receives diagnostics. A nil Sink drops them.
type Sink func(Diagnostic)

// Emit sends d to the sink if there is one.
func (s Sink) Emit(d Diagnostic) {
	if s != nil {
		s(d)
	}
}

// Warnf emits a warning.
func (s Sink) Warnf(line int, format string, args ...any) {
	s.Emit(Diagnostic{Severity: Warning, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Infof emits an informational message.
func (s Sink) Infof(line int, format string, args ...any) {
	s.Emit(Diagnostic{Severity: Info, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Collector accumulates diagnostics in order.
type Collector struct {
	Items []Diagnostic
}

// Sink returns a Sink appending to c.
func (c *Collector) Sink() Sink {
	return func(d Diagnostic) {
		c.Items = append(c.Items, d)
	}
}

// Log returns a Sink writing to a commonlog logger.
func Log(log commonlog.Logger) Sink {
	return func(d Diagnostic) {
		switch d.Severity {
		case Warning:
			log.Warning(d.Message, "line", d.Line)
		default:
			log.Info(d.Message, "line", d.Line)
		}
	}
}

// Tee fans a diagnostic out to every non-nil sink.
func Tee(sinks ...Sink) Sink {
	return func(d Diagnostic) {
		for _, s := range sinks {
			s.Emit(d)
		}
	}
}
