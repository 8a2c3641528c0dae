package quest

import (
	"fmt"

	"github.com/chazu/questscope/area"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/flow"
	"github.com/fxamacker/cbor/v2"
)

// Report is the result of analyzing one quest script.
type Report struct {
	Episode     area.Episode      `cbor:"1,keyasint"`
	Floors      []FloorMapping    `cbor:"2,keyasint"`
	Diagnostics []diag.Diagnostic `cbor:"3,keyasint,omitempty"`
}

// Analyze extracts a Report from segments. buildGraph follows the contract of
// ExtractFloorMappings; nil selects flow.Build over segments. Diagnostics are
// collected into the report and also forwarded to opts.Diagnostics.
func Analyze(segments []*asm.Segment, buildGraph func() *flow.Graph, opts Options) *Report {
	if buildGraph == nil {
		buildGraph = func() *flow.Graph { return flow.Build(segments) }
	}

	var c diag.Collector
	sink := c.Sink()
	if opts.Diagnostics != nil {
		sink = diag.Tee(sink, opts.Diagnostics)
	}
	opts.Diagnostics = sink

	r := &Report{
		Episode: DetectEpisode(segments, opts.EntryLabel, nil),
		Floors:  ExtractFloorMappings(segments, buildGraph, opts),
	}
	r.Diagnostics = c.Items
	return r
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("quest: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// MarshalReport serializes a Report to canonical CBOR bytes.
func MarshalReport(r *Report) ([]byte, error) {
	return cborEncMode.Marshal(r)
}

// UnmarshalReport deserializes a Report from CBOR bytes.
func UnmarshalReport(data []byte) (*Report, error) {
	var r Report
	if err := cbor.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("quest: unmarshal report: %w", err)
	}
	return &r, nil
}
