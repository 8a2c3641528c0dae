// Package quest recovers quest-level facts from script code, chiefly which
// game area and variant each quest floor is bound to.
package quest

import (
	"slices"

	"github.com/chazu/questscope/analysis"
	"github.com/chazu/questscope/area"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/flow"
	"github.com/chazu/questscope/valueset"
)

// FloorMapping binds a quest floor to an area of the quest's episode.
type FloorMapping struct {
	Floor   int `cbor:"1,keyasint"`
	Area    int `cbor:"2,keyasint"` // per-episode area index
	Variant int `cbor:"3,keyasint"`
}

// Options configures extraction.
type Options struct {
	// EntryLabel selects the segment searched for set_episode. When no
	// segment carries it the first segment is used.
	EntryLabel int32

	// MaxIterations is passed to the value analyses.
	MaxIterations int

	Diagnostics diag.Sink
}

// ExtractFloorMappings scans segments for floor designations and returns one
// mapping per floor, ordered by floor. buildGraph must build the graph over the
// same segments; it is called at most once, and only when an operand needs
// value analysis.
//
// map_designate, map_designate_ex and bb_map_designate always overwrite an
// existing mapping. set_floor_handler only fills floors nothing else maps.
func ExtractFloorMappings(segments []*asm.Segment, buildGraph func() *flow.Graph, opts Options) []FloorMapping {
	x := &extractor{
		build:   buildGraph,
		opts:    opts,
		sink:    opts.Diagnostics,
		floors:  make(map[int]FloorMapping),
		episode: DetectEpisode(segments, opts.EntryLabel, opts.Diagnostics),
	}

	for _, seg := range segments {
		for i := range seg.Instructions {
			inst := &seg.Instructions[i]
			switch inst.Opcode.Code {
			case asm.OpMapDesignate:
				x.designate(inst, 2)
			case asm.OpMapDesignateEx:
				x.designate(inst, 3)
			case asm.OpBBMapDesignate:
				x.designateLiteral(inst)
			case asm.OpSetFloorHandler:
				x.floorHandler(inst)
			}
		}
	}

	out := make([]FloorMapping, 0, len(x.floors))
	for _, m := range x.floors {
		out = append(out, m)
	}
	slices.SortFunc(out, func(a, b FloorMapping) int { return a.Floor - b.Floor })
	return out
}

// DetectEpisode returns the episode selected by the first set_episode in the
// entry segment, or Episode I.
func DetectEpisode(segments []*asm.Segment, entryLabel int32, sink diag.Sink) area.Episode {
	seg := entrySegment(segments, entryLabel)
	if seg == nil {
		return area.EpisodeI
	}
	for i := range seg.Instructions {
		inst := &seg.Instructions[i]
		if inst.Opcode.Code != asm.OpSetEpisode {
			continue
		}
		v, ok := inst.IntArg(0)
		if !ok || !area.Episode(v).Valid() {
			sink.Warnf(inst.Line, "unsupported episode operand %s, assuming %s", inst, area.EpisodeI)
			return area.EpisodeI
		}
		return area.Episode(v)
	}
	return area.EpisodeI
}

func entrySegment(segments []*asm.Segment, label int32) *asm.Segment {
	for _, seg := range segments {
		if seg.HasLabel(label) {
			return seg
		}
	}
	if len(segments) > 0 {
		return segments[0]
	}
	return nil
}

type extractor struct {
	build    func() *flow.Graph
	analyzer *analysis.Analyzer
	opts     Options
	sink     diag.Sink
	floors   map[int]FloorMapping
	episode  area.Episode
}

func (x *extractor) values() *analysis.Analyzer {
	if x.analyzer == nil {
		x.analyzer = analysis.New(x.build(), analysis.Options{
			MaxIterations: x.opts.MaxIterations,
			Diagnostics:   x.sink,
		})
	}
	return x.analyzer
}

// designate handles the register-based designate opcodes. The floor, area
// code and variant live in base, base+1 and base+variantOffset.
func (x *extractor) designate(inst *asm.Instruction, variantOffset int) {
	base, ok := inst.RegArg(0)
	if !ok {
		x.sink.Warnf(inst.Line, "%s: base operand is not a register", inst.Opcode.Mnemonic)
		return
	}
	a := x.values()
	floor, ok := x.single(inst, "floor", a.RegisterValues(inst, base))
	if !ok {
		return
	}
	code, ok := x.single(inst, "area", a.RegisterValues(inst, base+1))
	if !ok {
		return
	}
	variant, ok := x.single(inst, "variant", a.RegisterValues(inst, base+variantOffset))
	if !ok {
		return
	}
	x.record(inst, int(floor), int(code), int(variant))
}

func (x *extractor) designateLiteral(inst *asm.Instruction) {
	floor, ok1 := inst.IntArg(0)
	code, ok2 := inst.IntArg(1)
	variant, ok3 := inst.IntArg(2)
	if !ok1 || !ok2 || !ok3 {
		x.sink.Warnf(inst.Line, "%s: expected three literal operands", inst.Opcode.Mnemonic)
		return
	}
	x.record(inst, int(floor), int(code), int(variant))
}

func (x *extractor) floorHandler(inst *asm.Instruction) {
	values, _ := x.values().StackValue(inst, 1)
	floor, ok := x.single(inst, "floor", values)
	if !ok {
		return
	}
	if _, mapped := x.floors[int(floor)]; mapped {
		return
	}
	code, ok := area.HandlerCode(x.episode, int(floor))
	if !ok {
		x.sink.Warnf(inst.Line, "%s: no %s area for floor %d", inst.Opcode.Mnemonic, x.episode, floor)
		return
	}
	x.record(inst, int(floor), code, 0)
}

func (x *extractor) single(inst *asm.Instruction, what string, values *valueset.Set) (int32, bool) {
	v, ok := values.Single()
	if !ok {
		x.sink.Warnf(inst.Line, "%s: could not determine %s, possible values %s", inst.Opcode.Mnemonic, what, values)
	}
	return v, ok
}

func (x *extractor) record(inst *asm.Instruction, floor, code, variant int) {
	a, ok := area.ByCode(code)
	if !ok {
		x.sink.Warnf(inst.Line, "%s: unknown area code 0x%X", inst.Opcode.Mnemonic, code)
		return
	}
	x.floors[floor] = FloorMapping{Floor: floor, Area: a.Index, Variant: variant}
}
