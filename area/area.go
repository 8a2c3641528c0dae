// Package area holds the static table of game areas and the translations
// between engine area codes and per-episode area indices.
package area

import "fmt"

// Episode identifies a game episode as set by the set_episode instruction.
type Episode int

const (
	EpisodeI  Episode = 0
	EpisodeII Episode = 1
	EpisodeIV Episode = 2
)

func (e Episode) String() string {
	switch e {
	case EpisodeI:
		return "Episode I"
	case EpisodeII:
		return "Episode II"
	case EpisodeIV:
		return "Episode IV"
	}
	return fmt.Sprintf("Episode(%d)", int(e))
}

// Valid reports whether e is a known episode.
func (e Episode) Valid() bool {
	return e == EpisodeI || e == EpisodeII || e == EpisodeIV
}

// Area is one row of the area table.
type Area struct {
	Code    int // engine area code
	Index   int // sequential index within Episode
	Episode Episode
	Name    string
}

func (a Area) String() string {
	return fmt.Sprintf("%s (%s #%d, code 0x%02X)", a.Name, a.Episode, a.Index, a.Code)
}

// ---------------------------------------------------------------------------
// Table
// ---------------------------------------------------------------------------

var areaList = []Area{
	// Episode I
	{0x00, 0, EpisodeI, "Pioneer II"},
	{0x01, 1, EpisodeI, "Forest 1"},
	{0x02, 2, EpisodeI, "Forest 2"},
	{0x03, 3, EpisodeI, "Cave 1"},
	{0x04, 4, EpisodeI, "Cave 2"},
	{0x05, 5, EpisodeI, "Cave 3"},
	{0x06, 6, EpisodeI, "Mine 1"},
	{0x07, 7, EpisodeI, "Mine 2"},
	{0x08, 8, EpisodeI, "Ruins 1"},
	{0x09, 9, EpisodeI, "Ruins 2"},
	{0x0A, 10, EpisodeI, "Ruins 3"},
	{0x0B, 11, EpisodeI, "Under the Dome"},
	{0x0C, 12, EpisodeI, "Underground Channel"},
	{0x0D, 13, EpisodeI, "Monitor Room"},
	{0x0E, 14, EpisodeI, "????"},
	{0x0F, 15, EpisodeI, "Visual Lobby"},
	{0x10, 16, EpisodeI, "VR Spaceship Alpha"},
	{0x11, 17, EpisodeI, "VR Temple Alpha"},

	// Episode II
	{0x12, 0, EpisodeII, "Lab"},
	{0x13, 1, EpisodeII, "VR Temple Alpha"},
	{0x14, 2, EpisodeII, "VR Temple Beta"},
	{0x15, 3, EpisodeII, "VR Spaceship Alpha"},
	{0x16, 4, EpisodeII, "VR Spaceship Beta"},
	{0x17, 5, EpisodeII, "Central Control Area"},
	{0x18, 6, EpisodeII, "Jungle Area North"},
	{0x19, 7, EpisodeII, "Jungle Area East"},
	{0x1A, 8, EpisodeII, "Mountain Area"},
	{0x1B, 9, EpisodeII, "Seaside Area"},
	{0x1C, 10, EpisodeII, "Seabed Upper Levels"},
	{0x1D, 11, EpisodeII, "Seabed Lower Levels"},
	{0x1E, 12, EpisodeII, "Cliffs of Gal Da Val"},
	{0x1F, 13, EpisodeII, "Test Subject Disposal Area"},
	{0x20, 14, EpisodeII, "VR Temple Final"},
	{0x21, 15, EpisodeII, "VR Spaceship Final"},
	{0x22, 16, EpisodeII, "Seaside Area at Night"},
	{0x23, 17, EpisodeII, "Control Tower"},

	// Episode IV
	{0x2D, 0, EpisodeIV, "Pioneer II"},
	{0x24, 1, EpisodeIV, "Crater Route 1"},
	{0x25, 2, EpisodeIV, "Crater Route 2"},
	{0x26, 3, EpisodeIV, "Crater Route 3"},
	{0x27, 4, EpisodeIV, "Crater Route 4"},
	{0x28, 5, EpisodeIV, "Crater Interior"},
	{0x29, 6, EpisodeIV, "Subterranean Desert 1"},
	{0x2A, 7, EpisodeIV, "Subterranean Desert 2"},
	{0x2B, 8, EpisodeIV, "Subterranean Desert 3"},
	{0x2C, 9, EpisodeIV, "Meteor Impact Site"},
}

type indexKey struct {
	episode Episode
	index   int
}

var (
	byCode  = make(map[int]*Area, len(areaList))
	byIndex = make(map[indexKey]*Area, len(areaList))
)

func init() {
	for i := range areaList {
		a := &areaList[i]
		byCode[a.Code] = a
		byIndex[indexKey{a.Episode, a.Index}] = a
	}
}

// ByCode returns the area with the given engine code.
func ByCode(code int) (Area, bool) {
	if a, ok := byCode[code]; ok {
		return *a, true
	}
	return Area{}, false
}

// ByIndex returns the area at index within episode.
func ByIndex(episode Episode, index int) (Area, bool) {
	if a, ok := byIndex[indexKey{episode, index}]; ok {
		return *a, true
	}
	return Area{}, false
}

// All returns a copy of the table in episode order.
func All() []Area {
	out := make([]Area, len(areaList))
	copy(out, areaList)
	return out
}

// HandlerCode returns the engine area code a floor handler installed for
// floor implies in the given episode.
func HandlerCode(episode Episode, floor int) (int, bool) {
	var code int
	switch episode {
	case EpisodeI:
		code = floor
	case EpisodeII:
		code = floor + 0x12
	case EpisodeIV:
		if floor == 0 {
			code = 0x2D
		} else {
			code = 0x23 + floor
		}
	default:
		return 0, false
	}
	a, ok := byCode[code]
	if !ok || a.Episode != episode || a.Index != floor {
		return 0, false
	}
	return code, true
}
