package area

import "testing"

func TestByCode(t *testing.T) {
	tests := []struct {
		code    int
		episode Episode
		index   int
	}{
		{0x00, EpisodeI, 0},
		{0x0B, EpisodeI, 11},
		{0x11, EpisodeI, 17},
		{0x12, EpisodeII, 0},
		{0x23, EpisodeII, 17},
		{0x2D, EpisodeIV, 0},
		{0x24, EpisodeIV, 1},
		{0x2C, EpisodeIV, 9},
	}

	for _, tt := range tests {
		a, ok := ByCode(tt.code)
		if !ok {
			t.Errorf("ByCode(0x%02X) not found", tt.code)
			continue
		}
		if a.Episode != tt.episode || a.Index != tt.index {
			t.Errorf("ByCode(0x%02X) = %v, want %s #%d", tt.code, a, tt.episode, tt.index)
		}
	}
}

func TestByCodeUnknown(t *testing.T) {
	for _, code := range []int{-1, 0x2E, 0xFF} {
		if a, ok := ByCode(code); ok {
			t.Errorf("ByCode(0x%X) = %v, want not found", code, a)
		}
	}
}

func TestByIndexRoundTrip(t *testing.T) {
	for _, a := range All() {
		got, ok := ByIndex(a.Episode, a.Index)
		if !ok || got != a {
			t.Errorf("ByIndex(%s, %d) = %v, %v; want %v", a.Episode, a.Index, got, ok, a)
		}
	}
	if _, ok := ByIndex(EpisodeIV, 10); ok {
		t.Error("ByIndex(Episode IV, 10) should not exist")
	}
}

func TestTableIsUnique(t *testing.T) {
	codes := map[int]bool{}
	for _, a := range All() {
		if codes[a.Code] {
			t.Errorf("duplicate code 0x%02X", a.Code)
		}
		codes[a.Code] = true
	}
	if len(codes) != 0x2E {
		t.Errorf("table has %d codes, want %d", len(codes), 0x2E)
	}
}

func TestAllReturnsCopy(t *testing.T) {
	all := All()
	all[0].Name = "changed"
	if a, _ := ByCode(all[0].Code); a.Name == "changed" {
		t.Error("All exposed the backing table")
	}
}

func TestHandlerCode(t *testing.T) {
	tests := []struct {
		episode Episode
		floor   int
		want    int
		ok      bool
	}{
		{EpisodeI, 0, 0x00, true},
		{EpisodeI, 5, 0x05, true},
		{EpisodeI, 18, 0, false},
		{EpisodeII, 0, 0x12, true},
		{EpisodeII, 3, 0x15, true},
		{EpisodeII, 18, 0, false},
		{EpisodeIV, 0, 0x2D, true},
		{EpisodeIV, 1, 0x24, true},
		{EpisodeIV, 9, 0x2C, true},
		{EpisodeIV, 10, 0, false},
		{Episode(7), 0, 0, false},
	}

	for _, tt := range tests {
		got, ok := HandlerCode(tt.episode, tt.floor)
		if got != tt.want || ok != tt.ok {
			t.Errorf("HandlerCode(%s, %d) = 0x%02X, %v; want 0x%02X, %v",
				tt.episode, tt.floor, got, ok, tt.want, tt.ok)
		}
	}
}
