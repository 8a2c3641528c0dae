package store

import (
	"errors"
	"path/filepath"
	"slices"
	"testing"

	"github.com/chazu/questscope/area"
	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/diag"
	"github.com/chazu/questscope/quest"
)

func openTemp(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "cache", "reports.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleReport() *quest.Report {
	return &quest.Report{
		Episode: area.EpisodeII,
		Floors: []quest.FloorMapping{
			{Floor: 0, Area: 0, Variant: 0},
			{Floor: 1, Area: 7, Variant: 2},
		},
		Diagnostics: []diag.Diagnostic{{Severity: diag.Warning, Message: "ambiguous", Line: 4}},
	}
}

func TestPutGet(t *testing.T) {
	s := openTemp(t)
	want := sampleReport()

	if err := s.Put(42, want); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := s.Get(42)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Episode != want.Episode || !slices.Equal(got.Floors, want.Floors) || !slices.Equal(got.Diagnostics, want.Diagnostics) {
		t.Errorf("Get = %+v, want %+v", got, want)
	}
}

func TestGetMissing(t *testing.T) {
	s := openTemp(t)
	if _, err := s.Get(7); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get error = %v, want ErrNotFound", err)
	}
}

func TestPutReplaces(t *testing.T) {
	s := openTemp(t)
	if err := s.Put(1, sampleReport()); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(1, &quest.Report{Episode: area.EpisodeIV}); err != nil {
		t.Fatal(err)
	}

	got, err := s.Get(1)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.Episode != area.EpisodeIV || len(got.Floors) != 0 {
		t.Errorf("Get = %+v, want the replacement", got)
	}
	if n, err := s.Len(); err != nil || n != 1 {
		t.Errorf("Len = %d, %v; want 1", n, err)
	}
}

func TestHighFingerprint(t *testing.T) {
	s := openTemp(t)
	const fp = ^uint64(0)
	if err := s.Put(fp, sampleReport()); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if _, err := s.Get(fp); err != nil {
		t.Errorf("Get failed: %v", err)
	}
}

func TestPersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reports.db")
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Put(9, sampleReport()); err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()
	if _, err := s.Get(9); err != nil {
		t.Errorf("Get after reopen failed: %v", err)
	}
}

func mustFingerprint(t *testing.T, src string, opts quest.Options) uint64 {
	t.Helper()
	segs, err := asm.Assemble(src)
	if err != nil {
		t.Fatalf("Assemble failed: %v", err)
	}
	fp, err := Fingerprint(segs, opts)
	if err != nil {
		t.Fatalf("Fingerprint failed: %v", err)
	}
	return fp
}

func TestFingerprint(t *testing.T) {
	base := mustFingerprint(t, "0:\n    leti r1, 2\n    ret", quest.Options{})

	if again := mustFingerprint(t, "0:\n    leti r1, 2\n    ret", quest.Options{}); again != base {
		t.Error("identical input produced different fingerprints")
	}

	different := map[string]uint64{
		"operand":        mustFingerprint(t, "0:\n    leti r1, 3\n    ret", quest.Options{}),
		"register":       mustFingerprint(t, "0:\n    leti r2, 2\n    ret", quest.Options{}),
		"label":          mustFingerprint(t, "1:\n    leti r1, 2\n    ret", quest.Options{}),
		"line":           mustFingerprint(t, "0:\n\n    leti r1, 2\n    ret", quest.Options{}),
		"entry label":    mustFingerprint(t, "0:\n    leti r1, 2\n    ret", quest.Options{EntryLabel: 1}),
		"max iterations": mustFingerprint(t, "0:\n    leti r1, 2\n    ret", quest.Options{MaxIterations: 5}),
	}
	for name, fp := range different {
		if fp == base {
			t.Errorf("changing the %s did not change the fingerprint", name)
		}
	}
}

func TestFingerprintIgnoresDiagnosticsSink(t *testing.T) {
	src := "0:\n    ret"
	var c diag.Collector
	if mustFingerprint(t, src, quest.Options{}) != mustFingerprint(t, src, quest.Options{Diagnostics: c.Sink()}) {
		t.Error("the diagnostics sink should not affect the fingerprint")
	}
}
