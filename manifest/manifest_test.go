package manifest

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/chazu/questscope/analysis"
)

func writeConfig(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, `
[analysis]
max-iterations = 250

[log]
verbosity = 2
file = "qscope.log"

[cache]
enabled = true
path = "/tmp/reports.db"

[quest]
entry-label = 7
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Analysis.MaxIterations != 250 {
		t.Errorf("max-iterations = %d, want 250", m.Analysis.MaxIterations)
	}
	if m.Log.Verbosity != 2 {
		t.Errorf("verbosity = %d, want 2", m.Log.Verbosity)
	}
	if got := m.LogFile(); got == nil || *got != filepath.Join(m.Dir, "qscope.log") {
		t.Errorf("LogFile = %v, want qscope.log under the project dir", got)
	}
	if !m.Cache.Enabled {
		t.Error("cache enabled = false, want true")
	}
	if m.CachePath() != "/tmp/reports.db" {
		t.Errorf("CachePath = %q, want /tmp/reports.db", m.CachePath())
	}
	if m.Quest.EntryLabel != 7 {
		t.Errorf("entry-label = %d, want 7", m.Quest.EntryLabel)
	}
	if got := m.AnalysisOptions().MaxIterations; got != 250 {
		t.Errorf("AnalysisOptions().MaxIterations = %d, want 250", got)
	}
	if opts := m.QuestOptions(); opts.EntryLabel != 7 || opts.MaxIterations != 250 {
		t.Errorf("QuestOptions = %+v", opts)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeConfig(t, dir, "[cache]\nenabled = true\n")

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if m.Analysis.MaxIterations != analysis.DefaultMaxIterations {
		t.Errorf("max-iterations = %d, want %d", m.Analysis.MaxIterations, analysis.DefaultMaxIterations)
	}
	if m.CachePath() != filepath.Join(m.Dir, DefaultCachePath) {
		t.Errorf("CachePath = %q", m.CachePath())
	}
	if m.LogFile() != nil {
		t.Errorf("LogFile = %q, want nil", *m.LogFile())
	}
	if m.Quest.EntryLabel != 0 {
		t.Errorf("entry-label = %d, want 0", m.Quest.EntryLabel)
	}
}

func TestDefault(t *testing.T) {
	m := Default("/work")
	if m.Dir != "/work" || m.Analysis.MaxIterations != analysis.DefaultMaxIterations || m.Cache.Enabled {
		t.Errorf("Default = %+v", m)
	}
}

func TestSchemaRejects(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"unknown section", "[project]\nname = \"x\"\n", "project"},
		{"unknown key", "[analysis]\ndepth = 3\n", "depth"},
		{"zero iterations", "[analysis]\nmax-iterations = 0\n", "max-iterations"},
		{"wrong type", "[cache]\nenabled = \"yes\"\n", "enabled"},
		{"negative label", "[quest]\nentry-label = -1\n", "entry-label"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestParseSyntaxError(t *testing.T) {
	if _, err := Parse([]byte("[analysis\n")); err == nil {
		t.Error("expected parse error")
	}
}

func TestFindAndLoad(t *testing.T) {
	root := t.TempDir()
	writeConfig(t, root, "[quest]\nentry-label = 3\n")

	subDir := filepath.Join(root, "quests", "ep1")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}

	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Quest.EntryLabel != 3 {
		t.Errorf("entry-label = %d, want 3", m.Quest.EntryLabel)
	}
	absRoot, _ := filepath.Abs(root)
	if m.Dir != absRoot {
		t.Errorf("Dir = %q, want %q", m.Dir, absRoot)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m != nil {
		t.Error("expected nil manifest when no questscope.toml exists")
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(t.TempDir()); err == nil {
		t.Error("expected error for missing questscope.toml")
	}
}
