// Package manifest handles questscope.toml project configuration.
package manifest

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/BurntSushi/toml"

	"github.com/chazu/questscope/analysis"
	"github.com/chazu/questscope/quest"
)

// FileName is the configuration file looked up by FindAndLoad.
const FileName = "questscope.toml"

// DefaultCachePath is the report cache location relative to the project dir.
const DefaultCachePath = ".questscope/cache.db"

// Manifest represents a questscope.toml project configuration.
type Manifest struct {
	Analysis Analysis `toml:"analysis"`
	Log      Log      `toml:"log"`
	Cache    Cache    `toml:"cache"`
	Quest    Quest    `toml:"quest"`

	// Dir is the directory containing the questscope.toml file (set at load time).
	Dir string `toml:"-"`
}

// Analysis configures the value analyses.
type Analysis struct {
	MaxIterations int `toml:"max-iterations"`
}

// Log configures commonlog output.
type Log struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// Cache configures the report cache.
type Cache struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// Quest configures floor extraction.
type Quest struct {
	EntryLabel int32 `toml:"entry-label"`
}

//go:embed schema.cue
var schemaSource string

// Default returns the configuration used when no questscope.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a questscope.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	return m, nil
}

// Parse decodes and validates a questscope.toml document. Dir is left empty.
func Parse(data []byte) (*Manifest, error) {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	if err := validate(raw); err != nil {
		return nil, err
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse error: %w", err)
	}
	m.applyDefaults()
	return &m, nil
}

// validate checks a decoded document against the embedded CUE schema.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	doc := ctx.Encode(raw)
	if err := doc.Err(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := def.Unify(doc).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func (m *Manifest) applyDefaults() {
	if m.Analysis.MaxIterations == 0 {
		m.Analysis.MaxIterations = analysis.DefaultMaxIterations
	}
	if m.Cache.Path == "" {
		m.Cache.Path = DefaultCachePath
	}
}

// FindAndLoad walks up from startDir to find a questscope.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CachePath returns the absolute path of the report cache database.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

// LogFile returns the log file path for commonlog.Configure, or nil for stderr.
func (m *Manifest) LogFile() *string {
	if m.Log.File == "" {
		return nil
	}
	path := m.Log.File
	if !filepath.IsAbs(path) {
		path = filepath.Join(m.Dir, path)
	}
	return &path
}

// AnalysisOptions returns analysis options carrying the configured bound.
func (m *Manifest) AnalysisOptions() analysis.Options {
	return analysis.Options{MaxIterations: m.Analysis.MaxIterations}
}

// QuestOptions returns floor extraction options. The caller supplies the
// diagnostics sink.
func (m *Manifest) QuestOptions() quest.Options {
	return quest.Options{
		EntryLabel:    m.Quest.EntryLabel,
		MaxIterations: m.Analysis.MaxIterations,
	}
}
