// Package store caches quest reports in SQLite, keyed by a fingerprint of
// the analyzed code and the options that shaped the result.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/zeebo/xxh3"
	_ "modernc.org/sqlite"

	"github.com/chazu/questscope/asm"
	"github.com/chazu/questscope/quest"
)

// ErrNotFound indicates no report is cached under the fingerprint.
var ErrNotFound = errors.New("report not found")

// Store is a report cache backed by a SQLite database.
type Store struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// Open opens or creates the cache database at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("creating cache dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS reports (
		fingerprint TEXT PRIMARY KEY,
		episode INTEGER NOT NULL,
		floors INTEGER NOT NULL,
		data BLOB NOT NULL,
		created_at INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Store{db: db, path: path}, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Get returns the report cached under fp.
func (s *Store) Get(fp uint64) (*quest.Report, error) {
	var data []byte
	err := s.db.QueryRow("SELECT data FROM reports WHERE fingerprint = ?", key(fp)).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying report: %w", err)
	}
	return quest.UnmarshalReport(data)
}

// Put stores r under fp, replacing any previous entry.
func (s *Store) Put(fp uint64, r *quest.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := quest.MarshalReport(r)
	if err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}

	_, err = s.db.Exec(
		"INSERT OR REPLACE INTO reports (fingerprint, episode, floors, data, created_at) VALUES (?, ?, ?, ?, ?)",
		key(fp), int(r.Episode), len(r.Floors), data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving report: %w", err)
	}
	return nil
}

// Len returns the number of cached reports.
func (s *Store) Len() (int, error) {
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM reports").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting reports: %w", err)
	}
	return n, nil
}

func key(fp uint64) string {
	return fmt.Sprintf("%016x", fp)
}

// ---------------------------------------------------------------------------
// Fingerprints
// ---------------------------------------------------------------------------

type fingerprintInput struct {
	EntryLabel    int32          `cbor:"1,keyasint"`
	MaxIterations int            `cbor:"2,keyasint"`
	Segments      []segmentInput `cbor:"3,keyasint"`
}

type segmentInput struct {
	Labels       []int32            `cbor:"1,keyasint"`
	Instructions []instructionInput `cbor:"2,keyasint"`
}

type instructionInput struct {
	Code uint16     `cbor:"1,keyasint"`
	Args []argInput `cbor:"2,keyasint"`
	Line int        `cbor:"3,keyasint"`
}

type argInput struct {
	Kind  asm.ArgKind `cbor:"1,keyasint"`
	Value int32       `cbor:"2,keyasint"`
	Text  string      `cbor:"3,keyasint,omitempty"`
}

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("store: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// Fingerprint digests segments and the extraction options that affect the
// report. Source lines are included because diagnostics carry them.
func Fingerprint(segments []*asm.Segment, opts quest.Options) (uint64, error) {
	in := fingerprintInput{
		EntryLabel:    opts.EntryLabel,
		MaxIterations: opts.MaxIterations,
		Segments:      make([]segmentInput, len(segments)),
	}
	for i, seg := range segments {
		s := segmentInput{Labels: seg.Labels, Instructions: make([]instructionInput, len(seg.Instructions))}
		for j, inst := range seg.Instructions {
			args := make([]argInput, len(inst.Args))
			for k, a := range inst.Args {
				args[k] = argInput{Kind: a.Kind, Value: a.Value, Text: a.Text}
			}
			s.Instructions[j] = instructionInput{Code: inst.Opcode.Code, Args: args, Line: inst.Line}
		}
		in.Segments[i] = s
	}

	data, err := cborEncMode.Marshal(in)
	if err != nil {
		return 0, fmt.Errorf("encoding segments: %w", err)
	}
	return xxh3.Hash(data), nil
}
