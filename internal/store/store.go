package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
)

const (
	CatalogFile     = "catalog-store.json"
	DecisionsFile   = "merge-decisions.json"
	SuggestionsFile = "suggestions.json"
	AuditFile       = "audit-log.json"
	snapshotsDir    = "snapshots"
)

// Store is the on-disk state of one ingestion process. Every file is replaced
// through a temp file and an atomic rename, so readers see either the old or
// the new document, never a partial one.
type Store struct {
	dir string

	// mu serializes read-modify-write cycles on the mutable documents.
	mu sync.Mutex
	// snapMu guards snapshot naming.
	snapMu sync.Mutex
}

// CatalogState is the canonical store document.
type CatalogState struct {
	Records map[string]catalog.Entry `json:"records"`
	LastRun *time.Time               `json:"lastRun"`
}

func Open(dir string) (*Store, error) {
	dir = strings.TrimSpace(dir)
	if dir == "" {
		return nil, fmt.Errorf("data directory is required")
	}
	if err := os.MkdirAll(filepath.Join(dir, snapshotsDir), 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	return &Store{dir: dir}, nil
}

func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *Store) LoadCatalog() (CatalogState, error) {
	var state CatalogState
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := readJSON(s.path(CatalogFile), &state); err != nil {
		return CatalogState{}, err
	}
	if state.Records == nil {
		state.Records = make(map[string]catalog.Entry)
	}
	return state, nil
}

func (s *Store) SaveCatalog(state CatalogState) error {
	if state.Records == nil {
		state.Records = make(map[string]catalog.Entry)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path(CatalogFile), state)
}

// LoadDecisions returns the deterministic key -> canonical key memo.
func (s *Store) LoadDecisions() (map[string]string, error) {
	decisions := make(map[string]string)
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := readJSON(s.path(DecisionsFile), &decisions); err != nil {
		return nil, err
	}
	if decisions == nil {
		decisions = make(map[string]string)
	}
	return decisions, nil
}

func (s *Store) SaveDecisions(decisions map[string]string) error {
	if decisions == nil {
		decisions = make(map[string]string)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeJSON(s.path(DecisionsFile), decisions)
}

// Read decodes the named document into a T. A missing file yields the zero
// value.
func Read[T any](s *Store, name string) (T, error) {
	var doc T
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := readJSON(s.path(name), &doc); err != nil {
		var zero T
		return zero, err
	}
	return doc, nil
}

// Update runs fn on the current contents of the named document and writes
// the result back. The whole cycle holds the store lock; when fn returns an
// error nothing is written.
func Update[T any](s *Store, name string, fn func(doc *T) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doc T
	if err := readJSON(s.path(name), &doc); err != nil {
		return err
	}
	if err := fn(&doc); err != nil {
		return err
	}
	return writeJSON(s.path(name), doc)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return writeFileAtomic(path, append(data, '\n'))
}

// writeFileAtomic writes data to a temp file next to path, fsyncs it and
// renames it into place.
func writeFileAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmpName)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", filepath.Base(path), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err = os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod %s: %w", filepath.Base(path), err)
	}
	if err = os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", filepath.Base(path), err)
	}
	return nil
}
