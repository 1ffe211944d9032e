package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/sandgraal/retro-games-sub003/internal/catalog"
)

const (
	snapshotPrefix = "catalog-"
	snapshotSuffix = ".json"
	snapshotLayout = "20060102T150405.000000000Z"
)

var ErrNoSnapshot = errors.New("no snapshot available")

// SnapshotEntry is one element of a snapshot file.
type SnapshotEntry struct {
	Key     string         `json:"key"`
	Version int            `json:"version"`
	Hash    string         `json:"hash"`
	Record  catalog.Record `json:"record"`
}

// BuildSnapshot flattens entries into a list ordered by canonical key.
func BuildSnapshot(entries map[string]catalog.Entry) []SnapshotEntry {
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]SnapshotEntry, 0, len(keys))
	for _, k := range keys {
		e := entries[k]
		out = append(out, SnapshotEntry{Key: k, Version: e.Version, Hash: e.Hash, Record: e.Record})
	}
	return out
}

func snapshotName(t time.Time) string {
	return snapshotPrefix + t.UTC().Format(snapshotLayout) + snapshotSuffix
}

func parseSnapshotName(name string) (time.Time, bool) {
	if !isSnapshotName(name) {
		return time.Time{}, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(name, snapshotPrefix), snapshotSuffix)
	t, err := time.Parse(snapshotLayout, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

func isSnapshotName(name string) bool {
	return strings.HasPrefix(name, snapshotPrefix) && strings.HasSuffix(name, snapshotSuffix)
}

// WriteSnapshot writes a new immutable snapshot named after now and returns
// its path. Names sort in write order: when now would not sort after the
// newest existing snapshot, the timestamp is moved just past it.
func (s *Store) WriteSnapshot(entries map[string]catalog.Entry, now time.Time) (string, error) {
	data, err := json.MarshalIndent(BuildSnapshot(entries), "", "  ")
	if err != nil {
		return "", fmt.Errorf("encode snapshot: %w", err)
	}

	s.snapMu.Lock()
	defer s.snapMu.Unlock()

	names, err := s.ListSnapshots()
	if err != nil {
		return "", err
	}
	stamp := now.UTC()
	if len(names) > 0 {
		newest := names[len(names)-1]
		if snapshotName(stamp) <= newest {
			if t, ok := parseSnapshotName(newest); ok {
				stamp = t.Add(time.Nanosecond)
			}
		}
	}

	path := filepath.Join(s.dir, snapshotsDir, snapshotName(stamp))
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("snapshot %s already exists", filepath.Base(path))
	}
	if err := writeFileAtomic(path, append(data, '\n')); err != nil {
		return "", err
	}
	return path, nil
}

// ListSnapshots returns snapshot file names in ascending order.
func (s *Store) ListSnapshots() ([]string, error) {
	dirEntries, err := os.ReadDir(filepath.Join(s.dir, snapshotsDir))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list snapshots: %w", err)
	}
	names := make([]string, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !isSnapshotName(de.Name()) {
			continue
		}
		names = append(names, de.Name())
	}
	sort.Strings(names)
	return names, nil
}

// LatestSnapshot returns the name and contents of the lexicographically
// greatest snapshot, or ErrNoSnapshot.
func (s *Store) LatestSnapshot() (string, []byte, error) {
	names, err := s.ListSnapshots()
	if err != nil {
		return "", nil, err
	}
	if len(names) == 0 {
		return "", nil, ErrNoSnapshot
	}
	name := names[len(names)-1]
	data, err := os.ReadFile(filepath.Join(s.dir, snapshotsDir, name))
	if err != nil {
		return "", nil, fmt.Errorf("read snapshot %s: %w", name, err)
	}
	return name, data, nil
}
