package catalog

import (
	"sort"
	"time"
)

// Catalog is the working set of canonical entries for one ingestion run,
// together with the platform index used to find fuzzy candidates. It is not
// safe for concurrent use; the orchestrator owns it for the run.
type Catalog struct {
	entries map[string]Entry
	index   *PlatformIndex
}

// NewCatalog copies entries and indexes them in key order.
func NewCatalog(entries map[string]Entry) *Catalog {
	c := &Catalog{
		entries: make(map[string]Entry, len(entries)),
		index:   NewPlatformIndex(),
	}
	keys := make([]string, 0, len(entries))
	for k := range entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		c.put(k, entries[k])
	}
	return c
}

func (c *Catalog) Get(key string) (Entry, bool) {
	e, ok := c.entries[key]
	return e, ok
}

func (c *Catalog) Len() int {
	return len(c.entries)
}

func (c *Catalog) Index() *PlatformIndex {
	return c.index
}

// Keys returns every canonical key in lexical order.
func (c *Catalog) Keys() []string {
	keys := make([]string, 0, len(c.entries))
	for k := range c.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Entries returns a copy of the entry map.
func (c *Catalog) Entries() map[string]Entry {
	out := make(map[string]Entry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Observe records a fresh observation under key: a new entity is created at
// version 1, an existing one is merged and re-versioned. lastSeen is
// refreshed even when the merge changes nothing.
func (c *Catalog) Observe(key string, rec Record, now time.Time) (Entry, Outcome) {
	existing, ok := c.entries[key]
	if !ok {
		entry, outcome := Version(nil, rec, now)
		c.put(key, entry)
		return entry, outcome
	}
	entry, outcome := Version(&existing, Merge(existing.Record, rec), now)
	if outcome == OutcomeUnchanged {
		entry.LastSeen = now
	}
	c.put(key, entry)
	return entry, outcome
}

// Revise replaces the record under key with next, versioning it. Unlike
// Observe it neither merges nor touches lastSeen when nothing changed.
func (c *Catalog) Revise(key string, next Record, now time.Time) (Entry, Outcome, bool) {
	existing, ok := c.entries[key]
	if !ok {
		return Entry{}, "", false
	}
	entry, outcome := Version(&existing, next, now)
	if outcome != OutcomeUnchanged {
		c.put(key, entry)
	}
	return entry, outcome, true
}

// Insert creates key only when it is not taken yet.
func (c *Catalog) Insert(key string, rec Record, now time.Time) (Entry, bool) {
	if _, exists := c.entries[key]; exists {
		return Entry{}, false
	}
	entry, _ := Version(nil, rec, now)
	c.put(key, entry)
	return entry, true
}

func (c *Catalog) put(key string, e Entry) {
	c.entries[key] = e
	c.index.Upsert(key, e.Record.PlatformKey())
}
