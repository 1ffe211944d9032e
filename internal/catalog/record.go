package catalog

import (
	"sort"
	"strings"
	"time"
)

// RawRecord is one loosely-typed game payload as delivered by a source or a
// community suggestion delta.
type RawRecord map[string]any

type Assets struct {
	Cover       string   `json:"cover"`
	Screenshots []string `json:"screenshots"`
}

// Record is the canonical shape every source payload is normalized into.
// Set-valued fields are kept sorted and de-duplicated.
type Record struct {
	Title        string            `json:"title"`
	Platform     string            `json:"platform"`
	PlatformSlug string            `json:"platform_slug"`
	ReleaseDate  string            `json:"release_date"`
	Regions      []string          `json:"regions"`
	Genres       []string          `json:"genres"`
	ESRB         string            `json:"esrb"`
	PEGI         string            `json:"pegi"`
	Assets       Assets            `json:"assets"`
	ExternalIDs  map[string]string `json:"external_ids"`
	Source       []string          `json:"source"`
	SourceID     string            `json:"source_id"`
}

// Entry is a canonical catalog entry. Hash is always the content hash of
// Record and Version moves by exactly one per hash change.
type Entry struct {
	Record   Record    `json:"record"`
	Hash     string    `json:"hash"`
	Version  int       `json:"version"`
	LastSeen time.Time `json:"lastSeen"`
}

// PlatformKey returns the platform value used for identity: the display
// name, or the slug when no display name is known.
func (r Record) PlatformKey() string {
	if strings.TrimSpace(r.Platform) != "" {
		return r.Platform
	}
	return r.PlatformSlug
}

// canonical returns a copy with sets sorted and de-duplicated and nil
// collections replaced by empty ones, so equal content encodes identically.
func (r Record) canonical() Record {
	out := r
	out.Regions = stringSet(r.Regions)
	out.Genres = stringSet(r.Genres)
	out.Source = stringSet(r.Source)
	out.Assets = Assets{
		Cover:       r.Assets.Cover,
		Screenshots: stringSet(r.Assets.Screenshots),
	}
	ids := make(map[string]string, len(r.ExternalIDs))
	for k, v := range r.ExternalIDs {
		k = strings.TrimSpace(k)
		v = strings.TrimSpace(v)
		if k == "" || v == "" {
			continue
		}
		ids[k] = v
	}
	out.ExternalIDs = ids
	return out
}

func stringSet(values ...[]string) []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, list := range values {
		for _, v := range list {
			v = strings.TrimSpace(v)
			if v == "" {
				continue
			}
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
