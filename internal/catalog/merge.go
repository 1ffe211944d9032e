package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strings"
	"time"
)

// Outcome classifies what a versioning step did to an entry.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeChanged   Outcome = "changed"
	OutcomeUnchanged Outcome = "unchanged"
)

// Merge folds an incoming observation into an existing record:
//
//   - regions, genres, screenshots and source are unioned
//   - cover, esrb, pegi and release date prefer the incoming value when set
//   - external ids are shallow-merged, incoming wins on collision
//   - title, platform, slug and source id keep the existing value unless empty
func Merge(base, incoming Record) Record {
	base = base.canonical()
	incoming = incoming.canonical()

	out := Record{
		Title:        preferExisting(base.Title, incoming.Title),
		Platform:     preferExisting(base.Platform, incoming.Platform),
		PlatformSlug: preferExisting(base.PlatformSlug, incoming.PlatformSlug),
		ReleaseDate:  preferIncoming(base.ReleaseDate, incoming.ReleaseDate),
		Regions:      stringSet(base.Regions, incoming.Regions),
		Genres:       stringSet(base.Genres, incoming.Genres),
		ESRB:         preferIncoming(base.ESRB, incoming.ESRB),
		PEGI:         preferIncoming(base.PEGI, incoming.PEGI),
		Assets: Assets{
			Cover:       preferIncoming(base.Assets.Cover, incoming.Assets.Cover),
			Screenshots: stringSet(base.Assets.Screenshots, incoming.Assets.Screenshots),
		},
		ExternalIDs: make(map[string]string, len(base.ExternalIDs)+len(incoming.ExternalIDs)),
		Source:      stringSet(base.Source, incoming.Source),
		SourceID:    preferExisting(base.SourceID, incoming.SourceID),
	}
	for k, v := range base.ExternalIDs {
		out.ExternalIDs[k] = v
	}
	for k, v := range incoming.ExternalIDs {
		out.ExternalIDs[k] = v
	}
	return out
}

func preferIncoming(existing, incoming string) string {
	if strings.TrimSpace(incoming) != "" {
		return incoming
	}
	return existing
}

func preferExisting(existing, incoming string) string {
	if strings.TrimSpace(existing) != "" {
		return existing
	}
	return incoming
}

// Hash is the sha256 of the canonical JSON encoding of rec. Struct fields
// encode in declaration order, map keys sorted, sets sorted.
func Hash(rec Record) string {
	payload, err := json.Marshal(rec.canonical())
	if err != nil {
		// Record holds only strings, slices and string maps.
		panic("catalog: encode record: " + err.Error())
	}
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}

// Version stores next on top of existing (nil for a new entity). The version
// moves by one only when the content hash changes; an unchanged record
// returns the existing entry untouched.
func Version(existing *Entry, next Record, now time.Time) (Entry, Outcome) {
	next = next.canonical()
	hash := Hash(next)
	if existing == nil {
		return Entry{Record: next, Hash: hash, Version: 1, LastSeen: now}, OutcomeCreated
	}
	if hash == existing.Hash {
		return *existing, OutcomeUnchanged
	}
	return Entry{
		Record:   next,
		Hash:     hash,
		Version:  existing.Version + 1,
		LastSeen: now,
	}, OutcomeChanged
}
