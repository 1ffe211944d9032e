package catalog

// Reason names the resolution path that produced a canonical key.
type Reason string

const (
	ReasonDeterministic Reason = "deterministic"
	ReasonDecision      Reason = "decision"
	ReasonFuzzy         Reason = "fuzzy"
	ReasonNew           Reason = "new"
)

type Resolution struct {
	CanonicalKey     string
	DeterministicKey string
	Reason           Reason
	Score            float64
}

// Matcher resolves incoming records to canonical keys: deterministic key
// first, then a recorded merge decision, then fuzzy matching within the
// platform bucket, and finally a new entity.
type Matcher struct {
	Threshold float64
}

func NewMatcher(threshold float64) Matcher {
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultFuzzyThreshold
	}
	return Matcher{Threshold: threshold}
}

// Resolve never mutates c or decisions; callers record fuzzy decisions.
func (m Matcher) Resolve(rec Record, c *Catalog, decisions map[string]string) Resolution {
	dk := KeyFor(rec)
	if _, ok := c.Get(dk); ok {
		return Resolution{CanonicalKey: dk, DeterministicKey: dk, Reason: ReasonDeterministic, Score: 1}
	}

	if decided, ok := decisions[dk]; ok {
		if _, exists := c.Get(decided); exists {
			return Resolution{CanonicalKey: decided, DeterministicKey: dk, Reason: ReasonDecision}
		}
	}

	bestKey, bestScore := m.bestCandidate(rec, c)
	if bestKey != "" && bestScore >= m.Threshold {
		return Resolution{CanonicalKey: bestKey, DeterministicKey: dk, Reason: ReasonFuzzy, Score: bestScore}
	}

	return Resolution{CanonicalKey: dk, DeterministicKey: dk, Reason: ReasonNew, Score: bestScore}
}

func (m Matcher) bestCandidate(rec Record, c *Catalog) (string, float64) {
	var (
		bestKey   string
		bestScore float64
		best      Entry
	)
	for _, key := range c.Index().Candidates(rec.PlatformKey()) {
		candidate, ok := c.Get(key)
		if !ok {
			continue
		}
		score := Score(rec, candidate.Record)
		if score <= 0 {
			continue
		}
		if bestKey == "" || score > bestScore || (score == bestScore && preferCandidate(key, candidate, bestKey, best)) {
			bestKey, bestScore, best = key, score, candidate
		}
	}
	return bestKey, bestScore
}

// preferCandidate breaks score ties: higher version, then most recently
// seen, then the lexically smaller key.
func preferCandidate(key string, e Entry, bestKey string, best Entry) bool {
	if e.Version != best.Version {
		return e.Version > best.Version
	}
	if !e.LastSeen.Equal(best.LastSeen) {
		return e.LastSeen.After(best.LastSeen)
	}
	return key < bestKey
}
