package catalog

import "math"

const (
	titleWeight    = 0.7
	platformWeight = 0.3

	// DefaultFuzzyThreshold is the minimum combined score for a fuzzy hit.
	DefaultFuzzyThreshold = 0.82
)

// bigramSet returns the overlapping two-rune windows of the normalized text.
// Inputs shorter than two runes yield an empty set.
func bigramSet(normalized string) map[string]struct{} {
	runes := []rune(normalized)
	if len(runes) < 2 {
		return nil
	}
	set := make(map[string]struct{}, len(runes)-1)
	for i := 0; i < len(runes)-1; i++ {
		set[string(runes[i:i+2])] = struct{}{}
	}
	return set
}

func jaccard(left, right map[string]struct{}) float64 {
	if len(left) == 0 || len(right) == 0 {
		return 0
	}
	intersection := 0
	for gram := range left {
		if _, ok := right[gram]; ok {
			intersection++
		}
	}
	union := len(left) + len(right) - intersection
	if union <= 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Similarity is the Jaccard index of the bigram sets of a and b after
// NormalizeText.
func Similarity(a, b string) float64 {
	return jaccard(bigramSet(NormalizeText(a)), bigramSet(NormalizeText(b)))
}

// PlatformSimilarity compares platforms after alias resolution.
func PlatformSimilarity(a, b string) float64 {
	return jaccard(bigramSet(NormalizePlatform(a)), bigramSet(NormalizePlatform(b)))
}

// Score combines title and platform similarity, rounded to three decimals so
// the threshold comparison is reproducible.
func Score(incoming, candidate Record) float64 {
	raw := titleWeight*Similarity(incoming.Title, candidate.Title) +
		platformWeight*PlatformSimilarity(incoming.PlatformKey(), candidate.PlatformKey())
	return math.Round(raw*1000) / 1000
}
