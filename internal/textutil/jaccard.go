package textutil

import "sort"

// Jaccard computes |A ∩ B| / |A ∪ B| over two string sets.
// Returns 0 when both sets are empty.
func Jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	intersection := 0
	for value := range a {
		if _, ok := b[value]; ok {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Shared returns the sorted intersection of two string sets, truncated to
// limit entries. A limit <= 0 returns the full intersection.
func Shared(a, b map[string]struct{}, limit int) []string {
	shared := make([]string, 0, minLen(len(a), len(b)))
	for value := range a {
		if _, ok := b[value]; ok {
			shared = append(shared, value)
		}
	}
	sort.Strings(shared)
	if limit > 0 && len(shared) > limit {
		shared = shared[:limit]
	}
	return shared
}

func minLen(a, b int) int {
	if a < b {
		return a
	}
	return b
}
