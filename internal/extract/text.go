package extract

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"loom/internal/textutil"
)

const (
	maxEntities = 30
	maxKeyTerms = 20
	minTermLen  = 4
)

var (
	// Capitalized word runs, e.g. "Acme Corp" or "Jane Smith".
	properNounPattern = regexp.MustCompile(`\b[A-Z][a-z]+(?:\s+[A-Z][a-z]+)*\b`)
	// Structured identifiers, e.g. "INV2024001" or "PROJ-" style codes.
	codePattern   = regexp.MustCompile(`\b[A-Z]{2,}\d{3,}\b`)
	authorPattern = regexp.MustCompile(`(?im)^\s*(?:author|by)\s*[:\-]\s*(.+?)\s*$`)
	headingPrefix = regexp.MustCompile(`^#{1,6}\s+`)
)

var stopwords = map[string]struct{}{}

func init() {
	for _, word := range []string{
		"this", "that", "these", "those", "with", "from", "have", "has",
		"been", "were", "will", "would", "could", "should", "about",
		"which", "their", "there", "other", "into", "more", "some",
		"such", "only", "over", "also", "after", "before", "between",
		"than", "then", "them", "they", "when", "where", "what", "your",
		"each", "does", "very", "just", "like", "make", "made", "being",
	} {
		stopwords[word] = struct{}{}
	}
}

// extractEntities finds proper-noun phrases and structured identifiers,
// keeping the most frequent ones in a deterministic order.
func extractEntities(text string) []string {
	counts := make(map[string]int)
	for _, match := range properNounPattern.FindAllString(text, -1) {
		if len(match) > 3 {
			counts[match]++
		}
	}
	for _, match := range codePattern.FindAllString(text, -1) {
		counts[match]++
	}
	return topByCount(counts, maxEntities)
}

// extractKeyTerms ranks lowercase terms by frequency, dropping stopwords
// and short tokens.
func extractKeyTerms(text string) []string {
	counts := make(map[string]int)
	for _, token := range textutil.Tokenize(text) {
		if len(token) < minTermLen {
			continue
		}
		if _, stop := stopwords[token]; stop {
			continue
		}
		counts[token]++
	}
	return topByCount(counts, maxKeyTerms)
}

func topByCount(counts map[string]int, limit int) []string {
	keys := make([]string, 0, len(counts))
	for key := range counts {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}

// deriveTitle prefers an explicit markdown heading, then a short first
// line, then a humanized filename stem.
func deriveTitle(text, stem string) string {
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if headingPrefix.MatchString(trimmed) {
			return strings.TrimSpace(headingPrefix.ReplaceAllString(trimmed, ""))
		}
		if utf8.RuneCountInString(trimmed) <= 80 {
			return trimmed
		}
		break
	}
	return humanizeStem(stem)
}

func humanizeStem(stem string) string {
	replaced := strings.NewReplacer("_", " ", "-", " ").Replace(stem)
	return strings.Join(strings.Fields(replaced), " ")
}

func deriveAuthor(text string) string {
	match := authorPattern.FindStringSubmatch(text)
	if match == nil {
		return ""
	}
	return strings.TrimSpace(match[1])
}

// looksTextual reports whether the sampled bytes are plausibly text.
// Office container formats (zip based) fail this and fall back to
// filename-derived metadata.
func looksTextual(sample []byte) bool {
	if len(sample) == 0 {
		return true
	}
	if !utf8.Valid(sample) {
		return false
	}
	control := 0
	for _, b := range sample {
		if b < 0x20 && b != '\n' && b != '\r' && b != '\t' {
			control++
		}
	}
	return control*100 < len(sample)
}
