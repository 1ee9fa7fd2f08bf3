package textutil

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// tokenSplitPattern matches non-alphanumeric character sequences for tokenization.
var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// foldTransformer decomposes accented characters and strips the combining marks,
// so "Résumé" tokenizes the same as "Resume".
var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Fold lowercases text and strips diacritics.
func Fold(text string) string {
	folded, _, err := transform.String(foldTransformer, text)
	if err != nil {
		folded = text
	}
	return strings.ToLower(folded)
}

// Tokenize splits text into lowercase folded tokens, filtering short tokens.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(Fold(text), -1)
	terms := make([]string, 0, len(raw))
	for _, token := range raw {
		token = strings.TrimSpace(token)
		if len(token) < 3 {
			continue
		}
		terms = append(terms, token)
	}
	return terms
}

// TokenSet converts values into a folded set for overlap comparison.
// Empty values are dropped.
func TokenSet(values []string) map[string]struct{} {
	set := make(map[string]struct{}, len(values))
	for _, value := range values {
		folded := strings.TrimSpace(Fold(value))
		if folded == "" {
			continue
		}
		set[folded] = struct{}{}
	}
	return set
}
