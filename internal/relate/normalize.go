package relate

import (
	"path/filepath"
	"regexp"
	"strings"

	"loom/internal/textutil"
)

var (
	versionMarkerPattern = regexp.MustCompile(`(?i)[_\-. ](?:v\d+|rev\d+|final|draft|copy|old|new)(?:[_\-. ]|$)`)
	datePattern          = regexp.MustCompile(`(?:\d{4}-\d{2}-\d{2}|\d{8})`)
	parenthesesPattern   = regexp.MustCompile(`\([^)]*\)`)
	separatorPattern     = regexp.MustCompile(`[_\-. ]+`)
	codeTokenPattern     = regexp.MustCompile(`^[A-Z]{2,}\d{3,}$`)
	versionTokenPattern  = regexp.MustCompile(`(?i)^(?:v|rev)\d+$`)
)

// NormalizeStem reduces a file name to its base concept: the extension,
// version markers, dates, and parenthesized qualifiers are stripped so
// "report_v2 (copy).xlsx" and "report_final.xlsx" normalize identically.
func NormalizeStem(name string) string {
	stem := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	stem = parenthesesPattern.ReplaceAllString(stem, " ")
	stem = datePattern.ReplaceAllString(stem, " ")
	for {
		replaced := versionMarkerPattern.ReplaceAllString(stem, " ")
		if replaced == stem {
			break
		}
		stem = replaced
	}
	stem = separatorPattern.ReplaceAllString(stem, " ")
	return strings.TrimSpace(textutil.Fold(stem))
}

// StemTokens returns the normalized stem split into tokens.
func StemTokens(name string) []string {
	normalized := NormalizeStem(name)
	if normalized == "" {
		return nil
	}
	return strings.Fields(normalized)
}

// StructuredTokens extracts identifier-like tokens from the original,
// un-normalized name: project codes ("INV2024001"), version markers
// ("v2", "rev3"), and dates ("2024-01-15", "20240115"). Codes and
// versions are matched against separator-split parts so underscores
// around them do not hide the token; dates are matched on the raw name
// because their hyphens are themselves separators.
func StructuredTokens(name string) []string {
	base := filepath.Base(name)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	var tokens []string
	for _, part := range separatorPattern.Split(stem, -1) {
		if codeTokenPattern.MatchString(part) || versionTokenPattern.MatchString(part) {
			tokens = append(tokens, part)
		}
	}
	return append(tokens, datePattern.FindAllString(base, -1)...)
}

// tokenClass buckets a structured token for the filename boost. Tokens
// are folded lowercase by the time they are compared, so dates are the
// only class starting with a digit.
func tokenClass(token string) string {
	switch {
	case versionTokenPattern.MatchString(token):
		return "version"
	case token != "" && token[0] >= '0' && token[0] <= '9':
		return "date"
	default:
		return "code"
	}
}

// tokenClassCount counts the distinct structured classes in tokens.
func tokenClassCount(tokens []string) int {
	classes := make(map[string]struct{}, 3)
	for _, token := range tokens {
		classes[tokenClass(token)] = struct{}{}
	}
	return len(classes)
}
