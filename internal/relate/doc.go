// Package relate detects cross-file relationships. Three strategies
// score each candidate pair independently (content overlap, filename
// similarity, metadata correlation) and a weighted fusion step combines
// them into typed, evidence-backed relationships.
package relate
