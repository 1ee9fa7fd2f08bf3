package relate

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/records"
)

// Result holds the outcome of one detection run.
type Result struct {
	Relationships []Relationship
	// Pairs is the number of candidate pairs evaluated.
	Pairs int
	// Filtered is the number of pairs the pre-filter skipped without
	// full strategy evaluation.
	Filtered int
}

// CountsByType groups the emitted relationships by type.
func (r *Result) CountsByType() map[Type]int {
	counts := make(map[Type]int)
	for _, rel := range r.Relationships {
		counts[rel.Type]++
	}
	return counts
}

// AverageConfidence returns the mean confidence of emitted relationships.
func (r *Result) AverageConfidence() float64 {
	if len(r.Relationships) == 0 {
		return 0
	}
	total := 0.0
	for _, rel := range r.Relationships {
		total += rel.Confidence
	}
	return total / float64(len(r.Relationships))
}

// Detector evaluates every pair of completed records with all strategies
// and fuses the scores into typed relationships.
type Detector struct {
	cfg    *config.Config
	logger *slog.Logger

	// Fusion weights normalized to sum to 1, in StrategyOrder.
	weights map[string]float64
}

// NewDetector creates a detector using the relationship settings in cfg.
func NewDetector(cfg *config.Config, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = logging.NewNop()
	}
	weights := map[string]float64{
		StrategyContent:  cfg.Relationships.ContentWeight,
		StrategyFilename: cfg.Relationships.FilenameWeight,
		StrategyMetadata: cfg.Relationships.MetadataWeight,
	}
	total := 0.0
	for _, weight := range weights {
		total += weight
	}
	if total > 0 && total != 1 {
		for name := range weights {
			weights[name] /= total
		}
	}
	return &Detector{
		cfg:     cfg,
		logger:  logging.NewComponentLogger(logger, "relate"),
		weights: weights,
	}
}

// Weights returns the normalized fusion weights keyed by strategy name.
func (d *Detector) Weights() map[string]float64 {
	out := make(map[string]float64, len(d.weights))
	for name, weight := range d.weights {
		out[name] = weight
	}
	return out
}

// Detect evaluates all ordered pairs of the given completed records.
// Input order does not matter: records are sorted by ID first, so the
// same set always produces the same edge list.
func (d *Detector) Detect(ctx context.Context, completed []records.FileRecord) (*Result, error) {
	sorted := make([]*records.FileRecord, 0, len(completed))
	for i := range completed {
		sorted = append(sorted, &completed[i])
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	totalPairs := len(sorted) * (len(sorted) - 1) / 2
	d.logger.Info("detecting relationships",
		"files", len(sorted),
		"pairs", totalPairs)

	// Each source index accumulates its own slice, so workers never
	// share a relationship list and the merged output stays ordered.
	perSource := make([][]Relationship, len(sorted))
	filteredPerSource := make([]int, len(sorted))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(d.cfg.Relationships.PairWorkers)
	for i := range sorted {
		if len(sorted)-i < 2 {
			break
		}
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}
			source := sorted[i]
			for _, target := range sorted[i+1:] {
				if d.cfg.Relationships.Prefilter && !candidatePair(source, target, d.temporalWindow()) {
					filteredPerSource[i]++
					continue
				}
				if rel, ok := d.evaluate(source, target); ok {
					perSource[i] = append(perSource[i], rel)
				}
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, fmt.Errorf("evaluate pairs: %w", err)
	}

	result := &Result{Pairs: totalPairs}
	for i, rels := range perSource {
		result.Relationships = append(result.Relationships, rels...)
		result.Filtered += filteredPerSource[i]
	}

	d.logger.Info("detection complete",
		"relationships", len(result.Relationships),
		"filtered_pairs", result.Filtered,
		"threshold", d.cfg.Relationships.Threshold)
	return result, nil
}

// evaluate runs every strategy on one pair and fuses the scores. A
// panic in a strategy scores the pair zero instead of killing the run.
func (d *Detector) evaluate(source, target *records.FileRecord) (rel Relationship, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Warn("pair evaluation panicked",
				logging.FieldFileID, source.ID,
				"target_id", target.ID,
				"panic", fmt.Sprint(r))
			rel, ok = Relationship{}, false
		}
	}()

	pair := newPairContext(source, target)
	sample := d.cfg.Relationships.EvidenceSample

	evidence := []Evidence{
		contentScore(pair, sample),
		filenameScore(pair, sample),
		metadataScore(pair, d.cfg.Relationships.TitleThreshold, d.temporalWindow()),
	}

	confidence := 0.0
	for _, ev := range evidence {
		confidence += d.weights[ev.Strategy] * ev.Score
	}
	confidence = clamp01(confidence)
	if confidence < d.cfg.Relationships.Threshold {
		return Relationship{}, false
	}

	dominant := d.dominantStrategy(evidence)
	relType, swap := d.classify(pair, dominant)
	if swap {
		// Directional types read source-to-target; the type table decided
		// the pair fits better in the other direction.
		source, target = target, source
	}

	return Relationship{
		SourceID:   source.ID,
		TargetID:   target.ID,
		SourcePath: source.Path,
		TargetPath: target.Path,
		Type:       relType,
		Confidence: confidence,
		Evidence:   evidence,
		Reasoning:  d.reason(source, target, relType, dominant, confidence),
	}, true
}

// dominantStrategy picks the strategy with the largest weighted
// contribution. Ties go to the higher configured weight, then to the
// fixed strategy order.
func (d *Detector) dominantStrategy(evidence []Evidence) Evidence {
	byName := make(map[string]Evidence, len(evidence))
	for _, ev := range evidence {
		byName[ev.Strategy] = ev
	}

	best := evidence[0]
	for _, name := range StrategyOrder {
		ev, ok := byName[name]
		if !ok {
			continue
		}
		contribution := d.weights[ev.Strategy] * ev.Score
		bestContribution := d.weights[best.Strategy] * best.Score
		switch {
		case contribution > bestContribution:
			best = ev
		case contribution == bestContribution && d.weights[ev.Strategy] > d.weights[best.Strategy]:
			best = ev
		}
	}
	return best
}

// classify assigns the relationship type by a fixed deterministic lookup
// keyed on the dominant strategy's signals. It is a heuristic table, not
// a learned classification. The second return reports that the pair
// matched the table in the reverse direction.
func (d *Detector) classify(pair *pairContext, dominant Evidence) (Type, bool) {
	switch dominant.Strategy {
	case StrategyContent:
		return classifyByContent(pair)
	case StrategyFilename:
		return classifyByFilename(pair)
	default:
		return TypeRelatedTo, false
	}
}

// typePairTable maps directional file-type pairs to relationship types:
// a spreadsheet informs the deck built from it, a deck summarizes the
// spreadsheet behind it, prose documents the data it describes.
var typePairTable = map[[2]string]Type{
	{"excel", "powerpoint"}: TypeInforms,
	{"word", "excel"}:       TypeInforms,
	{"powerpoint", "word"}:  TypeDocuments,
	{"excel", "word"}:       TypeDocuments,
	{"powerpoint", "excel"}: TypeSummarizes,
}

// classifyByContent consults the file-type pair table in both directions,
// falling back to shared-entity strength.
func classifyByContent(pair *pairContext) (Type, bool) {
	if relType, ok := typePairTable[[2]string{pair.source.Type, pair.target.Type}]; ok {
		return relType, false
	}
	if relType, ok := typePairTable[[2]string{pair.target.Type, pair.source.Type}]; ok {
		return relType, true
	}
	if pair.sharedEntityCount() >= strongEntityCount {
		return TypeInforms, false
	}
	return TypeRelatedTo, false
}

// classifyByFilename recognizes versions of the same document and
// keyword-signalled summary/data pairs.
func classifyByFilename(pair *pairContext) (Type, bool) {
	if pair.sourceStem != "" && pair.sourceStem == pair.targetStem &&
		pair.source.Name != pair.target.Name {
		return TypeReferences, false
	}

	sourceName := strings.ToLower(pair.source.Name)
	targetName := strings.ToLower(pair.target.Name)
	if matched := keywordType(sourceName, targetName); matched != TypeRelatedTo {
		return matched, false
	}
	if matched := keywordType(targetName, sourceName); matched != TypeRelatedTo {
		return matched, true
	}
	return TypeRelatedTo, false
}

func keywordType(sourceName, targetName string) Type {
	if containsAny(sourceName, "presentation", "deck", "slides") &&
		containsAny(targetName, "data", "model", "analysis", "report") {
		return TypeSummarizes
	}
	if containsAny(sourceName, "model", "analysis", "data") &&
		containsAny(targetName, "presentation", "deck", "report") {
		return TypeInforms
	}
	return TypeRelatedTo
}

func (d *Detector) reason(source, target *records.FileRecord, relType Type, dominant Evidence, confidence float64) string {
	return fmt.Sprintf("%s %s %s (%.2f confidence, led by %s: %s)",
		source.Name, relType.Describe(), target.Name, confidence, dominant.Strategy, dominant.Detail)
}

func (d *Detector) temporalWindow() time.Duration {
	return time.Duration(d.cfg.Relationships.TemporalWindowDays) * 24 * time.Hour
}

// candidatePair cheaply rejects pairs that cannot reach the threshold:
// no overlapping stem tokens, entities, or key terms, and none of the
// metadata bonuses available.
func candidatePair(source, target *records.FileRecord, temporalWindow time.Duration) bool {
	if overlaps(StemTokens(source.Name), StemTokens(target.Name)) {
		return true
	}
	if overlaps(StructuredTokens(source.Name), StructuredTokens(target.Name)) {
		return true
	}
	if overlaps(source.Metadata.Entities, target.Metadata.Entities) {
		return true
	}
	if overlaps(source.Metadata.KeyTerms, target.Metadata.KeyTerms) {
		return true
	}
	if source.Metadata.Author != "" && source.Metadata.Author == target.Metadata.Author {
		return true
	}
	if source.Directory() == target.Directory() {
		return true
	}
	if !source.Metadata.ModifiedAt.IsZero() && !target.Metadata.ModifiedAt.IsZero() {
		gap := source.Metadata.ModifiedAt.Sub(target.Metadata.ModifiedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= temporalWindow {
			return true
		}
	}
	return false
}

func overlaps(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, value := range a {
		set[strings.ToLower(value)] = struct{}{}
	}
	for _, value := range b {
		if _, ok := set[strings.ToLower(value)]; ok {
			return true
		}
	}
	return false
}

func containsAny(value string, keywords ...string) bool {
	for _, keyword := range keywords {
		if strings.Contains(value, keyword) {
			return true
		}
	}
	return false
}
