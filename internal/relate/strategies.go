package relate

import (
	"fmt"
	"math"
	"time"

	"loom/internal/records"
	"loom/internal/textutil"
)

const (
	// Content overlap weighs shared entities above shared vocabulary.
	entityWeight = 0.6
	termWeight   = 0.4

	sameAuthorBonus   = 0.2
	titleBonus        = 0.3
	temporalBonus     = 0.2
	sameDirBonus      = 0.1
	structuredBoost   = 0.15
	strongEntityCount = 5
)

// StrategyContent scores shared entities and key terms.
const StrategyContent = "content"

// StrategyFilename scores normalized filename stem similarity.
const StrategyFilename = "filename"

// StrategyMetadata scores authorship, title, temporal, and location signals.
const StrategyMetadata = "metadata"

// StrategyOrder fixes the evaluation and tie-break order.
var StrategyOrder = []string{StrategyContent, StrategyFilename, StrategyMetadata}

// pairContext caches per-pair derived values shared across strategies.
type pairContext struct {
	source, target *records.FileRecord

	sourceEntities map[string]struct{}
	targetEntities map[string]struct{}
	sourceTerms    map[string]struct{}
	targetTerms    map[string]struct{}

	sourceStem string
	targetStem string
}

func newPairContext(source, target *records.FileRecord) *pairContext {
	return &pairContext{
		source:         source,
		target:         target,
		sourceEntities: textutil.TokenSet(source.Metadata.Entities),
		targetEntities: textutil.TokenSet(target.Metadata.Entities),
		sourceTerms:    textutil.TokenSet(source.Metadata.KeyTerms),
		targetTerms:    textutil.TokenSet(target.Metadata.KeyTerms),
		sourceStem:     NormalizeStem(source.Name),
		targetStem:     NormalizeStem(target.Name),
	}
}

func (p *pairContext) sharedEntityCount() int {
	count := 0
	for entity := range p.sourceEntities {
		if _, ok := p.targetEntities[entity]; ok {
			count++
		}
	}
	return count
}

// contentScore combines entity and key-term Jaccard similarity. Scores
// are symmetric: swapping source and target yields the same value.
func contentScore(p *pairContext, evidenceSample int) Evidence {
	entityJaccard := textutil.Jaccard(p.sourceEntities, p.targetEntities)
	termJaccard := textutil.Jaccard(p.sourceTerms, p.targetTerms)
	score := entityWeight*entityJaccard + termWeight*termJaccard

	shared := textutil.Shared(p.sourceEntities, p.targetEntities, evidenceSample)
	if len(shared) < evidenceSample {
		shared = append(shared, textutil.Shared(p.sourceTerms, p.targetTerms, evidenceSample-len(shared))...)
	}
	return Evidence{
		Strategy: StrategyContent,
		Score:    clamp01(score),
		Detail: fmt.Sprintf("entity overlap %.2f, term overlap %.2f",
			entityJaccard, termJaccard),
		Shared: shared,
	}
}

// filenameScore measures edit-distance similarity of normalized stems,
// boosted once per structured token class (project code, date, version
// marker) the two names share.
func filenameScore(p *pairContext, evidenceSample int) Evidence {
	score := textutil.Similarity(p.sourceStem, p.targetStem)
	if p.sourceStem == "" && p.targetStem == "" {
		score = 0
	}

	sourceIDs := textutil.TokenSet(StructuredTokens(p.source.Name))
	targetIDs := textutil.TokenSet(StructuredTokens(p.target.Name))
	sharedIDs := textutil.Shared(sourceIDs, targetIDs, 0)
	// One boost per shared token class (code, date, version).
	score += structuredBoost * float64(tokenClassCount(sharedIDs))
	if evidenceSample > 0 && len(sharedIDs) > evidenceSample {
		sharedIDs = sharedIDs[:evidenceSample]
	}

	return Evidence{
		Strategy: StrategyFilename,
		Score:    clamp01(score),
		Detail: fmt.Sprintf("stem similarity %q vs %q = %.2f",
			p.sourceStem, p.targetStem, textutil.Similarity(p.sourceStem, p.targetStem)),
		Shared: sharedIDs,
	}
}

// metadataScore adds fixed bonuses for correlated metadata signals,
// capped at 1.0.
func metadataScore(p *pairContext, titleThreshold float64, temporalWindow time.Duration) Evidence {
	score := 0.0
	var signals []string

	srcMeta, dstMeta := p.source.Metadata, p.target.Metadata
	if srcMeta.Author != "" && textutil.Fold(srcMeta.Author) == textutil.Fold(dstMeta.Author) {
		score += sameAuthorBonus
		signals = append(signals, "same author")
	}
	if srcMeta.Title != "" && dstMeta.Title != "" {
		if textutil.Similarity(textutil.Fold(srcMeta.Title), textutil.Fold(dstMeta.Title)) > titleThreshold {
			score += titleBonus
			signals = append(signals, "similar title")
		}
	}
	if !srcMeta.ModifiedAt.IsZero() && !dstMeta.ModifiedAt.IsZero() {
		gap := srcMeta.ModifiedAt.Sub(dstMeta.ModifiedAt)
		if gap < 0 {
			gap = -gap
		}
		if gap <= temporalWindow {
			score += temporalBonus
			signals = append(signals, "modified within window")
		}
	}
	if p.source.Directory() == p.target.Directory() {
		score += sameDirBonus
		signals = append(signals, "same directory")
	}

	detail := "no metadata signals"
	if len(signals) > 0 {
		detail = fmt.Sprintf("%d signals matched", len(signals))
	}
	return Evidence{
		Strategy: StrategyMetadata,
		Score:    clamp01(score),
		Detail:   detail,
		Shared:   signals,
	}
}

func clamp01(value float64) float64 {
	return math.Max(0, math.Min(1, value))
}
