package relate

import (
	"context"
	"reflect"
	"testing"
	"time"

	"loom/internal/records"
	"loom/internal/testsupport"
	"loom/internal/textutil"
)

func record(path, fileType string, meta records.Metadata) records.FileRecord {
	rec := records.New(path, fileType, 100)
	rec.Status = records.StatusCompleted
	rec.Metadata = meta
	return *rec
}

func TestContentScoreSymmetric(t *testing.T) {
	a := record("/d/a.xlsx", "excel", records.Metadata{
		Entities: []string{"Acme Corp", "Q4", "Revenue"},
		KeyTerms: []string{"revenue", "forecast"},
	})
	b := record("/d/b.pptx", "powerpoint", records.Metadata{
		Entities: []string{"Acme Corp", "Q4", "Forecast"},
		KeyTerms: []string{"revenue", "summary"},
	})

	forward := contentScore(newPairContext(&a, &b), 5)
	reverse := contentScore(newPairContext(&b, &a), 5)
	if forward.Score != reverse.Score {
		t.Errorf("content score not symmetric: %f vs %f", forward.Score, reverse.Score)
	}
}

func TestContentScoreJaccardScenario(t *testing.T) {
	// Shared entities {acme corp, q4} of 4 unique: Jaccard 0.5, and no
	// terms on either side, so the score is the entity share alone.
	a := record("/d/a.xlsx", "excel", records.Metadata{
		Entities: []string{"Acme Corp", "Q4", "Revenue"},
	})
	b := record("/d/b.xlsx", "excel", records.Metadata{
		Entities: []string{"Acme Corp", "Q4", "Forecast"},
	})

	ev := contentScore(newPairContext(&a, &b), 5)
	want := 0.6 * 0.5
	if diff := ev.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %f, want %f", ev.Score, want)
	}
	if !reflect.DeepEqual(ev.Shared, []string{"acme corp", "q4"}) {
		t.Errorf("shared = %v", ev.Shared)
	}
}

func TestFilenameVersionsScoreFull(t *testing.T) {
	a := record("/d/report_v1.xlsx", "excel", records.Metadata{})
	b := record("/d/report_v2.xlsx", "excel", records.Metadata{})

	ev := filenameScore(newPairContext(&a, &b), 5)
	if ev.Score != 1 {
		t.Errorf("score = %f, want 1", ev.Score)
	}
}

func TestFilenameScoreBoostsSharedDate(t *testing.T) {
	a := record("/d/budget_2024-01-15.xlsx", "excel", records.Metadata{})
	b := record("/d/forecast_2024-01-15.xlsx", "excel", records.Metadata{})

	pair := newPairContext(&a, &b)
	ev := filenameScore(pair, 5)
	want := textutil.Similarity(pair.sourceStem, pair.targetStem) + structuredBoost
	if diff := ev.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %f, want %f", ev.Score, want)
	}
	if !reflect.DeepEqual(ev.Shared, []string{"2024-01-15"}) {
		t.Errorf("shared = %v", ev.Shared)
	}
}

func TestStructuredTokenClasses(t *testing.T) {
	got := StructuredTokens("INV2024001_report_v2_2024-01-15.xlsx")
	want := []string{"INV2024001", "v2", "2024-01-15"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("tokens = %v, want %v", got, want)
	}
	if n := tokenClassCount([]string{"inv2024001", "v2", "2024-01-15"}); n != 3 {
		t.Errorf("classes = %d, want 3", n)
	}
}

func TestMetadataScoreBonuses(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	a := record("/d/a.docx", "word", records.Metadata{
		Author:     "Jane Smith",
		Title:      "Budget Overview",
		ModifiedAt: now,
	})
	b := record("/d/b.docx", "word", records.Metadata{
		Author:     "jane smith",
		Title:      "Budget Overview 2",
		ModifiedAt: now.Add(48 * time.Hour),
	})

	ev := metadataScore(newPairContext(&a, &b), 0.7, 7*24*time.Hour)
	// author 0.2 + title 0.3 + temporal 0.2 + same dir 0.1
	want := 0.8
	if diff := ev.Score - want; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("score = %f, want %f", ev.Score, want)
	}
}

func TestMetadataScoreCappedAtOne(t *testing.T) {
	ev := Evidence{Score: clamp01(1.4)}
	if ev.Score != 1 {
		t.Errorf("clamp = %f", ev.Score)
	}
}

func TestDetectEmitsTypedRelationship(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	now := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	sheet := record("/data/q4_analysis.xlsx", "excel", records.Metadata{
		Author:     "Jane Smith",
		Title:      "Q4 Analysis",
		ModifiedAt: now,
		Entities:   []string{"Acme Corp", "Q4", "Revenue", "Initech"},
		KeyTerms:   []string{"revenue", "forecast", "growth"},
	})
	deck := record("/data/q4_analysis_deck.pptx", "powerpoint", records.Metadata{
		Author:     "Jane Smith",
		Title:      "Q4 Analysis",
		ModifiedAt: now.Add(24 * time.Hour),
		Entities:   []string{"Acme Corp", "Q4", "Revenue", "Initech"},
		KeyTerms:   []string{"revenue", "forecast", "growth"},
	})

	result, err := NewDetector(cfg, nil).Detect(context.Background(),
		[]records.FileRecord{sheet, deck})
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(result.Relationships) != 1 {
		t.Fatalf("relationships = %d, want 1", len(result.Relationships))
	}

	rel := result.Relationships[0]
	if rel.Confidence < cfg.Relationships.Threshold || rel.Confidence > 1 {
		t.Errorf("confidence = %f", rel.Confidence)
	}
	// Pair evaluation orders records by ID, which puts the deck first
	// here, so the type table reads deck summarizes spreadsheet.
	if rel.Type != TypeSummarizes {
		t.Errorf("type = %s, want summarizes", rel.Type)
	}
	if rel.SourcePath != deck.Path || rel.TargetPath != sheet.Path {
		t.Errorf("direction = %s -> %s, want deck -> spreadsheet", rel.SourcePath, rel.TargetPath)
	}
	if len(rel.Evidence) != 3 {
		t.Errorf("evidence entries = %d, want 3", len(rel.Evidence))
	}
	if rel.Reasoning == "" {
		t.Error("reasoning empty")
	}
}

func TestDetectIdempotent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recs := []records.FileRecord{
		record("/data/report_v1.docx", "word", records.Metadata{
			Author: "Sam", Entities: []string{"Acme Corp", "Budget"},
			KeyTerms: []string{"budget", "quarterly"},
		}),
		record("/data/report_v2.docx", "word", records.Metadata{
			Author: "Sam", Entities: []string{"Acme Corp", "Budget"},
			KeyTerms: []string{"budget", "quarterly"},
		}),
		record("/data/unrelated.txt", "text", records.Metadata{}),
	}

	detector := NewDetector(cfg, nil)
	first, err := detector.Detect(context.Background(), recs)
	if err != nil {
		t.Fatalf("first detect: %v", err)
	}
	second, err := detector.Detect(context.Background(), recs)
	if err != nil {
		t.Fatalf("second detect: %v", err)
	}
	if !reflect.DeepEqual(first.Relationships, second.Relationships) {
		t.Errorf("runs differ:\n%v\n%v", first.Relationships, second.Relationships)
	}
}

func TestDetectVersionsClassifiedAsReferences(t *testing.T) {
	// Without content or metadata overlap only the filename strategy
	// contributes, so the threshold has to sit below its weight.
	cfg := testsupport.NewConfig(t, testsupport.WithThreshold(0.3))
	// Filename similarity dominates: identical stems, no content overlap.
	recs := []records.FileRecord{
		record("/data/spec_v1.docx", "word", records.Metadata{}),
		record("/data/spec_v2.docx", "word", records.Metadata{}),
	}

	result, err := NewDetector(cfg, nil).Detect(context.Background(), recs)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if len(result.Relationships) == 0 {
		t.Fatal("expected a relationship between versions")
	}
	if result.Relationships[0].Type != TypeReferences {
		t.Errorf("type = %s, want references", result.Relationships[0].Type)
	}
}

func TestDetectPrefilterSkipsUnrelatedPairs(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	far := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)
	near := time.Date(2026, 5, 1, 0, 0, 0, 0, time.UTC)
	recs := []records.FileRecord{
		record("/a/alpha.txt", "text", records.Metadata{
			Author: "A", Entities: []string{"Alpha"}, KeyTerms: []string{"alpha"},
			ModifiedAt: far,
		}),
		record("/b/omega.txt", "text", records.Metadata{
			Author: "B", Entities: []string{"Omega"}, KeyTerms: []string{"omega"},
			ModifiedAt: near,
		}),
	}

	result, err := NewDetector(cfg, nil).Detect(context.Background(), recs)
	if err != nil {
		t.Fatalf("detect: %v", err)
	}
	if result.Filtered != 1 {
		t.Errorf("filtered = %d, want 1", result.Filtered)
	}
	if len(result.Relationships) != 0 {
		t.Errorf("relationships = %v, want none", result.Relationships)
	}
}

func TestDetectInputOrderIndependent(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	recs := []records.FileRecord{
		record("/d/model_data.xlsx", "excel", records.Metadata{
			Author: "Kim", Title: "Pipeline Model",
			Entities: []string{"Acme Corp", "Pipeline"},
			KeyTerms: []string{"pipeline", "capacity"},
		}),
		record("/d/model_report.docx", "word", records.Metadata{
			Author: "Kim", Title: "Pipeline Model",
			Entities: []string{"Acme Corp", "Pipeline"},
			KeyTerms: []string{"pipeline", "capacity"},
		}),
	}
	reversed := []records.FileRecord{recs[1], recs[0]}

	detector := NewDetector(cfg, nil)
	forward, err := detector.Detect(context.Background(), recs)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	backward, err := detector.Detect(context.Background(), reversed)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if len(forward.Relationships) != 1 {
		t.Fatalf("relationships = %d, want 1", len(forward.Relationships))
	}
	if !reflect.DeepEqual(forward.Relationships, backward.Relationships) {
		t.Errorf("order changed output:\n%v\n%v", forward.Relationships, backward.Relationships)
	}
	// The type table fixes the direction: the spreadsheet documents the
	// report regardless of input order.
	if forward.Relationships[0].Type != TypeDocuments {
		t.Errorf("type = %s, want documents", forward.Relationships[0].Type)
	}
}

func TestNormalizeStem(t *testing.T) {
	cases := map[string]string{
		"report_v2 (copy).xlsx":     "report",
		"report_final.xlsx":         "report",
		"Budget_2024-01-15.xlsx":    "budget",
		"Q4_Analysis_rev3.docx":     "q4 analysis",
		"INV2024001_invoice.pdf":    "inv2024001 invoice",
		"plain.txt":                 "plain",
		"proposal_draft.docx":       "proposal",
	}
	for name, want := range cases {
		if got := NormalizeStem(name); got != want {
			t.Errorf("NormalizeStem(%q) = %q, want %q", name, got, want)
		}
	}
}
