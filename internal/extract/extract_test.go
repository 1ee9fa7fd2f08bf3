package extract

import (
	"context"
	"encoding/json"
	"os"
	"reflect"
	"testing"

	"loom/internal/records"
	"loom/internal/testsupport"
)

func TestProcessTextFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "q4_report.md", `# Q4 Revenue Report

Author: Jane Smith

Acme Corp revenue grew this quarter. The forecast from Acme Corp
references invoice INV2024001 and projects stronger revenue.
`)

	rec := records.New(path, "markdown", 0)
	meta, outputPath, err := New(cfg, nil).Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("process: %v", err)
	}

	if meta.Title != "Q4 Revenue Report" {
		t.Errorf("title = %q", meta.Title)
	}
	if meta.Author != "Jane Smith" {
		t.Errorf("author = %q", meta.Author)
	}
	if !containsValue(meta.Entities, "Acme Corp") {
		t.Errorf("entities = %v, want Acme Corp", meta.Entities)
	}
	if !containsValue(meta.Entities, "INV2024001") {
		t.Errorf("entities = %v, want INV2024001", meta.Entities)
	}
	if !containsValue(meta.KeyTerms, "revenue") {
		t.Errorf("key terms = %v, want revenue", meta.KeyTerms)
	}
	if meta.ContentHash == "" {
		t.Error("content hash empty")
	}
	if meta.Structure["word_count"] == 0 {
		t.Error("word count missing")
	}

	data, err := os.ReadFile(outputPath)
	if err != nil {
		t.Fatalf("read artifact: %v", err)
	}
	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		t.Fatalf("decode artifact: %v", err)
	}
	if artifact.FileID != rec.ID || artifact.Metadata.Title != meta.Title {
		t.Errorf("artifact = %+v", artifact)
	}
}

func TestProcessBinaryFileFallsBackToFilename(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "budget_forecast.xlsx",
		"PK\x03\x04\x00\x00\xff\xfe\x01\x02binary payload")

	rec := records.New(path, "excel", 0)
	meta, _, err := New(cfg, nil).Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if meta.Title != "budget forecast" {
		t.Errorf("title = %q", meta.Title)
	}
	if !containsValue(meta.KeyTerms, "budget") || !containsValue(meta.KeyTerms, "forecast") {
		t.Errorf("key terms = %v", meta.KeyTerms)
	}
}

func TestProcessDeterministic(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	dir := t.TempDir()
	path := testsupport.WriteFile(t, dir, "notes.txt",
		"Acme Corp and Initech discussed revenue, forecast, revenue and budget planning.")
	rec := records.New(path, "text", 0)

	first, _, err := New(cfg, nil).Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("first process: %v", err)
	}
	second, _, err := New(cfg, nil).Process(context.Background(), rec)
	if err != nil {
		t.Fatalf("second process: %v", err)
	}
	if !reflect.DeepEqual(first.Entities, second.Entities) {
		t.Errorf("entities differ: %v vs %v", first.Entities, second.Entities)
	}
	if !reflect.DeepEqual(first.KeyTerms, second.KeyTerms) {
		t.Errorf("key terms differ: %v vs %v", first.KeyTerms, second.KeyTerms)
	}
}

func TestProcessMissingFile(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	rec := records.New(t.TempDir()+"/gone.txt", "text", 0)
	if _, _, err := New(cfg, nil).Process(context.Background(), rec); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExtractKeyTermsFiltersStopwordsAndShortTokens(t *testing.T) {
	terms := extractKeyTerms("this would have been about revenue and tax tax tax")
	if containsValue(terms, "this") || containsValue(terms, "would") {
		t.Errorf("stopwords leaked: %v", terms)
	}
	if containsValue(terms, "tax") {
		t.Errorf("short token leaked: %v", terms)
	}
	if !containsValue(terms, "revenue") {
		t.Errorf("terms = %v, want revenue", terms)
	}
}

func containsValue(values []string, want string) bool {
	for _, value := range values {
		if value == want {
			return true
		}
	}
	return false
}
