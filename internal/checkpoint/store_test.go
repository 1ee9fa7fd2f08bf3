package checkpoint_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"loom/internal/checkpoint"
	"loom/internal/records"
	"loom/internal/testsupport"
)

func TestRecordAndLoadRoundTrip(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batchID, resumed, err := store.ActiveBatch(ctx, "/data/reports")
	if err != nil {
		t.Fatalf("active batch: %v", err)
	}
	if resumed {
		t.Fatal("expected a fresh batch, got resumed")
	}

	rec := records.New("/data/reports/q4_report.xlsx", "excel", 2048)
	rec.Status = records.StatusCompleted
	rec.OutputPath = "/out/q4_report.json"
	rec.Metadata = records.Metadata{
		Author:     "Jane Smith",
		Title:      "Q4 Report",
		Entities:   []string{"Acme Corp", "Q4"},
		KeyTerms:   []string{"revenue", "forecast"},
		ModifiedAt: time.Date(2026, 3, 14, 10, 0, 0, 0, time.UTC),
	}
	if err := store.Record(ctx, batchID, *rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	entries, err := store.Load(ctx, batchID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	entry, ok := entries[rec.ID]
	if !ok {
		t.Fatalf("entry %s missing from checkpoint", rec.ID)
	}
	if entry.Status != records.StatusCompleted {
		t.Errorf("status = %s, want completed", entry.Status)
	}
	if entry.OutputPath != "/out/q4_report.json" {
		t.Errorf("output path = %q", entry.OutputPath)
	}
	if entry.Metadata.Author != "Jane Smith" {
		t.Errorf("author = %q", entry.Metadata.Author)
	}
	if len(entry.Metadata.Entities) != 2 || entry.Metadata.Entities[0] != "Acme Corp" {
		t.Errorf("entities = %v", entry.Metadata.Entities)
	}

	// Re-opening the same root resumes the same batch.
	again, resumed, err := store.ActiveBatch(ctx, "/data/reports")
	if err != nil {
		t.Fatalf("active batch again: %v", err)
	}
	if !resumed || again != batchID {
		t.Errorf("resume = (%s, %v), want (%s, true)", again, resumed, batchID)
	}
}

func TestRecordIsIdempotentUpsert(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batchID, _, err := store.ActiveBatch(ctx, "/data/docs")
	if err != nil {
		t.Fatalf("active batch: %v", err)
	}

	rec := records.New("/data/docs/spec_v1.docx", "word", 512)
	rec.Status = records.StatusFailed
	rec.ErrorMessage = "extraction timed out"
	for i := 0; i < 3; i++ {
		if err := store.Record(ctx, batchID, *rec); err != nil {
			t.Fatalf("record attempt %d: %v", i, err)
		}
	}

	rec.Status = records.StatusCompleted
	rec.ErrorMessage = ""
	rec.OutputPath = "/out/spec_v1.json"
	if err := store.Record(ctx, batchID, *rec); err != nil {
		t.Fatalf("record update: %v", err)
	}

	entries, err := store.Load(ctx, batchID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	entry := entries[rec.ID]
	if entry.Status != records.StatusCompleted {
		t.Errorf("status = %s, want completed", entry.Status)
	}
	if entry.ErrorMessage != "" {
		t.Errorf("error message = %q, want empty", entry.ErrorMessage)
	}
}

func TestRetryFailedResetsOnlyFailures(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batchID, _, err := store.ActiveBatch(ctx, "/data/mixed")
	if err != nil {
		t.Fatalf("active batch: %v", err)
	}

	completed := records.New("/data/mixed/a.xlsx", "excel", 10)
	completed.Status = records.StatusCompleted
	failed := records.New("/data/mixed/b.docx", "word", 10)
	failed.Status = records.StatusFailed
	failed.ErrorMessage = "parse error"
	for _, rec := range []*records.FileRecord{completed, failed} {
		if err := store.Record(ctx, batchID, *rec); err != nil {
			t.Fatalf("record %s: %v", rec.Path, err)
		}
	}

	reset, err := store.RetryFailed(ctx, batchID)
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if reset != 1 {
		t.Errorf("reset = %d, want 1", reset)
	}

	stats, err := store.Stats(ctx, batchID)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats[records.StatusCompleted] != 1 || stats[records.StatusPending] != 1 {
		t.Errorf("stats = %v", stats)
	}

	entries, err := store.Load(ctx, batchID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if msg := entries[failed.ID].ErrorMessage; msg != "" {
		t.Errorf("retried entry kept error %q", msg)
	}
}

func TestOpenRecoversFromCorruptDatabase(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		t.Fatalf("mkdir state dir: %v", err)
	}
	dbPath := filepath.Join(cfg.Paths.StateDir, "checkpoint.db")
	if err := os.WriteFile(dbPath, []byte("this is not a sqlite database"), 0o644); err != nil {
		t.Fatalf("write garbage: %v", err)
	}

	store, err := checkpoint.Open(cfg)
	if err != nil {
		t.Fatalf("open over corrupt db: %v", err)
	}
	defer store.Close()

	if !store.Recovered {
		t.Error("expected Recovered to be set")
	}

	matches, err := filepath.Glob(dbPath + ".corrupt-*")
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 1 {
		t.Errorf("corrupt copies = %v, want exactly one", matches)
	}

	// The fresh database must be fully usable.
	if _, _, err := store.ActiveBatch(context.Background(), "/data/fresh"); err != nil {
		t.Errorf("active batch on recovered db: %v", err)
	}
}

func TestOpenRejectsSecondProcess(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	first := testsupport.MustOpenStore(t, cfg)
	_ = first

	_, err := checkpoint.Open(cfg)
	if err == nil {
		t.Fatal("second open succeeded, want lock error")
	}
	if err != checkpoint.ErrLocked && !strings.Contains(err.Error(), "lock") {
		t.Errorf("err = %v, want ErrLocked", err)
	}
}

func TestDropBatchRemovesRecords(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	store := testsupport.MustOpenStore(t, cfg)
	ctx := context.Background()

	batchID, _, err := store.ActiveBatch(ctx, "/data/old")
	if err != nil {
		t.Fatalf("active batch: %v", err)
	}
	rec := records.New("/data/old/notes.txt", "text", 1)
	rec.Status = records.StatusCompleted
	if err := store.Record(ctx, batchID, *rec); err != nil {
		t.Fatalf("record: %v", err)
	}

	if err := store.DropBatch(ctx, batchID); err != nil {
		t.Fatalf("drop batch: %v", err)
	}
	entries, err := store.Load(ctx, batchID)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries after drop = %d, want 0", len(entries))
	}
	batches, err := store.Batches(ctx)
	if err != nil {
		t.Fatalf("batches: %v", err)
	}
	if len(batches) != 0 {
		t.Errorf("batches after drop = %d, want 0", len(batches))
	}
}
