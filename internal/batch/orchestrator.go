package batch

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"loom/internal/checkpoint"
	"loom/internal/config"
	"loom/internal/discovery"
	"loom/internal/graph"
	"loom/internal/logging"
	"loom/internal/records"
	"loom/internal/relate"
)

// ProcessFunc is the per-file pipeline a worker invokes for each claimed
// record. It returns the extracted metadata and the artifact path.
type ProcessFunc func(ctx context.Context, rec *records.FileRecord) (records.Metadata, string, error)

// Progress is a snapshot reported after each terminal transition. Counts
// only ever grow within a run.
type Progress struct {
	Total     int
	Completed int
	Failed    int
}

// Done returns how many records have reached a terminal state.
func (p Progress) Done() int { return p.Completed + p.Failed }

// ProgressFunc receives progress snapshots. Calls are serialized.
type ProgressFunc func(Progress)

// Summary is the outcome of one run.
type Summary struct {
	BatchID        string
	Root           string
	Total          int
	Completed      int
	Failed         int
	SkippedResumed int
	// PriorFailures counts checkpointed failures carried over without
	// reprocessing; they are included in Failed.
	PriorFailures int
	// Interrupted reports that cancellation stopped the run before all
	// records reached a terminal state; the checkpoint allows resuming.
	Interrupted bool
	// Degraded reports that checkpoint writes started failing mid-run;
	// processing continued but the run is not resumable.
	Degraded      bool
	Recovered     bool
	Relationships int
	// RelationshipsByType breaks Relationships down per relationship type.
	RelationshipsByType map[relate.Type]int
	GraphPath           string
	Duration            time.Duration
}

// Orchestrator coordinates the two parallel phases of a run.
type Orchestrator struct {
	cfg     *config.Config
	store   *checkpoint.Store
	process ProcessFunc
	logger  *slog.Logger

	progress   ProgressFunc
	progressMu sync.Mutex

	table    *records.Table
	degraded atomic.Bool
}

// New creates an orchestrator. store may be nil, which disables
// checkpointing and resume entirely.
func New(cfg *config.Config, store *checkpoint.Store, process ProcessFunc, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Orchestrator{
		cfg:     cfg,
		store:   store,
		process: process,
		logger:  logging.NewComponentLogger(logger, "batch"),
	}
}

// OnProgress registers a progress callback. Must be called before Run.
func (o *Orchestrator) OnProgress(fn ProgressFunc) {
	o.progress = fn
}

// Table exposes the record table for inspection after Run.
func (o *Orchestrator) Table() *records.Table {
	return o.table
}

// Run executes a full batch over root: discovery, checkpoint seeding,
// parallel processing, then relationship detection and graph export once
// every record is terminal.
func (o *Orchestrator) Run(ctx context.Context, root string) (*Summary, error) {
	started := time.Now()

	scanner := discovery.NewScanner(o.cfg, o.logger)
	scanned, err := scanner.Scan(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("discover files: %w", err)
	}
	if len(scanned.Records) == 0 {
		return nil, fmt.Errorf("%w under %s", discovery.ErrNoFiles, scanned.Root)
	}

	o.table = records.NewTable()
	for _, rec := range scanned.Records {
		if err := o.table.Add(rec); err != nil {
			return nil, fmt.Errorf("register record: %w", err)
		}
	}

	summary := &Summary{Root: scanned.Root, Total: o.table.Len()}
	if err := o.seedFromCheckpoint(ctx, summary); err != nil {
		return nil, err
	}

	o.logger.Info("starting batch",
		logging.FieldBatchID, summary.BatchID,
		"files", summary.Total,
		"resumed_complete", summary.SkippedResumed,
		"workers", o.cfg.Batch.Workers)

	o.runWorkers(ctx, summary.BatchID)

	counts := o.table.Counts()
	summary.Completed = counts[records.StatusCompleted]
	summary.Failed = counts[records.StatusFailed]
	summary.Degraded = o.degraded.Load()
	summary.Interrupted = ctx.Err() != nil

	if summary.Interrupted {
		o.logger.Warn("batch interrupted",
			logging.FieldBatchID, summary.BatchID,
			"completed", summary.Completed,
			"pending", counts[records.StatusPending])
		summary.Duration = time.Since(started)
		return summary, nil
	}

	if err := o.detectAndExport(ctx, summary); err != nil {
		return nil, err
	}
	summary.Duration = time.Since(started)

	o.logger.Info("batch complete",
		logging.FieldBatchID, summary.BatchID,
		"completed", summary.Completed,
		"failed", summary.Failed,
		"relationships", summary.Relationships,
		logging.Duration("duration", summary.Duration))
	return summary, nil
}

// seedFromCheckpoint replays persisted terminal states into the table so
// a resumed run skips finished work. Records persisted as processing
// belong to an interrupted run and go back to pending.
func (o *Orchestrator) seedFromCheckpoint(ctx context.Context, summary *Summary) error {
	if o.store == nil {
		return nil
	}
	summary.Recovered = o.store.Recovered

	batchID, resumed, err := o.store.ActiveBatch(ctx, summary.Root)
	if err != nil {
		return fmt.Errorf("resolve batch: %w", err)
	}
	summary.BatchID = batchID
	if !resumed || !o.cfg.Batch.Resume {
		return nil
	}

	entries, err := o.store.Load(ctx, batchID)
	if err != nil {
		return fmt.Errorf("load checkpoint: %w", err)
	}
	for id, entry := range entries {
		if _, known := o.table.Get(id); !known {
			// The file disappeared between runs; its history stays in
			// the checkpoint but it is not part of this batch.
			continue
		}
		switch {
		case entry.Status == records.StatusCompleted:
			if err := o.table.Seed(id, entry.Status, entry.Metadata, entry.OutputPath, ""); err != nil {
				return fmt.Errorf("seed record: %w", err)
			}
			summary.SkippedResumed++
		case entry.Status == records.StatusFailed && !o.cfg.Batch.RetryFailed:
			if err := o.table.Seed(id, entry.Status, entry.Metadata, "", entry.ErrorMessage); err != nil {
				return fmt.Errorf("seed record: %w", err)
			}
			summary.PriorFailures++
		}
	}
	return nil
}

// runWorkers feeds pending record IDs to a fixed pool. Cancellation
// stops the feed; records already claimed finish or fail normally.
func (o *Orchestrator) runWorkers(ctx context.Context, batchID string) {
	ids := make(chan string)
	var wg sync.WaitGroup
	for i := 0; i < o.cfg.Batch.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for id := range ids {
				if ctx.Err() != nil {
					continue
				}
				if !o.table.Claim(id) {
					continue
				}
				o.processOne(ctx, batchID, id)
			}
		}()
	}

feed:
	for _, id := range o.table.Pending() {
		select {
		case <-ctx.Done():
			break feed
		case ids <- id:
		}
	}
	close(ids)
	wg.Wait()
}

// processOne runs the per-file pipeline for a claimed record, isolating
// panics and enforcing the per-file timeout. One file's failure never
// touches its siblings.
func (o *Orchestrator) processOne(ctx context.Context, batchID, id string) {
	rec, ok := o.table.Get(id)
	if !ok {
		return
	}

	// A dispatched file runs to completion even when the batch context is
	// canceled; only the per-file timeout aborts it. Cancellation stops
	// the feed instead, so unclaimed records stay pending for resume.
	fileCtx := context.WithoutCancel(ctx)
	cancel := context.CancelFunc(func() {})
	if o.cfg.Batch.FileTimeout > 0 {
		fileCtx, cancel = context.WithTimeout(fileCtx,
			time.Duration(o.cfg.Batch.FileTimeout)*time.Second)
	}
	defer cancel()

	type outcome struct {
		meta       records.Metadata
		outputPath string
		err        error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("pipeline panic: %v", r)}
			}
		}()
		meta, outputPath, err := o.process(fileCtx, &rec)
		done <- outcome{meta: meta, outputPath: outputPath, err: err}
	}()

	var result outcome
	select {
	case <-fileCtx.Done():
		result = outcome{err: fmt.Errorf("processing aborted: %w", fileCtx.Err())}
	case result = <-done:
	}

	var terminal records.FileRecord
	var err error
	if result.err != nil {
		o.logger.Warn("file failed",
			logging.FieldBatchID, batchID,
			logging.FieldFileID, id,
			logging.FieldFilePath, rec.Path,
			logging.Error(result.err))
		terminal, err = o.table.Fail(id, result.err.Error())
	} else {
		terminal, err = o.table.Complete(id, result.meta, result.outputPath)
	}
	if err != nil {
		// Claim guarantees processing state, so this only fires on a bug.
		o.logger.Error("terminal transition rejected",
			logging.FieldFileID, id,
			logging.Error(err))
		return
	}

	o.persist(ctx, batchID, terminal)
	o.reportProgress()
}

// persist mirrors one terminal transition into the checkpoint. A write
// failure flips the run into degraded mode: processing continues but
// resume state stops accumulating.
func (o *Orchestrator) persist(ctx context.Context, batchID string, rec records.FileRecord) {
	if o.store == nil || o.degraded.Load() {
		return
	}
	if ctx.Err() != nil {
		ctx = context.WithoutCancel(ctx)
	}
	if err := o.store.Record(ctx, batchID, rec); err != nil {
		if o.degraded.CompareAndSwap(false, true) {
			logging.WarnWithContext(o.logger, "checkpoint write failed", "checkpoint_degraded",
				logging.String(logging.FieldBatchID, batchID),
				logging.Error(err),
				logging.String(logging.FieldImpact, "run continues but cannot be resumed"))
		}
	}
}

func (o *Orchestrator) reportProgress() {
	if o.progress == nil {
		return
	}
	o.progressMu.Lock()
	defer o.progressMu.Unlock()
	counts := o.table.Counts()
	o.progress(Progress{
		Total:     o.table.Len(),
		Completed: counts[records.StatusCompleted],
		Failed:    counts[records.StatusFailed],
	})
}

// detectAndExport runs the second phase: relationship detection over all
// completed records and the graph export.
func (o *Orchestrator) detectAndExport(ctx context.Context, summary *Summary) error {
	completed := o.table.ByStatus(records.StatusCompleted)
	detector := relate.NewDetector(o.cfg, o.logger)
	result, err := detector.Detect(ctx, completed)
	if err != nil {
		return fmt.Errorf("detect relationships: %w", err)
	}
	summary.Relationships = len(result.Relationships)
	summary.RelationshipsByType = result.CountsByType()

	g := graph.New(detector.Weights())
	for _, rec := range completed {
		g.AddNode(rec)
	}
	for _, rel := range result.Relationships {
		if err := g.AddEdge(rel); err != nil {
			return fmt.Errorf("add edge: %w", err)
		}
	}

	graphPath := filepath.Join(o.cfg.Paths.OutputDir, "graph.json")
	if err := g.Write(graphPath); err != nil {
		return err
	}
	summary.GraphPath = graphPath
	return nil
}
