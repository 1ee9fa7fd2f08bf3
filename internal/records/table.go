package records

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Table is the in-memory file record store for one batch run. All
// mutations go through the table so status transitions stay atomic.
type Table struct {
	mu      sync.RWMutex
	records map[string]*FileRecord
	order   []string
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{records: make(map[string]*FileRecord)}
}

// Add inserts a record. Adding the same ID twice is an error; discovery
// assigns IDs from canonical paths, so a duplicate means two paths
// resolved to the same file.
func (t *Table) Add(rec *FileRecord) error {
	if rec == nil {
		return fmt.Errorf("record is nil")
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, exists := t.records[rec.ID]; exists {
		return fmt.Errorf("duplicate record %s (%s)", rec.ID, rec.Path)
	}
	t.records[rec.ID] = rec
	t.order = append(t.order, rec.ID)
	return nil
}

// Get returns a copy of the record with the given ID.
func (t *Table) Get(id string) (FileRecord, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	rec, ok := t.records[id]
	if !ok {
		return FileRecord{}, false
	}
	return *rec, true
}

// Claim transitions a record from pending to processing. Returns false
// when the record is absent or not pending, so concurrent workers can
// race on the same ID and exactly one wins.
func (t *Table) Claim(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok || rec.Status != StatusPending {
		return false
	}
	rec.Status = StatusProcessing
	rec.UpdatedAt = time.Now().UTC()
	return true
}

// Complete transitions a processing record to completed, attaching the
// extracted metadata and output artifact location.
func (t *Table) Complete(id string, meta Metadata, outputPath string) (FileRecord, error) {
	return t.finish(id, StatusCompleted, func(rec *FileRecord) {
		rec.Metadata = meta
		rec.OutputPath = outputPath
		rec.ErrorMessage = ""
	})
}

// Fail transitions a processing record to failed, recording the error.
func (t *Table) Fail(id string, message string) (FileRecord, error) {
	return t.finish(id, StatusFailed, func(rec *FileRecord) {
		rec.ErrorMessage = message
	})
}

func (t *Table) finish(id string, status Status, apply func(*FileRecord)) (FileRecord, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return FileRecord{}, fmt.Errorf("unknown record %s", id)
	}
	if rec.Status != StatusProcessing {
		return FileRecord{}, fmt.Errorf("record %s is %s, not processing", id, rec.Status)
	}
	rec.Status = status
	rec.UpdatedAt = time.Now().UTC()
	apply(rec)
	return *rec, nil
}

// Seed overwrites a record's state from a checkpoint entry. Used only
// before workers start, while the table is still single-writer.
func (t *Table) Seed(id string, status Status, meta Metadata, outputPath, errorMessage string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	rec, ok := t.records[id]
	if !ok {
		return fmt.Errorf("unknown record %s", id)
	}
	rec.Status = status
	rec.Metadata = meta
	rec.OutputPath = outputPath
	rec.ErrorMessage = errorMessage
	return nil
}

// Pending returns the IDs of records still awaiting processing, in
// discovery order.
func (t *Table) Pending() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]string, 0, len(t.order))
	for _, id := range t.order {
		if t.records[id].Status == StatusPending {
			ids = append(ids, id)
		}
	}
	return ids
}

// ByStatus returns copies of all records with the given status, sorted by ID.
func (t *Table) ByStatus(status Status) []FileRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FileRecord, 0, len(t.records))
	for _, rec := range t.records {
		if rec.Status == status {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Snapshot returns copies of every record in discovery order.
func (t *Table) Snapshot() []FileRecord {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]FileRecord, 0, len(t.order))
	for _, id := range t.order {
		out = append(out, *t.records[id])
	}
	return out
}

// Counts returns how many records hold each status.
func (t *Table) Counts() map[Status]int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	counts := make(map[Status]int, len(allStatuses))
	for _, rec := range t.records {
		counts[rec.Status]++
	}
	return counts
}

// Len returns the number of records in the table.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}
