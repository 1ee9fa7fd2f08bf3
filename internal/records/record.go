package records

import (
	"crypto/sha256"
	"encoding/hex"
	"path/filepath"
	"strings"
	"time"
)

// Status represents the lifecycle of a file record.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var allStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusCompleted,
	StatusFailed,
}

var statusSet = func() map[Status]struct{} {
	set := make(map[Status]struct{}, len(allStatuses))
	for _, status := range allStatuses {
		set[status] = struct{}{}
	}
	return set
}()

// AllStatuses returns the ordered list of known statuses.
func AllStatuses() []Status {
	cp := make([]Status, len(allStatuses))
	copy(cp, allStatuses)
	return cp
}

// ParseStatus converts a string into a known Status.
func ParseStatus(value string) (Status, bool) {
	normalized := Status(strings.ToLower(strings.TrimSpace(value)))
	if normalized == "" {
		return "", false
	}
	_, ok := statusSet[normalized]
	return normalized, ok
}

// IsTerminal reports whether a status permits no further transitions.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Metadata is the extracted per-file metadata the relationship engine
// consumes. Every field is optional; strategies treat missing values as
// contributing zero.
type Metadata struct {
	Author      string    `json:"author,omitempty"`
	Title       string    `json:"title,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	ModifiedAt  time.Time `json:"modified_at,omitzero"`
	Entities    []string  `json:"entities,omitempty"`
	KeyTerms    []string  `json:"key_terms,omitempty"`
	ContentHash string    `json:"content_hash,omitempty"`
	// Structure summarizes the file's shape (line counts, sizes) for
	// downstream context builders.
	Structure map[string]int64 `json:"structure,omitempty"`
}

// FileRecord tracks one discovered file through the batch run.
type FileRecord struct {
	ID        string
	Path      string
	Name      string
	Type      string
	Size      int64
	Status    Status
	Metadata  Metadata
	// OutputPath points at the artifact the per-file pipeline produced.
	OutputPath   string
	ErrorMessage string
	UpdatedAt    time.Time
}

// Directory returns the record's containing directory.
func (r *FileRecord) Directory() string {
	return filepath.Dir(r.Path)
}

// DeriveID computes a stable identifier from the cleaned absolute path,
// so checkpoints written by an earlier run match records discovered after
// a restart.
func DeriveID(path string) string {
	cleaned := filepath.Clean(path)
	if abs, err := filepath.Abs(cleaned); err == nil {
		cleaned = abs
	}
	sum := sha256.Sum256([]byte(cleaned))
	return hex.EncodeToString(sum[:16])
}

// New creates a pending record for a discovered file.
func New(path, fileType string, size int64) *FileRecord {
	return &FileRecord{
		ID:        DeriveID(path),
		Path:      path,
		Name:      filepath.Base(path),
		Type:      fileType,
		Size:      size,
		Status:    StatusPending,
		UpdatedAt: time.Now().UTC(),
	}
}
