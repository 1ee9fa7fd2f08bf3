package checkpoint

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"loom/internal/config"
	"loom/internal/records"
)

// ErrLocked indicates another process holds the checkpoint lock.
var ErrLocked = errors.New("checkpoint is locked by another process")

// Entry is one file's persisted checkpoint state.
type Entry struct {
	ID           string
	Path         string
	Type         string
	Status       records.Status
	OutputPath   string
	ErrorMessage string
	Metadata     records.Metadata
	UpdatedAt    time.Time
}

// BatchInfo describes a persisted batch.
type BatchInfo struct {
	ID        string
	RootPath  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store manages checkpoint persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
	lock *flock.Flock
	// Recovered reports that a prior checkpoint database was unreadable
	// and was moved aside; the run starts without resume state.
	Recovered bool
}

// Open acquires the state-directory lock and initializes or connects to
// the checkpoint database, applying migrations. An unreadable database
// is renamed aside and replaced with a fresh one.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	lock := flock.New(filepath.Join(cfg.Paths.StateDir, "loom.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquire checkpoint lock: %w", err)
	}
	if !locked {
		return nil, ErrLocked
	}

	dbPath := filepath.Join(cfg.Paths.StateDir, "checkpoint.db")
	db, recovered, err := openDatabase(dbPath)
	if err != nil {
		_ = lock.Unlock()
		return nil, err
	}

	return &Store{db: db, path: dbPath, lock: lock, Recovered: recovered}, nil
}

func openDatabase(dbPath string) (*sql.DB, bool, error) {
	db, err := connect(dbPath)
	if err == nil {
		return db, false, nil
	}

	// A checkpoint that cannot be opened or migrated only costs resume
	// state, never the batch: move it aside and start fresh.
	aside := fmt.Sprintf("%s.corrupt-%d", dbPath, time.Now().Unix())
	if renameErr := os.Rename(dbPath, aside); renameErr != nil {
		return nil, false, fmt.Errorf("open checkpoint db: %w", err)
	}
	db, retryErr := connect(dbPath)
	if retryErr != nil {
		return nil, false, fmt.Errorf("reopen checkpoint db after recovery: %w", retryErr)
	}
	return db, true, nil
}

func connect(dbPath string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	if err := applyMigrations(context.Background(), db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database and releases the state-directory lock.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	var err error
	if s.db != nil {
		err = s.db.Close()
	}
	if s.lock != nil {
		if unlockErr := s.lock.Unlock(); err == nil {
			err = unlockErr
		}
	}
	return err
}

// Path returns the checkpoint database location.
func (s *Store) Path() string {
	return s.path
}

// ActiveBatch returns the existing batch for rootPath, or creates one.
// The second return reports whether an existing batch was resumed.
func (s *Store) ActiveBatch(ctx context.Context, rootPath string) (string, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id FROM batches WHERE root_path = ? ORDER BY created_at DESC LIMIT 1`, rootPath)
	var id string
	err := row.Scan(&id)
	if err == nil {
		return id, true, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return "", false, fmt.Errorf("find batch: %w", err)
	}

	id = uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO batches (id, root_path, created_at, updated_at) VALUES (?, ?, ?, ?)`,
		id, rootPath, now, now); err != nil {
		return "", false, fmt.Errorf("create batch: %w", err)
	}
	return id, false, nil
}

// DropBatch removes a batch and its file records.
func (s *Store) DropBatch(ctx context.Context, batchID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM batches WHERE id = ?`, batchID); err != nil {
		return fmt.Errorf("drop batch: %w", err)
	}
	return nil
}

// Batches lists persisted batches ordered by creation time.
func (s *Store) Batches(ctx context.Context) ([]BatchInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, root_path, created_at, updated_at FROM batches ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list batches: %w", err)
	}
	defer rows.Close()

	var batches []BatchInfo
	for rows.Next() {
		var info BatchInfo
		var createdRaw, updatedRaw string
		if err := rows.Scan(&info.ID, &info.RootPath, &createdRaw, &updatedRaw); err != nil {
			return nil, err
		}
		info.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdRaw)
		info.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedRaw)
		batches = append(batches, info)
	}
	return batches, rows.Err()
}

// Record upserts one file's checkpoint state. Calling it repeatedly with
// the same record is idempotent.
func (s *Store) Record(ctx context.Context, batchID string, rec records.FileRecord) error {
	metadataJSON, err := json.Marshal(rec.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO file_records (id, batch_id, path, file_type, status, output_path, error_message, metadata_json, updated_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             output_path = excluded.output_path,
             error_message = excluded.error_message,
             metadata_json = excluded.metadata_json,
             updated_at = excluded.updated_at`,
		rec.ID,
		batchID,
		rec.Path,
		rec.Type,
		string(rec.Status),
		nullableString(rec.OutputPath),
		nullableString(rec.ErrorMessage),
		string(metadataJSON),
		now,
	)
	if err != nil {
		return fmt.Errorf("record file state: %w", err)
	}

	if _, err := s.db.ExecContext(ctx,
		`UPDATE batches SET updated_at = ? WHERE id = ?`, now, batchID); err != nil {
		return fmt.Errorf("touch batch: %w", err)
	}
	return nil
}

// Load returns the persisted entries for a batch keyed by file ID.
func (s *Store) Load(ctx context.Context, batchID string) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, path, file_type, status, output_path, error_message, metadata_json, updated_at
         FROM file_records WHERE batch_id = ?`, batchID)
	if err != nil {
		return nil, fmt.Errorf("load checkpoint: %w", err)
	}
	defer rows.Close()

	entries := make(map[string]Entry)
	for rows.Next() {
		var (
			entry        Entry
			fileType     sql.NullString
			statusRaw    string
			outputPath   sql.NullString
			errorMessage sql.NullString
			metadataRaw  sql.NullString
			updatedRaw   string
		)
		if err := rows.Scan(&entry.ID, &entry.Path, &fileType, &statusRaw,
			&outputPath, &errorMessage, &metadataRaw, &updatedRaw); err != nil {
			return nil, err
		}
		status, ok := records.ParseStatus(statusRaw)
		if !ok {
			// Unknown status from a future version: safest to reprocess.
			status = records.StatusPending
		}
		entry.Type = fileType.String
		entry.Status = status
		entry.OutputPath = outputPath.String
		entry.ErrorMessage = errorMessage.String
		entry.UpdatedAt, _ = time.Parse(time.RFC3339Nano, updatedRaw)
		if metadataRaw.Valid && metadataRaw.String != "" {
			// Metadata from a newer minor version may carry extra fields;
			// json decoding ignores them, keeping checkpoints forward-readable.
			if err := json.Unmarshal([]byte(metadataRaw.String), &entry.Metadata); err != nil {
				entry.Metadata = records.Metadata{}
			}
		}
		entries[entry.ID] = entry
	}
	return entries, rows.Err()
}

// RetryFailed moves a batch's failed entries back to pending and reports
// how many were reset.
func (s *Store) RetryFailed(ctx context.Context, batchID string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE file_records SET status = ?, error_message = NULL, updated_at = ?
         WHERE batch_id = ? AND status = ?`,
		string(records.StatusPending),
		time.Now().UTC().Format(time.RFC3339Nano),
		batchID,
		string(records.StatusFailed),
	)
	if err != nil {
		return 0, fmt.Errorf("retry failed entries: %w", err)
	}
	return res.RowsAffected()
}

// Stats returns a count of a batch's entries grouped by status.
func (s *Store) Stats(ctx context.Context, batchID string) (map[records.Status]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, COUNT(1) FROM file_records WHERE batch_id = ? GROUP BY status`, batchID)
	if err != nil {
		return nil, fmt.Errorf("checkpoint stats: %w", err)
	}
	defer rows.Close()

	stats := make(map[records.Status]int)
	for rows.Next() {
		var statusRaw string
		var count int
		if err := rows.Scan(&statusRaw, &count); err != nil {
			return nil, err
		}
		if status, ok := records.ParseStatus(statusRaw); ok {
			stats[status] = count
		}
	}
	return stats, rows.Err()
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
