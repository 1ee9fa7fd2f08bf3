package extract

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"loom/internal/config"
	"loom/internal/fileutil"
	"loom/internal/logging"
	"loom/internal/records"
	"loom/internal/textutil"
)

// maxSampleBytes bounds how much of a file is read for hashing and text
// analysis, so one huge input cannot stall a worker.
const maxSampleBytes = 1 << 20

// Artifact is the JSON document written per processed file.
type Artifact struct {
	FileID      string           `json:"file_id"`
	Path        string           `json:"path"`
	Name        string           `json:"name"`
	Type        string           `json:"type"`
	SizeBytes   int64            `json:"size_bytes"`
	ProcessedAt time.Time        `json:"processed_at"`
	Metadata    records.Metadata `json:"metadata"`
}

// Extractor derives metadata from batch input files.
type Extractor struct {
	cfg    *config.Config
	logger *slog.Logger
}

// New creates an extractor writing artifacts under cfg's output directory.
func New(cfg *config.Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{cfg: cfg, logger: logging.NewComponentLogger(logger, "extract")}
}

// Process reads the file behind rec, derives its metadata, and writes a
// JSON artifact. It returns the metadata and the artifact path.
func (e *Extractor) Process(ctx context.Context, rec *records.FileRecord) (records.Metadata, string, error) {
	if err := ctx.Err(); err != nil {
		return records.Metadata{}, "", err
	}

	sample, info, err := readSample(rec.Path)
	if err != nil {
		return records.Metadata{}, "", fmt.Errorf("read %s: %w", rec.Path, err)
	}

	stem := strings.TrimSuffix(rec.Name, filepath.Ext(rec.Name))
	meta := records.Metadata{
		ModifiedAt: info.ModTime().UTC(),
		Structure: map[string]int64{
			"size_bytes": info.Size(),
		},
	}
	sum := sha256.Sum256(sample)
	meta.ContentHash = hex.EncodeToString(sum[:])

	if looksTextual(sample) {
		text := string(sample)
		meta.Title = deriveTitle(text, stem)
		meta.Author = deriveAuthor(text)
		meta.Entities = extractEntities(text)
		meta.KeyTerms = extractKeyTerms(text)
		meta.Structure["line_count"] = int64(strings.Count(text, "\n") + 1)
		meta.Structure["word_count"] = int64(len(strings.Fields(text)))
	} else {
		// Binary container formats get filename-derived metadata only.
		title := humanizeStem(stem)
		meta.Title = title
		meta.Entities = extractEntities(title)
		meta.KeyTerms = extractKeyTerms(title)
	}

	if err := ctx.Err(); err != nil {
		return records.Metadata{}, "", err
	}

	outputPath, err := e.writeArtifact(rec, stem, meta)
	if err != nil {
		return records.Metadata{}, "", err
	}

	e.logger.Debug("file processed",
		logging.FieldFileID, rec.ID,
		logging.FieldFilePath, rec.Path,
		"entities", len(meta.Entities),
		"key_terms", len(meta.KeyTerms))
	return meta, outputPath, nil
}

func (e *Extractor) writeArtifact(rec *records.FileRecord, stem string, meta records.Metadata) (string, error) {
	artifact := Artifact{
		FileID:      rec.ID,
		Path:        rec.Path,
		Name:        rec.Name,
		Type:        rec.Type,
		SizeBytes:   rec.Size,
		ProcessedAt: time.Now().UTC(),
		Metadata:    meta,
	}
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal artifact: %w", err)
	}

	dir := filepath.Join(e.cfg.Paths.OutputDir, "files")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create artifact dir: %w", err)
	}
	// Artifact names stay human-readable; the ID prefix keeps files with
	// identical stems from colliding.
	outputPath := filepath.Join(dir,
		fmt.Sprintf("%s-%s.json", textutil.SanitizeToken(stem), rec.ID[:12]))
	if err := fileutil.WriteAtomic(outputPath, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	return outputPath, nil
}

func readSample(path string) ([]byte, os.FileInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, nil, err
	}
	sample, err := io.ReadAll(io.LimitReader(file, maxSampleBytes))
	if err != nil {
		return nil, nil, err
	}
	return sample, info, nil
}
