package discovery

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"loom/internal/config"
	"loom/internal/logging"
	"loom/internal/records"
)

// ErrRootMissing indicates the scan root does not exist.
var ErrRootMissing = errors.New("scan root does not exist")

// ErrNotDirectory indicates the scan root exists but is not a directory.
var ErrNotDirectory = errors.New("scan root is not a directory")

// ErrNoFiles indicates the scan root matched no include patterns.
var ErrNoFiles = errors.New("no files matched the include patterns")

// typeByExtension maps known extensions to the coarse file types the
// relationship engine reasons about.
var typeByExtension = map[string]string{
	".xlsx": "excel",
	".xls":  "excel",
	".xlsm": "excel",
	".csv":  "csv",
	".tsv":  "csv",
	".json": "json",
	".pptx": "powerpoint",
	".ppt":  "powerpoint",
	".docx": "word",
	".doc":  "word",
	".md":   "markdown",
	".txt":  "text",
}

// TypeForPath classifies a path by extension, falling back to "other".
func TypeForPath(path string) string {
	if fileType, ok := typeByExtension[strings.ToLower(filepath.Ext(path))]; ok {
		return fileType
	}
	return "other"
}

// Result holds the outcome of one scan.
type Result struct {
	Root    string
	Records []*records.FileRecord
	// Skipped counts entries that matched a pattern but could not be
	// stat'd or read.
	Skipped int
}

// CountsByType groups the discovered records by file type.
func (r *Result) CountsByType() map[string]int {
	counts := make(map[string]int)
	for _, rec := range r.Records {
		counts[rec.Type]++
	}
	return counts
}

// Scanner discovers batch input files under a root directory.
type Scanner struct {
	cfg    *config.Config
	logger *slog.Logger
}

// NewScanner creates a scanner using the batch include patterns from cfg.
func NewScanner(cfg *config.Config, logger *slog.Logger) *Scanner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Scanner{cfg: cfg, logger: logging.NewComponentLogger(logger, "discovery")}
}

// Scan walks root and returns matching files as pending records, sorted
// by path so discovery order is stable across runs. Unreadable entries
// are logged and skipped rather than failing the scan.
func (s *Scanner) Scan(ctx context.Context, root string) (*Result, error) {
	expanded, err := config.ExpandPath(root)
	if err != nil {
		return nil, fmt.Errorf("expand scan root: %w", err)
	}
	absRoot, err := filepath.Abs(expanded)
	if err != nil {
		return nil, fmt.Errorf("resolve scan root: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrRootMissing, absRoot)
		}
		return nil, fmt.Errorf("stat scan root %s: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotDirectory, absRoot)
	}

	result := &Result{Root: absRoot}
	walkErr := filepath.WalkDir(absRoot, func(path string, entry fs.DirEntry, err error) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err != nil {
			s.logger.Warn("skipping unreadable entry",
				logging.FieldFilePath, path,
				logging.Error(err))
			result.Skipped++
			if entry != nil && entry.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if entry.IsDir() {
			if path != absRoot {
				if strings.HasPrefix(entry.Name(), ".") {
					return fs.SkipDir
				}
				if !s.cfg.Batch.Recursive {
					return fs.SkipDir
				}
			}
			return nil
		}
		if strings.HasPrefix(entry.Name(), ".") {
			return nil
		}
		if !s.matches(entry.Name()) {
			return nil
		}

		fileInfo, err := entry.Info()
		if err != nil {
			s.logger.Warn("skipping unreadable file",
				logging.FieldFilePath, path,
				logging.Error(err))
			result.Skipped++
			return nil
		}
		rec := records.New(path, TypeForPath(path), fileInfo.Size())
		rec.Metadata.ModifiedAt = fileInfo.ModTime().UTC()
		result.Records = append(result.Records, rec)
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk %s: %w", absRoot, walkErr)
	}

	sort.Slice(result.Records, func(i, j int) bool {
		return result.Records[i].Path < result.Records[j].Path
	})

	s.logger.Info("scan complete",
		logging.FieldFilePath, absRoot,
		"files", len(result.Records),
		"skipped", result.Skipped)
	return result, nil
}

func (s *Scanner) matches(name string) bool {
	lower := strings.ToLower(name)
	for _, pattern := range s.cfg.Batch.IncludePatterns {
		ok, err := filepath.Match(strings.ToLower(pattern), lower)
		if err != nil {
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
