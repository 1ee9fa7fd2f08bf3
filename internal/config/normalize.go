package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBatch()
	c.normalizeRelationships()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		c.Paths.OutputDir = defaultOutputDir
	}
	if c.Paths.OutputDir, err = expandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeBatch() {
	if c.Batch.Workers <= 0 {
		c.Batch.Workers = defaultBatchWorkers
	}
	if c.Batch.FileTimeout < 0 {
		c.Batch.FileTimeout = 0
	}
	patterns := make([]string, 0, len(c.Batch.IncludePatterns))
	seen := make(map[string]struct{}, len(c.Batch.IncludePatterns))
	for _, pattern := range c.Batch.IncludePatterns {
		normalized := strings.ToLower(strings.TrimSpace(pattern))
		if normalized == "" {
			continue
		}
		if _, ok := seen[normalized]; ok {
			continue
		}
		seen[normalized] = struct{}{}
		patterns = append(patterns, normalized)
	}
	if len(patterns) == 0 {
		patterns = append(patterns, defaultIncludePatterns...)
	}
	c.Batch.IncludePatterns = patterns
}

func (c *Config) normalizeRelationships() {
	if c.Relationships.PairWorkers <= 0 {
		c.Relationships.PairWorkers = defaultPairWorkers
	}
	if c.Relationships.EvidenceSample <= 0 {
		c.Relationships.EvidenceSample = defaultEvidenceSample
	}
	if c.Relationships.TemporalWindowDays < 0 {
		c.Relationships.TemporalWindowDays = 0
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}
