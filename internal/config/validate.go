package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateRelationships(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Workers <= 0 {
		return errors.New("batch.workers must be positive")
	}
	if c.Batch.FileTimeout < 0 {
		return errors.New("batch.file_timeout must be >= 0 (seconds)")
	}
	if len(c.Batch.IncludePatterns) == 0 {
		return errors.New("batch.include_patterns must include at least one pattern")
	}
	return nil
}

func (c *Config) validateRelationships() error {
	r := c.Relationships
	if r.Threshold < 0 || r.Threshold > 1 {
		return errors.New("relationships.threshold must be between 0 and 1")
	}
	for name, weight := range map[string]float64{
		"relationships.content_weight":  r.ContentWeight,
		"relationships.filename_weight": r.FilenameWeight,
		"relationships.metadata_weight": r.MetadataWeight,
	} {
		if weight < 0 || weight > 1 {
			return fmt.Errorf("%s must be between 0 and 1", name)
		}
	}
	if r.ContentWeight+r.FilenameWeight+r.MetadataWeight <= 0 {
		return errors.New("relationships strategy weights must not all be zero")
	}
	if r.TitleThreshold < 0 || r.TitleThreshold > 1 {
		return errors.New("relationships.title_similarity_threshold must be between 0 and 1")
	}
	if r.PairWorkers <= 0 {
		return errors.New("relationships.pair_workers must be positive")
	}
	return nil
}
