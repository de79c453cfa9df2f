package model

import (
	"fmt"
	"time"
)

const (
	DefaultBatchSize           = 10
	DefaultDelayBetweenBatches = time.Second
	DefaultMaxRetries          = 3
)

// ProcessingConfig describes one bounded indexing run. A nil EndBlock means
// "up to the chain tip observed when the run starts".
type ProcessingConfig struct {
	StartBlock          uint64
	EndBlock            *uint64
	BatchSize           int
	DelayBetweenBatches time.Duration
	MaxRetries          int
}

// WithDefaults fills zero-valued knobs.
func (c ProcessingConfig) WithDefaults() ProcessingConfig {
	if c.BatchSize <= 0 {
		c.BatchSize = DefaultBatchSize
	}
	if c.DelayBetweenBatches < 0 {
		c.DelayBetweenBatches = 0
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = DefaultMaxRetries
	}
	return c
}

func (c ProcessingConfig) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	}
	if c.MaxRetries <= 0 {
		return fmt.Errorf("max retries must be positive, got %d", c.MaxRetries)
	}
	if c.EndBlock != nil && *c.EndBlock < c.StartBlock {
		return fmt.Errorf("end block %d is before start block %d", *c.EndBlock, c.StartBlock)
	}
	return nil
}
