package scheduler

import (
	"time"

	"github.com/smallbiznis/recovery/internal/config"
)

const (
	JobIngestion      = "ingestion"
	JobReclassify     = "reclassify"
	JobProfileRefresh = "profile_refresh"
)

// Config controls scheduler intervals, batch sizes and job deadlines.
type Config struct {
	RunInterval       time.Duration
	BatchSize         int
	EnabledJobs       []string
	IngestionTimeout  time.Duration
	ReclassifyTimeout time.Duration
	ProfileTimeout    time.Duration
}

func DefaultConfig() Config {
	return Config{
		RunInterval:       time.Hour,
		BatchSize:         200,
		IngestionTimeout:  10 * time.Minute,
		ReclassifyTimeout: 5 * time.Minute,
		ProfileTimeout:    10 * time.Minute,
	}
}

func ProvideConfig(cfg config.Config) Config {
	return Config{
		RunInterval:      cfg.Scheduler.RunInterval,
		BatchSize:        cfg.Scheduler.BatchSize,
		EnabledJobs:      cfg.Scheduler.EnabledJobs,
		IngestionTimeout: cfg.Ingestion.Timeout,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.RunInterval <= 0 {
		c.RunInterval = defaults.RunInterval
	}
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.IngestionTimeout <= 0 {
		c.IngestionTimeout = defaults.IngestionTimeout
	}
	if c.ReclassifyTimeout <= 0 {
		c.ReclassifyTimeout = defaults.ReclassifyTimeout
	}
	if c.ProfileTimeout <= 0 {
		c.ProfileTimeout = defaults.ProfileTimeout
	}
	return c
}
