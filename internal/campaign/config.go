// Package campaign drives fuzzing lanes: generate, run both players,
// compare and file, until the budget runs out or the campaign is stopped.
package campaign

import (
	"os"
	"path/filepath"
	"time"

	"swfdiff/internal/generator"
	appErr "swfdiff/pkg/errors"

	"github.com/google/uuid"
)

const (
	DefaultRunTimeout    = 30 * time.Second
	DefaultStatsInterval = 5 * time.Second
	DefaultSeenCacheSize = 1 << 16
	filingGrace          = 30 * time.Second
)

// Config is fixed for the lifetime of a campaign.
type Config struct {
	ID     string
	Lanes  int
	Budget int64 // total cycles across lanes; 0 runs until stopped

	RunTimeout       time.Duration
	BaseSeed         uint64
	WorkRoot         string
	StatsInterval    time.Duration
	MaxRunsPerSecond float64
	SeenCacheSize    int // 0 uses the default, negative disables dedup

	Generator generator.Config
}

// WithDefaults fills zero values.
func (c Config) WithDefaults() Config {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Lanes == 0 {
		c.Lanes = 1
	}
	if c.RunTimeout == 0 {
		c.RunTimeout = DefaultRunTimeout
	}
	if c.WorkRoot == "" {
		c.WorkRoot = filepath.Join(os.TempDir(), "swfdiff")
	}
	if c.StatsInterval == 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.SeenCacheSize == 0 {
		c.SeenCacheSize = DefaultSeenCacheSize
	}
	return c
}

func (c Config) Validate() error {
	switch {
	case c.Lanes <= 0:
		return appErr.ConfigError("campaign.lanes", "must be positive")
	case c.Budget < 0:
		return appErr.ConfigError("campaign.budget", "must not be negative")
	case c.RunTimeout <= 0:
		return appErr.ConfigError("campaign.runTimeout", "must be positive")
	case c.MaxRunsPerSecond < 0:
		return appErr.ConfigError("campaign.maxRunsPerSecond", "must not be negative")
	case c.StatsInterval < 0:
		return appErr.ConfigError("campaign.statsInterval", "must not be negative")
	}
	return c.Generator.Validate()
}

// LaneSeed is the seed of one lane iteration. Lanes never share a seed
// sequence as long as a lane stays below 2^32 iterations.
func LaneSeed(base uint64, lane int, iteration uint64) generator.Seed {
	return generator.Mix(base + uint64(lane)<<32 + iteration)
}
