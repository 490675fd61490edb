package oracle

import (
	"time"

	appErr "swfdiff/pkg/errors"
)

const (
	DefaultCommand   = "{bin} {swf}"
	DefaultLogSuffix = ".macromedia/Flash_Player/Logs/flashlog.txt"
	DefaultTimeout   = 30 * time.Second
	DefaultSentinel  = "#CASE_COMPLETE#"
)

// Config describes how the reference projector is launched.
type Config struct {
	Binary    string        `yaml:"binary"`
	Command   string        `yaml:"command"`
	ShimPath  string        `yaml:"shim"`
	LogSuffix string        `yaml:"logSuffix"`
	ShimDebug bool          `yaml:"shimDebug"`
	Timeout   time.Duration `yaml:"timeout"`
	Sentinel  string        `yaml:"sentinel"`
	// KeepInputs leaves the per-run SWF files in the lane directory.
	KeepInputs     bool     `yaml:"keepInputs"`
	Env            []string `yaml:"env"`
	OutputMaxBytes int64    `yaml:"outputMaxBytes"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.LogSuffix == "" {
		c.LogSuffix = DefaultLogSuffix
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	return c
}

// Validate checks the fields a run cannot do without.
func (c Config) Validate() error {
	if c.Binary == "" {
		return appErr.ConfigError("oracle.binary", "is required")
	}
	if c.ShimPath == "" {
		return appErr.ConfigError("oracle.shim", "is required")
	}
	return nil
}
