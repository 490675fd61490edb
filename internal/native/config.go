package native

import (
	"time"

	appErr "swfdiff/pkg/errors"
)

const (
	ModeInProcess  = "inprocess"
	ModeSubprocess = "subprocess"

	DefaultCommand  = "{bin} {swf}"
	DefaultTimeout  = 30 * time.Second
	DefaultSentinel = "#CASE_COMPLETE#"
)

// Config selects the native backend.
type Config struct {
	Mode string `yaml:"mode"`
	// Subprocess settings.
	Binary     string   `yaml:"binary"`
	Command    string   `yaml:"command"`
	Env        []string `yaml:"env"`
	KeepInputs bool     `yaml:"keepInputs"`
	Sentinel   string   `yaml:"sentinel"`
	// In-process evaluator bounds.
	MaxSteps int `yaml:"maxSteps"`

	Timeout        time.Duration `yaml:"timeout"`
	OutputMaxBytes int64         `yaml:"outputMaxBytes"`
}

// WithDefaults fills unset fields.
func (c Config) WithDefaults() Config {
	if c.Mode == "" {
		c.Mode = ModeInProcess
	}
	if c.Command == "" {
		c.Command = DefaultCommand
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.Sentinel == "" {
		c.Sentinel = DefaultSentinel
	}
	return c
}

// Validate checks mode-specific requirements.
func (c Config) Validate() error {
	switch c.Mode {
	case ModeInProcess:
		return nil
	case ModeSubprocess:
		if c.Binary == "" {
			return appErr.ConfigError("native.binary", "is required in subprocess mode")
		}
		return nil
	}
	return appErr.ConfigError("native.mode", "must be inprocess or subprocess")
}
