package engine

import "time"

// Config controls engine behavior.
type Config struct {
	StdoutMaxBytes int64
	StderrMaxBytes int64
	// WaitDelay bounds how long Wait keeps reading pipes held open by
	// grandchildren after the main process exits.
	WaitDelay time.Duration
}

const (
	defaultStdoutMaxBytes int64 = 4 << 20
	defaultStderrMaxBytes int64 = 64 * 1024
	defaultWaitDelay            = 2 * time.Second
)

func (c Config) withDefaults() Config {
	if c.StdoutMaxBytes <= 0 {
		c.StdoutMaxBytes = defaultStdoutMaxBytes
	}
	if c.StderrMaxBytes <= 0 {
		c.StderrMaxBytes = defaultStderrMaxBytes
	}
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultWaitDelay
	}
	return c
}
