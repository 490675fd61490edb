// Package display manages the X display each lane's oracle renders into.
package display

import (
	"context"
	"fmt"
	"time"

	appErr "swfdiff/pkg/errors"
)

// Display is a virtual or borrowed X display.
type Display interface {
	Start(ctx context.Context) error
	Stop() error
	// Env returns the environment entries a player needs to reach the display.
	Env() []string
	// Healthy returns a DisplayFailed error once the display is gone.
	Healthy() error
}

const (
	ModeXvfb   = "xvfb"
	ModeStatic = "static"
	ModeNone   = "none"
)

// Config selects and parameterizes the display backend.
type Config struct {
	Mode         string        `yaml:"mode"`
	Binary       string        `yaml:"binary"`
	BaseNumber   int           `yaml:"baseNumber"`
	Args         []string      `yaml:"args"`
	Display      string        `yaml:"display"`
	StartTimeout time.Duration `yaml:"startTimeout"`
}

// New builds the display for lane. Xvfb displays are numbered BaseNumber+lane.
func New(cfg Config, lane int) (Display, error) {
	switch cfg.Mode {
	case ModeXvfb:
		return NewXvfb(cfg.Binary, cfg.BaseNumber+lane, cfg.Args, cfg.StartTimeout), nil
	case ModeStatic:
		if cfg.Display == "" {
			return nil, appErr.ConfigError("display.display", "required in static mode")
		}
		return Static{Name: cfg.Display}, nil
	case ModeNone, "":
		return None{}, nil
	}
	return nil, appErr.ConfigError("display.mode", fmt.Sprintf("unknown mode %q", cfg.Mode))
}

// Static reuses a display that is already running.
type Static struct {
	Name string
}

func (s Static) Start(ctx context.Context) error { return nil }
func (s Static) Stop() error                     { return nil }
func (s Static) Env() []string                   { return []string{"DISPLAY=" + s.Name} }
func (s Static) Healthy() error                  { return nil }

// None is for players that need no display at all.
type None struct{}

func (None) Start(ctx context.Context) error { return nil }
func (None) Stop() error                     { return nil }
func (None) Env() []string                   { return nil }
func (None) Healthy() error                  { return nil }
