// Package native runs SWF files through the interpreter under test.
package native

import (
	"context"

	"swfdiff/internal/sandbox/engine"
	"swfdiff/internal/sandbox/result"
)

// Runner executes one input and reports how it ended. Run never returns an
// error; start failures are reported as StatusLaunchFailed.
type Runner interface {
	Run(ctx context.Context, swf []byte) result.ExecutionResult
}

// New builds the runner selected by cfg.Mode. workDir is only used by the
// subprocess backend.
func New(cfg Config, eng engine.Engine, workDir string) (Runner, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Mode == ModeSubprocess {
		return NewSubprocess(cfg, eng, workDir)
	}
	return NewInProcess(cfg, AVM1Interpreter{MaxSteps: cfg.MaxSteps, MaxOutput: int(cfg.OutputMaxBytes)}), nil
}
