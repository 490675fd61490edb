// Package oracle runs SWF files through the reference Flash projector and
// collects the trace output the interception shim copies to stdout.
package oracle

import (
	"context"
	"os"
	"path/filepath"

	"swfdiff/internal/sandbox/display"
	"swfdiff/internal/sandbox/engine"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/contextkey"
	"swfdiff/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Runner executes one input at a time for a single lane. It is not safe for
// concurrent use; each lane owns its runner, work directory and display.
type Runner struct {
	cfg     Config
	eng     engine.Engine
	display display.Display
	workDir string
	env     []string
}

// NewRunner prepares a runner writing its inputs under workDir.
func NewRunner(cfg Config, eng engine.Engine, disp display.Display, workDir string) (*Runner, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if disp == nil {
		disp = display.None{}
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkDirFailed, "create oracle work dir %s", workDir)
	}
	shim, err := filepath.Abs(cfg.ShimPath)
	if err != nil {
		return nil, appErr.Wrapf(err, appErr.ConfigInvalid, "resolve shim path")
	}
	return &Runner{
		cfg:     cfg,
		eng:     eng,
		display: disp,
		workDir: workDir,
		env:     buildEnv(os.Environ(), cfg, shim, disp.Env()),
	}, nil
}

// buildEnv layers the shim and display settings over base. Later entries
// win, so configured extras can override anything.
func buildEnv(base []string, cfg Config, shim string, displayEnv []string) []string {
	env := make([]string, 0, len(base)+len(displayEnv)+len(cfg.Env)+3)
	env = append(env, base...)
	env = append(env, "LD_PRELOAD="+shim, "SWFDIFF_LOG_SUFFIX="+cfg.LogSuffix)
	if cfg.ShimDebug {
		env = append(env, "SWFDIFF_SHIM_DEBUG=1")
	}
	env = append(env, displayEnv...)
	env = append(env, cfg.Env...)
	return env
}

// Run writes swf to a fresh file and executes the projector on it.
func (r *Runner) Run(ctx context.Context, swf []byte) result.ExecutionResult {
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	path := filepath.Join(r.workDir, runID+".swf")
	if err := os.WriteFile(path, swf, 0o644); err != nil {
		err = appErr.Wrapf(err, appErr.WorkDirFailed, "write oracle input")
		logger.Warn(ctx, "oracle input write failed", zap.Error(err))
		return result.LaunchFailure(err)
	}
	if !r.cfg.KeepInputs {
		defer os.Remove(path)
	}

	cmd, err := spec.BuildCommand(r.cfg.Command, map[string]string{"bin": r.cfg.Binary, "swf": path})
	if err != nil {
		return result.LaunchFailure(err)
	}
	runSpec := spec.RunSpec{
		RunID:      runID,
		WorkDir:    r.workDir,
		Cmd:        cmd,
		Env:        r.env,
		StopMarker: []byte(r.cfg.Sentinel),
		Limits: spec.ResourceLimit{
			WallTime:    r.cfg.Timeout,
			OutputBytes: r.cfg.OutputMaxBytes,
		},
	}
	res, err := r.eng.Run(ctx, runSpec)
	if err != nil {
		logger.Warn(ctx, "oracle launch failed", zap.Error(err))
		return res
	}
	if !res.OutputObserved && res.Status == result.StatusCompleted {
		// The shim never saw the log file opened: either the player traced
		// nothing or the suffix does not match its log path.
		logger.Debug(ctx, appErr.InterceptionMiss.Message(), zap.String("log_suffix", r.cfg.LogSuffix))
	}
	return res
}
