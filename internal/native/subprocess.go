package native

import (
	"context"
	"os"
	"path/filepath"

	"swfdiff/internal/sandbox/engine"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/contextkey"
	"swfdiff/pkg/utils/logger"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Subprocess runs an external interpreter binary whose stdout is the trace
// channel.
type Subprocess struct {
	cfg     Config
	eng     engine.Engine
	workDir string
	env     []string
}

// NewSubprocess prepares a subprocess runner writing inputs under workDir.
func NewSubprocess(cfg Config, eng engine.Engine, workDir string) (*Subprocess, error) {
	cfg = cfg.WithDefaults()
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return nil, appErr.Wrapf(err, appErr.WorkDirFailed, "create native work dir %s", workDir)
	}
	env := append(os.Environ(), cfg.Env...)
	return &Subprocess{cfg: cfg, eng: eng, workDir: workDir, env: env}, nil
}

func (s *Subprocess) Run(ctx context.Context, swf []byte) result.ExecutionResult {
	runID := uuid.NewString()
	ctx = context.WithValue(ctx, contextkey.RunID, runID)
	path := filepath.Join(s.workDir, runID+".swf")
	if err := os.WriteFile(path, swf, 0o644); err != nil {
		return result.LaunchFailure(appErr.Wrapf(err, appErr.WorkDirFailed, "write native input"))
	}
	if !s.cfg.KeepInputs {
		defer os.Remove(path)
	}
	cmd, err := spec.BuildCommand(s.cfg.Command, map[string]string{"bin": s.cfg.Binary, "swf": path})
	if err != nil {
		return result.LaunchFailure(err)
	}
	res, err := s.eng.Run(ctx, spec.RunSpec{
		RunID:      runID,
		WorkDir:    s.workDir,
		Cmd:        cmd,
		Env:        s.env,
		StopMarker: []byte(s.cfg.Sentinel),
		Limits: spec.ResourceLimit{
			WallTime:    s.cfg.Timeout,
			OutputBytes: s.cfg.OutputMaxBytes,
		},
	})
	if err != nil {
		logger.Warn(ctx, "native launch failed", zap.Error(err))
	}
	return res
}
