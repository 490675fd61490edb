//go:build linux

package engine

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"sync/atomic"
	"syscall"
	"time"

	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

type linuxEngine struct {
	cfg Config
}

// NewEngine creates a Linux process engine.
func NewEngine(cfg Config) Engine {
	return &linuxEngine{cfg: cfg.withDefaults()}
}

func (e *linuxEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.ExecutionResult, error) {
	if err := validateRunSpec(runSpec); err != nil {
		return result.LaunchFailure(err), err
	}

	cmd := exec.Command(runSpec.Cmd[0], runSpec.Cmd[1:]...)
	cmd.Dir = runSpec.WorkDir
	cmd.Env = runSpec.Env
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGKILL,
	}
	cmd.WaitDelay = e.cfg.WaitDelay

	stdoutLimit := e.cfg.StdoutMaxBytes
	if runSpec.Limits.OutputBytes > 0 {
		stdoutLimit = runSpec.Limits.OutputBytes
	}
	markerKill := &groupKill{kill: killProcessGroup}
	stdout := &captureWriter{
		limit:    stdoutLimit,
		marker:   runSpec.StopMarker,
		onMarker: markerKill.fire,
	}
	stderr := &captureWriter{limit: e.cfg.StderrMaxBytes}
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		launchErr := appErr.Wrapf(err, appErr.LaunchFailed, "start %s", runSpec.Cmd[0])
		return result.LaunchFailure(launchErr), launchErr
	}
	markerKill.arm(cmd.Process.Pid)

	var timedOut atomic.Bool
	done := make(chan struct{})
	go func() {
		var wallTimer <-chan time.Time
		if runSpec.Limits.WallTime > 0 {
			t := time.NewTimer(runSpec.Limits.WallTime)
			defer t.Stop()
			wallTimer = t.C
		}
		select {
		case <-ctx.Done():
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-wallTimer:
			timedOut.Store(true)
			killProcessGroup(cmd.Process.Pid)
		case <-done:
		}
	}()

	waitErr := cmd.Wait()
	close(done)
	// Reap anything the player left behind in its group.
	killProcessGroup(cmd.Process.Pid)

	out, observed, truncated, markerSeen := stdout.snapshot()
	errOut, _, _, _ := stderr.snapshot()
	res := result.ExecutionResult{
		ExitCode:       exitCodeFromErr(waitErr, cmd.ProcessState),
		Output:         out,
		OutputObserved: observed,
		Truncated:      truncated,
		Duration:       time.Since(start),
		Detail:         string(errOut),
	}
	res.Status, res.Signal = classify(cmd.ProcessState, markerSeen, timedOut.Load())

	if errors.Is(waitErr, exec.ErrWaitDelay) {
		logger.Debug(ctx, "output pipes held open after exit", zap.String("cmd", runSpec.Cmd[0]))
	}
	return res, nil
}

// classify maps the way the process ended to an exit status. A stop marker
// wins over everything else because the engine itself killed the process.
func classify(state *os.ProcessState, markerSeen, timedOut bool) (result.ExitStatus, string) {
	if markerSeen {
		return result.StatusCompleted, ""
	}
	if timedOut {
		return result.StatusTimedOut, ""
	}
	if state == nil {
		return result.StatusCrashed, ""
	}
	if ws, ok := state.Sys().(syscall.WaitStatus); ok && ws.Signaled() {
		return result.StatusCrashed, unix.SignalName(ws.Signal())
	}
	if state.ExitCode() != 0 {
		return result.StatusCrashed, ""
	}
	return result.StatusCompleted, ""
}

func exitCodeFromErr(err error, state *os.ProcessState) int {
	if state != nil {
		return state.ExitCode()
	}
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

func killProcessGroup(pid int) {
	if pid <= 0 {
		return
	}
	_ = unix.Kill(-pid, unix.SIGKILL)
}

func validateRunSpec(runSpec spec.RunSpec) error {
	if len(runSpec.Cmd) == 0 || runSpec.Cmd[0] == "" {
		return appErr.Newf(appErr.LaunchFailed, "command is required")
	}
	if runSpec.WorkDir == "" {
		return appErr.Newf(appErr.WorkDirFailed, "work dir is required")
	}
	return nil
}
