package display

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"
)

const (
	defaultXvfbBinary   = "Xvfb"
	defaultStartTimeout = 10 * time.Second
	socketPollInterval  = 50 * time.Millisecond
)

var defaultXvfbArgs = []string{"-screen", "0", "640x480x24", "-nolisten", "tcp"}

// socketDir is where X servers publish their sockets; lockDir holds the
// .X<N>-lock files naming the owning pid.
var (
	socketDir = "/tmp/.X11-unix"
	lockDir   = "/tmp"
)

// Xvfb runs a private Xvfb server for one lane.
type Xvfb struct {
	binary  string
	number  int
	args    []string
	timeout time.Duration

	mu     sync.Mutex
	cmd    *exec.Cmd
	exited chan struct{}
}

// NewXvfb returns an unstarted Xvfb on display :number.
func NewXvfb(binary string, number int, args []string, timeout time.Duration) *Xvfb {
	if binary == "" {
		binary = defaultXvfbBinary
	}
	if len(args) == 0 {
		args = defaultXvfbArgs
	}
	if timeout <= 0 {
		timeout = defaultStartTimeout
	}
	return &Xvfb{binary: binary, number: number, args: args, timeout: timeout}
}

func (x *Xvfb) name() string {
	return fmt.Sprintf(":%d", x.number)
}

func (x *Xvfb) socketPath() string {
	return fmt.Sprintf("%s/X%d", socketDir, x.number)
}

func (x *Xvfb) lockPath() string {
	return fmt.Sprintf("%s/.X%d-lock", lockDir, x.number)
}

// ownerAlive reports whether the server that left the socket behind still
// runs. A missing lock file or a dead pid means the socket is stale.
func (x *Xvfb) ownerAlive() bool {
	data, err := os.ReadFile(x.lockPath())
	if errors.Is(err, os.ErrNotExist) {
		return false
	}
	if err != nil {
		return true
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return true
	}
	err = unix.Kill(pid, 0)
	return err == nil || errors.Is(err, unix.EPERM)
}

// Start launches the server and waits until its socket accepts lookups.
func (x *Xvfb) Start(ctx context.Context) error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cmd != nil {
		return nil
	}

	if unix.Access(x.socketPath(), unix.F_OK) == nil {
		if x.ownerAlive() {
			return appErr.Newf(appErr.DisplayFailed, "display %s already in use", x.name())
		}
		logger.Warn(ctx, "removing stale display socket", zap.String("display", x.name()))
		_ = os.Remove(x.lockPath())
		if err := os.Remove(x.socketPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
			return appErr.Wrapf(err, appErr.DisplayFailed, "remove stale socket of %s", x.name())
		}
	}

	cmd := exec.Command(x.binary, append([]string{x.name()}, x.args...)...)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if err := cmd.Start(); err != nil {
		return appErr.Wrapf(err, appErr.DisplayFailed, "start %s %s", x.binary, x.name())
	}
	exited := make(chan struct{})
	go func() {
		_ = cmd.Wait()
		close(exited)
	}()

	deadline := time.NewTimer(x.timeout)
	defer deadline.Stop()
	tick := time.NewTicker(socketPollInterval)
	defer tick.Stop()
	for {
		if unix.Access(x.socketPath(), unix.F_OK) == nil {
			x.cmd, x.exited = cmd, exited
			logger.Info(ctx, "virtual display ready", zap.String("display", x.name()), zap.Int("pid", cmd.Process.Pid))
			return nil
		}
		select {
		case <-exited:
			return appErr.Newf(appErr.DisplayFailed, "%s %s exited during startup", x.binary, x.name())
		case <-deadline.C:
			_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
			<-exited
			return appErr.Newf(appErr.DisplayFailed, "display %s not ready after %s", x.name(), x.timeout)
		case <-ctx.Done():
			_ = unix.Kill(-cmd.Process.Pid, unix.SIGKILL)
			<-exited
			return appErr.Wrap(ctx.Err(), appErr.DisplayFailed)
		case <-tick.C:
		}
	}
}

// Stop terminates the server, escalating to SIGKILL after a grace period.
func (x *Xvfb) Stop() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.cmd == nil {
		return nil
	}
	pid := x.cmd.Process.Pid
	if err := unix.Kill(-pid, unix.SIGTERM); err != nil && !errors.Is(err, unix.ESRCH) {
		return appErr.Wrapf(err, appErr.DisplayFailed, "stop display %s", x.name())
	}
	select {
	case <-x.exited:
	case <-time.After(2 * time.Second):
		_ = unix.Kill(-pid, unix.SIGKILL)
		<-x.exited
	}
	x.cmd, x.exited = nil, nil
	// Xvfb removes its socket on clean exit; a killed server leaves it behind.
	_ = os.Remove(x.socketPath())
	return nil
}

// Healthy fails once the server has exited, whether it crashed or was stopped.
func (x *Xvfb) Healthy() error {
	x.mu.Lock()
	exited := x.exited
	x.mu.Unlock()
	if exited == nil {
		return appErr.Newf(appErr.DisplayFailed, "display %s not running", x.name())
	}
	select {
	case <-exited:
		return appErr.Newf(appErr.DisplayFailed, "%s %s exited", x.binary, x.name())
	default:
		return nil
	}
}

func (x *Xvfb) Env() []string {
	return []string{"DISPLAY=" + x.name()}
}
