package native

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"swfdiff/internal/native/avm1vm"
	"swfdiff/internal/sandbox/result"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
)

// Interpreter executes a SWF in the current process. Output may be returned
// together with an error when the run stopped part way.
type Interpreter interface {
	Execute(ctx context.Context, swf []byte) ([]byte, error)
}

// AVM1Interpreter adapts the built-in evaluator.
type AVM1Interpreter struct {
	MaxSteps  int
	MaxOutput int
}

func (a AVM1Interpreter) Execute(ctx context.Context, swf []byte) ([]byte, error) {
	res, err := avm1vm.Execute(ctx, swf, avm1vm.Options{MaxSteps: a.MaxSteps, MaxOutput: a.MaxOutput})
	if res == nil {
		return nil, err
	}
	return res.Output, err
}

// InProcess runs an Interpreter behind a fault boundary: panics become
// crashes and a run that outlives its timeout is abandoned.
type InProcess struct {
	interp  Interpreter
	timeout time.Duration
}

// NewInProcess wraps interp.
func NewInProcess(cfg Config, interp Interpreter) *InProcess {
	cfg = cfg.WithDefaults()
	return &InProcess{interp: interp, timeout: cfg.Timeout}
}

type outcome struct {
	out   []byte
	err   error
	panic string
}

func (r *InProcess) Run(ctx context.Context, swf []byte) result.ExecutionResult {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	start := time.Now()
	// Buffered so an abandoned run can still deliver and exit.
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if p := recover(); p != nil {
				done <- outcome{panic: fmt.Sprintf("panic: %v\n%s", p, debug.Stack())}
			}
		}()
		out, err := r.interp.Execute(ctx, swf)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		res := classifyOutcome(o)
		res.Duration = time.Since(start)
		if res.Status == result.StatusLaunchFailed {
			logger.Debug(ctx, "native interpreter rejected input", zap.String("detail", res.Detail))
		}
		return res
	case <-ctx.Done():
		return result.ExecutionResult{
			Status:   result.StatusTimedOut,
			ExitCode: -1,
			Duration: time.Since(start),
			Detail:   ctx.Err().Error(),
		}
	}
}

func classifyOutcome(o outcome) result.ExecutionResult {
	res := result.ExecutionResult{Output: o.out, OutputObserved: true}
	switch {
	case o.panic != "":
		res.Status, res.ExitCode, res.Signal, res.Detail = result.StatusCrashed, -1, "panic", o.panic
	case o.err == nil:
		res.Status = result.StatusCompleted
	case errors.Is(o.err, context.DeadlineExceeded), errors.Is(o.err, context.Canceled), appErr.Is(o.err, appErr.Timeout):
		res.Status, res.ExitCode, res.Detail = result.StatusTimedOut, -1, o.err.Error()
	case appErr.Is(o.err, appErr.ActionUnsupported), appErr.Is(o.err, appErr.InvalidSWF):
		res.Status, res.ExitCode, res.Detail = result.StatusLaunchFailed, -1, o.err.Error()
	default:
		res.Status, res.ExitCode, res.Detail = result.StatusCrashed, 1, o.err.Error()
	}
	return res
}
