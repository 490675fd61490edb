// Package engine launches player processes and turns their termination into
// an ExecutionResult.
package engine

import (
	"context"

	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
)

// Engine executes a RunSpec. The returned error is non-nil only when the
// process could not be started; the result then has StatusLaunchFailed.
type Engine interface {
	Run(ctx context.Context, runSpec spec.RunSpec) (result.ExecutionResult, error)
}
