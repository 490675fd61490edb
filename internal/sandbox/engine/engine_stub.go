//go:build !linux

package engine

import (
	"context"

	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/sandbox/spec"
	appErr "swfdiff/pkg/errors"
)

type stubEngine struct{}

// NewEngine returns an engine that refuses to run outside linux.
func NewEngine(cfg Config) Engine {
	return &stubEngine{}
}

func (s *stubEngine) Run(ctx context.Context, runSpec spec.RunSpec) (result.ExecutionResult, error) {
	err := appErr.Newf(appErr.LaunchFailed, "process engine is only supported on linux")
	return result.LaunchFailure(err), err
}
