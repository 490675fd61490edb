// Package result defines the outcome of one execution of a player.
package result

import (
	"strconv"
	"time"
)

// ExitStatus classifies how a run ended.
type ExitStatus string

const (
	StatusCompleted    ExitStatus = "Completed"
	StatusTimedOut     ExitStatus = "TimedOut"
	StatusCrashed      ExitStatus = "Crashed"
	StatusLaunchFailed ExitStatus = "LaunchFailed"
)

// ExecutionResult captures raw execution data for one input.
type ExecutionResult struct {
	Status   ExitStatus
	ExitCode int
	Signal   string // e.g. SIGSEGV when the process died from a signal
	Output   []byte
	// OutputObserved is false when the output channel never delivered
	// anything, as opposed to delivering an empty trace.
	OutputObserved bool
	Truncated      bool
	Duration       time.Duration
	Detail         string
}

// LaunchFailure builds the result for a run that never started.
func LaunchFailure(err error) ExecutionResult {
	r := ExecutionResult{Status: StatusLaunchFailed, ExitCode: -1}
	if err != nil {
		r.Detail = err.Error()
	}
	return r
}

// Describe renders the status with its exit details for logs and reports.
func (r ExecutionResult) Describe() string {
	switch r.Status {
	case StatusCrashed:
		if r.Signal != "" {
			return string(r.Status) + " (" + r.Signal + ")"
		}
		return string(r.Status) + " (exit " + strconv.Itoa(r.ExitCode) + ")"
	case StatusLaunchFailed:
		if r.Detail != "" {
			return string(r.Status) + ": " + r.Detail
		}
	}
	return string(r.Status)
}
