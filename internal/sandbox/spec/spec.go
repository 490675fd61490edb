// Package spec defines the execution specification and resource limits.
package spec

import "time"

// ResourceLimit describes hard limits enforced by the engine.
type ResourceLimit struct {
	WallTime    time.Duration
	OutputBytes int64
}

// RunSpec is the unified execution specification for one player run.
type RunSpec struct {
	RunID   string
	WorkDir string
	Cmd     []string
	Env     []string
	// StopMarker ends the run early once it appears on stdout; the run then
	// counts as completed even though the process is killed.
	StopMarker []byte
	Limits     ResourceLimit
}
