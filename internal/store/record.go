// Package store persists divergent cases, deduplicated by fingerprint.
package store

import (
	"time"

	"swfdiff/internal/compare"
	"swfdiff/internal/sandbox/result"
)

// Artifact names written once per fingerprint.
const (
	ArtifactSWF    = "out.swf"
	ArtifactNative = "native.txt"
	ArtifactOracle = "oracle.txt"
	ArtifactDiff   = "diff.txt"
)

// Artifacts lists every artifact in the order they are written. out.swf goes
// last: once it exists the set is complete.
var Artifacts = []string{ArtifactNative, ArtifactOracle, ArtifactDiff, ArtifactSWF}

// Case is one divergent comparison handed to the store.
type Case struct {
	Seed    uint64
	SWF     []byte
	Native  result.ExecutionResult
	Oracle  result.ExecutionResult
	Verdict compare.Verdict
}

// FailureRecord is the durable summary of one fingerprint. Everything but
// Duplicates and LastSeen is fixed when the record is created. Duplicates
// counts every observation, the first one included.
type FailureRecord struct {
	Fingerprint  string    `json:"fingerprint"`
	Reason       string    `json:"reason"`
	Seed         uint64    `json:"seed"`
	SWFSize      int       `json:"swf_size"`
	NativeStatus string    `json:"native_status"`
	OracleStatus string    `json:"oracle_status"`
	FirstSeen    time.Time `json:"first_seen"`
	LastSeen     time.Time `json:"last_seen"`
	Duplicates   int64     `json:"duplicates"`
}

// Outcome reports what filing a case did.
type Outcome struct {
	Record FailureRecord
	New    bool
}

// Counters are the store's running totals for this process.
type Counters struct {
	NewFailures int64 `json:"new_failures"`
	Duplicates  int64 `json:"duplicates"`
}
