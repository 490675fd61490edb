package campaign

import (
	"sync/atomic"
	"time"
)

// LaneState is where a lane is in its cycle.
type LaneState int32

const (
	StateIdle LaneState = iota
	StateGenerating
	StateExecuting
	StateComparing
	StateFiling
	StateHalted
	StateStopped
)

var laneStateNames = [...]string{"Idle", "Generating", "Executing", "Comparing", "Filing", "Halted", "Stopped"}

func (s LaneState) String() string {
	if int(s) < len(laneStateNames) {
		return laneStateNames[s]
	}
	return "Unknown"
}

func (s LaneState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

type laneStats struct {
	state      atomic.Int32
	iterations atomic.Int64
	haltErr    atomic.Value // string
}

func (l *laneStats) set(s LaneState) { l.state.Store(int32(s)) }

type counters struct {
	iterations   atomic.Int64
	matches      atomic.Int64
	divergences  atomic.Int64
	inconclusive atomic.Int64
	skipped      atomic.Int64
	genFailures  atomic.Int64
	fileErrors   atomic.Int64
	newFailures  atomic.Int64
	duplicates   atomic.Int64
	panics       atomic.Int64
}

// LaneStatus is the externally visible state of one lane.
type LaneStatus struct {
	ID         int       `json:"id"`
	State      LaneState `json:"state"`
	Iterations int64     `json:"iterations"`
	Error      string    `json:"error,omitempty"`
}

// Snapshot is a point-in-time copy of campaign progress.
type Snapshot struct {
	CampaignID         string       `json:"campaign_id"`
	StartedAt          time.Time    `json:"started_at"`
	Uptime             string       `json:"uptime"`
	Iterations         int64        `json:"iterations"`
	ItersPerSecond     float64      `json:"iters_per_second"`
	Matches            int64        `json:"matches"`
	Divergences        int64        `json:"divergences"`
	Inconclusive       int64        `json:"inconclusive"`
	SkippedDuplicates  int64        `json:"skipped_duplicates"`
	GenerationFailures int64        `json:"generation_failures"`
	FileErrors         int64        `json:"file_errors"`
	NewFailures        int64        `json:"new_failures"`
	DuplicateFailures  int64        `json:"duplicate_failures"`
	Panics             int64        `json:"panics"`
	Lanes              []LaneStatus `json:"lanes"`
}
