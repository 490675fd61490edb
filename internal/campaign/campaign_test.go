package campaign

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"swfdiff/internal/compare"
	"swfdiff/internal/generator"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/store"
	appErr "swfdiff/pkg/errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixedRunner struct {
	status result.ExitStatus
	out    string
	calls  atomic.Int64
}

func (r *fixedRunner) Run(ctx context.Context, swf []byte) result.ExecutionResult {
	r.calls.Add(1)
	return result.ExecutionResult{Status: r.status, Output: []byte(r.out), OutputObserved: true, Duration: time.Millisecond}
}

type runnerFunc func(ctx context.Context, swf []byte) result.ExecutionResult

func (f runnerFunc) Run(ctx context.Context, swf []byte) result.ExecutionResult { return f(ctx, swf) }

type recordingFiler struct {
	mu    sync.Mutex
	cases []store.Case
	err   error
	panic bool
}

func (f *recordingFiler) File(ctx context.Context, c store.Case) (store.Outcome, error) {
	if f.panic {
		panic("filer exploded")
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cases = append(f.cases, c)
	if f.err != nil {
		return store.Outcome{}, f.err
	}
	return store.Outcome{New: len(f.cases) == 1}, nil
}

func testConfig(t *testing.T, lanes int, budget int64) Config {
	return Config{
		ID:            "test",
		Lanes:         lanes,
		Budget:        budget,
		RunTimeout:    5 * time.Second,
		BaseSeed:      1,
		WorkRoot:      t.TempDir(),
		StatsInterval: time.Hour,
		SeenCacheSize: -1,
		Generator:     generator.DefaultConfig(),
	}
}

func comparator(t *testing.T) *compare.Comparator {
	t.Helper()
	cmp, err := compare.New(compare.Config{})
	require.NoError(t, err)
	return cmp
}

func staticBuilder(native, oracle Runner, closed *atomic.Int64) LaneBuilder {
	return LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
		return LaneEnv{
			Native: native,
			Oracle: oracle,
			Close: func() error {
				if closed != nil {
					closed.Add(1)
				}
				return nil
			},
		}, nil
	})
}

func TestRunStopsAtBudget(t *testing.T) {
	native := &fixedRunner{status: result.StatusCompleted, out: "same\n"}
	oracle := &fixedRunner{status: result.StatusCompleted, out: "same\n"}
	var closed atomic.Int64
	filer := &recordingFiler{}
	reg := prometheus.NewRegistry()

	c, err := New(testConfig(t, 3, 20), staticBuilder(native, oracle, &closed), comparator(t), filer, NewMetrics(reg))
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, int64(20), snap.Iterations)
	assert.Equal(t, int64(20), snap.Matches)
	assert.Equal(t, native.calls.Load(), oracle.calls.Load())
	assert.Empty(t, filer.cases)
	assert.Equal(t, int64(3), closed.Load())
	for _, l := range snap.Lanes {
		assert.Equal(t, StateStopped, l.State)
	}
	assert.Equal(t, float64(snap.Matches), testutil.ToFloat64(c.metrics.verdicts.WithLabelValues("Match", "")))
	assert.Equal(t, float64(0), testutil.ToFloat64(c.metrics.lanesActive))
}

func TestDivergenceIsFiled(t *testing.T) {
	native := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	oracle := &fixedRunner{status: result.StatusCrashed, out: "a\n"}
	filer := &recordingFiler{}

	c, err := New(testConfig(t, 1, 3), staticBuilder(native, oracle, nil), comparator(t), filer, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	require.Len(t, filer.cases, 3)
	for i, fc := range filer.cases {
		assert.Equal(t, compare.Verdict{Kind: compare.KindDiverge, Reason: compare.ReasonCrashMismatch}, fc.Verdict)
		assert.Equal(t, uint64(LaneSeed(1, 0, uint64(i))), fc.Seed)
		assert.NotEmpty(t, fc.SWF)
	}
	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Divergences)
	assert.Equal(t, int64(1), snap.NewFailures)
	assert.Equal(t, int64(2), snap.DuplicateFailures)
}

func TestFilingErrorsDoNotStopTheLane(t *testing.T) {
	native := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	oracle := &fixedRunner{status: result.StatusCompleted, out: "b\n"}
	filer := &recordingFiler{err: appErr.New(appErr.StorageError)}

	c, err := New(testConfig(t, 1, 4), staticBuilder(native, oracle, nil), comparator(t), filer, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, int64(4), c.Snapshot().FileErrors)
	assert.Equal(t, int64(4), c.Snapshot().Iterations)
}

func TestInfrastructureFailureHaltsOnlyThatLane(t *testing.T) {
	ok := &fixedRunner{status: result.StatusCompleted, out: "x\n"}
	builder := LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
		if lane == 1 {
			return LaneEnv{}, appErr.Newf(appErr.DisplayFailed, "display :101 did not come up")
		}
		return LaneEnv{Native: ok, Oracle: ok}, nil
	})

	c, err := New(testConfig(t, 3, 12), builder, comparator(t), &recordingFiler{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))

	snap := c.Snapshot()
	assert.Equal(t, int64(12), snap.Iterations)
	assert.Equal(t, StateHalted, snap.Lanes[1].State)
	assert.Contains(t, snap.Lanes[1].Error, "display :101")
	assert.Zero(t, snap.Lanes[1].Iterations)
}

func TestDisplayLossHaltsLaneWithoutFiling(t *testing.T) {
	native := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	var displayDead atomic.Bool
	var oracleCalls atomic.Int64
	oracle := runnerFunc(func(ctx context.Context, swf []byte) result.ExecutionResult {
		if oracleCalls.Add(1) == 3 {
			// The X server dies mid-run and the projector exits non-zero.
			displayDead.Store(true)
			return result.ExecutionResult{Status: result.StatusCrashed, ExitCode: 1}
		}
		return result.ExecutionResult{Status: result.StatusCompleted, Output: []byte("a\n"), OutputObserved: true}
	})
	builder := LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
		return LaneEnv{
			Native: native,
			Oracle: oracle,
			Healthy: func() error {
				if displayDead.Load() {
					return appErr.Newf(appErr.DisplayFailed, "Xvfb :100 exited")
				}
				return nil
			},
		}, nil
	})
	filer := &recordingFiler{}

	c, err := New(testConfig(t, 1, 0), builder, comparator(t), filer, nil)
	require.NoError(t, err)
	err = c.Run(context.Background())
	assert.True(t, appErr.Is(err, appErr.CampaignHalted))

	snap := c.Snapshot()
	assert.Equal(t, StateHalted, snap.Lanes[0].State)
	assert.Contains(t, snap.Lanes[0].Error, "Xvfb :100 exited")
	assert.Equal(t, int64(2), snap.Iterations)
	assert.Equal(t, int64(3), oracleCalls.Load())
	assert.Zero(t, snap.Divergences)
	assert.Empty(t, filer.cases)
}

func TestUnhealthyLaneNeverRuns(t *testing.T) {
	native := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	oracle := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	builder := LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
		return LaneEnv{
			Native:  native,
			Oracle:  oracle,
			Healthy: func() error { return errors.New("display gone") },
		}, nil
	})
	c, err := New(testConfig(t, 1, 5), builder, comparator(t), &recordingFiler{}, nil)
	require.NoError(t, err)
	require.Error(t, c.Run(context.Background()))
	assert.Zero(t, native.calls.Load())
	assert.Equal(t, StateHalted, c.Snapshot().Lanes[0].State)
}

func TestAllLanesHaltedFailsTheCampaign(t *testing.T) {
	builder := LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
		return LaneEnv{}, appErr.New(appErr.DisplayFailed)
	})
	c, err := New(testConfig(t, 2, 0), builder, comparator(t), &recordingFiler{}, nil)
	require.NoError(t, err)
	err = c.Run(context.Background())
	assert.True(t, appErr.Is(err, appErr.CampaignHalted))
}

func TestStopLetsInFlightCycleFinish(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	var sawCancel atomic.Bool
	oracle := runnerFunc(func(ctx context.Context, swf []byte) result.ExecutionResult {
		once.Do(func() { close(started) })
		<-release
		if ctx.Err() != nil {
			sawCancel.Store(true)
		}
		return result.ExecutionResult{Status: result.StatusCompleted, Output: []byte("b\n")}
	})
	native := &fixedRunner{status: result.StatusCompleted, out: "a\n"}
	filer := &recordingFiler{}

	c, err := New(testConfig(t, 1, 0), staticBuilder(native, oracle, nil), comparator(t), filer, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	<-started
	cancel()
	close(release)

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("campaign did not stop")
	}
	assert.False(t, sawCancel.Load(), "runner context must survive the stop signal")
	assert.Equal(t, int64(1), c.Snapshot().Iterations)
	require.Len(t, filer.cases, 1, "the in-flight divergence is still filed")
}

func TestPanicsAreContained(t *testing.T) {
	boom := runnerFunc(func(ctx context.Context, swf []byte) result.ExecutionResult {
		panic("interpreter bug")
	})
	ok := &fixedRunner{status: result.StatusCompleted, out: "x\n"}

	c, err := New(testConfig(t, 1, 3), staticBuilder(boom, ok, nil), comparator(t), &recordingFiler{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	snap := c.Snapshot()
	assert.Equal(t, int64(3), snap.Iterations)
	assert.Equal(t, int64(3), snap.Panics)
	assert.Equal(t, int64(3), snap.Inconclusive)

	diverging := &fixedRunner{status: result.StatusCompleted, out: "y\n"}
	c, err = New(testConfig(t, 1, 2), staticBuilder(ok, diverging, nil), comparator(t), &recordingFiler{panic: true}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	assert.Equal(t, int64(2), c.Snapshot().Panics)
	assert.Equal(t, int64(2), c.Snapshot().Iterations)
}

func TestRunOnlyOnce(t *testing.T) {
	ok := &fixedRunner{status: result.StatusCompleted}
	c, err := New(testConfig(t, 1, 1), staticBuilder(ok, ok, nil), comparator(t), &recordingFiler{}, nil)
	require.NoError(t, err)
	require.NoError(t, c.Run(context.Background()))
	assert.Error(t, c.Run(context.Background()))
}

func TestNewValidates(t *testing.T) {
	ok := &fixedRunner{}
	b := staticBuilder(ok, ok, nil)

	cfg := testConfig(t, 1, 0)
	cfg.Budget = -1
	_, err := New(cfg, b, comparator(t), &recordingFiler{}, nil)
	assert.True(t, appErr.Is(err, appErr.ConfigInvalid))

	cfg = testConfig(t, 1, 0)
	cfg.Generator.VersionMin = 0
	_, err = New(cfg, b, comparator(t), &recordingFiler{}, nil)
	assert.True(t, appErr.Is(err, appErr.ConfigInvalid))

	_, err = New(testConfig(t, 1, 0), nil, comparator(t), &recordingFiler{}, nil)
	assert.Error(t, err)
}

func TestLaneSeed(t *testing.T) {
	seen := map[generator.Seed]bool{}
	for lane := 0; lane < 4; lane++ {
		for it := uint64(0); it < 256; it++ {
			s := LaneSeed(7, lane, it)
			require.False(t, seen[s], "lane %d iteration %d repeats a seed", lane, it)
			seen[s] = true
		}
	}
	assert.Equal(t, LaneSeed(7, 2, 9), LaneSeed(7, 2, 9))
	assert.NotEqual(t, LaneSeed(7, 0, 0), LaneSeed(8, 0, 0))
}

func TestSeenSet(t *testing.T) {
	s := newSeenSet(2)
	assert.True(t, s.Add([]byte("a")))
	assert.False(t, s.Add([]byte("a")))
	assert.True(t, s.Add([]byte("b")))
	// touching "a" leaves "b" as the oldest entry
	assert.False(t, s.Add([]byte("a")))
	assert.True(t, s.Add([]byte("c")))
	assert.Equal(t, 2, s.Len())
	assert.True(t, s.Add([]byte("b")), "b was evicted")
}

func TestLaneStateString(t *testing.T) {
	assert.Equal(t, "Executing", StateExecuting.String())
	assert.Equal(t, "Unknown", LaneState(99).String())
	text, err := StateFiling.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "Filing", string(text))
}
