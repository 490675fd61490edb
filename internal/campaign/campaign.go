package campaign

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"swfdiff/internal/compare"
	"swfdiff/internal/generator"
	"swfdiff/internal/sandbox/result"
	"swfdiff/internal/store"
	appErr "swfdiff/pkg/errors"
	"swfdiff/pkg/utils/contextkey"
	"swfdiff/pkg/utils/logger"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

// Runner executes one SWF and reports how it went. Both the native and the
// oracle runners satisfy it.
type Runner interface {
	Run(ctx context.Context, swf []byte) result.ExecutionResult
}

// Comparer classifies a native/oracle pair.
type Comparer interface {
	Compare(native, oracle result.ExecutionResult) compare.Verdict
}

// Filer persists divergent cases.
type Filer interface {
	File(ctx context.Context, c store.Case) (store.Outcome, error)
}

// LaneEnv is what one lane owns: its runners and whatever must be released
// when the lane ends. Healthy, when set, reports infrastructure the runners
// depend on; once it fails the lane halts.
type LaneEnv struct {
	Native  Runner
	Oracle  Runner
	Healthy func() error
	Close   func() error
}

func (e LaneEnv) healthy() error {
	if e.Healthy == nil {
		return nil
	}
	if err := e.Healthy(); err != nil {
		return appErr.Wrap(err, appErr.DisplayFailed)
	}
	return nil
}

// LaneBuilder prepares the environment of a lane, starting its display.
// An error halts that lane only.
type LaneBuilder interface {
	Build(ctx context.Context, lane int, workDir string) (LaneEnv, error)
}

// LaneBuilderFunc adapts a function to LaneBuilder.
type LaneBuilderFunc func(ctx context.Context, lane int, workDir string) (LaneEnv, error)

func (f LaneBuilderFunc) Build(ctx context.Context, lane int, workDir string) (LaneEnv, error) {
	return f(ctx, lane, workDir)
}

// Campaign runs a fixed pool of lanes over a shared store.
type Campaign struct {
	cfg     Config
	builder LaneBuilder
	cmp     Comparer
	filer   Filer
	metrics *Metrics

	seen    *seenSet
	limiter *rate.Limiter
	claimed atomic.Int64

	stats     counters
	lanes     []*laneStats
	startedAt atomic.Int64 // unix nanos, zero before Run
	runOnce   sync.Once
}

// New validates cfg and wires the campaign. metrics may be nil.
func New(cfg Config, builder LaneBuilder, cmp Comparer, filer Filer, metrics *Metrics) (*Campaign, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if builder == nil || cmp == nil || filer == nil {
		return nil, appErr.New(appErr.InvalidParams).WithMessage("lane builder, comparer and filer are required")
	}
	c := &Campaign{
		cfg:     cfg,
		builder: builder,
		cmp:     cmp,
		filer:   filer,
		metrics: metrics,
		lanes:   make([]*laneStats, cfg.Lanes),
	}
	for i := range c.lanes {
		c.lanes[i] = &laneStats{}
	}
	if cfg.SeenCacheSize > 0 {
		c.seen = newSeenSet(cfg.SeenCacheSize)
	}
	if cfg.MaxRunsPerSecond > 0 {
		burst := int(cfg.MaxRunsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.MaxRunsPerSecond), burst)
	}
	return c, nil
}

// ID returns the campaign id.
func (c *Campaign) ID() string { return c.cfg.ID }

// Run drives every lane until the budget is spent or ctx is cancelled. A
// cancelled ctx lets each lane finish the cycle it is in. Run fails only
// when every lane halted on an infrastructure error.
func (c *Campaign) Run(ctx context.Context) error {
	started := false
	c.runOnce.Do(func() { started = true })
	if !started {
		return appErr.New(appErr.CampaignHalted).WithMessage("campaign already ran")
	}
	c.startedAt.Store(time.Now().UnixNano())
	ctx = context.WithValue(ctx, contextkey.CampaignID, c.cfg.ID)
	logger.Info(ctx, "campaign starting",
		zap.Int("lanes", c.cfg.Lanes),
		zap.Int64("budget", c.cfg.Budget),
		zap.Uint64("base_seed", c.cfg.BaseSeed),
		zap.Duration("run_timeout", c.cfg.RunTimeout),
	)

	reporterDone := make(chan struct{})
	stopReporter := make(chan struct{})
	go func() {
		defer close(reporterDone)
		c.report(ctx, stopReporter)
	}()

	var (
		g      errgroup.Group
		halted atomic.Int32
	)
	for lane := 0; lane < c.cfg.Lanes; lane++ {
		g.Go(func() error {
			if err := c.runLane(ctx, lane); err != nil {
				halted.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()
	close(stopReporter)
	<-reporterDone

	snap := c.Snapshot()
	logger.Info(ctx, "campaign finished",
		zap.Int64("iterations", snap.Iterations),
		zap.Int64("divergences", snap.Divergences),
		zap.Int64("new_failures", snap.NewFailures),
		zap.Int64("duplicates", snap.DuplicateFailures),
		zap.Int32("halted_lanes", halted.Load()),
	)
	if int(halted.Load()) == c.cfg.Lanes {
		return appErr.Newf(appErr.CampaignHalted, "all %d lanes halted", c.cfg.Lanes)
	}
	return nil
}

func (c *Campaign) runLane(ctx context.Context, lane int) error {
	stats := c.lanes[lane]
	ctx = context.WithValue(ctx, contextkey.LaneID, lane)

	workDir := filepath.Join(c.cfg.WorkRoot, c.cfg.ID, fmt.Sprintf("lane-%d", lane))
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return c.halt(ctx, stats, appErr.Wrapf(err, appErr.WorkDirFailed, "create %s", workDir))
	}
	defer os.RemoveAll(workDir)

	env, err := c.builder.Build(ctx, lane, workDir)
	if err != nil {
		return c.halt(ctx, stats, err)
	}
	defer func() {
		if env.Close == nil {
			return
		}
		if err := env.Close(); err != nil {
			logger.Warn(ctx, "lane teardown failed", zap.Error(err))
		}
	}()

	c.metrics.laneUp(1)
	defer c.metrics.laneUp(-1)
	defer func() {
		if LaneState(stats.state.Load()) != StateHalted {
			stats.set(StateStopped)
		}
	}()

	for iteration := uint64(0); ; iteration++ {
		if err := env.healthy(); err != nil {
			return c.halt(ctx, stats, err)
		}
		if ctx.Err() != nil || !c.claim() {
			return nil
		}
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil
			}
		}
		if err := c.cycle(ctx, stats, env, LaneSeed(c.cfg.BaseSeed, lane, iteration)); err != nil {
			return c.halt(ctx, stats, err)
		}
		stats.iterations.Add(1)
		c.stats.iterations.Add(1)
		stats.set(StateIdle)
	}
}

func (c *Campaign) halt(ctx context.Context, stats *laneStats, err error) error {
	stats.set(StateHalted)
	stats.haltErr.Store(err.Error())
	logger.Error(ctx, "lane halted", zap.Error(err))
	return appErr.Wrap(err, appErr.LaneHalted)
}

// claim reserves one cycle of the budget.
func (c *Campaign) claim() bool {
	if c.cfg.Budget == 0 {
		return true
	}
	return c.claimed.Add(1) <= c.cfg.Budget
}

// cycle runs generate, execute, compare and file for one seed. Only a failed
// health check escapes; the pair it produced is discarded unfiled.
func (c *Campaign) cycle(ctx context.Context, stats *laneStats, env LaneEnv, seed generator.Seed) (err error) {
	ctx = context.WithValue(ctx, contextkey.Seed, uint64(seed))
	defer func() {
		if p := recover(); p != nil {
			c.stats.panics.Add(1)
			c.metrics.cycle("panic")
			logger.Error(ctx, "cycle panicked", zap.Any("panic", p), zap.Stack("stack"))
			err = nil
		}
	}()

	stats.set(StateGenerating)
	sample, err := generator.Generate(seed, c.cfg.Generator)
	if err != nil {
		c.stats.genFailures.Add(1)
		c.metrics.cycle("generation_failed")
		logger.Warn(ctx, "generation failed", zap.Error(err))
		return nil
	}
	if c.seen != nil && !c.seen.Add(sample.Bytes) {
		c.stats.skipped.Add(1)
		c.metrics.cycle("skipped")
		return nil
	}

	// Runs and filing outlive a stop request; the deadline still bounds them.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.RunTimeout+filingGrace)
	defer cancel()

	stats.set(StateExecuting)
	var native, oracle result.ExecutionResult
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		native = c.guardedRun(runCtx, "native", env.Native, sample.Bytes)
	}()
	go func() {
		defer wg.Done()
		oracle = c.guardedRun(runCtx, "oracle", env.Oracle, sample.Bytes)
	}()
	wg.Wait()
	if err := env.healthy(); err != nil {
		c.metrics.cycle("infrastructure_failed")
		return err
	}

	stats.set(StateComparing)
	verdict := c.cmp.Compare(native, oracle)
	c.metrics.verdict(verdict)
	switch verdict.Kind {
	case compare.KindMatch:
		c.stats.matches.Add(1)
	case compare.KindInconclusive:
		c.stats.inconclusive.Add(1)
		logger.Debug(ctx, "inconclusive run",
			zap.String("verdict", verdict.String()),
			zap.String("native", native.Describe()),
			zap.String("oracle", oracle.Describe()),
		)
	case compare.KindDiverge:
		c.stats.divergences.Add(1)
	}
	if !verdict.IsFailure() {
		c.metrics.cycle("completed")
		return nil
	}

	stats.set(StateFiling)
	out, ferr := c.filer.File(runCtx, store.Case{
		Seed:    uint64(seed),
		SWF:     sample.Bytes,
		Native:  native,
		Oracle:  oracle,
		Verdict: verdict,
	})
	if ferr != nil {
		c.stats.fileErrors.Add(1)
		c.metrics.cycle("file_failed")
		logger.Error(ctx, "filing failed", zap.String("verdict", verdict.String()), zap.Error(ferr))
		return nil
	}
	c.metrics.cycle("completed")
	c.metrics.filedFailure(out.New)
	if out.New {
		c.stats.newFailures.Add(1)
	} else {
		c.stats.duplicates.Add(1)
	}
	logger.Debug(ctx, "divergence filed",
		zap.String("verdict", verdict.String()),
		zap.String("fingerprint", out.Record.Fingerprint),
		zap.Bool("new", out.New),
	)
	return nil
}

// guardedRun turns a panic in harness code into a LaunchFailed result so the
// pair is reported as inconclusive rather than as a divergence.
func (c *Campaign) guardedRun(ctx context.Context, side string, r Runner, swf []byte) (res result.ExecutionResult) {
	defer func() {
		if p := recover(); p != nil {
			c.stats.panics.Add(1)
			logger.Error(ctx, "runner panicked", zap.String("side", side), zap.Any("panic", p), zap.Stack("stack"))
			res = result.LaunchFailure(fmt.Errorf("%s runner panic: %v", side, p))
		}
	}()
	res = r.Run(ctx, swf)
	c.metrics.run(side, res.Duration)
	return res
}

// Snapshot returns current progress.
func (c *Campaign) Snapshot() Snapshot {
	s := Snapshot{
		CampaignID:         c.cfg.ID,
		Iterations:         c.stats.iterations.Load(),
		Matches:            c.stats.matches.Load(),
		Divergences:        c.stats.divergences.Load(),
		Inconclusive:       c.stats.inconclusive.Load(),
		SkippedDuplicates:  c.stats.skipped.Load(),
		GenerationFailures: c.stats.genFailures.Load(),
		FileErrors:         c.stats.fileErrors.Load(),
		NewFailures:        c.stats.newFailures.Load(),
		DuplicateFailures:  c.stats.duplicates.Load(),
		Panics:             c.stats.panics.Load(),
		Lanes:              make([]LaneStatus, len(c.lanes)),
	}
	if ns := c.startedAt.Load(); ns != 0 {
		s.StartedAt = time.Unix(0, ns)
		up := time.Since(s.StartedAt)
		s.Uptime = up.Round(time.Second).String()
		if secs := up.Seconds(); secs > 0 {
			s.ItersPerSecond = float64(s.Iterations) / secs
		}
	}
	for i, l := range c.lanes {
		s.Lanes[i] = LaneStatus{
			ID:         i,
			State:      LaneState(l.state.Load()),
			Iterations: l.iterations.Load(),
		}
		if msg, ok := l.haltErr.Load().(string); ok {
			s.Lanes[i].Error = msg
		}
	}
	return s
}

// report logs progress every StatsInterval until stop is closed.
func (c *Campaign) report(ctx context.Context, stop <-chan struct{}) {
	if c.cfg.StatsInterval <= 0 {
		<-stop
		return
	}
	ticker := time.NewTicker(c.cfg.StatsInterval)
	defer ticker.Stop()

	last := c.stats.iterations.Load()
	lastAt := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			iters := c.stats.iterations.Load()
			perSec := float64(iters-last) / now.Sub(lastAt).Seconds()
			last, lastAt = iters, now
			logger.Info(ctx, "campaign progress",
				zap.Int64("iterations", iters),
				zap.Float64("iters_per_sec", perSec),
				zap.Int64("divergences", c.stats.divergences.Load()),
				zap.Int64("new_failures", c.stats.newFailures.Load()),
				zap.Int64("inconclusive", c.stats.inconclusive.Load()),
			)
		}
	}
}
