package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"swfdiff/internal/campaign"
	"swfdiff/internal/compare"
	"swfdiff/internal/generator"
	"swfdiff/internal/native"
	"swfdiff/internal/oracle"
	"swfdiff/internal/sandbox/display"
	"swfdiff/internal/sandbox/engine"
	"swfdiff/internal/statusapi"
	"swfdiff/pkg/utils/logger"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
)

const defaultConfigPath = "configs/swfdiff.yaml"

const usage = `usage: swfdiff [-config path] <command> [flags]

commands:
  run        run a fuzzing campaign until the budget is spent or a signal arrives
  generate   write the document for one seed (-seed N -out file.swf)
  recheck    replay stored failures through the native runner
  list       print stored failures, newest first
`

func main() {
	os.Exit(realMain(os.Args[1:], os.Stdout, os.Stderr))
}

func realMain(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("swfdiff", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", defaultConfigPath, "Path to config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}
	command, rest := fs.Arg(0), fs.Args()[1:]

	appCfg, err := loadAppConfig(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load app config failed: %v\n", err)
		return 1
	}
	if err := logger.Init(appCfg.Logger); err != nil {
		fmt.Fprintf(stderr, "init logger failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch command {
	case "run":
		err = runCampaign(ctx, appCfg)
	case "generate":
		err = runGenerate(appCfg, rest, stdout, stderr)
	case "recheck":
		err = runRecheck(ctx, appCfg, stdout)
	case "list":
		err = runList(ctx, appCfg, rest, stdout, stderr)
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n", command)
		fs.Usage()
		return 2
	}
	if err != nil {
		logger.Error(context.Background(), command+" failed", zap.Error(err))
		return 1
	}
	return 0
}

func runCampaign(ctx context.Context, appCfg *AppConfig) error {
	gen, err := appCfg.toGeneratorConfig()
	if err != nil {
		return err
	}
	campaignCfg := appCfg.toCampaignConfig(gen)
	oracleCfg := appCfg.Oracle.WithDefaults()
	if err := oracleCfg.Validate(); err != nil {
		return err
	}
	nativeCfg := appCfg.Native.WithDefaults()
	if err := nativeCfg.Validate(); err != nil {
		return err
	}
	cmp, err := compare.New(appCfg.Compare)
	if err != nil {
		return err
	}

	failures, closeStore, err := buildStore(ctx, appCfg, cmp)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics := campaign.NewMetrics(registry)

	eng := engine.NewEngine(engine.Config{StdoutMaxBytes: oracleCfg.OutputMaxBytes})
	builder := campaign.LaneBuilderFunc(func(ctx context.Context, lane int, workDir string) (campaign.LaneEnv, error) {
		return buildLane(ctx, appCfg.Display, oracleCfg, nativeCfg, eng, lane, workDir)
	})

	c, err := campaign.New(campaignCfg, builder, cmp, failures, metrics)
	if err != nil {
		return err
	}

	var server *statusapi.Server
	if appCfg.Status.Addr != "" {
		server = statusapi.New(appCfg.Status, c, failures, registry)
		go func() {
			if err := server.Start(); err != nil {
				logger.Error(context.Background(), "status api stopped", zap.Error(err))
			}
		}()
	}

	runErr := c.Run(ctx)
	if ctx.Err() != nil {
		logger.Info(context.Background(), "shutdown signal received")
	}

	if server != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error(context.Background(), "status api shutdown failed", zap.Error(err))
		}
	}
	return runErr
}

// buildLane starts the lane's display and the two runners that share it.
func buildLane(ctx context.Context, dispCfg display.Config, oracleCfg oracle.Config, nativeCfg native.Config, eng engine.Engine, lane int, workDir string) (campaign.LaneEnv, error) {
	disp, err := display.New(dispCfg, lane)
	if err != nil {
		return campaign.LaneEnv{}, err
	}
	if err := disp.Start(ctx); err != nil {
		return campaign.LaneEnv{}, err
	}
	oracleRunner, err := oracle.NewRunner(oracleCfg, eng, disp, filepath.Join(workDir, "oracle"))
	if err != nil {
		_ = disp.Stop()
		return campaign.LaneEnv{}, err
	}
	nativeRunner, err := native.New(nativeCfg, eng, filepath.Join(workDir, "native"))
	if err != nil {
		_ = disp.Stop()
		return campaign.LaneEnv{}, err
	}
	return campaign.LaneEnv{Native: nativeRunner, Oracle: oracleRunner, Healthy: disp.Healthy, Close: disp.Stop}, nil
}

func runGenerate(appCfg *AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	fs.SetOutput(stderr)
	seed := fs.Uint64("seed", 0, "Seed to generate")
	out := fs.String("out", "", "Output file (default <seed>.swf)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	gen, err := appCfg.toGeneratorConfig()
	if err != nil {
		return err
	}
	sample, err := generator.Generate(generator.Seed(*seed), gen)
	if err != nil {
		return err
	}
	path := *out
	if path == "" {
		path = fmt.Sprintf("%d.swf", *seed)
	}
	if err := os.WriteFile(path, sample.Bytes, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(stdout, "%s: seed=%d version=%d tags=%d bytes=%d attempts=%d\n",
		path, *seed, sample.Document.Header.Version, len(sample.Document.Tags), len(sample.Bytes), sample.Attempts)
	return nil
}

func runRecheck(ctx context.Context, appCfg *AppConfig, stdout io.Writer) error {
	nativeCfg := appCfg.Native.WithDefaults()
	cmp, err := compare.New(appCfg.Compare)
	if err != nil {
		return err
	}
	failures, closeStore, err := buildStore(ctx, appCfg, cmp)
	if err != nil {
		return err
	}
	defer closeStore()

	workDir, err := os.MkdirTemp("", "swfdiff-recheck-")
	if err != nil {
		return err
	}
	defer os.RemoveAll(workDir)
	runner, err := native.New(nativeCfg, engine.NewEngine(engine.Config{}), workDir)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tWAS\tNOW\tNATIVE")
	sum, err := campaign.Recheck(ctx, failures, runner, cmp, func(r campaign.RecheckResult) {
		now := r.Verdict.String()
		if r.Error != "" {
			now = "error: " + r.Error
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.Fingerprint[:12], r.Reason, now, r.Native)
	})
	_ = w.Flush()
	fmt.Fprintf(stdout, "\n%d rechecked: %d still failing, %d fixed, %d inconclusive, %d errors\n",
		sum.Total, sum.StillFailing, sum.Fixed, sum.Inconclusive, sum.Errors)
	return err
}

func runList(ctx context.Context, appCfg *AppConfig, args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("list", flag.ContinueOnError)
	fs.SetOutput(stderr)
	offset := fs.Int("offset", 0, "Records to skip")
	limit := fs.Int("limit", 50, "Records to print, 0 for all")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cmp, err := compare.New(appCfg.Compare)
	if err != nil {
		return err
	}
	failures, closeStore, err := buildStore(ctx, appCfg, cmp)
	if err != nil {
		return err
	}
	defer closeStore()

	records, total, err := failures.List(ctx, *offset, *limit)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "FINGERPRINT\tREASON\tSEED\tDUPLICATES\tFIRST SEEN\tLAST SEEN")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			rec.Fingerprint, rec.Reason, rec.Seed, rec.Duplicates,
			rec.FirstSeen.UTC().Format(time.RFC3339), rec.LastSeen.UTC().Format(time.RFC3339))
	}
	_ = w.Flush()
	fmt.Fprintf(stdout, "%d of %d failures\n", len(records), total)
	return nil
}
