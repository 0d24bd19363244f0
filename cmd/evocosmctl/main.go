package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"evocosm/internal/storage"
	"evocosm/pkg/evocosm"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
)

var (
	stdout io.Writer = os.Stdout
	stderr io.Writer = os.Stderr
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "run":
		return runRun(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "history":
		return runHistory(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	case "problems":
		return runProblems(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

// clientFlags are shared by every subcommand that opens a client.
type clientFlags struct {
	storeKind    string
	dbPath       string
	artifactsDir string
	exportsDir   string
	logLevel     string
	logJSON      bool
}

func (c *clientFlags) register(fs *flag.FlagSet) {
	fs.StringVar(&c.storeKind, "store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	fs.StringVar(&c.dbPath, "db-path", "evocosm.db", "sqlite database path")
	fs.StringVar(&c.artifactsDir, "artifacts-dir", defaultArtifactsDir, "run artifacts directory")
	fs.StringVar(&c.exportsDir, "exports-dir", defaultExportsDir, "default export directory")
	fs.StringVar(&c.logLevel, "log-level", "info", "log level: debug|info|warn|error")
	fs.BoolVar(&c.logJSON, "log-json", false, "emit logs as JSON")
}

func (c *clientFlags) logger() (*slog.Logger, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.logLevel)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", c.logLevel)
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.logJSON {
		return slog.New(slog.NewJSONHandler(stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(stderr, opts)), nil
}

func (c *clientFlags) open(reg prometheus.Registerer) (*evocosm.Client, error) {
	logger, err := c.logger()
	if err != nil {
		return nil, err
	}
	return evocosm.New(evocosm.Options{
		StoreKind:    c.storeKind,
		DBPath:       c.dbPath,
		ArtifactsDir: c.artifactsDir,
		ExportsDir:   c.exportsDir,
		Logger:       logger,
		Registerer:   reg,
	})
}

func runRun(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	var common clientFlags
	common.register(fs)
	configPath := fs.String("config", "", "optional run config TOML path")
	metricsAddr := fs.String("metrics-addr", "", "serve prometheus metrics on this address while running")
	progress := fs.Bool("progress", false, "write iteration,best,mean,sigma lines to stdout even when it is not a terminal")

	var flagReq evocosm.RunRequest
	fs.StringVar(&flagReq.Problem, "problem", evocosm.ProblemFuncOpt, "problem: funcopt|pd|pd-fuzzy")
	fs.IntVar(&flagReq.Population, "pop", 0, "population size (0 uses the problem default)")
	fs.IntVar(&flagReq.Generations, "gens", 0, "generation limit (0 uses the problem default)")
	fs.Int64Var(&flagReq.Seed, "seed", 0, "rng seed (0 uses the current time)")
	fs.IntVar(&flagReq.Workers, "workers", 1, "fitness evaluation workers")
	fs.Float64Var(&flagReq.MutationRate, "mutation-rate", 0, "mutation rate in [0,1] (0 uses the problem default)")
	fs.Float64Var(&flagReq.CrossoverRate, "crossover-rate", 0, "crossover rate in [0,1] (0 uses the problem default)")
	fs.StringVar(&flagReq.Scaler, "scaler", "", "fitness scaler: none|linear_norm|windowed|exponential|quadratic|sigma|invert")
	fs.Float64Var(&flagReq.ScalerParam, "scaler-param", 0, "scaler parameter (multiple for linear_norm, floor for sigma)")
	fs.StringVar(&flagReq.Selector, "selector", "", "survivor selector: none|all|elitism|fraction")
	fs.IntVar(&flagReq.SurvivorCount, "survivors", 0, "survivor count for the elitism selector")
	fs.Float64Var(&flagReq.SurvivalFactor, "survival-factor", 0, "survival factor for the fraction selector")
	fs.IntVar(&flagReq.StateCount, "states", 0, "state machine size for dilemma problems")
	fs.IntVar(&flagReq.Rounds, "rounds", 0, "rounds per dilemma match")
	fs.IntVar(&flagReq.StallLimit, "stall-limit", 0, "funcopt generations without improvement before stopping")
	if err := fs.Parse(args); err != nil {
		return err
	}
	setFlags := make(map[string]bool)
	fs.Visit(func(f *flag.Flag) {
		setFlags[f.Name] = true
	})

	req := flagReq
	if *configPath != "" {
		loaded, err := loadRunRequestFromConfig(*configPath)
		if err != nil {
			return err
		}
		if loaded.Problem == "" {
			loaded.Problem = flagReq.Problem
		}
		if loaded.Workers == 0 {
			loaded.Workers = flagReq.Workers
		}
		overrideFromFlags(&loaded, setFlags, flagReq)
		req = loaded
	}
	if *progress || isTerminal(stdout) {
		req.Progress = stdout
	}

	var reg *prometheus.Registry
	if *metricsAddr != "" {
		reg = prometheus.NewRegistry()
	}
	client, err := common.open(registererOrNil(reg))
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()
	if reg != nil {
		shutdown, err := serveMetrics(*metricsAddr, reg)
		if err != nil {
			return err
		}
		defer shutdown()
	}

	summary, err := client.Run(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintf(stdout, "run_id=%s problem=%s generations=%d evaluations=%s best_fitness=%.6f best_generation=%d terminated=%t stalled=%t duration=%s\n",
		summary.RunID,
		summary.Config.Problem,
		summary.Generations,
		humanize.Comma(summary.Evaluations),
		summary.FinalBestFitness,
		summary.BestGeneration,
		summary.Terminated,
		summary.Stalled,
		summary.Duration.Round(time.Millisecond),
	)
	if summary.BestValue != nil {
		fmt.Fprintf(stdout, "best_value=%g\n", *summary.BestValue)
	}
	fmt.Fprintf(stdout, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

// registererOrNil keeps a nil *Registry from becoming a non-nil interface.
func registererOrNil(reg *prometheus.Registry) prometheus.Registerer {
	if reg == nil {
		return nil
	}
	return reg
}

func serveMetrics(addr string, reg *prometheus.Registry) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case err := <-errCh:
		return nil, fmt.Errorf("serve metrics on %s: %w", addr, err)
	case <-time.After(50 * time.Millisecond):
	}
	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func runRuns(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	var common clientFlags
	common.register(fs)
	limit := fs.Int("limit", 20, "max runs to list")
	jsonOut := fs.Bool("json", false, "emit runs list as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *limit <= 0 {
		return errors.New("limit must be > 0")
	}

	client, err := common.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	items, err := client.Runs(ctx, *limit)
	if err != nil {
		return err
	}
	if *jsonOut {
		type runsItem struct {
			RunID            string  `json:"run_id"`
			CreatedAtUTC     string  `json:"created_at_utc"`
			Problem          string  `json:"problem"`
			Seed             int64   `json:"seed"`
			Population       int     `json:"population"`
			Generations      int     `json:"generations"`
			FinalBestFitness float64 `json:"final_best_fitness"`
		}
		out := make([]runsItem, 0, len(items))
		for _, item := range items {
			out = append(out, runsItem(item))
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}
	if len(items) == 0 {
		fmt.Fprintln(stdout, "no runs found")
		return nil
	}
	for _, item := range items {
		fmt.Fprintf(stdout, "run_id=%s created=%s problem=%s seed=%d pop=%d gens=%d best=%.6f\n",
			item.RunID,
			createdAgo(item.CreatedAtUTC),
			item.Problem,
			item.Seed,
			item.Population,
			item.Generations,
			item.FinalBestFitness,
		)
	}
	return nil
}

func createdAgo(created string) string {
	ts, err := time.Parse(time.RFC3339Nano, created)
	if err != nil {
		return created
	}
	return strings.ReplaceAll(humanize.Time(ts), " ", "_")
}

func runHistory(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("history", flag.ContinueOnError)
	var common clientFlags
	common.register(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run from run index")
	limit := fs.Int("limit", 0, "max generations to show (0 shows all)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID == "" && !*latest {
		return errors.New("history requires --run-id or --latest")
	}

	client, err := common.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	history, err := client.FitnessHistory(ctx, evocosm.FitnessHistoryRequest{RunID: *runID, Latest: *latest, Limit: *limit})
	if err != nil {
		return err
	}
	fmt.Fprintln(stdout, "generation,best,worst,mean,sigma")
	for _, g := range history {
		fmt.Fprintf(stdout, "%d,%.6f,%.6f,%.6f,%.6f\n", g.Generation, g.Best, g.Worst, g.Mean, g.Sigma)
	}
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	var common clientFlags
	common.register(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run from run index")
	outDir := fs.String("out", "", "export output directory (defaults to -exports-dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runID != "" && *latest {
		return errors.New("use either --run-id or --latest, not both")
	}
	if *runID == "" && !*latest {
		return errors.New("export requires --run-id or --latest")
	}

	client, err := common.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	exported, err := client.Export(ctx, evocosm.ExportRequest{RunID: *runID, Latest: *latest, OutDir: *outDir})
	if err != nil {
		return err
	}
	fmt.Fprintf(stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func runProblems(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("problems", flag.ContinueOnError)
	var common clientFlags
	common.register(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	client, err := common.open(nil)
	if err != nil {
		return err
	}
	defer func() {
		_ = client.Close()
	}()

	for _, p := range client.Problems() {
		fmt.Fprintf(stdout, "%-10s %s\n", p.Name, p.Description)
	}
	return nil
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: evocosmctl <run|runs|history|export|problems> [flags]", msg)
}
