package evocosm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"evocosm/internal/metrics"
	"evocosm/internal/model"
	"evocosm/internal/stats"
	"evocosm/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "evocosm.db"
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
	// Registerer receives the run metrics. Nil disables metrics.
	Registerer prometheus.Registerer
}

type Client struct {
	store      storage.Store
	logger     *slog.Logger
	collectors *metrics.Collectors

	artifactsDir string
	exportsDir   string

	initMu      sync.Mutex
	initialized bool
}

type RunRequest struct {
	Problem        string
	Population     int
	Generations    int
	Seed           int64
	Workers        int
	MutationRate   float64
	CrossoverRate  float64
	Scaler         string
	ScalerParam    float64
	Selector       string
	SurvivorCount  int
	SurvivalFactor float64
	StateCount     int
	Rounds         int
	StallLimit     int
	// Progress receives iteration,best,mean,sigma lines when set.
	Progress io.Writer
}

type RunSummary struct {
	RunID            string
	ArtifactsDir     string
	Config           model.RunConfig
	BestByGeneration []float64
	FinalBestFitness float64
	BestGeneration   int
	BestValue        *float64
	Generations      int
	Evaluations      int64
	Terminated       bool
	Stalled          bool
	Duration         time.Duration
}

type RunItem struct {
	RunID            string
	CreatedAtUTC     string
	Problem          string
	Seed             int64
	Population       int
	Generations      int
	FinalBestFitness float64
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

type FitnessHistoryRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	var collectors *metrics.Collectors
	if opts.Registerer != nil {
		collectors, err = metrics.NewCollectors(opts.Registerer)
		if err != nil {
			return nil, fmt.Errorf("register metrics: %w", err)
		}
	}

	return &Client{
		store:        store,
		logger:       logger,
		collectors:   collectors,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	c.initMu.Lock()
	defer c.initMu.Unlock()

	if c.initialized {
		return nil
	}
	if err := c.store.Init(ctx); err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	c.initialized = true
	return nil
}

// Run evolves one problem to completion. Cancelling ctx terminates the run at
// the next generation boundary; the partial run is still recorded.
func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	if err := c.Init(ctx); err != nil {
		return RunSummary{}, err
	}
	problem, err := lookupProblem(req.Problem)
	if err != nil {
		return RunSummary{}, err
	}
	req = problem.defaults(req)
	if req.Seed == 0 {
		req.Seed = time.Now().UnixNano()
	}
	if err := validateRunRequest(req); err != nil {
		return RunSummary{}, err
	}

	runID := uuid.NewString()
	cfg := runConfig(req)
	logger := c.logger.With("run_id", runID, "problem", cfg.Problem)
	logger.Info("run started",
		"population", cfg.Population,
		"generations", cfg.Generations,
		"seed", cfg.Seed,
		"scaler", cfg.Scaler,
		"selector", cfg.Selector,
	)

	started := time.Now().UTC()
	res, err := problem.run(ctx, c.runEnv(runID, logger, req.Progress), req)
	if err != nil {
		logger.Error("run failed", "err", err)
		return RunSummary{}, err
	}
	finished := time.Now().UTC()

	record := storage.Stamp(model.RunRecord{
		ID:          runID,
		Config:      cfg,
		StartedAt:   started,
		FinishedAt:  finished,
		Generations: res.iterations,
		Evaluations: res.evaluations,
		BestFitness: res.bestFitness,
		Terminated:  res.terminated,
		Stalled:     res.stalled,
	})
	persistCtx := context.WithoutCancel(ctx)
	if err := c.store.SaveRun(persistCtx, record); err != nil {
		return RunSummary{}, fmt.Errorf("save run: %w", err)
	}
	if err := c.store.SaveGenerationStats(persistCtx, runID, res.generations); err != nil {
		return RunSummary{}, fmt.Errorf("save generation stats: %w", err)
	}

	runDir, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config:           stats.RunConfig{RunID: runID, RunConfig: cfg},
		Generations:      res.generations,
		FinalBestFitness: res.bestFitness,
		Best:             res.best,
	})
	if err != nil {
		return RunSummary{}, err
	}
	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:            runID,
		Problem:          cfg.Problem,
		Population:       cfg.Population,
		Generations:      res.iterations,
		Seed:             cfg.Seed,
		Workers:          cfg.Workers,
		FinalBestFitness: res.bestFitness,
		CreatedAtUTC:     stats.FormatCreatedAt(started),
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:            runID,
		ArtifactsDir:     filepath.Clean(runDir),
		Config:           cfg,
		BestByGeneration: storage.FitnessHistory(res.generations),
		FinalBestFitness: res.bestFitness,
		BestValue:        res.bestValue,
		Generations:      res.iterations,
		Evaluations:      res.evaluations,
		Terminated:       res.terminated,
		Stalled:          res.stalled,
		Duration:         finished.Sub(started),
	}
	if res.best != nil {
		summary.BestGeneration = res.best.Generation
	}
	logger.Info("run complete",
		"generations", summary.Generations,
		"evaluations", summary.Evaluations,
		"best_fitness", summary.FinalBestFitness,
		"terminated", summary.Terminated,
		"duration", summary.Duration,
	)
	return summary, nil
}

func (c *Client) runEnv(runID string, logger *slog.Logger, progress io.Writer) runEnv {
	return runEnv{runID: runID, logger: logger, collectors: c.collectors, progress: progress}
}

func (c *Client) Runs(_ context.Context, limit int) ([]RunItem, error) {
	if limit <= 0 {
		limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:            e.RunID,
			CreatedAtUTC:     e.CreatedAtUTC,
			Problem:          e.Problem,
			Seed:             e.Seed,
			Population:       e.Population,
			Generations:      e.Generations,
			FinalBestFitness: e.FinalBestFitness,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.RunID != "" && req.Latest {
		return ExportSummary{}, errors.New("use either run id or latest")
	}
	if req.RunID == "" && !req.Latest {
		return ExportSummary{}, errors.New("export requires run id or latest")
	}
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID()
		if err != nil {
			return ExportSummary{}, err
		}
		runID = latest
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

// FitnessHistory returns per-generation statistics from the store, falling
// back to the run's fitness series artifact when the store has no entry.
func (c *Client) FitnessHistory(ctx context.Context, req FitnessHistoryRequest) ([]model.GenerationStats, error) {
	if req.RunID != "" && req.Latest {
		return nil, errors.New("use either run id or latest")
	}
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}

	runID := req.RunID
	if req.Latest {
		latest, err := c.latestRunID()
		if err != nil {
			return nil, err
		}
		runID = latest
	}
	if runID == "" {
		return nil, errors.New("fitness history requires run id or latest")
	}

	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	history, ok, err := c.store.GetGenerationStats(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		history, ok, err = stats.ReadFitnessSeries(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("fitness history not found for run id: %s", runID)
		}
	}
	if req.Limit > 0 && len(history) > req.Limit {
		history = history[:req.Limit]
	}
	return history, nil
}

func (c *Client) latestRunID() (string, error) {
	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", errors.New("no runs available")
	}
	return entries[0].RunID, nil
}

func validateRunRequest(req RunRequest) error {
	if req.Population <= 0 {
		return fmt.Errorf("population must be > 0")
	}
	if req.Generations <= 0 {
		return fmt.Errorf("generations must be > 0")
	}
	if req.Workers < 0 {
		return fmt.Errorf("workers must be >= 0")
	}
	if req.MutationRate < 0 || req.MutationRate > 1 {
		return fmt.Errorf("mutation rate must be in [0,1], got %g", req.MutationRate)
	}
	if req.CrossoverRate < 0 || req.CrossoverRate > 1 {
		return fmt.Errorf("crossover rate must be in [0,1], got %g", req.CrossoverRate)
	}
	if req.SurvivorCount < 0 {
		return fmt.Errorf("survivor count must be >= 0")
	}
	return nil
}

func runConfig(req RunRequest) model.RunConfig {
	return model.RunConfig{
		Problem:        req.Problem,
		Population:     req.Population,
		Generations:    req.Generations,
		Seed:           req.Seed,
		Workers:        req.Workers,
		MutationRate:   req.MutationRate,
		CrossoverRate:  req.CrossoverRate,
		Scaler:         req.Scaler,
		Selector:       req.Selector,
		SurvivorCount:  req.SurvivorCount,
		SurvivalFactor: req.SurvivalFactor,
		StateCount:     req.StateCount,
		Rounds:         req.Rounds,
		StallLimit:     req.StallLimit,
	}
}
