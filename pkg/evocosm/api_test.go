package evocosm

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"evocosm/internal/fsm"
	"evocosm/internal/stats"
)

func newTestClient(t *testing.T, reg prometheus.Registerer) (*Client, string) {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:    "memory",
		ArtifactsDir: filepath.Join(base, "runs"),
		ExportsDir:   filepath.Join(base, "exports"),
		Registerer:   reg,
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client, base
}

func TestClientFuncOptRunRunsAndExport(t *testing.T) {
	reg := prometheus.NewRegistry()
	client, base := newTestClient(t, reg)

	var progress bytes.Buffer
	summary, err := client.Run(context.Background(), RunRequest{
		Problem:     ProblemFuncOpt,
		Population:  30,
		Generations: 15,
		Seed:        42,
		Workers:     2,
		StallLimit:  100,
		Progress:    &progress,
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if summary.RunID == "" {
		t.Fatal("expected run id")
	}
	if summary.Generations != 15 || len(summary.BestByGeneration) != 15 {
		t.Fatalf("expected 15 generations, got %d (%d history)", summary.Generations, len(summary.BestByGeneration))
	}
	if summary.Evaluations != 15*30 {
		t.Fatalf("expected %d evaluations, got %d", 15*30, summary.Evaluations)
	}
	if summary.BestValue == nil || summary.FinalBestFitness <= 0 {
		t.Fatalf("expected a scored best solution, got %+v", summary)
	}
	if summary.Config.Scaler != "linear_norm" || summary.Config.Selector != "fraction" {
		t.Fatalf("unexpected defaults: %+v", summary.Config)
	}

	lines := strings.Split(strings.TrimSpace(progress.String()), "\n")
	if lines[0] != "iteration,best,mean,sigma" || len(lines) != 16 {
		t.Fatalf("unexpected progress output:\n%s", progress.String())
	}

	if got := testutil.ToFloat64(client.collectors.Generation.WithLabelValues(summary.RunID)); got != 15 {
		t.Fatalf("expected generation gauge 15, got %f", got)
	}

	runs, err := client.Runs(context.Background(), 10)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Problem != ProblemFuncOpt {
		t.Fatalf("unexpected runs: %+v", runs)
	}

	history, err := client.FitnessHistory(context.Background(), FitnessHistoryRequest{Latest: true, Limit: 5})
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 5 || history[0].Generation != 1 {
		t.Fatalf("unexpected history: %+v", history)
	}

	exported, err := client.Export(context.Background(), ExportRequest{Latest: true})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exported.Directory != filepath.Join(base, "exports", summary.RunID) {
		t.Fatalf("unexpected export dir: %s", exported.Directory)
	}
	for _, file := range []string{"config.json", "fitness_history.json", "fitness_series.csv", "best.json"} {
		if _, err := os.Stat(filepath.Join(exported.Directory, file)); err != nil {
			t.Fatalf("expected exported %s: %v", file, err)
		}
	}

	best, ok, err := stats.ReadBestOrganism(filepath.Join(base, "runs"), summary.RunID)
	if err != nil || !ok {
		t.Fatalf("read best: ok=%v err=%v", ok, err)
	}
	var args []float64
	if err := json.Unmarshal(best.Genes, &args); err != nil || len(args) != 2 {
		t.Fatalf("unexpected best genes %s: %v", best.Genes, err)
	}
}

func TestClientRunIsReproducible(t *testing.T) {
	client, _ := newTestClient(t, nil)
	req := RunRequest{Problem: ProblemPD, Population: 12, Generations: 4, Seed: 9, Rounds: 5}
	first, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := client.Run(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first.RunID == second.RunID {
		t.Fatal("expected distinct run ids")
	}
	for i := range first.BestByGeneration {
		if first.BestByGeneration[i] != second.BestByGeneration[i] {
			t.Fatalf("generation %d differs: %f vs %f", i+1, first.BestByGeneration[i], second.BestByGeneration[i])
		}
	}
}

func TestClientDilemmaRuns(t *testing.T) {
	client, base := newTestClient(t, nil)
	for _, name := range []string{ProblemPD, ProblemPDFuzzy} {
		summary, err := client.Run(context.Background(), RunRequest{
			Problem:     name,
			Population:  10,
			Generations: 3,
			Seed:        5,
			Workers:     2,
			Rounds:      8,
		})
		if err != nil {
			t.Fatalf("%s run: %v", name, err)
		}
		if summary.Generations != 3 {
			t.Fatalf("%s: expected 3 generations, got %d", name, summary.Generations)
		}
		if summary.FinalBestFitness < 0 || summary.FinalBestFitness > 5 {
			t.Fatalf("%s: best fitness %f outside payoff range", name, summary.FinalBestFitness)
		}
		if summary.Config.Selector != "elitism" || summary.Config.SurvivorCount != 5 {
			t.Fatalf("%s: unexpected selector config %+v", name, summary.Config)
		}
		if summary.BestValue != nil {
			t.Fatalf("%s: dilemma runs have no raw value", name)
		}

		best, ok, err := stats.ReadBestOrganism(filepath.Join(base, "runs"), summary.RunID)
		if err != nil || !ok {
			t.Fatalf("%s: read best: ok=%v err=%v", name, ok, err)
		}
		if name == ProblemPD {
			var table fsm.Table
			if err := json.Unmarshal(best.Genes, &table); err != nil {
				t.Fatalf("decode table: %v", err)
			}
			if _, err := fsm.FromTable(table, 2, fsm.MutationWeights{}); err != nil {
				t.Fatalf("rebuild best machine: %v", err)
			}
		}
	}
}

func TestClientCancelledRunIsRecordedAsTerminated(t *testing.T) {
	client, _ := newTestClient(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	summary, err := client.Run(ctx, RunRequest{Problem: ProblemFuncOpt, Population: 10, Generations: 50, Seed: 1})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !summary.Terminated {
		t.Fatal("expected terminated run")
	}
	if summary.Generations != 1 {
		t.Fatalf("expected stop after first generation, got %d", summary.Generations)
	}
}

func TestClientRejectsBadRequests(t *testing.T) {
	client, _ := newTestClient(t, nil)
	ctx := context.Background()
	bad := []RunRequest{
		{Problem: "tsp"},
		{Problem: ProblemPD, MutationRate: 2},
		{Problem: ProblemFuncOpt, Scaler: "bogus"},
		{Problem: ProblemPD, Selector: "elitism", SurvivorCount: -1},
		{Problem: ProblemFuncOpt, Population: -5},
	}
	for _, req := range bad {
		if _, err := client.Run(ctx, req); err == nil {
			t.Fatalf("expected error for %+v", req)
		}
	}

	if _, err := client.Export(ctx, ExportRequest{}); err == nil {
		t.Fatal("expected export error without run id")
	}
	if _, err := client.Export(ctx, ExportRequest{RunID: "x", Latest: true}); err == nil {
		t.Fatal("expected export error for run id and latest")
	}
	if _, err := client.FitnessHistory(ctx, FitnessHistoryRequest{Latest: true}); err == nil {
		t.Fatal("expected error with no runs")
	}
	if _, err := client.FitnessHistory(ctx, FitnessHistoryRequest{RunID: "missing"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
}

func TestProblemsAreListed(t *testing.T) {
	client, _ := newTestClient(t, nil)
	problems := client.Problems()
	if len(problems) != 3 {
		t.Fatalf("expected 3 problems, got %+v", problems)
	}
	if problems[0].Name != ProblemFuncOpt || problems[1].Name != ProblemPD || problems[2].Name != ProblemPDFuzzy {
		t.Fatalf("unexpected order: %+v", problems)
	}
}
