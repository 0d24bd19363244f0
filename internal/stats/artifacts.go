package stats

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/exp/slices"

	"evocosm/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.json"
	fitnessSeriesFile  = "fitness_series.csv"
	bestFile           = "best.json"
)

// RunConfig is the config.json payload.
type RunConfig struct {
	RunID string `json:"run_id"`
	model.RunConfig
}

// BestOrganism is the best.json payload. Genes holds the genome in its own
// JSON encoding.
type BestOrganism struct {
	Generation int             `json:"generation"`
	Fitness    float64         `json:"fitness"`
	Value      *float64        `json:"value,omitempty"`
	Genes      json.RawMessage `json:"genes"`
}

type RunArtifacts struct {
	Config           RunConfig               `json:"config"`
	Generations      []model.GenerationStats `json:"generations"`
	FinalBestFitness float64                 `json:"final_best_fitness"`
	Best             *BestOrganism           `json:"best,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Problem          string  `json:"problem"`
	Population       int     `json:"population"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	best := make([]float64, len(artifacts.Generations))
	for i, g := range artifacts.Generations {
		best[i] = g.Best
	}
	if err := writeJSON(filepath.Join(runDir, fitnessHistoryFile), map[string]any{"best_by_generation": best, "final_best_fitness": artifacts.FinalBestFitness}); err != nil {
		return "", err
	}
	if err := WriteFitnessSeries(runDir, artifacts.Generations); err != nil {
		return "", err
	}
	if artifacts.Best != nil {
		if err := writeJSON(filepath.Join(runDir, bestFile), artifacts.Best); err != nil {
			return "", err
		}
	}

	return runDir, nil
}

// CreatedAtLayout is the fixed-width UTC timestamp written to the run index.
const CreatedAtLayout = "2006-01-02T15:04:05.000000000Z"

// FormatCreatedAt renders t for RunIndexEntry.CreatedAtUTC.
func FormatCreatedAt(t time.Time) string {
	return t.UTC().Format(CreatedAtLayout)
}

// AppendRunIndex adds entry to the index, replacing an entry with the same
// run id in place. The file keeps append order.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := readRunIndex(baseDir)
	if err != nil {
		return err
	}
	replaced := false
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		index = append(index, entry)
	}
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest first. Entries created at the same
// instant list the later append first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	index, err := readRunIndex(baseDir)
	if err != nil {
		return nil, err
	}
	slices.Reverse(index)
	slices.SortStableFunc(index, func(a, b RunIndexEntry) int {
		return createdAt(b).Compare(createdAt(a))
	})
	return index, nil
}

// readRunIndex returns the entries in file order.
func readRunIndex(baseDir string) ([]RunIndexEntry, error) {
	var entries []RunIndexEntry
	ok, err := readJSON(filepath.Join(baseDir, runIndexFile), &entries)
	if err != nil {
		return nil, fmt.Errorf("read run index: %w", err)
	}
	if !ok || entries == nil {
		return []RunIndexEntry{}, nil
	}
	return entries, nil
}

// createdAt parses the entry timestamp. Unparseable values sort oldest.
func createdAt(e RunIndexEntry) time.Time {
	ts, err := time.Parse(time.RFC3339Nano, e.CreatedAtUTC)
	if err != nil {
		return time.Time{}
	}
	return ts
}

// ExportRunArtifacts copies a run's artifact directory to outDir/<runID>.
// best.json is copied when the run has one.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", fmt.Errorf("run %s artifacts: %w", runID, err)
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	files := []struct {
		name     string
		optional bool
	}{
		{configFile, false},
		{fitnessHistoryFile, false},
		{fitnessSeriesFile, false},
		{bestFile, true},
	}
	for _, f := range files {
		data, err := os.ReadFile(filepath.Join(src, f.name))
		if errors.Is(err, fs.ErrNotExist) && f.optional {
			continue
		}
		if err != nil {
			return "", fmt.Errorf("export %s: %w", f.name, err)
		}
		if err := os.WriteFile(filepath.Join(dst, f.name), data, 0o644); err != nil {
			return "", fmt.Errorf("export %s: %w", f.name, err)
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

// ReadBestOrganism loads best.json. Genes come back in compact JSON form.
func ReadBestOrganism(baseDir, runID string) (BestOrganism, bool, error) {
	var best BestOrganism
	ok, err := readJSON(filepath.Join(baseDir, runID, bestFile), &best)
	if err != nil || !ok {
		return best, ok, err
	}
	if len(best.Genes) > 0 {
		var compact bytes.Buffer
		if err := json.Compact(&compact, best.Genes); err != nil {
			return BestOrganism{}, false, fmt.Errorf("best genes: %w", err)
		}
		best.Genes = compact.Bytes()
	}
	return best, true, nil
}

// WriteFitnessSeries writes generation,best,worst,mean,sigma rows.
func WriteFitnessSeries(runDir string, generations []model.GenerationStats) error {
	path := filepath.Join(runDir, fitnessSeriesFile)
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write([]string{"generation", "best", "worst", "mean", "sigma"}); err != nil {
		return err
	}
	for _, g := range generations {
		if err := writer.Write([]string{
			strconv.Itoa(g.Generation),
			formatFloat(g.Best),
			formatFloat(g.Worst),
			formatFloat(g.Mean),
			formatFloat(g.Sigma),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func ReadFitnessSeries(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	path := filepath.Join(baseDir, runID, fitnessSeriesFile)
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer file.Close()

	reader := csv.NewReader(file)
	header, err := reader.Read()
	if err != nil {
		if err == io.EOF {
			return []model.GenerationStats{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 5 {
		return nil, false, fmt.Errorf("fitness series header must have 5 columns")
	}

	series := make([]model.GenerationStats, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		row, err := parseSeriesRow(record)
		if err != nil {
			return nil, false, err
		}
		series = append(series, row)
	}
	return series, true, nil
}

func parseSeriesRow(record []string) (model.GenerationStats, error) {
	if len(record) < 5 {
		return model.GenerationStats{}, fmt.Errorf("fitness series row must have 5 columns")
	}
	generation, err := strconv.Atoi(record[0])
	if err != nil {
		return model.GenerationStats{}, err
	}
	values := make([]float64, 4)
	for i := range values {
		values[i], err = strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return model.GenerationStats{}, err
		}
	}
	return model.GenerationStats{
		Generation: generation,
		Best:       values[0],
		Worst:      values[1],
		Mean:       values[2],
		Sigma:      values[3],
	}, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(file)
	enc.SetIndent("", "  ")
	if err := enc.Encode(value); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	return file.Close()
}
