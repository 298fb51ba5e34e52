package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"bioevo/internal/model"
	"bioevo/internal/tuning"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	generationStatFile = "generation_stats.json"
	hallOfFameFile     = "hall_of_fame.json"
	fitnessHistoryFile = "fitness_history.csv"
	refinementFile     = "refinement.json"
)

// RunConfig is everything needed to rebuild a run's evaluator.
type RunConfig struct {
	RunID             string  `json:"run_id"`
	Generator         string  `json:"generator"`
	Variant           string  `json:"variant"`
	TargetPath        string  `json:"target_path,omitempty"`
	TileTarget        bool    `json:"tile_target,omitempty"`
	Rows              int     `json:"rows"`
	Cols              int     `json:"cols"`
	OneD              bool    `json:"one_d,omitempty"`
	Rule              string  `json:"rule,omitempty"`
	RuleExpr          string  `json:"rule_expr,omitempty"`
	Multiplier        float64 `json:"multiplier"`
	LeadingCells      int     `json:"leading_cells,omitempty"`
	RateScale         float64 `json:"rate_scale"`
	Coupling          float64 `json:"coupling,omitempty"`
	TimeStart         float64 `json:"time_start"`
	TimeEnd           float64 `json:"time_end"`
	TimePoints        int     `json:"time_points"`
	InitialX          float64 `json:"initial_x"`
	InitialV          float64 `json:"initial_v"`
	Substeps          int     `json:"substeps"`
	PopulationSize    int     `json:"population_size"`
	Generations       int     `json:"generations"`
	EliteCount        int     `json:"elite_count"`
	HallOfFameSize    int     `json:"hall_of_fame_size"`
	CXPB              float64 `json:"cxpb"`
	MUTPB             float64 `json:"mutpb"`
	Alpha             float64 `json:"alpha"`
	Sigma             float64 `json:"sigma"`
	Indpb             float64 `json:"indpb"`
	TournamentSize    int     `json:"tournament_size"`
	Lower             float64 `json:"lower"`
	Upper             float64 `json:"upper"`
	Workers           int     `json:"workers"`
	Seed              int64   `json:"seed"`
	RefineAttempts    int     `json:"refine_attempts,omitempty"`
	TolerateNonFinite bool    `json:"tolerate_non_finite,omitempty"`
}

type RunArtifacts struct {
	Config           RunConfig               `json:"config"`
	History          []model.GenerationStats `json:"history"`
	HallOfFame       []model.HallOfFameEntry `json:"hall_of_fame"`
	FinalBestFitness float64                 `json:"final_best_fitness"`
	// Refinement is the post-evolution tuning step, if one ran. Its
	// FinalFitness can be below the last history row.
	Refinement *tuning.TuneReport `json:"refinement,omitempty"`
}

type RunIndexEntry struct {
	RunID            string  `json:"run_id"`
	Generator        string  `json:"generator"`
	Variant          string  `json:"variant"`
	PopulationSize   int     `json:"population_size"`
	Generations      int     `json:"generations"`
	Seed             int64   `json:"seed"`
	Workers          int     `json:"workers"`
	EliteCount       int     `json:"elite_count"`
	RefineEnabled    bool    `json:"refine_enabled"`
	FinalBestFitness float64 `json:"final_best_fitness"`
	CreatedAtUTC     string  `json:"created_at_utc"`
}

// RunDir is where a run's artifacts live.
func RunDir(baseDir, runID string) string {
	return filepath.Join(baseDir, runID)
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := RunDir(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, generationStatFile), artifacts.History); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, hallOfFameFile), artifacts.HallOfFame); err != nil {
		return "", err
	}
	if err := WriteFitnessHistory(runDir, artifacts.History); err != nil {
		return "", err
	}
	if artifacts.Refinement != nil {
		if err := writeJSON(filepath.Join(runDir, refinementFile), artifacts.Refinement); err != nil {
			return "", err
		}
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// later appends win ties
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

var (
	requiredRunFiles = []string{configFile, generationStatFile, hallOfFameFile, fitnessHistoryFile}
	optionalRunFiles = []string{"best_params.npy", "best_pattern.npy", "target.npy", "patterns.png", "fitness.png", "metrics.prom", refinementFile}
)

// ExportRunArtifacts copies a run directory's known files into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := RunDir(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range requiredRunFiles {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	for _, file := range optionalRunFiles {
		path := filepath.Join(src, file)
		if _, err := os.Stat(path); err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return "", err
		}
		if err := copyFile(path, filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), configFile), &cfg)
	if err != nil || !ok {
		return RunConfig{}, ok, err
	}
	return cfg, true, nil
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := RunDir(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadGenerationStats(baseDir, runID string) ([]model.GenerationStats, bool, error) {
	var stats []model.GenerationStats
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), generationStatFile), &stats)
	if err != nil || !ok {
		return nil, ok, err
	}
	return stats, true, nil
}

func ReadRefinement(baseDir, runID string) (tuning.TuneReport, bool, error) {
	var report tuning.TuneReport
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), refinementFile), &report)
	if err != nil || !ok {
		return tuning.TuneReport{}, ok, err
	}
	return report, true, nil
}

func ReadHallOfFame(baseDir, runID string) ([]model.HallOfFameEntry, bool, error) {
	var entries []model.HallOfFameEntry
	ok, err := readJSON(filepath.Join(RunDir(baseDir, runID), hallOfFameFile), &entries)
	if err != nil || !ok {
		return nil, ok, err
	}
	return entries, true, nil
}

// WriteFitnessHistory writes generation,best_fitness rows using the
// best-so-far error of each generation. Rows cover evolution only; a
// refined champion is recorded in refinement.json.
func WriteFitnessHistory(runDir string, history []model.GenerationStats) error {
	rows := make([][]float64, 0, len(history))
	for _, st := range history {
		rows = append(rows, []float64{float64(st.Generation), st.BestSoFarMSE})
	}
	return WriteTable(filepath.Join(runDir, fitnessHistoryFile), []string{"generation", "best_fitness"}, rows)
}

func ReadFitnessHistory(baseDir, runID string) ([]float64, bool, error) {
	path := filepath.Join(RunDir(baseDir, runID), fitnessHistoryFile)
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
			return []float64{}, true, nil
		}
		return nil, false, err
	}
	if len(header) < 2 {
		return nil, false, fmt.Errorf("fitness history header must have at least 2 columns")
	}

	series := make([]float64, 0, 128)
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, false, err
		}
		if len(record) < 2 {
			return nil, false, fmt.Errorf("fitness history row must have at least 2 columns")
		}
		value, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return nil, false, err
		}
		series = append(series, value)
	}
	return series, true, nil
}

// WriteTable writes a numeric CSV with the given header.
func WriteTable(path string, header []string, rows [][]float64) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	if err := writer.Write(header); err != nil {
		return err
	}
	record := make([]string, len(header))
	for i, row := range rows {
		if len(row) != len(header) {
			return fmt.Errorf("row %d has %d columns, header has %d", i, len(row), len(header))
		}
		for j, v := range row {
			record[j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func readJSON(path string, out any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return false, fmt.Errorf("%s: %w", path, err)
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
