package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunRecord is the persisted summary of one fitting run.
type RunRecord struct {
	VersionedRecord
	ID             string  `json:"id"`
	Generator      string  `json:"generator"`
	Variant        string  `json:"variant"`
	TargetPath     string  `json:"target_path,omitempty"`
	PopulationSize int     `json:"population_size"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	Bounds         Bounds  `json:"bounds"`
	BestParams     Params  `json:"best_params"`
	BestFitness    float64 `json:"best_fitness"`
	CreatedAtUTC   string  `json:"created_at_utc"`
}

// GenerationStats summarizes the population MSE of one generation.
// Generation 0 is the evaluated initial population.
type GenerationStats struct {
	Generation   int     `json:"generation"`
	Evaluations  int     `json:"evaluations"`
	BestMSE      float64 `json:"best_mse"`
	MeanMSE      float64 `json:"mean_mse"`
	StdMSE       float64 `json:"std_mse"`
	MaxMSE       float64 `json:"max_mse"`
	BestSoFarMSE float64 `json:"best_so_far_mse"`
	Best         Params  `json:"best"`
	// Rejected counts individuals whose integration went non-finite.
	Rejected int `json:"rejected,omitempty"`
}

// HallOfFameEntry is a best-ever individual retained across generations.
type HallOfFameEntry struct {
	Rank    int     `json:"rank"`
	Params  Params  `json:"params"`
	Fitness float64 `json:"fitness"`
}

// PatternRecord stores a named tissue pattern (targets, champions).
type PatternRecord struct {
	VersionedRecord
	Name    string  `json:"name"`
	Pattern Pattern `json:"pattern"`
}
