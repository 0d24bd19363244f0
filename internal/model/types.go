package model

import "time"

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// RunConfig is the resolved configuration a run was started with.
type RunConfig struct {
	Problem        string  `json:"problem"`
	Population     int     `json:"population"`
	Generations    int     `json:"generations"`
	Seed           int64   `json:"seed"`
	Workers        int     `json:"workers"`
	MutationRate   float64 `json:"mutation_rate"`
	CrossoverRate  float64 `json:"crossover_rate"`
	Scaler         string  `json:"scaler"`
	Selector       string  `json:"selector"`
	SurvivorCount  int     `json:"survivor_count,omitempty"`
	SurvivalFactor float64 `json:"survival_factor,omitempty"`
	StateCount     int     `json:"state_count,omitempty"`
	Rounds         int     `json:"rounds,omitempty"`
	StallLimit     int     `json:"stall_limit,omitempty"`
}

type RunRecord struct {
	VersionedRecord
	ID          string    `json:"id"`
	Config      RunConfig `json:"config"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Generations int       `json:"generations"`
	Evaluations int64     `json:"evaluations"`
	BestFitness float64   `json:"best_fitness"`
	Terminated  bool      `json:"terminated"`
	Stalled     bool      `json:"stalled,omitempty"`
}

// GenerationStats summarises raw fitness right after a generation was tested.
type GenerationStats struct {
	Generation int     `json:"generation"`
	Best       float64 `json:"best"`
	Worst      float64 `json:"worst"`
	Mean       float64 `json:"mean"`
	Sigma      float64 `json:"sigma"`
}
