package storage

import (
	"encoding/json"
	"errors"

	"evocosm/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp sets the current schema and codec versions on a run record.
func Stamp(run model.RunRecord) model.RunRecord {
	run.SchemaVersion = CurrentSchemaVersion
	run.CodecVersion = CurrentCodecVersion
	return run
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodeGenerationStats(stats []model.GenerationStats) ([]byte, error) {
	return json.Marshal(stats)
}

func DecodeGenerationStats(data []byte) ([]model.GenerationStats, error) {
	var stats []model.GenerationStats
	if err := json.Unmarshal(data, &stats); err != nil {
		return nil, err
	}
	return stats, nil
}

// FitnessHistory extracts the best fitness of every generation.
func FitnessHistory(stats []model.GenerationStats) []float64 {
	history := make([]float64, len(stats))
	for i, s := range stats {
		history[i] = s.Best
	}
	return history
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
