package storage

import (
	"context"

	"evocosm/internal/model"
)

// Store persists run history: one record per run plus its per-generation
// fitness statistics.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	// ListRuns returns runs newest first. A limit <= 0 returns all of them.
	ListRuns(ctx context.Context, limit int) ([]model.RunRecord, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
}
