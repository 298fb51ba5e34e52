package storage

import (
	"context"

	"bioevo/internal/model"
)

// Store persists fitting runs and the patterns they were fitted against.
type Store interface {
	Init(ctx context.Context) error
	SaveRun(ctx context.Context, run model.RunRecord) error
	GetRun(ctx context.Context, id string) (model.RunRecord, bool, error)
	ListRuns(ctx context.Context) ([]model.RunRecord, error)
	SaveGenerationStats(ctx context.Context, runID string, stats []model.GenerationStats) error
	GetGenerationStats(ctx context.Context, runID string) ([]model.GenerationStats, bool, error)
	SaveHallOfFame(ctx context.Context, runID string, entries []model.HallOfFameEntry) error
	GetHallOfFame(ctx context.Context, runID string) ([]model.HallOfFameEntry, bool, error)
	SavePattern(ctx context.Context, record model.PatternRecord) error
	GetPattern(ctx context.Context, name string) (model.PatternRecord, bool, error)
}
