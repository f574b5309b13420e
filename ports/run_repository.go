package ports

import (
	"context"

	"finresearch/domain/research"
	"finresearch/models"
)

// RunRepository archives completed runs. The engine never reads it.
type RunRepository interface {
	Save(ctx context.Context, state *research.RunState) error
	Get(ctx context.Context, runID string) (*research.RunState, error)
	ListRecent(ctx context.Context, limit int) ([]models.RunSummary, error)
}
