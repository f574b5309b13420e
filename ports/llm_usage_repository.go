package ports

import (
	"context"

	"finresearch/models"

	"github.com/google/uuid"
)

// LLMUsageRepository defines the interface for LLM usage data operations
type LLMUsageRepository interface {
	// Record usage for an LLM call
	RecordUsage(ctx context.Context, usage *models.LLMUsage) error

	// Get usage records for one run
	GetRunUsage(ctx context.Context, runID uuid.UUID) ([]*models.LLMUsage, error)

	// Get usage aggregated by operation for one run
	GetRunUsageByOperation(ctx context.Context, runID uuid.UUID) (map[string]*models.OperationUsage, error)
}
