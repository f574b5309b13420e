package postgres

import (
	"context"

	"finresearch/models"
	"finresearch/ports"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// LLMUsageRepositoryImpl implements LLMUsageRepository for PostgreSQL
type LLMUsageRepositoryImpl struct {
	db *sqlx.DB
}

// NewLLMUsageRepository creates a new PostgreSQL LLM usage repository
func NewLLMUsageRepository(db *sqlx.DB) ports.LLMUsageRepository {
	return &LLMUsageRepositoryImpl{db: db}
}

// RecordUsage records LLM usage for an API call
func (r *LLMUsageRepositoryImpl) RecordUsage(ctx context.Context, usage *models.LLMUsage) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO llm_usage (
			id, run_id, provider, model, operation_type,
			prompt_tokens, completion_tokens, total_tokens, created_at
		) VALUES (
			:id, :run_id, :provider, :model, :operation_type,
			:prompt_tokens, :completion_tokens, :total_tokens, :created_at
		)
	`, usage)
	return err
}

// GetRunUsage retrieves the usage records of one run
func (r *LLMUsageRepositoryImpl) GetRunUsage(ctx context.Context, runID uuid.UUID) ([]*models.LLMUsage, error) {
	var usages []*models.LLMUsage
	err := r.db.SelectContext(ctx, &usages, `
		SELECT id, run_id, provider, model, operation_type,
		       prompt_tokens, completion_tokens, total_tokens, created_at
		FROM llm_usage
		WHERE run_id = $1
		ORDER BY created_at
	`, runID)
	return usages, err
}

// GetRunUsageByOperation returns a run's usage aggregated by operation
func (r *LLMUsageRepositoryImpl) GetRunUsageByOperation(ctx context.Context, runID uuid.UUID) (map[string]*models.OperationUsage, error) {
	var rows []*models.OperationUsage
	err := r.db.SelectContext(ctx, &rows, `
		SELECT operation_type,
		       COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
		       COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
		       COALESCE(SUM(total_tokens), 0) AS total_tokens,
		       COUNT(*) AS request_count
		FROM llm_usage
		WHERE run_id = $1
		GROUP BY operation_type
	`, runID)
	if err != nil {
		return nil, err
	}

	result := make(map[string]*models.OperationUsage, len(rows))
	for _, row := range rows {
		result[row.OperationType] = row
	}
	return result, nil
}
