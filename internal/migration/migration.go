package migration

import (
	"context"

	"finresearch/internal/errors"

	"github.com/jmoiron/sqlx"
)

// Migrator defines the interface for database migration operations
type Migrator interface {
	Run(ctx context.Context, db *sqlx.DB) error
	Version() string
}

// MigrationRunner handles database schema migrations
type MigrationRunner struct {
	version string
}

// NewRunner creates a new migration runner
func NewRunner() *MigrationRunner {
	return &MigrationRunner{
		version: "1.0.0",
	}
}

// Version returns the migration version
func (r *MigrationRunner) Version() string {
	return r.version
}

// Steps returns the ordered migration statements
func (r *MigrationRunner) Steps() []Step {
	return []Step{
		{Name: "create research_runs table", SQL: createResearchRuns},
		{Name: "create llm_usage table", SQL: createLLMUsage},
		{Name: "create indexes", SQL: createIndexes},
	}
}

// Step is one idempotent schema statement
type Step struct {
	Name string
	SQL  string
}

// Run executes all database migrations in order
func (r *MigrationRunner) Run(ctx context.Context, db *sqlx.DB) error {
	for _, step := range r.Steps() {
		if _, err := db.ExecContext(ctx, step.SQL); err != nil {
			return errors.WithCode(errors.CodeDatabaseError, errors.Wrap(err, "failed to "+step.Name))
		}
	}
	return nil
}

const createResearchRuns = `
	CREATE TABLE IF NOT EXISTS research_runs (
		id TEXT PRIMARY KEY,
		question TEXT NOT NULL,
		final_answer TEXT NOT NULL DEFAULT '',
		capabilities TEXT[] NOT NULL DEFAULT '{}',
		record_count INTEGER NOT NULL DEFAULT 0,
		state JSONB NOT NULL,
		started_at TIMESTAMP WITH TIME ZONE NOT NULL,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createLLMUsage = `
	CREATE TABLE IF NOT EXISTS llm_usage (
		id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
		run_id UUID,
		provider VARCHAR(50) NOT NULL,
		model VARCHAR(100) NOT NULL,
		operation_type VARCHAR(50) NOT NULL,
		prompt_tokens INTEGER NOT NULL DEFAULT 0,
		completion_tokens INTEGER NOT NULL DEFAULT 0,
		total_tokens INTEGER NOT NULL DEFAULT 0,
		created_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
	)
`

const createIndexes = `
	CREATE INDEX IF NOT EXISTS idx_research_runs_started_at ON research_runs(started_at DESC);
	CREATE INDEX IF NOT EXISTS idx_llm_usage_run_id ON llm_usage(run_id);
	CREATE INDEX IF NOT EXISTS idx_llm_usage_operation ON llm_usage(operation_type)
`
