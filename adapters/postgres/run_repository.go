package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"finresearch/domain/research"
	"finresearch/internal/errors"
	"finresearch/models"
	"finresearch/ports"

	"github.com/jmoiron/sqlx"
)

// RunRepositoryImpl implements RunRepository for PostgreSQL
type RunRepositoryImpl struct {
	db *sqlx.DB
}

// NewRunRepository creates a new PostgreSQL run archive
func NewRunRepository(db *sqlx.DB) ports.RunRepository {
	return &RunRepositoryImpl{db: db}
}

// Save upserts the final state of a run
func (r *RunRepositoryImpl) Save(ctx context.Context, state *research.RunState) error {
	if state == nil {
		return errors.InvalidInput("run state is required")
	}
	raw, err := json.Marshal(state)
	if err != nil {
		return errors.Wrap(err, "encode run state")
	}

	row := models.ResearchRun{
		ID:           state.RunID,
		Question:     state.Request.OriginalQuestion,
		FinalAnswer:  state.FinalAnswer,
		Capabilities: capabilityNames(state.ExecutedCapabilities),
		RecordCount:  state.EvidenceLedger.Len(),
		State:        models.JSONDocument(raw),
		StartedAt:    state.StartedAt,
		DurationMs:   state.DurationMs,
	}

	_, err = r.db.NamedExecContext(ctx, `
		INSERT INTO research_runs (
			id, question, final_answer, capabilities, record_count, state, started_at, duration_ms
		) VALUES (
			:id, :question, :final_answer, :capabilities, :record_count, :state, :started_at, :duration_ms
		)
		ON CONFLICT (id) DO UPDATE SET
			final_answer = EXCLUDED.final_answer,
			capabilities = EXCLUDED.capabilities,
			record_count = EXCLUDED.record_count,
			state = EXCLUDED.state,
			duration_ms = EXCLUDED.duration_ms
	`, row)
	if err != nil {
		return errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("save run %s: %w", state.RunID, err))
	}
	return nil
}

// Get loads an archived run
func (r *RunRepositoryImpl) Get(ctx context.Context, runID string) (*research.RunState, error) {
	var doc models.JSONDocument
	err := r.db.GetContext(ctx, &doc, `SELECT state FROM research_runs WHERE id = $1`, runID)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("run " + runID)
	}
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("load run %s: %w", runID, err))
	}

	var state research.RunState
	if err := json.Unmarshal(doc, &state); err != nil {
		return nil, errors.Wrap(err, "decode run state")
	}
	return &state, nil
}

// ListRecent returns the newest runs first
func (r *RunRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]models.RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	var rows []models.ResearchRun
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, question, capabilities, record_count, started_at, duration_ms
		FROM research_runs
		ORDER BY started_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, errors.WithCode(errors.CodeDatabaseError, fmt.Errorf("list runs: %w", err))
	}

	out := make([]models.RunSummary, 0, len(rows))
	for _, row := range rows {
		out = append(out, models.RunSummary{
			RunID:        row.ID,
			Question:     row.Question,
			Capabilities: []string(row.Capabilities),
			RecordCount:  row.RecordCount,
			StartedAt:    row.StartedAt,
			DurationMs:   row.DurationMs,
		})
	}
	return out, nil
}

func capabilityNames(caps []research.Capability) []string {
	names := make([]string, 0, len(caps))
	for _, c := range caps {
		names = append(names, c.String())
	}
	return names
}
