package usage

import (
	"context"
	"sync"
	"time"

	"finresearch/internal"
	"finresearch/models"
	"finresearch/ports"

	"github.com/google/uuid"
)

// Service handles LLM usage tracking and persistence
type Service struct {
	repo    ports.LLMUsageRepository
	logger  *internal.Logger
	pending sync.WaitGroup

	baseDelay time.Duration
}

// NewService creates a new usage service
func NewService(repo ports.LLMUsageRepository) *Service {
	return &Service{
		repo:      repo,
		logger:    internal.DefaultLogger.With("UsageService"),
		baseDelay: 100 * time.Millisecond,
	}
}

// RecordUsage asynchronously records LLM usage for one operation of a run
func (s *Service) RecordUsage(ctx context.Context, runID string, operation ports.Operation, usage *UsageData) error {
	if usage == nil {
		s.logger.Debug("no usage data for %s", operation)
		return nil // Don't fail the caller for tracking issues
	}

	if usage.PromptTokens < 0 || usage.CompletionTokens < 0 || usage.TotalTokens < 0 {
		s.logger.Error("invalid token counts: %+v", usage)
		return nil
	}

	record := &models.LLMUsage{
		ID:               uuid.New(),
		Provider:         usage.Provider,
		Model:            usage.Model,
		OperationType:    string(operation),
		PromptTokens:     usage.PromptTokens,
		CompletionTokens: usage.CompletionTokens,
		TotalTokens:      usage.TotalTokens,
		CreatedAt:        time.Now(),
	}
	if id, err := uuid.Parse(runID); err == nil {
		record.RunID = &id
	}

	// Async persistence to avoid blocking LLM calls
	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		if err := s.persistWithRetry(record); err != nil {
			s.logger.Error("failed to persist usage after retries: %v", err)
		}
	}()

	return nil
}

// Wait blocks until queued records are persisted
func (s *Service) Wait() {
	s.pending.Wait()
}

// persistWithRetry attempts to persist usage with linear backoff
func (s *Service) persistWithRetry(usage *models.LLMUsage) error {
	const maxRetries = 3

	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = s.repo.RecordUsage(context.Background(), usage); err == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			time.Sleep(time.Duration(attempt+1) * s.baseDelay)
		}
	}
	return err
}

// RunUsage returns usage aggregated by operation for a run
func (s *Service) RunUsage(ctx context.Context, runID uuid.UUID) (map[string]*models.OperationUsage, error) {
	return s.repo.GetRunUsageByOperation(ctx, runID)
}

// TrackingGenerator wraps a TextGenerator and records the usage of every call
type TrackingGenerator struct {
	next    ports.TextGenerator
	service *Service
}

// NewTrackingGenerator decorates next with usage recording
func NewTrackingGenerator(next ports.TextGenerator, service *Service) *TrackingGenerator {
	return &TrackingGenerator{next: next, service: service}
}

// Generate delegates and records usage tagged with the run ID from ctx
func (g *TrackingGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.LLMResponse, error) {
	resp, err := g.next.Generate(ctx, req)
	if err != nil {
		return nil, err
	}
	runID, _ := RunIDFromContext(ctx)
	_ = g.service.RecordUsage(ctx, runID, req.Operation, resp.Usage)
	return resp, nil
}
