package usage

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"finresearch/models"
	"finresearch/ports"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeUsageRepo struct {
	mu       sync.Mutex
	failures int
	calls    int
	saved    []*models.LLMUsage
}

func (r *fakeUsageRepo) RecordUsage(ctx context.Context, usage *models.LLMUsage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	if r.failures > 0 {
		r.failures--
		return fmt.Errorf("transient")
	}
	r.saved = append(r.saved, usage)
	return nil
}

func (r *fakeUsageRepo) GetRunUsage(ctx context.Context, runID uuid.UUID) ([]*models.LLMUsage, error) {
	return nil, nil
}

func (r *fakeUsageRepo) GetRunUsageByOperation(ctx context.Context, runID uuid.UUID) (map[string]*models.OperationUsage, error) {
	return nil, nil
}

type stubGenerator struct {
	resp *ports.LLMResponse
	err  error
}

func (g stubGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.LLMResponse, error) {
	return g.resp, g.err
}

func newTestService(repo ports.LLMUsageRepository) *Service {
	s := NewService(repo)
	s.baseDelay = time.Millisecond
	return s
}

func TestRecordUsageRetries(t *testing.T) {
	repo := &fakeUsageRepo{failures: 2}
	svc := newTestService(repo)

	runID := uuid.New()
	require.NoError(t, svc.RecordUsage(context.Background(), runID.String(), ports.OpPlan, &UsageData{
		PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15, Model: "m", Provider: "groq",
	}))
	svc.Wait()

	repo.mu.Lock()
	defer repo.mu.Unlock()
	assert.Equal(t, 3, repo.calls)
	require.Len(t, repo.saved, 1)
	assert.Equal(t, "plan", repo.saved[0].OperationType)
	require.NotNil(t, repo.saved[0].RunID)
	assert.Equal(t, runID, *repo.saved[0].RunID)
}

func TestRecordUsageIgnoresMissingOrInvalid(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := newTestService(repo)

	assert.NoError(t, svc.RecordUsage(context.Background(), "", ports.OpSynthesis, nil))
	assert.NoError(t, svc.RecordUsage(context.Background(), "", ports.OpSynthesis, &UsageData{TotalTokens: -1}))
	svc.Wait()

	assert.Equal(t, 0, repo.calls)
}

func TestTrackingGeneratorTagsRun(t *testing.T) {
	repo := &fakeUsageRepo{}
	svc := newTestService(repo)
	gen := NewTrackingGenerator(stubGenerator{resp: &ports.LLMResponse{
		Content: "ok",
		Usage:   &UsageData{PromptTokens: 1, CompletionTokens: 1, TotalTokens: 2},
	}}, svc)

	runID := uuid.New()
	ctx := ContextWithRunID(context.Background(), runID.String())
	resp, err := gen.Generate(ctx, ports.GenerateRequest{Operation: ports.OpMarketAnswer})
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	svc.Wait()

	require.Len(t, repo.saved, 1)
	assert.Equal(t, "market_answer", repo.saved[0].OperationType)
	assert.Equal(t, runID, *repo.saved[0].RunID)

	_, err = NewTrackingGenerator(stubGenerator{err: fmt.Errorf("down")}, svc).Generate(ctx, ports.GenerateRequest{})
	assert.Error(t, err)
}
