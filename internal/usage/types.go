package usage

import (
	"context"

	"finresearch/ports"
)

// LLMResponse represents an enhanced LLM response with usage data
type LLMResponse = ports.LLMResponse

// UsageData represents raw usage data from LLM provider APIs
type UsageData = ports.UsageData

type runIDKey struct{}

// ContextWithRunID tags ctx with the research run it belongs to
func ContextWithRunID(ctx context.Context, runID string) context.Context {
	return context.WithValue(ctx, runIDKey{}, runID)
}

// RunIDFromContext returns the run ID set by ContextWithRunID
func RunIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(runIDKey{}).(string)
	return id, ok && id != ""
}
