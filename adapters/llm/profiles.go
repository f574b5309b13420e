package llm

import (
	"context"

	"finresearch/internal"
	"finresearch/ports"
)

// ProfileSettings is the model configuration of one profile
type ProfileSettings struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// ProfileRouter implements ports.TextGenerator by resolving the requested
// profile to a model and forwarding to a Completer.
type ProfileRouter struct {
	client Completer
	fast   ProfileSettings
	smart  ProfileSettings
	logger *internal.Logger
}

// NewProfileRouter creates a text generator with fast and smart profiles
func NewProfileRouter(client Completer, fast, smart ProfileSettings) *ProfileRouter {
	return &ProfileRouter{
		client: client,
		fast:   fast,
		smart:  smart,
		logger: internal.DefaultLogger.With("ProfileRouter"),
	}
}

// Settings returns the settings used for p; unknown profiles use fast
func (r *ProfileRouter) Settings(p ports.Profile) ProfileSettings {
	if p == ports.ProfileSmart {
		return r.smart
	}
	return r.fast
}

func (r *ProfileRouter) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.LLMResponse, error) {
	s := r.Settings(req.Profile)
	r.logger.Trace("%s via %s profile (%s)", req.Operation, req.Profile, s.Model)
	return r.client.Complete(ctx, Completion{
		Model:       s.Model,
		Temperature: s.Temperature,
		MaxTokens:   s.MaxTokens,
		Messages:    req.Messages,
		JSON:        req.JSON,
	})
}
