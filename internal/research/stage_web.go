package research

import (
	"context"
	"fmt"
	"strings"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/errors"
	"finresearch/ports"
)

// WebOptions shape the single query issued per sub-question
type WebOptions struct {
	MaxResults int
	Topic      string
	Depth      string
}

// DefaultWebOptions matches the news search the stage was designed around
func DefaultWebOptions() WebOptions {
	return WebOptions{MaxResults: 5, Topic: "news", Depth: "basic"}
}

// WebStage answers sub-questions from news search results
type WebStage struct {
	gen      ports.TextGenerator
	searcher ports.WebSearcher
	prompts  *ai.PromptManager
	opts     WebOptions
	logger   *internal.Logger
}

// NewWebStage creates the web-evidence stage
func NewWebStage(gen ports.TextGenerator, searcher ports.WebSearcher, prompts *ai.PromptManager, opts WebOptions) *WebStage {
	def := DefaultWebOptions()
	if opts.MaxResults <= 0 {
		opts.MaxResults = def.MaxResults
	}
	if opts.Topic == "" {
		opts.Topic = def.Topic
	}
	if opts.Depth == "" {
		opts.Depth = def.Depth
	}
	return &WebStage{
		gen:      gen,
		searcher: searcher,
		prompts:  prompts,
		opts:     opts,
		logger:   internal.DefaultLogger.With("WebStage"),
	}
}

func (s *WebStage) Capability() domain.Capability {
	return domain.CapabilityWeb
}

// Execute fails the whole stage on a search or generation error.
func (s *WebStage) Execute(ctx context.Context, run domain.RunView) (domain.StageDelta, error) {
	delta := domain.StageDelta{Capability: domain.CapabilityWeb}

	for _, sq := range run.SubQuestionsFor(domain.CapabilityWeb) {
		results, err := s.searcher.Search(ctx, ports.WebQuery{
			Query:         sq.Question,
			MaxResults:    s.opts.MaxResults,
			Topic:         s.opts.Topic,
			Depth:         s.opts.Depth,
			IncludeAnswer: false,
		})
		if err != nil {
			return domain.StageDelta{}, errors.CollaboratorUnavailable("web search", err)
		}
		s.logger.Info("retrieved %d articles for %q", len(results), sq.Question)

		prompt, err := s.prompts.RenderPrompt(ai.PromptWebAnswer, map[string]string{
			"QUESTION": sq.Question,
			"RESULTS":  FormatWebResults(results),
		})
		if err != nil {
			return domain.StageDelta{}, errors.Wrap(err, "failed to render web prompt")
		}

		text, err := answer(ctx, s.gen, ports.ProfileFast, ports.OpWebAnswer, prompt)
		if err != nil {
			return domain.StageDelta{}, err
		}

		delta.Records = append(delta.Records, domain.EvidenceRecord{
			Question:   sq.Question,
			Capability: domain.CapabilityWeb,
			Answer:     text,
		})
	}
	return delta, nil
}

// FormatWebResults numbers raw result bodies for the answer prompt
func FormatWebResults(results []ports.WebResult) string {
	if len(results) == 0 {
		return "(no results)"
	}
	parts := make([]string, len(results))
	for i, r := range results {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, strings.TrimSpace(r.Content))
	}
	return strings.Join(parts, "\n\n")
}
