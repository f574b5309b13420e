package llm

import (
	"context"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"finresearch/ports"
)

// GeminiClient is a thin wrapper around the official genai client
type GeminiClient struct {
	cli *genai.Client
}

// NewGeminiClient creates a Gemini API client
func NewGeminiClient(ctx context.Context, apiKey string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing Gemini API key")
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiClient{cli: cli}, nil
}

// Complete maps system messages to the system instruction and the rest to
// user/model turns.
func (g *GeminiClient) Complete(ctx context.Context, comp Completion) (*ports.LLMResponse, error) {
	contents, system := toGeminiContents(comp.Messages)
	if len(contents) == 0 {
		// system-only prompts are sent as the user turn
		contents = []*genai.Content{{Role: genai.RoleUser, Parts: []*genai.Part{{Text: system}}}}
		system = ""
	}

	temp := float32(comp.Temperature)
	cfg := &genai.GenerateContentConfig{Temperature: &temp}
	if comp.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(comp.MaxTokens)
	}
	if comp.JSON {
		cfg.ResponseMIMEType = "application/json"
	}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}

	resp, err := g.cli.Models.GenerateContent(ctx, comp.Model, contents, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, fmt.Errorf("gemini response has no candidates")
	}

	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		b.WriteString(p.Text)
	}

	out := &ports.LLMResponse{Content: b.String()}
	if um := resp.UsageMetadata; um != nil {
		out.Usage = &ports.UsageData{
			PromptTokens:     int(um.PromptTokenCount),
			CompletionTokens: int(um.CandidatesTokenCount),
			TotalTokens:      int(um.TotalTokenCount),
			Model:            comp.Model,
			Provider:         "gemini",
		}
	}
	return out, nil
}

func toGeminiContents(messages []ports.Message) ([]*genai.Content, string) {
	var system []string
	var contents []*genai.Content
	for _, m := range messages {
		switch m.Role {
		case ports.RoleSystem:
			system = append(system, m.Content)
		case "assistant":
			contents = append(contents, &genai.Content{Role: genai.RoleModel, Parts: []*genai.Part{{Text: m.Content}}})
		default:
			contents = append(contents, &genai.Content{Role: genai.RoleUser, Parts: []*genai.Part{{Text: m.Content}}})
		}
	}
	return contents, strings.Join(system, "\n\n")
}
