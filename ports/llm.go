package ports

import "context"

// Profile selects a model tier. The choice trades latency for quality only.
type Profile string

const (
	ProfileFast  Profile = "fast"
	ProfileSmart Profile = "smart"
)

// Operation tags a generation call for usage accounting
type Operation string

const (
	OpPlan             Operation = "plan"
	OpFilterExtraction Operation = "filter_extraction"
	OpDocumentAnswer   Operation = "document_answer"
	OpWebAnswer        Operation = "web_answer"
	OpMarketAnswer     Operation = "market_answer"
	OpSynthesis        Operation = "synthesis"
)

// Message roles
const (
	RoleSystem = "system"
	RoleUser   = "user"
)

// Message is one chat message
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// GenerateRequest is a single text-generation call
type GenerateRequest struct {
	Profile   Profile
	Operation Operation
	Messages  []Message
	// JSON asks the provider for a JSON object response when it supports it
	JSON bool
}

// UsageData represents raw usage data from LLM provider APIs
type UsageData struct {
	PromptTokens     int    `json:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens"`
	Model            string `json:"model"`
	Provider         string `json:"provider"`
}

// LLMResponse is generated text plus usage when the provider reports it
type LLMResponse struct {
	Content string
	Usage   *UsageData
}

// TextGenerator produces text for planning, grounded answering and synthesis
type TextGenerator interface {
	Generate(ctx context.Context, req GenerateRequest) (*LLMResponse, error)
}
