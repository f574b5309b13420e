package models

import (
	"time"

	"github.com/google/uuid"
)

// LLMUsage represents a single LLM API call's token usage
type LLMUsage struct {
	ID               uuid.UUID  `json:"id" db:"id"`
	RunID            *uuid.UUID `json:"run_id,omitempty" db:"run_id"`
	Provider         string     `json:"provider" db:"provider"`             // 'groq', 'openai', 'gemini'
	Model            string     `json:"model" db:"model"`                   // 'llama-3.3-70b-versatile', ...
	OperationType    string     `json:"operation_type" db:"operation_type"` // 'plan', 'document_answer', ...
	PromptTokens     int        `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int        `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int        `json:"total_tokens" db:"total_tokens"`
	CreatedAt        time.Time  `json:"created_at" db:"created_at"`
}

// OperationUsage represents usage aggregated by operation
type OperationUsage struct {
	OperationType    string `json:"operation_type" db:"operation_type"`
	PromptTokens     int    `json:"prompt_tokens" db:"prompt_tokens"`
	CompletionTokens int    `json:"completion_tokens" db:"completion_tokens"`
	TotalTokens      int    `json:"total_tokens" db:"total_tokens"`
	RequestCount     int    `json:"request_count" db:"request_count"`
}
