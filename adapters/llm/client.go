package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"finresearch/internal"
	"finresearch/ports"
)

// Completion is one provider-level chat request
type Completion struct {
	Model       string
	Temperature float64
	MaxTokens   int
	Messages    []ports.Message
	JSON        bool
}

// Completer is a chat-completion backend
type Completer interface {
	Complete(ctx context.Context, c Completion) (*ports.LLMResponse, error)
}

// OpenAIClient talks to any OpenAI-compatible chat completions API (OpenAI, Groq)
type OpenAIClient struct {
	APIKey     string
	BaseURL    string
	Provider   string
	Timeout    time.Duration
	MaxRetries int

	httpClient *http.Client
	backoff    time.Duration
	logger     *internal.Logger
}

// NewOpenAIClient creates a client for an OpenAI-compatible endpoint
func NewOpenAIClient(apiKey, baseURL, provider string, timeout time.Duration, maxRetries int) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("missing %s API key", provider)
	}
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &OpenAIClient{
		APIKey:     apiKey,
		BaseURL:    strings.TrimRight(baseURL, "/"),
		Provider:   provider,
		Timeout:    timeout,
		MaxRetries: maxRetries,
		httpClient: &http.Client{Timeout: timeout},
		backoff:    500 * time.Millisecond,
		logger:     internal.DefaultLogger.With("LLM:" + provider),
	}, nil
}

type responseFormat struct {
	Type string `json:"type"`
}

type chatRequest struct {
	Model          string          `json:"model"`
	Messages       []ports.Message `json:"messages"`
	Temperature    float64         `json:"temperature"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
}

// httpStatusError carries a non-2xx response
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

func (e *httpStatusError) retryable() bool {
	return e.Status == http.StatusTooManyRequests || e.Status >= 500
}

// Complete sends the request, retrying rate limits and server errors
func (c *OpenAIClient) Complete(ctx context.Context, comp Completion) (*ports.LLMResponse, error) {
	if strings.TrimSpace(comp.Model) == "" {
		return nil, fmt.Errorf("missing model")
	}

	body := chatRequest{
		Model:       comp.Model,
		Messages:    comp.Messages,
		Temperature: comp.Temperature,
		MaxTokens:   comp.MaxTokens,
	}
	if comp.JSON {
		body.ResponseFormat = &responseFormat{Type: "json_object"}
	}
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := c.backoff * time.Duration(1<<(attempt-1))
			c.logger.Warn("retrying %s in %v after: %v", comp.Model, delay, lastErr)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		resp, err := c.do(ctx, raw)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if se, ok := err.(*httpStatusError); ok && !se.retryable() {
			break
		}
		if ctx.Err() != nil {
			break
		}
	}
	return nil, fmt.Errorf("%s chat completion failed: %w", c.Provider, lastErr)
}

func (c *OpenAIClient) do(ctx context.Context, raw []byte) (*ports.LLMResponse, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/chat/completions", bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respRaw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &httpStatusError{Status: resp.StatusCode, Body: string(respRaw)}
	}

	var decoded chatResponse
	if err := json.Unmarshal(respRaw, &decoded); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return nil, fmt.Errorf("response missing choices")
	}

	out := &ports.LLMResponse{Content: decoded.Choices[0].Message.Content}
	if decoded.Usage != nil {
		out.Usage = &ports.UsageData{
			PromptTokens:     decoded.Usage.PromptTokens,
			CompletionTokens: decoded.Usage.CompletionTokens,
			TotalTokens:      decoded.Usage.TotalTokens,
			Model:            decoded.Model,
			Provider:         c.Provider,
		}
	}
	return out, nil
}
