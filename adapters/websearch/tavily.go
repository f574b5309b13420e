package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"finresearch/internal"
	"finresearch/ports"
)

const maxBackoff = 30 * time.Second

// Tavily calls the Tavily search API
type Tavily struct {
	APIKey  string
	BaseURL string

	client       *http.Client
	initialDelay time.Duration
	logger       *internal.Logger
}

// NewTavily constructs a Tavily search provider
func NewTavily(apiKey, baseURL string) *Tavily {
	return NewTavilyWithClient(apiKey, baseURL, &http.Client{Timeout: 15 * time.Second})
}

// NewTavilyWithClient uses the supplied HTTP client, e.g. to override the timeout
func NewTavilyWithClient(apiKey, baseURL string, client *http.Client) *Tavily {
	if baseURL == "" {
		baseURL = "https://api.tavily.com"
	}
	return &Tavily{
		APIKey:       apiKey,
		BaseURL:      strings.TrimRight(baseURL, "/"),
		client:       client,
		initialDelay: time.Second,
		logger:       internal.DefaultLogger.With("Tavily"),
	}
}

type searchRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	MaxResults    int    `json:"max_results,omitempty"`
	Topic         string `json:"topic,omitempty"`
	SearchDepth   string `json:"search_depth,omitempty"`
	IncludeAnswer bool   `json:"include_answer"`
}

type searchResponse struct {
	Results []struct {
		Title   string  `json:"title"`
		URL     string  `json:"url"`
		Content string  `json:"content"`
		Score   float64 `json:"score"`
	} `json:"results"`
}

// Search posts a query to Tavily, backing off on 429 responses
func (t *Tavily) Search(ctx context.Context, q ports.WebQuery) ([]ports.WebResult, error) {
	if strings.TrimSpace(t.APIKey) == "" {
		return nil, errors.New("tavily: API key is missing")
	}

	payload, err := json.Marshal(searchRequest{
		APIKey:        t.APIKey,
		Query:         q.Query,
		MaxResults:    q.MaxResults,
		Topic:         q.Topic,
		SearchDepth:   q.Depth,
		IncludeAnswer: q.IncludeAnswer,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := t.initialDelay
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.BaseURL+"/search", bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tavily: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		t.logger.Warn("rate limited, retrying in %v", delay)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay < maxBackoff {
			delay *= 2
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily http %d", resp.StatusCode)
	}

	var decoded searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("tavily: decode response: %w", err)
	}

	results := make([]ports.WebResult, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, ports.WebResult{Title: r.Title, URL: r.URL, Content: r.Content, Score: r.Score})
		if q.MaxResults > 0 && len(results) >= q.MaxResults {
			break
		}
	}
	return results, nil
}
