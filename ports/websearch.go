package ports

import "context"

// WebQuery is one web-search request
type WebQuery struct {
	Query         string
	MaxResults    int
	Topic         string
	Depth         string
	IncludeAnswer bool
}

// WebResult is one search hit
type WebResult struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Content string  `json:"content"`
	Score   float64 `json:"score,omitempty"`
}

// WebSearcher queries a news/web search provider
type WebSearcher interface {
	Search(ctx context.Context, q WebQuery) ([]WebResult, error)
}
