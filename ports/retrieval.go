package ports

import "context"

// RetrievalFilter scopes a similarity search to one entity and fiscal year
type RetrievalFilter struct {
	Entity string
	Period int
}

// Passage is one retrieved document span with its provenance
type Passage struct {
	Text   string  `json:"text"`
	Entity string  `json:"entity"`
	Period int     `json:"period"`
	Page   int     `json:"page"`
	Score  float64 `json:"score,omitempty"`
}

// Retriever is the document-similarity store
type Retriever interface {
	Search(ctx context.Context, query string, k int, filter RetrievalFilter) ([]Passage, error)
}

// Embedder turns query text into a vector
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
