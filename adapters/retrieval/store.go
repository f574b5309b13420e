package retrieval

import (
	"context"
	"fmt"

	"finresearch/ports"
)

// VectorIndex is the nearest-neighbour query side of a vector database
type VectorIndex interface {
	Query(ctx context.Context, vector []float32, k int, filter ports.RetrievalFilter) ([]ports.Passage, error)
}

// Store implements ports.Retriever by embedding the query and searching the index
type Store struct {
	embedder ports.Embedder
	index    VectorIndex
}

// NewStore composes an embedder and a vector index
func NewStore(embedder ports.Embedder, index VectorIndex) *Store {
	return &Store{embedder: embedder, index: index}
}

func (s *Store) Search(ctx context.Context, query string, k int, filter ports.RetrievalFilter) ([]ports.Passage, error) {
	if k <= 0 {
		return nil, fmt.Errorf("retrieval: k must be positive, got %d", k)
	}
	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	passages, err := s.index.Query(ctx, vec, k, filter)
	if err != nil {
		return nil, fmt.Errorf("query index: %w", err)
	}
	if len(passages) > k {
		passages = passages[:k]
	}
	return passages, nil
}
