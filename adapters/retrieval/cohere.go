package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"finresearch/internal"
)

// CohereEmbedder embeds search queries with the Cohere embed API. Query
// vectors are cached by text since sub-questions repeat across
// company/year filters within a run.
type CohereEmbedder struct {
	APIKey  string
	BaseURL string
	Model   string

	client *http.Client
	cache  *lru.Cache[string, []float32]
	logger *internal.Logger
}

// NewCohereEmbedder creates an embedder with an LRU cache of cacheSize entries
func NewCohereEmbedder(apiKey, baseURL, model string, cacheSize int) (*CohereEmbedder, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("cohere: API key is missing")
	}
	if baseURL == "" {
		baseURL = "https://api.cohere.com"
	}
	if model == "" {
		model = "embed-english-v3.0"
	}
	if cacheSize <= 0 {
		cacheSize = 512
	}
	cache, err := lru.New[string, []float32](cacheSize)
	if err != nil {
		return nil, err
	}
	return &CohereEmbedder{
		APIKey:  apiKey,
		BaseURL: strings.TrimRight(baseURL, "/"),
		Model:   model,
		client:  &http.Client{Timeout: 20 * time.Second},
		cache:   cache,
		logger:  internal.DefaultLogger.With("Cohere"),
	}, nil
}

type embedRequest struct {
	Texts          []string `json:"texts"`
	Model          string   `json:"model"`
	InputType      string   `json:"input_type"`
	EmbeddingTypes []string `json:"embedding_types"`
}

type embedResponse struct {
	Embeddings struct {
		Float [][]float32 `json:"float"`
	} `json:"embeddings"`
}

// Embed returns the query embedding for text
func (c *CohereEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		c.logger.Trace("embedding cache hit")
		return v, nil
	}

	payload, err := json.Marshal(embedRequest{
		Texts:          []string{text},
		Model:          c.Model,
		InputType:      "search_query",
		EmbeddingTypes: []string{"float"},
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cohere: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("cohere http %d: %s", resp.StatusCode, body)
	}

	var decoded embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("cohere: decode response: %w", err)
	}
	if len(decoded.Embeddings.Float) == 0 || len(decoded.Embeddings.Float[0]) == 0 {
		return nil, errors.New("cohere: empty embedding")
	}

	vec := decoded.Embeddings.Float[0]
	c.cache.Add(text, vec)
	return vec, nil
}
