package retrieval

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"finresearch/ports"
)

// PineconeIndex queries a Pinecone serverless index over its data-plane host.
// Chunks are stored with metadata {text, company, year, page}.
type PineconeIndex struct {
	APIKey    string
	Host      string
	Namespace string

	client *http.Client
}

// NewPineconeIndex creates a query client for the index at host
func NewPineconeIndex(apiKey, host, namespace string) (*PineconeIndex, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("pinecone: API key is missing")
	}
	if strings.TrimSpace(host) == "" {
		return nil, errors.New("pinecone: index host is missing")
	}
	if !strings.HasPrefix(host, "http://") && !strings.HasPrefix(host, "https://") {
		host = "https://" + host
	}
	return &PineconeIndex{
		APIKey:    apiKey,
		Host:      strings.TrimRight(host, "/"),
		Namespace: namespace,
		client:    &http.Client{Timeout: 20 * time.Second},
	}, nil
}

type eqFilter struct {
	Eq any `json:"$eq"`
}

type queryRequest struct {
	Vector          []float32           `json:"vector"`
	TopK            int                 `json:"topK"`
	IncludeMetadata bool                `json:"includeMetadata"`
	Namespace       string              `json:"namespace,omitempty"`
	Filter          map[string]eqFilter `json:"filter,omitempty"`
}

type queryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float64        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query returns the k nearest chunks matching filter
func (p *PineconeIndex) Query(ctx context.Context, vector []float32, k int, filter ports.RetrievalFilter) ([]ports.Passage, error) {
	body := queryRequest{
		Vector:          vector,
		TopK:            k,
		IncludeMetadata: true,
		Namespace:       p.Namespace,
		Filter:          map[string]eqFilter{},
	}
	if filter.Entity != "" {
		body.Filter["company"] = eqFilter{Eq: filter.Entity}
	}
	if filter.Period != 0 {
		body.Filter["year"] = eqFilter{Eq: filter.Period}
	}
	if len(body.Filter) == 0 {
		body.Filter = nil
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.Host+"/query", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Api-Key", p.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("pinecone: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("pinecone http %d: %s", resp.StatusCode, msg)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("pinecone: decode response: %w", err)
	}

	passages := make([]ports.Passage, 0, len(decoded.Matches))
	for _, m := range decoded.Matches {
		passages = append(passages, ports.Passage{
			Text:   metaString(m.Metadata, "text"),
			Entity: metaString(m.Metadata, "company"),
			Period: metaInt(m.Metadata, "year"),
			Page:   metaInt(m.Metadata, "page"),
			Score:  m.Score,
		})
	}
	return passages, nil
}

func metaString(meta map[string]any, key string) string {
	switch v := meta[key].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return ""
	}
}

// metaInt accepts numbers and numeric strings; ingestion stored both
func metaInt(meta map[string]any, key string) int {
	switch v := meta[key].(type) {
	case float64:
		return int(v)
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return 0
		}
		return n
	default:
		return 0
	}
}
