package research

import (
	"context"
	"fmt"
	"sync"

	"finresearch/internal/usage"
	"finresearch/ports"
)

// scriptedGenerator answers by operation and records every call
type scriptedGenerator struct {
	mu        sync.Mutex
	responses map[ports.Operation]string
	errs      map[ports.Operation]error
	calls     []ports.GenerateRequest
	runIDs    []string
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		responses: map[ports.Operation]string{
			ports.OpPlan:             `{"subQuestions": []}`,
			ports.OpFilterExtraction: `{"companies": ["NVIDIA"], "years": [2025], "searchQuery": "data center revenue"}`,
			ports.OpDocumentAnswer:   "Data center revenue was $115.2B [NVIDIA 2025, Page 40].",
			ports.OpWebAnswer:        "Analysts raised targets after earnings.",
			ports.OpMarketAnswer:     "MSFT trades at $410.00.",
			ports.OpSynthesis:        "Final synthesized answer.",
		},
		errs: map[ports.Operation]error{},
	}
}

func (g *scriptedGenerator) with(op ports.Operation, content string) *scriptedGenerator {
	g.responses[op] = content
	return g
}

func (g *scriptedGenerator) failing(op ports.Operation, err error) *scriptedGenerator {
	g.errs[op] = err
	return g
}

func (g *scriptedGenerator) Generate(ctx context.Context, req ports.GenerateRequest) (*ports.LLMResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls = append(g.calls, req)
	id, _ := usage.RunIDFromContext(ctx)
	g.runIDs = append(g.runIDs, id)

	if err := g.errs[req.Operation]; err != nil {
		return nil, err
	}
	content, ok := g.responses[req.Operation]
	if !ok {
		return nil, fmt.Errorf("no scripted response for %s", req.Operation)
	}
	return &ports.LLMResponse{Content: content}, nil
}

func (g *scriptedGenerator) operations() []ports.Operation {
	g.mu.Lock()
	defer g.mu.Unlock()
	ops := make([]ports.Operation, len(g.calls))
	for i, c := range g.calls {
		ops[i] = c.Operation
	}
	return ops
}

func (g *scriptedGenerator) lastCall(op ports.Operation) (ports.GenerateRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i := len(g.calls) - 1; i >= 0; i-- {
		if g.calls[i].Operation == op {
			return g.calls[i], true
		}
	}
	return ports.GenerateRequest{}, false
}

type retrievalCall struct {
	Query  string
	K      int
	Filter ports.RetrievalFilter
}

type fakeRetriever struct {
	mu    sync.Mutex
	calls []retrievalCall
	err   error
}

func (r *fakeRetriever) Search(ctx context.Context, query string, k int, filter ports.RetrievalFilter) ([]ports.Passage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, retrievalCall{Query: query, K: k, Filter: filter})
	if r.err != nil {
		return nil, r.err
	}
	return []ports.Passage{
		{Text: filter.Entity + " passage", Entity: filter.Entity, Period: filter.Period, Page: 10 + len(r.calls)},
	}, nil
}

type fakeWeb struct {
	mu      sync.Mutex
	queries []ports.WebQuery
	err     error
}

func (w *fakeWeb) Search(ctx context.Context, q ports.WebQuery) ([]ports.WebResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queries = append(w.queries, q)
	if w.err != nil {
		return nil, w.err
	}
	return []ports.WebResult{{Title: "t", URL: "https://news.example/a", Content: "NVIDIA beat estimates."}}, nil
}

type fakeMarket struct {
	quotes    map[string]*ports.Quote
	histories map[string]*ports.PriceHistory
	err       error
}

func newFakeMarket() *fakeMarket {
	return &fakeMarket{
		quotes: map[string]*ports.Quote{
			"MSFT": {Ticker: "MSFT", Price: 410, Currency: "USD", Change: 2.5, ChangePercent: 0.61, Volume: 21345678, MarketCap: 3.05e12, PreviousClose: 407.5},
			"NVDA": {Ticker: "NVDA", Price: 120, Currency: "USD", Change: -1.2, ChangePercent: -0.99, Volume: 300000000, MarketCap: 2.9e12, PreviousClose: 121.2},
		},
		histories: map[string]*ports.PriceHistory{},
	}
}

func (m *fakeMarket) Snapshot(ctx context.Context, ticker string) (*ports.Quote, error) {
	if m.err != nil {
		return nil, m.err
	}
	q, ok := m.quotes[ticker]
	if !ok {
		return nil, fmt.Errorf("no quote for %s", ticker)
	}
	return q, nil
}

func (m *fakeMarket) History(ctx context.Context, ticker string, period ports.Period) (*ports.PriceHistory, error) {
	if m.err != nil {
		return nil, m.err
	}
	h, ok := m.histories[ticker]
	if !ok {
		return nil, fmt.Errorf("no history for %s", ticker)
	}
	return h, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) Publish(ev Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) types() []EventType {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]EventType, len(s.events))
	for i, ev := range s.events {
		out[i] = ev.Type
	}
	return out
}
