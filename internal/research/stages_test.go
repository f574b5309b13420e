package research

import (
	"context"
	"fmt"
	"testing"
	"time"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal/config"
	"finresearch/internal/errors"
	"finresearch/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockRetriever struct {
	mock.Mock
}

func (m *mockRetriever) Search(ctx context.Context, query string, k int, filter ports.RetrievalFilter) ([]ports.Passage, error) {
	args := m.Called(ctx, query, k, filter)
	passages, _ := args.Get(0).([]ports.Passage)
	return passages, args.Error(1)
}

func viewWith(subs ...domain.SubQuestion) domain.RunView {
	state := domain.NewRunState("run-test", domain.ResearchRequest{OriginalQuestion: "original"}, time.Now())
	state.ApplyPlan(domain.NewPlan(subs))
	return state.View()
}

func TestDocumentStageQueriesEveryPair(t *testing.T) {
	gen := newScriptedGenerator().with(ports.OpFilterExtraction,
		`{"companies": ["NVIDIA", "AMD"], "years": [2024, 2025], "searchQuery": "data center revenue"}`)

	retriever := &mockRetriever{}
	for _, company := range []string{"NVIDIA", "AMD"} {
		for _, year := range []int{2024, 2025} {
			retriever.On("Search", mock.Anything, "data center revenue", 3, ports.RetrievalFilter{Entity: company, Period: year}).
				Return([]ports.Passage{{Text: "excerpt", Entity: company, Period: year, Page: year - 2000}}, nil).Once()
		}
	}

	prompts := ai.NewPromptManager("")
	stage := NewDocumentStage(gen, retriever, newExtractor(gen), prompts, 0)

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "Data center revenue of NVIDIA and AMD?", Capability: domain.CapabilityDocument},
		domain.SubQuestion{Question: "MSFT price", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)
	retriever.AssertExpectations(t)

	assert.Equal(t, domain.CapabilityDocument, delta.Capability)
	require.Len(t, delta.Records, 1)
	rec := delta.Records[0]
	assert.Equal(t, domain.CapabilityDocument, rec.Capability)
	assert.Equal(t, "Data center revenue was $115.2B [NVIDIA 2025, Page 40].", rec.Answer)
	assert.Equal(t, []domain.Source{
		domain.DocumentRef("NVIDIA", 2024, 24),
		domain.DocumentRef("NVIDIA", 2025, 25),
		domain.DocumentRef("AMD", 2024, 24),
		domain.DocumentRef("AMD", 2025, 25),
	}, rec.Sources)

	call, ok := gen.lastCall(ports.OpDocumentAnswer)
	require.True(t, ok)
	assert.Equal(t, ports.ProfileFast, call.Profile)
	assert.Contains(t, call.Messages[0].Content, "[4] AMD 2025 (Page 25):")
}

func TestDocumentStageFallbackStillRetrieves(t *testing.T) {
	gen := newScriptedGenerator().with(ports.OpFilterExtraction, "not json at all")
	retriever := &fakeRetriever{}
	stage := NewDocumentStage(gen, retriever, newExtractor(gen), ai.NewPromptManager(""), 3)

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "Risk factors?", Capability: domain.CapabilityDocument},
	))
	require.NoError(t, err)
	require.Len(t, delta.Records, 1)

	// 3 entities x 2 years with the raw question as query
	require.Len(t, retriever.calls, 6)
	for _, c := range retriever.calls {
		assert.Equal(t, "Risk factors?", c.Query)
		assert.Equal(t, 3, c.K)
	}
	assert.Len(t, delta.Records[0].Sources, 6)
}

func TestDocumentStageRetrievalOutageIsFatal(t *testing.T) {
	gen := newScriptedGenerator()
	retriever := &fakeRetriever{err: fmt.Errorf("index unreachable")}
	stage := NewDocumentStage(gen, retriever, newExtractor(gen), ai.NewPromptManager(""), 3)

	_, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "q1", Capability: domain.CapabilityDocument},
	))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.CodeCollaboratorUnavailable))
}

func TestWebStage(t *testing.T) {
	gen := newScriptedGenerator()
	web := &fakeWeb{}
	stage := NewWebStage(gen, web, ai.NewPromptManager(""), WebOptions{})

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "Latest NVIDIA analyst views?", Capability: domain.CapabilityWeb},
		domain.SubQuestion{Question: "AMD news this week?", Capability: domain.CapabilityWeb},
	))
	require.NoError(t, err)

	require.Len(t, delta.Records, 2)
	assert.Empty(t, delta.Records[0].Sources)
	assert.Equal(t, "AMD news this week?", delta.Records[1].Question)

	require.Len(t, web.queries, 2)
	assert.Equal(t, ports.WebQuery{Query: "Latest NVIDIA analyst views?", MaxResults: 5, Topic: "news", Depth: "basic"}, web.queries[0])

	call, _ := gen.lastCall(ports.OpWebAnswer)
	assert.Contains(t, call.Messages[0].Content, "[1] NVIDIA beat estimates.")
}

func TestWebStageOutageIsFatal(t *testing.T) {
	stage := NewWebStage(newScriptedGenerator(), &fakeWeb{err: fmt.Errorf("429")}, ai.NewPromptManager(""), DefaultWebOptions())

	_, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "news?", Capability: domain.CapabilityWeb},
	))
	assert.True(t, errors.HasCode(err, errors.CodeCollaboratorUnavailable))
}

func newMarketStage(gen ports.TextGenerator, market ports.MarketData) *MarketStage {
	return NewMarketStage(gen, market, config.DefaultCatalog(), ai.NewPromptManager(""), "Yahoo Finance")
}

func TestMarketStageSnapshot(t *testing.T) {
	gen := newScriptedGenerator()
	stage := newMarketStage(gen, newFakeMarket())

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "What is Microsoft's current stock price?", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)
	require.Len(t, delta.Records, 1)

	rec := delta.Records[0]
	assert.Equal(t, "MSFT trades at $410.00.", rec.Answer)
	assert.Equal(t, []domain.Source{domain.MarketRef("MSFT", 410, "Yahoo Finance")}, rec.Sources)

	call, _ := gen.lastCall(ports.OpMarketAnswer)
	prompt := call.Messages[0].Content
	assert.Contains(t, prompt, "Price: $410.00 USD")
	assert.Contains(t, prompt, "Change: +$2.50 (0.61%)")
	assert.Contains(t, prompt, "Volume: 21,345,678")
	assert.Contains(t, prompt, "Market Cap: $3050.00B")
}

func TestMarketStageOmitsUnknownMarketCap(t *testing.T) {
	market := newFakeMarket()
	market.quotes["MSFT"] = &ports.Quote{Ticker: "MSFT", Price: 410, Currency: "USD", Change: 2, ChangePercent: 0.49, Volume: 1000, PreviousClose: 408}
	gen := newScriptedGenerator()
	stage := newMarketStage(gen, market)

	_, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "What is Microsoft's current stock price?", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)

	call, _ := gen.lastCall(ports.OpMarketAnswer)
	prompt := call.Messages[0].Content
	assert.Contains(t, prompt, "Previous Close: $408.00")
	assert.NotContains(t, prompt, "Market Cap")
}

func TestMarketStagePerformance(t *testing.T) {
	market := newFakeMarket()
	market.histories["NVDA"] = &ports.PriceHistory{
		Ticker: "NVDA",
		Period: ports.Period6Months,
		Points: []ports.PricePoint{{Close: 100}, {Close: 110}, {Close: 105}, {Close: 120}},
	}
	gen := newScriptedGenerator()
	stage := newMarketStage(gen, market)

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "How did NVIDIA and AMD perform over the last 6 months?", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)
	require.Len(t, delta.Records, 1)

	// AMD has no history: skipped, NVDA still reported
	assert.Equal(t, []domain.Source{domain.MarketRef("NVDA", 120, "Yahoo Finance")}, delta.Records[0].Sources)

	call, _ := gen.lastCall(ports.OpMarketAnswer)
	prompt := call.Messages[0].Content
	assert.Contains(t, prompt, "NVDA - 6mo Performance")
	assert.Contains(t, prompt, "Start: $100.00 → End: $120.00")
	assert.Contains(t, prompt, "Change: +$20.00 (+20.00%)")
	assert.Contains(t, prompt, "low $100.00, high $120.00")
}

func TestMarketStageDegradesPerSubQuestion(t *testing.T) {
	gen := newScriptedGenerator()
	stage := newMarketStage(gen, newFakeMarket())

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "What is the stock price of Acme Corp?", Capability: domain.CapabilityMarket},
		domain.SubQuestion{Question: "What is AMD trading at?", Capability: domain.CapabilityMarket},
		domain.SubQuestion{Question: "What is NVIDIA's current price?", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)
	require.Len(t, delta.Records, 3)

	// no ticker, then a ticker with no quote
	for _, rec := range delta.Records[:2] {
		assert.Equal(t, MarketUnavailableAnswer, rec.Answer)
		assert.Empty(t, rec.Sources)
		assert.Equal(t, domain.CapabilityMarket, rec.Capability)
	}
	assert.Equal(t, []domain.Source{domain.MarketRef("NVDA", 120, "Yahoo Finance")}, delta.Records[2].Sources)
}

func TestMarketStageGenerationFailureDegrades(t *testing.T) {
	gen := newScriptedGenerator().failing(ports.OpMarketAnswer, fmt.Errorf("rate limited"))
	stage := newMarketStage(gen, newFakeMarket())

	delta, err := stage.Execute(context.Background(), viewWith(
		domain.SubQuestion{Question: "MSFT price now", Capability: domain.CapabilityMarket},
	))
	require.NoError(t, err)
	require.Len(t, delta.Records, 1)
	assert.Equal(t, MarketUnavailableAnswer, delta.Records[0].Answer)
}

func TestMarketStageStopsOnCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newMarketStage(newScriptedGenerator(), newFakeMarket()).Execute(ctx, viewWith(
		domain.SubQuestion{Question: "MSFT price now", Capability: domain.CapabilityMarket},
	))
	assert.ErrorIs(t, err, context.Canceled)
}
