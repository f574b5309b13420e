package research

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"finresearch/ai"
	domain "finresearch/domain/research"
	"finresearch/internal"
	"finresearch/internal/config"
	"finresearch/ports"
)

// MarketUnavailableAnswer is recorded when a sub-question's market data
// could not be obtained.
const MarketUnavailableAnswer = "Unable to retrieve stock data. The ticker might be invalid or the service is temporarily unavailable."

var (
	errNoTickers    = stderrors.New("no known ticker in question")
	errNoMarketData = stderrors.New("no market data returned")
)

// marketDatum is either a quote or a performance summary for one ticker
type marketDatum struct {
	Ticker string
	Quote  *ports.Quote
	Perf   *Performance
}

func (d marketDatum) price() float64 {
	if d.Quote != nil {
		return d.Quote.Price
	}
	return d.Perf.EndClose
}

// MarketStage answers sub-questions from quotes and price history. Failures
// are contained per sub-question.
type MarketStage struct {
	gen        ports.TextGenerator
	market     ports.MarketData
	catalog    *config.Catalog
	prompts    *ai.PromptManager
	sourceName string
	logger     *internal.Logger
}

// NewMarketStage creates the market-evidence stage
func NewMarketStage(gen ports.TextGenerator, market ports.MarketData, catalog *config.Catalog, prompts *ai.PromptManager, sourceName string) *MarketStage {
	if sourceName == "" {
		sourceName = "Yahoo Finance"
	}
	return &MarketStage{
		gen:        gen,
		market:     market,
		catalog:    catalog,
		prompts:    prompts,
		sourceName: sourceName,
		logger:     internal.DefaultLogger.With("MarketStage"),
	}
}

func (s *MarketStage) Capability() domain.Capability {
	return domain.CapabilityMarket
}

// Execute yields exactly one record per sub-question. Only cancellation of
// ctx stops the stage early.
func (s *MarketStage) Execute(ctx context.Context, run domain.RunView) (domain.StageDelta, error) {
	delta := domain.StageDelta{Capability: domain.CapabilityMarket}

	for _, sq := range run.SubQuestionsFor(domain.CapabilityMarket) {
		if err := ctx.Err(); err != nil {
			return domain.StageDelta{}, err
		}
		delta.Records = append(delta.Records, s.answerOne(ctx, sq))
	}
	return delta, nil
}

func (s *MarketStage) answerOne(ctx context.Context, sq domain.SubQuestion) domain.EvidenceRecord {
	record, err := s.tryAnswer(ctx, sq)
	if err != nil {
		s.logger.Warn("market data unavailable for %q: %v", sq.Question, err)
		return domain.EvidenceRecord{
			Question:   sq.Question,
			Capability: domain.CapabilityMarket,
			Answer:     MarketUnavailableAnswer,
		}
	}
	return record
}

func (s *MarketStage) tryAnswer(ctx context.Context, sq domain.SubQuestion) (domain.EvidenceRecord, error) {
	data, err := s.collect(ctx, sq.Question)
	if err != nil {
		return domain.EvidenceRecord{}, err
	}

	prompt, err := s.prompts.RenderPrompt(ai.PromptMarketAnswer, map[string]string{
		"QUESTION": sq.Question,
		"SOURCE":   s.sourceName,
		"DATA":     formatMarketData(data),
	})
	if err != nil {
		return domain.EvidenceRecord{}, err
	}

	text, err := answer(ctx, s.gen, ports.ProfileFast, ports.OpMarketAnswer, prompt)
	if err != nil {
		return domain.EvidenceRecord{}, err
	}

	sources := make([]domain.Source, len(data))
	for i, d := range data {
		sources[i] = domain.MarketRef(d.Ticker, d.price(), s.sourceName)
	}

	return domain.EvidenceRecord{
		Question:   sq.Question,
		Capability: domain.CapabilityMarket,
		Answer:     text,
		Sources:    sources,
	}, nil
}

// collect fetches data for every ticker in the question, skipping tickers
// whose lookups fail.
func (s *MarketStage) collect(ctx context.Context, question string) ([]marketDatum, error) {
	tickers := s.catalog.TickersIn(question)
	if len(tickers) == 0 {
		return nil, errNoTickers
	}

	intent := ClassifyIntent(question)
	period := LookbackPeriod(question)
	s.logger.Debug("tickers=%v intent=%s period=%s", tickers, intent, period)

	var data []marketDatum
	for _, ticker := range tickers {
		if intent == IntentPerformance {
			hist, err := s.market.History(ctx, ticker, period)
			if err != nil {
				s.logger.Warn("history for %s failed: %v", ticker, err)
				continue
			}
			perf, err := SummarizeHistory(hist)
			if err != nil {
				s.logger.Warn("history for %s unusable: %v", ticker, err)
				continue
			}
			perf.Ticker = ticker
			perf.Period = period
			data = append(data, marketDatum{Ticker: ticker, Perf: perf})
			continue
		}

		quote, err := s.market.Snapshot(ctx, ticker)
		if err != nil {
			s.logger.Warn("quote for %s failed: %v", ticker, err)
			continue
		}
		if quote == nil || quote.Price <= 0 {
			s.logger.Warn("quote for %s has no price", ticker)
			continue
		}
		data = append(data, marketDatum{Ticker: ticker, Quote: quote})
	}

	if len(data) == 0 {
		return nil, errNoMarketData
	}
	return data, nil
}

var numberPrinter = message.NewPrinter(language.English)

func signed(v float64) string {
	if v >= 0 {
		return "+"
	}
	return "-"
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

// formatMarketData renders fetched data as numbered blocks for the prompt
func formatMarketData(data []marketDatum) string {
	blocks := make([]string, len(data))
	for i, d := range data {
		var b strings.Builder
		if q := d.Quote; q != nil {
			fmt.Fprintf(&b, "[%d] %s\n", i+1, d.Ticker)
			fmt.Fprintf(&b, "Price: $%.2f %s\n", q.Price, q.Currency)
			fmt.Fprintf(&b, "Change: %s$%.2f (%.2f%%)\n", signed(q.Change), abs(q.Change), q.ChangePercent)
			b.WriteString(numberPrinter.Sprintf("Volume: %d\n", q.Volume))
			if q.MarketCap > 0 {
				fmt.Fprintf(&b, "Market Cap: $%.2fB\n", q.MarketCap/1e9)
			}
			fmt.Fprintf(&b, "Previous Close: $%.2f", q.PreviousClose)
		} else {
			p := d.Perf
			fmt.Fprintf(&b, "[%d] %s - %s Performance\n", i+1, d.Ticker, p.Period)
			fmt.Fprintf(&b, "Start: $%.2f → End: $%.2f\n", p.StartClose, p.EndClose)
			fmt.Fprintf(&b, "Change: %s$%.2f (%s%.2f%%)\n", signed(p.PriceChange), abs(p.PriceChange), signed(p.PercentChange), abs(p.PercentChange))
			fmt.Fprintf(&b, "Range: low $%.2f, high $%.2f, mean close $%.2f\n", p.Low, p.High, p.MeanClose)
			fmt.Fprintf(&b, "Daily volatility: %.2f%%\n", p.Volatility)
			fmt.Fprintf(&b, "Data points: %d days", p.Points)
		}
		blocks[i] = b.String()
	}
	return strings.Join(blocks, "\n\n")
}
