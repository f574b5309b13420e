package research

import (
	"fmt"
	"math"
	"regexp"

	"finresearch/ports"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/floats/scalar"
)

// Intent is what kind of market data a sub-question asks for
type Intent string

const (
	IntentPrice       Intent = "price"
	IntentPerformance Intent = "performance"
	IntentGeneral     Intent = "general"
)

var (
	performancePattern = regexp.MustCompile(`(?i)\b\d+\s*-?\s*(months?|years?|weeks?)\b|\b(last|past|over the)\b|\bperformance\b|\breturns?\b`)
	pricePattern       = regexp.MustCompile(`(?i)\b(current|currently|now|trading at)\b`)
	generalPattern     = regexp.MustCompile(`(?i)\bvolume\b|\bmarket cap`)

	yearPattern     = regexp.MustCompile(`(?i)\byears?\b|\b12\s*-?\s*months?\b|\btwelve\s+months?\b`)
	sixMonthPattern = regexp.MustCompile(`(?i)\b(6|six)\s*-?\s*months?\b`)
	quarterPattern  = regexp.MustCompile(`(?i)\b(3|three)\s*-?\s*months?\b`)
	monthPattern    = regexp.MustCompile(`(?i)\bmonths?\b`)
	weekPattern     = regexp.MustCompile(`(?i)\bweeks?\b`)
)

// ClassifyIntent picks the market query intent from keywords. Performance
// wording wins over price wording; anything else is general.
func ClassifyIntent(question string) Intent {
	switch {
	case performancePattern.MatchString(question):
		return IntentPerformance
	case pricePattern.MatchString(question):
		return IntentPrice
	case generalPattern.MatchString(question):
		return IntentGeneral
	default:
		return IntentGeneral
	}
}

// LookbackPeriod extracts the requested window, defaulting to one year
func LookbackPeriod(question string) ports.Period {
	switch {
	case yearPattern.MatchString(question):
		return ports.Period1Year
	case sixMonthPattern.MatchString(question):
		return ports.Period6Months
	case quarterPattern.MatchString(question):
		return ports.Period3Months
	case monthPattern.MatchString(question):
		return ports.Period1Month
	case weekPattern.MatchString(question):
		return ports.Period1Week
	default:
		return ports.Period1Year
	}
}

// PercentChange is (end-start)/start*100 rounded to 2 decimals
func PercentChange(start, end float64) (float64, error) {
	if start == 0 || math.IsNaN(start) || math.IsNaN(end) || math.IsInf(start, 0) || math.IsInf(end, 0) {
		return 0, fmt.Errorf("cannot compute percent change from %v to %v", start, end)
	}
	return scalar.Round((end-start)/start*100, 2), nil
}

// Performance summarizes a price history window
type Performance struct {
	Ticker        string
	Period        ports.Period
	StartClose    float64
	EndClose      float64
	PriceChange   float64
	PercentChange float64
	High          float64
	Low           float64
	MeanClose     float64
	// Volatility is the sample standard deviation of daily returns, in percent
	Volatility float64
	Points     int
}

// SummarizeHistory computes change and range statistics for a history
func SummarizeHistory(h *ports.PriceHistory) (*Performance, error) {
	if h == nil || len(h.Points) == 0 {
		return nil, fmt.Errorf("no price history")
	}

	closes := make([]float64, 0, len(h.Points))
	for _, p := range h.Points {
		if p.Close > 0 && !math.IsNaN(p.Close) {
			closes = append(closes, p.Close)
		}
	}
	if len(closes) == 0 {
		return nil, fmt.Errorf("no closing prices for %s", h.Ticker)
	}

	start, end := h.StartClose, h.EndClose
	if start <= 0 {
		start = closes[0]
	}
	if end <= 0 {
		end = closes[len(closes)-1]
	}

	pct, err := PercentChange(start, end)
	if err != nil {
		return nil, err
	}

	perf := &Performance{
		Ticker:        h.Ticker,
		Period:        h.Period,
		StartClose:    start,
		EndClose:      end,
		PriceChange:   scalar.Round(end-start, 2),
		PercentChange: pct,
		Points:        len(closes),
	}

	data := stats.Float64Data(closes)
	perf.High, _ = data.Max()
	perf.Low, _ = data.Min()
	if mean, err := data.Mean(); err == nil {
		perf.MeanClose = scalar.Round(mean, 2)
	}

	if len(closes) > 2 {
		returns := make(stats.Float64Data, 0, len(closes)-1)
		for i := 1; i < len(closes); i++ {
			returns = append(returns, (closes[i]-closes[i-1])/closes[i-1]*100)
		}
		if sd, err := stats.StandardDeviationSample(returns); err == nil {
			perf.Volatility = scalar.Round(sd, 2)
		}
	}

	return perf, nil
}
