package ports

import (
	"context"
	"time"
)

// Period is a historical lookback window
type Period string

const (
	Period1Week   Period = "1wk"
	Period1Month  Period = "1mo"
	Period3Months Period = "3mo"
	Period6Months Period = "6mo"
	Period1Year   Period = "1y"
)

// Days returns the calendar-day length of the window
func (p Period) Days() int {
	switch p {
	case Period1Week:
		return 7
	case Period1Month:
		return 30
	case Period3Months:
		return 90
	case Period6Months:
		return 180
	default:
		return 365
	}
}

// Quote is a current market snapshot
type Quote struct {
	Ticker        string  `json:"ticker"`
	Price         float64 `json:"price"`
	Currency      string  `json:"currency"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Volume        int64   `json:"volume"`
	MarketCap     float64 `json:"marketCap"`
	PreviousClose float64 `json:"previousClose"`
}

// PricePoint is one daily bar
type PricePoint struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
}

// PriceHistory is a historical window for one ticker
type PriceHistory struct {
	Ticker     string       `json:"ticker"`
	Period     Period       `json:"period"`
	Points     []PricePoint `json:"points"`
	StartClose float64      `json:"startClose"`
	EndClose   float64      `json:"endClose"`
}

// MarketData fetches quotes and price history
type MarketData interface {
	Snapshot(ctx context.Context, ticker string) (*Quote, error)
	History(ctx context.Context, ticker string, period Period) (*PriceHistory, error)
}
