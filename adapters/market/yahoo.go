package market

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finresearch/internal"
	"finresearch/ports"
)

const userAgent = "Mozilla/5.0 (compatible; finresearch/1.0)"

// Yahoo reads quotes and daily history from the public Yahoo Finance endpoints
type Yahoo struct {
	BaseURL string

	client *http.Client
	now    func() time.Time
	logger *internal.Logger
}

// NewYahoo creates a Yahoo Finance client
func NewYahoo(baseURL string) *Yahoo {
	if baseURL == "" {
		baseURL = "https://query1.finance.yahoo.com"
	}
	return &Yahoo{
		BaseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 15 * time.Second},
		now:     time.Now,
		logger:  internal.DefaultLogger.With("Yahoo"),
	}
}

type statusError struct {
	status int
}

func (e *statusError) Error() string {
	return fmt.Sprintf("yahoo http %d", e.status)
}

type quoteResponse struct {
	QuoteResponse struct {
		Result []struct {
			Symbol                     string  `json:"symbol"`
			Currency                   string  `json:"currency"`
			RegularMarketPrice         float64 `json:"regularMarketPrice"`
			RegularMarketChange        float64 `json:"regularMarketChange"`
			RegularMarketChangePercent float64 `json:"regularMarketChangePercent"`
			RegularMarketVolume        int64   `json:"regularMarketVolume"`
			RegularMarketPreviousClose float64 `json:"regularMarketPreviousClose"`
			MarketCap                  float64 `json:"marketCap"`
		} `json:"result"`
	} `json:"quoteResponse"`
}

type chartResponse struct {
	Chart struct {
		Result []struct {
			Meta struct {
				Symbol             string  `json:"symbol"`
				Currency           string  `json:"currency"`
				RegularMarketPrice float64 `json:"regularMarketPrice"`
				ChartPreviousClose float64 `json:"chartPreviousClose"`
				PreviousClose      float64 `json:"previousClose"`
				RegularMarketVol   int64   `json:"regularMarketVolume"`
			} `json:"meta"`
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Close  []*float64 `json:"close"`
					Volume []*int64   `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// Snapshot returns the current quote. When the quote endpoint refuses the
// request (it sometimes demands a session crumb) the chart metadata is used.
func (y *Yahoo) Snapshot(ctx context.Context, ticker string) (*ports.Quote, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("yahoo: empty ticker")
	}

	var qr quoteResponse
	err := y.getJSON(ctx, "/v7/finance/quote?symbols="+url.QueryEscape(ticker), &qr)
	if err == nil {
		if len(qr.QuoteResponse.Result) == 0 {
			return nil, fmt.Errorf("yahoo: no quote for %s", ticker)
		}
		r := qr.QuoteResponse.Result[0]
		return &ports.Quote{
			Ticker:        ticker,
			Price:         r.RegularMarketPrice,
			Currency:      r.Currency,
			Change:        r.RegularMarketChange,
			ChangePercent: r.RegularMarketChangePercent,
			Volume:        r.RegularMarketVolume,
			MarketCap:     r.MarketCap,
			PreviousClose: r.RegularMarketPreviousClose,
		}, nil
	}

	se, ok := err.(*statusError)
	if !ok || (se.status != http.StatusUnauthorized && se.status != http.StatusForbidden) {
		return nil, err
	}
	y.logger.Debug("quote endpoint refused %s (%v), using chart metadata", ticker, err)
	return y.snapshotFromChart(ctx, ticker)
}

func (y *Yahoo) snapshotFromChart(ctx context.Context, ticker string) (*ports.Quote, error) {
	var cr chartResponse
	if err := y.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(ticker)+"?range=5d&interval=1d", &cr); err != nil {
		return nil, err
	}
	if len(cr.Chart.Result) == 0 {
		return nil, chartError(ticker, cr)
	}
	res := cr.Chart.Result[0]
	meta := res.Meta
	q := &ports.Quote{
		Ticker:   ticker,
		Price:    meta.RegularMarketPrice,
		Currency: meta.Currency,
		Volume:   meta.RegularMarketVol,
	}

	// chartPreviousClose is the close before the whole window, so the daily
	// reference is the prior bar unless the meta carries previousClose.
	prev := meta.PreviousClose
	if prev <= 0 {
		var closes []float64
		if len(res.Indicators.Quote) > 0 {
			for _, c := range res.Indicators.Quote[0].Close {
				if c != nil {
					closes = append(closes, *c)
				}
			}
		}
		if len(closes) >= 2 {
			prev = closes[len(closes)-2]
		} else {
			prev = meta.ChartPreviousClose
		}
	}
	if prev > 0 {
		q.PreviousClose = prev
		q.Change = meta.RegularMarketPrice - prev
		q.ChangePercent = q.Change / prev * 100
	}
	return q, nil
}

// History returns daily closes over the lookback window
func (y *Yahoo) History(ctx context.Context, ticker string, period ports.Period) (*ports.PriceHistory, error) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return nil, fmt.Errorf("yahoo: empty ticker")
	}

	end := y.now()
	start := end.AddDate(0, 0, -period.Days())
	q := url.Values{}
	q.Set("period1", strconv.FormatInt(start.Unix(), 10))
	q.Set("period2", strconv.FormatInt(end.Unix(), 10))
	q.Set("interval", "1d")

	var cr chartResponse
	if err := y.getJSON(ctx, "/v8/finance/chart/"+url.PathEscape(ticker)+"?"+q.Encode(), &cr); err != nil {
		return nil, err
	}
	if len(cr.Chart.Result) == 0 {
		return nil, chartError(ticker, cr)
	}

	res := cr.Chart.Result[0]
	hist := &ports.PriceHistory{Ticker: ticker, Period: period}
	if len(res.Indicators.Quote) == 0 {
		return hist, nil
	}
	closes := res.Indicators.Quote[0].Close
	volumes := res.Indicators.Quote[0].Volume
	for i, ts := range res.Timestamp {
		if i >= len(closes) || closes[i] == nil {
			continue
		}
		p := ports.PricePoint{Date: time.Unix(ts, 0).UTC(), Close: *closes[i]}
		if i < len(volumes) && volumes[i] != nil {
			p.Volume = *volumes[i]
		}
		hist.Points = append(hist.Points, p)
	}
	if n := len(hist.Points); n > 0 {
		hist.StartClose = hist.Points[0].Close
		hist.EndClose = hist.Points[n-1].Close
	}
	return hist, nil
}

func chartError(ticker string, cr chartResponse) error {
	if cr.Chart.Error != nil {
		return fmt.Errorf("yahoo: %s: %s", ticker, cr.Chart.Error.Description)
	}
	return fmt.Errorf("yahoo: no chart data for %s", ticker)
}

func (y *Yahoo) getJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, y.BaseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := y.client.Do(req)
	if err != nil {
		return fmt.Errorf("yahoo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &statusError{status: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("yahoo: decode response: %w", err)
	}
	return nil
}
