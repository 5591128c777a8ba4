package marketdata

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"signal-backtester/internal/api"
	"signal-backtester/internal/types"
)

const defaultYahooBaseURL = "https://query1.finance.yahoo.com"

// chartResponse is the subset of the Yahoo v8 chart payload we read.
// Quote arrays hold nulls for bars without trades.
type chartResponse struct {
	Chart struct {
		Result []struct {
			Timestamp  []int64 `json:"timestamp"`
			Indicators struct {
				Quote []struct {
					Open   []*float64 `json:"open"`
					High   []*float64 `json:"high"`
					Low    []*float64 `json:"low"`
					Close  []*float64 `json:"close"`
					Volume []*float64 `json:"volume"`
				} `json:"quote"`
			} `json:"indicators"`
		} `json:"result"`
		Error *struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	} `json:"chart"`
}

// YahooSource fetches intraday candles from the Yahoo Finance chart API.
type YahooSource struct {
	client *api.Client
}

func NewYahooSource(baseURL string) *YahooSource {
	if baseURL == "" {
		baseURL = defaultYahooBaseURL
	}
	return &YahooSource{
		client: api.NewClient(
			api.WithBaseURL(baseURL),
			api.WithTimeout(15*time.Second),
			api.WithLogging(true),
			api.WithRateLimit(2, 500*time.Millisecond),
		),
	}
}

func (s *YahooSource) Name() string { return "yahoo" }

func (s *YahooSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	q := url.Values{}
	q.Set("interval", req.Interval)
	if req.From.IsZero() || req.To.IsZero() {
		q.Set("range", "5d")
	} else {
		q.Set("period1", fmt.Sprint(req.From.Unix()))
		q.Set("period2", fmt.Sprint(req.To.Unix()))
	}
	path := "/v8/finance/chart/" + url.PathEscape(req.Symbol) + "?" + q.Encode()

	resp, err := s.client.GETWithRetry(ctx, path, api.YahooFinanceHeaders(), nil)
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", req.Symbol, err)
	}
	var body chartResponse
	if err := resp.ParseJSON(&body); err != nil {
		return nil, err
	}
	candles, err := body.candles()
	if err != nil {
		return nil, fmt.Errorf("yahoo chart %s: %w", req.Symbol, err)
	}
	return window(candles, req), nil
}

func (r chartResponse) candles() ([]types.Candle, error) {
	if r.Chart.Error != nil {
		return nil, fmt.Errorf("%s: %s", r.Chart.Error.Code, r.Chart.Error.Description)
	}
	if len(r.Chart.Result) == 0 || len(r.Chart.Result[0].Indicators.Quote) == 0 {
		return nil, fmt.Errorf("empty chart result")
	}
	res := r.Chart.Result[0]
	q := res.Indicators.Quote[0]

	out := make([]types.Candle, 0, len(res.Timestamp))
	for i, ts := range res.Timestamp {
		o, h, l, c := at(q.Open, i), at(q.High, i), at(q.Low, i), at(q.Close, i)
		if o == nil || h == nil || l == nil || c == nil {
			continue
		}
		var vol float64
		if v := at(q.Volume, i); v != nil {
			vol = *v
		}
		out = append(out, types.Candle{
			Ts:    time.Unix(ts, 0).UTC(),
			Open:  *o,
			High:  *h,
			Low:   *l,
			Close: *c,
			Vol:   vol,
		})
	}
	return out, nil
}

func at(vals []*float64, i int) *float64 {
	if i < len(vals) {
		return vals[i]
	}
	return nil
}
