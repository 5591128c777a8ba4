// Package kite reads historical candles from the Kite Connect API.
package kite

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	kiteconnect "github.com/zerodha/gokiteconnect/v4"

	"signal-backtester/internal/api"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/types"
)

// historyClient is the part of *kiteconnect.Client used here.
type historyClient interface {
	GetInstrumentsByExchange(exchange string) (kiteconnect.Instruments, error)
	GetHistoricalData(instrumentToken int, interval string, fromDate time.Time, toDate time.Time, continuous bool, OI bool) ([]kiteconnect.HistoricalData, error)
}

type Params struct {
	APIKey      string
	AccessToken string
	Exchange    string
}

// Source implements interfaces.CandleSource over Kite historical data.
type Source struct {
	kc       historyClient
	exchange string
	mapper   *instrumentMapper
	limiter  *api.RateLimiter
	loadOnce sync.Once
	loadErr  error
}

func New(p Params) (*Source, error) {
	if p.APIKey == "" || p.AccessToken == "" {
		return nil, errors.New("missing KITE_API_KEY/KITE_ACCESS_TOKEN")
	}
	kc := kiteconnect.New(p.APIKey)
	kc.SetAccessToken(p.AccessToken)
	return newSource(kc, p.Exchange), nil
}

func newSource(kc historyClient, exchange string) *Source {
	if exchange == "" {
		exchange = "NSE"
	}
	return &Source{
		kc:       kc,
		exchange: exchange,
		mapper:   newInstrumentMapper(),
		// historical API allows three requests per second
		limiter: api.NewRateLimiter(3, time.Second/3),
	}
}

func (s *Source) Name() string { return "kite" }

func (s *Source) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	interval, err := kiteInterval(req.Interval)
	if err != nil {
		return nil, err
	}
	token, err := s.token(ctx, req.Symbol)
	if err != nil {
		return nil, err
	}

	to := req.To
	if to.IsZero() {
		to = time.Now()
	}
	from := req.From
	if from.IsZero() {
		from = to.AddDate(0, 0, -5)
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	data, err := s.kc.GetHistoricalData(token, interval, from, to, false, false)
	if err != nil {
		return nil, fmt.Errorf("kite historical data %s: %w", req.Symbol, err)
	}

	out := make([]types.Candle, 0, len(data))
	for _, d := range data {
		out = append(out, types.Candle{
			Ts:    d.Date.Time.UTC(),
			Open:  d.Open,
			High:  d.High,
			Low:   d.Low,
			Close: d.Close,
			Vol:   float64(d.Volume),
		})
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return out, nil
}

// token resolves a trading symbol, loading the exchange instruments once.
func (s *Source) token(ctx context.Context, symbol string) (int, error) {
	s.loadOnce.Do(func() {
		instruments, err := s.kc.GetInstrumentsByExchange(s.exchange)
		if err != nil {
			s.loadErr = fmt.Errorf("load %s instruments: %w", s.exchange, err)
			return
		}
		for _, in := range instruments {
			s.mapper.addMapping(in.Tradingsymbol, in.InstrumentToken)
		}
		logger.Info(ctx, "Loaded Kite instruments", "exchange", s.exchange, "count", s.mapper.size())
	})
	if s.loadErr != nil {
		return 0, s.loadErr
	}
	token, ok := s.mapper.getToken(symbol)
	if !ok {
		return 0, fmt.Errorf("unknown %s symbol %q", s.exchange, symbol)
	}
	return token, nil
}

// kiteInterval maps config intervals to Kite's names.
func kiteInterval(interval string) (string, error) {
	switch interval {
	case "1m":
		return "minute", nil
	case "3m", "5m", "10m", "15m", "30m", "60m":
		return interval[:len(interval)-1] + "minute", nil
	case "1h":
		return "60minute", nil
	case "1d":
		return "day", nil
	}
	return "", fmt.Errorf("interval %q not supported by Kite", interval)
}
