// Package marketdata provides the candle sources a backtest or the live
// poller reads from. Every source returns candles in ascending time order.
package marketdata

import (
	"fmt"
	"time"

	"signal-backtester/internal/types"
)

// window keeps the candles inside [req.From, req.To] and then the last
// req.Limit of those. Zero bounds are open.
func window(candles []types.Candle, req types.CandleRequest) []types.Candle {
	out := make([]types.Candle, 0, len(candles))
	for _, c := range candles {
		if !req.From.IsZero() && c.Ts.Before(req.From) {
			continue
		}
		if !req.To.IsZero() && c.Ts.After(req.To) {
			continue
		}
		out = append(out, c)
	}
	if req.Limit > 0 && len(out) > req.Limit {
		out = out[len(out)-req.Limit:]
	}
	return out
}

// intervalDuration understands the short forms used in config ("1m", "5m",
// "1h", "1d").
func intervalDuration(interval string) (time.Duration, error) {
	if interval == "1d" {
		return 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(interval)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("unsupported interval %q", interval)
	}
	return d, nil
}
