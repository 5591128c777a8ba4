package ta

import (
	"fmt"
	"math"

	"signal-backtester/internal/types"
)

// IndicatorConfig selects the lookbacks of the indicator engine.
// RSILength 0 disables the RSI column.
type IndicatorConfig struct {
	FastLength    int `yaml:"fast_length" json:"fast_length"`
	SlowLength    int `yaml:"slow_length" json:"slow_length"`
	RollingWindow int `yaml:"rolling_window" json:"rolling_window"`
	RSILength     int `yaml:"rsi_length" json:"rsi_length"`
}

func (c IndicatorConfig) Validate() error {
	if c.FastLength <= 0 || c.SlowLength <= 0 || c.RollingWindow <= 0 {
		return fmt.Errorf("%w: indicator lengths must be positive (fast=%d slow=%d window=%d)",
			types.ErrInvalidConfiguration, c.FastLength, c.SlowLength, c.RollingWindow)
	}
	if c.RSILength < 0 {
		return fmt.Errorf("%w: rsi_length must not be negative, got %d", types.ErrInvalidConfiguration, c.RSILength)
	}
	return nil
}

// WarmUp is the index of the first candle whose indicators are all defined.
func (c IndicatorConfig) WarmUp() int {
	w := c.FastLength
	if c.SlowLength > w {
		w = c.SlowLength
	}
	if c.RollingWindow > w {
		w = c.RollingWindow
	}
	if c.RSILength > 0 && c.RSILength+1 > w {
		w = c.RSILength + 1
	}
	return w - 1
}

// MinCandles is the shortest series Compute accepts: the warm-up plus one
// prior candle for crossover detection.
func (c IndicatorConfig) MinCandles() int { return c.WarmUp() + 2 }

// Compute attaches an IndicatorState to every candle.
func Compute(candles []types.Candle, cfg IndicatorConfig) ([]types.IndicatorState, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(candles) < cfg.MinCandles() {
		return nil, fmt.Errorf("%w: got %d candles, need at least %d",
			types.ErrInsufficientHistory, len(candles), cfg.MinCandles())
	}

	closes := make([]float64, len(candles))
	highs := make([]float64, len(candles))
	lows := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		highs[i] = c.High
		lows[i] = c.Low
	}

	ema := EMASeries(closes, cfg.FastLength)
	sma := SMASeries(closes, cfg.SlowLength)
	hi := RollingMax(highs, cfg.RollingWindow)
	lo := RollingMin(lows, cfg.RollingWindow)
	rsi := nanSeries(len(closes))
	if cfg.RSILength > 0 {
		rsi = RSISeries(closes, cfg.RSILength)
	}

	warm := cfg.WarmUp()
	out := make([]types.IndicatorState, len(candles))
	for i := range candles {
		out[i] = types.IndicatorState{
			EMAFast:     ema[i],
			SMASlow:     sma[i],
			RSI:         rsi[i],
			RollingHigh: hi[i],
			RollingLow:  lo[i],
			Ready:       i >= warm,
		}
	}
	return out, nil
}

// ValidateCandles checks OHLC sanity and timestamp ordering. It returns
// every offending candle, each as a *types.MalformedCandleError.
func ValidateCandles(candles []types.Candle) []error {
	var errs []error
	for i, c := range candles {
		if reason := candleProblem(c); reason != "" {
			errs = append(errs, &types.MalformedCandleError{Index: i, Reason: reason})
			continue
		}
		if i > 0 && !c.Ts.After(candles[i-1].Ts) {
			errs = append(errs, &types.MalformedCandleError{Index: i, Reason: "timestamp not after previous candle"})
		}
	}
	return errs
}

func candleProblem(c types.Candle) string {
	for _, v := range []float64{c.Open, c.High, c.Low, c.Close} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return "non-numeric OHLC value"
		}
	}
	if c.High < c.Low {
		return fmt.Sprintf("high %.5f below low %.5f", c.High, c.Low)
	}
	return ""
}
