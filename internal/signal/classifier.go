package signal

import (
	"context"
	"fmt"
	"math"

	"signal-backtester/internal/logger"
	"signal-backtester/internal/types"
)

// Config controls the optional RSI confirmation of breakout escalations.
type Config struct {
	RSIFilter bool    `yaml:"rsi_filter" json:"rsi_filter"`
	RSIUpper  float64 `yaml:"rsi_upper" json:"rsi_upper"`
	RSILower  float64 `yaml:"rsi_lower" json:"rsi_lower"`
}

func DefaultConfig() Config {
	return Config{RSIUpper: 55, RSILower: 45}
}

func (c Config) Validate() error {
	if c.RSIUpper < 0 || c.RSIUpper > 100 || c.RSILower < 0 || c.RSILower > 100 {
		return fmt.Errorf("%w: rsi thresholds must lie in 0..100 (upper=%.2f lower=%.2f)",
			types.ErrInvalidConfiguration, c.RSIUpper, c.RSILower)
	}
	return nil
}

// Classifier turns indicator states into signal codes. It holds no state
// between calls.
type Classifier struct {
	cfg Config
}

func NewClassifier(cfg Config) *Classifier {
	return &Classifier{cfg: cfg}
}

// Classify reads candles[i], states[i] and states[i-1] only.
func (c *Classifier) Classify(ctx context.Context, candles []types.Candle, states []types.IndicatorState, i int) types.SignalCode {
	if i < 1 || i >= len(candles) || i >= len(states) {
		return types.Hold
	}
	cur, prev := states[i], states[i-1]
	if !cur.Ready || !prev.Ready {
		return types.Hold
	}

	bullish := cur.EMAFast > cur.SMASlow && prev.EMAFast <= prev.SMASlow
	bearish := cur.EMAFast < cur.SMASlow && prev.EMAFast >= prev.SMASlow
	if bullish && bearish {
		logger.Warn(ctx, "Conflicting crossover signals, holding",
			"index", i,
			"ema_fast", cur.EMAFast,
			"sma_slow", cur.SMASlow,
		)
		return types.Hold
	}

	closePx := candles[i].Close
	switch {
	case bullish:
		if closePx > prev.RollingHigh && c.momentumConfirms(cur, types.Long) {
			return types.StrongBuy
		}
		return types.Buy
	case bearish:
		if closePx < prev.RollingLow && c.momentumConfirms(cur, types.Short) {
			return types.StrongSell
		}
		return types.Sell
	}
	return types.Hold
}

// momentumConfirms applies the RSI filter when enabled. A missing RSI
// value never confirms.
func (c *Classifier) momentumConfirms(st types.IndicatorState, side types.Side) bool {
	if !c.cfg.RSIFilter {
		return true
	}
	if math.IsNaN(st.RSI) {
		return false
	}
	if side == types.Long {
		return st.RSI > c.cfg.RSIUpper
	}
	return st.RSI < c.cfg.RSILower
}

// ClassifyAll returns one code per candle; warm-up rows are Hold.
func (c *Classifier) ClassifyAll(ctx context.Context, candles []types.Candle, states []types.IndicatorState) []types.SignalCode {
	out := make([]types.SignalCode, len(candles))
	for i := range candles {
		out[i] = c.Classify(ctx, candles, states, i)
	}
	return out
}

// Latest is the most recent non-Hold signal at or before upto.
type Latest struct {
	Index  int                  `json:"index"`
	Candle types.Candle         `json:"-"`
	Code   types.SignalCode     `json:"code"`
	State  types.IndicatorState `json:"state"`
}

// LatestSignal scans backwards from upto. ok is false when every candle
// classifies as Hold.
func (c *Classifier) LatestSignal(ctx context.Context, candles []types.Candle, states []types.IndicatorState, upto int) (Latest, bool) {
	if upto >= len(candles) {
		upto = len(candles) - 1
	}
	for i := upto; i >= 1; i-- {
		if code := c.Classify(ctx, candles, states, i); code != types.Hold {
			return Latest{Index: i, Candle: candles[i], Code: code, State: states[i]}, true
		}
	}
	return Latest{}, false
}
