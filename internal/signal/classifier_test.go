package signal

import (
	"context"
	"math"
	"testing"
	"time"

	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

// breakoutCandles declines for 20 candles, then jumps at index 20 above
// the recent highs and keeps rising.
func breakoutCandles() []types.Candle {
	start := time.Date(2024, 5, 6, 9, 0, 0, 0, time.UTC)
	out := make([]types.Candle, 25)
	for i := range out {
		c := 1.120 - 0.001*float64(i)
		if i >= 20 {
			c = 1.110 + 0.001*float64(i-20)
		}
		out[i] = types.Candle{
			Ts:    start.Add(time.Duration(i) * 15 * time.Minute),
			Open:  c,
			High:  c + 0.0002,
			Low:   c - 0.0002,
			Close: c,
		}
	}
	return out
}

var smallIndicators = ta.IndicatorConfig{FastLength: 2, SlowLength: 4, RollingWindow: 3, RSILength: 14}

func compute(t *testing.T, candles []types.Candle) []types.IndicatorState {
	t.Helper()
	states, err := ta.Compute(candles, smallIndicators)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	return states
}

func TestClassifyBreakoutEscalation(t *testing.T) {
	candles := breakoutCandles()
	states := compute(t, candles)

	if states[20].EMAFast <= states[20].SMASlow || states[19].EMAFast > states[19].SMASlow {
		t.Fatalf("fixture does not cross at 20: %+v / %+v", states[19], states[20])
	}
	if candles[20].Close <= states[19].RollingHigh {
		t.Fatalf("fixture does not break out at 20")
	}

	c := NewClassifier(DefaultConfig())
	if got := c.Classify(context.Background(), candles, states, 20); got != types.StrongBuy {
		t.Fatalf("classify(20) = %s, want Strong Buy", got)
	}
	for i := 0; i < 20; i++ {
		if got := c.Classify(context.Background(), candles, states, i); got != types.Hold {
			t.Errorf("classify(%d) = %s, want Hold", i, got)
		}
	}
}

func TestClassifyRSIFilterDowngrades(t *testing.T) {
	candles := breakoutCandles()
	states := compute(t, candles)

	cfg := DefaultConfig()
	cfg.RSIFilter = true
	// the long decline keeps RSI near 41 at the breakout
	if got := NewClassifier(cfg).Classify(context.Background(), candles, states, 20); got != types.Buy {
		t.Fatalf("classify(20) with RSI filter = %s, want Buy", got)
	}

	cfg.RSIUpper = 30
	if got := NewClassifier(cfg).Classify(context.Background(), candles, states, 20); got != types.StrongBuy {
		t.Fatalf("classify(20) with low RSI threshold = %s, want Strong Buy", got)
	}
}

func TestClassifyIgnoresFutureCandles(t *testing.T) {
	candles := breakoutCandles()
	before := NewClassifier(DefaultConfig()).Classify(context.Background(), candles, compute(t, candles), 20)

	for i := 21; i < len(candles); i++ {
		candles[i].Close = 0.9
		candles[i].Open = 0.9
		candles[i].High = 0.95
		candles[i].Low = 0.85
	}
	after := NewClassifier(DefaultConfig()).Classify(context.Background(), candles, compute(t, candles), 20)
	if before != after {
		t.Fatalf("classify(20) changed from %s to %s after mutating later candles", before, after)
	}
}

func TestClassifyFromStates(t *testing.T) {
	candles := []types.Candle{{Close: 1.1}, {Close: 1.0}}
	prevAbove := types.IndicatorState{EMAFast: 1.2, SMASlow: 1.1, RollingHigh: 1.3, RollingLow: 1.05, RSI: 40, Ready: true}
	prevBelow := types.IndicatorState{EMAFast: 1.0, SMASlow: 1.1, RollingHigh: 1.3, RollingLow: 1.05, RSI: 60, Ready: true}
	curBelow := types.IndicatorState{EMAFast: 1.0, SMASlow: 1.1, RSI: 30, Ready: true}

	tests := []struct {
		name   string
		cfg    Config
		states []types.IndicatorState
		want   types.SignalCode
	}{
		{"bearish cross with breakdown", DefaultConfig(), []types.IndicatorState{prevAbove, curBelow}, types.StrongSell},
		{"no cross", DefaultConfig(), []types.IndicatorState{prevBelow, curBelow}, types.Hold},
		{"cur not ready", DefaultConfig(), []types.IndicatorState{prevAbove, {EMAFast: 1.0, SMASlow: 1.1}}, types.Hold},
		{"rsi filter confirms", Config{RSIFilter: true, RSIUpper: 55, RSILower: 45}, []types.IndicatorState{prevAbove, curBelow}, types.StrongSell},
		{"missing rsi never confirms", Config{RSIFilter: true, RSIUpper: 55, RSILower: 45},
			[]types.IndicatorState{prevAbove, {EMAFast: 1.0, SMASlow: 1.1, RSI: math.NaN(), Ready: true}}, types.Sell},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NewClassifier(tt.cfg).Classify(context.Background(), candles, tt.states, 1); got != tt.want {
				t.Fatalf("got %s, want %s", got, tt.want)
			}
		})
	}

	// bearish cross without breaking the prior low stays Sell
	candles[1].Close = 1.06
	if got := NewClassifier(DefaultConfig()).Classify(context.Background(), candles, []types.IndicatorState{prevAbove, curBelow}, 1); got != types.Sell {
		t.Fatalf("got %s, want Sell", got)
	}
}

func TestLatestSignal(t *testing.T) {
	candles := breakoutCandles()
	states := compute(t, candles)
	c := NewClassifier(DefaultConfig())

	latest, ok := c.LatestSignal(context.Background(), candles, states, len(candles)+5)
	if !ok {
		t.Fatal("expected a signal")
	}
	if latest.Index != 20 || latest.Code != types.StrongBuy {
		t.Fatalf("got %s at %d, want Strong Buy at 20", latest.Code, latest.Index)
	}
	if latest.Candle.Close != candles[20].Close {
		t.Errorf("latest candle close %v", latest.Candle.Close)
	}

	if _, ok := c.LatestSignal(context.Background(), candles, states, 19); ok {
		t.Fatal("expected no signal before the breakout")
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if err := (Config{RSIUpper: 120}).Validate(); err == nil {
		t.Fatal("expected error for rsi_upper above 100")
	}
}
