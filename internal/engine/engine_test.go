package engine

import (
	"context"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/risk"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

var t0 = time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC)

// mkCandles builds 5-minute candles with a 0.0003 range around each close.
func mkCandles(closes ...float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{
			Ts:    t0.Add(time.Duration(i) * 5 * time.Minute),
			Open:  c,
			High:  c + 0.0003,
			Low:   c - 0.0003,
			Close: c,
		}
	}
	return out
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Indicators = ta.IndicatorConfig{FastLength: 2, SlowLength: 4, RollingWindow: 3}
	return cfg
}

// breakoutSeries crosses up with a breakout at index 6 and reaches the
// take-profit level on index 8.
func breakoutSeries() []types.Candle {
	cs := mkCandles(1.100, 1.099, 1.098, 1.097, 1.096, 1.095, 1.105, 1.106, 1.109, 1.1092)
	cs[8].High = 1.1100
	cs[8].Low = 1.1058
	cs[8].Close = 1.1090
	return cs
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func TestRunTakeProfitLong(t *testing.T) {
	eng, err := newEngine(testConfig())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	candles := breakoutSeries()

	res, err := eng.Run(context.Background(), candles)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Side != types.Long || tr.ExitReason != types.TakeProfit {
		t.Errorf("expected LONG/TAKE_PROFIT, got %s/%s", tr.Side, tr.ExitReason)
	}
	if tr.EntryIndex != 6 || tr.ExitIndex != 8 {
		t.Errorf("expected entry 6 exit 8, got %d/%d", tr.EntryIndex, tr.ExitIndex)
	}
	if !tr.EntryPrice.Equal(dec("1.1055")) {
		t.Errorf("entry price %s, want 1.1055", tr.EntryPrice)
	}
	if !tr.ExitPrice.Equal(dec("1.1095")) {
		t.Errorf("exit price %s, want 1.1095", tr.ExitPrice)
	}
	if !tr.PnL.Equal(dec("0.004")) {
		t.Errorf("pnl %s, want 0.004", tr.PnL)
	}

	if len(res.Equity) != len(candles) {
		t.Fatalf("equity has %d points for %d candles", len(res.Equity), len(candles))
	}
	for i, p := range res.Equity {
		if p.Index != i {
			t.Fatalf("equity point %d has index %d", i, p.Index)
		}
		want := dec("1000")
		if i >= 8 {
			want = dec("1000.004")
		}
		if !p.Balance.Equal(want) {
			t.Errorf("equity[%d] = %s, want %s", i, p.Balance, want)
		}
	}
	if !res.FinalBalance.Equal(dec("1000.004")) {
		t.Errorf("final balance %s", res.FinalBalance)
	}
}

func TestRunUnboundedMaxHold(t *testing.T) {
	cfg := testConfig()
	cfg.MaxHold = math.MaxInt
	eng, err := newEngine(cfg)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.ExitReason != types.TakeProfit || tr.EntryIndex != 6 || tr.ExitIndex != 8 {
		t.Errorf("got %s entry %d exit %d, want TAKE_PROFIT 6/8", tr.ExitReason, tr.EntryIndex, tr.ExitIndex)
	}
	if !tr.ExitPrice.Equal(dec("1.1095")) {
		t.Errorf("exit price %s, want 1.1095", tr.ExitPrice)
	}
}

func TestRunSizingModes(t *testing.T) {
	// zero-width bands put every ready candle in the high_strong regime
	zero := risk.Bands{}
	tests := []struct {
		name   string
		policy *risk.Policy
		size   string
		pnl    string
		final  string
		mode   string
	}{
		{"default fixed", nil, "1", "0.004", "1000.004", "FIXED"},
		{"conservative", risk.NewPolicy(risk.Conservative, 1, nil, risk.DefaultBands()), "5", "0.02", "1000.02", "CONSERVATIVE"},
		{"optimal", risk.NewPolicy(risk.Optimal, 1, nil, risk.DefaultBands()), "10", "0.04", "1000.04", "OPTIMAL"},
		{"aggressive", risk.NewPolicy(risk.Aggressive, 1, nil, risk.DefaultBands()), "20", "0.08", "1000.08", "AGGRESSIVE"},
		{
			"regime table match",
			risk.NewPolicy(risk.Fixed, 1, map[risk.Regime]risk.Mode{"high_strong": risk.Aggressive}, zero),
			"20", "0.08", "1000.08", "FIXED",
		},
		{
			"regime table miss",
			risk.NewPolicy(risk.Optimal, 1, map[risk.Regime]risk.Mode{"low_range": risk.Aggressive}, zero),
			"10", "0.04", "1000.04", "OPTIMAL",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Sizing = tt.policy
			eng, err := newEngine(cfg)
			if err != nil {
				t.Fatalf("newEngine: %v", err)
			}
			res, err := eng.Run(context.Background(), breakoutSeries())
			if err != nil {
				t.Fatalf("Run: %v", err)
			}
			if len(res.Trades) != 1 {
				t.Fatalf("expected 1 trade, got %d", len(res.Trades))
			}
			tr := res.Trades[0]
			if !tr.Size.Equal(dec(tt.size)) {
				t.Errorf("size %s, want %s", tr.Size, tt.size)
			}
			if !tr.PnL.Equal(dec(tt.pnl)) {
				t.Errorf("pnl %s, want %s", tr.PnL, tt.pnl)
			}
			if !res.FinalBalance.Equal(dec(tt.final)) {
				t.Errorf("final balance %s, want %s", res.FinalBalance, tt.final)
			}
			if res.Mode.SizingMode != tt.mode {
				t.Errorf("sizing mode %q, want %q", res.Mode.SizingMode, tt.mode)
			}
		})
	}
}

func TestRunOutsideSessionNeverEnters(t *testing.T) {
	cfg := testConfig()
	cfg.SessionOpenHour = 9
	eng, err := newEngine(cfg)
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 0 {
		t.Fatalf("expected no trades, got %d", len(res.Trades))
	}
	for _, p := range res.Equity {
		if !p.Balance.Equal(dec("1000")) {
			t.Fatalf("balance changed to %s", p.Balance)
		}
	}
}

func TestRunShortStopLoss(t *testing.T) {
	cs := mkCandles(1.095, 1.096, 1.097, 1.098, 1.099, 1.100, 1.090, 1.089, 1.088)
	// entry 1.0895, stop 1.0915
	cs[8].High = 1.0920

	eng, err := newEngine(testConfig())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), cs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Trades) != 1 {
		t.Fatalf("expected 1 trade, got %d", len(res.Trades))
	}
	tr := res.Trades[0]
	if tr.Side != types.Short || tr.ExitReason != types.StopLoss {
		t.Fatalf("expected SHORT/STOP_LOSS, got %s/%s", tr.Side, tr.ExitReason)
	}
	if !tr.EntryPrice.Equal(dec("1.0895")) || !tr.ExitPrice.Equal(dec("1.0915")) {
		t.Errorf("prices %s -> %s", tr.EntryPrice, tr.ExitPrice)
	}
	if !tr.PnL.Equal(dec("-0.002")) {
		t.Errorf("pnl %s, want -0.002", tr.PnL)
	}
	if !res.FinalBalance.Equal(dec("999.998")) {
		t.Errorf("final balance %s", res.FinalBalance)
	}
}

func TestRunIsDeterministic(t *testing.T) {
	eng, err := newEngine(testConfig())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	a, err := eng.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	b, err := eng.Run(context.Background(), breakoutSeries())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !reflect.DeepEqual(a.Trades, b.Trades) {
		t.Error("trade logs differ between runs")
	}
	if !reflect.DeepEqual(a.Equity, b.Equity) {
		t.Error("equity curves differ between runs")
	}
}

func TestRunTradesNeverOverlap(t *testing.T) {
	closes := []float64{1.100, 1.099, 1.098, 1.097, 1.096, 1.095}
	// repeated up/down swings to trigger several entries
	for k := 0; k < 6; k++ {
		closes = append(closes, 1.105, 1.106, 1.103, 1.098, 1.095, 1.094, 1.093, 1.092)
	}
	eng, err := newEngine(testConfig())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	res, err := eng.Run(context.Background(), mkCandles(closes...))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(res.Equity) != len(closes) {
		t.Fatalf("equity %d points, want %d", len(res.Equity), len(closes))
	}
	for i, tr := range res.Trades {
		if tr.ExitTime.Before(tr.EntryTime) {
			t.Errorf("trade %d exits before it enters", i)
		}
		if i > 0 && !tr.EntryTime.After(res.Trades[i-1].ExitTime) {
			t.Errorf("trade %d overlaps trade %d", i, i-1)
		}
	}
	if got := Balance(res.InitialBalance, res.Trades); !got.Equal(res.FinalBalance) {
		t.Errorf("final balance %s does not match trade sum %s", res.FinalBalance, got)
	}
}

func TestRunErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		candles []types.Candle
		want    error
	}{
		{
			name:    "close hour not after open hour",
			mutate:  func(c *Config) { c.SessionCloseHour = c.SessionOpenHour },
			candles: breakoutSeries(),
			want:    types.ErrInvalidConfiguration,
		},
		{
			name:    "non-positive stop distance",
			mutate:  func(c *Config) { c.StopDistance = 0 },
			candles: breakoutSeries(),
			want:    types.ErrInvalidConfiguration,
		},
		{
			name: "unknown sizing mode",
			mutate: func(c *Config) {
				c.Sizing = risk.NewPolicy("BOGUS", 1, nil, risk.DefaultBands())
			},
			candles: breakoutSeries(),
			want:    types.ErrInvalidConfiguration,
		},
		{
			name: "unknown mode in regime table",
			mutate: func(c *Config) {
				c.Sizing = risk.NewPolicy(risk.Fixed, 1, map[risk.Regime]risk.Mode{"high_strong": "KELLY"}, risk.DefaultBands())
			},
			candles: breakoutSeries(),
			want:    types.ErrInvalidConfiguration,
		},
		{
			name: "inverted volatility bands",
			mutate: func(c *Config) {
				c.Sizing = risk.NewPolicy(risk.Fixed, 1, nil, risk.Bands{VolLow: 0.002, VolHigh: 0.001})
			},
			candles: breakoutSeries(),
			want:    types.ErrInvalidConfiguration,
		},
		{
			name:    "too few candles",
			mutate:  func(c *Config) {},
			candles: mkCandles(1.1, 1.1, 1.1),
			want:    types.ErrInsufficientHistory,
		},
		{
			name:   "high below low",
			mutate: func(c *Config) {},
			candles: func() []types.Candle {
				cs := breakoutSeries()
				cs[4].High = cs[4].Low - 0.001
				return cs
			}(),
			want: types.ErrMalformedCandle,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			tt.mutate(&cfg)
			eng, err := New(cfg)
			if err == nil {
				_, err = eng.Run(context.Background(), tt.candles)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
		})
	}
}

func TestRunReportsMalformedCandleIndex(t *testing.T) {
	cs := breakoutSeries()
	cs[5].Ts = cs[4].Ts
	eng, err := newEngine(testConfig())
	if err != nil {
		t.Fatalf("newEngine: %v", err)
	}
	_, err = eng.Run(context.Background(), cs)
	var mc *types.MalformedCandleError
	if !errors.As(err, &mc) {
		t.Fatalf("expected MalformedCandleError, got %v", err)
	}
	if mc.Index != 5 {
		t.Errorf("expected index 5, got %d", mc.Index)
	}
}
