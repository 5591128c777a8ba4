package types

import (
	"time"

	"github.com/shopspring/decimal"
)

type Candle struct {
	Ts                          time.Time
	Open, High, Low, Close, Vol float64
}

// Hour returns the hour of day of the candle in its own location.
func (c Candle) Hour() int { return c.Ts.Hour() }

// IndicatorState holds the causal indicator values attached to one candle.
// Values that are not yet defined are NaN and Ready is false.
type IndicatorState struct {
	EMAFast     float64 `json:"ema_fast"`
	SMASlow     float64 `json:"sma_slow"`
	RSI         float64 `json:"rsi"`
	RollingHigh float64 `json:"rolling_high"`
	RollingLow  float64 `json:"rolling_low"`
	Ready       bool    `json:"ready"`
}

type Side int

const (
	Long Side = iota + 1
	Short
)

func (s Side) String() string {
	switch s {
	case Long:
		return "LONG"
	case Short:
		return "SHORT"
	}
	return "FLAT"
}

func (s Side) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

type ExitReason int

const (
	StopLoss ExitReason = iota + 1
	TakeProfit
	Timeout
	SessionClose
)

func (r ExitReason) String() string {
	switch r {
	case StopLoss:
		return "STOP_LOSS"
	case TakeProfit:
		return "TAKE_PROFIT"
	case Timeout:
		return "TIMEOUT"
	case SessionClose:
		return "SESSION_CLOSE"
	}
	return "UNKNOWN"
}

func (r ExitReason) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

// Position is the single open position of a simulation.
type Position struct {
	Side       Side
	EntryPrice decimal.Decimal
	EntryIndex int
	EntryTime  time.Time
	Size       decimal.Decimal
}

// Trade is an immutable record appended to the trade log on every exit.
type Trade struct {
	EntryTime  time.Time       `json:"entry_time"`
	EntryPrice decimal.Decimal `json:"entry_price"`
	ExitTime   time.Time       `json:"exit_time"`
	ExitPrice  decimal.Decimal `json:"exit_price"`
	Side       Side            `json:"side"`
	Size       decimal.Decimal `json:"size"`
	ExitReason ExitReason      `json:"exit_reason"`
	PnL        decimal.Decimal `json:"pnl"`
	EntryIndex int             `json:"entry_index"`
	ExitIndex  int             `json:"exit_index"`
}

type EquityPoint struct {
	Index   int             `json:"index"`
	Ts      time.Time       `json:"ts"`
	Balance decimal.Decimal `json:"balance"`
}

// RunMode records which optional rules a backtest run used.
type RunMode struct {
	RSIFilter          bool   `json:"rsi_filter"`
	SessionCloseForced bool   `json:"session_close_forced"`
	SameBarExit        bool   `json:"same_bar_exit"`
	SizingMode         string `json:"sizing_mode"`
}

type BacktestResult struct {
	Trades         []Trade         `json:"trades"`
	Equity         []EquityPoint   `json:"equity"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	Mode           RunMode         `json:"mode"`
}

// CandleRequest selects a slice of history from a candle source. Zero
// From/To leave the range to the source; Limit > 0 keeps the most recent
// Limit candles.
type CandleRequest struct {
	Symbol   string
	Interval string
	From, To time.Time
	Limit    int
}
