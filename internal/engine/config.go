package engine

import (
	"fmt"

	"signal-backtester/internal/risk"
	"signal-backtester/internal/signal"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

// Config is the validated option set of one backtest run. Distances and
// spread are absolute price increments.
type Config struct {
	Symbol         string
	InitialBalance float64

	Indicators ta.IndicatorConfig
	Signal     signal.Config

	StopDistance float64
	TakeDistance float64
	Spread       float64
	MaxHold      int

	// Candles with SessionOpenHour <= hour < SessionCloseHour are in session.
	SessionOpenHour  int
	SessionCloseHour int

	// SessionCloseForced closes an open position at the close of the first
	// out-of-session candle met during the exit scan. When false such
	// candles are skipped and the position waits for stop, target or timeout.
	SessionCloseForced bool

	// SameBarExit lets the exit scan start on the entry candle itself.
	SameBarExit bool

	// Sizing defaults to a fixed unit size of 1 when nil.
	Sizing *risk.Policy
}

func DefaultConfig() Config {
	return Config{
		Symbol:         "EURUSD=X",
		InitialBalance: 1000,
		Indicators: ta.IndicatorConfig{
			FastLength:    9,
			SlowLength:    21,
			RollingWindow: 10,
			RSILength:     14,
		},
		Signal:           signal.DefaultConfig(),
		StopDistance:     0.0020,
		TakeDistance:     0.0040,
		Spread:           0.0005,
		MaxHold:          12,
		SessionOpenHour:  6,
		SessionCloseHour: 20,
	}
}

func (c Config) Validate() error {
	if err := c.Indicators.Validate(); err != nil {
		return err
	}
	if err := c.Signal.Validate(); err != nil {
		return err
	}
	if c.StopDistance <= 0 || c.TakeDistance <= 0 {
		return fmt.Errorf("%w: stop and take distances must be positive (stop=%v take=%v)",
			types.ErrInvalidConfiguration, c.StopDistance, c.TakeDistance)
	}
	if c.Spread < 0 {
		return fmt.Errorf("%w: spread must not be negative, got %v", types.ErrInvalidConfiguration, c.Spread)
	}
	if c.MaxHold <= 0 {
		return fmt.Errorf("%w: max_hold must be positive, got %d", types.ErrInvalidConfiguration, c.MaxHold)
	}
	if c.SessionOpenHour < 0 || c.SessionCloseHour > 24 {
		return fmt.Errorf("%w: session hours must lie in 0..24 (open=%d close=%d)",
			types.ErrInvalidConfiguration, c.SessionOpenHour, c.SessionCloseHour)
	}
	if c.SessionCloseHour <= c.SessionOpenHour {
		return fmt.Errorf("%w: session close hour %d must be after open hour %d",
			types.ErrInvalidConfiguration, c.SessionCloseHour, c.SessionOpenHour)
	}
	if c.InitialBalance <= 0 {
		return fmt.Errorf("%w: initial balance must be positive, got %v", types.ErrInvalidConfiguration, c.InitialBalance)
	}
	if c.Sizing != nil {
		if err := c.Sizing.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func (c Config) inSession(candle types.Candle) bool {
	h := candle.Hour()
	return h >= c.SessionOpenHour && h < c.SessionCloseHour
}

func (c Config) policy() *risk.Policy {
	if c.Sizing != nil {
		return c.Sizing
	}
	return risk.NewPolicy(risk.Fixed, 1, nil, risk.DefaultBands())
}

func (c Config) runMode() types.RunMode {
	return types.RunMode{
		RSIFilter:          c.Signal.RSIFilter,
		SessionCloseForced: c.SessionCloseForced,
		SameBarExit:        c.SameBarExit,
		SizingMode:         string(c.policy().DefaultMode),
	}
}
