package risk

import (
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

// Mode is a named position sizing rule.
type Mode string

const (
	Fixed        Mode = "FIXED"
	Conservative Mode = "CONSERVATIVE"
	Optimal      Mode = "OPTIMAL"
	Aggressive   Mode = "AGGRESSIVE"
)

// ParseMode accepts any casing; the empty string selects Fixed.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case "":
		return Fixed, nil
	case Fixed, Conservative, Optimal, Aggressive:
		return m, nil
	}
	return "", fmt.Errorf("%w: unknown sizing mode %q", types.ErrInvalidConfiguration, s)
}

// fraction of balance risked per trade; Fixed ignores balance.
var fractions = map[Mode]decimal.Decimal{
	Conservative: decimal.RequireFromString("0.005"),
	Optimal:      decimal.RequireFromString("0.01"),
	Aggressive:   decimal.RequireFromString("0.02"),
}

// Regime labels a market state as "<volatility>_<trend>", e.g. "high_trend".
type Regime string

const NoRegime Regime = ""

// Bands are the thresholds used to classify a regime. Volatility is
// (high-low)/close, trend strength is |ema_fast-sma_slow|/close.
type Bands struct {
	VolLow      float64 `yaml:"vol_low" json:"vol_low"`
	VolHigh     float64 `yaml:"vol_high" json:"vol_high"`
	TrendWeak   float64 `yaml:"trend_weak" json:"trend_weak"`
	TrendStrong float64 `yaml:"trend_strong" json:"trend_strong"`
}

func DefaultBands() Bands {
	return Bands{VolLow: 0.0005, VolHigh: 0.0015, TrendWeak: 0.0002, TrendStrong: 0.0008}
}

// Classify returns the regime for one candle and its indicator state.
// NoRegime is returned while indicators are warming up.
func (b Bands) Classify(c types.Candle, st types.IndicatorState) Regime {
	if !st.Ready || c.Close == 0 || math.IsNaN(st.EMAFast) || math.IsNaN(st.SMASlow) {
		return NoRegime
	}
	vol := (c.High - c.Low) / c.Close
	trend := math.Abs(st.EMAFast-st.SMASlow) / c.Close

	volBand := "normal"
	switch {
	case vol < b.VolLow:
		volBand = "low"
	case vol >= b.VolHigh:
		volBand = "high"
	}
	trendBand := "trend"
	switch {
	case trend < b.TrendWeak:
		trendBand = "range"
	case trend >= b.TrendStrong:
		trendBand = "strong"
	}
	return Regime(volBand + "_" + trendBand)
}

// Policy maps balance and regime to a position size.
type Policy struct {
	DefaultMode Mode
	UnitSize    decimal.Decimal
	Table       map[Regime]Mode
	Bands       Bands
}

// NewPolicy builds a policy; a non-positive unit size falls back to 1.
func NewPolicy(defaultMode Mode, unitSize float64, table map[Regime]Mode, bands Bands) *Policy {
	if defaultMode == "" {
		defaultMode = Fixed
	}
	unit := decimal.NewFromFloat(unitSize)
	if !unit.IsPositive() {
		unit = decimal.NewFromInt(1)
	}
	return &Policy{DefaultMode: defaultMode, UnitSize: unit, Table: table, Bands: bands}
}

// ModeFor resolves the sizing mode used for a regime.
func (p *Policy) ModeFor(regime Regime) Mode {
	if regime != NoRegime && len(p.Table) > 0 {
		if m, ok := p.Table[regime]; ok {
			return m
		}
	}
	return p.DefaultMode
}

// Size is always positive: percentage modes that would produce a
// non-positive size fall back to the unit size.
func (p *Policy) Size(balance decimal.Decimal, regime Regime) decimal.Decimal {
	mode := p.ModeFor(regime)
	frac, ok := fractions[mode]
	if !ok {
		return p.UnitSize
	}
	size := balance.Mul(frac)
	if !size.IsPositive() {
		return p.UnitSize
	}
	return size
}

// UsesRegimes reports whether a regime table is configured.
func (p *Policy) UsesRegimes() bool { return len(p.Table) > 0 }

// Validate rejects unknown modes and inverted bands.
func (p *Policy) Validate() error {
	if _, err := ParseMode(string(p.DefaultMode)); err != nil {
		return err
	}
	for regime, m := range p.Table {
		if _, err := ParseMode(string(m)); err != nil || m == "" {
			return fmt.Errorf("%w: unknown sizing mode %q for regime %q", types.ErrInvalidConfiguration, m, regime)
		}
	}
	b := p.Bands
	if b.VolLow > b.VolHigh {
		return fmt.Errorf("%w: vol_low %v exceeds vol_high %v", types.ErrInvalidConfiguration, b.VolLow, b.VolHigh)
	}
	if b.TrendWeak > b.TrendStrong {
		return fmt.Errorf("%w: trend_weak %v exceeds trend_strong %v", types.ErrInvalidConfiguration, b.TrendWeak, b.TrendStrong)
	}
	return nil
}
