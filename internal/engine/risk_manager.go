package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/logger"
	"signal-backtester/internal/risk"
	"signal-backtester/internal/types"
)

// riskManager sizes entries from the running balance and the regime of the
// entry candle.
type riskManager struct {
	policy *risk.Policy
	symbol string
}

func newRiskManager(policy *risk.Policy, symbol string) *riskManager {
	return &riskManager{policy: policy, symbol: symbol}
}

// sizeFor returns the position size for an entry on candle c.
func (rm *riskManager) sizeFor(ctx context.Context, balance decimal.Decimal, c types.Candle, st types.IndicatorState) decimal.Decimal {
	regime := risk.NoRegime
	if rm.policy.UsesRegimes() {
		regime = rm.policy.Bands.Classify(c, st)
	}
	size := rm.policy.Size(balance, regime)

	if !balance.IsPositive() {
		logger.Risk(ctx, rm.symbol, "NON_POSITIVE_BALANCE",
			"balance", f64(balance),
			"fallback_size", f64(size),
		)
	}
	logger.Debug(ctx, "Position sizing determined",
		"symbol", rm.symbol,
		"regime", string(regime),
		"mode", string(rm.policy.ModeFor(regime)),
		"balance", f64(balance),
		"size", f64(size),
	)
	return size
}
