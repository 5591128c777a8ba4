package engineobs

import (
	"context"
	"time"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/types"
)

type observableBacktester struct {
	backtester interfaces.Backtester
	symbol     string
}

var _ interfaces.Backtester = (*observableBacktester)(nil)

func Wrap(bt interfaces.Backtester, symbol string) interfaces.Backtester {
	return &observableBacktester{
		backtester: bt,
		symbol:     symbol,
	}
}

func (ob *observableBacktester) Run(ctx context.Context, candles []types.Candle) (*types.BacktestResult, error) {
	ctx, span := trace.StartSpan(ctx, "engine.Run")
	defer span.End()

	start := time.Now()

	logger.InfoSkip(ctx, 1, "Starting backtest",
		"symbol", ob.symbol,
		"candles", len(candles),
	)

	result, err := ob.backtester.Run(ctx, candles)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Backtest failed", err,
			"symbol", ob.symbol,
			"duration_ms", time.Since(start).Milliseconds(),
		)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Backtest completed",
		"symbol", ob.symbol,
		"trades", len(result.Trades),
		"initial_balance", result.InitialBalance.InexactFloat64(),
		"final_balance", result.FinalBalance.InexactFloat64(),
		"rsi_filter", result.Mode.RSIFilter,
		"session_close_forced", result.Mode.SessionCloseForced,
		"same_bar_exit", result.Mode.SameBarExit,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return result, nil
}
