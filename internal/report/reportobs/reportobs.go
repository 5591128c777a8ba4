package reportobs

import (
	"context"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/types"
)

type observableReporter struct {
	reporter interfaces.Reporter
}

var _ interfaces.Reporter = (*observableReporter)(nil)

func Wrap(reporter interfaces.Reporter) interfaces.Reporter {
	return &observableReporter{reporter: reporter}
}

func (or *observableReporter) Write(ctx context.Context, symbol string, res *types.BacktestResult) ([]string, error) {
	ctx, span := trace.StartSpan(ctx, "report.Write")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Writing backtest report",
		"symbol", symbol,
		"trades", len(res.Trades),
	)

	paths, err := or.reporter.Write(ctx, symbol, res)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Backtest report failed", err, "symbol", symbol)
		return nil, err
	}

	logger.InfoSkip(ctx, 1, "Backtest report written",
		"symbol", symbol,
		"files", paths,
	)
	return paths, nil
}
