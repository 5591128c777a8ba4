package interfaces

import (
	"context"

	"signal-backtester/internal/types"
)

// Reporter renders a finished backtest and returns the files it wrote.
type Reporter interface {
	Write(ctx context.Context, symbol string, res *types.BacktestResult) ([]string, error)
}
