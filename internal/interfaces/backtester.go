package interfaces

import (
	"context"

	"signal-backtester/internal/types"
)

type Backtester interface {
	Run(ctx context.Context, candles []types.Candle) (*types.BacktestResult, error)
}
