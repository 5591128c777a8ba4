package interfaces

import (
	"context"

	"signal-backtester/internal/types"
)

// CandleSource supplies an ordered candle history.
type CandleSource interface {
	Name() string
	Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error)
}
