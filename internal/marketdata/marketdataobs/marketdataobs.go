package marketdataobs

import (
	"context"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/types"
)

// observableSource wraps a CandleSource with logging and tracing
type observableSource struct {
	source interfaces.CandleSource
}

var _ interfaces.CandleSource = (*observableSource)(nil)

// Wrap wraps a candle source with observability middleware
func Wrap(source interfaces.CandleSource) interfaces.CandleSource {
	return &observableSource{source: source}
}

func (o *observableSource) Name() string { return o.source.Name() }

// Candles fetches candles with observability
func (o *observableSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	ctx, span := trace.StartSpan(ctx, "marketdata.Candles")
	defer span.End()

	logger.DebugSkip(ctx, 1, "Fetching candles",
		"source", o.source.Name(),
		"symbol", req.Symbol,
		"interval", req.Interval,
		"limit", req.Limit,
	)

	candles, err := o.source.Candles(ctx, req)
	if err != nil {
		logger.ErrorWithErrSkip(ctx, 1, "Failed to fetch candles", err,
			"source", o.source.Name(),
			"symbol", req.Symbol,
		)
		return nil, err
	}

	fields := []any{"source", o.source.Name(), "symbol", req.Symbol, "count", len(candles)}
	if n := len(candles); n > 0 {
		fields = append(fields, "first", candles[0].Ts, "last", candles[n-1].Ts)
	}
	logger.DebugSkip(ctx, 1, "Candles fetched successfully", fields...)
	return candles, nil
}
