package marketdata

import (
	"context"
	"hash/fnv"
	"math/rand"
	"time"

	"signal-backtester/internal/types"
)

// SyntheticSource generates a seeded random walk around a start price.
// The same seed, symbol and count always yield the same candles.
type SyntheticSource struct {
	seed  int64
	count int
	start float64
	epoch time.Time
}

func NewSyntheticSource(seed int64, count int, start float64) *SyntheticSource {
	if count <= 0 {
		count = 500
	}
	if start <= 0 {
		start = 1.1
	}
	return &SyntheticSource{
		seed:  seed,
		count: count,
		start: start,
		epoch: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *SyntheticSource) Name() string { return "synthetic" }

func (s *SyntheticSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	step, err := intervalDuration(req.Interval)
	if err != nil {
		step = 5 * time.Minute
	}
	n := s.count
	if req.Limit > n {
		n = req.Limit
	}

	h := fnv.New64a()
	h.Write([]byte(req.Symbol))
	rng := rand.New(rand.NewSource(s.seed ^ int64(h.Sum64())))

	uniform := func(lo, hi float64) float64 { return lo + rng.Float64()*(hi-lo) }

	out := make([]types.Candle, n)
	price := s.start
	for i := range out {
		price += rng.NormFloat64() * 0.0005
		out[i] = types.Candle{
			Ts:    s.epoch.Add(time.Duration(i) * step),
			Open:  price + uniform(-0.0002, 0.0002),
			High:  price + uniform(0.0003, 0.0008),
			Low:   price - uniform(0.0003, 0.0008),
			Close: price + uniform(-0.0002, 0.0002),
			Vol:   float64(100 + rng.Intn(900)),
		}
	}
	return window(out, types.CandleRequest{Limit: req.Limit}), nil
}
