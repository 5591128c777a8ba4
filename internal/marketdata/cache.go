package marketdata

import (
	"context"
	"sync"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/types"
)

// Cache keeps a bounded per-symbol history in front of another source.
// Each fetch is merged into the history; when the upstream fails the last
// history is served instead.
type Cache struct {
	src     interfaces.CandleSource
	maxSize int

	mu      sync.RWMutex
	buffers map[string][]types.Candle
}

func NewCache(src interfaces.CandleSource, maxSize int) *Cache {
	return &Cache{
		src:     src,
		maxSize: maxSize,
		buffers: make(map[string][]types.Candle),
	}
}

func (c *Cache) Name() string { return c.src.Name() + "+cache" }

func (c *Cache) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	key := req.Symbol + "|" + req.Interval
	fresh, err := c.src.Candles(ctx, req)
	if err != nil {
		cached := c.snapshot(key, req.Limit)
		if len(cached) == 0 {
			return nil, err
		}
		logger.Warn(ctx, "Candle source failed, serving cached history",
			"source", c.src.Name(),
			"symbol", req.Symbol,
			"cached", len(cached),
			"error", err,
		)
		return cached, nil
	}
	c.merge(key, fresh)
	return c.snapshot(key, req.Limit), nil
}

// merge appends candles newer than the buffered ones. A candle with the
// same timestamp as the last buffered one replaces it, since the upstream
// may still be building that bar.
func (c *Cache) merge(key string, fresh []types.Candle) {
	c.mu.Lock()
	defer c.mu.Unlock()

	buf := c.buffers[key]
	for _, cd := range fresh {
		n := len(buf)
		switch {
		case n == 0 || cd.Ts.After(buf[n-1].Ts):
			buf = append(buf, cd)
		case cd.Ts.Equal(buf[n-1].Ts):
			buf[n-1] = cd
		}
	}
	if c.maxSize > 0 && len(buf) > c.maxSize {
		buf = append([]types.Candle(nil), buf[len(buf)-c.maxSize:]...)
	}
	c.buffers[key] = buf
}

func (c *Cache) snapshot(key string, limit int) []types.Candle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	buf := c.buffers[key]
	if limit > 0 && len(buf) > limit {
		buf = buf[len(buf)-limit:]
	}
	return append([]types.Candle(nil), buf...)
}

// Clear drops all cached history.
func (c *Cache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.buffers = make(map[string][]types.Candle)
}
