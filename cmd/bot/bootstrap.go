package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/marketdata"
	"signal-backtester/internal/marketdata/marketdataobs"
	"signal-backtester/internal/store"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/tradelog"
)

// cacheSize bounds the per-symbol history the poller keeps between polls.
const cacheSize = 2000

// initializeSystem initializes logger and tracer
func initializeSystem() error {
	_ = godotenv.Load()

	if err := logger.Init(); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}
	return nil
}

// loadConfig loads and returns the configuration
func loadConfig(ctx context.Context, path string) (*store.Config, error) {
	cfg, err := store.LoadConfig(path)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", path)
		return nil, err
	}
	return cfg, nil
}

// compressOldLogs compresses old tradelog files if retention is configured
func compressOldLogs(ctx context.Context, tl *tradelog.Log) {
	v := os.Getenv("TRADER_LOG_RETENTION_DAYS")
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logger.Warn(ctx, "Ignoring invalid TRADER_LOG_RETENTION_DAYS", "value", v)
		return
	}
	count, err := tl.CompressOlder(n)
	if err != nil {
		logger.Warn(ctx, "Failed to compress old logs", "error", err)
		return
	}
	if count > 0 {
		logger.Info(ctx, "Compressed old logs", "files", count, "retention_days", n)
	}
}

// initializeSource opens the configured candle source behind a bounded
// cache, with observability
func initializeSource(ctx context.Context, cfg *store.Config) (interfaces.CandleSource, func() error, error) {
	base, closeFn, err := marketdata.Open(ctx, marketdata.ParamsFromConfig(cfg))
	if err != nil {
		return nil, nil, err
	}

	if cfg.Source.Kind == store.SourceSynthetic {
		logger.Warn(ctx, "Using SYNTHETIC candles - signals are for testing only")
	} else {
		logger.Info(ctx, "Using candle source", "kind", cfg.Source.Kind)
	}

	return marketdataobs.Wrap(marketdata.NewCache(base, cacheSize)), closeFn, nil
}
