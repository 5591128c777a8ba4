package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/publish"
	sig "signal-backtester/internal/signal"
	"signal-backtester/internal/store"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/tradelog"
	"signal-backtester/internal/types"
)

// poller classifies the most recent candle of a fresh snapshot on every tick.
type poller struct {
	cfg        *store.Config
	source     interfaces.CandleSource
	classifier *sig.Classifier
	log        *tradelog.Log
	publisher  *publish.KafkaPublisher
	last       map[string]time.Time
}

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	flag.Parse()

	if err := initializeSystem(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig(ctx, *configPath)
	if err != nil {
		os.Exit(1)
	}

	tl := tradelog.New("")
	compressOldLogs(ctx, tl)

	src, closeSource, err := initializeSource(ctx, cfg)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to open candle source", err)
		os.Exit(1)
	}
	defer closeSource()

	p := &poller{
		cfg:        cfg,
		source:     src,
		classifier: sig.NewClassifier(cfg.Signal),
		log:        tl,
		last:       make(map[string]time.Time),
	}
	if cfg.Publish.Brokers != "" {
		pub, err := publish.NewKafkaPublisher(cfg.Publish.Brokers, cfg.Publish.Topic)
		if err != nil {
			logger.ErrorWithErr(ctx, "Failed to create signal publisher", err)
			os.Exit(1)
		}
		defer pub.Close()
		p.publisher = pub
		logger.Info(ctx, "Publishing signals to Kafka", "topic", pub.Topic())
	}

	tick := time.NewTicker(time.Duration(cfg.PollSeconds) * time.Second)
	defer tick.Stop()

	logger.Info(ctx, "Signal poller started",
		"symbol", cfg.Symbol,
		"interval", cfg.Interval,
		"poll_seconds", cfg.PollSeconds,
	)
	p.poll(ctx, cfg.Symbol)
	for {
		select {
		case <-tick.C:
			p.poll(ctx, cfg.Symbol)
		case <-ctx.Done():
			logger.Info(ctx, "Shutting down...")
			return
		}
	}
}

// poll never returns an error: a failed poll is logged and the next tick
// starts from scratch.
func (p *poller) poll(ctx context.Context, symbol string) {
	ctx, span := trace.StartSpan(ctx, "bot.poll")
	defer span.End()

	candles, err := p.source.Candles(ctx, p.cfg.Request(symbol, time.Now()))
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to fetch candles", err, "symbol", symbol)
		return
	}
	code, c, st, err := p.latest(ctx, candles)
	if err != nil {
		logger.Warn(ctx, "Cannot classify latest candle", "symbol", symbol, "error", err)
		return
	}
	if code == types.Hold {
		logger.Debug(ctx, "No signal", "symbol", symbol, "ts", c.Ts)
		return
	}
	// the same bar is re-polled until the next one opens
	if prev, ok := p.last[symbol]; ok && prev.Equal(c.Ts) {
		return
	}
	p.last[symbol] = c.Ts

	logger.Signal(ctx, symbol, code.String(), c.Close,
		"ts", c.Ts,
		"ema_fast", st.EMAFast,
		"sma_slow", st.SMASlow,
		"code", int(code),
	)
	if err := p.log.AppendSignal(symbol, c, code, st); err != nil {
		logger.Warn(ctx, "Failed to append signal log", "error", err)
	}
	if p.publisher != nil {
		e := tradelog.NewSignalEntry(symbol, c, code, st, time.Now())
		if err := p.publisher.Publish(ctx, e); err != nil {
			logger.Warn(ctx, "Failed to publish signal", "topic", p.publisher.Topic(), "error", err)
		}
	}
}

func (p *poller) latest(ctx context.Context, candles []types.Candle) (types.SignalCode, types.Candle, types.IndicatorState, error) {
	if errs := ta.ValidateCandles(candles); len(errs) > 0 {
		return types.Hold, types.Candle{}, types.IndicatorState{}, errors.Join(errs...)
	}
	states, err := ta.Compute(candles, p.cfg.Indicators)
	if err != nil {
		return types.Hold, types.Candle{}, types.IndicatorState{}, err
	}
	i := len(candles) - 1
	return p.classifier.Classify(ctx, candles, states, i), candles[i], states[i], nil
}
