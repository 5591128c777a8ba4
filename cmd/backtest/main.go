package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"signal-backtester/internal/engine"
	"signal-backtester/internal/engine/engineobs"
	"signal-backtester/internal/journal"
	"signal-backtester/internal/logger"
	"signal-backtester/internal/marketdata"
	"signal-backtester/internal/marketdata/marketdataobs"
	"signal-backtester/internal/report"
	"signal-backtester/internal/report/reportobs"
	sig "signal-backtester/internal/signal"
	"signal-backtester/internal/store"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/trace"
	"signal-backtester/internal/tradelog"
	"signal-backtester/internal/types"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to config file")
	sourceKind := flag.String("source", "", "override source.kind (CSV, YAHOO, KITE, CLICKHOUSE, SYNTHETIC)")
	symbol := flag.String("symbol", "", "override symbol")
	outDir := flag.String("out", "", "override output.dir")
	flag.Parse()

	_ = godotenv.Load()
	if err := logger.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	if err := trace.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize tracer: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = trace.Shutdown(shutdownCtx)
	}()

	cfg, err := store.LoadConfig(*configPath)
	if err != nil {
		logger.ErrorWithErr(ctx, "Failed to load config", err, "path", *configPath)
		os.Exit(1)
	}
	if *sourceKind != "" {
		cfg.Source.Kind = strings.ToUpper(*sourceKind)
		if err := cfg.Validate(); err != nil {
			logger.ErrorWithErr(ctx, "Invalid source override", err)
			os.Exit(1)
		}
	}
	if *symbol != "" {
		cfg.Symbol = *symbol
	}
	if *outDir != "" {
		cfg.Output.Dir = *outDir
	}

	if err := run(ctx, cfg); err != nil {
		logger.ErrorWithErr(ctx, "Backtest run failed", err, "symbol", cfg.Symbol)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *store.Config) error {
	ec, err := cfg.Backtest()
	if err != nil {
		return err
	}

	base, closeSource, err := marketdata.Open(ctx, marketdata.ParamsFromConfig(cfg))
	if err != nil {
		return fmt.Errorf("open %s source: %w", cfg.Source.Kind, err)
	}
	defer closeSource()
	src := marketdataobs.Wrap(base)

	candles, err := src.Candles(ctx, cfg.Request(cfg.Symbol, time.Now()))
	if err != nil {
		return err
	}

	bt, err := engine.New(ec)
	if err != nil {
		return err
	}
	res, err := engineobs.Wrap(bt, cfg.Symbol).Run(ctx, candles)
	if err != nil {
		return err
	}

	writer := report.NewWriter(cfg.Output.Dir, os.Stdout)
	paths, err := reportobs.Wrap(writer).Write(ctx, cfg.Symbol, res)
	if err != nil {
		return err
	}
	signalsPath, err := writeSignals(ctx, cfg, candles, writer.Dir(cfg.Symbol))
	if err != nil {
		return err
	}
	paths = append(paths, signalsPath)
	for _, p := range paths {
		fmt.Println("wrote", p)
	}

	runID := journal.RunID(ec, candles)
	recordTrades(ctx, cfg.Symbol, runID.String(), res)

	if cfg.Journal.DSN != "" {
		j, err := journal.OpenPostgres(ctx, cfg.Journal.DSN)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer j.Close()
		op := logger.StartOperation(ctx, "journal.Save", "run_id", runID.String(), "symbol", cfg.Symbol)
		if err := j.Save(op.GetContext(), runID, cfg.Symbol, res); err != nil {
			op.EndWithError(err)
			return fmt.Errorf("save run: %w", err)
		}
		op.End("trades", len(res.Trades))
		logger.Info(ctx, "Run journaled", "run_id", runID.String(), "trades", len(res.Trades))
	}
	return nil
}

// writeSignals exports the tradable signals of the run as filtered_signals.csv.
func writeSignals(ctx context.Context, cfg *store.Config, candles []types.Candle, dir string) (string, error) {
	states, err := ta.Compute(candles, cfg.Indicators)
	if err != nil {
		return "", err
	}
	codes := sig.NewClassifier(cfg.Signal).ClassifyAll(ctx, candles, states)
	path := filepath.Join(dir, "filtered_signals.csv")
	if err := report.WriteSignalsCSV(path, report.FilterSignals(candles, states, codes)); err != nil {
		return "", fmt.Errorf("write signals: %w", err)
	}
	return path, nil
}

func recordTrades(ctx context.Context, symbol, runID string, res *types.BacktestResult) {
	tl := tradelog.New("")
	for _, t := range res.Trades {
		logger.Trade(ctx, symbol, t.Side.String(), t.ExitReason.String(),
			t.EntryPrice.InexactFloat64(), t.ExitPrice.InexactFloat64(), t.PnL.InexactFloat64(),
			"run_id", runID)
		if err := tl.AppendTrade(symbol, runID, t); err != nil {
			logger.Warn(ctx, "Failed to append trade log", "error", err)
		}
	}
}
