package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/logger"
	"signal-backtester/internal/signal"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

// Engine runs single-position backtests over a candle history.
type Engine struct {
	cfg        Config
	classifier *signal.Classifier
}

func newEngine(cfg Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, classifier: signal.NewClassifier(cfg.Signal)}, nil
}

// simulation holds every accumulator of one Run call.
type simulation struct {
	cfg     Config
	pm      *positionManager
	stops   *stopManager
	sizing  *riskManager
	equity  []types.EquityPoint
	candles []types.Candle
}

func (s *simulation) mark(i int) {
	s.equity = append(s.equity, types.EquityPoint{Index: i, Ts: s.candles[i].Ts, Balance: s.pm.balance})
}

// Run validates inputs, computes indicators and signals, then walks the
// candles once. The returned result has exactly one equity point per candle.
func (e *Engine) Run(ctx context.Context, candles []types.Candle) (*types.BacktestResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if errs := ta.ValidateCandles(candles); len(errs) > 0 {
		logger.Warn(ctx, "Malformed candles in input", "symbol", e.cfg.Symbol, "count", len(errs))
		return nil, errors.Join(errs...)
	}
	states, err := ta.Compute(candles, e.cfg.Indicators)
	if err != nil {
		return nil, fmt.Errorf("compute indicators: %w", err)
	}
	codes := e.classifier.ClassifyAll(ctx, candles, states)

	initial := px(e.cfg.InitialBalance)
	sim := &simulation{
		cfg:     e.cfg,
		pm:      newPositionManager(initial),
		stops:   newStopManager(e.cfg),
		sizing:  newRiskManager(e.cfg.policy(), e.cfg.Symbol),
		equity:  make([]types.EquityPoint, 0, len(candles)),
		candles: candles,
	}

	for i := 0; i < len(candles); {
		i = sim.step(ctx, i, codes[i], states[i])
	}

	logger.Debug(ctx, "Backtest pass completed",
		"symbol", e.cfg.Symbol,
		"candles", len(candles),
		"trades", len(sim.pm.trades),
		"final_balance", f64(sim.pm.balance),
	)

	return &types.BacktestResult{
		Trades:         sim.pm.trades,
		Equity:         sim.equity,
		InitialBalance: initial,
		FinalBalance:   sim.pm.balance,
		Mode:           e.cfg.runMode(),
	}, nil
}

// step handles candle i and returns the next index to visit. An entry
// resolves its whole lifecycle here and jumps past the exit candle.
func (s *simulation) step(ctx context.Context, i int, code types.SignalCode, st types.IndicatorState) int {
	c := s.candles[i]
	side, tradable := code.Side()
	if !st.Ready || !tradable || !s.cfg.inSession(c) || s.pm.isOpen() {
		s.mark(i)
		return i + 1
	}

	entry := px(c.Close).Add(px(s.cfg.Spread))
	if side == types.Short {
		entry = px(c.Close).Sub(px(s.cfg.Spread))
	}
	size := s.sizing.sizeFor(ctx, s.pm.balance, c, st)
	s.pm.open(side, entry, i, c, size)
	logger.Debug(ctx, "Position opened",
		"symbol", s.cfg.Symbol,
		"signal", code.String(),
		"index", i,
		"entry_price", f64(entry),
		"size", f64(size),
	)

	exit := s.stops.scan(s.candles, *s.pm.pos)
	for k := i; k < exit.index; k++ {
		s.mark(k)
	}
	trade, _ := s.pm.close(exit, s.candles[exit.index])
	s.mark(exit.index)

	logger.Debug(ctx, "Position closed",
		"symbol", s.cfg.Symbol,
		"side", trade.Side.String(),
		"exit_reason", trade.ExitReason.String(),
		"entry_index", trade.EntryIndex,
		"exit_index", trade.ExitIndex,
		"exit_price", f64(trade.ExitPrice),
		"pnl", f64(trade.PnL),
	)
	return exit.next
}

// Balance reports the balance after the given trades starting from initial.
func Balance(initial decimal.Decimal, trades []types.Trade) decimal.Decimal {
	b := initial
	for _, t := range trades {
		b = b.Add(t.PnL)
	}
	return b
}
