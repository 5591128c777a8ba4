package engine

import (
	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

// exitDecision is the outcome of an exit scan. next is the index the
// driver resumes from; every candle before it has been resolved.
type exitDecision struct {
	index  int
	price  decimal.Decimal
	reason types.ExitReason
	next   int
}

// stopManager derives stop and target levels and scans forward for the
// candle that closes a position.
type stopManager struct {
	stop        decimal.Decimal
	take        decimal.Decimal
	maxHold     int
	sameBarExit bool
	forceClose  bool
	inSession   func(types.Candle) bool
}

func newStopManager(cfg Config) *stopManager {
	return &stopManager{
		stop:        px(cfg.StopDistance),
		take:        px(cfg.TakeDistance),
		maxHold:     cfg.MaxHold,
		sameBarExit: cfg.SameBarExit,
		forceClose:  cfg.SessionCloseForced,
		inSession:   cfg.inSession,
	}
}

// levels returns the stop and target prices of a position.
func (sm *stopManager) levels(pos types.Position) (stop, target decimal.Decimal) {
	if pos.Side == types.Short {
		return pos.EntryPrice.Add(sm.stop), pos.EntryPrice.Sub(sm.take)
	}
	return pos.EntryPrice.Sub(sm.stop), pos.EntryPrice.Add(sm.take)
}

// touched reports whether a candle reaches the stop and target levels.
func (sm *stopManager) touched(pos types.Position, c types.Candle, stop, target decimal.Decimal) (stopHit, targetHit bool) {
	high, low := px(c.High), px(c.Low)
	if pos.Side == types.Short {
		return high.GreaterThanOrEqual(stop), low.LessThanOrEqual(target)
	}
	return low.LessThanOrEqual(stop), high.GreaterThanOrEqual(target)
}

// scan walks candles[start..entry+maxHold] and decides the exit. It never
// reads past the end of candles: running out of data resolves as Timeout
// on the last candle available. Stop is checked before target, so a candle
// touching both exits at the stop.
func (sm *stopManager) scan(candles []types.Candle, pos types.Position) exitDecision {
	start := pos.EntryIndex + 1
	if sm.sameBarExit {
		start = pos.EntryIndex
	}
	// compared before adding so a huge maxHold cannot overflow
	end := len(candles) - 1
	if sm.maxHold < end-pos.EntryIndex {
		end = pos.EntryIndex + sm.maxHold
	}

	stop, target := sm.levels(pos)
	lastScanned := -1
	for j := start; j <= end; j++ {
		c := candles[j]
		if !sm.inSession(c) {
			if sm.forceClose {
				return exitDecision{index: j, price: px(c.Close), reason: types.SessionClose, next: j + 1}
			}
			continue
		}
		lastScanned = j

		stopHit, targetHit := sm.touched(pos, c, stop, target)
		if stopHit {
			return exitDecision{index: j, price: stop, reason: types.StopLoss, next: j + 1}
		}
		if targetHit {
			return exitDecision{index: j, price: target, reason: types.TakeProfit, next: j + 1}
		}
	}

	idx := lastScanned
	if idx < 0 {
		idx = end
	}
	if idx < pos.EntryIndex {
		idx = pos.EntryIndex
	}
	return exitDecision{index: idx, price: px(candles[idx].Close), reason: types.Timeout, next: idx + 1}
}
