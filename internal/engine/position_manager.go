package engine

import (
	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

// positionManager is the Flat/Open state machine of one simulation. It
// owns the running balance and appends to the trade log on every exit.
type positionManager struct {
	balance decimal.Decimal
	pos     *types.Position
	trades  []types.Trade
}

func newPositionManager(initial decimal.Decimal) *positionManager {
	return &positionManager{balance: initial}
}

func (pm *positionManager) isOpen() bool {
	return pm.pos != nil
}

// open creates a position. It is a no-op returning false while another
// position is open.
func (pm *positionManager) open(side types.Side, entry decimal.Decimal, index int, candle types.Candle, size decimal.Decimal) bool {
	if pm.pos != nil {
		return false
	}
	pm.pos = &types.Position{
		Side:       side,
		EntryPrice: entry,
		EntryIndex: index,
		EntryTime:  candle.Ts,
		Size:       size,
	}
	return true
}

// close realizes the open position at the decided exit, applies PnL to the
// balance and records the trade. ok is false when flat.
func (pm *positionManager) close(exit exitDecision, candle types.Candle) (types.Trade, bool) {
	p := pm.pos
	if p == nil {
		return types.Trade{}, false
	}
	pnl := realizedPnL(p.Side, p.EntryPrice, exit.price, p.Size)
	t := types.Trade{
		EntryTime:  p.EntryTime,
		EntryPrice: p.EntryPrice,
		ExitTime:   candle.Ts,
		ExitPrice:  exit.price,
		Side:       p.Side,
		Size:       p.Size,
		ExitReason: exit.reason,
		PnL:        pnl,
		EntryIndex: p.EntryIndex,
		ExitIndex:  exit.index,
	}
	pm.balance = pm.balance.Add(pnl)
	pm.trades = append(pm.trades, t)
	pm.pos = nil
	return t, true
}

// realizedPnL is (exit-entry)*size for longs and (entry-exit)*size for shorts.
func realizedPnL(side types.Side, entry, exit, size decimal.Decimal) decimal.Decimal {
	if side == types.Short {
		return entry.Sub(exit).Mul(size)
	}
	return exit.Sub(entry).Mul(size)
}
