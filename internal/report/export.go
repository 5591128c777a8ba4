package report

import (
	"os"
	"time"

	"github.com/gocarina/gocsv"

	"signal-backtester/internal/types"
)

type tradeRow struct {
	EntryTime  string `csv:"entry_time"`
	ExitTime   string `csv:"exit_time"`
	Side       string `csv:"side"`
	Size       string `csv:"size"`
	EntryPrice string `csv:"entry_price"`
	ExitPrice  string `csv:"exit_price"`
	ExitReason string `csv:"exit_reason"`
	PnL        string `csv:"pnl"`
}

type equityRow struct {
	Index     int    `csv:"index"`
	Timestamp string `csv:"timestamp"`
	Balance   string `csv:"balance"`
}

// SignalRow is one tradable signal with the indicator values behind it.
type SignalRow struct {
	Timestamp string  `csv:"timestamp" json:"timestamp"`
	Close     float64 `csv:"close" json:"close"`
	EMAFast   float64 `csv:"ema_fast" json:"ema_fast"`
	SMASlow   float64 `csv:"sma_slow" json:"sma_slow"`
	RSI       float64 `csv:"rsi" json:"rsi"`
	Code      int     `csv:"signal" json:"signal"`
	Label     string  `csv:"signal_type" json:"signal_type"`
}

func stamp(t time.Time) string { return t.UTC().Format(time.RFC3339) }

// FilterSignals keeps the candles whose code opens a position.
func FilterSignals(candles []types.Candle, states []types.IndicatorState, codes []types.SignalCode) []SignalRow {
	var rows []SignalRow
	for i, code := range codes {
		if !code.Tradable() || i >= len(candles) || i >= len(states) {
			continue
		}
		st := states[i]
		rows = append(rows, SignalRow{
			Timestamp: stamp(candles[i].Ts),
			Close:     candles[i].Close,
			EMAFast:   st.EMAFast,
			SMASlow:   st.SMASlow,
			RSI:       st.RSI,
			Code:      int(code),
			Label:     code.String(),
		})
	}
	return rows
}

func WriteTradesCSV(path string, trades []types.Trade) error {
	rows := make([]*tradeRow, 0, len(trades))
	for _, t := range trades {
		rows = append(rows, &tradeRow{
			EntryTime:  stamp(t.EntryTime),
			ExitTime:   stamp(t.ExitTime),
			Side:       t.Side.String(),
			Size:       t.Size.String(),
			EntryPrice: t.EntryPrice.String(),
			ExitPrice:  t.ExitPrice.String(),
			ExitReason: t.ExitReason.String(),
			PnL:        t.PnL.String(),
		})
	}
	return writeCSV(path, &rows)
}

func WriteEquityCSV(path string, equity []types.EquityPoint) error {
	rows := make([]*equityRow, 0, len(equity))
	for _, p := range equity {
		rows = append(rows, &equityRow{Index: p.Index, Timestamp: stamp(p.Ts), Balance: p.Balance.String()})
	}
	return writeCSV(path, &rows)
}

func WriteSignalsCSV(path string, rows []SignalRow) error {
	ptrs := make([]*SignalRow, len(rows))
	for i := range rows {
		ptrs[i] = &rows[i]
	}
	return writeCSV(path, &ptrs)
}

func writeCSV(path string, rows any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := gocsv.MarshalFile(rows, f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
