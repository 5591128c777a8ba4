package report

import (
	"sort"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

// dayAgg accumulates the trades closed on one UTC day.
type dayAgg struct {
	Date   string
	Trades int
	Wins   int
	Losses int
	PnL    decimal.Decimal
}

// DailyRow is one line of the per-day summary.
type DailyRow struct {
	Date    string `csv:"date"`
	Trades  int    `csv:"trades"`
	Wins    int    `csv:"wins"`
	Losses  int    `csv:"losses"`
	PnL     string `csv:"realized_pnl"`
	Balance string `csv:"closing_balance"`
}

// Daily groups trades by exit date and carries the running balance.
// The last row is a TOTAL line.
func Daily(res *types.BacktestResult) []*DailyRow {
	aggs := map[string]*dayAgg{}
	for _, t := range res.Trades {
		d := t.ExitTime.UTC().Format("2006-01-02")
		row := aggs[d]
		if row == nil {
			row = &dayAgg{Date: d}
			aggs[d] = row
		}
		row.Trades++
		row.PnL = row.PnL.Add(t.PnL)
		switch {
		case t.PnL.IsPositive():
			row.Wins++
		case t.PnL.IsNegative():
			row.Losses++
		}
	}

	keys := make([]string, 0, len(aggs))
	for k := range aggs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]*DailyRow, 0, len(keys)+1)
	balance := res.InitialBalance
	total := dayAgg{Date: "TOTAL"}
	for _, k := range keys {
		a := aggs[k]
		balance = balance.Add(a.PnL)
		out = append(out, &DailyRow{
			Date:    a.Date,
			Trades:  a.Trades,
			Wins:    a.Wins,
			Losses:  a.Losses,
			PnL:     a.PnL.String(),
			Balance: balance.String(),
		})
		total.Trades += a.Trades
		total.Wins += a.Wins
		total.Losses += a.Losses
		total.PnL = total.PnL.Add(a.PnL)
	}
	out = append(out, &DailyRow{
		Date:    total.Date,
		Trades:  total.Trades,
		Wins:    total.Wins,
		Losses:  total.Losses,
		PnL:     total.PnL.String(),
		Balance: balance.String(),
	})
	return out
}

func WriteDailyCSV(path string, res *types.BacktestResult) error {
	rows := Daily(res)
	return writeCSV(path, &rows)
}
