// Package report turns a finished backtest into metrics, text, CSV files
// and an SVG equity chart.
package report

import (
	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

// Summary is the headline view of one run. ProfitFactor is 0 when the run
// has no losing trade; MaxDrawdownPct is a positive percentage of the peak.
type Summary struct {
	Symbol         string          `json:"symbol"`
	Mode           types.RunMode   `json:"mode"`
	Candles        int             `json:"candles"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	FinalBalance   decimal.Decimal `json:"final_balance"`
	TotalProfit    decimal.Decimal `json:"total_profit"`
	Trades         int             `json:"trades"`
	Wins           int             `json:"wins"`
	Losses         int             `json:"losses"`
	WinRate        float64         `json:"win_rate"`
	ProfitFactor   float64         `json:"profit_factor"`
	MaxDrawdownPct float64         `json:"max_drawdown_pct"`
	ByExitReason   map[string]int  `json:"by_exit_reason"`
}

func Summarize(symbol string, res *types.BacktestResult) Summary {
	s := Summary{
		Symbol:         symbol,
		Mode:           res.Mode,
		Candles:        len(res.Equity),
		InitialBalance: res.InitialBalance,
		FinalBalance:   res.FinalBalance,
		TotalProfit:    res.FinalBalance.Sub(res.InitialBalance),
		Trades:         len(res.Trades),
		ByExitReason:   make(map[string]int),
	}

	gross, loss := decimal.Zero, decimal.Zero
	for _, t := range res.Trades {
		s.ByExitReason[t.ExitReason.String()]++
		switch {
		case t.PnL.IsPositive():
			s.Wins++
			gross = gross.Add(t.PnL)
		case t.PnL.IsNegative():
			s.Losses++
			loss = loss.Sub(t.PnL)
		}
	}
	if s.Trades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.Trades)
	}
	if loss.IsPositive() {
		s.ProfitFactor = gross.Div(loss).InexactFloat64()
	}
	s.MaxDrawdownPct = maxDrawdownPct(res.Equity)
	return s
}

func maxDrawdownPct(eq []types.EquityPoint) float64 {
	if len(eq) == 0 {
		return 0
	}
	peak := eq[0].Balance
	worst := decimal.Zero
	for _, p := range eq {
		if p.Balance.GreaterThan(peak) {
			peak = p.Balance
		}
		if !peak.IsPositive() {
			continue
		}
		dd := peak.Sub(p.Balance).Div(peak)
		if dd.GreaterThan(worst) {
			worst = dd
		}
	}
	return worst.Mul(decimal.NewFromInt(100)).InexactFloat64()
}
