package report

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"signal-backtester/internal/types"
)

const rule = "=================================================="

// WriteText prints the trade list followed by the summary.
func WriteText(w io.Writer, s Summary, trades []types.Trade) error {
	var b strings.Builder
	fmt.Fprintf(&b, "\nBACKTEST RESULT %s\n%s\n", s.Symbol, rule)
	for _, t := range trades {
		fmt.Fprintf(&b, "* %s %s entry=%s @ %s exit=%s @ %s pnl=%s (%s)\n",
			t.Side, t.Size.String(),
			t.EntryPrice.String(), t.EntryTime.Format("2006-01-02 15:04"),
			t.ExitPrice.String(), t.ExitTime.Format("2006-01-02 15:04"),
			t.PnL.String(), t.ExitReason)
	}

	fmt.Fprintf(&b, "\nFINAL BALANCE : %s\n", s.FinalBalance.StringFixed(2))
	fmt.Fprintf(&b, "TOTAL PROFIT  : %s\n", s.TotalProfit.StringFixed(2))
	fmt.Fprintf(&b, "TRADES        : %d (wins %d, losses %d)\n", s.Trades, s.Wins, s.Losses)
	fmt.Fprintf(&b, "WIN RATE      : %.2f%%\n", s.WinRate*100)
	fmt.Fprintf(&b, "PROFIT FACTOR : %.2f\n", s.ProfitFactor)
	fmt.Fprintf(&b, "MAX DRAWDOWN  : %.2f%%\n", s.MaxDrawdownPct)

	reasons := make([]string, 0, len(s.ByExitReason))
	for r := range s.ByExitReason {
		reasons = append(reasons, r)
	}
	sort.Strings(reasons)
	for _, r := range reasons {
		fmt.Fprintf(&b, "  %-12s %d\n", r, s.ByExitReason[r])
	}
	fmt.Fprintf(&b, "MODE          : rsi_filter=%t session_close_forced=%t same_bar_exit=%t sizing=%s\n",
		s.Mode.RSIFilter, s.Mode.SessionCloseForced, s.Mode.SameBarExit, s.Mode.SizingMode)
	b.WriteString(rule + "\n")

	_, err := io.WriteString(w, b.String())
	return err
}
