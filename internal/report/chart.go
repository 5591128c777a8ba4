package report

import (
	"bytes"
	"fmt"
	"html"

	"signal-backtester/internal/types"
)

const (
	winColor  = "#2ca02c"
	lossColor = "#d62728"
)

// EquitySVG draws the balance per candle, a dashed line at the starting
// balance and one marker per trade at its exit candle, green for a win and
// red otherwise.
func EquitySVG(w, h int, res *types.BacktestResult, title string) []byte {
	if w <= 0 {
		w = 1200
	}
	if h <= 0 {
		h = 500
	}
	var b bytes.Buffer
	fmt.Fprintf(&b, "<svg xmlns='http://www.w3.org/2000/svg' width='%d' height='%d' viewBox='0 0 %d %d'>", w, h, w, h)
	b.WriteString("<rect width='100%' height='100%' fill='#ffffff'/>")
	fmt.Fprintf(&b, "<text x='16' y='22' fill='#222' font-family='sans-serif' font-size='15'>%s</text>", html.EscapeString(title))

	if len(res.Equity) == 0 {
		b.WriteString("</svg>")
		return b.Bytes()
	}

	plotW, plotH := float64(w-80), float64(h-70)
	start := res.InitialBalance.InexactFloat64()
	miny, maxy := start, start
	for _, p := range res.Equity {
		v := p.Balance.InexactFloat64()
		if v < miny {
			miny = v
		}
		if v > maxy {
			maxy = v
		}
	}
	maxx := float64(len(res.Equity) - 1)
	sx := plotW / (maxx + 1e-9)
	sy := plotH / (maxy - miny + 1e-9)
	px := func(i int) float64 { return float64(i) * sx }
	py := func(v float64) float64 { return plotH - (v-miny)*sy }

	b.WriteString("<g transform='translate(50,40)'>")
	fmt.Fprintf(&b, "<line x1='0' y1='0' x2='0' y2='%.0f' stroke='#999'/>", plotH)
	fmt.Fprintf(&b, "<line x1='0' y1='%.0f' x2='%.0f' y2='%.0f' stroke='#999'/>", plotH, plotW, plotH)
	fmt.Fprintf(&b, "<line x1='0' y1='%.2f' x2='%.0f' y2='%.2f' stroke='#888' stroke-dasharray='6,4'/>", py(start), plotW, py(start))

	b.WriteString("<polyline fill='none' stroke='#1f77b4' stroke-width='1.5' points='")
	for i, p := range res.Equity {
		if i > 0 {
			b.WriteByte(' ')
		}
		fmt.Fprintf(&b, "%.2f,%.2f", px(i), py(p.Balance.InexactFloat64()))
	}
	b.WriteString("'/>")

	for _, t := range res.Trades {
		if t.ExitIndex < 0 || t.ExitIndex >= len(res.Equity) {
			continue
		}
		color := lossColor
		if t.PnL.IsPositive() {
			color = winColor
		}
		y := res.Equity[t.ExitIndex].Balance.InexactFloat64()
		fmt.Fprintf(&b, "<circle cx='%.2f' cy='%.2f' r='4' fill='%s' stroke='#000' stroke-width='0.5'/>", px(t.ExitIndex), py(y), color)
	}
	b.WriteString("</g>")
	fmt.Fprintf(&b, "<text x='50' y='%d' fill='#555' font-family='sans-serif' font-size='11'>candle index</text>", h-8)
	fmt.Fprintf(&b, "<text x='4' y='36' fill='#555' font-family='sans-serif' font-size='11'>%.2f</text>", maxy)
	fmt.Fprintf(&b, "<text x='4' y='%.0f' fill='#555' font-family='sans-serif' font-size='11'>%.2f</text>", 40+plotH, miny)
	b.WriteString("</svg>")
	return b.Bytes()
}
