package report

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/types"
)

// Writer prints the text report and writes the CSV and SVG artifacts of a
// run under dir/<symbol>/.
type Writer struct {
	dir string
	out io.Writer
}

var _ interfaces.Reporter = (*Writer)(nil)

// NewWriter writes files under dir; text goes to out when it is non-nil.
func NewWriter(dir string, out io.Writer) *Writer {
	return &Writer{dir: dir, out: out}
}

func (w *Writer) Write(ctx context.Context, symbol string, res *types.BacktestResult) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := Summarize(symbol, res)
	if w.out != nil {
		if err := WriteText(w.out, s, res.Trades); err != nil {
			return nil, err
		}
	}

	dir := filepath.Join(w.dir, safeName(symbol))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}

	paths := []string{
		filepath.Join(dir, "trades.csv"),
		filepath.Join(dir, "equity.csv"),
		filepath.Join(dir, "daily.csv"),
		filepath.Join(dir, "equity.svg"),
	}
	if err := WriteTradesCSV(paths[0], res.Trades); err != nil {
		return nil, fmt.Errorf("write trades: %w", err)
	}
	if err := WriteEquityCSV(paths[1], res.Equity); err != nil {
		return nil, fmt.Errorf("write equity: %w", err)
	}
	if err := WriteDailyCSV(paths[2], res); err != nil {
		return nil, fmt.Errorf("write daily summary: %w", err)
	}
	title := fmt.Sprintf("%s equity curve (green = win, red = loss)", symbol)
	if err := os.WriteFile(paths[3], EquitySVG(0, 0, res, title), 0o644); err != nil {
		return nil, fmt.Errorf("write chart: %w", err)
	}
	return paths, nil
}

// Dir is the directory a symbol's artifacts are written to.
func (w *Writer) Dir(symbol string) string {
	return filepath.Join(w.dir, safeName(symbol))
}

func safeName(symbol string) string {
	r := strings.NewReplacer("/", "_", "\\", "_", ":", "_", " ", "_")
	if s := r.Replace(symbol); s != "" {
		return s
	}
	return "unknown"
}
