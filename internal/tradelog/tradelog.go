// Package tradelog appends simulated trades and live signal decisions to
// daily JSON-lines files and compresses old ones.
package tradelog

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"signal-backtester/internal/types"
)

// TradeEntry is one closed trade.
type TradeEntry struct {
	Time       string `json:"time"`
	Symbol     string `json:"symbol"`
	RunID      string `json:"run_id,omitempty"`
	Side       string `json:"side"`
	Size       string `json:"size"`
	EntryTime  string `json:"entry_time"`
	EntryPrice string `json:"entry_price"`
	ExitPrice  string `json:"exit_price"`
	ExitReason string `json:"exit_reason"`
	PnL        string `json:"pnl"`
}

// SignalEntry is one non-Hold decision of the live poller.
type SignalEntry struct {
	Time       string             `json:"time"`
	LoggedAt   string             `json:"logged_at"`
	Symbol     string             `json:"symbol"`
	Signal     string             `json:"signal"`
	Code       int                `json:"code"`
	Price      float64            `json:"price"`
	Indicators map[string]float64 `json:"indicators,omitempty"`
}

// Log writes under dir/trades and dir/signals, one file per UTC day.
type Log struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

// New logs under dir; an empty dir falls back to TRADER_LOG_DIR, then "logs".
func New(dir string) *Log {
	if dir == "" {
		dir = os.Getenv("TRADER_LOG_DIR")
	}
	if dir == "" {
		dir = "logs"
	}
	return &Log{dir: dir, now: time.Now}
}

func (l *Log) Dir() string { return l.dir }

func (l *Log) dailyPath(kind string, t time.Time) string {
	return filepath.Join(l.dir, kind, t.UTC().Format("2006-01-02")+".txt")
}

// AppendTrade files the trade under its exit date.
func (l *Log) AppendTrade(symbol, runID string, t types.Trade) error {
	e := TradeEntry{
		Time:       t.ExitTime.UTC().Format(time.RFC3339),
		Symbol:     symbol,
		RunID:      runID,
		Side:       t.Side.String(),
		Size:       t.Size.String(),
		EntryTime:  t.EntryTime.UTC().Format(time.RFC3339),
		EntryPrice: t.EntryPrice.String(),
		ExitPrice:  t.ExitPrice.String(),
		ExitReason: t.ExitReason.String(),
		PnL:        t.PnL.String(),
	}
	return l.appendLine(l.dailyPath("trades", t.ExitTime), e)
}

// AppendSignal files the decision under the date of the candle it was made on.
func (l *Log) AppendSignal(symbol string, c types.Candle, code types.SignalCode, st types.IndicatorState) error {
	return l.appendLine(l.dailyPath("signals", c.Ts), NewSignalEntry(symbol, c, code, st, l.now()))
}

// NewSignalEntry builds the record of one decision; RSI is left out when
// it is undefined.
func NewSignalEntry(symbol string, c types.Candle, code types.SignalCode, st types.IndicatorState, at time.Time) SignalEntry {
	e := SignalEntry{
		Time:     c.Ts.UTC().Format(time.RFC3339),
		LoggedAt: at.UTC().Format(time.RFC3339),
		Symbol:   symbol,
		Signal:   code.String(),
		Code:     int(code),
		Price:    c.Close,
		Indicators: map[string]float64{
			"ema_fast":     st.EMAFast,
			"sma_slow":     st.SMASlow,
			"rolling_high": st.RollingHigh,
			"rolling_low":  st.RollingLow,
		},
	}
	if !math.IsNaN(st.RSI) {
		e.Indicators["rsi"] = st.RSI
	}
	return e
}

func (l *Log) appendLine(path string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips .txt files not modified within retentionDays and
// removes the originals. It returns the number of files compressed.
func (l *Log) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	cutoff := l.now().AddDate(0, 0, -retentionDays)
	n := 0
	err := filepath.WalkDir(l.dir, func(p string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(p, ".txt") {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		gz := p + ".gz"
		if _, err := os.Stat(gz); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p, gz); err != nil {
			return fmt.Errorf("compress %s: %w", p, err)
		}
		n++
		return os.Remove(p)
	})
	return n, err
}

func gzipFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		gw.Close()
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := gw.Close(); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
