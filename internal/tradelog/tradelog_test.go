package tradelog

import (
	"bufio"
	"compress/gzip"
	"encoding/json"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"signal-backtester/internal/types"
)

func readLines(t *testing.T, path string) []map[string]any {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	var out []map[string]any
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("bad json line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestAppendTrade(t *testing.T) {
	l := New(t.TempDir())
	exit := time.Date(2024, 3, 1, 23, 55, 0, 0, time.UTC)
	tr := types.Trade{
		EntryTime:  exit.Add(-time.Hour),
		ExitTime:   exit,
		Side:       types.Short,
		Size:       decimal.NewFromInt(1),
		EntryPrice: decimal.RequireFromString("1.0995"),
		ExitPrice:  decimal.RequireFromString("1.0955"),
		ExitReason: types.TakeProfit,
		PnL:        decimal.RequireFromString("0.004"),
	}
	for i := 0; i < 2; i++ {
		if err := l.AppendTrade("EURUSD=X", "run-1", tr); err != nil {
			t.Fatalf("AppendTrade: %v", err)
		}
	}

	lines := readLines(t, filepath.Join(l.Dir(), "trades", "2024-03-01.txt"))
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if lines[0]["side"] != "SHORT" || lines[0]["pnl"] != "0.004" || lines[0]["exit_reason"] != "TAKE_PROFIT" {
		t.Errorf("line %v", lines[0])
	}
}

func TestAppendSignal(t *testing.T) {
	l := New(t.TempDir())
	l.now = func() time.Time { return time.Date(2024, 3, 2, 10, 0, 0, 0, time.UTC) }
	c := types.Candle{Ts: time.Date(2024, 3, 2, 9, 55, 0, 0, time.UTC), Close: 1.1}
	st := types.IndicatorState{EMAFast: 1.101, SMASlow: 1.099, RSI: math.NaN(), Ready: true}

	if err := l.AppendSignal("EURUSD=X", c, types.StrongBuy, st); err != nil {
		t.Fatalf("AppendSignal: %v", err)
	}
	lines := readLines(t, filepath.Join(l.Dir(), "signals", "2024-03-02.txt"))
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	if lines[0]["signal"] != "Strong Buy" || lines[0]["code"] != float64(2) {
		t.Errorf("line %v", lines[0])
	}
	ind := lines[0]["indicators"].(map[string]any)
	if _, ok := ind["rsi"]; ok {
		t.Error("undefined RSI should be omitted")
	}
}

func TestCompressOlder(t *testing.T) {
	l := New(t.TempDir())
	old := filepath.Join(l.Dir(), "trades", "2020-01-01.txt")
	fresh := filepath.Join(l.Dir(), "trades", "2024-03-01.txt")
	os.MkdirAll(filepath.Dir(old), 0o755)
	os.WriteFile(old, []byte("{\"a\":1}\n"), 0o644)
	os.WriteFile(fresh, []byte("{\"b\":2}\n"), 0o644)
	past := time.Now().AddDate(0, 0, -30)
	if err := os.Chtimes(old, past, past); err != nil {
		t.Fatal(err)
	}

	n, err := l.CompressOlder(7)
	if err != nil {
		t.Fatalf("CompressOlder: %v", err)
	}
	if n != 1 {
		t.Fatalf("compressed %d files, want 1", n)
	}
	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Error("original file should be removed")
	}
	if _, err := os.Stat(fresh); err != nil {
		t.Error("recent file should be kept")
	}

	f, err := os.Open(old + ".gz")
	if err != nil {
		t.Fatalf("open gz: %v", err)
	}
	defer f.Close()
	gr, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	b, _ := io.ReadAll(gr)
	if string(b) != "{\"a\":1}\n" {
		t.Errorf("decompressed %q", b)
	}
}
