package marketdata

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"signal-backtester/internal/types"
)

func TestCSVSourceRoundTrip(t *testing.T) {
	src := NewSyntheticSource(7, 50, 1.1)
	candles, err := src.Candles(context.Background(), types.CandleRequest{Symbol: "EURUSD=X", Interval: "5m"})
	if err != nil {
		t.Fatalf("synthetic: %v", err)
	}

	path := filepath.Join(t.TempDir(), "EURUSD=X.csv")
	if err := WriteCSV(path, candles); err != nil {
		t.Fatalf("WriteCSV: %v", err)
	}

	got, err := NewCSVSource(filepath.Join(filepath.Dir(path), "{symbol}.csv")).
		Candles(context.Background(), types.CandleRequest{Symbol: "EURUSD=X", Limit: 20})
	if err != nil {
		t.Fatalf("CSVSource: %v", err)
	}
	if len(got) != 20 {
		t.Fatalf("expected the last 20 candles, got %d", len(got))
	}
	want := candles[30]
	if !got[0].Ts.Equal(want.Ts) || got[0].Close != want.Close || got[0].High != want.High {
		t.Errorf("first candle %+v, want %+v", got[0], want)
	}
}

func TestCSVSourceTimestampFormats(t *testing.T) {
	body := "timestamp,open,high,low,close,volume\n" +
		"2024-01-01 08:00:00,1.1,1.101,1.099,1.1005,10\n" +
		"2024-01-01T08:05:00Z,1.1005,1.102,1.1,1.101,12\n" +
		"01.01.2024 08:10:00.000 GMT,1.101,1.1015,1.1,1.1012,9\n"
	path := filepath.Join(t.TempDir(), "c.csv")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	got, err := NewCSVSource(path).Candles(context.Background(), types.CandleRequest{})
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 candles, got %d", len(got))
	}
	for i, c := range got {
		want := time.Date(2024, 1, 1, 8, 5*i, 0, 0, time.UTC)
		if !c.Ts.Equal(want) {
			t.Errorf("candle %d at %s, want %s", i, c.Ts, want)
		}
	}

	bad := filepath.Join(t.TempDir(), "bad.csv")
	os.WriteFile(bad, []byte("timestamp,open,high,low,close,volume\nyesterday,1,1,1,1,1\n"), 0o644)
	if _, err := NewCSVSource(bad).Candles(context.Background(), types.CandleRequest{}); err == nil {
		t.Fatal("expected error for unparseable timestamp")
	}
}

func TestSyntheticSourceIsDeterministic(t *testing.T) {
	req := types.CandleRequest{Symbol: "EURUSD=X", Interval: "5m"}
	a, _ := NewSyntheticSource(42, 300, 1.1).Candles(context.Background(), req)
	b, _ := NewSyntheticSource(42, 300, 1.1).Candles(context.Background(), req)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("same seed produced different candles")
	}
	c, _ := NewSyntheticSource(43, 300, 1.1).Candles(context.Background(), req)
	if reflect.DeepEqual(a, c) {
		t.Fatal("different seeds produced identical candles")
	}
	for i, cd := range a {
		if cd.High < cd.Low || cd.High < cd.Close || cd.Low > cd.Close {
			t.Fatalf("candle %d is not a valid bar: %+v", i, cd)
		}
		if i > 0 && cd.Ts.Sub(a[i-1].Ts) != 5*time.Minute {
			t.Fatalf("candle %d is not 5 minutes after the previous one", i)
		}
	}
}

const chartJSON = `{"chart":{"result":[{"timestamp":[1704096000,1704096300,1704096600],
"indicators":{"quote":[{"open":[1.1,null,1.102],"high":[1.101,null,1.103],
"low":[1.099,null,1.1015],"close":[1.1005,null,1.1025],"volume":[0,null,5]}]}}],"error":null}}`

func TestYahooSourceParsesChart(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		w.Write([]byte(chartJSON))
	}))
	defer srv.Close()

	got, err := NewYahooSource(srv.URL).Candles(context.Background(), types.CandleRequest{Symbol: "EURUSD=X", Interval: "5m"})
	if err != nil {
		t.Fatalf("Candles: %v", err)
	}
	if !strings.HasPrefix(gotPath, "/v8/finance/chart/EURUSD=X?") || !strings.Contains(gotPath, "interval=5m") {
		t.Errorf("unexpected request path %q", gotPath)
	}
	if len(got) != 2 {
		t.Fatalf("expected null bar to be skipped, got %d candles", len(got))
	}
	if got[1].Close != 1.1025 || !got[1].Ts.Equal(time.Unix(1704096600, 0).UTC()) {
		t.Errorf("second candle %+v", got[1])
	}
}

func TestYahooSourceChartError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"chart":{"result":null,"error":{"code":"Not Found","description":"No data found"}}}`))
	}))
	defer srv.Close()

	_, err := NewYahooSource(srv.URL).Candles(context.Background(), types.CandleRequest{Symbol: "NOPE", Interval: "5m"})
	if err == nil || !strings.Contains(err.Error(), "No data found") {
		t.Fatalf("expected chart error, got %v", err)
	}
}

type stubSource struct {
	batches [][]types.Candle
	err     error
	calls   int
}

func (s *stubSource) Name() string { return "stub" }

func (s *stubSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	if s.err != nil {
		return nil, s.err
	}
	b := s.batches[s.calls%len(s.batches)]
	s.calls++
	return b, nil
}

func bars(start int, closes ...float64) []types.Candle {
	out := make([]types.Candle, len(closes))
	for i, c := range closes {
		out[i] = types.Candle{Ts: time.Date(2024, 1, 1, 9, start+i, 0, 0, time.UTC), Open: c, High: c, Low: c, Close: c}
	}
	return out
}

func TestCacheMergesAndBounds(t *testing.T) {
	stub := &stubSource{batches: [][]types.Candle{
		bars(0, 1, 2, 3),
		bars(2, 3.5, 4, 5),
	}}
	cache := NewCache(stub, 4)
	req := types.CandleRequest{Symbol: "X", Interval: "1m"}

	first, err := cache.Candles(context.Background(), req)
	if err != nil || len(first) != 3 {
		t.Fatalf("first fetch: %v, %d candles", err, len(first))
	}
	second, err := cache.Candles(context.Background(), req)
	if err != nil {
		t.Fatalf("second fetch: %v", err)
	}
	closes := make([]float64, len(second))
	for i, c := range second {
		closes[i] = c.Close
	}
	if !reflect.DeepEqual(closes, []float64{2, 3.5, 4, 5}) {
		t.Fatalf("merged closes %v", closes)
	}

	stub.err = errors.New("upstream down")
	stale, err := cache.Candles(context.Background(), types.CandleRequest{Symbol: "X", Interval: "1m", Limit: 2})
	if err != nil {
		t.Fatalf("expected cached history on failure, got %v", err)
	}
	if len(stale) != 2 || stale[1].Close != 5 {
		t.Fatalf("stale snapshot %+v", stale)
	}

	cache.Clear()
	if _, err := cache.Candles(context.Background(), req); err == nil {
		t.Fatal("expected upstream error once the cache is empty")
	}
}

func TestWindow(t *testing.T) {
	cs := bars(0, 1, 2, 3, 4, 5)
	req := types.CandleRequest{
		From:  cs[1].Ts,
		To:    cs[3].Ts,
		Limit: 2,
	}
	got := window(cs, req)
	if len(got) != 2 || got[0].Close != 3 || got[1].Close != 4 {
		t.Fatalf("window = %+v", got)
	}
}
