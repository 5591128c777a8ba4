package marketdata

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gocarina/gocsv"

	"signal-backtester/internal/logger"
	"signal-backtester/internal/types"
)

var csvTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05-07:00",
	"2006-01-02 15:04:05",
	"02.01.2006 15:04:05.000",
	"2006-01-02",
}

// parseCSVTime reads the timestamp formats produced by common exporters.
// Values without a zone are UTC.
func parseCSVTime(s string) (time.Time, error) {
	s = strings.TrimSuffix(strings.TrimSpace(s), " GMT")
	for _, layout := range csvTimeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", s)
}

type csvCandle struct {
	Time   string  `csv:"timestamp"`
	Open   float64 `csv:"open"`
	High   float64 `csv:"high"`
	Low    float64 `csv:"low"`
	Close  float64 `csv:"close"`
	Volume float64 `csv:"volume"`
}

// CSVSource reads candles from a file with a timestamp,open,high,low,close,volume
// header. A "{symbol}" placeholder in the path is replaced by the request symbol.
type CSVSource struct {
	path string
}

func NewCSVSource(path string) *CSVSource {
	return &CSVSource{path: path}
}

func (s *CSVSource) Name() string { return "csv" }

func (s *CSVSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	path := strings.ReplaceAll(s.path, "{symbol}", req.Symbol)
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle file: %w", err)
	}
	defer f.Close()

	var rows []*csvCandle
	if err := gocsv.Unmarshal(f, &rows); err != nil {
		return nil, fmt.Errorf("parse candle file %s: %w", path, err)
	}

	candles := make([]types.Candle, 0, len(rows))
	for i, r := range rows {
		ts, err := parseCSVTime(r.Time)
		if err != nil {
			return nil, fmt.Errorf("%s row %d: %w", path, i+2, err)
		}
		candles = append(candles, types.Candle{
			Ts:    ts,
			Open:  r.Open,
			High:  r.High,
			Low:   r.Low,
			Close: r.Close,
			Vol:   r.Volume,
		})
	}
	if !sort.SliceIsSorted(candles, func(i, j int) bool { return candles[i].Ts.Before(candles[j].Ts) }) {
		logger.Warn(ctx, "Candle file is not in time order, sorting", "path", path)
		sort.SliceStable(candles, func(i, j int) bool { return candles[i].Ts.Before(candles[j].Ts) })
	}
	return window(candles, req), nil
}

// WriteCSV writes candles in the format CSVSource reads.
func WriteCSV(path string, candles []types.Candle) error {
	rows := make([]*csvCandle, 0, len(candles))
	for _, c := range candles {
		rows = append(rows, &csvCandle{
			Time:   c.Ts.UTC().Format(time.RFC3339),
			Open:   c.Open,
			High:   c.High,
			Low:    c.Low,
			Close:  c.Close,
			Volume: c.Vol,
		})
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return gocsv.Marshal(rows, f)
}
