package marketdata

import (
	"context"
	"fmt"
	"os"

	"signal-backtester/internal/interfaces"
	"signal-backtester/internal/marketdata/kite"
	"signal-backtester/internal/store"
)

// Params selects and configures one candle source.
type Params struct {
	Kind string

	CSVPath      string
	YahooBaseURL string

	KiteAPIKey      string
	KiteAccessToken string
	KiteExchange    string

	ClickHouseDSN   string
	ClickHouseTable string

	Seed       int64
	Count      int
	StartPrice float64
}

// ParamsFromConfig reads the source section of cfg; Kite credentials come
// from KITE_API_KEY and KITE_ACCESS_TOKEN.
func ParamsFromConfig(cfg *store.Config) Params {
	return Params{
		Kind:            cfg.Source.Kind,
		CSVPath:         cfg.Source.CSV.Path,
		YahooBaseURL:    cfg.Source.Yahoo.BaseURL,
		KiteAPIKey:      os.Getenv("KITE_API_KEY"),
		KiteAccessToken: os.Getenv("KITE_ACCESS_TOKEN"),
		KiteExchange:    cfg.Source.Kite.Exchange,
		ClickHouseDSN:   cfg.Source.ClickHouse.DSN,
		ClickHouseTable: cfg.Source.ClickHouse.Table,
		Seed:            cfg.Source.Synthetic.Seed,
		Count:           cfg.Source.Synthetic.Count,
		StartPrice:      cfg.Source.Synthetic.Start,
	}
}

// Open builds the source named by p.Kind. The returned close func releases
// any connection the source holds and is never nil.
func Open(ctx context.Context, p Params) (interfaces.CandleSource, func() error, error) {
	noop := func() error { return nil }
	switch p.Kind {
	case store.SourceCSV:
		return NewCSVSource(p.CSVPath), noop, nil
	case store.SourceYahoo:
		return NewYahooSource(p.YahooBaseURL), noop, nil
	case store.SourceKite:
		src, err := kite.New(kite.Params{
			APIKey:      p.KiteAPIKey,
			AccessToken: p.KiteAccessToken,
			Exchange:    p.KiteExchange,
		})
		if err != nil {
			return nil, noop, err
		}
		return src, noop, nil
	case store.SourceClickHouse:
		src, err := OpenClickHouse(ctx, p.ClickHouseDSN, p.ClickHouseTable)
		if err != nil {
			return nil, noop, err
		}
		return src, src.Close, nil
	case store.SourceSynthetic:
		return NewSyntheticSource(p.Seed, p.Count, p.StartPrice), noop, nil
	}
	return nil, noop, fmt.Errorf("unknown candle source %q", p.Kind)
}
