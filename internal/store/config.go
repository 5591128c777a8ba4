package store

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"signal-backtester/internal/engine"
	"signal-backtester/internal/risk"
	"signal-backtester/internal/signal"
	"signal-backtester/internal/ta"
	"signal-backtester/internal/types"
)

// Source kinds accepted in source.kind.
const (
	SourceCSV        = "CSV"
	SourceYahoo      = "YAHOO"
	SourceKite       = "KITE"
	SourceClickHouse = "CLICKHOUSE"
	SourceSynthetic  = "SYNTHETIC"
)

type Config struct {
	Symbol         string  `yaml:"symbol"`
	Interval       string  `yaml:"interval"`
	PollSeconds    int     `yaml:"poll_seconds"`
	InitialBalance float64 `yaml:"initial_balance"`

	Indicators ta.IndicatorConfig `yaml:"indicators"`
	Signal     signal.Config      `yaml:"signal"`

	Exit struct {
		StopDistance float64 `yaml:"stop_distance"`
		TakeDistance float64 `yaml:"take_distance"`
		Spread       float64 `yaml:"spread"`
		MaxHold      int     `yaml:"max_hold"`
		SameBarExit  bool    `yaml:"same_bar_exit"`
	} `yaml:"exit"`

	Session struct {
		OpenHour   int  `yaml:"open_hour"`
		CloseHour  int  `yaml:"close_hour"`
		ForceClose bool `yaml:"force_close"`
	} `yaml:"session"`

	Sizing struct {
		Mode     string            `yaml:"mode"`
		UnitSize float64           `yaml:"unit_size"`
		Regimes  map[string]string `yaml:"regimes"`
		Bands    risk.Bands        `yaml:"bands"`
	} `yaml:"sizing"`

	Source struct {
		Kind         string `yaml:"kind"`
		LookbackDays int    `yaml:"lookback_days"`
		Limit        int    `yaml:"limit"`
		CSV          struct {
			Path string `yaml:"path"`
		} `yaml:"csv"`
		Yahoo struct {
			BaseURL string `yaml:"base_url"`
		} `yaml:"yahoo"`
		Kite struct {
			Exchange string `yaml:"exchange"`
		} `yaml:"kite"`
		ClickHouse struct {
			DSN   string `yaml:"dsn"`
			Table string `yaml:"table"`
		} `yaml:"clickhouse"`
		Synthetic struct {
			Seed  int64   `yaml:"seed"`
			Count int     `yaml:"count"`
			Start float64 `yaml:"start_price"`
		} `yaml:"synthetic"`
	} `yaml:"source"`

	Journal struct {
		DSN string `yaml:"dsn"`
	} `yaml:"journal"`

	Publish struct {
		Brokers string `yaml:"brokers"`
		Topic   string `yaml:"topic"`
	} `yaml:"publish"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`
}

// Default returns the configuration used when config.yaml omits a key.
func Default() *Config {
	d := engine.DefaultConfig()
	c := &Config{
		Symbol:         d.Symbol,
		Interval:       "5m",
		PollSeconds:    60,
		InitialBalance: d.InitialBalance,
		Indicators:     d.Indicators,
		Signal:         d.Signal,
	}
	c.Exit.StopDistance = d.StopDistance
	c.Exit.TakeDistance = d.TakeDistance
	c.Exit.Spread = d.Spread
	c.Exit.MaxHold = d.MaxHold
	c.Session.OpenHour = d.SessionOpenHour
	c.Session.CloseHour = d.SessionCloseHour
	c.Sizing.Mode = string(risk.Fixed)
	c.Sizing.UnitSize = 1
	c.Sizing.Bands = risk.DefaultBands()
	c.Source.Kind = SourceYahoo
	c.Source.LookbackDays = 5
	c.Source.Kite.Exchange = "NSE"
	c.Source.ClickHouse.Table = "candles"
	c.Source.Synthetic.Seed = 42
	c.Source.Synthetic.Count = 500
	c.Source.Synthetic.Start = 1.1
	c.Publish.Topic = "trading_signals"
	c.Server.Addr = ":5000"
	c.Output.Dir = "out"
	return c
}

func (c *Config) Validate() error {
	switch c.Source.Kind {
	case SourceCSV:
		if c.Source.CSV.Path == "" {
			return fmt.Errorf("%w: source.csv.path is required for CSV source", types.ErrInvalidConfiguration)
		}
	case SourceClickHouse:
		if c.Source.ClickHouse.DSN == "" {
			return fmt.Errorf("%w: source.clickhouse.dsn is required for CLICKHOUSE source", types.ErrInvalidConfiguration)
		}
	case SourceYahoo, SourceKite, SourceSynthetic:
	default:
		return fmt.Errorf("%w: invalid source.kind '%s': must be CSV, YAHOO, KITE, CLICKHOUSE or SYNTHETIC",
			types.ErrInvalidConfiguration, c.Source.Kind)
	}
	if c.PollSeconds <= 0 {
		return fmt.Errorf("%w: poll_seconds must be positive, got %d", types.ErrInvalidConfiguration, c.PollSeconds)
	}
	if _, err := c.Backtest(); err != nil {
		return err
	}
	return nil
}

// LoadConfig reads path over the defaults, fills secrets from the
// environment and validates the result.
func LoadConfig(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, err
	}

	c.Source.Kind = strings.ToUpper(strings.TrimSpace(c.Source.Kind))
	if c.PollSeconds == 0 {
		c.PollSeconds = 60
	}
	if c.Source.ClickHouse.DSN == "" {
		c.Source.ClickHouse.DSN = os.Getenv("CLICKHOUSE_DSN")
	}
	if c.Journal.DSN == "" {
		c.Journal.DSN = os.Getenv("JOURNAL_DSN")
	}
	if c.Publish.Brokers == "" {
		c.Publish.Brokers = os.Getenv("KAFKA_BROKERS")
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return c, nil
}

// Risk builds the sizing policy, resolving mode names in the regime table.
func (c *Config) Risk() (*risk.Policy, error) {
	mode, err := risk.ParseMode(c.Sizing.Mode)
	if err != nil {
		return nil, err
	}
	var table map[risk.Regime]risk.Mode
	if len(c.Sizing.Regimes) > 0 {
		table = make(map[risk.Regime]risk.Mode, len(c.Sizing.Regimes))
		for regime, name := range c.Sizing.Regimes {
			m, err := risk.ParseMode(name)
			if err != nil {
				return nil, fmt.Errorf("sizing.regimes[%s]: %w", regime, err)
			}
			table[risk.Regime(regime)] = m
		}
	}
	return risk.NewPolicy(mode, c.Sizing.UnitSize, table, c.Sizing.Bands), nil
}

// Backtest projects the file into a validated engine configuration.
func (c *Config) Backtest() (engine.Config, error) {
	policy, err := c.Risk()
	if err != nil {
		return engine.Config{}, err
	}
	ec := engine.Config{
		Symbol:             c.Symbol,
		InitialBalance:     c.InitialBalance,
		Indicators:         c.Indicators,
		Signal:             c.Signal,
		StopDistance:       c.Exit.StopDistance,
		TakeDistance:       c.Exit.TakeDistance,
		Spread:             c.Exit.Spread,
		MaxHold:            c.Exit.MaxHold,
		SessionOpenHour:    c.Session.OpenHour,
		SessionCloseHour:   c.Session.CloseHour,
		SessionCloseForced: c.Session.ForceClose,
		SameBarExit:        c.Exit.SameBarExit,
		Sizing:             policy,
	}
	if err := ec.Validate(); err != nil {
		return engine.Config{}, err
	}
	return ec, nil
}

// Request builds the candle request for symbol ending at now.
func (c *Config) Request(symbol string, now time.Time) types.CandleRequest {
	if symbol == "" {
		symbol = c.Symbol
	}
	return types.CandleRequest{
		Symbol:   symbol,
		Interval: c.Interval,
		From:     now.AddDate(0, 0, -c.Source.LookbackDays),
		To:       now,
		Limit:    c.Source.Limit,
	}
}
