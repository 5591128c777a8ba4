package marketdata

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"signal-backtester/internal/types"
)

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.]*$`)

// ClickHouseSource reads candles from a table shaped
// (symbol String, timestamp Int64, open/high/low/close/volume Float64).
type ClickHouseSource struct {
	db    *sql.DB
	table string
}

// OpenClickHouse opens and pings the database behind dsn.
func OpenClickHouse(ctx context.Context, dsn, table string) (*ClickHouseSource, error) {
	if !tableName.MatchString(table) {
		return nil, fmt.Errorf("invalid clickhouse table name %q", table)
	}
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("open clickhouse: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping clickhouse: %w", err)
	}
	return &ClickHouseSource{db: db, table: table}, nil
}

func (s *ClickHouseSource) Name() string { return "clickhouse" }

func (s *ClickHouseSource) Close() error { return s.db.Close() }

func (s *ClickHouseSource) Candles(ctx context.Context, req types.CandleRequest) ([]types.Candle, error) {
	query, args := s.query(req)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query candles: %w", err)
	}
	defer rows.Close()

	var out []types.Candle
	for rows.Next() {
		var (
			ts int64
			c  types.Candle
		)
		if err := rows.Scan(&ts, &c.Open, &c.High, &c.Low, &c.Close, &c.Vol); err != nil {
			return nil, fmt.Errorf("scan candle: %w", err)
		}
		c.Ts = time.Unix(ts, 0).UTC()
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	// newest-first when limited, restore ascending order
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// query selects newest-first so LIMIT keeps the most recent candles.
func (s *ClickHouseSource) query(req types.CandleRequest) (string, []any) {
	q := "SELECT timestamp, open, high, low, close, volume FROM " + s.table + " WHERE symbol = ?"
	args := []any{req.Symbol}
	if !req.From.IsZero() {
		q += " AND timestamp >= ?"
		args = append(args, req.From.Unix())
	}
	if !req.To.IsZero() {
		q += " AND timestamp <= ?"
		args = append(args, req.To.Unix())
	}
	q += " ORDER BY timestamp DESC"
	if req.Limit > 0 {
		q += fmt.Sprintf(" LIMIT %d", req.Limit)
	}
	return q, args
}
