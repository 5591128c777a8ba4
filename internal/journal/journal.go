// Package journal persists finished backtests to Postgres.
package journal

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"signal-backtester/internal/engine"
	"signal-backtester/internal/report"
	"signal-backtester/internal/types"
)

var namespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("signal-backtester/runs"))

// RunID is a name-based UUID over the configuration and the candle series,
// so re-running the same backtest yields the same id.
func RunID(cfg engine.Config, candles []types.Candle) uuid.UUID {
	cfgJSON, _ := json.Marshal(cfg)
	buf := make([]byte, 0, len(cfgJSON)+len(candles)*48)
	buf = append(buf, cfgJSON...)
	for _, c := range candles {
		buf = binary.BigEndian.AppendUint64(buf, uint64(c.Ts.UnixNano()))
		for _, v := range []float64{c.Open, c.High, c.Low, c.Close, c.Vol} {
			buf = binary.BigEndian.AppendUint64(buf, math.Float64bits(v))
		}
	}
	return uuid.NewSHA1(namespace, buf)
}

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	id              UUID PRIMARY KEY,
	symbol          TEXT NOT NULL,
	mode            JSONB NOT NULL,
	candles         INTEGER NOT NULL,
	initial_balance NUMERIC NOT NULL,
	final_balance   NUMERIC NOT NULL,
	trades          INTEGER NOT NULL,
	win_rate        DOUBLE PRECISION NOT NULL,
	profit_factor   DOUBLE PRECISION NOT NULL,
	max_drawdown    DOUBLE PRECISION NOT NULL,
	created_at      TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS backtest_trades (
	run_id      UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	side        TEXT NOT NULL,
	size        NUMERIC NOT NULL,
	entry_time  TIMESTAMPTZ NOT NULL,
	entry_price NUMERIC NOT NULL,
	exit_time   TIMESTAMPTZ NOT NULL,
	exit_price  NUMERIC NOT NULL,
	exit_reason TEXT NOT NULL,
	pnl         NUMERIC NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS backtest_equity (
	run_id  UUID NOT NULL REFERENCES backtest_runs(id) ON DELETE CASCADE,
	idx     INTEGER NOT NULL,
	ts      TIMESTAMPTZ NOT NULL,
	balance NUMERIC NOT NULL,
	PRIMARY KEY (run_id, idx)
);`

// PostgresJournal stores runs, their trades and their equity curves.
type PostgresJournal struct {
	db *sql.DB
}

func OpenPostgres(ctx context.Context, dsn string) (*PostgresJournal, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	j := &PostgresJournal{db: db}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal schema: %w", err)
	}
	return j, nil
}

func (j *PostgresJournal) Close() error { return j.db.Close() }

// Save replaces any earlier copy of the run in one transaction.
func (j *PostgresJournal) Save(ctx context.Context, id uuid.UUID, symbol string, res *types.BacktestResult) error {
	s := report.Summarize(symbol, res)
	mode, err := json.Marshal(res.Mode)
	if err != nil {
		return err
	}

	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM backtest_runs WHERE id = $1`, id.String()); err != nil {
		return fmt.Errorf("delete previous run: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO backtest_runs
			(id, symbol, mode, candles, initial_balance, final_balance, trades, win_rate, profit_factor, max_drawdown)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		id.String(), symbol, string(mode), s.Candles,
		res.InitialBalance.String(), res.FinalBalance.String(),
		s.Trades, s.WinRate, s.ProfitFactor, s.MaxDrawdownPct,
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	if err := copyRows(ctx, tx, pq.CopyIn("backtest_trades",
		"run_id", "seq", "side", "size", "entry_time", "entry_price", "exit_time", "exit_price", "exit_reason", "pnl"),
		len(res.Trades), func(i int) []any {
			t := res.Trades[i]
			return []any{id.String(), i, t.Side.String(), t.Size.String(), t.EntryTime, t.EntryPrice.String(),
				t.ExitTime, t.ExitPrice.String(), t.ExitReason.String(), t.PnL.String()}
		}); err != nil {
		return fmt.Errorf("copy trades: %w", err)
	}

	if err := copyRows(ctx, tx, pq.CopyIn("backtest_equity", "run_id", "idx", "ts", "balance"),
		len(res.Equity), func(i int) []any {
			p := res.Equity[i]
			return []any{id.String(), p.Index, p.Ts, p.Balance.String()}
		}); err != nil {
		return fmt.Errorf("copy equity: %w", err)
	}

	return tx.Commit()
}

func copyRows(ctx context.Context, tx *sql.Tx, copyStmt string, n int, row func(int) []any) error {
	stmt, err := tx.PrepareContext(ctx, copyStmt)
	if err != nil {
		return err
	}
	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, row(i)...); err != nil {
			stmt.Close()
			return err
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return err
	}
	return stmt.Close()
}

// RunSummary is a stored run as listed by Runs.
type RunSummary struct {
	ID           string  `json:"id"`
	Symbol       string  `json:"symbol"`
	Trades       int     `json:"trades"`
	FinalBalance string  `json:"final_balance"`
	WinRate      float64 `json:"win_rate"`
}

// Runs lists the most recent runs for symbol, newest first.
func (j *PostgresJournal) Runs(ctx context.Context, symbol string, limit int) ([]RunSummary, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, symbol, trades, final_balance::text, win_rate
		FROM backtest_runs WHERE symbol = $1
		ORDER BY created_at DESC LIMIT $2`, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Symbol, &r.Trades, &r.FinalBalance, &r.WinRate); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
