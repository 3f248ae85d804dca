// Package storage is the engine's durable persistence layer: the
// bar, market_data, strategy_stock_mapping, backtest_results, trade,
// signal, veto_event, daily_statistics and earnings_blackout_date
// tables, plus the weekly-P&L snapshot that must survive a restart.
// Built on modernc.org/sqlite, a pure-Go CGO-free driver, so the
// deployment stays a single static binary.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/twequity/trading-engine/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS bar (
	symbol TEXT NOT NULL, timeframe TEXT NOT NULL, ts INTEGER NOT NULL,
	open TEXT NOT NULL, high TEXT NOT NULL, low TEXT NOT NULL, close TEXT NOT NULL, volume INTEGER NOT NULL,
	PRIMARY KEY (symbol, timeframe, ts)
);
CREATE TABLE IF NOT EXISTS market_data (
	symbol TEXT NOT NULL, ts INTEGER NOT NULL, payload TEXT NOT NULL,
	PRIMARY KEY (symbol, ts)
);
CREATE TABLE IF NOT EXISTS strategy_stock_mapping (
	symbol TEXT NOT NULL, strategy_name TEXT NOT NULL, is_active INTEGER NOT NULL,
	confidence_score TEXT NOT NULL, total_return_pct TEXT NOT NULL, sharpe_ratio TEXT NOT NULL,
	win_rate_pct TEXT NOT NULL, max_drawdown_pct TEXT NOT NULL, total_trades INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (symbol, strategy_name)
);
CREATE TABLE IF NOT EXISTS backtest_results (
	run_id TEXT NOT NULL, symbol TEXT NOT NULL, strategy_name TEXT NOT NULL, payload TEXT NOT NULL,
	started_at INTEGER NOT NULL, completed_at INTEGER NOT NULL,
	PRIMARY KEY (run_id, symbol, strategy_name)
);
CREATE TABLE IF NOT EXISTS trade (
	id TEXT PRIMARY KEY, backtest_run_id TEXT, symbol TEXT NOT NULL, strategy_name TEXT NOT NULL,
	side TEXT NOT NULL, quantity INTEGER NOT NULL, price TEXT NOT NULL, commission TEXT NOT NULL,
	pnl TEXT NOT NULL, executed_at INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS signal (
	symbol TEXT NOT NULL, strategy_name TEXT NOT NULL, direction TEXT NOT NULL,
	confidence TEXT NOT NULL, reason TEXT NOT NULL, ts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS veto_event (
	id TEXT PRIMARY KEY, symbol TEXT NOT NULL, strategy TEXT NOT NULL, kind TEXT NOT NULL,
	reason TEXT NOT NULL, ts INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS daily_statistics (
	date INTEGER PRIMARY KEY, realized_pnl TEXT NOT NULL, trade_count INTEGER NOT NULL, win_count INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS earnings_blackout_date (
	symbol TEXT NOT NULL, earnings_date INTEGER NOT NULL,
	PRIMARY KEY (symbol, earnings_date)
);
CREATE TABLE IF NOT EXISTS risk_snapshot (
	id INTEGER PRIMARY KEY CHECK (id = 1), payload TEXT NOT NULL
);
`

// Store wraps a *sql.DB open against a modernc.org/sqlite DSN.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the database at dsn, e.g. "trader.db" or
// "file::memory:?cache=shared" for tests.
func Open(dsn string) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("storage: open %s: %w", dsn, err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite serializes writers anyway
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage: migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error { return s.db.Close() }

// SaveBar persists bar, satisfying barstore.Writer.
func (s *Store) SaveBar(b types.Bar) error {
	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO bar (symbol, timeframe, ts, open, high, low, close, volume) VALUES (?,?,?,?,?,?,?,?)`,
		b.Symbol, string(b.Timeframe), b.Timestamp.UnixNano(), b.Open.String(), b.High.String(), b.Low.String(), b.Close.String(), b.Volume,
	)
	return err
}

// SaveMapping upserts one strategy_stock_mapping row.
func (s *Store) SaveMapping(ctx context.Context, m types.StrategyStockMapping) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO strategy_stock_mapping
			(symbol, strategy_name, is_active, confidence_score, total_return_pct, sharpe_ratio, win_rate_pct, max_drawdown_pct, total_trades, updated_at)
		 VALUES (?,?,?,?,?,?,?,?,?,?)`,
		m.Symbol, m.StrategyName, boolToInt(m.IsActive), m.ConfidenceScore.String(), m.TotalReturnPct.String(),
		m.SharpeRatio.String(), m.WinRatePct.String(), m.MaxDrawdownPct.String(), m.TotalTrades, m.UpdatedAt.UnixNano(),
	)
	return err
}

// ClearActiveMapping sets is_active=false on every row, used by
// AutoSelector before installing the next promotion.
func (s *Store) ClearActiveMapping(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `UPDATE strategy_stock_mapping SET is_active = 0 WHERE is_active = 1`)
	return err
}

// ActiveMapping returns the single row with is_active=true, if any.
func (s *Store) ActiveMapping(ctx context.Context) (types.StrategyStockMapping, bool, error) {
	row := s.db.QueryRowContext(ctx, `SELECT symbol, strategy_name, is_active, confidence_score, total_return_pct, sharpe_ratio, win_rate_pct, max_drawdown_pct, total_trades, updated_at FROM strategy_stock_mapping WHERE is_active = 1 LIMIT 1`)
	m, err := scanMapping(row)
	if err == sql.ErrNoRows {
		return types.StrategyStockMapping{}, false, nil
	}
	if err != nil {
		return types.StrategyStockMapping{}, false, err
	}
	return m, true, nil
}

// ShadowMappings returns every row with is_active=false.
func (s *Store) ShadowMappings(ctx context.Context) ([]types.StrategyStockMapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, strategy_name, is_active, confidence_score, total_return_pct, sharpe_ratio, win_rate_pct, max_drawdown_pct, total_trades, updated_at FROM strategy_stock_mapping WHERE is_active = 0`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.StrategyStockMapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanMapping(r scanner) (types.StrategyStockMapping, error) {
	var m types.StrategyStockMapping
	var isActive int
	var conf, ret, sharpe, winRate, dd string
	var updatedAt int64
	if err := r.Scan(&m.Symbol, &m.StrategyName, &isActive, &conf, &ret, &sharpe, &winRate, &dd, &m.TotalTrades, &updatedAt); err != nil {
		return m, err
	}
	m.IsActive = isActive != 0
	m.ConfidenceScore = mustDecimal(conf)
	m.TotalReturnPct = mustDecimal(ret)
	m.SharpeRatio = mustDecimal(sharpe)
	m.WinRatePct = mustDecimal(winRate)
	m.MaxDrawdownPct = mustDecimal(dd)
	m.UpdatedAt = time.Unix(0, updatedAt)
	return m, nil
}

// SaveBacktestResults persists every row of a run under a single
// transaction, so a crashed run never leaves a partial result set.
func (s *Store) SaveBacktestResults(ctx context.Context, results []types.BacktestResult) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, r := range results {
		payload, err := json.Marshal(r)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO backtest_results (run_id, symbol, strategy_name, payload, started_at, completed_at) VALUES (?,?,?,?,?,?)`,
			r.BacktestRunID, r.Symbol, r.StrategyName, string(payload), r.StartedAt.UnixNano(), r.CompletedAt.UnixNano(),
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// BacktestResultsForRun loads every row for runID.
func (s *Store) BacktestResultsForRun(ctx context.Context, runID string) ([]types.BacktestResult, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT payload FROM backtest_results WHERE run_id = ?`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.BacktestResult
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var r types.BacktestResult
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// LatestRunID returns the run_id of the most recently completed run.
func (s *Store) LatestRunID(ctx context.Context) (string, error) {
	var runID string
	err := s.db.QueryRowContext(ctx, `SELECT run_id FROM backtest_results ORDER BY completed_at DESC LIMIT 1`).Scan(&runID)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return runID, err
}

// SaveTrade appends a Trade row.
func (s *Store) SaveTrade(ctx context.Context, t types.Trade) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade (id, backtest_run_id, symbol, strategy_name, side, quantity, price, commission, pnl, executed_at) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, nullIfEmpty(t.BacktestRunID), t.Symbol, t.StrategyName, string(t.Side), t.Quantity, t.Price.String(), t.Commission.String(), t.PnL.String(), t.ExecutedAt.UnixNano(),
	)
	return err
}

// SaveVetoEvent appends a VetoEvent row.
func (s *Store) SaveVetoEvent(ctx context.Context, v types.VetoEvent) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO veto_event (id, symbol, strategy, kind, reason, ts) VALUES (?,?,?,?,?,?)`,
		v.ID, v.Symbol, v.Strategy, v.Kind, v.Reason, v.Timestamp.UnixNano(),
	)
	return err
}

// SaveDailyStatistics upserts one day's end-of-day bookkeeping row.
func (s *Store) SaveDailyStatistics(ctx context.Context, d types.DailyStatistics) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO daily_statistics (date, realized_pnl, trade_count, win_count) VALUES (?,?,?,?)`,
		d.Date.UnixNano(), d.RealizedPnL.String(), d.TradeCount, d.WinCount,
	)
	return err
}

// SetEarningsBlackouts replaces the full earnings_blackout_date table.
func (s *Store) SetEarningsBlackouts(ctx context.Context, dates []types.EarningsBlackoutDate) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.ExecContext(ctx, `DELETE FROM earnings_blackout_date`); err != nil {
		return err
	}
	for _, d := range dates {
		if _, err := tx.ExecContext(ctx, `INSERT INTO earnings_blackout_date (symbol, earnings_date) VALUES (?,?)`,
			d.Symbol, d.EarningsDate.UnixNano()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// EarningsBlackouts loads the full earnings_blackout_date table.
func (s *Store) EarningsBlackouts(ctx context.Context) ([]types.EarningsBlackoutDate, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT symbol, earnings_date FROM earnings_blackout_date`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.EarningsBlackoutDate
	for rows.Next() {
		var d types.EarningsBlackoutDate
		var ts int64
		if err := rows.Scan(&d.Symbol, &ts); err != nil {
			return nil, err
		}
		d.EarningsDate = time.Unix(0, ts)
		out = append(out, d)
	}
	return out, rows.Err()
}

// SaveRiskSnapshot persists the single durable RiskGuard snapshot row;
// weekly P&L must survive a restart.
func (s *Store) SaveRiskSnapshot(ctx context.Context, payload interface{}) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT OR REPLACE INTO risk_snapshot (id, payload) VALUES (1, ?)`, string(b))
	return err
}

// LoadRiskSnapshot loads the durable RiskGuard snapshot, if any.
func (s *Store) LoadRiskSnapshot(ctx context.Context, out interface{}) (bool, error) {
	var payload string
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM risk_snapshot WHERE id = 1`).Scan(&payload)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, json.Unmarshal([]byte(payload), out)
}

// ClosedTradesToday returns every trade executed on or after
// startOfDay, used to recompute RiskGuard's daily P&L on boot.
func (s *Store) ClosedTradesToday(ctx context.Context, startOfDay time.Time) ([]types.Trade, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, backtest_run_id, symbol, strategy_name, side, quantity, price, commission, pnl, executed_at FROM trade WHERE executed_at >= ?`, startOfDay.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []types.Trade
	for rows.Next() {
		var t types.Trade
		var runID sql.NullString
		var price, commission, pnl string
		var executedAt int64
		if err := rows.Scan(&t.ID, &runID, &t.Symbol, &t.StrategyName, &t.Side, &t.Quantity, &price, &commission, &pnl, &executedAt); err != nil {
			return nil, err
		}
		t.BacktestRunID = runID.String
		t.Price = mustDecimal(price)
		t.Commission = mustDecimal(commission)
		t.PnL = mustDecimal(pnl)
		t.ExecutedAt = time.Unix(0, executedAt)
		out = append(out, t)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func mustDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
