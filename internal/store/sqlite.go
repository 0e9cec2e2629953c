package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"ignition/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface check.
var _ ResultStore = (*SQLiteStore)(nil)

// SQLiteStore implements ResultStore backed by a SQLite database.
//
// SQLite has no NaN or Inf: undefined metric values persist as NULL and read
// back as NaN. Grid-search parameter maps are stored as JSON text.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id              INTEGER PRIMARY KEY AUTOINCREMENT,
	kind            TEXT NOT NULL,
	symbol          TEXT NOT NULL,
	start_date      TEXT NOT NULL,
	end_date        TEXT NOT NULL,
	initial_capital REAL NOT NULL,
	commission      REAL NOT NULL,
	created_at      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS run_results (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id        INTEGER NOT NULL REFERENCES runs(id),
	params        TEXT NOT NULL,
	total_return  REAL,
	sharpe_ratio  REAL,
	max_drawdown  REAL,
	win_rate      REAL,
	profit_factor REAL,
	trade_count   INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS trade_events (
	id       INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id   INTEGER NOT NULL REFERENCES runs(id),
	ts       TEXT NOT NULL,
	kind     TEXT NOT NULL,
	price    REAL NOT NULL,
	reason   TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_run_results_run ON run_results(run_id);
CREATE INDEX IF NOT EXISTS idx_trade_events_run ON trade_events(run_id);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath, applies the
// schema, and returns a ready-to-use SQLiteStore.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SaveRun records run metadata and returns the new run ID.
func (s *SQLiteStore) SaveRun(ctx context.Context, meta RunMeta) (int64, error) {
	createdAt := meta.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (kind, symbol, start_date, end_date, initial_capital, commission, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		meta.Kind, meta.Symbol, meta.StartDate, meta.EndDate,
		meta.InitialCapital, meta.Commission, createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("store: saving run: %w", err)
	}
	return res.LastInsertId()
}

// SaveResults appends result rows for a run.
func (s *SQLiteStore) SaveResults(ctx context.Context, runID int64, rows []domain.ResultRow) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_results (run_id, params, total_return, sharpe_ratio, max_drawdown, win_rate, profit_factor, trade_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		params, err := json.Marshal(r.Params)
		if err != nil {
			return fmt.Errorf("store: encoding params: %w", err)
		}
		m := r.Metrics
		if _, err := stmt.ExecContext(ctx, runID, string(params),
			nullable(m.TotalReturn), nullable(m.SharpeRatio), nullable(m.MaxDrawdown),
			nullable(m.WinRate), nullable(m.ProfitFactor), m.TradeCount,
		); err != nil {
			return fmt.Errorf("store: saving result row: %w", err)
		}
	}
	return tx.Commit()
}

// SaveTradeEvents appends trade events for a run.
func (s *SQLiteStore) SaveTradeEvents(ctx context.Context, runID int64, events []domain.TradeEvent) error {
	if len(events) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO trade_events (run_id, ts, kind, price, reason)
		VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range events {
		if _, err := stmt.ExecContext(ctx, runID,
			e.Timestamp.UTC().Format(time.RFC3339Nano), string(e.Kind), e.Price, e.Reason,
		); err != nil {
			return fmt.Errorf("store: saving trade event: %w", err)
		}
	}
	return tx.Commit()
}

// ListRuns returns the most recent runs, newest first, up to limit.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]RunMeta, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, kind, symbol, start_date, end_date, initial_capital, commission, created_at
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var m RunMeta
		var createdAt string
		if err := rows.Scan(&m.ID, &m.Kind, &m.Symbol, &m.StartDate, &m.EndDate,
			&m.InitialCapital, &m.Commission, &createdAt); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			m.CreatedAt = t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ResultsForRun returns the stored result rows for a run, in insert order.
func (s *SQLiteStore) ResultsForRun(ctx context.Context, runID int64) ([]domain.ResultRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT params, total_return, sharpe_ratio, max_drawdown, win_rate, profit_factor, trade_count
		FROM run_results WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.ResultRow
	for rows.Next() {
		var (
			paramsJSON               string
			ret, sharpe, dd, win, pf sql.NullFloat64
			trades                   int
		)
		if err := rows.Scan(&paramsJSON, &ret, &sharpe, &dd, &win, &pf, &trades); err != nil {
			return nil, err
		}

		var params map[string]float64
		if err := json.Unmarshal([]byte(paramsJSON), &params); err != nil {
			return nil, fmt.Errorf("store: decoding params: %w", err)
		}

		out = append(out, domain.ResultRow{
			Params: params,
			Metrics: domain.Metrics{
				TotalReturn:  floatOrNaN(ret),
				SharpeRatio:  floatOrNaN(sharpe),
				MaxDrawdown:  floatOrNaN(dd),
				WinRate:      floatOrNaN(win),
				ProfitFactor: floatOrNaN(pf),
				TradeCount:   trades,
			},
		})
	}
	return out, rows.Err()
}

// EventsForRun returns the stored trade events for a run, in insert order.
func (s *SQLiteStore) EventsForRun(ctx context.Context, runID int64) ([]domain.TradeEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ts, kind, price, reason FROM trade_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.TradeEvent
	for rows.Next() {
		var (
			ts, kind, reason string
			price            float64
		)
		if err := rows.Scan(&ts, &kind, &price, &reason); err != nil {
			return nil, err
		}
		t, err := time.Parse(time.RFC3339Nano, ts)
		if err != nil {
			return nil, fmt.Errorf("store: parsing event timestamp %q: %w", ts, err)
		}
		out = append(out, domain.TradeEvent{
			Timestamp: t,
			Kind:      domain.EventKind(kind),
			Price:     price,
			Reason:    reason,
		})
	}
	return out, rows.Err()
}

// nullable converts NaN and Inf to NULL for storage.
func nullable(f float64) any {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return nil
	}
	return f
}

func floatOrNaN(v sql.NullFloat64) float64 {
	if !v.Valid {
		return math.NaN()
	}
	return v.Float64
}
