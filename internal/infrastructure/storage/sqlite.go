package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/ravikal/swing_trade_replay/internal/domain"
)

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) initSchema() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS plans (
			id TEXT PRIMARY KEY,
			exchange TEXT NOT NULL,
			symbol TEXT NOT NULL,
			entry REAL NOT NULL,
			stop REAL NOT NULL,
			target1 REAL NOT NULL,
			target2 REAL NOT NULL DEFAULT 0,
			target3 REAL NOT NULL DEFAULT 0,
			entry_confirmation TEXT NOT NULL,
			entry_window_days INTEGER NOT NULL,
			max_hold_days INTEGER NOT NULL,
			week_end_rule TEXT NOT NULL,
			source TEXT,
			created_at DATETIME NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_plans_symbol ON plans(exchange, symbol);`,
		`CREATE TABLE IF NOT EXISTS bars (
			symbol TEXT NOT NULL,
			date DATETIME NOT NULL,
			open REAL NOT NULL,
			high REAL NOT NULL,
			low REAL NOT NULL,
			close REAL NOT NULL,
			PRIMARY KEY (symbol, date)
		);`,
		`CREATE TABLE IF NOT EXISTS simulations (
			plan_id TEXT PRIMARY KEY,
			status TEXT NOT NULL,
			entry_price REAL NOT NULL,
			entry_date DATETIME,
			qty_total INTEGER NOT NULL,
			qty_remaining INTEGER NOT NULL,
			qty_exited INTEGER NOT NULL,
			trailing_stop REAL NOT NULL,
			realized_pnl REAL NOT NULL,
			unrealized_pnl REAL NOT NULL,
			total_pnl REAL NOT NULL,
			peak_price REAL NOT NULL,
			peak_gain_pct REAL NOT NULL,
			updated_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS simulation_events (
			plan_id TEXT NOT NULL,
			seq INTEGER NOT NULL,
			date DATETIME NOT NULL,
			type TEXT NOT NULL,
			price REAL NOT NULL,
			qty INTEGER NOT NULL,
			pnl REAL NOT NULL,
			quality TEXT NOT NULL DEFAULT '',
			detail TEXT NOT NULL,
			PRIMARY KEY (plan_id, seq)
		);`,
	}

	for _, q := range queries {
		if _, err := s.db.Exec(q); err != nil {
			return fmt.Errorf("failed to exec query %s: %w", q, err)
		}
	}

	return nil
}

// PlanRepository implementation

func (s *SQLiteStore) SavePlan(ctx context.Context, plan *domain.LevelPlan) error {
	// Malformed plans must never reach disk.
	if err := plan.Validate(); err != nil {
		return err
	}
	query := `INSERT OR REPLACE INTO plans
		(id, exchange, symbol, entry, stop, target1, target2, target3, entry_confirmation, entry_window_days, max_hold_days, week_end_rule, source, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, query,
		plan.ID, plan.Exchange, plan.Symbol, plan.Entry, plan.Stop,
		plan.Target1, plan.Target2, plan.Target3, string(plan.EntryConfirmation),
		plan.EntryWindowDays, plan.MaxHoldDays, string(plan.WeekEndRule),
		plan.Source, plan.CreatedAt)
	return err
}

func (s *SQLiteStore) GetPlan(ctx context.Context, id string) (*domain.LevelPlan, error) {
	query := `SELECT id, exchange, symbol, entry, stop, target1, target2, target3, entry_confirmation, entry_window_days, max_hold_days, week_end_rule, source, created_at
		FROM plans WHERE id = ?`
	return scanPlan(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) ListPlans(ctx context.Context) ([]*domain.LevelPlan, error) {
	query := `SELECT id, exchange, symbol, entry, stop, target1, target2, target3, entry_confirmation, entry_window_days, max_hold_days, week_end_rule, source, created_at
		FROM plans ORDER BY created_at`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []*domain.LevelPlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

func (s *SQLiteStore) DeletePlan(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM plans WHERE id = ?`, id)
	return err
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanPlan(row rowScanner) (*domain.LevelPlan, error) {
	var p domain.LevelPlan
	var confirmation, rule string
	var source sql.NullString
	err := row.Scan(&p.ID, &p.Exchange, &p.Symbol, &p.Entry, &p.Stop,
		&p.Target1, &p.Target2, &p.Target3, &confirmation,
		&p.EntryWindowDays, &p.MaxHoldDays, &rule, &source, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.EntryConfirmation = domain.EntryConfirmation(confirmation)
	p.WeekEndRule = domain.WeekEndRule(rule)
	p.Source = source.String
	return &p, nil
}

// BarRepository implementation

func (s *SQLiteStore) SaveBars(ctx context.Context, symbol string, bars []domain.Bar) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT OR REPLACE INTO bars (symbol, date, open, high, low, close) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bars {
		if _, err := stmt.ExecContext(ctx, symbol, b.Date, b.Open, b.High, b.Low, b.Close); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) GetBars(ctx context.Context, symbol string, from, to time.Time) ([]domain.Bar, error) {
	query := `SELECT date, open, high, low, close FROM bars
		WHERE symbol = ? AND date >= ? AND date <= ? ORDER BY date`
	rows, err := s.db.QueryContext(ctx, query, symbol, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []domain.Bar
	for rows.Next() {
		var b domain.Bar
		if err := rows.Scan(&b.Date, &b.Open, &b.High, &b.Low, &b.Close); err != nil {
			return nil, err
		}
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// SimulationRepository implementation

// SaveSimulation replaces the stored state and event trail atomically, so a
// re-run over the same bars leaves storage in the same shape it started in.
func (s *SQLiteStore) SaveSimulation(ctx context.Context, state *domain.SimulationState) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT OR REPLACE INTO simulations
		(plan_id, status, entry_price, entry_date, qty_total, qty_remaining, qty_exited, trailing_stop, realized_pnl, unrealized_pnl, total_pnl, peak_price, peak_gain_pct, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		state.PlanID, string(state.Status), state.EntryPrice, state.EntryDate,
		state.QtyTotal, state.QtyRemaining, state.QtyExited, state.TrailingStop,
		state.RealizedPnL, state.UnrealizedPnL, state.TotalPnL,
		state.PeakPrice, state.PeakGainPct, time.Now().UTC())
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM simulation_events WHERE plan_id = ?`, state.PlanID); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO simulation_events
		(plan_id, seq, date, type, price, qty, pnl, quality, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for i, ev := range state.Events {
		_, err := stmt.ExecContext(ctx, state.PlanID, i, ev.Date, string(ev.Type),
			ev.Price, ev.Qty, ev.PnL, string(ev.Quality), ev.Detail)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (s *SQLiteStore) GetSimulation(ctx context.Context, planID string) (*domain.SimulationState, error) {
	var st domain.SimulationState
	var status string
	var entryDate sql.NullTime
	err := s.db.QueryRowContext(ctx, `SELECT plan_id, status, entry_price, entry_date, qty_total, qty_remaining, qty_exited, trailing_stop, realized_pnl, unrealized_pnl, total_pnl, peak_price, peak_gain_pct
		FROM simulations WHERE plan_id = ?`, planID).Scan(
		&st.PlanID, &status, &st.EntryPrice, &entryDate,
		&st.QtyTotal, &st.QtyRemaining, &st.QtyExited, &st.TrailingStop,
		&st.RealizedPnL, &st.UnrealizedPnL, &st.TotalPnL,
		&st.PeakPrice, &st.PeakGainPct)
	if err != nil {
		return nil, err
	}
	st.Status = domain.Status(status)
	if entryDate.Valid {
		st.EntryDate = entryDate.Time
	}

	rows, err := s.db.QueryContext(ctx, `SELECT date, type, price, qty, pnl, quality, detail
		FROM simulation_events WHERE plan_id = ? ORDER BY seq`, planID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var ev domain.Event
		var evType, quality string
		if err := rows.Scan(&ev.Date, &evType, &ev.Price, &ev.Qty, &ev.PnL, &quality, &ev.Detail); err != nil {
			return nil, err
		}
		ev.Type = domain.EventType(evType)
		ev.Quality = domain.EntryQuality(quality)
		st.Events = append(st.Events, ev)
	}
	return &st, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
