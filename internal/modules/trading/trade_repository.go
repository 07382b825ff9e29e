// Package trading contains the orchestrator that runs one full trading cycle
// and the audit-log repository it records into.
package trading

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/quantfold/helmsman/internal/domain"
)

// Schema creates the trade and signal audit tables
const Schema = `
CREATE TABLE IF NOT EXISTS trades (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	date INTEGER NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	quantity REAL NOT NULL,
	entry_price REAL NOT NULL,
	exit_price REAL,
	exit_reason TEXT,
	pnl REAL,
	pnl_pct REAL,
	strategy TEXT NOT NULL,
	order_id TEXT
);
CREATE INDEX IF NOT EXISTS idx_trades_date ON trades(date);
CREATE INDEX IF NOT EXISTS idx_trades_ticker ON trades(ticker);

CREATE TABLE IF NOT EXISTS signals (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	generated_at INTEGER NOT NULL,
	ticker TEXT NOT NULL,
	action TEXT NOT NULL,
	kind TEXT NOT NULL,
	entry_price REAL NOT NULL,
	confidence REAL NOT NULL,
	strategy TEXT NOT NULL,
	reason TEXT
);
CREATE INDEX IF NOT EXISTS idx_signals_generated_at ON signals(generated_at);

CREATE TABLE IF NOT EXISTS parameter_changes (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	changed_at INTEGER NOT NULL,
	name TEXT NOT NULL,
	old_value REAL NOT NULL,
	new_value REAL NOT NULL
);
`

// TradeRepository persists the trade and signal audit log to the ledger
// database. Implements domain.TradeLog. Writes are fire-and-forget from the
// orchestrator's point of view: a failed write is logged, never traded on.
type TradeRepository struct {
	db *sql.DB
}

// NewTradeRepository creates the repository and ensures its schema exists
func NewTradeRepository(db *sql.DB) (*TradeRepository, error) {
	if _, err := db.Exec(Schema); err != nil {
		return nil, fmt.Errorf("failed to create trade log schema: %w", err)
	}
	return &TradeRepository{db: db}, nil
}

// LogTrade appends an executed trade to the audit log
func (r *TradeRepository) LogTrade(trade domain.Trade) error {
	date := trade.Date
	if date.IsZero() {
		date = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO trades (date, ticker, action, quantity, entry_price, exit_price, exit_reason, pnl, pnl_pct, strategy, order_id)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		date.Unix(), trade.Ticker, string(trade.Action), trade.Quantity, trade.EntryPrice,
		trade.ExitPrice, trade.ExitReason, trade.PnL, trade.PnLPct, trade.Strategy, trade.OrderID,
	)
	if err != nil {
		return fmt.Errorf("failed to log trade for %s: %w", trade.Ticker, err)
	}
	return nil
}

// LogSignal appends a produced signal to the audit log
func (r *TradeRepository) LogSignal(signal domain.Signal) error {
	generatedAt := signal.GeneratedAt
	if generatedAt.IsZero() {
		generatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		`INSERT INTO signals (generated_at, ticker, action, kind, entry_price, confidence, strategy, reason)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		generatedAt.Unix(), signal.Ticker, string(signal.Action), string(signal.Kind),
		signal.EntryPrice, signal.Confidence, signal.Strategy, signal.Reason,
	)
	if err != nil {
		return fmt.Errorf("failed to log signal for %s: %w", signal.Ticker, err)
	}
	return nil
}

// LogParameterChange appends a sizing-parameter recalibration to the audit log
func (r *TradeRepository) LogParameterChange(change domain.ParameterChange) error {
	changedAt := change.ChangedAt
	if changedAt.IsZero() {
		changedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(
		"INSERT INTO parameter_changes (changed_at, name, old_value, new_value) VALUES (?, ?, ?, ?)",
		changedAt.Unix(), change.Name, change.OldValue, change.NewValue,
	)
	if err != nil {
		return fmt.Errorf("failed to log parameter change %s: %w", change.Name, err)
	}
	return nil
}

// RecentClosedPnLPcts returns per-trade realized returns for the most recent
// closed trades, oldest first, for Kelly recalibration.
func (r *TradeRepository) RecentClosedPnLPcts(limit int) ([]float64, error) {
	rows, err := r.db.Query(
		`SELECT pnl_pct FROM (
			SELECT id, pnl_pct FROM trades WHERE pnl_pct IS NOT NULL ORDER BY id DESC LIMIT ?
		 ) ORDER BY id ASC`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query closed trades: %w", err)
	}
	defer rows.Close()

	var pcts []float64
	for rows.Next() {
		var pct float64
		if err := rows.Scan(&pct); err != nil {
			return nil, fmt.Errorf("failed to scan closed trade: %w", err)
		}
		pcts = append(pcts, pct)
	}
	return pcts, rows.Err()
}

// RecentTrades returns the newest trades for the status API, newest first
func (r *TradeRepository) RecentTrades(limit int) ([]domain.Trade, error) {
	rows, err := r.db.Query(
		`SELECT date, ticker, action, quantity, entry_price, exit_price, exit_reason, pnl, pnl_pct, strategy, order_id
		 FROM trades ORDER BY id DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []domain.Trade
	for rows.Next() {
		var t domain.Trade
		var date int64
		var exitReason, orderID sql.NullString
		if err := rows.Scan(&date, &t.Ticker, &t.Action, &t.Quantity, &t.EntryPrice,
			&t.ExitPrice, &exitReason, &t.PnL, &t.PnLPct, &t.Strategy, &orderID); err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		t.Date = time.Unix(date, 0).UTC()
		t.ExitReason = exitReason.String
		t.OrderID = orderID.String
		trades = append(trades, t)
	}
	return trades, rows.Err()
}
