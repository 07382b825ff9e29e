// Package domain provides core domain models and collaborator contracts.
package domain

import "time"

// Action represents the direction of a proposed trade
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionHold Action = "HOLD"
)

// Portfolio is a read-only snapshot of account state, valid for exactly one
// orchestration cycle. The broker is the system of record; this is never
// written back.
type Portfolio struct {
	Cash           float64 `json:"cash"`
	PortfolioValue float64 `json:"portfolio_value"`
	BuyingPower    float64 `json:"buying_power"`
	Equity         float64 `json:"equity"`
	LastEquity     float64 `json:"last_equity"`
}

// DailyPnL is today's equity change versus the prior session close
func (p Portfolio) DailyPnL() float64 {
	if p.LastEquity == 0 {
		return 0
	}
	return p.Equity - p.LastEquity
}

// Position represents an open holding, refreshed from the broker at the start
// of each cycle. Stale snapshots must not be reused across cycles.
type Position struct {
	Symbol          string  `json:"symbol"`
	Quantity        float64 `json:"quantity"`
	AvgEntryPrice   float64 `json:"avg_entry_price"`
	CurrentPrice    float64 `json:"current_price"`
	MarketValue     float64 `json:"market_value"`
	UnrealizedPL    float64 `json:"unrealized_pl"`
	UnrealizedPLPct float64 `json:"unrealized_pl_pct"`
}

// Trade represents an executed (or submitted) trade for the audit log
type Trade struct {
	Date       time.Time `json:"date"`
	Ticker     string    `json:"ticker"`
	Action     Action    `json:"action"`
	Quantity   float64   `json:"quantity"`
	EntryPrice float64   `json:"entry_price"`
	ExitPrice  *float64  `json:"exit_price,omitempty"`
	ExitReason string    `json:"exit_reason,omitempty"`
	PnL        *float64  `json:"pnl,omitempty"`
	PnLPct     *float64  `json:"pnl_pct,omitempty"`
	Strategy   string    `json:"strategy"`
	OrderID    string    `json:"order_id,omitempty"`
}

// ParameterChange records one sizing-parameter recalibration for the audit
// log. Parameters only change through recalibration; there is no mutable
// global to observe.
type ParameterChange struct {
	ChangedAt time.Time `json:"changed_at"`
	Name      string    `json:"name"`
	OldValue  float64   `json:"old_value"`
	NewValue  float64   `json:"new_value"`
}

// MarketClock describes the market session state as reported by the broker
type MarketClock struct {
	IsOpen    bool      `json:"is_open"`
	NextOpen  time.Time `json:"next_open"`
	NextClose time.Time `json:"next_close"`
}

// Candle is a single daily observation of a price series. Volume is zero
// when the provider did not report it.
type Candle struct {
	Date   time.Time `json:"date"`
	Close  float64   `json:"close"`
	Volume float64   `json:"volume"`
}

// CycleStatus describes the outcome of one orchestration cycle
type CycleStatus string

const (
	CycleCompleted CycleStatus = "completed"
	CycleSkipped   CycleStatus = "skipped"
	CycleHalted    CycleStatus = "halted"
)

// CycleReport is the structured execution summary returned by each
// orchestration cycle.
type CycleReport struct {
	Status          CycleStatus `json:"status"`
	Reason          string      `json:"reason,omitempty"`
	StartedAt       time.Time   `json:"started_at"`
	FinishedAt      time.Time   `json:"finished_at"`
	PortfolioValue  float64     `json:"portfolio_value"`
	RebalanceOrders int         `json:"rebalance_orders"`
	SignalsFound    int         `json:"signals_found"`
	SignalsApproved int         `json:"signals_approved"`
	OrdersExecuted  int         `json:"orders_executed"`
	PositionsClosed int         `json:"positions_closed"`
	NextOpen        *time.Time  `json:"next_open,omitempty"`
}
