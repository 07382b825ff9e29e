package domain

import (
	"context"
	"errors"
)

// ErrDataUnavailable marks a recoverable data-provider failure. Callers that
// hold a fail-open policy (the correlation monitor) treat it as "cannot
// evaluate, approve" instead of rejecting the candidate. Hard failures are
// returned as ordinary errors.
var ErrDataUnavailable = errors.New("price data unavailable")

// OrderRequest describes an order submission. StopLoss and TakeProfit are
// optional bracket legs; when both are nil a plain market order is placed.
type OrderRequest struct {
	Symbol     string
	Qty        float64
	Side       Action
	StopLoss   *float64
	TakeProfit *float64
}

// BrokerClient abstracts the brokerage/execution service. All operations are
// remote calls and take a context.
type BrokerClient interface {
	// GetAccount returns the current account snapshot
	GetAccount(ctx context.Context) (Portfolio, error)

	// GetPositions returns all open positions
	GetPositions(ctx context.Context) ([]Position, error)

	// SubmitOrder places an order and returns the broker order ID
	SubmitOrder(ctx context.Context, req OrderRequest) (string, error)

	// ClosePosition liquidates the full position for a symbol
	ClosePosition(ctx context.Context, symbol string) error

	// GetLatestQuote returns the latest trade/ask price for a symbol
	GetLatestQuote(ctx context.Context, symbol string) (float64, error)

	// GetMarketClock returns the current market session state
	GetMarketClock(ctx context.Context) (MarketClock, error)
}

// PriceHistoryProvider supplies trailing daily closes for a ticker.
// Implementations return an error wrapping ErrDataUnavailable when the
// provider is unreachable or returns no usable data, so callers can
// distinguish "fail open" from a hard failure.
type PriceHistoryProvider interface {
	DailyCloses(ctx context.Context, ticker string, lookbackDays int) ([]Candle, error)
}

// SignalProducer is an upstream heuristic that proposes trades. Producers are
// independent: a failing producer must never prevent the others from being
// collected.
type SignalProducer interface {
	// Name identifies the producer in logs and reports
	Name() string

	// Scan returns this cycle's trade proposals
	Scan(ctx context.Context) ([]Signal, error)
}

// TradeLog is the fire-and-forget persistence sink. Failures are logged by
// the caller and never propagated into trading decisions.
type TradeLog interface {
	LogTrade(trade Trade) error
	LogSignal(signal Signal) error
	LogParameterChange(change ParameterChange) error
}
