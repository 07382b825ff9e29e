package domain

import (
	"fmt"
	"time"
)

// SignalKind tags the variant of a signal. Each variant carries only the
// fields that are meaningful for it; ValidateSignal enforces the split.
type SignalKind string

const (
	// SignalMomentum is a technical-breakout entry proposal
	SignalMomentum SignalKind = "momentum"
	// SignalSentiment is a news-sentiment-driven entry proposal
	SignalSentiment SignalKind = "sentiment"
	// SignalRebalance is a defensive-core rebalancing order proposal,
	// sized deterministically from target/current allocation values
	SignalRebalance SignalKind = "rebalance"
)

// Signal is a proposed trade emitted by an upstream producer. It is a
// transient message: created once per scan cycle, consumed exactly once by
// the pipeline, never persisted as mutable state.
type Signal struct {
	Ticker      string     `json:"ticker"`
	Action      Action     `json:"action"`
	Kind        SignalKind `json:"kind"`
	EntryPrice  float64    `json:"entry_price"`
	StopLoss    *float64   `json:"stop_loss,omitempty"`
	TakeProfit  *float64   `json:"take_profit,omitempty"`
	Confidence  float64    `json:"confidence"`
	Strategy    string     `json:"strategy"`
	Reason      string     `json:"reason,omitempty"`
	GeneratedAt time.Time  `json:"generated_at"`

	// Rebalance variant only: desired vs. actual dollar allocation
	TargetValue  *float64 `json:"target_value,omitempty"`
	CurrentValue *float64 `json:"current_value,omitempty"`
}

// NewMomentumSignal builds a momentum entry proposal with bracket legs
func NewMomentumSignal(ticker string, entry, stopLoss, takeProfit, confidence float64, reason string) Signal {
	return Signal{
		Ticker:      ticker,
		Action:      ActionBuy,
		Kind:        SignalMomentum,
		EntryPrice:  entry,
		StopLoss:    &stopLoss,
		TakeProfit:  &takeProfit,
		Confidence:  confidence,
		Strategy:    "momentum",
		Reason:      reason,
		GeneratedAt: time.Now().UTC(),
	}
}

// NewSentimentSignal builds a news-sentiment entry proposal
func NewSentimentSignal(ticker string, entry, stopLoss, takeProfit, confidence float64, reason string) Signal {
	s := NewMomentumSignal(ticker, entry, stopLoss, takeProfit, confidence, reason)
	s.Kind = SignalSentiment
	s.Strategy = "news_sentiment"
	return s
}

// NewRebalanceSignal builds a defensive-core rebalancing proposal. The action
// follows the sign of target-current; sizing uses the absolute difference.
func NewRebalanceSignal(ticker string, entry, targetValue, currentValue float64) Signal {
	action := ActionBuy
	if targetValue < currentValue {
		action = ActionSell
	}
	return Signal{
		Ticker:       ticker,
		Action:       action,
		Kind:         SignalRebalance,
		EntryPrice:   entry,
		Confidence:   1.0, // rebalancing is deterministic, not ranked
		Strategy:     "defensive",
		TargetValue:  &targetValue,
		CurrentValue: &currentValue,
		GeneratedAt:  time.Now().UTC(),
	}
}

// ValidateSignal checks the structural invariants every signal must satisfy
// before it may enter the pipeline:
//   - non-empty ticker and a known action/kind
//   - entry price > 0
//   - confidence in [0, 1]
//   - stop loss (if present) below entry, take profit (if present) above entry
//   - rebalance signals carry a target value
func ValidateSignal(s Signal) error {
	if s.Ticker == "" {
		return fmt.Errorf("signal has empty ticker")
	}
	switch s.Action {
	case ActionBuy, ActionSell, ActionHold:
	default:
		return fmt.Errorf("signal for %s has unknown action %q", s.Ticker, s.Action)
	}
	switch s.Kind {
	case SignalMomentum, SignalSentiment, SignalRebalance:
	default:
		return fmt.Errorf("signal for %s has unknown kind %q", s.Ticker, s.Kind)
	}
	if s.EntryPrice <= 0 {
		return fmt.Errorf("signal for %s has invalid entry price %.4f (must be > 0)", s.Ticker, s.EntryPrice)
	}
	if s.Confidence < 0 || s.Confidence > 1 {
		return fmt.Errorf("signal for %s has confidence %.4f outside [0,1]", s.Ticker, s.Confidence)
	}
	if s.StopLoss != nil && *s.StopLoss >= s.EntryPrice {
		return fmt.Errorf("signal for %s has stop loss %.4f at or above entry %.4f", s.Ticker, *s.StopLoss, s.EntryPrice)
	}
	if s.TakeProfit != nil && *s.TakeProfit <= s.EntryPrice {
		return fmt.Errorf("signal for %s has take profit %.4f at or below entry %.4f", s.Ticker, *s.TakeProfit, s.EntryPrice)
	}
	if s.Kind == SignalRebalance && s.TargetValue == nil {
		return fmt.Errorf("rebalance signal for %s is missing target value", s.Ticker)
	}
	return nil
}

// StopLossPct returns the stop distance as a fraction of entry, or 0 when no
// stop leg is attached.
func (s Signal) StopLossPct() float64 {
	if s.StopLoss == nil || s.EntryPrice <= 0 {
		return 0
	}
	pct := (s.EntryPrice - *s.StopLoss) / s.EntryPrice
	if pct < 0 {
		pct = -pct
	}
	return pct
}

// TakeProfitPct returns the profit target distance as a fraction of entry, or
// 0 when no target leg is attached.
func (s Signal) TakeProfitPct() float64 {
	if s.TakeProfit == nil || s.EntryPrice <= 0 {
		return 0
	}
	pct := (*s.TakeProfit - s.EntryPrice) / s.EntryPrice
	if pct < 0 {
		pct = -pct
	}
	return pct
}
