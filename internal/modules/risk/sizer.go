package risk

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
)

const (
	// defaultWinRate etc. seed the Kelly inputs until enough closed trades
	// exist to calibrate from realized performance
	defaultWinRate = 0.55
	defaultAvgWin  = 0.08
	defaultAvgLoss = 0.03

	// minTradesForCalibration: below this sample size realized stats are
	// noise and the defaults stay in force
	minTradesForCalibration = 10

	// halfKelly scales the raw Kelly fraction down. Full Kelly assumes the
	// edge estimate is exact; it never is.
	halfKelly = 0.5

	// cashReservePct keeps a slice of cash uninvested so a fill slightly
	// above the quoted price cannot bounce the order
	cashReservePct = 0.95

	// rebalanceQtyPrecision: rebalance orders trade defensive ETFs, which
	// support fractional shares to two decimals
	rebalanceQtyPrecision = 100
)

// Sizing is the sizer's answer for one signal: a dollar value, a share
// quantity, and a human-readable explanation of how it was derived.
type Sizing struct {
	Value    float64
	Quantity float64
	Reason   string
}

// PositionSizer converts approved signals into order sizes using a
// half-Kelly criterion calibrated from realized trade history.
type PositionSizer struct {
	winRate float64
	avgWin  float64
	avgLoss float64
	limits  Limits
	log     zerolog.Logger
}

// NewPositionSizer creates a sizer seeded with the default Kelly inputs
func NewPositionSizer(limits Limits, log zerolog.Logger) *PositionSizer {
	return &PositionSizer{
		winRate: defaultWinRate,
		avgWin:  defaultAvgWin,
		avgLoss: defaultAvgLoss,
		limits:  limits,
		log:     log.With().Str("service", "position_sizer").Logger(),
	}
}

// Recalibrate recomputes the Kelly inputs from realized per-trade returns
// (fractions, e.g. 0.05 for +5%) and returns the parameter changes applied.
// Fewer than 10 closed trades keeps the defaults; recalibration never fails.
func (s *PositionSizer) Recalibrate(pnlPcts []float64) []domain.ParameterChange {
	if len(pnlPcts) < minTradesForCalibration {
		s.log.Debug().Int("trades", len(pnlPcts)).Msg("Insufficient closed trades, keeping default Kelly inputs")
		return nil
	}

	var wins, losses []float64
	for _, pct := range pnlPcts {
		if pct > 0 {
			wins = append(wins, pct)
		} else if pct < 0 {
			losses = append(losses, -pct)
		}
	}

	prevWinRate, prevAvgWin, prevAvgLoss := s.winRate, s.avgWin, s.avgLoss

	s.winRate = float64(len(wins)) / float64(len(pnlPcts))
	if len(wins) > 0 {
		s.avgWin = mean(wins)
	}
	if len(losses) > 0 {
		s.avgLoss = mean(losses)
	}

	s.log.Info().
		Float64("win_rate", s.winRate).
		Float64("avg_win", s.avgWin).
		Float64("avg_loss", s.avgLoss).
		Int("trades", len(pnlPcts)).
		Msg("Kelly inputs recalibrated")

	now := time.Now().UTC()
	var changes []domain.ParameterChange
	for _, ch := range []domain.ParameterChange{
		{ChangedAt: now, Name: "win_rate", OldValue: prevWinRate, NewValue: s.winRate},
		{ChangedAt: now, Name: "avg_win", OldValue: prevAvgWin, NewValue: s.avgWin},
		{ChangedAt: now, Name: "avg_loss", OldValue: prevAvgLoss, NewValue: s.avgLoss},
	} {
		if ch.OldValue != ch.NewValue {
			changes = append(changes, ch)
		}
	}
	return changes
}

// KellyFraction returns the half-Kelly portfolio fraction for a signal with
// the given confidence and bracket distances, clamped to the position-size
// band. A non-positive edge clamps to the band minimum rather than zero so
// an admitted signal always gets a floor-sized position.
func (s *PositionSizer) KellyFraction(confidence, slPct, tpPct float64) float64 {
	p := confidence * s.winRate
	q := 1 - p

	b := s.avgWin / s.avgLoss
	if slPct > 0 && tpPct > 0 {
		b = tpPct / slPct
	}

	f := (p*b - q) / b
	if f < 0 {
		f = 0
	}
	f *= halfKelly

	return clamp(f, s.limits.MinPositionSizePct, s.limits.MaxPositionSizePct)
}

// PositionValue returns the dollar size for a signal. Rebalance signals are
// sized deterministically from the allocation gap; everything else goes
// through Kelly with the cash reserve cap applied last.
func (s *PositionSizer) PositionValue(signal domain.Signal, portfolio domain.Portfolio) Sizing {
	if signal.Kind == domain.SignalRebalance {
		var current float64
		if signal.CurrentValue != nil {
			current = *signal.CurrentValue
		}
		value := math.Abs(*signal.TargetValue - current)
		return Sizing{
			Value:  value,
			Reason: fmt.Sprintf("rebalance gap $%.2f (target $%.2f, current $%.2f)", value, *signal.TargetValue, current),
		}
	}

	slPct := signal.StopLossPct()
	if slPct == 0 {
		slPct = defaultAvgLoss
	}
	tpPct := signal.TakeProfitPct()
	if tpPct == 0 {
		tpPct = defaultAvgWin
	}

	fraction := s.KellyFraction(signal.Confidence, slPct, tpPct)
	value := fraction * portfolio.PortfolioValue

	reason := fmt.Sprintf("half-Kelly %.1f%% of $%.2f", fraction*100, portfolio.PortfolioValue)

	cashCap := portfolio.Cash * cashReservePct
	if value > cashCap {
		value = cashCap
		reason = fmt.Sprintf("%s, capped by available cash to $%.2f", reason, cashCap)
	}

	return Sizing{Value: value, Reason: reason}
}

// Size resolves a signal into a full Sizing with a share quantity. Dynamic
// entries trade whole shares (floored, minimum 1 when any size at all is
// affordable); rebalance orders use fractional quantities.
func (s *PositionSizer) Size(signal domain.Signal, portfolio domain.Portfolio) (Sizing, error) {
	sizing := s.PositionValue(signal, portfolio)
	if signal.EntryPrice <= 0 {
		return Sizing{}, fmt.Errorf("cannot size %s: entry price %.4f", signal.Ticker, signal.EntryPrice)
	}

	if signal.Kind == domain.SignalRebalance {
		sizing.Quantity = math.Floor(sizing.Value/signal.EntryPrice*rebalanceQtyPrecision) / rebalanceQtyPrecision
		return sizing, nil
	}

	qty := math.Floor(sizing.Value / signal.EntryPrice)
	if qty < 1 {
		if signal.EntryPrice > portfolio.Cash*cashReservePct {
			return Sizing{}, fmt.Errorf("cannot size %s: one share at $%.2f exceeds available cash", signal.Ticker, signal.EntryPrice)
		}
		qty = 1
	}
	sizing.Quantity = qty
	sizing.Value = qty * signal.EntryPrice

	s.log.Debug().
		Str("ticker", signal.Ticker).
		Float64("qty", qty).
		Float64("value", sizing.Value).
		Str("reason", sizing.Reason).
		Msg("Position sized")
	return sizing, nil
}

// WinRate exposes the current calibrated win rate for the status API
func (s *PositionSizer) WinRate() float64 { return s.winRate }

func mean(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
