// Package rebalancing keeps the defensive core (broad-market, international
// and gold ETFs) at its target allocations. Rebalancing runs on the first
// trading day of each month, or early when any core symbol drifts past the
// threshold.
package rebalancing

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/risk"
)

// TargetAllocations maps each defensive-core symbol to its target fraction
// of portfolio value. The core totals 30% of the portfolio.
var TargetAllocations = map[string]float64{
	"VTI": 0.15,
	"VGK": 0.08,
	"GLD": 0.07,
}

// minOrderValue skips rebalancing orders too small to be worth commission
// drag and order noise
const minOrderValue = 100.0

type marketCalendar interface {
	IsFirstTradingDayOfMonth(date time.Time) bool
}

type quoter interface {
	GetLatestQuote(ctx context.Context, symbol string) (float64, error)
}

// Service decides when the defensive core needs rebalancing and produces the
// order proposals to do it.
type Service struct {
	calendar marketCalendar
	quotes   quoter
	limits   risk.Limits
	log      zerolog.Logger
}

// NewService creates a rebalancing service
func NewService(calendar marketCalendar, quotes quoter, limits risk.Limits, log zerolog.Logger) *Service {
	return &Service{
		calendar: calendar,
		quotes:   quotes,
		limits:   limits,
		log:      log.With().Str("service", "rebalancing").Logger(),
	}
}

// ShouldRebalance reports whether the core needs attention today: either the
// scheduled monthly rebalance date, or any core symbol drifting past the
// threshold. Returns the trigger for logging.
func (s *Service) ShouldRebalance(today time.Time, positions []domain.Position, portfolio domain.Portfolio) (bool, string) {
	if s.calendar.IsFirstTradingDayOfMonth(today) {
		return true, "first trading day of month"
	}

	if portfolio.PortfolioValue <= 0 {
		return false, ""
	}

	held := positionValues(positions)
	for symbol, target := range TargetAllocations {
		actual := held[symbol] / portfolio.PortfolioValue
		drift := math.Abs(actual - target)
		if drift > s.limits.RebalanceDriftThreshold {
			return true, fmt.Sprintf("%s drifted %.1f%% from target %.0f%%", symbol, drift*100, target*100)
		}
	}
	return false, ""
}

// CalculateOrders produces rebalance signals sized to close each core
// symbol's allocation gap. Gaps under the minimum order value are skipped.
// Symbols without a held position get their entry price from a live quote;
// a quote failure skips just that symbol.
func (s *Service) CalculateOrders(ctx context.Context, positions []domain.Position, portfolio domain.Portfolio) []domain.Signal {
	if portfolio.PortfolioValue <= 0 {
		return nil
	}

	held := positionValues(positions)
	prices := positionPrices(positions)

	var signals []domain.Signal
	for symbol, target := range TargetAllocations {
		targetValue := target * portfolio.PortfolioValue
		currentValue := held[symbol]
		diff := targetValue - currentValue

		if math.Abs(diff) <= minOrderValue {
			continue
		}

		price, ok := prices[symbol]
		if !ok {
			quoted, err := s.quotes.GetLatestQuote(ctx, symbol)
			if err != nil {
				s.log.Warn().Err(err).Str("symbol", symbol).Msg("Quote unavailable, skipping rebalance order")
				continue
			}
			price = quoted
		}
		if price <= 0 {
			continue
		}

		sig := domain.NewRebalanceSignal(symbol, price, targetValue, currentValue)
		sig.Reason = fmt.Sprintf("core %s at $%.2f vs target $%.2f", symbol, currentValue, targetValue)
		signals = append(signals, sig)

		s.log.Info().
			Str("symbol", symbol).
			Str("action", string(sig.Action)).
			Float64("gap", math.Abs(diff)).
			Msg("Rebalance order calculated")
	}
	return signals
}

func positionValues(positions []domain.Position) map[string]float64 {
	values := make(map[string]float64, len(positions))
	for _, pos := range positions {
		values[pos.Symbol] = pos.MarketValue
	}
	return values
}

func positionPrices(positions []domain.Position) map[string]float64 {
	prices := make(map[string]float64, len(positions))
	for _, pos := range positions {
		if pos.CurrentPrice > 0 {
			prices[pos.Symbol] = pos.CurrentPrice
		}
	}
	return prices
}
