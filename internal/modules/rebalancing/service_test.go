package rebalancing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/risk"
)

type stubCalendar struct{ firstTradingDay bool }

func (s stubCalendar) IsFirstTradingDayOfMonth(time.Time) bool { return s.firstTradingDay }

type stubQuoter struct {
	prices map[string]float64
	err    error
}

func (s stubQuoter) GetLatestQuote(_ context.Context, symbol string) (float64, error) {
	if s.err != nil {
		return 0, s.err
	}
	return s.prices[symbol], nil
}

func newTestService(cal stubCalendar, quotes stubQuoter) *Service {
	return NewService(cal, quotes, risk.DefaultLimits(), zerolog.Nop())
}

func TestShouldRebalance(t *testing.T) {
	portfolio := domain.Portfolio{PortfolioValue: 10000}
	onTarget := []domain.Position{
		{Symbol: "VTI", MarketValue: 1500},
		{Symbol: "VGK", MarketValue: 800},
		{Symbol: "GLD", MarketValue: 700},
	}

	t.Run("first trading day triggers", func(t *testing.T) {
		s := newTestService(stubCalendar{firstTradingDay: true}, stubQuoter{})

		ok, reason := s.ShouldRebalance(time.Now(), onTarget, portfolio)

		assert.True(t, ok)
		assert.Equal(t, "first trading day of month", reason)
	})

	t.Run("on target mid month does not trigger", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{})

		ok, _ := s.ShouldRebalance(time.Now(), onTarget, portfolio)

		assert.False(t, ok)
	})

	t.Run("drift past threshold triggers", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{})
		drifted := []domain.Position{
			{Symbol: "VTI", MarketValue: 2200}, // 22% vs 15% target, 7% drift
			{Symbol: "VGK", MarketValue: 800},
			{Symbol: "GLD", MarketValue: 700},
		}

		ok, reason := s.ShouldRebalance(time.Now(), drifted, portfolio)

		assert.True(t, ok)
		assert.Contains(t, reason, "VTI")
	})

	t.Run("drift within threshold does not trigger", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{})
		slight := []domain.Position{
			{Symbol: "VTI", MarketValue: 1800}, // 18% vs 15%, 3% drift
			{Symbol: "VGK", MarketValue: 800},
			{Symbol: "GLD", MarketValue: 700},
		}

		ok, _ := s.ShouldRebalance(time.Now(), slight, portfolio)

		assert.False(t, ok)
	})
}

func TestCalculateOrders(t *testing.T) {
	ctx := context.Background()
	portfolio := domain.Portfolio{PortfolioValue: 10000}

	t.Run("buys underweight and sells overweight", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{})
		positions := []domain.Position{
			{Symbol: "VTI", MarketValue: 900, CurrentPrice: 250},  // target 1500, buy 600
			{Symbol: "VGK", MarketValue: 1300, CurrentPrice: 65},  // target 800, sell 500
			{Symbol: "GLD", MarketValue: 710, CurrentPrice: 180},  // target 700, within min order
		}

		signals := s.CalculateOrders(ctx, positions, portfolio)

		require.Len(t, signals, 2)
		bySymbol := map[string]domain.Signal{}
		for _, sig := range signals {
			bySymbol[sig.Ticker] = sig
		}
		assert.Equal(t, domain.ActionBuy, bySymbol["VTI"].Action)
		assert.Equal(t, domain.ActionSell, bySymbol["VGK"].Action)
		assert.InDelta(t, 1500, *bySymbol["VTI"].TargetValue, 1e-9)
		assert.InDelta(t, 900, *bySymbol["VTI"].CurrentValue, 1e-9)
	})

	t.Run("missing position fetches a quote", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{prices: map[string]float64{"GLD": 180}})
		positions := []domain.Position{
			{Symbol: "VTI", MarketValue: 1500, CurrentPrice: 250},
			{Symbol: "VGK", MarketValue: 800, CurrentPrice: 65},
		}

		signals := s.CalculateOrders(ctx, positions, portfolio)

		require.Len(t, signals, 1)
		assert.Equal(t, "GLD", signals[0].Ticker)
		assert.InDelta(t, 180, signals[0].EntryPrice, 1e-9)
	})

	t.Run("quote failure skips only that symbol", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{err: errors.New("quote feed down")})
		positions := []domain.Position{
			{Symbol: "VTI", MarketValue: 900, CurrentPrice: 250},
			{Symbol: "VGK", MarketValue: 800, CurrentPrice: 65},
			// GLD missing entirely; quote fails so no GLD order
		}

		signals := s.CalculateOrders(ctx, positions, portfolio)

		require.Len(t, signals, 1)
		assert.Equal(t, "VTI", signals[0].Ticker)
	})

	t.Run("empty portfolio value yields nothing", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{})

		signals := s.CalculateOrders(ctx, nil, domain.Portfolio{})

		assert.Empty(t, signals)
	})

	t.Run("rebalance signals validate", func(t *testing.T) {
		s := newTestService(stubCalendar{}, stubQuoter{prices: map[string]float64{"VTI": 250, "VGK": 65, "GLD": 180}})

		signals := s.CalculateOrders(ctx, nil, portfolio)

		require.Len(t, signals, 3)
		for _, sig := range signals {
			assert.NoError(t, domain.ValidateSignal(sig))
			assert.Equal(t, domain.SignalRebalance, sig.Kind)
		}
	})
}
