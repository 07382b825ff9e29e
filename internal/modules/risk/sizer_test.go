package risk

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
)

func newTestSizer() *PositionSizer {
	return NewPositionSizer(DefaultLimits(), zerolog.Nop())
}

func TestKellyFraction(t *testing.T) {
	s := newTestSizer()

	tests := []struct {
		name       string
		confidence float64
		slPct      float64
		tpPct      float64
		expected   float64
	}{
		{
			// p = 0.75*0.55 = 0.4125, q = 0.5875, b = 0.08/0.03 = 2.6667
			// f = (0.4125*2.6667 - 0.5875)/2.6667 = 0.1921875, half = 0.09609375
			name:       "moderate confidence standard brackets",
			confidence: 0.75,
			slPct:      0.03,
			tpPct:      0.08,
			expected:   0.09609375,
		},
		{
			name:       "full confidence clamps to max",
			confidence: 1.0,
			slPct:      0.03,
			tpPct:      0.08,
			expected:   0.15,
		},
		{
			name:       "negative edge clamps to min",
			confidence: 0.3,
			slPct:      0.03,
			tpPct:      0.08,
			expected:   0.03,
		},
		{
			name:       "zero brackets fall back to historical win loss ratio",
			confidence: 0.75,
			slPct:      0,
			tpPct:      0,
			expected:   0.09609375, // defaults give the same b = 0.08/0.03
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, s.KellyFraction(tt.confidence, tt.slPct, tt.tpPct), 1e-9)
		})
	}
}

func TestRecalibrate(t *testing.T) {
	t.Run("fewer than ten trades keeps defaults", func(t *testing.T) {
		s := newTestSizer()
		changes := s.Recalibrate([]float64{0.05, -0.02, 0.03})

		assert.Empty(t, changes)
		assert.InDelta(t, defaultWinRate, s.WinRate(), 1e-9)
	})

	t.Run("enough trades recomputes inputs", func(t *testing.T) {
		s := newTestSizer()
		pnls := []float64{0.10, 0.10, 0.10, 0.10, 0.10, 0.10, -0.05, -0.05, -0.05, -0.05}
		changes := s.Recalibrate(pnls)

		assert.InDelta(t, 0.6, s.WinRate(), 1e-9)
		assert.InDelta(t, 0.10, s.avgWin, 1e-9)
		assert.InDelta(t, 0.05, s.avgLoss, 1e-9)

		names := make([]string, 0, len(changes))
		for _, c := range changes {
			names = append(names, c.Name)
		}
		assert.ElementsMatch(t, []string{"win_rate", "avg_win", "avg_loss"}, names)
	})

	t.Run("all winners keeps default loss", func(t *testing.T) {
		s := newTestSizer()
		pnls := make([]float64, 10)
		for i := range pnls {
			pnls[i] = 0.04
		}
		s.Recalibrate(pnls)

		assert.InDelta(t, 1.0, s.WinRate(), 1e-9)
		assert.InDelta(t, defaultAvgLoss, s.avgLoss, 1e-9)
	})
}

func TestPositionValue(t *testing.T) {
	portfolio := domain.Portfolio{Cash: 10000, PortfolioValue: 10000}

	t.Run("dynamic signal uses kelly fraction", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewMomentumSignal("AAPL", 100, 97, 108, 0.75, "test")

		sizing := s.PositionValue(signal, portfolio)

		assert.InDelta(t, 960.9375, sizing.Value, 1e-6)
		assert.Contains(t, sizing.Reason, "half-Kelly")
	})

	t.Run("cash cap limits size", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewMomentumSignal("AAPL", 100, 97, 108, 1.0, "test")
		low := domain.Portfolio{Cash: 500, PortfolioValue: 10000}

		sizing := s.PositionValue(signal, low)

		assert.InDelta(t, 475, sizing.Value, 1e-9) // 500 * 0.95
		assert.Contains(t, sizing.Reason, "capped by available cash")
	})

	t.Run("rebalance signal uses allocation gap", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewRebalanceSignal("VTI", 250, 1500, 1100)

		sizing := s.PositionValue(signal, portfolio)

		assert.InDelta(t, 400, sizing.Value, 1e-9)
		assert.Contains(t, sizing.Reason, "rebalance gap")
	})
}

func TestSize(t *testing.T) {
	portfolio := domain.Portfolio{Cash: 10000, PortfolioValue: 10000}

	t.Run("dynamic orders floor to whole shares", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewMomentumSignal("AAPL", 150, 145.5, 162, 0.75, "test")

		sizing, err := s.Size(signal, portfolio)

		require.NoError(t, err)
		assert.Equal(t, 6.0, sizing.Quantity) // 960.94 / 150 = 6.4 -> 6
		assert.InDelta(t, 900, sizing.Value, 1e-9)
	})

	t.Run("minimum one share when affordable", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewMomentumSignal("NVDA", 900, 873, 972, 0.75, "test")

		sizing, err := s.Size(signal, portfolio)

		require.NoError(t, err)
		assert.Equal(t, 1.0, sizing.Quantity)
	})

	t.Run("unaffordable single share errors", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewMomentumSignal("NVDA", 900, 873, 972, 0.75, "test")
		broke := domain.Portfolio{Cash: 600, PortfolioValue: 10000}

		_, err := s.Size(signal, broke)

		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds available cash")
	})

	t.Run("rebalance orders use fractional quantity", func(t *testing.T) {
		s := newTestSizer()
		signal := domain.NewRebalanceSignal("VTI", 250, 1500, 1100)

		sizing, err := s.Size(signal, portfolio)

		require.NoError(t, err)
		assert.InDelta(t, 1.6, sizing.Quantity, 1e-9) // 400 / 250
	})
}
