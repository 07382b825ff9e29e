package risk

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantfold/helmsman/internal/domain"
)

func newTestFilter(history domain.PriceHistoryProvider) *FilterPipeline {
	limits := DefaultLimits()
	monitor := NewCorrelationMonitor(history, limits, 90, zerolog.Nop())
	return NewFilterPipeline(monitor, limits, zerolog.Nop())
}

func momentum(ticker string, confidence float64) domain.Signal {
	return domain.NewMomentumSignal(ticker, 100, 97, 108, confidence, "test")
}

func TestFilter_SortsByConfidenceDescending(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	candidates := []domain.Signal{
		momentum("XOM", 0.6),
		momentum("JPM", 0.9),
		momentum("UNH", 0.75),
	}

	result := f.Filter(context.Background(), candidates, nil, 10000)

	require.Len(t, result.Admitted, 3)
	assert.Equal(t, "JPM", result.Admitted[0].Ticker)
	assert.Equal(t, "UNH", result.Admitted[1].Ticker)
	assert.Equal(t, "XOM", result.Admitted[2].Ticker)
}

func TestFilter_NeverExceedsAvailableSlots(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	positions := []domain.Position{
		{Symbol: "AAPL", MarketValue: 500},
		{Symbol: "JPM", MarketValue: 500},
		{Symbol: "XOM", MarketValue: 500},
	}
	candidates := []domain.Signal{
		momentum("UNH", 0.9),
		momentum("CVX", 0.8),
		momentum("WMT", 0.7),
		momentum("DIS", 0.6),
	}

	result := f.Filter(context.Background(), candidates, positions, 100000)

	assert.Len(t, result.Admitted, 2) // 5 max - 3 active
	assert.Len(t, result.Rejections, 2)
	for _, rej := range result.Rejections {
		assert.Equal(t, "no position slots remaining", rej.Reason)
	}
}

func TestFilter_PositionCapReturnsEmpty(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	positions := []domain.Position{
		{Symbol: "AAPL"}, {Symbol: "JPM"}, {Symbol: "XOM"},
		{Symbol: "UNH"}, {Symbol: "WMT"},
	}
	candidates := []domain.Signal{momentum("CVX", 0.95)}

	result := f.Filter(context.Background(), candidates, positions, 100000)

	assert.Empty(t, result.Admitted)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "position cap reached", result.Rejections[0].Reason)
}

func TestFilter_DefensiveHoldingsDoNotConsumeSlots(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	positions := []domain.Position{
		{Symbol: "VTI"}, {Symbol: "VGK"}, {Symbol: "GLD"},
		{Symbol: "AAPL"}, {Symbol: "JPM"},
	}
	candidates := []domain.Signal{momentum("XOM", 0.8)}

	result := f.Filter(context.Background(), candidates, positions, 100000)

	assert.Len(t, result.Admitted, 1)
}

func TestFilter_RejectsInvalidSignals(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	bad := momentum("CVX", 0.8)
	bad.EntryPrice = 0

	result := f.Filter(context.Background(), []domain.Signal{bad, momentum("JPM", 0.7)}, nil, 10000)

	assert.Len(t, result.Admitted, 1)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "CVX", result.Rejections[0].Signal.Ticker)
}

func TestFilter_SkipsAlreadyHeldTickers(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	positions := []domain.Position{{Symbol: "JPM", MarketValue: 1000}}

	result := f.Filter(context.Background(), []domain.Signal{momentum("JPM", 0.9)}, positions, 100000)

	assert.Empty(t, result.Admitted)
	require.Len(t, result.Rejections, 1)
	assert.Equal(t, "already holding position", result.Rejections[0].Reason)
}

func TestFilter_MonitorRejectionPropagatesReason(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	// Technology already dominant; another tech name must carry the monitor's
	// sector reason through the pipeline.
	positions := []domain.Position{
		{Symbol: "AAPL", MarketValue: 1850},
		{Symbol: "MSFT", MarketValue: 3900},
	}

	result := f.Filter(context.Background(), []domain.Signal{momentum("NVDA", 0.9)}, positions, 10000)

	assert.Empty(t, result.Admitted)
	require.Len(t, result.Rejections, 1)
	assert.Contains(t, result.Rejections[0].Reason, "Technology")
}

func TestFilter_StableOrderOnEqualConfidence(t *testing.T) {
	f := newTestFilter(&stubHistory{})
	candidates := []domain.Signal{
		momentum("JPM", 0.8),
		momentum("XOM", 0.8),
	}

	result := f.Filter(context.Background(), candidates, nil, 10000)

	require.Len(t, result.Admitted, 2)
	assert.Equal(t, "JPM", result.Admitted[0].Ticker)
	assert.Equal(t, "XOM", result.Admitted[1].Ticker)
}
