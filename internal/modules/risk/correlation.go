package risk

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gonum.org/v1/gonum/stat"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/universe"
)

const (
	// minOverlapForCorrelation is the fewest overlapping daily closes two
	// series must share before a correlation is considered meaningful
	minOverlapForCorrelation = 30

	// minPositionsForCorrelation: with fewer held positions there is nothing
	// meaningful to correlate against
	minPositionsForCorrelation = 2

	// assumedCandidateShares estimates the candidate's dollar footprint for
	// the sector check before final sizing has run. Concentration is
	// evaluated pre-sizing; the sizer's 15% cap keeps the post-sizing value
	// inside the headroom this estimate guarantees.
	assumedCandidateShares = 10
)

// Verdict is the outcome of a correlation/sector admission check. A skipped
// correlation check still approves, but is distinguishable from a clean
// approval via CorrelationSkipped and the Reason text.
type Verdict struct {
	Approved           bool
	Reason             string
	CorrelationSkipped bool
}

// CorrelationMonitor approves or rejects candidate tickers based on sector
// concentration and pairwise price correlation with held positions. Price
// history failures are recoverable: the monitor fails open rather than
// blocking trading on a data-provider outage.
type CorrelationMonitor struct {
	history      domain.PriceHistoryProvider
	limits       Limits
	lookbackDays int
	log          zerolog.Logger
}

// NewCorrelationMonitor creates a new correlation monitor. lookbackDays <= 0
// selects the default 90-day window.
func NewCorrelationMonitor(history domain.PriceHistoryProvider, limits Limits, lookbackDays int, log zerolog.Logger) *CorrelationMonitor {
	if lookbackDays <= 0 {
		lookbackDays = 90
	}
	return &CorrelationMonitor{
		history:      history,
		limits:       limits,
		lookbackDays: lookbackDays,
		log:          log.With().Str("service", "correlation_monitor").Logger(),
	}
}

// Check evaluates whether admitting the signal would violate sector
// concentration or correlation rules given the current positions.
func (m *CorrelationMonitor) Check(ctx context.Context, signal domain.Signal, positions []domain.Position, portfolioValue float64) Verdict {
	// No held positions means no concentration risk yet
	if len(positions) == 0 {
		return Verdict{Approved: true}
	}

	if reason, ok := m.checkSectorConcentration(signal, positions, portfolioValue); !ok {
		m.log.Warn().Str("ticker", signal.Ticker).Str("reason", reason).Msg("Signal rejected")
		return Verdict{Approved: false, Reason: reason}
	}

	if len(positions) >= minPositionsForCorrelation {
		return m.checkCorrelation(ctx, signal.Ticker, positions)
	}

	return Verdict{Approved: true}
}

// checkSectorConcentration sums market value per sector, adds the candidate's
// estimated footprint to its sector, and rejects if any sector would exceed
// the allocation cap.
func (m *CorrelationMonitor) checkSectorConcentration(signal domain.Signal, positions []domain.Position, portfolioValue float64) (string, bool) {
	if portfolioValue <= 0 {
		return "", true
	}

	sectorValues := make(map[string]float64)
	for _, pos := range positions {
		sectorValues[universe.SectorFor(pos.Symbol)] += pos.MarketValue
	}
	candidateSector := universe.SectorFor(signal.Ticker)
	sectorValues[candidateSector] += signal.EntryPrice * assumedCandidateShares

	for sector, value := range sectorValues {
		allocation := value / portfolioValue
		if allocation > m.limits.MaxSectorAllocation {
			return fmt.Sprintf(
				"sector concentration limit: %s would be %.1f%% (max %.0f%%)",
				sector, allocation*100, m.limits.MaxSectorAllocation*100,
			), false
		}
	}
	return "", true
}

// checkCorrelation compares the candidate's trailing closes against each held
// ticker. Unavailable or thin history skips the affected comparison instead
// of rejecting.
func (m *CorrelationMonitor) checkCorrelation(ctx context.Context, ticker string, positions []domain.Position) Verdict {
	candidate, err := m.history.DailyCloses(ctx, ticker, m.lookbackDays)
	if err != nil {
		if !errors.Is(err, domain.ErrDataUnavailable) {
			m.log.Error().Err(err).Str("ticker", ticker).Msg("Price history fetch failed")
		} else {
			m.log.Warn().Err(err).Str("ticker", ticker).Msg("Price history unavailable, skipping correlation check")
		}
		return Verdict{
			Approved:           true,
			Reason:             fmt.Sprintf("correlation check skipped: no price history for %s", ticker),
			CorrelationSkipped: true,
		}
	}
	if len(candidate) < minOverlapForCorrelation {
		m.log.Warn().Str("ticker", ticker).Int("points", len(candidate)).Msg("Insufficient price history, skipping correlation check")
		return Verdict{
			Approved:           true,
			Reason:             fmt.Sprintf("correlation check skipped: only %d observations for %s", len(candidate), ticker),
			CorrelationSkipped: true,
		}
	}

	skippedAny := false
	for _, pos := range positions {
		held, err := m.history.DailyCloses(ctx, pos.Symbol, m.lookbackDays)
		if err != nil || len(held) < minOverlapForCorrelation {
			skippedAny = true
			continue
		}

		corr, ok := pairwiseCorrelation(candidate, held)
		if !ok {
			skippedAny = true
			continue
		}

		if abs(corr) > m.limits.MaxCorrelation {
			reason := fmt.Sprintf(
				"high correlation with %s: %.2f (max %.2f)",
				pos.Symbol, corr, m.limits.MaxCorrelation,
			)
			m.log.Warn().Str("ticker", ticker).Str("reason", reason).Msg("Signal rejected")
			return Verdict{Approved: false, Reason: reason}
		}
	}

	if skippedAny {
		return Verdict{
			Approved:           true,
			Reason:             "correlation check partially skipped: thin history for some held positions",
			CorrelationSkipped: true,
		}
	}
	return Verdict{Approved: true}
}

// pairwiseCorrelation computes the Pearson correlation of two daily close
// series over their overlapping dates. Returns ok=false when fewer than 30
// observations overlap.
func pairwiseCorrelation(a, b []domain.Candle) (float64, bool) {
	byDay := make(map[string]float64, len(b))
	for _, c := range b {
		byDay[c.Date.Format("2006-01-02")] = c.Close
	}

	var xs, ys []float64
	for _, c := range a {
		if y, ok := byDay[c.Date.Format("2006-01-02")]; ok {
			xs = append(xs, c.Close)
			ys = append(ys, y)
		}
	}
	if len(xs) < minOverlapForCorrelation {
		return 0, false
	}
	return stat.Correlation(xs, ys, nil), true
}

// SectorAllocations returns the current sector -> portfolio-fraction map.
// Exposed for the status API.
func (m *CorrelationMonitor) SectorAllocations(positions []domain.Position, portfolioValue float64) map[string]float64 {
	allocations := make(map[string]float64)
	if portfolioValue <= 0 {
		return allocations
	}
	for _, pos := range positions {
		allocations[universe.SectorFor(pos.Symbol)] += pos.MarketValue / portfolioValue
	}
	return allocations
}

// Lookback returns the trailing window used for correlation history
func (m *CorrelationMonitor) Lookback() time.Duration {
	return time.Duration(m.lookbackDays) * 24 * time.Hour
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
