package risk

import (
	"context"
	"sort"

	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/universe"
)

// Rejection records why a candidate signal was not admitted this cycle
type Rejection struct {
	Signal domain.Signal
	Reason string
}

// FilterResult is the filter pipeline's output: the admitted signals in
// confidence order plus a record of every rejection.
type FilterResult struct {
	Admitted   []domain.Signal
	Rejections []Rejection
}

// FilterPipeline ranks candidate signals by confidence and greedily admits
// them into the remaining position slots, consulting the correlation monitor
// for each candidate. Defensive-core signals bypass the pipeline entirely;
// they are sized deterministically and never compete for slots.
type FilterPipeline struct {
	monitor *CorrelationMonitor
	limits  Limits
	log     zerolog.Logger
}

// NewFilterPipeline creates a filter over the given monitor and limits
func NewFilterPipeline(monitor *CorrelationMonitor, limits Limits, log zerolog.Logger) *FilterPipeline {
	return &FilterPipeline{
		monitor: monitor,
		limits:  limits,
		log:     log.With().Str("service", "filter_pipeline").Logger(),
	}
}

// Filter selects which candidate signals may proceed to sizing given the
// currently held positions. Structurally invalid signals are rejected first;
// then candidates are sorted by confidence (stable, so producer order breaks
// ties) and admitted greedily while slots and risk checks allow.
func (f *FilterPipeline) Filter(ctx context.Context, candidates []domain.Signal, positions []domain.Position, portfolioValue float64) FilterResult {
	var result FilterResult

	valid := make([]domain.Signal, 0, len(candidates))
	for _, sig := range candidates {
		if err := domain.ValidateSignal(sig); err != nil {
			f.log.Warn().Err(err).Str("ticker", sig.Ticker).Msg("Invalid signal rejected")
			result.Rejections = append(result.Rejections, Rejection{Signal: sig, Reason: err.Error()})
			continue
		}
		valid = append(valid, sig)
	}

	activeCount := f.countActivePositions(positions)
	slots := f.limits.MaxPositions - activeCount
	if slots <= 0 {
		f.log.Info().Int("active", activeCount).Msg("Position cap reached, no new entries this cycle")
		for _, sig := range valid {
			result.Rejections = append(result.Rejections, Rejection{Signal: sig, Reason: "position cap reached"})
		}
		return result
	}

	sort.SliceStable(valid, func(i, j int) bool {
		return valid[i].Confidence > valid[j].Confidence
	})

	held := make(map[string]bool, len(positions))
	for _, pos := range positions {
		held[pos.Symbol] = true
	}

	for _, sig := range valid {
		if len(result.Admitted) >= slots {
			result.Rejections = append(result.Rejections, Rejection{Signal: sig, Reason: "no position slots remaining"})
			continue
		}
		if held[sig.Ticker] {
			result.Rejections = append(result.Rejections, Rejection{Signal: sig, Reason: "already holding position"})
			continue
		}

		verdict := f.monitor.Check(ctx, sig, positions, portfolioValue)
		if !verdict.Approved {
			result.Rejections = append(result.Rejections, Rejection{Signal: sig, Reason: verdict.Reason})
			continue
		}
		if verdict.CorrelationSkipped {
			f.log.Warn().Str("ticker", sig.Ticker).Str("reason", verdict.Reason).Msg("Admitted with skipped correlation check")
		}

		result.Admitted = append(result.Admitted, sig)
		held[sig.Ticker] = true
	}

	f.log.Info().
		Int("candidates", len(candidates)).
		Int("admitted", len(result.Admitted)).
		Int("rejected", len(result.Rejections)).
		Msg("Signal filter complete")
	return result
}

// countActivePositions counts held positions that consume entry slots.
// Defensive-core holdings are permanent allocations, not trades.
func (f *FilterPipeline) countActivePositions(positions []domain.Position) int {
	count := 0
	for _, pos := range positions {
		if !universe.IsDefensive(pos.Symbol) {
			count++
		}
	}
	return count
}
