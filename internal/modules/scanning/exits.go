package scanning

import (
	"context"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/config"
	"github.com/quantfold/helmsman/internal/domain"
)

// ExitDecision is the evaluator's answer for one held position
type ExitDecision struct {
	ShouldExit bool
	Reason     string
}

// ExitEvaluator decides when a held position should be closed: stop loss,
// take profit, or a technical reversal (overbought RSI or a MACD histogram
// flip). Bracket legs at the broker normally fire first; this evaluator is
// the backstop for positions whose brackets were rejected or cancelled.
type ExitEvaluator struct {
	history domain.PriceHistoryProvider
	params  config.StrategyParams
	log     zerolog.Logger
}

// NewExitEvaluator creates an exit evaluator
func NewExitEvaluator(history domain.PriceHistoryProvider, params config.StrategyParams, log zerolog.Logger) *ExitEvaluator {
	return &ExitEvaluator{
		history: history,
		params:  params,
		log:     log.With().Str("service", "exit_evaluator").Logger(),
	}
}

// Evaluate checks one position against the exit conditions. Price-level
// checks run first and need no history; the technical check is skipped when
// history is unavailable.
func (e *ExitEvaluator) Evaluate(ctx context.Context, pos domain.Position) ExitDecision {
	if pos.AvgEntryPrice <= 0 || pos.CurrentPrice <= 0 {
		return ExitDecision{}
	}

	plPct := pos.CurrentPrice/pos.AvgEntryPrice - 1

	if plPct <= -e.params.StopLossPct {
		return ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("stop loss: %.2f%% below entry", -plPct*100),
		}
	}
	if plPct >= e.params.TakeProfitPct {
		return ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("take profit: %.2f%% above entry", plPct*100),
		}
	}

	return e.technicalExit(ctx, pos)
}

func (e *ExitEvaluator) technicalExit(ctx context.Context, pos domain.Position) ExitDecision {
	candles, err := e.history.DailyCloses(ctx, pos.Symbol, scanLookbackDays)
	if err != nil || len(candles) < minCandlesForScan {
		// Without history the price-level checks above are the only guard
		e.log.Warn().Str("symbol", pos.Symbol).Msg("No history for technical exit check")
		return ExitDecision{}
	}

	closes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
	}
	last := len(closes) - 1

	rsi := talib.Rsi(closes, rsiPeriod)[last]
	if rsi > e.params.RSIExit {
		return ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("overbought: RSI %.1f above %.0f", rsi, e.params.RSIExit),
		}
	}

	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	if hist[last] < 0 {
		return ExitDecision{
			ShouldExit: true,
			Reason:     fmt.Sprintf("momentum reversal: MACD histogram %.3f", hist[last]),
		}
	}

	return ExitDecision{}
}
