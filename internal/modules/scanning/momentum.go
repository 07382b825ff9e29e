// Package scanning holds the signal producers that propose entries (the
// momentum scanner) and the exit evaluator that decides when held positions
// should be closed.
package scanning

import (
	"context"
	"errors"
	"fmt"

	"github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"github.com/quantfold/helmsman/internal/config"
	"github.com/quantfold/helmsman/internal/domain"
	"github.com/quantfold/helmsman/internal/modules/universe"
)

const (
	// scanLookbackDays gives the MACD(12,26,9) stack enough history to
	// stabilize before the most recent bar is read
	scanLookbackDays = 90

	// minCandlesForScan: below this the indicator tail is still warming up
	minCandlesForScan = 60

	rsiPeriod       = 14
	smaPeriod       = 20
	volumeAvgPeriod = 20

	macdFast   = 12
	macdSlow   = 26
	macdSignal = 9
)

// MomentumScanner proposes entries for watchlist tickers whose technicals
// line up: RSI inside the entry window, positive MACD histogram, price above
// the 20-day average, and volume running hot. Implements
// domain.SignalProducer.
type MomentumScanner struct {
	history domain.PriceHistoryProvider
	params  config.StrategyParams
	tickers []string
	log     zerolog.Logger
}

// NewMomentumScanner creates a scanner over the given watchlist. A nil or
// empty ticker list scans the full universe watchlist.
func NewMomentumScanner(history domain.PriceHistoryProvider, params config.StrategyParams, tickers []string, log zerolog.Logger) *MomentumScanner {
	if len(tickers) == 0 {
		tickers = universe.Watchlist()
	}
	return &MomentumScanner{
		history: history,
		params:  params,
		tickers: tickers,
		log:     log.With().Str("service", "momentum_scanner").Logger(),
	}
}

// Name implements domain.SignalProducer
func (s *MomentumScanner) Name() string { return "momentum" }

// Scan evaluates every watchlist ticker and returns the ones whose
// technicals qualify. A ticker whose history is unavailable is skipped; the
// scan itself only fails when the context is cancelled.
func (s *MomentumScanner) Scan(ctx context.Context) ([]domain.Signal, error) {
	var signals []domain.Signal
	for _, ticker := range s.tickers {
		if err := ctx.Err(); err != nil {
			return signals, err
		}

		candles, err := s.history.DailyCloses(ctx, ticker, scanLookbackDays)
		if err != nil {
			if errors.Is(err, domain.ErrDataUnavailable) {
				s.log.Warn().Str("ticker", ticker).Msg("No price history, skipping")
				continue
			}
			s.log.Error().Err(err).Str("ticker", ticker).Msg("History fetch failed, skipping")
			continue
		}

		sig, ok := s.evaluate(ticker, candles)
		if !ok {
			continue
		}
		signals = append(signals, sig)
	}

	s.log.Info().
		Int("scanned", len(s.tickers)).
		Int("signals", len(signals)).
		Msg("Momentum scan complete")
	return signals, nil
}

// evaluate applies the entry conditions to one ticker's trailing candles
func (s *MomentumScanner) evaluate(ticker string, candles []domain.Candle) (domain.Signal, bool) {
	if len(candles) < minCandlesForScan {
		return domain.Signal{}, false
	}

	closes := make([]float64, len(candles))
	volumes := make([]float64, len(candles))
	for i, c := range candles {
		closes[i] = c.Close
		volumes[i] = c.Volume
	}
	last := len(closes) - 1
	price := closes[last]

	rsi := talib.Rsi(closes, rsiPeriod)[last]
	if rsi < s.params.RSILower || rsi > s.params.RSIUpper {
		return domain.Signal{}, false
	}

	_, _, hist := talib.Macd(closes, macdFast, macdSlow, macdSignal)
	macdHist := hist[last]
	if macdHist <= s.params.MACDThreshold {
		return domain.Signal{}, false
	}

	sma := talib.Sma(closes, smaPeriod)[last]
	if price <= sma {
		return domain.Signal{}, false
	}

	volumeRatio := currentVolumeRatio(volumes)
	if volumeRatio < s.params.VolumeRatio {
		return domain.Signal{}, false
	}

	confidence := s.confidence(rsi, price, sma, volumeRatio)
	stopLoss := price * (1 - s.params.StopLossPct)
	takeProfit := price * (1 + s.params.TakeProfitPct)
	reason := fmt.Sprintf(
		"RSI %.1f, MACD hist %.3f, price %.1f%% above SMA%d, volume %.2fx",
		rsi, macdHist, (price/sma-1)*100, smaPeriod, volumeRatio,
	)

	s.log.Info().
		Str("ticker", ticker).
		Float64("confidence", confidence).
		Str("reason", reason).
		Msg("Momentum entry signal")

	return domain.NewMomentumSignal(ticker, price, stopLoss, takeProfit, confidence, reason), true
}

// confidence blends the strength of each qualifying condition into [0.5, 0.95].
// Every emitted signal already passed the hard filters; this ranks them.
func (s *MomentumScanner) confidence(rsi, price, sma, volumeRatio float64) float64 {
	score := 0.5

	// RSI nearest the center of the entry window is the cleanest setup
	center := (s.params.RSILower + s.params.RSIUpper) / 2
	halfWidth := (s.params.RSIUpper - s.params.RSILower) / 2
	if halfWidth > 0 {
		score += 0.15 * (1 - absFloat(rsi-center)/halfWidth)
	}

	// Price extension above the 20-day average, capped at 5%
	extension := (price/sma - 1) / 0.05
	if extension > 1 {
		extension = 1
	}
	score += 0.15 * extension

	// Volume surge, capped at 2x the filter threshold
	surge := (volumeRatio/s.params.VolumeRatio - 1)
	if surge > 1 {
		surge = 1
	}
	score += 0.15 * surge

	if score > 0.95 {
		score = 0.95
	}
	return score
}

// currentVolumeRatio compares the latest bar's volume to its trailing
// 20-day average. Zero-volume data (cache entries from providers that do not
// report volume) yields 0, which fails the filter rather than passing it.
func currentVolumeRatio(volumes []float64) float64 {
	last := len(volumes) - 1
	if last < volumeAvgPeriod {
		return 0
	}
	var sum float64
	for _, v := range volumes[last-volumeAvgPeriod : last] {
		sum += v
	}
	avg := sum / volumeAvgPeriod
	if avg <= 0 {
		return 0
	}
	return volumes[last] / avg
}

func absFloat(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
