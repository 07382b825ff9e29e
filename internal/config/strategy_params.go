package config

// StrategyParams is an immutable, versioned set of momentum-strategy tuning
// values. A params value is passed into each orchestration cycle; updates
// produce a new value with a bumped version instead of mutating shared state,
// so concurrent readers and tests never observe partial changes.
type StrategyParams struct {
	Version       int
	RSILower      float64 // Entry window lower bound
	RSIUpper      float64 // Entry window upper bound
	RSIExit       float64 // Overbought exit threshold
	StopLossPct   float64 // Bracket stop distance, fraction of entry
	TakeProfitPct float64 // Bracket target distance, fraction of entry
	VolumeRatio   float64 // Minimum volume vs 20-day average
	MACDThreshold float64 // Histogram must exceed this to qualify
}

// DefaultStrategyParams returns version 1 of the momentum tuning values
func DefaultStrategyParams() StrategyParams {
	return StrategyParams{
		Version:       1,
		RSILower:      45,
		RSIUpper:      75,
		RSIExit:       75,
		StopLossPct:   0.03,
		TakeProfitPct: 0.08,
		VolumeRatio:   1.1,
		MACDThreshold: 0.0,
	}
}

// WithRSIWindow returns a copy with a new RSI entry window and bumped version
func (p StrategyParams) WithRSIWindow(lower, upper float64) StrategyParams {
	p.RSILower = lower
	p.RSIUpper = upper
	p.Version++
	return p
}

// WithBrackets returns a copy with new stop/target distances and bumped version
func (p StrategyParams) WithBrackets(stopLossPct, takeProfitPct float64) StrategyParams {
	p.StopLossPct = stopLossPct
	p.TakeProfitPct = takeProfitPct
	p.Version++
	return p
}

// WithVolumeRatio returns a copy with a new volume filter and bumped version
func (p StrategyParams) WithVolumeRatio(ratio float64) StrategyParams {
	p.VolumeRatio = ratio
	p.Version++
	return p
}
