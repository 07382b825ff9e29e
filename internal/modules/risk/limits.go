// Package risk implements the risk-managed signal execution pipeline: the
// correlation/sector monitor, Kelly position sizing, the confidence-greedy
// signal filter, and the daily-loss circuit breaker.
package risk

// Limits is the immutable set of portfolio-wide risk bounds. A Limits value
// is constructed once and passed into every service that enforces a bound;
// there is no global mutable risk state.
type Limits struct {
	// MaxPositions caps concurrent active (non-defensive) positions
	MaxPositions int

	// MinPositionSizePct / MaxPositionSizePct bound the portfolio fraction a
	// single dynamic position may take
	MinPositionSizePct float64
	MaxPositionSizePct float64

	// MaxDailyRiskPct caps the portfolio fraction risked on any single trade
	MaxDailyRiskPct float64

	// DailyLossLimitPct is the circuit-breaker threshold: new entries halt
	// once the day's loss reaches this fraction of portfolio value
	DailyLossLimitPct float64

	// MaxCorrelation is the highest tolerated absolute pairwise correlation
	// between a candidate and any held position
	MaxCorrelation float64

	// MaxSectorAllocation caps a single sector's share of portfolio value
	MaxSectorAllocation float64

	// RebalanceDriftThreshold triggers defensive-core rebalancing when a
	// core symbol drifts this far from its target allocation
	RebalanceDriftThreshold float64
}

// DefaultLimits returns the hard-coded production risk bounds
func DefaultLimits() Limits {
	return Limits{
		MaxPositions:            5,
		MinPositionSizePct:      0.03,
		MaxPositionSizePct:      0.15,
		MaxDailyRiskPct:         0.02,
		DailyLossLimitPct:       0.03,
		MaxCorrelation:          0.7,
		MaxSectorAllocation:     0.40,
		RebalanceDriftThreshold: 0.05,
	}
}
