package risk

// ShouldHaltTrading is the daily-loss circuit breaker. Pure function: returns
// true when the day's loss reaches the configured fraction of portfolio
// value (losses are negative PnL). Triggering stops new entries for the rest
// of the trading day; it never force-closes existing positions. Exits and
// analysis still run.
//
// The threshold is inclusive: a loss of exactly the limit trips the breaker.
func ShouldHaltTrading(dailyPnL, portfolioValue float64, limits Limits) bool {
	if portfolioValue <= 0 {
		return false
	}
	return dailyPnL/portfolioValue <= -limits.DailyLossLimitPct
}
