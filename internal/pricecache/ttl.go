package pricecache

import "time"

// TTL constants for cached series.
const (
	// TTLDailyCloses - daily bars only change once per trading day
	TTLDailyCloses = 24 * time.Hour
)
