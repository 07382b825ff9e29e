// Package market_hours provides NYSE trading-calendar checks: session hours,
// holidays, early closes, and first-trading-day-of-month detection for the
// rebalancing trigger.
package market_hours

import (
	"time"
)

// Regular NYSE session: 9:30 - 16:00 Eastern. Early-close days end at 13:00.
const (
	openHour         = 9
	openMinute       = 30
	closeHour        = 16
	earlyCloseHour   = 13
	earlyCloseMinute = 0
)

// Service provides market hours checking functionality
type Service struct {
	location     *time.Location
	holidayCache map[int]map[string]bool // year -> set of YYYY-MM-DD
}

// NewService creates a new market hours service
func NewService() *Service {
	// America/New_York ships with the Go tzdata on all supported platforms;
	// fall back to a fixed offset only if the zone database is missing.
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		loc = time.FixedZone("ET", -5*60*60)
	}
	return &Service{
		location:     loc,
		holidayCache: make(map[int]map[string]bool),
	}
}

// IsMarketOpen checks if the NYSE is open for regular trading at time t
func (s *Service) IsMarketOpen(t time.Time) bool {
	et := t.In(s.location)

	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	if s.isHoliday(et) {
		return false
	}

	open := time.Date(et.Year(), et.Month(), et.Day(), openHour, openMinute, 0, 0, s.location)
	close := time.Date(et.Year(), et.Month(), et.Day(), closeHour, 0, 0, 0, s.location)
	if s.isEarlyClose(et) {
		close = time.Date(et.Year(), et.Month(), et.Day(), earlyCloseHour, earlyCloseMinute, 0, 0, s.location)
	}

	return !et.Before(open) && et.Before(close)
}

// IsTradingDay checks whether the given date is a regular NYSE session day
func (s *Service) IsTradingDay(date time.Time) bool {
	et := date.In(s.location)
	if et.Weekday() == time.Saturday || et.Weekday() == time.Sunday {
		return false
	}
	return !s.isHoliday(et)
}

// IsFirstTradingDayOfMonth reports whether date is the first session day of
// its month. Used as the monthly rebalancing trigger.
func (s *Service) IsFirstTradingDayOfMonth(date time.Time) bool {
	et := date.In(s.location)
	if !s.IsTradingDay(et) {
		return false
	}
	// No earlier day of the same month may be a trading day
	for d := 1; d < et.Day(); d++ {
		candidate := time.Date(et.Year(), et.Month(), d, 12, 0, 0, 0, s.location)
		if s.IsTradingDay(candidate) {
			return false
		}
	}
	return true
}

// isHoliday checks if a date is an NYSE holiday
func (s *Service) isHoliday(et time.Time) bool {
	year := et.Year()
	holidays, ok := s.holidayCache[year]
	if !ok {
		holidays = make(map[string]bool)
		for _, h := range usMarketHolidays(year) {
			holidays[h.Format("2006-01-02")] = true
		}
		s.holidayCache[year] = holidays
	}
	return holidays[et.Format("2006-01-02")]
}

// isEarlyClose reports the 13:00 ET half-days: July 3rd (when a weekday
// session), the day after Thanksgiving, and Christmas Eve (when a weekday
// session).
func (s *Service) isEarlyClose(et time.Time) bool {
	if et.Month() == time.July && et.Day() == 3 {
		return s.IsTradingDay(et)
	}
	if et.Month() == time.December && et.Day() == 24 {
		return s.IsTradingDay(et)
	}
	dayAfterThanksgiving := findNthWeekday(et.Year(), time.November, time.Thursday, 4).AddDate(0, 0, 1)
	return et.Month() == time.November && et.Day() == dayAfterThanksgiving.Day()
}
