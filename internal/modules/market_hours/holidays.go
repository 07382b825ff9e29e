package market_hours

import "time"

// calculateEaster calculates Easter Sunday (Gregorian) using the computus
// method.
func calculateEaster(year int) time.Time {
	a := year % 19
	b := year / 100
	c := year % 100
	d := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - d - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	m := (a + 11*h + 22*l) / 451

	month := (h + l - 7*m + 114) / 31
	day := ((h + l - 7*m + 114) % 31) + 1

	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// goodFriday is two days before Easter Sunday
func goodFriday(year int) time.Time {
	return calculateEaster(year).AddDate(0, 0, -2)
}

// findNthWeekday finds the nth occurrence of a weekday in a given month/year
func findNthWeekday(year int, month time.Month, weekday time.Weekday, n int) time.Time {
	date := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	daysToAdd := int(weekday - date.Weekday())
	if daysToAdd < 0 {
		daysToAdd += 7
	}
	return date.AddDate(0, 0, daysToAdd+(n-1)*7)
}

// findLastWeekday finds the last occurrence of a weekday in a given month/year
func findLastWeekday(year int, month time.Month, weekday time.Weekday) time.Time {
	date := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	daysToSubtract := int(date.Weekday() - weekday)
	if daysToSubtract < 0 {
		daysToSubtract += 7
	}
	return date.AddDate(0, 0, -daysToSubtract)
}

// observeOnWeekday moves a date to the nearest weekday if it falls on a weekend
// Saturday -> Friday, Sunday -> Monday
func observeOnWeekday(date time.Time) time.Time {
	switch date.Weekday() {
	case time.Saturday:
		return date.AddDate(0, 0, -1)
	case time.Sunday:
		return date.AddDate(0, 0, 1)
	default:
		return date
	}
}

// usMarketHolidays calculates all NYSE holidays for a given year
func usMarketHolidays(year int) []time.Time {
	holidays := make([]time.Time, 0, 10)

	// New Year's Day - Jan 1 (observed on nearest weekday)
	holidays = append(holidays, observeOnWeekday(time.Date(year, 1, 1, 0, 0, 0, 0, time.UTC)))

	// Martin Luther King Jr. Day - 3rd Monday in January
	holidays = append(holidays, findNthWeekday(year, time.January, time.Monday, 3))

	// Presidents Day - 3rd Monday in February
	holidays = append(holidays, findNthWeekday(year, time.February, time.Monday, 3))

	// Good Friday
	holidays = append(holidays, goodFriday(year))

	// Memorial Day - Last Monday in May
	holidays = append(holidays, findLastWeekday(year, time.May, time.Monday))

	// Juneteenth - June 19 (observed)
	holidays = append(holidays, observeOnWeekday(time.Date(year, 6, 19, 0, 0, 0, 0, time.UTC)))

	// Independence Day - July 4 (observed)
	holidays = append(holidays, observeOnWeekday(time.Date(year, 7, 4, 0, 0, 0, 0, time.UTC)))

	// Labor Day - 1st Monday in September
	holidays = append(holidays, findNthWeekday(year, time.September, time.Monday, 1))

	// Thanksgiving - 4th Thursday in November
	holidays = append(holidays, findNthWeekday(year, time.November, time.Thursday, 4))

	// Christmas - Dec 25 (observed)
	holidays = append(holidays, observeOnWeekday(time.Date(year, 12, 25, 0, 0, 0, 0, time.UTC)))

	return holidays
}
