package reminder

import (
	"slices"
	"time"
)

// EasterSunday returns Easter Sunday of year (Gregorian, anonymous algorithm)
// at midnight UTC.
func EasterSunday(year int) time.Time {
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
	day := (h+l-7*m+114)%31 + 1
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

// Holiday is a Danish public holiday on which no reminder is sent.
type Holiday struct {
	Date time.Time
	Name string
}

// Holidays lists the holidays of year in date order.
func Holidays(year int) []Holiday {
	easter := EasterSunday(year)
	fixed := func(month time.Month, day int) time.Time {
		return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	}
	hs := []Holiday{
		{fixed(time.January, 1), "Nytårsdag"},
		{easter.AddDate(0, 0, -3), "Skærtorsdag"},
		{easter.AddDate(0, 0, -2), "Langfredag"},
		{easter.AddDate(0, 0, 1), "2. påskedag"},
		{fixed(time.May, 1), "1. maj"},
		{easter.AddDate(0, 0, 39), "Kristi himmelfartsdag"},
		{easter.AddDate(0, 0, 49), "Pinsedag"},
		{easter.AddDate(0, 0, 50), "2. pinsedag"},
		{fixed(time.June, 5), "Grundlovsdag"},
		{fixed(time.December, 24), "Juleaftensdag"},
		{fixed(time.December, 25), "1. juledag"},
		{fixed(time.December, 26), "2. juledag"},
	}
	slices.SortStableFunc(hs, func(a, b Holiday) int { return a.Date.Compare(b.Date) })
	return hs
}

// HolidayOn returns the holiday falling on the calendar date of t, if any.
func HolidayOn(t time.Time) (Holiday, bool) {
	y, m, d := t.Date()
	for _, h := range Holidays(y) {
		hy, hm, hd := h.Date.Date()
		if hy == y && hm == m && hd == d {
			return h, true
		}
	}
	return Holiday{}, false
}

// IsWorkday reports whether the calendar date of t is neither a weekend day
// nor a holiday.
func IsWorkday(t time.Time) bool {
	switch t.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, holiday := HolidayOn(t)
	return !holiday
}
