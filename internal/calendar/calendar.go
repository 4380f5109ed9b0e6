package calendar

import (
	"sort"
	"time"
)

// Symbol classes driving expiration selection. SPX and its tracking ETFs
// trade same-day and weekly expirations; VIX follows a Wednesday cycle.
var (
	sameDayWeeklySymbols = map[string]bool{"SPX": true, "SPXW": true, "SPY": true, "QQQ": true}
	volatilitySymbols    = map[string]bool{"VIX": true}
)

// vixSearchHorizonDays bounds the day-by-day scan for the next VIX expiration.
const vixSearchHorizonDays = 45

// DateSet is a set of calendar days, normalized to midnight UTC.
type DateSet map[time.Time]bool

// NewDateSet builds a set from the given days.
func NewDateSet(days ...time.Time) DateSet {
	s := make(DateSet, len(days))
	for _, d := range days {
		s[Midnight(d)] = true
	}
	return s
}

// Add inserts a day into the set.
func (s DateSet) Add(d time.Time) { s[Midnight(d)] = true }

// Has reports whether the day is in the set.
func (s DateSet) Has(d time.Time) bool { return s[Midnight(d)] }

// Midnight truncates a time to its calendar day in UTC.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// weekday returns the day of week with Monday = 0 .. Sunday = 6.
func weekday(t time.Time) int {
	return (int(t.Weekday()) + 6) % 7
}

// IsWeekday reports whether the day falls on Monday through Friday.
func IsWeekday(t time.Time) bool { return weekday(t) < 5 }

// WednesdayOfWeek returns the Wednesday of the week containing current.
// Weeks run Monday through Sunday.
func WednesdayOfWeek(current time.Time) time.Time {
	return Midnight(current).AddDate(0, 0, 2-weekday(current))
}

// LastTradingDayOfWeek finds the latest weekday of the current week, at or
// before Friday, that is not a closed date. It scans backward from Friday
// through Monday and reports false only when every weekday is closed.
func LastTradingDayOfWeek(current time.Time, closed DateSet) (time.Time, bool) {
	friday := Midnight(current).AddDate(0, 0, 4-weekday(current))
	for candidate := friday; !candidate.Before(friday.AddDate(0, 0, -4)); candidate = candidate.AddDate(0, 0, -1) {
		if IsWeekday(candidate) && !closed.Has(candidate) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// NextExpirationAfter finds the first available expiration strictly after
// current, scanning day by day up to the search horizon.
func NextExpirationAfter(current time.Time, available DateSet) (time.Time, bool) {
	candidate := Midnight(current).AddDate(0, 0, 1)
	for i := 0; i < vixSearchHorizonDays; i++ {
		if available.Has(candidate) {
			return candidate, true
		}
		candidate = candidate.AddDate(0, 0, 1)
	}
	return time.Time{}, false
}

// SelectTargets picks the expirations worth fetching for a symbol on a given
// day. The result is sorted ascending, deduplicated, and always a subset of
// the available expirations. Unrecognized symbols yield no targets.
func SelectTargets(symbol string, current time.Time, available []time.Time, closed DateSet) []time.Time {
	current = Midnight(current)
	avail := NewDateSet(available...)
	targets := make(DateSet)

	switch {
	case sameDayWeeklySymbols[symbol]:
		if avail.Has(current) {
			targets.Add(current)
		}
		if weekly, ok := LastTradingDayOfWeek(current, closed); ok && !weekly.Equal(current) && avail.Has(weekly) {
			targets.Add(weekly)
		}

	case volatilitySymbols[symbol]:
		wed := WednesdayOfWeek(current)
		if wd := weekday(current); wd == 0 || wd == 1 {
			if avail.Has(wed) && !closed.Has(wed) {
				targets.Add(wed)
			} else if next, ok := NextExpirationAfter(current, avail); ok {
				targets.Add(next)
			}
		} else if next, ok := NextExpirationAfter(current, avail); ok {
			targets.Add(next)
		}
	}

	out := make([]time.Time, 0, len(targets))
	for d := range targets {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
