package calendar

import "time"

// Calendar holds the full-market-closure days for a run. Immutable once
// loaded.
type Calendar struct {
	closed DateSet
}

// New builds a trading calendar from full-closure days.
func New(closedDays []time.Time) *Calendar {
	return &Calendar{closed: NewDateSet(closedDays...)}
}

// ClosedDates exposes the closure set for expiration selection.
func (c *Calendar) ClosedDates() DateSet { return c.closed }

// IsTradingDay reports whether the day is a weekday outside the closure set.
func (c *Calendar) IsTradingDay(d time.Time) bool {
	d = Midnight(d)
	return IsWeekday(d) && !c.closed.Has(d)
}

// TradingDays enumerates the trading days in [start, end], ascending.
func (c *Calendar) TradingDays(start, end time.Time) []time.Time {
	var days []time.Time
	for d := Midnight(start); !d.After(Midnight(end)); d = d.AddDate(0, 0, 1) {
		if c.IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}
