package calendar

import (
	"testing"
	"time"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameTargets(got []time.Time, want ...time.Time) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if !got[i].Equal(want[i]) {
			return false
		}
	}
	return true
}

func TestLastTradingDayOfWeek(t *testing.T) {
	// 2024-06-03 is a Monday, 2024-06-07 the Friday of that week.
	mon := day(2024, 6, 3)
	fri := day(2024, 6, 7)

	got, ok := LastTradingDayOfWeek(mon, NewDateSet())
	if !ok || !got.Equal(fri) {
		t.Fatalf("expected %v, got %v (ok=%v)", fri, got, ok)
	}

	// Friday closed: scan lands on Thursday.
	got, ok = LastTradingDayOfWeek(mon, NewDateSet(fri))
	if !ok || !got.Equal(day(2024, 6, 6)) {
		t.Fatalf("expected Thursday, got %v (ok=%v)", got, ok)
	}

	// Every weekday closed: no candidate, must not panic.
	closed := NewDateSet(day(2024, 6, 3), day(2024, 6, 4), day(2024, 6, 5), day(2024, 6, 6), fri)
	if _, ok := LastTradingDayOfWeek(mon, closed); ok {
		t.Fatal("expected no candidate when the whole week is closed")
	}
}

func TestLastTradingDayOfWeekFromSunday(t *testing.T) {
	// Sunday belongs to the week that ended two days before.
	sun := day(2024, 6, 9)
	got, ok := LastTradingDayOfWeek(sun, NewDateSet())
	if !ok || !got.Equal(day(2024, 6, 7)) {
		t.Fatalf("expected previous Friday, got %v (ok=%v)", got, ok)
	}
}

func TestWednesdayOfWeek(t *testing.T) {
	wed := day(2024, 6, 5)
	for _, d := range []time.Time{day(2024, 6, 3), wed, day(2024, 6, 7), day(2024, 6, 9)} {
		if got := WednesdayOfWeek(d); !got.Equal(wed) {
			t.Errorf("WednesdayOfWeek(%v) = %v, want %v", d, got, wed)
		}
	}
}

func TestNextExpirationAfterExcludesCurrent(t *testing.T) {
	cur := day(2024, 6, 5)
	avail := NewDateSet(cur, day(2024, 6, 7))
	got, ok := NextExpirationAfter(cur, avail)
	if !ok || !got.Equal(day(2024, 6, 7)) {
		t.Fatalf("expected 2024-06-07, got %v (ok=%v)", got, ok)
	}
}

func TestNextExpirationAfterHorizon(t *testing.T) {
	cur := day(2024, 6, 5)
	avail := NewDateSet(cur.AddDate(0, 0, 46))
	if _, ok := NextExpirationAfter(cur, avail); ok {
		t.Fatal("expected horizon exhaustion")
	}
	avail = NewDateSet(cur.AddDate(0, 0, 45))
	if _, ok := NextExpirationAfter(cur, avail); !ok {
		t.Fatal("expiration on the horizon boundary should be found")
	}
}

func TestSelectTargetsSameDayClass(t *testing.T) {
	wed := day(2024, 6, 5)
	fri := day(2024, 6, 7)

	for _, sym := range []string{"SPX", "SPXW", "SPY", "QQQ"} {
		got := SelectTargets(sym, wed, []time.Time{wed, fri}, NewDateSet())
		if !sameTargets(got, wed, fri) {
			t.Errorf("%s: got %v, want [%v %v]", sym, got, wed, fri)
		}
	}

	// Current date not an available expiration: only the weekly survives.
	got := SelectTargets("SPY", wed, []time.Time{fri}, NewDateSet())
	if !sameTargets(got, fri) {
		t.Errorf("got %v, want [%v]", got, fri)
	}

	// Friday itself as current date: no duplicate entry.
	got = SelectTargets("SPX", fri, []time.Time{fri}, NewDateSet())
	if !sameTargets(got, fri) {
		t.Errorf("got %v, want single %v", got, fri)
	}
}

func TestSelectTargetsVIXMonday(t *testing.T) {
	mon := day(2024, 6, 3)
	wed := day(2024, 6, 5)
	fri := day(2024, 6, 7)

	got := SelectTargets("VIX", mon, []time.Time{wed, fri}, NewDateSet())
	if !sameTargets(got, wed) {
		t.Fatalf("got %v, want [%v]", got, wed)
	}

	// Wednesday closed: the fallback scans from Tuesday and still lands on
	// Wednesday because it remains in the available set.
	got = SelectTargets("VIX", mon, []time.Time{wed, fri}, NewDateSet(wed))
	if !sameTargets(got, wed) {
		t.Fatalf("got %v, want [%v]", got, wed)
	}

	// Wednesday closed and unavailable: next available wins.
	got = SelectTargets("VIX", mon, []time.Time{fri}, NewDateSet(wed))
	if !sameTargets(got, fri) {
		t.Fatalf("got %v, want [%v]", got, fri)
	}
}

func TestSelectTargetsVIXWednesdayFallback(t *testing.T) {
	wed := day(2024, 6, 5)
	fri := day(2024, 6, 7)

	// Wed-Sun branch always uses next-available and never the current day.
	got := SelectTargets("VIX", wed, []time.Time{wed, fri}, NewDateSet())
	if !sameTargets(got, fri) {
		t.Fatalf("got %v, want [%v]", got, fri)
	}
}

func TestSelectTargetsUnknownSymbol(t *testing.T) {
	wed := day(2024, 6, 5)
	if got := SelectTargets("AAPL", wed, []time.Time{wed}, NewDateSet()); len(got) != 0 {
		t.Fatalf("expected no targets, got %v", got)
	}
}

func TestSelectTargetsSubsetOfAvailable(t *testing.T) {
	mon := day(2024, 6, 3)
	avail := []time.Time{day(2024, 6, 7)}
	got := SelectTargets("SPX", mon, avail, NewDateSet())
	availSet := NewDateSet(avail...)
	for _, d := range got {
		if !availSet.Has(d) {
			t.Fatalf("target %v not in available set", d)
		}
	}
}

func TestTradingDays(t *testing.T) {
	cal := New([]time.Time{day(2024, 6, 5)})
	days := cal.TradingDays(day(2024, 6, 3), day(2024, 6, 9))
	want := []time.Time{day(2024, 6, 3), day(2024, 6, 4), day(2024, 6, 6), day(2024, 6, 7)}
	if !sameTargets(days, want...) {
		t.Fatalf("got %v, want %v", days, want)
	}
	if cal.IsTradingDay(day(2024, 6, 8)) {
		t.Fatal("Saturday is not a trading day")
	}
}
