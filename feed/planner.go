package feed

import "cloud.google.com/go/civil"

// Backfill window policy. Windows are calendar dates, never times of day:
// date-level requests let the server return complete per-day bar sets, so
// reconciliation only has to resolve overlaps, not stitch partial days.
const (
	minuteInitialDays = 30
	dailyInitialDays  = 3650

	// a daily series below this length is re-fetched in full: most
	// technical analysis needs at least a year of bars
	minDailyBars = 250

	dailyStaleDays = 365
	dailyCapDays   = 730
)

func initialWindow(g Granularity, today civil.Date) DateRange {
	days := dailyInitialDays
	if g == Minute {
		days = minuteInitialDays
	}
	return DateRange{Start: today.AddDays(-days), End: today}
}

// planWindow decides the [start, end] date window to request from the
// history API, given the bars the caller already holds.
//
// Re-fetching overlap with the last held bar is expected and resolved by
// reconcile; the point of the policy is bounding how much is requested.
func planWindow(g Granularity, series []Bar, today civil.Date) DateRange {
	last, matching := lastBarOf(series, g)
	if matching == 0 {
		return initialWindow(g, today)
	}

	lastDate := last.Time.Date()
	// a last bar dated in the future means the held data is corrupt;
	// start over rather than extend it
	if !lastDate.IsValid() || today.Before(lastDate) {
		return initialWindow(g, today)
	}

	gapDays := today.DaysSince(lastDate)

	if g == Minute {
		if gapDays > minuteInitialDays {
			return initialWindow(g, today)
		}
		return DateRange{Start: lastDate, End: today}
	}

	if matching < minDailyBars || gapDays > dailyStaleDays {
		return initialWindow(g, today)
	}
	if gapDays > dailyCapDays {
		return DateRange{Start: today.AddDays(-dailyCapDays), End: today}
	}
	return DateRange{Start: lastDate, End: today}
}

// lastBarOf scans backward for the most recent bar of the given
// granularity and counts how many bars match. In a mixed daily/intraday
// series the last bar overall is not necessarily of the right granularity,
// so a plain tail lookup would be wrong.
func lastBarOf(series []Bar, g Granularity) (Bar, int) {
	var last Bar
	matching := 0
	for i := len(series) - 1; i >= 0; i-- {
		if series[i].Granularity != g {
			continue
		}
		if matching == 0 {
			last = series[i]
		}
		matching++
	}
	return last, matching
}
