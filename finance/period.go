package finance

import "time"

// =============================================================================
// BUDGET PERIOD - Rolling 7-day window
// =============================================================================

// WeekLength is the length of a budget period.
const WeekLength = 7 * 24 * time.Hour

// Period is the window a weekly budget applies to: [Start, Start+WeekLength).
type Period struct {
	Start time.Time
	End   time.Time
}

// WeekFrom returns the budget period that begins at start.
func WeekFrom(start time.Time) Period {
	return Period{Start: start, End: start.Add(WeekLength)}
}

// Contains reports whether t falls inside the period.
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && t.Before(p.End)
}

// Expired reports whether the period is over at now.
func (p Period) Expired(now time.Time) bool {
	return !now.Before(p.End)
}

// DaysLeft returns the whole days remaining until the period ends.
func (p Period) DaysLeft(now time.Time) int {
	if p.Expired(now) {
		return 0
	}
	return int(p.End.Sub(now).Hours() / 24)
}

func (p Period) String() string {
	return "[" + p.Start.Format(time.RFC3339) + ", " + p.End.Format(time.RFC3339) + ")"
}
