package finance

import "time"

// =============================================================================
// CLOCK - Injected time source
// =============================================================================

// Clock supplies "now" to the layers that orchestrate State operations.
// State itself never reads a clock; it takes now as a parameter.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// =============================================================================
// DATE HELPERS
// =============================================================================

// dateOf truncates t to midnight in its own location.
func dateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// afterToday reports whether deadline's calendar date is later than now's.
// The deadline is read as a calendar date, not an instant.
func afterToday(deadline, now time.Time) bool {
	y, m, d := deadline.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, now.Location()).After(dateOf(now))
}

// storedInstant drops precision the blob format cannot hold (epoch ms), so
// a saved state loads back equal to the one in memory.
func storedInstant(t time.Time) time.Time {
	return t.Truncate(time.Millisecond)
}
