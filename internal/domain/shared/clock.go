package shared

import "time"

// Clock abstracts "now" so that time-driven rules (quote expiry, cancellation
// deadlines, receivable aging) stay deterministic under test. Production code
// injects SystemClock; tests inject a fixed or stepping clock.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock
type SystemClock struct{}

// Now returns the current wall-clock time
func (SystemClock) Now() time.Time {
	return time.Now()
}

// FixedClock always returns the same instant. Intended for tests.
type FixedClock struct {
	Time time.Time
}

// Now returns the fixed instant
func (c FixedClock) Now() time.Time {
	return c.Time
}

// StartOfDay truncates t to midnight in its location
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// EndOfDay returns the last nanosecond of t's calendar day
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
