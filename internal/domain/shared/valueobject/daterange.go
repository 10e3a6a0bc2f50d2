package valueobject

import (
	"errors"
	"time"
)

// DateRange is a value object for a booking's date range. It carries two
// distinct day conventions that must not be mixed up:
//
//   - Occupancy is half-open [start, end): the return day is free for the
//     next booking, so same-day turnover never counts as an overlap.
//   - Billing is inclusive of both endpoints: a rental picked up on day d and
//     returned two days later spans three billable days.
type DateRange struct {
	start time.Time
	end   time.Time
}

// NewDateRange creates a DateRange. End must be strictly after start.
func NewDateRange(start, end time.Time) (DateRange, error) {
	if !end.After(start) {
		return DateRange{}, errors.New("end date must be after start date")
	}
	return DateRange{start: start, end: end}, nil
}

// Start returns the range start
func (r DateRange) Start() time.Time {
	return r.start
}

// End returns the range end
func (r DateRange) End() time.Time {
	return r.end
}

// IsZero reports whether the range is uninitialized
func (r DateRange) IsZero() bool {
	return r.start.IsZero() && r.end.IsZero()
}

// RentalDays returns the inclusive day count used for pricing: the number of
// calendar days touched from the pickup day through the return day.
func (r DateRange) RentalDays() int64 {
	start := startOfDay(r.start)
	end := startOfDay(r.end)
	return int64(end.Sub(start).Hours()/24) + 1
}

// Occupies reports whether the range holds inventory on the given calendar
// day under the half-open occupancy rule: start <= endOfDay(day) AND
// end > startOfDay(day), with the return day excluded.
func (r DateRange) Occupies(day time.Time) bool {
	dayStart := startOfDay(day)
	dayEnd := dayStart.AddDate(0, 0, 1)
	return r.start.Before(dayEnd) && r.end.After(dayStart)
}

// Overlaps reports whether two half-open ranges hold inventory on at least
// one common instant. A range ending exactly when another starts does not
// overlap.
func (r DateRange) Overlaps(other DateRange) bool {
	return r.start.Before(other.end) && other.start.Before(r.end)
}

// EachOccupiedDay iterates the calendar days the range occupies, in order.
// For midnight-aligned ranges the return day is not visited.
func (r DateRange) EachOccupiedDay(fn func(day time.Time)) {
	for day := startOfDay(r.start); day.Before(r.end); day = day.AddDate(0, 0, 1) {
		fn(day)
	}
}

// EachDay iterates every calendar day from start through end inclusive.
// Used for per-day availability breakdowns where the caller wants the full
// queried window rendered.
func (r DateRange) EachDay(fn func(day time.Time)) {
	last := startOfDay(r.end)
	for day := startOfDay(r.start); !day.After(last); day = day.AddDate(0, 0, 1) {
		fn(day)
	}
}

// HoursUntilStart returns the whole hours between now and the range start.
// Negative when the range has already started.
func (r DateRange) HoursUntilStart(now time.Time) int64 {
	return int64(r.start.Sub(now).Hours())
}

// Contains reports whether t falls inside the half-open range
func (r DateRange) Contains(t time.Time) bool {
	return !t.Before(r.start) && t.Before(r.end)
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
