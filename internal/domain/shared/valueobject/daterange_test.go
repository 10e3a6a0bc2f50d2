package valueobject

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRange(t *testing.T, startDay, endDay int) DateRange {
	t.Helper()
	r, err := NewDateRange(
		time.Date(2025, 7, startDay, 0, 0, 0, 0, time.UTC),
		time.Date(2025, 7, endDay, 0, 0, 0, 0, time.UTC),
	)
	require.NoError(t, err)
	return r
}

func TestNewDateRange(t *testing.T) {
	t.Run("end must be after start", func(t *testing.T) {
		start := time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)
		_, err := NewDateRange(start, start)
		require.Error(t, err)
		_, err = NewDateRange(start, start.AddDate(0, 0, -1))
		require.Error(t, err)
	})

	t.Run("zero value is distinguishable", func(t *testing.T) {
		assert.True(t, DateRange{}.IsZero())
		assert.False(t, mustRange(t, 10, 12).IsZero())
	})
}

func TestRentalDays(t *testing.T) {
	t.Run("counts both endpoints", func(t *testing.T) {
		// Pickup Jul 10, return Jul 14: five billable days
		assert.Equal(t, int64(5), mustRange(t, 10, 14).RentalDays())
	})

	t.Run("overnight rental is two days", func(t *testing.T) {
		assert.Equal(t, int64(2), mustRange(t, 10, 11).RentalDays())
	})
}

func TestOccupancy(t *testing.T) {
	r := mustRange(t, 10, 14)

	t.Run("occupies the pickup day through the day before return", func(t *testing.T) {
		assert.True(t, r.Occupies(time.Date(2025, 7, 10, 0, 0, 0, 0, time.UTC)))
		assert.True(t, r.Occupies(time.Date(2025, 7, 13, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("the return day is free", func(t *testing.T) {
		assert.False(t, r.Occupies(time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("days outside the range are free", func(t *testing.T) {
		assert.False(t, r.Occupies(time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)))
		assert.False(t, r.Occupies(time.Date(2025, 7, 20, 0, 0, 0, 0, time.UTC)))
	})

	t.Run("a midday return still occupies the return day", func(t *testing.T) {
		r, err := NewDateRange(
			time.Date(2025, 7, 10, 9, 0, 0, 0, time.UTC),
			time.Date(2025, 7, 14, 15, 0, 0, 0, time.UTC),
		)
		require.NoError(t, err)
		assert.True(t, r.Occupies(time.Date(2025, 7, 14, 0, 0, 0, 0, time.UTC)))
	})
}

func TestOverlaps(t *testing.T) {
	t.Run("overlapping ranges", func(t *testing.T) {
		assert.True(t, mustRange(t, 10, 14).Overlaps(mustRange(t, 12, 16)))
		assert.True(t, mustRange(t, 12, 16).Overlaps(mustRange(t, 10, 14)))
		assert.True(t, mustRange(t, 10, 20).Overlaps(mustRange(t, 12, 14)))
	})

	t.Run("same-day turnover does not overlap", func(t *testing.T) {
		assert.False(t, mustRange(t, 10, 14).Overlaps(mustRange(t, 14, 18)))
		assert.False(t, mustRange(t, 14, 18).Overlaps(mustRange(t, 10, 14)))
	})

	t.Run("disjoint ranges", func(t *testing.T) {
		assert.False(t, mustRange(t, 10, 12).Overlaps(mustRange(t, 20, 22)))
	})
}

func TestDayIteration(t *testing.T) {
	t.Run("occupied days exclude the return day", func(t *testing.T) {
		var days []int
		mustRange(t, 10, 13).EachOccupiedDay(func(day time.Time) {
			days = append(days, day.Day())
		})
		assert.Equal(t, []int{10, 11, 12}, days)
	})

	t.Run("calendar days include both endpoints", func(t *testing.T) {
		var days []int
		mustRange(t, 10, 13).EachDay(func(day time.Time) {
			days = append(days, day.Day())
		})
		assert.Equal(t, []int{10, 11, 12, 13}, days)
	})
}

func TestHoursUntilStart(t *testing.T) {
	r := mustRange(t, 10, 14)

	assert.Equal(t, int64(240), r.HoursUntilStart(time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC)))
	assert.Equal(t, int64(0), r.HoursUntilStart(r.Start()))
	assert.True(t, r.HoursUntilStart(time.Date(2025, 7, 12, 0, 0, 0, 0, time.UTC)) < 0)
}

func TestContains(t *testing.T) {
	r := mustRange(t, 10, 14)

	assert.True(t, r.Contains(r.Start()))
	assert.True(t, r.Contains(time.Date(2025, 7, 12, 15, 0, 0, 0, time.UTC)))
	assert.False(t, r.Contains(r.End()))
	assert.False(t, r.Contains(time.Date(2025, 7, 9, 0, 0, 0, 0, time.UTC)))
}
