package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/models"
)

func mustLoc(t *testing.T, name string) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation(name)
	require.NoError(t, err)
	return loc
}

func reminder(rule models.RepeatRule, base time.Time) *models.Reminder {
	return &models.Reminder{
		Title:  "test",
		Rule:   rule,
		End:    models.End{Type: models.EndNone},
		BaseAt: base,
	}
}

func TestNextOnce(t *testing.T) {
	base := time.Date(2025, 6, 10, 8, 0, 0, 0, time.UTC)

	t.Run("base in the future", func(t *testing.T) {
		now := base.Add(-time.Hour)
		next, ok := Next(reminder(models.RepeatNone{}, base), now)
		require.True(t, ok)
		assert.Equal(t, base, next)
	})

	t.Run("base passed", func(t *testing.T) {
		now := base.Add(time.Minute)
		_, ok := Next(reminder(models.RepeatNone{}, base), now)
		assert.False(t, ok)
	})

	t.Run("base equal to now is not after", func(t *testing.T) {
		_, ok := Next(reminder(models.RepeatNone{}, base), base)
		assert.False(t, ok)
	})
}

func TestNextDailyWeekdaySet(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	// Base time-of-day 08:00.
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, loc)
	rule := models.RepeatDaily{
		Weekdays: models.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
	}

	// Tuesday 09:00 -> Wednesday 08:00.
	now := time.Date(2025, 6, 3, 9, 0, 0, 0, loc) // Tue
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 4, 8, 0, 0, 0, loc), next)
	assert.Equal(t, time.Wednesday, next.Weekday())
}

func TestNextDailyDefaultsToAllDays(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 2, 8, 0, 0, 0, loc)
	rule := models.RepeatDaily{}

	// After today's 08:00 -> tomorrow 08:00.
	now := time.Date(2025, 6, 3, 8, 30, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 4, 8, 0, 0, 0, loc), next)
}

func TestNextDailyCrossesMonthBoundary(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 1, 1, 7, 30, 0, 0, loc)
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, loc)

	next, ok := Next(reminder(models.RepeatDaily{}, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 1, 7, 30, 0, 0, loc), next)
}

func TestNextDailyAcrossDSTSpringForward(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 3, 1, 8, 0, 0, 0, loc)

	// US DST starts 2025-03-09 02:00. The day before, 8 AM wall clock.
	now := time.Date(2025, 3, 8, 9, 0, 0, 0, loc)
	next, ok := Next(reminder(models.RepeatDaily{}, base), now)
	require.True(t, ok)

	// Still 8 AM local on the transition day, even though only 23 real
	// hours elapsed since the previous 8 AM.
	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 9, next.Day())
	assert.Equal(t, 23*time.Hour, next.Sub(time.Date(2025, 3, 8, 8, 0, 0, 0, loc)))
}

func TestNextDailyAcrossDSTFallBack(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 10, 1, 8, 0, 0, 0, loc)

	// US DST ends 2025-11-02 02:00.
	now := time.Date(2025, 11, 1, 9, 0, 0, 0, loc)
	next, ok := Next(reminder(models.RepeatDaily{}, base), now)
	require.True(t, ok)

	assert.Equal(t, 8, next.Hour())
	assert.Equal(t, 2, next.Day())
	assert.Equal(t, 25*time.Hour, next.Sub(time.Date(2025, 11, 1, 8, 0, 0, 0, loc)))
}

func TestNextWeeklySparseSet(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 1, 18, 15, 0, 0, loc)
	rule := models.RepeatWeekly{Weekdays: models.NewWeekdaySet(time.Sunday)}

	// Monday -> next Sunday.
	now := time.Date(2025, 6, 2, 10, 0, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 8, 18, 15, 0, 0, loc), next)
}

func TestNextMonthlyClampsDay(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 1, 31, 9, 0, 0, 0, loc)
	rule := models.RepeatMonthly{Day: 31}

	// Non-leap February: day 31 clamps to the 28th.
	now := time.Date(2025, 2, 15, 12, 0, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, loc), next)

	// After February's occurrence the rule recovers the real 31st.
	now = next.Add(time.Minute)
	next, ok = Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 3, 31, 9, 0, 0, 0, loc), next)
}

func TestNextMonthlyAdvancesWhenPassed(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 1, 5, 7, 0, 0, 0, loc)
	rule := models.RepeatMonthly{Day: 5}

	now := time.Date(2025, 3, 5, 7, 30, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 4, 5, 7, 0, 0, 0, loc), next)
}

func TestNextYearly(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2024, 7, 4, 10, 0, 0, 0, loc)
	rule := models.RepeatYearly{Month: time.July, Day: 4}

	now := time.Date(2025, 7, 4, 11, 0, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 7, 4, 10, 0, 0, 0, loc), next)
}

func TestNextYearlyLeapDayClamps(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2024, 2, 29, 9, 0, 0, 0, loc)
	rule := models.RepeatYearly{Month: time.February, Day: 29}

	now := time.Date(2024, 12, 1, 0, 0, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 2, 28, 9, 0, 0, 0, loc), next)
}

func TestNextEveryIntervalArithmetic(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := models.RepeatEvery{N: 90, Unit: models.UnitMinutes}

	// now = base + 2 days + 3h10m. Elapsed = 3070 minutes = 34.1 intervals,
	// so the next multiple is the 35th: 3150 minutes after base.
	now := base.Add(48*time.Hour + 3*time.Hour + 10*time.Minute)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, base.Add(3150*time.Minute), next)
}

func TestNextEveryIsConstantTimeForLongDormancy(t *testing.T) {
	// The interval rule must use interval-count arithmetic rather than
	// repeated addition. A decade of dormancy at a one-minute interval
	// would take ~5M iterations if it looped; the exact result coming
	// back proves the closed-form path.
	base := time.Date(2015, 1, 1, 0, 0, 0, 0, time.UTC)
	rule := models.RepeatEvery{N: 1, Unit: models.UnitMinutes}

	now := base.Add(10*365*24*time.Hour + 30*time.Second)
	next, ok := nextForRule(rule, base, now)
	require.True(t, ok)
	assert.Equal(t, base.Add(10*365*24*time.Hour+time.Minute), next)
	assert.True(t, next.After(now))
	assert.True(t, next.Sub(now) <= time.Minute)
}

func TestNextEveryExactMultipleIsStrictlyAfter(t *testing.T) {
	base := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	rule := models.RepeatEvery{N: 1, Unit: models.UnitHours}

	// now sits exactly on an interval boundary; the result must be the
	// following boundary, never "now" itself.
	now := base.Add(5 * time.Hour)
	next, ok := nextForRule(rule, base, now)
	require.True(t, ok)
	assert.Equal(t, base.Add(6*time.Hour), next)
}

func TestNextEveryFutureBase(t *testing.T) {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	rule := models.RepeatEvery{N: 2, Unit: models.UnitDays}

	now := base.Add(-time.Hour)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, base, next)
}

func TestNextWindowExplicitDates(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 1, 14, 0, 0, 0, loc)
	rule := models.RepeatWindow{
		Dates: []time.Time{
			time.Date(2025, 6, 10, 0, 0, 0, 0, loc),
			time.Date(2025, 6, 5, 0, 0, 0, 0, loc),
			time.Date(2025, 6, 20, 0, 0, 0, 0, loc),
		},
	}

	now := time.Date(2025, 6, 4, 0, 0, 0, 0, loc)
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 5, 14, 0, 0, 0, loc), next)

	// After the 5th, the 10th is next, even though it was listed first.
	now = time.Date(2025, 6, 5, 15, 0, 0, 0, loc)
	next, ok = Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 10, 14, 0, 0, 0, loc), next)

	// Past the last date there is nothing left.
	now = time.Date(2025, 6, 20, 15, 0, 0, 0, loc)
	_, ok = Next(reminder(rule, base), now)
	assert.False(t, ok)
}

func TestNextWindowEndTimeExcludesLateBase(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	// Base time-of-day 18:00, daily window closes at 17:00: no candidate
	// can ever fall inside the window.
	base := time.Date(2025, 6, 1, 18, 0, 0, 0, loc)
	rule := models.RepeatWindow{
		Dates:   []time.Time{time.Date(2025, 6, 10, 0, 0, 0, 0, loc)},
		EndTime: "17:00",
	}

	now := time.Date(2025, 6, 4, 0, 0, 0, 0, loc)
	_, ok := Next(reminder(rule, base), now)
	assert.False(t, ok)
}

func TestNextWindowWeekdays(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 2, 9, 30, 0, 0, loc)
	rule := models.RepeatWindow{
		Weekdays: models.NewWeekdaySet(time.Saturday),
		EndTime:  "12:00",
	}

	now := time.Date(2025, 6, 4, 10, 0, 0, 0, loc) // Wednesday
	next, ok := Next(reminder(rule, base), now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 7, 9, 30, 0, 0, loc), next)
}

func TestEndAfterCount(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	r := reminder(models.RepeatDaily{}, base)
	r.End = models.End{Type: models.EndAfterCount, Count: 3}

	now := base.Add(time.Hour)

	for _, count := range []int{0, 1, 2} {
		r.OccurrenceCount = count
		_, ok := Next(r, now)
		assert.True(t, ok, "count %d should still fire", count)
	}

	r.OccurrenceCount = 3
	_, ok := Next(r, now)
	assert.False(t, ok, "third occurrence exhausts the reminder")

	r.OccurrenceCount = 4
	_, ok = Next(r, now)
	assert.False(t, ok)
}

func TestEndOnDate(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	endDate := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)

	r := reminder(models.RepeatDaily{}, base)
	r.End = models.End{Type: models.EndOnDate, Date: &endDate}

	// Day before the end date still fires.
	now := time.Date(2025, 6, 9, 9, 0, 0, 0, loc)
	next, ok := Next(r, now)
	require.True(t, ok)
	assert.Equal(t, 10, next.Day())

	// The candidate after the end date is suppressed.
	now = time.Date(2025, 6, 10, 9, 0, 0, 0, loc)
	_, ok = Next(r, now)
	assert.False(t, ok)
}

func TestEndOnDateWithTimeOfDay(t *testing.T) {
	loc := mustLoc(t, "America/New_York")
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, loc)
	endDate := time.Date(2025, 6, 10, 0, 0, 0, 0, loc)

	r := reminder(models.RepeatDaily{}, base)
	r.End = models.End{Type: models.EndOnDate, Date: &endDate, TimeOfDay: "07:00"}

	// The 8 AM candidate on the end date is past the 07:00 cutoff.
	now := time.Date(2025, 6, 9, 9, 0, 0, 0, loc)
	_, ok := Next(r, now)
	assert.False(t, ok)
}

func TestNextNilRuleTreatedAsOnce(t *testing.T) {
	base := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	r := reminder(nil, base)

	next, ok := Next(r, base.Add(-time.Hour))
	require.True(t, ok)
	assert.Equal(t, base, next)

	_, ok = Next(r, base.Add(time.Hour))
	assert.False(t, ok)
}
