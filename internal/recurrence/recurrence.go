// Package recurrence computes the next fire instant for a reminder's
// repeat rule. Every function here is pure: no I/O, no stored state, the
// same inputs always produce the same output.
//
// Candidates are built with time.Date in the caller's wall-clock location,
// never by adding elapsed durations to an earlier instant, so "8 AM every
// day" keeps meaning 8 AM local straight through DST transitions. The one
// exception is the fixed-interval rule, which is defined in elapsed time.
package recurrence

import (
	"time"

	"remindd/internal/models"
)

// Search horizons. Daily rules look 8 days ahead (enough to cross any
// month or year boundary); weekday-set rules look 370 days ahead to cover
// sparse sets across a leap year.
const (
	dailyHorizonDays  = 8
	weeklyHorizonDays = 370
)

// Next returns the reminder's next fire instant strictly after now, or
// false if the reminder never fires again. The end condition is applied
// uniformly after the rule's own search, so a satisfied end condition
// forces "no next fire" for every rule kind.
func Next(r *models.Reminder, now time.Time) (time.Time, bool) {
	rule := r.Rule
	if rule == nil {
		rule = models.RepeatNone{}
	}

	if r.End.Type == models.EndAfterCount && r.OccurrenceCount >= r.End.Count {
		return time.Time{}, false
	}

	candidate, ok := nextForRule(rule, r.BaseAt, now)
	if !ok {
		return time.Time{}, false
	}

	if deadline, has := r.End.Deadline(now.Location()); has && candidate.After(deadline) {
		return time.Time{}, false
	}
	return candidate, true
}

func nextForRule(rule models.RepeatRule, base, now time.Time) (time.Time, bool) {
	switch r := rule.(type) {
	case models.RepeatNone:
		if base.After(now) {
			return base, true
		}
		return time.Time{}, false
	case models.RepeatDaily:
		return nextOnWeekdays(base, now, r.Weekdays, dailyHorizonDays)
	case models.RepeatWeekly:
		return nextOnWeekdays(base, now, r.Weekdays, weeklyHorizonDays)
	case models.RepeatMonthly:
		return nextMonthly(base, now, r.Day)
	case models.RepeatYearly:
		return nextYearly(base, now, r.Month, r.Day)
	case models.RepeatEvery:
		return nextEvery(base, now, r.Duration())
	case models.RepeatWindow:
		return nextWindow(base, now, r)
	}
	return time.Time{}, false
}

// nextOnWeekdays finds the earliest day within the horizon whose weekday
// is allowed, carrying the base time-of-day.
func nextOnWeekdays(base, now time.Time, allowed models.WeekdaySet, horizonDays int) (time.Time, bool) {
	loc := now.Location()
	localNow := now.In(loc)
	localBase := base.In(loc)

	for d := 0; d < horizonDays; d++ {
		candidate := time.Date(
			localNow.Year(), localNow.Month(), localNow.Day()+d,
			localBase.Hour(), localBase.Minute(), localBase.Second(), 0, loc,
		)
		if allowed.Contains(candidate.Weekday()) && candidate.After(now) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// nextMonthly advances month by month, clamping the target day to the
// actual length of each month (day 31 in a 30-day month fires on the 30th).
func nextMonthly(base, now time.Time, day int) (time.Time, bool) {
	loc := now.Location()
	localNow := now.In(loc)
	localBase := base.In(loc)

	// 13 months covers the wrap past a short month at the horizon.
	for m := 0; m < 13; m++ {
		year, month := localNow.Year(), localNow.Month()+time.Month(m)
		candidate := time.Date(
			year, month, clampDay(year, month, day),
			localBase.Hour(), localBase.Minute(), localBase.Second(), 0, loc,
		)
		if candidate.After(now) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

func nextYearly(base, now time.Time, month time.Month, day int) (time.Time, bool) {
	loc := now.Location()
	localNow := now.In(loc)
	localBase := base.In(loc)

	for y := 0; y < 2; y++ {
		year := localNow.Year() + y
		candidate := time.Date(
			year, month, clampDay(year, month, day),
			localBase.Hour(), localBase.Minute(), localBase.Second(), 0, loc,
		)
		if candidate.After(now) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// nextEvery advances the base by the smallest whole number of intervals
// that lands strictly after now. Integer arithmetic on the elapsed
// interval count keeps this O(1) no matter how long the reminder has been
// dormant.
func nextEvery(base, now time.Time, interval time.Duration) (time.Time, bool) {
	if interval <= 0 {
		return time.Time{}, false
	}
	if base.After(now) {
		return base, true
	}
	elapsed := now.Sub(base)
	k := elapsed/interval + 1
	return base.Add(k * interval), true
}

// nextWindow picks the earliest instant of the explicit date or weekday
// set that is after now and still inside its day's active window.
func nextWindow(base, now time.Time, r models.RepeatWindow) (time.Time, bool) {
	loc := now.Location()
	localBase := base.In(loc)

	if len(r.Dates) > 0 {
		var best time.Time
		for _, d := range r.Dates {
			ld := d.In(loc)
			candidate := time.Date(
				ld.Year(), ld.Month(), ld.Day(),
				localBase.Hour(), localBase.Minute(), localBase.Second(), 0, loc,
			)
			if !candidate.After(now) || !insideDayWindow(candidate, r.EndTime, loc) {
				continue
			}
			if best.IsZero() || candidate.Before(best) {
				best = candidate
			}
		}
		if best.IsZero() {
			return time.Time{}, false
		}
		return best, true
	}

	localNow := now.In(loc)
	for d := 0; d < weeklyHorizonDays; d++ {
		candidate := time.Date(
			localNow.Year(), localNow.Month(), localNow.Day()+d,
			localBase.Hour(), localBase.Minute(), localBase.Second(), 0, loc,
		)
		if r.Weekdays.Contains(candidate.Weekday()) && candidate.After(now) &&
			insideDayWindow(candidate, r.EndTime, loc) {
			return candidate, true
		}
	}
	return time.Time{}, false
}

// insideDayWindow reports whether the candidate falls before its own day's
// end time. An empty end time means the window spans the whole day.
func insideDayWindow(candidate time.Time, endTime string, loc *time.Location) bool {
	if endTime == "" {
		return true
	}
	t, err := time.Parse("15:04", endTime)
	if err != nil {
		return true
	}
	end := time.Date(
		candidate.Year(), candidate.Month(), candidate.Day(),
		t.Hour(), t.Minute(), 59, 0, loc,
	)
	return !candidate.After(end)
}

// clampDay limits a day-of-month to the number of days the month has.
func clampDay(year int, month time.Month, day int) int {
	// Day 0 of the next month normalizes to this month's last day.
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	if day < 1 {
		return 1
	}
	return day
}
