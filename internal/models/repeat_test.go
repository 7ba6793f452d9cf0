package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeRuleRejectsMalformedState(t *testing.T) {
	cases := []struct {
		name   string
		kind   RepeatKind
		params string
	}{
		{"unknown kind", RepeatKind("fortnightly"), `{}`},
		{"weekly without weekdays", KindWeekly, `{"weekdays":[]}`},
		{"monthly day zero", KindMonthly, `{"day":0}`},
		{"monthly day 32", KindMonthly, `{"day":32}`},
		{"yearly month 13", KindYearly, `{"month":13,"day":1}`},
		{"interval zero", KindEvery, `{"n":0,"unit":"minutes"}`},
		{"interval bad unit", KindEvery, `{"n":5,"unit":"fortnights"}`},
		{"window with nothing", KindWindow, `{}`},
		{"garbage payload", KindDaily, `{"weekdays":"monday"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := DecodeRule(tc.kind, []byte(tc.params))
			assert.ErrorIs(t, err, ErrInvalidRecurrence)
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	rules := []RepeatRule{
		RepeatNone{},
		RepeatDaily{Weekdays: NewWeekdaySet(time.Monday, time.Friday)},
		RepeatWeekly{Weekdays: NewWeekdaySet(time.Wednesday)},
		RepeatMonthly{Day: 31},
		RepeatYearly{Month: time.February, Day: 29},
		RepeatEvery{N: 90, Unit: UnitMinutes},
	}
	for _, rule := range rules {
		kind, params, err := EncodeRule(rule)
		require.NoError(t, err)
		got, err := DecodeRule(kind, params)
		require.NoError(t, err)
		assert.Equal(t, rule, got)
	}
}

func TestEncodeNilRuleIsNone(t *testing.T) {
	kind, _, err := EncodeRule(nil)
	require.NoError(t, err)
	assert.Equal(t, KindNone, kind)
}

func TestWeekdaySetEmptyAllowsAll(t *testing.T) {
	var s WeekdaySet
	for d := time.Sunday; d <= time.Saturday; d++ {
		assert.True(t, s.Contains(d))
	}
}

func TestWeekdaySetContains(t *testing.T) {
	s := NewWeekdaySet(time.Monday, time.Wednesday, time.Friday)
	assert.True(t, s.Contains(time.Monday))
	assert.False(t, s.Contains(time.Tuesday))
	assert.Equal(t, []time.Weekday{time.Monday, time.Wednesday, time.Friday}, s.Weekdays())
}

func TestEndDeadline(t *testing.T) {
	date := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)

	end := End{Type: EndOnDate, Date: &date}
	deadline, ok := end.Deadline(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 10, 23, 59, 59, 0, time.UTC), deadline)

	end.TimeOfDay = "17:30"
	deadline, ok = end.Deadline(time.UTC)
	require.True(t, ok)
	assert.Equal(t, time.Date(2025, 6, 10, 17, 30, 59, 0, time.UTC), deadline)

	_, ok = End{Type: EndAfterCount, Count: 3}.Deadline(time.UTC)
	assert.False(t, ok)
}

func TestReminderDisposition(t *testing.T) {
	r := &Reminder{}
	assert.Equal(t, DispositionActive, r.Disposition())
	r.Completed = true
	assert.Equal(t, DispositionCompleted, r.Disposition())
	r.Deleted = true
	assert.Equal(t, DispositionDeleted, r.Disposition())
}

func TestIsQuietHoursOvernightWindow(t *testing.T) {
	s := NewDefaultSettings(1)
	s.Timezone = "UTC"
	s.QuietStart = "22:00"
	s.QuietEnd = "08:00"

	at := func(hour int) time.Time {
		return time.Date(2025, 6, 10, hour, 0, 0, 0, time.UTC)
	}
	assert.True(t, s.IsQuietHours(at(23)))
	assert.True(t, s.IsQuietHours(at(3)))
	assert.False(t, s.IsQuietHours(at(12)))

	// Same-day window
	s.QuietStart = "13:00"
	s.QuietEnd = "15:00"
	assert.True(t, s.IsQuietHours(at(14)))
	assert.False(t, s.IsQuietHours(at(16)))
}

func TestIsQuietHoursSecondsSuffix(t *testing.T) {
	// Postgres TIME columns read back as "HH:MM:SS".
	s := NewDefaultSettings(1)
	s.Timezone = "UTC"
	s.QuietStart = "22:00:00"
	s.QuietEnd = "08:00:00"

	at := func(hour, min int) time.Time {
		return time.Date(2025, 6, 10, hour, min, 0, 0, time.UTC)
	}
	assert.True(t, s.IsQuietHours(at(23, 30)))
	assert.True(t, s.IsQuietHours(at(7, 59)))
	assert.False(t, s.IsQuietHours(at(12, 0)))
}
