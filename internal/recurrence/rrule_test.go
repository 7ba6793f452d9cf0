package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/models"
)

func TestFromRRule(t *testing.T) {
	tests := []struct {
		name     string
		rrule    string
		wantRule models.RepeatRule
		wantEnd  models.End
	}{
		{
			name:     "empty string is once",
			rrule:    "",
			wantRule: models.RepeatNone{},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:     "daily",
			rrule:    "FREQ=DAILY",
			wantRule: models.RepeatDaily{},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:  "daily with weekday set",
			rrule: "FREQ=DAILY;BYDAY=MO,WE,FR",
			wantRule: models.RepeatDaily{
				Weekdays: models.NewWeekdaySet(time.Monday, time.Wednesday, time.Friday),
			},
			wantEnd: models.End{Type: models.EndNone},
		},
		{
			name:  "weekly",
			rrule: "RRULE:FREQ=WEEKLY;BYDAY=SA,SU",
			wantRule: models.RepeatWeekly{
				Weekdays: models.NewWeekdaySet(time.Saturday, time.Sunday),
			},
			wantEnd: models.End{Type: models.EndNone},
		},
		{
			name:     "monthly",
			rrule:    "FREQ=MONTHLY;BYMONTHDAY=31",
			wantRule: models.RepeatMonthly{Day: 31},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:     "yearly",
			rrule:    "FREQ=YEARLY;BYMONTH=7;BYMONTHDAY=4",
			wantRule: models.RepeatYearly{Month: time.July, Day: 4},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:     "minutely interval",
			rrule:    "FREQ=MINUTELY;INTERVAL=90",
			wantRule: models.RepeatEvery{N: 90, Unit: models.UnitMinutes},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:     "multi-day interval",
			rrule:    "FREQ=DAILY;INTERVAL=3",
			wantRule: models.RepeatEvery{N: 3, Unit: models.UnitDays},
			wantEnd:  models.End{Type: models.EndNone},
		},
		{
			name:     "count end condition",
			rrule:    "FREQ=DAILY;COUNT=5",
			wantRule: models.RepeatDaily{},
			wantEnd:  models.End{Type: models.EndAfterCount, Count: 5},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rule, end, err := FromRRule(tt.rrule)
			require.NoError(t, err)
			assert.Equal(t, tt.wantRule, rule)
			assert.Equal(t, tt.wantEnd, end)
		})
	}
}

func TestFromRRuleUntil(t *testing.T) {
	rule, end, err := FromRRule("FREQ=DAILY;UNTIL=20250610T120000Z")
	require.NoError(t, err)
	assert.Equal(t, models.RepeatDaily{}, rule)
	assert.Equal(t, models.EndOnDate, end.Type)
	require.NotNil(t, end.Date)
	assert.Equal(t, 2025, end.Date.Year())
	assert.Equal(t, time.June, end.Date.Month())
}

func TestFromRRuleRejectsUnsupportedShapes(t *testing.T) {
	for _, rrule := range []string{
		"FREQ=WEEKLY",                 // no BYDAY
		"FREQ=MONTHLY",                // no BYMONTHDAY
		"FREQ=YEARLY",                 // no BYMONTH/BYMONTHDAY
		"not an rrule at all",         // parse failure
		"FREQ=SECONDLY;INTERVAL=10",   // unsupported frequency
	} {
		_, _, err := FromRRule(rrule)
		assert.ErrorIs(t, err, models.ErrInvalidRecurrence, rrule)
	}
}

func TestToRRuleRoundTrip(t *testing.T) {
	rules := []struct {
		rule models.RepeatRule
		end  models.End
	}{
		{models.RepeatDaily{Weekdays: models.NewWeekdaySet(time.Monday, time.Friday)}, models.End{Type: models.EndNone}},
		{models.RepeatWeekly{Weekdays: models.NewWeekdaySet(time.Tuesday)}, models.End{Type: models.EndNone}},
		{models.RepeatMonthly{Day: 15}, models.End{Type: models.EndAfterCount, Count: 3}},
		{models.RepeatYearly{Month: time.December, Day: 25}, models.End{Type: models.EndNone}},
		{models.RepeatEvery{N: 45, Unit: models.UnitMinutes}, models.End{Type: models.EndNone}},
	}

	for _, tt := range rules {
		s, err := ToRRule(tt.rule, tt.end)
		require.NoError(t, err)

		back, end, err := FromRRule(s)
		require.NoError(t, err, s)
		assert.Equal(t, tt.rule, back, s)
		assert.Equal(t, tt.end, end, s)
	}
}

func TestToRRuleWindowDatesHasNoRRuleForm(t *testing.T) {
	_, err := ToRRule(models.RepeatWindow{
		Dates: []time.Time{time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)},
	}, models.End{Type: models.EndNone})
	assert.ErrorIs(t, err, models.ErrInvalidRecurrence)
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "once", Describe(models.RepeatNone{}, models.End{}))
	assert.Equal(t, "daily on Mon, Wed",
		Describe(models.RepeatDaily{Weekdays: models.NewWeekdaySet(time.Monday, time.Wednesday)}, models.End{}))
	assert.Equal(t, "every 90 minutes",
		Describe(models.RepeatEvery{N: 90, Unit: models.UnitMinutes}, models.End{}))
	assert.Equal(t, "monthly on day 31, 3 times",
		Describe(models.RepeatMonthly{Day: 31}, models.End{Type: models.EndAfterCount, Count: 3}))
}
