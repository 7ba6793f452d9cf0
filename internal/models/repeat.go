package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRecurrence is returned when a stored repeat rule cannot be
// decoded. Callers treat the reminder as non-recurring and surface the
// reminder for user correction instead of crash-looping on it.
var ErrInvalidRecurrence = errors.New("invalid recurrence state")

// RepeatKind discriminates the stored form of a repeat rule.
type RepeatKind string

const (
	KindNone    RepeatKind = "none"
	KindDaily   RepeatKind = "daily"
	KindWeekly  RepeatKind = "weekly"
	KindMonthly RepeatKind = "monthly"
	KindYearly  RepeatKind = "yearly"
	KindEvery   RepeatKind = "every"
	KindWindow  RepeatKind = "window"
)

// RepeatRule is a closed union over the supported repeat patterns. Each
// variant carries only the fields it needs, so a malformed combination
// (e.g. an interval value on a monthly rule) cannot be represented.
type RepeatRule interface {
	Kind() RepeatKind
}

// RepeatNone fires at most once, at the reminder's base instant.
type RepeatNone struct{}

// RepeatDaily fires at the base time-of-day on each allowed weekday.
// An empty weekday set means all seven days.
type RepeatDaily struct {
	Weekdays WeekdaySet `json:"weekdays"`
}

// RepeatWeekly fires at the base time-of-day on an explicit weekday set.
// The set recurs every 7 days; sparser cadences are not supported.
type RepeatWeekly struct {
	Weekdays WeekdaySet `json:"weekdays"`
}

// RepeatMonthly fires on a target day-of-month, clamped to the actual day
// count of the target month (day 31 in a 30-day month fires on the 30th).
type RepeatMonthly struct {
	Day int `json:"day"`
}

// RepeatYearly fires on the same month and day each year.
type RepeatYearly struct {
	Month time.Month `json:"month"`
	Day   int        `json:"day"`
}

// IntervalUnit is the unit of a fixed-interval rule.
type IntervalUnit string

const (
	UnitMinutes IntervalUnit = "minutes"
	UnitHours   IntervalUnit = "hours"
	UnitDays    IntervalUnit = "days"
)

// RepeatEvery fires every N minutes/hours/days from the base instant.
type RepeatEvery struct {
	N    int          `json:"n"`
	Unit IntervalUnit `json:"unit"`
}

// Duration returns the interval length. Zero if the rule is malformed.
func (r RepeatEvery) Duration() time.Duration {
	if r.N <= 0 {
		return 0
	}
	switch r.Unit {
	case UnitMinutes:
		return time.Duration(r.N) * time.Minute
	case UnitHours:
		return time.Duration(r.N) * time.Hour
	case UnitDays:
		return time.Duration(r.N) * 24 * time.Hour
	}
	return 0
}

// RepeatWindow fires at the base time-of-day on an explicit set of dates
// or weekdays, optionally bounded by a daily end time ("HH:MM"). Dates and
// Weekdays are mutually exclusive; Dates wins when both are set.
type RepeatWindow struct {
	Dates    []time.Time `json:"dates,omitempty"`
	Weekdays WeekdaySet  `json:"weekdays,omitempty"`
	EndTime  string      `json:"end_time,omitempty"`
}

func (RepeatNone) Kind() RepeatKind    { return KindNone }
func (RepeatDaily) Kind() RepeatKind   { return KindDaily }
func (RepeatWeekly) Kind() RepeatKind  { return KindWeekly }
func (RepeatMonthly) Kind() RepeatKind { return KindMonthly }
func (RepeatYearly) Kind() RepeatKind  { return KindYearly }
func (RepeatEvery) Kind() RepeatKind   { return KindEvery }
func (RepeatWindow) Kind() RepeatKind  { return KindWindow }

// EncodeRule serializes a rule into its discriminator and JSON payload for
// storage.
func EncodeRule(r RepeatRule) (RepeatKind, []byte, error) {
	if r == nil {
		r = RepeatNone{}
	}
	params, err := json.Marshal(r)
	if err != nil {
		return "", nil, fmt.Errorf("failed to encode repeat rule: %w", err)
	}
	return r.Kind(), params, nil
}

// DecodeRule inflates a stored rule. Unknown kinds and malformed payloads
// return ErrInvalidRecurrence.
func DecodeRule(kind RepeatKind, params []byte) (RepeatRule, error) {
	if len(params) == 0 {
		params = []byte("{}")
	}
	var (
		rule RepeatRule
		err  error
	)
	switch kind {
	case KindNone, "":
		rule = RepeatNone{}
	case KindDaily:
		var r RepeatDaily
		err = json.Unmarshal(params, &r)
		rule = r
	case KindWeekly:
		var r RepeatWeekly
		err = json.Unmarshal(params, &r)
		rule = r
	case KindMonthly:
		var r RepeatMonthly
		err = json.Unmarshal(params, &r)
		rule = r
	case KindYearly:
		var r RepeatYearly
		err = json.Unmarshal(params, &r)
		rule = r
	case KindEvery:
		var r RepeatEvery
		err = json.Unmarshal(params, &r)
		rule = r
	case KindWindow:
		var r RepeatWindow
		err = json.Unmarshal(params, &r)
		rule = r
	default:
		return nil, fmt.Errorf("%w: unknown repeat kind %q", ErrInvalidRecurrence, kind)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}
	if err := validateRule(rule); err != nil {
		return nil, err
	}
	return rule, nil
}

func validateRule(rule RepeatRule) error {
	switch r := rule.(type) {
	case RepeatWeekly:
		if r.Weekdays.IsEmpty() {
			return fmt.Errorf("%w: weekly rule requires a weekday set", ErrInvalidRecurrence)
		}
	case RepeatMonthly:
		if r.Day < 1 || r.Day > 31 {
			return fmt.Errorf("%w: monthly day %d out of range", ErrInvalidRecurrence, r.Day)
		}
	case RepeatYearly:
		if r.Month < time.January || r.Month > time.December || r.Day < 1 || r.Day > 31 {
			return fmt.Errorf("%w: yearly date %d/%d out of range", ErrInvalidRecurrence, r.Month, r.Day)
		}
	case RepeatEvery:
		if r.Duration() == 0 {
			return fmt.Errorf("%w: interval %d %s", ErrInvalidRecurrence, r.N, r.Unit)
		}
	case RepeatWindow:
		if len(r.Dates) == 0 && r.Weekdays.IsEmpty() {
			return fmt.Errorf("%w: window rule requires dates or weekdays", ErrInvalidRecurrence)
		}
	}
	return nil
}

// WeekdaySet is a bitmask of allowed weekdays, bit positions matching
// time.Weekday (Sunday = 0).
type WeekdaySet uint8

// NewWeekdaySet builds a set from the given weekdays.
func NewWeekdaySet(days ...time.Weekday) WeekdaySet {
	var s WeekdaySet
	for _, d := range days {
		s |= 1 << uint(d)
	}
	return s
}

// Contains reports whether the set allows the given weekday. The empty set
// allows every weekday.
func (s WeekdaySet) Contains(d time.Weekday) bool {
	if s.IsEmpty() {
		return true
	}
	return s&(1<<uint(d)) != 0
}

// IsEmpty reports whether no weekday has been selected.
func (s WeekdaySet) IsEmpty() bool { return s == 0 }

// Weekdays returns the selected weekdays in Sunday-first order.
func (s WeekdaySet) Weekdays() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if s&(1<<uint(d)) != 0 {
			days = append(days, d)
		}
	}
	return days
}

// MarshalJSON encodes the set as an array of weekday numbers.
func (s WeekdaySet) MarshalJSON() ([]byte, error) {
	days := make([]int, 0, 7)
	for _, d := range s.Weekdays() {
		days = append(days, int(d))
	}
	return json.Marshal(days)
}

// UnmarshalJSON accepts an array of weekday numbers (0 = Sunday).
func (s *WeekdaySet) UnmarshalJSON(data []byte) error {
	var days []int
	if err := json.Unmarshal(data, &days); err != nil {
		return err
	}
	var set WeekdaySet
	for _, d := range days {
		if d < 0 || d > 6 {
			return fmt.Errorf("weekday %d out of range", d)
		}
		set |= 1 << uint(d)
	}
	*s = set
	return nil
}

// EndType discriminates a reminder's end condition.
type EndType string

const (
	EndNone       EndType = "none"
	EndAfterCount EndType = "after_count"
	EndOnDate     EndType = "on_date"
)

// End is a reminder's end condition. Count applies to after_count, Date and
// TimeOfDay ("HH:MM", empty = end of day) to on_date.
type End struct {
	Type      EndType    `json:"type"`
	Count     int        `json:"count,omitempty"`
	Date      *time.Time `json:"date,omitempty"`
	TimeOfDay string     `json:"time_of_day,omitempty"`
}

// Deadline resolves the on_date condition to a concrete instant in loc.
// Returns false for other end types.
func (e End) Deadline(loc *time.Location) (time.Time, bool) {
	if e.Type != EndOnDate || e.Date == nil {
		return time.Time{}, false
	}
	d := e.Date.In(loc)
	hour, min := 23, 59
	if e.TimeOfDay != "" {
		if t, err := time.Parse("15:04", e.TimeOfDay); err == nil {
			hour, min = t.Hour(), t.Minute()
		}
	}
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, 59, 0, loc), true
}
