package recurrence

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"remindd/internal/models"
)

// rruleWeekdays lists rrule weekday constants in rrule order (Monday
// first), used to translate to and from time.Weekday.
var rruleWeekdays = []rrule.Weekday{
	rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA, rrule.SU,
}

func toTimeWeekday(w rrule.Weekday) time.Weekday {
	return time.Weekday((w.Day() + 1) % 7)
}

func toRRuleWeekday(d time.Weekday) rrule.Weekday {
	return rruleWeekdays[(int(d)+6)%7]
}

// FromRRule converts an RFC 5545 RRULE string into the closed repeat-rule
// type plus end condition. Only the shapes the application supports map;
// anything else returns ErrInvalidRecurrence.
func FromRRule(ruleStr string) (models.RepeatRule, models.End, error) {
	ruleStr = strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:")
	if ruleStr == "" {
		return models.RepeatNone{}, models.End{Type: models.EndNone}, nil
	}

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, models.End{}, fmt.Errorf("%w: %v", models.ErrInvalidRecurrence, err)
	}

	end := models.End{Type: models.EndNone}
	if opt.Count > 0 {
		end = models.End{Type: models.EndAfterCount, Count: opt.Count}
	} else if !opt.Until.IsZero() {
		until := opt.Until
		end = models.End{
			Type:      models.EndOnDate,
			Date:      &until,
			TimeOfDay: until.Format("15:04"),
		}
	}

	var weekdays models.WeekdaySet
	for _, w := range opt.Byweekday {
		weekdays |= models.NewWeekdaySet(toTimeWeekday(w))
	}

	interval := opt.Interval
	if interval < 1 {
		interval = 1
	}

	var rule models.RepeatRule
	switch opt.Freq {
	case rrule.MINUTELY:
		rule = models.RepeatEvery{N: interval, Unit: models.UnitMinutes}
	case rrule.HOURLY:
		rule = models.RepeatEvery{N: interval, Unit: models.UnitHours}
	case rrule.DAILY:
		if interval > 1 {
			rule = models.RepeatEvery{N: interval, Unit: models.UnitDays}
		} else {
			rule = models.RepeatDaily{Weekdays: weekdays}
		}
	case rrule.WEEKLY:
		if weekdays.IsEmpty() {
			return nil, models.End{}, fmt.Errorf("%w: weekly RRULE without BYDAY", models.ErrInvalidRecurrence)
		}
		rule = models.RepeatWeekly{Weekdays: weekdays}
	case rrule.MONTHLY:
		day := 0
		if len(opt.Bymonthday) > 0 {
			day = opt.Bymonthday[0]
		}
		if day < 1 {
			return nil, models.End{}, fmt.Errorf("%w: monthly RRULE without BYMONTHDAY", models.ErrInvalidRecurrence)
		}
		rule = models.RepeatMonthly{Day: day}
	case rrule.YEARLY:
		if len(opt.Bymonth) == 0 || len(opt.Bymonthday) == 0 {
			return nil, models.End{}, fmt.Errorf("%w: yearly RRULE without BYMONTH/BYMONTHDAY", models.ErrInvalidRecurrence)
		}
		rule = models.RepeatYearly{Month: time.Month(opt.Bymonth[0]), Day: opt.Bymonthday[0]}
	default:
		return nil, models.End{}, fmt.Errorf("%w: unsupported FREQ", models.ErrInvalidRecurrence)
	}

	if err := func() error {
		_, _, encErr := models.EncodeRule(rule)
		return encErr
	}(); err != nil {
		return nil, models.End{}, err
	}
	return rule, end, nil
}

// ToRRule renders a repeat rule and end condition as an RRULE string for
// interchange. Window rules with explicit dates have no RRULE equivalent
// and return an error; callers fall back to the native encoding.
func ToRRule(rule models.RepeatRule, end models.End) (string, error) {
	if rule == nil {
		rule = models.RepeatNone{}
	}

	var parts []string
	addWeekdays := func(set models.WeekdaySet) {
		if set.IsEmpty() {
			return
		}
		var names []string
		for _, d := range set.Weekdays() {
			names = append(names, toRRuleWeekday(d).String())
		}
		parts = append(parts, "BYDAY="+strings.Join(names, ","))
	}

	switch r := rule.(type) {
	case models.RepeatNone:
		return "", nil
	case models.RepeatDaily:
		parts = append(parts, "FREQ=DAILY")
		addWeekdays(r.Weekdays)
	case models.RepeatWeekly:
		parts = append(parts, "FREQ=WEEKLY")
		addWeekdays(r.Weekdays)
	case models.RepeatMonthly:
		parts = append(parts, "FREQ=MONTHLY", fmt.Sprintf("BYMONTHDAY=%d", r.Day))
	case models.RepeatYearly:
		parts = append(parts, "FREQ=YEARLY",
			fmt.Sprintf("BYMONTH=%d", int(r.Month)), fmt.Sprintf("BYMONTHDAY=%d", r.Day))
	case models.RepeatEvery:
		switch r.Unit {
		case models.UnitMinutes:
			parts = append(parts, "FREQ=MINUTELY")
		case models.UnitHours:
			parts = append(parts, "FREQ=HOURLY")
		case models.UnitDays:
			parts = append(parts, "FREQ=DAILY")
		default:
			return "", fmt.Errorf("%w: interval unit %q", models.ErrInvalidRecurrence, r.Unit)
		}
		if r.N > 1 {
			parts = append(parts, fmt.Sprintf("INTERVAL=%d", r.N))
		}
	case models.RepeatWindow:
		if len(r.Dates) > 0 {
			return "", fmt.Errorf("%w: explicit date windows have no RRULE form", models.ErrInvalidRecurrence)
		}
		parts = append(parts, "FREQ=WEEKLY")
		addWeekdays(r.Weekdays)
	default:
		return "", fmt.Errorf("%w: unknown rule", models.ErrInvalidRecurrence)
	}

	switch end.Type {
	case models.EndAfterCount:
		parts = append(parts, fmt.Sprintf("COUNT=%d", end.Count))
	case models.EndOnDate:
		if end.Date != nil {
			if deadline, ok := end.Deadline(end.Date.Location()); ok {
				parts = append(parts, "UNTIL="+deadline.UTC().Format("20060102T150405Z"))
			}
		}
	}

	return strings.Join(parts, ";"), nil
}

// weekdayNames in display order for Describe.
var weekdayNames = map[time.Weekday]string{
	time.Sunday: "Sun", time.Monday: "Mon", time.Tuesday: "Tue",
	time.Wednesday: "Wed", time.Thursday: "Thu", time.Friday: "Fri",
	time.Saturday: "Sat",
}

// Describe renders a repeat rule for display in lists and notifications.
func Describe(rule models.RepeatRule, end models.End) string {
	if rule == nil {
		rule = models.RepeatNone{}
	}

	var b strings.Builder
	writeDays := func(set models.WeekdaySet) {
		if set.IsEmpty() {
			return
		}
		var names []string
		for _, d := range set.Weekdays() {
			names = append(names, weekdayNames[d])
		}
		b.WriteString(" on " + strings.Join(names, ", "))
	}

	switch r := rule.(type) {
	case models.RepeatNone:
		return "once"
	case models.RepeatDaily:
		b.WriteString("daily")
		writeDays(r.Weekdays)
	case models.RepeatWeekly:
		b.WriteString("weekly")
		writeDays(r.Weekdays)
	case models.RepeatMonthly:
		fmt.Fprintf(&b, "monthly on day %d", r.Day)
	case models.RepeatYearly:
		fmt.Fprintf(&b, "yearly on %s %d", r.Month, r.Day)
	case models.RepeatEvery:
		fmt.Fprintf(&b, "every %d %s", r.N, r.Unit)
	case models.RepeatWindow:
		if len(r.Dates) > 0 {
			fmt.Fprintf(&b, "on %d selected dates", len(r.Dates))
		} else {
			b.WriteString("weekly")
			writeDays(r.Weekdays)
		}
		if r.EndTime != "" {
			b.WriteString(" until " + r.EndTime)
		}
	}

	switch end.Type {
	case models.EndAfterCount:
		fmt.Fprintf(&b, ", %d times", end.Count)
	case models.EndOnDate:
		if end.Date != nil {
			fmt.Fprintf(&b, ", until %s", end.Date.Format("2006-01-02"))
		}
	}
	return b.String()
}
