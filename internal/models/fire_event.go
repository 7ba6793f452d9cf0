package models

import "time"

// FireSource records which execution context observed a firing.
type FireSource string

const (
	SourceBackground FireSource = "background"
	SourceForeground FireSource = "foreground"
)

// FireEvent is one observed delivery of a reminder's wake-up. Immutable;
// the per-reminder sequence ordered by FiredAt is the reminder's
// completion history.
type FireEvent struct {
	FireEventID int        `json:"fire_event_id"`
	ReminderID  int        `json:"reminder_id"`
	FiredAt     time.Time  `json:"fired_at"`
	Source      FireSource `json:"source"`
}
