package models

import "time"

// Priority controls how a firing is delivered. High-priority reminders get
// an audible/vibrating alert session on top of the notification.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// Disposition is a reminder's primary state. Exactly one disposition holds
// at any time; paused and snoozed are sub-states of active.
type Disposition string

const (
	DispositionActive    Disposition = "active"
	DispositionCompleted Disposition = "completed"
	DispositionDeleted   Disposition = "deleted"
)

type Reminder struct {
	ReminderID  int        `json:"reminder_id"`
	UserID      int64      `json:"user_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    Priority   `json:"priority"`
	Rule        RepeatRule `json:"rule"`
	End         End        `json:"end"`

	// BaseAt anchors the repeat rule: the first candidate instant and the
	// time-of-day every derived occurrence inherits.
	BaseAt time.Time `json:"base_at"`

	NextFireAt  *time.Time `json:"next_fire_at"`
	SnoozeUntil *time.Time `json:"snooze_until"`
	Paused      bool       `json:"paused"`
	PausedUntil *time.Time `json:"paused_until"`
	Completed   bool       `json:"completed"`
	CompletedAt *time.Time `json:"completed_at"`
	Deleted     bool       `json:"deleted"`
	Expired     bool       `json:"expired"`

	// DeliveryDegraded marks a reminder whose wake-up could only be
	// scheduled in best-effort mode (exact-wake capability denied).
	DeliveryDegraded bool `json:"delivery_degraded"`

	// OccurrenceCount is the number of observed firings. Monotonically
	// non-decreasing; reconciliation only ever raises it.
	OccurrenceCount int        `json:"occurrence_count"`
	LastFiredAt     *time.Time `json:"last_fired_at"`

	CreatedAt time.Time `json:"created_at"`
}

// Disposition returns the reminder's primary state.
func (r *Reminder) Disposition() Disposition {
	switch {
	case r.Deleted:
		return DispositionDeleted
	case r.Completed:
		return DispositionCompleted
	default:
		return DispositionActive
	}
}

// IsRecurring reports whether the reminder can fire more than once.
func (r *Reminder) IsRecurring() bool {
	if r.Rule == nil {
		return false
	}
	return r.Rule.Kind() != KindNone
}

// IsArmed reports whether the reminder should hold a platform wake-up.
func (r *Reminder) IsArmed() bool {
	return r.Disposition() == DispositionActive && !r.Paused && r.NextFireAt != nil
}
