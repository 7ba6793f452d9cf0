package models

import "time"

// ActionKind is the kind of user response recorded while the foreground
// store was unreachable.
type ActionKind string

const (
	ActionDone   ActionKind = "done"
	ActionSnooze ActionKind = "snooze"
	ActionDelete ActionKind = "delete"
)

// PendingAction is a user response to an alert that could not be applied
// directly to the foreground record store. Consumed exactly once by
// reconciliation, keyed by (ReminderID, RecordedAt).
type PendingAction struct {
	ReminderID    int        `json:"reminder_id"`
	Kind          ActionKind `json:"kind"`
	SnoozeMinutes int        `json:"snooze_minutes,omitempty"`
	RecordedAt    time.Time  `json:"recorded_at"`
}

// ActionKey is the idempotency key for pending-action consumption.
type ActionKey struct {
	ReminderID int
	RecordedAt int64 // unix nanoseconds
}

// Key derives the action's idempotency key. The key is re-derivable from
// the stored fields, so an action surviving multiple reconciliation passes
// maps to the same key every time.
func (a PendingAction) Key() ActionKey {
	return ActionKey{ReminderID: a.ReminderID, RecordedAt: a.RecordedAt.UnixNano()}
}
