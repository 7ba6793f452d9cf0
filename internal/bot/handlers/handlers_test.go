package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"remindd/internal/models"
)

func TestCallbackOutcomeSnoozeOnCompletedReminder(t *testing.T) {
	r := &models.Reminder{ReminderID: 7, Title: "water the plants", Completed: true}

	apply, reply := callbackOutcome(r, models.PendingAction{
		ReminderID:    7,
		Kind:          models.ActionSnooze,
		SnoozeMinutes: 10,
	})

	assert.False(t, apply)
	assert.Equal(t, "✅ Already done: water the plants", reply)
}

func TestCallbackOutcomeSnoozeOnActiveReminder(t *testing.T) {
	r := &models.Reminder{ReminderID: 7, Title: "water the plants"}

	apply, reply := callbackOutcome(r, models.PendingAction{
		ReminderID:    7,
		Kind:          models.ActionSnooze,
		SnoozeMinutes: 10,
	})

	assert.True(t, apply)
	assert.Equal(t, "💤 Snoozed 10 min: water the plants", reply)
}

func TestCallbackOutcomeDone(t *testing.T) {
	r := &models.Reminder{ReminderID: 7, Title: "water the plants", Completed: true}

	apply, reply := callbackOutcome(r, models.PendingAction{ReminderID: 7, Kind: models.ActionDone})

	assert.True(t, apply)
	assert.Equal(t, "✅ Done: water the plants", reply)
}
