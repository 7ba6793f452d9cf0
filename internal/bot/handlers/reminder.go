package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/models"
	"remindd/internal/recurrence"
)

func (h *Handlers) handleRemind(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		h.sendMessage(msg.Chat.ID, "Usage: /remind <HH:MM> <title>\nExample: /remind 15:30 standup")
		return
	}

	// Simple parsing: first word is time, rest is the title
	parts := strings.SplitN(args, " ", 2)
	if len(parts) < 2 {
		h.sendMessage(msg.Chat.ID, "Usage: /remind <HH:MM> <title>\nExample: /remind 15:30 standup")
		return
	}

	baseAt, err := parseTimeToday(parts[0])
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Bad time, use HH:MM (example 15:30)")
		return
	}

	reminder := &models.Reminder{
		UserID:   msg.From.ID,
		Title:    parts[1],
		Priority: models.PriorityMedium,
		Rule:     models.RepeatNone{},
		BaseAt:   baseAt,
	}

	if err := h.orch.Create(ctx, reminder); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not create the reminder, try again later")
		return
	}

	h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏰ Reminder #%d set for %s\n%s",
		reminder.ReminderID, baseAt.Format("2006-01-02 15:04"), reminder.Title))
}

func (h *Handlers) handleReminderList(ctx context.Context, msg *tgbotapi.Message) {
	reminders, err := h.repos.Reminder.GetByUserID(ctx, msg.From.ID)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Could not load your reminders, try again later")
		return
	}

	if len(reminders) == 0 {
		h.sendMessage(msg.Chat.ID, "⏰ No reminders yet")
		return
	}

	var sb strings.Builder
	sb.WriteString("⏰ *Reminders*\n\n")
	for _, r := range reminders {
		sb.WriteString(fmt.Sprintf("%s *%d.* %s\n", statusIcon(r), r.ReminderID, r.Title))

		when := "not scheduled"
		switch {
		case r.Completed:
			when = "completed"
		case r.Expired:
			when = "ended"
		case r.Paused:
			when = "paused"
			if r.PausedUntil != nil {
				when += " until " + r.PausedUntil.Format("01/02 15:04")
			}
		case r.SnoozeUntil != nil:
			when = "snoozed to " + r.SnoozeUntil.Format("15:04")
		case r.NextFireAt != nil:
			when = r.NextFireAt.Format("2006-01-02 15:04")
		}
		sb.WriteString("   📅 " + when)

		if r.IsRecurring() {
			sb.WriteString(" · 🔄 " + recurrence.Describe(r.Rule, r.End))
		}
		if r.Priority == models.PriorityHigh {
			sb.WriteString(" · 🚨")
		}
		if r.OccurrenceCount > 0 {
			sb.WriteString(fmt.Sprintf(" · fired %d×", r.OccurrenceCount))
		}
		if r.DeliveryDegraded {
			sb.WriteString(" · ⚠️ inexact timing")
		}
		sb.WriteString("\n\n")
	}

	h.sendMessage(msg.Chat.ID, sb.String())
}

func statusIcon(r *models.Reminder) string {
	switch {
	case r.Completed:
		return "✅"
	case r.Expired:
		return "🏁"
	case r.Paused:
		return "⏸"
	default:
		return "🔔"
	}
}

func (h *Handlers) handleDone(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := h.ownReminderID(ctx, msg, "/done <id>")
	if !ok {
		return
	}

	h.firing.StopAlertSession(id)
	if err := h.orch.Done(ctx, id, models.SourceForeground); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not mark that done, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("✅ Reminder #%d done", id))
}

func (h *Handlers) handleSnooze(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		h.sendMessage(msg.Chat.ID, "Usage: /snooze <id> [minutes]")
		return
	}
	id, ok := h.ownedID(ctx, msg, args[0])
	if !ok {
		return
	}

	minutes := 10
	if len(args) > 1 {
		m, err := strconv.Atoi(args[1])
		if err != nil || m <= 0 {
			h.sendMessage(msg.Chat.ID, "Minutes must be a positive number")
			return
		}
		minutes = m
	}

	h.firing.StopAlertSession(id)
	if err := h.orch.Snooze(ctx, id, minutes); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not snooze that, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("💤 Reminder #%d snoozed %d min", id, minutes))
}

func (h *Handlers) handlePause(ctx context.Context, msg *tgbotapi.Message) {
	args := strings.Fields(msg.CommandArguments())
	if len(args) == 0 {
		h.sendMessage(msg.Chat.ID, "Usage: /pause <id> [hours]")
		return
	}
	id, ok := h.ownedID(ctx, msg, args[0])
	if !ok {
		return
	}

	var until *time.Time
	if len(args) > 1 {
		hours, err := strconv.Atoi(args[1])
		if err != nil || hours <= 0 {
			h.sendMessage(msg.Chat.ID, "Hours must be a positive number")
			return
		}
		t := time.Now().Add(time.Duration(hours) * time.Hour)
		until = &t
	}

	h.firing.StopAlertSession(id)
	if err := h.orch.Pause(ctx, id, until); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not pause that, try again later")
		return
	}
	if until != nil {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏸ Reminder #%d paused until %s", id, until.Format("01/02 15:04")))
	} else {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("⏸ Reminder #%d paused, /resume %d to restart", id, id))
	}
}

func (h *Handlers) handleResume(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := h.ownReminderID(ctx, msg, "/resume <id>")
	if !ok {
		return
	}

	if err := h.orch.Resume(ctx, id); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not resume that, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("▶️ Reminder #%d resumed", id))
}

func (h *Handlers) handleDelete(ctx context.Context, msg *tgbotapi.Message) {
	id, ok := h.ownReminderID(ctx, msg, "/delete <id>")
	if !ok {
		return
	}

	h.firing.StopAlertSession(id)
	if err := h.orch.Delete(ctx, id); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not delete that, try again later")
		return
	}
	h.sendMessage(msg.Chat.ID, fmt.Sprintf("🗑 Reminder #%d deleted", id))
}

func (h *Handlers) handleHistory(ctx context.Context, msg *tgbotapi.Message) {
	since := time.Now().AddDate(0, 0, -7)
	events, err := h.repos.FireEvent.ListSince(ctx, msg.From.ID, since)
	if err != nil {
		h.sendMessage(msg.Chat.ID, "Could not load your history, try again later")
		return
	}

	if len(events) == 0 {
		h.sendMessage(msg.Chat.ID, "📜 Nothing fired in the last 7 days")
		return
	}

	titles := make(map[int]string)
	var sb strings.Builder
	sb.WriteString("📜 *Last 7 days*\n\n")
	for _, e := range events {
		title, cached := titles[e.ReminderID]
		if !cached {
			if r, err := h.repos.Reminder.GetByID(ctx, e.ReminderID); err == nil {
				title = r.Title
			} else {
				title = fmt.Sprintf("#%d", e.ReminderID)
			}
			titles[e.ReminderID] = title
		}
		sb.WriteString(fmt.Sprintf("• %s - %s\n", e.FiredAt.Format("01/02 15:04"), title))
	}

	h.sendMessage(msg.Chat.ID, sb.String())
}

// ownReminderID parses the single-argument commands.
func (h *Handlers) ownReminderID(ctx context.Context, msg *tgbotapi.Message, usage string) (int, bool) {
	arg := strings.TrimSpace(msg.CommandArguments())
	if arg == "" {
		h.sendMessage(msg.Chat.ID, "Usage: "+usage)
		return 0, false
	}
	return h.ownedID(ctx, msg, arg)
}

// ownedID resolves an id argument and checks ownership.
func (h *Handlers) ownedID(ctx context.Context, msg *tgbotapi.Message, arg string) (int, bool) {
	id, err := strconv.Atoi(strings.TrimPrefix(arg, "#"))
	if err != nil {
		h.sendMessage(msg.Chat.ID, "That doesn't look like a reminder id")
		return 0, false
	}

	r, err := h.repos.Reminder.GetByID(ctx, id)
	if err != nil || r.UserID != msg.From.ID || r.Deleted {
		h.sendMessage(msg.Chat.ID, fmt.Sprintf("No reminder #%d found", id))
		return 0, false
	}
	return id, true
}

func parseTimeToday(timeStr string) (time.Time, error) {
	now := time.Now()
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		return time.Time{}, err
	}

	result := time.Date(now.Year(), now.Month(), now.Day(),
		t.Hour(), t.Minute(), 0, 0, now.Location())

	// If time already passed today, set for tomorrow
	if result.Before(now) {
		result = result.Add(24 * time.Hour)
	}

	return result, nil
}
