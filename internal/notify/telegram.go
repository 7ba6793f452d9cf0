// Package notify delivers reminder notifications over Telegram. It is
// the presentation side of a firing: the message, the re-alert nudges of
// an alert session, and the missed-reminder notice.
package notify

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/alarm"
	"remindd/internal/format"
	"remindd/internal/models"
)

type Telegram struct {
	api *tgbotapi.BotAPI

	// Last notification message per reminder, deleted before the next
	// one to avoid flooding the chat.
	mu       sync.Mutex
	lastMsg  map[int]int
	degraded map[int]bool
}

func NewTelegram(api *tgbotapi.BotAPI) *Telegram {
	return &Telegram{
		api:      api,
		lastMsg:  make(map[int]int),
		degraded: make(map[int]bool),
	}
}

// SetDegraded marks a reminder whose wake-up was scheduled best-effort,
// so its notifications carry a timing warning.
func (t *Telegram) SetDegraded(reminderID int, degraded bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if degraded {
		t.degraded[reminderID] = true
	} else {
		delete(t.degraded, reminderID)
	}
}

func (t *Telegram) ShowNotification(ctx context.Context, p alarm.WakePayload, firedAt time.Time) error {
	t.mu.Lock()
	lastID, hadPrev := t.lastMsg[p.ReminderID]
	degraded := t.degraded[p.ReminderID]
	t.mu.Unlock()

	if hadPrev {
		deleteMsg := tgbotapi.NewDeleteMessage(p.UserID, lastID)
		if _, err := t.api.Request(deleteMsg); err != nil {
			log.Printf("Failed to delete old reminder message %d: %v", lastID, err)
			// Continue anyway, the old message might have been deleted by user
		}
	}

	text := "⏰ **Reminder**\n\n" + p.Title
	if p.Priority == models.PriorityHigh {
		text = "🚨 **Reminder**\n\n" + p.Title
	}
	text += "\n\n" + firedAt.Format("15:04")
	if degraded {
		text += "\n⚠️ Delivery timing may be inexact on this device"
	}

	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(p.UserID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = responseKeyboard(p.ReminderID)

	sentMsg, err := t.api.Send(msg)
	if err != nil {
		return fmt.Errorf("failed to send reminder notification: %w", err)
	}

	t.mu.Lock()
	t.lastMsg[p.ReminderID] = sentMsg.MessageID
	t.mu.Unlock()

	log.Printf("Sent reminder %d to user %d (msg_id=%d)", p.ReminderID, p.UserID, sentMsg.MessageID)
	return nil
}

// AlertOnce is one nudge of a high-priority alert session.
func (t *Telegram) AlertOnce(ctx context.Context, p alarm.WakePayload) error {
	text := "🔔 **Still waiting**: " + p.Title

	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(p.UserID, parsed.Text)
	msg.Entities = parsed.Entities
	msg.ReplyMarkup = responseKeyboard(p.ReminderID)

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send alert nudge: %w", err)
	}
	return nil
}

// ShowMissed reports an alert session that ran out unacknowledged.
func (t *Telegram) ShowMissed(ctx context.Context, p alarm.WakePayload) error {
	text := "❌ **Missed reminder**\n\n" + p.Title

	parsed := format.ParseMarkdown(text)
	msg := tgbotapi.NewMessage(p.UserID, parsed.Text)
	msg.Entities = parsed.Entities

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send missed notice: %w", err)
	}
	log.Printf("Reminder %d for user %d went unacknowledged", p.ReminderID, p.UserID)
	return nil
}

// Forget drops the tracked message for a reminder, after delete.
func (t *Telegram) Forget(reminderID int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.lastMsg, reminderID)
	delete(t.degraded, reminderID)
}

func responseKeyboard(reminderID int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", fmt.Sprintf("remind_done:%d", reminderID)),
			tgbotapi.NewInlineKeyboardButtonData("💤 10 min", fmt.Sprintf("remind_snooze:%d:10", reminderID)),
			tgbotapi.NewInlineKeyboardButtonData("💤 1 hr", fmt.Sprintf("remind_snooze:%d:60", reminderID)),
		),
	)
}
