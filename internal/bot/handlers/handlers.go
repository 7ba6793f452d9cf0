package handlers

import (
	"context"
	"log"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/ai"
	"remindd/internal/firing"
	"remindd/internal/models"
	"remindd/internal/orchestrator"
	"remindd/internal/repository"
)

type Repositories struct {
	User      *repository.UserRepository
	Reminder  *repository.ReminderRepository
	Settings  *repository.SettingsRepository
	FireEvent *repository.FireEventRepository
}

type Handlers struct {
	api    *tgbotapi.BotAPI
	repos  *Repositories
	orch   *orchestrator.Orchestrator
	firing *firing.Handler
	ai     *ai.Client
}

func New(api *tgbotapi.BotAPI, repos *Repositories, orch *orchestrator.Orchestrator, fh *firing.Handler, aiClient *ai.Client) *Handlers {
	return &Handlers{
		api:    api,
		repos:  repos,
		orch:   orch,
		firing: fh,
		ai:     aiClient,
	}
}

func (h *Handlers) HandleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// Ensure user exists
	_, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	switch msg.Command() {
	case "start":
		h.handleStart(ctx, msg)
	case "help":
		h.handleHelp(ctx, msg)
	case "remind":
		h.handleRemind(ctx, msg)
	case "reminders":
		h.handleReminderList(ctx, msg)
	case "done":
		h.handleDone(ctx, msg)
	case "snooze":
		h.handleSnooze(ctx, msg)
	case "pause":
		h.handlePause(ctx, msg)
	case "resume":
		h.handleResume(ctx, msg)
	case "delete":
		h.handleDelete(ctx, msg)
	case "history":
		h.handleHistory(ctx, msg)
	case "settings":
		h.handleSettings(ctx, msg)
	case "quiet":
		h.handleQuietHours(ctx, msg)
	case "sound":
		h.handleSound(ctx, msg)
	case "timezone":
		h.handleTimezone(ctx, msg)
	default:
		h.sendMessage(msg.Chat.ID, "Unknown command, see /help for the list")
	}
}

func (h *Handlers) HandleMessage(ctx context.Context, msg *tgbotapi.Message) {
	// Ensure user exists
	_, err := h.repos.User.GetOrCreate(ctx, msg.From.ID, msg.From.UserName)
	if err != nil {
		log.Printf("Failed to get/create user: %v", err)
		return
	}

	h.handleDraftMessage(ctx, msg)
}

// HandleCallbackQuery routes inline-button presses: "remind_done:<id>"
// and "remind_snooze:<id>:<minutes>".
func (h *Handlers) HandleCallbackQuery(ctx context.Context, callback *tgbotapi.CallbackQuery) {
	// Answer callback to remove loading state
	answer := tgbotapi.NewCallback(callback.ID, "")
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback: %v", err)
	}

	parts := strings.Split(callback.Data, ":")
	if len(parts) < 2 {
		return
	}

	reminderID, err := strconv.Atoi(parts[1])
	if err != nil {
		return
	}

	// Responses must come from the reminder's owner.
	r, err := h.repos.Reminder.GetByID(ctx, reminderID)
	if err != nil {
		log.Printf("Failed to load reminder %d for callback: %v", reminderID, err)
		return
	}
	if r.UserID != callback.From.ID {
		h.answerCallbackWithAlert(callback.ID, "That reminder is not yours")
		return
	}

	action := models.PendingAction{
		ReminderID: reminderID,
		RecordedAt: time.Now(),
	}

	switch parts[0] {
	case "remind_done":
		action.Kind = models.ActionDone
	case "remind_snooze":
		if len(parts) != 3 {
			return
		}
		minutes, err := strconv.Atoi(parts[2])
		if err != nil || minutes <= 0 {
			return
		}
		action.Kind = models.ActionSnooze
		action.SnoozeMinutes = minutes
	default:
		return
	}

	apply, reply := callbackOutcome(r, action)
	if !apply {
		// Nothing left to transition, but a ringing alert still wants
		// quieting.
		h.firing.StopAlertSession(reminderID)
		h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, reply)
		return
	}

	if err := h.firing.HandleResponse(ctx, action); err != nil {
		log.Printf("Failed to handle %s for reminder %d: %v", action.Kind, reminderID, err)
		h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, "❌ Could not apply that, try again")
		return
	}

	h.editMessageText(callback.Message.Chat.ID, callback.Message.MessageID, reply)
}

// callbackOutcome decides whether an inline-button action should be applied
// and what text replaces the notification message. One-time reminders settle
// at fire time, so snoozing their notification has nothing left to defer;
// confirming a snooze that did not happen would mislead.
func callbackOutcome(r *models.Reminder, a models.PendingAction) (apply bool, reply string) {
	switch a.Kind {
	case models.ActionDone:
		return true, "✅ Done: " + r.Title
	case models.ActionSnooze:
		if r.Disposition() != models.DispositionActive {
			return false, "✅ Already done: " + r.Title
		}
		return true, "💤 Snoozed " + strconv.Itoa(a.SnoozeMinutes) + " min: " + r.Title
	}
	return false, ""
}

func (h *Handlers) answerCallbackWithAlert(callbackID string, text string) {
	answer := tgbotapi.NewCallbackWithAlert(callbackID, text)
	if _, err := h.api.Request(answer); err != nil {
		log.Printf("Failed to answer callback with alert: %v", err)
	}
}

func (h *Handlers) editMessageText(chatID int64, messageID int, text string) {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = "Markdown"
	if _, err := h.api.Send(edit); err != nil {
		log.Printf("Failed to edit message: %v", err)
	}
}

func (h *Handlers) sendMessage(chatID int64, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = "Markdown"
	if _, err := h.api.Send(msg); err != nil {
		log.Printf("Failed to send message: %v", err)
	}
}

func (h *Handlers) handleStart(ctx context.Context, msg *tgbotapi.Message) {
	text := `👋 Hi ` + msg.From.FirstName + `!

I keep your reminders: one-time, daily, weekly, monthly, yearly, or on a custom interval, and I keep ringing for the important ones until you answer.

Try:
• "/remind 15:30 drink water"
• "remind me to take my pills every day at 9"
• "/reminders" to see what's scheduled

See /help for all commands`
	h.sendMessage(msg.Chat.ID, text)
}

func (h *Handlers) handleHelp(ctx context.Context, msg *tgbotapi.Message) {
	text := `📖 *Commands*

*Reminders*
/remind <HH:MM> <title> - set a reminder
/reminders - list reminders
/done <id> - acknowledge a reminder
/snooze <id> [minutes] - put one off (default 10)
/pause <id> [hours] - stop firing, optionally auto-resume
/resume <id> - start firing again
/delete <id> - remove a reminder and its history
/history - recent firings

*Settings*
/settings - show your settings
/quiet <HH:MM> <HH:MM> - quiet hours window
/sound <on|off> - audible alerts
/timezone <name> - e.g. Europe/Berlin

💡 Plain text works too: "remind me every Monday at 8 to water the plants"`
	h.sendMessage(msg.Chat.ID, text)
}
