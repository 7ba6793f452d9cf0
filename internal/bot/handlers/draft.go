package handlers

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"remindd/internal/ai"
	"remindd/internal/models"
	"remindd/internal/recurrence"
)

// Per-user follow-up state for multi-turn draft conversations.
var (
	draftMutex    sync.Mutex
	draftSessions = make(map[int64]*draftSession)
)

type draftSession struct {
	History   []ai.Message
	ExpiresAt time.Time
}

const draftSessionTTL = 5 * time.Minute

// handleDraftMessage turns free text into a reminder via the AI parser.
func (h *Handlers) handleDraftMessage(ctx context.Context, msg *tgbotapi.Message) {
	if h.ai == nil {
		h.sendMessage(msg.Chat.ID, "I only understand commands here, see /help")
		return
	}

	userID := msg.From.ID

	draftMutex.Lock()
	session, ok := draftSessions[userID]
	if ok && time.Now().After(session.ExpiresAt) {
		delete(draftSessions, userID)
		session = nil
		ok = false
	}
	draftMutex.Unlock()

	var history []ai.Message
	if ok {
		history = append(history, session.History...)
	}
	history = append(history, ai.Message{Role: "user", Content: msg.Text})

	draft, err := h.ai.ParseDraftWithHistory(ctx, history)
	if err != nil {
		log.Printf("Failed to parse draft for user %d: %v", userID, err)
		h.sendMessage(msg.Chat.ID, "I couldn't parse that, try /remind <HH:MM> <title>")
		return
	}

	if draft.NeedMoreInfo {
		draftMutex.Lock()
		draftSessions[userID] = &draftSession{
			History:   history,
			ExpiresAt: time.Now().Add(draftSessionTTL),
		}
		draftMutex.Unlock()

		prompt := draft.FollowUpPrompt
		if prompt == "" {
			prompt = "What should I remind you about, and when?"
		}
		h.sendMessage(msg.Chat.ID, prompt)
		return
	}

	draftMutex.Lock()
	delete(draftSessions, userID)
	draftMutex.Unlock()

	reminder, err := h.reminderFromDraft(ctx, userID, draft)
	if err != nil {
		log.Printf("Failed to build reminder from draft for user %d: %v", userID, err)
		h.sendMessage(msg.Chat.ID, "I couldn't turn that into a reminder, try /remind <HH:MM> <title>")
		return
	}

	if err := h.orch.Create(ctx, reminder); err != nil {
		h.sendMessage(msg.Chat.ID, "Could not create the reminder, try again later")
		return
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("⏰ Reminder #%d set\n*%s*\n📅 %s",
		reminder.ReminderID, reminder.Title, reminder.BaseAt.Format("2006-01-02 15:04")))
	if reminder.IsRecurring() {
		sb.WriteString("\n🔄 " + recurrence.Describe(reminder.Rule, reminder.End))
	}
	if reminder.Priority == models.PriorityHigh {
		sb.WriteString("\n🚨 Will keep ringing until you answer")
	}
	h.sendMessage(msg.Chat.ID, sb.String())
}

func (h *Handlers) reminderFromDraft(ctx context.Context, userID int64, draft *ai.Draft) (*models.Reminder, error) {
	if draft.Title == "" {
		return nil, fmt.Errorf("draft has no title")
	}

	loc := time.Local
	if settings, err := h.repos.Settings.GetOrCreate(ctx, userID); err == nil {
		loc = settings.Location()
	}

	baseAt, err := draft.BaseTime(loc)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve base time: %w", err)
	}

	rule := models.RepeatRule(models.RepeatNone{})
	end := models.End{Type: models.EndNone}
	if draft.Rule != "" {
		rule, end, err = recurrence.FromRRule(draft.Rule)
		if err != nil {
			return nil, fmt.Errorf("failed to translate recurrence: %w", err)
		}
	}

	// Draft-level end fields win over what the RRULE carried.
	if draft.EndCount > 0 {
		end = models.End{Type: models.EndAfterCount, Count: draft.EndCount}
	}
	if endDate, err := draft.EndTime(loc); err == nil && endDate != nil {
		end = models.End{Type: models.EndOnDate, Date: endDate}
	}

	priority := models.Priority(draft.Priority)
	if priority != models.PriorityLow && priority != models.PriorityHigh {
		priority = models.PriorityMedium
	}

	return &models.Reminder{
		UserID:      userID,
		Title:       draft.Title,
		Description: draft.Description,
		Priority:    priority,
		Rule:        rule,
		End:         end,
		BaseAt:      baseAt,
	}, nil
}
