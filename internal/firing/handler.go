// Package firing is the background context: it runs when a platform
// wake-up is delivered, with no guarantee the foreground logic is
// reachable. Everything it must not lose goes to the alarmstore first;
// everything user-visible is attempted regardless of bookkeeping failures.
package firing

import (
	"context"
	"log"
	"sync"
	"time"

	"remindd/internal/alarm"
	"remindd/internal/alarmstore"
	"remindd/internal/models"
)

// Alert session pacing: one audible/vibration cycle every interval until
// acknowledged, hard-stopped at the timeout with a "missed" fallback.
const (
	DefaultAlertInterval = 30 * time.Second
	DefaultAlertTimeout  = 5 * time.Minute
)

// Notifier delivers user-visible output for the background context.
type Notifier interface {
	// ShowNotification displays the reminder notification.
	ShowNotification(ctx context.Context, p alarm.WakePayload, firedAt time.Time) error
	// AlertOnce runs one audible/vibration cycle of an alert session.
	AlertOnce(ctx context.Context, p alarm.WakePayload) error
	// ShowMissed reports an alert session that timed out unacknowledged.
	ShowMissed(ctx context.Context, p alarm.WakePayload) error
}

// SettingsReader supplies per-user alert preferences at fire time.
type SettingsReader interface {
	Get(ctx context.Context, userID int64) (*models.Settings, error)
}

// Foreground is the reachable-application sink. Calls fail when the
// foreground store is down; the handler then falls back to the
// alarmstore's pending-action queue and lets reconciliation catch up.
type Foreground interface {
	// HandleFired applies a firing to the foreground reminder record.
	HandleFired(ctx context.Context, reminderID int, firedAt time.Time) error
	// Apply applies a user response to the foreground reminder record.
	Apply(ctx context.Context, a models.PendingAction) error
}

type alertSession struct {
	stop chan struct{}
	once sync.Once
}

func (s *alertSession) end() { s.once.Do(func() { close(s.stop) }) }

// Handler processes wake-up deliveries and user responses to them.
type Handler struct {
	store    *alarmstore.Store
	notifier Notifier
	settings SettingsReader

	mu         sync.Mutex
	foreground Foreground
	sessions   map[int]*alertSession

	// Tunable for tests; production uses the defaults.
	AlertInterval time.Duration
	AlertTimeout  time.Duration
}

func NewHandler(store *alarmstore.Store, notifier Notifier, settings SettingsReader) *Handler {
	return &Handler{
		store:         store,
		notifier:      notifier,
		settings:      settings,
		sessions:      make(map[int]*alertSession),
		AlertInterval: DefaultAlertInterval,
		AlertTimeout:  DefaultAlertTimeout,
	}
}

// SetForeground installs the foreground sink once the orchestrator is up.
func (h *Handler) SetForeground(fg Foreground) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.foreground = fg
}

// HandleWake processes one delivered wake-up. The authoritative counter is
// written first: a failed notification must never lose the occurrence.
// The notification itself is attempted even if the bookkeeping write
// failed; the two are independent.
func (h *Handler) HandleWake(p alarm.WakePayload, firedAt time.Time) {
	ctx := context.Background()

	if err := h.store.RecordFire(ctx, p.ReminderID, firedAt); err != nil {
		log.Printf("Failed to record fire for reminder %d: %v", p.ReminderID, err)
	}

	if err := h.notifier.ShowNotification(ctx, p, firedAt); err != nil {
		log.Printf("Failed to show notification for reminder %d: %v", p.ReminderID, err)
	}

	if p.Priority == models.PriorityHigh {
		h.startAlertSession(p, firedAt)
	}

	h.mu.Lock()
	fg := h.foreground
	h.mu.Unlock()
	if fg != nil {
		if err := fg.HandleFired(ctx, p.ReminderID, firedAt); err != nil {
			// Foreground unreachable; reconciliation will absorb the
			// authoritative record on its next pass.
			log.Printf("Foreground unavailable for fired reminder %d: %v", p.ReminderID, err)
		}
	}
}

// HandleResponse applies a user response to a live alert. If the
// foreground store is unreachable the response is queued as a pending
// action keyed by its recorded instant; reconciliation consumes it
// exactly once.
func (h *Handler) HandleResponse(ctx context.Context, a models.PendingAction) error {
	h.StopAlertSession(a.ReminderID)

	h.mu.Lock()
	fg := h.foreground
	h.mu.Unlock()

	if fg != nil {
		if err := fg.Apply(ctx, a); err == nil {
			return nil
		} else {
			log.Printf("Foreground unavailable for %s on reminder %d, queuing: %v", a.Kind, a.ReminderID, err)
		}
	}
	return h.store.AppendAction(ctx, a)
}

func (h *Handler) startAlertSession(p alarm.WakePayload, firedAt time.Time) {
	h.mu.Lock()
	if _, exists := h.sessions[p.ReminderID]; exists {
		h.mu.Unlock()
		return
	}
	session := &alertSession{stop: make(chan struct{})}
	h.sessions[p.ReminderID] = session
	interval, timeout := h.AlertInterval, h.AlertTimeout
	h.mu.Unlock()

	go h.runAlertSession(p, session, interval, timeout, firedAt)
}

func (h *Handler) runAlertSession(p alarm.WakePayload, session *alertSession, interval, timeout time.Duration, firedAt time.Time) {
	defer func() {
		h.mu.Lock()
		if h.sessions[p.ReminderID] == session {
			delete(h.sessions, p.ReminderID)
		}
		h.mu.Unlock()
	}()

	ctx := context.Background()

	if h.suppressedByQuietHours(ctx, p.UserID, firedAt) {
		log.Printf("Alert session for reminder %d suppressed by quiet hours", p.ReminderID)
		return
	}

	if err := h.notifier.AlertOnce(ctx, p); err != nil {
		log.Printf("Alert cycle failed for reminder %d: %v", p.ReminderID, err)
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		select {
		case <-session.stop:
			return
		case <-deadline.C:
			// Unacknowledged for the full timeout: distinct "missed"
			// outcome, not counted as done.
			if err := h.notifier.ShowMissed(ctx, p); err != nil {
				log.Printf("Failed to show missed notification for reminder %d: %v", p.ReminderID, err)
			}
			return
		case <-ticker.C:
			if err := h.notifier.AlertOnce(ctx, p); err != nil {
				log.Printf("Alert cycle failed for reminder %d: %v", p.ReminderID, err)
			}
		}
	}
}

// StopAlertSession dismisses a running alert session. Idempotent.
func (h *Handler) StopAlertSession(reminderID int) {
	h.mu.Lock()
	session := h.sessions[reminderID]
	h.mu.Unlock()
	if session != nil {
		session.end()
	}
}

// AlertActive reports whether an alert session is running for the id.
func (h *Handler) AlertActive(reminderID int) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	_, ok := h.sessions[reminderID]
	return ok
}

func (h *Handler) suppressedByQuietHours(ctx context.Context, userID int64, at time.Time) bool {
	if h.settings == nil {
		return false
	}
	settings, err := h.settings.Get(ctx, userID)
	if err != nil {
		// Preferences unavailable must not silence a high-priority alert.
		return false
	}
	if !settings.SoundEnabled && !settings.VibrationEnabled {
		return true
	}
	return settings.IsQuietHours(at)
}
