// Package orchestrator is the foreground control loop: it computes each
// active reminder's next fire instant, keeps the alarm scheduler armed,
// and applies user actions as state transitions on the reminder records.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"remindd/internal/alarm"
	"remindd/internal/alarmstore"
	"remindd/internal/models"
	"remindd/internal/recurrence"
)

// ReminderStore is the foreground record store.
type ReminderStore interface {
	Create(ctx context.Context, r *models.Reminder) error
	GetByID(ctx context.Context, reminderID int) (*models.Reminder, error)
	GetByUserID(ctx context.Context, userID int64) ([]*models.Reminder, error)
	ListActive(ctx context.Context) ([]*models.Reminder, error)
	Update(ctx context.Context, r *models.Reminder) error
}

// FireEventStore holds the per-occurrence completion history.
type FireEventStore interface {
	// Append records a fire event. Returns false when an event with the
	// same (reminder, instant) already exists.
	Append(ctx context.Context, e *models.FireEvent) (bool, error)
	ListByReminder(ctx context.Context, reminderID int) ([]*models.FireEvent, error)
	DeleteByReminder(ctx context.Context, reminderID int) error
}

// AuthoritativeStore is the slice of the background store the
// orchestrator needs: the native-state query and the delete cascade.
type AuthoritativeStore interface {
	Snapshot(ctx context.Context, reminderID int) (*alarmstore.Snapshot, error)
	Purge(ctx context.Context, reminderID int) error
}

// Orchestrator serializes all foreground reminder transitions behind one
// mutex; per-id ordering within the foreground context follows from that.
type Orchestrator struct {
	reminders ReminderStore
	fires     FireEventStore
	alarms    AuthoritativeStore
	sched     alarm.Scheduler

	mu       sync.Mutex
	onChange func()

	// Now is the clock, replaceable in tests.
	Now func() time.Time
}

func New(reminders ReminderStore, fires FireEventStore, alarms AuthoritativeStore, sched alarm.Scheduler) *Orchestrator {
	return &Orchestrator{
		reminders: reminders,
		fires:     fires,
		alarms:    alarms,
		sched:     sched,
		Now:       time.Now,
	}
}

// OnChange installs the "reminders changed" signal, fired after any
// mutation so views can refresh.
func (o *Orchestrator) OnChange(fn func()) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.onChange = fn
}

func (o *Orchestrator) notifyChanged() {
	o.mu.Lock()
	fn := o.onChange
	o.mu.Unlock()
	if fn != nil {
		fn()
	}
}

func wakePayload(r *models.Reminder) alarm.WakePayload {
	return alarm.WakePayload{
		ReminderID: r.ReminderID,
		UserID:     r.UserID,
		Title:      r.Title,
		Priority:   r.Priority,
	}
}

// Create validates and stores a new reminder, then arms its first
// occurrence.
func (o *Orchestrator) Create(ctx context.Context, r *models.Reminder) error {
	if r.Title == "" {
		return errors.New("reminder title is required")
	}
	if r.Priority == "" {
		r.Priority = models.PriorityMedium
	}
	if r.Rule == nil {
		r.Rule = models.RepeatNone{}
	}
	if r.End.Type == "" {
		r.End.Type = models.EndNone
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if next, ok := recurrence.Next(r, o.Now()); ok {
		r.NextFireAt = &next
	}
	if err := o.reminders.Create(ctx, r); err != nil {
		return fmt.Errorf("failed to create reminder: %w", err)
	}
	// The id is assigned by the store; arming waits for it.
	o.rearmLocked(r)
	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store reminder schedule: %w", err)
	}

	go o.notifyChanged()
	return nil
}

// Update re-stores an edited reminder and re-arms it, since the edit may
// have moved the next occurrence.
func (o *Orchestrator) Update(ctx context.Context, r *models.Reminder) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.rearmLocked(r)
	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to update reminder: %w", err)
	}
	go o.notifyChanged()
	return nil
}

// HandleFired applies an observed firing to the foreground record:
// history append, occurrence count, and the armed -> (armed | completed)
// transition. Duplicate deliveries of the same instant are absorbed by
// the history's uniqueness, so the count moves at most once per instant.
func (o *Orchestrator) HandleFired(ctx context.Context, reminderID int, firedAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load fired reminder %d: %w", reminderID, err)
	}
	if r.Disposition() == models.DispositionDeleted {
		// A fire can legitimately race a delete; nothing to apply.
		log.Printf("Dropping fire for deleted reminder %d", reminderID)
		return nil
	}

	appended, err := o.fires.Append(ctx, &models.FireEvent{
		ReminderID: reminderID,
		FiredAt:    firedAt,
		Source:     models.SourceBackground,
	})
	if err != nil {
		return fmt.Errorf("failed to record fire event: %w", err)
	}
	if appended {
		r.OccurrenceCount++
	}
	r.LastFiredAt = &firedAt
	r.SnoozeUntil = nil

	o.settleAfterFire(r, firedAt)

	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store fired reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// settleAfterFire decides fired -> armed versus fired -> completed.
func (o *Orchestrator) settleAfterFire(r *models.Reminder, firedAt time.Time) {
	if !r.IsRecurring() {
		o.completeLocked(r, firedAt)
		return
	}
	if next, ok := recurrence.Next(r, o.Now()); ok {
		target := next
		r.NextFireAt = &target
		o.armLocked(r, target)
		return
	}
	// The final occurrence was just recorded; the series is exhausted.
	o.completeLocked(r, firedAt)
}

func (o *Orchestrator) completeLocked(r *models.Reminder, at time.Time) {
	r.Completed = true
	r.CompletedAt = &at
	r.NextFireAt = nil
	r.SnoozeUntil = nil
	o.sched.Cancel(r.ReminderID)
}

// MergeFired folds authoritative background firings into the foreground
// record: the occurrence count rises to the authoritative count (never
// falls), and the trigger instants union into the fire history. Safe to
// replay; a second merge of the same snapshot changes nothing.
func (o *Orchestrator) MergeFired(ctx context.Context, reminderID, triggerCount int, history []time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if r.Disposition() == models.DispositionDeleted {
		return nil
	}

	for _, at := range history {
		if _, err := o.fires.Append(ctx, &models.FireEvent{
			ReminderID: reminderID,
			FiredAt:    at,
			Source:     models.SourceBackground,
		}); err != nil {
			return fmt.Errorf("failed to merge fire history for reminder %d: %w", reminderID, err)
		}
		if r.LastFiredAt == nil || at.After(*r.LastFiredAt) {
			fired := at
			r.LastFiredAt = &fired
		}
	}
	if triggerCount > r.OccurrenceCount {
		r.OccurrenceCount = triggerCount
	}
	if len(history) > 0 {
		r.SnoozeUntil = nil
	}

	if !r.IsRecurring() && r.OccurrenceCount > 0 {
		at := o.Now()
		if r.LastFiredAt != nil {
			at = *r.LastFiredAt
		}
		o.completeLocked(r, at)
	} else {
		o.rearmLocked(r)
	}
	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store merged reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// Done acknowledges a reminder. The origin matters: a response to a live
// alert (foreground path) never touches the occurrence count, because the
// firing itself was already counted; the count contribution of a
// background completion arrives through the authoritative counter merge
// in the same reconciliation pass that applies it.
func (o *Orchestrator) Done(ctx context.Context, reminderID int, origin models.FireSource) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if r.Disposition() != models.DispositionActive {
		return nil
	}

	now := o.Now()
	r.SnoozeUntil = nil

	if _, ok := recurrence.Next(r, now); !ok || !r.IsRecurring() {
		o.completeLocked(r, now)
	} else {
		o.rearmLocked(r)
	}

	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store done reminder %d: %w", reminderID, err)
	}
	log.Printf("Reminder %d acknowledged from %s", reminderID, origin)
	go o.notifyChanged()
	return nil
}

// Snooze re-arms the reminder N minutes from now. The occurrence count is
// untouched: snoozing defers the same occurrence, it does not complete it.
func (o *Orchestrator) Snooze(ctx context.Context, reminderID, minutes int) error {
	if minutes <= 0 {
		return fmt.Errorf("snooze minutes must be positive, got %d", minutes)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if r.Disposition() != models.DispositionActive || r.Paused {
		return nil
	}

	until := o.Now().Add(time.Duration(minutes) * time.Minute)
	r.SnoozeUntil = &until
	r.NextFireAt = &until
	o.armLocked(r, until)

	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store snoozed reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// Pause cancels the armed wake-up and clears any in-flight snooze target
// in the same transition. With until set, RefreshAll auto-resumes once
// that instant passes.
func (o *Orchestrator) Pause(ctx context.Context, reminderID int, until *time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}
	if r.Disposition() != models.DispositionActive {
		return nil
	}

	r.Paused = true
	r.PausedUntil = until
	r.SnoozeUntil = nil
	r.NextFireAt = nil
	o.sched.Cancel(reminderID)

	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store paused reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// Resume re-enters the armed state with a freshly computed fire instant.
func (o *Orchestrator) Resume(ctx context.Context, reminderID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}

	r.Paused = false
	r.PausedUntil = nil
	o.rearmLocked(r)

	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store resumed reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// Delete cancels the wake-up and cascades to the derived per-occurrence
// history and the background store before marking the record deleted.
func (o *Orchestrator) Delete(ctx context.Context, reminderID int) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	r, err := o.reminders.GetByID(ctx, reminderID)
	if err != nil {
		return fmt.Errorf("failed to load reminder %d: %w", reminderID, err)
	}

	o.sched.Cancel(reminderID)

	if err := o.fires.DeleteByReminder(ctx, reminderID); err != nil {
		return fmt.Errorf("failed to delete fire history for reminder %d: %w", reminderID, err)
	}
	if o.alarms != nil {
		if err := o.alarms.Purge(ctx, reminderID); err != nil {
			// Leftover background rows are harmless for a deleted id and
			// get dropped on a later pass; the delete itself proceeds.
			log.Printf("Failed to purge background store for reminder %d: %v", reminderID, err)
		}
	}

	r.Deleted = true
	r.NextFireAt = nil
	r.SnoozeUntil = nil
	if err := o.reminders.Update(ctx, r); err != nil {
		return fmt.Errorf("failed to store deleted reminder %d: %w", reminderID, err)
	}
	go o.notifyChanged()
	return nil
}

// Apply routes a recorded user response to its transition. This is the
// consumption side of the pending-action queue and the direct sink for
// live responses.
func (o *Orchestrator) Apply(ctx context.Context, a models.PendingAction) error {
	switch a.Kind {
	case models.ActionDone:
		return o.Done(ctx, a.ReminderID, models.SourceBackground)
	case models.ActionSnooze:
		return o.Snooze(ctx, a.ReminderID, a.SnoozeMinutes)
	case models.ActionDelete:
		return o.Delete(ctx, a.ReminderID)
	}
	return fmt.Errorf("unknown pending action kind %q", a.Kind)
}

// RefreshAll walks every active reminder: auto-resumes expired pauses,
// re-arms stale schedules, and settles exhausted series. Runs at startup,
// after reconciliation, and on the midnight refresh.
func (o *Orchestrator) RefreshAll(ctx context.Context) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	active, err := o.reminders.ListActive(ctx)
	if err != nil {
		return fmt.Errorf("failed to list active reminders: %w", err)
	}

	now := o.Now()
	var firstErr error
	for _, r := range active {
		if r.Paused {
			if r.PausedUntil == nil || r.PausedUntil.After(now) {
				continue
			}
			r.Paused = false
			r.PausedUntil = nil
		}

		o.rearmLocked(r)
		if err := o.reminders.Update(ctx, r); err != nil {
			log.Printf("Failed to refresh reminder %d: %v", r.ReminderID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	go o.notifyChanged()
	return firstErr
}

// rearmLocked recomputes the reminder's target instant and keeps the
// scheduler in sync with it. Callers hold o.mu.
func (o *Orchestrator) rearmLocked(r *models.Reminder) {
	if r.Disposition() != models.DispositionActive || r.Paused {
		r.NextFireAt = nil
		o.sched.Cancel(r.ReminderID)
		return
	}

	now := o.Now()
	var target time.Time
	switch {
	case r.SnoozeUntil != nil && r.SnoozeUntil.After(now):
		target = *r.SnoozeUntil
	default:
		r.SnoozeUntil = nil
		next, ok := recurrence.Next(r, now)
		if !ok {
			o.settleExhausted(r, now)
			return
		}
		target = next
	}

	r.NextFireAt = &target
	o.armLocked(r, target)
}

// settleExhausted handles an active reminder with no further occurrence.
func (o *Orchestrator) settleExhausted(r *models.Reminder, now time.Time) {
	r.NextFireAt = nil
	o.sched.Cancel(r.ReminderID)

	switch r.End.Type {
	case models.EndAfterCount:
		if r.OccurrenceCount >= r.End.Count {
			o.completeLocked(r, now)
		}
	case models.EndOnDate:
		if deadline, ok := r.End.Deadline(now.Location()); ok && now.After(deadline) {
			// Surfaced as "ended" rather than completed: the user never
			// saw a final occurrence through.
			r.Expired = true
		}
	}
}

func (o *Orchestrator) armLocked(r *models.Reminder, at time.Time) {
	err := o.sched.Arm(wakePayload(r), at)
	switch {
	case errors.Is(err, alarm.ErrPermissionDenied):
		r.DeliveryDegraded = true
	case err != nil:
		log.Printf("Failed to arm reminder %d: %v", r.ReminderID, err)
	default:
		r.DeliveryDegraded = false
	}
}

// NativeState is the per-reminder bulk snapshot handed to the UI layer at
// startup: foreground disposition next to the authoritative counters.
type NativeState struct {
	ReminderID      int
	OccurrenceCount int
	Completed       bool
	CompletedAt     *time.Time
	LastTrigger     *time.Time
	TriggerHistory  []time.Time
}

// Snapshot builds the native-state view for every reminder of a user.
func (o *Orchestrator) Snapshot(ctx context.Context, userID int64) ([]NativeState, error) {
	reminders, err := o.reminders.GetByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminders: %w", err)
	}

	states := make([]NativeState, 0, len(reminders))
	for _, r := range reminders {
		state := NativeState{
			ReminderID:      r.ReminderID,
			OccurrenceCount: r.OccurrenceCount,
			Completed:       r.Completed,
			CompletedAt:     r.CompletedAt,
			LastTrigger:     r.LastFiredAt,
		}
		if o.alarms != nil {
			snap, err := o.alarms.Snapshot(ctx, r.ReminderID)
			if err != nil {
				log.Printf("Failed to read background snapshot for reminder %d: %v", r.ReminderID, err)
			} else {
				if snap.TriggerCount > state.OccurrenceCount {
					state.OccurrenceCount = snap.TriggerCount
				}
				if snap.LastTrigger != nil {
					state.LastTrigger = snap.LastTrigger
				}
				state.TriggerHistory = snap.History
			}
		}
		states = append(states, state)
	}
	return states, nil
}
