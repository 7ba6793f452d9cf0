// Package alarm wraps the platform's wake-up primitive behind a small
// scheduler interface. Exactly one wake-up is outstanding per armed
// reminder id; re-arming replaces, cancelling clears.
package alarm

import (
	"errors"
	"sync"
	"time"

	"remindd/internal/models"
)

// ErrPermissionDenied reports that the exact, wake-from-idle delivery mode
// is unavailable. The wake-up is still scheduled best-effort; callers use
// the error to mark the reminder as delivery-degraded rather than showing
// it falsely "scheduled".
var ErrPermissionDenied = errors.New("exact wake-up permission denied")

// WakePayload is the data a wake-up carries. The background firing handler
// works from this payload alone and never re-reads the full reminder
// record, so delivery survives the foreground store being unreachable.
type WakePayload struct {
	ReminderID int
	UserID     int64
	Title      string
	Priority   models.Priority
}

// FireFunc receives delivered wake-ups.
type FireFunc func(p WakePayload, firedAt time.Time)

// Scheduler schedules and cancels per-reminder wake-ups.
type Scheduler interface {
	// Arm schedules the wake-up, replacing any previous one for the same
	// reminder id. Returns ErrPermissionDenied when only best-effort
	// delivery could be requested; the wake-up is scheduled regardless.
	Arm(p WakePayload, at time.Time) error
	// Cancel drops the pending wake-up for the id, if any. Idempotent.
	Cancel(reminderID int)
}

// CapabilityFunc reports whether the exact-wake capability is granted.
type CapabilityFunc func() bool

// ExactWakeGranted is the default capability check for hosts without a
// permission model.
func ExactWakeGranted() bool { return true }

type armedTimer struct {
	timer *time.Timer
	gen   uint64
}

// TimerScheduler is the in-process Scheduler backed by one time.Timer per
// armed reminder id.
type TimerScheduler struct {
	mu        sync.Mutex
	timers    map[int]armedTimer
	gen       uint64
	fire      FireFunc
	exactWake CapabilityFunc
}

func NewTimerScheduler(exactWake CapabilityFunc) *TimerScheduler {
	if exactWake == nil {
		exactWake = ExactWakeGranted
	}
	return &TimerScheduler{
		timers:    make(map[int]armedTimer),
		exactWake: exactWake,
	}
}

// OnFire installs the delivery callback. Must be called before the first
// Arm; wake-ups delivered with no callback installed are dropped.
func (s *TimerScheduler) OnFire(fn FireFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fire = fn
}

func (s *TimerScheduler) Arm(p WakePayload, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if prev, ok := s.timers[p.ReminderID]; ok {
		prev.timer.Stop()
	}

	s.gen++
	gen := s.gen

	d := time.Until(at)
	if d < 0 {
		d = 0
	}
	s.timers[p.ReminderID] = armedTimer{
		timer: time.AfterFunc(d, func() { s.deliver(p, at, gen) }),
		gen:   gen,
	}

	if !s.exactWake() {
		return ErrPermissionDenied
	}
	return nil
}

func (s *TimerScheduler) Cancel(reminderID int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t, ok := s.timers[reminderID]; ok {
		t.timer.Stop()
		delete(s.timers, reminderID)
	}
}

// deliver runs on the timer goroutine. The generation check keeps a stale
// timer from clearing a newer arm for the same id. A fire that races a
// Cancel is still delivered: the platform contract is at-least-once, and
// downstream bookkeeping is keyed to tolerate it.
func (s *TimerScheduler) deliver(p WakePayload, at time.Time, gen uint64) {
	s.mu.Lock()
	if t, ok := s.timers[p.ReminderID]; ok && t.gen == gen {
		delete(s.timers, p.ReminderID)
	}
	fire := s.fire
	s.mu.Unlock()

	if fire != nil {
		fire(p, at)
	}
}

// Pending reports whether the id currently holds a scheduled wake-up.
func (s *TimerScheduler) Pending(reminderID int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.timers[reminderID]
	return ok
}
