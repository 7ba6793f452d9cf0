// Package reconcile merges the background store's authoritative firing
// record into the foreground reminder records and replays user responses
// that were captured while the foreground store was unreachable.
package reconcile

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"remindd/internal/alarmstore"
	"remindd/internal/models"
)

// DefaultInterval is how often the periodic pass runs.
const DefaultInterval = 30 * time.Second

// BackgroundStore is what the engine reads from and settles against.
type BackgroundStore interface {
	ReminderIDs(ctx context.Context) ([]int, error)
	Snapshot(ctx context.Context, reminderID int) (*alarmstore.Snapshot, error)
	MarkMerged(ctx context.Context, reminderID, count int) error
	Actions(ctx context.Context) ([]models.PendingAction, error)
	DeleteAction(ctx context.Context, reminderID int, recordedAt time.Time) error
}

// Foreground is the reminder-record side of the merge. MergeFired raises
// the foreground occurrence count to the authoritative count and unions
// the trigger instants into the per-occurrence history; Apply replays a
// recorded user response.
type Foreground interface {
	MergeFired(ctx context.Context, reminderID, triggerCount int, history []time.Time) error
	Apply(ctx context.Context, a models.PendingAction) error
}

// Engine runs reconciliation passes. Mirrors the scheduler-loop shape:
// a ticker plus a coalescing notify channel for on-demand passes.
type Engine struct {
	store    BackgroundStore
	fg       Foreground
	interval time.Duration

	notify chan struct{}

	mu       sync.Mutex
	consumed map[models.ActionKey]struct{}
}

func New(store BackgroundStore, fg Foreground) *Engine {
	return &Engine{
		store:    store,
		fg:       fg,
		interval: DefaultInterval,
		notify:   make(chan struct{}, 1),
		consumed: make(map[models.ActionKey]struct{}),
	}
}

// Notify requests an immediate pass. Multiple calls before the loop
// wakes coalesce into one.
func (e *Engine) Notify() {
	select {
	case e.notify <- struct{}{}:
	default:
	}
}

// Start runs an initial pass and then loops until the context is
// canceled.
func (e *Engine) Start(ctx context.Context) {
	log.Println("Reconciliation loop started")
	if err := e.RunOnce(ctx); err != nil {
		log.Printf("Startup reconciliation: %v", err)
	}

	ticker := time.NewTicker(e.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Reconciliation loop stopped")
			return
		case <-ticker.C:
		case <-e.notify:
		}
		if err := e.RunOnce(ctx); err != nil {
			log.Printf("Reconciliation pass: %v", err)
		}
	}
}

// RunOnce executes one full pass: merge counters and history for every
// reminder the background store knows about, settle the merged rows, then
// drain pending actions. The count merge runs before the action drain so
// a background "done" never double-counts: its firing enters the
// foreground count here, and the queued action only acknowledges it.
//
// A pass is idempotent. Counts merge max-wins, history unions, and the
// settle step only moves a watermark, so a repeat pass with no new fires
// changes nothing.
func (e *Engine) RunOnce(ctx context.Context) error {
	ids, err := e.store.ReminderIDs(ctx)
	if err != nil {
		return fmt.Errorf("failed to list background reminders: %w", err)
	}

	var firstErr error
	for _, id := range ids {
		if err := e.mergeOne(ctx, id); err != nil {
			// One bad reminder must not starve the rest of the pass.
			log.Printf("Failed to reconcile reminder %d: %v", id, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	if err := e.drainActions(ctx); err != nil {
		log.Printf("Failed to drain pending actions: %v", err)
		if firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (e *Engine) mergeOne(ctx context.Context, id int) error {
	snap, err := e.store.Snapshot(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}
	if snap.TriggerCount <= snap.MergedCount && len(snap.History) == 0 {
		return nil
	}

	if err := e.fg.MergeFired(ctx, id, snap.TriggerCount, snap.History); err != nil {
		return fmt.Errorf("failed to merge fires: %w", err)
	}

	// Settle only after the foreground merge landed; on failure the rows
	// survive for the next pass and the merge operations tolerate replay.
	if err := e.store.MarkMerged(ctx, id, snap.TriggerCount); err != nil {
		return fmt.Errorf("failed to settle merged fires: %w", err)
	}
	return nil
}

func (e *Engine) drainActions(ctx context.Context) error {
	actions, err := e.store.Actions(ctx)
	if err != nil {
		return fmt.Errorf("failed to list pending actions: %w", err)
	}

	var firstErr error
	for _, a := range actions {
		key := a.Key()

		e.mu.Lock()
		_, seen := e.consumed[key]
		e.mu.Unlock()
		if seen {
			// Already applied this process; the row lingered because its
			// delete failed. Retry only the delete.
			if err := e.store.DeleteAction(ctx, a.ReminderID, a.RecordedAt); err != nil && firstErr == nil {
				firstErr = err
			}
			continue
		}

		if err := e.fg.Apply(ctx, a); err != nil {
			log.Printf("Failed to apply pending %s for reminder %d: %v", a.Kind, a.ReminderID, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}

		e.mu.Lock()
		e.consumed[key] = struct{}{}
		e.mu.Unlock()

		if err := e.store.DeleteAction(ctx, a.ReminderID, a.RecordedAt); err != nil {
			log.Printf("Failed to delete applied action for reminder %d: %v", a.ReminderID, err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}
