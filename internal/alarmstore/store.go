// Package alarmstore is the background context's durable store: per-
// reminder authoritative trigger counters, trigger history, and the
// pending-action queue. It lives in a local SQLite file so the background
// firing handler can write even when the foreground record store is
// unreachable.
package alarmstore

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"remindd/internal/models"
)

//go:embed schema.sql
var schemaSQL string

// Store provides durable storage for the background firing context.
// Uses SQLite with WAL mode for concurrent read access.
type Store struct {
	db *sql.DB
}

// Open creates or opens the store at the given path. Idempotent: pragmas
// and schema are applied on every open.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open alarm store: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to alarm store: %w", err)
	}

	// SQLite supports one writer at a time; a single connection avoids
	// SQLITE_BUSY between the firing handler and the reconciler.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Store{db: db}, nil
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Snapshot is the authoritative per-reminder state exposed to the
// reconciliation engine and the native-state query.
type Snapshot struct {
	ReminderID   int
	TriggerCount int
	MergedCount  int
	LastTrigger  *time.Time
	History      []time.Time
}

// RecordFire atomically increments the authoritative trigger counter and
// appends the instant to the trigger history. Run before any delivery
// side effect so the count survives a failed notification. Re-recording
// an identical (id, instant) pair leaves the history untouched but still
// bumps the counter, matching at-least-once wake-up delivery.
func (s *Store) RecordFire(ctx context.Context, reminderID int, firedAt time.Time) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin fire record: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO triggers (reminder_id, trigger_count, last_trigger)
		 VALUES (?, 1, ?)
		 ON CONFLICT (reminder_id) DO UPDATE SET
		   trigger_count = trigger_count + 1,
		   last_trigger = excluded.last_trigger`,
		reminderID, firedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to increment trigger count: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR IGNORE INTO trigger_history (reminder_id, fired_at) VALUES (?, ?)`,
		reminderID, firedAt.UnixNano(),
	); err != nil {
		return fmt.Errorf("failed to append trigger history: %w", err)
	}

	return tx.Commit()
}

// Snapshot returns the authoritative state for one reminder. A reminder
// that never fired returns a zero snapshot.
func (s *Store) Snapshot(ctx context.Context, reminderID int) (*Snapshot, error) {
	snap := &Snapshot{ReminderID: reminderID}

	var last sql.NullInt64
	err := s.db.QueryRowContext(ctx,
		`SELECT trigger_count, merged_count, last_trigger FROM triggers WHERE reminder_id = ?`,
		reminderID,
	).Scan(&snap.TriggerCount, &snap.MergedCount, &last)
	if err == sql.ErrNoRows {
		return snap, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger counter: %w", err)
	}
	if last.Valid {
		t := time.Unix(0, last.Int64)
		snap.LastTrigger = &t
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT fired_at FROM trigger_history WHERE reminder_id = ? ORDER BY fired_at ASC`,
		reminderID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to read trigger history: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var ns int64
		if err := rows.Scan(&ns); err != nil {
			return nil, err
		}
		snap.History = append(snap.History, time.Unix(0, ns))
	}
	return snap, rows.Err()
}

// ReminderIDs lists every reminder with authoritative data (counters,
// history, or queued actions).
func (s *Store) ReminderIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id FROM triggers
		 UNION SELECT reminder_id FROM pending_actions
		 ORDER BY reminder_id`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list reminder ids: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// MarkMerged records that the foreground store has absorbed the
// authoritative state up to count, and drops the history rows that were
// unioned in. The cumulative trigger_count is never lowered, so a crash
// between merge and MarkMerged only causes a harmless re-merge.
func (s *Store) MarkMerged(ctx context.Context, reminderID, count int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin merge mark: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`UPDATE triggers SET merged_count = MAX(merged_count, ?) WHERE reminder_id = ?`,
		count, reminderID,
	); err != nil {
		return fmt.Errorf("failed to mark merged count: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM trigger_history WHERE reminder_id = ?`,
		reminderID,
	); err != nil {
		return fmt.Errorf("failed to clear merged history: %w", err)
	}

	return tx.Commit()
}

// AppendAction queues a user response for reconciliation. Duplicate keys
// (same reminder, same recorded instant) are ignored, so a retried append
// cannot double-queue.
func (s *Store) AppendAction(ctx context.Context, a models.PendingAction) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_actions (reminder_id, kind, snooze_minutes, recorded_at)
		 VALUES (?, ?, ?, ?)`,
		a.ReminderID, string(a.Kind), a.SnoozeMinutes, a.RecordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to append pending action: %w", err)
	}
	return nil
}

// Actions returns all queued actions in recorded order.
func (s *Store) Actions(ctx context.Context) ([]models.PendingAction, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT reminder_id, kind, snooze_minutes, recorded_at
		 FROM pending_actions ORDER BY recorded_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending actions: %w", err)
	}
	defer rows.Close()

	var actions []models.PendingAction
	for rows.Next() {
		var (
			a    models.PendingAction
			kind string
			ns   int64
		)
		if err := rows.Scan(&a.ReminderID, &kind, &a.SnoozeMinutes, &ns); err != nil {
			return nil, err
		}
		a.Kind = models.ActionKind(kind)
		a.RecordedAt = time.Unix(0, ns)
		actions = append(actions, a)
	}
	return actions, rows.Err()
}

// DeleteAction removes a consumed action. Idempotent.
func (s *Store) DeleteAction(ctx context.Context, reminderID int, recordedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM pending_actions WHERE reminder_id = ? AND recorded_at = ?`,
		reminderID, recordedAt.UnixNano(),
	)
	if err != nil {
		return fmt.Errorf("failed to delete pending action: %w", err)
	}
	return nil
}

// Purge drops every trace of a reminder. Used by the delete cascade.
func (s *Store) Purge(ctx context.Context, reminderID int) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin purge: %w", err)
	}
	defer tx.Rollback()

	for _, q := range []string{
		`DELETE FROM triggers WHERE reminder_id = ?`,
		`DELETE FROM trigger_history WHERE reminder_id = ?`,
		`DELETE FROM pending_actions WHERE reminder_id = ?`,
	} {
		if _, err := tx.ExecContext(ctx, q, reminderID); err != nil {
			return fmt.Errorf("failed to purge reminder %d: %w", reminderID, err)
		}
	}
	return tx.Commit()
}
