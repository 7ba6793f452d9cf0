package repository

import (
	"context"
	"time"

	"remindd/internal/database"
	"remindd/internal/models"
)

// FireEventRepository stores the per-occurrence completion history.
// Appends dedupe on (reminder, instant), so replaying a merge of the
// same trigger history is harmless.
type FireEventRepository struct {
	db *database.DB
}

func NewFireEventRepository(db *database.DB) *FireEventRepository {
	return &FireEventRepository{db: db}
}

func (r *FireEventRepository) Append(ctx context.Context, e *models.FireEvent) (bool, error) {
	tag, err := r.db.Pool.Exec(ctx,
		`INSERT INTO fire_events (reminder_id, fired_at, source)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (reminder_id, fired_at) DO NOTHING`,
		e.ReminderID, e.FiredAt, e.Source,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (r *FireEventRepository) ListByReminder(ctx context.Context, reminderID int) ([]*models.FireEvent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT fire_events_id, reminder_id, fired_at, source
		 FROM fire_events WHERE reminder_id = $1 ORDER BY fired_at ASC`,
		reminderID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.FireEvent
	for rows.Next() {
		e := &models.FireEvent{}
		if err := rows.Scan(&e.FireEventID, &e.ReminderID, &e.FiredAt, &e.Source); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// ListSince returns a user's fire history newer than the cutoff, most
// recent first. Backs the /history command.
func (r *FireEventRepository) ListSince(ctx context.Context, userID int64, since time.Time) ([]*models.FireEvent, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT e.fire_events_id, e.reminder_id, e.fired_at, e.source
		 FROM fire_events e
		 JOIN reminders r ON r.reminders_id = e.reminder_id
		 WHERE r.user_id = $1 AND e.fired_at >= $2
		 ORDER BY e.fired_at DESC`,
		userID, since,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*models.FireEvent
	for rows.Next() {
		e := &models.FireEvent{}
		if err := rows.Scan(&e.FireEventID, &e.ReminderID, &e.FiredAt, &e.Source); err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

func (r *FireEventRepository) DeleteByReminder(ctx context.Context, reminderID int) error {
	_, err := r.db.Pool.Exec(ctx,
		`DELETE FROM fire_events WHERE reminder_id = $1`,
		reminderID,
	)
	return err
}
