package repository

import (
	"context"
	"fmt"

	"remindd/internal/database"
	"remindd/internal/models"
)

type ReminderRepository struct {
	db *database.DB
}

func NewReminderRepository(db *database.DB) *ReminderRepository {
	return &ReminderRepository{db: db}
}

const reminderColumns = `reminders_id, user_id, title, description, priority,
	repeat_kind, repeat_params, end_type, end_count, end_date, end_time_of_day,
	base_at, next_fire_at, snooze_until, paused_until, completed_at, last_fired_at,
	paused, completed, deleted, expired, delivery_degraded, occurrence_count, created_at`

func (r *ReminderRepository) Create(ctx context.Context, reminder *models.Reminder) error {
	kind, params, err := models.EncodeRule(reminder.Rule)
	if err != nil {
		return fmt.Errorf("failed to encode repeat rule: %w", err)
	}
	return r.db.Pool.QueryRow(ctx,
		`INSERT INTO reminders (user_id, title, description, priority,
		    repeat_kind, repeat_params, end_type, end_count, end_date, end_time_of_day,
		    base_at, next_fire_at, occurrence_count)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING reminders_id, created_at`,
		reminder.UserID, reminder.Title, reminder.Description, reminder.Priority,
		kind, params, reminder.End.Type, reminder.End.Count, reminder.End.Date, reminder.End.TimeOfDay,
		reminder.BaseAt, reminder.NextFireAt, reminder.OccurrenceCount,
	).Scan(&reminder.ReminderID, &reminder.CreatedAt)
}

func scanReminder(row interface{ Scan(dest ...any) error }) (*models.Reminder, error) {
	reminder := &models.Reminder{}
	var kind models.RepeatKind
	var params []byte
	if err := row.Scan(
		&reminder.ReminderID, &reminder.UserID, &reminder.Title, &reminder.Description, &reminder.Priority,
		&kind, &params, &reminder.End.Type, &reminder.End.Count, &reminder.End.Date, &reminder.End.TimeOfDay,
		&reminder.BaseAt, &reminder.NextFireAt, &reminder.SnoozeUntil, &reminder.PausedUntil,
		&reminder.CompletedAt, &reminder.LastFiredAt,
		&reminder.Paused, &reminder.Completed, &reminder.Deleted, &reminder.Expired,
		&reminder.DeliveryDegraded, &reminder.OccurrenceCount, &reminder.CreatedAt,
	); err != nil {
		return nil, err
	}
	rule, err := models.DecodeRule(kind, params)
	if err != nil {
		return nil, fmt.Errorf("failed to decode repeat rule for reminder %d: %w", reminder.ReminderID, err)
	}
	reminder.Rule = rule
	return reminder, nil
}

func (r *ReminderRepository) GetByID(ctx context.Context, reminderID int) (*models.Reminder, error) {
	row := r.db.Pool.QueryRow(ctx,
		`SELECT `+reminderColumns+` FROM reminders WHERE reminders_id = $1`,
		reminderID,
	)
	return scanReminder(row)
}

func (r *ReminderRepository) GetByUserID(ctx context.Context, userID int64) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = $1 AND NOT deleted
		 ORDER BY next_fire_at ASC NULLS LAST, reminders_id ASC`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

// ListActive returns every reminder still in the armed partition, across
// all users. The scheduler refresh walks this.
func (r *ReminderRepository) ListActive(ctx context.Context) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE NOT deleted AND NOT completed
		 ORDER BY next_fire_at ASC NULLS LAST, reminders_id ASC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}

func (r *ReminderRepository) Update(ctx context.Context, reminder *models.Reminder) error {
	kind, params, err := models.EncodeRule(reminder.Rule)
	if err != nil {
		return fmt.Errorf("failed to encode repeat rule: %w", err)
	}
	_, err = r.db.Pool.Exec(ctx,
		`UPDATE reminders SET title = $1, description = $2, priority = $3,
		    repeat_kind = $4, repeat_params = $5, end_type = $6, end_count = $7, end_date = $8, end_time_of_day = $9,
		    base_at = $10, next_fire_at = $11, snooze_until = $12, paused_until = $13,
		    completed_at = $14, last_fired_at = $15,
		    paused = $16, completed = $17, deleted = $18, expired = $19,
		    delivery_degraded = $20, occurrence_count = $21
		 WHERE reminders_id = $22`,
		reminder.Title, reminder.Description, reminder.Priority,
		kind, params, reminder.End.Type, reminder.End.Count, reminder.End.Date, reminder.End.TimeOfDay,
		reminder.BaseAt, reminder.NextFireAt, reminder.SnoozeUntil, reminder.PausedUntil,
		reminder.CompletedAt, reminder.LastFiredAt,
		reminder.Paused, reminder.Completed, reminder.Deleted, reminder.Expired,
		reminder.DeliveryDegraded, reminder.OccurrenceCount,
		reminder.ReminderID,
	)
	return err
}

func (r *ReminderRepository) Search(ctx context.Context, userID int64, keyword string) ([]*models.Reminder, error) {
	rows, err := r.db.Pool.Query(ctx,
		`SELECT `+reminderColumns+` FROM reminders
		 WHERE user_id = $1 AND NOT deleted AND (title ILIKE $2 OR description ILIKE $2)
		 ORDER BY next_fire_at ASC NULLS LAST, reminders_id ASC`,
		userID, "%"+keyword+"%",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reminders []*models.Reminder
	for rows.Next() {
		reminder, err := scanReminder(rows)
		if err != nil {
			return nil, err
		}
		reminders = append(reminders, reminder)
	}
	return reminders, rows.Err()
}
