package repository

import (
	"context"
	"time"

	"remindd/internal/database"
	"remindd/internal/models"
)

type SettingsRepository struct {
	db *database.DB
}

func NewSettingsRepository(db *database.DB) *SettingsRepository {
	return &SettingsRepository{db: db}
}

// GetOrCreate retrieves a user's settings, inserting the defaults if none
// exist yet.
func (r *SettingsRepository) GetOrCreate(ctx context.Context, userID int64) (*models.Settings, error) {
	settings := &models.Settings{}
	err := r.db.Pool.QueryRow(ctx,
		`INSERT INTO settings (user_id) VALUES ($1)
		 ON CONFLICT (user_id) DO UPDATE SET user_id = EXCLUDED.user_id
		 RETURNING user_id, sound_enabled, vibration_enabled, volume,
		           default_repeat_kind, to_char(quiet_start, 'HH24:MI'), to_char(quiet_end, 'HH24:MI'),
		           timezone, updated_at`,
		userID,
	).Scan(
		&settings.UserID,
		&settings.SoundEnabled,
		&settings.VibrationEnabled,
		&settings.Volume,
		&settings.DefaultRepeatKind,
		&settings.QuietStart,
		&settings.QuietEnd,
		&settings.Timezone,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

// Get is the fire-time settings lookup; defaults are fine for users who
// never touched their settings.
func (r *SettingsRepository) Get(ctx context.Context, userID int64) (*models.Settings, error) {
	return r.GetOrCreate(ctx, userID)
}

func (r *SettingsRepository) GetByUserID(ctx context.Context, userID int64) (*models.Settings, error) {
	settings := &models.Settings{}
	err := r.db.Pool.QueryRow(ctx,
		`SELECT user_id, sound_enabled, vibration_enabled, volume,
		        default_repeat_kind, to_char(quiet_start, 'HH24:MI'), to_char(quiet_end, 'HH24:MI'),
		        timezone, updated_at
		 FROM settings WHERE user_id = $1`,
		userID,
	).Scan(
		&settings.UserID,
		&settings.SoundEnabled,
		&settings.VibrationEnabled,
		&settings.Volume,
		&settings.DefaultRepeatKind,
		&settings.QuietStart,
		&settings.QuietEnd,
		&settings.Timezone,
		&settings.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return settings, nil
}

func (r *SettingsRepository) Update(ctx context.Context, settings *models.Settings) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE settings SET
		    sound_enabled = $1,
		    vibration_enabled = $2,
		    volume = $3,
		    default_repeat_kind = $4,
		    quiet_start = $5::time,
		    quiet_end = $6::time,
		    timezone = $7,
		    updated_at = $8
		 WHERE user_id = $9`,
		settings.SoundEnabled,
		settings.VibrationEnabled,
		settings.Volume,
		settings.DefaultRepeatKind,
		settings.QuietStart,
		settings.QuietEnd,
		settings.Timezone,
		time.Now(),
		settings.UserID,
	)
	return err
}

// SetQuietHours updates just the quiet-hours window.
func (r *SettingsRepository) SetQuietHours(ctx context.Context, userID int64, start, end string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE settings SET quiet_start = $1::time, quiet_end = $2::time, updated_at = $3 WHERE user_id = $4`,
		start, end, time.Now(), userID,
	)
	return err
}

// SetSound toggles the audible part of alerts.
func (r *SettingsRepository) SetSound(ctx context.Context, userID int64, enabled bool) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE settings SET sound_enabled = $1, updated_at = $2 WHERE user_id = $3`,
		enabled, time.Now(), userID,
	)
	return err
}

// SetTimezone updates the user's display and quiet-hours timezone.
func (r *SettingsRepository) SetTimezone(ctx context.Context, userID int64, tz string) error {
	_, err := r.db.Pool.Exec(ctx,
		`UPDATE settings SET timezone = $1, updated_at = $2 WHERE user_id = $3`,
		tz, time.Now(), userID,
	)
	return err
}
