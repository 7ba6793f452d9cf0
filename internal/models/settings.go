package models

import "time"

// Settings holds per-user alert preferences. The background firing handler
// reads them at fire time to decide how an alert session behaves.
type Settings struct {
	UserID            int64      `json:"user_id"`
	SoundEnabled      bool       `json:"sound_enabled"`
	VibrationEnabled  bool       `json:"vibration_enabled"`
	Volume            int        `json:"volume"` // 0-100
	DefaultRepeatKind RepeatKind `json:"default_repeat_kind"`
	QuietStart        string     `json:"quiet_start"` // HH:MM
	QuietEnd          string     `json:"quiet_end"`   // HH:MM
	Timezone          string     `json:"timezone"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

// NewDefaultSettings creates settings for a user seen for the first time.
func NewDefaultSettings(userID int64) *Settings {
	return &Settings{
		UserID:            userID,
		SoundEnabled:      true,
		VibrationEnabled:  true,
		Volume:            80,
		DefaultRepeatKind: KindNone,
		QuietStart:        "",
		QuietEnd:          "",
		Timezone:          "Local",
		UpdatedAt:         time.Now(),
	}
}

// Location resolves the user's timezone, falling back to the host zone.
func (s *Settings) Location() *time.Location {
	if s.Timezone == "" || s.Timezone == "Local" {
		return time.Local
	}
	loc, err := time.LoadLocation(s.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// IsQuietHours checks whether t falls inside the user's quiet window.
// Quiet hours suppress the audible part of an alert session, never the
// notification itself.
func (s *Settings) IsQuietHours(t time.Time) bool {
	if s.QuietStart == "" || s.QuietEnd == "" {
		return false
	}

	localTime := t.In(s.Location())
	currentMinutes := localTime.Hour()*60 + localTime.Minute()

	startHour, startMin := parseTimeString(s.QuietStart)
	endHour, endMin := parseTimeString(s.QuietEnd)

	startMinutes := startHour*60 + startMin
	endMinutes := endHour*60 + endMin

	// Handle overnight quiet hours (e.g., 22:00 - 08:00)
	if startMinutes > endMinutes {
		return currentMinutes >= startMinutes || currentMinutes < endMinutes
	}

	return currentMinutes >= startMinutes && currentMinutes < endMinutes
}

// parseTimeString parses "HH:MM" to hours and minutes. Postgres TIME
// columns render with a seconds suffix ("22:00:00"), so that shape is
// accepted too.
func parseTimeString(timeStr string) (hour, min int) {
	t, err := time.Parse("15:04", timeStr)
	if err != nil {
		t, err = time.Parse("15:04:05", timeStr)
	}
	if err != nil {
		return 0, 0
	}
	return t.Hour(), t.Minute()
}
