package firing

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindd/internal/alarm"
	"remindd/internal/alarmstore"
	"remindd/internal/models"
)

type fakeNotifier struct {
	mu            sync.Mutex
	notifications int
	alerts        int
	missed        int
	notifyErr     error
}

func (f *fakeNotifier) ShowNotification(_ context.Context, _ alarm.WakePayload, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notifications++
	return f.notifyErr
}

func (f *fakeNotifier) AlertOnce(_ context.Context, _ alarm.WakePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.alerts++
	return nil
}

func (f *fakeNotifier) ShowMissed(_ context.Context, _ alarm.WakePayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.missed++
	return nil
}

func (f *fakeNotifier) counts() (notifications, alerts, missed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.notifications, f.alerts, f.missed
}

type fakeForeground struct {
	mu      sync.Mutex
	fired   []int
	applied []models.PendingAction
	err     error
}

func (f *fakeForeground) HandleFired(_ context.Context, reminderID int, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.fired = append(f.fired, reminderID)
	return nil
}

func (f *fakeForeground) Apply(_ context.Context, a models.PendingAction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.applied = append(f.applied, a)
	return nil
}

type fakeSettings struct {
	settings *models.Settings
}

func (f *fakeSettings) Get(_ context.Context, userID int64) (*models.Settings, error) {
	if f.settings != nil {
		return f.settings, nil
	}
	return models.NewDefaultSettings(userID), nil
}

func newTestHandler(t *testing.T, notifier *fakeNotifier) (*Handler, *alarmstore.Store) {
	t.Helper()
	store, err := alarmstore.Open(filepath.Join(t.TempDir(), "alarms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	h := NewHandler(store, notifier, &fakeSettings{})
	h.AlertInterval = 10 * time.Millisecond
	h.AlertTimeout = 60 * time.Millisecond
	return h, store
}

func payload(id int, prio models.Priority) alarm.WakePayload {
	return alarm.WakePayload{ReminderID: id, UserID: 1, Title: "water the plants", Priority: prio}
}

func TestHandleWakeRecordsBeforeNotifying(t *testing.T) {
	notifier := &fakeNotifier{notifyErr: errors.New("display broken")}
	h, store := newTestHandler(t, notifier)

	firedAt := time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	h.HandleWake(payload(1, models.PriorityMedium), firedAt)

	// The authoritative record survives the failed notification.
	snap, err := store.Snapshot(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TriggerCount)
	require.Len(t, snap.History, 1)
	assert.True(t, snap.History[0].Equal(firedAt))
}

func TestHandleWakeNotifiesForeground(t *testing.T) {
	notifier := &fakeNotifier{}
	h, _ := newTestHandler(t, notifier)
	fg := &fakeForeground{}
	h.SetForeground(fg)

	h.HandleWake(payload(2, models.PriorityLow), time.Now())

	fg.mu.Lock()
	defer fg.mu.Unlock()
	assert.Equal(t, []int{2}, fg.fired)

	n, a, _ := notifier.counts()
	assert.Equal(t, 1, n)
	assert.Equal(t, 0, a, "low priority starts no alert session")
}

func TestHandleWakeForegroundUnreachableStillRecords(t *testing.T) {
	notifier := &fakeNotifier{}
	h, store := newTestHandler(t, notifier)
	h.SetForeground(&fakeForeground{err: errors.New("store unavailable")})

	h.HandleWake(payload(3, models.PriorityMedium), time.Now())

	snap, err := store.Snapshot(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, snap.TriggerCount)
}

func TestHighPriorityAlertSessionTimesOutAsMissed(t *testing.T) {
	notifier := &fakeNotifier{}
	h, _ := newTestHandler(t, notifier)

	h.HandleWake(payload(4, models.PriorityHigh), time.Now())
	require.Eventually(t, func() bool {
		return h.AlertActive(4)
	}, time.Second, time.Millisecond)

	// Unacknowledged past the timeout: the session must end with a
	// distinct missed outcome.
	require.Eventually(t, func() bool {
		_, _, missed := notifier.counts()
		return missed == 1
	}, time.Second, 5*time.Millisecond)

	assert.False(t, h.AlertActive(4))
	_, alerts, _ := notifier.counts()
	assert.GreaterOrEqual(t, alerts, 1, "at least the initial alert cycle ran")
}

func TestStopAlertSessionPreventsMissed(t *testing.T) {
	notifier := &fakeNotifier{}
	h, _ := newTestHandler(t, notifier)

	h.HandleWake(payload(5, models.PriorityHigh), time.Now())
	require.Eventually(t, func() bool {
		return h.AlertActive(5)
	}, time.Second, time.Millisecond)

	h.StopAlertSession(5)
	require.Eventually(t, func() bool {
		return !h.AlertActive(5)
	}, time.Second, time.Millisecond)

	time.Sleep(100 * time.Millisecond)
	_, _, missed := notifier.counts()
	assert.Equal(t, 0, missed, "dismissed session never reports missed")
}

func TestQuietHoursSuppressAlertSession(t *testing.T) {
	notifier := &fakeNotifier{}
	h, _ := newTestHandler(t, notifier)

	settings := models.NewDefaultSettings(1)
	settings.QuietStart = "00:00"
	settings.QuietEnd = "23:59"
	h.settings = &fakeSettings{settings: settings}

	h.HandleWake(payload(6, models.PriorityHigh), time.Now())

	time.Sleep(100 * time.Millisecond)
	n, alerts, _ := notifier.counts()
	assert.Equal(t, 1, n, "the notification itself is never suppressed")
	assert.Equal(t, 0, alerts)
}

func TestHandleResponseAppliesDirectlyWhenReachable(t *testing.T) {
	notifier := &fakeNotifier{}
	h, store := newTestHandler(t, notifier)
	fg := &fakeForeground{}
	h.SetForeground(fg)

	a := models.PendingAction{
		ReminderID: 7, Kind: models.ActionDone, RecordedAt: time.Now(),
	}
	require.NoError(t, h.HandleResponse(context.Background(), a))

	fg.mu.Lock()
	assert.Len(t, fg.applied, 1)
	fg.mu.Unlock()

	actions, err := store.Actions(context.Background())
	require.NoError(t, err)
	assert.Empty(t, actions, "nothing queued when applied directly")
}

func TestHandleResponseQueuesWhenUnreachable(t *testing.T) {
	notifier := &fakeNotifier{}
	h, store := newTestHandler(t, notifier)
	h.SetForeground(&fakeForeground{err: errors.New("store unavailable")})

	a := models.PendingAction{
		ReminderID: 8, Kind: models.ActionSnooze, SnoozeMinutes: 15,
		RecordedAt: time.Date(2025, 6, 1, 8, 5, 0, 0, time.UTC),
	}
	require.NoError(t, h.HandleResponse(context.Background(), a))

	actions, err := store.Actions(context.Background())
	require.NoError(t, err)
	require.Len(t, actions, 1)
	assert.Equal(t, models.ActionSnooze, actions[0].Kind)
	assert.Equal(t, 15, actions[0].SnoozeMinutes)
}

func TestHandleResponseStopsAlertSession(t *testing.T) {
	notifier := &fakeNotifier{}
	h, _ := newTestHandler(t, notifier)
	h.AlertTimeout = time.Second
	fg := &fakeForeground{}
	h.SetForeground(fg)

	h.HandleWake(payload(9, models.PriorityHigh), time.Now())
	require.Eventually(t, func() bool {
		return h.AlertActive(9)
	}, time.Second, time.Millisecond)

	require.NoError(t, h.HandleResponse(context.Background(), models.PendingAction{
		ReminderID: 9, Kind: models.ActionDone, RecordedAt: time.Now(),
	}))

	require.Eventually(t, func() bool {
		return !h.AlertActive(9)
	}, time.Second, time.Millisecond)
}
