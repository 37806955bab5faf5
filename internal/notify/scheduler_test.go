package notify

import (
	"testing"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/recurrence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c fakeClock) Now() time.Time { return c.t }

type fakeSource struct {
	schedules []models.ScheduledTransaction
}

func (f *fakeSource) List(activeOnly bool) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	for _, st := range f.schedules {
		if activeOnly && !st.IsActive {
			continue
		}
		out = append(out, st)
	}
	return out, nil
}

func (f *fakeSource) ListDue(asOf time.Time) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	for _, st := range f.schedules {
		if !st.IsActive || st.NextDueDate == nil {
			continue
		}
		if !st.NextDueDate.After(asOf) {
			out = append(out, st)
		}
	}
	return out, nil
}

type memStore struct {
	notes []*models.Notification
}

func (m *memStore) Create(n *models.Notification) error {
	n.ID = uint(len(m.notes) + 1)
	m.notes = append(m.notes, n)
	return nil
}

func (m *memStore) Get(id uint) (*models.Notification, error) {
	for _, n := range m.notes {
		if n.ID == id {
			return n, nil
		}
	}
	return nil, assert.AnError
}

func (m *memStore) Save(n *models.Notification) error { return nil }

func (m *memStore) Exists(scheduledID uint, kind models.NotificationKind, date time.Time) (bool, error) {
	for _, n := range m.notes {
		if n.ScheduledID == scheduledID && n.Kind == kind && recurrence.SameDay(n.ScheduledFor, date) {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) HasUnsent(scheduledID uint, kind models.NotificationKind) (bool, error) {
	for _, n := range m.notes {
		if n.ScheduledID == scheduledID && n.Kind == kind && !n.IsSent && !n.IsDismissed {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListActive(now time.Time) ([]models.Notification, error) {
	var out []models.Notification
	for _, n := range m.notes {
		if n.IsDismissed || n.IsRead || n.IsSnoozed(now) {
			continue
		}
		out = append(out, *n)
	}
	return out, nil
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func schedule(id uint, due time.Time, timing models.NotificationTiming) models.ScheduledTransaction {
	st := models.ScheduledTransaction{
		Name:               "Rent",
		IsActive:           true,
		NextDueDate:        &due,
		NotificationTiming: timing,
		Rule:               models.RecurrenceRule{Type: models.RecurrenceMonthly, Interval: 1, DayOfMonth: due.Day()},
	}
	st.ID = id
	return st
}

func TestReminderDates(t *testing.T) {
	due := day(2025, time.March, 10)
	today := day(2025, time.March, 1)

	assert.Equal(t, []time.Time{due}, ReminderDates(due, models.TimingSameDay, today))
	assert.Equal(t, []time.Time{day(2025, time.March, 9)}, ReminderDates(due, models.TimingOneDayBefore, today))
	assert.Equal(t, []time.Time{day(2025, time.March, 7)}, ReminderDates(due, models.TimingThreeDaysBefore, today))
	assert.Equal(t, []time.Time{day(2025, time.March, 3)}, ReminderDates(due, models.TimingOneWeekBefore, today))
	assert.Empty(t, ReminderDates(due, models.TimingNone, today))
}

func TestReminderDates_NoRetroactiveReminders(t *testing.T) {
	due := day(2025, time.March, 10)
	// Three days before is March 7; on March 8 the reminder day is gone.
	assert.Empty(t, ReminderDates(due, models.TimingThreeDaysBefore, day(2025, time.March, 8)))
}

func TestCheckUpcoming_FiresOnReminderDayOnly(t *testing.T) {
	due := day(2025, time.March, 10)
	source := &fakeSource{schedules: []models.ScheduledTransaction{
		schedule(1, due, models.TimingThreeDaysBefore),
	}}

	// March 6: one day early, nothing fires.
	store := &memStore{}
	s := NewScheduler(source, store, fakeClock{day(2025, time.March, 6)})
	created, err := s.CheckUpcoming()
	require.NoError(t, err)
	assert.Empty(t, created)

	// March 7: the reminder fires, exactly once even across two runs.
	s = NewScheduler(source, store, fakeClock{day(2025, time.March, 7)})
	created, err = s.CheckUpcoming()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.NotificationReminder, created[0].Kind)
	assert.Equal(t, due, created[0].ScheduledFor)

	created, err = s.CheckUpcoming()
	require.NoError(t, err)
	assert.Empty(t, created, "second run on the same day must not duplicate")
	assert.Len(t, store.notes, 1)
}

func TestCheckUpcoming_SkipsTimingNoneAndInactive(t *testing.T) {
	due := day(2025, time.March, 10)
	silent := schedule(1, due, models.TimingNone)
	paused := schedule(2, due, models.TimingSameDay)
	paused.IsActive = false

	store := &memStore{}
	s := NewScheduler(&fakeSource{schedules: []models.ScheduledTransaction{silent, paused}}, store, fakeClock{due})
	created, err := s.CheckUpcoming()
	require.NoError(t, err)
	assert.Empty(t, created)
}

func TestCheckUpcoming_UsesAdjustedDueDate(t *testing.T) {
	// 2026-01-31 is a Saturday; with weekend adjustment the user-facing
	// due date is Monday February 2 and the same-day reminder fires then.
	occurrence := day(2026, time.January, 31)
	st := schedule(1, occurrence, models.TimingSameDay)
	st.Rule.AdjustForWeekends = true

	store := &memStore{}
	s := NewScheduler(&fakeSource{schedules: []models.ScheduledTransaction{st}}, store, fakeClock{day(2026, time.February, 2)})
	created, err := s.CheckUpcoming()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, day(2026, time.February, 2), created[0].ScheduledFor)
}

func TestCheckOverdue(t *testing.T) {
	due := day(2025, time.March, 1)
	source := &fakeSource{schedules: []models.ScheduledTransaction{
		schedule(1, due, models.TimingNone),
	}}
	store := &memStore{}
	s := NewScheduler(source, store, fakeClock{day(2025, time.March, 5)})

	created, err := s.CheckOverdue()
	require.NoError(t, err)
	require.Len(t, created, 1)
	assert.Equal(t, models.NotificationOverdue, created[0].Kind)

	// An unsent overdue notification suppresses further ones.
	created, err = s.CheckOverdue()
	require.NoError(t, err)
	assert.Empty(t, created)

	// Once it has been sent a fresh one may be created.
	store.notes[0].IsSent = true
	created, err = s.CheckOverdue()
	require.NoError(t, err)
	assert.Len(t, created, 1)
}

func TestCheckOverdue_IgnoresFutureDue(t *testing.T) {
	due := day(2025, time.March, 10)
	source := &fakeSource{schedules: []models.ScheduledTransaction{
		schedule(1, due, models.TimingNone),
	}}
	store := &memStore{}
	s := NewScheduler(source, store, fakeClock{day(2025, time.March, 10)})

	created, err := s.CheckOverdue()
	require.NoError(t, err)
	assert.Empty(t, created, "due today is not overdue")
}

func TestSnooze_ExcludesFromActiveUntilExpiry(t *testing.T) {
	now := day(2025, time.March, 5)
	store := &memStore{}
	require.NoError(t, store.Create(&models.Notification{
		ScheduledID:  1,
		Kind:         models.NotificationReminder,
		ScheduledFor: now,
	}))

	s := NewScheduler(&fakeSource{}, store, fakeClock{now})
	active, err := s.ListActive()
	require.NoError(t, err)
	require.Len(t, active, 1)

	require.NoError(t, s.Snooze(store.notes[0].ID, 24*time.Hour))
	active, err = s.ListActive()
	require.NoError(t, err)
	assert.Empty(t, active, "snoozed notification is hidden")

	// After the snooze window the notification surfaces again.
	later := NewScheduler(&fakeSource{}, store, fakeClock{now.AddDate(0, 0, 2)})
	active, err = later.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 1)

	require.NoError(t, s.Snooze(store.notes[0].ID, 24*time.Hour))
	require.NoError(t, s.Unsnooze(store.notes[0].ID))
	active, err = s.ListActive()
	require.NoError(t, err)
	assert.Len(t, active, 1, "unsnooze restores immediately")
}
