// Package notify computes reminder and overdue notifications for
// scheduled transactions. It only ever inserts notification records;
// schedule state is owned by the engine and never touched here.
package notify

import (
	"fmt"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/recurrence"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// ScheduleSource is a read-only view of scheduled transactions.
type ScheduleSource interface {
	List(activeOnly bool) ([]models.ScheduledTransaction, error)
	ListDue(asOf time.Time) ([]models.ScheduledTransaction, error)
}

// Store persists notification records.
type Store interface {
	Create(n *models.Notification) error
	Get(id uint) (*models.Notification, error)
	Save(n *models.Notification) error
	Exists(scheduledID uint, kind models.NotificationKind, date time.Time) (bool, error)
	HasUnsent(scheduledID uint, kind models.NotificationKind) (bool, error)
	ListActive(now time.Time) ([]models.Notification, error)
}

type Scheduler struct {
	schedules ScheduleSource
	store     Store
	clock     Clock
}

func NewScheduler(schedules ScheduleSource, store Store, clock Clock) *Scheduler {
	if clock == nil {
		clock = systemClock{}
	}
	return &Scheduler{schedules: schedules, store: store, clock: clock}
}

// ReminderDates returns the days a reminder should fire for a due date
// under the given timing preference. Days already in the past are
// dropped; there are no retroactive reminders.
func ReminderDates(dueDate time.Time, timing models.NotificationTiming, today time.Time) []time.Time {
	dueDate = recurrence.DateOnly(dueDate)
	today = recurrence.DateOnly(today)

	var dates []time.Time
	switch timing {
	case models.TimingSameDay:
		dates = []time.Time{dueDate}
	case models.TimingOneDayBefore:
		dates = []time.Time{dueDate.AddDate(0, 0, -1)}
	case models.TimingThreeDaysBefore:
		dates = []time.Time{dueDate.AddDate(0, 0, -3)}
	case models.TimingOneWeekBefore:
		dates = []time.Time{dueDate.AddDate(0, 0, -7)}
	default:
		return nil
	}

	kept := dates[:0]
	for _, d := range dates {
		if !d.Before(today) {
			kept = append(kept, d)
		}
	}
	return kept
}

// CheckUpcoming creates a reminder for every active schedule whose
// reminder day is today. At most one reminder exists per (schedule,
// due date) pair, so running the check twice in a day is harmless.
func (s *Scheduler) CheckUpcoming() ([]*models.Notification, error) {
	schedules, err := s.schedules.List(true)
	if err != nil {
		return nil, fmt.Errorf("failed to list schedules: %v", err)
	}

	today := recurrence.DateOnly(s.clock.Now())
	var created []*models.Notification
	for i := range schedules {
		st := &schedules[i]
		if st.NextDueDate == nil || st.NotificationTiming == models.TimingNone {
			continue
		}
		due := recurrence.PostingDate(st.Rule, *st.NextDueDate)

		for _, reminderDay := range ReminderDates(due, st.NotificationTiming, today) {
			if !recurrence.SameDay(reminderDay, today) {
				continue
			}
			exists, err := s.store.Exists(st.ID, models.NotificationReminder, due)
			if err != nil {
				return created, fmt.Errorf("failed to check reminder for schedule %d: %v", st.ID, err)
			}
			if exists {
				continue
			}
			note := &models.Notification{
				ScheduledID:  st.ID,
				Kind:         models.NotificationReminder,
				Message:      fmt.Sprintf("%s is due on %s", st.Name, due.Format("2006-01-02")),
				ScheduledFor: due,
			}
			if err := s.store.Create(note); err != nil {
				return created, fmt.Errorf("failed to create reminder for schedule %d: %v", st.ID, err)
			}
			created = append(created, note)
		}
	}
	return created, nil
}

// CheckOverdue creates an overdue notification for every active
// schedule whose next due date is before today, unless an unsent one
// already exists for it.
func (s *Scheduler) CheckOverdue() ([]*models.Notification, error) {
	today := recurrence.DateOnly(s.clock.Now())
	overdue, err := s.schedules.ListDue(today.AddDate(0, 0, -1))
	if err != nil {
		return nil, fmt.Errorf("failed to list overdue schedules: %v", err)
	}

	var created []*models.Notification
	for i := range overdue {
		st := &overdue[i]
		if st.NextDueDate == nil {
			continue
		}

		exists, err := s.store.HasUnsent(st.ID, models.NotificationOverdue)
		if err != nil {
			return created, fmt.Errorf("failed to check overdue for schedule %d: %v", st.ID, err)
		}
		if exists {
			continue
		}
		note := &models.Notification{
			ScheduledID:  st.ID,
			Kind:         models.NotificationOverdue,
			Message:      fmt.Sprintf("%s was due on %s", st.Name, st.NextDueDate.Format("2006-01-02")),
			ScheduledFor: *st.NextDueDate,
		}
		if err := s.store.Create(note); err != nil {
			return created, fmt.Errorf("failed to create overdue notification for schedule %d: %v", st.ID, err)
		}
		created = append(created, note)
	}
	return created, nil
}

// Snooze hides a notification from active queries until the duration
// passes.
func (s *Scheduler) Snooze(id uint, d time.Duration) error {
	n, err := s.store.Get(id)
	if err != nil {
		return err
	}
	until := s.clock.Now().Add(d)
	n.SnoozedUntil = &until
	return s.store.Save(n)
}

// Unsnooze clears a snooze immediately.
func (s *Scheduler) Unsnooze(id uint) error {
	n, err := s.store.Get(id)
	if err != nil {
		return err
	}
	n.SnoozedUntil = nil
	return s.store.Save(n)
}

func (s *Scheduler) MarkRead(id uint) error {
	n, err := s.store.Get(id)
	if err != nil {
		return err
	}
	n.IsRead = true
	return s.store.Save(n)
}

func (s *Scheduler) Dismiss(id uint) error {
	n, err := s.store.Get(id)
	if err != nil {
		return err
	}
	n.IsDismissed = true
	return s.store.Save(n)
}

// ListActive returns undismissed, unread, unsnoozed notifications.
func (s *Scheduler) ListActive() ([]models.Notification, error) {
	return s.store.ListActive(s.clock.Now())
}
