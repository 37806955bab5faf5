package database

import (
	"errors"
	"time"

	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/models"
	"gorm.io/gorm"
)

// NotificationStore is the gorm-backed persistence for notification
// records. It implements engine.NotificationStore and notify.Store.
type NotificationStore struct {
	db *gorm.DB
}

func NewNotificationStore(db *gorm.DB) *NotificationStore {
	return &NotificationStore{db: db}
}

func (s *NotificationStore) Create(n *models.Notification) error {
	return s.db.Create(n).Error
}

func (s *NotificationStore) Get(id uint) (*models.Notification, error) {
	var n models.Notification
	if err := s.db.First(&n, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return &n, nil
}

func (s *NotificationStore) Save(n *models.Notification) error {
	return s.db.Save(n).Error
}

// Exists reports whether a notification of the given kind exists for
// the (schedule, occurrence date) pair.
func (s *NotificationStore) Exists(scheduledID uint, kind models.NotificationKind, date time.Time) (bool, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("scheduled_id = ? AND kind = ? AND scheduled_for >= ? AND scheduled_for <= ?",
			scheduledID, kind, startOfDay(date), endOfDay(date)).
		Count(&count).Error
	return count > 0, err
}

// HasUnsent reports whether the schedule already has an unsent,
// undismissed notification of the given kind.
func (s *NotificationStore) HasUnsent(scheduledID uint, kind models.NotificationKind) (bool, error) {
	var count int64
	err := s.db.Model(&models.Notification{}).
		Where("scheduled_id = ? AND kind = ? AND is_sent = ? AND is_dismissed = ?", scheduledID, kind, false, false).
		Count(&count).Error
	return count > 0, err
}

// ListActive returns undismissed, unread notifications whose snooze (if
// any) has expired.
func (s *NotificationStore) ListActive(now time.Time) ([]models.Notification, error) {
	var out []models.Notification
	err := s.db.
		Where("is_dismissed = ? AND is_read = ? AND (snoozed_until IS NULL OR snoozed_until <= ?)", false, false, now).
		Order("scheduled_for").
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

// List returns all notifications, newest first.
func (s *NotificationStore) List() ([]models.Notification, error) {
	var out []models.Notification
	if err := s.db.Order("created_at desc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *NotificationStore) MarkSent(id uint) error {
	return s.db.Model(&models.Notification{}).Where("id = ?", id).Update("is_sent", true).Error
}
