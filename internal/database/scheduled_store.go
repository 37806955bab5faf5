package database

import (
	"errors"
	"time"

	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/models"
	"gorm.io/gorm"
)

// ScheduledStore is the gorm-backed persistence for scheduled
// transactions. It implements engine.Store.
type ScheduledStore struct {
	db *gorm.DB
}

func NewScheduledStore(db *gorm.DB) *ScheduledStore {
	return &ScheduledStore{db: db}
}

func (s *ScheduledStore) Get(id uint) (*models.ScheduledTransaction, error) {
	var st models.ScheduledTransaction
	if err := s.db.First(&st, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, engine.ErrNotFound
		}
		return nil, err
	}
	return &st, nil
}

func (s *ScheduledStore) Save(st *models.ScheduledTransaction) error {
	return s.db.Save(st).Error
}

func (s *ScheduledStore) Delete(id uint, hard bool) error {
	if hard {
		return s.db.Unscoped().Delete(&models.ScheduledTransaction{}, id).Error
	}
	// Soft delete keeps the row for generated transactions that
	// reference it; deactivate so queries never pick it up again.
	if err := s.db.Model(&models.ScheduledTransaction{}).Where("id = ?", id).Update("is_active", false).Error; err != nil {
		return err
	}
	return s.db.Delete(&models.ScheduledTransaction{}, id).Error
}

func (s *ScheduledStore) List(activeOnly bool) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	query := s.db
	if activeOnly {
		query = query.Where("is_active = ?", true)
	}
	if err := query.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScheduledStore) ListDue(asOf time.Time) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	err := s.db.
		Where("is_active = ? AND next_due_date IS NOT NULL AND next_due_date <= ?", true, endOfDay(asOf)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScheduledStore) ListUpcoming(after, until time.Time) ([]models.ScheduledTransaction, error) {
	var out []models.ScheduledTransaction
	err := s.db.
		Where("is_active = ? AND next_due_date > ? AND next_due_date <= ?", true, endOfDay(after), endOfDay(until)).
		Find(&out).Error
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *ScheduledStore) CountGenerated(id uint) (int64, error) {
	var count int64
	err := s.db.Model(&models.Transaction{}).Where("scheduled_id = ?", id).Count(&count).Error
	return count, err
}

func (s *ScheduledStore) FindGenerated(id uint, date time.Time) (*models.Transaction, error) {
	// Weekend adjustment may have rolled the posting date up to two
	// days past the occurrence date.
	var txn models.Transaction
	err := s.db.
		Where("scheduled_id = ? AND date >= ? AND date < ?", id, startOfDay(date), startOfDay(date).AddDate(0, 0, 3)).
		Order("date").
		First(&txn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &txn, nil
}

// CommitOccurrence persists the advanced schedule, the generated
// transaction and its confirmation notification in one transaction.
func (s *ScheduledStore) CommitOccurrence(st *models.ScheduledTransaction, txn *models.Transaction, note *models.Notification) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(txn).Error; err != nil {
			return err
		}
		if err := tx.Save(st).Error; err != nil {
			return err
		}
		return tx.Create(note).Error
	})
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func endOfDay(t time.Time) time.Time {
	return startOfDay(t).AddDate(0, 0, 1).Add(-time.Nanosecond)
}
