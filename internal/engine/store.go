package engine

import (
	"time"

	"github.com/fintrack/internal/models"
)

// Clock supplies the current time. Injectable for deterministic tests.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Store persists scheduled transactions and their generated ledger
// entries. Only the engine writes through this interface; nothing else
// may mutate next-due-date or skip-set state.
type Store interface {
	Get(id uint) (*models.ScheduledTransaction, error)
	Save(st *models.ScheduledTransaction) error
	// Delete removes a schedule. hard=false soft-deletes, keeping the
	// row for generated transactions that reference it.
	Delete(id uint, hard bool) error

	List(activeOnly bool) ([]models.ScheduledTransaction, error)
	ListDue(asOf time.Time) ([]models.ScheduledTransaction, error)
	ListUpcoming(after, until time.Time) ([]models.ScheduledTransaction, error)

	// CountGenerated reports how many ledger transactions reference the schedule.
	CountGenerated(id uint) (int64, error)
	// FindGenerated returns the ledger transaction generated for the
	// given occurrence date, if any.
	FindGenerated(id uint, date time.Time) (*models.Transaction, error)

	// CommitOccurrence persists the advanced schedule, the generated
	// transaction and the confirmation notification atomically. Either
	// all three land or none do, so an interrupted tick retries from
	// the same next due date.
	CommitOccurrence(st *models.ScheduledTransaction, txn *models.Transaction, note *models.Notification) error
}

// NotificationStore is the engine's window onto notification records.
// The engine only inserts; it never mutates schedule state through it.
type NotificationStore interface {
	Create(n *models.Notification) error
	// Exists reports whether a notification of the given kind already
	// exists for the (schedule, occurrence date) pair.
	Exists(scheduledID uint, kind models.NotificationKind, date time.Time) (bool, error)
}

// Ledger is the engine's collaborator for reference checks. Transaction
// creation itself happens inside Store.CommitOccurrence so the write is
// atomic with the tracker advance.
type Ledger interface {
	AccountExists(id uint) (bool, error)
	CategoryExists(id uint) (bool, error)
}
