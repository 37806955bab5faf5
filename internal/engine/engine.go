package engine

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/recurrence"
	"golang.org/x/sync/semaphore"
)

const maxConcurrentProcessing = 8

// Engine orchestrates scheduled transactions: due lookups, occurrence
// processing, skip bookkeeping and pause/resume. It is the only
// component allowed to mutate tracker state, and it serializes
// occurrence advancement per schedule so overlapping ticks cannot
// generate duplicate transactions.
type Engine struct {
	store         Store
	notifications NotificationStore
	ledger        Ledger
	clock         Clock

	mu    sync.Mutex
	locks map[uint]*sync.Mutex
	sem   *semaphore.Weighted
}

func New(store Store, notifications NotificationStore, ledger Ledger, clock Clock) *Engine {
	if clock == nil {
		clock = SystemClock{}
	}
	return &Engine{
		store:         store,
		notifications: notifications,
		ledger:        ledger,
		clock:         clock,
		locks:         make(map[uint]*sync.Mutex),
		sem:           semaphore.NewWeighted(maxConcurrentProcessing),
	}
}

// lockFor returns the per-schedule mutex, creating it on first use.
func (e *Engine) lockFor(id uint) *sync.Mutex {
	e.mu.Lock()
	defer e.mu.Unlock()
	l, ok := e.locks[id]
	if !ok {
		l = &sync.Mutex{}
		e.locks[id] = l
	}
	return l
}

// Create validates and persists a new scheduled transaction, computing
// its initial next due date from the start date. A non-empty violations
// slice means the schedule was rejected and not persisted.
func (e *Engine) Create(st *models.ScheduledTransaction) ([]string, error) {
	if violations := e.Validate(st); len(violations) > 0 {
		return violations, nil
	}
	st.StartDate = recurrence.DateOnly(st.StartDate)
	st.IsActive = true
	recomputeNextDue(st)
	if err := e.store.Save(st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil, nil
}

// Update re-validates and persists changes to template or rule fields.
// Tracker state is carried over from the stored row, never from the
// caller, and the next due date is recomputed.
func (e *Engine) Update(st *models.ScheduledTransaction) ([]string, error) {
	mu := e.lockFor(st.ID)
	mu.Lock()
	defer mu.Unlock()

	existing, err := e.store.Get(st.ID)
	if err != nil {
		return nil, err
	}
	if violations := e.Validate(st); len(violations) > 0 {
		return violations, nil
	}

	st.StartDate = recurrence.DateOnly(st.StartDate)
	st.LastGeneratedDate = existing.LastGeneratedDate
	st.LastProcessedDate = existing.LastProcessedDate
	st.SkippedDates = existing.SkippedDates
	st.Rule.OccurrenceCount = existing.Rule.OccurrenceCount
	st.IsActive = existing.IsActive
	recomputeNextDue(st)

	if err := e.store.Save(st); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil, nil
}

// Delete removes a schedule. Schedules referenced by generated ledger
// transactions are deactivated and soft-deleted so history keeps its
// back-reference; unreferenced schedules are removed outright.
func (e *Engine) Delete(id uint) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	if _, err := e.store.Get(id); err != nil {
		return err
	}
	count, err := e.store.CountGenerated(id)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return e.store.Delete(id, count == 0)
}

func (e *Engine) Get(id uint) (*models.ScheduledTransaction, error) {
	return e.store.Get(id)
}

func (e *Engine) List(activeOnly bool) ([]models.ScheduledTransaction, error) {
	return e.store.List(activeOnly)
}

// GetDue returns active schedules whose next due date is on or before asOf.
func (e *Engine) GetDue(asOf time.Time) ([]models.ScheduledTransaction, error) {
	return e.store.ListDue(recurrence.DateOnly(asOf))
}

// GetOverdue returns active schedules whose next due date is before today.
func (e *Engine) GetOverdue() ([]models.ScheduledTransaction, error) {
	yesterday := recurrence.DateOnly(e.clock.Now()).AddDate(0, 0, -1)
	return e.store.ListDue(yesterday)
}

// GetUpcoming returns active schedules due within the next daysAhead
// days, excluding anything already due today.
func (e *Engine) GetUpcoming(daysAhead int) ([]models.ScheduledTransaction, error) {
	today := recurrence.DateOnly(e.clock.Now())
	return e.store.ListUpcoming(today, today.AddDate(0, 0, daysAhead))
}

// ProcessOccurrence materializes one occurrence into a ledger
// transaction. This is the single state-changing entry point: all due
// date advancement happens here. date defaults to the schedule's next
// due date. Re-processing the already generated occurrence is a no-op
// returning the existing transaction.
func (e *Engine) ProcessOccurrence(id uint, date *time.Time) (*models.Transaction, []Event, error) {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Get(id)
	if err != nil {
		return nil, nil, err
	}
	if !st.IsActive {
		return nil, nil, ErrInactive
	}

	var occurrence time.Time
	if date != nil {
		occurrence = recurrence.DateOnly(*date)
	} else {
		if st.NextDueDate == nil {
			return nil, nil, ErrExhaustedRule
		}
		occurrence = *st.NextDueDate
	}

	if st.IsSkipped(occurrence) {
		return nil, nil, ErrSkippedDate
	}

	// Idempotent path: the occurrence was already generated, e.g. by a
	// concurrent call or an overlapping tick.
	if st.LastGeneratedDate != nil && recurrence.SameDay(*st.LastGeneratedDate, occurrence) {
		txn, err := e.store.FindGenerated(id, occurrence)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		return txn, nil, nil
	}
	if date != nil && st.NextDueDate == nil {
		return nil, nil, ErrExhaustedRule
	}

	if err := e.checkReferences(st); err != nil {
		return nil, nil, err
	}

	txn := st.Template(recurrence.PostingDate(st.Rule, occurrence))
	markGenerated(st, occurrence, e.clock.Now())

	note := &models.Notification{
		ScheduledID:  st.ID,
		Kind:         models.NotificationProcessedConfirmation,
		Message:      fmt.Sprintf("%s: transaction for %s posted on %s", st.Name, occurrence.Format("2006-01-02"), txn.Date.Format("2006-01-02")),
		ScheduledFor: occurrence,
	}
	if err := e.store.CommitOccurrence(st, txn, note); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return txn, []Event{processedEvent(txn, st.ID, note.Message), notifiedEvent(note)}, nil
}

// ProcessAllDue walks every due schedule as of asOf. Auto-post
// schedules are processed; manual-approval schedules get exactly one
// approval request per due date and are not advanced. A failure on one
// schedule becomes an Error notification and never aborts the rest.
func (e *Engine) ProcessAllDue(asOf time.Time) ([]Event, error) {
	due, err := e.store.ListDue(recurrence.DateOnly(asOf))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		events []Event
	)
	ctx := context.Background()
	for i := range due {
		st := due[i]
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := e.sem.Acquire(ctx, 1); err != nil {
				log.Printf("Skipping scheduled transaction %d this sweep: %v", st.ID, err)
				mu.Lock()
				events = append(events, errorEvent(st.ID, fmt.Sprintf("%s: sweep slot unavailable: %v", st.Name, err)))
				mu.Unlock()
				return
			}
			defer e.sem.Release(1)

			evs := e.processDue(&st)
			mu.Lock()
			events = append(events, evs...)
			mu.Unlock()
		}()
	}
	wg.Wait()
	return events, nil
}

func (e *Engine) processDue(st *models.ScheduledTransaction) []Event {
	if st.SchedulingMode == models.SchedulingManualApproval {
		return e.requestApproval(st)
	}
	if st.NextDueDate == nil {
		return nil
	}

	// Process the due date from this sweep's snapshot, not whatever the
	// schedule's current due date is by the time the lock is acquired.
	// An overlapping sweep that already posted this occurrence advanced
	// the schedule; re-resolving would post the next occurrence early,
	// while the snapshot date lands on the idempotent path instead.
	_, evs, err := e.ProcessOccurrence(st.ID, st.NextDueDate)
	if err == nil {
		return evs
	}

	msg := fmt.Sprintf("%s: processing failed: %v", st.Name, err)
	log.Printf("Error processing scheduled transaction %d: %v", st.ID, err)
	events := []Event{errorEvent(st.ID, msg)}

	note := &models.Notification{
		ScheduledID: st.ID,
		Kind:        models.NotificationError,
		Message:     msg,
	}
	if st.NextDueDate != nil {
		note.ScheduledFor = *st.NextDueDate
	}
	if cerr := e.notifications.Create(note); cerr != nil {
		log.Printf("Failed to record error notification for schedule %d: %v", st.ID, cerr)
		return events
	}
	return append(events, notifiedEvent(note))
}

// requestApproval emits an approval request for a due manual-approval
// schedule. Approval resolution is external; the schedule is not
// advanced until ProcessOccurrence is called for it.
func (e *Engine) requestApproval(st *models.ScheduledTransaction) []Event {
	if st.NextDueDate == nil {
		return nil
	}
	due := *st.NextDueDate

	exists, err := e.notifications.Exists(st.ID, models.NotificationApprovalRequest, due)
	if err != nil {
		log.Printf("Failed to check approval request for schedule %d: %v", st.ID, err)
		return []Event{errorEvent(st.ID, fmt.Sprintf("%s: %v", st.Name, err))}
	}
	if exists {
		return nil
	}

	note := &models.Notification{
		ScheduledID:  st.ID,
		Kind:         models.NotificationApprovalRequest,
		Message:      fmt.Sprintf("%s due %s requires approval", st.Name, due.Format("2006-01-02")),
		ScheduledFor: due,
	}
	if err := e.notifications.Create(note); err != nil {
		log.Printf("Failed to create approval request for schedule %d: %v", st.ID, err)
		return []Event{errorEvent(st.ID, fmt.Sprintf("%s: %v", st.Name, err))}
	}
	return []Event{notifiedEvent(note)}
}

// SkipOccurrence marks the occurrence on date as skipped and advances
// the next due date past it. Skipping the same date twice is a no-op.
func (e *Engine) SkipOccurrence(id uint, date time.Time) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Get(id)
	if err != nil {
		return err
	}
	st.AddSkippedDate(recurrence.DateOnly(date))
	recomputeNextDue(st)
	if err := e.store.Save(st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// UnskipOccurrence removes date from the skip set and recomputes the
// next due date, restoring the occurrence if it is still owed.
func (e *Engine) UnskipOccurrence(id uint, date time.Time) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Get(id)
	if err != nil {
		return err
	}
	st.RemoveSkippedDate(recurrence.DateOnly(date))
	recomputeNextDue(st)
	if err := e.store.Save(st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Pause deactivates a schedule. Due dates stop advancing and the
// background loop ignores it until Resume.
func (e *Engine) Pause(id uint) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Get(id)
	if err != nil {
		return err
	}
	st.IsActive = false
	if err := e.store.Save(st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Resume reactivates a schedule and jumps its next due date to the next
// future occurrence. Periods missed while paused are forfeited, never
// retroactively generated.
func (e *Engine) Resume(id uint) error {
	mu := e.lockFor(id)
	mu.Lock()
	defer mu.Unlock()

	st, err := e.store.Get(id)
	if err != nil {
		return err
	}
	st.IsActive = true
	rollForward(st, e.clock.Now())
	if err := e.store.Save(st); err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}
