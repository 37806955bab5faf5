package engine

import (
	"sync"
	"testing"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/recurrence"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeStore struct {
	mu           sync.Mutex
	seq          uint
	schedules    map[uint]*models.ScheduledTransaction
	softDeleted  map[uint]bool
	transactions []*models.Transaction
	notes        *fakeNotifStore
}

func newFakeStore(notes *fakeNotifStore) *fakeStore {
	return &fakeStore{
		schedules:   make(map[uint]*models.ScheduledTransaction),
		softDeleted: make(map[uint]bool),
		notes:       notes,
	}
}

func (s *fakeStore) Get(id uint) (*models.ScheduledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.schedules[id]
	if !ok || s.softDeleted[id] {
		return nil, ErrNotFound
	}
	c := *st
	return &c, nil
}

func (s *fakeStore) Save(st *models.ScheduledTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if st.ID == 0 {
		s.seq++
		st.ID = s.seq
	}
	c := *st
	s.schedules[st.ID] = &c
	return nil
}

func (s *fakeStore) Delete(id uint, hard bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if hard {
		delete(s.schedules, id)
		return nil
	}
	s.softDeleted[id] = true
	if st, ok := s.schedules[id]; ok {
		st.IsActive = false
	}
	return nil
}

func (s *fakeStore) List(activeOnly bool) ([]models.ScheduledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTransaction
	for id, st := range s.schedules {
		if s.softDeleted[id] || (activeOnly && !st.IsActive) {
			continue
		}
		out = append(out, *st)
	}
	return out, nil
}

func (s *fakeStore) ListDue(asOf time.Time) ([]models.ScheduledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTransaction
	for id, st := range s.schedules {
		if s.softDeleted[id] || !st.IsActive || st.NextDueDate == nil {
			continue
		}
		if !st.NextDueDate.After(asOf) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *fakeStore) ListUpcoming(after, until time.Time) ([]models.ScheduledTransaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.ScheduledTransaction
	for id, st := range s.schedules {
		if s.softDeleted[id] || !st.IsActive || st.NextDueDate == nil {
			continue
		}
		if st.NextDueDate.After(after) && !st.NextDueDate.After(until) {
			out = append(out, *st)
		}
	}
	return out, nil
}

func (s *fakeStore) CountGenerated(id uint) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, txn := range s.transactions {
		if txn.ScheduledID != nil && *txn.ScheduledID == id {
			n++
		}
	}
	return n, nil
}

func (s *fakeStore) FindGenerated(id uint, date time.Time) (*models.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.transactions {
		if txn.ScheduledID != nil && *txn.ScheduledID == id && recurrence.SameDay(txn.Date, date) {
			return txn, nil
		}
	}
	return nil, nil
}

func (s *fakeStore) CommitOccurrence(st *models.ScheduledTransaction, txn *models.Transaction, note *models.Notification) error {
	s.mu.Lock()
	c := *st
	s.schedules[st.ID] = &c
	s.transactions = append(s.transactions, txn)
	s.mu.Unlock()
	return s.notes.Create(note)
}

type fakeNotifStore struct {
	mu    sync.Mutex
	notes []*models.Notification
}

func (n *fakeNotifStore) Create(note *models.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	note.ID = uint(len(n.notes) + 1)
	n.notes = append(n.notes, note)
	return nil
}

func (n *fakeNotifStore) Exists(scheduledID uint, kind models.NotificationKind, date time.Time) (bool, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, note := range n.notes {
		if note.ScheduledID == scheduledID && note.Kind == kind && recurrence.SameDay(note.ScheduledFor, date) {
			return true, nil
		}
	}
	return false, nil
}

func (n *fakeNotifStore) byKind(kind models.NotificationKind) []*models.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []*models.Notification
	for _, note := range n.notes {
		if note.Kind == kind {
			out = append(out, note)
		}
	}
	return out
}

type fakeLedger struct {
	accounts   map[uint]bool
	categories map[uint]bool
}

func (l *fakeLedger) AccountExists(id uint) (bool, error)  { return l.accounts[id], nil }
func (l *fakeLedger) CategoryExists(id uint) (bool, error) { return l.categories[id], nil }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func setup(now time.Time) (*Engine, *fakeStore, *fakeNotifStore) {
	notes := &fakeNotifStore{}
	store := newFakeStore(notes)
	ledger := &fakeLedger{
		accounts:   map[uint]bool{1: true, 2: true},
		categories: map[uint]bool{1: true},
	}
	return New(store, notes, ledger, fixedClock{now}), store, notes
}

func monthlySchedule(dayOfMonth int, start time.Time) *models.ScheduledTransaction {
	return &models.ScheduledTransaction{
		Name:       "Rent",
		AccountID:  1,
		CategoryID: 1,
		Amount:     decimal.NewFromInt(1200),
		Type:       models.TransactionTypeExpense,
		Rule:       models.RecurrenceRule{Type: models.RecurrenceMonthly, Interval: 1, DayOfMonth: dayOfMonth},
		StartDate:  start,
	}
}

func mustCreate(t *testing.T, e *Engine, st *models.ScheduledTransaction) {
	t.Helper()
	violations, err := e.Create(st)
	require.NoError(t, err)
	require.Empty(t, violations)
}

// ---------------------------------------------------------------------------
// Create / Validate
// ---------------------------------------------------------------------------

func TestCreate_InitialDueDateIsStartDate(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	require.NotNil(t, st.NextDueDate)
	assert.Equal(t, day(2025, time.January, 15), *st.NextDueDate)
	assert.True(t, st.IsActive)
}

func TestCreate_RejectsInvalidSchedule(t *testing.T) {
	e, store, _ := setup(day(2025, time.January, 1))
	st := &models.ScheduledTransaction{
		Name:      "",
		AccountID: 99, // does not exist
		Amount:    decimal.Zero,
		Type:      models.TransactionTypeExpense,
		Rule:      models.RecurrenceRule{Type: models.RecurrenceWeekly, Interval: 0},
		StartDate: day(2025, time.January, 1),
	}

	violations, err := e.Create(st)
	require.NoError(t, err)
	assert.Contains(t, violations, "name is required")
	assert.Contains(t, violations, "amount must be positive")
	assert.Contains(t, violations, "interval must be at least 1")
	assert.Contains(t, violations, "weekly recurrence requires at least one day of week")
	assert.Contains(t, violations, "account 99 does not exist")
	assert.Empty(t, store.schedules, "invalid schedule must not be persisted")
}

func TestValidate_TransferChecks(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 1))
	one := uint(1)
	st := monthlySchedule(1, day(2025, time.February, 1))
	st.Type = models.TransactionTypeTransfer
	st.TransferAccountID = &one // same as source

	violations := e.Validate(st)
	assert.Contains(t, violations, "transfer source and destination accounts must differ")

	two := uint(2)
	st.TransferAccountID = &two
	assert.Empty(t, e.Validate(st))
}

// ---------------------------------------------------------------------------
// ProcessOccurrence
// ---------------------------------------------------------------------------

func TestProcessOccurrence_NotFound(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 15))
	_, _, err := e.ProcessOccurrence(42, nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestProcessOccurrence_AutoPost(t *testing.T) {
	now := day(2025, time.January, 15)
	e, store, notes := setup(now)
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	txn, events, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)
	require.NotNil(t, txn)

	assert.Equal(t, models.TransactionStatusCleared, txn.Status)
	assert.Equal(t, st.AccountID, txn.AccountID)
	assert.True(t, txn.Amount.Equal(decimal.NewFromInt(1200)))
	assert.Equal(t, day(2025, time.January, 15), txn.Date)
	require.NotNil(t, txn.ScheduledID)
	assert.Equal(t, st.ID, *txn.ScheduledID)

	stored, err := e.Get(st.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.LastGeneratedDate)
	assert.Equal(t, day(2025, time.January, 15), *stored.LastGeneratedDate)
	require.NotNil(t, stored.NextDueDate)
	assert.Equal(t, day(2025, time.February, 15), *stored.NextDueDate)
	assert.Equal(t, 1, stored.Rule.OccurrenceCount)

	require.Len(t, store.transactions, 1)
	assert.Len(t, notes.byKind(models.NotificationProcessedConfirmation), 1)
	require.Len(t, events, 2)
	assert.Equal(t, EventTransactionProcessed, events[0].Kind)
	assert.Equal(t, EventNotificationCreated, events[1].Kind)
}

func TestProcessOccurrence_ManualApprovalPostsPending(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	st.SchedulingMode = models.SchedulingManualApproval
	mustCreate(t, e, st)

	// A direct call still processes: approval happened out of band.
	txn, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusPending, txn.Status)
}

func TestProcessOccurrence_SkippedDate(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)
	require.NoError(t, e.SkipOccurrence(st.ID, day(2025, time.January, 15)))

	skipped := day(2025, time.January, 15)
	_, _, err := e.ProcessOccurrence(st.ID, &skipped)
	assert.ErrorIs(t, err, ErrSkippedDate)
}

func TestProcessOccurrence_WeekendAdjustedPostingDate(t *testing.T) {
	e, store, _ := setup(day(2026, time.January, 31))
	st := monthlySchedule(31, day(2026, time.January, 31)) // a Saturday
	st.Rule.AdjustForWeekends = true
	mustCreate(t, e, st)

	txn, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)

	// Posts on the following Monday, but the unadjusted Saturday stays
	// the anchor: the next occurrence is February 28, no drift.
	assert.Equal(t, day(2026, time.February, 2), txn.Date)
	stored := store.schedules[st.ID]
	assert.Equal(t, day(2026, time.January, 31), *stored.LastGeneratedDate)
	assert.Equal(t, day(2026, time.February, 28), *stored.NextDueDate)
}

func TestProcessOccurrence_IdempotentForGeneratedDate(t *testing.T) {
	e, store, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	first, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)

	when := day(2025, time.January, 15)
	second, events, err := e.ProcessOccurrence(st.ID, &when)
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Len(t, store.transactions, 1, "re-processing must not duplicate")
	assert.Equal(t, first.Date, second.Date)
}

func TestProcessOccurrence_Exhausted(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	st.Rule.EndCondition = models.EndAfterCount
	st.Rule.EndCount = 1
	mustCreate(t, e, st)

	_, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)

	stored, _ := e.Get(st.ID)
	assert.Nil(t, stored.NextDueDate, "single-occurrence rule is exhausted")

	_, _, err = e.ProcessOccurrence(st.ID, nil)
	assert.ErrorIs(t, err, ErrExhaustedRule)
}

func TestProcessOccurrence_Paused(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)
	require.NoError(t, e.Pause(st.ID))

	_, _, err := e.ProcessOccurrence(st.ID, nil)
	assert.ErrorIs(t, err, ErrInactive)
}

func TestProcessOccurrence_ConcurrentCallsGenerateOnce(t *testing.T) {
	e, store, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	when := day(2025, time.January, 15)
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := e.ProcessOccurrence(st.ID, &when)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Len(t, store.transactions, 1, "exactly one transaction for the occurrence")
}

// ---------------------------------------------------------------------------
// ProcessAllDue
// ---------------------------------------------------------------------------

func TestProcessAllDue_NothingDue(t *testing.T) {
	e, store, notes := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	events, err := e.ProcessAllDue(day(2025, time.January, 1))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Empty(t, store.transactions)
	assert.Empty(t, notes.notes)
}

func TestProcessAllDue_ManualApprovalEmitsRequestOnly(t *testing.T) {
	e, store, notes := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	st.SchedulingMode = models.SchedulingManualApproval
	mustCreate(t, e, st)

	events, err := e.ProcessAllDue(day(2025, time.January, 15))
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, EventNotificationCreated, events[0].Kind)

	assert.Empty(t, store.transactions, "manual approval must not materialize a transaction")
	assert.Len(t, notes.byKind(models.NotificationApprovalRequest), 1)

	stored, _ := e.Get(st.ID)
	assert.Equal(t, day(2025, time.January, 15), *stored.NextDueDate, "due date must not advance")

	// A second sweep the same day must not duplicate the request.
	events, err = e.ProcessAllDue(day(2025, time.January, 15))
	require.NoError(t, err)
	assert.Empty(t, events)
	assert.Len(t, notes.byKind(models.NotificationApprovalRequest), 1)
}

func TestProcessAllDue_FailureIsolation(t *testing.T) {
	e, store, notes := setup(day(2025, time.January, 15))

	good := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, good)

	// Bypass Create so the dangling account reference lands in the store.
	badDue := day(2025, time.January, 15)
	bad := monthlySchedule(15, day(2025, time.January, 15))
	bad.Name = "Broken"
	bad.AccountID = 99
	bad.IsActive = true
	bad.NextDueDate = &badDue
	require.NoError(t, store.Save(bad))

	events, err := e.ProcessAllDue(day(2025, time.January, 15))
	require.NoError(t, err)

	assert.Len(t, store.transactions, 1, "healthy schedule still processed")
	assert.Len(t, notes.byKind(models.NotificationError), 1)

	var errorEvents int
	for _, ev := range events {
		if ev.Kind == EventProcessingError {
			errorEvents++
			assert.Equal(t, bad.ID, ev.ScheduledID)
			assert.NotEmpty(t, ev.Message)
		}
	}
	assert.Equal(t, 1, errorEvents)
}

// ---------------------------------------------------------------------------
// Skip / Unskip
// ---------------------------------------------------------------------------

func TestProcessAllDue_OverlappingSweepsPostOnce(t *testing.T) {
	now := day(2025, time.January, 15)
	e, store, _ := setup(now)
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	// Two sweeps list the same schedule as due before either processes
	// it. The slower sweep works from a stale snapshot after the faster
	// one has already posted and advanced the schedule.
	first, err := store.ListDue(now)
	require.NoError(t, err)
	second, err := store.ListDue(now)
	require.NoError(t, err)
	require.Len(t, first, 1)
	require.Len(t, second, 1)

	evs := e.processDue(&first[0])
	assert.NotEmpty(t, evs)
	evs = e.processDue(&second[0])
	assert.Empty(t, evs, "the idempotent path emits nothing")

	require.Len(t, store.transactions, 1, "stale sweep must not post a second occurrence")
	assert.Equal(t, day(2025, time.January, 15), store.transactions[0].Date)

	got, err := e.Get(st.ID)
	require.NoError(t, err)
	assert.Equal(t, day(2025, time.February, 15), *got.NextDueDate, "due date advances exactly one step")
	assert.Equal(t, 1, got.Rule.OccurrenceCount)
}

func TestSkip_AdvancesPastSkippedDate(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	require.NoError(t, e.SkipOccurrence(st.ID, day(2025, time.January, 15)))
	stored, _ := e.Get(st.ID)
	assert.Equal(t, day(2025, time.February, 15), *stored.NextDueDate)
}

func TestSkip_Idempotent(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	require.NoError(t, e.SkipOccurrence(st.ID, day(2025, time.January, 15)))
	once, _ := e.Get(st.ID)
	require.NoError(t, e.SkipOccurrence(st.ID, day(2025, time.January, 15)))
	twice, _ := e.Get(st.ID)

	assert.Equal(t, once.SkippedDates, twice.SkippedDates)
	assert.Equal(t, *once.NextDueDate, *twice.NextDueDate)
}

func TestSkipUnskip_RoundTripRestoresDueDate(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	before, _ := e.Get(st.ID)
	require.NoError(t, e.SkipOccurrence(st.ID, day(2025, time.January, 15)))
	require.NoError(t, e.UnskipOccurrence(st.ID, day(2025, time.January, 15)))
	after, _ := e.Get(st.ID)

	assert.Equal(t, *before.NextDueDate, *after.NextDueDate)
}

// ---------------------------------------------------------------------------
// Pause / Resume / Delete
// ---------------------------------------------------------------------------

func TestResume_JumpsToNextFutureOccurrence(t *testing.T) {
	// Paused in January, resumed in April: the missed February and
	// March occurrences are forfeited, not generated.
	e, store, _ := setup(day(2025, time.April, 20))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	require.NoError(t, e.Pause(st.ID))
	require.NoError(t, e.Resume(st.ID))

	stored, _ := e.Get(st.ID)
	assert.True(t, stored.IsActive)
	assert.Equal(t, day(2025, time.May, 15), *stored.NextDueDate)
	assert.Empty(t, store.transactions)
}

func TestDelete_HardWhenUnreferenced(t *testing.T) {
	e, store, _ := setup(day(2025, time.January, 1))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	require.NoError(t, e.Delete(st.ID))
	_, ok := store.schedules[st.ID]
	assert.False(t, ok, "unreferenced schedule is hard-deleted")
}

func TestDelete_SoftWhenReferenced(t *testing.T) {
	e, store, _ := setup(day(2025, time.January, 15))
	st := monthlySchedule(15, day(2025, time.January, 15))
	mustCreate(t, e, st)

	_, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)

	require.NoError(t, e.Delete(st.ID))
	assert.True(t, store.softDeleted[st.ID], "referenced schedule is soft-deleted")
	assert.Len(t, store.transactions, 1, "generated transaction outlives the schedule")
}

// ---------------------------------------------------------------------------
// Weekly scenario from the product requirements
// ---------------------------------------------------------------------------

func TestWeeklyMondayThursdayScenario(t *testing.T) {
	e, _, _ := setup(day(2025, time.January, 8))
	st := &models.ScheduledTransaction{
		Name:      "Gym",
		AccountID: 1,
		Amount:    decimal.NewFromInt(20),
		Type:      models.TransactionTypeExpense,
		Rule:      models.RecurrenceRule{Type: models.RecurrenceWeekly, Interval: 1},
		StartDate: day(2025, time.January, 9), // the Thursday after a Wednesday anchor
	}
	st.Rule.SetWeekdays([]time.Weekday{time.Monday, time.Thursday})
	mustCreate(t, e, st)

	require.Equal(t, day(2025, time.January, 9), *st.NextDueDate)

	_, _, err := e.ProcessOccurrence(st.ID, nil)
	require.NoError(t, err)

	stored, _ := e.Get(st.ID)
	assert.Equal(t, day(2025, time.January, 13), *stored.NextDueDate, "after Thursday comes the following Monday")
}
