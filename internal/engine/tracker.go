package engine

import (
	"time"

	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/recurrence"
)

// Occurrence-tracker state lives on the ScheduledTransaction row; the
// functions here are the only code that mutates it. Skipped dates and
// the cached next due date always hold the logical (unadjusted)
// occurrence date — weekend adjustment applies to posting dates only.

// maxSkipAdvances bounds recomputation when a pathological skip set
// covers every produced occurrence.
const maxSkipAdvances = 1000

// markGenerated records that the occurrence on date was materialized:
// it sets the last generated date, clears the date from the skip set,
// bumps the occurrence count and recomputes the next due date from the
// unadjusted date. Calling it again for the same date is a no-op.
func markGenerated(st *models.ScheduledTransaction, date, now time.Time) {
	date = recurrence.DateOnly(date)
	if st.LastGeneratedDate != nil && recurrence.SameDay(*st.LastGeneratedDate, date) {
		return
	}
	st.LastGeneratedDate = &date
	st.LastProcessedDate = &now
	st.RemoveSkippedDate(date)
	st.Rule.OccurrenceCount++
	recomputeNextDue(st)
}

// recomputeNextDue derives the cached next due date from rule and
// tracker state: the earliest unprocessed, unskipped occurrence on or
// after the last generated date (or the start date for fresh rules).
func recomputeNextDue(st *models.ScheduledTransaction) {
	next, ok := firstCandidate(st)
	for ok && st.IsSkipped(next) {
		next, ok = recurrence.NextDueDate(st.Rule, next)
	}
	if !ok {
		st.NextDueDate = nil
		return
	}
	st.NextDueDate = &next
}

// firstCandidate returns the earliest occurrence the rule still owes.
// Before anything was generated that is the start date itself; after,
// it is the calculator's next date from the last generated one.
func firstCandidate(st *models.ScheduledTransaction) (time.Time, bool) {
	if st.LastGeneratedDate != nil {
		return recurrence.NextDueDate(st.Rule, *st.LastGeneratedDate)
	}

	start := recurrence.DateOnly(st.StartDate)
	if st.Rule.EndCondition == models.EndAfterCount && st.Rule.OccurrenceCount >= st.Rule.EndCount {
		return time.Time{}, false
	}
	if st.Rule.EndCondition == models.EndByDate && st.Rule.EndDate != nil && start.After(recurrence.DateOnly(*st.Rule.EndDate)) {
		return time.Time{}, false
	}
	return start, true
}

// rollForward advances the next due date past every occurrence before
// today without generating anything. Used on Resume: a paused schedule
// does not accumulate a backlog.
func rollForward(st *models.ScheduledTransaction, today time.Time) {
	today = recurrence.DateOnly(today)
	recomputeNextDue(st)
	for i := 0; i < maxSkipAdvances; i++ {
		if st.NextDueDate == nil || !st.NextDueDate.Before(today) {
			return
		}
		next, ok := recurrence.NextDueDate(st.Rule, *st.NextDueDate)
		for ok && st.IsSkipped(next) {
			next, ok = recurrence.NextDueDate(st.Rule, next)
		}
		if !ok {
			st.NextDueDate = nil
			return
		}
		st.NextDueDate = &next
	}
}
