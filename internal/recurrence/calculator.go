// Package recurrence computes occurrence dates for scheduled transactions.
// It is pure: no I/O, no state beyond the rule and anchor passed in.
//
// Dates returned here are the logical (unadjusted) occurrence dates. When a
// rule asks for weekend adjustment, callers apply PostingDate to get the
// business day the money actually moves on; the unadjusted date remains the
// anchor for the next computation so the schedule never drifts.
package recurrence

import (
	"time"

	"github.com/fintrack/internal/models"
)

// maxScan bounds the day-by-day search within a weekly block.
const maxScan = 7

// NextDueDate computes the next occurrence strictly after anchor.
// It returns ok=false when the rule produces no further occurrences:
// the rule type is None, the occurrence count is exhausted, or the
// computed date would pass the rule's end date.
func NextDueDate(rule models.RecurrenceRule, anchor time.Time) (time.Time, bool) {
	if rule.Type == models.RecurrenceNone {
		// One-shot schedule, already consumed.
		return time.Time{}, false
	}
	if rule.EndCondition == models.EndAfterCount && rule.OccurrenceCount >= rule.EndCount {
		return time.Time{}, false
	}

	anchor = DateOnly(anchor)
	interval := rule.Interval
	if interval < 1 {
		interval = 1
	}

	var next time.Time
	switch rule.Type {
	case models.RecurrenceDaily:
		next = anchor.AddDate(0, 0, interval)
	case models.RecurrenceWeekly:
		next = nextWeekday(rule, anchor, interval)
	case models.RecurrenceBiWeekly:
		next = nextWeekday(rule, anchor, 2*interval)
	case models.RecurrenceMonthly:
		next = nextMonthDay(rule, anchor, interval)
	case models.RecurrenceQuarterly:
		next = nextMonthDay(rule, anchor, 3*interval)
	case models.RecurrenceSemiAnnually:
		next = nextMonthDay(rule, anchor, 6*interval)
	case models.RecurrenceAnnually:
		next = nextMonthDay(rule, anchor, 12*interval)
	default:
		return time.Time{}, false
	}

	if next.IsZero() {
		return time.Time{}, false
	}
	if rule.EndCondition == models.EndByDate && rule.EndDate != nil && next.After(DateOnly(*rule.EndDate)) {
		return time.Time{}, false
	}
	return next, true
}

// PostingDate returns the business day an occurrence posts on. For rules
// with weekend adjustment a Saturday or Sunday occurrence rolls to the
// following Monday; the adjustment never feeds back into the anchor.
func PostingDate(rule models.RecurrenceRule, occurrence time.Time) time.Time {
	if rule.AdjustForWeekends {
		return AdjustForWeekend(occurrence)
	}
	return occurrence
}

// nextWeekday finds the next date after anchor whose weekday is in the
// rule's day-of-week set, first within the anchor's week, then in the
// week blockWeeks weeks after the anchor's. Weeks start on Monday.
func nextWeekday(rule models.RecurrenceRule, anchor time.Time, blockWeeks int) time.Time {
	if rule.DaysOfWeek == "" {
		return time.Time{}
	}

	// Remaining days of the anchor's own week.
	start := weekStart(anchor)
	for d := anchor.AddDate(0, 0, 1); d.Before(start.AddDate(0, 0, maxScan)); d = d.AddDate(0, 0, 1) {
		if rule.HasWeekday(d.Weekday()) {
			return d
		}
	}

	// Current block exhausted, jump to the next one.
	blockStart := start.AddDate(0, 0, 7*blockWeeks)
	for i := 0; i < maxScan; i++ {
		d := blockStart.AddDate(0, 0, i)
		if rule.HasWeekday(d.Weekday()) {
			return d
		}
	}
	return time.Time{}
}

// nextMonthDay advances by months months and snaps to the rule's day of
// month, clamped to the length of the target month. DayOfMonth 0 means
// the last day of the month.
func nextMonthDay(rule models.RecurrenceRule, anchor time.Time, months int) time.Time {
	year, month := anchor.Year(), anchor.Month()
	month += time.Month(months)
	// time.Date normalizes out-of-range months for us.
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	day := rule.DayOfMonth
	last := DaysInMonth(first.Year(), first.Month())
	if day < 1 || day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}
