package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type RecurrenceType string

const (
	RecurrenceNone         RecurrenceType = "NONE"
	RecurrenceDaily        RecurrenceType = "DAILY"
	RecurrenceWeekly       RecurrenceType = "WEEKLY"
	RecurrenceBiWeekly     RecurrenceType = "BIWEEKLY"
	RecurrenceMonthly      RecurrenceType = "MONTHLY"
	RecurrenceQuarterly    RecurrenceType = "QUARTERLY"
	RecurrenceSemiAnnually RecurrenceType = "SEMIANNUALLY"
	RecurrenceAnnually     RecurrenceType = "ANNUALLY"
)

// IsWeeklyFamily reports whether the type anchors on days of the week.
func (t RecurrenceType) IsWeeklyFamily() bool {
	return t == RecurrenceWeekly || t == RecurrenceBiWeekly
}

// IsMonthlyFamily reports whether the type anchors on a day of the month.
func (t RecurrenceType) IsMonthlyFamily() bool {
	switch t {
	case RecurrenceMonthly, RecurrenceQuarterly, RecurrenceSemiAnnually, RecurrenceAnnually:
		return true
	}
	return false
}

type EndConditionType string

const (
	EndNever      EndConditionType = "NEVER"
	EndAfterCount EndConditionType = "AFTER_COUNT"
	EndByDate     EndConditionType = "BY_DATE"
)

type SchedulingMode string

const (
	SchedulingAutoPost       SchedulingMode = "AUTO_POST"
	SchedulingManualApproval SchedulingMode = "MANUAL_APPROVAL"
)

type NotificationTiming string

const (
	TimingNone            NotificationTiming = "NONE"
	TimingSameDay         NotificationTiming = "SAME_DAY"
	TimingOneDayBefore    NotificationTiming = "ONE_DAY_BEFORE"
	TimingThreeDaysBefore NotificationTiming = "THREE_DAYS_BEFORE"
	TimingOneWeekBefore   NotificationTiming = "ONE_WEEK_BEFORE"
)

// RecurrenceRule describes how often and on which calendar positions a
// scheduled transaction recurs. It is embedded in ScheduledTransaction.
type RecurrenceRule struct {
	Type              RecurrenceType   `json:"type" gorm:"column:recurrence_type;not null"`
	Interval          int              `json:"interval" gorm:"column:recurrence_interval;default:1"`
	DaysOfWeek        string           `json:"days_of_week"` // JSON array of time.Weekday values
	DayOfMonth        int              `json:"day_of_month"` // 1-31, 0 means last day of month
	AdjustForWeekends bool             `json:"adjust_for_weekends"`
	EndCondition      EndConditionType `json:"end_condition" gorm:"default:NEVER"`
	EndCount          int              `json:"end_count"`
	EndDate           *time.Time       `json:"end_date"`
	OccurrenceCount   int              `json:"occurrence_count"` // Occurrences generated so far
}

// Weekdays decodes the stored day-of-week set.
func (r *RecurrenceRule) Weekdays() []time.Weekday {
	if r.DaysOfWeek == "" {
		return nil
	}
	var days []time.Weekday
	if err := json.Unmarshal([]byte(r.DaysOfWeek), &days); err != nil {
		return nil
	}
	return days
}

// SetWeekdays encodes the day-of-week set for storage.
func (r *RecurrenceRule) SetWeekdays(days []time.Weekday) {
	if len(days) == 0 {
		r.DaysOfWeek = ""
		return
	}
	data, _ := json.Marshal(days)
	r.DaysOfWeek = string(data)
}

// HasWeekday reports whether d is in the rule's day-of-week set.
func (r *RecurrenceRule) HasWeekday(d time.Weekday) bool {
	for _, wd := range r.Weekdays() {
		if wd == d {
			return true
		}
	}
	return false
}

// ScheduledTransaction is a recurring obligation or income. It owns its
// occurrence-tracking state (next due date, last generated date, skipped
// dates); that state is mutated only through the engine so the cached
// next due date stays consistent with the rule.
type ScheduledTransaction struct {
	gorm.Model
	Name              string             `json:"name" gorm:"not null"`
	AccountID         uint               `json:"account_id" gorm:"not null"`
	CategoryID        uint               `json:"category_id"`
	Amount            decimal.Decimal    `json:"amount" gorm:"type:numeric;not null"`
	Payee             string             `json:"payee"`
	Description       string             `json:"description"`
	Type              TransactionType    `json:"type" gorm:"not null"`
	TransferAccountID *uint              `json:"transfer_account_id"`
	SchedulingMode    SchedulingMode     `json:"scheduling_mode" gorm:"default:AUTO_POST"`
	Rule              RecurrenceRule     `json:"rule" gorm:"embedded"`
	StartDate         time.Time          `json:"start_date"`
	NextDueDate       *time.Time         `json:"next_due_date" gorm:"index"`
	LastGeneratedDate *time.Time         `json:"last_generated_date"`
	LastProcessedDate *time.Time         `json:"last_processed_date"`
	SkippedDates      string             `json:"skipped_dates"` // JSON array of RFC 3339 dates
	IsActive          bool               `json:"is_active" gorm:"default:true"`
	NotificationTiming NotificationTiming `json:"notification_timing" gorm:"default:NONE"`
}

// Skipped decodes the stored skip set.
func (s *ScheduledTransaction) Skipped() []time.Time {
	if s.SkippedDates == "" {
		return nil
	}
	var dates []time.Time
	if err := json.Unmarshal([]byte(s.SkippedDates), &dates); err != nil {
		return nil
	}
	return dates
}

func (s *ScheduledTransaction) setSkipped(dates []time.Time) {
	if len(dates) == 0 {
		s.SkippedDates = ""
		return
	}
	data, _ := json.Marshal(dates)
	s.SkippedDates = string(data)
}

// IsSkipped reports whether date is in the skip set. Dates are compared
// by calendar day.
func (s *ScheduledTransaction) IsSkipped(date time.Time) bool {
	for _, d := range s.Skipped() {
		if sameDay(d, date) {
			return true
		}
	}
	return false
}

// AddSkippedDate adds date to the skip set. Idempotent.
func (s *ScheduledTransaction) AddSkippedDate(date time.Time) {
	if s.IsSkipped(date) {
		return
	}
	s.setSkipped(append(s.Skipped(), date))
}

// RemoveSkippedDate removes date from the skip set if present.
func (s *ScheduledTransaction) RemoveSkippedDate(date time.Time) {
	dates := s.Skipped()
	kept := dates[:0]
	for _, d := range dates {
		if !sameDay(d, date) {
			kept = append(kept, d)
		}
	}
	s.setSkipped(kept)
}

// Template builds the ledger transaction this schedule generates,
// dated at the given occurrence date.
func (s *ScheduledTransaction) Template(date time.Time) *Transaction {
	status := TransactionStatusCleared
	if s.SchedulingMode == SchedulingManualApproval {
		status = TransactionStatusPending
	}
	id := s.ID
	return &Transaction{
		AccountID:         s.AccountID,
		CategoryID:        s.CategoryID,
		Amount:            s.Amount,
		Payee:             s.Payee,
		Description:       s.Description,
		Date:              date,
		Type:              s.Type,
		Status:            status,
		TransferAccountID: s.TransferAccountID,
		ScheduledID:       &id,
	}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.Month() == b.Month() && a.Day() == b.Day()
}
