package engine

import (
	"fmt"

	"github.com/fintrack/internal/models"
)

// Validate runs structural checks on a scheduled transaction and
// returns every violation found. It never fails fast, so bulk import
// and edit flows can report all problems at once.
func (e *Engine) Validate(st *models.ScheduledTransaction) []string {
	var violations []string

	if st.Name == "" {
		violations = append(violations, "name is required")
	}
	if st.Amount.Sign() <= 0 {
		violations = append(violations, "amount must be positive")
	}

	rule := st.Rule
	if rule.Type == "" {
		violations = append(violations, "recurrence type is required")
	}
	if rule.Interval < 1 {
		violations = append(violations, "interval must be at least 1")
	}
	if rule.Type.IsWeeklyFamily() && len(rule.Weekdays()) == 0 {
		violations = append(violations, "weekly recurrence requires at least one day of week")
	}
	if rule.Type.IsMonthlyFamily() && (rule.DayOfMonth < 0 || rule.DayOfMonth > 31) {
		violations = append(violations, "day of month must be between 1 and 31, or 0 for the last day")
	}
	switch rule.EndCondition {
	case models.EndAfterCount:
		if rule.EndCount < 1 {
			violations = append(violations, "occurrence count end condition requires a positive count")
		}
	case models.EndByDate:
		if rule.EndDate == nil {
			violations = append(violations, "by-date end condition requires an end date")
		}
	}

	violations = append(violations, e.checkReferenceViolations(st)...)
	return violations
}

// checkReferenceViolations verifies the template's account and category
// references against the ledger.
func (e *Engine) checkReferenceViolations(st *models.ScheduledTransaction) []string {
	var violations []string

	if st.AccountID == 0 {
		violations = append(violations, "account is required")
	} else if ok, err := e.ledger.AccountExists(st.AccountID); err != nil {
		violations = append(violations, fmt.Sprintf("unable to verify account %d: %v", st.AccountID, err))
	} else if !ok {
		violations = append(violations, fmt.Sprintf("account %d does not exist", st.AccountID))
	}

	if st.CategoryID != 0 {
		if ok, err := e.ledger.CategoryExists(st.CategoryID); err != nil {
			violations = append(violations, fmt.Sprintf("unable to verify category %d: %v", st.CategoryID, err))
		} else if !ok {
			violations = append(violations, fmt.Sprintf("category %d does not exist", st.CategoryID))
		}
	}

	if st.Type == models.TransactionTypeTransfer {
		switch {
		case st.TransferAccountID == nil:
			violations = append(violations, "transfer requires a destination account")
		case *st.TransferAccountID == st.AccountID:
			violations = append(violations, "transfer source and destination accounts must differ")
		default:
			if ok, err := e.ledger.AccountExists(*st.TransferAccountID); err != nil {
				violations = append(violations, fmt.Sprintf("unable to verify transfer account %d: %v", *st.TransferAccountID, err))
			} else if !ok {
				violations = append(violations, fmt.Sprintf("transfer account %d does not exist", *st.TransferAccountID))
			}
		}
	}

	return violations
}

// checkReferences is the throwing form used on the processing path,
// where a dangling reference is a ValidationError.
func (e *Engine) checkReferences(st *models.ScheduledTransaction) error {
	if violations := e.checkReferenceViolations(st); len(violations) > 0 {
		return fmt.Errorf("%w: %s", ErrValidation, violations[0])
	}
	return nil
}
