package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type TransactionType string

const (
	TransactionTypeIncome   TransactionType = "INCOME"
	TransactionTypeExpense  TransactionType = "EXPENSE"
	TransactionTypeTransfer TransactionType = "TRANSFER"
)

type TransactionStatus string

const (
	TransactionStatusPending TransactionStatus = "PENDING"
	TransactionStatusCleared TransactionStatus = "CLEARED"
)

// Transaction is a single ledger entry. Transactions generated from a
// scheduled transaction carry a back-reference to it; the reference is
// weak, the entry outlives the schedule if the schedule is deleted.
type Transaction struct {
	gorm.Model
	AccountID         uint              `json:"account_id" gorm:"not null;index"`
	CategoryID        uint              `json:"category_id" gorm:"index"`
	Amount            decimal.Decimal   `json:"amount" gorm:"type:numeric;not null"`
	Payee             string            `json:"payee"`
	Description       string            `json:"description"`
	Date              time.Time         `json:"date" gorm:"index"`
	Type              TransactionType   `json:"type" gorm:"not null"`
	Status            TransactionStatus `json:"status" gorm:"not null"`
	TransferAccountID *uint             `json:"transfer_account_id"` // Destination account for transfers
	ScheduledID       *uint             `json:"scheduled_id" gorm:"index"`
}
