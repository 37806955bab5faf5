package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type AccountType string

const (
	AccountTypeChecking AccountType = "CHECKING"
	AccountTypeSavings  AccountType = "SAVINGS"
	AccountTypeCredit   AccountType = "CREDIT"
	AccountTypeCash     AccountType = "CASH"
)

// Account is a ledger account that transactions post against.
type Account struct {
	gorm.Model
	Name           string          `json:"name" gorm:"uniqueIndex;not null"`
	Type           AccountType     `json:"type" gorm:"not null"`
	OpeningBalance decimal.Decimal `json:"opening_balance" gorm:"type:numeric"`
	Currency       string          `json:"currency" gorm:"default:USD"`
	IsActive       bool            `json:"is_active" gorm:"default:true"`
}
