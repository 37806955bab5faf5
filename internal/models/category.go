package models

import "gorm.io/gorm"

type CategoryKind string

const (
	CategoryKindIncome   CategoryKind = "INCOME"
	CategoryKindExpense  CategoryKind = "EXPENSE"
	CategoryKindTransfer CategoryKind = "TRANSFER"
)

type Category struct {
	gorm.Model
	Name     string       `json:"name" gorm:"uniqueIndex;not null"`
	Kind     CategoryKind `json:"kind" gorm:"not null"`
	ParentID *uint        `json:"parent_id"` // Optional, for sub-categories
}
