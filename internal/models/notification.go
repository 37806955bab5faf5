package models

import (
	"time"

	"gorm.io/gorm"
)

type NotificationKind string

const (
	NotificationReminder              NotificationKind = "REMINDER"
	NotificationOverdue               NotificationKind = "OVERDUE"
	NotificationApprovalRequest       NotificationKind = "APPROVAL_REQUEST"
	NotificationProcessedConfirmation NotificationKind = "PROCESSED_CONFIRMATION"
	NotificationError                 NotificationKind = "ERROR"
)

// Notification is a record surfaced to the user about a scheduled
// transaction. The scheduled transaction reference is weak; notifications
// never mutate schedule state.
type Notification struct {
	gorm.Model
	ScheduledID  uint             `json:"scheduled_id" gorm:"index"`
	Kind         NotificationKind `json:"kind" gorm:"not null;index"`
	Message      string           `json:"message"`
	ScheduledFor time.Time        `json:"scheduled_for" gorm:"index"` // The occurrence date this notification is about
	IsSent       bool             `json:"is_sent" gorm:"default:false"`
	IsRead       bool             `json:"is_read" gorm:"default:false"`
	IsDismissed  bool             `json:"is_dismissed" gorm:"default:false"`
	SnoozedUntil *time.Time       `json:"snoozed_until"`
}

// IsSnoozed reports whether the notification is snoozed as of now.
func (n *Notification) IsSnoozed(now time.Time) bool {
	return n.SnoozedUntil != nil && now.Before(*n.SnoozedUntil)
}
