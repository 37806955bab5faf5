package engine

import "github.com/fintrack/internal/models"

type EventKind string

const (
	EventTransactionProcessed EventKind = "TRANSACTION_PROCESSED"
	EventNotificationCreated  EventKind = "NOTIFICATION_CREATED"
	EventProcessingError      EventKind = "PROCESSING_ERROR"
)

// Event is a domain event returned from engine operations. The engine
// has no UI dependencies; consumers (the background runner, display
// layers) decide what to do with each event.
type Event struct {
	Kind         EventKind
	ScheduledID  uint
	Message      string
	Transaction  *models.Transaction
	Notification *models.Notification
}

func processedEvent(txn *models.Transaction, scheduledID uint, msg string) Event {
	return Event{Kind: EventTransactionProcessed, ScheduledID: scheduledID, Message: msg, Transaction: txn}
}

func notifiedEvent(n *models.Notification) Event {
	return Event{Kind: EventNotificationCreated, ScheduledID: n.ScheduledID, Message: n.Message, Notification: n}
}

func errorEvent(scheduledID uint, msg string) Event {
	return Event{Kind: EventProcessingError, ScheduledID: scheduledID, Message: msg}
}
