package scheduler

import (
	"log"
	"time"

	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/notify"
	"github.com/robfig/cron/v3"
)

// NotificationSink marks notification records as delivered after a
// successful forward. *database.NotificationStore satisfies it.
type NotificationSink interface {
	MarkSent(id uint) error
}

// Runner drives the two periodic ticks: processing due schedules and
// sweeping for reminders and overdue items. Ticks run on independent
// cron entries; a slow tick is skipped rather than stacked.
type Runner struct {
	engine    *engine.Engine
	notifier  *notify.Scheduler
	forwarder *notify.Forwarder
	sink      NotificationSink
	cron      *cron.Cron
}

func NewRunner(e *engine.Engine, n *notify.Scheduler, f *notify.Forwarder, sink NotificationSink) *Runner {
	c := cron.New(cron.WithChain(
		cron.Recover(cron.DefaultLogger),
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	return &Runner{engine: e, notifier: n, forwarder: f, sink: sink, cron: c}
}

// Start registers both ticks and begins running them. Each tick also
// fires once immediately so a freshly started instance catches up
// without waiting for the first cron slot.
func (r *Runner) Start(processingSpec, notificationSpec string) error {
	processingID, err := r.cron.AddFunc(processingSpec, r.processTick)
	if err != nil {
		return err
	}
	notificationID, err := r.cron.AddFunc(notificationSpec, r.notificationTick)
	if err != nil {
		return err
	}
	r.cron.Start()

	// Catch-up runs go through the wrapped jobs so they share the
	// overlap guard with the cron-scheduled invocations.
	go r.cron.Entry(processingID).WrappedJob.Run()
	go r.cron.Entry(notificationID).WrappedJob.Run()

	log.Printf("Background scheduler started (processing %q, notifications %q)", processingSpec, notificationSpec)
	return nil
}

// Stop halts the cron schedule and waits for any in-flight tick to
// finish before returning.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	log.Println("Background scheduler stopped")
}

func (r *Runner) processTick() {
	events, err := r.engine.ProcessAllDue(time.Now())
	if err != nil {
		log.Printf("Processing tick failed: %v", err)
		return
	}
	for _, ev := range events {
		switch ev.Kind {
		case engine.EventTransactionProcessed:
			log.Printf("Processed schedule %d: %s", ev.ScheduledID, ev.Message)
		case engine.EventProcessingError:
			log.Printf("Schedule %d failed: %s", ev.ScheduledID, ev.Message)
		}
		if ev.Notification != nil {
			r.deliver(ev.Notification)
		}
	}
}

func (r *Runner) notificationTick() {
	reminders, err := r.notifier.CheckUpcoming()
	if err != nil {
		log.Printf("Reminder sweep failed: %v", err)
	}
	overdue, err := r.notifier.CheckOverdue()
	if err != nil {
		log.Printf("Overdue sweep failed: %v", err)
	}
	for _, n := range append(reminders, overdue...) {
		r.deliver(n)
	}
}

func (r *Runner) deliver(n *models.Notification) {
	if r.forwarder == nil || !r.forwarder.Enabled() {
		return
	}
	if err := r.forwarder.Forward(n); err != nil {
		log.Printf("Failed to forward notification %d: %v", n.ID, err)
		return
	}
	if err := r.sink.MarkSent(n.ID); err != nil {
		log.Printf("Failed to mark notification %d as sent: %v", n.ID, err)
	}
}
