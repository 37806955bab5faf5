package main

import (
	"log"

	"github.com/fintrack/internal/api"
	"github.com/fintrack/internal/config"
	"github.com/fintrack/internal/database"
	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/ledger"
	"github.com/fintrack/internal/notify"
	"github.com/fintrack/internal/report"
	"github.com/fintrack/internal/scheduler"
)

func main() {
	// Initialize configuration
	cfg := config.LoadConfig()

	// Initialize database
	if err := database.Initialize(cfg.Database.Path); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	db := database.GetDB()

	// Wire up stores and services
	scheduledStore := database.NewScheduledStore(db)
	notificationStore := database.NewNotificationStore(db)
	ledgerService := ledger.NewService(db)

	eng := engine.New(scheduledStore, notificationStore, ledgerService, nil)
	notifier := notify.NewScheduler(scheduledStore, notificationStore, nil)

	forwarder := notify.NewForwarder(&notify.ForwardConfig{
		SlackToken:     cfg.Notify.Slack.Token,
		SlackChannel:   cfg.Notify.Slack.Channel,
		SMTPHost:       cfg.Notify.Email.SMTPHost,
		SMTPPort:       cfg.Notify.Email.SMTPPort,
		EmailFrom:      cfg.Notify.Email.From,
		EmailPassword:  cfg.Notify.Email.Password,
		EmailReceivers: cfg.Notify.Email.ToReceivers,
	})

	// Start the background scheduler
	runner := scheduler.NewRunner(eng, notifier, forwarder, notificationStore)
	if err := runner.Start(cfg.Scheduler.ProcessingSpec, cfg.Scheduler.NotificationSpec); err != nil {
		log.Fatalf("Failed to start background scheduler: %v", err)
	}
	defer runner.Stop()

	// Report generation
	reports, err := report.NewGenerator(db)
	if err != nil {
		log.Fatalf("Failed to initialize report generator: %v", err)
	}
	mailer := &report.Mailer{
		Host:     cfg.Notify.Email.SMTPHost,
		Port:     cfg.Notify.Email.SMTPPort,
		From:     cfg.Notify.Email.From,
		Password: cfg.Notify.Email.Password,
	}

	// Initialize and start API server
	server := api.NewServer(ledgerService, eng, notifier, notificationStore, reports, mailer)
	if err := server.Start(cfg.Server.Port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
