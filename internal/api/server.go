package api

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/fintrack/internal/database"
	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/ledger"
	"github.com/fintrack/internal/models"
	"github.com/fintrack/internal/notify"
	"github.com/fintrack/internal/report"

	"github.com/gin-gonic/gin"
)

type Server struct {
	ledger   *ledger.Service
	engine   *engine.Engine
	notifier *notify.Scheduler
	notes    *database.NotificationStore
	reports  *report.Generator
	mailer   *report.Mailer
	router   *gin.Engine
}

func NewServer(ledger *ledger.Service, eng *engine.Engine, notifier *notify.Scheduler, notes *database.NotificationStore, reports *report.Generator, mailer *report.Mailer) *Server {
	server := &Server{
		ledger:   ledger,
		engine:   eng,
		notifier: notifier,
		notes:    notes,
		reports:  reports,
		mailer:   mailer,
		router:   gin.Default(),
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	api := s.router.Group("/api/v1")

	// Ledger endpoints
	accounts := api.Group("/accounts")
	{
		accounts.GET("", s.listAccounts)
		accounts.POST("", s.createAccount)
		accounts.GET("/:id", s.getAccount)
		accounts.PUT("/:id", s.updateAccount)
		accounts.DELETE("/:id", s.deleteAccount)
		accounts.GET("/:id/balance", s.accountBalance)
	}

	categories := api.Group("/categories")
	{
		categories.GET("", s.listCategories)
		categories.POST("", s.createCategory)
		categories.DELETE("/:id", s.deleteCategory)
	}

	api.GET("/transactions", s.listTransactions)
	api.POST("/transactions", s.createTransaction)

	// Scheduled transaction endpoints
	scheduled := api.Group("/scheduled")
	{
		scheduled.GET("", s.listScheduled)
		scheduled.POST("", s.createScheduled)
		scheduled.POST("/validate", s.validateScheduled)
		scheduled.POST("/process-all", s.processAllDue)
		scheduled.GET("/due", s.listDue)
		scheduled.GET("/overdue", s.listOverdue)
		scheduled.GET("/upcoming", s.listUpcoming)
		scheduled.GET("/:id", s.getScheduled)
		scheduled.PUT("/:id", s.updateScheduled)
		scheduled.DELETE("/:id", s.deleteScheduled)
		scheduled.POST("/:id/process", s.processScheduled)
		scheduled.POST("/:id/skip", s.skipOccurrence)
		scheduled.POST("/:id/unskip", s.unskipOccurrence)
		scheduled.POST("/:id/pause", s.pauseScheduled)
		scheduled.POST("/:id/resume", s.resumeScheduled)
	}

	api.POST("/reports/generate", s.generateReport)

	// Notification endpoints
	notifications := api.Group("/notifications")
	{
		notifications.GET("", s.listNotifications)
		notifications.PUT("/:id/read", s.markNotificationRead)
		notifications.PUT("/:id/dismiss", s.dismissNotification)
		notifications.PUT("/:id/snooze", s.snoozeNotification)
		notifications.PUT("/:id/unsnooze", s.unsnoozeNotification)
	}
}

func (s *Server) Start(port int) error {
	return s.router.Run(fmt.Sprintf(":%d", port))
}

// statusFor maps domain errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, engine.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, engine.ErrSkippedDate),
		errors.Is(err, engine.ErrExhaustedRule),
		errors.Is(err, engine.ErrInactive):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) abortWith(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": err.Error()})
}

func pathID(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid ID"})
		return 0, false
	}
	return uint(id), true
}

const dateLayout = "2006-01-02"

// Account handlers

func (s *Server) listAccounts(c *gin.Context) {
	accounts, err := s.ledger.ListAccounts()
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, accounts)
}

func (s *Server) createAccount(c *gin.Context) {
	var account models.Account
	if err := c.ShouldBindJSON(&account); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ledger.CreateAccount(&account); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, account)
}

func (s *Server) getAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	account, err := s.ledger.GetAccount(id)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) updateAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var account models.Account
	if err := c.ShouldBindJSON(&account); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	account.ID = id
	if err := s.ledger.UpdateAccount(&account); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, account)
}

func (s *Server) deleteAccount(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.ledger.DeleteAccount(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "account deleted"})
}

func (s *Server) accountBalance(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	balance, err := s.ledger.AccountBalance(id)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"account_id": id, "balance": balance})
}

// Category handlers

func (s *Server) listCategories(c *gin.Context) {
	categories, err := s.ledger.ListCategories()
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, categories)
}

func (s *Server) createCategory(c *gin.Context) {
	var category models.Category
	if err := c.ShouldBindJSON(&category); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ledger.CreateCategory(&category); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, category)
}

func (s *Server) deleteCategory(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.ledger.DeleteCategory(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "category deleted"})
}

// Transaction handlers

func (s *Server) listTransactions(c *gin.Context) {
	var accountID uint
	if v := c.Query("account"); v != "" {
		id, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid account ID"})
			return
		}
		accountID = uint(id)
	}
	limit := 0
	if v := c.Query("limit"); v != "" {
		if l, err := strconv.Atoi(v); err == nil {
			limit = l
		}
	}

	txns, err := s.ledger.ListTransactions(accountID, limit)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (s *Server) createTransaction(c *gin.Context) {
	var txn models.Transaction
	if err := c.ShouldBindJSON(&txn); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.ledger.CreateTransaction(&txn); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, txn)
}

// Scheduled transaction handlers

func (s *Server) listScheduled(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	schedules, err := s.engine.List(activeOnly)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *Server) createScheduled(c *gin.Context) {
	var st models.ScheduledTransaction
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	violations, err := s.engine.Create(&st)
	if len(violations) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": violations})
		return
	}
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusCreated, st)
}

func (s *Server) getScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	st, err := s.engine.Get(id)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) updateScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var st models.ScheduledTransaction
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	st.ID = id
	violations, err := s.engine.Update(&st)
	if len(violations) > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"errors": violations})
		return
	}
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) deleteScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.engine.Delete(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "scheduled transaction deleted"})
}

func (s *Server) validateScheduled(c *gin.Context) {
	var st models.ScheduledTransaction
	if err := c.ShouldBindJSON(&st); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	violations := s.engine.Validate(&st)
	c.JSON(http.StatusOK, gin.H{"valid": len(violations) == 0, "errors": violations})
}

func (s *Server) listDue(c *gin.Context) {
	schedules, err := s.engine.GetDue(time.Now())
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *Server) listOverdue(c *gin.Context) {
	schedules, err := s.engine.GetOverdue()
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *Server) listUpcoming(c *gin.Context) {
	days := 30
	if v := c.Query("days"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid days parameter"})
			return
		}
		days = d
	}
	schedules, err := s.engine.GetUpcoming(days)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, schedules)
}

func (s *Server) processScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var date *time.Time
	if v := c.Query("date"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
			return
		}
		date = &t
	}

	txn, events, err := s.engine.ProcessOccurrence(id, date)
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"transaction": txn, "events": events})
}

func (s *Server) processAllDue(c *gin.Context) {
	events, err := s.engine.ProcessAllDue(time.Now())
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

type occurrenceRequest struct {
	Date string `json:"date" binding:"required"`
}

func (s *Server) skipOccurrence(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req occurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	if err := s.engine.SkipOccurrence(id, date); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "occurrence skipped"})
}

func (s *Server) unskipOccurrence(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req occurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	date, err := time.Parse(dateLayout, req.Date)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid date, expected YYYY-MM-DD"})
		return
	}
	if err := s.engine.UnskipOccurrence(id, date); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "occurrence restored"})
}

func (s *Server) pauseScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.engine.Pause(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule paused"})
}

func (s *Server) resumeScheduled(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.engine.Resume(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "schedule resumed"})
}

// Report handlers

func (s *Server) generateReport(c *gin.Context) {
	var req struct {
		Type  string `json:"type" binding:"required,oneof=weekly monthly"`
		Start string `json:"start" binding:"required"`
		End   string `json:"end" binding:"required"`
		Email string `json:"email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	start, err := time.Parse(dateLayout, req.Start)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid start date, expected YYYY-MM-DD"})
		return
	}
	end, err := time.Parse(dateLayout, req.End)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid end date, expected YYYY-MM-DD"})
		return
	}

	msg, err := s.reports.GenerateReport(req.Type, start, end)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	if req.Email != "" {
		if !s.mailer.Enabled() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "email delivery is not configured"})
			return
		}
		if err := s.mailer.Send(msg, []string{req.Email}); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("failed to send report: %v", err)})
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": fmt.Sprintf("report sent to %s", req.Email)})
		return
	}

	c.Data(http.StatusOK, "text/html; charset=utf-8", msg.HTML)
}

// Notification handlers

func (s *Server) listNotifications(c *gin.Context) {
	if c.Query("active") == "true" {
		notes, err := s.notifier.ListActive()
		if err != nil {
			s.abortWith(c, err)
			return
		}
		c.JSON(http.StatusOK, notes)
		return
	}
	notes, err := s.notes.List()
	if err != nil {
		s.abortWith(c, err)
		return
	}
	c.JSON(http.StatusOK, notes)
}

func (s *Server) markNotificationRead(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.notifier.MarkRead(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) dismissNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.notifier.Dismiss(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) snoozeNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	var req struct {
		Hours int `json:"hours" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := s.notifier.Snooze(id, time.Duration(req.Hours)*time.Hour); err != nil {
		s.abortWith(c, err)
		return
	}
	c.Status(http.StatusOK)
}

func (s *Server) unsnoozeNotification(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	if err := s.notifier.Unsnooze(id); err != nil {
		s.abortWith(c, err)
		return
	}
	c.Status(http.StatusOK)
}
