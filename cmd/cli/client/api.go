package client

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fintrack/internal/engine"
	"github.com/fintrack/internal/models"
	"github.com/shopspring/decimal"
)

type APIClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewAPIClient(baseURL string) *APIClient {
	return &APIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *APIClient) doRequest(method, path string, body interface{}) ([]byte, error) {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("API error: %s", string(respBody))
	}

	return respBody, nil
}

func (c *APIClient) getJSON(path string, out interface{}) error {
	resp, err := c.doRequest("GET", path, nil)
	if err != nil {
		return err
	}
	return json.Unmarshal(resp, out)
}

// Scheduled transactions

func (c *APIClient) ListScheduled(activeOnly bool) ([]models.ScheduledTransaction, error) {
	path := "/api/v1/scheduled"
	if activeOnly {
		path += "?active=true"
	}
	var schedules []models.ScheduledTransaction
	if err := c.getJSON(path, &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (c *APIClient) GetScheduled(id uint) (*models.ScheduledTransaction, error) {
	var st models.ScheduledTransaction
	if err := c.getJSON(fmt.Sprintf("/api/v1/scheduled/%d", id), &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *APIClient) CreateScheduled(st *models.ScheduledTransaction) error {
	_, err := c.doRequest("POST", "/api/v1/scheduled", st)
	return err
}

func (c *APIClient) DeleteScheduled(id uint) error {
	_, err := c.doRequest("DELETE", fmt.Sprintf("/api/v1/scheduled/%d", id), nil)
	return err
}

func (c *APIClient) ListDue() ([]models.ScheduledTransaction, error) {
	var schedules []models.ScheduledTransaction
	if err := c.getJSON("/api/v1/scheduled/due", &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (c *APIClient) ListOverdue() ([]models.ScheduledTransaction, error) {
	var schedules []models.ScheduledTransaction
	if err := c.getJSON("/api/v1/scheduled/overdue", &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

func (c *APIClient) ListUpcoming(days int) ([]models.ScheduledTransaction, error) {
	var schedules []models.ScheduledTransaction
	if err := c.getJSON(fmt.Sprintf("/api/v1/scheduled/upcoming?days=%d", days), &schedules); err != nil {
		return nil, err
	}
	return schedules, nil
}

type ProcessResult struct {
	Transaction *models.Transaction `json:"transaction"`
	Events      []engine.Event      `json:"events"`
}

func (c *APIClient) ProcessScheduled(id uint, date string) (*ProcessResult, error) {
	path := fmt.Sprintf("/api/v1/scheduled/%d/process", id)
	if date != "" {
		path += "?date=" + date
	}
	resp, err := c.doRequest("POST", path, nil)
	if err != nil {
		return nil, err
	}
	var result ProcessResult
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *APIClient) ProcessAllDue() ([]engine.Event, error) {
	resp, err := c.doRequest("POST", "/api/v1/scheduled/process-all", nil)
	if err != nil {
		return nil, err
	}
	var result struct {
		Events []engine.Event `json:"events"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, err
	}
	return result.Events, nil
}

func (c *APIClient) SkipOccurrence(id uint, date string) error {
	_, err := c.doRequest("POST", fmt.Sprintf("/api/v1/scheduled/%d/skip", id), map[string]string{"date": date})
	return err
}

func (c *APIClient) UnskipOccurrence(id uint, date string) error {
	_, err := c.doRequest("POST", fmt.Sprintf("/api/v1/scheduled/%d/unskip", id), map[string]string{"date": date})
	return err
}

func (c *APIClient) PauseScheduled(id uint) error {
	_, err := c.doRequest("POST", fmt.Sprintf("/api/v1/scheduled/%d/pause", id), nil)
	return err
}

func (c *APIClient) ResumeScheduled(id uint) error {
	_, err := c.doRequest("POST", fmt.Sprintf("/api/v1/scheduled/%d/resume", id), nil)
	return err
}

// Ledger

func (c *APIClient) ListAccounts() ([]models.Account, error) {
	var accounts []models.Account
	if err := c.getJSON("/api/v1/accounts", &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

func (c *APIClient) AccountBalance(id uint) (decimal.Decimal, error) {
	var result struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if err := c.getJSON(fmt.Sprintf("/api/v1/accounts/%d/balance", id), &result); err != nil {
		return decimal.Zero, err
	}
	return result.Balance, nil
}

func (c *APIClient) ListTransactions(accountID uint, limit int) ([]models.Transaction, error) {
	path := "/api/v1/transactions?"
	if accountID > 0 {
		path += fmt.Sprintf("account=%d&", accountID)
	}
	if limit > 0 {
		path += fmt.Sprintf("limit=%d", limit)
	}
	var txns []models.Transaction
	if err := c.getJSON(path, &txns); err != nil {
		return nil, err
	}
	return txns, nil
}

// Reports

func (c *APIClient) GenerateReport(reportType, start, end, emailTo string) ([]byte, error) {
	body := map[string]string{
		"type":  reportType,
		"start": start,
		"end":   end,
	}
	if emailTo != "" {
		body["email"] = emailTo
	}
	return c.doRequest("POST", "/api/v1/reports/generate", body)
}

// Notifications

func (c *APIClient) ListNotifications(activeOnly bool) ([]models.Notification, error) {
	path := "/api/v1/notifications"
	if activeOnly {
		path += "?active=true"
	}
	var notes []models.Notification
	if err := c.getJSON(path, &notes); err != nil {
		return nil, err
	}
	return notes, nil
}

func (c *APIClient) MarkNotificationRead(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/notifications/%d/read", id), nil)
	return err
}

func (c *APIClient) DismissNotification(id uint) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/notifications/%d/dismiss", id), nil)
	return err
}

func (c *APIClient) SnoozeNotification(id uint, hours int) error {
	_, err := c.doRequest("PUT", fmt.Sprintf("/api/v1/notifications/%d/snooze", id), map[string]int{"hours": hours})
	return err
}
