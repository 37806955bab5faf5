package report

import (
	"testing"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func amount(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func TestSummarize(t *testing.T) {
	g := &Generator{}
	txns := []models.Transaction{
		{Type: models.TransactionTypeIncome, Amount: amount("3000")},
		{Type: models.TransactionTypeExpense, Amount: amount("1200.50")},
		{Type: models.TransactionTypeExpense, Amount: amount("99.95")},
		{Type: models.TransactionTypeTransfer, Amount: amount("500")},
	}

	summary := g.summarize(txns)
	assert.Equal(t, 4, summary.TransactionCount)
	assert.True(t, summary.TotalIncome.Equal(amount("3000")))
	assert.True(t, summary.TotalExpense.Equal(amount("1300.45")))
	assert.True(t, summary.Net.Equal(amount("1699.55")), "transfers do not affect the net")
}

func TestCategoryBreakdown(t *testing.T) {
	g := &Generator{}
	names := map[uint]string{1: "Rent", 2: "Groceries"}
	txns := []models.Transaction{
		{Type: models.TransactionTypeExpense, CategoryID: 1, Amount: amount("1500")},
		{Type: models.TransactionTypeExpense, CategoryID: 2, Amount: amount("80")},
		{Type: models.TransactionTypeExpense, CategoryID: 2, Amount: amount("120")},
		{Type: models.TransactionTypeExpense, CategoryID: 9, Amount: amount("40")},
		{Type: models.TransactionTypeIncome, CategoryID: 2, Amount: amount("999")},
	}

	breakdown := g.categoryBreakdown(txns, names)
	require.Len(t, breakdown, 3)
	assert.Equal(t, "Rent", breakdown[0].CategoryName)
	assert.Equal(t, "Groceries", breakdown[1].CategoryName)
	assert.Equal(t, 2, breakdown[1].Count)
	assert.True(t, breakdown[1].Total.Equal(amount("200")))
	assert.Equal(t, "Uncategorized", breakdown[2].CategoryName)
}

func TestUpcomingWindow(t *testing.T) {
	g := &Generator{}
	end := time.Date(2025, time.June, 30, 0, 0, 0, 0, time.UTC)
	near := end.AddDate(0, 0, 7)
	far := end.AddDate(0, 0, 30)

	overdueDate := end.AddDate(0, 0, -20)

	rent := models.ScheduledTransaction{Name: "Rent", IsActive: true, NextDueDate: &near, Amount: amount("1500")}
	insurance := models.ScheduledTransaction{Name: "Insurance", IsActive: true, NextDueDate: &far, Amount: amount("200")}
	paused := models.ScheduledTransaction{Name: "Gym", IsActive: false, NextDueDate: &near, Amount: amount("30")}
	overdue := models.ScheduledTransaction{Name: "Loan", IsActive: true, NextDueDate: &overdueDate, Amount: amount("400")}

	upcoming := g.upcoming([]models.ScheduledTransaction{rent, insurance, paused, overdue}, end)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Rent", upcoming[0].Name)
}

func TestGenerateReport_RendersHTML(t *testing.T) {
	g, err := NewGenerator(nil)
	require.NoError(t, err)

	_, err = g.GenerateReport("quarterly", time.Now(), time.Now())
	assert.Error(t, err, "unknown report type is rejected")
}
