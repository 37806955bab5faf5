package report

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"
	"sort"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/jordan-wright/email"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Generator struct {
	db        *gorm.DB
	templates map[string]*template.Template
}

type ReportData struct {
	Title     string
	StartTime time.Time
	EndTime   time.Time
	Summary   PeriodSummary
	Categories []CategorySummary
	Scheduled  []ScheduledSummary
	Upcoming   []UpcomingItem
}

type PeriodSummary struct {
	TotalIncome      decimal.Decimal
	TotalExpense     decimal.Decimal
	Net              decimal.Decimal
	TransactionCount int
}

type CategorySummary struct {
	CategoryName string
	Total        decimal.Decimal
	Count        int
}

type ScheduledSummary struct {
	Name   string
	Amount decimal.Decimal
	Date   time.Time
}

type UpcomingItem struct {
	Name    string
	Amount  decimal.Decimal
	DueDate time.Time
}

const summaryTemplate = `<html>
<body>
<h2>{{.Title}} ({{.StartTime.Format "2006-01-02"}} to {{.EndTime.Format "2006-01-02"}})</h2>
<h3>Summary</h3>
<table border="1" cellpadding="4">
<tr><td>Income</td><td>{{.Summary.TotalIncome.StringFixed 2}}</td></tr>
<tr><td>Expenses</td><td>{{.Summary.TotalExpense.StringFixed 2}}</td></tr>
<tr><td>Net</td><td>{{.Summary.Net.StringFixed 2}}</td></tr>
<tr><td>Transactions</td><td>{{.Summary.TransactionCount}}</td></tr>
</table>
{{if .Categories}}
<h3>Spending by Category</h3>
<table border="1" cellpadding="4">
<tr><th>Category</th><th>Total</th><th>Count</th></tr>
{{range .Categories}}<tr><td>{{.CategoryName}}</td><td>{{.Total.StringFixed 2}}</td><td>{{.Count}}</td></tr>
{{end}}</table>
{{end}}
{{if .Scheduled}}
<h3>Posted by Schedules</h3>
<table border="1" cellpadding="4">
<tr><th>Schedule</th><th>Amount</th><th>Date</th></tr>
{{range .Scheduled}}<tr><td>{{.Name}}</td><td>{{.Amount.StringFixed 2}}</td><td>{{.Date.Format "2006-01-02"}}</td></tr>
{{end}}</table>
{{end}}
{{if .Upcoming}}
<h3>Upcoming</h3>
<table border="1" cellpadding="4">
<tr><th>Schedule</th><th>Amount</th><th>Due</th></tr>
{{range .Upcoming}}<tr><td>{{.Name}}</td><td>{{.Amount.StringFixed 2}}</td><td>{{.DueDate.Format "2006-01-02"}}</td></tr>
{{end}}</table>
{{end}}
</body>
</html>`

func NewGenerator(db *gorm.DB) (*Generator, error) {
	tmpl, err := template.New("summary").Parse(summaryTemplate)
	if err != nil {
		return nil, fmt.Errorf("failed to parse report template: %v", err)
	}

	return &Generator{
		db: db,
		templates: map[string]*template.Template{
			"weekly":  tmpl,
			"monthly": tmpl,
		},
	}, nil
}

// GenerateReport builds the financial summary for the period as an
// email ready to send. The recipient list is set by the caller.
func (g *Generator) GenerateReport(reportType string, startTime, endTime time.Time) (*email.Email, error) {
	tmpl, ok := g.templates[reportType]
	if !ok {
		return nil, fmt.Errorf("unknown report type: %s", reportType)
	}

	data, err := g.collectReportData(reportType, startTime, endTime)
	if err != nil {
		return nil, fmt.Errorf("failed to collect report data: %v", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return nil, fmt.Errorf("failed to execute template: %v", err)
	}

	e := &email.Email{
		To:   []string{}, // Will be set by caller
		From: "FinTrack <noreply@fintrack.local>",
		Subject: fmt.Sprintf("FinTrack %s report (%s - %s)",
			reportType,
			startTime.Format("2006-01-02"),
			endTime.Format("2006-01-02")),
		HTML: buf.Bytes(),
	}

	return e, nil
}

func (g *Generator) collectReportData(reportType string, startTime, endTime time.Time) (*ReportData, error) {
	data := &ReportData{
		Title:     fmt.Sprintf("FinTrack %s report", reportType),
		StartTime: startTime,
		EndTime:   endTime,
	}

	var txns []models.Transaction
	if err := g.db.Where("date BETWEEN ? AND ?", startTime, endTime).
		Find(&txns).Error; err != nil {
		return nil, err
	}

	var categories []models.Category
	if err := g.db.Find(&categories).Error; err != nil {
		return nil, err
	}
	categoryNames := make(map[uint]string, len(categories))
	for _, c := range categories {
		categoryNames[c.ID] = c.Name
	}

	var schedules []models.ScheduledTransaction
	if err := g.db.Find(&schedules).Error; err != nil {
		return nil, err
	}
	scheduleNames := make(map[uint]string, len(schedules))
	for _, st := range schedules {
		scheduleNames[st.ID] = st.Name
	}

	data.Summary = g.summarize(txns)
	data.Categories = g.categoryBreakdown(txns, categoryNames)
	data.Scheduled = g.scheduledActivity(txns, scheduleNames)
	data.Upcoming = g.upcoming(schedules, endTime)

	return data, nil
}

func (g *Generator) summarize(txns []models.Transaction) PeriodSummary {
	summary := PeriodSummary{
		TotalIncome:  decimal.Zero,
		TotalExpense: decimal.Zero,
	}

	for _, t := range txns {
		summary.TransactionCount++
		switch t.Type {
		case models.TransactionTypeIncome:
			summary.TotalIncome = summary.TotalIncome.Add(t.Amount)
		case models.TransactionTypeExpense:
			summary.TotalExpense = summary.TotalExpense.Add(t.Amount)
		}
	}
	summary.Net = summary.TotalIncome.Sub(summary.TotalExpense)

	return summary
}

func (g *Generator) categoryBreakdown(txns []models.Transaction, names map[uint]string) []CategorySummary {
	byCategory := make(map[uint]*CategorySummary)

	for _, t := range txns {
		if t.Type != models.TransactionTypeExpense {
			continue
		}
		if cs, ok := byCategory[t.CategoryID]; ok {
			cs.Total = cs.Total.Add(t.Amount)
			cs.Count++
		} else {
			name := names[t.CategoryID]
			if name == "" {
				name = "Uncategorized"
			}
			byCategory[t.CategoryID] = &CategorySummary{
				CategoryName: name,
				Total:        t.Amount,
				Count:        1,
			}
		}
	}

	var result []CategorySummary
	for _, cs := range byCategory {
		result = append(result, *cs)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Total.GreaterThan(result[j].Total)
	})

	if len(result) > 10 {
		result = result[:10]
	}

	return result
}

func (g *Generator) scheduledActivity(txns []models.Transaction, names map[uint]string) []ScheduledSummary {
	var result []ScheduledSummary
	for _, t := range txns {
		if t.ScheduledID == nil {
			continue
		}
		name := names[*t.ScheduledID]
		if name == "" {
			name = fmt.Sprintf("schedule %d", *t.ScheduledID)
		}
		result = append(result, ScheduledSummary{
			Name:   name,
			Amount: t.Amount,
			Date:   t.Date,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result
}

func (g *Generator) upcoming(schedules []models.ScheduledTransaction, after time.Time) []UpcomingItem {
	horizon := after.AddDate(0, 0, 14)

	var result []UpcomingItem
	for _, st := range schedules {
		if !st.IsActive || st.NextDueDate == nil {
			continue
		}
		// Overdue items have their own notification channel; upcoming
		// covers the window after the report period only.
		if st.NextDueDate.Before(after) || st.NextDueDate.After(horizon) {
			continue
		}
		result = append(result, UpcomingItem{
			Name:    st.Name,
			Amount:  st.Amount,
			DueDate: *st.NextDueDate,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result
}

// Mailer sends generated reports over SMTP.
type Mailer struct {
	Host     string
	Port     int
	From     string
	Password string
}

func (m *Mailer) Enabled() bool { return m.Host != "" }

func (m *Mailer) Send(e *email.Email, to []string) error {
	e.To = to
	addr := fmt.Sprintf("%s:%d", m.Host, m.Port)
	return e.Send(addr, smtp.PlainAuth("", m.From, m.Password, m.Host))
}
