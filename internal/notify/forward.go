package notify

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/fintrack/internal/models"
	"github.com/slack-go/slack"
	"gopkg.in/gomail.v2"
)

// ForwardConfig holds the delivery channels for notification fan-out.
// Empty settings disable the corresponding channel.
type ForwardConfig struct {
	SlackToken     string
	SlackChannel   string
	SMTPHost       string
	SMTPPort       int
	EmailFrom      string
	EmailPassword  string
	EmailReceivers []string
}

// Forwarder pushes created notification records out through Slack and
// email. Forwarding is best-effort: the notification record is the
// source of truth and a delivery failure never fails the operation
// that created it.
type Forwarder struct {
	slackClient *slack.Client
	emailDialer *gomail.Dialer
	config      *ForwardConfig
}

func NewForwarder(config *ForwardConfig) *Forwarder {
	f := &Forwarder{config: config}
	if config.SlackToken != "" {
		f.slackClient = slack.New(config.SlackToken)
	}
	if config.SMTPHost != "" {
		f.emailDialer = gomail.NewDialer(config.SMTPHost, config.SMTPPort, config.EmailFrom, config.EmailPassword)
	}
	return f
}

// Enabled reports whether any delivery channel is configured.
func (f *Forwarder) Enabled() bool {
	return f.slackClient != nil || f.emailDialer != nil
}

// Forward sends the notification through every configured channel.
func (f *Forwarder) Forward(n *models.Notification) error {
	if f.slackClient != nil {
		if err := f.sendSlack(n); err != nil {
			return fmt.Errorf("failed to send slack notification: %v", err)
		}
	}
	if f.emailDialer != nil {
		if err := f.sendEmail(n); err != nil {
			return fmt.Errorf("failed to send email notification: %v", err)
		}
	}
	return nil
}

func (f *Forwarder) sendSlack(n *models.Notification) error {
	attachment := slack.Attachment{
		Color: notificationColor(n.Kind),
		Fields: []slack.AttachmentField{
			{
				Title: "Kind",
				Value: string(n.Kind),
				Short: true,
			},
			{
				Title: "Due",
				Value: n.ScheduledFor.Format("2006-01-02"),
				Short: true,
			},
			{
				Title: "Details",
				Value: n.Message,
			},
		},
		Footer: "fintrack",
		Ts:     json.Number(strconv.FormatInt(time.Now().Unix(), 10)),
	}

	_, _, err := f.slackClient.PostMessage(
		f.config.SlackChannel,
		slack.MsgOptionAttachments(attachment),
	)
	return err
}

func (f *Forwarder) sendEmail(n *models.Notification) error {
	m := gomail.NewMessage()
	m.SetHeader("From", f.config.EmailFrom)
	m.SetHeader("To", f.config.EmailReceivers...)
	m.SetHeader("Subject", "fintrack: "+string(n.Kind))

	body := fmt.Sprintf(`
		Kind: %s
		Due: %s
		Message: %s
		Time: %s
	`, n.Kind, n.ScheduledFor.Format("2006-01-02"), n.Message,
		time.Now().Format(time.RFC3339))

	m.SetBody("text/plain", body)

	return f.emailDialer.DialAndSend(m)
}

func notificationColor(kind models.NotificationKind) string {
	switch kind {
	case models.NotificationError, models.NotificationOverdue:
		return "#ff0000"
	case models.NotificationApprovalRequest:
		return "#ffcc00"
	default:
		return "#36a64f"
	}
}
