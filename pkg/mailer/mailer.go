// Package mailer delivers rendered transactional email.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sendgrid/sendgrid-go"
	"github.com/sendgrid/sendgrid-go/helpers/mail"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Message is one rendered email.
type Message struct {
	FromName string
	From     string
	To       string
	Subject  string
	HTML     string
	Text     string
}

func (m Message) validate() error {
	switch {
	case strings.TrimSpace(m.From) == "":
		return errors.New("from address is empty")
	case strings.TrimSpace(m.To) == "":
		return errors.New("to address is empty")
	case strings.TrimSpace(m.Subject) == "":
		return errors.New("subject is empty")
	}
	return nil
}

// Mailer sends a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// New returns a SendGrid mailer when an API key is configured and a LogMailer otherwise.
func New(cfg config.SendgridConfig, logg *logger.Logger) Mailer {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return NewLogMailer(logg)
	}
	return NewSendGridClient(cfg.APIKey)
}

type sendgridSender interface {
	SendWithContext(ctx context.Context, email *mail.SGMailV3) (int, string, error)
}

// SendGridClient delivers mail through the SendGrid v3 API.
type SendGridClient struct {
	apiKey string
	send   sendgridSender
}

func NewSendGridClient(apiKey string) *SendGridClient {
	return &SendGridClient{apiKey: apiKey, send: restSender{client: sendgrid.NewSendClient(apiKey)}}
}

// Send errors on transport failures and on any status >= 400.
func (c *SendGridClient) Send(ctx context.Context, msg Message) error {
	if c.apiKey == "" {
		return errors.New("sendgrid api key is empty")
	}
	if err := msg.validate(); err != nil {
		return err
	}

	text := msg.Text
	if strings.TrimSpace(text) == "" {
		text = msg.Subject
	}
	email := mail.NewSingleEmail(
		mail.NewEmail(msg.FromName, msg.From),
		msg.Subject,
		mail.NewEmail("", msg.To),
		text,
		msg.HTML,
	)

	status, body, err := c.send.SendWithContext(ctx, email)
	if err != nil {
		return fmt.Errorf("sendgrid send: %w", err)
	}
	if status >= 400 {
		return fmt.Errorf("sendgrid send failed: status=%d body=%s", status, body)
	}
	return nil
}

type restSender struct {
	client *sendgrid.Client
}

func (s restSender) SendWithContext(ctx context.Context, email *mail.SGMailV3) (int, string, error) {
	resp, err := s.client.SendWithContext(ctx, email)
	if err != nil {
		return 0, "", err
	}
	return resp.StatusCode, resp.Body, nil
}

// LogMailer writes messages to the log instead of sending them.
type LogMailer struct {
	logg *logger.Logger
}

func NewLogMailer(logg *logger.Logger) *LogMailer {
	if logg == nil {
		logg = logger.Nop()
	}
	return &LogMailer{logg: logg}
}

func (m *LogMailer) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return err
	}
	logCtx := m.logg.WithFields(ctx, map[string]any{
		"mail_to":      msg.To,
		"mail_from":    msg.From,
		"mail_subject": msg.Subject,
		"html_bytes":   len(msg.HTML),
	})
	m.logg.Info(logCtx, "email suppressed, no sendgrid api key configured")
	return nil
}
