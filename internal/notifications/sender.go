package notifications

import (
	"context"
	"errors"
	"strings"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/mailer"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
)

// Sender renders an intent and hands it to the mailer.
type Sender struct {
	renderer *Renderer
	mail     mailer.Mailer
	from     string
	fromName string
	metrics  *metrics.StorefrontMetrics
	logg     *logger.Logger
}

type SenderParams struct {
	Renderer *Renderer
	Mailer   mailer.Mailer
	Sendgrid config.SendgridConfig
	Metrics  *metrics.StorefrontMetrics
	Logger   *logger.Logger
}

func NewSender(params SenderParams) (*Sender, error) {
	if params.Renderer == nil {
		return nil, errors.New("renderer required")
	}
	if params.Mailer == nil {
		return nil, errors.New("mailer required")
	}
	if strings.TrimSpace(params.Sendgrid.DefaultFrom) == "" {
		return nil, errors.New("from address required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Sender{
		renderer: params.Renderer,
		mail:     params.Mailer,
		from:     params.Sendgrid.DefaultFrom,
		fromName: params.Sendgrid.FromName,
		metrics:  params.Metrics,
		logg:     logg,
	}, nil
}

// Send renders and delivers one intent. Failures come back as
// CodeNotification and are counted by kind.
func (s *Sender) Send(ctx context.Context, intent Intent) error {
	kind := string(intent.Kind)
	logCtx := s.logg.WithFields(ctx, intentFields(intent))

	if strings.TrimSpace(intent.To) == "" {
		s.metrics.IncNotificationFailed(kind)
		return pkgerrors.New(pkgerrors.CodeNotification, "notification recipient missing")
	}

	rendered, err := s.renderer.Render(intent)
	if err != nil {
		s.metrics.IncNotificationFailed(kind)
		return pkgerrors.Wrap(pkgerrors.CodeNotification, err, "render notification")
	}

	msg := mailer.Message{
		FromName: s.fromName,
		From:     s.from,
		To:       intent.To,
		Subject:  rendered.Subject,
		HTML:     rendered.HTML,
		Text:     rendered.Text,
	}
	if err := s.mail.Send(ctx, msg); err != nil {
		s.metrics.IncNotificationFailed(kind)
		return pkgerrors.Wrap(pkgerrors.CodeNotification, err, "send notification")
	}

	s.metrics.IncNotificationSent(kind)
	s.logg.Info(logCtx, "notification sent")
	return nil
}

func intentFields(intent Intent) map[string]any {
	fields := map[string]any{"notification_kind": string(intent.Kind)}
	if intent.OrderID != nil {
		fields["order_id"] = intent.OrderID.String()
	}
	if intent.OrderNumber != "" {
		fields["order_number"] = intent.OrderNumber
	}
	if intent.DonationID != nil {
		fields["donation_id"] = intent.DonationID.String()
	}
	return fields
}
