package notifications

import (
	"context"
	"encoding/json"
	"errors"

	pubsub "cloud.google.com/go/pubsub/v2"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ConsumerName scopes idempotency keys for the notification worker.
const ConsumerName = "notification-worker"

type receiver interface {
	Receive(ctx context.Context, f func(context.Context, *pubsub.Message)) error
}

type deduper interface {
	CheckAndMarkProcessed(ctx context.Context, consumer, eventID string) (bool, error)
	Release(ctx context.Context, consumer, eventID string) error
}

type payloadDecoder interface {
	Decode(eventType enums.OutboxEventType, version int, payload json.RawMessage) (any, error)
}

// Consumer reads notification_requested events from Pub/Sub and sends them.
type Consumer struct {
	subscription receiver
	decoders     payloadDecoder
	idempotency  deduper
	sender       intentSender
	logg         *logger.Logger
}

type ConsumerParams struct {
	Subscription receiver
	Decoders     payloadDecoder
	Idempotency  deduper
	Sender       intentSender
	Logger       *logger.Logger
}

func NewConsumer(params ConsumerParams) (*Consumer, error) {
	if params.Subscription == nil {
		return nil, errors.New("notification subscription required")
	}
	if params.Decoders == nil {
		return nil, errors.New("payload decoders required")
	}
	if params.Idempotency == nil {
		return nil, errors.New("idempotency manager required")
	}
	if params.Sender == nil {
		return nil, errors.New("sender required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	return &Consumer{
		subscription: params.Subscription,
		decoders:     params.Decoders,
		idempotency:  params.Idempotency,
		sender:       params.Sender,
		logg:         params.Logger,
	}, nil
}

// Run receives messages until ctx is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	return c.subscription.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		result := c.process(ctx, msg)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	})
}

type processResult struct {
	ack  bool
	nack bool
}

func (c *Consumer) process(ctx context.Context, msg *pubsub.Message) processResult {
	eventType := msg.Attributes["event_type"]
	logCtx := c.logg.WithFields(ctx, map[string]any{
		"message_id": msg.ID,
		"event_type": eventType,
	})

	if eventType != string(enums.EventNotificationRequested) {
		c.logg.Info(logCtx, "skipping non-notification event")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		c.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}
	if envelope.EventID == "" {
		c.logg.Error(logCtx, "envelope missing event id", errors.New("empty event id"))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithField(logCtx, "event_id", envelope.EventID)

	decoded, err := c.decoders.Decode(enums.EventNotificationRequested, envelope.Version, envelope.Data)
	if err != nil {
		c.logg.Error(logCtx, "failed to decode notification payload", err)
		return processResult{ack: true}
	}
	intent, ok := decoded.(*payloads.NotificationRequestedEvent)
	if !ok || intent == nil {
		c.logg.Error(logCtx, "unexpected payload type", errors.New("decoder returned unexpected type"))
		return processResult{ack: true}
	}
	logCtx = c.logg.WithFields(logCtx, intentFields(*intent))

	already, err := c.idempotency.CheckAndMarkProcessed(ctx, ConsumerName, envelope.EventID)
	if err != nil {
		c.logg.Error(logCtx, "idempotency check failed", err)
		return processResult{nack: true}
	}
	if already {
		c.logg.Info(logCtx, "event already processed")
		return processResult{ack: true}
	}

	if err := c.sender.Send(logCtx, *intent); err != nil {
		c.logg.Error(logCtx, "notification send failed", err)
		if releaseErr := c.idempotency.Release(ctx, ConsumerName, envelope.EventID); releaseErr != nil {
			c.logg.Error(logCtx, "idempotency release failed", releaseErr)
		}
		return processResult{nack: true}
	}
	return processResult{ack: true}
}
