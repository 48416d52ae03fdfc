package notifications

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/outbox"
)

// Emitter accepts an intent for asynchronous delivery.
type Emitter interface {
	Emit(ctx context.Context, intent Intent) error
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxWriter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) (string, error)
}

// OutboxEmitter records intents as notification_requested outbox rows. Each
// call runs in its own transaction after the caller's write has committed.
type OutboxEmitter struct {
	db     txRunner
	outbox outboxWriter
}

func NewOutboxEmitter(db txRunner, writer outboxWriter) (*OutboxEmitter, error) {
	if db == nil {
		return nil, errors.New("db required")
	}
	if writer == nil {
		return nil, errors.New("outbox service required")
	}
	return &OutboxEmitter{db: db, outbox: writer}, nil
}

func (e *OutboxEmitter) Emit(ctx context.Context, intent Intent) error {
	aggregate, err := aggregateFor(intent)
	if err != nil {
		return err
	}
	var aggregateID uuid.UUID
	if aggregate == enums.AggregateDonation {
		aggregateID = *intent.DonationID
	} else {
		aggregateID = *intent.OrderID
	}

	actor := &outbox.ActorRef{Role: "system"}
	if deviceID := deviceFromContext(ctx); deviceID != "" {
		actor = &outbox.ActorRef{Role: "device", DeviceID: deviceID}
	}

	return e.db.WithTx(ctx, func(tx *gorm.DB) error {
		_, err := e.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: aggregate,
			AggregateID:   aggregateID,
			Actor:         actor,
			Data:          intent,
		})
		if err != nil {
			return fmt.Errorf("queue %s notification: %w", intent.Kind, err)
		}
		return nil
	})
}

type deviceKey struct{}

// WithDevice tags ctx with the device that triggered an intent. The outbox
// emitter records it as the event actor.
func WithDevice(ctx context.Context, deviceID string) context.Context {
	return context.WithValue(ctx, deviceKey{}, deviceID)
}

func deviceFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(deviceKey{}).(string)
	return id
}

// EmitBestEffort hands an intent to the emitter and swallows any failure
// after logging and counting it. Notification problems never fail the
// operation that produced them.
func EmitBestEffort(ctx context.Context, emitter Emitter, intent Intent, m *metrics.StorefrontMetrics, logg *logger.Logger) {
	if emitter == nil {
		return
	}
	if err := emitter.Emit(ctx, intent); err != nil {
		m.IncEmitFailure(string(intent.Kind))
		if logg == nil {
			return
		}
		logCtx := logg.WithFields(ctx, intentFields(intent))
		logg.Error(logCtx, "notification emit failed", err)
	}
}
