package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

func TestEmitWritesEnvelope(t *testing.T) {
	conn := dbtest.Open(t)
	svc := NewService(NewRepository(conn), logger.Nop())
	aggregateID := uuid.New()

	var eventID string
	err := conn.Transaction(func(tx *gorm.DB) error {
		var err error
		eventID, err = svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   aggregateID,
			Actor:         &ActorRef{Role: "device", DeviceID: "dev-1"},
			Data:          map[string]string{"kind": "order_confirmation"},
		})
		return err
	})
	require.NoError(t, err)
	require.NotEmpty(t, eventID)

	var rows []models.OutboxEvent
	require.NoError(t, conn.Find(&rows).Error)
	require.Len(t, rows, 1)
	require.Equal(t, aggregateID, rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	require.Equal(t, eventID, envelope.EventID)
	require.Equal(t, CurrentVersion, envelope.Version)
	require.Equal(t, "dev-1", envelope.Actor.DeviceID)
	require.JSONEq(t, `{"kind":"order_confirmation"}`, string(envelope.Data))
}

func TestEmitRejectsUnknownTypesAndMissingTx(t *testing.T) {
	svc := NewService(NewRepository(nil), logger.Nop())

	_, err := svc.Emit(context.Background(), nil, DomainEvent{})
	require.Error(t, err)

	conn := dbtest.Open(t)
	_, err = svc.Emit(context.Background(), conn, DomainEvent{
		EventType:     enums.OutboxEventType("nope"),
		AggregateType: enums.AggregateOrder,
	})
	require.Error(t, err)
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	conn := dbtest.Open(t)
	repo := NewRepository(conn)
	dlq := NewDLQRepository(conn)

	ids := make([]uuid.UUID, 3)
	for i := range ids {
		row := models.OutboxEvent{
			ID:            uuid.New(),
			EventType:     enums.EventNotificationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   uuid.New(),
			Payload:       json.RawMessage(`{}`),
		}
		ids[i] = row.ID
		require.NoError(t, repo.Insert(conn, row))
	}

	require.NoError(t, repo.MarkPublishedTx(conn, ids[0]))
	require.NoError(t, repo.MarkFailedTx(conn, ids[1], errors.New(strings.Repeat("x", 2000))))
	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       ids[2],
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonNonRetryable,
	}))

	rows, err := repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, ids[1], rows[0].ID)
	require.Equal(t, 1, rows[0].AttemptCount)
	require.Len(t, *rows[0].LastError, maxLastErrorLen)

	require.NoError(t, repo.MarkTerminalTx(conn, ids[1], errors.New("gave up"), 5))
	rows, err = repo.FetchUnpublishedForPublish(conn, 10, 5)
	require.NoError(t, err)
	require.Empty(t, rows)

	pending, err := repo.CountPending(nil)
	require.NoError(t, err)
	require.EqualValues(t, 2, pending)

	found, err := dlq.FindByEventID(context.Background(), ids[2])
	require.NoError(t, err)
	require.NotNil(t, found)
	missing, err := dlq.FindByEventID(context.Background(), uuid.New())
	require.NoError(t, err)
	require.Nil(t, missing)
}

func TestDLQTruncatesErrorMessage(t *testing.T) {
	conn := dbtest.Open(t)
	dlq := NewDLQRepository(conn)
	msg := strings.Repeat("e", 5000)

	require.NoError(t, dlq.InsertTx(conn, models.OutboxDLQ{
		EventID:       uuid.New(),
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateDonation,
		AggregateID:   uuid.New(),
		Payload:       json.RawMessage(`{}`),
		ErrorReason:   enums.OutboxDLQReasonMaxAttempts,
		ErrorMessage:  &msg,
	}))

	rows, err := dlq.List(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Len(t, *rows[0].ErrorMessage, maxDLQErrorLen)
}
