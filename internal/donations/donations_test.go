package donations

import (
	"context"
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type recordingEmitter struct {
	intents []notifications.Intent
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, intent notifications.Intent) error {
	e.intents = append(e.intents, intent)
	return e.err
}

type failingRepo struct{}

func (failingRepo) Create(context.Context, *models.Donation) error {
	return errors.New("disk full")
}

func TestCreateStoresAndEmitsReceipt(t *testing.T) {
	conn := dbtest.Open(t)
	emitter := &recordingEmitter{}
	svc, err := NewService(NewRepository(conn), emitter, nil, logger.Nop())
	require.NoError(t, err)

	msg := "  keep going  "
	donation, err := svc.Create(context.Background(), Input{
		DonorName:  " Grace ",
		DonorEmail: "grace@example.com",
		Amount:     decimal.RequireFromString("25.50"),
		Message:    &msg,
	})
	require.NoError(t, err)
	require.Equal(t, "Grace", donation.DonorName)
	require.Equal(t, "keep going", *donation.Message)
	require.Equal(t, enums.DonationStatusCompleted, donation.Status)

	var stored models.Donation
	require.NoError(t, conn.First(&stored, "id = ?", donation.ID).Error)
	require.True(t, stored.Amount.Equal(decimal.RequireFromString("25.5")))

	require.Len(t, emitter.intents, 1)
	require.Equal(t, enums.NotificationDonationReceipt, emitter.intents[0].Kind)
	require.Equal(t, donation.ID, *emitter.intents[0].DonationID)
}

func TestCreateValidation(t *testing.T) {
	svc, err := NewService(failingRepo{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{DonorEmail: "nope", Amount: decimal.RequireFromString("0.99")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	require.Len(t, details, 3)
	require.Contains(t, details, "donorName")
	require.Contains(t, details, "donorEmail")
	require.Contains(t, details, "amount")
}

func TestCreateMinimumIsInclusive(t *testing.T) {
	conn := dbtest.Open(t)
	svc, err := NewService(NewRepository(conn), nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{DonorName: "Al", DonorEmail: "al@example.com", Amount: decimal.RequireFromString("1.00")})
	require.NoError(t, err)
}

func TestCreateRejectsAmountBeyondMoneyColumn(t *testing.T) {
	svc, err := NewService(failingRepo{}, nil, nil, nil)
	require.NoError(t, err)

	_, err = svc.Create(context.Background(), Input{DonorName: "Al", DonorEmail: "al@example.com", Amount: decimal.RequireFromString("100000000.00")})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	details := pkgerrors.As(err).Details().(map[string]string)
	require.Equal(t, "must be at most 99999999.99", details["amount"])

	conn := dbtest.Open(t)
	svc, err = NewService(NewRepository(conn), nil, nil, nil)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Input{DonorName: "Al", DonorEmail: "al@example.com", Amount: decimal.RequireFromString("99999999.99")})
	require.NoError(t, err)
}

func TestCreateFailuresAndEmitErrors(t *testing.T) {
	svc, err := NewService(failingRepo{}, nil, nil, nil)
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Input{DonorName: "Al", DonorEmail: "al@example.com", Amount: decimal.NewFromInt(5)})
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))

	conn := dbtest.Open(t)
	emitter := &recordingEmitter{err: errors.New("queue full")}
	svc, err = NewService(NewRepository(conn), emitter, nil, logger.Nop())
	require.NoError(t, err)
	_, err = svc.Create(context.Background(), Input{DonorName: "Al", DonorEmail: "al@example.com", Amount: decimal.NewFromInt(5)})
	require.NoError(t, err)
	require.Len(t, emitter.intents, 1)
}
