// Package donations records one-off donations and sends the receipt.
package donations

import (
	"context"
	"errors"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/datastore"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

const table = "donations"

// MinimumAmount is the smallest accepted donation.
var MinimumAmount = decimal.RequireFromString("1.00")

// Repository persists donations.
type Repository struct {
	store *datastore.Store
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{store: datastore.New(db)}
}

func (r *Repository) Create(ctx context.Context, d *models.Donation) error {
	return r.store.Insert(ctx, table, d)
}

type repository interface {
	Create(ctx context.Context, d *models.Donation) error
}

// Input is a donation form submission.
type Input struct {
	DonorName  string          `json:"donorName" validate:"trimmed_required,max=200"`
	DonorEmail string          `json:"donorEmail" validate:"loose_email"`
	Amount     decimal.Decimal `json:"amount"`
	Message    *string         `json:"message,omitempty" validate:"omitempty,max=1000"`
}

// Validate reports every failing field at once.
func (in Input) Validate() error {
	fields := validation.FieldErrors{}
	if err := validation.Collect(in, fields); err != nil {
		return err
	}
	if in.Amount.LessThan(MinimumAmount) {
		fields.Add("amount", "must be at least "+MinimumAmount.StringFixed(2))
	}
	if in.Amount.GreaterThan(pricing.MaxAmount) {
		fields.Add("amount", "must be at most "+pricing.MaxAmount.StringFixed(pricing.CentPlaces))
	}
	return fields.Err("validation failed")
}

type Service struct {
	repo    repository
	emitter notifications.Emitter
	metrics *metrics.StorefrontMetrics
	logg    *logger.Logger
}

func NewService(repo repository, emitter notifications.Emitter, m *metrics.StorefrontMetrics, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, errors.New("donations repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, emitter: emitter, metrics: m, logg: logg}, nil
}

// Create stores a completed donation and queues the receipt email. A failed
// receipt never fails the donation.
func (s *Service) Create(ctx context.Context, in Input) (*models.Donation, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	donation := &models.Donation{
		DonorName:  strings.TrimSpace(in.DonorName),
		DonorEmail: strings.TrimSpace(in.DonorEmail),
		Amount:     in.Amount,
		Status:     enums.DonationStatusCompleted,
	}
	if in.Message != nil {
		if msg := strings.TrimSpace(*in.Message); msg != "" {
			donation.Message = &msg
		}
	}
	if err := s.repo.Create(ctx, donation); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "could not record donation, please try again")
	}

	logCtx := s.logg.WithField(ctx, "donation_id", donation.ID.String())
	s.logg.Info(logCtx, "donation recorded")
	notifications.EmitBestEffort(logCtx, s.emitter, notifications.DonationReceipt(*donation), s.metrics, s.logg)
	return donation, nil
}
