package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/donations"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type DonationService interface {
	Create(ctx context.Context, in donations.Input) (*models.Donation, error)
}

type donationDTO struct {
	ID         uuid.UUID            `json:"id"`
	DonorName  string               `json:"donorName"`
	DonorEmail string               `json:"donorEmail"`
	Amount     decimal.Decimal      `json:"amount"`
	Message    *string              `json:"message,omitempty"`
	Status     enums.DonationStatus `json:"status"`
	CreatedAt  time.Time            `json:"createdAt"`
}

func DonationCreate(svc DonationService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body donations.Input
		if err := validators.DecodeJSONPayload(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		d, err := svc.Create(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, donationDTO{
			ID:         d.ID,
			DonorName:  d.DonorName,
			DonorEmail: d.DonorEmail,
			Amount:     d.Amount,
			Message:    d.Message,
			Status:     d.Status,
			CreatedAt:  d.CreatedAt,
		})
	}
}
