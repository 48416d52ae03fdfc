package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// ProductAdmin is the admin catalog service.
type ProductAdmin interface {
	List(ctx context.Context) ([]models.Product, error)
	Save(ctx context.Context, d products.Draft) (*models.Product, bool, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (products.Stats, error)
}

// CatalogRefresher reloads the shopper catalog snapshot after admin edits.
type CatalogRefresher interface {
	Refresh(ctx context.Context) error
}

type dashboardDTO struct {
	Products products.Stats         `json:"products"`
	Orders   orders.StatusCountsDTO `json:"orders"`
}

func AdminProductsList(svc ProductAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products.NewProductDTOs(list))
	}
}

func AdminProductCreate(svc ProductAdmin, cat CatalogRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var draft products.Draft
		if err := validators.DecodeJSONPayload(r, &draft); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft.ID = nil
		saveProduct(w, r, svc, cat, logg, draft)
	}
}

// AdminProductUpdate saves over the product in the path; an id in the body
// is ignored.
func AdminProductUpdate(svc ProductAdmin, cat CatalogRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var draft products.Draft
		if err := validators.DecodeJSONPayload(r, &draft); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		draft.ID = &id
		saveProduct(w, r, svc, cat, logg, draft)
	}
}

func AdminProductDelete(svc ProductAdmin, cat CatalogRefresher, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		refreshCatalog(r.Context(), cat, logg)
		responses.WriteNoContent(w)
	}
}

func AdminDashboard(svc ProductAdmin, ordersSvc AdminOrderService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := svc.Stats(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		counts, err := ordersSvc.StatusCounts(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dashboardDTO{
			Products: stats,
			Orders:   orders.StatusCountsDTO{Counts: counts.ByStatus, Total: counts.Total},
		})
	}
}

func saveProduct(w http.ResponseWriter, r *http.Request, svc ProductAdmin, cat CatalogRefresher, logg *logger.Logger, draft products.Draft) {
	product, created, err := svc.Save(r.Context(), draft)
	if err != nil {
		responses.WriteError(r.Context(), logg, w, err)
		return
	}
	refreshCatalog(r.Context(), cat, logg)
	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	responses.WriteSuccessStatus(w, status, products.NewProductDTO(*product))
}

// refreshCatalog never fails the mutation that triggered it.
func refreshCatalog(ctx context.Context, cat CatalogRefresher, logg *logger.Logger) {
	if cat == nil {
		return
	}
	if err := cat.Refresh(ctx); err != nil && logg != nil {
		logg.Error(ctx, "catalog.refresh_failed", err)
	}
}
