package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/middleware"
	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CartRegistry hands out the per-device cart stores.
type CartRegistry interface {
	For(ctx context.Context, deviceID string) (*cart.Store, error)
}

// ProductLookup resolves a product from the catalog snapshot.
type ProductLookup interface {
	Get(id uuid.UUID) (models.Product, bool)
}

type addItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  *int      `json:"quantity,omitempty" validate:"omitempty,min=1"`
}

type updateItemRequest struct {
	Quantity *int `json:"quantity" validate:"required"`
}

type itemStatus struct {
	InCart   bool `json:"inCart"`
	Quantity int  `json:"quantity"`
}

func CartGet(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := deviceCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, store.View())
	}
}

// CartAddItem snapshots the catalog product into the cart.
func CartAddItem(carts CartRegistry, products ProductLookup, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := deviceCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body addItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, ok := products.Get(body.ProductID)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		quantity := 1
		if body.Quantity != nil {
			quantity = *body.Quantity
		}
		store.Add(r.Context(), product, quantity)
		responses.WriteSuccess(w, store.View())
	}
}

// CartUpdateItem sets the line quantity. Zero or less removes the line.
func CartUpdateItem(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, productID, err := cartLine(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body updateItemRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store.UpdateQuantity(r.Context(), productID, *body.Quantity)
		responses.WriteSuccess(w, store.View())
	}
}

func CartIncrement(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return cartLineAction(carts, logg, func(ctx context.Context, s *cart.Store, id uuid.UUID) { s.Increment(ctx, id) })
}

func CartDecrement(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return cartLineAction(carts, logg, func(ctx context.Context, s *cart.Store, id uuid.UUID) { s.Decrement(ctx, id) })
}

func CartRemoveItem(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return cartLineAction(carts, logg, func(ctx context.Context, s *cart.Store, id uuid.UUID) { s.Remove(ctx, id) })
}

func CartClear(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, err := deviceCart(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		store.Clear(r.Context())
		responses.WriteSuccess(w, store.View())
	}
}

// CartItemStatus answers whether a product is in the cart and how many.
func CartItemStatus(carts CartRegistry, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, productID, err := cartLine(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, itemStatus{InCart: store.Contains(productID), Quantity: store.Quantity(productID)})
	}
}

func cartLineAction(carts CartRegistry, logg *logger.Logger, apply func(context.Context, *cart.Store, uuid.UUID)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		store, productID, err := cartLine(r, carts)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		apply(r.Context(), store, productID)
		responses.WriteSuccess(w, store.View())
	}
}

func cartLine(r *http.Request, carts CartRegistry) (*cart.Store, uuid.UUID, error) {
	productID, err := validators.ParseUUIDParam(r, "productId")
	if err != nil {
		return nil, uuid.Nil, err
	}
	store, err := deviceCart(r, carts)
	if err != nil {
		return nil, uuid.Nil, err
	}
	return store, productID, nil
}

func deviceCart(r *http.Request, carts CartRegistry) (*cart.Store, error) {
	if carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart unavailable")
	}
	store, err := carts.For(r.Context(), middleware.DeviceIDFromContext(r.Context()))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "device id required")
	}
	return store, nil
}
