package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/api/responses"
	"github.com/angelmondragon/storefront-backend/api/validators"
	"github.com/angelmondragon/storefront-backend/internal/catalog"
	"github.com/angelmondragon/storefront-backend/internal/products"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// CatalogReader is the read side of the in-memory catalog snapshot.
type CatalogReader interface {
	Search(params catalog.Params) []models.Product
	Suggest(query string, limit int) []models.Product
	Get(id uuid.UUID) (models.Product, bool)
	Categories() []string
}

// ProductsList searches the catalog. Filters are AND-combined and unknown
// sort values fall back to relevance.
func ProductsList(cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := searchParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, products.NewProductDTOs(cat.Search(params)))
	}
}

func ProductsSuggest(cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, err := validators.ParseQueryInt(r, "limit", catalog.MaxSuggestions, 1, 50)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := validators.SanitizeString(r.URL.Query().Get("q"), 200)
		responses.WriteSuccess(w, products.NewProductDTOs(cat.Suggest(query, limit)))
	}
}

func ProductGet(cat CatalogReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := validators.ParseUUIDParam(r, "productId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		product, ok := cat.Get(id)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "product not found"))
			return
		}
		responses.WriteSuccess(w, products.NewProductDTO(product))
	}
}

func Categories(cat CatalogReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, cat.Categories())
	}
}

func searchParams(r *http.Request) (catalog.Params, error) {
	minPrice, err := validators.ParseQueryDecimal(r, "min_price")
	if err != nil {
		return catalog.Params{}, err
	}
	maxPrice, err := validators.ParseQueryDecimal(r, "max_price")
	if err != nil {
		return catalog.Params{}, err
	}
	minDiscount, err := validators.ParseQueryInt(r, "min_discount", 0, 0, 100)
	if err != nil {
		return catalog.Params{}, err
	}
	return catalog.Params{
		Query:       validators.SanitizeString(r.URL.Query().Get("q"), 200),
		Categories:  validators.ParseQueryList(r, "category"),
		MinPrice:    minPrice,
		MaxPrice:    maxPrice,
		MinDiscount: minDiscount,
		Sort:        catalog.ParseSort(r.URL.Query().Get("sort")),
	}, nil
}
