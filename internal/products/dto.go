package products

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// ProductDTO is the API shape of a product. EffectivePrice is derived from
// price and discount on every read.
type ProductDTO struct {
	ID              uuid.UUID       `json:"id"`
	Name            string          `json:"name"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discountPercent"`
	EffectivePrice  decimal.Decimal `json:"effectivePrice"`
	OnSale          bool            `json:"onSale"`
	Description     *string         `json:"description,omitempty"`
	Image           *string         `json:"image,omitempty"`
	Category        *string         `json:"category,omitempty"`
	Popular         bool            `json:"popular"`
	Stock           *int            `json:"stock,omitempty"`
	CreatedAt       time.Time       `json:"createdAt"`
	UpdatedAt       time.Time       `json:"updatedAt"`
}

func NewProductDTO(p models.Product) ProductDTO {
	discount := pricing.ClampDiscount(p.DiscountPercent)
	return ProductDTO{
		ID:              p.ID,
		Name:            p.Name,
		Price:           p.Price,
		DiscountPercent: discount,
		EffectivePrice:  pricing.EffectivePrice(p.Price, discount),
		OnSale:          discount > 0,
		Description:     p.Description,
		Image:           p.Image,
		Category:        p.Category,
		Popular:         p.Popular,
		Stock:           p.Stock,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

// NewProductDTOs converts a slice, never returning nil.
func NewProductDTOs(list []models.Product) []ProductDTO {
	out := make([]ProductDTO, 0, len(list))
	for _, p := range list {
		out = append(out, NewProductDTO(p))
	}
	return out
}
