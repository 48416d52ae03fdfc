package cart

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// Line is one product in a cart. Price and discount are snapshotted when the
// product is first added.
type Line struct {
	ProductID       uuid.UUID       `json:"productId"`
	Name            string          `json:"name"`
	UnitPrice       decimal.Decimal `json:"unitPrice"`
	DiscountPercent int             `json:"discountPercent"`
	Quantity        int             `json:"quantity"`
	Image           *string         `json:"image,omitempty"`
	Category        *string         `json:"category,omitempty"`
}

func lineFromProduct(p models.Product, quantity int) Line {
	return Line{
		ProductID:       p.ID,
		Name:            p.Name,
		UnitPrice:       p.Price,
		DiscountPercent: pricing.ClampDiscount(p.DiscountPercent),
		Quantity:        quantity,
		Image:           p.Image,
		Category:        p.Category,
	}
}

// EffectivePrice is the unit price after the line discount.
func (l Line) EffectivePrice() decimal.Decimal {
	return pricing.EffectivePrice(l.UnitPrice, l.DiscountPercent)
}

// Subtotal is the undiscounted line amount.
func (l Line) Subtotal() decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

// Total is the discounted line amount.
func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.EffectivePrice(), l.Quantity)
}

// Totals are derived on every read and never stored.
type Totals struct {
	ItemCount int             `json:"itemCount"`
	Subtotal  decimal.Decimal `json:"subtotal"`
	Total     decimal.Decimal `json:"total"`
	Discount  decimal.Decimal `json:"discount"`
}

func computeTotals(lines []Line) Totals {
	t := Totals{Subtotal: decimal.Zero, Total: decimal.Zero}
	for _, l := range lines {
		t.ItemCount += l.Quantity
		t.Subtotal = t.Subtotal.Add(l.Subtotal())
		t.Total = t.Total.Add(l.Total())
	}
	t.Discount = t.Subtotal.Sub(t.Total)
	return t
}

// Summary returns the checkout price breakdown for the totals.
func (t Totals) Summary() pricing.Summary {
	return pricing.Summarize(t.Subtotal, t.Total)
}
