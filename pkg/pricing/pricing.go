// Package pricing holds the storefront money rules. Arithmetic is exact
// decimal; a discounted unit price is rounded half-up to whole cents so every
// stored amount fits NUMERIC(10,2) and line sums match the order total.
package pricing

import (
	"github.com/shopspring/decimal"
)

const (
	// TaxPercent is the flat display tax applied to the discounted subtotal.
	TaxPercent = 8
	// MaxDiscountPercent bounds a product discount.
	MaxDiscountPercent = 100
	// CentPlaces is the precision of every stored amount.
	CentPlaces = 2
)

var (
	hundred = decimal.NewFromInt(100)
	// Shipping is always free.
	Shipping = decimal.Zero
	// MaxAmount is the largest value a NUMERIC(10,2) money column holds.
	MaxAmount = decimal.RequireFromString("99999999.99")
)

// EffectivePrice returns price × (100 − discount) / 100 rounded half-up to
// cents. Discounts outside 0..100 are clamped.
func EffectivePrice(price decimal.Decimal, discountPercent int) decimal.Decimal {
	d := ClampDiscount(discountPercent)
	if d == 0 {
		return price
	}
	return price.Mul(decimal.NewFromInt(int64(MaxDiscountPercent - d))).Div(hundred).Round(CentPlaces)
}

// ClampDiscount bounds a discount to 0..100.
func ClampDiscount(discountPercent int) int {
	switch {
	case discountPercent < 0:
		return 0
	case discountPercent > MaxDiscountPercent:
		return MaxDiscountPercent
	default:
		return discountPercent
	}
}

// LineTotal multiplies a unit price by a quantity.
func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// Tax returns the flat tax on an already discounted amount, in cents.
func Tax(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(decimal.NewFromInt(TaxPercent)).Div(hundred).Round(CentPlaces)
}

// Format renders a value with two decimals.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(2)
}

// Summary is the checkout price breakdown shown to the shopper.
type Summary struct {
	Subtotal   decimal.Decimal
	Discount   decimal.Decimal
	Tax        decimal.Decimal
	Shipping   decimal.Decimal
	GrandTotal decimal.Decimal
}

// Summarize builds a summary from the undiscounted subtotal and discounted total.
func Summarize(subtotal, total decimal.Decimal) Summary {
	tax := Tax(total)
	return Summary{
		Subtotal:   subtotal,
		Discount:   subtotal.Sub(total),
		Tax:        tax,
		Shipping:   Shipping,
		GrandTotal: total.Add(tax).Add(Shipping),
	}
}
