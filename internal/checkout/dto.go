package checkout

import (
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

// SummaryDTO renders the price breakdown as two-decimal strings.
type SummaryDTO struct {
	Subtotal   string `json:"subtotal"`
	Discount   string `json:"discount"`
	Tax        string `json:"tax"`
	Shipping   string `json:"shipping"`
	GrandTotal string `json:"grandTotal"`
}

func NewSummaryDTO(s pricing.Summary) SummaryDTO {
	return SummaryDTO{
		Subtotal:   pricing.Format(s.Subtotal),
		Discount:   pricing.Format(s.Discount),
		Tax:        pricing.Format(s.Tax),
		Shipping:   pricing.Format(s.Shipping),
		GrandTotal: pricing.Format(s.GrandTotal),
	}
}

// ResultDTO is the checkout response body.
type ResultDTO struct {
	Order   orders.OrderDTO `json:"order"`
	Summary SummaryDTO      `json:"summary"`
}

func NewResultDTO(r *Result) ResultDTO {
	return ResultDTO{Order: orders.NewOrderDTO(r.Order), Summary: NewSummaryDTO(r.Summary)}
}
