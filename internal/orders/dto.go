package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// ItemDTO is one order line as returned by the API.
type ItemDTO struct {
	ID          uuid.UUID       `json:"id"`
	ProductID   uuid.UUID       `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	LineTotal   decimal.Decimal `json:"lineTotal"`
}

// OrderDTO is the API shape of an order.
type OrderDTO struct {
	ID              uuid.UUID             `json:"id"`
	OrderNumber     string                `json:"orderNumber"`
	CustomerName    string                `json:"customerName"`
	CustomerEmail   string                `json:"customerEmail"`
	CustomerPhone   string                `json:"customerPhone"`
	TotalAmount     decimal.Decimal       `json:"totalAmount"`
	Status          enums.OrderStatus     `json:"status"`
	PaymentStatus   enums.PaymentStatus   `json:"paymentStatus"`
	Progress        int                   `json:"progress"`
	ShippingAddress types.ShippingAddress `json:"shippingAddress"`
	Items           []ItemDTO             `json:"items"`
	CreatedAt       time.Time             `json:"createdAt"`
	UpdatedAt       time.Time             `json:"updatedAt"`
}

// NewOrderDTO converts a stored order.
func NewOrderDTO(o models.Order) OrderDTO {
	items := make([]ItemDTO, 0, len(o.Items))
	for _, item := range o.Items {
		items = append(items, ItemDTO{
			ID:          item.ID,
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			Price:       item.Price,
			LineTotal:   item.LineTotal(),
		})
	}
	return OrderDTO{
		ID:              o.ID,
		OrderNumber:     o.OrderNumber,
		CustomerName:    o.CustomerName,
		CustomerEmail:   o.CustomerEmail,
		CustomerPhone:   o.CustomerPhone,
		TotalAmount:     o.TotalAmount,
		Status:          o.Status,
		PaymentStatus:   o.PaymentStatus,
		Progress:        Progress(o.Status),
		ShippingAddress: o.ShippingAddress,
		Items:           items,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}
}

// NewOrderDTOs converts a slice of orders, never returning nil.
func NewOrderDTOs(list []models.Order) []OrderDTO {
	out := make([]OrderDTO, 0, len(list))
	for _, o := range list {
		out = append(out, NewOrderDTO(o))
	}
	return out
}

// OrderListDTO is one page of the admin console.
type OrderListDTO struct {
	Orders     []OrderDTO `json:"orders"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

// StatusCountsDTO is the admin console tally.
type StatusCountsDTO struct {
	Counts map[enums.OrderStatus]int64 `json:"counts"`
	Total  int64                       `json:"total"`
}

// SkippedItemDTO names a reorder line that was not re-added.
type SkippedItemDTO struct {
	ProductID   uuid.UUID `json:"productId"`
	ProductName string    `json:"productName"`
}

// ReorderDTO is the reorder response.
type ReorderDTO struct {
	Added   int              `json:"added"`
	Skipped []SkippedItemDTO `json:"skipped"`
	Cart    cart.View        `json:"cart"`
}

func NewReorderDTO(r ReorderResult) ReorderDTO {
	skipped := make([]SkippedItemDTO, 0, len(r.Skipped))
	for _, s := range r.Skipped {
		skipped = append(skipped, SkippedItemDTO{ProductID: s.ProductID, ProductName: s.ProductName})
	}
	return ReorderDTO{Added: r.Added, Skipped: skipped, Cart: r.Cart}
}
