package payloads

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/types"
)

// NotificationItem is one order line as shown in an email.
type NotificationItem struct {
	Name     string          `json:"name"`
	Quantity int             `json:"quantity"`
	Price    decimal.Decimal `json:"price"`
}

// NotificationRequestedEvent asks the notification worker to send one email.
type NotificationRequestedEvent struct {
	Kind              enums.NotificationKind `json:"kind"`
	To                string                 `json:"to"`
	OrderID           *uuid.UUID             `json:"order_id,omitempty"`
	DonationID        *uuid.UUID             `json:"donation_id,omitempty"`
	OrderNumber       string                 `json:"order_number,omitempty"`
	CustomerName      string                 `json:"customer_name"`
	Total             decimal.Decimal        `json:"total"`
	Items             []NotificationItem     `json:"items,omitempty"`
	ShippingAddress   *types.ShippingAddress `json:"shipping_address,omitempty"`
	PreviousStatus    enums.OrderStatus      `json:"previous_status,omitempty"`
	NewStatus         enums.OrderStatus      `json:"new_status,omitempty"`
	EstimatedDelivery *time.Time             `json:"estimated_delivery,omitempty"`
	DonationAmount    *decimal.Decimal       `json:"donation_amount,omitempty"`
	DonationMessage   *string                `json:"donation_message,omitempty"`
}
