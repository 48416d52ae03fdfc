// Package notifications turns order and donation events into transactional
// email. Intents leave the request path through an Emitter and are rendered
// and delivered by a Sender.
package notifications

import (
	"fmt"
	"time"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/outbox/payloads"
)

// ShippingEstimate is added to the ship time to produce the estimated delivery date.
const ShippingEstimate = 5 * 24 * time.Hour

// Intent is a request to send one email. It is the same shape that travels
// through the outbox so both delivery modes share one payload.
type Intent = payloads.NotificationRequestedEvent

// OrderConfirmation builds the intent sent right after checkout.
func OrderConfirmation(order models.Order) Intent {
	intent := orderIntent(order)
	intent.Kind = enums.NotificationOrderConfirmation
	intent.NewStatus = order.Status
	return intent
}

// StatusIntent maps an accepted transition to the email it triggers. The
// second return value is false when the new status sends nothing.
func StatusIntent(order models.Order, previous enums.OrderStatus, now time.Time) (Intent, bool) {
	intent := orderIntent(order)
	intent.PreviousStatus = previous
	intent.NewStatus = order.Status

	switch order.Status {
	case enums.OrderStatusShipped:
		eta := now.UTC().Add(ShippingEstimate)
		intent.Kind = enums.NotificationOrderShipped
		intent.EstimatedDelivery = &eta
	case enums.OrderStatusDelivered:
		intent.Kind = enums.NotificationOrderDelivered
	case enums.OrderStatusProcessing, enums.OrderStatusCancelled:
		intent.Kind = enums.NotificationOrderStatusUpdate
	default:
		return Intent{}, false
	}
	return intent, true
}

// DonationReceipt builds the thank-you intent for a completed donation.
func DonationReceipt(donation models.Donation) Intent {
	id := donation.ID
	amount := donation.Amount
	return Intent{
		Kind:            enums.NotificationDonationReceipt,
		To:              donation.DonorEmail,
		DonationID:      &id,
		CustomerName:    donation.DonorName,
		Total:           donation.Amount,
		DonationAmount:  &amount,
		DonationMessage: donation.Message,
	}
}

func orderIntent(order models.Order) Intent {
	id := order.ID
	address := order.ShippingAddress
	items := make([]payloads.NotificationItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.NotificationItem{
			Name:     item.ProductName,
			Quantity: item.Quantity,
			Price:    item.Price,
		})
	}
	return Intent{
		To:              order.CustomerEmail,
		OrderID:         &id,
		OrderNumber:     order.OrderNumber,
		CustomerName:    order.CustomerName,
		Total:           order.TotalAmount,
		Items:           items,
		ShippingAddress: &address,
	}
}

// Subject returns the email subject line for an intent.
func Subject(intent Intent) string {
	num := intent.OrderNumber
	switch intent.Kind {
	case enums.NotificationOrderConfirmation:
		return fmt.Sprintf("Order Confirmation - %s", num)
	case enums.NotificationOrderShipped:
		return fmt.Sprintf("Your Order Has Shipped - %s", num)
	case enums.NotificationOrderDelivered:
		return fmt.Sprintf("Order Delivered - %s", num)
	case enums.NotificationOrderStatusUpdate:
		switch intent.NewStatus {
		case enums.OrderStatusProcessing:
			return fmt.Sprintf("Your Order is Being Processed - %s", num)
		case enums.OrderStatusCancelled:
			return fmt.Sprintf("Order Cancelled - %s", num)
		}
		return fmt.Sprintf("Order Update - %s", num)
	case enums.NotificationDonationReceipt:
		return "Thank You for Your Donation"
	}
	return fmt.Sprintf("Order Update - %s", num)
}

// aggregateFor returns the outbox aggregate an intent belongs to.
func aggregateFor(intent Intent) (enums.OutboxAggregateType, error) {
	switch {
	case intent.Kind == enums.NotificationDonationReceipt && intent.DonationID != nil:
		return enums.AggregateDonation, nil
	case intent.OrderID != nil:
		return enums.AggregateOrder, nil
	}
	return "", fmt.Errorf("intent %s has no aggregate id", intent.Kind)
}
