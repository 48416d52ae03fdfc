package enums

import "fmt"

// NotificationKind names each transactional email the storefront sends.
type NotificationKind string

const (
	NotificationOrderConfirmation NotificationKind = "order_confirmation"
	NotificationOrderShipped      NotificationKind = "order_shipped"
	NotificationOrderDelivered    NotificationKind = "order_delivered"
	NotificationOrderStatusUpdate NotificationKind = "order_status_update"
	NotificationDonationReceipt   NotificationKind = "donation_receipt"
)

var validNotificationKinds = []NotificationKind{
	NotificationOrderConfirmation,
	NotificationOrderShipped,
	NotificationOrderDelivered,
	NotificationOrderStatusUpdate,
	NotificationDonationReceipt,
}

func (k NotificationKind) String() string {
	return string(k)
}

// IsValid reports whether the value is a known NotificationKind.
func (k NotificationKind) IsValid() bool {
	for _, candidate := range validNotificationKinds {
		if candidate == k {
			return true
		}
	}
	return false
}

// ParseNotificationKind converts raw input into a NotificationKind.
func ParseNotificationKind(value string) (NotificationKind, error) {
	for _, candidate := range validNotificationKinds {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification kind %q", value)
}
