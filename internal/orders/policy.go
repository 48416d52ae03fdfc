package orders

import (
	"fmt"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

var lifecycleRank = map[enums.OrderStatus]int{
	enums.OrderStatusPending:    0,
	enums.OrderStatusProcessing: 1,
	enums.OrderStatusShipped:    2,
	enums.OrderStatusDelivered:  3,
}

// CheckTransition reports whether an order may move from one status to
// another. Forward moves may skip states and cancellation is allowed from any
// non-terminal state.
func CheckTransition(from, to enums.OrderStatus) error {
	if !to.IsValid() {
		return fmt.Errorf("unknown status %q", to)
	}
	if from == to {
		return fmt.Errorf("order is already %s", to)
	}
	if from.IsTerminal() {
		return fmt.Errorf("order is %s and can no longer change", from)
	}
	if to == enums.OrderStatusCancelled {
		return nil
	}
	if to == enums.OrderStatusPending {
		return fmt.Errorf("order cannot return to %s", to)
	}
	if lifecycleRank[to] < lifecycleRank[from] {
		return fmt.Errorf("order cannot move back from %s to %s", from, to)
	}
	return nil
}

// Progress is the completion percentage shown on order tracking.
func Progress(status enums.OrderStatus) int {
	switch status {
	case enums.OrderStatusPending:
		return 25
	case enums.OrderStatusProcessing:
		return 50
	case enums.OrderStatusShipped:
		return 75
	case enums.OrderStatusDelivered:
		return 100
	default:
		return 0
	}
}
