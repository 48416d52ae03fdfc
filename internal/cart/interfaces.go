package cart

import (
	"context"
)

// Persister is the device key/value namespace the cart snapshot is written to.
type Persister interface {
	Get(ctx context.Context, deviceID, name string) (string, bool, error)
	Put(ctx context.Context, deviceID, name, value string) error
}
