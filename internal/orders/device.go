package orders

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

// MaxDeviceOrders bounds the my-orders list kept per device. The oldest ids
// fall off first.
const MaxDeviceOrders = 100

type deviceKV interface {
	Get(ctx context.Context, deviceID, name string) (string, bool, error)
	Put(ctx context.Context, deviceID, name, value string) error
}

// DeviceOrders remembers which orders were placed from a device.
type DeviceOrders struct {
	mu   sync.Mutex
	kv   deviceKV
	logg *logger.Logger
}

func NewDeviceOrders(kv deviceKV, logg *logger.Logger) *DeviceOrders {
	if logg == nil {
		logg = logger.Nop()
	}
	return &DeviceOrders{kv: kv, logg: logg}
}

// Append records orderID for the device. Appending an id twice is a no-op.
func (d *DeviceOrders) Append(ctx context.Context, deviceID string, orderID uuid.UUID) error {
	if deviceID == "" {
		return errors.New("device id required")
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, err := d.read(ctx, deviceID)
	if err != nil {
		return err
	}
	for _, id := range ids {
		if id == orderID {
			return nil
		}
	}
	ids = append(ids, orderID)
	if len(ids) > MaxDeviceOrders {
		ids = ids[len(ids)-MaxDeviceOrders:]
	}
	raw, err := json.Marshal(ids)
	if err != nil {
		return err
	}
	return d.kv.Put(ctx, deviceID, redis.DeviceMyOrders, string(raw))
}

// List returns the device's order ids in the order they were placed.
// Malformed stored data reads as an empty list.
func (d *DeviceOrders) List(ctx context.Context, deviceID string) ([]uuid.UUID, error) {
	if deviceID == "" {
		return []uuid.UUID{}, nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.read(ctx, deviceID)
}

// Contains reports whether the device placed orderID.
func (d *DeviceOrders) Contains(ctx context.Context, deviceID string, orderID uuid.UUID) (bool, error) {
	ids, err := d.List(ctx, deviceID)
	if err != nil {
		return false, err
	}
	for _, id := range ids {
		if id == orderID {
			return true, nil
		}
	}
	return false, nil
}

func (d *DeviceOrders) read(ctx context.Context, deviceID string) ([]uuid.UUID, error) {
	raw, ok, err := d.kv.Get(ctx, deviceID, redis.DeviceMyOrders)
	if err != nil {
		return nil, err
	}
	if !ok || raw == "" {
		return []uuid.UUID{}, nil
	}
	var ids []uuid.UUID
	if err := json.Unmarshal([]byte(raw), &ids); err != nil {
		d.logg.Warn(d.logg.WithDeviceID(ctx, deviceID), "orders.device_list_malformed")
		return []uuid.UUID{}, nil
	}
	out := ids[:0]
	for _, id := range ids {
		if id != uuid.Nil {
			out = append(out, id)
		}
	}
	return out, nil
}
