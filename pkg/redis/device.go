package redis

import (
	"context"
	"fmt"
	"time"
)

// Device value names.
const (
	DeviceCart     = "cart"
	DeviceMyOrders = "my_orders"
)

type deviceKV interface {
	Lookup(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	DeviceKey(deviceID, name string) string
}

// DeviceStore is the per-device durable key/value namespace. Every write
// refreshes the TTL.
type DeviceStore struct {
	kv  deviceKV
	ttl time.Duration
}

// NewDeviceStore binds a DeviceStore to a client.
func NewDeviceStore(client *Client, ttl time.Duration) *DeviceStore {
	return &DeviceStore{kv: client, ttl: ttl}
}

// Get returns the stored value and whether it exists.
func (s *DeviceStore) Get(ctx context.Context, deviceID, name string) (string, bool, error) {
	value, ok, err := s.kv.Lookup(ctx, s.kv.DeviceKey(deviceID, name))
	if err != nil {
		return "", false, fmt.Errorf("read device %s: %w", name, err)
	}
	return value, ok, nil
}

// Put writes value and refreshes the TTL.
func (s *DeviceStore) Put(ctx context.Context, deviceID, name, value string) error {
	if err := s.kv.Set(ctx, s.kv.DeviceKey(deviceID, name), value, s.ttl); err != nil {
		return fmt.Errorf("write device %s: %w", name, err)
	}
	return nil
}

// Delete removes a device value.
func (s *DeviceStore) Delete(ctx context.Context, deviceID, name string) error {
	return s.kv.Del(ctx, s.kv.DeviceKey(deviceID, name))
}
