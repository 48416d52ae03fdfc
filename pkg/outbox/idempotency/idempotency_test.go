package idempotency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	claimed     map[string]bool
	setNXError  error
	lastKey     string
	lastTTL     time.Duration
	lastDeleted string
}

func newFakeStore() *fakeStore {
	return &fakeStore{claimed: map[string]bool{}}
}

func (f *fakeStore) Get(context.Context, string) (string, error) {
	return "", nil
}

func (f *fakeStore) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	f.lastKey = key
	f.lastTTL = ttl
	if f.setNXError != nil {
		return false, f.setNXError
	}
	if f.claimed[key] {
		return false, nil
	}
	f.claimed[key] = true
	return true, nil
}

func (f *fakeStore) IdempotencyKey(scope, id string) string {
	return "sf:idempotency:" + scope + ":" + id
}

func (f *fakeStore) Del(_ context.Context, keys ...string) error {
	for _, k := range keys {
		delete(f.claimed, k)
		f.lastDeleted = k
	}
	return nil
}

func TestCheckAndMarkProcessedDedupes(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, 24*time.Hour)
	require.NoError(t, err)

	already, err := manager.CheckAndMarkProcessed(context.Background(), "notification-worker", "evt-1")
	require.NoError(t, err)
	require.False(t, already)
	require.Equal(t, "sf:idempotency:evt:processed:notification-worker:evt-1", store.lastKey)
	require.Equal(t, 24*time.Hour, store.lastTTL)

	already, err = manager.CheckAndMarkProcessed(context.Background(), "notification-worker", "evt-1")
	require.NoError(t, err)
	require.True(t, already)
}

func TestReleaseAllowsReprocessing(t *testing.T) {
	store := newFakeStore()
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = manager.CheckAndMarkProcessed(ctx, "worker", "evt-2")
	require.NoError(t, err)
	require.NoError(t, manager.Release(ctx, "worker", "evt-2"))
	require.Equal(t, "sf:idempotency:evt:processed:worker:evt-2", store.lastDeleted)

	already, err := manager.CheckAndMarkProcessed(ctx, "worker", "evt-2")
	require.NoError(t, err)
	require.False(t, already)
}

func TestCheckAndMarkProcessedValidatesInput(t *testing.T) {
	manager, err := NewManager(newFakeStore(), time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "", "evt")
	require.Error(t, err)
	_, err = manager.CheckAndMarkProcessed(context.Background(), "worker", " ")
	require.Error(t, err)
}

func TestCheckAndMarkProcessedStoreError(t *testing.T) {
	store := newFakeStore()
	store.setNXError = errors.New("redis down")
	manager, err := NewManager(store, time.Hour)
	require.NoError(t, err)

	_, err = manager.CheckAndMarkProcessed(context.Background(), "worker", "evt")
	require.ErrorIs(t, err, store.setNXError)
}

func TestNewManagerValidation(t *testing.T) {
	_, err := NewManager(nil, time.Hour)
	require.Error(t, err)
	_, err = NewManager(newFakeStore(), -time.Second)
	require.Error(t, err)
}
