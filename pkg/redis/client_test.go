package redis

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/angelmondragon/storefront-backend/pkg/config"
)

func TestFixedWindowAllow(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}

	allowed, count, err := client.FixedWindowAllow(ctx, "login:10.0.0.1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !allowed || count != 1 {
		t.Fatalf("expected first request allowed with count 1, got allowed=%v count=%d", allowed, count)
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expected expire for first increment")
	}

	if allowed, _, _ = client.FixedWindowAllow(ctx, "login:10.0.0.1", 2, time.Second); !allowed {
		t.Fatalf("second request should be allowed")
	}
	if len(mock.expireCalls) != 1 {
		t.Fatalf("expire should not be set again")
	}

	allowed, _, err = client.FixedWindowAllow(ctx, "login:10.0.0.1", 2, time.Second)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if allowed {
		t.Fatalf("expected limit reached")
	}
}

func TestLookupFoldsMissingKey(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	value, ok, err := client.Lookup(ctx, "sf:device:abc:cart")
	if err != nil || ok || value != "" {
		t.Fatalf("expected missing key, got value=%q ok=%v err=%v", value, ok, err)
	}

	if err := client.Set(ctx, "sf:device:abc:cart", "[]", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err = client.Lookup(ctx, "sf:device:abc:cart")
	if err != nil || !ok || value != "[]" {
		t.Fatalf("expected stored value, got value=%q ok=%v err=%v", value, ok, err)
	}
}

func TestLookupPropagatesErrors(t *testing.T) {
	mock := newMockCmdable()
	mock.getErr = errors.New("connection refused")
	client := &Client{store: mock}

	if _, _, err := client.Lookup(context.Background(), "k"); err == nil {
		t.Fatalf("expected error to surface")
	}
}

func TestAcquireLockIsExclusive(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}
	key := client.CheckoutLockKey("device-1")

	token, ok, err := client.AcquireLock(ctx, key, 30*time.Second)
	if err != nil || !ok || token == "" {
		t.Fatalf("expected first acquire to win, ok=%v token=%q err=%v", ok, token, err)
	}
	_, ok, err = client.AcquireLock(ctx, key, 30*time.Second)
	if err != nil || ok {
		t.Fatalf("expected second acquire to lose, ok=%v err=%v", ok, err)
	}
	released, err := client.ReleaseLock(ctx, key, token)
	if err != nil || !released {
		t.Fatalf("release failed: released=%v err=%v", released, err)
	}
	if _, ok, _ = client.AcquireLock(ctx, key, 30*time.Second); !ok {
		t.Fatalf("expected acquire after release")
	}
}

func TestReleaseLockKeepsAnotherOwnersLock(t *testing.T) {
	ctx := context.Background()
	mock := newMockCmdable()
	client := &Client{store: mock}
	key := client.CheckoutLockKey("device-1")

	first, ok, err := client.AcquireLock(ctx, key, 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("first acquire: ok=%v err=%v", ok, err)
	}
	// The first holder's TTL runs out and a second request takes the lock.
	delete(mock.data, key)
	second, ok, err := client.AcquireLock(ctx, key, 30*time.Second)
	if err != nil || !ok {
		t.Fatalf("second acquire: ok=%v err=%v", ok, err)
	}

	released, err := client.ReleaseLock(ctx, key, first)
	if err != nil {
		t.Fatalf("release: %v", err)
	}
	if released {
		t.Fatal("expired holder must not delete the new lock")
	}
	if mock.data[key] != second {
		t.Fatalf("expected lock to stay with second holder, got %q", mock.data[key])
	}
	if _, ok, _ := client.AcquireLock(ctx, key, 30*time.Second); ok {
		t.Fatal("lock should still be held")
	}

	if released, _ := client.ReleaseLock(ctx, key, second); !released {
		t.Fatal("owner should release its lock")
	}
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	client := &Client{store: newMockCmdable()}

	for want := int64(1); want <= 3; want++ {
		got, err := client.NextSequence(ctx, "order_number")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Fatalf("expected %d got %d", want, got)
		}
	}
}

func TestZeroClientReturnsNotInitialized(t *testing.T) {
	client := &Client{}
	if err := client.Ping(context.Background()); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if err := client.Close(); err != nil {
		t.Fatalf("close on zero client should be a no-op: %v", err)
	}
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	cases := map[string]string{
		client.IdempotencyKey("notification", "evt-1"): "sf:idempotency:notification:evt-1",
		client.RateLimitKey("login:1.2.3.4"):           "sf:rate_limit:login:1.2.3.4",
		client.CounterKey("order_number"):              "sf:counter:order_number",
		client.AccessSessionKey("jti"):                 "sf:session:access:jti",
		client.DeviceKey("dev-1", DeviceCart):          "sf:device:dev-1:cart",
		client.DeviceKey("dev-1", DeviceMyOrders):      "sf:device:dev-1:my_orders",
		client.CheckoutLockKey(" dev-1 "):              "sf:checkout:dev-1",
	}
	for got, want := range cases {
		if got != want {
			t.Fatalf("expected key %s, got %s", want, got)
		}
	}
}

func TestOptionsFromConfigRequiresAddress(t *testing.T) {
	if _, err := optionsFromConfig(config.RedisConfig{}); err == nil {
		t.Fatalf("expected error without url or address")
	}
	opts, err := optionsFromConfig(config.RedisConfig{URL: "redis://localhost:6380/2"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if opts.Addr != "localhost:6380" || opts.DB != 2 {
		t.Fatalf("unexpected options %+v", opts)
	}
}

type mockCmdable struct {
	data        map[string]string
	incr        map[string]int64
	expireCalls []expireCall
	getErr      error
}

type expireCall struct {
	key string
	ttl time.Duration
}

func newMockCmdable() *mockCmdable {
	return &mockCmdable{
		data: make(map[string]string),
		incr: make(map[string]int64),
	}
}

func (m *mockCmdable) Ping(context.Context) *redis.StatusCmd {
	return redis.NewStatusResult("PONG", nil)
}

func (m *mockCmdable) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	m.data[key] = fmt.Sprint(value)
	return redis.NewStatusResult("OK", nil)
}

func (m *mockCmdable) Get(ctx context.Context, key string) *redis.StringCmd {
	if m.getErr != nil {
		return redis.NewStringResult("", m.getErr)
	}
	v, ok := m.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (m *mockCmdable) SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd {
	if _, exists := m.data[key]; exists {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = fmt.Sprint(value)
	return redis.NewBoolResult(true, nil)
}

func (m *mockCmdable) Incr(ctx context.Context, key string) *redis.IntCmd {
	m.incr[key]++
	return redis.NewIntResult(m.incr[key], nil)
}

func (m *mockCmdable) Expire(ctx context.Context, key string, expiration time.Duration) *redis.BoolCmd {
	m.expireCalls = append(m.expireCalls, expireCall{key: key, ttl: expiration})
	return redis.NewBoolResult(true, nil)
}

// Eval understands only the compare-and-delete lock release.
func (m *mockCmdable) Eval(ctx context.Context, script string, keys []string, args ...any) *redis.Cmd {
	if script != releaseLockScript || len(keys) != 1 || len(args) != 1 {
		return redis.NewCmdResult(nil, fmt.Errorf("unexpected script"))
	}
	if m.data[keys[0]] != fmt.Sprint(args[0]) {
		return redis.NewCmdResult(int64(0), nil)
	}
	delete(m.data, keys[0])
	return redis.NewCmdResult(int64(1), nil)
}

func (m *mockCmdable) Del(ctx context.Context, keys ...string) *redis.IntCmd {
	for _, key := range keys {
		delete(m.data, key)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}
