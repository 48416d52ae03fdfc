package cart

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/redis"
)

type memoryPersister struct {
	mu      sync.Mutex
	values  map[string]string
	getErr  error
	putErr  error
	puts    int
	lastKey string
}

func newMemoryPersister() *memoryPersister {
	return &memoryPersister{values: map[string]string{}}
}

func (m *memoryPersister) Get(_ context.Context, deviceID, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", false, m.getErr
	}
	v, ok := m.values[deviceID+":"+name]
	return v, ok, nil
}

func (m *memoryPersister) Put(_ context.Context, deviceID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.puts++
	if m.putErr != nil {
		return m.putErr
	}
	m.lastKey = deviceID + ":" + name
	m.values[m.lastKey] = value
	return nil
}

func product(name string, price string, discount int) models.Product {
	return models.Product{
		ID:              uuid.New(),
		Name:            name,
		Price:           decimal.RequireFromString(price),
		DiscountPercent: discount,
	}
}

func TestAddMergesAndSnapshots(t *testing.T) {
	ctx := context.Background()
	store := Load(ctx, "dev-1", newMemoryPersister(), nil)
	shirt := product("Shirt", "20", 0)

	store.Add(ctx, shirt, 1)
	store.Add(ctx, shirt, 2)

	shirt.Price = decimal.RequireFromString("99")
	store.Add(ctx, shirt, 1)

	lines := store.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 4, lines[0].Quantity)
	assert.True(t, lines[0].UnitPrice.Equal(decimal.RequireFromString("20")))
	assert.True(t, store.Contains(shirt.ID))
	assert.Equal(t, 4, store.Quantity(shirt.ID))

	store.Add(ctx, product("Ignored", "5", 0), 0)
	assert.Len(t, store.Lines(), 1)
}

func TestQuantityOperations(t *testing.T) {
	ctx := context.Background()
	store := Load(ctx, "dev-1", nil, nil)
	hat := product("Hat", "10", 0)
	missing := uuid.New()

	store.Add(ctx, hat, 1)
	store.Increment(ctx, hat.ID)
	assert.Equal(t, 2, store.Quantity(hat.ID))

	store.Decrement(ctx, hat.ID)
	assert.Equal(t, 1, store.Quantity(hat.ID))
	store.Decrement(ctx, hat.ID)
	assert.False(t, store.Contains(hat.ID))

	store.Add(ctx, hat, 3)
	store.UpdateQuantity(ctx, hat.ID, 7)
	assert.Equal(t, 7, store.Quantity(hat.ID))
	store.UpdateQuantity(ctx, hat.ID, 0)
	assert.False(t, store.Contains(hat.ID))

	store.Increment(ctx, missing)
	store.Decrement(ctx, missing)
	store.UpdateQuantity(ctx, missing, 4)
	store.Remove(ctx, missing)
	assert.True(t, store.IsEmpty())
	assert.Equal(t, 0, store.Quantity(missing))
}

func TestRemoveAbsentDoesNotPersist(t *testing.T) {
	ctx := context.Background()
	persist := newMemoryPersister()
	store := Load(ctx, "dev-1", persist, nil)
	store.Add(ctx, product("Mug", "8", 0), 1)
	before := persist.puts

	store.Remove(ctx, uuid.New())

	assert.Equal(t, before, persist.puts)
	assert.Len(t, store.Lines(), 1)
}

func TestTotals(t *testing.T) {
	ctx := context.Background()
	store := Load(ctx, "dev-1", nil, nil)
	store.Add(ctx, product("Tee", "20", 0), 2)
	store.Add(ctx, product("Jacket", "50", 10), 1)

	totals := store.Totals()
	assert.Equal(t, 3, totals.ItemCount)
	assert.Equal(t, "90", totals.Subtotal.String())
	assert.Equal(t, "85", totals.Total.String())
	assert.Equal(t, "5", totals.Discount.String())
	assert.True(t, totals.Total.LessThanOrEqual(totals.Subtotal))

	summary := totals.Summary()
	assert.Equal(t, "6.80", summary.Tax.StringFixed(2))
	assert.Equal(t, "91.80", summary.GrandTotal.StringFixed(2))
}

func TestTotalEqualsSubtotalWithoutDiscounts(t *testing.T) {
	ctx := context.Background()
	store := Load(ctx, "dev-1", nil, nil)
	store.Add(ctx, product("A", "3.33", 0), 3)
	store.Add(ctx, product("B", "0.10", 0), 1)

	totals := store.Totals()
	assert.True(t, totals.Total.Equal(totals.Subtotal))
	assert.True(t, totals.Discount.IsZero())
}

func TestPersistRoundTrip(t *testing.T) {
	ctx := context.Background()
	persist := newMemoryPersister()
	img := "data:image/png;base64,AAAA"
	cat := "Accessories"
	p := product("Scarf", "15.50", 20)
	p.Image = &img
	p.Category = &cat

	store := Load(ctx, "dev-1", persist, nil)
	store.Add(ctx, p, 2)
	assert.Equal(t, "dev-1:"+redis.DeviceCart, persist.lastKey)

	reloaded := Load(ctx, "dev-1", persist, nil)
	lines := reloaded.Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, p.ID, lines[0].ProductID)
	assert.Equal(t, "Scarf", lines[0].Name)
	assert.Equal(t, 2, lines[0].Quantity)
	assert.Equal(t, 20, lines[0].DiscountPercent)
	assert.True(t, lines[0].UnitPrice.Equal(p.Price))
	assert.Equal(t, img, *lines[0].Image)
	assert.Equal(t, cat, *lines[0].Category)
	assert.True(t, reloaded.Totals().Total.Equal(decimal.RequireFromString("24.8")))
}

func TestLoadFallsBackToEmpty(t *testing.T) {
	ctx := context.Background()

	missing := Load(ctx, "nobody", newMemoryPersister(), nil)
	assert.True(t, missing.IsEmpty())

	corrupt := newMemoryPersister()
	corrupt.values["dev-1:"+redis.DeviceCart] = "{not json"
	assert.True(t, Load(ctx, "dev-1", corrupt, nil).IsEmpty())

	failing := newMemoryPersister()
	failing.getErr = errors.New("redis down")
	store := Load(ctx, "dev-1", failing, nil)
	require.NotNil(t, store)
	assert.True(t, store.IsEmpty())
	assert.NotNil(t, store.Lines())
}

func TestLoadDropsInvalidLines(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	stored, err := json.Marshal([]Line{
		{ProductID: id, Name: "Ok", UnitPrice: decimal.NewFromInt(5), Quantity: 2},
		{ProductID: uuid.New(), Name: "Zero", UnitPrice: decimal.NewFromInt(5), Quantity: 0},
		{ProductID: uuid.Nil, Name: "NoID", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
		{ProductID: id, Name: "Ok", UnitPrice: decimal.NewFromInt(5), Quantity: 1},
	})
	require.NoError(t, err)

	persist := newMemoryPersister()
	persist.values["dev-1:"+redis.DeviceCart] = string(stored)

	lines := Load(ctx, "dev-1", persist, nil).Lines()
	require.Len(t, lines, 1)
	assert.Equal(t, 3, lines[0].Quantity)
}

func TestPersistFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	persist := newMemoryPersister()
	persist.putErr = errors.New("write refused")
	store := Load(ctx, "dev-1", persist, nil)
	p := product("Lamp", "30", 0)

	store.Add(ctx, p, 1)

	assert.Equal(t, 1, persist.puts)
	assert.Equal(t, 1, store.Quantity(p.ID))
}

func TestConcurrentAddsAreSerialised(t *testing.T) {
	ctx := context.Background()
	store := Load(ctx, "dev-1", newMemoryPersister(), nil)
	p := product("Pen", "1", 0)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Add(ctx, p, 1)
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, store.Quantity(p.ID))
}

func TestRegistryReloadsAndSweeps(t *testing.T) {
	ctx := context.Background()
	persist := newMemoryPersister()
	reg := NewRegistry(persist, time.Minute, nil)
	clock := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	reg.now = func() time.Time { return clock }

	_, err := reg.For(ctx, "  ")
	assert.ErrorIs(t, err, ErrDeviceRequired)

	a, err := reg.For(ctx, "dev-a")
	require.NoError(t, err)
	p := product("Book", "12", 0)
	a.Add(ctx, p, 2)

	again, err := reg.For(ctx, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, 2, again.Quantity(p.ID))

	clock = clock.Add(30 * time.Second)
	_, err = reg.For(ctx, "dev-b")
	require.NoError(t, err)
	assert.Equal(t, 2, reg.Len())

	clock = clock.Add(45 * time.Second)
	assert.Equal(t, 1, reg.Sweep())
	assert.Equal(t, 1, reg.Len())

	reloaded, err := reg.For(ctx, "dev-a")
	require.NoError(t, err)
	assert.Equal(t, 2, reloaded.Quantity(p.ID))

	reg.Close()
	assert.Equal(t, 0, reg.Len())
}

func TestRegistriesShareCartsThroughPersister(t *testing.T) {
	ctx := context.Background()
	persist := newMemoryPersister()
	first := NewRegistry(persist, time.Minute, nil)
	second := NewRegistry(persist, time.Minute, nil)
	x, y, z := product("X", "1", 0), product("Y", "2", 0), product("Z", "3", 0)

	add := func(reg *Registry, p models.Product) {
		store, err := reg.For(ctx, "dev-1")
		require.NoError(t, err)
		store.Add(ctx, p, 1)
	}
	add(first, x)
	add(second, y)
	add(first, z)

	for _, reg := range []*Registry{first, second} {
		store, err := reg.For(ctx, "dev-1")
		require.NoError(t, err)
		lines := store.Lines()
		require.Len(t, lines, 3)
		assert.Equal(t, []string{"X", "Y", "Z"}, []string{lines[0].Name, lines[1].Name, lines[2].Name})
	}

	cleared, err := second.For(ctx, "dev-1")
	require.NoError(t, err)
	cleared.Clear(ctx)

	seen, err := first.For(ctx, "dev-1")
	require.NoError(t, err)
	assert.True(t, seen.IsEmpty())
}

func TestStaleStoreMergesWithLaterWrites(t *testing.T) {
	ctx := context.Background()
	reg := NewRegistry(newMemoryPersister(), time.Minute, nil)
	early, err := reg.For(ctx, "dev-1")
	require.NoError(t, err)
	late, err := reg.For(ctx, "dev-1")
	require.NoError(t, err)
	a, b := product("A", "1", 0), product("B", "1", 0)

	late.Add(ctx, a, 1)
	early.Add(ctx, b, 1)

	current, err := reg.For(ctx, "dev-1")
	require.NoError(t, err)
	assert.Equal(t, 1, current.Quantity(a.ID))
	assert.Equal(t, 1, current.Quantity(b.ID))
}

func TestRegistryRunStopsOnCancel(t *testing.T) {
	reg := NewRegistry(nil, time.Minute, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- reg.Run(ctx, time.Millisecond) }()
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
