package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/db/dbtest"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

type memoryKV struct {
	mu     sync.Mutex
	values map[string]string
}

func newMemoryKV() *memoryKV { return &memoryKV{values: map[string]string{}} }

func (m *memoryKV) Get(_ context.Context, deviceID, name string) (string, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[deviceID+":"+name]
	return v, ok, nil
}

func (m *memoryKV) Put(_ context.Context, deviceID, name, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values[deviceID+":"+name] = value
	return nil
}

type stubLocks struct {
	mu       sync.Mutex
	held     map[string]string
	seq      int64
	lockErr  error
	acquired int
	released int
	onSeq    func()
}

func newStubLocks() *stubLocks { return &stubLocks{held: map[string]string{}} }

func (l *stubLocks) AcquireLock(_ context.Context, key string, _ time.Duration) (string, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.lockErr != nil {
		return "", false, l.lockErr
	}
	if _, ok := l.held[key]; ok {
		return "", false, nil
	}
	token := uuid.NewString()
	l.held[key] = token
	l.acquired++
	return token, true, nil
}

func (l *stubLocks) ReleaseLock(_ context.Context, key, token string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] != token {
		return false, nil
	}
	delete(l.held, key)
	l.released++
	return true, nil
}

func (l *stubLocks) CheckoutLockKey(deviceID string) string { return "sf:checkout:" + deviceID }

func (l *stubLocks) NextSequence(context.Context, string) (int64, error) {
	if l.onSeq != nil {
		l.onSeq()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.seq++
	return l.seq, nil
}

type countingTx struct {
	inner *db.Client
	calls int
	err   error
}

func (c *countingTx) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	c.calls++
	if c.err != nil {
		return c.err
	}
	return c.inner.WithTx(ctx, fn)
}

type recordingEmitter struct {
	intents []notifications.Intent
	err     error
}

func (e *recordingEmitter) Emit(_ context.Context, intent notifications.Intent) error {
	e.intents = append(e.intents, intent)
	return e.err
}

type fixture struct {
	conn    *gorm.DB
	tx      *countingTx
	locks   *stubLocks
	carts   *cart.Registry
	devices *orders.DeviceOrders
	emitter *recordingEmitter
	svc     *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	conn := dbtest.Open(t)
	f := &fixture{
		conn:    conn,
		tx:      &countingTx{inner: db.NewFromConn(conn)},
		locks:   newStubLocks(),
		carts:   cart.NewRegistry(newMemoryKV(), time.Hour, logger.Nop()),
		devices: orders.NewDeviceOrders(newMemoryKV(), logger.Nop()),
		emitter: &recordingEmitter{},
	}
	svc, err := NewService(ServiceParams{
		DB:           f.tx,
		Orders:       orders.NewRepository(conn),
		Carts:        f.carts,
		Locks:        f.locks,
		DeviceOrders: f.devices,
		Emitter:      f.emitter,
		Logger:       logger.Nop(),
	})
	require.NoError(t, err)
	f.svc = svc
	return f
}

func validForm() Form {
	return Form{
		Email:     "ada@example.com",
		Phone:     "555-0100",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Address:   "1 Main St",
		City:      "Springfield",
		State:     "IL",
		ZipCode:   "62701",
	}
}

func product(name, price string, discount int) models.Product {
	return models.Product{ID: uuid.New(), Name: name, Price: decimal.RequireFromString(price), DiscountPercent: discount}
}

func (f *fixture) fillCart(t *testing.T, deviceID string) (models.Product, models.Product) {
	t.Helper()
	store, err := f.carts.For(context.Background(), deviceID)
	require.NoError(t, err)
	mug := product("Mug", "20", 0)
	lamp := product("Lamp", "50", 10)
	store.Add(context.Background(), mug, 2)
	store.Add(context.Background(), lamp, 1)
	return mug, lamp
}

func TestSubmitScenario(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	mug, lamp := f.fillCart(t, "device-1")

	result, err := f.svc.Submit(ctx, "device-1", validForm())
	require.NoError(t, err)

	require.True(t, result.Summary.Subtotal.Equal(decimal.NewFromInt(90)))
	require.True(t, result.Summary.Discount.Equal(decimal.NewFromInt(5)))
	require.True(t, result.Order.TotalAmount.Equal(decimal.NewFromInt(85)))
	require.True(t, result.Summary.Tax.Equal(decimal.RequireFromString("6.8")))
	require.True(t, result.Summary.GrandTotal.Equal(decimal.RequireFromString("91.8")))
	require.Equal(t, "ORD-000001", result.Order.OrderNumber)
	require.Equal(t, enums.OrderStatusPending, result.Order.Status)
	require.Equal(t, enums.PaymentStatusPending, result.Order.PaymentStatus)
	require.Equal(t, "Ada Lovelace", result.Order.CustomerName)
	require.Equal(t, "United States", result.Order.ShippingAddress.Country)

	stored, err := orders.NewRepository(f.conn).Get(ctx, result.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 2)
	prices := map[uuid.UUID]decimal.Decimal{}
	sum := decimal.Zero
	for _, item := range stored.Items {
		prices[item.ProductID] = item.Price
		sum = sum.Add(item.LineTotal())
	}
	require.True(t, prices[mug.ID].Equal(decimal.NewFromInt(20)))
	require.True(t, prices[lamp.ID].Equal(decimal.NewFromInt(45)))
	require.True(t, sum.Equal(stored.TotalAmount))

	store, err := f.carts.For(ctx, "device-1")
	require.NoError(t, err)
	require.True(t, store.IsEmpty())

	ids, err := f.devices.List(ctx, "device-1")
	require.NoError(t, err)
	require.Equal(t, []uuid.UUID{result.Order.ID}, ids)

	require.Len(t, f.emitter.intents, 1)
	require.Equal(t, enums.NotificationOrderConfirmation, f.emitter.intents[0].Kind)
	require.Equal(t, "ada@example.com", f.emitter.intents[0].To)

	require.Equal(t, 1, f.locks.acquired)
	require.Equal(t, 1, f.locks.released)
}

func TestSubmitItemSumMatchesTotalForHalfCentDiscounts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	store, err := f.carts.For(ctx, "device-1")
	require.NoError(t, err)
	pen := product("Pen", "1.25", 50)
	store.Add(ctx, pen, 2)

	result, err := f.svc.Submit(ctx, "device-1", validForm())
	require.NoError(t, err)
	require.True(t, result.Order.TotalAmount.Equal(decimal.RequireFromString("1.26")), "got %s", result.Order.TotalAmount)

	stored, err := orders.NewRepository(f.conn).Get(ctx, result.Order.ID)
	require.NoError(t, err)
	require.Len(t, stored.Items, 1)
	require.True(t, stored.Items[0].Price.Equal(decimal.RequireFromString("0.63")), "got %s", stored.Items[0].Price)

	sum := decimal.Zero
	for _, item := range stored.Items {
		require.LessOrEqual(t, -item.Price.Exponent(), int32(2))
		sum = sum.Add(item.LineTotal())
	}
	require.True(t, sum.Equal(stored.TotalAmount), "items %s total %s", sum, stored.TotalAmount)
	require.True(t, result.Summary.GrandTotal.Equal(result.Order.TotalAmount.Add(result.Summary.Tax)))
}

func TestSubmitInvalidEmailTouchesNothing(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")

	form := validForm()
	form.Email = "not-an-email"
	_, err := f.svc.Submit(context.Background(), "device-1", form)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))

	details, ok := pkgerrors.As(err).Details().(map[string]string)
	require.True(t, ok)
	require.Len(t, details, 1)
	require.Contains(t, details, "email")

	require.Zero(t, f.tx.calls)
	require.Zero(t, f.locks.acquired)
	require.Empty(t, f.emitter.intents)

	store, err := f.carts.For(context.Background(), "device-1")
	require.NoError(t, err)
	require.Equal(t, 3, store.Totals().ItemCount)
}

func TestSubmitReportsAllFieldErrors(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), "device-1", Form{Email: "a@b.co", City: "   "})
	details := pkgerrors.As(err).Details().(map[string]string)
	for _, field := range []string{"phone", "firstName", "lastName", "address", "city", "state", "zipCode"} {
		require.Contains(t, details, field)
	}
	require.NotContains(t, details, "email")
	require.NotContains(t, details, "country")
}

func TestSubmitEmptyCart(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	require.Zero(t, f.tx.calls)
}

func TestSubmitRejectsConcurrentCheckout(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	f.locks.held["sf:checkout:device-1"] = "other-request"

	_, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeConflict))
	require.Zero(t, f.tx.calls)
}

func TestSubmitKeepsLockTakenAfterExpiry(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	key := f.locks.CheckoutLockKey("device-1")
	// The in-flight lock expires mid-submit and a retry takes it over.
	f.locks.onSeq = func() {
		f.locks.mu.Lock()
		defer f.locks.mu.Unlock()
		f.locks.held[key] = "retry"
	}

	_, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.NoError(t, err)
	require.Equal(t, "retry", f.locks.held[key])
	require.Zero(t, f.locks.released)
}

func TestSubmitRedisDown(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	f.locks.lockErr = errors.New("connection refused")

	_, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
}

func TestSubmitPersistenceFailureKeepsCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	f.tx.err = errors.New("database is locked")

	_, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodePersistence))

	store, err := f.carts.For(context.Background(), "device-1")
	require.NoError(t, err)
	require.Equal(t, 3, store.Totals().ItemCount)
	require.Empty(t, f.emitter.intents)
	require.Equal(t, 1, f.locks.released)

	var count int64
	require.NoError(t, f.conn.Model(&models.Order{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestSubmitSucceedsWhenEmitFails(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	f.emitter.err = notifications.ErrQueueFull

	result, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.NoError(t, err)
	require.NotEqual(t, uuid.Nil, result.Order.ID)
}

func TestFormKeepsExplicitCountryAndApartment(t *testing.T) {
	form := validForm()
	apt := "  Unit 5 "
	form.Apartment = &apt
	form.Country = "Canada"
	address := form.ShippingAddress("United States")
	require.Equal(t, "Canada", address.Country)
	require.Equal(t, "Unit 5", *address.Apartment)

	blank := "   "
	form.Apartment = &blank
	require.Nil(t, form.ShippingAddress("United States").Apartment)
}

func TestSummaryForCurrentCart(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	summary, err := f.svc.Summary(context.Background(), "device-1")
	require.NoError(t, err)
	require.True(t, summary.GrandTotal.Equal(decimal.RequireFromString("91.8")))
	require.Equal(t, "ORD-000042", FormatOrderNumber(42))
}

func TestResultDTOFormatsSummary(t *testing.T) {
	f := newFixture(t)
	f.fillCart(t, "device-1")
	result, err := f.svc.Submit(context.Background(), "device-1", validForm())
	require.NoError(t, err)

	dto := NewResultDTO(result)
	require.Equal(t, "90.00", dto.Summary.Subtotal)
	require.Equal(t, "5.00", dto.Summary.Discount)
	require.Equal(t, "6.80", dto.Summary.Tax)
	require.Equal(t, "0.00", dto.Summary.Shipping)
	require.Equal(t, "91.80", dto.Summary.GrandTotal)
	require.Equal(t, 25, dto.Order.Progress)
	require.Len(t, dto.Order.Items, 2)
}
