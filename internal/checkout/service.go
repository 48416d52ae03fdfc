// Package checkout turns a device cart into a persisted order.
package checkout

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/internal/orders"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
)

const (
	// OrderSequence is the Redis counter order numbers are drawn from.
	OrderSequence      = "order_number"
	defaultInFlightTTL = 30 * time.Second
	defaultCountry     = "United States"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartProvider interface {
	For(ctx context.Context, deviceID string) (*cart.Store, error)
}

// locker is the Redis surface checkout needs: the in-flight lock and the
// order number counter.
type locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (string, bool, error)
	ReleaseLock(ctx context.Context, key, token string) (bool, error)
	CheckoutLockKey(deviceID string) string
	NextSequence(ctx context.Context, name string) (int64, error)
}

type orderAppender interface {
	Append(ctx context.Context, deviceID string, orderID uuid.UUID) error
}

// Service submits checkouts.
type Service struct {
	db             txRunner
	orders         *orders.Repository
	carts          cartProvider
	locks          locker
	deviceOrders   orderAppender
	emitter        notifications.Emitter
	metrics        *metrics.StorefrontMetrics
	logg           *logger.Logger
	inFlightTTL    time.Duration
	defaultCountry string
}

type ServiceParams struct {
	DB             txRunner
	Orders         *orders.Repository
	Carts          cartProvider
	Locks          locker
	DeviceOrders   orderAppender
	Emitter        notifications.Emitter
	Metrics        *metrics.StorefrontMetrics
	Logger         *logger.Logger
	InFlightTTL    time.Duration
	DefaultCountry string
}

func NewService(params ServiceParams) (*Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Carts == nil {
		return nil, fmt.Errorf("cart registry required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if params.DeviceOrders == nil {
		return nil, fmt.Errorf("device orders required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	ttl := params.InFlightTTL
	if ttl <= 0 {
		ttl = defaultInFlightTTL
	}
	country := strings.TrimSpace(params.DefaultCountry)
	if country == "" {
		country = defaultCountry
	}
	return &Service{
		db:             params.DB,
		orders:         params.Orders,
		carts:          params.Carts,
		locks:          params.Locks,
		deviceOrders:   params.DeviceOrders,
		emitter:        params.Emitter,
		metrics:        params.Metrics,
		logg:           logg,
		inFlightTTL:    ttl,
		defaultCountry: country,
	}, nil
}

// Result is what a successful checkout returns to the shopper.
type Result struct {
	Order   models.Order
	Summary pricing.Summary
}

// Summary prices the device's current cart without submitting it.
func (s *Service) Summary(ctx context.Context, deviceID string) (pricing.Summary, error) {
	store, err := s.carts.For(ctx, deviceID)
	if err != nil {
		return pricing.Summary{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "device id required")
	}
	return store.Totals().Summary(), nil
}

// Submit validates the form, writes the order and its items in one
// transaction, records it for the device, queues the confirmation email and
// clears the cart.
func (s *Service) Submit(ctx context.Context, deviceID string, form Form) (*Result, error) {
	if err := form.Validate(); err != nil {
		s.metrics.IncCheckout(metrics.CheckoutRejected)
		return nil, err
	}
	store, err := s.carts.For(ctx, deviceID)
	if err != nil {
		s.metrics.IncCheckout(metrics.CheckoutRejected)
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "device id required")
	}
	if store.IsEmpty() {
		s.metrics.IncCheckout(metrics.CheckoutRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	lockKey := s.locks.CheckoutLockKey(deviceID)
	lockToken, acquired, err := s.locks.AcquireLock(ctx, lockKey, s.inFlightTTL)
	if err != nil {
		s.metrics.IncCheckout(metrics.CheckoutFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "checkout lock unavailable")
	}
	if !acquired {
		s.metrics.IncCheckout(metrics.CheckoutRejected)
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "checkout already in progress")
	}
	defer func() {
		released, err := s.locks.ReleaseLock(context.WithoutCancel(ctx), lockKey, lockToken)
		if err != nil {
			s.logg.Error(s.logg.WithDeviceID(ctx, deviceID), "checkout.lock_release_failed", err)
			return
		}
		if !released {
			s.logg.Warn(s.logg.WithDeviceID(ctx, deviceID), "checkout.lock_expired")
		}
	}()

	view := store.View()
	if len(view.Lines) == 0 {
		s.metrics.IncCheckout(metrics.CheckoutRejected)
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "cart is empty")
	}

	seq, err := s.locks.NextSequence(ctx, OrderSequence)
	if err != nil {
		s.metrics.IncCheckout(metrics.CheckoutFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "order number unavailable")
	}

	order := buildOrder(form, s.defaultCountry, view, FormatOrderNumber(seq))
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.orders.WithTx(tx).Create(ctx, &order)
	})
	if err != nil {
		s.metrics.IncCheckout(metrics.CheckoutFailed)
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "could not save your order, please try again")
	}

	logCtx := s.logg.WithOrderID(s.logg.WithDeviceID(ctx, deviceID), order.ID.String())
	if err := s.deviceOrders.Append(ctx, deviceID, order.ID); err != nil {
		s.logg.Error(logCtx, "checkout.my_orders_append_failed", err)
	}

	notifications.EmitBestEffort(notifications.WithDevice(logCtx, deviceID), s.emitter, notifications.OrderConfirmation(order), s.metrics, s.logg)

	store.Clear(ctx)
	s.metrics.IncCheckout(metrics.CheckoutSucceeded)
	s.logg.Info(logCtx, "order submitted")

	return &Result{Order: order, Summary: view.Totals.Summary()}, nil
}

// FormatOrderNumber renders a counter value as ORD-000123.
func FormatOrderNumber(seq int64) string {
	return fmt.Sprintf("ORD-%06d", seq)
}

func buildOrder(form Form, country string, view cart.View, number string) models.Order {
	address := form.ShippingAddress(country)
	items := make([]models.OrderItem, 0, len(view.Lines))
	for _, line := range view.Lines {
		items = append(items, models.OrderItem{
			ProductID:   line.ProductID,
			ProductName: line.Name,
			Quantity:    line.Quantity,
			Price:       line.EffectivePrice(),
		})
	}
	return models.Order{
		OrderNumber:     number,
		CustomerName:    address.FullName(),
		CustomerEmail:   strings.TrimSpace(form.Email),
		CustomerPhone:   strings.TrimSpace(form.Phone),
		TotalAmount:     view.Totals.Total,
		Status:          enums.OrderStatusPending,
		PaymentStatus:   enums.PaymentStatusPending,
		ShippingAddress: address,
		Items:           items,
	}
}
