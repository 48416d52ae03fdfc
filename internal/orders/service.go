// Package orders owns the order status lifecycle, the per-device order list
// and the admin order console.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/internal/cart"
	"github.com/angelmondragon/storefront-backend/internal/notifications"
	"github.com/angelmondragon/storefront-backend/pkg/datastore"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/metrics"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

type orderStore interface {
	Get(ctx context.Context, id uuid.UUID) (*models.Order, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error)
	List(ctx context.Context, q listQuery) ([]models.Order, error)
	StatusCounts(ctx context.Context) (map[enums.OrderStatus]int64, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, previous, status enums.OrderStatus, at time.Time) (int64, error)
}

type deviceOrderList interface {
	List(ctx context.Context, deviceID string) ([]uuid.UUID, error)
	Contains(ctx context.Context, deviceID string, orderID uuid.UUID) (bool, error)
}

type productLookup interface {
	Get(id uuid.UUID) (models.Product, bool)
}

type cartProvider interface {
	For(ctx context.Context, deviceID string) (*cart.Store, error)
}

// Service runs order reads and status changes.
type Service struct {
	repo     orderStore
	devices  deviceOrderList
	products productLookup
	carts    cartProvider
	emitter  notifications.Emitter
	metrics  *metrics.StorefrontMetrics
	logg     *logger.Logger
	now      func() time.Time
}

type ServiceParams struct {
	Repository   orderStore
	DeviceOrders deviceOrderList
	Products     productLookup
	Carts        cartProvider
	Emitter      notifications.Emitter
	Metrics      *metrics.StorefrontMetrics
	Logger       *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Repository == nil {
		return nil, errors.New("orders repository required")
	}
	if params.DeviceOrders == nil {
		return nil, errors.New("device orders required")
	}
	logg := params.Logger
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{
		repo:     params.Repository,
		devices:  params.DeviceOrders,
		products: params.Products,
		carts:    params.Carts,
		emitter:  params.Emitter,
		metrics:  params.Metrics,
		logg:     logg,
		now:      time.Now,
	}, nil
}

// UpdateStatus moves an order to a new status and emits the matching
// notification. The status change stands even when the emit fails.
func (s *Service) UpdateStatus(ctx context.Context, id uuid.UUID, raw string) (*models.Order, error) {
	next, err := enums.ParseOrderStatus(raw)
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid order status").
			WithDetails(map[string]string{"status": fmt.Sprintf("must be one of %v", enums.OrderStatuses())})
	}

	order, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	previous := order.Status
	if err := CheckTransition(previous, next); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeStateConflict, err, err.Error()).
			WithDetails(map[string]string{"from": string(previous), "to": string(next)})
	}

	now := s.now().UTC()
	rows, err := s.repo.UpdateStatus(ctx, id, previous, next, now)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "update order status")
	}
	if rows == 0 {
		// The row moved (or vanished) after it was read.
		current, err := s.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "order status changed concurrently").
			WithDetails(map[string]string{"from": string(current.Status), "to": string(next)})
	}
	order.Status = next
	order.UpdatedAt = now
	s.metrics.IncStatusUpdate(string(next))

	logCtx := s.logg.WithFields(s.logg.WithOrderID(ctx, id.String()), map[string]any{
		"previous_status": previous,
		"status":          next,
	})
	s.logg.Info(logCtx, "order status updated")

	if intent, ok := notifications.StatusIntent(*order, previous, now); ok {
		notifications.EmitBestEffort(logCtx, s.emitter, intent, s.metrics, s.logg)
	}
	return order, nil
}

// Get returns one order with its items.
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return s.load(ctx, id)
}

// GetForDevice returns an order only when the device placed it.
func (s *Service) GetForDevice(ctx context.Context, deviceID string, id uuid.UUID) (*models.Order, error) {
	owned, err := s.devices.Contains(ctx, deviceID, id)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device orders")
	}
	if !owned {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return s.load(ctx, id)
}

// ListForDevice returns the device's orders newest first.
func (s *Service) ListForDevice(ctx context.Context, deviceID string) ([]models.Order, error) {
	ids, err := s.devices.List(ctx, deviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load device orders")
	}
	if len(ids) == 0 {
		return []models.Order{}, nil
	}
	out, err := s.repo.ListByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list orders")
	}
	return out, nil
}

// ListFilter narrows the admin order console.
type ListFilter struct {
	Status *enums.OrderStatus
	Search string
	Limit  int
	Cursor string
}

// ListResult is one page of the admin order console.
type ListResult struct {
	Orders     []models.Order
	NextCursor string
}

// List pages through all orders newest first.
func (s *Service) List(ctx context.Context, filter ListFilter) (*ListResult, error) {
	cursor, err := pagination.ParseCursor(filter.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	rows, err := s.repo.List(ctx, listQuery{
		Status: filter.Status,
		Search: filter.Search,
		Limit:  pagination.LimitWithBuffer(filter.Limit),
		Cursor: cursor,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list orders")
	}
	page, next := pagination.Trim(rows, filter.Limit, func(o models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: o.CreatedAt, ID: o.ID}
	})
	return &ListResult{Orders: page, NextCursor: next}, nil
}

// StatusCounts is the per-status tally for the admin console.
type StatusCounts struct {
	ByStatus map[enums.OrderStatus]int64
	Total    int64
}

func (s *Service) StatusCounts(ctx context.Context) (*StatusCounts, error) {
	counts, err := s.repo.StatusCounts(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "count orders")
	}
	out := &StatusCounts{ByStatus: make(map[enums.OrderStatus]int64, len(enums.OrderStatuses()))}
	for _, status := range enums.OrderStatuses() {
		out.ByStatus[status] = counts[status]
		out.Total += counts[status]
	}
	return out, nil
}

// SkippedItem is an order line that could not be re-added to the cart.
type SkippedItem struct {
	ProductID   uuid.UUID
	ProductName string
}

// ReorderResult reports what a reorder put back into the cart.
type ReorderResult struct {
	Added   int
	Skipped []SkippedItem
	Cart    cart.View
}

// Reorder adds each item of a past order to the device cart at current
// catalog prices. Items whose product is gone are skipped and reported.
func (s *Service) Reorder(ctx context.Context, deviceID string, id uuid.UUID) (*ReorderResult, error) {
	if s.products == nil || s.carts == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "reorder is not configured")
	}
	order, err := s.GetForDevice(ctx, deviceID, id)
	if err != nil {
		return nil, err
	}
	store, err := s.carts.For(ctx, deviceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "device id required")
	}

	result := &ReorderResult{Skipped: []SkippedItem{}}
	for _, item := range order.Items {
		product, ok := s.products.Get(item.ProductID)
		if !ok {
			result.Skipped = append(result.Skipped, SkippedItem{ProductID: item.ProductID, ProductName: item.ProductName})
			continue
		}
		store.Add(ctx, product, item.Quantity)
		result.Added++
	}
	result.Cart = store.View()
	return result, nil
}

func (s *Service) load(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	order, err := s.repo.Get(ctx, id)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load order")
	}
	return order, nil
}
