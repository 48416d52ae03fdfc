package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/storefront-backend/pkg/datastore"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/enums"
	"github.com/angelmondragon/storefront-backend/pkg/pagination"
)

const (
	ordersTable = "orders"
	itemsTable  = "order_items"
)

// Repository persists orders and their items.
type Repository struct {
	store *datastore.Store
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{store: datastore.New(db)}
}

// WithTx binds the repository to an open transaction.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{store: r.store.WithTx(tx)}
}

// Create inserts the order row and then its items. Callers wanting both
// writes to be atomic pass a transaction-bound repository.
func (r *Repository) Create(ctx context.Context, order *models.Order) error {
	if err := r.store.DB(ctx).Omit(clause.Associations).Create(order).Error; err != nil {
		return fmt.Errorf("insert %s: %w", ordersTable, err)
	}
	if len(order.Items) == 0 {
		return nil
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	return r.store.Insert(ctx, itemsTable, &order.Items)
}

// Get loads one order with its items. datastore.ErrNotFound when missing.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.store.First(ctx, ordersTable, &order, datastore.Eq("id", id)); err != nil {
		return nil, err
	}
	orders := []models.Order{order}
	if err := r.attachItems(ctx, orders); err != nil {
		return nil, err
	}
	return &orders[0], nil
}

// ListByIDs loads the given orders newest first. Unknown ids are skipped.
func (r *Repository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Order, error) {
	var out []models.Order
	err := r.store.Query(ctx, ordersTable, &out,
		datastore.In("id", ids),
		datastore.OrderBy("created_at", true),
		datastore.OrderBy("id", true),
	)
	if err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Order{}, nil
	}
	return out, r.attachItems(ctx, out)
}

// listQuery is the repository form of ListFilter with the cursor decoded.
type listQuery struct {
	Status *enums.OrderStatus
	Search string
	Limit  int
	Cursor *pagination.Cursor
}

// List returns up to q.Limit orders, newest first, with items attached.
func (r *Repository) List(ctx context.Context, q listQuery) ([]models.Order, error) {
	filters := []datastore.Filter{
		datastore.ILike(q.Search, "order_number", "customer_name", "customer_email"),
	}
	if q.Status != nil {
		filters = append(filters, datastore.Eq("status", *q.Status))
	}
	if q.Cursor != nil {
		filters = append(filters, datastore.Before(q.Cursor.CreatedAt, q.Cursor.ID))
	}
	filters = append(filters,
		datastore.OrderBy("created_at", true),
		datastore.OrderBy("id", true),
		datastore.Limit(q.Limit),
	)

	var out []models.Order
	if err := r.store.Query(ctx, ordersTable, &out, filters...); err != nil {
		return nil, err
	}
	if out == nil {
		return []models.Order{}, nil
	}
	return out, r.attachItems(ctx, out)
}

type statusCount struct {
	Status enums.OrderStatus
	Count  int64
}

// StatusCounts groups orders by status.
func (r *Repository) StatusCounts(ctx context.Context) (map[enums.OrderStatus]int64, error) {
	var rows []statusCount
	err := r.store.DB(ctx).Table(ordersTable).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("count %s by status: %w", ordersTable, err)
	}
	out := make(map[enums.OrderStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// UpdateStatus writes the new status only while the row still holds
// previous, and returns the affected row count.
func (r *Repository) UpdateStatus(ctx context.Context, id uuid.UUID, previous, status enums.OrderStatus, at time.Time) (int64, error) {
	return r.store.Update(ctx, ordersTable, map[string]any{
		"status":     status,
		"updated_at": at,
	}, datastore.Eq("id", id), datastore.Eq("status", previous))
}

func (r *Repository) attachItems(ctx context.Context, orders []models.Order) error {
	if len(orders) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, len(orders))
	for i, o := range orders {
		ids[i] = o.ID
	}
	var items []models.OrderItem
	err := r.store.Query(ctx, itemsTable, &items,
		datastore.In("order_id", ids),
		datastore.OrderBy("created_at", false),
	)
	if err != nil {
		return err
	}
	byOrder := make(map[uuid.UUID][]models.OrderItem, len(orders))
	for _, item := range items {
		byOrder[item.OrderID] = append(byOrder[item.OrderID], item)
	}
	for i := range orders {
		orders[i].Items = byOrder[orders[i].ID]
		if orders[i].Items == nil {
			orders[i].Items = []models.OrderItem{}
		}
	}
	return nil
}
