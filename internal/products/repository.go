package products

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/datastore"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
)

const table = "products"

// Repository persists catalog products.
type Repository struct {
	store *datastore.Store
}

// NewRepository binds a repository to db.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{store: datastore.New(db)}
}

// ListAll returns every product, newest first.
func (r *Repository) ListAll(ctx context.Context) ([]models.Product, error) {
	var out []models.Product
	err := r.store.Query(ctx, table, &out,
		datastore.OrderBy("created_at", true),
		datastore.OrderBy("id", true),
	)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []models.Product{}
	}
	return out, nil
}

// Get loads one product; datastore.ErrNotFound when missing.
func (r *Repository) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var p models.Product
	if err := r.store.First(ctx, table, &p, datastore.Eq("id", id)); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *Repository) Create(ctx context.Context, p *models.Product) error {
	return r.store.Insert(ctx, table, p)
}

// Update writes every editable column and returns the affected row count.
func (r *Repository) Update(ctx context.Context, p *models.Product) (int64, error) {
	p.UpdatedAt = time.Now().UTC()
	return r.store.Update(ctx, table, map[string]any{
		"name":             p.Name,
		"price":            p.Price,
		"discount_percent": p.DiscountPercent,
		"description":      p.Description,
		"image":            p.Image,
		"category":         p.Category,
		"popular":          p.Popular,
		"stock":            p.Stock,
		"updated_at":       p.UpdatedAt,
	}, datastore.Eq("id", p.ID))
}

func (r *Repository) Delete(ctx context.Context, id uuid.UUID) (int64, error) {
	return r.store.Delete(ctx, table, &models.Product{}, datastore.Eq("id", id))
}

// Stats summarises the catalog for the admin dashboard.
type Stats struct {
	TotalProducts int64           `json:"totalProducts"`
	OnSale        int64           `json:"onSale"`
	Popular       int64           `json:"popular"`
	AveragePrice  decimal.Decimal `json:"averagePrice"`
}

func (r *Repository) Stats(ctx context.Context) (Stats, error) {
	var prices []decimal.Decimal
	if err := r.store.DB(ctx).Table(table).Pluck("price", &prices).Error; err != nil {
		return Stats{}, err
	}
	onSale, err := r.store.Count(ctx, table, func(db *gorm.DB) *gorm.DB {
		return db.Where("discount_percent > ?", 0)
	})
	if err != nil {
		return Stats{}, err
	}
	popular, err := r.store.Count(ctx, table, datastore.Eq("popular", true))
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalProducts: int64(len(prices)),
		OnSale:        onSale,
		Popular:       popular,
		AveragePrice:  decimal.Zero,
	}
	if len(prices) > 0 {
		stats.AveragePrice = decimal.Sum(decimal.Zero, prices...).
			DivRound(decimal.NewFromInt(int64(len(prices))), 2)
	}
	return stats, nil
}
