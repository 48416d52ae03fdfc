package catalog

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
)

// Source loads every product, newest first.
type Source interface {
	ListAll(ctx context.Context) ([]models.Product, error)
}

// Catalog holds the product snapshot served to shoppers. It is refreshed at
// start and after every admin mutation; a failed refresh keeps the previous
// snapshot.
type Catalog struct {
	mu       sync.RWMutex
	products []models.Product
	byID     map[uuid.UUID]int
	loadedAt time.Time

	source Source
	logg   *logger.Logger
}

// New builds an empty catalog bound to source.
func New(source Source, logg *logger.Logger) *Catalog {
	if logg == nil {
		logg = logger.Nop()
	}
	return &Catalog{source: source, logg: logg, products: []models.Product{}, byID: map[uuid.UUID]int{}}
}

// Refresh reloads the snapshot from the source.
func (c *Catalog) Refresh(ctx context.Context) error {
	if c.source == nil {
		return fmt.Errorf("catalog source not configured")
	}
	products, err := c.source.ListAll(ctx)
	if err != nil {
		c.logg.Error(ctx, "catalog.refresh_failed", err)
		return fmt.Errorf("load products: %w", err)
	}
	c.Replace(products)
	c.logg.Debug(c.logg.WithField(ctx, "products", len(products)), "catalog.refreshed")
	return nil
}

// Replace swaps in a new snapshot.
func (c *Catalog) Replace(products []models.Product) {
	snapshot := make([]models.Product, len(products))
	copy(snapshot, products)
	index := make(map[uuid.UUID]int, len(snapshot))
	for i, p := range snapshot {
		index[p.ID] = i
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.products = snapshot
	c.byID = index
	c.loadedAt = time.Now().UTC()
}

// Products returns a copy of the snapshot.
func (c *Catalog) Products() []models.Product {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]models.Product, len(c.products))
	copy(out, c.products)
	return out
}

// Get looks up a product by id.
func (c *Catalog) Get(id uuid.UUID) (models.Product, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	i, ok := c.byID[id]
	if !ok {
		return models.Product{}, false
	}
	return c.products[i], true
}

// LoadedAt reports when the snapshot was last replaced.
func (c *Catalog) LoadedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loadedAt
}

func (c *Catalog) Search(params Params) []models.Product {
	return Search(c.Products(), params)
}

func (c *Catalog) Suggest(query string, limit int) []models.Product {
	return Suggest(c.Products(), query, limit)
}

func (c *Catalog) Categories() []string {
	return Categories(c.Products())
}
