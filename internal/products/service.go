// Package products implements the admin catalog: saving, deleting and
// summarising products.
package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/storefront-backend/pkg/datastore"
	"github.com/angelmondragon/storefront-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/storefront-backend/pkg/errors"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/pricing"
	"github.com/angelmondragon/storefront-backend/pkg/validation"
)

type repository interface {
	ListAll(ctx context.Context) ([]models.Product, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	Create(ctx context.Context, p *models.Product) error
	Update(ctx context.Context, p *models.Product) (int64, error)
	Delete(ctx context.Context, id uuid.UUID) (int64, error)
	Stats(ctx context.Context) (Stats, error)
}

// Draft is an admin edit. A nil ID creates a new product.
type Draft struct {
	ID              *uuid.UUID      `json:"id,omitempty"`
	Name            string          `json:"name" validate:"trimmed_required,max=200"`
	Price           decimal.Decimal `json:"price"`
	DiscountPercent int             `json:"discountPercent" validate:"min=0,max=100"`
	Description     *string         `json:"description,omitempty"`
	Image           *string         `json:"image,omitempty"`
	Category        *string         `json:"category,omitempty"`
	Popular         bool            `json:"popular"`
	Stock           *int            `json:"stock,omitempty" validate:"omitempty,min=0"`
}

// Service runs admin catalog mutations.
type Service struct {
	repo repository
	logg *logger.Logger
}

func NewService(repo repository, logg *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Service{repo: repo, logg: logg}, nil
}

// Validate checks a draft and reports every failing field.
func (d Draft) Validate() error {
	fields := validation.FieldErrors{}
	if err := validation.Collect(d, fields); err != nil {
		return err
	}
	if d.Price.IsNegative() {
		fields.Add("price", "must be at least 0")
	}
	if d.Price.GreaterThan(pricing.MaxAmount) {
		fields.Add("price", "must be at most "+pricing.MaxAmount.StringFixed(pricing.CentPlaces))
	}
	if d.Image != nil && strings.TrimSpace(*d.Image) != "" {
		if _, err := ValidateImage(strings.TrimSpace(*d.Image)); err != nil {
			fields.Add("image", err.Error())
		}
	}
	return fields.Err("invalid product")
}

// Save inserts the draft or updates the product it names. created reports
// which happened.
func (s *Service) Save(ctx context.Context, d Draft) (product *models.Product, created bool, err error) {
	if err := d.Validate(); err != nil {
		return nil, false, err
	}

	if d.ID == nil || *d.ID == uuid.Nil {
		p := &models.Product{}
		d.applyTo(p)
		if err := s.repo.Create(ctx, p); err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save product")
		}
		s.logg.Info(s.logg.WithField(ctx, "product_id", p.ID.String()), "product.created")
		return p, true, nil
	}

	existing, err := s.repo.Get(ctx, *d.ID)
	if errors.Is(err, datastore.ErrNotFound) {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product")
	}
	d.applyTo(existing)
	rows, err := s.repo.Update(ctx, existing)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "save product")
	}
	if rows == 0 {
		return nil, false, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", existing.ID.String()), "product.updated")
	return existing, false, nil
}

// Delete hard deletes a product.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	rows, err := s.repo.Delete(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "delete product")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	s.logg.Info(s.logg.WithField(ctx, "product_id", id.String()), "product.deleted")
	return nil
}

func (s *Service) List(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list products")
	}
	return products, nil
}

func (s *Service) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.repo.Stats(ctx)
	if err != nil {
		return Stats{}, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load product stats")
	}
	return stats, nil
}

func (d Draft) applyTo(p *models.Product) {
	p.Name = strings.TrimSpace(d.Name)
	p.Price = d.Price
	p.DiscountPercent = d.DiscountPercent
	p.Description = trimmedOrNil(d.Description)
	p.Image = trimmedOrNil(d.Image)
	p.Category = trimmedOrNil(d.Category)
	p.Popular = d.Popular
	p.Stock = d.Stock
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
