package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Product is a catalog listing managed from the admin console.
type Product struct {
	ID              uuid.UUID       `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string          `gorm:"column:name;not null" json:"name"`
	Price           decimal.Decimal `gorm:"column:price;type:numeric(10,2);not null" json:"price"`
	DiscountPercent int             `gorm:"column:discount_percent;not null;default:0" json:"discountPercent"`
	Description     *string         `gorm:"column:description" json:"description,omitempty"`
	Image           *string         `gorm:"column:image" json:"image,omitempty"`
	Category        *string         `gorm:"column:category" json:"category,omitempty"`
	Popular         bool            `gorm:"column:popular;not null;default:false" json:"popular"`
	Stock           *int            `gorm:"column:stock" json:"stock,omitempty"`
	CreatedAt       time.Time       `gorm:"column:created_at;autoCreateTime" json:"createdAt"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;autoUpdateTime" json:"updatedAt"`
}

func (Product) TableName() string { return "products" }

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CategoryName returns the category or an empty string.
func (p Product) CategoryName() string {
	if p.Category == nil {
		return ""
	}
	return *p.Category
}

// DescriptionText returns the description or an empty string.
func (p Product) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}
