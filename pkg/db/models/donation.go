package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/storefront-backend/pkg/enums"
)

type Donation struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	DonorName  string               `gorm:"column:donor_name;not null"`
	DonorEmail string               `gorm:"column:donor_email;not null"`
	Amount     decimal.Decimal      `gorm:"column:amount;type:numeric(10,2);not null"`
	Message    *string              `gorm:"column:message"`
	Status     enums.DonationStatus `gorm:"column:status;type:text;not null;default:'completed'"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}

func (Donation) TableName() string { return "donations" }

func (d *Donation) BeforeCreate(*gorm.DB) error {
	if d.ID == uuid.Nil {
		d.ID = uuid.New()
	}
	return nil
}
