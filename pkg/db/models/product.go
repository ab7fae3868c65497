package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a read-only catalog entry.
type Product struct {
	ID            int64           `gorm:"column:id;primaryKey;autoIncrement"`
	Name          string          `gorm:"column:name;not null"`
	BasePrice     decimal.Decimal `gorm:"column:base_price;type:numeric(12,2);not null"`
	ResellerPrice decimal.Decimal `gorm:"column:reseller_price;type:numeric(12,2);not null"`
	RetailPrice   decimal.Decimal `gorm:"column:retail_price;type:numeric(12,2);not null"`
	PointsPerUnit int64           `gorm:"column:points_per_unit;not null;default:0"`
	CreatedAt     time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
