package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Voucher is a value-bearing code issued to a reseller and redeemed once by a shopkeeper.
type Voucher struct {
	ID                     int64                    `gorm:"column:id;primaryKey;autoIncrement"`
	Code                   string                   `gorm:"column:code;not null;uniqueIndex"`
	ResellerID             int64                    `gorm:"column:reseller_id;not null;index"`
	CampaignID             int64                    `gorm:"column:campaign_id;not null;index"`
	Value                  decimal.Decimal          `gorm:"column:value;type:numeric(12,2);not null"`
	PointsRequired         int64                    `gorm:"column:points_required;not null;default:0"`
	EligibleProductsJSON   *string                  `gorm:"column:eligible_products_json"`
	IsRedeemed             bool                     `gorm:"column:is_redeemed;not null;default:false"`
	RedeemedAt             *time.Time               `gorm:"column:redeemed_at"`
	RedeemedByShopkeeperID *int64                   `gorm:"column:redeemed_by_shopkeeper_id"`
	ExpiresAt              time.Time                `gorm:"column:expires_at;not null"`
	EligibleProducts       []VoucherEligibleProduct `gorm:"foreignKey:VoucherID;constraint:OnDelete:CASCADE"`
	CreatedAt              time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt              time.Time                `gorm:"column:updated_at;autoUpdateTime"`
}

// VoucherEligibleProduct restricts which catalog products a voucher may be spent on.
type VoucherEligibleProduct struct {
	VoucherID int64     `gorm:"column:voucher_id;primaryKey"`
	ProductID int64     `gorm:"column:product_id;primaryKey"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
}

func (VoucherEligibleProduct) TableName() string {
	return "voucher_eligible_products"
}
