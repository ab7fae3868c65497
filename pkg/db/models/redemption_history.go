package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

// RedemptionHistory is the append-only audit row written once per successful redemption.
type RedemptionHistory struct {
	ID               uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	UserID           int64                `gorm:"column:user_id;not null;index"`
	ResellerID       *int64               `gorm:"column:reseller_id"`
	ShopkeeperID     *int64               `gorm:"column:shopkeeper_id"`
	CampaignID       *int64               `gorm:"column:campaign_id"`
	VoucherID        *int64               `gorm:"column:voucher_id;uniqueIndex"`
	QRCodeID         *int64               `gorm:"column:qr_code_id;uniqueIndex"`
	RedeemedProducts datatypes.JSON       `gorm:"column:redeemed_products;not null"`
	RedemptionValue  decimal.Decimal      `gorm:"column:redemption_value;type:numeric(12,2);not null"`
	Points           int64                `gorm:"column:points;not null;default:0"`
	RedemptionType   enums.RedemptionType `gorm:"column:redemption_type;type:text;not null"`
	CreatedAt        time.Time            `gorm:"column:created_at;not null"`
}

func (RedemptionHistory) TableName() string {
	return "redemption_history"
}

func (h *RedemptionHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
