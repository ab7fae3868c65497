package models

import (
	"time"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

// Campaign is owned by a manufacturer and scopes vouchers, QR codes and points.
type Campaign struct {
	ID               int64                     `gorm:"column:id;primaryKey;autoIncrement"`
	ManufacturerID   int64                     `gorm:"column:manufacturer_id;not null;index"`
	Name             string                    `gorm:"column:name;not null"`
	Description      *string                   `gorm:"column:description"`
	RewardType       enums.RewardType          `gorm:"column:reward_type;type:text;not null"`
	StartDate        time.Time                 `gorm:"column:start_date;not null"`
	EndDate          time.Time                 `gorm:"column:end_date;not null"`
	IsActive         bool                      `gorm:"column:is_active;not null"`
	EligibleProducts []CampaignEligibleProduct `gorm:"foreignKey:CampaignID;constraint:OnDelete:CASCADE"`
	CreatedAt        time.Time                 `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time                 `gorm:"column:updated_at;autoUpdateTime"`
}

// ActiveAt reports whether the campaign accepts redemptions at the given instant.
func (c Campaign) ActiveAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	return !now.Before(c.StartDate) && !now.After(c.EndDate)
}

// CampaignEligibleProduct lists a product a campaign's points may be spent on.
type CampaignEligibleProduct struct {
	CampaignID      int64     `gorm:"column:campaign_id;primaryKey"`
	ProductID       int64     `gorm:"column:product_id;primaryKey"`
	PointsCost      int64     `gorm:"column:points_cost;not null;default:0"`
	RedemptionLimit *int      `gorm:"column:redemption_limit"`
	CreatedAt       time.Time `gorm:"column:created_at;autoCreateTime"`
}
