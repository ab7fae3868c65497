package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

// GlobalCampaignID scopes a points balance to the user as a whole.
const GlobalCampaignID int64 = 0

// PointsBalance is the running total for a (user, campaign) scope.
type PointsBalance struct {
	UserID     int64     `gorm:"column:user_id;primaryKey"`
	CampaignID int64     `gorm:"column:campaign_id;primaryKey"`
	Balance    int64     `gorm:"column:balance;not null;default:0"`
	Earned     int64     `gorm:"column:earned;not null;default:0"`
	Used       int64     `gorm:"column:used;not null;default:0"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// PointsHistory records a signed delta applied to a PointsBalance.
type PointsHistory struct {
	ID            uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	UserID        int64              `gorm:"column:user_id;not null;index:idx_points_history_scope"`
	CampaignID    int64              `gorm:"column:campaign_id;not null;index:idx_points_history_scope"`
	Delta         int64              `gorm:"column:delta;not null"`
	BalanceAfter  int64              `gorm:"column:balance_after;not null"`
	Reason        enums.PointsReason `gorm:"column:reason;type:text;not null"`
	ReferenceType *string            `gorm:"column:reference_type"`
	ReferenceID   *string            `gorm:"column:reference_id"`
	CreatedAt     time.Time          `gorm:"column:created_at;not null"`
}

func (PointsHistory) TableName() string {
	return "points_history"
}

func (h *PointsHistory) BeforeCreate(*gorm.DB) error {
	if h.ID == uuid.Nil {
		h.ID = uuid.New()
	}
	return nil
}
