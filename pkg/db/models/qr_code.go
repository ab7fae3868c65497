package models

import "time"

// QRCode is a campaign code that credits points to the customer who scans it.
type QRCode struct {
	ID                   int64      `gorm:"column:id;primaryKey;autoIncrement"`
	Code                 string     `gorm:"column:code;not null;uniqueIndex"`
	CampaignID           int64      `gorm:"column:campaign_id;not null;index"`
	ResellerID           *int64     `gorm:"column:reseller_id"`
	Points               int64      `gorm:"column:points;not null;default:0"`
	ExpiresAt            *time.Time `gorm:"column:expires_at"`
	IsRedeemed           bool       `gorm:"column:is_redeemed;not null;default:false"`
	RedeemedAt           *time.Time `gorm:"column:redeemed_at"`
	RedeemedByCustomerID *int64     `gorm:"column:redeemed_by_customer_id"`
	CreatedAt            time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (QRCode) TableName() string {
	return "qr_codes"
}
