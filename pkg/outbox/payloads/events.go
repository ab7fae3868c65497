package payloads

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/promoredeem/pkg/enums"
)

// VoucherIssuedEvent is emitted when a reseller converts campaign points into a voucher.
type VoucherIssuedEvent struct {
	VoucherID      int64           `json:"voucher_id"`
	Code           string          `json:"code"`
	ResellerID     int64           `json:"reseller_id"`
	CampaignID     int64           `json:"campaign_id"`
	Value          decimal.Decimal `json:"value"`
	PointsRequired int64           `json:"points_required"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

// VoucherRedeemedEvent is emitted once a shopkeeper consumes a voucher.
type VoucherRedeemedEvent struct {
	VoucherID       int64                `json:"voucher_id"`
	Code            string               `json:"code"`
	CampaignID      int64                `json:"campaign_id"`
	ResellerID      int64                `json:"reseller_id"`
	ShopkeeperID    int64                `json:"shopkeeper_id"`
	HistoryID       string               `json:"history_id"`
	RedemptionType  enums.RedemptionType `json:"redemption_type"`
	RedemptionValue decimal.Decimal      `json:"redemption_value"`
	RedeemedAt      time.Time            `json:"redeemed_at"`
}

// QRCodeRedeemedEvent is emitted when a customer scans a campaign QR code.
type QRCodeRedeemedEvent struct {
	QRCodeID   int64     `json:"qr_code_id"`
	Code       string    `json:"code"`
	CampaignID int64     `json:"campaign_id"`
	CustomerID int64     `json:"customer_id"`
	HistoryID  string    `json:"history_id"`
	Points     int64     `json:"points"`
	RedeemedAt time.Time `json:"redeemed_at"`
}

// PointsMovementEvent describes a single credit or debit applied to a balance.
type PointsMovementEvent struct {
	UserID       int64              `json:"user_id"`
	CampaignID   int64              `json:"campaign_id"`
	Delta        int64              `json:"delta"`
	BalanceAfter int64              `json:"balance_after"`
	Reason       enums.PointsReason `json:"reason"`
	HistoryID    string             `json:"history_id"`
}
