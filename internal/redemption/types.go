package redemption

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/promoredeem/pkg/enums"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// Kind tells which table a code was found in.
type Kind string

const (
	KindVoucher Kind = "voucher"
	KindQRCode  Kind = "qr_code"
)

// EligibleProduct is a catalog product a code may be spent on.
type EligibleProduct struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	RetailPrice decimal.Decimal `json:"retail_price"`
	PointsCost  *int64          `json:"points_cost,omitempty"`
}

// Preview is the read-only projection returned by Validate.
type Preview struct {
	Kind             Kind              `json:"kind"`
	Code             string            `json:"code"`
	Value            decimal.Decimal   `json:"value"`
	PointsRequired   int64             `json:"points_required"`
	Points           int64             `json:"points"`
	ResellerID       *int64            `json:"reseller_id,omitempty"`
	ResellerName     string            `json:"reseller_name,omitempty"`
	CampaignID       int64             `json:"campaign_id"`
	CampaignName     string            `json:"campaign_name"`
	RewardType       enums.RewardType  `json:"reward_type"`
	EligibleProducts []EligibleProduct `json:"eligible_products"`
	ExpiresAt        *time.Time        `json:"expires_at,omitempty"`
}

// Item is one manually itemized line for the voucher reward type.
type Item struct {
	Name  string          `json:"name" validate:"required"`
	Value decimal.Decimal `json:"value"`
}

// Selection is what the redeeming actor asks for. Catalog reward types use
// ProductIDs; the itemized voucher type uses Items.
type Selection struct {
	ProductIDs []int64 `json:"product_ids,omitempty"`
	Items      []Item  `json:"items,omitempty"`
}

// RedeemedProduct is one line of the snapshot stored with the history row.
type RedeemedProduct struct {
	ProductID *int64          `json:"product_id,omitempty"`
	Name      string          `json:"name"`
	Value     decimal.Decimal `json:"value"`
}

// Receipt is returned after a successful redemption.
type Receipt struct {
	HistoryID      uuid.UUID            `json:"history_id"`
	Kind           Kind                 `json:"kind"`
	Code           string               `json:"code"`
	CampaignID     int64                `json:"campaign_id"`
	RedemptionType enums.RedemptionType `json:"redemption_type"`
	RedeemedValue  decimal.Decimal      `json:"redeemed_value"`
	Points         int64                `json:"points"`
	Products       []RedeemedProduct    `json:"products"`
	BalanceAfter   *int64               `json:"balance_after,omitempty"`
	RedeemedAt     time.Time            `json:"redeemed_at"`
}

// IssueVoucherInput describes a voucher a reseller buys with campaign points.
type IssueVoucherInput struct {
	ResellerID     int64
	CampaignID     int64
	Value          decimal.Decimal
	PointsRequired int64
	ProductIDs     []int64
	ExpiresAt      time.Time
}

// IssuedVoucher is the result of IssueVoucher.
type IssuedVoucher struct {
	ID             int64           `json:"id"`
	Code           string          `json:"code"`
	CampaignID     int64           `json:"campaign_id"`
	Value          decimal.Decimal `json:"value"`
	PointsRequired int64           `json:"points_required"`
	ProductIDs     []int64         `json:"product_ids"`
	ExpiresAt      time.Time       `json:"expires_at"`
}

type HistoryQuery struct {
	ActorID int64
	Params  pagination.Params
}

// HistoryEntry is the API projection of a redemption_history row.
type HistoryEntry struct {
	ID               uuid.UUID            `json:"id"`
	UserID           int64                `json:"user_id"`
	ResellerID       *int64               `json:"reseller_id,omitempty"`
	ShopkeeperID     *int64               `json:"shopkeeper_id,omitempty"`
	CampaignID       *int64               `json:"campaign_id,omitempty"`
	VoucherID        *int64               `json:"voucher_id,omitempty"`
	QRCodeID         *int64               `json:"qr_code_id,omitempty"`
	RedeemedProducts json.RawMessage      `json:"redeemed_products"`
	RedemptionValue  decimal.Decimal      `json:"redemption_value"`
	Points           int64                `json:"points"`
	RedemptionType   enums.RedemptionType `json:"redemption_type"`
	CreatedAt        time.Time            `json:"created_at"`
}

type HistoryPage struct {
	Items      []HistoryEntry `json:"items"`
	NextCursor string         `json:"next_cursor,omitempty"`
}
