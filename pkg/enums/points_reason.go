package enums

// PointsReason maps to the reason column of points_history.
type PointsReason string

const (
	PointsReasonQRScan         PointsReason = "qr_scan"
	PointsReasonVoucherIssued  PointsReason = "voucher_issued"
	PointsReasonAdjustment     PointsReason = "adjustment"
	PointsReasonCampaignPayout PointsReason = "campaign_payout"
	PointsReasonRedemption     PointsReason = "redemption"
)

func (p PointsReason) IsValid() bool {
	switch p {
	case PointsReasonQRScan, PointsReasonVoucherIssued, PointsReasonAdjustment, PointsReasonCampaignPayout, PointsReasonRedemption:
		return true
	}
	return false
}

func ParsePointsReason(value string) (PointsReason, error) {
	return parse(PointsReason(value), "points reason")
}
