package enums

// RedemptionType labels a redemption history row.
type RedemptionType string

const (
	RedemptionTypeVoucher           RedemptionType = "voucher"
	RedemptionTypeVoucherRestricted RedemptionType = "voucher_restricted"
	RedemptionTypeFreeProduct       RedemptionType = "free_product"
	RedemptionTypeQRPoints          RedemptionType = "qr_points"
)

func (r RedemptionType) IsValid() bool {
	switch r {
	case RedemptionTypeVoucher, RedemptionTypeVoucherRestricted, RedemptionTypeFreeProduct, RedemptionTypeQRPoints:
		return true
	}
	return false
}

func ParseRedemptionType(value string) (RedemptionType, error) {
	return parse(RedemptionType(value), "redemption type")
}

// RedemptionTypeForReward maps a campaign reward type onto the history label.
func RedemptionTypeForReward(r RewardType) RedemptionType {
	switch r {
	case RewardTypeVoucherRestricted:
		return RedemptionTypeVoucherRestricted
	case RewardTypeFreeProduct:
		return RedemptionTypeFreeProduct
	default:
		return RedemptionTypeVoucher
	}
}
