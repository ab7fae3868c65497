package enums

// RewardType selects how a campaign's vouchers are spent.
type RewardType string

const (
	RewardTypeVoucher           RewardType = "voucher"
	RewardTypeVoucherRestricted RewardType = "voucher_restricted"
	RewardTypeFreeProduct       RewardType = "free_product"
)

func (r RewardType) String() string {
	return string(r)
}

func (r RewardType) IsValid() bool {
	switch r {
	case RewardTypeVoucher, RewardTypeVoucherRestricted, RewardTypeFreeProduct:
		return true
	}
	return false
}

func ParseRewardType(value string) (RewardType, error) {
	return parse(RewardType(value), "reward type")
}
