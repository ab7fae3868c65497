package enums

import "testing"

func TestRedemptionTypeForReward(t *testing.T) {
	cases := map[RewardType]RedemptionType{
		RewardTypeVoucher:           RedemptionTypeVoucher,
		RewardTypeVoucherRestricted: RedemptionTypeVoucherRestricted,
		RewardTypeFreeProduct:       RedemptionTypeFreeProduct,
		RewardType("unknown"):       RedemptionTypeVoucher,
	}
	for reward, want := range cases {
		if got := RedemptionTypeForReward(reward); got != want {
			t.Fatalf("reward %q: expected %q, got %q", reward, want, got)
		}
	}
}

func TestParsePointsReasonRejectsUnknown(t *testing.T) {
	if _, err := ParsePointsReason("refund"); err == nil {
		t.Fatal("expected error for unknown reason")
	}
	got, err := ParsePointsReason("campaign_payout")
	if err != nil || got != PointsReasonCampaignPayout {
		t.Fatalf("unexpected parse result %q, %v", got, err)
	}
}

func TestParseMemberRole(t *testing.T) {
	role, err := ParseMemberRole("shopkeeper")
	if err != nil || !role.IsValid() {
		t.Fatalf("expected valid shopkeeper role, got %q, %v", role, err)
	}
	if _, err := ParseMemberRole("vendor"); err == nil {
		t.Fatal("expected error for unknown role")
	}
}
