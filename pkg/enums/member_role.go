package enums

// MemberRole is the platform role carried in access tokens. Each role owns
// one step of the promotion flow: manufacturers fund campaigns, resellers
// issue vouchers, shopkeepers redeem them and customers scan QR codes.
type MemberRole string

const (
	MemberRoleManufacturer MemberRole = "manufacturer"
	MemberRoleReseller     MemberRole = "reseller"
	MemberRoleShopkeeper   MemberRole = "shopkeeper"
	MemberRoleCustomer     MemberRole = "customer"
	MemberRoleAdmin        MemberRole = "admin"
)

func (m MemberRole) String() string { return string(m) }

func (m MemberRole) IsValid() bool {
	switch m {
	case MemberRoleManufacturer, MemberRoleReseller, MemberRoleShopkeeper,
		MemberRoleCustomer, MemberRoleAdmin:
		return true
	}
	return false
}

func ParseMemberRole(value string) (MemberRole, error) {
	return parse(MemberRole(value), "member role")
}
