package redemption

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/promoredeem/internal/catalog"
	"github.com/angelmondragon/promoredeem/internal/eligibility"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
)

// RewardPolicy turns a selection into the redeemed products and their value
// for one campaign reward type.
type RewardPolicy interface {
	RewardType() enums.RewardType
	Resolve(ctx context.Context, in PolicyInput) (Resolution, error)
}

// PolicyInput carries everything a policy may consult. Catalog is bound to the
// redemption transaction.
type PolicyInput struct {
	Voucher   *models.Voucher
	Campaign  *models.Campaign
	Eligible  eligibility.Set
	Selection Selection
	Catalog   catalog.Repository
}

// moneyPlaces matches the numeric(12,2) money columns.
const moneyPlaces = 2

// wholeCents reports whether d fits the money columns without rounding.
func wholeCents(d decimal.Decimal) bool {
	return d.Equal(d.Round(moneyPlaces))
}

// Resolution is the priced outcome of a policy.
type Resolution struct {
	Products []RedeemedProduct
	Value    decimal.Decimal
}

// PolicyFor returns the policy for a campaign reward type.
func PolicyFor(rewardType enums.RewardType) (RewardPolicy, error) {
	switch rewardType {
	case enums.RewardTypeVoucher:
		return itemizedPolicy{}, nil
	case enums.RewardTypeVoucherRestricted:
		return restrictedPolicy{}, nil
	case enums.RewardTypeFreeProduct:
		return freeProductPolicy{}, nil
	default:
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("unsupported reward type %q", rewardType))
	}
}

// itemizedPolicy accepts free-text lines for off-catalog redemptions.
type itemizedPolicy struct{}

func (itemizedPolicy) RewardType() enums.RewardType { return enums.RewardTypeVoucher }

func (itemizedPolicy) Resolve(_ context.Context, in PolicyInput) (Resolution, error) {
	if len(in.Selection.Items) == 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "at least one redeemed item is required")
	}

	out := Resolution{Value: decimal.Zero, Products: make([]RedeemedProduct, 0, len(in.Selection.Items))}
	for i, item := range in.Selection.Items {
		name := strings.TrimSpace(item.Name)
		if name == "" {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %d is missing a name", i))
		}
		if item.Value.IsNegative() {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %q has a negative value", name))
		}
		if !wholeCents(item.Value) {
			return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("item %q has more than %d decimal places", name, moneyPlaces))
		}
		out.Products = append(out.Products, RedeemedProduct{Name: name, Value: item.Value})
		out.Value = out.Value.Add(item.Value)
	}
	return out, nil
}

// restrictedPolicy only allows products from the voucher's eligible set. An
// empty set leaves the voucher unrestricted.
type restrictedPolicy struct{}

func (restrictedPolicy) RewardType() enums.RewardType { return enums.RewardTypeVoucherRestricted }

func (restrictedPolicy) Resolve(ctx context.Context, in PolicyInput) (Resolution, error) {
	ids := in.Selection.ProductIDs
	if len(ids) == 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "product selection is required")
	}
	if bad := eligibility.Ineligible(ids, in.Eligible); len(bad) > 0 {
		return Resolution{}, ineligibleError(bad)
	}
	return priceCatalogSelection(ctx, in.Catalog, ids)
}

// freeProductPolicy restricts the selection to the campaign's eligible
// products, and additionally to the voucher's own set when it has one.
type freeProductPolicy struct{}

func (freeProductPolicy) RewardType() enums.RewardType { return enums.RewardTypeFreeProduct }

func (freeProductPolicy) Resolve(ctx context.Context, in PolicyInput) (Resolution, error) {
	ids := in.Selection.ProductIDs
	if len(ids) == 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "product selection is required")
	}

	rows, err := in.Catalog.ListCampaignEligibleProducts(ctx, in.Campaign.ID)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load campaign eligible products")
	}
	if len(rows) == 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "campaign has no eligible products")
	}
	campaignIDs := make([]int64, 0, len(rows))
	for _, row := range rows {
		campaignIDs = append(campaignIDs, row.ProductID)
	}
	if bad := eligibility.Ineligible(ids, eligibility.NewSet(campaignIDs...)); len(bad) > 0 {
		return Resolution{}, ineligibleError(bad)
	}
	if bad := eligibility.Ineligible(ids, in.Eligible); len(bad) > 0 {
		return Resolution{}, ineligibleError(bad)
	}
	return priceCatalogSelection(ctx, in.Catalog, ids)
}

// priceCatalogSelection sums retail prices, counting a repeated id once per occurrence.
func priceCatalogSelection(ctx context.Context, repo catalog.Repository, ids []int64) (Resolution, error) {
	products, err := repo.GetProductsByIDs(ctx, ids)
	if err != nil {
		return Resolution{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load selected products")
	}

	out := Resolution{Value: decimal.Zero, Products: make([]RedeemedProduct, 0, len(ids))}
	var unknown []int64
	for _, id := range ids {
		product, ok := products[id]
		if !ok {
			unknown = append(unknown, id)
			continue
		}
		productID := product.ID
		out.Products = append(out.Products, RedeemedProduct{
			ProductID: &productID,
			Name:      product.Name,
			Value:     product.RetailPrice,
		})
		out.Value = out.Value.Add(product.RetailPrice)
	}
	if len(unknown) > 0 {
		return Resolution{}, pkgerrors.New(pkgerrors.CodeValidation, "selection contains unknown products").
			WithDetails(map[string]any{"unknown_product_ids": unknown})
	}
	return out, nil
}

func ineligibleError(ids []int64) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "selection contains ineligible products").
		WithDetails(map[string]any{"ineligible_product_ids": ids})
}

// voucherEligibility prefers the association rows and only falls back to the
// legacy serialized column when none exist. A malformed legacy value fails closed.
func voucherEligibility(v *models.Voucher) (eligibility.Set, error) {
	if len(v.EligibleProducts) > 0 {
		ids := make([]int64, 0, len(v.EligibleProducts))
		for _, row := range v.EligibleProducts {
			ids = append(ids, row.ProductID)
		}
		return eligibility.NewSet(ids...), nil
	}
	if v.EligibleProductsJSON == nil {
		return eligibility.Set{}, nil
	}
	set, err := eligibility.Decode(*v.EligibleProductsJSON)
	if err != nil {
		return eligibility.Set{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "voucher eligible product list is malformed")
	}
	return set, nil
}
