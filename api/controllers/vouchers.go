package controllers

import (
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/promoredeem/api/responses"
	"github.com/angelmondragon/promoredeem/api/validators"
	"github.com/angelmondragon/promoredeem/internal/redemption"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

type redeemVoucherRequest struct {
	ProductIDs []int64           `json:"product_ids"`
	Items      []redemption.Item `json:"items" validate:"omitempty,dive"`
}

type issueVoucherRequest struct {
	CampaignID     int64           `json:"campaign_id" validate:"required,gt=0"`
	Value          decimal.Decimal `json:"value"`
	PointsRequired int64           `json:"points_required" validate:"gte=0"`
	ProductIDs     []int64         `json:"product_ids"`
	ExpiresAt      *time.Time      `json:"expires_at"`
}

// ValidateVoucher previews a voucher or QR code without changing it.
func ValidateVoucher(svc redemption.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}
		code, err := codeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		preview, err := svc.Validate(r.Context(), code)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, preview)
	}
}

// RedeemVoucher redeems a voucher on behalf of the authenticated shopkeeper.
func RedeemVoucher(svc redemption.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		code, err := codeParam(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req redeemVoucherRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.Redeem(r.Context(), code, actor, redemption.Selection{
			ProductIDs: req.ProductIDs,
			Items:      req.Items,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}

// IssueVoucher spends the reseller's campaign points on a new voucher.
// Vouchers without an explicit expiry live for defaultTTL.
func IssueVoucher(svc redemption.Service, defaultTTL time.Duration, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req issueVoucherRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		expiresAt := time.Now().UTC().Add(defaultTTL)
		if req.ExpiresAt != nil {
			expiresAt = req.ExpiresAt.UTC()
		}

		issued, err := svc.IssueVoucher(r.Context(), redemption.IssueVoucherInput{
			ResellerID:     actor,
			CampaignID:     req.CampaignID,
			Value:          req.Value,
			PointsRequired: req.PointsRequired,
			ProductIDs:     req.ProductIDs,
			ExpiresAt:      expiresAt,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, issued)
	}
}

// ListRedemptions returns the actor's redemption history, newest first.
func ListRedemptions(svc redemption.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "redemption service unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.ListHistory(r.Context(), redemption.HistoryQuery{ActorID: actor, Params: params})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}
