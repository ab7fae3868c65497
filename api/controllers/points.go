package controllers

import (
	"net/http"

	"github.com/angelmondragon/promoredeem/api/responses"
	"github.com/angelmondragon/promoredeem/api/validators"
	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

type adjustPointsRequest struct {
	UserID     int64  `json:"user_id" validate:"required,gt=0"`
	CampaignID int64  `json:"campaign_id" validate:"gte=0"`
	Amount     int64  `json:"amount" validate:"required,gt=0"`
	Reason     string `json:"reason" validate:"omitempty,oneof=adjustment campaign_payout"`
}

// PointsBalance reports the actor's global balance, or a campaign-scoped
// summary when campaign_id is given.
func PointsBalance(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		campaignID, err := validators.ParseOptionalQueryInt64(r, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if campaignID != nil {
			summary, err := svc.CampaignBalance(r.Context(), *campaignID, actor)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			responses.WriteSuccess(w, summary)
			return
		}

		balance, err := svc.Balance(r.Context(), actor)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, ledger.Summary{UserID: actor, Available: balance})
	}
}

// PointsHistory pages through the actor's points movements.
func PointsHistory(svc ledger.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}
		actor, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		campaignID, err := validators.ParseOptionalQueryInt64(r, "campaign_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := pageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		page, err := svc.History(r.Context(), ledger.HistoryQuery{UserID: actor, CampaignID: campaignID, Params: params})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, page)
	}
}

// AdminAdjustPoints applies a manual credit or debit. campaign_id 0 targets
// the global balance.
func AdminAdjustPoints(svc ledger.Service, direction ledger.Direction, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "ledger unavailable"))
			return
		}

		var req adjustPointsRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		reason := enums.PointsReasonAdjustment
		if req.Reason != "" {
			parsed, err := enums.ParsePointsReason(req.Reason)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid reason"))
				return
			}
			reason = parsed
		}

		entry, err := svc.Apply(r.Context(), ledger.Movement{
			Direction:  direction,
			UserID:     req.UserID,
			CampaignID: req.CampaignID,
			Amount:     req.Amount,
			Reason:     reason,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, entry)
	}
}
