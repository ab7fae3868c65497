package controllers

import (
	"net/http"

	"github.com/angelmondragon/promoredeem/api/responses"
	"github.com/angelmondragon/promoredeem/api/validators"
	"github.com/angelmondragon/promoredeem/internal/qrinfo"
	"github.com/angelmondragon/promoredeem/internal/redemption"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
)

const maxPayloadLength = 2048

type resolveQRRequest struct {
	Payload string `json:"payload" validate:"required,max=2048"`
}

type redeemQRRequest struct {
	Points int64 `json:"points" validate:"gte=0"`
}

// ResolveQR turns a raw scanned payload into a read-only preview.
func ResolveQR(resolver qrinfo.Resolver, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if resolver == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "qr resolver unavailable"))
			return
		}

		var req resolveQRRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		info, err := resolver.Resolve(r.Context(), validators.SanitizeString(req.Payload, maxPayloadLength))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, info)
	}
}

// RedeemQRCode credits the authenticated customer with the code's points.
// The body is optional; a points value, when sent, must match the server's.
func RedeemQRCode(svc redemption.Service, logg *logger.Logger) http.HandlerFunc {
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

		var req redeemQRRequest
		if err := validators.DecodeOptionalJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		receipt, err := svc.RedeemQR(r.Context(), code, actor, req.Points)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, receipt)
	}
}
