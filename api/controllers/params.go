package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/promoredeem/api/middleware"
	"github.com/angelmondragon/promoredeem/api/validators"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

const maxCodeLength = 64

func pageParams(r *http.Request) (pagination.Params, error) {
	limit, err := validators.ParseQueryInt(r, "limit", pagination.DefaultLimit, 1, pagination.MaxLimit)
	if err != nil {
		return pagination.Params{}, err
	}
	return pagination.Params{
		Limit:  limit,
		Cursor: strings.TrimSpace(r.URL.Query().Get("cursor")),
	}, nil
}

func codeParam(r *http.Request) (string, error) {
	code := validators.SanitizeString(chi.URLParam(r, "code"), maxCodeLength)
	if code == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "code is required")
	}
	return code, nil
}

func actorID(r *http.Request) (int64, error) {
	id := middleware.UserIDFromContext(r.Context())
	if id <= 0 {
		return 0, pkgerrors.New(pkgerrors.CodeUnauthorized, "actor context missing")
	}
	return id, nil
}
