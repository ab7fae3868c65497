package controllers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/promoredeem/api/responses"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// DeadLetterStore reads outbox events the publisher parked.
type DeadLetterStore interface {
	List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type deadLetterPage struct {
	Items      []models.OutboxDLQ `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// ListDeadLetters pages through parked outbox events, newest first.
// event_type and reason narrow the listing.
func ListDeadLetters(store DeadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		filter, params, err := deadLetterFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		rows, err := store.List(r.Context(), filter)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list dead letters"))
			return
		}
		items, next := pagination.Page(rows, params.Limit, func(row models.OutboxDLQ) pagination.Cursor {
			return pagination.Cursor{CreatedAt: row.FailedAt, ID: row.ID}
		})
		if items == nil {
			items = []models.OutboxDLQ{}
		}
		responses.WriteSuccess(w, deadLetterPage{Items: items, NextCursor: next})
	}
}

// GetDeadLetter returns the parked copy of one outbox event.
func GetDeadLetter(store DeadLetterStore, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		eventID, err := uuid.Parse(chi.URLParam(r, "eventID"))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "event id must be a uuid"))
			return
		}

		row, err := store.Get(r.Context(), eventID)
		switch {
		case err != nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load dead letter"))
		case row == nil:
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "dead letter not found"))
		default:
			responses.WriteSuccess(w, row)
		}
	}
}

func deadLetterFilter(r *http.Request) (outbox.DLQFilter, pagination.Params, error) {
	params, err := pageParams(r)
	if err != nil {
		return outbox.DLQFilter{}, params, err
	}
	after, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return outbox.DLQFilter{}, params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	filter := outbox.DLQFilter{After: after, Limit: pagination.LimitWithBuffer(params.Limit)}

	query := r.URL.Query()
	if raw := query.Get("event_type"); raw != "" {
		eventType, err := enums.ParseOutboxEventType(raw)
		if err != nil {
			return filter, params, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "unknown event_type")
		}
		filter.EventType = eventType
	}
	if raw := query.Get("reason"); raw != "" {
		reason, ok := enums.ParseOutboxDLQErrorReason(raw)
		if !ok {
			return filter, params, pkgerrors.New(pkgerrors.CodeValidation, "unknown reason").
				WithDetails(map[string]any{"reason": raw})
		}
		filter.Reason = reason
	}
	return filter, params, nil
}
