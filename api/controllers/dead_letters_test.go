package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

type testDeadLetters struct {
	listFn func(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error)
	getFn  func(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

func (s *testDeadLetters) List(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
	return s.listFn(ctx, filter)
}

func (s *testDeadLetters) Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	return s.getFn(ctx, eventID)
}

func withEventID(req *http.Request, id string) *http.Request {
	rc := chi.NewRouteContext()
	rc.URLParams.Add("eventID", id)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rc))
}

func TestListDeadLettersAppliesFiltersAndPages(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	rows := []models.OutboxDLQ{
		{ID: uuid.New(), EventID: uuid.New(), EventType: enums.EventVoucherRedeemed, FailedAt: base},
		{ID: uuid.New(), EventID: uuid.New(), EventType: enums.EventVoucherRedeemed, FailedAt: base.Add(-time.Minute)},
		{ID: uuid.New(), EventID: uuid.New(), EventType: enums.EventVoucherRedeemed, FailedAt: base.Add(-2 * time.Minute)},
	}
	var got outbox.DLQFilter
	store := &testDeadLetters{
		listFn: func(ctx context.Context, filter outbox.DLQFilter) ([]models.OutboxDLQ, error) {
			got = filter
			return rows, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/outbox/dead-letters?limit=2&event_type=voucher_redeemed&reason=max_attempts", nil)
	resp := httptest.NewRecorder()
	ListDeadLetters(store, testLogger())(resp, req)

	require.Equal(t, http.StatusOK, resp.Code, resp.Body.String())
	require.Equal(t, enums.EventVoucherRedeemed, got.EventType)
	require.Equal(t, enums.OutboxDLQReasonMaxAttempts, got.Reason)
	require.Equal(t, 3, got.Limit)
	require.Nil(t, got.After)

	var envelope struct {
		Data struct {
			Items      []models.OutboxDLQ `json:"items"`
			NextCursor string             `json:"next_cursor"`
		} `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&envelope))
	require.Len(t, envelope.Data.Items, 2)

	cursor, err := pagination.ParseCursor(envelope.Data.NextCursor)
	require.NoError(t, err)
	require.Equal(t, rows[1].ID, cursor.ID)
	require.True(t, rows[1].FailedAt.Equal(cursor.CreatedAt))
}

func TestListDeadLettersRejectsUnknownReason(t *testing.T) {
	store := &testDeadLetters{
		listFn: func(context.Context, outbox.DLQFilter) ([]models.OutboxDLQ, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/outbox/dead-letters?reason=gremlins", nil)
	resp := httptest.NewRecorder()
	ListDeadLetters(store, testLogger())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestListDeadLettersRejectsBadCursor(t *testing.T) {
	store := &testDeadLetters{
		listFn: func(context.Context, outbox.DLQFilter) ([]models.OutboxDLQ, error) {
			t.Fatal("store must not be called")
			return nil, nil
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/outbox/dead-letters?cursor=not-a-cursor", nil)
	resp := httptest.NewRecorder()
	ListDeadLetters(store, testLogger())(resp, req)

	require.Equal(t, http.StatusBadRequest, resp.Code)
}

func TestGetDeadLetter(t *testing.T) {
	known := uuid.New()
	store := &testDeadLetters{
		getFn: func(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
			if eventID == known {
				return &models.OutboxDLQ{ID: uuid.New(), EventID: known, ErrorReason: enums.OutboxDLQReasonNonRetryable}, nil
			}
			return nil, nil
		},
	}

	cases := []struct {
		name   string
		id     string
		status int
	}{
		{name: "found", id: known.String(), status: http.StatusOK},
		{name: "missing", id: uuid.NewString(), status: http.StatusNotFound},
		{name: "malformed", id: "42", status: http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := withEventID(httptest.NewRequest(http.MethodGet, "/outbox/dead-letters/"+tc.id, nil), tc.id)
			resp := httptest.NewRecorder()
			GetDeadLetter(store, testLogger())(resp, req)
			require.Equal(t, tc.status, resp.Code, resp.Body.String())
		})
	}
}
