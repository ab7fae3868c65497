package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
)

func newOutboxTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:outbox_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.OutboxEvent{}, &models.OutboxDLQ{}))
	return conn
}

func TestEmitWritesEnvelopeInsideTransaction(t *testing.T) {
	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	err := db.Transaction(func(tx *gorm.DB) error {
		return svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventVoucherRedeemed,
			AggregateType: enums.AggregateVoucher,
			AggregateID:   "42",
			Actor:         &ActorRef{UserID: 9, Role: "shopkeeper"},
			Data:          map[string]any{"voucher_id": 42},
		})
	})
	require.NoError(t, err)

	var rows []models.OutboxEvent
	require.NoError(t, db.Find(&rows).Error)
	require.Len(t, rows, 1)
	assert.Equal(t, "42", rows[0].AggregateID)

	var envelope PayloadEnvelope
	require.NoError(t, json.Unmarshal(rows[0].Payload, &envelope))
	assert.Equal(t, 1, envelope.Version)
	assert.NotEmpty(t, envelope.EventID)
	require.NotNil(t, envelope.Actor)
	assert.Equal(t, int64(9), envelope.Actor.UserID)
	assert.JSONEq(t, `{"voucher_id":42}`, string(envelope.Data))
}

func TestEmitRolledBackWithTransaction(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	boom := errors.New("boom")
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := svc.Emit(context.Background(), tx, DomainEvent{
			EventType:     enums.EventQRCodeRedeemed,
			AggregateType: enums.AggregateQRCode,
			AggregateID:   "1",
			Data:          map[string]any{},
		}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	var count int64
	require.NoError(t, db.Model(&models.OutboxEvent{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestEmitRejectsInvalidEvents(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)

	require.ErrorIs(t, svc.Emit(context.Background(), nil, DomainEvent{}), ErrNoTransaction)
	require.Error(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.OutboxEventType("nope"),
		AggregateType: enums.AggregateVoucher,
		AggregateID:   "1",
	}))
	require.Error(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventVoucherIssued,
		AggregateType: enums.AggregateVoucher,
	}))
}

func TestRepositoryPublishLifecycle(t *testing.T) {
	db := newOutboxTestDB(t)
	repo := NewRepository(db)
	svc := NewService(repo, nil)

	for _, id := range []string{"1", "2"} {
		require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
			EventType:     enums.EventPointsCredited,
			AggregateType: enums.AggregatePointsBalance,
			AggregateID:   id,
			Data:          map[string]any{"delta": 5},
		}))
	}

	pending, err := repo.ClaimPending(db, 10, 3)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	require.NoError(t, repo.MarkPublished(db, pending[0].ID))
	require.NoError(t, repo.Exhaust(db, pending[1].ID, errors.New("gave up"), 3))

	pending, err = repo.ClaimPending(db, 10, 3)
	require.NoError(t, err)
	assert.Empty(t, pending)

	count, err := repo.CountPending(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestDecodeEnvelope(t *testing.T) {
	env, err := DecodeEnvelope([]byte(`{"version":2,"eventId":"e1","data":{"a":1}}`))
	require.NoError(t, err)
	assert.Equal(t, 2, env.Version)
	assert.JSONEq(t, `{"a":1}`, string(env.Data))

	_, err = DecodeEnvelope([]byte(`{"version":1,"data":null}`))
	require.ErrorIs(t, err, ErrEmptyData)

	_, err = DecodeEnvelope([]byte(`{"data":`))
	require.Error(t, err)
}

func TestEmitStampsServiceClockWhenOccurredAtMissing(t *testing.T) {
	db := newOutboxTestDB(t)
	svc := NewService(NewRepository(db), nil)
	fixed := time.Date(2026, 5, 1, 9, 30, 0, 0, time.FixedZone("x", 3600))
	svc.now = func() time.Time { return fixed }

	require.NoError(t, svc.Emit(context.Background(), db, DomainEvent{
		EventType:     enums.EventVoucherIssued,
		AggregateType: enums.AggregateVoucher,
		AggregateID:   "3",
		Data:          map[string]any{"code": "ABC"},
	}))

	var row models.OutboxEvent
	require.NoError(t, db.First(&row).Error)
	env, err := DecodeEnvelope(row.Payload)
	require.NoError(t, err)
	assert.True(t, env.OccurredAt.Equal(fixed))
	assert.Equal(t, time.UTC, env.OccurredAt.Location())
	assert.Equal(t, EnvelopeVersion, env.Version)
}
