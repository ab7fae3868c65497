package cron

import (
	"context"
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
	"github.com/angelmondragon/promoredeem/pkg/logger"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
)

type gormTxRunner struct{ db *gorm.DB }

func (r gormTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

type failingRetentionRepo struct{}

func (failingRetentionRepo) Purge(context.Context, *gorm.DB, time.Time, int) (int64, error) {
	return 0, errors.New("boom")
}

func TestOutboxRetentionJobPurgesExpiredRows(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:retention_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.OutboxEvent{}))

	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)
	stale := now.Add(-40 * 24 * time.Hour)
	fresh := now.Add(-24 * time.Hour)
	events := []models.OutboxEvent{
		{AggregateID: "stale-published", PublishedAt: &stale},
		{AggregateID: "fresh-published", PublishedAt: &fresh},
		{AggregateID: "stale-exhausted", AttemptCount: 3},
		{AggregateID: "stale-pending", AttemptCount: 1},
	}
	for i := range events {
		events[i].EventType = enums.EventPointsCredited
		events[i].AggregateType = enums.AggregatePointsBalance
		events[i].Payload = []byte(`{}`)
		require.NoError(t, db.Create(&events[i]).Error)
	}
	require.NoError(t, db.Model(&models.OutboxEvent{}).Where("1 = 1").Update("created_at", stale).Error)

	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:      logger.New(logger.Options{ServiceName: "test"}),
		DB:          gormTxRunner{db: db},
		Repository:  outbox.NewRepository(db),
		MinAttempts: 3,
	})
	require.NoError(t, err)
	job.(*outboxRetentionJob).now = func() time.Time { return now }
	assert.Equal(t, "outbox-retention", job.Name())

	require.NoError(t, job.Run(context.Background()))

	var left []string
	require.NoError(t, db.Model(&models.OutboxEvent{}).Order("aggregate_id").Pluck("aggregate_id", &left).Error)
	assert.Equal(t, []string{"fresh-published", "stale-pending"}, left)
}

func TestOutboxRetentionJobWrapsRepositoryErrors(t *testing.T) {
	job, err := NewOutboxRetentionJob(OutboxRetentionJobParams{
		Logger:     logger.New(logger.Options{ServiceName: "test"}),
		DB:         txRunnerFunc(func(ctx context.Context, fn func(*gorm.DB) error) error { return fn(nil) }),
		Repository: failingRetentionRepo{},
	})
	require.NoError(t, err)

	err = job.Run(context.Background())
	assert.EqualError(t, err, "outbox retention: boom")
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	logg := logger.New(logger.Options{ServiceName: "test"})
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{DB: gormTxRunner{}, Repository: failingRetentionRepo{}})
	assert.EqualError(t, err, "logger required")
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logg, Repository: failingRetentionRepo{}})
	assert.EqualError(t, err, "db runner required")
	_, err = NewOutboxRetentionJob(OutboxRetentionJobParams{Logger: logg, DB: gormTxRunner{}})
	assert.EqualError(t, err, "outbox repository required")
}

type txRunnerFunc func(ctx context.Context, fn func(*gorm.DB) error) error

func (f txRunnerFunc) WithTx(ctx context.Context, fn func(*gorm.DB) error) error { return f(ctx, fn) }
