package outbox

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// DLQFilter narrows a dead-letter listing. Zero fields match everything.
type DLQFilter struct {
	EventType enums.OutboxEventType
	Reason    enums.OutboxDLQErrorReason
	// After is the last row of the previous page, ordered by failed_at desc.
	After *pagination.Cursor
	Limit int
}

// DLQRepository stores outbox rows the publisher will not retry.
type DLQRepository struct {
	db *gorm.DB
}

func NewDLQRepository(db *gorm.DB) *DLQRepository {
	return &DLQRepository{db: db}
}

// Park records entry inside tx, the same transaction that stamps the source
// outbox row. Long error messages are cut to 1 KiB.
func (r *DLQRepository) Park(ctx context.Context, tx *gorm.DB, entry models.OutboxDLQ) error {
	if tx == nil {
		return ErrNoTx
	}
	if entry.ErrorMessage != nil {
		msg := clip(*entry.ErrorMessage, maxStoredErrorBytes)
		entry.ErrorMessage = &msg
	}
	return tx.WithContext(ctx).Create(&entry).Error
}

// Get returns nil without error when no row exists for eventID.
func (r *DLQRepository) Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error) {
	var row models.OutboxDLQ
	err := r.db.WithContext(ctx).Where("event_id = ?", eventID).Take(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return nil, nil
	case err != nil:
		return nil, err
	}
	return &row, nil
}

// List returns dead letters newest first. It fetches Limit rows exactly; use
// pagination.LimitWithBuffer to detect a following page.
func (r *DLQRepository) List(ctx context.Context, filter DLQFilter) ([]models.OutboxDLQ, error) {
	q := r.db.WithContext(ctx).Model(&models.OutboxDLQ{})
	if filter.EventType != "" {
		q = q.Where("event_type = ?", filter.EventType)
	}
	if filter.Reason != "" {
		q = q.Where("error_reason = ?", filter.Reason)
	}
	if c := filter.After; c != nil {
		q = q.Where("(failed_at < ?) OR (failed_at = ? AND id < ?)", c.CreatedAt, c.CreatedAt, c.ID)
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = pagination.DefaultLimit
	}

	var rows []models.OutboxDLQ
	err := q.Order("failed_at DESC").Order("id DESC").Limit(limit).Find(&rows).Error
	return rows, err
}
