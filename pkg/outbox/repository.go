package outbox

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
)

// maxStoredErrorBytes bounds last_error and the DLQ error_message column.
const maxStoredErrorBytes = 1024

var ErrNoTx = errors.New("outbox repository call requires a transaction")

// Repository is the outbox_events table. Every mutating call takes the
// caller's transaction.
type Repository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

func (r *Repository) Insert(tx *gorm.DB, event models.OutboxEvent) error {
	if tx == nil {
		return ErrNoTx
	}
	return tx.Create(&event).Error
}

// ClaimPending row-locks up to limit unpublished events, oldest first.
// SKIP LOCKED lets several publishers drain the table without overlap.
// Rows that reached maxAttempts are left alone.
func (r *Repository) ClaimPending(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error) {
	if tx == nil {
		return nil, ErrNoTx
	}
	q := tx.Where("published_at IS NULL")
	if maxAttempts > 0 {
		q = q.Where("attempt_count < ?", maxAttempts)
	}
	var rows []models.OutboxEvent
	err := q.Order("created_at, id").
		Limit(limit).
		Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"}).
		Find(&rows).Error
	return rows, err
}

func (r *Repository) MarkPublished(tx *gorm.DB, id uuid.UUID) error {
	return r.update(tx, id, map[string]any{"published_at": r.now().UTC()})
}

// RecordAttempt bumps attempt_count after a retryable publish failure.
func (r *Repository) RecordAttempt(tx *gorm.DB, id uuid.UUID, cause error) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clipError(cause),
		"attempt_count": gorm.Expr("attempt_count + 1"),
	})
}

// Exhaust sets attempt_count to attempts so ClaimPending stops returning
// the row.
func (r *Repository) Exhaust(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error {
	return r.update(tx, id, map[string]any{
		"last_error":    clipError(cause),
		"attempt_count": attempts,
	})
}

func (r *Repository) update(tx *gorm.DB, id uuid.UUID, fields map[string]any) error {
	if tx == nil {
		return ErrNoTx
	}
	return tx.Model(&models.OutboxEvent{}).Where("id = ?", id).Updates(fields).Error
}

func (r *Repository) CountPending(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.OutboxEvent{}).Where("published_at IS NULL").Count(&n).Error
	return n, err
}

// Purge deletes rows published before cutoff, plus unpublished rows created
// before cutoff that already used minAttempts tries. A nil tx runs on the
// repository's own handle.
func (r *Repository) Purge(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttempts int) (int64, error) {
	if tx == nil {
		tx = r.db
	}
	res := tx.WithContext(ctx).
		Where("published_at < ? OR (published_at IS NULL AND attempt_count >= ? AND created_at < ?)",
			cutoff, minAttempts, cutoff).
		Delete(&models.OutboxEvent{})
	return res.RowsAffected, res.Error
}

func clipError(err error) string {
	if err == nil {
		return ""
	}
	return clip(err.Error(), maxStoredErrorBytes)
}

// clip cuts s to at most n bytes without splitting a UTF-8 sequence.
func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
