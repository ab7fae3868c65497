package redemption

import (
	"context"

	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// HistoryRepository appends and lists redemption audit rows.
type HistoryRepository interface {
	WithTx(tx *gorm.DB) HistoryRepository
	Create(ctx context.Context, row *models.RedemptionHistory) error
	ListForActor(ctx context.Context, actorID int64, cursor *pagination.Cursor, limit int) ([]models.RedemptionHistory, error)
}

type historyRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) HistoryRepository {
	return &historyRepository{db: db}
}

func (r *historyRepository) WithTx(tx *gorm.DB) HistoryRepository {
	if tx == nil {
		return r
	}
	return &historyRepository{db: tx}
}

// Create inserts row. A second row for the same voucher or QR code violates
// the unique audit index and surfaces as ALREADY_REDEEMED.
func (r *historyRepository) Create(ctx context.Context, row *models.RedemptionHistory) error {
	err := r.db.WithContext(ctx).Create(row).Error
	if db.IsUniqueViolation(err, "") {
		return pkgerrors.Wrap(pkgerrors.CodeAlreadyRedeemed, err, "redemption already recorded")
	}
	return err
}

// ListForActor returns rows where the actor redeemed, sold or accepted the code.
func (r *historyRepository) ListForActor(ctx context.Context, actorID int64, cursor *pagination.Cursor, limit int) ([]models.RedemptionHistory, error) {
	q := r.db.WithContext(ctx).
		Model(&models.RedemptionHistory{}).
		Where("(user_id = ? OR reseller_id = ? OR shopkeeper_id = ?)", actorID, actorID, actorID)
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.RedemptionHistory
	if err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
