package ledger

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

// Repository manages persistence for points balances and their history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	EnsureBalance(ctx context.Context, userID, campaignID int64, now time.Time) error
	Increment(ctx context.Context, userID, campaignID, amount int64, now time.Time) error
	DecrementIfSufficient(ctx context.Context, userID, campaignID, amount int64, now time.Time) (bool, error)
	GetBalance(ctx context.Context, userID, campaignID int64) (*models.PointsBalance, error)
	InsertHistory(ctx context.Context, entry *models.PointsHistory) error
	ListHistory(ctx context.Context, filter HistoryFilter, cursor *pagination.Cursor, limit int) ([]models.PointsHistory, error)
	FindDrift(ctx context.Context, limit int) ([]BalanceDrift, error)
}

// BalanceDrift is a balance row whose stored totals disagree with its history.
type BalanceDrift struct {
	UserID     int64
	CampaignID int64
	Balance    int64
	Earned     int64
	Used       int64
	HistorySum int64
}

// HistoryFilter narrows a history listing. A nil CampaignID lists every scope.
type HistoryFilter struct {
	UserID     int64
	CampaignID *int64
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) EnsureBalance(ctx context.Context, userID, campaignID int64, now time.Time) error {
	row := models.PointsBalance{
		UserID:     userID,
		CampaignID: campaignID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&row).Error
}

func (r *repository) Increment(ctx context.Context, userID, campaignID, amount int64, now time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.PointsBalance{}).
		Where("user_id = ? AND campaign_id = ?", userID, campaignID).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance + ?", amount),
			"earned":     gorm.Expr("earned + ?", amount),
			"updated_at": now,
		}).Error
}

// DecrementIfSufficient debits only when the stored balance covers amount,
// returning false when no row matched.
func (r *repository) DecrementIfSufficient(ctx context.Context, userID, campaignID, amount int64, now time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.PointsBalance{}).
		Where("user_id = ? AND campaign_id = ? AND balance >= ?", userID, campaignID, amount).
		Updates(map[string]any{
			"balance":    gorm.Expr("balance - ?", amount),
			"used":       gorm.Expr("used + ?", amount),
			"updated_at": now,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) GetBalance(ctx context.Context, userID, campaignID int64) (*models.PointsBalance, error) {
	var row models.PointsBalance
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND campaign_id = ?", userID, campaignID).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *repository) InsertHistory(ctx context.Context, entry *models.PointsHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *repository) ListHistory(ctx context.Context, filter HistoryFilter, cursor *pagination.Cursor, limit int) ([]models.PointsHistory, error) {
	q := r.db.WithContext(ctx).
		Model(&models.PointsHistory{}).
		Where("user_id = ?", filter.UserID)
	if filter.CampaignID != nil {
		q = q.Where("campaign_id = ?", *filter.CampaignID)
	}
	if cursor != nil {
		q = q.Where("(created_at < ?) OR (created_at = ? AND id < ?)", cursor.CreatedAt, cursor.CreatedAt, cursor.ID)
	}

	var rows []models.PointsHistory
	if err := q.
		Order("created_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// FindDrift lists balances where balance differs from the summed history
// deltas or from earned minus used.
func (r *repository) FindDrift(ctx context.Context, limit int) ([]BalanceDrift, error) {
	var rows []BalanceDrift
	err := r.db.WithContext(ctx).Raw(`
SELECT b.user_id, b.campaign_id, b.balance, b.earned, b.used,
       COALESCE(SUM(h.delta), 0) AS history_sum
FROM points_balances b
LEFT JOIN points_history h
       ON h.user_id = b.user_id AND h.campaign_id = b.campaign_id
GROUP BY b.user_id, b.campaign_id, b.balance, b.earned, b.used
HAVING b.balance <> COALESCE(SUM(h.delta), 0) OR b.balance <> b.earned - b.used
ORDER BY b.user_id, b.campaign_id
LIMIT ?`, limit).Scan(&rows).Error
	return rows, err
}
