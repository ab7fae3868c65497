// Package catalog reads campaigns, products and user display names owned by
// the surrounding platform. Nothing here writes.
package catalog

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
)

// Repository is the read-only catalog boundary.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetCampaign(ctx context.Context, id int64) (*models.Campaign, error)
	ListCampaignEligibleProducts(ctx context.Context, campaignID int64) ([]models.CampaignEligibleProduct, error)
	GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error)
	GetUserNames(ctx context.Context, ids []int64) (map[int64]string, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a catalog repository to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) GetCampaign(ctx context.Context, id int64) (*models.Campaign, error) {
	var campaign models.Campaign
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&campaign).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &campaign, nil
}

func (r *repository) ListCampaignEligibleProducts(ctx context.Context, campaignID int64) ([]models.CampaignEligibleProduct, error) {
	var rows []models.CampaignEligibleProduct
	if err := r.db.WithContext(ctx).
		Where("campaign_id = ?", campaignID).
		Order("product_id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) GetProductsByIDs(ctx context.Context, ids []int64) (map[int64]models.Product, error) {
	out := make(map[int64]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Product
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *repository) GetUserNames(ctx context.Context, ids []int64) (map[int64]string, error) {
	out := make(map[int64]string, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.User
	if err := r.db.WithContext(ctx).
		Select("id", "name").
		Where("id IN ?", ids).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row.Name
	}
	return out, nil
}
