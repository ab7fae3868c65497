package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
)

func newCatalogTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:catalog_"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(
		&models.Campaign{},
		&models.CampaignEligibleProduct{},
		&models.Product{},
		&models.User{},
	))
	return conn
}

func TestRepositoryReadsCatalog(t *testing.T) {
	db := newCatalogTestDB(t)
	repo := NewRepository(db)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	campaign := models.Campaign{
		ManufacturerID: 1,
		Name:           "Diwali Sweets",
		RewardType:     enums.RewardTypeFreeProduct,
		StartDate:      start,
		EndDate:        start.AddDate(0, 3, 0),
		IsActive:       true,
	}
	require.NoError(t, db.Create(&campaign).Error)

	ladoo := models.Product{Name: "Ladoo", RetailPrice: decimal.NewFromInt(40)}
	barfi := models.Product{Name: "Barfi", RetailPrice: decimal.NewFromInt(55)}
	require.NoError(t, db.Create(&ladoo).Error)
	require.NoError(t, db.Create(&barfi).Error)
	require.NoError(t, db.Create(&[]models.CampaignEligibleProduct{
		{CampaignID: campaign.ID, ProductID: barfi.ID, PointsCost: 20},
		{CampaignID: campaign.ID, ProductID: ladoo.ID, PointsCost: 10},
	}).Error)
	require.NoError(t, db.Create(&models.User{Name: "Asha Stores", Role: enums.MemberRoleReseller}).Error)

	got, err := repo.GetCampaign(ctx, campaign.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Diwali Sweets", got.Name)
	assert.True(t, got.ActiveAt(start.AddDate(0, 1, 0)))
	assert.False(t, got.ActiveAt(start.AddDate(0, 4, 0)))

	missing, err := repo.GetCampaign(ctx, 999)
	require.NoError(t, err)
	assert.Nil(t, missing)

	eligible, err := repo.ListCampaignEligibleProducts(ctx, campaign.ID)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, ladoo.ID, eligible[0].ProductID)

	products, err := repo.GetProductsByIDs(ctx, []int64{ladoo.ID, barfi.ID, 404})
	require.NoError(t, err)
	assert.Len(t, products, 2)
	assert.True(t, products[barfi.ID].RetailPrice.Equal(decimal.NewFromInt(55)))

	names, err := repo.GetUserNames(ctx, []int64{1, 2})
	require.NoError(t, err)
	assert.Equal(t, map[int64]string{1: "Asha Stores"}, names)
}
