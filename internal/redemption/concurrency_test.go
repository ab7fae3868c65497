package redemption

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/internal/catalog"
	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/internal/vouchers"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

type passthroughTx struct{}

func (passthroughTx) WithTx(_ context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type memoryVouchers struct {
	mu       sync.Mutex
	vouchers map[string]models.Voucher
	qrCodes  map[string]models.QRCode
}

func (m *memoryVouchers) WithTx(*gorm.DB) vouchers.Repository { return m }

func (m *memoryVouchers) FindVoucherByCode(_ context.Context, code string) (*models.Voucher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vouchers[code]
	if !ok {
		return nil, nil
	}
	return &v, nil
}

func (m *memoryVouchers) FindQRCodeByCode(_ context.Context, code string) (*models.QRCode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	qr, ok := m.qrCodes[code]
	if !ok {
		return nil, nil
	}
	return &qr, nil
}

func (m *memoryVouchers) CreateVoucher(context.Context, *models.Voucher) error {
	return nil
}

func (m *memoryVouchers) MarkVoucherRedeemed(_ context.Context, voucherID, shopkeeperID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, v := range m.vouchers {
		if v.ID != voucherID {
			continue
		}
		if v.IsRedeemed {
			return false, nil
		}
		v.IsRedeemed = true
		v.RedeemedAt = &at
		v.RedeemedByShopkeeperID = &shopkeeperID
		m.vouchers[code] = v
		return true, nil
	}
	return false, nil
}

func (m *memoryVouchers) MarkQRCodeRedeemed(_ context.Context, qrID, customerID int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for code, qr := range m.qrCodes {
		if qr.ID != qrID {
			continue
		}
		if qr.IsRedeemed {
			return false, nil
		}
		qr.IsRedeemed = true
		qr.RedeemedAt = &at
		qr.RedeemedByCustomerID = &customerID
		m.qrCodes[code] = qr
		return true, nil
	}
	return false, nil
}

type memoryCatalog struct {
	campaign models.Campaign
}

func (c *memoryCatalog) WithTx(*gorm.DB) catalog.Repository { return c }

func (c *memoryCatalog) GetCampaign(_ context.Context, id int64) (*models.Campaign, error) {
	if id != c.campaign.ID {
		return nil, nil
	}
	campaign := c.campaign
	return &campaign, nil
}

func (c *memoryCatalog) ListCampaignEligibleProducts(context.Context, int64) ([]models.CampaignEligibleProduct, error) {
	return nil, nil
}

func (c *memoryCatalog) GetProductsByIDs(context.Context, []int64) (map[int64]models.Product, error) {
	return map[int64]models.Product{}, nil
}

func (c *memoryCatalog) GetUserNames(context.Context, []int64) (map[int64]string, error) {
	return map[int64]string{}, nil
}

type memoryHistory struct {
	mu   sync.Mutex
	rows []models.RedemptionHistory
}

func (h *memoryHistory) WithTx(*gorm.DB) HistoryRepository { return h }

func (h *memoryHistory) Create(_ context.Context, row *models.RedemptionHistory) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.rows = append(h.rows, *row)
	return nil
}

func (h *memoryHistory) ListForActor(context.Context, int64, *pagination.Cursor, int) ([]models.RedemptionHistory, error) {
	return nil, nil
}

// recordingLedger keeps every applied movement. Other ledger methods are not
// reached by the flows raced here.
type recordingLedger struct {
	ledger.Service
	mu        sync.Mutex
	movements []ledger.Movement
}

func (l *recordingLedger) WithTx(*gorm.DB) ledger.Service { return l }

func (l *recordingLedger) Apply(_ context.Context, m ledger.Movement) (ledger.Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.movements = append(l.movements, m)
	return ledger.Entry{UserID: m.UserID, CampaignID: m.CampaignID, Delta: m.Amount, BalanceAfter: m.Amount}, nil
}

// outcomes counts how concurrent calls ended.
type outcomes struct {
	mu       sync.Mutex
	won      int
	redeemed int
	other    []error
}

func (o *outcomes) record(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	switch {
	case err == nil:
		o.won++
	case pkgerrors.Is(err, pkgerrors.CodeAlreadyRedeemed):
		o.redeemed++
	default:
		o.other = append(o.other, err)
	}
}

func race(callers int, call func(i int) error) *outcomes {
	var (
		wg    sync.WaitGroup
		out   outcomes
		start = make(chan struct{})
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			out.record(call(i))
		}(i)
	}
	close(start)
	wg.Wait()
	return &out
}

func requireSingleWinner(t *testing.T, out *outcomes, callers int) {
	t.Helper()
	require.Empty(t, out.other)
	require.Equal(t, 1, out.won)
	require.Equal(t, callers-1, out.redeemed)
}

func raceCampaign(now time.Time, rewardType enums.RewardType) *memoryCatalog {
	return &memoryCatalog{campaign: models.Campaign{
		ID:         7,
		Name:       "Summer",
		RewardType: rewardType,
		StartDate:  now.Add(-time.Hour),
		EndDate:    now.Add(time.Hour),
		IsActive:   true,
	}}
}

func TestRedeemConcurrentCallersHaveExactlyOneWinner(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryVouchers{vouchers: map[string]models.Voucher{
		"RACE-1": {
			ID:         1,
			Code:       "RACE-1",
			ResellerID: 3,
			CampaignID: 7,
			Value:      decimal.NewFromInt(100),
			ExpiresAt:  now.Add(24 * time.Hour),
		},
	}}
	history := &memoryHistory{}
	svc, err := NewService(ServiceParams{
		Vouchers: store,
		Catalog:  raceCampaign(now, enums.RewardTypeVoucher),
		History:  history,
		Ledger:   &recordingLedger{},
		TxRunner: passthroughTx{},
		Clock:    func() time.Time { return now },
	})
	require.NoError(t, err)

	const callers = 16
	out := race(callers, func(i int) error {
		_, err := svc.Redeem(context.Background(), "RACE-1", int64(100+i), Selection{
			Items: []Item{{Name: "Lamp", Value: decimal.NewFromInt(40)}},
		})
		return err
	})

	requireSingleWinner(t, out, callers)
	assert.Len(t, history.rows, 1)
}

func TestRedeemQRConcurrentCallersCreditOnce(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	store := &memoryVouchers{qrCodes: map[string]models.QRCode{
		"QR-RACE": {ID: 11, Code: "QR-RACE", CampaignID: 7, Points: 25},
	}}
	history := &memoryHistory{}
	points := &recordingLedger{}
	svc, err := NewService(ServiceParams{
		Vouchers: store,
		Catalog:  raceCampaign(now, enums.RewardTypeFreeProduct),
		History:  history,
		Ledger:   points,
		TxRunner: passthroughTx{},
		Clock:    func() time.Time { return now },
	})
	require.NoError(t, err)

	const callers = 16
	out := race(callers, func(i int) error {
		_, err := svc.RedeemQR(context.Background(), "QR-RACE", int64(200+i), 25)
		return err
	})

	requireSingleWinner(t, out, callers)
	assert.Len(t, history.rows, 1)
	require.Len(t, points.movements, 2)
	winner := points.movements[0].UserID
	for _, m := range points.movements {
		assert.Equal(t, ledger.DirectionCredit, m.Direction)
		assert.Equal(t, int64(25), m.Amount)
		assert.Equal(t, winner, m.UserID)
	}
	assert.ElementsMatch(t, []int64{models.GlobalCampaignID, 7}, []int64{points.movements[0].CampaignID, points.movements[1].CampaignID})
}

// serializedFixture shares one sqlite connection between goroutines so every
// transaction commits before the next begins.
func serializedFixture(t *testing.T) *fixture {
	t.Helper()
	f := newFixture(t, nil)
	sqlDB, err := f.db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	return f
}

func TestRedeemQRConcurrentCallersAgainstDatabase(t *testing.T) {
	f := serializedFixture(t)
	f.addQRCode(t, models.QRCode{Code: "QR-DB-RACE", CampaignID: campaignFree, Points: 30})

	const callers = 8
	out := race(callers, func(i int) error {
		_, err := f.svc.RedeemQR(context.Background(), "QR-DB-RACE", customerID, 0)
		return err
	})

	requireSingleWinner(t, out, callers)
	assert.Equal(t, int64(1), f.historyCount(t))

	balance, err := f.ledger.Balance(context.Background(), customerID)
	require.NoError(t, err)
	assert.Equal(t, int64(30), balance)

	var credits int64
	require.NoError(t, f.db.Model(&models.PointsHistory{}).Where("user_id = ?", customerID).Count(&credits).Error)
	assert.Equal(t, int64(2), credits)
}

func TestRedeemConcurrentCallersAgainstDatabase(t *testing.T) {
	f := serializedFixture(t)
	v := f.addVoucher(t, models.Voucher{Code: "V-DB-RACE", CampaignID: campaignItemized})

	const callers = 8
	out := race(callers, func(int) error {
		_, err := f.svc.Redeem(context.Background(), "V-DB-RACE", shopkeeperID, Selection{
			Items: []Item{{Name: "Gift", Value: decimal.NewFromInt(10)}},
		})
		return err
	})

	requireSingleWinner(t, out, callers)
	assert.Equal(t, int64(1), f.historyCount(t))
	assert.True(t, f.reloadVoucher(t, v.ID).IsRedeemed)
}
