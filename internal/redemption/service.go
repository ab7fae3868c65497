// Package redemption implements the voucher and QR code state machine:
// Issued transitions to Redeemed exactly once, together with its audit row.
package redemption

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/internal/catalog"
	"github.com/angelmondragon/promoredeem/internal/eligibility"
	"github.com/angelmondragon/promoredeem/internal/ledger"
	"github.com/angelmondragon/promoredeem/internal/vouchers"
	"github.com/angelmondragon/promoredeem/pkg/db/models"
	"github.com/angelmondragon/promoredeem/pkg/enums"
	pkgerrors "github.com/angelmondragon/promoredeem/pkg/errors"
	"github.com/angelmondragon/promoredeem/pkg/logger"
	"github.com/angelmondragon/promoredeem/pkg/metrics"
	"github.com/angelmondragon/promoredeem/pkg/outbox"
	"github.com/angelmondragon/promoredeem/pkg/outbox/payloads"
	"github.com/angelmondragon/promoredeem/pkg/pagination"
)

const (
	opValidate      = "validate"
	opRedeemVoucher = "redeem_voucher"
	opRedeemQR      = "redeem_qr"
	opIssueVoucher  = "issue_voucher"

	maxCodeAttempts = 5
)

// Service is the redemption engine.
type Service interface {
	Validate(ctx context.Context, code string) (Preview, error)
	Redeem(ctx context.Context, code string, actorID int64, selection Selection) (Receipt, error)
	RedeemQR(ctx context.Context, code string, customerID, claimedPoints int64) (Receipt, error)
	IssueVoucher(ctx context.Context, input IssueVoucherInput) (IssuedVoucher, error)
	ListHistory(ctx context.Context, query HistoryQuery) (HistoryPage, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type ServiceParams struct {
	Vouchers vouchers.Repository
	Catalog  catalog.Repository
	History  HistoryRepository
	Ledger   ledger.Service
	TxRunner txRunner
	Outbox   outbox.Emitter
	Metrics  *metrics.RedemptionMetrics
	Logger   *logger.Logger
	Codes    CodeGenerator
	Clock    func() time.Time
}

type service struct {
	vouchers vouchers.Repository
	catalog  catalog.Repository
	history  HistoryRepository
	ledger   ledger.Service
	tx       txRunner
	outbox   outbox.Emitter
	metrics  *metrics.RedemptionMetrics
	logg     *logger.Logger
	codes    CodeGenerator
	now      func() time.Time
}

// NewService wires the engine. Outbox, Metrics, Logger, Codes and Clock are optional.
func NewService(params ServiceParams) (Service, error) {
	if params.Vouchers == nil {
		return nil, fmt.Errorf("voucher repository required")
	}
	if params.Catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if params.History == nil {
		return nil, fmt.Errorf("history repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	codes := params.Codes
	if codes == nil {
		codes = NewRandomCodeGenerator(time.Now().UnixNano(), defaultCodeLength)
	}
	clock := params.Clock
	if clock == nil {
		clock = time.Now
	}
	return &service{
		vouchers: params.Vouchers,
		catalog:  params.Catalog,
		history:  params.History,
		ledger:   params.Ledger,
		tx:       params.TxRunner,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		codes:    codes,
		now:      clock,
	}, nil
}

// Validate looks the code up among vouchers first, then QR codes. It never writes.
func (s *service) Validate(ctx context.Context, code string) (Preview, error) {
	started := time.Now()
	code = strings.TrimSpace(code)
	kind := "unknown"

	preview, err := func() (Preview, error) {
		if code == "" {
			return Preview{}, pkgerrors.New(pkgerrors.CodeValidation, "code is required")
		}
		now := s.now()

		voucher, err := s.vouchers.FindVoucherByCode(ctx, code)
		if err != nil {
			return Preview{}, err
		}
		if voucher != nil {
			kind = string(KindVoucher)
			campaign, err := s.checkVoucher(ctx, s.catalog, voucher, now)
			if err != nil {
				return Preview{}, err
			}
			return s.voucherPreview(ctx, voucher, campaign)
		}

		qr, err := s.vouchers.FindQRCodeByCode(ctx, code)
		if err != nil {
			return Preview{}, err
		}
		if qr != nil {
			kind = string(KindQRCode)
			campaign, err := s.checkQRCode(ctx, s.catalog, qr, now)
			if err != nil {
				return Preview{}, err
			}
			return s.qrPreview(ctx, qr, campaign)
		}

		return Preview{}, pkgerrors.New(pkgerrors.CodeNotFound, "code not found")
	}()

	err = s.finish(ctx, kind, opValidate, code, 0, started, err)
	if err != nil {
		return Preview{}, err
	}
	return preview, nil
}

// Redeem consumes a voucher. Every Validate check is repeated inside the
// transaction, and the redeemed flag flips through a conditional update so
// concurrent callers see exactly one winner.
func (s *service) Redeem(ctx context.Context, code string, actorID int64, selection Selection) (Receipt, error) {
	started := time.Now()
	code = strings.TrimSpace(code)

	var receipt Receipt
	err := func() error {
		if code == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
		}
		if actorID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
		}

		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			voucherRepo := s.vouchers.WithTx(tx)
			catalogRepo := s.catalog.WithTx(tx)
			now := s.now().UTC()

			voucher, err := voucherRepo.FindVoucherByCode(ctx, code)
			if err != nil {
				return err
			}
			if voucher == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "voucher not found")
			}
			campaign, err := s.checkVoucher(ctx, catalogRepo, voucher, now)
			if err != nil {
				return err
			}

			eligible, err := voucherEligibility(voucher)
			if err != nil {
				return err
			}
			policy, err := PolicyFor(campaign.RewardType)
			if err != nil {
				return err
			}
			resolution, err := policy.Resolve(ctx, PolicyInput{
				Voucher:   voucher,
				Campaign:  campaign,
				Eligible:  eligible,
				Selection: selection,
				Catalog:   catalogRepo,
			})
			if err != nil {
				return err
			}
			if resolution.Value.GreaterThan(voucher.Value) {
				return pkgerrors.New(pkgerrors.CodeValidation, "redeemed value exceeds voucher value").
					WithDetails(map[string]any{
						"value":         resolution.Value.StringFixed(moneyPlaces),
						"voucher_value": voucher.Value.StringFixed(moneyPlaces),
					})
			}
			snapshot, err := json.Marshal(resolution.Products)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encode redeemed products")
			}

			won, err := voucherRepo.MarkVoucherRedeemed(ctx, voucher.ID, actorID, now)
			if err != nil {
				return err
			}
			if !won {
				return pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "voucher already redeemed")
			}

			redemptionType := enums.RedemptionTypeForReward(campaign.RewardType)
			row := &models.RedemptionHistory{
				UserID:           actorID,
				ResellerID:       int64Ptr(voucher.ResellerID),
				ShopkeeperID:     int64Ptr(actorID),
				CampaignID:       int64Ptr(campaign.ID),
				VoucherID:        int64Ptr(voucher.ID),
				RedeemedProducts: datatypes.JSON(snapshot),
				RedemptionValue:  resolution.Value,
				RedemptionType:   redemptionType,
				CreatedAt:        now,
			}
			if err := s.history.WithTx(tx).Create(ctx, row); err != nil {
				return err
			}

			if s.outbox != nil {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventVoucherRedeemed,
					AggregateType: enums.AggregateVoucher,
					AggregateID:   strconv.FormatInt(voucher.ID, 10),
					Actor:         &outbox.ActorRef{UserID: actorID, Role: string(enums.MemberRoleShopkeeper)},
					Data: payloads.VoucherRedeemedEvent{
						VoucherID:       voucher.ID,
						Code:            voucher.Code,
						CampaignID:      campaign.ID,
						ResellerID:      voucher.ResellerID,
						ShopkeeperID:    actorID,
						HistoryID:       row.ID.String(),
						RedemptionType:  redemptionType,
						RedemptionValue: resolution.Value,
						RedeemedAt:      now,
					},
					OccurredAt: now,
				}); err != nil {
					return err
				}
			}

			receipt = Receipt{
				HistoryID:      row.ID,
				Kind:           KindVoucher,
				Code:           voucher.Code,
				CampaignID:     campaign.ID,
				RedemptionType: redemptionType,
				RedeemedValue:  resolution.Value,
				Products:       resolution.Products,
				RedeemedAt:     now,
			}
			return nil
		})
	}()

	if err := s.finish(ctx, string(KindVoucher), opRedeemVoucher, code, actorID, started, err); err != nil {
		return Receipt{}, err
	}
	return receipt, nil
}

// RedeemQR consumes a campaign QR code and credits its points to the customer's
// global and campaign balances. The point value is always taken from the
// stored record; a differing claimed amount is rejected.
func (s *service) RedeemQR(ctx context.Context, code string, customerID, claimedPoints int64) (Receipt, error) {
	started := time.Now()
	code = strings.TrimSpace(code)

	var receipt Receipt
	err := func() error {
		if code == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "code is required")
		}
		if customerID <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
		}
		if claimedPoints < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "claimed points must not be negative")
		}

		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			voucherRepo := s.vouchers.WithTx(tx)
			catalogRepo := s.catalog.WithTx(tx)
			now := s.now().UTC()

			qr, err := voucherRepo.FindQRCodeByCode(ctx, code)
			if err != nil {
				return err
			}
			if qr == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "qr code not found")
			}
			campaign, err := s.checkQRCode(ctx, catalogRepo, qr, now)
			if err != nil {
				return err
			}

			points, err := authoritativePoints(ctx, catalogRepo, qr)
			if err != nil {
				return err
			}
			if points <= 0 {
				return pkgerrors.New(pkgerrors.CodeValidation, "qr code carries no points")
			}
			if claimedPoints > 0 && claimedPoints != points {
				return pkgerrors.New(pkgerrors.CodeValidation, "claimed points do not match the qr code").
					WithDetails(map[string]any{"claimed": claimedPoints, "expected": points})
			}

			won, err := voucherRepo.MarkQRCodeRedeemed(ctx, qr.ID, customerID, now)
			if err != nil {
				return err
			}
			if !won {
				return pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "qr code already redeemed")
			}

			row := &models.RedemptionHistory{
				UserID:           customerID,
				ResellerID:       qr.ResellerID,
				CampaignID:       int64Ptr(campaign.ID),
				QRCodeID:         int64Ptr(qr.ID),
				RedeemedProducts: datatypes.JSON("[]"),
				RedemptionValue:  decimal.Zero,
				Points:           points,
				RedemptionType:   enums.RedemptionTypeQRPoints,
				CreatedAt:        now,
			}
			if err := s.history.WithTx(tx).Create(ctx, row); err != nil {
				return err
			}

			ref := &ledger.Reference{Type: string(enums.AggregateQRCode), ID: strconv.FormatInt(qr.ID, 10)}
			txLedger := s.ledger.WithTx(tx)
			global, err := txLedger.Apply(ctx, ledger.Movement{
				Direction:  ledger.DirectionCredit,
				UserID:     customerID,
				CampaignID: models.GlobalCampaignID,
				Amount:     points,
				Reason:     enums.PointsReasonQRScan,
				Reference:  ref,
			})
			if err != nil {
				return err
			}
			if _, err := txLedger.Apply(ctx, ledger.Movement{
				Direction:  ledger.DirectionCredit,
				UserID:     customerID,
				CampaignID: campaign.ID,
				Amount:     points,
				Reason:     enums.PointsReasonQRScan,
				Reference:  ref,
			}); err != nil {
				return err
			}

			if s.outbox != nil {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventQRCodeRedeemed,
					AggregateType: enums.AggregateQRCode,
					AggregateID:   strconv.FormatInt(qr.ID, 10),
					Actor:         &outbox.ActorRef{UserID: customerID, Role: string(enums.MemberRoleCustomer)},
					Data: payloads.QRCodeRedeemedEvent{
						QRCodeID:   qr.ID,
						Code:       qr.Code,
						CampaignID: campaign.ID,
						CustomerID: customerID,
						HistoryID:  row.ID.String(),
						Points:     points,
						RedeemedAt: now,
					},
					OccurredAt: now,
				}); err != nil {
					return err
				}
			}

			balance := global.BalanceAfter
			receipt = Receipt{
				HistoryID:      row.ID,
				Kind:           KindQRCode,
				Code:           qr.Code,
				CampaignID:     campaign.ID,
				RedemptionType: enums.RedemptionTypeQRPoints,
				RedeemedValue:  decimal.Zero,
				Points:         points,
				Products:       []RedeemedProduct{},
				BalanceAfter:   &balance,
				RedeemedAt:     now,
			}
			return nil
		})
	}()

	if err := s.finish(ctx, string(KindQRCode), opRedeemQR, code, customerID, started, err); err != nil {
		return Receipt{}, err
	}
	s.metrics.AddPoints("credit", receipt.Points)
	return receipt, nil
}

// IssueVoucher spends a reseller's campaign points on a new voucher. The
// points debit and the voucher insert share one transaction.
func (s *service) IssueVoucher(ctx context.Context, input IssueVoucherInput) (IssuedVoucher, error) {
	started := time.Now()

	var issued IssuedVoucher
	err := func() error {
		if err := validateIssueInput(input, s.now()); err != nil {
			return err
		}

		return s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			voucherRepo := s.vouchers.WithTx(tx)
			catalogRepo := s.catalog.WithTx(tx)
			now := s.now().UTC()

			campaign, err := catalogRepo.GetCampaign(ctx, input.CampaignID)
			if err != nil {
				return err
			}
			if campaign == nil {
				return pkgerrors.New(pkgerrors.CodeNotFound, "campaign not found")
			}
			if !campaign.ActiveAt(now) {
				return pkgerrors.New(pkgerrors.CodeCampaignInactive, "campaign is not active")
			}

			productIDs := eligibility.NewSet(input.ProductIDs...).IDs()
			if len(productIDs) > 0 {
				products, err := catalogRepo.GetProductsByIDs(ctx, productIDs)
				if err != nil {
					return err
				}
				var unknown []int64
				for _, id := range productIDs {
					if _, ok := products[id]; !ok {
						unknown = append(unknown, id)
					}
				}
				if len(unknown) > 0 {
					return pkgerrors.New(pkgerrors.CodeValidation, "eligible products contain unknown ids").
						WithDetails(map[string]any{"unknown_product_ids": unknown})
				}
				if err := withinCampaignProducts(ctx, catalogRepo, campaign.ID, productIDs); err != nil {
					return err
				}
			}

			if input.PointsRequired > 0 {
				txLedger := s.ledger.WithTx(tx)
				if _, err := txLedger.DebitCampaign(ctx, campaign.ID, input.ResellerID, input.PointsRequired, enums.PointsReasonVoucherIssued); err != nil {
					return err
				}
				if _, err := txLedger.Debit(ctx, input.ResellerID, input.PointsRequired, enums.PointsReasonVoucherIssued); err != nil {
					return err
				}
			}

			code, err := s.uniqueCode(ctx, voucherRepo)
			if err != nil {
				return err
			}

			voucher := &models.Voucher{
				Code:           code,
				ResellerID:     input.ResellerID,
				CampaignID:     campaign.ID,
				Value:          input.Value,
				PointsRequired: input.PointsRequired,
				ExpiresAt:      input.ExpiresAt.UTC(),
			}
			for _, id := range productIDs {
				voucher.EligibleProducts = append(voucher.EligibleProducts, models.VoucherEligibleProduct{ProductID: id})
			}
			if err := voucherRepo.CreateVoucher(ctx, voucher); err != nil {
				return err
			}

			if s.outbox != nil {
				if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
					EventType:     enums.EventVoucherIssued,
					AggregateType: enums.AggregateVoucher,
					AggregateID:   strconv.FormatInt(voucher.ID, 10),
					Actor:         &outbox.ActorRef{UserID: input.ResellerID, Role: string(enums.MemberRoleReseller)},
					Data: payloads.VoucherIssuedEvent{
						VoucherID:      voucher.ID,
						Code:           voucher.Code,
						ResellerID:     voucher.ResellerID,
						CampaignID:     voucher.CampaignID,
						Value:          voucher.Value,
						PointsRequired: voucher.PointsRequired,
						ExpiresAt:      voucher.ExpiresAt,
					},
					OccurredAt: now,
				}); err != nil {
					return err
				}
			}

			issued = IssuedVoucher{
				ID:             voucher.ID,
				Code:           voucher.Code,
				CampaignID:     voucher.CampaignID,
				Value:          voucher.Value,
				PointsRequired: voucher.PointsRequired,
				ProductIDs:     productIDs,
				ExpiresAt:      voucher.ExpiresAt,
			}
			return nil
		})
	}()

	if err := s.finish(ctx, string(KindVoucher), opIssueVoucher, "", input.ResellerID, started, err); err != nil {
		return IssuedVoucher{}, err
	}
	s.metrics.AddPoints("debit", input.PointsRequired)
	return issued, nil
}

// ListHistory pages through redemption rows the actor took part in, newest first.
func (s *service) ListHistory(ctx context.Context, query HistoryQuery) (HistoryPage, error) {
	if query.ActorID <= 0 {
		return HistoryPage{}, pkgerrors.New(pkgerrors.CodeValidation, "actor id is required")
	}
	cursor, err := pagination.ParseCursor(query.Params.Cursor)
	if err != nil {
		return HistoryPage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	rows, err := s.history.ListForActor(ctx, query.ActorID, cursor, pagination.LimitWithBuffer(query.Params.Limit))
	if err != nil {
		return HistoryPage{}, s.storeFailure(ctx, "list_history", "", query.ActorID, err)
	}
	rows, next := pagination.Page(rows, query.Params.Limit, func(row models.RedemptionHistory) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})

	items := make([]HistoryEntry, 0, len(rows))
	for _, row := range rows {
		items = append(items, HistoryEntry{
			ID:               row.ID,
			UserID:           row.UserID,
			ResellerID:       row.ResellerID,
			ShopkeeperID:     row.ShopkeeperID,
			CampaignID:       row.CampaignID,
			VoucherID:        row.VoucherID,
			QRCodeID:         row.QRCodeID,
			RedeemedProducts: json.RawMessage(row.RedeemedProducts),
			RedemptionValue:  row.RedemptionValue,
			Points:           row.Points,
			RedemptionType:   row.RedemptionType,
			CreatedAt:        row.CreatedAt,
		})
	}
	return HistoryPage{Items: items, NextCursor: next}, nil
}

// checkVoucher applies the voucher checks in order: redeemed, expired, campaign window.
func (s *service) checkVoucher(ctx context.Context, repo catalog.Repository, v *models.Voucher, now time.Time) (*models.Campaign, error) {
	if v.IsRedeemed {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "voucher already redeemed")
	}
	if now.After(v.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "voucher expired")
	}
	return activeCampaign(ctx, repo, v.CampaignID, now)
}

// checkQRCode reports expiry before the redeemed flag, so an expired code is
// always Expired.
func (s *service) checkQRCode(ctx context.Context, repo catalog.Repository, qr *models.QRCode, now time.Time) (*models.Campaign, error) {
	if qr.ExpiresAt != nil && now.After(*qr.ExpiresAt) {
		return nil, pkgerrors.New(pkgerrors.CodeExpired, "qr code expired")
	}
	if qr.IsRedeemed {
		return nil, pkgerrors.New(pkgerrors.CodeAlreadyRedeemed, "qr code already redeemed")
	}
	return activeCampaign(ctx, repo, qr.CampaignID, now)
}

func activeCampaign(ctx context.Context, repo catalog.Repository, campaignID int64, now time.Time) (*models.Campaign, error) {
	campaign, err := repo.GetCampaign(ctx, campaignID)
	if err != nil {
		return nil, err
	}
	if campaign == nil || !campaign.ActiveAt(now) {
		return nil, pkgerrors.New(pkgerrors.CodeCampaignInactive, "campaign is not active")
	}
	return campaign, nil
}

func (s *service) voucherPreview(ctx context.Context, v *models.Voucher, campaign *models.Campaign) (Preview, error) {
	eligible, err := voucherEligibility(v)
	if err != nil {
		return Preview{}, err
	}
	products, err := s.describeProducts(ctx, eligible.IDs(), nil)
	if err != nil {
		return Preview{}, err
	}
	names, err := s.catalog.GetUserNames(ctx, []int64{v.ResellerID})
	if err != nil {
		return Preview{}, err
	}

	expires := v.ExpiresAt
	return Preview{
		Kind:             KindVoucher,
		Code:             v.Code,
		Value:            v.Value,
		PointsRequired:   v.PointsRequired,
		ResellerID:       int64Ptr(v.ResellerID),
		ResellerName:     names[v.ResellerID],
		CampaignID:       campaign.ID,
		CampaignName:     campaign.Name,
		RewardType:       campaign.RewardType,
		EligibleProducts: products,
		ExpiresAt:        &expires,
	}, nil
}

func (s *service) qrPreview(ctx context.Context, qr *models.QRCode, campaign *models.Campaign) (Preview, error) {
	rows, err := s.catalog.ListCampaignEligibleProducts(ctx, campaign.ID)
	if err != nil {
		return Preview{}, err
	}
	ids := make([]int64, 0, len(rows))
	costs := make(map[int64]int64, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ProductID)
		costs[row.ProductID] = row.PointsCost
	}
	products, err := s.describeProducts(ctx, ids, costs)
	if err != nil {
		return Preview{}, err
	}
	points, err := authoritativePoints(ctx, s.catalog, qr)
	if err != nil {
		return Preview{}, err
	}

	preview := Preview{
		Kind:             KindQRCode,
		Code:             qr.Code,
		Value:            decimal.Zero,
		Points:           points,
		ResellerID:       qr.ResellerID,
		CampaignID:       campaign.ID,
		CampaignName:     campaign.Name,
		RewardType:       campaign.RewardType,
		EligibleProducts: products,
		ExpiresAt:        qr.ExpiresAt,
	}
	if qr.ResellerID != nil {
		names, err := s.catalog.GetUserNames(ctx, []int64{*qr.ResellerID})
		if err != nil {
			return Preview{}, err
		}
		preview.ResellerName = names[*qr.ResellerID]
	}
	return preview, nil
}

// describeProducts resolves ids to catalog entries in id order, skipping ids
// the catalog no longer knows.
func (s *service) describeProducts(ctx context.Context, ids []int64, costs map[int64]int64) ([]EligibleProduct, error) {
	out := make([]EligibleProduct, 0, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	products, err := s.catalog.GetProductsByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	for _, id := range eligibility.NewSet(ids...).IDs() {
		product, ok := products[id]
		if !ok {
			continue
		}
		entry := EligibleProduct{ID: product.ID, Name: product.Name, RetailPrice: product.RetailPrice}
		if cost, ok := costs[id]; ok {
			c := cost
			entry.PointsCost = &c
		}
		out = append(out, entry)
	}
	return out, nil
}

// authoritativePoints reads the QR row, falling back to the points cost of the
// campaign's first eligible product when the row carries none.
func authoritativePoints(ctx context.Context, repo catalog.Repository, qr *models.QRCode) (int64, error) {
	if qr.Points > 0 {
		return qr.Points, nil
	}
	rows, err := repo.ListCampaignEligibleProducts(ctx, qr.CampaignID)
	if err != nil {
		return 0, err
	}
	for _, row := range rows {
		if row.PointsCost > 0 {
			return row.PointsCost, nil
		}
	}
	return 0, nil
}

func (s *service) uniqueCode(ctx context.Context, repo vouchers.Repository) (string, error) {
	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code := s.codes.NewCode()
		voucher, err := repo.FindVoucherByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if voucher != nil {
			continue
		}
		qr, err := repo.FindQRCodeByCode(ctx, code)
		if err != nil {
			return "", err
		}
		if qr == nil {
			return code, nil
		}
	}
	return "", pkgerrors.New(pkgerrors.CodeConflict, "could not allocate a unique voucher code")
}

// withinCampaignProducts rejects ids outside the campaign's eligible list.
// A campaign without a list accepts any catalog product.
func withinCampaignProducts(ctx context.Context, repo catalog.Repository, campaignID int64, ids []int64) error {
	rows, err := repo.ListCampaignEligibleProducts(ctx, campaignID)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}
	allowed := make([]int64, 0, len(rows))
	for _, row := range rows {
		allowed = append(allowed, row.ProductID)
	}
	if bad := eligibility.Ineligible(ids, eligibility.NewSet(allowed...)); len(bad) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "eligible products are outside the campaign").
			WithDetails(map[string]any{"ineligible_product_ids": bad})
	}
	return nil
}

func validateIssueInput(input IssueVoucherInput, now time.Time) error {
	switch {
	case input.ResellerID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "reseller id is required")
	case input.CampaignID <= 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "campaign id is required")
	case !input.Value.IsPositive():
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher value must be positive")
	case !wholeCents(input.Value):
		return pkgerrors.New(pkgerrors.CodeValidation, "voucher value has more than 2 decimal places")
	case input.PointsRequired < 0:
		return pkgerrors.New(pkgerrors.CodeValidation, "points required must not be negative")
	case !input.ExpiresAt.After(now):
		return pkgerrors.New(pkgerrors.CodeValidation, "expiry must be in the future")
	}
	return nil
}

// finish records metrics and converts untyped store errors into internal
// errors logged with the operation, code and actor.
func (s *service) finish(ctx context.Context, kind, operation, code string, actorID int64, started time.Time, err error) error {
	result := "ok"
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = s.storeFailure(ctx, operation, code, actorID, err)
		} else if pkgerrors.Is(err, pkgerrors.CodeInternal) {
			s.logFailure(ctx, operation, code, actorID, err)
		}
		result = string(pkgerrors.As(err).Code())
	}
	s.metrics.Observe(kind, operation, result, time.Since(started))
	return err
}

func (s *service) storeFailure(ctx context.Context, operation, code string, actorID int64, err error) error {
	wrapped := pkgerrors.Wrap(pkgerrors.CodeInternal, err, operation+" failed")
	s.logFailure(ctx, operation, code, actorID, wrapped)
	return wrapped
}

func (s *service) logFailure(ctx context.Context, operation, code string, actorID int64, err error) {
	if s.logg == nil {
		return
	}
	logCtx := s.logg.WithRedemption(ctx, operation, code, actorID)
	s.logg.Error(logCtx, "redemption store failure", err)
}

func int64Ptr(v int64) *int64 {
	return &v
}
