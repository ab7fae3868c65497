// Package vouchers is the persistence boundary for vouchers and campaign QR codes.
package vouchers

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/promoredeem/pkg/db/models"
)

// Repository loads codes and applies the one-shot redeemed transition.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindVoucherByCode(ctx context.Context, code string) (*models.Voucher, error)
	FindQRCodeByCode(ctx context.Context, code string) (*models.QRCode, error)
	CreateVoucher(ctx context.Context, voucher *models.Voucher) error
	MarkVoucherRedeemed(ctx context.Context, voucherID, shopkeeperID int64, at time.Time) (bool, error)
	MarkQRCodeRedeemed(ctx context.Context, qrCodeID, customerID int64, at time.Time) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository binds a voucher repository to the database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindVoucherByCode returns nil when no voucher carries the exact code.
func (r *repository) FindVoucherByCode(ctx context.Context, code string) (*models.Voucher, error) {
	var voucher models.Voucher
	err := r.db.WithContext(ctx).
		Preload("EligibleProducts", func(db *gorm.DB) *gorm.DB {
			return db.Order("product_id ASC")
		}).
		Where("code = ?", code).
		Take(&voucher).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &voucher, nil
}

// FindQRCodeByCode returns nil when no QR code carries the exact code.
func (r *repository) FindQRCodeByCode(ctx context.Context, code string) (*models.QRCode, error) {
	var qr models.QRCode
	if err := r.db.WithContext(ctx).Where("code = ?", code).Take(&qr).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &qr, nil
}

// CreateVoucher inserts the voucher together with its eligible product rows.
func (r *repository) CreateVoucher(ctx context.Context, voucher *models.Voucher) error {
	return r.db.WithContext(ctx).Create(voucher).Error
}

// MarkVoucherRedeemed flips is_redeemed only while it is still false. A false
// result means another caller won the transition.
func (r *repository) MarkVoucherRedeemed(ctx context.Context, voucherID, shopkeeperID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Voucher{}).
		Where("id = ? AND is_redeemed = ?", voucherID, false).
		Updates(map[string]any{
			"is_redeemed":               true,
			"redeemed_at":               at,
			"redeemed_by_shopkeeper_id": shopkeeperID,
			"updated_at":                at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// MarkQRCodeRedeemed is the QR counterpart of MarkVoucherRedeemed.
func (r *repository) MarkQRCodeRedeemed(ctx context.Context, qrCodeID, customerID int64, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.QRCode{}).
		Where("id = ? AND is_redeemed = ?", qrCodeID, false).
		Updates(map[string]any{
			"is_redeemed":             true,
			"redeemed_at":             at,
			"redeemed_by_customer_id": customerID,
			"updated_at":              at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}
