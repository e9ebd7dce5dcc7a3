package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/forgecraft/storefront/internal/domain"
	"github.com/forgecraft/storefront/internal/ports"
)

type downloadRepository struct {
	db *gorm.DB
}

// Reserve performs the quota check-and-insert atomically. The license row is
// locked first so concurrent mints for the same license serialize; counting
// and inserting inside the same transaction closes the window where several
// in-flight requests could each see a free slot.
func (r *downloadRepository) Reserve(ctx context.Context, params ports.ReserveDownloadParams) (domain.Download, error) {
	var rec downloadModel
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var license licenseModel
		if err := tx.Clauses(lockForUpdate(tx)...).
			Where("license_id = ?", params.LicenseID).
			Take(&license).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}

		count, err := countSuccessfulSince(tx, params.LicenseID, params.RequestedAt.Add(-params.Window))
		if err != nil {
			return err
		}
		if count >= int64(params.Limit) {
			return domain.ErrQuotaExceeded
		}

		rec = downloadModel{
			DownloadID:   uuid.New(),
			LicenseID:    params.LicenseID,
			UserID:       params.UserID,
			ProductID:    params.ProductID,
			DownloadedAt: params.RequestedAt,
			IPHash:       params.IPHash,
			Successful:   false,
		}
		return tx.Create(&rec).Error
	})
	if err != nil {
		return domain.Download{}, err
	}
	return toDomainDownload(rec), nil
}

func (r *downloadRepository) GetByID(ctx context.Context, downloadID uuid.UUID) (domain.Download, error) {
	var rec downloadModel
	if err := r.db.WithContext(ctx).Where("download_id = ?", downloadID).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Download{}, domain.ErrNotFound
		}
		return domain.Download{}, err
	}
	return toDomainDownload(rec), nil
}

// MarkSuccessful flips a pending row under the same license lock used by
// Reserve. The quota is re-counted here because the mint-time check cannot be
// trusted at redemption: the token is stateless and the window may have
// filled between mint and redeem.
func (r *downloadRepository) MarkSuccessful(ctx context.Context, downloadID uuid.UUID, at time.Time, window time.Duration, limit int) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var rec downloadModel
		if err := tx.Where("download_id = ?", downloadID).Take(&rec).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return domain.ErrNotFound
			}
			return err
		}
		if rec.Successful {
			return domain.ErrConflict
		}

		var license licenseModel
		if err := tx.Clauses(lockForUpdate(tx)...).
			Where("license_id = ?", rec.LicenseID).
			Take(&license).Error; err != nil {
			return err
		}

		count, err := countSuccessfulSince(tx, rec.LicenseID, at.Add(-window))
		if err != nil {
			return err
		}
		if count >= int64(limit) {
			return domain.ErrQuotaExceeded
		}

		return tx.Model(&downloadModel{}).
			Where("download_id = ?", downloadID).
			Where("successful = ?", false).
			Updates(map[string]any{
				"successful":    true,
				"downloaded_at": at,
			}).Error
	})
}

func (r *downloadRepository) CheckQuota(ctx context.Context, licenseID uuid.UUID, since time.Time, limit int) (domain.QuotaStatus, error) {
	count, err := countSuccessfulSince(r.db.WithContext(ctx), licenseID, since)
	if err != nil {
		return domain.QuotaStatus{}, err
	}
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}
	return domain.QuotaStatus{
		Allowed:   count < int64(limit),
		Remaining: remaining,
	}, nil
}

func (r *downloadRepository) DeleteStaleBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("successful = ?", false).
		Where("downloaded_at < ?", cutoff).
		Delete(&downloadModel{})
	return res.RowsAffected, res.Error
}

func countSuccessfulSince(tx *gorm.DB, licenseID uuid.UUID, since time.Time) (int64, error) {
	var count int64
	err := tx.Model(&downloadModel{}).
		Where("license_id = ?", licenseID).
		Where("successful = ?", true).
		Where("downloaded_at >= ?", since).
		Count(&count).Error
	return count, err
}
