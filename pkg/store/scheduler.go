package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// Scheduler transactions run serializable on PostgreSQL and may abort
// with a serialization failure under contention; they are retried a
// bounded number of times before the error surfaces.
const schedulerTxAttempts = 3

// ============================================
// SCHEDULER OPERATIONS
// ============================================
//
// These operations own the quota, cooldown and lease fields of the
// accounts table. NextAccount implements LRU selection: expired
// cooldowns are reactivated, then the least recently used account that
// is active, off cooldown, unleased and under quota is leased and
// returned. On PostgreSQL the candidate row is locked with FOR UPDATE
// SKIP LOCKED so concurrent schedulers never pick the same account;
// SQLite is single-writer, so the plain transaction gives the same
// guarantee.

func (s *GORMStore) NextAccount(ctx context.Context, lease time.Duration) (string, error) {
	var id string
	err := s.retrySerializable(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()

			if _, err := releaseExpiredCooldowns(tx, now); err != nil {
				return err
			}

			query := tx.
				Where("status = ?", models.AccountActive).
				Where("cooldown_until IS NULL OR cooldown_until <= ?", now).
				Where("lease_expires_at IS NULL OR lease_expires_at <= ?", now).
				Where("quota_reset_at <= ? OR daily_uploaded_bytes < daily_quota_bytes", now).
				Order("last_used_at ASC NULLS FIRST")
			if s.dialect() == "postgres" {
				query = query.Clauses(clause.Locking{Strength: "UPDATE", Options: "SKIP LOCKED"})
			}

			var account models.Account
			if err := query.First(&account).Error; err != nil {
				return convertNotFoundError(err, models.ErrNoActiveAccounts)
			}

			expiresAt := now.Add(lease)
			err := tx.Model(&models.Account{}).
				Where("id = ?", account.ID).
				Updates(map[string]any{
					"lease_expires_at": expiresAt,
					"updated_at":       now,
				}).Error
			if err != nil {
				return err
			}

			id = account.ID
			return nil
		}, s.txOptions())
	})
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *GORMStore) MarkUsed(ctx context.Context, accountID string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Account{}, accountID, map[string]any{
		"last_used_at":     now,
		"lease_expires_at": nil,
		"updated_at":       now,
	}, models.ErrAccountNotFound)
}

func (s *GORMStore) ApplyUploadUsage(ctx context.Context, accountID string, uploadedBytes int64) error {
	if uploadedBytes < 0 {
		uploadedBytes = 0
	}

	return s.retrySerializable(ctx, func() error {
		return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			now := time.Now().UTC()

			query := tx.Where("id = ?", accountID)
			if s.dialect() == "postgres" {
				query = query.Clauses(clause.Locking{Strength: "UPDATE"})
			}

			var account models.Account
			if err := query.First(&account).Error; err != nil {
				return convertNotFoundError(err, models.ErrAccountNotFound)
			}

			// Roll the daily counter when the quota day has passed.
			var total int64
			resetAt := models.NextDayBoundary(now)
			if account.QuotaResetAt != nil && account.QuotaResetAt.After(now) {
				total = account.DailyUploadedBytes + uploadedBytes
				resetAt = *account.QuotaResetAt
			} else {
				total = uploadedBytes
			}

			fields := map[string]any{
				"daily_uploaded_bytes": total,
				"quota_reset_at":       resetAt,
				"last_used_at":         now,
				"lease_expires_at":     nil,
				"updated_at":           now,
			}
			if total >= account.DailyQuotaBytes {
				fields["status"] = models.AccountCooldown
				fields["cooldown_until"] = resetAt
			}

			err := tx.Model(&models.Account{}).
				Where("id = ?", account.ID).
				Updates(fields).Error
			if err != nil {
				return err
			}

			return accrueInstanceUsage(tx, account.ID, uploadedBytes, now)
		}, s.txOptions())
	})
}

func (s *GORMStore) ActiveCount(ctx context.Context) (int64, error) {
	return countRows(s.db, ctx, &models.Account{}, "status = ?", models.AccountActive)
}

func (s *GORMStore) ReleaseExpiredCooldowns(ctx context.Context) (int64, error) {
	return releaseExpiredCooldowns(s.db.WithContext(ctx), time.Now().UTC())
}

// releaseExpiredCooldowns reactivates cooldown accounts whose
// cooldown_until has passed: active again, counters zeroed, quota day
// restarted at the next boundary.
func releaseExpiredCooldowns(db *gorm.DB, now time.Time) (int64, error) {
	result := db.Model(&models.Account{}).
		Where("status = ? AND cooldown_until IS NOT NULL AND cooldown_until <= ?", models.AccountCooldown, now).
		Updates(map[string]any{
			"status":               models.AccountActive,
			"cooldown_until":       nil,
			"lease_expires_at":     nil,
			"daily_uploaded_bytes": 0,
			"quota_reset_at":       models.NextDayBoundary(now),
			"updated_at":           now,
		})
	return result.RowsAffected, result.Error
}

// accrueInstanceUsage adds uploaded bytes to the account's storage
// instance, flipping its health to full once capacity is reached.
// Accounts without an instance are left untouched.
func accrueInstanceUsage(tx *gorm.DB, accountID string, uploadedBytes int64, now time.Time) error {
	var instance models.StorageInstance
	err := tx.Where("account_id = ?", accountID).
		Order("created_at ASC").
		First(&instance).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		return err
	}

	used := instance.UsedBytes + uploadedBytes
	fields := map[string]any{
		"used_bytes": used,
		"updated_at": now,
	}
	if instance.CapacityBytes > 0 && used >= instance.CapacityBytes {
		fields["health"] = models.StorageFull
	}
	return tx.Model(&models.StorageInstance{}).
		Where("id = ?", instance.ID).
		Updates(fields).Error
}

// retrySerializable runs fn, retrying on serialization failures up to
// schedulerTxAttempts times.
func (s *GORMStore) retrySerializable(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 0; attempt < schedulerTxAttempts; attempt++ {
		if err = fn(); err == nil || !isSerializationFailure(err) {
			return err
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt+1) * 10 * time.Millisecond):
		}
	}
	return err
}
