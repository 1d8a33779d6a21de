package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// ============================================
// ACCOUNT OPERATIONS
// ============================================

func (s *GORMStore) GetAccount(ctx context.Context, id string) (*models.Account, error) {
	return getByField[models.Account](s.db, ctx, "id", id, models.ErrAccountNotFound)
}

func (s *GORMStore) GetAccountByEmail(ctx context.Context, email string) (*models.Account, error) {
	return getByField[models.Account](s.db, ctx, "email", email, models.ErrAccountNotFound)
}

func (s *GORMStore) ListAccounts(ctx context.Context) ([]*models.Account, error) {
	var accounts []*models.Account
	if err := s.db.WithContext(ctx).Order("created_at ASC").Find(&accounts).Error; err != nil {
		return nil, err
	}
	return accounts, nil
}

func (s *GORMStore) CreateAccount(ctx context.Context, account *models.Account) (string, error) {
	if account.Status == "" {
		account.Status = models.AccountActive
	}
	if account.DailyQuotaBytes == 0 {
		account.DailyQuotaBytes = models.DefaultDailyQuotaBytes
	}

	now := time.Now().UTC()
	if account.QuotaResetAt == nil {
		reset := models.NextDayBoundary(now)
		account.QuotaResetAt = &reset
	}
	if err := account.Validate(); err != nil {
		return "", fmt.Errorf("invalid account: %w", err)
	}

	account.CreatedAt = now
	account.UpdatedAt = now
	return createWithID(s.db, ctx, account, func(a *models.Account, id string) { a.ID = id }, account.ID, models.ErrDuplicateAccount)
}

func (s *GORMStore) UpdateAccountStatus(ctx context.Context, id string, status models.AccountStatus) error {
	if !status.IsValid() {
		return fmt.Errorf("invalid account status %q", status)
	}

	now := time.Now().UTC()
	fields := map[string]any{
		"status":     status,
		"updated_at": now,
	}
	// Reactivation also lifts cooldown and any stale lease.
	if status == models.AccountActive {
		fields["cooldown_until"] = nil
		fields["lease_expires_at"] = nil
	}
	return updateFields(s.db, ctx, &models.Account{}, id, fields, models.ErrAccountNotFound)
}
