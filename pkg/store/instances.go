package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// ============================================
// STORAGE INSTANCE OPERATIONS
// ============================================

func (s *GORMStore) GetStorageInstance(ctx context.Context, id string) (*models.StorageInstance, error) {
	return getByField[models.StorageInstance](s.db, ctx, "id", id, models.ErrStorageInstanceNotFound)
}

func (s *GORMStore) ListStorageInstances(ctx context.Context, accountID string) ([]*models.StorageInstance, error) {
	var instances []*models.StorageInstance
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if accountID != "" {
		q = q.Where("account_id = ?", accountID)
	}
	if err := q.Find(&instances).Error; err != nil {
		return nil, err
	}
	return instances, nil
}

func (s *GORMStore) CreateStorageInstance(ctx context.Context, instance *models.StorageInstance) (string, error) {
	if instance.Health == "" {
		instance.Health = models.StorageHealthy
	}
	if err := instance.Validate(); err != nil {
		return "", fmt.Errorf("invalid storage instance: %w", err)
	}

	now := time.Now().UTC()
	instance.CreatedAt = now
	instance.UpdatedAt = now
	return createWithID(s.db, ctx, instance, func(i *models.StorageInstance, id string) { i.ID = id }, instance.ID, models.ErrDuplicateStorageInstance)
}
