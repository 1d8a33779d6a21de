package store

import (
	"context"
	"fmt"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// orphanErrorMessage is written on tasks swept by orphan GC.
const orphanErrorMessage = "orphan cleanup: stuck in transient state"

// ============================================
// TASK OPERATIONS
// ============================================

func (s *GORMStore) GetTask(ctx context.Context, id string) (*models.Task, error) {
	return getByField[models.Task](s.db, ctx, "id", id, models.ErrTaskNotFound)
}

func (s *GORMStore) CreateTask(ctx context.Context, task *models.Task) (string, error) {
	if task.State == "" {
		task.State = models.TaskPending
	}
	if err := task.Validate(); err != nil {
		return "", fmt.Errorf("invalid task: %w", err)
	}

	now := time.Now().UTC()
	task.CreatedAt = now
	task.UpdatedAt = now
	return createWithID(s.db, ctx, task, func(t *models.Task, id string) { t.ID = id }, task.ID, models.ErrDuplicateTask)
}

func (s *GORMStore) UpdateTaskState(ctx context.Context, id string, state models.TaskState, errorMessage string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Task{}, id, map[string]any{
		"state":         state,
		"error_message": errorMessage,
		"updated_at":    now,
	}, models.ErrTaskNotFound)
}

func (s *GORMStore) UpdateTaskStateIf(ctx context.Context, id string, from, to models.TaskState, errorMessage string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND state = ?", id, from).
		Updates(map[string]any{
			"state":         to,
			"error_message": errorMessage,
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GORMStore) SetTaskRetry(ctx context.Context, id string, retries int, errorMessage string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Task{}, id, map[string]any{
		"state":         models.TaskPending,
		"retries":       retries,
		"error_message": errorMessage,
		"updated_at":    now,
	}, models.ErrTaskNotFound)
}

func (s *GORMStore) RouteTaskToQueue(ctx context.Context, id, queueName string) (bool, error) {
	now := time.Now().UTC()
	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("id = ? AND state IN ?", id, models.OpenTaskStates()).
		Updates(map[string]any{
			"queue_name":    queueName,
			"state":         models.TaskPending,
			"error_message": "",
			"updated_at":    now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *GORMStore) AssignTaskAccount(ctx context.Context, id, accountID string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Task{}, id, map[string]any{
		"account_id": accountID,
		"updated_at": now,
	}, models.ErrTaskNotFound)
}

func (s *GORMStore) ListPendingTasks(ctx context.Context, limit int) ([]*models.Task, error) {
	var tasks []*models.Task
	err := s.db.WithContext(ctx).
		Where("state = ?", models.TaskPending).
		Order("created_at ASC").
		Limit(limit).
		Find(&tasks).Error
	if err != nil {
		return nil, err
	}
	return tasks, nil
}

func (s *GORMStore) HasOpenTask(ctx context.Context, videoID string) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("video_id = ? AND state IN ?", videoID, models.OpenTaskStates()).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (s *GORMStore) CountTasksByState(ctx context.Context, state models.TaskState) (int64, error) {
	return countRows(s.db, ctx, &models.Task{}, "state = ?", state)
}

func (s *GORMStore) FailOrphanTasks(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	result := s.db.WithContext(ctx).
		Model(&models.Task{}).
		Where("state IN ? AND updated_at < ?", models.TransientTaskStates(), cutoff).
		Updates(map[string]any{
			"state":         models.TaskFailed,
			"error_message": orphanErrorMessage,
			"updated_at":    now,
		})
	return result.RowsAffected, result.Error
}
