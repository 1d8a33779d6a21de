package store

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// ============================================
// VIDEO OPERATIONS
// ============================================

func (s *GORMStore) GetVideo(ctx context.Context, id string) (*models.Video, error) {
	return getByField[models.Video](s.db, ctx, "id", id, models.ErrVideoNotFound)
}

func (s *GORMStore) GetVideoByInfoHash(ctx context.Context, infoHash string) (*models.Video, error) {
	return getByField[models.Video](s.db, ctx, "info_hash", strings.ToLower(infoHash), models.ErrVideoNotFound)
}

func (s *GORMStore) CreateVideo(ctx context.Context, video *models.Video) (string, error) {
	video.InfoHash = strings.ToLower(video.InfoHash)
	if video.Status == "" {
		video.Status = models.VideoDiscovered
	}
	if err := video.Validate(); err != nil {
		return "", fmt.Errorf("invalid video: %w", err)
	}

	now := time.Now().UTC()
	video.CreatedAt = now
	video.UpdatedAt = now
	return createWithID(s.db, ctx, video, func(v *models.Video, id string) { v.ID = id }, video.ID, models.ErrDuplicateVideo)
}

func (s *GORMStore) UpdateVideoStatus(ctx context.Context, id string, status models.VideoStatus) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Video{}, id, map[string]any{
		"status":     status,
		"updated_at": now,
	}, models.ErrVideoNotFound)
}

func (s *GORMStore) SetVideoDownloadResult(ctx context.Context, id, localPath, metadataJSON string) error {
	now := time.Now().UTC()
	fields := map[string]any{
		"local_path": localPath,
		"status":     models.VideoDownloaded,
		"updated_at": now,
	}
	// Keep previously scraped metadata when this download produced none.
	if metadataJSON != "" {
		fields["metadata_json"] = metadataJSON
	}
	return updateFields(s.db, ctx, &models.Video{}, id, fields, models.ErrVideoNotFound)
}

func (s *GORMStore) SetVideoShareURL(ctx context.Context, id, shareURL string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Video{}, id, map[string]any{
		"share_url":  shareURL,
		"status":     models.VideoAvailable,
		"updated_at": now,
	}, models.ErrVideoNotFound)
}

func (s *GORMStore) SetVideoCDNURL(ctx context.Context, id, cdnURL string) error {
	now := time.Now().UTC()
	return updateFields(s.db, ctx, &models.Video{}, id, map[string]any{
		"cdn_url":    cdnURL,
		"status":     models.VideoAvailable,
		"updated_at": now,
	}, models.ErrVideoNotFound)
}

func (s *GORMStore) ListVideosByStatus(ctx context.Context, status models.VideoStatus, limit int) ([]*models.Video, error) {
	var videos []*models.Video
	err := s.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Limit(limit).
		Find(&videos).Error
	if err != nil {
		return nil, err
	}
	return videos, nil
}

func (s *GORMStore) CountVideosByStatus(ctx context.Context, status models.VideoStatus) (int64, error) {
	return countRows(s.db, ctx, &models.Video{}, "status = ?", status)
}

func (s *GORMStore) ExpireStaleVideos(ctx context.Context, olderThan time.Duration) (int64, error) {
	now := time.Now().UTC()
	cutoff := now.Add(-olderThan)

	result := s.db.WithContext(ctx).
		Model(&models.Video{}).
		Where("status = ? AND share_url <> '' AND updated_at < ?", models.VideoAvailable, cutoff).
		Updates(map[string]any{
			"status":     models.VideoExpired,
			"updated_at": now,
		})
	return result.RowsAffected, result.Error
}
