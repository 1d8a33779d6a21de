// Package store provides the pipeline persistence layer.
//
// This package implements the Store interface for videos, tasks, upload
// accounts and their storage instances. Rows in this store are the only
// durable source of truth for the pipeline; queue payloads merely route
// tasks between stages.
//
// Two backends are supported:
//   - SQLite (single-node, default)
//   - PostgreSQL (multi-worker capable)
package store

import (
	"context"
	"time"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// Store provides the pipeline persistence interface.
//
// Thread Safety: Implementations must be safe for concurrent use from
// multiple goroutines.
//
// Every state transition of a task or video is written through this
// interface before the corresponding queue operation, so a crash loses
// at most the in-flight item (recovered by orphan GC).
type Store interface {
	// ============================================
	// VIDEO OPERATIONS
	// ============================================

	// GetVideo returns a video by its unique ID.
	// Returns models.ErrVideoNotFound if the video doesn't exist.
	GetVideo(ctx context.Context, id string) (*models.Video, error)

	// GetVideoByInfoHash returns a video by its torrent info hash.
	// The hash is matched lowercased.
	// Returns models.ErrVideoNotFound if no video has this hash.
	GetVideoByInfoHash(ctx context.Context, infoHash string) (*models.Video, error)

	// CreateVideo creates a new video.
	// The video ID will be generated if empty; the info hash is stored
	// lowercased. Returns the generated ID.
	// Returns models.ErrDuplicateVideo if a video with the same info
	// hash exists.
	CreateVideo(ctx context.Context, video *models.Video) (string, error)

	// UpdateVideoStatus sets the status and bumps updated_at.
	// Returns models.ErrVideoNotFound if the video doesn't exist.
	UpdateVideoStatus(ctx context.Context, id string, status models.VideoStatus) error

	// SetVideoDownloadResult persists the local output path after a
	// download, moves the video to downloaded and attaches the metadata
	// document when non-empty (existing metadata is kept otherwise).
	// Returns models.ErrVideoNotFound if the video doesn't exist.
	SetVideoDownloadResult(ctx context.Context, id, localPath, metadataJSON string) error

	// SetVideoShareURL persists the share URL after a successful upload
	// and moves the video to available.
	// Returns models.ErrVideoNotFound if the video doesn't exist.
	SetVideoShareURL(ctx context.Context, id, shareURL string) error

	// SetVideoCDNURL persists the resolved CDN URL, keeps the video
	// available and bumps updated_at so the freshness window restarts.
	// Returns models.ErrVideoNotFound if the video doesn't exist.
	SetVideoCDNURL(ctx context.Context, id, cdnURL string) error

	// ListVideosByStatus returns up to limit videos in the given status,
	// newest first.
	ListVideosByStatus(ctx context.Context, status models.VideoStatus, limit int) ([]*models.Video, error)

	// CountVideosByStatus returns the number of videos in the given status.
	CountVideosByStatus(ctx context.Context, status models.VideoStatus) (int64, error)

	// ExpireStaleVideos marks available videos whose updated_at is older
	// than olderThan as expired. Returns the number of videos expired.
	ExpireStaleVideos(ctx context.Context, olderThan time.Duration) (int64, error)

	// ============================================
	// TASK OPERATIONS
	// ============================================

	// GetTask returns a task by its unique ID.
	// Returns models.ErrTaskNotFound if the task doesn't exist.
	GetTask(ctx context.Context, id string) (*models.Task, error)

	// CreateTask creates a new task.
	// The task ID will be generated if empty. Returns the generated ID.
	CreateTask(ctx context.Context, task *models.Task) (string, error)

	// UpdateTaskState sets the state, overwrites error_message and bumps
	// updated_at.
	// Returns models.ErrTaskNotFound if the task doesn't exist.
	UpdateTaskState(ctx context.Context, id string, state models.TaskState, errorMessage string) error

	// UpdateTaskStateIf transitions the task only when it is still in
	// the from state. Returns false when the state changed concurrently
	// (for example orphan GC failed the task while a worker ran it).
	UpdateTaskStateIf(ctx context.Context, id string, from, to models.TaskState, errorMessage string) (bool, error)

	// SetTaskRetry resets the task to pending with the given retry count
	// and error message. Workers call this before re-pushing a payload
	// so a crash between the two leaves a pending task the orchestrator
	// re-promotes.
	// Returns models.ErrTaskNotFound if the task doesn't exist.
	SetTaskRetry(ctx context.Context, id string, retries int, errorMessage string) error

	// RouteTaskToQueue hands an open task to the next stage: sets
	// queue_name, resets the state to pending and clears error_message.
	// Returns false without touching the row when the task is missing or
	// already terminal, so a task failed by orphan GC is never
	// resurrected by a worker finishing late.
	RouteTaskToQueue(ctx context.Context, id, queueName string) (bool, error)

	// AssignTaskAccount binds an upload account to the task.
	// Returns models.ErrTaskNotFound if the task doesn't exist.
	AssignTaskAccount(ctx context.Context, id, accountID string) error

	// ListPendingTasks returns up to limit pending tasks ordered by
	// created_at ascending (strict FIFO).
	ListPendingTasks(ctx context.Context, limit int) ([]*models.Task, error)

	// HasOpenTask reports whether the video already has a task in a
	// non-terminal state. The ingester consults this so replaying a
	// discovery payload never creates a duplicate pipeline attempt.
	HasOpenTask(ctx context.Context, videoID string) (bool, error)

	// CountTasksByState returns the number of tasks in the given state.
	CountTasksByState(ctx context.Context, state models.TaskState) (int64, error)

	// FailOrphanTasks marks tasks stuck in a transient state for longer
	// than olderThan as failed. Returns the number of tasks cleaned up.
	FailOrphanTasks(ctx context.Context, olderThan time.Duration) (int64, error)

	// ============================================
	// ACCOUNT OPERATIONS
	// ============================================

	// GetAccount returns an account by its unique ID.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	GetAccount(ctx context.Context, id string) (*models.Account, error)

	// GetAccountByEmail returns an account by email.
	// Returns models.ErrAccountNotFound if no account has this email.
	GetAccountByEmail(ctx context.Context, email string) (*models.Account, error)

	// ListAccounts returns all accounts, oldest first.
	ListAccounts(ctx context.Context) ([]*models.Account, error)

	// CreateAccount creates a new account.
	// The account ID will be generated if empty; a zero quota defaults
	// to models.DefaultDailyQuotaBytes. Returns the generated ID.
	// Returns models.ErrDuplicateAccount if the email is taken.
	CreateAccount(ctx context.Context, account *models.Account) (string, error)

	// UpdateAccountStatus sets the account status. Moving an account to
	// active also clears cooldown_until and lease_expires_at.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	UpdateAccountStatus(ctx context.Context, id string, status models.AccountStatus) error

	// ============================================
	// SCHEDULER OPERATIONS
	// ============================================

	// NextAccount selects the least recently used selectable account,
	// stamps a lease of the given duration on it and returns its ID.
	// Expired cooldowns are reactivated first. Concurrent callers never
	// receive the same account within one lease window.
	// Returns models.ErrNoActiveAccounts when no account qualifies.
	NextAccount(ctx context.Context, lease time.Duration) (string, error)

	// MarkUsed stamps last_used_at and releases the lease.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	MarkUsed(ctx context.Context, accountID string) error

	// ApplyUploadUsage adds uploadedBytes to the account's daily
	// counter, rolling the counter first when the quota day has passed.
	// Crossing the quota moves the account to cooldown until
	// quota_reset_at. Also stamps last_used_at, releases the lease and
	// accrues usage on the account's storage instance.
	// Returns models.ErrAccountNotFound if the account doesn't exist.
	ApplyUploadUsage(ctx context.Context, accountID string, uploadedBytes int64) error

	// ActiveCount returns the number of active accounts.
	ActiveCount(ctx context.Context) (int64, error)

	// ReleaseExpiredCooldowns reactivates cooldown accounts whose
	// cooldown_until has passed. Returns the number reactivated.
	ReleaseExpiredCooldowns(ctx context.Context) (int64, error)

	// ============================================
	// STORAGE INSTANCE OPERATIONS
	// ============================================

	// GetStorageInstance returns a storage instance by its unique ID.
	// Returns models.ErrStorageInstanceNotFound if it doesn't exist.
	GetStorageInstance(ctx context.Context, id string) (*models.StorageInstance, error)

	// ListStorageInstances returns the storage instances bound to the
	// account, oldest first. An empty accountID lists all instances.
	ListStorageInstances(ctx context.Context, accountID string) ([]*models.StorageInstance, error)

	// CreateStorageInstance creates a new storage instance.
	// The instance ID will be generated if empty. Returns the generated ID.
	CreateStorageInstance(ctx context.Context, instance *models.StorageInstance) (string, error)

	// ============================================
	// HEALTH & LIFECYCLE
	// ============================================

	// Healthcheck verifies the underlying database connection.
	Healthcheck(ctx context.Context) error

	// Close closes the underlying database connection.
	Close() error
}
