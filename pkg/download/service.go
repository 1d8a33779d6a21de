// Package download implements the download stage: it pulls tasks from
// the download queue, fetches media through a torrent client, remuxes
// the result to a streamable MP4, attaches best-effort metadata and
// routes the task onward to the upload queue.
package download

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/Charliesj0129/pixAV/internal/logger"
	"github.com/Charliesj0129/pixAV/internal/telemetry"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// TorrentClient fetches media referenced by magnet URIs.
type TorrentClient interface {
	// AddMagnet submits a magnet URI and returns its info hash.
	AddMagnet(ctx context.Context, magnetURI string) (string, error)

	// WaitComplete blocks until the torrent finishes and returns the
	// downloaded content path.
	WaitComplete(ctx context.Context, hash string, timeout time.Duration) (string, error)

	// DeleteTorrent removes the torrent and optionally its files.
	DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error
}

// Remuxer rewraps downloaded media into a streamable container.
type Remuxer interface {
	Remux(ctx context.Context, inputPath, outputPath string) error
}

// MetadataScraper looks up a metadata document for a title.
type MetadataScraper interface {
	Scrape(ctx context.Context, title string) (map[string]any, error)
}

// Service processes one download task at a time.
//
// Flow per task: load video, resume if already on disk, otherwise
// download, remux, clean up the torrent, scrape metadata, persist the
// result and route the task to the upload queue. Failures between the
// downloading transition and the persist go through the shared failure
// policy.
type Service struct {
	client   TorrentClient
	remuxer  Remuxer
	scraper  MetadataScraper
	store    store.Store
	failures *pipeline.FailureHandler

	uploadQueueName string
	outputDir       string
	mode            string
	timeout         time.Duration
}

// ServiceConfig wires a download service.
type ServiceConfig struct {
	Client          TorrentClient
	Remuxer         Remuxer
	Scraper         MetadataScraper // nil disables metadata scraping
	Store           store.Store
	Failures        *pipeline.FailureHandler
	UploadQueueName string
	OutputDir       string
	Mode            string
	Timeout         time.Duration
}

// NewService creates a download service.
func NewService(cfg ServiceConfig) *Service {
	mode := cfg.Mode
	if mode == "" {
		mode = ModeFull
	}
	return &Service{
		client:          cfg.Client,
		remuxer:         cfg.Remuxer,
		scraper:         cfg.Scraper,
		store:           cfg.Store,
		failures:        cfg.Failures,
		uploadQueueName: cfg.UploadQueueName,
		outputDir:       cfg.OutputDir,
		mode:            mode,
		timeout:         cfg.Timeout,
	}
}

// Process runs the download stage for one task.
func (s *Service) Process(ctx context.Context, task *models.Task, p pipeline.Payload) error {
	ctx, span := telemetry.StartTaskSpan(ctx, pipeline.StageDownload, task.ID, task.VideoID,
		telemetry.StageMode(s.mode),
		telemetry.TaskRetries(task.Retries))
	defer span.End()

	lc := logger.NewLogContext("download").
		WithTask(task.ID, task.VideoID).
		WithQueue(p.QueueName).
		WithTrace(telemetry.TraceID(ctx), telemetry.SpanID(ctx))
	ctx = logger.WithContext(ctx, lc)

	err := s.process(ctx, task, p)
	if err != nil {
		telemetry.RecordError(ctx, err)
	}
	return err
}

func (s *Service) process(ctx context.Context, task *models.Task, p pipeline.Payload) error {
	video, err := s.store.GetVideo(ctx, task.VideoID)
	if errors.Is(err, models.ErrVideoNotFound) {
		return s.fail(ctx, task, p, pipeline.Permanent(fmt.Errorf("video %s not found", task.VideoID)))
	}
	if err != nil {
		return fmt.Errorf("failed to load video %s: %w", task.VideoID, err)
	}
	if video.MagnetURI == "" {
		return s.fail(ctx, task, p, pipeline.Permanent(errors.New("video has no magnet_uri")))
	}

	// Resume a previously downloaded video without touching the torrent
	// client.
	if video.LocalPath != "" && isFile(video.LocalPath) {
		if err := s.store.UpdateVideoStatus(ctx, video.ID, models.VideoDownloaded); err != nil {
			return fmt.Errorf("failed to mark video downloaded: %w", err)
		}
		logger.InfoCtx(ctx, "resuming downloaded video", "local_path", video.LocalPath)
		return s.routeToUpload(ctx, task, video.LocalPath)
	}

	var outputPath string
	if s.mode == ModeVerify {
		outputPath, err = s.processVerify(ctx, task, video)
	} else {
		outputPath, err = s.processFull(ctx, task, video)
	}
	if err != nil {
		return s.fail(ctx, task, p, err)
	}

	return s.routeToUpload(ctx, task, outputPath)
}

// processFull runs download, remux, cleanup, metadata and persist.
func (s *Service) processFull(ctx context.Context, task *models.Task, video *models.Video) (string, error) {
	if err := s.markDownloading(ctx, task); err != nil {
		return "", err
	}

	hash, err := s.client.AddMagnet(ctx, video.MagnetURI)
	if err != nil {
		return "", err
	}
	downloadPath, err := s.client.WaitComplete(ctx, hash, s.timeout)
	if err != nil {
		return "", err
	}

	if err := s.store.UpdateTaskState(ctx, task.ID, models.TaskRemuxing, ""); err != nil {
		return "", err
	}
	outputPath := MakeOutputPath(downloadPath, s.outputDir)
	if err := s.remuxer.Remux(ctx, downloadPath, outputPath); err != nil {
		return "", err
	}

	s.cleanupTorrent(ctx, hash)

	metadataJSON := s.scrapeMetadata(ctx, video.Title)

	if err := s.store.SetVideoDownloadResult(ctx, video.ID, outputPath, metadataJSON); err != nil {
		return "", err
	}
	return outputPath, nil
}

// processVerify checks torrent client connectivity and emits a small
// placeholder artefact so downstream stages can run.
func (s *Service) processVerify(ctx context.Context, task *models.Task, video *models.Video) (string, error) {
	if err := s.markDownloading(ctx, task); err != nil {
		return "", err
	}

	hash, err := s.client.AddMagnet(ctx, video.MagnetURI)
	if err != nil {
		return "", err
	}
	s.cleanupTorrent(ctx, hash)

	outputPath := filepath.Join(s.outputDir, fmt.Sprintf("verify-%s.mp4", task.ID))
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	placeholder := make([]byte, 1024)
	for i := range placeholder {
		placeholder[i] = '0'
	}
	if err := os.WriteFile(outputPath, placeholder, 0644); err != nil {
		return "", fmt.Errorf("failed to write placeholder: %w", err)
	}

	if err := s.store.SetVideoDownloadResult(ctx, video.ID, outputPath, ""); err != nil {
		return "", err
	}
	return outputPath, nil
}

func (s *Service) markDownloading(ctx context.Context, task *models.Task) error {
	if err := s.store.UpdateTaskState(ctx, task.ID, models.TaskDownloading, ""); err != nil {
		return err
	}
	return s.store.UpdateVideoStatus(ctx, task.VideoID, models.VideoDownloading)
}

// cleanupTorrent removes the torrent and its files. Failures are logged
// and never fatal.
func (s *Service) cleanupTorrent(ctx context.Context, hash string) {
	if err := s.client.DeleteTorrent(ctx, hash, true); err != nil {
		logger.WarnCtx(ctx, "failed to delete torrent", "hash", hash, "error", err)
	}
}

// scrapeMetadata looks up a metadata document. Failures are logged and
// an empty result returned.
func (s *Service) scrapeMetadata(ctx context.Context, title string) string {
	if s.scraper == nil {
		return ""
	}
	doc, err := s.scraper.Scrape(ctx, title)
	if err != nil {
		logger.WarnCtx(ctx, "metadata scrape failed", "title", title, "error", err)
		return ""
	}
	raw, err := json.Marshal(doc)
	if err != nil {
		logger.WarnCtx(ctx, "failed to marshal metadata", "title", title, "error", err)
		return ""
	}
	return string(raw)
}

// routeToUpload hands the task to the upload stage. A task that turned
// terminal mid-flight, for example failed by orphan GC during a very
// long download, is not resurrected: the result stays on disk for a
// later resume and the task is abandoned.
func (s *Service) routeToUpload(ctx context.Context, task *models.Task, outputPath string) error {
	routed, err := s.store.RouteTaskToQueue(ctx, task.ID, s.uploadQueueName)
	if err != nil {
		return fmt.Errorf("failed to route task %s to upload: %w", task.ID, err)
	}
	if !routed {
		logger.WarnCtx(ctx, "task no longer open, abandoning download result",
			"local_path", outputPath)
		return nil
	}
	logger.InfoCtx(ctx, "task routed to upload queue",
		"queue", s.uploadQueueName,
		"local_path", outputPath)
	return nil
}

// fail applies the shared failure policy.
func (s *Service) fail(ctx context.Context, task *models.Task, p pipeline.Payload, taskErr error) error {
	_, err := s.failures.HandleFailure(ctx, task, p, taskErr)
	return err
}

// isFile reports whether path exists and is a regular file.
func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
