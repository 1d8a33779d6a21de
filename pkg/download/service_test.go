//go:build integration

package download

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

type fakeTorrentClient struct {
	addErr  error
	waitErr error
	path    string
	added   []string
	deleted []string
}

func (f *fakeTorrentClient) AddMagnet(ctx context.Context, magnetURI string) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added = append(f.added, magnetURI)
	return "cafebabe", nil
}

func (f *fakeTorrentClient) WaitComplete(ctx context.Context, hash string, timeout time.Duration) (string, error) {
	if f.waitErr != nil {
		return "", f.waitErr
	}
	return f.path, nil
}

func (f *fakeTorrentClient) DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	f.deleted = append(f.deleted, hash)
	return nil
}

type fakeRemuxer struct {
	err     error
	inputs  []string
	outputs []string
}

func (f *fakeRemuxer) Remux(ctx context.Context, inputPath, outputPath string) error {
	if f.err != nil {
		return f.err
	}
	f.inputs = append(f.inputs, inputPath)
	f.outputs = append(f.outputs, outputPath)
	return nil
}

type fakeScraper struct {
	doc map[string]any
}

func (f *fakeScraper) Scrape(ctx context.Context, title string) (map[string]any, error) {
	return f.doc, nil
}

type serviceFixture struct {
	store   *store.GORMStore
	queue   *broker.Queue
	dlq     *broker.Queue
	client  *fakeTorrentClient
	remuxer *fakeRemuxer
	outDir  string
	service *Service
}

func newServiceFixture(t *testing.T, mode string) *serviceFixture {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	if err != nil {
		t.Fatalf("store.New failed: %v", err)
	}
	t.Cleanup(func() { st.Close() })

	mr := miniredis.RunT(t)
	client, err := broker.New(&broker.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("broker.New failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	outDir, err := os.MkdirTemp("", "pixav-download-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}
	t.Cleanup(func() { os.RemoveAll(outDir) })

	queue := broker.NewQueue(client, "pixav:download")
	dlq := broker.NewQueue(client, broker.DLQName("pixav:download"))
	failures := pipeline.NewFailureHandler(st, pipeline.FailureConfig{
		Stage:             pipeline.StageDownload,
		Queue:             queue,
		DLQ:               dlq,
		RetryVideoStatus:  models.VideoDiscovered,
		DefaultMaxRetries: 10,
	})

	torrents := &fakeTorrentClient{path: filepath.Join(outDir, "movie.mkv")}
	remuxer := &fakeRemuxer{}
	svc := NewService(ServiceConfig{
		Client:          torrents,
		Remuxer:         remuxer,
		Scraper:         &fakeScraper{doc: map[string]any{"found": true, "title": "clip"}},
		Store:           st,
		Failures:        failures,
		UploadQueueName: "pixav:upload",
		OutputDir:       outDir,
		Mode:            mode,
		Timeout:         5 * time.Second,
	})

	return &serviceFixture{
		store:   st,
		queue:   queue,
		dlq:     dlq,
		client:  torrents,
		remuxer: remuxer,
		outDir:  outDir,
		service: svc,
	}
}

func (f *serviceFixture) createVideoTask(t *testing.T, video *models.Video) *models.Task {
	t.Helper()
	ctx := context.Background()

	videoID, err := f.store.CreateVideo(ctx, video)
	if err != nil {
		t.Fatalf("CreateVideo failed: %v", err)
	}

	task := &models.Task{
		VideoID:    videoID,
		State:      models.TaskPending,
		QueueName:  "pixav:download",
		MaxRetries: 10,
	}
	taskID, err := f.store.CreateTask(ctx, task)
	if err != nil {
		t.Fatalf("CreateTask failed: %v", err)
	}
	task.ID = taskID
	return task
}

func TestServiceProcessFullMode(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeFull)
	task := f.createVideoTask(t, &models.Video{
		Title:     "clip",
		MagnetURI: "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01",
		Status:    models.VideoDiscovered,
	})

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, err := f.store.GetTask(ctx, task.ID)
	if err != nil {
		t.Fatalf("GetTask failed: %v", err)
	}
	if got.State != models.TaskPending {
		t.Errorf("expected task pending after routing, got %s", got.State)
	}
	if got.QueueName != "pixav:upload" {
		t.Errorf("expected task routed to pixav:upload, got %q", got.QueueName)
	}

	video, err := f.store.GetVideo(ctx, task.VideoID)
	if err != nil {
		t.Fatalf("GetVideo failed: %v", err)
	}
	if video.Status != models.VideoDownloaded {
		t.Errorf("expected video downloaded, got %s", video.Status)
	}
	wantPath := filepath.Join(f.outDir, "movie.mp4")
	if video.LocalPath != wantPath {
		t.Errorf("expected local_path %q, got %q", wantPath, video.LocalPath)
	}
	if !strings.Contains(video.MetadataJSON, `"found":true`) {
		t.Errorf("expected scraped metadata, got %q", video.MetadataJSON)
	}

	if len(f.remuxer.inputs) != 1 || f.remuxer.inputs[0] != f.client.path {
		t.Errorf("remuxer saw inputs %v, want [%s]", f.remuxer.inputs, f.client.path)
	}
	if len(f.client.deleted) != 1 || f.client.deleted[0] != "cafebabe" {
		t.Errorf("expected torrent cleanup, got %v", f.client.deleted)
	}
}

func TestServiceProcessResumesLocalFile(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeFull)

	existing := filepath.Join(f.outDir, "already-there.mp4")
	if err := os.WriteFile(existing, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	task := f.createVideoTask(t, &models.Video{
		Title:     "clip",
		MagnetURI: "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01",
		LocalPath: existing,
		Status:    models.VideoDiscovered,
	})

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if len(f.client.added) != 0 {
		t.Errorf("resume must not touch the torrent client, added %v", f.client.added)
	}
	got, _ := f.store.GetTask(ctx, task.ID)
	if got.QueueName != "pixav:upload" || got.State != models.TaskPending {
		t.Errorf("expected task routed to upload, got state=%s queue=%q", got.State, got.QueueName)
	}
	video, _ := f.store.GetVideo(ctx, task.VideoID)
	if video.Status != models.VideoDownloaded {
		t.Errorf("expected video downloaded, got %s", video.Status)
	}
}

func TestServiceProcessMissingMagnetDeadLetters(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeFull)
	task := f.createVideoTask(t, &models.Video{
		Title:  "clip",
		Status: models.VideoDiscovered,
	})

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.State != models.TaskFailed {
		t.Errorf("expected task failed, got %s", got.State)
	}
	video, _ := f.store.GetVideo(ctx, task.VideoID)
	if video.Status != models.VideoFailed {
		t.Errorf("expected video failed, got %s", video.Status)
	}

	items, err := f.dlq.Items(ctx, 10)
	if err != nil {
		t.Fatalf("dlq.Items failed: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(items))
	}
	entry, err := pipeline.ParseDLQPayload(items[0])
	if err != nil {
		t.Fatalf("ParseDLQPayload failed: %v", err)
	}
	if entry.Stage != pipeline.StageDownload {
		t.Errorf("expected stage download, got %q", entry.Stage)
	}
	if entry.ErrorKind != pipeline.ErrorKindPermanent {
		t.Errorf("expected permanent error kind, got %q", entry.ErrorKind)
	}
	if !strings.Contains(entry.ErrorMessage, "magnet_uri") {
		t.Errorf("unexpected error message %q", entry.ErrorMessage)
	}
}

func TestServiceProcessTransientErrorRetries(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeFull)
	f.client.addErr = errors.New("connection refused")
	task := f.createVideoTask(t, &models.Video{
		Title:     "clip",
		MagnetURI: "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01",
		Status:    models.VideoDiscovered,
	})

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.State != models.TaskPending {
		t.Errorf("expected task pending for retry, got %s", got.State)
	}
	if got.Retries != 1 {
		t.Errorf("expected retries 1, got %d", got.Retries)
	}
	if !strings.Contains(got.ErrorMessage, "connection refused") {
		t.Errorf("expected error message recorded, got %q", got.ErrorMessage)
	}

	video, _ := f.store.GetVideo(ctx, task.VideoID)
	if video.Status != models.VideoDiscovered {
		t.Errorf("expected video rolled back to discovered, got %s", video.Status)
	}

	length, _ := f.queue.Length(ctx)
	if length != 1 {
		t.Fatalf("expected 1 requeued payload, got %d", length)
	}
	raw, err := f.queue.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("Pop failed: %v", err)
	}
	p, err := pipeline.ParsePayload(raw)
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	if p.Retries != 1 || p.QueueName != "pixav:download" {
		t.Errorf("unexpected retry payload retries=%d queue=%q", p.Retries, p.QueueName)
	}
}

func TestServiceProcessAbandonsFailedTask(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeFull)

	existing := filepath.Join(f.outDir, "slow.mp4")
	if err := os.WriteFile(existing, []byte("data"), 0644); err != nil {
		t.Fatalf("failed to write file: %v", err)
	}
	task := f.createVideoTask(t, &models.Video{
		Title:     "clip",
		MagnetURI: "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01",
		LocalPath: existing,
		Status:    models.VideoDiscovered,
	})

	// Orphan GC failed the task while the stage was still running it.
	if err := f.store.UpdateTaskState(ctx, task.ID, models.TaskFailed, "orphan cleanup: stuck in transient state"); err != nil {
		t.Fatalf("UpdateTaskState failed: %v", err)
	}

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	got, _ := f.store.GetTask(ctx, task.ID)
	if got.State != models.TaskFailed {
		t.Errorf("failed task must not be resurrected, got %s", got.State)
	}
	if got.QueueName != "pixav:download" {
		t.Errorf("failed task must keep its queue, got %q", got.QueueName)
	}
}

func TestServiceProcessVerifyMode(t *testing.T) {
	ctx := context.Background()
	f := newServiceFixture(t, ModeVerify)
	task := f.createVideoTask(t, &models.Video{
		Title:     "clip",
		MagnetURI: "magnet:?xt=urn:btih:abcdef0123456789abcdef0123456789abcdef01",
		Status:    models.VideoDiscovered,
	})

	if err := f.service.Process(ctx, task, pipeline.PayloadFromTask(task)); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	wantPath := filepath.Join(f.outDir, "verify-"+task.ID+".mp4")
	info, err := os.Stat(wantPath)
	if err != nil {
		t.Fatalf("expected placeholder at %s: %v", wantPath, err)
	}
	if info.Size() != 1024 {
		t.Errorf("expected 1024 byte placeholder, got %d", info.Size())
	}

	if len(f.client.deleted) != 1 {
		t.Errorf("verify mode must clean up the torrent, deleted %v", f.client.deleted)
	}
	video, _ := f.store.GetVideo(ctx, task.VideoID)
	if video.Status != models.VideoDownloaded || video.LocalPath != wantPath {
		t.Errorf("unexpected video status=%s local_path=%q", video.Status, video.LocalPath)
	}
	got, _ := f.store.GetTask(ctx, task.ID)
	if got.QueueName != "pixav:upload" {
		t.Errorf("expected task routed to upload, got %q", got.QueueName)
	}
}
