//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/require"

	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/download"
	"github.com/Charliesj0129/pixAV/pkg/ingest"
	"github.com/Charliesj0129/pixAV/pkg/mediastore"
	mediafs "github.com/Charliesj0129/pixAV/pkg/mediastore/fs"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/orchestrator"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

// pipelineEnv hosts one complete pipeline against in-process backends:
// a sqlite store, a miniredis broker and a filesystem media store. Each
// test gets its own environment, so tests stay independent and can run
// in parallel.
type pipelineEnv struct {
	store  *store.GORMStore
	client *broker.Client
	redis  *miniredis.Miniredis
	queues broker.QueuesConfig
	media  mediastore.Store
	root   string

	crawl    *broker.Queue
	download *broker.Queue
	upload   *broker.Queue
}

// newPipelineEnv builds the shared backends and registers their
// teardown with the test.
func newPipelineEnv(t *testing.T) *pipelineEnv {
	t.Helper()

	st, err := store.New(&store.Config{
		Type:   store.DatabaseTypeSQLite,
		SQLite: store.SQLiteConfig{Path: ":memory:"},
	})
	require.NoError(t, err, "store should open and migrate")
	t.Cleanup(func() { st.Close() })

	mr := miniredis.RunT(t)
	client, err := broker.New(&broker.Config{URL: "redis://" + mr.Addr()})
	require.NoError(t, err, "broker should connect")
	t.Cleanup(func() { client.Close() })

	root := t.TempDir()
	media, err := mediafs.New(mediafs.DefaultConfig(filepath.Join(root, "media")))
	require.NoError(t, err, "media store should initialize")

	queues := broker.QueuesConfig{}
	queues.ApplyDefaults()

	return &pipelineEnv{
		store:    st,
		client:   client,
		redis:    mr,
		queues:   queues,
		media:    media,
		root:     root,
		crawl:    broker.NewQueue(client, queues.Crawl),
		download: broker.NewQueue(client, queues.Download),
		upload:   broker.NewQueue(client, queues.Upload),
	}
}

// newOrchestrator builds an orchestrator with default settings. mutate
// may adjust the configuration before construction.
func (e *pipelineEnv) newOrchestrator(mutate func(*orchestrator.Config)) *orchestrator.Orchestrator {
	cfg := orchestrator.Config{}
	cfg.ApplyDefaults()
	if mutate != nil {
		mutate(&cfg)
	}
	return orchestrator.New(cfg, e.store, e.client, e.queues, nil)
}

// newIngester builds an ingester draining the crawl queue.
func (e *pipelineEnv) newIngester(maxRetries, batchSize int) *ingest.Ingester {
	return ingest.New(e.store, e.crawl, e.queues.Download, maxRetries, batchSize)
}

// downloadFailures builds the failure handler the download stage uses.
func (e *pipelineEnv) downloadFailures(maxRetries int) *pipeline.FailureHandler {
	return pipeline.NewFailureHandler(e.store, pipeline.FailureConfig{
		Stage:             pipeline.StageDownload,
		Queue:             e.download,
		DLQ:               broker.NewQueue(e.client, broker.DLQName(e.queues.Download)),
		RetryVideoStatus:  models.VideoDiscovered,
		DefaultMaxRetries: maxRetries,
	})
}

// uploadFailures builds the failure handler the upload stage uses,
// including the delayed replay set.
func (e *pipelineEnv) uploadFailures(maxRetries, replayMax int, backoff []time.Duration) *pipeline.FailureHandler {
	return pipeline.NewFailureHandler(e.store, pipeline.FailureConfig{
		Stage:             pipeline.StageUpload,
		Queue:             e.upload,
		DLQ:               broker.NewQueue(e.client, broker.DLQName(e.queues.Upload)),
		Replays:           broker.NewDelaySet(e.client, broker.ReplaySetName(e.queues.Upload)),
		RetryVideoStatus:  models.VideoDownloaded,
		DefaultMaxRetries: maxRetries,
		ReplayMax:         replayMax,
		ReplayBackoff:     backoff,
	})
}

// newDownloadService builds a download service around the given fakes.
func (e *pipelineEnv) newDownloadService(client download.TorrentClient, remuxer download.Remuxer, maxRetries int) *download.Service {
	return download.NewService(download.ServiceConfig{
		Client:          client,
		Remuxer:         remuxer,
		Store:           e.store,
		Failures:        e.downloadFailures(maxRetries),
		UploadQueueName: e.queues.Upload,
		OutputDir:       filepath.Join(e.root, "remuxed"),
		Timeout:         30 * time.Second,
	})
}

// runDownloads drains up to max payloads from the download queue
// through the service and returns how many it processed.
func (e *pipelineEnv) runDownloads(t *testing.T, svc *download.Service, max int) int {
	t.Helper()
	ctx := context.Background()

	processed := 0
	for n := 0; n < max; n++ {
		raw, err := e.download.Pop(ctx, 250*time.Millisecond)
		require.NoError(t, err, "download queue pop should succeed")
		if raw == nil {
			break
		}

		p, err := pipeline.ParsePayload(raw)
		require.NoError(t, err, "download payload should parse")

		task, err := e.store.GetTask(ctx, p.TaskID)
		require.NoError(t, err, "dispatched task should exist")

		require.NoError(t, svc.Process(ctx, task, p), "download stage should not error")
		processed++
	}
	return processed
}

// createAccount seeds an active upload account.
func (e *pipelineEnv) createAccount(t *testing.T, email string) *models.Account {
	t.Helper()

	account := &models.Account{Email: email, Status: models.AccountActive}
	_, err := e.store.CreateAccount(context.Background(), account)
	require.NoError(t, err, "account creation should succeed")
	return account
}

// createVideo seeds a discovered video with a magnet link.
func (e *pipelineEnv) createVideo(t *testing.T, title string) *models.Video {
	t.Helper()

	video := &models.Video{
		Title:     title,
		MagnetURI: "magnet:?xt=urn:btih:" + title,
		Status:    models.VideoDiscovered,
	}
	_, err := e.store.CreateVideo(context.Background(), video)
	require.NoError(t, err, "video creation should succeed")
	return video
}

// pushDiscovery emits a crawl payload for the video.
func (e *pipelineEnv) pushDiscovery(t *testing.T, videoID string) {
	t.Helper()

	raw, err := json.Marshal(map[string]string{"video_id": videoID})
	require.NoError(t, err)
	_, err = e.crawl.PushRaw(context.Background(), raw)
	require.NoError(t, err, "discovery push should succeed")
}

// pendingTask returns the single pending task, failing the test when
// there is not exactly one.
func (e *pipelineEnv) pendingTask(t *testing.T) *models.Task {
	t.Helper()

	pending, err := e.store.ListPendingTasks(context.Background(), 10)
	require.NoError(t, err, "listing pending tasks should succeed")
	require.Len(t, pending, 1, "expected exactly one pending task")
	return pending[0]
}

// task reloads a task row.
func (e *pipelineEnv) task(t *testing.T, id string) *models.Task {
	t.Helper()

	task, err := e.store.GetTask(context.Background(), id)
	require.NoError(t, err, "task %s should exist", id)
	return task
}

// video reloads a video row.
func (e *pipelineEnv) video(t *testing.T, id string) *models.Video {
	t.Helper()

	video, err := e.store.GetVideo(context.Background(), id)
	require.NoError(t, err, "video %s should exist", id)
	return video
}

// waitTaskState polls until the task reaches the wanted state or the
// timeout elapses.
func (e *pipelineEnv) waitTaskState(t *testing.T, taskID string, want models.TaskState, timeout time.Duration) *models.Task {
	t.Helper()

	deadline := time.Now().Add(timeout)
	var last *models.Task
	for time.Now().Before(deadline) {
		last = e.task(t, taskID)
		if last.State == want {
			return last
		}
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("task %s never reached state %s (last state %s, error %q)",
		taskID, want, last.State, last.ErrorMessage)
	return nil
}

// waitQueueDepth polls until the queue holds at least depth entries.
func (e *pipelineEnv) waitQueueDepth(t *testing.T, queue *broker.Queue, depth int64, timeout time.Duration) {
	t.Helper()
	ctx := context.Background()

	deadline := time.Now().Add(timeout)
	var last int64
	for time.Now().Before(deadline) {
		n, err := queue.Length(ctx)
		require.NoError(t, err, "queue length should succeed")
		if n >= depth {
			return
		}
		last = n
		time.Sleep(25 * time.Millisecond)
	}
	t.Fatalf("queue %s never reached depth %d (last %d)", queue.Name(), depth, last)
}

// fakeTorrent stands in for qBittorrent. AddMagnet hands out sequential
// hashes and WaitComplete materializes a real file so the remux and
// upload stages operate on actual disk content.
type fakeTorrent struct {
	dir     string
	payload []byte
	addErr  error
	waitErr error
	added   int
	deleted []string
}

func newFakeTorrent(t *testing.T, dir string, payload []byte) *fakeTorrent {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755), "torrent scratch dir should exist")
	return &fakeTorrent{dir: dir, payload: payload}
}

func (f *fakeTorrent) AddMagnet(ctx context.Context, magnetURI string) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.added++
	return fmt.Sprintf("hash-%04d", f.added), nil
}

func (f *fakeTorrent) WaitComplete(ctx context.Context, hash string, timeout time.Duration) (string, error) {
	if f.waitErr != nil {
		return "", f.waitErr
	}
	path := filepath.Join(f.dir, hash+".mkv")
	if err := os.WriteFile(path, f.payload, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func (f *fakeTorrent) DeleteTorrent(ctx context.Context, hash string, deleteFiles bool) error {
	f.deleted = append(f.deleted, hash)
	return nil
}

// fakeRemuxer copies the input to the output path byte for byte.
type fakeRemuxer struct {
	err   error
	calls int
}

func (f *fakeRemuxer) Remux(ctx context.Context, inputPath, outputPath string) error {
	if f.err != nil {
		return f.err
	}
	f.calls++

	in, err := os.Open(inputPath)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return err
	}
	out, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
