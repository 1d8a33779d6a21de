//go:build e2e

package e2e

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/upload"
)

// flakyInjector fails the first failUntil attempts with a transient
// error and succeeds afterwards.
type flakyInjector struct {
	mu        sync.Mutex
	failUntil int
	calls     int
	shareURL  string
}

func (f *flakyInjector) Process(ctx context.Context, task *models.Task) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.calls++
	if f.calls <= f.failUntil {
		return "", assert.AnError
	}
	return f.shareURL, nil
}

func (f *flakyInjector) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// TestUploadRetryExhaustionAndDelayedReplay drives an upload task
// through its whole failure funnel: transient retries, dead-lettering
// once the budget is spent, delayed replay with a fresh budget and a
// final successful attempt.
func TestUploadRetryExhaustionAndDelayedReplay(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	video := env.createVideo(t, "e2e-replay")

	artefact := filepath.Join(env.root, "replay.mp4")
	require.NoError(t, os.WriteFile(artefact, []byte("replayable artefact"), 0o644))
	require.NoError(t, env.store.SetVideoDownloadResult(ctx, video.ID, artefact, ""))

	task := &models.Task{
		VideoID:    video.ID,
		State:      models.TaskPending,
		QueueName:  env.queues.Upload,
		MaxRetries: 2,
	}
	_, err := env.store.CreateTask(ctx, task)
	require.NoError(t, err)

	backoff := []time.Duration{time.Minute, 5 * time.Minute, 15 * time.Minute}
	failures := env.uploadFailures(2, 3, backoff)
	dlq := broker.NewQueue(env.client, broker.DLQName(env.queues.Upload))
	replays := broker.NewDelaySet(env.client, broker.ReplaySetName(env.queues.Upload))

	// Fails three attempts (initial plus two retries), succeeds on the
	// fourth.
	flaky := &flakyInjector{failUntil: 3, shareURL: "https://photos.app.goo.gl/e2e"}
	worker := upload.NewWorkerWithInjector(env.store, env.media, flaky, failures, env.upload, nil, nil, 1)

	p := pipeline.PayloadFromTask(task)
	p.QueueName = env.queues.Upload
	_, err = env.upload.Push(ctx, p)
	require.NoError(t, err)

	workerCtx, cancel := context.WithCancel(ctx)
	worker.Start(workerCtx)
	env.waitQueueDepth(t, dlq, 1, 5*time.Second)
	cancel()
	worker.Stop(2 * time.Second)

	assert.Equal(t, 3, flaky.callCount(), "budget of 2 retries allows 3 attempts")

	task = env.task(t, task.ID)
	assert.Equal(t, models.TaskFailed, task.State, "exhausted task should be failed")
	assert.Equal(t, 2, task.Retries)
	assert.Equal(t, models.VideoFailed, env.video(t, video.ID).Status)

	// The dead-letter entry records the funnel and a replay is already
	// scheduled with its counter bumped.
	items, err := dlq.Items(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	entry, err := pipeline.ParseDLQPayload(items[0])
	require.NoError(t, err)
	assert.Equal(t, pipeline.StageUpload, entry.Stage)
	assert.Equal(t, task.ID, entry.TaskID)
	assert.Equal(t, 2, entry.Attempts)
	assert.Equal(t, pipeline.ErrorKindTransient, entry.ErrorKind, "plain errors should classify as transient")
	assert.Equal(t, 1, entry.DLQReplays, "scheduling should bump the replay counter")

	size, err := replays.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), size, "one replay should be scheduled")

	// Nothing is due before the backoff elapses.
	replayed, err := failures.ReplayDue(ctx, time.Now(), 10)
	require.NoError(t, err)
	assert.Zero(t, replayed, "replay should wait out the backoff")

	// Past the first backoff rung the entry comes back with a fresh
	// retry budget.
	replayed, err = failures.ReplayDue(ctx, time.Now().Add(2*time.Minute), 10)
	require.NoError(t, err)
	assert.Equal(t, 1, replayed, "due entry should be replayed")

	task = env.task(t, task.ID)
	assert.Equal(t, models.TaskPending, task.State, "replayed task should be pending again")
	assert.Zero(t, task.Retries, "replay should reset the retry counter")
	assert.Contains(t, task.ErrorMessage, "replayed from dlq", "row should record the replay")
	assert.Equal(t, models.VideoDownloaded, env.video(t, video.ID).Status, "video should roll back for another upload")

	items, err = env.upload.Items(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1, "replayed payload should sit on the live queue")

	live, err := pipeline.ParsePayload(items[0])
	require.NoError(t, err)
	assert.Zero(t, live.Retries)
	assert.Equal(t, 2, live.MaxRetries, "replay should restamp the stage budget")
	assert.Equal(t, 1, live.DLQReplays, "replay counter must survive onto the live payload")

	// A fresh consumer picks the replay up; the fourth attempt succeeds.
	worker = upload.NewWorkerWithInjector(env.store, env.media, flaky, failures, env.upload, nil, nil, 1)
	workerCtx, cancel = context.WithCancel(ctx)
	worker.Start(workerCtx)
	env.waitTaskState(t, task.ID, models.TaskComplete, 5*time.Second)
	cancel()
	worker.Stop(2 * time.Second)

	assert.Equal(t, 4, flaky.callCount())
	row := env.video(t, video.ID)
	assert.Equal(t, models.VideoAvailable, row.Status)
	assert.Equal(t, "https://photos.app.goo.gl/e2e", row.ShareURL)
}

// TestPermanentFailureSkipsRetryAndReplay verifies permanent errors
// dead-letter immediately and never schedule a delayed replay.
func TestPermanentFailureSkipsRetryAndReplay(t *testing.T) {
	env := newPipelineEnv(t)
	ctx := context.Background()

	video := env.createVideo(t, "e2e-permanent")
	// No artefact on disk: the local injector classifies the missing
	// file as permanent.
	require.NoError(t, env.store.SetVideoDownloadResult(ctx, video.ID, filepath.Join(env.root, "gone.mp4"), ""))

	task := &models.Task{
		VideoID:    video.ID,
		State:      models.TaskPending,
		QueueName:  env.queues.Upload,
		MaxRetries: 5,
	}
	_, err := env.store.CreateTask(ctx, task)
	require.NoError(t, err)

	failures := env.uploadFailures(5, 3, []time.Duration{time.Minute})
	dlq := broker.NewQueue(env.client, broker.DLQName(env.queues.Upload))
	replays := broker.NewDelaySet(env.client, broker.ReplaySetName(env.queues.Upload))

	injector := upload.NewLocalInjector(env.media, upload.DefaultLocalShareScheme)
	worker := upload.NewWorkerWithInjector(env.store, env.media, injector, failures, env.upload, nil, nil, 1)

	p := pipeline.PayloadFromTask(task)
	p.QueueName = env.queues.Upload
	_, err = env.upload.Push(ctx, p)
	require.NoError(t, err)

	workerCtx, cancel := context.WithCancel(ctx)
	worker.Start(workerCtx)
	env.waitQueueDepth(t, dlq, 1, 5*time.Second)
	cancel()
	worker.Stop(2 * time.Second)

	task = env.task(t, task.ID)
	assert.Equal(t, models.TaskFailed, task.State)
	assert.Zero(t, task.Retries, "permanent failures should not burn retries")

	items, err := dlq.Items(ctx, 10)
	require.NoError(t, err)
	require.Len(t, items, 1)

	entry, err := pipeline.ParseDLQPayload(items[0])
	require.NoError(t, err)
	assert.Equal(t, pipeline.ErrorKindPermanent, entry.ErrorKind)
	assert.Zero(t, entry.DLQReplays, "permanent entries should not be scheduled for replay")

	size, err := replays.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size, "permanent failures should never hit the delay set")
}
