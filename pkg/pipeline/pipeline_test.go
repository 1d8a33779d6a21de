package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"

	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

func TestPayloadWireShape(t *testing.T) {
	raw, err := json.Marshal(Payload{
		TaskID:     "t1",
		VideoID:    "v1",
		QueueName:  "pixav:download",
		Retries:    2,
		MaxRetries: 10,
	})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}

	for _, key := range []string{"task_id", "video_id", "queue_name", "retries", "max_retries"} {
		if _, ok := doc[key]; !ok {
			t.Errorf("payload missing key %q", key)
		}
	}
	for _, key := range []string{"account_id", "local_path", "dlq_replays"} {
		if _, ok := doc[key]; ok {
			t.Errorf("empty %q should be omitted", key)
		}
	}
}

func TestPayloadFromTask(t *testing.T) {
	accountID := "acc-1"
	task := &models.Task{
		ID:         "t1",
		VideoID:    "v1",
		AccountID:  &accountID,
		QueueName:  "pixav:upload",
		LocalPath:  "/data/v1.mp4",
		Retries:    1,
		MaxRetries: 3,
	}

	p := PayloadFromTask(task)
	if p.TaskID != "t1" || p.VideoID != "v1" || p.QueueName != "pixav:upload" {
		t.Errorf("unexpected payload identity: %+v", p)
	}
	if p.AccountID != "acc-1" || p.LocalPath != "/data/v1.mp4" {
		t.Errorf("unexpected payload enrichment: %+v", p)
	}
	if p.Retries != 1 || p.MaxRetries != 3 {
		t.Errorf("unexpected payload budget: %+v", p)
	}

	task.AccountID = nil
	if got := PayloadFromTask(task).AccountID; got != "" {
		t.Errorf("AccountID = %q, want empty", got)
	}
}

func TestParsePayload(t *testing.T) {
	p, err := ParsePayload([]byte(`{"task_id":"t1","video_id":"v1","queue_name":"q","retries":0,"max_retries":3}`))
	if err != nil {
		t.Fatalf("ParsePayload failed: %v", err)
	}
	if p.TaskID != "t1" {
		t.Errorf("TaskID = %q, want t1", p.TaskID)
	}

	if _, err := ParsePayload([]byte(`{not json`)); err == nil {
		t.Error("malformed payload accepted")
	}
	if _, err := ParsePayload([]byte(`{"video_id":"v1"}`)); err == nil {
		t.Error("payload without task_id accepted")
	}
}

func TestPermanentClassification(t *testing.T) {
	base := errors.New("video local_path is missing")
	perm := Permanent(base)

	if !IsPermanent(perm) {
		t.Error("Permanent error not detected")
	}
	if IsPermanent(base) {
		t.Error("plain error classified permanent")
	}
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) should be nil")
	}

	// Classification survives wrapping.
	wrapped := fmt.Errorf("upload failed: %w", perm)
	if !IsPermanent(wrapped) {
		t.Error("wrapped permanent error not detected")
	}
	if !errors.Is(wrapped, base) {
		t.Error("Permanent breaks the error chain")
	}

	if Kind(perm) != ErrorKindPermanent {
		t.Errorf("Kind = %q, want %q", Kind(perm), ErrorKindPermanent)
	}
	if Kind(base) != ErrorKindTransient {
		t.Errorf("Kind = %q, want %q", Kind(base), ErrorKindTransient)
	}
}

func TestRetryableMessage(t *testing.T) {
	cases := []struct {
		msg  string
		want bool
	}{
		{"adb push failed: device offline", true},
		{"Video local_path is missing", false},
		{"LOCAL_PATH IS REQUIRED for upload", false},
		{"timeout waiting for container", true},
	}
	for _, tc := range cases {
		if got := RetryableMessage(tc.msg); got != tc.want {
			t.Errorf("RetryableMessage(%q) = %v, want %v", tc.msg, got, tc.want)
		}
	}
}

func TestReplayEligible(t *testing.T) {
	// The explicit kind tag wins over the message heuristic.
	tagged := DLQPayload{ErrorKind: ErrorKindPermanent, ErrorMessage: "device offline"}
	if ReplayEligible(tagged) {
		t.Error("permanent-tagged entry eligible for replay")
	}

	transient := DLQPayload{ErrorKind: ErrorKindTransient, ErrorMessage: "local_path is missing"}
	if !ReplayEligible(transient) {
		t.Error("transient-tagged entry not eligible for replay")
	}

	// Untagged entries fall back to the message classifier.
	untagged := DLQPayload{ErrorMessage: "video local_path is missing"}
	if ReplayEligible(untagged) {
		t.Error("untagged non-retryable entry eligible for replay")
	}
	if !ReplayEligible(DLQPayload{ErrorMessage: "device offline"}) {
		t.Error("untagged retryable entry not eligible for replay")
	}
}

func newTestQueue(t *testing.T) (*broker.Client, *broker.Queue) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := broker.New(&broker.Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("broker.New failed: %v", err)
	}
	t.Cleanup(func() { client.Close() })

	return client, broker.NewQueue(client, "pixav:test")
}

func TestRunnerProcessesPayloads(t *testing.T) {
	ctx := context.Background()
	_, queue := newTestQueue(t)

	var mu sync.Mutex
	seen := make(map[string]bool)
	done := make(chan struct{}, 3)

	runner := NewRunner(RunnerConfig{
		Name:       "test",
		Queue:      queue,
		Workers:    2,
		PopTimeout: 50 * time.Millisecond,
		Handle: func(ctx context.Context, raw []byte) error {
			p, err := ParsePayload(raw)
			if err != nil {
				return err
			}
			mu.Lock()
			seen[p.TaskID] = true
			mu.Unlock()
			done <- struct{}{}
			return nil
		},
	})

	for _, id := range []string{"a", "b", "c"} {
		if _, err := queue.Push(ctx, Payload{TaskID: id, VideoID: "v", QueueName: queue.Name()}); err != nil {
			t.Fatalf("Push failed: %v", err)
		}
	}

	runner.Start(ctx)
	for i := 0; i < 3; i++ {
		select {
		case <-done:
		case <-time.After(5 * time.Second):
			t.Fatal("timed out waiting for payloads")
		}
	}
	runner.Stop(2 * time.Second)

	mu.Lock()
	defer mu.Unlock()
	for _, id := range []string{"a", "b", "c"} {
		if !seen[id] {
			t.Errorf("payload %s not processed", id)
		}
	}

	processed, failed := runner.Stats()
	if processed != 3 || failed != 0 {
		t.Errorf("Stats = (%d, %d), want (3, 0)", processed, failed)
	}
}

func TestRunnerLoopHookPausesConsumption(t *testing.T) {
	ctx := context.Background()
	_, queue := newTestQueue(t)

	var paused sync.Mutex
	isPaused := true
	done := make(chan struct{}, 1)

	runner := NewRunner(RunnerConfig{
		Name:       "test",
		Queue:      queue,
		PopTimeout: 50 * time.Millisecond,
		IdleSleep:  10 * time.Millisecond,
		LoopHook: func(ctx context.Context) bool {
			paused.Lock()
			defer paused.Unlock()
			return !isPaused
		},
		Handle: func(ctx context.Context, raw []byte) error {
			done <- struct{}{}
			return nil
		},
	})

	if _, err := queue.Push(ctx, Payload{TaskID: "t1", VideoID: "v1", QueueName: queue.Name()}); err != nil {
		t.Fatalf("Push failed: %v", err)
	}

	runner.Start(ctx)
	defer runner.Stop(2 * time.Second)

	select {
	case <-done:
		t.Fatal("payload processed while paused")
	case <-time.After(200 * time.Millisecond):
	}

	if depth, _ := queue.Length(ctx); depth != 1 {
		t.Fatalf("queue depth = %d, want 1 while paused", depth)
	}

	paused.Lock()
	isPaused = false
	paused.Unlock()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("payload not processed after resume")
	}
}
