package broker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func createTestBroker(t *testing.T) (*Client, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client, err := New(&Config{URL: "redis://" + mr.Addr()})
	if err != nil {
		t.Fatalf("failed to create broker client: %v", err)
	}
	t.Cleanup(func() { _ = client.Close() })
	return client, mr
}

func TestNew(t *testing.T) {
	t.Run("rejects invalid url", func(t *testing.T) {
		if _, err := New(&Config{URL: "not-a-url"}); err == nil {
			t.Error("expected error for invalid url")
		}
	})

	t.Run("applies default url", func(t *testing.T) {
		cfg := &Config{}
		cfg.ApplyDefaults()
		if cfg.URL != "redis://localhost:6379/0" {
			t.Errorf("unexpected default url: %s", cfg.URL)
		}
	})

	t.Run("healthcheck", func(t *testing.T) {
		client, _ := createTestBroker(t)
		if err := client.Healthcheck(context.Background()); err != nil {
			t.Errorf("healthcheck failed: %v", err)
		}
	})
}

func TestQueueNames(t *testing.T) {
	cfg := &QueuesConfig{}
	cfg.ApplyDefaults()
	if cfg.Download != "pixav:download" || cfg.Upload != "pixav:upload" {
		t.Errorf("unexpected queue defaults: %+v", cfg)
	}

	if got := DLQName("pixav:upload"); got != "pixav:upload:dlq" {
		t.Errorf("unexpected dlq name: %s", got)
	}
	if got := ReplaySetName("pixav:upload"); got != "pixav:upload:dlq:replay" {
		t.Errorf("unexpected replay set name: %s", got)
	}
}

func TestQueueFIFO(t *testing.T) {
	client, _ := createTestBroker(t)
	ctx := context.Background()
	queue := NewQueue(client, "test:queue")

	type payload struct {
		TaskID string `json:"task_id"`
	}

	for i, id := range []string{"one", "two", "three"} {
		depth, err := queue.Push(ctx, payload{TaskID: id})
		if err != nil {
			t.Fatalf("push failed: %v", err)
		}
		if depth != int64(i+1) {
			t.Errorf("expected depth %d, got %d", i+1, depth)
		}
	}

	depth, err := queue.Length(ctx)
	if err != nil {
		t.Fatalf("length failed: %v", err)
	}
	if depth != 3 {
		t.Errorf("expected depth 3, got %d", depth)
	}

	items, err := queue.Items(ctx, 2)
	if err != nil {
		t.Fatalf("items failed: %v", err)
	}
	if len(items) != 2 || string(items[0]) != `{"task_id":"one"}` {
		t.Errorf("unexpected peeked items: %q", items)
	}

	for _, want := range []string{"one", "two", "three"} {
		raw, err := queue.Pop(ctx, time.Second)
		if err != nil {
			t.Fatalf("pop failed: %v", err)
		}
		if string(raw) != `{"task_id":"`+want+`"}` {
			t.Errorf("expected %s first, got %s", want, raw)
		}
	}

	if _, err := queue.Push(ctx, payload{TaskID: "gone"}); err != nil {
		t.Fatalf("push failed: %v", err)
	}
	if err := queue.Clear(ctx); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if depth, _ := queue.Length(ctx); depth != 0 {
		t.Errorf("expected cleared queue, depth %d", depth)
	}
}

func TestQueuePopTimeout(t *testing.T) {
	client, _ := createTestBroker(t)
	queue := NewQueue(client, "test:empty")

	raw, err := queue.Pop(context.Background(), 50*time.Millisecond)
	if err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	if raw != nil {
		t.Errorf("expected nil payload on timeout, got %q", raw)
	}
}

func TestQueuePushRawRoundTrip(t *testing.T) {
	client, _ := createTestBroker(t)
	ctx := context.Background()
	queue := NewQueue(client, "test:raw")

	original := []byte(`{"task_id":"t1","retries":2}`)
	if _, err := queue.PushRaw(ctx, original); err != nil {
		t.Fatalf("push raw failed: %v", err)
	}

	raw, err := queue.Pop(ctx, time.Second)
	if err != nil {
		t.Fatalf("pop failed: %v", err)
	}
	if string(raw) != string(original) {
		t.Errorf("payload not preserved byte-for-byte: %q", raw)
	}
}

func TestMutex(t *testing.T) {
	client, _ := createTestBroker(t)
	ctx := context.Background()
	mutex := NewMutex(client, "test:lock", time.Minute)

	token, ok, err := mutex.TryLock(ctx)
	if err != nil {
		t.Fatalf("trylock failed: %v", err)
	}
	if !ok || token == "" {
		t.Fatal("expected lock acquired with token")
	}

	if _, ok, _ := mutex.TryLock(ctx); ok {
		t.Error("expected second acquisition to fail while held")
	}

	// A stale token must not release another holder's lock.
	if err := mutex.Unlock(ctx, "stale-token"); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if holder, _ := mutex.Holder(ctx); holder != token {
		t.Errorf("lock released by stale token, holder %q", holder)
	}

	if err := mutex.Unlock(ctx, token); err != nil {
		t.Fatalf("unlock failed: %v", err)
	}
	if holder, _ := mutex.Holder(ctx); holder != "" {
		t.Errorf("expected lock free, holder %q", holder)
	}

	if _, ok, _ := mutex.TryLock(ctx); !ok {
		t.Error("expected reacquisition after release")
	}
}

func TestMutexExpiry(t *testing.T) {
	client, mr := createTestBroker(t)
	ctx := context.Background()
	mutex := NewMutex(client, "test:lock:ttl", time.Minute)

	if _, ok, _ := mutex.TryLock(ctx); !ok {
		t.Fatal("expected lock acquired")
	}

	mr.FastForward(2 * time.Minute)

	if _, ok, _ := mutex.TryLock(ctx); !ok {
		t.Error("expected acquisition after ttl expiry")
	}
}

func TestDelaySet(t *testing.T) {
	client, _ := createTestBroker(t)
	ctx := context.Background()
	now := time.Now()
	set := NewDelaySet(client, "test:replay")

	if err := set.Add(ctx, []byte("due"), now.Add(-time.Minute)); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := set.Add(ctx, []byte("later"), now.Add(time.Hour)); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	if size, _ := set.Size(ctx); size != 2 {
		t.Errorf("expected size 2, got %d", size)
	}

	due, err := set.Due(ctx, now, 20)
	if err != nil {
		t.Fatalf("due failed: %v", err)
	}
	if len(due) != 1 || due[0] != "due" {
		t.Fatalf("expected only the due member, got %v", due)
	}

	claimed, err := set.Claim(ctx, due[0])
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if !claimed {
		t.Error("expected claim to succeed")
	}
	if claimed, _ := set.Claim(ctx, due[0]); claimed {
		t.Error("expected second claim to fail")
	}

	// The future member becomes due once its ready-at time passes.
	due, err = set.Due(ctx, now.Add(2*time.Hour), 20)
	if err != nil {
		t.Fatalf("due failed: %v", err)
	}
	if len(due) != 1 || due[0] != "later" {
		t.Errorf("expected the later member due, got %v", due)
	}
}

func TestPauseGate(t *testing.T) {
	client, mr := createTestBroker(t)
	ctx := context.Background()
	gate := NewPauseGate(client, "test:pause")

	if paused, _ := gate.Paused(ctx); paused {
		t.Error("expected unpaused by default")
	}

	if err := gate.Pause(ctx); err != nil {
		t.Fatalf("pause failed: %v", err)
	}
	if paused, _ := gate.Paused(ctx); !paused {
		t.Error("expected paused after Pause")
	}

	for _, value := range []string{"true", "YES", " on ", "1"} {
		mr.Set("test:pause", value)
		if paused, _ := gate.Paused(ctx); !paused {
			t.Errorf("expected %q to read as paused", value)
		}
	}
	for _, value := range []string{"0", "off", "false", "nope"} {
		mr.Set("test:pause", value)
		if paused, _ := gate.Paused(ctx); paused {
			t.Errorf("expected %q to read as unpaused", value)
		}
	}

	if err := gate.Resume(ctx); err != nil {
		t.Fatalf("resume failed: %v", err)
	}
	if paused, _ := gate.Paused(ctx); paused {
		t.Error("expected unpaused after Resume")
	}
}

func TestTTLCache(t *testing.T) {
	client, mr := createTestBroker(t)
	ctx := context.Background()
	cache := NewTTLCache(client)

	if _, ok, err := cache.Get(ctx, "test:cdn:miss"); err != nil || ok {
		t.Errorf("expected clean miss, ok=%v err=%v", ok, err)
	}

	if err := cache.Set(ctx, "test:cdn:v1", "https://cdn.example/v1=dv", 55*time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	value, ok, err := cache.Get(ctx, "test:cdn:v1")
	if err != nil || !ok {
		t.Fatalf("expected hit, ok=%v err=%v", ok, err)
	}
	if value != "https://cdn.example/v1=dv" {
		t.Errorf("unexpected cached value: %s", value)
	}

	mr.FastForward(56 * time.Minute)
	if _, ok, _ := cache.Get(ctx, "test:cdn:v1"); ok {
		t.Error("expected miss after ttl expiry")
	}

	if err := cache.Set(ctx, "test:cdn:v2", "x", time.Minute); err != nil {
		t.Fatalf("set failed: %v", err)
	}
	if err := cache.Delete(ctx, "test:cdn:v2"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, ok, _ := cache.Get(ctx, "test:cdn:v2"); ok {
		t.Error("expected miss after delete")
	}
}
