package models

import (
	"testing"
	"time"
)

func TestTaskState_IsValid(t *testing.T) {
	tests := []struct {
		state TaskState
		valid bool
	}{
		{TaskPending, true},
		{TaskDownloading, true},
		{TaskRemuxing, true},
		{TaskUploading, true},
		{TaskVerifying, true},
		{TaskComplete, true},
		{TaskFailed, true},
		{"invalid", false},
		{"", false},
		{"PENDING", false}, // case sensitive
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			if got := tt.state.IsValid(); got != tt.valid {
				t.Errorf("TaskState(%q).IsValid() = %v, want %v", tt.state, got, tt.valid)
			}
		})
	}
}

func TestTaskState_Classification(t *testing.T) {
	for _, s := range OpenTaskStates() {
		if s.IsTerminal() {
			t.Errorf("open state %q reported terminal", s)
		}
	}
	for _, s := range TransientTaskStates() {
		if !s.IsTransient() {
			t.Errorf("state %q should be transient", s)
		}
	}
	if TaskPending.IsTransient() {
		t.Error("pending must not be transient: it is dispatchable, not in-flight")
	}
	if !TaskComplete.IsTerminal() || !TaskFailed.IsTerminal() {
		t.Error("complete and failed must be terminal")
	}
}

func TestTask_Validate(t *testing.T) {
	tests := []struct {
		name    string
		task    Task
		wantErr bool
	}{
		{"valid pending", Task{VideoID: "v", State: TaskPending, QueueName: "pixav:download", MaxRetries: 3}, false},
		{"pending without queue", Task{VideoID: "v", State: TaskPending, MaxRetries: 3}, true},
		{"missing video", Task{State: TaskPending, QueueName: "q", MaxRetries: 3}, true},
		{"bad state", Task{VideoID: "v", State: "limbo", QueueName: "q"}, true},
		{"retries over cap", Task{VideoID: "v", State: TaskFailed, Retries: 4, MaxRetries: 3}, true},
		{"retries at cap", Task{VideoID: "v", State: TaskFailed, Retries: 3, MaxRetries: 3}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.task.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestTask_RetriesExhausted(t *testing.T) {
	task := Task{Retries: 0, MaxRetries: 1}
	if task.RetriesExhausted() {
		t.Error("first retry should be allowed")
	}
	task.Retries = 1
	if !task.RetriesExhausted() {
		t.Error("retry past the cap should be exhausted")
	}
}

func TestVideo_Validate(t *testing.T) {
	tests := []struct {
		name    string
		video   Video
		wantErr bool
	}{
		{"valid discovered", Video{Title: "t", Status: VideoDiscovered}, false},
		{"missing title", Video{Status: VideoDiscovered}, true},
		{"available without share url", Video{Title: "t", Status: VideoAvailable, LocalPath: "/x"}, true},
		{"available complete", Video{Title: "t", Status: VideoAvailable, ShareURL: "https://s/x", LocalPath: "/x"}, false},
		{"downloaded without local path", Video{Title: "t", Status: VideoDownloaded}, true},
		{"bad status", Video{Title: "t", Status: "lost"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.video.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestVideo_TagsRoundTrip(t *testing.T) {
	v := Video{}
	if err := v.SetTags([]string{"hd", "remux", "eng"}); err != nil {
		t.Fatalf("SetTags: %v", err)
	}

	tags := v.Tags()
	if len(tags) != 3 || tags[0] != "hd" || tags[2] != "eng" {
		t.Errorf("Tags() = %v, want ordered [hd remux eng]", tags)
	}

	if err := v.SetTags(nil); err != nil {
		t.Fatalf("SetTags(nil): %v", err)
	}
	if v.Tags() != nil {
		t.Error("clearing tags should yield nil")
	}
}

func TestVideo_Metadata(t *testing.T) {
	v := Video{}
	if err := v.SetMetadata(map[string]any{"studio": "acme", "year": 2024}); err != nil {
		t.Fatalf("SetMetadata: %v", err)
	}

	doc := v.Metadata()
	if doc["studio"] != "acme" {
		t.Errorf("Metadata()[studio] = %v, want acme", doc["studio"])
	}

	v.MetadataJSON = "{broken"
	if v.Metadata() != nil {
		t.Error("malformed metadata should decode to nil")
	}
}

func TestAccount_Selectable(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	tests := []struct {
		name       string
		account    Account
		selectable bool
	}{
		{"active fresh", Account{Status: AccountActive, DailyQuotaBytes: 100}, true},
		{"banned", Account{Status: AccountBanned, DailyQuotaBytes: 100}, false},
		{"cooldown in future", Account{Status: AccountActive, CooldownUntil: &future, DailyQuotaBytes: 100}, false},
		{"cooldown elapsed", Account{Status: AccountActive, CooldownUntil: &past, DailyQuotaBytes: 100}, true},
		{"lease held", Account{Status: AccountActive, LeaseExpiresAt: &future, DailyQuotaBytes: 100}, false},
		{"lease expired", Account{Status: AccountActive, LeaseExpiresAt: &past, DailyQuotaBytes: 100}, true},
		{"quota spent", Account{Status: AccountActive, DailyUploadedBytes: 100, DailyQuotaBytes: 100, QuotaResetAt: &future}, false},
		{"quota spent but day rolled", Account{Status: AccountActive, DailyUploadedBytes: 100, DailyQuotaBytes: 100, QuotaResetAt: &past}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.account.Selectable(now); got != tt.selectable {
				t.Errorf("Selectable() = %v, want %v", got, tt.selectable)
			}
		})
	}
}

func TestNextDayBoundary(t *testing.T) {
	now := time.Date(2024, 6, 1, 23, 59, 59, 0, time.UTC)
	next := NextDayBoundary(now)
	want := time.Date(2024, 6, 2, 0, 0, 0, 0, time.UTC)
	if !next.Equal(want) {
		t.Errorf("NextDayBoundary() = %v, want %v", next, want)
	}
}

func TestStorageInstance_Full(t *testing.T) {
	si := StorageInstance{CapacityBytes: 100, UsedBytes: 99}
	if si.Full() {
		t.Error("below capacity should not be full")
	}
	si.UsedBytes = 100
	if !si.Full() {
		t.Error("at capacity should be full")
	}
	unbounded := StorageInstance{CapacityBytes: 0, UsedBytes: 500}
	if unbounded.Full() {
		t.Error("zero capacity means unbounded")
	}
}
