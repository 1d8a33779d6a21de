package models

import (
	"fmt"
	"time"
)

// TaskState represents the lifecycle state of a pipeline task.
type TaskState string

const (
	TaskPending     TaskState = "pending"
	TaskDownloading TaskState = "downloading"
	TaskRemuxing    TaskState = "remuxing"
	TaskUploading   TaskState = "uploading"
	TaskVerifying   TaskState = "verifying"
	TaskComplete    TaskState = "complete"
	TaskFailed      TaskState = "failed"
)

// IsValid checks if the state is a known TaskState.
func (s TaskState) IsValid() bool {
	switch s {
	case TaskPending, TaskDownloading, TaskRemuxing,
		TaskUploading, TaskVerifying, TaskComplete, TaskFailed:
		return true
	}
	return false
}

// IsTerminal reports whether the state ends the task's lifecycle.
func (s TaskState) IsTerminal() bool {
	return s == TaskComplete || s == TaskFailed
}

// IsTransient reports whether the state marks in-flight work. Tasks
// stuck in a transient state past the orphan age are garbage collected.
func (s TaskState) IsTransient() bool {
	switch s {
	case TaskDownloading, TaskRemuxing, TaskUploading, TaskVerifying:
		return true
	}
	return false
}

// AllTaskStates returns every state in lifecycle order.
func AllTaskStates() []TaskState {
	return []TaskState{TaskPending, TaskDownloading, TaskRemuxing,
		TaskUploading, TaskVerifying, TaskComplete, TaskFailed}
}

// OpenTaskStates returns the non-terminal states. A video may have at
// most one task in any of these states at a time.
func OpenTaskStates() []TaskState {
	return []TaskState{TaskPending, TaskDownloading, TaskRemuxing, TaskUploading, TaskVerifying}
}

// TransientTaskStates returns the states swept by orphan GC.
func TransientTaskStates() []TaskState {
	return []TaskState{TaskDownloading, TaskRemuxing, TaskUploading, TaskVerifying}
}

// Task is a single attempt to move a video through a stage. Tasks are
// the durable source of truth; queue payloads only route them.
type Task struct {
	ID           string    `gorm:"primaryKey;size:36" json:"id"`
	VideoID      string    `gorm:"not null;size:36;index" json:"video_id"`
	AccountID    *string   `gorm:"size:36" json:"account_id,omitempty"`
	State        TaskState `gorm:"not null;default:pending;size:20;index" json:"state"`
	QueueName    string    `gorm:"column:queue_name;size:128" json:"queue_name,omitempty"`
	LocalPath    string    `gorm:"column:local_path" json:"local_path,omitempty"`
	ShareURL     string    `gorm:"column:share_url" json:"share_url,omitempty"`
	Retries      int       `gorm:"not null;default:0" json:"retries"`
	MaxRetries   int       `gorm:"not null;default:3" json:"max_retries"`
	ErrorMessage string    `gorm:"column:error_message" json:"error_message,omitempty"`
	CreatedAt    time.Time `gorm:"autoCreateTime;index" json:"created_at"`
	UpdatedAt    time.Time `gorm:"autoUpdateTime;index" json:"updated_at"`
}

// TableName returns the table name for Task.
func (Task) TableName() string {
	return "tasks"
}

// RetriesExhausted reports whether another retry would exceed the cap.
func (t *Task) RetriesExhausted() bool {
	return t.Retries+1 > t.MaxRetries
}

// Validate checks the invariants a task row must satisfy.
func (t *Task) Validate() error {
	if t.VideoID == "" {
		return fmt.Errorf("task requires a video_id")
	}
	if !t.State.IsValid() {
		return fmt.Errorf("invalid task state %q", t.State)
	}
	if t.State == TaskPending && t.QueueName == "" {
		return fmt.Errorf("pending task requires a queue_name")
	}
	if t.Retries > t.MaxRetries {
		return fmt.Errorf("retries %d exceed max_retries %d", t.Retries, t.MaxRetries)
	}
	return nil
}
