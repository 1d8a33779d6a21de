// Package pipeline holds the machinery shared by the download and
// upload stages: queue payload contracts, error classification, the
// retry and dead-letter policy and the worker pool runtime.
//
// Task and video rows are the durable source of truth; payloads only
// route tasks between stages. A payload that disagrees with its task
// row loses.
package pipeline

import (
	"encoding/json"
	"fmt"

	"github.com/Charliesj0129/pixAV/pkg/models"
)

// Stage names carried in dead-letter payloads.
const (
	StageDownload = "download"
	StageUpload   = "upload"
)

// Payload routes a task between stages over a work queue.
//
// dlq_replays is only set on payloads re-entering the queue through
// delayed dead-letter replay; carrying it forward is what makes the
// replay budget bind across cycles.
type Payload struct {
	TaskID     string `json:"task_id"`
	VideoID    string `json:"video_id"`
	QueueName  string `json:"queue_name"`
	Retries    int    `json:"retries"`
	MaxRetries int    `json:"max_retries"`
	AccountID  string `json:"account_id,omitempty"`
	LocalPath  string `json:"local_path,omitempty"`
	DLQReplays int    `json:"dlq_replays,omitempty"`
}

// DLQPayload is the dead-letter record for a terminally failed task.
type DLQPayload struct {
	Payload
	Stage        string `json:"stage"`
	Attempts     int    `json:"attempts"`
	ErrorMessage string `json:"error_message"`
	ErrorKind    string `json:"error_kind,omitempty"`
	FailedAt     string `json:"failed_at"`
}

// PayloadFromTask rebuilds a queue payload from the task row.
func PayloadFromTask(task *models.Task) Payload {
	p := Payload{
		TaskID:     task.ID,
		VideoID:    task.VideoID,
		QueueName:  task.QueueName,
		Retries:    task.Retries,
		MaxRetries: task.MaxRetries,
		LocalPath:  task.LocalPath,
	}
	if task.AccountID != nil {
		p.AccountID = *task.AccountID
	}
	return p
}

// ParsePayload decodes a queue payload.
func ParsePayload(raw []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		return Payload{}, fmt.Errorf("malformed payload: %w", err)
	}
	if p.TaskID == "" {
		return Payload{}, fmt.Errorf("payload missing task_id")
	}
	return p, nil
}

// ParseDLQPayload decodes a dead-letter payload.
func ParseDLQPayload(raw []byte) (DLQPayload, error) {
	var p DLQPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return DLQPayload{}, fmt.Errorf("malformed dlq payload: %w", err)
	}
	return p, nil
}
