// Package dlq implements dead letter queue commands for pixav.
package dlq

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/pkg/config"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
)

// Cmd is the parent command for dead letter queue management.
var Cmd = &cobra.Command{
	Use:   "dlq",
	Short: "Dead letter queue management",
	Long: `Inspect and replay tasks that exhausted their retries.

A task that fails permanently, or runs out of retries, lands in its
stage's dead letter queue together with the error that killed it.
Entries stay there until replayed or cleared; replaying resets the task
to pending with a fresh retry budget so the stage picks it up again.

Examples:
  # Show dead-lettered download tasks
  pixav dlq list download

  # Show everything across both stages
  pixav dlq list

  # Put dead-lettered upload tasks back into rotation
  pixav dlq replay upload`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(replayCmd)
}

// stagePolicy describes how one stage's dead letters re-enter the
// pipeline.
type stagePolicy struct {
	Stage       string
	QueueName   string
	VideoStatus models.VideoStatus
	MaxRetries  int
}

// policyFor maps a stage argument onto its queue and rollback policy.
func policyFor(cfg *config.Config, stage string) (stagePolicy, error) {
	switch stage {
	case pipeline.StageDownload:
		return stagePolicy{
			Stage:       stage,
			QueueName:   cfg.Queues.Download,
			VideoStatus: models.VideoDiscovered,
			MaxRetries:  cfg.Download.MaxRetries,
		}, nil
	case pipeline.StageUpload:
		return stagePolicy{
			Stage:       stage,
			QueueName:   cfg.Queues.Upload,
			VideoStatus: models.VideoDownloaded,
			MaxRetries:  cfg.Upload.MaxRetries,
		}, nil
	}
	return stagePolicy{}, fmt.Errorf("unknown stage %q (use %q or %q)",
		stage, pipeline.StageDownload, pipeline.StageUpload)
}
