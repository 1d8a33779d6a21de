package dlq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

var (
	replayLimit int
	replayForce bool
)

var replayCmd = &cobra.Command{
	Use:   "replay <stage>",
	Short: "Replay dead-lettered tasks",
	Long: `Move a stage's dead-lettered tasks back onto its work queue.

Each replayed task is reset to pending with a fresh retry budget and its
video rolled back to the stage's entry status, as if it had never been
attempted. The dead letter entry is consumed; a task that keeps failing
will land in the dead letter queue again.

Entries carry a replay counter across cycles, so the automatic delayed
replay budget still binds after a manual replay.

Examples:
  # Replay every dead-lettered upload task
  pixav dlq replay upload

  # Replay at most 5 download tasks
  pixav dlq replay download --limit 5

  # Skip the confirmation prompt
  pixav dlq replay upload --force`,
	Args: cobra.ExactArgs(1),
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().IntVar(&replayLimit, "limit", 0, "Maximum tasks to replay (0 = all)")
	replayCmd.Flags().BoolVarP(&replayForce, "force", "f", false, "Skip confirmation prompt")
}

func runReplay(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	policy, err := policyFor(cfg, args[0])
	if err != nil {
		return err
	}

	st, err := cmdutil.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	client, err := cmdutil.OpenBroker(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()

	dlqQueue := broker.NewQueue(client, broker.DLQName(policy.QueueName))
	depth, err := dlqQueue.Length(ctx)
	if err != nil {
		return fmt.Errorf("failed to read dead letter queue: %w", err)
	}
	if depth == 0 {
		fmt.Printf("No dead-lettered %s tasks.\n", policy.Stage)
		return nil
	}

	count := depth
	if replayLimit > 0 && int64(replayLimit) < depth {
		count = int64(replayLimit)
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Replay %d of %d dead-lettered %s task(s)", count, depth, policy.Stage),
		replayForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	replayed, dropped, err := replayEntries(ctx, st, client, policy, count)
	if replayed > 0 {
		cmdutil.PrintSuccess(fmt.Sprintf("Replayed %d task(s) to %s", replayed, policy.QueueName))
	}
	if dropped > 0 {
		fmt.Printf("Dropped %d unusable entries (malformed or task gone)\n", dropped)
	}
	return err
}

// replayEntries consumes up to count dead letter entries and feeds them
// back through the live queue, mirroring the automatic delayed replay
// path: task reset to pending with zero retries, video rolled back,
// replay counter carried forward.
func replayEntries(ctx context.Context, st store.Store, client *broker.Client,
	policy stagePolicy, count int64) (replayed, dropped int, err error) {
	dlqQueue := broker.NewQueue(client, broker.DLQName(policy.QueueName))
	liveQueue := broker.NewQueue(client, policy.QueueName)

	for i := int64(0); i < count; i++ {
		raw, err := dlqQueue.Pop(ctx, time.Second)
		if err != nil {
			return replayed, dropped, fmt.Errorf("failed to pop dead letter entry: %w", err)
		}
		if raw == nil {
			break // drained by someone else
		}

		entry, err := pipeline.ParseDLQPayload(raw)
		if err != nil || entry.TaskID == "" || entry.VideoID == "" {
			dropped++
			continue
		}

		replayMsg := fmt.Sprintf("replayed from dlq (%d)", entry.DLQReplays)
		if err := st.SetTaskRetry(ctx, entry.TaskID, 0, replayMsg); err != nil {
			if errors.Is(err, models.ErrTaskNotFound) {
				dropped++
				continue
			}
			return replayed, dropped, fmt.Errorf("failed to reset task %s: %w", entry.TaskID, err)
		}
		if err := st.UpdateVideoStatus(ctx, entry.VideoID, policy.VideoStatus); err != nil &&
			!errors.Is(err, models.ErrVideoNotFound) {
			return replayed, dropped, fmt.Errorf("failed to roll back video %s: %w", entry.VideoID, err)
		}

		replay := pipeline.Payload{
			TaskID:     entry.TaskID,
			VideoID:    entry.VideoID,
			QueueName:  policy.QueueName,
			Retries:    0,
			MaxRetries: policy.MaxRetries,
			AccountID:  entry.AccountID,
			DLQReplays: entry.DLQReplays,
		}
		if _, err := liveQueue.Push(ctx, replay); err != nil {
			return replayed, dropped, fmt.Errorf("failed to re-push task %s: %w", entry.TaskID, err)
		}
		replayed++
	}

	return replayed, dropped, nil
}
