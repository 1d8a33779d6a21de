package dlq

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/pkg/broker"
	"github.com/Charliesj0129/pixAV/pkg/pipeline"
)

var listLimit int64

var listCmd = &cobra.Command{
	Use:   "list [stage]",
	Short: "Show dead-lettered tasks",
	Long: `Show the tasks sitting in a stage's dead letter queue.

Without a stage argument, both stages are listed. Entries are shown
oldest first and are not consumed by listing.

Examples:
  # Show dead-lettered download tasks
  pixav dlq list download

  # Show everything
  pixav dlq list

  # Show as JSON for scripting
  pixav dlq list upload -o json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().Int64Var(&listLimit, "limit", 50, "Maximum entries to show per stage")
}

// DLQList is a list of dead letter entries for table rendering.
type DLQList []pipeline.DLQPayload

// Headers implements TableRenderer.
func (dl DLQList) Headers() []string {
	return []string{"STAGE", "TASK", "VIDEO", "ATTEMPTS", "REPLAYS", "KIND", "FAILED AT", "ERROR"}
}

// Rows implements TableRenderer.
func (dl DLQList) Rows() [][]string {
	rows := make([][]string, 0, len(dl))
	for _, e := range dl {
		rows = append(rows, []string{
			e.Stage,
			e.TaskID,
			e.VideoID,
			strconv.Itoa(e.Attempts),
			strconv.Itoa(e.DLQReplays),
			cmdutil.EmptyOr(e.ErrorKind, "-"),
			cmdutil.EmptyOr(e.FailedAt, "-"),
			truncate(e.ErrorMessage, 60),
		})
	}
	return rows
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	stages := []string{pipeline.StageDownload, pipeline.StageUpload}
	if len(args) > 0 {
		policy, err := policyFor(cfg, args[0])
		if err != nil {
			return err
		}
		stages = []string{policy.Stage}
	}

	client, err := cmdutil.OpenBroker(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()

	var entries DLQList
	for _, stage := range stages {
		policy, err := policyFor(cfg, stage)
		if err != nil {
			return err
		}
		stageEntries, err := peekDLQ(ctx, client, policy, listLimit)
		if err != nil {
			return err
		}
		entries = append(entries, stageEntries...)
	}

	return cmdutil.PrintOutput(os.Stdout, entries, len(entries) == 0, "No dead-lettered tasks.", entries)
}

// peekDLQ reads dead letter entries without consuming them.
func peekDLQ(ctx context.Context, client *broker.Client, policy stagePolicy, limit int64) (DLQList, error) {
	queue := broker.NewQueue(client, broker.DLQName(policy.QueueName))
	items, err := queue.Items(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to read dead letter queue for %s: %w", policy.Stage, err)
	}

	entries := make(DLQList, 0, len(items))
	for _, raw := range items {
		entry, err := pipeline.ParseDLQPayload(raw)
		if err != nil {
			// Surface malformed entries instead of hiding them
			entries = append(entries, pipeline.DLQPayload{
				Stage:        policy.Stage,
				ErrorMessage: fmt.Sprintf("malformed entry: %v", err),
			})
			continue
		}
		if entry.Stage == "" {
			entry.Stage = policy.Stage
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
