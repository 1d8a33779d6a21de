package queues

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
	"github.com/Charliesj0129/pixAV/pkg/broker"
)

var clearCmd = &cobra.Command{
	Use:   "clear <queue>",
	Short: "Drop all entries from a queue",
	Long: `Drop every entry from a work queue or dead letter queue.

Cleared entries are gone for good. Tasks stay in the database, so the
orchestrator will re-route any that are still pending on a later tick;
entries cleared from a dead letter queue are not recoverable.

You must type the queue name to confirm.

Examples:
  # Clear a work queue
  pixav queues clear pixav:download

  # Clear a dead letter queue
  pixav queues clear pixav:upload:dlq`,
	Args: cobra.ExactArgs(1),
	RunE: runClear,
}

func runClear(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	// Only accept names this deployment actually uses, so a typo can't
	// flush an unrelated Redis key.
	known := make([]string, 0, 8)
	for _, q := range []string{cfg.Queues.Crawl, cfg.Queues.Download, cfg.Queues.Upload, cfg.Queues.Verify} {
		known = append(known, q, broker.DLQName(q))
	}
	if !slices.Contains(known, name) {
		return fmt.Errorf("unknown queue %q\n\nKnown queues:\n  %s", name, strings.Join(known, "\n  "))
	}

	client, err := cmdutil.OpenBroker(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()
	queue := broker.NewQueue(client, name)

	depth, err := queue.Length(ctx)
	if err != nil {
		return fmt.Errorf("failed to read queue %s: %w", name, err)
	}
	if depth == 0 {
		fmt.Printf("Queue %s is already empty\n", name)
		return nil
	}

	confirmed, err := prompt.ConfirmDanger(
		fmt.Sprintf("Drop %d entries from %s? This cannot be undone", depth, name), name)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := queue.Clear(ctx); err != nil {
		return fmt.Errorf("failed to clear queue: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Cleared %d entries from %s", depth, name))
	return nil
}
