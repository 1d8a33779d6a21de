package queues

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/pkg/broker"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show queue depths",
	Long: `Show the depth of every work queue, dead letter queue and replay set.

Examples:
  # Show depths as table
  pixav queues list

  # Show as JSON
  pixav queues list -o json`,
	RunE: runList,
}

// QueueDepth is one queue's depth snapshot.
type QueueDepth struct {
	Name   string `json:"name" yaml:"name"`
	Depth  int64  `json:"depth" yaml:"depth"`
	DLQ    int64  `json:"dlq" yaml:"dlq"`
	Replay int64  `json:"replay" yaml:"replay"`
}

// QueueList is a list of queue depths for table rendering.
type QueueList []QueueDepth

// Headers implements TableRenderer.
func (ql QueueList) Headers() []string {
	return []string{"QUEUE", "DEPTH", "DLQ", "REPLAY"}
}

// Rows implements TableRenderer.
func (ql QueueList) Rows() [][]string {
	rows := make([][]string, 0, len(ql))
	for _, q := range ql {
		rows = append(rows, []string{
			q.Name,
			strconv.FormatInt(q.Depth, 10),
			strconv.FormatInt(q.DLQ, 10),
			strconv.FormatInt(q.Replay, 10),
		})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	client, err := cmdutil.OpenBroker(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	ctx := cmd.Context()

	var depths QueueList
	for _, name := range []string{cfg.Queues.Crawl, cfg.Queues.Download, cfg.Queues.Upload, cfg.Queues.Verify} {
		depth, err := broker.NewQueue(client, name).Length(ctx)
		if err != nil {
			return fmt.Errorf("failed to read queue %s: %w", name, err)
		}
		dlq, err := broker.NewQueue(client, broker.DLQName(name)).Length(ctx)
		if err != nil {
			return fmt.Errorf("failed to read dead letter queue for %s: %w", name, err)
		}
		replay, err := broker.NewDelaySet(client, broker.ReplaySetName(name)).Size(ctx)
		if err != nil {
			return fmt.Errorf("failed to read replay set for %s: %w", name, err)
		}
		depths = append(depths, QueueDepth{Name: name, Depth: depth, DLQ: dlq, Replay: replay})
	}

	return cmdutil.PrintOutput(os.Stdout, depths, len(depths) == 0, "No queues configured.", depths)
}
