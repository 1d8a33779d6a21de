// Package queues implements work queue inspection commands for pixav.
package queues

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for queue inspection.
var Cmd = &cobra.Command{
	Use:   "queues",
	Short: "Work queue inspection",
	Long: `Inspect the Redis work queues that route tasks between stages.

Each stage has a main queue, a dead letter queue for tasks that exhausted
their retries, and a replay set holding dead letters scheduled for
re-delivery.

Examples:
  # Show depth of every queue
  pixav queues list

  # Drop all entries from a queue
  pixav queues clear pixav:download`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(clearCmd)
}
