// Package accounts implements upload account management commands for pixav.
package accounts

import (
	"github.com/spf13/cobra"
)

// Cmd is the parent command for account management.
var Cmd = &cobra.Command{
	Use:   "accounts",
	Short: "Upload account management",
	Long: `Manage the pool of upload accounts the pipeline rotates through.

Each account carries a daily upload quota. The scheduler picks the least
recently used active account for every upload, so adding accounts raises
total daily throughput. Disabled accounts are excluded from scheduling
until re-enabled; cooldowns from quota exhaustion clear on their own.

Examples:
  # List all accounts with quota usage
  pixav accounts list

  # Add an account interactively
  pixav accounts add

  # Add an account with flags
  pixav accounts add --email uploader3@gmail.com --quota 15GiB

  # Take an account out of rotation
  pixav accounts disable uploader3@gmail.com

  # Put it back
  pixav accounts enable uploader3@gmail.com`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(addCmd)
	Cmd.AddCommand(enableCmd)
	Cmd.AddCommand(disableCmd)
}
