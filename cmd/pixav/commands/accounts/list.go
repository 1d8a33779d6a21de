package accounts

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/bytesize"
	"github.com/Charliesj0129/pixAV/internal/cli/timeutil"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all accounts",
	Long: `List all upload accounts with their scheduling state and quota usage.

Examples:
  # List accounts as table
  pixav accounts list

  # List as JSON
  pixav accounts list -o json

  # List as YAML
  pixav accounts list -o yaml`,
	RunE: runList,
}

// AccountList is a list of accounts for table rendering.
type AccountList []*models.Account

// Headers implements TableRenderer.
func (al AccountList) Headers() []string {
	return []string{"EMAIL", "STATUS", "DAILY USED", "QUOTA", "LAST USED", "COOLDOWN UNTIL"}
}

// Rows implements TableRenderer.
func (al AccountList) Rows() [][]string {
	rows := make([][]string, 0, len(al))
	for _, a := range al {
		lastUsed := timeutil.FormatOptional(a.LastUsedAt)
		cooldown := timeutil.FormatOptional(a.CooldownUntil)
		used := bytesize.FromInt64(a.DailyUploadedBytes).String()
		quota := bytesize.FromInt64(a.DailyQuotaBytes).String()
		rows = append(rows, []string{a.Email, string(a.Status), used, quota, lastUsed, cooldown})
	}
	return rows
}

func runList(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	st, err := cmdutil.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	ctx := cmd.Context()

	// Clear elapsed cooldowns first so the listing reflects what the
	// scheduler would actually see.
	released, err := st.ReleaseExpiredCooldowns(ctx)
	if err != nil {
		return fmt.Errorf("failed to release expired cooldowns: %w", err)
	}
	if released > 0 {
		fmt.Fprintf(os.Stderr, "Released %d account(s) from expired cooldown\n", released)
	}

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to list accounts: %w", err)
	}

	return cmdutil.PrintOutput(os.Stdout, accounts, len(accounts) == 0, "No accounts configured.", AccountList(accounts))
}
