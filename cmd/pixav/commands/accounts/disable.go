package accounts

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

var disableForce bool

var disableCmd = &cobra.Command{
	Use:   "disable [email]",
	Short: "Take an account out of rotation",
	Long: `Mark an account banned so the scheduler never selects it.

Use this for accounts that tripped upstream abuse detection or that you
want to retire. Unlike a cooldown, a banned account stays out of rotation
until explicitly re-enabled with 'pixav accounts enable'. An upload
already holding the account finishes normally.

If no email is given, you will be prompted to pick from the accounts that
are currently in rotation.

Examples:
  # Disable by email (asks for confirmation)
  pixav accounts disable uploader3@gmail.com

  # Skip the confirmation
  pixav accounts disable uploader3@gmail.com --force`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDisable,
}

func init() {
	disableCmd.Flags().BoolVarP(&disableForce, "force", "f", false, "Skip confirmation prompt")
}

func runDisable(cmd *cobra.Command, args []string) error {
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

	var email string
	if len(args) > 0 {
		email = args[0]
	}

	account, err := pickAccount(ctx, st, email, "Disable which account?",
		func(a *models.Account) bool { return a.Status != models.AccountBanned })
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if account == nil {
		fmt.Println("No accounts in rotation to disable.")
		return nil
	}

	if account.Status == models.AccountBanned {
		fmt.Printf("Account %s is already disabled\n", account.Email)
		return nil
	}

	confirmed, err := prompt.ConfirmWithForce(
		fmt.Sprintf("Disable account %s? It will be excluded from scheduling until re-enabled", account.Email),
		disableForce)
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if !confirmed {
		fmt.Println("Aborted.")
		return nil
	}

	if err := st.UpdateAccountStatus(ctx, account.ID, models.AccountBanned); err != nil {
		return fmt.Errorf("failed to disable account: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Account %s disabled", account.Email))
	return nil
}
