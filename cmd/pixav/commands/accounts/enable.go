package accounts

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/bytesize"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
	"github.com/Charliesj0129/pixAV/pkg/models"
	"github.com/Charliesj0129/pixAV/pkg/store"
)

var enableCmd = &cobra.Command{
	Use:   "enable [email]",
	Short: "Put an account back into rotation",
	Long: `Mark an account active so the scheduler may select it again.

Enabling also clears any cooldown or stale lease on the account. If no
email is given, you will be prompted to pick from the accounts that are
currently out of rotation.

Examples:
  # Enable by email
  pixav accounts enable uploader3@gmail.com

  # Pick interactively
  pixav accounts enable`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEnable,
}

func runEnable(cmd *cobra.Command, args []string) error {
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

	account, err := pickAccount(ctx, st, email, "Enable which account?",
		func(a *models.Account) bool { return a.Status != models.AccountActive })
	if err != nil {
		return cmdutil.HandleAbort(err)
	}
	if account == nil {
		fmt.Println("All accounts are already active.")
		return nil
	}

	if account.Status == models.AccountActive {
		fmt.Printf("Account %s is already active\n", account.Email)
		return nil
	}

	if err := st.UpdateAccountStatus(ctx, account.ID, models.AccountActive); err != nil {
		return fmt.Errorf("failed to enable account: %w", err)
	}

	cmdutil.PrintSuccess(fmt.Sprintf("Account %s enabled", account.Email))
	return nil
}

// pickAccount resolves an account by email, or prompts with a filtered
// selection when no email was given. Returns nil when the filter leaves
// nothing to pick from.
func pickAccount(ctx context.Context, st store.Store, email, label string,
	selectable func(*models.Account) bool) (*models.Account, error) {
	if email != "" {
		account, err := st.GetAccountByEmail(ctx, email)
		if err != nil {
			if errors.Is(err, models.ErrAccountNotFound) {
				return nil, fmt.Errorf("account %s not found", email)
			}
			return nil, fmt.Errorf("failed to look up account: %w", err)
		}
		return account, nil
	}

	accounts, err := st.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	byID := make(map[string]*models.Account)
	options := make([]prompt.SelectOption, 0, len(accounts))
	for _, a := range accounts {
		if !selectable(a) {
			continue
		}
		byID[a.ID] = a
		used := bytesize.FromInt64(a.DailyUploadedBytes)
		quota := bytesize.FromInt64(a.DailyQuotaBytes)
		options = append(options, prompt.SelectOption{
			Label:       a.Email,
			Value:       a.ID,
			Description: fmt.Sprintf("%s, %s of %s used today", a.Status, used, quota),
		})
	}
	if len(options) == 0 {
		return nil, nil
	}

	id, err := prompt.Select(label, options)
	if err != nil {
		return nil, err
	}
	return byID[id], nil
}
