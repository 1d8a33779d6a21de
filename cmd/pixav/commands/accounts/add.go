package accounts

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Charliesj0129/pixAV/cmd/pixav/cmdutil"
	"github.com/Charliesj0129/pixAV/internal/bytesize"
	"github.com/Charliesj0129/pixAV/internal/cli/prompt"
	"github.com/Charliesj0129/pixAV/pkg/models"
)

var (
	addEmail string
	addQuota string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Add a new upload account",
	Long: `Add a new upload account to the rotation pool.

If the email is not provided via flags, you will be prompted to enter it
interactively. New accounts start active and become eligible for the next
upload immediately.

Examples:
  # Add account interactively
  pixav accounts add

  # Add account with flags
  pixav accounts add --email uploader3@gmail.com

  # Add account with a custom daily quota
  pixav accounts add --email uploader3@gmail.com --quota 10GiB`,
	RunE: runAdd,
}

func init() {
	addCmd.Flags().StringVarP(&addEmail, "email", "e", "", "Account email (prompts if not provided)")
	addCmd.Flags().StringVar(&addQuota, "quota", "", "Daily upload quota (default: 15GiB)")
}

func validateEmail(s string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return errors.New("email is required")
	}
	if !strings.Contains(s, "@") {
		return errors.New("not a valid email address")
	}
	return nil
}

func runAdd(cmd *cobra.Command, args []string) error {
	cfg, err := cmdutil.LoadConfig()
	if err != nil {
		return err
	}

	email := addEmail
	if email == "" {
		email, err = prompt.InputWithValidation("Email", validateEmail)
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}
	email = strings.TrimSpace(email)
	if err := validateEmail(email); err != nil {
		return err
	}

	quotaStr := addQuota
	if quotaStr == "" && !cmd.Flags().Changed("email") {
		// Interactive session; offer the quota prompt too
		quotaStr, err = prompt.Input("Daily quota", "15GiB")
		if err != nil {
			return cmdutil.HandleAbort(err)
		}
	}

	var quotaBytes int64
	if quotaStr != "" {
		quota, err := bytesize.ParseByteSize(quotaStr)
		if err != nil {
			return fmt.Errorf("invalid quota %q: %w", quotaStr, err)
		}
		quotaBytes = quota.Int64()
	}

	st, err := cmdutil.OpenStore(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	account := &models.Account{
		Email:           email,
		Status:          models.AccountActive,
		DailyQuotaBytes: quotaBytes,
	}

	if _, err := st.CreateAccount(cmd.Context(), account); err != nil {
		if errors.Is(err, models.ErrDuplicateAccount) {
			return fmt.Errorf("account %s already exists", email)
		}
		return fmt.Errorf("failed to create account: %w", err)
	}

	quota := bytesize.FromInt64(account.DailyQuotaBytes)
	cmdutil.PrintSuccess(fmt.Sprintf("Account %s added (daily quota %s)", email, quota))
	return nil
}
