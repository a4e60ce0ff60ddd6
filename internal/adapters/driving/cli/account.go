package cli

import (
	"errors"
	"os/user"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "Manage mail accounts",
	Long:  `Register mailboxes, toggle syncing and inspect sync status.`,
}

var accountAddCmd = &cobra.Command{
	Use:   "add [email]",
	Short: "Register a mail account",
	Long: `Register a mailbox under a service principal.

Examples:
  mailbridge account add alice@contoso.com --principal <id> --incoming --outgoing
  mailbridge account add support@contoso.com --principal <id> --shared --incoming`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountAdd,
}

var accountListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered accounts",
	RunE:  runAccountList,
}

var accountEnableSyncCmd = &cobra.Command{
	Use:   "enable-sync [account-id]",
	Short: "Switch incoming sync on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if admin == nil {
			return errors.New("admin service not configured")
		}
		return admin.EnableSync(cmd.Context(), actingUser(), args[0])
	},
}

var accountDisableSyncCmd = &cobra.Command{
	Use:   "disable-sync [account-id]",
	Short: "Switch incoming sync off",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if admin == nil {
			return errors.New("admin service not configured")
		}
		return admin.DisableSync(cmd.Context(), actingUser(), args[0])
	},
}

var accountFoldersCmd = &cobra.Command{
	Use:   "folders [account-id]",
	Short: "List the mailbox folders of an account",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountFolders,
}

var accountSetFoldersCmd = &cobra.Command{
	Use:   "set-folders [account-id]",
	Short: "Choose which folders the account syncs",
	Long: `Replace the account's folder filter. Each --folder names a mailbox
folder to sync; everything else is skipped.

Example:
  mailbridge account set-folders <id> --folder Inbox --folder Archive`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountSetFolders,
}

var accountStatusCmd = &cobra.Command{
	Use:   "status [account-id]",
	Short: "Show sync status and recent sync history",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountStatus,
}

// Flags for account add and set-folders.
var (
	accountPrincipal string
	accountName      string
	accountShared    bool
	accountIncoming  bool
	accountOutgoing  bool
	accountDefault   bool
	accountFolders   []string
)

func init() {
	accountAddCmd.Flags().StringVar(&accountPrincipal, "principal", "", "service principal id (required)")
	accountAddCmd.Flags().StringVar(&accountName, "name", "", "display name for the account")
	accountAddCmd.Flags().BoolVar(&accountShared, "shared", false, "register as a shared mailbox")
	accountAddCmd.Flags().BoolVar(&accountIncoming, "incoming", false, "enable incoming sync")
	accountAddCmd.Flags().BoolVar(&accountOutgoing, "outgoing", false, "enable outgoing delivery")
	accountAddCmd.Flags().BoolVar(&accountDefault, "default-outgoing", false, "make this the default outgoing account")
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountEnableSyncCmd)
	accountCmd.AddCommand(accountDisableSyncCmd)
	accountCmd.AddCommand(accountFoldersCmd)
	accountSetFoldersCmd.Flags().StringArrayVar(&accountFolders, "folder", nil, "folder to sync (repeatable)")
	accountCmd.AddCommand(accountSetFoldersCmd)
	accountCmd.AddCommand(accountStatusCmd)
	rootCmd.AddCommand(accountCmd)
}

// actingUser identifies the operator for role checks and audit logs.
func actingUser() string {
	u, err := user.Current()
	if err != nil {
		return "unknown"
	}
	return u.Username
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	if registry == nil {
		return errors.New("registry not configured")
	}

	accType := domain.UserMailbox
	if accountShared {
		accType = domain.SharedMailbox
	}
	account := &domain.MailAccount{
		Name:            accountName,
		Type:            accType,
		Email:           args[0],
		PrincipalID:     accountPrincipal,
		Enabled:         true,
		EnableIncoming:  accountIncoming,
		EnableOutgoing:  accountOutgoing,
		DefaultOutgoing: accountDefault,
	}
	if err := registry.CreateAccount(cmd.Context(), account); err != nil {
		return err
	}
	cmd.Printf("Registered account %s (%s)\n", account.ID, account.Email)
	return nil
}

func runAccountList(cmd *cobra.Command, _ []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	accounts, err := admin.ListAccounts(cmd.Context())
	if err != nil {
		return err
	}
	if len(accounts) == 0 {
		cmd.Println("No accounts registered.")
		return nil
	}

	for _, a := range accounts {
		cmd.Printf("  %s\n", a.ID)
		cmd.Printf("    Email: %s (%s)\n", a.Email, a.Type)
		cmd.Printf("    Incoming: %t  Outgoing: %t  Default outgoing: %t\n",
			a.EnableIncoming, a.EnableOutgoing, a.DefaultOutgoing)
		if a.LastSyncStatus != "" {
			cmd.Printf("    Last sync: %s\n", a.LastSyncStatus)
		}
	}
	return nil
}

func runAccountFolders(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	folders, err := admin.ListFolders(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	for _, f := range folders {
		cmd.Printf("  %s (%d items, %d unread)\n", f.DisplayName, f.TotalItemCount, f.UnreadItemCount)
	}
	return nil
}

func runAccountSetFolders(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	filters := make([]domain.FolderFilter, 0, len(accountFolders))
	for _, name := range accountFolders {
		filters = append(filters, domain.FolderFilter{FolderName: name, SyncEnabled: true})
	}
	if err := admin.UpdateFolderFilter(cmd.Context(), actingUser(), args[0], filters); err != nil {
		return err
	}
	cmd.Printf("Folder filter updated (%d folders)\n", len(filters))
	return nil
}

func runAccountStatus(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	status, err := admin.SyncStatus(cmd.Context(), args[0], 10)
	if err != nil {
		return err
	}

	a := status.Account
	cmd.Printf("Account: %s (%s)\n", a.Email, a.Type)
	cmd.Printf("Messages recorded: %d\n", status.Messages)
	if a.LastSyncTime != nil {
		cmd.Printf("Last sync: %s (%s)\n", a.LastSyncTime.Format("2006-01-02 15:04:05"), a.LastSyncStatus)
	}
	if a.SyncError != "" {
		cmd.Printf("Last error: %s\n", a.SyncError)
	}
	if len(status.RecentLogs) > 0 {
		cmd.Println("Recent passes:")
		for _, l := range status.RecentLogs {
			cmd.Printf("  %s  %-8s fetched=%d created=%d failed=%d\n",
				l.StartTime.Format("2006-01-02 15:04:05"), l.Status, l.Fetched, l.Created, l.Failed)
		}
	}
	return nil
}
