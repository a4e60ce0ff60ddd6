package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync [account-id]",
	Short: "Run a sync pass now",
	Long: `Run a manual sync pass for one account, or for every incoming-enabled
account when no account id is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		if tasks == nil {
			return errors.New("tasks not configured")
		}
		tasks.SyncAllAccounts(cmd.Context())
		cmd.Println("Sync pass finished for all accounts.")
		return nil
	}

	if admin == nil {
		return errors.New("admin service not configured")
	}
	log, err := admin.TriggerManualSync(cmd.Context(), actingUser(), args[0])
	if err != nil {
		return err
	}
	cmd.Printf("Sync %s: fetched=%d created=%d updated=%d failed=%d\n",
		log.Status, log.Fetched, log.Created, log.Updated, log.Failed)
	return nil
}
