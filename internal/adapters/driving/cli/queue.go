package cli

import (
	"errors"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the outbound mail queue",
}

var queueProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one delivery pass over pending queue entries",
	RunE: func(cmd *cobra.Command, _ []string) error {
		if tasks == nil {
			return errors.New("tasks not configured")
		}
		tasks.ProcessOutboundQueue(cmd.Context())
		cmd.Println("Queue pass finished.")
		return nil
	},
}

func init() {
	queueCmd.AddCommand(queueProcessCmd)
	rootCmd.AddCommand(queueCmd)
}
