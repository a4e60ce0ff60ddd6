// Package cli wires the cobra command tree. Services are injected from main
// before Execute runs.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbridge/internal/core/services"
)

var (
	// version is set by goreleaser ldflags.
	version = "dev"

	// configPath overrides the default config file location.
	configPath string

	// Injected service implementations for CLI commands.
	registry  *services.AccountRegistry
	admin     *services.AdminService
	tasks     *services.Tasks
	scheduler *services.Scheduler
)

// Services holds the injected service implementations.
type Services struct {
	Registry  *services.AccountRegistry
	Admin     *services.AdminService
	Tasks     *services.Tasks
	Scheduler *services.Scheduler
}

// SetServices injects service implementations for CLI commands.
func SetServices(s *Services) {
	if s == nil {
		return
	}
	registry = s.Registry
	admin = s.Admin
	tasks = s.Tasks
	scheduler = s.Scheduler
}

// rootCmd is the base command.
var rootCmd = &cobra.Command{
	Use:   "mailbridge",
	Short: "Microsoft 365 mailbox sync and delivery bridge",
	Long: `Mailbridge connects local mail records to Microsoft 365 mailboxes.

It pulls incoming mail incrementally through Graph delta queries and sends
queued outbound mail through the Graph sendMail API, with per-recipient
delivery tracking.`,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string for the CLI.
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}

// ConfigPath returns the --config flag value.
func ConfigPath() string {
	return configPath
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
}
