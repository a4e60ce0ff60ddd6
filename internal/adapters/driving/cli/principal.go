package cli

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/mailbridge/internal/core/domain"
)

var principalCmd = &cobra.Command{
	Use:   "principal",
	Short: "Manage service principals",
	Long:  `Register and test the Microsoft Entra app registrations used to reach tenants.`,
}

var principalAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a service principal",
	Long: `Register an app registration for one tenant.

Example:
  mailbridge principal add --name contoso \
    --tenant-id 11111111-... --client-id 22222222-... --client-secret 's3cret'`,
	RunE: runPrincipalAdd,
}

var principalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered service principals",
	RunE:  runPrincipalList,
}

var principalTestCmd = &cobra.Command{
	Use:   "test [principal-id]",
	Short: "Test a principal's credentials with a fresh token grant",
	Args:  cobra.ExactArgs(1),
	RunE:  runPrincipalTest,
}

var principalMailboxesCmd = &cobra.Command{
	Use:   "mailboxes [principal-id]",
	Short: "List the tenant's shared mailboxes",
	Long:  `Query the tenant for mailboxes flagged as shared, as candidates for registration.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runPrincipalMailboxes,
}

// Flags for principal add.
var (
	principalName   string
	principalTenant string
	principalClient string
	principalSecret string
)

func init() {
	principalAddCmd.Flags().StringVar(&principalName, "name", "", "display name for the principal")
	principalAddCmd.Flags().StringVar(&principalTenant, "tenant-id", "", "Entra tenant id")
	principalAddCmd.Flags().StringVar(&principalClient, "client-id", "", "app registration client id")
	principalAddCmd.Flags().StringVar(&principalSecret, "client-secret", "", "app registration client secret")
	principalCmd.AddCommand(principalAddCmd)
	principalCmd.AddCommand(principalListCmd)
	principalCmd.AddCommand(principalTestCmd)
	principalCmd.AddCommand(principalMailboxesCmd)
	rootCmd.AddCommand(principalCmd)
}

func runPrincipalAdd(cmd *cobra.Command, _ []string) error {
	if registry == nil {
		return errors.New("registry not configured")
	}

	principal := &domain.ServicePrincipal{
		Name:         principalName,
		TenantID:     principalTenant,
		ClientID:     principalClient,
		ClientSecret: principalSecret,
		Enabled:      true,
	}
	if err := registry.SavePrincipal(cmd.Context(), principal); err != nil {
		return err
	}
	cmd.Printf("Registered principal %s (%s)\n", principal.ID, principal.Name)
	return nil
}

func runPrincipalList(cmd *cobra.Command, _ []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	principals, err := admin.ListAvailablePrincipals(cmd.Context())
	if err != nil {
		return err
	}
	if len(principals) == 0 {
		cmd.Println("No principals registered.")
		return nil
	}

	for _, p := range principals {
		cmd.Printf("  %s\n", p.ID)
		cmd.Printf("    Name: %s\n", p.Name)
		cmd.Printf("    Tenant: %s\n", p.TenantID)
		if p.LastTokenRefresh != nil {
			cmd.Printf("    Last token refresh: %s\n", p.LastTokenRefresh.Format("2006-01-02 15:04:05"))
		}
	}
	return nil
}

func runPrincipalTest(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	if err := admin.TestPrincipal(cmd.Context(), args[0]); err != nil {
		cmd.Printf("Connection test failed: %v\n", err)
		return err
	}
	cmd.Println("Connection test succeeded.")
	return nil
}

func runPrincipalMailboxes(cmd *cobra.Command, args []string) error {
	if admin == nil {
		return errors.New("admin service not configured")
	}

	mailboxes, err := admin.SharedMailboxes(cmd.Context(), actingUser(), args[0])
	if err != nil {
		return err
	}
	if len(mailboxes) == 0 {
		cmd.Println("No shared mailboxes found.")
		return nil
	}

	for _, m := range mailboxes {
		cmd.Printf("  %s <%s>\n", m.DisplayName, m.Mail)
	}
	return nil
}
