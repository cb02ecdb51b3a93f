package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cds-ils/internal/dto"
)

var ldapCmd = &cobra.Command{
	Use:   "ldap",
	Short: "Synchronize users with the CERN directory",
	Long: `Synchronize local users with the CERN LDAP directory.

Every job takes the same Redis lock as the HTTP trigger, so two runs
never overlap. All log lines of one run share a uuid.

Examples:
  cds-ils ldap update --report /tmp/sync.xlsx
  cds-ils ldap import
  cds-ils ldap delete --dry-run=false`,
	RunE: requireSubcommand,
}

var ldapUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Update known users and import new ones",
	Long: `Update the name, department and email of users whose person id is in the
directory, then import the directory accounts not known locally.

Accounts with a missing or empty email or no person id are skipped, as are new
accounts whose email or SSO identity is already used by another user.`,
	Args: cobra.NoArgs,
	RunE: runLDAPJob(dto.SyncActionUpdate),
}

var ldapImportCmd = &cobra.Command{
	Use:   "import",
	Short: "Import every directory account not present locally",
	Long: `Import every directory account whose email is not used locally yet,
then rebuild the patron index. Used to populate an empty instance.`,
	Args: cobra.NoArgs,
	RunE: runLDAPJob(dto.SyncActionImport),
}

var ldapDeleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Anonymize users that left the directory",
	Long: `Anonymize local users whose person id is no longer in the directory.

Disabled unless LDAP_DELETE_ENABLED=true. Patrons with active loans are
kept and the library desk is warned. An empty directory listing deletes
nobody.`,
	Args: cobra.NoArgs,
	RunE: runLDAPJob(dto.SyncActionDelete),
}

var (
	ldapReportPath string
	ldapDryRun     bool
)

func init() {
	rootCmd.AddCommand(ldapCmd)
	ldapCmd.AddCommand(ldapUpdateCmd)
	ldapCmd.AddCommand(ldapImportCmd)
	ldapCmd.AddCommand(ldapDeleteCmd)

	ldapCmd.PersistentFlags().StringVar(&ldapReportPath, "report", "", "Write an xlsx report of the run to this path")
	ldapDeleteCmd.Flags().BoolVar(&ldapDryRun, "dry-run", true, "Only list the users that would be anonymized")
}

func runLDAPJob(action string) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer a.close()

		result, err := a.syncService.Run(ctx, action, action == dto.SyncActionDelete && ldapDryRun)
		if err != nil {
			return err
		}

		if ldapReportPath != "" {
			if err := a.report.Write(ldapReportPath, result); err != nil {
				return err
			}
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "run %s: %d ldap users, %d updated, %d added, %d deleted, %d skipped\n",
			result.RunID, result.LDAPUsers, result.Updated, result.Added, result.Deleted, len(result.Skipped))
		if result.DryRun {
			fmt.Fprintln(out, "dry run: nothing was deleted")
		}
		return nil
	}
}
