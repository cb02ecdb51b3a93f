package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"cds-ils/pkg/contextkeys"
	"cds-ils/pkg/service"
)

var tokenCmd = &cobra.Command{
	Use:   "token <subject>",
	Short: "Print a bearer token for the sync API",
	Long: `Sign a token for POST /api/sync/ldap with JWT_SECRET_KEY.

The token is valid for JWT_ACCESS_TOKEN_TTL.

Example:
  cds-ils token scheduler`,
	Args: cobra.ExactArgs(1),
	RunE: runToken,
}

var tokenScope string

func init() {
	tokenCmd.Flags().StringVar(&tokenScope, "scope", contextkeys.SyncScope, "Scope written into the token")
	rootCmd.AddCommand(tokenCmd)
}

func runToken(cmd *cobra.Command, args []string) error {
	jwtSvc := service.NewJWTService(cfg.JWT.SecretKey, cfg.JWT.AccessTokenTTL)
	token, err := jwtSvc.GenerateToken(args[0], tokenScope)
	if err != nil {
		return fmt.Errorf("sign token: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}
