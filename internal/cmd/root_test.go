package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommandTree(t *testing.T) {
	for _, path := range [][]string{
		{"serve"},
		{"migrate"},
		{"token"},
		{"ldap", "update"},
		{"ldap", "import"},
		{"ldap", "delete"},
	} {
		found, _, err := rootCmd.Find(path)
		require.NoError(t, err, path)
		assert.Equal(t, path[len(path)-1], found.Name())
	}
}

func TestLDAPDeleteDefaultsToDryRun(t *testing.T) {
	flag := ldapDeleteCmd.Flags().Lookup("dry-run")
	require.NotNil(t, flag)
	assert.Equal(t, "true", flag.DefValue)

	report := ldapUpdateCmd.InheritedFlags().Lookup("report")
	require.NotNil(t, report)
}

func TestRequireSubcommand(t *testing.T) {
	assert.EqualError(t, requireSubcommand(ldapCmd, nil), "requires a subcommand")
	assert.Error(t, requireSubcommand(ldapCmd, []string{"purge"}))
}
