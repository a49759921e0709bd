package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_RegistersSubcommands(t *testing.T) {
	root := NewRootCommand()

	want := []string{"init", "setup", "migrate", "sync", "seed", "apply", "status", "test"}
	got := make(map[string]bool)
	for _, sub := range root.Commands() {
		got[sub.Name()] = true
	}
	for _, name := range want {
		assert.True(t, got[name], "missing subcommand %q", name)
	}
}

func TestNewRootCommand_GlobalFlags(t *testing.T) {
	root := NewRootCommand()

	require.NotNil(t, root.PersistentFlags().Lookup("verbose"))
	require.NotNil(t, root.PersistentFlags().Lookup("log-level"))
}

func TestMigrateCommand_FlagDefaults(t *testing.T) {
	cmd := NewMigrateCommand(&RootOptions{})

	failFast := cmd.Flags().Lookup("fail-fast")
	require.NotNil(t, failFast)
	assert.Equal(t, "true", failFast.DefValue)

	dryRun := cmd.Flags().Lookup("dry-run")
	require.NotNil(t, dryRun)
	assert.Equal(t, "false", dryRun.DefValue)
}

func TestSyncCommand_FlagDefaults(t *testing.T) {
	cmd := NewSyncCommand(&RootOptions{})

	debounce := cmd.Flags().Lookup("debounce-ms")
	require.NotNil(t, debounce)
	assert.Equal(t, "250", debounce.DefValue)

	for _, name := range []string{"watch", "dry-run", "fail-fast", "no-prune", "allow-shared-prune"} {
		flag := cmd.Flags().Lookup(name)
		require.NotNil(t, flag, "missing flag %q", name)
		assert.Equal(t, "false", flag.DefValue, "flag %q should default off", name)
	}
}

func TestTestCommand_FlagDefaults(t *testing.T) {
	cmd := NewTestCommand(&RootOptions{})

	parallel := cmd.Flags().Lookup("parallel")
	require.NotNil(t, parallel)
	assert.Equal(t, "1", parallel.DefValue)

	timeout := cmd.Flags().Lookup("timeout-ms")
	require.NotNil(t, timeout)
	assert.Equal(t, "0", timeout.DefValue)

	for _, name := range []string{"suite", "case", "tags", "json-out", "base-url"} {
		require.NotNil(t, cmd.Flags().Lookup(name), "missing flag %q", name)
	}
}

func TestApplyCommand_RequiresFileArgument(t *testing.T) {
	cmd := NewApplyCommand(&RootOptions{})
	err := cmd.Args(cmd, []string{})
	assert.Error(t, err)

	err = cmd.Args(cmd, []string{"database/migrations/001_users.surql"})
	assert.NoError(t, err)
}
