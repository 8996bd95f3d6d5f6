package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/omnistate/internal/config"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "omni", cmd.Use)
	assert.Contains(t, cmd.Long, "reactive state")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"validate", "query", "add", "update", "delete", "watch", "run", "version"}

	for _, cmdName := range commands {
		t.Run(cmdName, func(t *testing.T) {
			subCmd, _, err := cmd.Find([]string{cmdName})
			require.NoError(t, err, "Command %s should exist", cmdName)
			require.NotNil(t, subCmd)
			assert.Equal(t, cmdName, subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	verboseFlag := cmd.PersistentFlags().Lookup("verbose")
	require.NotNil(t, verboseFlag)
	assert.Equal(t, "v", verboseFlag.Shorthand)
	assert.Equal(t, "false", verboseFlag.DefValue)

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)

	for _, name := range []string{"adapter", "db", "schema"} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestQueryCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	queryCmd, _, err := cmd.Find([]string{"query"})
	require.NoError(t, err)

	limitFlag := queryCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "-1", limitFlag.DefValue)

	for _, name := range []string{"where", "order", "offset", "include", "get"} {
		assert.NotNil(t, queryCmd.Flags().Lookup(name), name)
	}
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	updateFlag := runCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := runCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "validate", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestLoadConfig(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		cfg, err := (&RootOptions{}).LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)
	})

	t.Run("flags override file", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "omni.yaml")
		require.NoError(t, os.WriteFile(path, []byte("adapter: sqlite\ndatabase: a.db\nschema: s.cue\n"), 0644))

		cfg, err := (&RootOptions{Config: path, Database: "/tmp/b.db"}).LoadConfig()
		require.NoError(t, err)
		assert.Equal(t, config.AdapterSQLite, cfg.Adapter)
		assert.Equal(t, "/tmp/b.db", cfg.Database)
		assert.Equal(t, filepath.Join(dir, "s.cue"), cfg.Schema)
	})

	t.Run("invalid override", func(t *testing.T) {
		_, err := (&RootOptions{Adapter: "postgres"}).LoadConfig()
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "unknown adapter")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := (&RootOptions{Config: filepath.Join(t.TempDir(), "nope.yaml")}).LoadConfig()
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
	})
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "omni ")
}
