package cli

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "convoprobe", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"run", "list", "validate", "history", "watch"}

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
	assert.Equal(t, "convoprobe.yaml", configFlag.DefValue)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"catalog", "concurrency", "db", "timeout-single", "timeout-multi", "fail-on-warn"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run should have --%s", name)
	}
	assert.Equal(t, "j", runCmd.Flags().Lookup("concurrency").Shorthand)
}

func TestWatchCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	watchCmd, _, err := cmd.Find([]string{"watch"})
	require.NoError(t, err)

	debounce := watchCmd.Flags().Lookup("debounce")
	require.NotNil(t, debounce)
	assert.Equal(t, "300ms", debounce.DefValue)
	assert.NotNil(t, watchCmd.Flags().Lookup("fail-on-warn"))
}

func TestInvalidFormat(t *testing.T) {
	f := newFixture(t)
	cmd := newRootCommand(&RootOptions{Client: f.assistant})

	_, _, err := execute(cmd, "list", "--config", f.config, "--format", "yaml")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, err.Error(), `invalid format "yaml"`)
}

func TestUnknownFlagIsCommandError(t *testing.T) {
	cmd := NewRootCommand()

	_, _, err := execute(cmd, "run", "--no-such-flag")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestRootRunsThroughSubcommand(t *testing.T) {
	f := newFixture(t)
	cmd := newRootCommand(&RootOptions{Client: f.assistant})

	stdout, _, err := execute(cmd, "--config", f.config, "list", "suite:smoke")
	require.NoError(t, err)
	assert.Contains(t, stdout, "greeting-basic")
	assert.Contains(t, stdout, "2 scenario(s)")
}
