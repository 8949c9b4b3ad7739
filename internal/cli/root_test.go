package cli

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "librecur", cmd.Use)
	assert.Contains(t, cmd.Long, "LIBRECUR_")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"expand", "calendar", "seek", "validate", "snapshot", "resume", "snapshots"}

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
}

func TestStoreFlags(t *testing.T) {
	cmd := NewRootCommand()
	for _, name := range []string{"snapshot", "resume", "snapshots"} {
		sub, _, err := cmd.Find([]string{name})
		require.NoError(t, err)

		dir := sub.Flags().Lookup("dir")
		require.NotNil(t, dir, name)
		assert.Equal(t, DefaultStoreDir, dir.DefValue)
		require.NotNil(t, sub.Flags().Lookup("xml"), name)
		require.NotNil(t, sub.Flags().Lookup("db"), name)
	}
}

func TestRootCommand_InvalidFormat(t *testing.T) {
	out, errOut := &bytes.Buffer{}, &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"--format", "xml", "validate", "--rule", "FREQ=DAILY", "--start", "2024-01-01"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut.String(), `invalid format "xml"`)
}

func TestRootCommand_InvalidEnvironment(t *testing.T) {
	t.Setenv("LIBRECUR_MAX_IDLE_YEARS", "forever")

	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"validate", "--rule", "FREQ=DAILY", "--start", "2024-01-01"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut.String(), "Error [E001]")
}

func TestRootCommand_FlagError(t *testing.T) {
	errOut := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(errOut)
	cmd.SetArgs([]string{"expand", "--limit", "many"})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, errOut.String(), "--limit")
}

func TestRootCommand_EnvironmentReachesIterator(t *testing.T) {
	t.Setenv("LIBRECUR_LENIENT_SETPOS", "true")

	out := &bytes.Buffer{}
	cmd := NewRootCommand()
	cmd.SetOut(out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"expand",
		"--rule", "FREQ=MONTHLY;BYDAY=MO;BYSETPOS=5",
		"--start", "2024-01-01T09:00:00Z", "--limit", "2"})

	require.NoError(t, cmd.Execute())
	// February and March have four Mondays and are skipped.
	assert.Contains(t, out.String(), "   1  2024-01-29T09:00:00Z\n")
	assert.Contains(t, out.String(), "   2  2024-04-29T09:00:00Z\n")
}
