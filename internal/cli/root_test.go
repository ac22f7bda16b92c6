package cli

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "provstream", cmd.Use)
	assert.Contains(t, cmd.Long, "provenance store")
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := []string{"compile", "validate", "run", "publish", "dump", "export", "test"}

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

func TestCompileCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	compileCmd, _, err := cmd.Find([]string{"compile"})
	require.NoError(t, err)

	outputFlag := compileCmd.Flags().Lookup("output")
	require.NotNil(t, outputFlag)
	assert.Equal(t, "o", outputFlag.Shorthand)
}

func TestRunCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	runCmd, _, err := cmd.Find([]string{"run"})
	require.NoError(t, err)

	for _, name := range []string{"db", "postgres", "data", "pattern", "location", "marker", "nats", "subject", "metrics-addr"} {
		require.NotNil(t, runCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "all", runCmd.Flags().Lookup("retention").DefValue)
	assert.Equal(t, "16", runCmd.Flags().Lookup("queue-size").DefValue)
	assert.Equal(t, DefaultSubject, runCmd.Flags().Lookup("subject").DefValue)
	assert.Equal(t, "Europe/London", runCmd.Flags().Lookup("location").DefValue)
}

func TestRunCommand_RequiresSource(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--db", ":memory:", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "data")
}

func TestRunCommand_RejectsBothStores(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetArgs([]string{"run", "--db", "x.db", "--postgres", "postgres://x", "--data", ".", t.TempDir()})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres")
}

func TestExportCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	exportCmd, _, err := cmd.Find([]string{"export"})
	require.NoError(t, err)

	for _, name := range []string{"db", "postgres", "engine", "s3-endpoint", "s3-path-style", "s3-access-key", "s3-secret-key"} {
		require.NotNil(t, exportCmd.Flags().Lookup(name), "flag --%s", name)
	}
	assert.Equal(t, "us-east-1", exportCmd.Flags().Lookup("s3-region").DefValue)
}

func TestDumpCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	dumpCmd, _, err := cmd.Find([]string{"dump"})
	require.NoError(t, err)

	require.NotNil(t, dumpCmd.Flags().Lookup("db"))
	require.NotNil(t, dumpCmd.Flags().Lookup("engine"))
	deltas := dumpCmd.Flags().Lookup("deltas")
	require.NotNil(t, deltas)
	assert.Equal(t, "false", deltas.DefValue)
}

func TestPublishCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	publishCmd, _, err := cmd.Find([]string{"publish"})
	require.NoError(t, err)

	assert.Equal(t, "nats://127.0.0.1:4222", publishCmd.Flags().Lookup("nats").DefValue)
	assert.Equal(t, "http://foodsafety/ssn", publishCmd.Flags().Lookup("stream").DefValue)
	require.NotNil(t, publishCmd.Flags().Lookup("base"))
}

func TestTestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()
	testCmd, _, err := cmd.Find([]string{"test"})
	require.NoError(t, err)

	updateFlag := testCmd.Flags().Lookup("update")
	require.NotNil(t, updateFlag)
	assert.Equal(t, "false", updateFlag.DefValue)

	filterFlag := testCmd.Flags().Lookup("filter")
	require.NotNil(t, filterFlag)
}

func TestFormatValidation(t *testing.T) {
	// Test valid formats
	assert.True(t, isValidFormat("text"))
	assert.True(t, isValidFormat("json"))

	// Test invalid formats
	assert.False(t, isValidFormat("xml"))
	assert.False(t, isValidFormat(""))
	assert.False(t, isValidFormat("TEXT"))
}

func TestFormatValidationIntegration(t *testing.T) {
	cmd := NewRootCommand()
	cmd.SetArgs([]string{"--format", "invalid", "compile", "."})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestConfigureLogging(t *testing.T) {
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var buf bytes.Buffer
	configureLogging(&RootOptions{LogWriter: &buf})
	slog.Debug("hidden")
	slog.Info("shown", "engine", "temperature")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=shown engine=temperature")

	buf.Reset()
	configureLogging(&RootOptions{Verbose: true, LogWriter: &buf})
	slog.Debug("detail")
	assert.Contains(t, buf.String(), "level=DEBUG msg=detail")
}
