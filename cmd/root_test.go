package main

import (
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	// Collect subcommand names.
	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	// Verify expected subcommands are registered.
	expected := []string{"extract", "xref", "transform", "export", "run", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "catalog-etl", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
	require.NotNil(t, rootCmd.PersistentFlags().Lookup("data-dir"))
}

func TestXrefCommand_Flags(t *testing.T) {
	flag := xrefCmd.Flags().Lookup("threshold")
	require.NotNil(t, flag, "xref command should have --threshold flag")
	assert.Equal(t, "0.6", flag.DefValue)

	for _, name := range []string{"entity", "workers", "resume"} {
		assert.NotNil(t, xrefCmd.Flags().Lookup(name), "xref command should have --%s flag", name)
	}
}

func TestXrefCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range xrefCmd.Commands() {
		names[c.Name()] = true
	}
	for _, name := range []string{"tune", "checkpoints"} {
		assert.True(t, names[name], "expected xref subcommand %q not found", name)
	}

	names = make(map[string]bool)
	for _, c := range xrefCheckpointsCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["import"])
	assert.True(t, names["clear"])
}

func TestRunCommand_Flags(t *testing.T) {
	for _, name := range []string{"threshold", "workers", "resume", "skip-extract", "format"} {
		assert.NotNil(t, runCmd.Flags().Lookup(name), "run command should have --%s flag", name)
	}
}

func TestXrefFlags_Threshold(t *testing.T) {
	useTestConfig(t, "http://unused")
	cfg.Match.Threshold = 0.7
	cfg.Pacing.Workers = 3

	cmd := &cobra.Command{Use: "xref"}
	cmd.Flags().Float64("threshold", 0.6, "")
	cmd.Flags().Int("workers", 1, "")
	cmd.Flags().Bool("resume", false, "")

	opts, err := xrefFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0.7, opts.Policy.Threshold, "config applies when the flag is unset")
	assert.Equal(t, 3, opts.Workers)

	require.NoError(t, cmd.Flags().Set("threshold", "0.85"))
	require.NoError(t, cmd.Flags().Set("resume", "true"))
	opts, err = xrefFlags(cmd)
	require.NoError(t, err)
	assert.Equal(t, 0.85, opts.Policy.Threshold)
	assert.True(t, opts.Resume)

	require.NoError(t, cmd.Flags().Set("threshold", "1.5"))
	_, err = xrefFlags(cmd)
	assert.Error(t, err)
}

func TestParseEntities(t *testing.T) {
	all, err := parseEntities("all")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	one, err := parseEntities("tv")
	require.NoError(t, err)
	require.Len(t, one, 1)
	assert.Equal(t, "series", string(one[0]))

	_, err = parseEntities("books")
	assert.Error(t, err)
}

func TestParseFormats(t *testing.T) {
	got, err := parseFormats([]string{"csv", "JSON", "jsonl", "xlsx"})
	require.NoError(t, err)
	assert.Len(t, got, 3, "json and jsonl collapse")

	_, err = parseFormats([]string{"parquet"})
	assert.Error(t, err)
}
