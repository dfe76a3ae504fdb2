package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, name := range []string{"serve", "analyze", "stats", "export"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "callscore", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestAnalyzeCommand_Flags(t *testing.T) {
	flag := analyzeCmd.Flags().Lookup("file")
	require.NotNil(t, flag)
	assert.Equal(t, "-", flag.DefValue)
	assert.NotNil(t, analyzeCmd.Flags().Lookup("agent-id"))
	assert.NotNil(t, analyzeCmd.Flags().Lookup("duration"))
}

func TestStatsCommand_Flags(t *testing.T) {
	for name, def := range map[string]string{"file": "-", "format": "json", "days": "7"} {
		flag := statsCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "stats should have --%s", name)
		assert.Equal(t, def, flag.DefValue)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("out")
	require.NotNil(t, flag)
	assert.Equal(t, "calls.xlsx", flag.DefValue)

	limit := exportCmd.Flags().Lookup("limit")
	require.NotNil(t, limit)
	assert.Equal(t, "0", limit.DefValue)
}
