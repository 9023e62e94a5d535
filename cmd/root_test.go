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

	for _, name := range []string{"serve", "migrate", "import", "export", "clear", "user"} {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "labeler", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestServeCommand_Flags(t *testing.T) {
	flag := serveCmd.Flags().Lookup("port")
	require.NotNil(t, flag, "serve command should have --port flag")
	assert.Equal(t, "0", flag.DefValue)
}

func TestImportCommand_Flags(t *testing.T) {
	for _, name := range []string{"file", "chunk-size", "fast"} {
		assert.NotNil(t, importCmd.Flags().Lookup(name), "import should have --%s flag", name)
	}
}

func TestExportCommand_Flags(t *testing.T) {
	flag := exportCmd.Flags().Lookup("type")
	require.NotNil(t, flag)
	assert.Equal(t, "all", flag.DefValue)
	assert.NotNil(t, exportCmd.Flags().Lookup("out"))
}

func TestUserCreateCommand_Flags(t *testing.T) {
	for _, name := range []string{"username", "password", "role", "name", "category", "brand"} {
		assert.NotNil(t, userCreateCmd.Flags().Lookup(name), "user create should have --%s flag", name)
	}
	assert.Equal(t, "Data_admin", userCreateCmd.Flags().Lookup("role").DefValue)
}

func TestRootCommand_LogLevelFlag(t *testing.T) {
	flag := rootCmd.PersistentFlags().Lookup("log-level")
	require.NotNil(t, flag)
	assert.Equal(t, "", flag.DefValue)
}

func TestRootCommand_LogLevelOverride(t *testing.T) {
	cliEnv(t)
	t.Cleanup(func() { logLevel = "" })

	require.NoError(t, execute(t, "migrate", "--log-level", "debug"))
	assert.Equal(t, "debug", cfg.Log.Level)
}
