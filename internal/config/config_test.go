package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "", cfg.Store.DatabaseURL)
	assert.Equal(t, 10, cfg.Store.PoolSize)
	assert.Equal(t, 20, cfg.Store.MaxOverflow)
	assert.Equal(t, time.Hour, cfg.Store.ConnLifetime())
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 500, cfg.Server.MaxUploadMB)
	assert.Equal(t, int64(500<<20), cfg.Server.MaxUploadBytes())
	assert.Equal(t, "uploads", cfg.Server.UploadDir)
	assert.Equal(t, "exports", cfg.Server.ExportDir)
	assert.Empty(t, cfg.Server.CORSOrigins)
	assert.Equal(t, 5000, cfg.Ingest.ChunkSize)
	assert.Equal(t, time.Hour, cfg.Ingest.Retention())
	assert.Equal(t, 10*time.Minute, cfg.Ingest.SweepInterval())
	assert.Equal(t, 10*time.Minute, cfg.Cache.OptionsTTL())
	assert.Equal(t, time.Minute, cfg.Cache.AuthTTL())
	assert.Equal(t, 50, cfg.Labeling.PageSize)
	assert.Equal(t, 1000, cfg.Labeling.OptionsLimit)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  database_url: labeler.db
log:
  level: debug
  format: console
server:
  port: 9090
  cors_origins:
    - http://localhost:3000
ingest:
  chunk_size: 100
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "labeler.db", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, []string{"http://localhost:3000"}, cfg.Server.CORSOrigins)
	assert.Equal(t, 100, cfg.Ingest.ChunkSize)
	// Defaults still apply for unset values
	assert.Equal(t, 50, cfg.Labeling.PageSize)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("LABELER_STORE_DRIVER", "postgres")
	t.Setenv("LABELER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("LABELER_SERVER_PORT", "3000")
	t.Setenv("LABELER_CACHE_OPTIONS_TTL_SECS", "30")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Cache.OptionsTTL())
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/labeler"
	cfg.Store.PoolSize = 10
	cfg.Store.MaxOverflow = 20
	cfg.Server.Port = 8080
	cfg.Server.MaxUploadMB = 500
	cfg.Ingest.ChunkSize = 5000
	cfg.Labeling.PageSize = 50
	cfg.Labeling.OptionsLimit = 1000
	return cfg
}

func TestValidate_Defaults(t *testing.T) {
	cfg := validDefaults()
	assert.NoError(t, cfg.Validate("serve"))
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_MissingDatabaseURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url is required")

	// SQLite falls back to a local file.
	cfg.Store.Driver = "sqlite"
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `store.driver "mysql" is not supported`)
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Ingest.ChunkSize = 0
	cfg.Labeling.PageSize = -1

	err := cfg.Validate("store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.chunk_size must be > 0")
	assert.Contains(t, err.Error(), "labeling.page_size must be > 0")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port must be > 0")

	// Port only matters when serving.
	assert.NoError(t, cfg.Validate("store"))
}

func TestValidate_UnknownMode(t *testing.T) {
	cfg := validDefaults()
	err := cfg.Validate("unknown")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}
