package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sample-labeler/internal/config"
)

func sqliteConfig(dsn string) *config.Config {
	c := &config.Config{}
	c.Store.Driver = "sqlite"
	c.Store.DatabaseURL = dsn
	c.Store.PoolSize = 1
	c.Server.Port = 8080
	c.Server.MaxUploadMB = 1
	c.Ingest.ChunkSize = 2
	c.Labeling.PageSize = 10
	c.Labeling.OptionsLimit = 100
	return c
}

func TestInitStore_SQLite(t *testing.T) {
	cfg = sqliteConfig(filepath.Join(t.TempDir(), "test.db"))

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck
}

func TestInitStore_SQLiteDefaultDSN(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(tmpDir))
	defer os.Chdir(origDir) //nolint:errcheck

	cfg = sqliteConfig("")

	st, err := initStore(context.Background())
	require.NoError(t, err)
	require.NotNil(t, st)
	defer st.Close() //nolint:errcheck

	_, statErr := os.Stat(filepath.Join(tmpDir, "labeler.db"))
	assert.NoError(t, statErr)
}

func TestInitStore_UnsupportedDriver(t *testing.T) {
	cfg = &config.Config{Store: config.StoreConfig{Driver: "mysql"}}

	_, err := initStore(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestOpenStore_MigratesSQLite(t *testing.T) {
	cfg = sqliteConfig(filepath.Join(t.TempDir(), "test.db"))

	st, err := openStore(context.Background(), "store")
	require.NoError(t, err)
	defer st.Close() //nolint:errcheck

	users, err := st.ListUsers(context.Background())
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestOpenStore_InvalidConfig(t *testing.T) {
	cfg = sqliteConfig(filepath.Join(t.TempDir(), "test.db"))
	cfg.Ingest.ChunkSize = 0

	_, err := openStore(context.Background(), "store")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ingest.chunk_size must be > 0")
}
