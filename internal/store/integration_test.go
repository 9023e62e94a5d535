//go:build integration

package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var (
	pgConnStr  string
	pgOnce     sync.Once
	pgSetupErr error
)

// postgresConnString starts one PostgreSQL container per test binary.
func postgresConnString(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode (requires Docker)")
	}

	pgOnce.Do(func() {
		ctx := context.Background()
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "postgres:16-alpine",
				ExposedPorts: []string{"5432/tcp"},
				Env: map[string]string{
					"POSTGRES_DB":       "labeler",
					"POSTGRES_USER":     "labeler",
					"POSTGRES_PASSWORD": "labeler",
				},
				WaitingFor: wait.ForLog("database system is ready to accept connections").
					WithOccurrence(2).
					WithStartupTimeout(60 * time.Second),
			},
			Started: true,
		})
		if err != nil {
			pgSetupErr = fmt.Errorf("failed to start postgres container: %w", err)
			return
		}
		host, err := container.Host(ctx)
		if err != nil {
			pgSetupErr = err
			return
		}
		port, err := container.MappedPort(ctx, "5432")
		if err != nil {
			pgSetupErr = err
			return
		}
		pgConnStr = fmt.Sprintf("postgres://labeler:labeler@%s:%s/labeler?sslmode=disable", host, port.Port())
	})

	if pgSetupErr != nil {
		t.Fatalf("Failed to setup test database: %v", pgSetupErr)
	}
	return pgConnStr
}

func newTestPostgres(t *testing.T) Store {
	t.Helper()
	ctx := context.Background()

	s, err := NewPostgres(ctx, postgresConnString(t), PoolConfig{Size: 2, MaxOverflow: 2})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Migrate(ctx))
	_, err = s.pool.Exec(ctx, "TRUNCATE sample_data, users RESTART IDENTITY")
	require.NoError(t, err)
	return s
}

func TestPostgresStore_Integration(t *testing.T) {
	storeTestSuite(t, newTestPostgres)
}
