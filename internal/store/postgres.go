package store

import (
	"context"
	"io"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/db"
	"github.com/sells-group/sample-labeler/internal/model"
)

// migrationLockID serialises concurrent migrate runs across processes.
const migrationLockID = 7305112

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	core
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds connection pool tuning parameters.
type PoolConfig struct {
	Size         int           // connections kept open
	MaxOverflow  int           // extra connections allowed under load
	ConnLifetime time.Duration // recycle interval
}

func newPostgresStore(pool db.Pool, closeFn func()) *PostgresStore {
	return &PostgresStore{
		core:    core{q: pgxQuerier{conn: pool}, d: postgresDialect{}},
		pool:    pool,
		closeFn: closeFn,
	}
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	size := int32(10)
	if poolCfg.Size > 0 {
		size = int32(poolCfg.Size)
	}
	overflow := int32(max(poolCfg.MaxOverflow, 0))
	lifetime := time.Hour
	if poolCfg.ConnLifetime > 0 {
		lifetime = poolCfg.ConnLifetime
	}
	pgxCfg.MaxConns = size + overflow
	pgxCfg.MinConns = size
	pgxCfg.MaxConnLifetime = lifetime
	pgxCfg.HealthCheckPeriod = time.Minute

	// Verify a connection is alive before handing it out.
	pgxCfg.BeforeAcquire = func(ctx context.Context, conn *pgx.Conn) bool {
		return conn.Ping(ctx) == nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return newPostgresStore(pool, pool.Close), nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.pool.Ping(ctx), "postgres: ping")
}

// Migrate applies pending migrations, one transaction per file. A
// transaction-scoped advisory lock keeps concurrent deploys from racing.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("driver", "postgres"))

	if _, err := s.pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`); err != nil {
		return eris.Wrap(err, "postgres: ensure migration table")
	}

	migrations, err := loadMigrations("migrations/postgres")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockID); err != nil {
				return eris.Wrap(err, "postgres: acquire migration lock")
			}

			var applied bool
			if err := tx.QueryRow(ctx,
				"SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename = $1)", m.name,
			).Scan(&applied); err != nil {
				return eris.Wrapf(err, "postgres: check migration %s", m.name)
			}
			if applied {
				return nil
			}

			log.Info("applying migration", zap.String("file", m.name))
			if _, err := tx.Exec(ctx, m.sql); err != nil {
				return eris.Wrapf(err, "postgres: apply migration %s", m.name)
			}
			if _, err := tx.Exec(ctx, "INSERT INTO schema_migrations (filename) VALUES ($1)", m.name); err != nil {
				return eris.Wrapf(err, "postgres: record migration %s", m.name)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// InsertSamples copies one chunk of samples inside its own transaction.
func (s *PostgresStore) InsertSamples(ctx context.Context, samples []model.Sample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	rows := make([][]any, len(samples))
	for i := range samples {
		rows[i] = sampleValues(&samples[i], s.d)
	}

	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = db.CopyFrom(ctx, tx, sampleTable, model.SampleColumns(), rows)
		return err
	})
	if err != nil {
		return 0, storageErr(err, "store: insert samples")
	}
	return n, nil
}

// BulkLoad streams every sample from it through a single COPY.
func (s *PostgresStore) BulkLoad(ctx context.Context, it SampleIterator) (int64, error) {
	var n int64
	err := db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		var err error
		n, err = db.CopyStream(ctx, tx, sampleTable, model.SampleColumns(), func() ([]any, error) {
			smp, err := it.Next(ctx)
			if err == io.EOF {
				return nil, nil
			}
			if err != nil {
				return nil, err
			}
			return sampleValues(smp, s.d), nil
		})
		return err
	})
	if err != nil {
		return 0, storageErr(err, "store: bulk load")
	}
	return n, nil
}

// WithTx runs fn with sample operations bound to one transaction.
func (s *PostgresStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return db.WithTx(ctx, s.pool, func(tx pgx.Tx) error {
		return fn(core{q: pgxQuerier{conn: tx}, d: s.d})
	})
}
