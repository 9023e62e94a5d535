package store

import (
	"context"
	"database/sql"
	"io"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/sells-group/sample-labeler/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	core
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// A single connection serialises writers and keeps the pragmas below in
	// effect for every statement.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{
		core: core{q: sqlQuerier{conn: db}, d: sqliteDialect{}},
		db:   db,
	}, nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return eris.Wrap(s.db.PingContext(ctx), "sqlite: ping")
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.migrate"), zap.String("driver", "sqlite"))

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		filename   TEXT PRIMARY KEY,
		applied_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`); err != nil {
		return eris.Wrap(err, "sqlite: ensure migration table")
	}

	migrations, err := loadMigrations("migrations/sqlite")
	if err != nil {
		return err
	}

	for _, m := range migrations {
		err := s.withSQLTx(ctx, func(tx *sql.Tx) error {
			var n int
			if err := tx.QueryRowContext(ctx,
				"SELECT COUNT(*) FROM schema_migrations WHERE filename = ?", m.name,
			).Scan(&n); err != nil {
				return eris.Wrapf(err, "sqlite: check migration %s", m.name)
			}
			if n > 0 {
				return nil
			}

			log.Info("applying migration", zap.String("file", m.name))
			if _, err := tx.ExecContext(ctx, m.sql); err != nil {
				return eris.Wrapf(err, "sqlite: apply migration %s", m.name)
			}
			if _, err := tx.ExecContext(ctx, "INSERT INTO schema_migrations (filename) VALUES (?)", m.name); err != nil {
				return eris.Wrapf(err, "sqlite: record migration %s", m.name)
			}
			return nil
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) withSQLTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(tx); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(), "sqlite: commit tx")
}

// insertAll writes samples from next with one prepared statement inside a
// single transaction.
func (s *SQLiteStore) insertAll(ctx context.Context, next func() (*model.Sample, error)) (int64, error) {
	var n int64
	err := s.withSQLTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, insertSampleSQL())
		if err != nil {
			return err
		}
		defer stmt.Close()

		for {
			smp, err := next()
			if err == io.EOF {
				return nil
			}
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, sampleValues(smp, s.d)...); err != nil {
				return err
			}
			n++
		}
	})
	if err != nil {
		return 0, err
	}
	return n, nil
}

// InsertSamples inserts one chunk of samples inside its own transaction.
func (s *SQLiteStore) InsertSamples(ctx context.Context, samples []model.Sample) (int64, error) {
	if len(samples) == 0 {
		return 0, nil
	}
	i := 0
	n, err := s.insertAll(ctx, func() (*model.Sample, error) {
		if i == len(samples) {
			return nil, io.EOF
		}
		i++
		return &samples[i-1], nil
	})
	if err != nil {
		return 0, storageErr(err, "store: insert samples")
	}
	return n, nil
}

// BulkLoad inserts every sample from it in a single transaction.
func (s *SQLiteStore) BulkLoad(ctx context.Context, it SampleIterator) (int64, error) {
	n, err := s.insertAll(ctx, func() (*model.Sample, error) { return it.Next(ctx) })
	if err != nil {
		return 0, storageErr(err, "store: bulk load")
	}
	return n, nil
}

// WithTx runs fn with sample operations bound to one transaction.
func (s *SQLiteStore) WithTx(ctx context.Context, fn func(Tx) error) error {
	return s.withSQLTx(ctx, func(tx *sql.Tx) error {
		return fn(core{q: sqlQuerier{conn: tx}, d: s.d})
	})
}
