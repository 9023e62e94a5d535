package store

import (
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sells-group/sample-labeler/internal/model"
)

// dialect covers the SQL differences between the supported backends.
type dialect interface {
	// dateText renders a date column as YYYY-MM-DD text.
	dateText(col string) string
	// dateArg converts a date into a bind value for the date column.
	dateArg(t time.Time) any
	// contains returns a case-sensitive substring predicate with one placeholder.
	contains(expr string) string
	// containsArg converts a keyword into the bind value for contains.
	containsArg(kw string) string
	isUniqueViolation(err error) bool
}

type postgresDialect struct{}

func (postgresDialect) dateText(col string) string {
	return "to_char(" + col + ", 'YYYY-MM-DD')"
}

func (postgresDialect) dateArg(t time.Time) any {
	return t
}

func (postgresDialect) contains(expr string) string {
	return expr + ` LIKE ? ESCAPE '\'`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (postgresDialect) containsArg(kw string) string {
	return "%" + likeEscaper.Replace(kw) + "%"
}

func (postgresDialect) isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// sqliteDialect stores dates as YYYY-MM-DD text and searches with GLOB,
// which is case-sensitive like PostgreSQL's LIKE.
type sqliteDialect struct{}

func (sqliteDialect) dateText(col string) string {
	return col
}

func (sqliteDialect) dateArg(t time.Time) any {
	return t.Format(model.DateLayout)
}

func (sqliteDialect) contains(expr string) string {
	return expr + " GLOB ?"
}

var globEscaper = strings.NewReplacer(`[`, `[[]`, `*`, `[*]`, `?`, `[?]`)

func (sqliteDialect) containsArg(kw string) string {
	return "*" + globEscaper.Replace(kw) + "*"
}

func (sqliteDialect) isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
