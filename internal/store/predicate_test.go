package store

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/sample-labeler/internal/model"
)

func TestRebind(t *testing.T) {
	assert.Equal(t, "SELECT 1", rebind("SELECT 1"))
	assert.Equal(t, "a = $1 AND b IN ($2, $3)", rebind("a = ? AND b IN (?, ?)"))
}

func TestWhere_Empty(t *testing.T) {
	var w where
	w.scope(model.Unrestricted)
	w.filter(SampleFilter{}, postgresDialect{})
	assert.Equal(t, "", w.String())
	assert.Empty(t, w.args)
}

func TestWhere_ScopeSentinels(t *testing.T) {
	var w where
	w.scope(model.Scope{Categories: model.AllowList{}, Brands: model.AllowList{"Acme"}})
	assert.Equal(t, " WHERE 1 = 0 AND brand IN (?)", w.String())
	assert.Equal(t, []any{"Acme"}, w.args)
}

func TestWhere_StatusWithoutUnlabeled(t *testing.T) {
	var w where
	w.statuses([]model.Status{model.StatusLabeled})
	assert.Equal(t, " WHERE status IN (?)", w.String())
}

func TestWhere_KeywordVerbatim(t *testing.T) {
	var w where
	w.filter(SampleFilter{}, sqliteDialect{})
	assert.Empty(t, w.clauses)

	w.filter(SampleFilter{Keyword: " a*b "}, sqliteDialect{})
	assert.Equal(t, " WHERE (product_description GLOB ? OR CAST(id AS TEXT) GLOB ? OR sku GLOB ?)", w.String())
	assert.Equal(t, []any{"* a[*]b *", "* a[*]b *", "* a[*]b *"}, w.args)
}

func TestDialect_Dates(t *testing.T) {
	d := date("2024-05-06")
	assert.Equal(t, "2024-05-06", sqliteDialect{}.dateArg(*d))
	assert.Equal(t, *d, postgresDialect{}.dateArg(*d))
	assert.Equal(t, "latest_review_date", sqliteDialect{}.dateText("latest_review_date"))
}

func TestDialect_LikeEscape(t *testing.T) {
	assert.Equal(t, `%a\_b\%c\\d%`, postgresDialect{}.containsArg(`a_b%c\d`))
}
