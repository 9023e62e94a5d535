package store

import (
	"strings"

	"github.com/sells-group/sample-labeler/internal/model"
)

// where accumulates AND-ed predicates and their bind values.
type where struct {
	clauses []string
	args    []any
}

func (w *where) add(clause string, args ...any) {
	w.clauses = append(w.clauses, clause)
	w.args = append(w.args, args...)
}

func (w *where) in(col string, vals []string) {
	if len(vals) == 0 {
		return
	}
	args := make([]any, len(vals))
	for i, v := range vals {
		args[i] = v
	}
	w.add(col+" IN ("+placeholders(len(vals))+")", args...)
}

func (w *where) String() string {
	if len(w.clauses) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.clauses, " AND ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// scope restricts rows to the allow-lists. An explicit empty list matches
// nothing; an absent list adds no predicate.
func (w *where) scope(s model.Scope) {
	w.allow("category", s.Categories)
	w.allow("brand", s.Brands)
}

func (w *where) allow(col string, list model.AllowList) {
	switch {
	case list.Absent():
	case len(list) == 0:
		w.add("1 = 0")
	default:
		w.in(col, list)
	}
}

// statuses restricts rows to the given statuses. Unlabeled also matches
// rows whose status is NULL or empty.
func (w *where) statuses(list []model.Status) {
	if len(list) == 0 {
		return
	}
	args := make([]any, len(list))
	unlabeled := false
	for i, s := range list {
		args[i] = string(s)
		if s.IsUnlabeled() {
			unlabeled = true
		}
	}
	clause := "status IN (" + placeholders(len(list)) + ")"
	if unlabeled {
		clause = "(status IS NULL OR status = '' OR " + clause + ")"
	}
	w.add(clause, args...)
}

// filter applies every populated field of f.
func (w *where) filter(f SampleFilter, d dialect) {
	if kw := f.Keyword; kw != "" {
		arg := d.containsArg(kw)
		w.add("("+d.contains("product_description")+" OR "+
			d.contains("CAST(id AS TEXT)")+" OR "+
			d.contains("sku")+")", arg, arg, arg)
	}
	w.in("e_retailer", f.ERetailer)
	w.in("online_store", f.OnlineStore)
	w.in("brand", f.Brand)
	w.in("note", f.Note)
	w.in("is_competitor", f.IsCompetitor)
	w.in("total_comments", f.TotalComments)
	w.in("last_total_comments", f.LastTotalComments)
	for i, vals := range f.Attrs {
		w.in(attrColumns[i], vals)
	}
	w.statuses(f.Statuses)
	if f.StartDate != nil {
		w.add("latest_review_date >= ?", d.dateArg(*f.StartDate))
	}
	if f.EndDate != nil {
		w.add("latest_review_date <= ?", d.dateArg(*f.EndDate))
	}
}

var attrColumns = [5]string{
	"prod_attributes1", "prod_attributes2", "prod_attributes3", "prod_attributes4", "prod_attributes5",
}
