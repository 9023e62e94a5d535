package store

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sample-labeler/internal/model"
)

// core implements every portable query over a querier. The backend stores
// embed it and add the operations that differ per driver.
type core struct {
	q querier
	d dialect
}

func (c core) sampleColumns() string {
	cols := make([]string, 0, len(model.SampleFields)+1)
	cols = append(cols, "id")
	for i, col := range model.SampleColumns() {
		if i == model.DateFieldIndex {
			cols = append(cols, c.d.dateText(col))
			continue
		}
		cols = append(cols, col)
	}
	return strings.Join(cols, ", ")
}

// scanSample reads one row produced by sampleColumns.
func scanSample(sc scanner) (*model.Sample, error) {
	var s model.Sample
	var date, status *string

	texts := s.Texts()
	dest := make([]any, 0, len(texts)+1)
	dest = append(dest, &s.ID)
	for i, p := range texts {
		switch {
		case i == model.DateFieldIndex:
			dest = append(dest, &date)
		case p == nil:
			dest = append(dest, &status)
		default:
			dest = append(dest, p)
		}
	}
	if err := sc.Scan(dest...); err != nil {
		return nil, err
	}

	if date != nil {
		if t, err := time.Parse(model.DateLayout, *date); err == nil {
			s.LatestReviewDate = &t
		}
	}
	if status != nil {
		s.Status = model.Status(*status)
	}
	return &s, nil
}

// sampleValues renders s as bind values in model.SampleColumns order.
func sampleValues(s *model.Sample, d dialect) []any {
	out := make([]any, len(model.SampleFields))
	for i, p := range s.Texts() {
		if p != nil && *p != nil {
			out[i] = **p
		}
	}
	if s.LatestReviewDate != nil {
		out[model.DateFieldIndex] = d.dateArg(*s.LatestReviewDate)
	}
	status := s.Status
	if status == "" {
		status = model.StatusUnlabeled
	}
	out[len(out)-1] = string(status)
	return out
}

func (c core) GetSample(ctx context.Context, id int64) (*model.Sample, error) {
	row := c.q.queryRow(ctx, "SELECT "+c.sampleColumns()+" FROM sample_data WHERE id = ?", id)
	s, err := scanSample(row)
	if isNoRows(err) {
		return nil, eris.Wrapf(model.ErrNotFound, "store: sample %d", id)
	}
	if err != nil {
		return nil, storageErr(err, "store: get sample")
	}
	return s, nil
}

func (c core) UpdateLabels(ctx context.Context, id int64, u LabelUpdate) error {
	query := "UPDATE sample_data SET prod_attributes1 = ?, prod_attributes2 = ?, prod_attributes3 = ?, " +
		"prod_attributes4 = ?, prod_attributes5 = ?, status = ?"
	args := []any{u.Attrs[0], u.Attrs[1], u.Attrs[2], u.Attrs[3], u.Attrs[4], string(u.Status)}
	if u.Note != nil {
		query += ", note = ?"
		args = append(args, *u.Note)
	}
	query += " WHERE id = ?"
	args = append(args, id)

	n, err := c.q.exec(ctx, query, args...)
	if err != nil {
		return storageErr(err, "store: update labels")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "store: sample %d", id)
	}
	return nil
}

func (c core) SetStatus(ctx context.Context, id int64, status model.Status) error {
	n, err := c.q.exec(ctx, "UPDATE sample_data SET status = ? WHERE id = ?", string(status), id)
	if err != nil {
		return storageErr(err, "store: set status")
	}
	if n == 0 {
		return eris.Wrapf(model.ErrNotFound, "store: sample %d", id)
	}
	return nil
}

func (c core) CountSamples(ctx context.Context, f SampleFilter, scope model.Scope) (int, error) {
	var w where
	w.scope(scope)
	w.filter(f, c.d)

	var n int
	if err := c.q.queryRow(ctx, "SELECT COUNT(*) FROM sample_data"+w.String(), w.args...).Scan(&n); err != nil {
		return 0, storageErr(err, "store: count samples")
	}
	return n, nil
}

func (c core) ListSamples(ctx context.Context, f SampleFilter, scope model.Scope, limit, offset int) ([]model.Sample, error) {
	var w where
	w.scope(scope)
	w.filter(f, c.d)

	query := "SELECT " + c.sampleColumns() + " FROM sample_data" + w.String() + " ORDER BY id LIMIT ? OFFSET ?"
	args := append(w.args, limit, offset)

	rows, err := c.q.query(ctx, query, args...)
	if err != nil {
		return nil, storageErr(err, "store: list samples")
	}
	defer rows.Close()

	var out []model.Sample
	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return nil, storageErr(err, "store: scan sample")
		}
		out = append(out, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "store: list samples")
	}
	return out, nil
}

// isOptionColumn guards column names that are interpolated into SQL.
func isOptionColumn(col string) bool {
	return slices.Contains(model.SampleColumns(), col) && col != "latest_review_date"
}

func (c core) DistinctValues(ctx context.Context, column string, scope model.Scope, limit int) ([]string, error) {
	if !isOptionColumn(column) {
		return nil, eris.Wrapf(model.ErrValidation, "store: column %q is not selectable", column)
	}

	var w where
	w.add(column + " IS NOT NULL")
	w.add(column + " <> ''")
	w.scope(scope)

	query := "SELECT DISTINCT " + column + " FROM sample_data" + w.String() + " ORDER BY " + column + " LIMIT ?"
	rows, err := c.q.query(ctx, query, append(w.args, limit)...)
	if err != nil {
		return nil, storageErr(err, "store: distinct values")
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storageErr(err, "store: scan distinct value")
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "store: distinct values")
	}
	return out, nil
}

func (c core) NextUnresolvedID(ctx context.Context, after int64, scope model.Scope) (*int64, error) {
	var w where
	w.add("id > ?", after)
	args := make([]any, len(model.ResolvedStatuses))
	for i, s := range model.ResolvedStatuses {
		args[i] = string(s)
	}
	w.add("(status IS NULL OR status NOT IN ("+placeholders(len(args))+"))", args...)
	w.scope(scope)

	var id int64
	err := c.q.queryRow(ctx, "SELECT id FROM sample_data"+w.String()+" ORDER BY id LIMIT 1", w.args...).Scan(&id)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, storageErr(err, "store: next unresolved")
	}
	return &id, nil
}

func (c core) StatusCounts(ctx context.Context, scope model.Scope) ([]StatusCount, error) {
	var w where
	w.scope(scope)

	rows, err := c.q.query(ctx,
		"SELECT category, status, COUNT(*) FROM sample_data"+w.String()+" GROUP BY category, status ORDER BY category",
		w.args...)
	if err != nil {
		return nil, storageErr(err, "store: status counts")
	}
	defer rows.Close()

	var out []StatusCount
	for rows.Next() {
		var sc StatusCount
		var status *string
		if err := rows.Scan(&sc.Category, &status, &sc.Count); err != nil {
			return nil, storageErr(err, "store: scan status count")
		}
		if status != nil {
			sc.Status = model.Status(*status)
		}
		out = append(out, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, storageErr(err, "store: status counts")
	}
	return out, nil
}

func (c core) IterateSamples(ctx context.Context, statuses []model.Status, fn func(*model.Sample) error) error {
	var w where
	w.statuses(statuses)

	rows, err := c.q.query(ctx, "SELECT "+c.sampleColumns()+" FROM sample_data"+w.String()+" ORDER BY id", w.args...)
	if err != nil {
		return storageErr(err, "store: iterate samples")
	}
	defer rows.Close()

	for rows.Next() {
		s, err := scanSample(rows)
		if err != nil {
			return storageErr(err, "store: scan sample")
		}
		if err := fn(s); err != nil {
			return err
		}
	}
	return storageErr(rows.Err(), "store: iterate samples")
}

func (c core) DeleteAllSamples(ctx context.Context) (int64, error) {
	n, err := c.q.exec(ctx, "DELETE FROM sample_data")
	if err != nil {
		return 0, storageErr(err, "store: delete samples")
	}
	return n, nil
}

func insertSampleSQL() string {
	cols := model.SampleColumns()
	return "INSERT INTO sample_data (" + strings.Join(cols, ", ") + ") VALUES (" + placeholders(len(cols)) + ")"
}
