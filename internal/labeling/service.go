// Package labeling implements the permission-scoped listing, option lookup
// and label editing operations used by labellers.
package labeling

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/sample-labeler/internal/cache"
	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// Defaults used when Config leaves a value unset.
const (
	DefaultPageSize     = 50
	DefaultOptionsLimit = 1000

	// MaxPageSize caps the rows a single listing page may request.
	MaxPageSize = 1000
)

// Config tunes listing and option lookups.
type Config struct {
	PageSize     int
	OptionsLimit int
}

// Service runs labelling operations against a store, memoising option
// lookups in an OptionCache.
type Service struct {
	store        store.Store
	cache        *cache.OptionCache
	pageSize     int
	optionsLimit int
}

// NewService creates a Service.
func NewService(st store.Store, c *cache.OptionCache, cfg Config) *Service {
	s := &Service{store: st, cache: c, pageSize: cfg.PageSize, optionsLimit: cfg.OptionsLimit}
	if s.pageSize <= 0 {
		s.pageSize = DefaultPageSize
	}
	if s.optionsLimit <= 0 {
		s.optionsLimit = DefaultOptionsLimit
	}
	return s
}

// Filter is a listing request as supplied by the caller. Dates are
// YYYY-MM-DD and inclusive.
type Filter struct {
	Keyword           string
	ERetailer         []string
	OnlineStore       []string
	Brand             []string
	Note              []string
	IsCompetitor      []string
	TotalComments     []string
	LastTotalComments []string
	Attrs             [5][]string
	Statuses          []model.Status
	StartDate         string
	EndDate           string
}

// compile converts f into a store filter. Malformed date bounds are dropped
// and reported as warnings.
func (f Filter) compile() (store.SampleFilter, []string) {
	sf := store.SampleFilter{
		Keyword:           f.Keyword,
		ERetailer:         f.ERetailer,
		OnlineStore:       f.OnlineStore,
		Brand:             f.Brand,
		Note:              f.Note,
		IsCompetitor:      f.IsCompetitor,
		TotalComments:     f.TotalComments,
		LastTotalComments: f.LastTotalComments,
		Attrs:             f.Attrs,
		Statuses:          f.Statuses,
	}

	var warnings []string
	parse := func(name, v string) *time.Time {
		v = strings.TrimSpace(v)
		if v == "" {
			return nil
		}
		t, err := time.Parse(model.DateLayout, v)
		if err != nil {
			warnings = append(warnings, eris.Wrapf(model.ErrValidation, "%s %q is not a YYYY-MM-DD date", name, v).Error())
			return nil
		}
		return &t
	}
	sf.StartDate = parse("start_date", f.StartDate)
	sf.EndDate = parse("end_date", f.EndDate)
	return sf, warnings
}

// Page is one page of a sample listing.
type Page struct {
	Rows     []model.Sample `json:"rows"`
	Page     int            `json:"page"`
	PageSize int            `json:"page_size"`
	Total    int            `json:"total"`
	Pages    int            `json:"pages"`
	HasPrev  bool           `json:"has_prev"`
	HasNext  bool           `json:"has_next"`
	Warnings []string       `json:"warnings,omitempty"`
}

// ListSamples returns the page of samples visible to user that match f,
// ordered by id. Pages below 1 are treated as 1; a non-positive pageSize
// uses the configured default and larger sizes are capped at MaxPageSize.
// Pages past the last one return no rows.
func (s *Service) ListSamples(ctx context.Context, user *model.User, f Filter, page, pageSize int) (Page, error) {
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = s.pageSize
	}
	pageSize = min(pageSize, MaxPageSize)

	sf, warnings := f.compile()
	scope := user.Scope()

	total, err := s.store.CountSamples(ctx, sf, scope)
	if err != nil {
		return Page{}, err
	}

	// Offsets are computed only for pages in range.
	pages := (total + pageSize - 1) / pageSize
	rows := []model.Sample{}
	if page <= pages {
		rows, err = s.store.ListSamples(ctx, sf, scope, pageSize, (page-1)*pageSize)
		if err != nil {
			return Page{}, err
		}
	}

	return Page{
		Rows:     rows,
		Page:     page,
		PageSize: pageSize,
		Total:    total,
		Pages:    pages,
		HasPrev:  page > 1,
		HasNext:  page < pages,
		Warnings: warnings,
	}, nil
}

// GetSample returns one sample if user may see it.
func (s *Service) GetSample(ctx context.Context, id int64, user *model.User) (*model.Sample, error) {
	smp, err := s.store.GetSample(ctx, id)
	if err != nil {
		return nil, err
	}
	if !user.Permits(smp.Category, smp.Brand) {
		return nil, eris.Wrapf(model.ErrPermissionDenied, "labeling: sample %d", id)
	}
	return smp, nil
}

// OptionFields are the columns DistinctOptions serves, in display order.
var OptionFields = []string{
	"e_retailer", "online_store", "brand", "note", "is_competitor",
	"total_comments", "last_total_comments",
	"prod_attributes1", "prod_attributes2", "prod_attributes3", "prod_attributes4", "prod_attributes5",
}

var fieldAliases = map[string]string{
	"eretailer": "e_retailer",
	"attr1":     "prod_attributes1",
	"attr2":     "prod_attributes2",
	"attr3":     "prod_attributes3",
	"attr4":     "prod_attributes4",
	"attr5":     "prod_attributes5",
}

// ResolveField maps a field name or alias onto its option column.
func ResolveField(field string) (string, error) {
	f := strings.ToLower(strings.TrimSpace(field))
	if col, ok := fieldAliases[f]; ok {
		return col, nil
	}
	for _, col := range OptionFields {
		if col == f {
			return col, nil
		}
	}
	return "", eris.Wrapf(model.ErrValidation, "labeling: unknown option field %q", field)
}

// DistinctOptions returns the sorted non-empty distinct values of field
// within the user's scope. Results are cached per field and scope.
func (s *Service) DistinctOptions(ctx context.Context, field string, user *model.User) ([]string, error) {
	col, err := ResolveField(field)
	if err != nil {
		return nil, err
	}
	scope := user.Scope()
	key := cache.Key{Name: "distinct", Args: []string{col}, Scope: &scope}

	return s.cache.GetOrLoad(ctx, key, func(ctx context.Context) ([]string, error) {
		vals, err := s.store.DistinctValues(ctx, col, scope, s.optionsLimit)
		if err != nil {
			return nil, err
		}
		if vals == nil {
			vals = []string{}
		}
		sort.Strings(vals)
		return vals, nil
	})
}

// OptionSet maps option columns to their values.
type OptionSet map[string][]string

// FilterOptions returns every option list visible to user.
func (s *Service) FilterOptions(ctx context.Context, user *model.User) (OptionSet, error) {
	out := make(OptionSet, len(OptionFields))
	for _, col := range OptionFields {
		vals, err := s.DistinctOptions(ctx, col, user)
		if err != nil {
			return nil, eris.Wrapf(err, "labeling: options for %s", col)
		}
		out[col] = vals
	}
	return out, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, model.ErrNotFound)
}
