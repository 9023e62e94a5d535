package admin

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/labeling"
	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// listLimit caps the distinct lists shown on user scope forms.
const listLimit = 10000

// Invalidator drops cached option lists.
type Invalidator interface {
	InvalidateAll()
}

// Admin runs data maintenance operations.
type Admin struct {
	store store.Store
	cache Invalidator
}

// New creates an Admin.
func New(st store.Store, cache Invalidator) *Admin {
	return &Admin{store: st, cache: cache}
}

// ClearSamples deletes every sample and returns how many were removed.
func (a *Admin) ClearSamples(ctx context.Context, actor *model.User) (int64, error) {
	if err := requireAdmin(actor); err != nil {
		return 0, err
	}
	n, err := a.store.DeleteAllSamples(ctx)
	if err != nil {
		return 0, err
	}
	if a.cache != nil {
		a.cache.InvalidateAll()
	}
	zap.L().Warn("samples cleared",
		zap.String("component", "admin"),
		zap.String("actor", actor.Username),
		zap.Int64("rows", n),
	)
	return n, nil
}

// Dashboard returns totals per status across every sample.
func (a *Admin) Dashboard(ctx context.Context, actor *model.User) (labeling.Stats, error) {
	if err := requireAdmin(actor); err != nil {
		return labeling.Stats{}, err
	}
	counts, err := a.store.StatusCounts(ctx, model.Unrestricted)
	if err != nil {
		return labeling.Stats{}, err
	}
	return labeling.Summarize(counts), nil
}

func (a *Admin) distinct(ctx context.Context, column string, scope model.Scope) ([]string, error) {
	vals, err := a.store.DistinctValues(ctx, column, scope, listLimit)
	if err != nil {
		return nil, err
	}
	if vals == nil {
		vals = []string{}
	}
	sort.Strings(vals)
	return vals, nil
}

// BrandsForCategory returns the sorted brands seen in category. An empty
// category yields an empty list.
func (a *Admin) BrandsForCategory(ctx context.Context, actor *model.User, category string) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	category = strings.TrimSpace(category)
	if category == "" {
		return []string{}, nil
	}
	return a.distinct(ctx, "brand", model.Scope{Categories: model.AllowList{category}})
}

// Categories returns every category, for user scope forms.
func (a *Admin) Categories(ctx context.Context, actor *model.User) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return a.distinct(ctx, "category", model.Unrestricted)
}

// Brands returns every brand, for user scope forms.
func (a *Admin) Brands(ctx context.Context, actor *model.User) ([]string, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	return a.distinct(ctx, "brand", model.Unrestricted)
}
