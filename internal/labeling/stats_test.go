package labeling

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/sample-labeler/internal/cache"
	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

func newCache() *cache.OptionCache {
	return cache.New(time.Minute)
}

func TestSummarize(t *testing.T) {
	stats := Summarize([]store.StatusCount{
		{Category: model.Ptr("Shoes"), Status: model.StatusLabeled, Count: 2},
		{Category: model.Ptr("Shoes"), Status: "", Count: 1},
		{Category: model.Ptr("Shoes"), Status: model.StatusUnlabeled, Count: 1},
		{Category: model.Ptr("Hats"), Status: model.StatusHistorical, Count: 1},
		{Category: model.Ptr("Hats"), Status: model.StatusPrelabeled, Count: 2},
		{Category: nil, Status: model.StatusIncomplete, Count: 1},
	})

	assert.Equal(t, 8, stats.Total)
	assert.Equal(t, 2, stats.ByStatus[model.StatusUnlabeled])
	assert.Equal(t, 2, stats.ByStatus[model.StatusLabeled])
	assert.Equal(t, 2, stats.ByStatus[model.StatusPrelabeled])
	assert.Equal(t, 50.0, stats.Progress)

	require.Len(t, stats.Categories, 3)
	assert.Equal(t, "", stats.Categories[0].Category)
	assert.Equal(t, 100.0, stats.Categories[0].Progress)
	assert.Equal(t, "Hats", stats.Categories[1].Category)
	assert.Equal(t, 33.33, stats.Categories[1].Progress)
	assert.Equal(t, "Shoes", stats.Categories[2].Category)
	assert.Equal(t, 4, stats.Categories[2].Total)
	assert.Equal(t, 50.0, stats.Categories[2].Progress)
}

func TestSummarize_Empty(t *testing.T) {
	stats := Summarize(nil)
	assert.Zero(t, stats.Total)
	assert.Zero(t, stats.Progress)
	assert.Empty(t, stats.Categories)
	assert.Len(t, stats.ByStatus, len(model.AllStatuses()))
}

func TestStats_Scoped(t *testing.T) {
	svc, st := newTestService(t)
	seed(t, st,
		sample("Shoes", "Acme", "Labeled", "a", "b"),
		sample("Shoes", "Acme", ""),
		sample("Hats", "Acme", "Labeled", "a", "b"),
	)

	stats, err := svc.Stats(context.Background(), labeller(model.AllowList{"Shoes"}, nil))
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[model.StatusLabeled])
	assert.Equal(t, 1, stats.ByStatus[model.StatusUnlabeled])
	require.Len(t, stats.Categories, 1)
	assert.Equal(t, "Shoes", stats.Categories[0].Category)
}
