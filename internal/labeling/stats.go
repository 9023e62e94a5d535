package labeling

import (
	"context"
	"math"
	"sort"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// CategoryStats is the labelling progress of one category.
type CategoryStats struct {
	Category string               `json:"category"`
	Total    int                  `json:"total"`
	ByStatus map[model.Status]int `json:"by_status"`
	Progress float64              `json:"progress"`
}

// Stats summarises labelling progress within a scope.
type Stats struct {
	Total      int                  `json:"total"`
	ByStatus   map[model.Status]int `json:"by_status"`
	Progress   float64              `json:"progress"`
	Categories []CategoryStats      `json:"categories"`
}

func newStatusMap() map[model.Status]int {
	m := make(map[model.Status]int, len(model.AllStatuses()))
	for _, st := range model.AllStatuses() {
		m[st] = 0
	}
	return m
}

// normalizeStatus folds NULL and empty statuses into Unlabeled.
func normalizeStatus(st model.Status) model.Status {
	if st.IsUnlabeled() {
		return model.StatusUnlabeled
	}
	return st
}

// progress is the resolved share of total as a percentage with two
// decimals.
func progress(byStatus map[model.Status]int, total int) float64 {
	if total == 0 {
		return 0
	}
	resolved := 0
	for _, st := range model.ResolvedStatuses {
		resolved += byStatus[st]
	}
	return math.Round(float64(resolved)/float64(total)*10000) / 100
}

// Summarize folds per-category status counts into Stats.
func Summarize(counts []store.StatusCount) Stats {
	st := Stats{ByStatus: newStatusMap()}
	cats := map[string]*CategoryStats{}

	for _, c := range counts {
		status := normalizeStatus(c.Status)
		name := ""
		if c.Category != nil {
			name = *c.Category
		}
		cs, ok := cats[name]
		if !ok {
			cs = &CategoryStats{Category: name, ByStatus: newStatusMap()}
			cats[name] = cs
		}
		cs.ByStatus[status] += c.Count
		cs.Total += c.Count
		st.ByStatus[status] += c.Count
		st.Total += c.Count
	}

	st.Categories = make([]CategoryStats, 0, len(cats))
	for _, cs := range cats {
		cs.Progress = progress(cs.ByStatus, cs.Total)
		st.Categories = append(st.Categories, *cs)
	}
	sort.Slice(st.Categories, func(i, j int) bool {
		return st.Categories[i].Category < st.Categories[j].Category
	})
	st.Progress = progress(st.ByStatus, st.Total)
	return st
}

// Stats returns labelling progress within the user's scope.
func (s *Service) Stats(ctx context.Context, user *model.User) (Stats, error) {
	counts, err := s.store.StatusCounts(ctx, user.Scope())
	if err != nil {
		return Stats{}, err
	}
	return Summarize(counts), nil
}
