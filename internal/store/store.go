package store

import (
	"context"
	"time"

	"github.com/sells-group/sample-labeler/internal/model"
)

const sampleTable = "sample_data"

// SampleFilter narrows a sample listing. Empty lists place no restriction.
type SampleFilter struct {
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
	StartDate         *time.Time // inclusive
	EndDate           *time.Time // inclusive
}

// LabelUpdate is a write of the five label slots and the derived status.
// A nil Note leaves the stored note untouched.
type LabelUpdate struct {
	Attrs  model.Attributes
	Note   *string
	Status model.Status
}

// StatusCount is the number of samples sharing a category and status.
type StatusCount struct {
	Category *string
	Status   model.Status
	Count    int
}

// SampleIterator yields samples for a bulk load. Next returns io.EOF once
// exhausted.
type SampleIterator interface {
	Next(ctx context.Context) (*model.Sample, error)
}

// Tx is the set of sample operations available inside a transaction.
type Tx interface {
	GetSample(ctx context.Context, id int64) (*model.Sample, error)
	UpdateLabels(ctx context.Context, id int64, u LabelUpdate) error
	SetStatus(ctx context.Context, id int64, status model.Status) error
}

// Store defines the persistence interface for samples and users.
type Store interface {
	Tx

	// Samples
	CountSamples(ctx context.Context, f SampleFilter, scope model.Scope) (int, error)
	ListSamples(ctx context.Context, f SampleFilter, scope model.Scope, limit, offset int) ([]model.Sample, error)
	DistinctValues(ctx context.Context, column string, scope model.Scope, limit int) ([]string, error)
	NextUnresolvedID(ctx context.Context, after int64, scope model.Scope) (*int64, error)
	StatusCounts(ctx context.Context, scope model.Scope) ([]StatusCount, error)
	IterateSamples(ctx context.Context, statuses []model.Status, fn func(*model.Sample) error) error
	InsertSamples(ctx context.Context, samples []model.Sample) (int64, error)
	BulkLoad(ctx context.Context, it SampleIterator) (int64, error)
	DeleteAllSamples(ctx context.Context) (int64, error)
	WithTx(ctx context.Context, fn func(Tx) error) error

	// Users
	CreateUser(ctx context.Context, u *model.User) (int64, error)
	UpdateUser(ctx context.Context, u *model.User) error
	SetUserActive(ctx context.Context, id int64, active bool) error
	GetUser(ctx context.Context, id int64) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)

	// Lifecycle
	Ping(ctx context.Context) error
	Migrate(ctx context.Context) error
	Close() error
}

var (
	_ Store = (*PostgresStore)(nil)
	_ Store = (*SQLiteStore)(nil)
	_ Tx    = core{}
)
