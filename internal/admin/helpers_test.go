package admin

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := store.NewSQLite(filepath.Join(t.TempDir(), "admin.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	require.NoError(t, s.Migrate(context.Background()))
	return s
}

func newTestUsers(t *testing.T) (*Users, store.Store) {
	t.Helper()
	st := newTestStore(t)
	return NewUsers(st, bcrypt.MinCost), st
}

func adminActor() *model.User {
	return &model.User{ID: 1000, Username: "root", Role: model.RoleDataAdmin, IsActive: true}
}

func sample(category, brand, status string) model.Sample {
	return model.Sample{
		Category: model.Ptr(category),
		Brand:    model.Ptr(brand),
		SKU:      model.Ptr("sku-" + brand),
		Status:   model.Status(status),
	}
}

func seed(t *testing.T, st store.Store, samples ...model.Sample) {
	t.Helper()
	_, err := st.InsertSamples(context.Background(), samples)
	require.NoError(t, err)
}

type countingInvalidator struct{ n int }

func (c *countingInvalidator) InvalidateAll() { c.n++ }
