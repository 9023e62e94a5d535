package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/cache"
	"github.com/sells-group/sample-labeler/internal/ingest"
	"github.com/sells-group/sample-labeler/internal/labeling"
	"github.com/sells-group/sample-labeler/internal/metrics"
	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

const testPassword = "s3cret"

type testEnv struct {
	srv     *Server
	handler http.Handler
	store   store.Store
	runner  *ingest.Runner
	cfg     Config
}

func newTestEnv(t *testing.T, mutate ...func(*Config)) *testEnv {
	t.Helper()
	ctx := context.Background()

	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	require.NoError(t, st.Migrate(ctx))

	m, err := metrics.New()
	require.NoError(t, err)

	oc := cache.New(time.Minute, cache.WithObserver(m.RecordCacheLookup))
	runner := ingest.NewRunner(ingest.NewPipeline(st), ingest.NewTracker(time.Hour), oc, m, 2)
	t.Cleanup(runner.Wait)

	cfg := Config{
		MaxUploadBytes: 1 << 20,
		UploadDir:      filepath.Join(t.TempDir(), "uploads"),
		ExportDir:      filepath.Join(t.TempDir(), "exports"),
	}
	for _, fn := range mutate {
		fn(&cfg)
	}

	users := admin.NewUsers(st, bcrypt.MinCost)
	srv := New(ctx, cfg, Deps{
		Store:    st,
		Labeling: labeling.NewService(st, oc, labeling.Config{PageSize: 10}),
		Users:    users,
		Admin:    admin.New(st, oc),
		Exporter: admin.NewExporter(st),
		Runner:   runner,
		Cache:    oc,
		Metrics:  m,
	})

	_, err = users.Bootstrap(ctx, admin.NewUser{Username: "root", Password: testPassword, Role: model.RoleDataAdmin})
	require.NoError(t, err)
	_, err = users.Bootstrap(ctx, admin.NewUser{
		Username:   "lab",
		Password:   testPassword,
		Role:       model.RoleLabeller,
		Categories: []string{"Shoes"},
	})
	require.NoError(t, err)

	return &testEnv{srv: srv, handler: srv.Handler(), store: st, runner: runner, cfg: cfg}
}

func (e *testEnv) seed(t *testing.T, samples ...model.Sample) {
	t.Helper()
	_, err := e.store.InsertSamples(context.Background(), samples)
	require.NoError(t, err)
}

// do sends a request as user. An empty user sends no credentials.
func (e *testEnv) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rdr)
	if user != "" {
		req.SetBasicAuth(user, testPassword)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, user, filename string, content []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = fw.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.SetBasicAuth(user, testPassword)
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func sample(category, brand string) model.Sample {
	return model.Sample{
		Category:  model.Ptr(category),
		Brand:     model.Ptr(brand),
		ERetailer: model.Ptr("shop"),
		SKU:       model.Ptr("sku-" + brand),
		Status:    model.StatusUnlabeled,
	}
}
