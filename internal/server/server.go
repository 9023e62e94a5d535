// Package server exposes the labeler over a JSON HTTP API.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/cache"
	"github.com/sells-group/sample-labeler/internal/ingest"
	"github.com/sells-group/sample-labeler/internal/labeling"
	"github.com/sells-group/sample-labeler/internal/metrics"
	"github.com/sells-group/sample-labeler/internal/model"
	"github.com/sells-group/sample-labeler/internal/store"
)

// Config configures the HTTP boundary.
type Config struct {
	MaxUploadBytes int64
	UploadDir      string
	ExportDir      string
	CORSOrigins    []string
	SweepInterval  time.Duration
	// AuthCacheTTL is how long a verified login is reused. Zero checks the
	// password on every request.
	AuthCacheTTL time.Duration
}

// Deps are the services the handlers call.
type Deps struct {
	Store    store.Store
	Labeling *labeling.Service
	Users    *admin.Users
	Admin    *admin.Admin
	Exporter *admin.Exporter
	Runner   *ingest.Runner
	Cache    *cache.OptionCache
	Metrics  *metrics.Metrics
}

// Server holds the HTTP handlers.
type Server struct {
	cfg      Config
	store    store.Store
	labeling *labeling.Service
	users    *admin.Users
	admin    *admin.Admin
	exporter *admin.Exporter
	runner   *ingest.Runner
	cache    *cache.OptionCache
	metrics  *metrics.Metrics
	logins   *loginCache

	// bg outlives requests; uploads run under it.
	bg context.Context
}

// New creates a Server. Background imports run under ctx.
func New(ctx context.Context, cfg Config, deps Deps) *Server {
	if cfg.UploadDir == "" {
		cfg.UploadDir = "uploads"
	}
	if cfg.ExportDir == "" {
		cfg.ExportDir = "exports"
	}
	return &Server{
		cfg:      cfg,
		store:    deps.Store,
		labeling: deps.Labeling,
		users:    deps.Users,
		admin:    deps.Admin,
		exporter: deps.Exporter,
		runner:   deps.Runner,
		cache:    deps.Cache,
		metrics:  deps.Metrics,
		logins:   newLoginCache(cfg.AuthCacheTTL),
		bg:       ctx,
	}
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if len(s.cfg.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   s.cfg.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", s.metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(s.basicAuth)

		r.Get("/samples", s.handleListSamples)
		r.Post("/samples/batch-save", s.handleBatchSave)
		r.Post("/samples/batch-label", s.handleBatchLabel)
		r.Get("/samples/{id}", s.handleGetSample)
		r.Put("/samples/{id}", s.handleEditSample)
		r.Get("/options/{field}", s.handleOptions)
		r.Get("/stats", s.handleStats)

		r.Route("/admin", func(r chi.Router) {
			r.Use(requireRole(model.RoleDataAdmin))

			r.Post("/upload", s.handleUpload)
			r.Get("/upload/{task}", s.handleUploadProgress)
			r.Get("/export", s.handleExport)
			r.Post("/clear", s.handleClear)
			r.Get("/dashboard", s.handleDashboard)
			r.Get("/users", s.handleListUsers)
			r.Post("/users", s.handleCreateUser)
			r.Put("/users/{id}", s.handleUpdateUser)
			r.Post("/users/{id}/toggle", s.handleToggleUser)
			r.Get("/brands", s.handleBrandsForCategory)
			r.Get("/scope-options", s.handleScopeOptions)
			r.Get("/cache", s.handleCacheStats)
		})
	})
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.Ping(r.Context()); err != nil {
		zap.L().Warn("server: health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// RunSweeper reclaims expired import tasks every interval until ctx ends.
func (s *Server) RunSweeper(ctx context.Context) {
	interval := s.cfg.SweepInterval
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.runner.Tracker().Sweep(); n > 0 {
				zap.L().Debug("server: swept import tasks", zap.Int("removed", n))
			}
		}
	}
}
