package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/cache"
	"github.com/sells-group/sample-labeler/internal/ingest"
	"github.com/sells-group/sample-labeler/internal/labeling"
	"github.com/sells-group/sample-labeler/internal/metrics"
	"github.com/sells-group/sample-labeler/internal/server"
	"github.com/sells-group/sample-labeler/internal/store"
)

var servePort int

// shutdownTimeout bounds how long in-flight requests get to finish.
const shutdownTimeout = 15 * time.Second

// buildServer wires the services behind the HTTP handlers. Background
// imports run under ctx.
func buildServer(ctx context.Context, st store.Store) (*server.Server, *ingest.Runner, error) {
	m, err := metrics.New()
	if err != nil {
		return nil, nil, eris.Wrap(err, "init metrics")
	}

	oc := cache.New(cfg.Cache.OptionsTTL(), cache.WithObserver(m.RecordCacheLookup))
	runner := ingest.NewRunner(
		ingest.NewPipeline(st),
		ingest.NewTracker(cfg.Ingest.Retention()),
		oc, m, cfg.Ingest.ChunkSize,
	)

	srv := server.New(ctx, server.Config{
		MaxUploadBytes: cfg.Server.MaxUploadBytes(),
		UploadDir:      cfg.Server.UploadDir,
		ExportDir:      cfg.Server.ExportDir,
		CORSOrigins:    cfg.Server.CORSOrigins,
		SweepInterval:  cfg.Ingest.SweepInterval(),
		AuthCacheTTL:   cfg.Cache.AuthTTL(),
	}, server.Deps{
		Store: st,
		Labeling: labeling.NewService(st, oc, labeling.Config{
			PageSize:     cfg.Labeling.PageSize,
			OptionsLimit: cfg.Labeling.OptionsLimit,
		}),
		Users:    admin.NewUsers(st, bcrypt.DefaultCost),
		Admin:    admin.New(st, oc),
		Exporter: admin.NewExporter(st),
		Runner:   runner,
		Cache:    oc,
		Metrics:  m,
	})
	return srv, runner, nil
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the labelling API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		st, err := openStore(ctx, "serve")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		srv, runner, err := buildServer(ctx, st)
		if err != nil {
			return err
		}
		// Imports observe ctx between chunks; wait for them before the
		// store closes.
		defer runner.Wait()

		go srv.RunSweeper(ctx)

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		httpSrv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := httpSrv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", port))
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
