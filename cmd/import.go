package main

import (
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/ingest"
)

var (
	importFile      string
	importChunkSize int
	importFast      bool
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Import samples from a CSV or XLSX file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if _, err := ingest.DetectFormat(importFile); err != nil {
			return err
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		chunk := importChunkSize
		if chunk <= 0 {
			chunk = cfg.Ingest.ChunkSize
		}

		log := zap.L().With(zap.String("file", importFile))
		lastLog := time.Time{}
		opts := ingest.Options{
			ChunkSize: chunk,
			Progress: func(processed, total int, msg string) {
				if time.Since(lastLog) < time.Second && processed < total {
					return
				}
				lastLog = time.Now()
				log.Info(msg, zap.Int("processed", processed), zap.Int("total", total))
			},
		}

		start := time.Now()
		pipeline := ingest.NewPipeline(st)
		var res ingest.Result
		if importFast {
			res = pipeline.BulkImport(ctx, importFile, opts)
		} else {
			res = pipeline.Import(ctx, importFile, opts)
		}
		if !res.Success {
			return eris.Wrapf(res.Err, "import %s (%d rows written)", importFile, res.Rows)
		}

		log.Info("import complete",
			zap.Int("rows", res.Rows),
			zap.Bool("fast", importFast),
			zap.Duration("elapsed", time.Since(start)),
		)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importFile, "file", "", "path to CSV or XLSX file (required)")
	importCmd.Flags().IntVar(&importChunkSize, "chunk-size", 0, "rows per insert batch (default from config)")
	importCmd.Flags().BoolVar(&importFast, "fast", false, "stream the whole file through one bulk load")
	_ = importCmd.MarkFlagRequired("file")
	rootCmd.AddCommand(importCmd)
}
