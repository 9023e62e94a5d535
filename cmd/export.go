package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/admin"
)

var (
	exportType string
	exportOut  string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export samples to a CSV file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		scope, err := admin.ParseExportScope(exportType)
		if err != nil {
			return err
		}

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir := exportOut
		if dir == "" {
			dir = cfg.Server.ExportDir
		}
		path, n, err := admin.NewExporter(st).ExportFile(ctx, dir, scope)
		if err != nil {
			return err
		}

		zap.L().Info("export complete",
			zap.String("type", string(scope)),
			zap.String("path", path),
			zap.Int("rows", n),
		)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportType, "type", "all", "samples to export: all or labeled")
	exportCmd.Flags().StringVar(&exportOut, "out", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
