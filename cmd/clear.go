package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/sample-labeler/internal/admin"
	"github.com/sells-group/sample-labeler/internal/model"
)

var clearYes bool

// cliActor stands in for an administrator on commands that run with direct
// database access.
var cliActor = &model.User{Username: "cli", Role: model.RoleDataAdmin, IsActive: true}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every sample",
	Long: `Delete every sample.

A running serve process keeps its option cache in memory and cannot see this
command. Its filter options may list deleted values for up to
cache.options_ttl_secs; use POST /api/admin/clear on the server, or restart
it, to drop them at once.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if !clearYes {
			return eris.New("refusing to delete all samples without --yes")
		}
		ctx := cmd.Context()

		st, err := openStore(ctx, "store")
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := admin.New(st, nil).ClearSamples(ctx, cliActor)
		if err != nil {
			return err
		}
		zap.L().Info("samples cleared; a running server refreshes its options after cache.options_ttl_secs",
			zap.Int64("deleted", n))
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearYes, "yes", false, "confirm deletion")
	rootCmd.AddCommand(clearCmd)
}
