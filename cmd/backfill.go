package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var backfillBatchSize int

var backfillCmd = &cobra.Command{
	Use:   "backfill-overrides",
	Short: "Materialize permission overrides for users that have none",
	Long:  `Seeds every user without an active override from their role defaults. Safe to re-run.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		result, err := deps.Resolver.MaterializeAll(cmd.Context(), backfillBatchSize)
		if err != nil {
			return fmt.Errorf("backfill failed: %w", err)
		}

		deps.Logger.Info("backfill finished", "scanned", result.Scanned, "created", result.Created)
		return nil
	},
}

func init() {
	backfillCmd.Flags().IntVar(&backfillBatchSize, "batch-size", 200, "users fetched per batch")
}
