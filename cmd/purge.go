package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var purgeCmd = &cobra.Command{
	Use:   "purge-login-attempts",
	Short: "Delete login attempt records older than the retention window",
	RunE: func(cmd *cobra.Command, _ []string) error {
		deps, err := initializeDependencies()
		if err != nil {
			return err
		}
		defer deps.Close()

		n, err := deps.Auth.PurgeStaleAttempts(cmd.Context())
		if err != nil {
			return fmt.Errorf("purge failed: %w", err)
		}

		deps.Logger.Info("purged login attempts", "deleted", n, "retention", deps.Config.LoginThrottle.Retention)
		return nil
	},
}
