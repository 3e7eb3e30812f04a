package cmd

import (
	"fmt"
	"os"

	"github.com/frahmantamala/equipment-approvals/internal"
	"github.com/frahmantamala/equipment-approvals/pkg/logger"
	"github.com/spf13/cobra"
)

var (
	configPath string
	clearData  bool
)

var rootCmd = &cobra.Command{
	Use:   "equipment-approvals",
	Short: "Equipment Approvals",
	Long:  `Equipment requests, approver workflow and per-user permission overrides.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

// loadConfig reads config.yml (optional) plus APP_ environment overrides and
// installs the process logger from the observability section.
func loadConfig(path string) (*internal.Config, error) {
	cfg, err := internal.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	format := cfg.Observability.Logging.Format
	if cfg.Env == "production" && format == "" {
		format = "json"
	}
	logger.Setup(format, cfg.Observability.Logging.Level)

	return cfg, nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")
	seedCmd.Flags().BoolVar(&clearData, "clear", false, "Clear existing data before seeding")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(backfillCmd)
	rootCmd.AddCommand(purgeCmd)
}
