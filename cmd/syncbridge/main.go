package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/nhle/syncbridge/internal/model"
	"github.com/nhle/syncbridge/internal/store"
)

var (
	configPath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "syncbridge",
	Short: "Bidirectional sync between Notion databases and Azure DevOps Boards",
	Long: `syncbridge reconciles pages in Notion databases with work items in an
Azure DevOps project. Each run executes up to two passes: Notion pages are
pushed into Azure DevOps (creating or transitioning work items), then newer
work item changes are written back to their pages.

Work items created by syncbridge carry a back-reference tag naming their
originating page; that tag is the only join key between the two systems.

Commands:
  connect   Store credentials and configure a tenant interactively
  run       Execute a sync run for one tenant
  runs      List persisted run records`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			slog.SetLogLoggerLevel(slog.LevelDebug)
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&configPath, "config", model.DefaultConfigPath(),
		"path to the configuration file",
	)
	rootCmd.PersistentFlags().BoolVar(
		&verbose, "verbose", false, "enable debug logging on stderr",
	)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// openApp loads the configuration and opens the run store.
func openApp() (*model.AppConfig, *store.SQLiteStore, error) {
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	st, err := store.NewSQLiteStore(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("opening run store: %w", err)
	}

	return cfg, st, nil
}
