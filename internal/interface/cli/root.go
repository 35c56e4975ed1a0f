package cli

import (
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/ductware/atomtx/internal/infrastructure/config"
	"github.com/ductware/atomtx/internal/infrastructure/di"
)

// Persistent flags shared by every command
var (
	configPath string
	logLevel   string
)

func NewRoot() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "atomtx",
		Short:        "Atomic transaction and rollback engine",
		Long:         "atomtx runs batches of operations atomically, captures workspace snapshots, and rolls back to recorded points when things go wrong.",
		SilenceUsage: true,
		RunE:         func(c *cobra.Command, _ []string) error { return c.Help() },
	}

	cmd.PersistentFlags().StringVar(&configPath, "config", "atomtx.yaml", "Path to the configuration file")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override the configured log level (debug|info|warn|error)")

	cmd.AddCommand(newMigrateCmd())
	cmd.AddCommand(newSnapshotCmd())
	cmd.AddCommand(newRollbackCmd())
	cmd.AddCommand(newTxnCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newMetricsCmd())
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig resolves the effective configuration for this invocation
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(afero.NewOsFs(), configPath)
	if err != nil {
		return config.Config{}, err
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	return cfg, nil
}

// initContainer builds the DI container for commands that need the full engine
func initContainer() (*di.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return di.NewContainer(cfg)
}
