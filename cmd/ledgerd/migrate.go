package main

import (
	"context"
	"fmt"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newMigrateCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the ledger schema",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), *cfg)
		},
	}
}

func runMigrate(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	handle, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer handle.close()
	if err := handle.migrate(ctx); err != nil {
		return err
	}
	logger.Info("schema ready", zap.String("database", handle.database), zap.String("store_driver", cfg.StoreDriver))
	return nil
}
