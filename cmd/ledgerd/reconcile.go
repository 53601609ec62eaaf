package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newReconcileCommand(cfg *config.Config) *cobra.Command {
	var creators []string
	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Recompute creator earnings accounts from transaction history",
		Long:  "Recomputes the named creators, or every creator with a transaction when none are named.",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			return cfg.Validate()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runReconcile(ctx, *cfg, creators)
		},
	}
	cmd.Flags().StringSliceVar(&creators, flagCreators, nil, "creator id to reconcile (repeatable)")
	return cmd
}

func runReconcile(ctx context.Context, cfg config.Config, rawCreatorIDs []string) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	creatorIDs, err := parseCreatorIDs(rawCreatorIDs)
	if err != nil {
		return err
	}

	handle, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer handle.close()
	if handle.database == databaseSQLite {
		if err := handle.migrate(ctx); err != nil {
			return err
		}
	}

	components, err := buildComponents(cfg, handle.store, logger, nil)
	if err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	defer func() { _ = components.Close() }()

	reconciled, err := components.earnings.ReconcileAll(ctx, creatorIDs)
	logger.Info("reconciliation finished", zap.Int("creators", reconciled), zap.Error(err))
	return err
}

func parseCreatorIDs(raw []string) ([]ledger.UserID, error) {
	creatorIDs := make([]ledger.UserID, 0, len(raw))
	for _, value := range raw {
		creatorID, err := ledger.NewCreatorID(value)
		if err != nil {
			return nil, err
		}
		creatorIDs = append(creatorIDs, creatorID)
	}
	return creatorIDs, nil
}
