package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/events"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newWorkerCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "reconcile-worker",
		Short: "Reconcile creators named by purchase and reconcile events from Kafka",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			return cfg.ValidateWorker()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runWorker(ctx, *cfg)
		},
	}
}

func runWorker(ctx context.Context, cfg config.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	shutdownTracing, err := observability.InitTracing(ctx, cfg.ServiceName, cfg.OTLPEndpoint)
	if err != nil {
		return fmt.Errorf("tracing init: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		_ = shutdownTracing(shutdownCtx)
	}()

	handle, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("database open: %w", err)
	}
	defer handle.close()

	components, err := buildComponents(cfg, handle.store, logger, nil)
	if err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	defer func() { _ = components.Close() }()

	reader, err := events.NewKafkaReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
	if err != nil {
		return err
	}
	consumer, err := events.NewReconcileConsumer(reader, components.earnings, logger)
	if err != nil {
		_ = reader.Close()
		return err
	}
	defer func() { _ = consumer.Close() }()

	logger.Info("reconcile worker starting",
		zap.Strings("brokers", cfg.KafkaBrokers),
		zap.String("topic", cfg.KafkaTopic),
		zap.String("group_id", cfg.KafkaGroupID),
	)
	return consumer.Run(ctx)
}
