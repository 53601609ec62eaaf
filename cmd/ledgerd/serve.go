package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os/signal"
	"syscall"

	ledgerv1 "github.com/MarkoPoloResearchLab/creatorledger/api/ledger/v1"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/grpcserver"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/httpapi"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/observability"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
)

func newServeCommand(cfg *config.Config) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the ledger over gRPC and HTTP",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			if err := loadConfig(cmd, cfg); err != nil {
				return err
			}
			return cfg.ValidateServe()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, *cfg)
		},
	}
}

func runServe(ctx context.Context, cfg config.Config) error {
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
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown error", zap.Error(err))
		}
	}()

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

	metrics := observability.NewMetrics()
	components, err := buildComponents(cfg, handle.store, logger, metrics)
	if err != nil {
		return fmt.Errorf("ledger init: %w", err)
	}
	defer func() {
		if err := components.Close(); err != nil {
			logger.Warn("component shutdown error", zap.Error(err))
		}
	}()

	service, err := grpcserver.NewLedgerServiceServer(grpcserver.Dependencies{
		Processor:   components.processor,
		Payments:    components.payments,
		Earnings:    components.earnings,
		Withdrawals: components.withdrawals,
	})
	if err != nil {
		return err
	}
	lis, err := net.Listen("tcp", cfg.GRPCListenAddr)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	grpcServer := grpc.NewServer()
	ledgerv1.RegisterLedgerServiceServer(grpcServer, service)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		logger.Info("gRPC server starting", zap.String("listen_addr", cfg.GRPCListenAddr))
		if serveErr := grpcServer.Serve(lis); serveErr != nil && !errors.Is(serveErr, grpc.ErrServerStopped) {
			return serveErr
		}
		return nil
	})
	group.Go(func() error {
		<-groupCtx.Done()
		logger.Info("shutdown requested")
		grpcServer.GracefulStop()
		return nil
	})
	group.Go(func() error {
		return httpapi.Run(groupCtx, cfg.HTTP, httpapi.Dependencies{
			Processor:   components.processor,
			Payments:    components.payments,
			Earnings:    components.earnings,
			Withdrawals: components.withdrawals,
			Gateway:     components.gateway,
			ReturnURL:   cfg.Gateway.ReturnURL,
			Metrics:     metrics,
			Logger:      logger,
		})
	})
	return group.Wait()
}
