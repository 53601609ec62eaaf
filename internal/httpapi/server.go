// Package httpapi exposes the creator ledger to browsers over gin, with buyer and creator
// identity taken from tauth session claims.
package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/observability"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

const (
	claimsContextKey       = "auth_claims"
	defaultShutdownTimeout = 5 * time.Second
	unmatchedRoute         = "unmatched"
)

// Dependencies groups the ledger components served over HTTP. Gateway, Metrics, and Logger are
// optional; ReturnURL is required when Gateway is set.
type Dependencies struct {
	Processor   *ledger.Processor
	Payments    *ledger.Payments
	Earnings    *ledger.EarningsLedger
	Withdrawals *ledger.WithdrawalAccounting
	Gateway     *ledger.ExternalGateway
	ReturnURL   string
	Metrics     *observability.Metrics
	Logger      *zap.Logger
}

// Run serves the HTTP API until ctx is cancelled, then shuts down gracefully.
func Run(ctx context.Context, cfg config.HTTPConfig, dependencies Dependencies) error {
	sessionValidator, err := sessionvalidator.New(sessionvalidator.Config{
		SigningKey: []byte(cfg.SessionSigningKey),
		Issuer:     cfg.SessionIssuer,
		CookieName: cfg.SessionCookieName,
	})
	if err != nil {
		return fmt.Errorf("session validator: %w", err)
	}
	router, err := NewRouter(cfg, dependencies, sessionValidator)
	if err != nil {
		return err
	}
	logger := dependencies.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	server := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http api listening", zap.String("addr", cfg.ListenAddr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
		defer cancel()
		if shutdownErr := server.Shutdown(shutdownCtx); shutdownErr != nil {
			logger.Warn("http server shutdown error", zap.Error(shutdownErr))
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

// NewRouter builds the gin engine. Everything under /api requires a valid session; the gateway
// callback is authenticated by its checksum instead.
func NewRouter(cfg config.HTTPConfig, dependencies Dependencies, validator *sessionvalidator.Validator) (*gin.Engine, error) {
	if dependencies.Processor == nil || dependencies.Payments == nil || dependencies.Earnings == nil || dependencies.Withdrawals == nil {
		return nil, fmt.Errorf("%w: http api dependencies are incomplete", ledger.ErrInvalidServiceConfig)
	}
	if validator == nil {
		return nil, fmt.Errorf("%w: session validator is nil", ledger.ErrInvalidServiceConfig)
	}
	if len(cfg.AllowedOrigins) == 0 {
		return nil, fmt.Errorf("%w: at least one allowed origin is required", ledger.ErrInvalidServiceConfig)
	}
	if dependencies.Gateway != nil && dependencies.ReturnURL == "" {
		return nil, fmt.Errorf("%w: gateway return url is required", ledger.ErrInvalidServiceConfig)
	}
	handler := &httpHandler{
		logger:      dependencies.Logger,
		processor:   dependencies.Processor,
		payments:    dependencies.Payments,
		earnings:    dependencies.Earnings,
		withdrawals: dependencies.Withdrawals,
		gateway:     dependencies.Gateway,
		returnURL:   dependencies.ReturnURL,
	}
	if handler.logger == nil {
		handler.logger = zap.NewNop()
	}

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	if dependencies.Metrics != nil {
		router.Use(requestMetrics(dependencies.Metrics))
	}
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Origin", "Accept"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/healthz", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if dependencies.Metrics != nil {
		router.GET("/metrics", gin.WrapH(dependencies.Metrics.Handler()))
	}
	router.POST("/gateway/callback", handler.handleGatewayCallback)

	api := router.Group("/api")
	api.Use(validator.GinMiddleware(claimsContextKey))

	api.POST("/purchases", handler.handlePurchase)
	api.GET("/purchases/:content_id", handler.handleHasPurchased)
	api.GET("/payments/:session_id", handler.handlePaymentStatus)
	api.GET("/earnings", handler.handleEarnings)
	api.POST("/earnings/reconcile", handler.handleReconcile)
	api.POST("/withdrawals", handler.handleWithdrawal)
	api.GET("/withdrawals/pending", handler.handlePendingWithdrawals)

	return router, nil
}

func requestMetrics(metrics *observability.Metrics) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		started := time.Now()
		ctx.Next()
		route := ctx.FullPath()
		if route == "" {
			route = unmatchedRoute
		}
		method := ctx.Request.Method
		metrics.Requests.WithLabelValues(method, route, strconv.Itoa(ctx.Writer.Status())).Inc()
		metrics.RequestDuration.WithLabelValues(method, route).Observe(time.Since(started).Seconds())
	}
}
