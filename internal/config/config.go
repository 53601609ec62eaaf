// Package config holds runtime settings for the ledger daemon.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StoreDriverGorm = "gorm"
	StoreDriverPgx  = "pgx"

	defaultDatabaseURL     = "sqlite:///tmp/creatorledger.db"
	defaultGRPCListenAddr  = ":7000"
	defaultHTTPListenAddr  = ":8080"
	defaultAllowedOrigin   = "http://localhost:8000"
	defaultSessionIssuer   = "tauth"
	defaultSessionCookie   = "app_session"
	defaultKafkaTopic      = "creatorledger.events"
	defaultKafkaGroupID    = "creatorledger-reconciler"
	defaultServiceName     = "creatorledger"
	defaultOrderIDPrefix   = "ORD"
	defaultShutdownTimeout = 10 * time.Second
	defaultGatewayWebsite  = "WEBSTAGING"
	defaultPlatformFee     = "7"
	maxSnowflakeNodeID     = 1023
)

var (
	ErrMissingDatabaseURL   = errors.New("database url is required")
	ErrUnknownStoreDriver   = errors.New("unknown store driver")
	ErrInvalidFeePercent    = errors.New("platform fee percent must be a number between 0 and 100")
	ErrMissingSigningKey    = errors.New("session signing key is required")
	ErrIncompleteGateway    = errors.New("gateway configuration is incomplete")
	ErrInvalidOrderIDNode   = errors.New("order id node must be between 0 and 1023")
	ErrMissingKafkaBrokers  = errors.New("kafka brokers are required")
	ErrMissingListenAddress = errors.New("listen address is required")
)

// Config aggregates runtime settings for every ledgerd command.
type Config struct {
	DatabaseURL        string
	StoreDriver        string
	PlatformFeePercent string
	GRPCListenAddr     string
	HTTP               HTTPConfig
	Gateway            GatewayConfig
	RedisAddr          string
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaGroupID       string
	OTLPEndpoint       string
	ServiceName        string
	ShutdownTimeout    time.Duration
}

// HTTPConfig configures the browser-facing API.
type HTTPConfig struct {
	ListenAddr        string
	AllowedOrigins    []string
	SessionSigningKey string
	SessionIssuer     string
	SessionCookieName string
}

// GatewayConfig configures the external redirect-and-callback payment gateway. An empty Name
// disables it.
type GatewayConfig struct {
	Name          string
	MerchantID    string
	Secret        string
	RedirectURL   string
	CallbackURL   string
	ReturnURL     string
	Website       string
	OrderIDNode   int64
	OrderIDPrefix string
}

// Validate applies defaults and checks the settings shared by all commands.
func (cfg *Config) Validate() error {
	cfg.DatabaseURL = defaultIfEmpty(cfg.DatabaseURL, defaultDatabaseURL)
	cfg.StoreDriver = strings.ToLower(defaultIfEmpty(cfg.StoreDriver, StoreDriverGorm))
	cfg.PlatformFeePercent = defaultIfEmpty(cfg.PlatformFeePercent, defaultPlatformFee)
	cfg.GRPCListenAddr = defaultIfEmpty(cfg.GRPCListenAddr, defaultGRPCListenAddr)
	cfg.KafkaTopic = defaultIfEmpty(cfg.KafkaTopic, defaultKafkaTopic)
	cfg.KafkaGroupID = defaultIfEmpty(cfg.KafkaGroupID, defaultKafkaGroupID)
	cfg.ServiceName = defaultIfEmpty(cfg.ServiceName, defaultServiceName)
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = defaultShutdownTimeout
	}
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		return ErrMissingDatabaseURL
	}
	switch cfg.StoreDriver {
	case StoreDriverGorm, StoreDriverPgx:
	default:
		return fmt.Errorf("%w: %s", ErrUnknownStoreDriver, cfg.StoreDriver)
	}
	if _, err := cfg.FeePercent(); err != nil {
		return err
	}
	return cfg.Gateway.validate()
}

// FeePercent parses PlatformFeePercent.
func (cfg Config) FeePercent() (decimal.Decimal, error) {
	value, err := decimal.NewFromString(strings.TrimSpace(cfg.PlatformFeePercent))
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrInvalidFeePercent, err)
	}
	if value.IsNegative() || value.GreaterThan(decimal.NewFromInt(100)) {
		return decimal.Decimal{}, ErrInvalidFeePercent
	}
	return value, nil
}

// KafkaEnabled reports whether events should be published to Kafka.
func (cfg Config) KafkaEnabled() bool {
	return len(cfg.KafkaBrokers) > 0
}

// ValidateWorker checks the settings the reconcile worker needs on top of Validate.
func (cfg *Config) ValidateWorker() error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if !cfg.KafkaEnabled() {
		return ErrMissingKafkaBrokers
	}
	return nil
}

// ValidateServe checks the settings the serve command needs on top of Validate.
func (cfg *Config) ValidateServe() error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	return cfg.HTTP.validate()
}

func (cfg *HTTPConfig) validate() error {
	cfg.ListenAddr = defaultIfEmpty(cfg.ListenAddr, defaultHTTPListenAddr)
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{defaultAllowedOrigin}
	}
	cfg.SessionIssuer = defaultIfEmpty(cfg.SessionIssuer, defaultSessionIssuer)
	cfg.SessionCookieName = defaultIfEmpty(cfg.SessionCookieName, defaultSessionCookie)
	if strings.TrimSpace(cfg.ListenAddr) == "" {
		return ErrMissingListenAddress
	}
	if len(cfg.SessionSigningKey) == 0 {
		return ErrMissingSigningKey
	}
	return nil
}

// Enabled reports whether an external gateway is configured.
func (cfg GatewayConfig) Enabled() bool {
	return strings.TrimSpace(cfg.Name) != ""
}

func (cfg *GatewayConfig) validate() error {
	if !cfg.Enabled() {
		return nil
	}
	cfg.Name = strings.ToLower(strings.TrimSpace(cfg.Name))
	cfg.Website = defaultIfEmpty(cfg.Website, defaultGatewayWebsite)
	cfg.OrderIDPrefix = defaultIfEmpty(cfg.OrderIDPrefix, defaultOrderIDPrefix)
	missing := make([]string, 0, 5)
	for field, value := range map[string]string{
		"merchant id":  cfg.MerchantID,
		"secret":       cfg.Secret,
		"redirect url": cfg.RedirectURL,
		"callback url": cfg.CallbackURL,
		"return url":   cfg.ReturnURL,
	} {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: missing %s", ErrIncompleteGateway, strings.Join(missing, ", "))
	}
	if cfg.OrderIDNode < 0 || cfg.OrderIDNode > maxSnowflakeNodeID {
		return ErrInvalidOrderIDNode
	}
	return nil
}

func defaultIfEmpty(value string, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

// ParseList splits comma-delimited values into a slice.
func ParseList(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	parts := strings.Split(raw, ",")
	normalized := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	return normalized
}
