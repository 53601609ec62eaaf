package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagDatabaseURL       = "database-url"
	flagStoreDriver       = "store-driver"
	flagPlatformFee       = "platform-fee-percent"
	flagGRPCListenAddr    = "grpc-listen-addr"
	flagHTTPListenAddr    = "http-listen-addr"
	flagAllowedOrigins    = "allowed-origins"
	flagJWTSigningKey     = "jwt-signing-key"
	flagJWTIssuer         = "jwt-issuer"
	flagJWTCookieName     = "jwt-cookie-name"
	flagGatewayName       = "gateway-name"
	flagGatewayMerchantID = "gateway-merchant-id"
	flagGatewaySecret     = "gateway-secret"
	flagGatewayRedirect   = "gateway-redirect-url"
	flagGatewayCallback   = "gateway-callback-url"
	flagGatewayReturn     = "gateway-return-url"
	flagGatewayWebsite    = "gateway-website"
	flagOrderIDNode       = "order-id-node"
	flagOrderIDPrefix     = "order-id-prefix"
	flagRedisAddr         = "redis-addr"
	flagKafkaBrokers      = "kafka-brokers"
	flagKafkaTopic        = "kafka-topic"
	flagKafkaGroupID      = "kafka-group-id"
	flagOTLPEndpoint      = "otlp-endpoint"
	flagServiceName       = "service-name"
	flagShutdownTimeout   = "shutdown-timeout"
	flagCreators          = "creator"
	envPrefix             = "LEDGER"
	envFileName           = ".env"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "ledgerd: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "ledgerd",
		Short:         "Creator earnings ledger",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := cmd.PersistentFlags()
	flags.String(flagDatabaseURL, "", "database url (postgres://... or sqlite://path)")
	flags.String(flagStoreDriver, config.StoreDriverGorm, "store implementation: gorm or pgx")
	flags.String(flagPlatformFee, "", "platform fee percentage applied to every purchase")
	flags.String(flagGRPCListenAddr, "", "gRPC listen address")
	flags.String(flagHTTPListenAddr, "", "HTTP listen address")
	flags.String(flagAllowedOrigins, "", "comma-separated list of allowed CORS origins")
	flags.String(flagJWTSigningKey, "", "TAuth JWT signing key")
	flags.String(flagJWTIssuer, "", "expected JWT issuer")
	flags.String(flagJWTCookieName, "", "JWT cookie name")
	flags.String(flagGatewayName, "", "external payment gateway name; empty disables it")
	flags.String(flagGatewayMerchantID, "", "gateway merchant id")
	flags.String(flagGatewaySecret, "", "gateway checksum secret")
	flags.String(flagGatewayRedirect, "", "hosted payment page url")
	flags.String(flagGatewayCallback, "", "url the gateway posts callbacks to")
	flags.String(flagGatewayReturn, "", "url the buyer returns to after a callback")
	flags.String(flagGatewayWebsite, "", "gateway website parameter")
	flags.Int64(flagOrderIDNode, 0, "snowflake node id for gateway order ids (0-1023, unique per process)")
	flags.String(flagOrderIDPrefix, "", "gateway order id prefix")
	flags.String(flagRedisAddr, "", "redis address for the shared purchase cache; empty keeps it in memory")
	flags.String(flagKafkaBrokers, "", "comma-separated kafka brokers; empty disables events")
	flags.String(flagKafkaTopic, "", "kafka topic for ledger events")
	flags.String(flagKafkaGroupID, "", "kafka consumer group of the reconcile worker")
	flags.String(flagOTLPEndpoint, "", "OTLP/HTTP trace endpoint; empty disables tracing")
	flags.String(flagServiceName, "", "service name reported in traces")
	flags.Duration(flagShutdownTimeout, 0, "graceful shutdown timeout")

	cmd.AddCommand(
		newServeCommand(cfg),
		newMigrateCommand(cfg),
		newReconcileCommand(cfg),
		newWorkerCommand(cfg),
	)
	return cmd
}

// loadConfig resolves flags, LEDGER_* environment variables, and an optional .env file into cfg.
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	if err := godotenv.Load(envFileName); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("load %s: %w", envFileName, err)
	}

	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	var bindErr error
	for _, flagSet := range []*pflag.FlagSet{cmd.InheritedFlags(), cmd.LocalFlags()} {
		flagSet.VisitAll(func(flag *pflag.Flag) {
			if bindErr == nil {
				bindErr = v.BindPFlag(flag.Name, flag)
			}
		})
	}
	if bindErr != nil {
		return bindErr
	}

	cfg.DatabaseURL = strings.TrimSpace(v.GetString(flagDatabaseURL))
	cfg.StoreDriver = strings.TrimSpace(v.GetString(flagStoreDriver))
	cfg.PlatformFeePercent = strings.TrimSpace(v.GetString(flagPlatformFee))
	cfg.GRPCListenAddr = strings.TrimSpace(v.GetString(flagGRPCListenAddr))
	cfg.HTTP = config.HTTPConfig{
		ListenAddr:        strings.TrimSpace(v.GetString(flagHTTPListenAddr)),
		AllowedOrigins:    config.ParseList(v.GetString(flagAllowedOrigins)),
		SessionSigningKey: v.GetString(flagJWTSigningKey),
		SessionIssuer:     strings.TrimSpace(v.GetString(flagJWTIssuer)),
		SessionCookieName: strings.TrimSpace(v.GetString(flagJWTCookieName)),
	}
	cfg.Gateway = config.GatewayConfig{
		Name:          strings.TrimSpace(v.GetString(flagGatewayName)),
		MerchantID:    strings.TrimSpace(v.GetString(flagGatewayMerchantID)),
		Secret:        v.GetString(flagGatewaySecret),
		RedirectURL:   strings.TrimSpace(v.GetString(flagGatewayRedirect)),
		CallbackURL:   strings.TrimSpace(v.GetString(flagGatewayCallback)),
		ReturnURL:     strings.TrimSpace(v.GetString(flagGatewayReturn)),
		Website:       strings.TrimSpace(v.GetString(flagGatewayWebsite)),
		OrderIDNode:   v.GetInt64(flagOrderIDNode),
		OrderIDPrefix: strings.TrimSpace(v.GetString(flagOrderIDPrefix)),
	}
	cfg.RedisAddr = strings.TrimSpace(v.GetString(flagRedisAddr))
	cfg.KafkaBrokers = config.ParseList(v.GetString(flagKafkaBrokers))
	cfg.KafkaTopic = strings.TrimSpace(v.GetString(flagKafkaTopic))
	cfg.KafkaGroupID = strings.TrimSpace(v.GetString(flagKafkaGroupID))
	cfg.OTLPEndpoint = strings.TrimSpace(v.GetString(flagOTLPEndpoint))
	cfg.ServiceName = strings.TrimSpace(v.GetString(flagServiceName))
	cfg.ShutdownTimeout = v.GetDuration(flagShutdownTimeout)
	return nil
}
