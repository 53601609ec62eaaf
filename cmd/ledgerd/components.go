package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/creatorledger/internal/config"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/events"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/observability"
	"github.com/MarkoPoloResearchLab/creatorledger/internal/purchasecache"
	"github.com/MarkoPoloResearchLab/creatorledger/pkg/ledger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ledgerComponents is the domain graph shared by every command.
type ledgerComponents struct {
	processor   *ledger.Processor
	earnings    *ledger.EarningsLedger
	withdrawals *ledger.WithdrawalAccounting
	payments    *ledger.Payments
	gateway     *ledger.ExternalGateway
	closers     []func() error
}

func systemClock() int64 {
	return time.Now().UTC().Unix()
}

// buildComponents wires the ledger against store. Redis and Kafka are attached when configured.
func buildComponents(cfg config.Config, store ledger.Store, logger *zap.Logger, metrics *observability.Metrics) (*ledgerComponents, error) {
	components := &ledgerComponents{}
	feePercent, err := cfg.FeePercent()
	if err != nil {
		return nil, err
	}
	fees, err := ledger.NewFeeCalculator(feePercent)
	if err != nil {
		return nil, err
	}

	var shared ledger.PurchaseCache
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		components.closers = append(components.closers, client.Close)
		redisCache, err := purchasecache.NewRedis(client, purchasecache.DefaultKeyPrefix)
		if err != nil {
			return nil, components.fail(err)
		}
		shared = redisCache
	}
	options := []ledger.Option{
		ledger.WithOperationLogger(observability.NewOperationRecorder(logger, metrics)),
		ledger.WithPurchaseCache(purchasecache.NewLayered(purchasecache.NewMemory(), shared)),
		ledger.WithFeeCalculator(fees),
	}

	if cfg.KafkaEnabled() {
		writer, err := events.NewKafkaWriter(cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			return nil, components.fail(err)
		}
		publisher, err := events.NewPublisher(writer, cfg.KafkaTopic, logger)
		if err != nil {
			_ = writer.Close()
			return nil, components.fail(err)
		}
		components.closers = append(components.closers, publisher.Close)
		options = append(options, ledger.WithEventPublisher(publisher))
	}

	components.withdrawals, err = ledger.NewWithdrawalAccounting(store, systemClock, options...)
	if err != nil {
		return nil, components.fail(err)
	}
	components.earnings, err = ledger.NewEarningsLedger(store, components.withdrawals, systemClock, options...)
	if err != nil {
		return nil, components.fail(err)
	}
	components.processor, err = ledger.NewProcessor(store, components.earnings, systemClock, options...)
	if err != nil {
		return nil, components.fail(err)
	}
	internal, err := ledger.NewInternalGateway(components.processor)
	if err != nil {
		return nil, components.fail(err)
	}
	gateways := []ledger.PaymentGateway{internal}
	if cfg.Gateway.Enabled() {
		components.gateway, err = buildExternalGateway(cfg.Gateway, components.processor, store, options)
		if err != nil {
			return nil, components.fail(err)
		}
		gateways = append(gateways, components.gateway)
	}
	components.payments, err = ledger.NewPayments(gateways...)
	if err != nil {
		return nil, components.fail(err)
	}
	return components, nil
}

func buildExternalGateway(cfg config.GatewayConfig, processor *ledger.Processor, store ledger.Store, options []ledger.Option) (*ledger.ExternalGateway, error) {
	signer, err := ledger.NewChecksumSigner(cfg.Secret)
	if err != nil {
		return nil, err
	}
	orderIDs, err := ledger.NewSnowflakeOrderIDs(cfg.OrderIDNode, cfg.OrderIDPrefix)
	if err != nil {
		return nil, err
	}
	return ledger.NewExternalGateway(ledger.ExternalGatewayConfig{
		Name:        ledger.PaymentMethod(cfg.Name),
		MerchantID:  cfg.MerchantID,
		RedirectURL: cfg.RedirectURL,
		CallbackURL: cfg.CallbackURL,
		Website:     cfg.Website,
		Signer:      signer,
	}, processor, store, orderIDs, systemClock, options...)
}

// Close releases the Redis client and Kafka writer.
func (components *ledgerComponents) Close() error {
	var errs []error
	for index := len(components.closers) - 1; index >= 0; index-- {
		if err := components.closers[index](); err != nil {
			errs = append(errs, err)
		}
	}
	components.closers = nil
	return errors.Join(errs...)
}

func (components *ledgerComponents) fail(cause error) error {
	if closeErr := components.Close(); closeErr != nil {
		return fmt.Errorf("%w (cleanup: %v)", cause, closeErr)
	}
	return cause
}
