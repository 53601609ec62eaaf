package config

import (
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"
)

func completeGateway() GatewayConfig {
	return GatewayConfig{
		Name:        "PayTM",
		MerchantID:  "MID-1",
		Secret:      "secret",
		RedirectURL: "https://gateway.test/process",
		CallbackURL: "https://ledger.test/gateway/callback",
		ReturnURL:   "https://app.test/payment/return",
	}
}

func TestValidateAppliesDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.DatabaseURL != defaultDatabaseURL || cfg.StoreDriver != StoreDriverGorm || cfg.GRPCListenAddr != defaultGRPCListenAddr {
		test.Fatalf("unexpected defaults %+v", cfg)
	}
	if cfg.ShutdownTimeout != 10*time.Second || cfg.KafkaTopic != defaultKafkaTopic || cfg.KafkaGroupID != defaultKafkaGroupID {
		test.Fatalf("unexpected defaults %+v", cfg)
	}
	feePercent, err := cfg.FeePercent()
	if err != nil || feePercent.String() != "7" {
		test.Fatalf("unexpected fee percent %s (%v)", feePercent, err)
	}
	if cfg.KafkaEnabled() || cfg.Gateway.Enabled() {
		test.Fatalf("optional integrations should be disabled by default")
	}
}

func TestValidateRejectsInvalidSettings(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		name    string
		cfg     Config
		wantErr error
	}{
		{name: "unknown driver", cfg: Config{StoreDriver: "mysql"}, wantErr: ErrUnknownStoreDriver},
		{name: "fee not a number", cfg: Config{PlatformFeePercent: "seven"}, wantErr: ErrInvalidFeePercent},
		{name: "fee above 100", cfg: Config{PlatformFeePercent: "100.5"}, wantErr: ErrInvalidFeePercent},
		{name: "negative fee", cfg: Config{PlatformFeePercent: "-1"}, wantErr: ErrInvalidFeePercent},
		{name: "incomplete gateway", cfg: Config{Gateway: GatewayConfig{Name: "paytm"}}, wantErr: ErrIncompleteGateway},
		{name: "order node out of range", cfg: Config{Gateway: func() GatewayConfig {
			gateway := completeGateway()
			gateway.OrderIDNode = 2048
			return gateway
		}()}, wantErr: ErrInvalidOrderIDNode},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			err := testCase.cfg.Validate()
			if !errors.Is(err, testCase.wantErr) {
				test.Fatalf("expected %v, got %v", testCase.wantErr, err)
			}
		})
	}
}

func TestIncompleteGatewayNamesMissingFields(test *testing.T) {
	test.Parallel()
	cfg := Config{Gateway: GatewayConfig{Name: "paytm", MerchantID: "MID-1"}}
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "callback url, redirect url, return url, secret") {
		test.Fatalf("unexpected error %v", err)
	}
}

func TestGatewayDefaults(test *testing.T) {
	test.Parallel()
	cfg := Config{Gateway: completeGateway()}
	if err := cfg.Validate(); err != nil {
		test.Fatalf("validate: %v", err)
	}
	if cfg.Gateway.Name != "paytm" || cfg.Gateway.Website != defaultGatewayWebsite || cfg.Gateway.OrderIDPrefix != defaultOrderIDPrefix {
		test.Fatalf("unexpected gateway defaults %+v", cfg.Gateway)
	}
}

func TestValidateServeRequiresSigningKey(test *testing.T) {
	test.Parallel()
	cfg := Config{}
	if err := cfg.ValidateServe(); !errors.Is(err, ErrMissingSigningKey) {
		test.Fatalf("expected ErrMissingSigningKey, got %v", err)
	}
	cfg.HTTP.SessionSigningKey = "signing-key"
	if err := cfg.ValidateServe(); err != nil {
		test.Fatalf("validate serve: %v", err)
	}
	if cfg.HTTP.ListenAddr != defaultHTTPListenAddr || cfg.HTTP.SessionCookieName != defaultSessionCookie {
		test.Fatalf("unexpected http defaults %+v", cfg.HTTP)
	}
	if !reflect.DeepEqual(cfg.HTTP.AllowedOrigins, []string{defaultAllowedOrigin}) {
		test.Fatalf("unexpected origins %v", cfg.HTTP.AllowedOrigins)
	}
}

func TestValidateWorkerRequiresBrokers(test *testing.T) {
	test.Parallel()
	cfg := Config{}
	if err := cfg.ValidateWorker(); !errors.Is(err, ErrMissingKafkaBrokers) {
		test.Fatalf("expected ErrMissingKafkaBrokers, got %v", err)
	}
	cfg.KafkaBrokers = ParseList("kafka-1:9092, kafka-2:9092")
	if err := cfg.ValidateWorker(); err != nil {
		test.Fatalf("validate worker: %v", err)
	}
}

func TestParseList(test *testing.T) {
	test.Parallel()
	testCases := []struct {
		raw  string
		want []string
	}{
		{raw: "", want: []string{}},
		{raw: " , ", want: []string{}},
		{raw: "https://a.test, https://b.test ,", want: []string{"https://a.test", "https://b.test"}},
	}
	for _, testCase := range testCases {
		if got := ParseList(testCase.raw); !reflect.DeepEqual(got, testCase.want) {
			test.Fatalf("ParseList(%q) = %v, want %v", testCase.raw, got, testCase.want)
		}
	}
}
