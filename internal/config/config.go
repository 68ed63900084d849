package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v6"
)

// Config is read from the environment exactly once at process start and
// passed by reference into constructors. Nothing reads ambient state on the
// request path.
type Config struct {
	RunAddress     string `env:"RUN_ADDRESS" envDefault:":8080"`
	MetricsAddress string `env:"METRICS_ADDRESS" envDefault:":9090"`
	StaticDir      string `env:"STATIC_DIR" envDefault:"public"`

	OrderStoreBaseURL string `env:"ORDER_STORE_BASE_URL,required,notEmpty"`
	OrderStoreToken   string `env:"ORDER_STORE_TOKEN,required,notEmpty"`

	GatewayLoginID        string `env:"GATEWAY_API_LOGIN_ID"`
	GatewayTransactionKey string `env:"GATEWAY_TRANSACTION_KEY"`
	GatewaySandbox        bool   `env:"GATEWAY_SANDBOX" envDefault:"false"`

	UpstreamTimeout  time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"10s"`
	ReconcileTimeout time.Duration `env:"RECONCILE_TIMEOUT" envDefault:"15s"`

	RateLimitRPS   float64 `env:"RATE_LIMIT_RPS" envDefault:"2"`
	RateLimitBurst int     `env:"RATE_LIMIT_BURST" envDefault:"30"`

	OTLPEndpoint string `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if !cfg.GatewaySandbox && (cfg.GatewayLoginID == "" || cfg.GatewayTransactionKey == "") {
		return nil, fmt.Errorf("GATEWAY_API_LOGIN_ID and GATEWAY_TRANSACTION_KEY are required outside sandbox mode")
	}
	return cfg, nil
}
