// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/spf13/viper"
)

// Backends an adapter can run against.
const (
	BackendEthereum = "ethereum"
	BackendMemory   = "memory"
)

// Config holds all application configuration.
type Config struct {
	App       AppConfig       `mapstructure:"app"`
	Ethereum  EthereumConfig  `mapstructure:"ethereum"`
	Gamma     GammaConfig     `mapstructure:"gamma"`
	Legacy    LegacyConfig    `mapstructure:"legacy"`
	Journal   JournalConfig   `mapstructure:"journal"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// AppConfig holds general application settings.
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Environment string `mapstructure:"environment"`
	LogLevel    string `mapstructure:"log_level"`
	Backend     string `mapstructure:"backend"`
}

// EthereumConfig holds Ethereum node and signer configuration.
type EthereumConfig struct {
	HTTPURL        string        `mapstructure:"http_url"`
	ChainID        uint64        `mapstructure:"chain_id"`
	PrivateKey     string        `mapstructure:"private_key"`
	RPCRateLimit   int           `mapstructure:"rpc_rate_limit"` // requests per minute
	ReceiptTimeout time.Duration `mapstructure:"receipt_timeout"`
	MaxGasPrice    int64         `mapstructure:"max_gas_price_gwei"`
}

// AdapterConfig holds the knobs shared by every protocol variant.
type AdapterConfig struct {
	Enabled         bool     `mapstructure:"enabled"`
	WETH            string   `mapstructure:"weth"`
	Router          string   `mapstructure:"router"` // Uniswap V2 compatible
	PayoutBasis     string   `mapstructure:"payout_basis"`
	MintRounding    string   `mapstructure:"mint_rounding"`
	ZeroProfit      string   `mapstructure:"zero_profit"`
	CollateralFloor string   `mapstructure:"collateral_floor"` // smallest units of the wrapped native
	Intermediates   []string `mapstructure:"intermediates"`
	UnwrapPayouts   bool     `mapstructure:"unwrap_payouts"`
}

// WETHAddress returns the wrapped native address.
func (c *AdapterConfig) WETHAddress() common.Address {
	return common.HexToAddress(c.WETH)
}

// RouterAddress returns the exchange router address.
func (c *AdapterConfig) RouterAddress() common.Address {
	return common.HexToAddress(c.Router)
}

// IntermediateAddresses returns the intermediate sell tokens.
func (c *AdapterConfig) IntermediateAddresses() []common.Address {
	out := make([]common.Address, 0, len(c.Intermediates))
	for _, s := range c.Intermediates {
		out = append(out, common.HexToAddress(s))
	}
	return out
}

// CollateralFloorInt parses the wrapped native collateral floor. Empty means none.
func (c *AdapterConfig) CollateralFloorInt() (*big.Int, error) {
	if c.CollateralFloor == "" {
		return nil, nil
	}
	v, ok := new(big.Int).SetString(c.CollateralFloor, 10)
	if !ok || v.Sign() < 0 {
		return nil, fmt.Errorf("invalid collateral_floor %q", c.CollateralFloor)
	}
	return v, nil
}

// GammaConfig holds the factory-issued protocol's contract addresses.
type GammaConfig struct {
	AdapterConfig `mapstructure:",squash"`

	AddressBook   string `mapstructure:"address_book"`
	Factory       string `mapstructure:"factory"`
	Controller    string `mapstructure:"controller"`
	Oracle        string `mapstructure:"oracle"`
	MarginPool    string `mapstructure:"margin_pool"`
	ExchangeProxy string `mapstructure:"exchange_proxy"` // swap venue
	QuoteAPI      string `mapstructure:"quote_api"`      // 0x swap API, empty disables quoting
	QuoteAPIKey   string `mapstructure:"quote_api_key"`
}

// LegacyConfig holds the owner-registered protocol's settings.
type LegacyConfig struct {
	AdapterConfig `mapstructure:",squash"`

	Owner      string  `mapstructure:"owner"`
	Oracle     string  `mapstructure:"oracle"`
	Pricer     string  `mapstructure:"pricer"` // exchange or formula
	Volatility float64 `mapstructure:"volatility"`
	RiskFree   float64 `mapstructure:"risk_free_rate"`
}

// OwnerAddress returns the registry owner.
func (c *LegacyConfig) OwnerAddress() common.Address {
	return common.HexToAddress(c.Owner)
}

// JournalConfig selects where completed operations are recorded.
type JournalConfig struct {
	Driver string `mapstructure:"driver"` // console, postgres or none
	DSN    string `mapstructure:"dsn"`
	Table  string `mapstructure:"table"`
}

// CacheConfig sizes the token lookup cache.
type CacheConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	TTL         time.Duration `mapstructure:"ttl"`
	NumCounters int64         `mapstructure:"num_counters"`
	MaxCost     int64         `mapstructure:"max_cost"`
}

// TelemetryConfig holds observability configuration.
type TelemetryConfig struct {
	Enabled        bool   `mapstructure:"enabled"`
	ServiceName    string `mapstructure:"service_name"`
	OTLPEndpoint   string `mapstructure:"otlp_endpoint"`
	OTLPHeaders    string `mapstructure:"otlp_headers"`
	Tracer         string `mapstructure:"tracer"` // zipkin, otlp-grpc, otlp-http, console or none
	OTLPMetrics    bool   `mapstructure:"otlp_metrics"`
	PrometheusPort int    `mapstructure:"prometheus_port"`
	HealthPort     int    `mapstructure:"health_port"`
}

// Load loads configuration from file and environment variables.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("ADAPTER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindEnvVars(v)
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found is OK, use env vars
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func bindEnvVars(v *viper.Viper) {
	// App
	v.BindEnv("app.name", "ADAPTER_APP_NAME", "SERVICE_NAME")
	v.BindEnv("app.environment", "ADAPTER_ENVIRONMENT", "ENVIRONMENT")
	v.BindEnv("app.log_level", "ADAPTER_LOG_LEVEL", "LOG_LEVEL")
	v.BindEnv("app.backend", "ADAPTER_BACKEND")

	// Ethereum
	v.BindEnv("ethereum.http_url", "ADAPTER_ETH_HTTP_URL", "ETH_HTTP_URL")
	v.BindEnv("ethereum.chain_id", "ADAPTER_ETH_CHAIN_ID", "ETH_CHAIN_ID")
	v.BindEnv("ethereum.private_key", "ADAPTER_ETH_PRIVATE_KEY", "ETH_PRIVATE_KEY")

	// Gamma
	v.BindEnv("gamma.quote_api_key", "ADAPTER_ZEROEX_API_KEY", "ZEROEX_API_KEY")

	// Journal
	v.BindEnv("journal.driver", "ADAPTER_JOURNAL_DRIVER")
	v.BindEnv("journal.dsn", "ADAPTER_JOURNAL_DSN", "DATABASE_URL")

	// Telemetry
	v.BindEnv("telemetry.enabled", "ADAPTER_OTEL_ENABLED", "OTEL_ENABLED")
	v.BindEnv("telemetry.service_name", "ADAPTER_OTEL_SERVICE_NAME", "OTEL_SERVICE_NAME")
	v.BindEnv("telemetry.otlp_endpoint", "ADAPTER_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	v.BindEnv("telemetry.tracer", "ADAPTER_OTEL_TRACER")
	v.BindEnv("telemetry.otlp_headers", "ADAPTER_OTEL_HEADERS", "OTEL_EXPORTER_OTLP_HEADERS")
	v.BindEnv("telemetry.otlp_metrics", "ADAPTER_OTEL_METRICS")
}

func setDefaults(v *viper.Viper) {
	// App defaults
	v.SetDefault("app.name", "otoken-adapter")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.backend", BackendEthereum)

	// Ethereum defaults
	v.SetDefault("ethereum.chain_id", 1)
	v.SetDefault("ethereum.rpc_rate_limit", 600)
	v.SetDefault("ethereum.receipt_timeout", "2m")
	v.SetDefault("ethereum.max_gas_price_gwei", 500)

	// Gamma mainnet defaults
	v.SetDefault("gamma.enabled", true)
	v.SetDefault("gamma.address_book", "0x1E31F2DCBad4dc572004Eae6355fB18F9615cBe4")
	v.SetDefault("gamma.factory", "0x7C06792Af1632E77cb27a558Dc0885338F4Bdf8E")
	v.SetDefault("gamma.controller", "0x4ccc2339F87F6c59c6893E1A678c2266cA58dC72")
	v.SetDefault("gamma.oracle", "0x789cD7AB3742e23Ce0952F6Bc3Eb3A73A0E08833")
	v.SetDefault("gamma.margin_pool", "0x5934807cC0654d46755eBd2848840b616256C6Ef")
	v.SetDefault("gamma.exchange_proxy", "0xDef1C0ded9bec7F1a1670819833240f027b25EfF")
	v.SetDefault("gamma.quote_api", "https://api.0x.org")
	v.SetDefault("gamma.weth", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("gamma.router", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	v.SetDefault("gamma.payout_basis", "strike")
	v.SetDefault("gamma.mint_rounding", "floor")
	v.SetDefault("gamma.zero_profit", "revert")
	v.SetDefault("gamma.collateral_floor", "100000000")
	v.SetDefault("gamma.unwrap_payouts", true)

	// Legacy defaults
	v.SetDefault("legacy.enabled", false)
	v.SetDefault("legacy.weth", "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	v.SetDefault("legacy.router", "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D")
	v.SetDefault("legacy.payout_basis", "strike")
	v.SetDefault("legacy.mint_rounding", "floor")
	v.SetDefault("legacy.zero_profit", "noop")
	v.SetDefault("legacy.pricer", "exchange")
	v.SetDefault("legacy.volatility", 0.9)

	// Journal defaults
	v.SetDefault("journal.driver", "console")
	v.SetDefault("journal.table", "adapter_events")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.ttl", "10m")
	v.SetDefault("cache.num_counters", 10000)
	v.SetDefault("cache.max_cost", 1000)

	// Telemetry defaults
	v.SetDefault("telemetry.enabled", false)
	v.SetDefault("telemetry.service_name", "otoken-adapter")
	v.SetDefault("telemetry.tracer", "otlp-grpc")
	v.SetDefault("telemetry.prometheus_port", 9090)
	v.SetDefault("telemetry.health_port", 8081)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	switch c.App.Backend {
	case BackendMemory:
	case BackendEthereum:
		if c.Ethereum.HTTPURL == "" {
			return fmt.Errorf("ethereum.http_url is required")
		}
		if c.Ethereum.PrivateKey == "" {
			return fmt.Errorf("ethereum.private_key is required")
		}
	default:
		return fmt.Errorf("unknown app.backend %q", c.App.Backend)
	}

	if !c.Gamma.Enabled && !c.Legacy.Enabled {
		return fmt.Errorf("at least one of gamma or legacy must be enabled")
	}

	if c.Gamma.Enabled {
		for key, addr := range map[string]string{
			"gamma.factory":        c.Gamma.Factory,
			"gamma.controller":     c.Gamma.Controller,
			"gamma.oracle":         c.Gamma.Oracle,
			"gamma.margin_pool":    c.Gamma.MarginPool,
			"gamma.exchange_proxy": c.Gamma.ExchangeProxy,
			"gamma.weth":           c.Gamma.WETH,
		} {
			if !common.IsHexAddress(addr) {
				return fmt.Errorf("invalid %s: %q", key, addr)
			}
		}
		if err := c.Gamma.validate("gamma"); err != nil {
			return err
		}
	}

	if c.Legacy.Enabled {
		if c.App.Backend == BackendEthereum {
			return fmt.Errorf("legacy adapter is only available on the memory backend")
		}
		if !common.IsHexAddress(c.Legacy.Owner) {
			return fmt.Errorf("invalid legacy.owner: %q", c.Legacy.Owner)
		}
		if !common.IsHexAddress(c.Legacy.Router) {
			return fmt.Errorf("invalid legacy.router: %q", c.Legacy.Router)
		}
		switch c.Legacy.Pricer {
		case "exchange":
		case "formula":
			if c.Legacy.Volatility <= 0 {
				return fmt.Errorf("legacy.volatility must be positive")
			}
		default:
			return fmt.Errorf("unknown legacy.pricer %q", c.Legacy.Pricer)
		}
		if err := c.Legacy.validate("legacy"); err != nil {
			return err
		}
	}

	switch c.Journal.Driver {
	case "console", "none":
	case "postgres":
		if c.Journal.DSN == "" {
			return fmt.Errorf("journal.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unknown journal.driver %q", c.Journal.Driver)
	}

	return nil
}

func (c *AdapterConfig) validate(section string) error {
	for _, s := range c.Intermediates {
		if !common.IsHexAddress(s) {
			return fmt.Errorf("invalid %s.intermediates entry: %q", section, s)
		}
	}
	if _, err := c.CollateralFloorInt(); err != nil {
		return fmt.Errorf("%s: %w", section, err)
	}
	return nil
}
