// Package config loads engine settings from an optional YAML file and
// WALLET_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment override, e.g. WALLET_RPC_ENDPOINT.
const EnvPrefix = "WALLET"

// LogConfig configures the zap logger.
type LogConfig struct {
	Format   string `mapstructure:"format"`   // "console" or "json"
	LogDir   string `mapstructure:"log_dir"`  // empty means stdout only
	Level    string `mapstructure:"level"`    // debug / info / warn / error
	Compress bool   `mapstructure:"compress"` // gzip rotated files
}

// RPCConfig configures the ledger client.
type RPCConfig struct {
	Network    string        `mapstructure:"network"`  // devnet / testnet / mainnet-beta or a URL
	Endpoint   string        `mapstructure:"endpoint"` // overrides Network when set
	Timeout    time.Duration `mapstructure:"timeout"`
	Commitment string        `mapstructure:"commitment"`
	RateLimit  int           `mapstructure:"rate_limit"` // requests per second, 0 disables
}

// ExecutorConfig configures transaction confirmation.
type ExecutorConfig struct {
	PollInterval  time.Duration `mapstructure:"poll_interval"`
	ConfirmBudget time.Duration `mapstructure:"confirm_budget"`
}

// SwapConfig configures the quote service client.
type SwapConfig struct {
	QuoteEndpoint      string        `mapstructure:"quote_endpoint"`
	Timeout            time.Duration `mapstructure:"timeout"`
	BreakerMaxFailures uint32        `mapstructure:"breaker_max_failures"`
	BreakerOpenTimeout time.Duration `mapstructure:"breaker_open_timeout"`
}

// HTTPConfig configures the REST listener.
type HTTPConfig struct {
	Addr string `mapstructure:"addr"`
}

// Config is the full engine configuration.
type Config struct {
	RPC      RPCConfig      `mapstructure:"rpc"`
	Executor ExecutorConfig `mapstructure:"executor"`
	Swap     SwapConfig     `mapstructure:"swap"`
	HTTP     HTTPConfig     `mapstructure:"http"`
	Logger   LogConfig      `mapstructure:"logger"`

	PostgresDSN   string `mapstructure:"postgres_dsn"`
	ClickHouseDSN string `mapstructure:"clickhouse_dsn"`
	RedisAddr     string `mapstructure:"redis_addr"`
	MetricsAddr   string `mapstructure:"metrics_addr"`
	UseMemory     bool   `mapstructure:"use_memory"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("rpc.network", "devnet")
	v.SetDefault("rpc.endpoint", "")
	v.SetDefault("rpc.timeout", 30*time.Second)
	v.SetDefault("rpc.commitment", "confirmed")
	v.SetDefault("rpc.rate_limit", 0)

	v.SetDefault("executor.poll_interval", 100*time.Millisecond)
	v.SetDefault("executor.confirm_budget", 30*time.Second)

	v.SetDefault("swap.quote_endpoint", "https://swap.solxtence.com/swap")
	v.SetDefault("swap.timeout", 10*time.Second)
	v.SetDefault("swap.breaker_max_failures", 5)
	v.SetDefault("swap.breaker_open_timeout", 30*time.Second)

	v.SetDefault("http.addr", ":8080")

	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.log_dir", "")
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.compress", false)

	v.SetDefault("postgres_dsn", "")
	v.SetDefault("clickhouse_dsn", "")
	v.SetDefault("redis_addr", "")
	v.SetDefault("metrics_addr", ":9090")
	v.SetDefault("use_memory", false)
}

// Load reads path (if non-empty) and applies WALLET_* overrides on top of
// the defaults. Nested keys use underscores: rpc.endpoint is WALLET_RPC_ENDPOINT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error while validating config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the settings that have no safe fallback.
func (c *Config) Validate() error {
	if c.RPC.Endpoint == "" && c.RPC.Network == "" {
		return errors.New("rpc.endpoint or rpc.network is required")
	}
	if c.Executor.PollInterval <= 0 {
		return errors.New("executor.poll_interval must be positive")
	}
	if c.Executor.ConfirmBudget <= 0 {
		return errors.New("executor.confirm_budget must be positive")
	}
	if c.RPC.RateLimit < 0 {
		return errors.New("rpc.rate_limit must not be negative")
	}
	if !c.UseMemory && c.PostgresDSN == "" {
		return errors.New("postgres_dsn is required (set use_memory for in-memory storage)")
	}
	return nil
}

// LoadEnvFile loads variables from a .env file if it exists. Variables
// already present in the environment win.
func LoadEnvFile(path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		return
	}

	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if os.Getenv(key) == "" {
			os.Setenv(key, value)
		}
	}
}
