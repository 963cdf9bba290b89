// Package config loads the service configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	// RPCURL is the JSON-RPC endpoint of the ledger chain.
	RPCURL string `mapstructure:"RPC_URL"`
	// ExecutorPrivateKey is the hex key of the relayer that signs intents and pays gas.
	ExecutorPrivateKey string `mapstructure:"EXECUTOR_PRIVATE_KEY"`
	// SocialPayContract is the address of the SocialPay ledger contract.
	SocialPayContract string `mapstructure:"SOCIALPAY_CONTRACT"`
	// ChainID must match the node behind RPCURL.
	ChainID int64 `mapstructure:"CHAIN_ID"`
	// Platform tags every handle, e.g. "telegram".
	Platform string `mapstructure:"PLATFORM"`

	HTTPAddr string `mapstructure:"HTTP_ADDR"`
	// ProposalTTL is how long a proposal waits for confirmation.
	ProposalTTL time.Duration `mapstructure:"PROPOSAL_TTL"`
	// DeadlineWindowMinutes bounds how long a signed intent stays valid on chain.
	DeadlineWindowMinutes int `mapstructure:"DEADLINE_WINDOW_MINUTES"`
	// ReceiptTimeout caps the wait for a submitted transaction to be mined.
	ReceiptTimeout time.Duration `mapstructure:"RECEIPT_TIMEOUT"`
	// IdempotencyTTL is how long a settled confirm can be replayed by its idempotency key.
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	RateLimitRPS   float64 `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `mapstructure:"RATE_LIMIT_BURST"`

	// MCPStdio serves the MCP tools on stdin/stdout instead of mounting them over SSE.
	MCPStdio bool `mapstructure:"MCP_STDIO"`

	LogLevel string `mapstructure:"LOG_LEVEL"`
	// Env is the application environment; "production" selects JSON logs.
	Env string `mapstructure:"APP_ENV"`
}

// Load reads .env (if present), then builds and validates Config from the environment via Viper.
// Env vars override .env.
func Load() (*Config, error) {
	_ = godotenv.Load() // missing .env is fine

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("RPC_URL", "")
	v.SetDefault("EXECUTOR_PRIVATE_KEY", "")
	v.SetDefault("SOCIALPAY_CONTRACT", "")
	v.SetDefault("CHAIN_ID", 11155111)
	v.SetDefault("PLATFORM", "telegram")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("PROPOSAL_TTL", "5m")
	v.SetDefault("DEADLINE_WINDOW_MINUTES", 60)
	v.SetDefault("RECEIPT_TIMEOUT", "2m")
	v.SetDefault("IDEMPOTENCY_TTL", "10m")
	v.SetDefault("RATE_LIMIT_RPS", 1.0)
	v.SetDefault("RATE_LIMIT_BURST", 5)
	v.SetDefault("MCP_STDIO", false)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("APP_ENV", "")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.RPCURL) == "" {
		return errors.New("config: RPC_URL must be set")
	}
	if strings.TrimSpace(c.ExecutorPrivateKey) == "" {
		return errors.New("config: EXECUTOR_PRIVATE_KEY must be set")
	}
	if !common.IsHexAddress(c.SocialPayContract) {
		return errors.New("config: SOCIALPAY_CONTRACT must be a hex address")
	}
	if c.ChainID <= 0 {
		return errors.New("config: CHAIN_ID must be positive")
	}
	if strings.TrimSpace(c.Platform) == "" {
		return errors.New("config: PLATFORM must be set")
	}
	if c.ProposalTTL <= 0 {
		return errors.New("config: PROPOSAL_TTL must be positive")
	}
	if c.ReceiptTimeout <= 0 {
		return errors.New("config: RECEIPT_TIMEOUT must be positive")
	}
	if c.IdempotencyTTL <= 0 {
		return errors.New("config: IDEMPOTENCY_TTL must be positive")
	}
	if c.RateLimitRPS < 0 || c.RateLimitBurst < 0 {
		return errors.New("config: RATE_LIMIT_RPS and RATE_LIMIT_BURST must not be negative")
	}
	return nil
}

// Contract returns SocialPayContract as an address.
func (c *Config) Contract() common.Address {
	return common.HexToAddress(c.SocialPayContract)
}

// IsProduction reports whether APP_ENV is production.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
