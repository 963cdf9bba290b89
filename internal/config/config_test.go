package config

import (
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

const testContract = "0x1111111111111111111111111111111111111111"

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("RPC_URL", "http://localhost:8545")
	t.Setenv("EXECUTOR_PRIVATE_KEY", "0x4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("SOCIALPAY_CONTRACT", testContract)
}

func TestLoad_Defaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 11155111 {
		t.Errorf("ChainID = %d, want 11155111", cfg.ChainID)
	}
	if cfg.Platform != "telegram" {
		t.Errorf("Platform = %q, want telegram", cfg.Platform)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q, want :8080", cfg.HTTPAddr)
	}
	if cfg.ProposalTTL != 5*time.Minute {
		t.Errorf("ProposalTTL = %v, want 5m", cfg.ProposalTTL)
	}
	if cfg.DeadlineWindowMinutes != 60 {
		t.Errorf("DeadlineWindowMinutes = %d, want 60", cfg.DeadlineWindowMinutes)
	}
	if cfg.ReceiptTimeout != 2*time.Minute {
		t.Errorf("ReceiptTimeout = %v, want 2m", cfg.ReceiptTimeout)
	}
	if cfg.IdempotencyTTL != 10*time.Minute {
		t.Errorf("IdempotencyTTL = %v, want 10m", cfg.IdempotencyTTL)
	}
	if cfg.RateLimitRPS != 1 || cfg.RateLimitBurst != 5 {
		t.Errorf("rate limit = %v/%d, want 1/5", cfg.RateLimitRPS, cfg.RateLimitBurst)
	}
	if cfg.MCPStdio {
		t.Error("MCPStdio should default to false")
	}
	if cfg.Contract() != common.HexToAddress(testContract) {
		t.Errorf("Contract = %s", cfg.Contract().Hex())
	}
	if cfg.IsProduction() {
		t.Error("IsProduction should be false by default")
	}
}

func TestLoad_EnvVarOverride(t *testing.T) {
	setRequired(t)
	t.Setenv("CHAIN_ID", "31337")
	t.Setenv("PROPOSAL_TTL", "90s")
	t.Setenv("DEADLINE_WINDOW_MINUTES", "15")
	t.Setenv("MCP_STDIO", "true")
	t.Setenv("APP_ENV", "production")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.ChainID != 31337 {
		t.Errorf("ChainID = %d, want 31337", cfg.ChainID)
	}
	if cfg.ProposalTTL != 90*time.Second {
		t.Errorf("ProposalTTL = %v, want 90s", cfg.ProposalTTL)
	}
	if cfg.DeadlineWindowMinutes != 15 {
		t.Errorf("DeadlineWindowMinutes = %d, want 15", cfg.DeadlineWindowMinutes)
	}
	if !cfg.MCPStdio {
		t.Error("MCPStdio should be true")
	}
	if !cfg.IsProduction() {
		t.Error("IsProduction should be true")
	}
}

func TestLoad_Validation(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
		want string
	}{
		{"missing rpc url", "RPC_URL", "", "RPC_URL"},
		{"missing key", "EXECUTOR_PRIVATE_KEY", " ", "EXECUTOR_PRIVATE_KEY"},
		{"bad contract", "SOCIALPAY_CONTRACT", "not-an-address", "SOCIALPAY_CONTRACT"},
		{"zero chain", "CHAIN_ID", "0", "CHAIN_ID"},
		{"zero ttl", "PROPOSAL_TTL", "0s", "PROPOSAL_TTL"},
		{"negative burst", "RATE_LIMIT_BURST", "-1", "RATE_LIMIT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setRequired(t)
			t.Setenv(tt.key, tt.val)

			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.HasPrefix(err.Error(), "config: ") || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want config error mentioning %s", err, tt.want)
			}
		})
	}
}
