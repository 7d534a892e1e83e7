// Package config loads service configuration with viper, the way
// 0gfoundation-0g-sandbox-billing/internal/config does: typed struct,
// SetDefault calls, then explicit env bindings layered over AutomaticEnv.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Verifier  VerifierConfig
	Asset     AssetConfig
	Windows   WindowConfig
	Challenge ChallengeConfig
	Demo      DemoConfig
	Auth      AuthConfig
}

type ServerConfig struct {
	Port int    `mapstructure:"port"`
	Host string `mapstructure:"host"`
	DataDir string `mapstructure:"data_dir"`
}

type VerifierConfig struct {
	URL string `mapstructure:"url"`
}

// AssetConfig selects and parameterizes the PaymentChannelAdapter (spec §6 ASSET_MODE).
type AssetConfig struct {
	Mode            string `mapstructure:"mode"` // "mock" | "real"
	RPCURL          string `mapstructure:"rpc_url"`
	WSURL           string `mapstructure:"ws_url"`
	PrivateKey      string `mapstructure:"private_key"`
	AssetAddress    string `mapstructure:"address"`
	Decimals        int    `mapstructure:"decimals"`
	ChainId         int64  `mapstructure:"chain_id"`
	ContractAddress string `mapstructure:"contract_address"`
}

// WindowConfig holds the state-machine deadline windows of spec §4.7, in milliseconds.
type WindowConfig struct {
	BiddingMs  int64 `mapstructure:"bidding_ms"`
	DeliveryMs int64 `mapstructure:"delivery_ms"`
	VerifyMs   int64 `mapstructure:"verify_ms"`
	ChallengeMs int64 `mapstructure:"challenge_ms"`
	PatchMs    int64 `mapstructure:"patch_ms"`
}

type ChallengeConfig struct {
	MilestoneSplits   int `mapstructure:"milestone_splits"`
	MaxQuoteRewards   int `mapstructure:"max_quote_rewards"`
	SweepIntervalMs   int64 `mapstructure:"sweep_interval_ms"`
}

type DemoConfig struct {
	ActionsEnabled bool `mapstructure:"actions_enabled"`
}

// AuthConfig holds the per-role API keys checked by internal/api's auth
// middleware. A role with no keys configured is left open; this keeps the
// API usable in local/demo deployments without forcing key issuance.
type AuthConfig struct {
	RequesterKeys  []string `mapstructure:"requester_keys"`
	SolverKeys     []string `mapstructure:"solver_keys"`
	ChallengerKeys []string `mapstructure:"challenger_keys"`
}

func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.data_dir", "./data")
	v.SetDefault("verifier.url", "http://localhost:9090")
	v.SetDefault("asset.mode", "mock")
	v.SetDefault("asset.decimals", 18)
	v.SetDefault("asset.chain_id", 31337)
	v.SetDefault("windows.bidding_ms", 5*60*1000)
	v.SetDefault("windows.delivery_ms", 60*60*1000)
	v.SetDefault("windows.verify_ms", 10*60*1000)
	v.SetDefault("windows.challenge_ms", 24*60*60*1000)
	v.SetDefault("windows.patch_ms", 60*60*1000)
	v.SetDefault("challenge.milestone_splits", 1)
	v.SetDefault("challenge.max_quote_rewards", 20)
	v.SetDefault("challenge.sweep_interval_ms", 5000)
	v.SetDefault("demo.actions_enabled", false)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/app")
	_ = v.ReadInConfig()

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	bindings := map[string]string{
		"server.port":                 "PORT",
		"server.host":                 "HOST",
		"server.data_dir":             "DATA_DIR",
		"verifier.url":                "VERIFIER_URL",
		"asset.mode":                  "ASSET_MODE",
		"asset.rpc_url":               "ASSET_RPC_URL",
		"asset.ws_url":                "ASSET_WS_URL",
		"asset.private_key":           "ASSET_PRIVATE_KEY",
		"asset.address":               "ASSET_ADDRESS",
		"asset.decimals":              "ASSET_DECIMALS",
		"asset.chain_id":              "CHAIN_ID",
		"asset.contract_address":      "SESSION_CONTRACT_ADDRESS",
		"challenge.milestone_splits":  "MILESTONE_SPLITS",
		"challenge.max_quote_rewards": "MAX_QUOTE_REWARDS",
		"demo.actions_enabled":        "DEMO_ACTIONS",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}
	if err := v.BindEnv("challenge.duration_seconds_raw", "CHALLENGE_DURATION_SECONDS"); err != nil {
		return nil, fmt.Errorf("bind env CHALLENGE_DURATION_SECONDS: %w", err)
	}
	for key, env := range map[string]string{
		"auth.requester_keys_raw":  "REQUESTER_API_KEYS",
		"auth.solver_keys_raw":     "SOLVER_API_KEYS",
		"auth.challenger_keys_raw": "CHALLENGER_API_KEYS",
	} {
		if err := v.BindEnv(key, env); err != nil {
			return nil, fmt.Errorf("bind env %s: %w", env, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	// CHALLENGE_DURATION_SECONDS overrides windows.challenge_ms; the env var
	// is specified in seconds (spec §6), everything internal is milliseconds.
	if secs := v.GetInt64("challenge.duration_seconds_raw"); secs > 0 {
		cfg.Windows.ChallengeMs = secs * 1000
	}
	cfg.Auth.RequesterKeys = splitKeys(v.GetString("auth.requester_keys_raw"))
	cfg.Auth.SolverKeys = splitKeys(v.GetString("auth.solver_keys_raw"))
	cfg.Auth.ChallengerKeys = splitKeys(v.GetString("auth.challenger_keys_raw"))

	return cfg, cfg.validate()
}

func splitKeys(raw string) []string {
	if raw == "" {
		return nil
	}
	var keys []string
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

func (c *Config) validate() error {
	if c.Challenge.MilestoneSplits < 1 || c.Challenge.MilestoneSplits > 20 {
		return fmt.Errorf("required config invalid: MILESTONE_SPLITS must be in [1,20], got %d", c.Challenge.MilestoneSplits)
	}
	if c.Asset.Mode != "mock" && c.Asset.Mode != "real" {
		return fmt.Errorf("required config invalid: ASSET_MODE must be 'mock' or 'real', got %q", c.Asset.Mode)
	}
	if c.Asset.Mode == "real" {
		for _, r := range []struct{ val, name string }{
			{c.Asset.RPCURL, "ASSET_RPC_URL"},
			{c.Asset.PrivateKey, "ASSET_PRIVATE_KEY"},
			{c.Asset.ContractAddress, "SESSION_CONTRACT_ADDRESS"},
		} {
			if r.val == "" {
				return fmt.Errorf("required config missing: %s", r.name)
			}
		}
	}
	return nil
}
