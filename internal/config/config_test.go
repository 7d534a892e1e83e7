package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Server.Port)
	require.Equal(t, "mock", cfg.Asset.Mode)
	require.Equal(t, int64(5*60*1000), cfg.Windows.BiddingMs)
	require.Equal(t, 1, cfg.Challenge.MilestoneSplits)
}

func TestValidateRejectsBadMilestoneSplits(t *testing.T) {
	cfg := &Config{Asset: AssetConfig{Mode: "mock"}, Challenge: ChallengeConfig{MilestoneSplits: 0}}
	require.Error(t, cfg.validate())
}

func TestValidateRejectsUnknownAssetMode(t *testing.T) {
	cfg := &Config{Asset: AssetConfig{Mode: "bogus"}, Challenge: ChallengeConfig{MilestoneSplits: 1}}
	require.Error(t, cfg.validate())
}

func TestValidateRequiresRealAssetFields(t *testing.T) {
	cfg := &Config{Asset: AssetConfig{Mode: "real"}, Challenge: ChallengeConfig{MilestoneSplits: 1}}
	require.Error(t, cfg.validate())

	cfg.Asset.RPCURL = "http://rpc"
	cfg.Asset.PrivateKey = "0xkey"
	cfg.Asset.ContractAddress = "0xcontract"
	require.NoError(t, cfg.validate())
}

func TestChallengeDurationSecondsOverridesEnv(t *testing.T) {
	t.Setenv("CHALLENGE_DURATION_SECONDS", "120")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, int64(120*1000), cfg.Windows.ChallengeMs)
}

func TestLoadDefaultsAuthKeysEmpty(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.Empty(t, cfg.Auth.RequesterKeys)
	require.Empty(t, cfg.Auth.SolverKeys)
	require.Empty(t, cfg.Auth.ChallengerKeys)
}

func TestAuthKeysParsedFromEnv(t *testing.T) {
	t.Setenv("REQUESTER_API_KEYS", "req-1, req-2 ,req-3")
	t.Setenv("SOLVER_API_KEYS", "sol-1")
	cfg, err := Load()
	require.NoError(t, err)
	require.Equal(t, []string{"req-1", "req-2", "req-3"}, cfg.Auth.RequesterKeys)
	require.Equal(t, []string{"sol-1"}, cfg.Auth.SolverKeys)
	require.Empty(t, cfg.Auth.ChallengerKeys)
}

func TestSplitKeysTrimsAndDropsEmpty(t *testing.T) {
	require.Nil(t, splitKeys(""))
	require.Equal(t, []string{"a", "b"}, splitKeys(" a , ,b,"))
}
