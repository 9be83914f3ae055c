package config_test

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad_MemoryBackendDefaults(t *testing.T) {
	path := writeConfig(t, `
app:
  backend: memory
`)
	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "otoken-adapter", cfg.App.Name)
	assert.True(t, cfg.Gamma.Enabled)
	assert.False(t, cfg.Legacy.Enabled)
	assert.Equal(t, "strike", cfg.Gamma.PayoutBasis)
	assert.Equal(t, "revert", cfg.Gamma.ZeroProfit)
	assert.Equal(t, "noop", cfg.Legacy.ZeroProfit)
	assert.Equal(t, "console", cfg.Journal.Driver)
	assert.Equal(t, 10*time.Minute, cfg.Cache.TTL)

	floor, err := cfg.Gamma.CollateralFloorInt()
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(100_000_000), floor)
	assert.Equal(t, "0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2", cfg.Gamma.WETHAddress().Hex())
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
app:
  backend: ethereum
`)
	t.Setenv("ADAPTER_ETH_HTTP_URL", "http://localhost:8545")
	t.Setenv("ADAPTER_ETH_PRIVATE_KEY", "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318")
	t.Setenv("ADAPTER_LOG_LEVEL", "debug")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8545", cfg.Ethereum.HTTPURL)
	assert.Equal(t, "debug", cfg.App.LogLevel)
	assert.Equal(t, uint64(1), cfg.Ethereum.ChainID)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr string
	}{
		{
			name:    "ethereum backend needs an rpc url",
			body:    "app:\n  backend: ethereum\n",
			wantErr: "ethereum.http_url",
		},
		{
			name:    "unknown backend",
			body:    "app:\n  backend: ganache\n",
			wantErr: "app.backend",
		},
		{
			name:    "nothing enabled",
			body:    "app:\n  backend: memory\ngamma:\n  enabled: false\n",
			wantErr: "at least one",
		},
		{
			name:    "legacy needs an owner",
			body:    "app:\n  backend: memory\nlegacy:\n  enabled: true\n",
			wantErr: "legacy.owner",
		},
		{
			name:    "legacy is memory only",
			body:    "app:\n  backend: ethereum\nethereum:\n  http_url: http://localhost:8545\n  private_key: abc\nlegacy:\n  enabled: true\n",
			wantErr: "memory backend",
		},
		{
			name:    "bad floor",
			body:    "app:\n  backend: memory\ngamma:\n  collateral_floor: lots\n",
			wantErr: "collateral_floor",
		},
		{
			name:    "postgres needs a dsn",
			body:    "app:\n  backend: memory\njournal:\n  driver: postgres\n",
			wantErr: "journal.dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("ADAPTER_ETH_HTTP_URL", "")
			t.Setenv("ETH_HTTP_URL", "")
			_, err := config.Load(writeConfig(t, tt.body))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
