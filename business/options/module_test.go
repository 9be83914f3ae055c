package options_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options"
	"github.com/fd1az/otoken-adapter/business/options/app"
	optionsDI "github.com/fd1az/otoken-adapter/business/options/di"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/config"
	"github.com/fd1az/otoken-adapter/internal/health"
	"github.com/fd1az/otoken-adapter/internal/logger"
	"github.com/fd1az/otoken-adapter/internal/monolith"
)

func memoryConfig() *config.Config {
	shared := config.AdapterConfig{
		Enabled:         true,
		WETH:            asset.AddrWETHEthereum.Hex(),
		Router:          "0x7a250d5630B4cF539739dF2C5dAcb4c659F2488D",
		PayoutBasis:     "strike",
		MintRounding:    "floor",
		CollateralFloor: "100000000",
		UnwrapPayouts:   true,
	}
	gamma := shared
	gamma.ZeroProfit = "revert"
	legacy := shared
	legacy.ZeroProfit = "noop"

	return &config.Config{
		App:   config.AppConfig{Name: "otoken-adapter", Backend: config.BackendMemory},
		Gamma: config.GammaConfig{AdapterConfig: gamma},
		Legacy: config.LegacyConfig{
			AdapterConfig: legacy,
			Owner:         "0x00000000000000000000000000000000000000aa",
			Pricer:        "exchange",
		},
		Journal: config.JournalConfig{Driver: "none"},
		Cache:   config.CacheConfig{Enabled: true, TTL: time.Minute, NumCounters: 1000, MaxCost: 100},
	}
}

func startModule(t *testing.T, cfg *config.Config) monolith.Monolith {
	t.Helper()

	mono, err := monolith.New(context.Background(), cfg, logger.NewNop(), health.NewServer(0, "test"))
	require.NoError(t, err)
	t.Cleanup(func() { mono.Close() })

	mod := &options.Module{}
	require.NoError(t, mono.RegisterModules(mod))
	require.NoError(t, mono.StartModules(context.Background(), mod))
	return mono
}

func TestModule_ResolvesEnabledAdapters(t *testing.T) {
	mono := startModule(t, memoryConfig())

	adapters := optionsDI.GetAdapters(mono.Services())
	require.Len(t, adapters, 2)
	assert.Equal(t, app.ProtocolGamma, adapters[0].ProtocolName())
	assert.Equal(t, app.ProtocolLegacy, adapters[1].ProtocolName())
	assert.Nil(t, optionsDI.GetQuoteSource(mono.Services()))
}

func TestModule_GammaLookupThroughCache(t *testing.T) {
	mono := startModule(t, memoryConfig())
	sr := mono.Services()

	terms := domain.OptionTerms{
		Underlying:      asset.AddrWETHEthereum,
		StrikeAsset:     asset.AddrUSDCEthereum,
		CollateralAsset: asset.AddrWETHEthereum,
		Expiry:          time.Date(2030, 1, 25, 8, 0, 0, 0, time.UTC),
		StrikePrice:     new(big.Int).Mul(big.NewInt(1500), big.NewInt(1e18)),
		OptionType:      domain.Call,
	}
	token, err := optionsDI.GetWorld(sr).Protocol.CreateToken(terms)
	require.NoError(t, err)

	gamma := optionsDI.GetGammaAdapter(sr)
	native := terms
	native.Underlying = asset.NativeAddress
	native.CollateralAsset = asset.NativeAddress

	for i := 0; i < 2; i++ {
		got, err := gamma.LookupOToken(context.Background(), native)
		require.NoError(t, err)
		assert.Equal(t, token, got)
	}

	unknown := terms
	unknown.StrikePrice = new(big.Int).Mul(big.NewInt(1600), big.NewInt(1e18))
	_, err = gamma.LookupOToken(context.Background(), unknown)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownOption))
}

func TestModule_LegacyDisabled(t *testing.T) {
	cfg := memoryConfig()
	cfg.Legacy.Enabled = false
	mono := startModule(t, cfg)

	assert.Nil(t, optionsDI.GetLegacyAdapter(mono.Services()))
	assert.Len(t, optionsDI.GetAdapters(mono.Services()), 1)
}
