package app_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/business/options/infra/memory"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

var (
	expiry = time.Date(2021, 1, 29, 8, 0, 0, 0, time.UTC)

	self  = memory.Addr("adapter")
	alice = memory.Addr("alice")
	owner = memory.Addr("owner")

	weth = asset.AddrWETHEthereum
	usdc = asset.AddrUSDCEthereum
)

// ether converts a decimal string to 18 decimal fixed point.
func ether(s string) *big.Int {
	return decimal.RequireFromString(s).Shift(18).BigInt()
}

func callTerms(strike string) domain.OptionTerms {
	return domain.OptionTerms{
		Underlying:      weth,
		StrikeAsset:     usdc,
		CollateralAsset: weth,
		Expiry:          expiry,
		StrikePrice:     ether(strike),
		OptionType:      domain.Call,
	}
}

func putTerms(strike string) domain.OptionTerms {
	return domain.OptionTerms{
		Underlying:      weth,
		StrikeAsset:     usdc,
		CollateralAsset: usdc,
		Expiry:          expiry,
		StrikePrice:     ether(strike),
		OptionType:      domain.Put,
	}
}

func gammaSettings() app.Settings {
	return app.Settings{
		Self:             self,
		CollateralFloors: map[common.Address]*big.Int{weth: app.DefaultWrappedFloor},
		UnwrapPayouts:    true,
	}
}

type fixture struct {
	t       *testing.T
	ctx     context.Context
	world   *memory.World
	adapter *app.Facade
}

func newGammaFixture(t *testing.T, settings app.Settings) *fixture {
	t.Helper()

	world := memory.NewWorld(expiry.Add(-24*time.Hour), settings.PayoutBasis)
	adapter, err := app.NewGammaAdapter(world.Dependencies(logger.NewNop()), settings)
	require.NoError(t, err)

	return &fixture{t: t, ctx: context.Background(), world: world, adapter: adapter}
}

func (f *fixture) createToken(terms domain.OptionTerms) common.Address {
	f.t.Helper()
	token, err := f.world.Protocol.CreateToken(terms)
	require.NoError(f.t, err)
	return token
}

// fundWETH gives holder amount of properly backed wrapped native.
func (f *fixture) fundWETH(holder common.Address, amount *big.Int) {
	f.t.Helper()
	f.world.Chain.Mint(asset.NativeAddress, holder, amount)
	require.NoError(f.t, f.world.Wrapped.Wrap(f.ctx, holder, amount))
}

func (f *fixture) balance(token, holder common.Address) *big.Int {
	f.t.Helper()
	bal, err := f.world.Chain.BalanceOf(f.ctx, token, holder)
	require.NoError(f.t, err)
	return bal
}

// assertNoCustody fails if the adapter holds anything of tokens.
func (f *fixture) assertNoCustody(tokens ...common.Address) {
	f.t.Helper()
	for _, token := range append(tokens, asset.NativeAddress, weth, usdc) {
		require.Zero(f.t, f.balance(token, self).Sign(), "adapter holds %s", token.Hex())
	}
}

func (f *fixture) settle(price string, finalized bool) {
	f.world.Chain.SetNow(expiry.Add(time.Hour))
	f.world.Oracle.SetExpiryPrice(weth, expiry, decimal.RequireFromString(price).Shift(memory.OracleDecimals).BigInt(), finalized)
}
