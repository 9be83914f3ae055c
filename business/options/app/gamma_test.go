package app_test

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

func TestGamma_Identity(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	assert.Equal(t, "OPYN_GAMMA", f.adapter.ProtocolName())
	assert.False(t, f.adapter.NonFungible())

	premium, err := f.adapter.Premium(f.ctx, callTerms("960"), ether("0.1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownOption))
	assert.Nil(t, premium)

	f.createToken(callTerms("960"))
	premium, err = f.adapter.Premium(f.ctx, callTerms("960"), ether("0.1"))
	require.NoError(t, err)
	assert.Zero(t, premium.Sign(), "priced by the swap order")
}

func TestGamma_LookupOToken(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))

	got, err := f.adapter.LookupOToken(f.ctx, callTerms("960"))
	require.NoError(t, err)
	assert.Equal(t, token, got)

	// the native currency is looked up as its wrapper
	native := callTerms("960")
	native.Underlying = asset.NativeAddress
	native.CollateralAsset = asset.NativeAddress
	got, err = f.adapter.LookupOToken(f.ctx, native)
	require.NoError(t, err)
	assert.Equal(t, token, got)

	_, err = f.adapter.LookupOToken(f.ctx, callTerms("961"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownOption))

	bad := callTerms("960")
	bad.StrikePrice = big.NewInt(0)
	_, err = f.adapter.LookupOToken(f.ctx, bad)
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownOption))
}

func TestGamma_CreateShort(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))

	vault, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	require.NoError(t, err)

	assert.Equal(t, self, vault.Owner)
	assert.Equal(t, domain.VaultID(1), vault.ID)
	assert.Equal(t, ether("0.1"), vault.CollateralAmount)
	assert.Equal(t, big.NewInt(10_000_000), vault.MintedAmount)
	assert.Equal(t, big.NewInt(10_000_000), f.balance(token, alice))
	assert.Equal(t, ether("0.1"), f.balance(weth, f.world.Protocol.Pool))
	assert.Equal(t, ether("0.9"), f.balance(weth, alice))
	f.assertNoCustody(token)

	second, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.2"))
	require.NoError(t, err)
	assert.Equal(t, domain.VaultID(2), second.ID)
	assert.Equal(t, new(big.Int).Mul(vault.MintedAmount, big.NewInt(2)), second.MintedAmount)

	events := f.world.Events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventShortCreated, events[0].Type)
}

func TestGamma_CreateShort_Floor(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))

	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), big.NewInt(1))
	assert.True(t, apperror.HasCode(err, apperror.CodeCollateralTooSmall))
	assert.Zero(t, f.balance(weth, f.world.Protocol.Pool).Sign())

	vault, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), big.NewInt(100_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(1), vault.MintedAmount)
	assert.Equal(t, big.NewInt(100_000_000), f.balance(weth, f.world.Protocol.Pool))
	assert.Equal(t, big.NewInt(1), f.balance(token, alice))
}

func TestGamma_CreateShort_Put(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(putTerms("800"))
	f.world.Chain.Mint(usdc, alice, big.NewInt(1_000_000_000))

	vault, err := f.adapter.CreateShort(f.ctx, alice, putTerms("800"), big.NewInt(1_000_000_000))
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(125_000_000), vault.MintedAmount)
	assert.Equal(t, big.NewInt(125_000_000), f.balance(token, alice))
	assert.Equal(t, big.NewInt(1_000_000_000), f.balance(usdc, f.world.Protocol.Pool))
}

func TestGamma_CreateShort_UnknownTerms(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	f.fundWETH(alice, ether("1"))

	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidOption))
	assert.Equal(t, ether("1"), f.balance(weth, alice))
}

func TestGamma_CreateShort_RollsBackOnFailure(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("0.05"))

	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeInsufficientFunds))
	assert.Equal(t, ether("0.05"), f.balance(weth, alice))
	assert.Empty(t, f.world.Events.Events())
}

// shortAndSettle writes 0.1 calls for alice and settles them at price.
func shortAndSettle(t *testing.T, f *fixture, price string) common.Address {
	t.Helper()
	token := f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))
	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	require.NoError(t, err)
	f.settle(price, true)
	return token
}

func TestGamma_Exercise_InTheMoney(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := shortAndSettle(t, f, "1080")

	profit, err := f.adapter.ExerciseProfit(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.Equal(t, "12500000000000000", profit.String())

	ok, err := f.adapter.CanExercise(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.True(t, ok)

	nativeBefore := f.balance(asset.NativeAddress, alice)
	payout, err := f.adapter.Exercise(f.ctx, app.ExerciseRequest{Caller: alice, Token: token, Amount: ether("0.1")})
	require.NoError(t, err)
	assert.Equal(t, profit, payout)

	assert.Zero(t, f.balance(token, alice).Sign())
	assert.Equal(t, new(big.Int).Add(nativeBefore, payout), f.balance(asset.NativeAddress, alice))
	f.assertNoCustody(token)

	events := f.world.Events.Events()
	require.Len(t, events, 2)
	assert.Equal(t, domain.EventExercised, events[1].Type)
	assert.Equal(t, payout, events[1].Value)
}

func TestGamma_Exercise_SettlementBasis(t *testing.T) {
	settings := gammaSettings()
	settings.PayoutBasis = domain.BasisSettlement
	settings.UnwrapPayouts = false

	f := newGammaFixture(t, settings)
	token := shortAndSettle(t, f, "1100")
	recipient := common.HexToAddress("0x00000000000000000000000000000000000000b0")

	wethBefore := f.balance(weth, alice)
	payout, err := f.adapter.Exercise(f.ctx, app.ExerciseRequest{
		Caller:    alice,
		Token:     token,
		Amount:    ether("0.1"),
		Recipient: recipient,
	})
	require.NoError(t, err)
	assert.Equal(t, "12727272727272727", payout.String())
	assert.Equal(t, payout, f.balance(weth, recipient))
	assert.Equal(t, wethBefore, f.balance(weth, alice))
	f.assertNoCustody(token)
}

func TestGamma_Exercise_BeforeExpiry(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))
	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	require.NoError(t, err)
	f.world.Oracle.SetPrice(weth, big.NewInt(2000_00000000))

	ok, err := f.adapter.CanExercise(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.False(t, ok)

	// before expiry the profit is indicative, at spot
	profit, err := f.adapter.ExerciseProfit(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.Positive(t, profit.Sign())

	_, err = f.adapter.Exercise(f.ctx, app.ExerciseRequest{Caller: alice, Token: token, Amount: ether("0.1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeNotYetExpired))
	assert.Equal(t, big.NewInt(10_000_000), f.balance(token, alice))
}

func TestGamma_Exercise_OutOfTheMoney(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := shortAndSettle(t, f, "900")

	profit, err := f.adapter.ExerciseProfit(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.Zero(t, profit.Sign())

	ok, err := f.adapter.CanExercise(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.adapter.Exercise(f.ctx, app.ExerciseRequest{Caller: alice, Token: token, Amount: ether("0.1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeZeroProfit))
	assert.Equal(t, big.NewInt(10_000_000), f.balance(token, alice))
}

func TestGamma_Exercise_PriceNotFinalized(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))
	_, err := f.adapter.CreateShort(f.ctx, alice, callTerms("960"), ether("0.1"))
	require.NoError(t, err)
	f.settle("1080", false)

	ok, err := f.adapter.CanExercise(f.ctx, token, 0, ether("0.1"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.adapter.Exercise(f.ctx, app.ExerciseRequest{Caller: alice, Token: token, Amount: ether("0.1")})
	assert.True(t, apperror.HasCode(err, apperror.CodeInvalidState))
}

func TestGamma_ExerciseProfit_Monotonic(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	token := f.createToken(callTerms("960"))
	f.world.Chain.SetNow(expiry.Add(1))

	prev := new(big.Int)
	for _, price := range []string{"900", "960", "1000", "1080", "1500"} {
		f.world.Oracle.SetExpiryPrice(weth, expiry, ether(price).Div(ether(price), big.NewInt(10_000_000_000)), true)
		profit, err := f.adapter.ExerciseProfit(f.ctx, token, 0, ether("1"))
		require.NoError(t, err)
		assert.GreaterOrEqual(t, profit.Cmp(prev), 0, "price %s", price)
		prev = profit
	}
}

func TestGamma_Exercise_UnknownToken(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	_, err := f.adapter.ExerciseProfit(f.ctx, common.HexToAddress("0x01"), 0, ether("1"))
	assert.True(t, apperror.HasCode(err, apperror.CodeUnknownOption))
}

func TestGamma_EventSinkFailureDoesNotFailOperation(t *testing.T) {
	f := newGammaFixture(t, gammaSettings())
	f.createToken(callTerms("960"))
	f.fundWETH(alice, ether("1"))
	f.world.Events.Err = errors.New("journal down")

	_, err := f.adapter.CreateShort(context.Background(), alice, callTerms("960"), ether("0.1"))
	require.NoError(t, err)
}
