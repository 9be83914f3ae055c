package asset_test

import (
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/internal/asset"
)

func TestAmount_Display(t *testing.T) {
	half := asset.NewAmount(asset.WETH, big.NewInt(5e17))

	assert.False(t, half.IsZero())
	assert.True(t, half.ToDecimal().Equal(decimal.RequireFromString("0.5")))
	assert.Equal(t, "0.5 WETH", half.String())
	assert.True(t, asset.Amount{}.IsZero())
	assert.Equal(t, "0", asset.Amount{}.Raw().String())
}

func TestAmount_RawIsCopied(t *testing.T) {
	raw := big.NewInt(100)
	amt := asset.NewAmount(asset.USDC, raw)
	raw.SetInt64(1)
	amt.Raw().SetInt64(2)

	assert.Equal(t, int64(100), amt.Raw().Int64())
}

func TestNewAmount_PanicsOnNegative(t *testing.T) {
	assert.PanicsWithValue(t, asset.ErrNegativeAmount, func() {
		asset.NewAmount(asset.USDC, big.NewInt(-1))
	})
}

func TestParseString(t *testing.T) {
	amt, err := asset.ParseString(asset.USDC, "1000.5")
	require.NoError(t, err)
	assert.Equal(t, int64(1_000_500_000), amt.Raw().Int64())
	assert.Same(t, asset.USDC, amt.Asset())

	_, err = asset.ParseString(asset.USDC, "1.0000001")
	assert.ErrorIs(t, err, asset.ErrTooManyDecimals)

	_, err = asset.ParseString(asset.USDC, "-1")
	assert.ErrorIs(t, err, asset.ErrNegativeAmount)

	_, err = asset.ParseString(asset.USDC, "ten")
	assert.Error(t, err)

	_, err = asset.ParseString(asset.WETH, "1"+strings.Repeat("0", 60))
	assert.ErrorIs(t, err, asset.ErrOverflow)
}

func TestPrice_FromOracle(t *testing.T) {
	// 8 decimal oracle answer for 1100 USDC per ETH
	price, err := asset.NewPriceFromRaw(asset.ETH, asset.USDC, big.NewInt(110000000000), 8, time.Now())
	require.NoError(t, err)
	assert.True(t, price.Rate().Equal(decimal.NewFromInt(1100)))

	usdc, err := price.Convert(asset.NewAmount(asset.ETH, big.NewInt(1e17)))
	require.NoError(t, err)
	assert.Equal(t, int64(110_000_000), usdc.Raw().Int64())

	eth, err := price.Invert().Convert(asset.NewAmount(asset.USDC, big.NewInt(1_100_000_000)))
	require.NoError(t, err)
	// the inverted rate is truncated at 18 decimals
	assert.Equal(t, "999999999999999900", eth.Raw().String())

	_, err = price.Convert(asset.NewAmount(asset.WETH, big.NewInt(1)))
	assert.ErrorIs(t, err, asset.ErrAssetMismatch)
}

func TestRegistry(t *testing.T) {
	r := asset.DefaultRegistry()
	assert.Equal(t, 4, r.Count())

	d, err := r.Decimals(asset.AddrUSDCEthereum)
	require.NoError(t, err)
	assert.Equal(t, uint8(6), d)

	d, err = r.Decimals(asset.NativeAddress)
	require.NoError(t, err)
	assert.Equal(t, uint8(18), d)

	foreign := asset.NewToken(asset.ChainIDSepolia, asset.AddrUSDCEthereum, "USDC", 6)
	assert.Error(t, r.Register(foreign))
}
