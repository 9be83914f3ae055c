package domain_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

func ether(s string) *big.Int {
	a, err := asset.ParseString(asset.ETH, s)
	if err != nil {
		panic(err)
	}
	return a.Raw()
}

func terms(kind domain.OptionType, strike string, collateral common.Address) domain.OptionTerms {
	return domain.OptionTerms{
		Underlying:      asset.AddrWETHEthereum,
		StrikeAsset:     asset.AddrUSDCEthereum,
		CollateralAsset: collateral,
		Expiry:          time.Date(2021, 1, 29, 8, 0, 0, 0, time.UTC),
		StrikePrice:     ether(strike),
		OptionType:      kind,
	}
}

func TestExerciseProfit(t *testing.T) {
	call := terms(domain.Call, "960", asset.AddrWETHEthereum)
	put := terms(domain.Put, "800", asset.AddrUSDCEthereum)

	tests := []struct {
		name     string
		terms    domain.OptionTerms
		amount   string
		price    string
		decimals uint8
		basis    domain.PayoutBasis
		want     string
	}{
		{name: "call in the money", terms: call, amount: "0.1", price: "1080", decimals: 18, want: "12500000000000000"},
		{name: "call settlement basis", terms: call, amount: "0.1", price: "1100", decimals: 18, basis: domain.BasisSettlement, want: "12727272727272727"},
		{name: "call at the money", terms: call, amount: "0.1", price: "960", decimals: 18, want: "0"},
		{name: "call out of the money", terms: terms(domain.Call, "1480", asset.AddrWETHEthereum), amount: "0.1", price: "1100", decimals: 18, want: "0"},
		{name: "put in the money", terms: put, amount: "1", price: "700", decimals: 6, want: "100000000"},
		{name: "put truncates to collateral precision", terms: put, amount: "0.000000000000000001", price: "700", decimals: 6, want: "0"},
		{name: "put out of the money", terms: put, amount: "1", price: "900", decimals: 6, want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := domain.ExerciseProfit(tt.terms, ether(tt.amount), ether(tt.price), tt.decimals, tt.basis)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestExerciseProfit_Monotonic(t *testing.T) {
	call := terms(domain.Call, "960", asset.AddrWETHEthereum)
	put := terms(domain.Put, "800", asset.AddrUSDCEthereum)
	amount := ether("3")

	prevCall := big.NewInt(-1)
	prevPut := new(big.Int).Lsh(big.NewInt(1), 255)
	for price := int64(100); price <= 2000; price += 37 {
		s := new(big.Int).Mul(big.NewInt(price), asset.Pow10(18))

		c, err := domain.ExerciseProfit(call, amount, s, 18, domain.BasisStrike)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, c.Cmp(prevCall), 0, "call profit decreased at %d", price)
		prevCall = c

		p, err := domain.ExerciseProfit(put, amount, s, 6, domain.BasisStrike)
		require.NoError(t, err)
		assert.LessOrEqual(t, p.Cmp(prevPut), 0, "put profit increased at %d", price)
		prevPut = p
	}
}

func TestExerciseProfit_Overflow(t *testing.T) {
	call := terms(domain.Call, "1", asset.AddrWETHEthereum)
	huge := new(big.Int).Lsh(big.NewInt(1), 200)

	_, err := domain.ExerciseProfit(call, huge, huge, 18, domain.BasisStrike)
	assert.ErrorIs(t, err, asset.ErrOverflow)
}

func TestMintAmount(t *testing.T) {
	call := terms(domain.Call, "960", asset.AddrWETHEthereum)
	put := terms(domain.Put, "800", asset.AddrUSDCEthereum)

	t.Run("call scales 18 to 8", func(t *testing.T) {
		got, err := domain.MintAmount(call, ether("1"), 18, 8, asset.RoundDown)
		require.NoError(t, err)
		assert.Equal(t, "100000000", got.String())
	})

	t.Run("put divides by strike", func(t *testing.T) {
		got, err := domain.MintAmount(put, big.NewInt(1_000_000_000), 6, 8, asset.RoundDown)
		require.NoError(t, err)
		assert.Equal(t, "125000000", got.String())
	})

	t.Run("dust mints nothing", func(t *testing.T) {
		got, err := domain.MintAmount(call, big.NewInt(1), 18, 8, asset.RoundDown)
		require.NoError(t, err)
		assert.Zero(t, got.Sign())
	})

	t.Run("linear in collateral", func(t *testing.T) {
		for _, k := range []int64{1, 2, 3, 10, 250} {
			c := new(big.Int).Mul(big.NewInt(k), big.NewInt(800_000_000))
			got, err := domain.MintAmount(put, c, 6, 8, asset.RoundDown)
			require.NoError(t, err)
			assert.Equal(t, new(big.Int).Mul(big.NewInt(k), big.NewInt(100_000_000)).String(), got.String())
		}
	})

	t.Run("half up rounding", func(t *testing.T) {
		// 2 USDC at strike 3 is 0.666666.. options
		odd := terms(domain.Put, "3", asset.AddrUSDCEthereum)
		down, err := domain.MintAmount(odd, big.NewInt(2_000_000), 6, 8, asset.RoundDown)
		require.NoError(t, err)
		up, err := domain.MintAmount(odd, big.NewInt(2_000_000), 6, 8, asset.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "66666666", down.String())
		assert.Equal(t, "66666667", up.String())
	})

	t.Run("half up rounds once when downscaling", func(t *testing.T) {
		// 29999999999 wei at strike 2 is 1.49999999995 options of 8 decimals
		wethPut := terms(domain.Put, "2", asset.AddrWETHEthereum)
		got, err := domain.MintAmount(wethPut, big.NewInt(29_999_999_999), 18, 8, asset.RoundHalfUp)
		require.NoError(t, err)
		assert.Equal(t, "1", got.String())
	})
}

func TestParsePayoutBasis(t *testing.T) {
	b, err := domain.ParsePayoutBasis("Settlement")
	require.NoError(t, err)
	assert.Equal(t, domain.BasisSettlement, b)

	b, err = domain.ParsePayoutBasis("")
	require.NoError(t, err)
	assert.Equal(t, domain.BasisStrike, b)

	_, err = domain.ParsePayoutBasis("spot")
	assert.Error(t, err)
}
