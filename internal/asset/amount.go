package asset

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

var (
	ErrNilAsset        = errors.New("asset: nil asset")
	ErrNilRaw          = errors.New("asset: nil raw value")
	ErrNegativeAmount  = errors.New("asset: negative amount")
	ErrAssetMismatch   = errors.New("asset: price does not quote this asset")
	ErrTooManyDecimals = errors.New("asset: more decimals than the token carries")
	ErrDivisionByZero  = errors.New("asset: division by zero")
	ErrOverflow        = errors.New("asset: value exceeds 256 bits")
	ErrUnknownAsset    = errors.New("asset: unknown asset")
)

// Amount is a non-negative token quantity in base units.
type Amount struct {
	raw   *big.Int
	asset *Asset
}

// NewAmount copies raw. It panics on a nil asset, a nil raw or a negative
// raw; callers pass values they already validated.
func NewAmount(a *Asset, raw *big.Int) Amount {
	switch {
	case a == nil:
		panic(ErrNilAsset)
	case raw == nil:
		panic(ErrNilRaw)
	case raw.Sign() < 0:
		panic(ErrNegativeAmount)
	}
	return Amount{raw: new(big.Int).Set(raw), asset: a}
}

func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(a.raw)
}

func (a Amount) Asset() *Asset { return a.asset }
func (a Amount) IsZero() bool  { return a.raw == nil || a.raw.Sign() == 0 }

// ToDecimal is for display; arithmetic stays on Raw.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.asset == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.asset.Decimals()))
}

// ParseDecimal converts a human amount ("0.1" WETH) into base units. Values
// finer than the token's precision or wider than a uint256 are rejected.
func ParseDecimal(a *Asset, d decimal.Decimal) (Amount, error) {
	if a == nil {
		return Amount{}, ErrNilAsset
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}
	units := d.Shift(int32(a.Decimals()))
	if !units.Equal(units.Truncate(0)) {
		return Amount{}, fmt.Errorf("%w: %s has %d", ErrTooManyDecimals, a.Symbol(), a.Decimals())
	}
	raw := units.BigInt()
	if raw.BitLen() > 256 {
		return Amount{}, ErrOverflow
	}
	return Amount{raw: raw, asset: a}, nil
}

func ParseString(a *Asset, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("asset: invalid amount %q: %w", s, err)
	}
	return ParseDecimal(a, d)
}

// String renders "1.5 WETH".
func (a Amount) String() string {
	if a.asset == nil {
		return a.ToDecimal().String()
	}
	return a.ToDecimal().String() + " " + a.asset.Symbol()
}
