package asset

import (
	"math/big"

	"github.com/holiman/uint256"
)

// MaxDecimals bounds the precision of any asset the adapter handles.
const MaxDecimals = 36

// Rounding selects what a downscale does with the discarded digits.
type Rounding uint8

const (
	// RoundDown truncates toward zero.
	RoundDown Rounding = iota
	// RoundHalfUp rounds to the nearest unit, ties away from zero.
	RoundHalfUp
)

// maxPow10 is the largest n with 10^n < 2^256.
const maxPow10 = 77

// Scale converts amount from `from` decimals to `to` decimals. Downscaling
// truncates; upscaling past 2^256-1 fails with ErrOverflow.
func Scale(amount *big.Int, from, to uint8) (*big.Int, error) {
	return ScaleWithRounding(amount, from, to, RoundDown)
}

// ScaleWithRounding is Scale with an explicit rounding mode for downscales.
func ScaleWithRounding(amount *big.Int, from, to uint8, mode Rounding) (*big.Int, error) {
	v, err := toUint256(amount)
	if err != nil {
		return nil, err
	}

	switch {
	case from == to:
		return v.ToBig(), nil

	case to > from:
		diff := int(to - from)
		if v.IsZero() {
			return new(big.Int), nil
		}
		if diff > maxPow10 {
			return nil, ErrOverflow
		}
		out, overflow := new(uint256.Int).MulOverflow(v, pow10(diff))
		if overflow {
			return nil, ErrOverflow
		}
		return out.ToBig(), nil

	default:
		diff := int(from - to)
		if diff > maxPow10 {
			// every 256-bit value is below 10^78
			return new(big.Int), nil
		}
		return divRound(v, pow10(diff), mode).ToBig(), nil
	}
}

// MulDiv returns a*b/denom, truncated. The product must fit in 256 bits.
func MulDiv(a, b, denom *big.Int) (*big.Int, error) {
	return MulDivWithRounding(a, b, denom, RoundDown)
}

// MulDivWithRounding is MulDiv with an explicit rounding mode.
func MulDivWithRounding(a, b, denom *big.Int, mode Rounding) (*big.Int, error) {
	x, err := toUint256(a)
	if err != nil {
		return nil, err
	}
	y, err := toUint256(b)
	if err != nil {
		return nil, err
	}
	d, err := toUint256(denom)
	if err != nil {
		return nil, err
	}
	if d.IsZero() {
		return nil, ErrDivisionByZero
	}

	product, overflow := new(uint256.Int).MulOverflow(x, y)
	if overflow {
		return nil, ErrOverflow
	}
	return divRound(product, d, mode).ToBig(), nil
}

// Pow10 returns 10^n as a big.Int.
func Pow10(n uint8) *big.Int {
	return new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(n)), nil)
}

func toUint256(v *big.Int) (*uint256.Int, error) {
	if v == nil {
		return nil, ErrNilRaw
	}
	if v.Sign() < 0 {
		return nil, ErrNegativeAmount
	}
	out, overflow := uint256.FromBig(v)
	if overflow {
		return nil, ErrOverflow
	}
	return out, nil
}

func pow10(n int) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(n)))
}

func divRound(v, d *uint256.Int, mode Rounding) *uint256.Int {
	q, r := new(uint256.Int).DivMod(v, d, new(uint256.Int))
	if mode == RoundHalfUp && !r.IsZero() {
		// r < d, so doubling cannot overflow and q+1 stays in range
		twice := new(uint256.Int).Lsh(r, 1)
		if !twice.Lt(d) {
			q.AddUint64(q, 1)
		}
	}
	return q
}
