// Package domain holds the value types of the options adapter: option
// terms, option tokens, swap orders, vaults and the payoff arithmetic.
package domain

import (
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// OptionType is put or call. The values are the protocol wire values.
type OptionType uint8

const (
	Put  OptionType = 1
	Call OptionType = 2
)

func (t OptionType) String() string {
	switch t {
	case Put:
		return "PUT"
	case Call:
		return "CALL"
	default:
		return fmt.Sprintf("OptionType(%d)", uint8(t))
	}
}

// Valid reports whether t is Put or Call.
func (t OptionType) Valid() bool {
	return t == Put || t == Call
}

// StrikeDecimals is the fixed-point precision of strike and settlement prices.
const StrikeDecimals = 18

// OptionTerms fully describe an option series. Terms are values: two
// terms with the same fields address the same option token.
type OptionTerms struct {
	Underlying      common.Address
	StrikeAsset     common.Address
	CollateralAsset common.Address
	Expiry          time.Time
	StrikePrice     *big.Int // StrikeDecimals fixed point
	OptionType      OptionType
}

// Validate checks the terms are well formed.
func (t OptionTerms) Validate() error {
	if !t.OptionType.Valid() {
		return fmt.Errorf("invalid option type %d", t.OptionType)
	}
	if t.StrikePrice == nil || t.StrikePrice.Sign() <= 0 {
		return fmt.Errorf("strike price must be positive")
	}
	if t.Expiry.IsZero() || t.Expiry.Unix() <= 0 {
		return fmt.Errorf("expiry must be set")
	}
	return nil
}

// Key is the canonical hash of the terms. Equal terms have equal keys.
func (t OptionTerms) Key() common.Hash {
	strike := new(big.Int)
	if t.StrikePrice != nil {
		strike = t.StrikePrice
	}
	return crypto.Keccak256Hash(
		common.LeftPadBytes(t.Underlying.Bytes(), 32),
		common.LeftPadBytes(t.StrikeAsset.Bytes(), 32),
		common.LeftPadBytes(t.CollateralAsset.Bytes(), 32),
		common.LeftPadBytes(big.NewInt(t.Expiry.Unix()).Bytes(), 32),
		common.LeftPadBytes(strike.Bytes(), 32),
		common.LeftPadBytes([]byte{byte(t.OptionType)}, 32),
	)
}

// Equal compares terms field by field. Expiry is compared at second resolution.
func (t OptionTerms) Equal(o OptionTerms) bool {
	return t.Key() == o.Key()
}

// Expired reports whether the option is past expiry at now. Expiry itself
// counts as expired.
func (t OptionTerms) Expired(now time.Time) bool {
	return !now.Before(t.Expiry)
}

// WithAssets returns a copy of the terms with the native currency replaced
// by wrapped in every asset slot.
func (t OptionTerms) WithAssets(native, wrapped common.Address) OptionTerms {
	swap := func(a common.Address) common.Address {
		if a == native {
			return wrapped
		}
		return a
	}
	out := t
	out.Underlying = swap(t.Underlying)
	out.StrikeAsset = swap(t.StrikeAsset)
	out.CollateralAsset = swap(t.CollateralAsset)
	return out
}

func (t OptionTerms) String() string {
	return fmt.Sprintf("%s %s/%s strike=%s exp=%s", t.OptionType, t.Underlying.Hex(),
		t.StrikeAsset.Hex(), t.StrikePrice, t.Expiry.UTC().Format(time.RFC3339))
}

// OptionToken is an issued option series.
type OptionToken struct {
	Address  common.Address
	Terms    OptionTerms
	Decimals uint8 // total supply scale
}
