package domain

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/fd1az/otoken-adapter/internal/asset"
)

// OptionDecimals is the canonical precision of option quantities handed to
// the adapter: 10^18 is one option.
const OptionDecimals = 18

var wad = asset.Pow10(StrikeDecimals)

// PayoutBasis selects the denominator of a call payoff.
type PayoutBasis uint8

const (
	// BasisStrike pays (S-K)/K per option.
	BasisStrike PayoutBasis = iota
	// BasisSettlement pays (S-K)/S per option, the cash-settled value of
	// the intrinsic amount in the underlying.
	BasisSettlement
)

// ParsePayoutBasis parses "strike" or "settlement".
func ParsePayoutBasis(s string) (PayoutBasis, error) {
	switch strings.ToLower(s) {
	case "", "strike":
		return BasisStrike, nil
	case "settlement":
		return BasisSettlement, nil
	default:
		return 0, fmt.Errorf("unknown payout basis %q", s)
	}
}

func (b PayoutBasis) String() string {
	if b == BasisSettlement {
		return "settlement"
	}
	return "strike"
}

// ExerciseProfit returns the payoff of amount options (OptionDecimals) at
// settlementPrice (StrikeDecimals), in collateralDecimals units, truncated.
//
//	call: max(0, S-K) * amount / K   (or / S with BasisSettlement)
//	put:  max(0, K-S) * amount
func ExerciseProfit(terms OptionTerms, amount, settlementPrice *big.Int, collateralDecimals uint8, basis PayoutBasis) (*big.Int, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if amount == nil || settlementPrice == nil {
		return nil, fmt.Errorf("amount and settlement price are required")
	}
	if amount.Sign() < 0 || settlementPrice.Sign() < 0 {
		return nil, asset.ErrNegativeAmount
	}

	strike := terms.StrikePrice
	var profit *big.Int
	var err error

	switch terms.OptionType {
	case Call:
		if settlementPrice.Cmp(strike) <= 0 {
			return new(big.Int), nil
		}
		intrinsic := new(big.Int).Sub(settlementPrice, strike)
		denom := strike
		if basis == BasisSettlement {
			denom = settlementPrice
		}
		profit, err = asset.MulDiv(intrinsic, amount, denom)
	case Put:
		if settlementPrice.Cmp(strike) >= 0 {
			return new(big.Int), nil
		}
		intrinsic := new(big.Int).Sub(strike, settlementPrice)
		profit, err = asset.MulDiv(intrinsic, amount, wad)
	}
	if err != nil {
		return nil, err
	}

	return asset.Scale(profit, OptionDecimals, collateralDecimals)
}

// MintAmount returns how many option tokens (tokenDecimals) collateral
// (collateralDecimals) backs.
//
//	call: collateral, rescaled
//	put:  collateral * 10^18 * 10^tokenDecimals / (K * 10^collateralDecimals)
//
// The put is rounded once.
func MintAmount(terms OptionTerms, collateral *big.Int, collateralDecimals, tokenDecimals uint8, mode asset.Rounding) (*big.Int, error) {
	if err := terms.Validate(); err != nil {
		return nil, err
	}
	if terms.OptionType != Put {
		return asset.ScaleWithRounding(collateral, collateralDecimals, tokenDecimals, mode)
	}

	num, err := asset.MulDiv(collateral, wad, big.NewInt(1))
	if err != nil {
		return nil, err
	}
	num, err = asset.ScaleWithRounding(num, 0, tokenDecimals, mode)
	if err != nil {
		return nil, err
	}
	den, err := asset.ScaleWithRounding(terms.StrikePrice, 0, collateralDecimals, mode)
	if err != nil {
		return nil, err
	}
	return asset.MulDivWithRounding(num, big.NewInt(1), den, mode)
}
