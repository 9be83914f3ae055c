package asset

import (
	"fmt"
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PricePrecision is the internal precision of a Price.
const PricePrecision = 18

var pricePrecisionMultiplier = Pow10(PricePrecision)

// Price is the value of one unit of base expressed in quote, stored as a
// fixed-point integer with PricePrecision decimals. Oracle quotes of any
// precision are normalised into this form.
type Price struct {
	rate      *big.Int
	base      *Asset
	quote     *Asset
	timestamp time.Time
}

// NewPriceFromRaw creates a price from an oracle value carrying `decimals`
// digits of precision (Gamma oracles report 8).
func NewPriceFromRaw(base, quote *Asset, raw *big.Int, decimals uint8, ts time.Time) (Price, error) {
	if base == nil || quote == nil {
		return Price{}, ErrNilAsset
	}
	rate, err := Scale(raw, decimals, PricePrecision)
	if err != nil {
		return Price{}, err
	}
	return Price{rate: rate, base: base, quote: quote, timestamp: ts}, nil
}

// NewPrice creates a price from a decimal rate. Boundary use only.
func NewPrice(base, quote *Asset, rate decimal.Decimal, ts time.Time) Price {
	if base == nil || quote == nil {
		panic("asset: nil base or quote in price")
	}
	if rate.IsNegative() {
		panic("asset: negative price rate")
	}
	return Price{rate: rate.Shift(PricePrecision).BigInt(), base: base, quote: quote, timestamp: ts}
}

// Rate returns the price rate as a decimal.
func (p Price) Rate() decimal.Decimal {
	if p.rate == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(p.rate, -PricePrecision)
}

// RateRaw returns the raw fixed-point rate.
func (p Price) RateRaw() *big.Int {
	if p.rate == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(p.rate)
}

func (p Price) Base() *Asset         { return p.base }
func (p Price) Quote() *Asset        { return p.quote }
func (p Price) Timestamp() time.Time { return p.timestamp }
func (p Price) IsZero() bool         { return p.rate == nil || p.rate.Sign() == 0 }

// Invert returns the inverse price (e.g., ETH/USDC -> USDC/ETH).
func (p Price) Invert() Price {
	inv := Price{rate: big.NewInt(0), base: p.quote, quote: p.base, timestamp: p.timestamp}
	if p.IsZero() {
		return inv
	}
	precisionSquared := new(big.Int).Mul(pricePrecisionMultiplier, pricePrecisionMultiplier)
	inv.rate = new(big.Int).Div(precisionSquared, p.rate)
	return inv
}

// Convert converts an amount of base into quote, truncating.
//
//	quoteRaw = baseRaw * rate / 10^(18 + baseDecimals - quoteDecimals)
func (p Price) Convert(amount Amount) (Amount, error) {
	if amount.Asset() == nil {
		return Amount{}, ErrNilAsset
	}
	if amount.Asset().ID() != p.base.ID() {
		return Amount{}, fmt.Errorf("%w: expected %s, got %s",
			ErrAssetMismatch, p.base.Symbol(), amount.Asset().Symbol())
	}

	// divide once so the precision of the wider asset is kept
	exp := PricePrecision + int(p.base.Decimals()) - int(p.quote.Decimals())
	var (
		out *big.Int
		err error
	)
	if exp >= 0 {
		out, err = MulDiv(amount.Raw(), p.RateRaw(), Pow10(uint8(exp)))
	} else {
		out, err = MulDiv(amount.Raw(), new(big.Int).Mul(p.RateRaw(), Pow10(uint8(-exp))), big.NewInt(1))
	}
	if err != nil {
		return Amount{}, err
	}
	return NewAmount(p.quote, out), nil
}

// String returns a human-readable representation.
func (p Price) String() string {
	return fmt.Sprintf("%s %s/%s", p.Rate().String(), p.base.Symbol(), p.quote.Symbol())
}
