package app

import (
	"context"
	"errors"
	"math"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// Pricer prices amount (domain.OptionDecimals) of an option token in
// native currency.
type Pricer interface {
	Quote(ctx context.Context, token domain.OptionToken, amount *big.Int) (*big.Int, error)
}

// Quoter resolves terms and asks its Pricer for a premium.
type Quoter struct {
	resolver *Resolver
	pricer   Pricer
	logger   logger.LoggerInterface
}

// NewQuoter creates a Quoter.
func NewQuoter(resolver *Resolver, pricer Pricer, log logger.LoggerInterface) *Quoter {
	return &Quoter{resolver: resolver, pricer: pricer, logger: log}
}

// Quote returns the premium for amount options on terms. A zero premium
// means the price is set elsewhere (by the swap order).
func (q *Quoter) Quote(ctx context.Context, terms domain.OptionTerms, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amount")
	}
	token, err := q.resolver.Resolve(ctx, terms)
	if err != nil {
		return nil, err
	}

	premium, err := q.pricer.Quote(ctx, token, amount)
	if err != nil {
		return nil, arithError(err)
	}

	q.logger.Debug(ctx, "premium quoted",
		"token", token.Address.Hex(),
		"amount", amount.String(),
		"premium", premium.String(),
	)
	return premium, nil
}

// ExternalPricer is used where the price is carried by the swap order.
type ExternalPricer struct{}

// Quote returns the sentinel zero.
func (ExternalPricer) Quote(context.Context, domain.OptionToken, *big.Int) (*big.Int, error) {
	return new(big.Int), nil
}

// ExchangePricer prices options at the Exchange's output price.
type ExchangePricer struct {
	Exchange Exchange
}

// Quote returns the native cost of buying amount tokens from the pool.
func (p ExchangePricer) Quote(ctx context.Context, token domain.OptionToken, amount *big.Int) (*big.Int, error) {
	tokens, err := asset.Scale(amount, domain.OptionDecimals, token.Decimals)
	if err != nil {
		return nil, err
	}
	if tokens.Sign() == 0 {
		return new(big.Int), nil
	}
	return p.Exchange.OutputPrice(ctx, token.Address, tokens)
}

// FormulaPricer prices options with Black-Scholes on the oracle spot.
type FormulaPricer struct {
	Oracle   Oracle
	Clock    Clock
	Registry *asset.Registry
	// PriceAsset is what the oracle prices the native currency as,
	// usually the wrapped token.
	PriceAsset common.Address
	// Volatility and Rate are annualised.
	Volatility float64
	Rate       float64
}

const secondsPerYear = 365 * 24 * 60 * 60

// Quote returns the Black-Scholes premium of amount options in native currency.
func (p FormulaPricer) Quote(ctx context.Context, token domain.OptionToken, amount *big.Int) (*big.Int, error) {
	terms := token.Terms

	spot, err := p.Oracle.Price(ctx, terms.Underlying)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExternalServiceError, "underlying price")
	}
	S, _ := decimal.NewFromBigInt(spot.Value, -int32(spot.Decimals)).Float64()
	K, _ := decimal.NewFromBigInt(terms.StrikePrice, -domain.StrikeDecimals).Float64()
	T := terms.Expiry.Sub(p.Clock.Now()).Seconds() / secondsPerYear

	perOption := blackScholes(S, K, T, p.Rate, p.Volatility, terms.OptionType)
	if math.IsNaN(perOption) || math.IsInf(perOption, 0) {
		return nil, apperror.New(apperror.CodeInvalidInput, apperror.WithContext("premium is not finite"))
	}
	perOption = math.Max(perOption, 0)

	strikeAsset, ok := p.Registry.Get(terms.StrikeAsset)
	if !ok {
		return nil, apperror.Validation(apperror.CodeInvalidOption, "unknown strike asset "+terms.StrikeAsset.Hex())
	}
	native, ok := p.Registry.Get(asset.NativeAddress)
	if !ok {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("native asset not registered"))
	}

	total := decimal.NewFromFloat(perOption).
		Mul(decimal.NewFromBigInt(amount, -domain.OptionDecimals)).
		Truncate(int32(strikeAsset.Decimals()))
	premium, err := asset.ParseDecimal(strikeAsset, total)
	if err != nil {
		return nil, err
	}

	nativeQuote, err := p.Oracle.Price(ctx, p.PriceAsset)
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExternalServiceError, "native price")
	}
	nativePrice, err := asset.NewPriceFromRaw(native, strikeAsset, nativeQuote.Value, nativeQuote.Decimals, p.Clock.Now())
	if err != nil {
		return nil, err
	}
	if nativePrice.IsZero() {
		return nil, apperror.New(apperror.CodeExternalServiceError, apperror.WithContext("zero native price"))
	}

	inNative, err := nativePrice.Invert().Convert(premium)
	if err != nil {
		return nil, err
	}
	return inNative.Raw(), nil
}

// blackScholes returns the price of one option in strike-asset units.
// Expired options are worth their intrinsic value.
func blackScholes(S, K, T, r, sigma float64, kind domain.OptionType) float64 {
	if S <= 0 || K <= 0 {
		return 0
	}
	if T <= 0 || sigma <= 0 {
		if kind == domain.Call {
			return math.Max(S-K, 0)
		}
		return math.Max(K-S, 0)
	}

	sqrtT := math.Sqrt(T)
	d1 := (math.Log(S/K) + (r+0.5*sigma*sigma)*T) / (sigma * sqrtT)
	d2 := d1 - sigma*sqrtT
	discount := K * math.Exp(-r*T)

	if kind == domain.Call {
		return S*stats.NormCdf(d1, 0, 1) - discount*stats.NormCdf(d2, 0, 1)
	}
	return discount*stats.NormCdf(-d2, 0, 1) - S*stats.NormCdf(-d1, 0, 1)
}

// arithError maps fixed-point failures onto OVERFLOW.
func arithError(err error) error {
	if errors.Is(err, asset.ErrOverflow) {
		return apperror.New(apperror.CodeOverflow, apperror.WithCause(err))
	}
	return err
}
