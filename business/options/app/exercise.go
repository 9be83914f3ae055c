package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// ExerciseRequest exercises Amount (domain.OptionDecimals) of the caller's
// Token and pays the profit to Recipient.
type ExerciseRequest struct {
	Caller      common.Address
	Token       common.Address
	SecondaryID uint64
	Amount      *big.Int
	Recipient   common.Address
	Vaults      []common.Address
}

// ExerciseEngine computes payoffs and settles expired options.
type ExerciseEngine struct {
	controller Controller
	oracle     Oracle
	ledger     Ledger
	wrapped    WrappedNative
	clock      Clock
	registry   *asset.Registry
	settings   Settings
	logger     logger.LoggerInterface
}

// NewExerciseEngine creates an ExerciseEngine. wrapped may be nil when
// payouts are never unwrapped.
func NewExerciseEngine(controller Controller, oracle Oracle, ledger Ledger, wrapped WrappedNative,
	clock Clock, registry *asset.Registry, settings Settings, log logger.LoggerInterface) *ExerciseEngine {
	return &ExerciseEngine{
		controller: controller,
		oracle:     oracle,
		ledger:     ledger,
		wrapped:    wrapped,
		clock:      clock,
		registry:   registry,
		settings:   settings,
		logger:     log,
	}
}

// Profit returns the payoff of amount options in collateral units. After
// expiry it uses the finalized expiry price; before, the current spot.
func (e *ExerciseEngine) Profit(ctx context.Context, token domain.OptionToken, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amount")
	}
	terms := token.Terms

	price, err := e.settlementPrice(ctx, terms)
	if err != nil {
		return nil, err
	}

	decimals, err := e.registry.Decimals(terms.CollateralAsset)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidOption, err.Error())
	}

	profit, err := domain.ExerciseProfit(terms, amount, price, decimals, e.settings.PayoutBasis)
	if err != nil {
		return nil, arithError(err)
	}
	return profit, nil
}

// CanExercise is true once the option has expired with a positive payoff.
func (e *ExerciseEngine) CanExercise(ctx context.Context, token domain.OptionToken, amount *big.Int) (bool, error) {
	if !token.Terms.Expired(e.clock.Now()) {
		return false, nil
	}

	profit, err := e.Profit(ctx, token, amount)
	if apperror.HasCode(err, apperror.CodeInvalidState) {
		// expiry price not finalized yet
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return domain.StateAt(token.Terms, e.clock.Now(), profit, false) == domain.Exercisable, nil
}

// Exercise settles req. It must run inside an Atomic scope. The expiry
// check comes before any payoff computation.
func (e *ExerciseEngine) Exercise(ctx context.Context, token domain.OptionToken, req ExerciseRequest) (*big.Int, error) {
	terms := token.Terms
	if !terms.Expired(e.clock.Now()) {
		return nil, apperror.New(apperror.CodeNotYetExpired,
			apperror.WithContext("expires "+terms.Expiry.UTC().String()))
	}

	profit, err := e.Profit(ctx, token, req.Amount)
	if err != nil {
		return nil, err
	}
	if profit.Sign() == 0 {
		if e.settings.ZeroProfit == ZeroProfitNoop {
			e.logger.Info(ctx, "exercise skipped, no profit", "token", token.Address.Hex())
			return new(big.Int), nil
		}
		return nil, apperror.New(apperror.CodeZeroProfit, apperror.WithContext(token.Address.Hex()))
	}

	tokens, err := asset.Scale(req.Amount, domain.OptionDecimals, token.Decimals)
	if err != nil {
		return nil, arithError(err)
	}
	if tokens.Sign() == 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "amount below one token unit")
	}

	self := e.settings.Self
	if err := e.ledger.Transfer(ctx, token.Address, req.Caller, self, tokens); err != nil {
		return nil, err
	}

	payout, err := e.controller.Settle(ctx, SettleRequest{
		Holder:      self,
		Token:       token.Address,
		SecondaryID: req.SecondaryID,
		Amount:      tokens,
		Vaults:      req.Vaults,
	})
	if err != nil {
		return nil, err
	}
	if payout.Cmp(profit) != 0 {
		e.logger.Warn(ctx, "protocol payout differs from computed profit",
			"token", token.Address.Hex(), "payout", payout.String(), "profit", profit.String())
	}
	if payout.Sign() == 0 {
		return payout, nil
	}

	recipient := req.Recipient
	if recipient == (common.Address{}) {
		recipient = req.Caller
	}

	payAsset := terms.CollateralAsset
	if e.settings.UnwrapPayouts && e.wrapped != nil && payAsset == e.wrapped.Address() {
		if err := e.wrapped.Unwrap(ctx, self, payout); err != nil {
			return nil, err
		}
		payAsset = asset.NativeAddress
	}
	if err := e.ledger.Transfer(ctx, payAsset, self, recipient, payout); err != nil {
		return nil, err
	}

	e.logger.Info(ctx, "option exercised",
		"token", token.Address.Hex(),
		"amount", req.Amount.String(),
		"payout", payout.String(),
		"recipient", recipient.Hex(),
	)
	return payout, nil
}

func (e *ExerciseEngine) settlementPrice(ctx context.Context, terms domain.OptionTerms) (*big.Int, error) {
	var (
		quote OraclePrice
		err   error
	)
	if terms.Expired(e.clock.Now()) {
		quote, err = e.oracle.ExpiryPrice(ctx, terms.Underlying, terms.Expiry)
		if err == nil && !quote.Finalized {
			return nil, apperror.New(apperror.CodeInvalidState, apperror.WithContext("expiry price not finalized"))
		}
	} else {
		quote, err = e.oracle.Price(ctx, terms.Underlying)
	}
	if err != nil {
		return nil, apperror.Wrap(err, apperror.CodeExternalServiceError, "oracle price")
	}

	price, err := asset.Scale(quote.Value, quote.Decimals, domain.StrikeDecimals)
	if err != nil {
		return nil, arithError(err)
	}
	return price, nil
}
