package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// PurchaseRequest buys options on Terms. Order carries the venue order for
// protocols priced off-chain; Amount (domain.OptionDecimals) is used by
// protocols priced by the adapter. Funds is the native value supplied.
type PurchaseRequest struct {
	Caller common.Address
	Terms  domain.OptionTerms
	Amount *big.Int
	Order  *domain.SwapOrder
	Funds  *big.Int
}

// PurchaseResult reports what the caller received and paid.
type PurchaseResult struct {
	Token   common.Address
	Amount  *big.Int // option tokens delivered, token units
	Premium *big.Int // native spent
	Refund  *big.Int // native returned
}

// purchaseWithOrder fills a pre-signed venue order: validate, source the
// sell token, pay the venue, forward what it delivered, refund the rest.
func (f *Facade) purchaseWithOrder(ctx context.Context, token domain.OptionToken, req PurchaseRequest) (PurchaseResult, error) {
	if req.Order == nil {
		return PurchaseResult{}, apperror.Validation(apperror.CodeStaleOrSentinel, "swap order required")
	}
	if f.deps.Venue == nil {
		return PurchaseResult{}, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no swap venue"))
	}
	order := *req.Order
	self := f.settings.Self

	kind, err := f.validator.Validate(order, ExpectedOrder{
		BuyToken: token.Address,
		Taker:    self,
		Funds:    req.Funds,
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	var result PurchaseResult
	tokens := f.custodyTokens(token.Address, order.SellToken)

	err = f.atomically(ctx, tokens, func(ctx context.Context) error {
		if err := f.deps.Ledger.Transfer(ctx, asset.NativeAddress, req.Caller, self, req.Funds); err != nil {
			return err
		}

		fee := order.Fee()
		value := new(big.Int).Set(fee)
		spent := new(big.Int).Set(fee)

		switch kind {
		case SellNative:
			value.Add(value, order.SellAmount)
			spent.Add(spent, order.SellAmount)
		case SellWrapped:
			if f.deps.Wrapped == nil {
				return apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no wrapped native"))
			}
			if err := f.deps.Wrapped.Wrap(ctx, self, order.SellAmount); err != nil {
				return err
			}
			spent.Add(spent, order.SellAmount)
		case SellIntermediate:
			cost, err := f.buyIntermediate(ctx, order, new(big.Int).Sub(req.Funds, fee))
			if err != nil {
				return err
			}
			spent.Add(spent, cost)
		}

		before, err := f.deps.Ledger.BalanceOf(ctx, token.Address, self)
		if err != nil {
			return err
		}
		if err := f.deps.Venue.Fill(ctx, self, order, value); err != nil {
			return err
		}
		after, err := f.deps.Ledger.BalanceOf(ctx, token.Address, self)
		if err != nil {
			return err
		}

		received := new(big.Int).Sub(after, before)
		if received.Cmp(order.BuyAmount) < 0 {
			return apperror.Validation(apperror.CodeOrderMismatch,
				"venue delivered "+received.String()+" of "+order.BuyAmount.String())
		}
		if err := f.deps.Ledger.Transfer(ctx, token.Address, self, req.Caller, received); err != nil {
			return err
		}

		refund := new(big.Int).Sub(req.Funds, spent)
		if refund.Sign() > 0 {
			if err := f.deps.Ledger.Transfer(ctx, asset.NativeAddress, self, req.Caller, refund); err != nil {
				return err
			}
		}

		result = PurchaseResult{Token: token.Address, Amount: received, Premium: spent, Refund: refund}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	f.logger.Info(ctx, "option purchased",
		"protocol", f.settings.Protocol,
		"token", token.Address.Hex(),
		"amount", result.Amount.String(),
		"premium", result.Premium.String(),
	)
	return result, nil
}

// buyIntermediate buys exactly the order's sell amount on the Exchange
// with at most budget native.
func (f *Facade) buyIntermediate(ctx context.Context, order domain.SwapOrder, budget *big.Int) (*big.Int, error) {
	if f.deps.Exchange == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no exchange"))
	}
	cost, err := f.deps.Exchange.OutputPrice(ctx, order.SellToken, order.SellAmount)
	if err != nil {
		return nil, err
	}
	if cost.Cmp(budget) > 0 {
		return nil, apperror.Validation(apperror.CodeInsufficientFunds,
			"need "+cost.String()+" for sell token, have "+budget.String())
	}
	return f.deps.Exchange.SwapNativeForExactTokens(ctx, f.settings.Self, order.SellToken, order.SellAmount, cost)
}

// purchaseFromExchange buys tokens from the Exchange pool. The pool's
// output price is what is paid, whatever the configured Pricer quotes.
// Funds beyond it are refunded.
func (f *Facade) purchaseFromExchange(ctx context.Context, token domain.OptionToken, req PurchaseRequest) (PurchaseResult, error) {
	if f.deps.Exchange == nil {
		return PurchaseResult{}, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("no exchange"))
	}
	if req.Amount == nil || req.Amount.Sign() <= 0 {
		return PurchaseResult{}, apperror.Validation(apperror.CodeInvalidInput, "amount")
	}

	cost, err := ExchangePricer{Exchange: f.deps.Exchange}.Quote(ctx, token, req.Amount)
	if err != nil {
		return PurchaseResult{}, arithError(err)
	}
	if req.Funds == nil || req.Funds.Cmp(cost) < 0 {
		return PurchaseResult{}, apperror.Validation(apperror.CodeInsufficientFunds,
			"Value does not cover cost: need "+cost.String())
	}

	tokens, err := asset.Scale(req.Amount, domain.OptionDecimals, token.Decimals)
	if err != nil {
		return PurchaseResult{}, arithError(err)
	}
	if tokens.Sign() == 0 {
		return PurchaseResult{}, apperror.Validation(apperror.CodeInvalidInput, "amount below one token unit")
	}

	self := f.settings.Self
	var result PurchaseResult

	err = f.atomically(ctx, f.custodyTokens(token.Address), func(ctx context.Context) error {
		if err := f.deps.Ledger.Transfer(ctx, asset.NativeAddress, req.Caller, self, req.Funds); err != nil {
			return err
		}

		spent, err := f.deps.Exchange.SwapNativeForExactTokens(ctx, self, token.Address, tokens, cost)
		if err != nil {
			return err
		}
		if err := f.deps.Ledger.Transfer(ctx, token.Address, self, req.Caller, tokens); err != nil {
			return err
		}

		refund := new(big.Int).Sub(req.Funds, spent)
		if refund.Sign() > 0 {
			if err := f.deps.Ledger.Transfer(ctx, asset.NativeAddress, self, req.Caller, refund); err != nil {
				return err
			}
		}

		result = PurchaseResult{Token: token.Address, Amount: tokens, Premium: spent, Refund: refund}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	f.logger.Info(ctx, "option purchased",
		"protocol", f.settings.Protocol,
		"token", token.Address.Hex(),
		"amount", tokens.String(),
		"premium", result.Premium.String(),
		"refund", result.Refund.String(),
	)
	return result, nil
}
