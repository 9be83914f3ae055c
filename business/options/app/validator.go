package app

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// SellKind is how the adapter sources an order's sell token.
type SellKind uint8

const (
	// SellNative pays the sell amount as native value.
	SellNative SellKind = iota
	// SellWrapped wraps native currency first.
	SellWrapped
	// SellIntermediate buys the sell token on the Exchange first.
	SellIntermediate
)

// ExpectedOrder is what a swap order must agree with.
type ExpectedOrder struct {
	BuyToken common.Address
	// Taker is the adapter; orders open to any taker are also accepted.
	Taker common.Address
	// Funds is the native value the caller supplied.
	Funds *big.Int
}

// Validator checks the structured fields of swap orders. The payload is
// never inspected.
type Validator struct {
	wrapped       common.Address
	intermediates []common.Address
}

// NewValidator creates a Validator accepting the native currency, its
// wrapper and the given intermediates as sell tokens.
func NewValidator(wrapped common.Address, intermediates []common.Address) *Validator {
	return &Validator{wrapped: wrapped, intermediates: intermediates}
}

// Validate checks order against exp and reports how to source its sell token.
func (v *Validator) Validate(order domain.SwapOrder, exp ExpectedOrder) (SellKind, error) {
	if order.BuyAmount == nil || order.BuyAmount.Sign() <= 0 ||
		order.SellAmount == nil || order.SellAmount.Sign() <= 0 {
		return 0, apperror.Validation(apperror.CodeStaleOrSentinel, "zero buy or sell amount")
	}
	if order.ProtocolFee != nil && order.ProtocolFee.Sign() < 0 {
		return 0, apperror.Validation(apperror.CodeStaleOrSentinel, "negative protocol fee")
	}
	if order.BuyToken != exp.BuyToken {
		return 0, apperror.Validation(apperror.CodeOrderMismatch,
			"buy token "+order.BuyToken.Hex()+" is not "+exp.BuyToken.Hex())
	}
	if order.TakerAddress != (common.Address{}) && order.TakerAddress != exp.Taker {
		return 0, apperror.Validation(apperror.CodeOrderMismatch, "order reserved for another taker")
	}

	funds := exp.Funds
	if funds == nil {
		funds = new(big.Int)
	}

	var kind SellKind
	switch {
	case order.SellToken == asset.NativeAddress:
		kind = SellNative
	case order.SellToken == v.wrapped && v.wrapped != (common.Address{}):
		kind = SellWrapped
	case v.isIntermediate(order.SellToken):
		// the native cost is only known once the Exchange is asked
		if order.Fee().Cmp(funds) > 0 {
			return 0, apperror.Validation(apperror.CodeInsufficientFunds, "funds do not cover the protocol fee")
		}
		return SellIntermediate, nil
	default:
		return 0, apperror.Validation(apperror.CodeOrderMismatch, "unsupported sell token "+order.SellToken.Hex())
	}

	if order.TotalCost().Cmp(funds) > 0 {
		return 0, apperror.Validation(apperror.CodeInsufficientFunds,
			"need "+order.TotalCost().String()+" have "+funds.String())
	}
	return kind, nil
}

func (v *Validator) isIntermediate(token common.Address) bool {
	for _, t := range v.intermediates {
		if t == token {
			return true
		}
	}
	return false
}
