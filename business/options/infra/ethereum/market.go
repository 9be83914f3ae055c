package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
)

// Wrapped is the WETH9 contract.
type Wrapped struct {
	client  *Client
	address common.Address
}

var _ app.WrappedNative = (*Wrapped)(nil)

// NewWrapped binds the wrapper deployed at address.
func NewWrapped(client *Client, address common.Address) *Wrapped {
	return &Wrapped{client: client, address: address}
}

// Address implements app.WrappedNative.
func (w *Wrapped) Address() common.Address { return w.address }

// Wrap implements app.WrappedNative. Only the operator can wrap.
func (w *Wrapped) Wrap(ctx context.Context, holder common.Address, amount *big.Int) error {
	if err := selfOnly(w.client, holder); err != nil {
		return err
	}
	if _, err := w.client.Transact(ctx, wethContract, w.address, amount, "deposit"); err != nil {
		return err
	}
	batchFrom(ctx).wrap(amount)
	return nil
}

// Unwrap implements app.WrappedNative. Only the operator can unwrap.
func (w *Wrapped) Unwrap(ctx context.Context, holder common.Address, amount *big.Int) error {
	if err := selfOnly(w.client, holder); err != nil {
		return err
	}
	if _, err := w.client.Transact(ctx, wethContract, w.address, nil, "withdraw", amount); err != nil {
		return err
	}
	batchFrom(ctx).wrap(new(big.Int).Neg(amount))
	return nil
}

// Venue fills 0x orders by forwarding their calldata to the exchange proxy.
type Venue struct {
	client *Client
	ledger *Ledger
	proxy  common.Address
}

var _ app.SwapVenue = (*Venue)(nil)

// NewVenue binds the exchange proxy.
func NewVenue(client *Client, ledger *Ledger, proxy common.Address) *Venue {
	return &Venue{client: client, ledger: ledger, proxy: proxy}
}

// Fill implements app.SwapVenue. ERC20 sell amounts are approved to the
// proxy first; the payload is sent unchanged with value attached.
func (v *Venue) Fill(ctx context.Context, taker common.Address, order domain.SwapOrder, value *big.Int) error {
	if err := selfOnly(v.client, taker); err != nil {
		return err
	}
	if len(order.Payload) == 0 {
		return apperror.Validation(apperror.CodeOrderMismatch, "order has no calldata")
	}
	if order.SellToken != (common.Address{}) && order.SellAmount != nil && order.SellAmount.Sign() > 0 {
		if err := v.ledger.Approve(ctx, order.SellToken, v.proxy, order.SellAmount); err != nil {
			return err
		}
	}

	_, err := v.client.Send(ctx, v.proxy, value, order.Payload, "fill order")
	if apperror.HasCode(err, apperror.CodeGasEstimationFailed) {
		return apperror.New(apperror.CodeInsufficientFunds, apperror.WithCause(err),
			apperror.WithContext("order cannot be filled"))
	}
	return err
}

// Router is a Uniswap V2 router pricing tokens against the wrapped native.
type Router struct {
	client   *Client
	address  common.Address
	wrapped  common.Address
	deadline time.Duration
}

var _ app.Exchange = (*Router)(nil)

// NewRouter binds the router at address, routing through wrapped.
func NewRouter(client *Client, address, wrapped common.Address) *Router {
	return &Router{client: client, address: address, wrapped: wrapped, deadline: 5 * time.Minute}
}

// OutputPrice implements app.Exchange.
func (r *Router) OutputPrice(ctx context.Context, token common.Address, amountOut *big.Int) (*big.Int, error) {
	res, err := r.client.Call(ctx, routerContract, r.address, "getAmountsIn", amountOut, r.path(token))
	if err != nil {
		if apperror.HasCode(err, apperror.CodeContractCallFailed) {
			return nil, apperror.New(apperror.CodeInsufficientFunds, apperror.WithCause(err),
				apperror.WithContext(fmt.Sprintf("pool cannot supply %s of %s", amountOut, token.Hex())))
		}
		return nil, err
	}
	amounts := res[0].([]*big.Int)
	return amounts[0], nil
}

// SwapNativeForExactTokens implements app.Exchange. The router refunds
// whatever of maxIn the swap did not use.
func (r *Router) SwapNativeForExactTokens(ctx context.Context, trader, token common.Address, amountOut, maxIn *big.Int) (*big.Int, error) {
	if err := selfOnly(r.client, trader); err != nil {
		return nil, err
	}

	cost, err := r.OutputPrice(ctx, token, amountOut)
	if err != nil {
		return nil, err
	}
	if cost.Cmp(maxIn) > 0 {
		return nil, apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContext(fmt.Sprintf("Value does not cover cost: need %s, have %s", cost, maxIn)))
	}

	deadline := big.NewInt(time.Now().Add(r.deadline).Unix())
	if _, err := r.client.Transact(ctx, routerContract, r.address, cost, "swapETHForExactTokens",
		amountOut, r.path(token), trader, deadline); err != nil {
		return nil, err
	}
	return cost, nil
}

func (r *Router) path(token common.Address) []common.Address {
	return []common.Address{r.wrapped, token}
}

func selfOnly(client *Client, account common.Address) error {
	if account != client.From() {
		return apperror.New(apperror.CodeUnauthorizedCaller,
			apperror.WithContext(account.Hex()+" is not the operator"))
	}
	return nil
}
