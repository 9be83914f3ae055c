package memory

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// Wrapped is a 1:1 wrapper of the native currency. It holds the wrapped
// native at its own address.
type Wrapped struct {
	chain   *Chain
	address common.Address
}

var _ app.WrappedNative = (*Wrapped)(nil)

// NewWrapped creates the wrapper deployed at address.
func NewWrapped(chain *Chain, address common.Address) *Wrapped {
	return &Wrapped{chain: chain, address: address}
}

// Address implements app.WrappedNative.
func (w *Wrapped) Address() common.Address { return w.address }

// Wrap implements app.WrappedNative.
func (w *Wrapped) Wrap(_ context.Context, holder common.Address, amount *big.Int) error {
	w.chain.mu.Lock()
	defer w.chain.mu.Unlock()

	if err := w.chain.move(asset.NativeAddress, holder, w.address, amount); err != nil {
		return err
	}
	w.chain.credit(w.address, holder, amount)
	return nil
}

// Unwrap implements app.WrappedNative.
func (w *Wrapped) Unwrap(_ context.Context, holder common.Address, amount *big.Int) error {
	w.chain.mu.Lock()
	defer w.chain.mu.Unlock()

	if err := w.chain.debit(w.address, holder, amount); err != nil {
		return err
	}
	return w.chain.move(asset.NativeAddress, w.address, holder, amount)
}

// Venue fills swap orders on behalf of a single market maker.
type Venue struct {
	chain *Chain
	Maker common.Address
}

var _ app.SwapVenue = (*Venue)(nil)

// NewVenue creates a venue whose orders are made by maker.
func NewVenue(chain *Chain, maker common.Address) *Venue {
	return &Venue{chain: chain, Maker: maker}
}

// Fill implements app.SwapVenue.
func (v *Venue) Fill(_ context.Context, taker common.Address, order domain.SwapOrder, value *big.Int) error {
	if order.TakerAddress != (common.Address{}) && order.TakerAddress != taker {
		return revert("order taker mismatch")
	}
	if value == nil {
		value = new(big.Int)
	}
	fee := order.Fee()
	need := new(big.Int).Set(fee)
	if order.SellToken == asset.NativeAddress {
		need.Add(need, order.SellAmount)
	}
	if value.Cmp(need) < 0 {
		return revert(fmt.Sprintf("insufficient protocol fee: sent %s, need %s", value, need))
	}

	v.chain.mu.Lock()
	defer v.chain.mu.Unlock()

	feeRecipient := order.FeeRecipient
	if feeRecipient == (common.Address{}) {
		feeRecipient = v.Maker
	}
	// only the required value is taken; anything above stays with the taker
	if err := v.chain.move(asset.NativeAddress, taker, feeRecipient, fee); err != nil {
		return err
	}
	if err := v.chain.move(order.SellToken, taker, v.Maker, order.SellAmount); err != nil {
		return err
	}
	return v.chain.move(order.BuyToken, v.Maker, taker, order.BuyAmount)
}

// Exchange is a constant-product pool per token, paired with native
// currency, charging a 0.3% input fee.
type Exchange struct {
	chain *Chain
}

var _ app.Exchange = (*Exchange)(nil)

// NewExchange creates an Exchange on chain.
func NewExchange(chain *Chain) *Exchange {
	return &Exchange{chain: chain}
}

// PoolAddress is where the pool for token keeps its reserves.
func (e *Exchange) PoolAddress(token common.Address) common.Address {
	return Addr("exchange:" + token.Hex())
}

// AddLiquidity moves reserves from provider into the token's pool.
func (e *Exchange) AddLiquidity(provider, token common.Address, native, tokens *big.Int) error {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	pool := e.PoolAddress(token)
	if err := e.chain.move(asset.NativeAddress, provider, pool, native); err != nil {
		return err
	}
	return e.chain.move(token, provider, pool, tokens)
}

// OutputPrice implements app.Exchange.
func (e *Exchange) OutputPrice(_ context.Context, token common.Address, amountOut *big.Int) (*big.Int, error) {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()
	return e.outputPrice(token, amountOut)
}

// SwapNativeForExactTokens implements app.Exchange.
func (e *Exchange) SwapNativeForExactTokens(_ context.Context, trader, token common.Address, amountOut, maxIn *big.Int) (*big.Int, error) {
	e.chain.mu.Lock()
	defer e.chain.mu.Unlock()

	cost, err := e.outputPrice(token, amountOut)
	if err != nil {
		return nil, err
	}
	if maxIn != nil && cost.Cmp(maxIn) > 0 {
		return nil, apperror.Validation(apperror.CodeInsufficientFunds,
			fmt.Sprintf("swap costs %s, max %s", cost, maxIn))
	}

	pool := e.PoolAddress(token)
	if err := e.chain.move(asset.NativeAddress, trader, pool, cost); err != nil {
		return nil, err
	}
	if err := e.chain.move(token, pool, trader, amountOut); err != nil {
		return nil, err
	}
	return cost, nil
}

// outputPrice is the input needed for amountOut:
// reserveIn*amountOut*1000 / ((reserveOut-amountOut)*997) + 1.
func (e *Exchange) outputPrice(token common.Address, amountOut *big.Int) (*big.Int, error) {
	if amountOut == nil || amountOut.Sign() <= 0 {
		return nil, apperror.Validation(apperror.CodeInvalidInput, "output amount")
	}
	pool := e.PoolAddress(token)
	reserveIn := e.chain.balance(asset.NativeAddress, pool)
	reserveOut := e.chain.balance(token, pool)
	if reserveIn.Sign() == 0 || reserveOut.Cmp(amountOut) <= 0 {
		return nil, revert("insufficient liquidity")
	}

	num := new(big.Int).Mul(reserveIn, amountOut)
	num.Mul(num, big.NewInt(1000))
	den := new(big.Int).Sub(reserveOut, amountOut)
	den.Mul(den, big.NewInt(997))
	return num.Quo(num, den).Add(num, big.NewInt(1)), nil
}

// Recorder keeps every event it is given.
type Recorder struct {
	chain  *Chain
	events []domain.Event
	Err    error
}

var _ app.EventSink = (*Recorder)(nil)

// NewRecorder creates an empty Recorder.
func NewRecorder(chain *Chain) *Recorder {
	return &Recorder{chain: chain}
}

// Record implements app.EventSink.
func (r *Recorder) Record(_ context.Context, event domain.Event) error {
	if r.Err != nil {
		return r.Err
	}
	r.chain.mu.Lock()
	defer r.chain.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

// Events returns what was recorded.
func (r *Recorder) Events() []domain.Event {
	r.chain.mu.Lock()
	defer r.chain.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}
