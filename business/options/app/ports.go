// Package app implements the options adapter: terms resolution, premium
// quoting, swap order validation, exercise and short creation, composed
// behind the uniform Adapter interface.
package app

import (
	"context"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
)

// TokenIndex answers read-only queries about issued option series.
type TokenIndex interface {
	// LookupToken returns the token issued for terms, or the zero address.
	LookupToken(ctx context.Context, terms domain.OptionTerms) (common.Address, error)
	TokenDetails(ctx context.Context, token common.Address) (domain.OptionToken, error)
}

// SettleRequest asks the protocol to burn Amount option tokens held by
// Holder and pay their settlement value to Holder.
type SettleRequest struct {
	Holder      common.Address
	Token       common.Address
	SecondaryID uint64
	Amount      *big.Int
	// Vaults to exercise against, for protocols that settle physically
	// against writers' vaults.
	Vaults []common.Address
}

// Controller is the issuing protocol's margin and settlement engine.
type Controller interface {
	OpenVault(ctx context.Context, owner common.Address) (domain.VaultID, error)
	// DepositCollateral moves amount of collateral from owner into the
	// protocol's margin pool, credited to the vault.
	DepositCollateral(ctx context.Context, owner common.Address, id domain.VaultID, collateral common.Address, amount *big.Int) error
	MintToken(ctx context.Context, owner common.Address, id domain.VaultID, token common.Address, amount *big.Int, to common.Address) error
	// Settle returns the payout credited to the holder, in collateral units.
	Settle(ctx context.Context, req SettleRequest) (*big.Int, error)
	Vault(ctx context.Context, owner common.Address, id domain.VaultID) (domain.Vault, error)
}

// OraclePrice is an oracle answer with its precision.
type OraclePrice struct {
	Value     *big.Int
	Decimals  uint8
	Finalized bool
}

// Oracle quotes asset prices in the strike asset.
type Oracle interface {
	Price(ctx context.Context, asset common.Address) (OraclePrice, error)
	ExpiryPrice(ctx context.Context, asset common.Address, expiry time.Time) (OraclePrice, error)
}

// Ledger moves and reports balances. The zero address is the native currency.
type Ledger interface {
	BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error)
	Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error
}

// WrappedNative converts between the native currency and its ERC20 wrapper.
type WrappedNative interface {
	Address() common.Address
	Wrap(ctx context.Context, holder common.Address, amount *big.Int) error
	Unwrap(ctx context.Context, holder common.Address, amount *big.Int) error
}

// SwapVenue fills pre-signed orders. Fill pulls SellAmount of SellToken
// from taker, pays BuyAmount of BuyToken to taker and charges value in
// native currency as the protocol fee.
type SwapVenue interface {
	Fill(ctx context.Context, taker common.Address, order domain.SwapOrder, value *big.Int) error
}

// Exchange is a constant-product pool pairing tokens with the native currency.
type Exchange interface {
	// OutputPrice returns the native amount needed to buy amountOut of token.
	OutputPrice(ctx context.Context, token common.Address, amountOut *big.Int) (*big.Int, error)
	// SwapNativeForExactTokens spends at most maxIn native from trader and
	// returns what was spent.
	SwapNativeForExactTokens(ctx context.Context, trader, token common.Address, amountOut, maxIn *big.Int) (*big.Int, error)
}

// Atomic runs fn so that either all of its effects apply or none do.
type Atomic interface {
	Atomically(ctx context.Context, fn func(ctx context.Context) error) error
}

// Clock is the source of "now" for expiry checks.
type Clock interface {
	Now() time.Time
}

// EventSink records completed operations.
type EventSink interface {
	Record(ctx context.Context, event domain.Event) error
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }
