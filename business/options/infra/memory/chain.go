// Package memory is an in-process model of the contracts an adapter talks
// to: balances, a wrapped native token, a margin protocol, an oracle, a
// swap venue and a constant-product exchange. All state lives in one
// Chain so Atomically can roll every effect back together.
package memory

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// Addr derives a stable address from label.
func Addr(label string) common.Address {
	return common.BytesToAddress(crypto.Keccak256([]byte(label)))
}

type vaultKey struct {
	owner common.Address
	id    domain.VaultID
}

type expiryKey struct {
	asset  common.Address
	expiry int64
}

type state struct {
	balances map[common.Address]map[common.Address]*big.Int // token -> holder

	tokens   map[common.Address]domain.OptionToken
	byTerms  map[common.Hash]common.Address
	nonce    uint64
	vaults   map[vaultKey]domain.Vault
	counters map[common.Address]domain.VaultID

	spot   map[common.Address]*big.Int
	expiry map[expiryKey]app.OraclePrice
}

func newState() *state {
	return &state{
		balances: make(map[common.Address]map[common.Address]*big.Int),
		tokens:   make(map[common.Address]domain.OptionToken),
		byTerms:  make(map[common.Hash]common.Address),
		vaults:   make(map[vaultKey]domain.Vault),
		counters: make(map[common.Address]domain.VaultID),
		spot:     make(map[common.Address]*big.Int),
		expiry:   make(map[expiryKey]app.OraclePrice),
	}
}

func (s *state) clone() *state {
	c := newState()
	for token, holders := range s.balances {
		m := make(map[common.Address]*big.Int, len(holders))
		for h, v := range holders {
			m[h] = new(big.Int).Set(v)
		}
		c.balances[token] = m
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	for k, v := range s.byTerms {
		c.byTerms[k] = v
	}
	c.nonce = s.nonce
	for k, v := range s.vaults {
		v.CollateralAmount = new(big.Int).Set(v.CollateralAmount)
		v.MintedAmount = new(big.Int).Set(v.MintedAmount)
		c.vaults[k] = v
	}
	for k, v := range s.counters {
		c.counters[k] = v
	}
	for k, v := range s.spot {
		c.spot[k] = new(big.Int).Set(v)
	}
	for k, v := range s.expiry {
		c.expiry[k] = v
	}
	return c
}

// Chain holds the world state. It implements app.Ledger, app.Atomic and
// app.Clock.
type Chain struct {
	ChainID uint64

	txMu sync.Mutex // serializes Atomically scopes
	mu   sync.Mutex
	st   *state
	now  time.Time
}

var (
	_ app.Ledger = (*Chain)(nil)
	_ app.Atomic = (*Chain)(nil)
	_ app.Clock  = (*Chain)(nil)
)

// NewChain creates an empty chain whose clock reads now.
func NewChain(chainID uint64, now time.Time) *Chain {
	return &Chain{ChainID: chainID, st: newState(), now: now}
}

// Now implements app.Clock.
func (c *Chain) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// SetNow moves the clock.
func (c *Chain) SetNow(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

// Atomically implements app.Atomic. State is restored if fn fails.
func (c *Chain) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	c.txMu.Lock()
	defer c.txMu.Unlock()

	c.mu.Lock()
	snapshot := c.st.clone()
	c.mu.Unlock()

	if err := fn(ctx); err != nil {
		c.mu.Lock()
		c.st = snapshot
		c.mu.Unlock()
		return err
	}
	return nil
}

// BalanceOf implements app.Ledger.
func (c *Chain) BalanceOf(_ context.Context, token, holder common.Address) (*big.Int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return new(big.Int).Set(c.balance(token, holder)), nil
}

// Transfer implements app.Ledger.
func (c *Chain) Transfer(_ context.Context, token, from, to common.Address, amount *big.Int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.move(token, from, to, amount)
}

// Mint credits amount of token to holder out of thin air.
func (c *Chain) Mint(token, holder common.Address, amount *big.Int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.credit(token, holder, amount)
}

// Supply sums every balance of token.
func (c *Chain) Supply(token common.Address) *big.Int {
	c.mu.Lock()
	defer c.mu.Unlock()

	total := new(big.Int)
	for _, v := range c.st.balances[token] {
		total.Add(total, v)
	}
	return total
}

func (c *Chain) balance(token, holder common.Address) *big.Int {
	if v, ok := c.st.balances[token][holder]; ok {
		return v
	}
	return new(big.Int)
}

func (c *Chain) credit(token, holder common.Address, amount *big.Int) {
	holders, ok := c.st.balances[token]
	if !ok {
		holders = make(map[common.Address]*big.Int)
		c.st.balances[token] = holders
	}
	holders[holder] = new(big.Int).Add(c.balance(token, holder), amount)
}

func (c *Chain) debit(token, holder common.Address, amount *big.Int) error {
	bal := c.balance(token, holder)
	if bal.Cmp(amount) < 0 {
		return apperror.Validation(apperror.CodeInsufficientFunds,
			fmt.Sprintf("%s holds %s of %s, needs %s", holder.Hex(), bal, symbol(token), amount))
	}
	c.st.balances[token][holder] = new(big.Int).Sub(bal, amount)
	return nil
}

func (c *Chain) move(token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return apperror.Validation(apperror.CodeInvalidInput, "transfer amount")
	}
	if amount.Sign() == 0 {
		return nil
	}
	if err := c.debit(token, from, amount); err != nil {
		return err
	}
	c.credit(token, to, amount)
	return nil
}

func symbol(token common.Address) string {
	if token == asset.NativeAddress {
		return "native"
	}
	return token.Hex()
}

func revert(reason string) error {
	return apperror.New(apperror.CodeTransactionFailed, apperror.WithContext(reason))
}
