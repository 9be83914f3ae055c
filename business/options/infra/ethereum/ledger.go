package ethereum

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// flusher sends queued protocol actions.
type flusher interface {
	Flush(ctx context.Context) error
}

// Ledger moves ERC20 and native balances as the operator account. Funds
// leave a third party only through transferFrom, so callers must have
// approved the operator beforehand. Native funds can only leave the
// operator itself.
type Ledger struct {
	client   *Client
	flushers []flusher
	logger   logger.LoggerInterface
}

var _ app.Ledger = (*Ledger)(nil)

// NewLedger creates a ledger sending from client's account.
func NewLedger(client *Client, log logger.LoggerInterface) *Ledger {
	return &Ledger{client: client, logger: log}
}

// BalanceOf implements app.Ledger.
func (l *Ledger) BalanceOf(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	if token == (common.Address{}) {
		return l.client.Balance(ctx, holder)
	}
	res, err := l.client.Call(ctx, erc20Contract, token, "balanceOf", holder)
	if err != nil {
		return nil, err
	}
	return res[0].(*big.Int), nil
}

// Decimals reads an ERC20's decimals.
func (l *Ledger) Decimals(ctx context.Context, token common.Address) (uint8, error) {
	res, err := l.client.Call(ctx, erc20Contract, token, "decimals")
	if err != nil {
		return 0, err
	}
	return res[0].(uint8), nil
}

// Transfer implements app.Ledger. Queued protocol actions are sent first.
func (l *Ledger) Transfer(ctx context.Context, token, from, to common.Address, amount *big.Int) error {
	if amount == nil || amount.Sign() < 0 {
		return apperror.Validation(apperror.CodeInvalidInput, "transfer amount must be non-negative")
	}
	if amount.Sign() == 0 || from == to {
		return nil
	}
	for _, f := range l.flushers {
		if err := f.Flush(ctx); err != nil {
			return err
		}
	}

	self := l.client.From()
	var err error
	switch {
	case token == (common.Address{}) && from == self:
		_, err = l.client.Send(ctx, to, amount, nil, "native transfer")
	case token == (common.Address{}):
		return apperror.New(apperror.CodeInsufficientFunds,
			apperror.WithContext("native funds can only be sent by "+self.Hex()))
	case from == self:
		_, err = l.client.Transact(ctx, erc20Contract, token, nil, "transfer", to, amount)
	default:
		_, err = l.client.Transact(ctx, erc20Contract, token, nil, "transferFrom", from, to, amount)
	}
	if err != nil {
		if apperror.HasCode(err, apperror.CodeGasEstimationFailed) || apperror.HasCode(err, apperror.CodeTransactionFailed) {
			return apperror.New(apperror.CodeInsufficientFunds, apperror.WithCause(err),
				apperror.WithContext("transfer of "+amount.String()+" from "+from.Hex()))
		}
		return err
	}

	switch b := batchFrom(ctx); {
	case to == self:
		b.credit(token, from, amount)
	case from == self:
		b.debit(token, to, amount)
	}
	return nil
}

// Approve raises the operator's allowance for spender to at least amount.
func (l *Ledger) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) error {
	res, err := l.client.Call(ctx, erc20Contract, token, "allowance", l.client.From(), spender)
	if err != nil {
		return err
	}
	if res[0].(*big.Int).Cmp(amount) >= 0 {
		return nil
	}
	_, err = l.client.Transact(ctx, erc20Contract, token, nil, "approve", spender, amount)
	return err
}

type batchKey struct{}

type claimKey struct {
	token, party common.Address
}

// batch holds controller actions queued inside one Atomic scope, and what
// the scope owes back if it fails after transactions were mined.
type batch struct {
	mu      sync.Mutex
	actions []actionArgs
	vaults  map[common.Address]uint64 // last vault id per owner, queued opens included

	owed    map[claimKey]*big.Int
	claims  []claimKey // first-credit order
	wrapped *big.Int   // native the operator wrapped, net of unwraps
	closed  bool
}

// credit records amount of token received from party.
func (b *batch) credit(token, party common.Address, amount *big.Int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.owed == nil {
		b.owed = make(map[claimKey]*big.Int)
	}
	k := claimKey{token: token, party: party}
	if _, ok := b.owed[k]; !ok {
		b.owed[k] = new(big.Int)
		b.claims = append(b.claims, k)
	}
	b.owed[k].Add(b.owed[k], amount)
}

// debit records amount of token paid to party, settling what it was owed.
func (b *batch) debit(token, party common.Address, amount *big.Int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if owed, ok := b.owed[claimKey{token: token, party: party}]; ok {
		owed.Sub(owed, amount)
		if owed.Sign() < 0 {
			owed.SetInt64(0)
		}
	}
}

// consume records amount of token that left custody for a protocol, such
// as collateral now held by a vault. It settles claims on token in credit
// order; funds a protocol holds are not refunded from the operator's own.
func (b *batch) consume(token common.Address, amount *big.Int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	left := new(big.Int).Set(amount)
	for _, k := range b.claims {
		if k.token != token || left.Sign() == 0 {
			continue
		}
		owed := b.owed[k]
		take := new(big.Int).Set(owed)
		if take.Cmp(left) > 0 {
			take.Set(left)
		}
		left.Sub(left, take)
		owed.Sub(owed, take)
	}
}

// wrap records native turned into wrapped tokens; negative for unwraps.
func (b *batch) wrap(amount *big.Int) {
	if b == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if b.wrapped == nil {
		b.wrapped = new(big.Int)
	}
	b.wrapped.Add(b.wrapped, amount)
}

type refund struct {
	token, to common.Address
	amount    *big.Int
}

// close stops recording and returns what the failed scope owes.
func (b *batch) close() ([]refund, *big.Int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true

	var out []refund
	for _, k := range b.claims {
		if owed := b.owed[k]; owed.Sign() > 0 {
			out = append(out, refund{token: k.token, to: k.party, amount: new(big.Int).Set(owed)})
		}
	}
	wrapped := new(big.Int)
	if b.wrapped != nil && b.wrapped.Sign() > 0 {
		wrapped.Set(b.wrapped)
	}
	return out, wrapped
}

func (b *batch) add(a actionArgs) {
	b.mu.Lock()
	b.actions = append(b.actions, a)
	b.mu.Unlock()
}

func (b *batch) take() []actionArgs {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.actions
	b.actions = nil
	return out
}

// opened returns the last vault id queued for owner. A nil batch has none.
func (b *batch) opened(owner common.Address) (uint64, bool) {
	if b == nil {
		return 0, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.vaults[owner]
	return id, ok
}

func (b *batch) open(owner common.Address, id uint64) {
	if b == nil {
		return
	}
	b.mu.Lock()
	if b.vaults == nil {
		b.vaults = make(map[common.Address]uint64)
	}
	b.vaults[owner] = id
	b.mu.Unlock()
}

func batchFrom(ctx context.Context) *batch {
	b, _ := ctx.Value(batchKey{}).(*batch)
	return b
}

// Session is the on-chain app.Atomic. Scopes are serialized; protocol
// actions inside a scope are batched into one transaction. When a scope
// fails, queued actions are dropped and mined effects are compensated:
// wrapped native is unwrapped and every party that paid the operator gets
// back what it paid, net of what it was already sent. Swaps on third-party
// pools are not reversed.
type Session struct {
	mu      sync.Mutex
	ledger  *Ledger
	wrapped *Wrapped
	logger  logger.LoggerInterface
}

var _ app.Atomic = (*Session)(nil)

// NewSession creates a session flushing through ledger's protocols.
// wrapped may be nil when no wrapper is bound.
func NewSession(ledger *Ledger, wrapped *Wrapped, log logger.LoggerInterface) *Session {
	return &Session{ledger: ledger, wrapped: wrapped, logger: log}
}

// Atomically implements app.Atomic.
func (s *Session) Atomically(ctx context.Context, fn func(ctx context.Context) error) error {
	if batchFrom(ctx) != nil {
		return fn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b := &batch{}
	ctx = context.WithValue(ctx, batchKey{}, b)

	if err := fn(ctx); err != nil {
		return s.unwind(ctx, b, err)
	}

	for _, f := range s.ledger.flushers {
		if err := f.Flush(ctx); err != nil {
			return s.unwind(ctx, b, err)
		}
	}
	return nil
}

// unwind compensates a failed scope and returns cause. Compensation runs
// even if ctx was cancelled.
func (s *Session) unwind(ctx context.Context, b *batch, cause error) error {
	if dropped := len(b.take()); dropped > 0 {
		s.logger.Warn(ctx, "dropped queued protocol actions", "count", dropped, "error", cause.Error())
	}

	refunds, wrapped := b.close()
	ctx = context.WithoutCancel(ctx)
	self := s.ledger.client.From()

	if wrapped.Sign() > 0 && s.wrapped != nil {
		if err := s.wrapped.Unwrap(ctx, self, wrapped); err != nil {
			s.logger.Error(ctx, "failed to unwrap after aborted scope", "amount", wrapped.String(), "error", err.Error())
		}
	}
	for _, r := range refunds {
		if err := s.ledger.Transfer(ctx, r.token, self, r.to, r.amount); err != nil {
			s.logger.Error(ctx, "failed to refund after aborted scope",
				"token", r.token.Hex(), "to", r.to.Hex(), "amount", r.amount.String(), "error", err.Error())
			continue
		}
		s.logger.Warn(ctx, "refunded after aborted scope",
			"token", r.token.Hex(), "to", r.to.Hex(), "amount", r.amount.String())
	}
	return cause
}
