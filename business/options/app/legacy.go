package app

import (
	"context"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// TokenRegistry is an owner-maintained TokenIndex for protocols without an
// on-chain factory. It also records which writer vaults each token is
// exercised against. Terms naming the native currency and terms naming its
// wrapper resolve to the same series once a wrapper is bound.
type TokenRegistry struct {
	owner   common.Address
	wrapped common.Address

	mu      sync.RWMutex
	byTerms map[common.Hash]domain.OptionToken
	byToken map[common.Address]domain.OptionToken
	vaults  map[common.Address][]common.Address
}

var _ TokenIndex = (*TokenRegistry)(nil)

// NewTokenRegistry creates a registry administered by owner.
func NewTokenRegistry(owner common.Address) *TokenRegistry {
	return &TokenRegistry{
		owner:   owner,
		byTerms: make(map[common.Hash]domain.OptionToken),
		byToken: make(map[common.Address]domain.OptionToken),
		vaults:  make(map[common.Address][]common.Address),
	}
}

// Owner returns the administrator.
func (r *TokenRegistry) Owner() common.Address {
	return r.owner
}

// SetOTokenWithTerms registers token under its terms.
func (r *TokenRegistry) SetOTokenWithTerms(caller common.Address, token domain.OptionToken) error {
	if caller != r.owner {
		return apperror.New(apperror.CodeUnauthorizedCaller, apperror.WithContext(caller.Hex()))
	}
	if err := token.Terms.Validate(); err != nil {
		return apperror.Validation(apperror.CodeInvalidOption, err.Error())
	}
	if token.Address == (common.Address{}) {
		return apperror.Validation(apperror.CodeInvalidOption, "zero token address")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byTerms[r.key(token.Terms)] = token
	r.byToken[token.Address] = token
	return nil
}

// SetVaults sets the vaults token is exercised against.
func (r *TokenRegistry) SetVaults(caller, token common.Address, vaults []common.Address) error {
	if caller != r.owner {
		return apperror.New(apperror.CodeUnauthorizedCaller, apperror.WithContext(caller.Hex()))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.vaults[token] = append([]common.Address(nil), vaults...)
	return nil
}

// Vaults returns the vaults token is exercised against.
func (r *TokenRegistry) Vaults(token common.Address) ([]common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	vaults := r.vaults[token]
	if len(vaults) == 0 {
		return nil, apperror.New(apperror.CodeNoVaultsConfigured, apperror.WithContext(token.Hex()))
	}
	return append([]common.Address(nil), vaults...), nil
}

// LookupToken implements TokenIndex.
func (r *TokenRegistry) LookupToken(_ context.Context, terms domain.OptionTerms) (common.Address, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.byTerms[r.key(terms)].Address, nil
}

// bindWrapped sets the wrapper native terms are keyed under and re-keys
// the series registered so far.
func (r *TokenRegistry) bindWrapped(wrapped common.Address) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.wrapped = wrapped
	rekeyed := make(map[common.Hash]domain.OptionToken, len(r.byTerms))
	for _, token := range r.byTerms {
		rekeyed[r.key(token.Terms)] = token
	}
	r.byTerms = rekeyed
}

// key must be called with mu held.
func (r *TokenRegistry) key(terms domain.OptionTerms) common.Hash {
	if r.wrapped == (common.Address{}) {
		return terms.Key()
	}
	return terms.WithAssets(asset.NativeAddress, r.wrapped).Key()
}

// TokenDetails implements TokenIndex.
func (r *TokenRegistry) TokenDetails(_ context.Context, token common.Address) (domain.OptionToken, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	details, ok := r.byToken[token]
	if !ok {
		return domain.OptionToken{}, apperror.NotFound(apperror.CodeUnknownOption, token.Hex())
	}
	return details, nil
}

// LegacyAdapter is the adapter for protocols whose tokens trade against
// the native currency in a constant-product pool and whose series are
// registered by an owner.
type LegacyAdapter struct {
	*Facade
	registry *TokenRegistry
}

// NewLegacyAdapter builds a LegacyAdapter. deps.Index is replaced by
// registry. A nil pricer prices at the pool.
func NewLegacyAdapter(deps Dependencies, settings Settings, registry *TokenRegistry, pricer Pricer) (*LegacyAdapter, error) {
	if settings.Protocol == "" {
		settings.Protocol = ProtocolLegacy
	}
	if registry == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("token registry is required"))
	}
	deps.Index = registry
	if deps.Wrapped != nil {
		registry.bindWrapped(deps.Wrapped.Address())
	}
	if pricer == nil {
		pricer = ExchangePricer{Exchange: deps.Exchange}
	}

	f, err := newFacade(deps, settings, pricer)
	if err != nil {
		return nil, err
	}
	f.purchase = f.purchaseFromExchange
	f.vaultsFor = registry.Vaults
	return &LegacyAdapter{Facade: f, registry: registry}, nil
}

// Registry exposes the owner-maintained token registry.
func (a *LegacyAdapter) Registry() *TokenRegistry {
	return a.registry
}
