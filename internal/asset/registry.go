package asset

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// Registry is a thread-safe registry of the assets of one chain.
type Registry struct {
	chainID   uint64
	byAddress map[common.Address]*Asset
	mu        sync.RWMutex
}

// NewRegistry creates an empty registry for chainID.
func NewRegistry(chainID uint64) *Registry {
	return &Registry{
		chainID:   chainID,
		byAddress: make(map[common.Address]*Asset),
	}
}

// ChainID returns the chain the registry describes.
func (r *Registry) ChainID() uint64 {
	return r.chainID
}

// Register adds an asset. Re-registering an address replaces it so that
// configured tokens can override the well-known defaults.
func (r *Registry) Register(a *Asset) error {
	if a == nil {
		return ErrNilAsset
	}
	if a.ID().ChainID() != r.chainID {
		return fmt.Errorf("asset: %s registered on chain %d", a.ID(), r.chainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.byAddress[a.Address()] = a
	return nil
}

// Get retrieves an asset by contract address (NativeAddress for the coin).
func (r *Registry) Get(addr common.Address) (*Asset, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.byAddress[addr]
	return a, ok
}

// Decimals returns the decimals of addr.
func (r *Registry) Decimals(addr common.Address) (uint8, error) {
	a, ok := r.Get(addr)
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrUnknownAsset, addr.Hex())
	}
	return a.Decimals(), nil
}

// Count returns the number of registered assets.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byAddress)
}
