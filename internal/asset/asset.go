// Package asset models on-chain assets and the fixed-point arithmetic the
// adapter performs on their amounts. The core uses big.Int; decimal.Decimal
// only appears at boundaries (config, logging, display).
package asset

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// NativeAddress addresses the chain's native currency.
var NativeAddress = common.Address{}

// AssetID uniquely identifies an asset by chain and contract address.
// The zero address denotes the native coin.
type AssetID struct {
	chainID uint64
	address common.Address
}

// NewAssetID creates an AssetID. Pass NativeAddress for the native coin.
func NewAssetID(chainID uint64, addr common.Address) AssetID {
	return AssetID{chainID: chainID, address: addr}
}

func (id AssetID) ChainID() uint64         { return id.chainID }
func (id AssetID) Address() common.Address { return id.address }
func (id AssetID) IsNative() bool          { return id.address == NativeAddress }

func (id AssetID) String() string {
	if id.IsNative() {
		return fmt.Sprintf("chain:%d/native", id.chainID)
	}
	return fmt.Sprintf("chain:%d/%s", id.chainID, id.address.Hex())
}

// Asset is the metadata of an ERC20 token or native coin. The symbol is
// display only; identity is the AssetID.
type Asset struct {
	id       AssetID
	symbol   string
	decimals uint8
}

// NewAsset creates a new Asset.
func NewAsset(id AssetID, symbol string, decimals uint8) *Asset {
	if symbol == "" {
		panic("asset: empty symbol")
	}
	if decimals > MaxDecimals {
		panic("asset: suspicious decimals")
	}
	return &Asset{id: id, symbol: symbol, decimals: decimals}
}

func (a *Asset) ID() AssetID             { return a.id }
func (a *Asset) Symbol() string          { return a.symbol }
func (a *Asset) Decimals() uint8         { return a.decimals }
func (a *Asset) Address() common.Address { return a.id.Address() }
func (a *Asset) IsNative() bool          { return a.id.IsNative() }
func (a *Asset) String() string          { return a.symbol }

// Equals compares two Assets by their ID.
func (a *Asset) Equals(other *Asset) bool {
	if a == nil || other == nil {
		return a == other
	}
	return a.id == other.id
}
