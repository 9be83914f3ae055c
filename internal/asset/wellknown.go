package asset

import "github.com/ethereum/go-ethereum/common"

// Chain IDs
const (
	ChainIDEthereum = 1
	ChainIDSepolia  = 11155111
)

// Well-known token addresses on Ethereum Mainnet
var (
	AddrUSDCEthereum = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	AddrWETHEthereum = common.HexToAddress("0xC02aaA39b223FE8D0A0e5C4F27eAD9083C756Cc2")
	AddrWBTCEthereum = common.HexToAddress("0x2260FAC5E5542a773Aa44fBCfeDf7C193bc2C599")
)

// Well-known mainnet assets
var (
	ETH  = NewAsset(NewAssetID(ChainIDEthereum, NativeAddress), "ETH", 18)
	WETH = NewAsset(NewAssetID(ChainIDEthereum, AddrWETHEthereum), "WETH", 18)
	USDC = NewAsset(NewAssetID(ChainIDEthereum, AddrUSDCEthereum), "USDC", 6)
	WBTC = NewAsset(NewAssetID(ChainIDEthereum, AddrWBTCEthereum), "WBTC", 8)
)

// DefaultRegistry returns a mainnet registry pre-populated with well-known assets.
func DefaultRegistry() *Registry {
	r := NewRegistry(ChainIDEthereum)
	for _, a := range []*Asset{ETH, WETH, USDC, WBTC} {
		_ = r.Register(a)
	}
	return r
}

// NewToken creates an ERC20 token asset.
func NewToken(chainID uint64, addr common.Address, symbol string, decimals uint8) *Asset {
	return NewAsset(NewAssetID(chainID, addr), symbol, decimals)
}
