package ethereum

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// Contract ABIs, reduced to the methods the adapter calls.
const (
	erc20ABI = `[
		{"name":"balanceOf","type":"function","stateMutability":"view","inputs":[{"name":"account","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"decimals","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"uint8"}]},
		{"name":"allowance","type":"function","stateMutability":"view","inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"approve","type":"function","stateMutability":"nonpayable","inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]},
		{"name":"transferFrom","type":"function","stateMutability":"nonpayable","inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
	]`

	wethABI = `[
		{"name":"deposit","type":"function","stateMutability":"payable","inputs":[],"outputs":[]},
		{"name":"withdraw","type":"function","stateMutability":"nonpayable","inputs":[{"name":"wad","type":"uint256"}],"outputs":[]}
	]`

	addressBookABI = `[
		{"name":"getOtokenFactory","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"name":"getController","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"name":"getOracle","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
		{"name":"getMarginPool","type":"function","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
	]`

	factoryABI = `[
		{"name":"getOtoken","type":"function","stateMutability":"view","inputs":[
			{"name":"_underlyingAsset","type":"address"},
			{"name":"_strikeAsset","type":"address"},
			{"name":"_collateralAsset","type":"address"},
			{"name":"_strikePrice","type":"uint256"},
			{"name":"_expiry","type":"uint256"},
			{"name":"_isPut","type":"bool"}
		],"outputs":[{"name":"","type":"address"}]}
	]`

	otokenABI = `[
		{"name":"getOtokenDetails","type":"function","stateMutability":"view","inputs":[],"outputs":[
			{"name":"collateralAsset","type":"address"},
			{"name":"underlyingAsset","type":"address"},
			{"name":"strikeAsset","type":"address"},
			{"name":"strikePrice","type":"uint256"},
			{"name":"expiryTimestamp","type":"uint256"},
			{"name":"isPut","type":"bool"}
		]}
	]`

	controllerABI = `[
		{"name":"operate","type":"function","stateMutability":"nonpayable","inputs":[{"name":"_actions","type":"tuple[]","components":[
			{"name":"actionType","type":"uint8"},
			{"name":"owner","type":"address"},
			{"name":"secondAddress","type":"address"},
			{"name":"asset","type":"address"},
			{"name":"vaultId","type":"uint256"},
			{"name":"amount","type":"uint256"},
			{"name":"index","type":"uint256"},
			{"name":"data","type":"bytes"}
		]}],"outputs":[]},
		{"name":"getAccountVaultCounter","type":"function","stateMutability":"view","inputs":[{"name":"_accountOwner","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getPayout","type":"function","stateMutability":"view","inputs":[{"name":"_otoken","type":"address"},{"name":"_amount","type":"uint256"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getVault","type":"function","stateMutability":"view","inputs":[{"name":"_owner","type":"address"},{"name":"_vaultId","type":"uint256"}],"outputs":[{"name":"","type":"tuple","components":[
			{"name":"shortOtokens","type":"address[]"},
			{"name":"longOtokens","type":"address[]"},
			{"name":"collateralAssets","type":"address[]"},
			{"name":"shortAmounts","type":"uint256[]"},
			{"name":"longAmounts","type":"uint256[]"},
			{"name":"collateralAmounts","type":"uint256[]"}
		]}]}
	]`

	oracleABI = `[
		{"name":"getPrice","type":"function","stateMutability":"view","inputs":[{"name":"_asset","type":"address"}],"outputs":[{"name":"","type":"uint256"}]},
		{"name":"getExpiryPrice","type":"function","stateMutability":"view","inputs":[{"name":"_asset","type":"address"},{"name":"_expiryTimestamp","type":"uint256"}],"outputs":[{"name":"","type":"uint256"},{"name":"","type":"bool"}]}
	]`

	routerABI = `[
		{"name":"getAmountsIn","type":"function","stateMutability":"view","inputs":[{"name":"amountOut","type":"uint256"},{"name":"path","type":"address[]"}],"outputs":[{"name":"amounts","type":"uint256[]"}]},
		{"name":"swapETHForExactTokens","type":"function","stateMutability":"payable","inputs":[
			{"name":"amountOut","type":"uint256"},
			{"name":"path","type":"address[]"},
			{"name":"to","type":"address"},
			{"name":"deadline","type":"uint256"}
		],"outputs":[{"name":"amounts","type":"uint256[]"}]}
	]`
)

var (
	erc20Contract       = mustParse(erc20ABI)
	wethContract        = mustParse(wethABI)
	addressBookContract = mustParse(addressBookABI)
	factoryContract     = mustParse(factoryABI)
	otokenContract      = mustParse(otokenABI)
	controllerContract  = mustParse(controllerABI)
	oracleContract      = mustParse(oracleABI)
	routerContract      = mustParse(routerABI)
)

func mustParse(def string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(def))
	if err != nil {
		panic("ethereum: bad contract abi: " + err.Error())
	}
	return parsed
}

// Controller action types.
const (
	actionOpenVault         uint8 = 0
	actionMintShortOption   uint8 = 1
	actionDepositCollateral uint8 = 5
	actionRedeem            uint8 = 8
)

// actionArgs mirrors the controller's Actions.ActionArgs tuple.
type actionArgs struct {
	ActionType    uint8
	Owner         common.Address
	SecondAddress common.Address
	Asset         common.Address
	VaultId       *big.Int
	Amount        *big.Int
	Index         *big.Int
	Data          []byte
}

func newAction(kind uint8, owner, second, asset common.Address, vaultID uint64, amount *big.Int) actionArgs {
	if amount == nil {
		amount = new(big.Int)
	}
	return actionArgs{
		ActionType:    kind,
		Owner:         owner,
		SecondAddress: second,
		Asset:         asset,
		VaultId:       new(big.Int).SetUint64(vaultID),
		Amount:        new(big.Int).Set(amount),
		Index:         new(big.Int),
		Data:          []byte{},
	}
}

// marginVault mirrors MarginVault.Vault.
type marginVault struct {
	ShortOtokens      []common.Address
	LongOtokens       []common.Address
	CollateralAssets  []common.Address
	ShortAmounts      []*big.Int
	LongAmounts       []*big.Int
	CollateralAmounts []*big.Int
}
