package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// VaultID is the protocol-issued sequence number of a vault, scoped by owner.
type VaultID uint64

// Vault is a margin account holding collateral against minted options.
type Vault struct {
	Owner            common.Address
	ID               VaultID
	CollateralAsset  common.Address
	CollateralAmount *big.Int
	Token            common.Address
	MintedAmount     *big.Int
}

// ShortPosition is the result of opening a short: the vault that backs it
// and who received the minted tokens.
type ShortPosition struct {
	Vault     Vault
	Recipient common.Address
}
