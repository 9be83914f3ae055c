package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SwapOrder is a pre-signed off-chain order to be filled on the swap
// venue. Payload is forwarded verbatim; only the structured fields are
// checked by the adapter.
type SwapOrder struct {
	TakerAddress common.Address
	BuyToken     common.Address
	SellToken    common.Address
	FeeRecipient common.Address
	ProtocolFee  *big.Int
	BuyAmount    *big.Int
	SellAmount   *big.Int
	Payload      []byte
}

// TotalCost is the sell amount plus the protocol fee.
func (o SwapOrder) TotalCost() *big.Int {
	total := new(big.Int)
	if o.SellAmount != nil {
		total.Add(total, o.SellAmount)
	}
	if o.ProtocolFee != nil {
		total.Add(total, o.ProtocolFee)
	}
	return total
}

// Fee returns the protocol fee, zero if unset.
func (o SwapOrder) Fee() *big.Int {
	if o.ProtocolFee == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(o.ProtocolFee)
}
