package app

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/asset"
)

// Protocol names reported by the adapters.
const (
	ProtocolGamma  = "OPYN_GAMMA"
	ProtocolLegacy = "OPYN_V1"
)

// ZeroProfitPolicy decides what exercising a worthless option does.
type ZeroProfitPolicy uint8

const (
	// ZeroProfitRevert fails with ZERO_PROFIT.
	ZeroProfitRevert ZeroProfitPolicy = iota
	// ZeroProfitNoop returns a zero payout and changes nothing.
	ZeroProfitNoop
)

// ParseZeroProfitPolicy parses "revert" or "noop".
func ParseZeroProfitPolicy(s string) (ZeroProfitPolicy, error) {
	switch strings.ToLower(s) {
	case "", "revert":
		return ZeroProfitRevert, nil
	case "noop":
		return ZeroProfitNoop, nil
	default:
		return 0, fmt.Errorf("unknown zero profit policy %q", s)
	}
}

// ParseRounding parses "floor" or "half_up".
func ParseRounding(s string) (asset.Rounding, error) {
	switch strings.ToLower(s) {
	case "", "floor":
		return asset.RoundDown, nil
	case "half_up":
		return asset.RoundHalfUp, nil
	default:
		return 0, fmt.Errorf("unknown rounding %q", s)
	}
}

// Settings are the per-variant knobs of an adapter.
type Settings struct {
	Protocol    string
	NonFungible bool

	// Self is the adapter's custody address. It must hold nothing between calls.
	Self common.Address

	PayoutBasis  domain.PayoutBasis
	MintRounding asset.Rounding
	ZeroProfit   ZeroProfitPolicy

	// CollateralFloors is the minimum deposit per collateral asset, in
	// the asset's smallest unit. Assets without an entry need 1 unit.
	CollateralFloors map[common.Address]*big.Int

	// Intermediates are tokens a swap order may sell besides the native
	// currency and its wrapper; they are bought on the Exchange first.
	Intermediates []common.Address

	// UnwrapPayouts delivers wrapped-native exercise payouts as native currency.
	UnwrapPayouts bool
}

// DefaultWrappedFloor is the minimum deposit of an 18 decimal collateral.
var DefaultWrappedFloor = big.NewInt(100_000_000)

func (s Settings) collateralFloor(collateral common.Address) *big.Int {
	if f, ok := s.CollateralFloors[collateral]; ok && f != nil && f.Sign() > 0 {
		return f
	}
	return big.NewInt(1)
}
