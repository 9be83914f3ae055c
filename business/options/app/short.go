package app

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// ShortManager opens collateralized short positions: a vault holding the
// caller's collateral and the option tokens minted against it.
type ShortManager struct {
	controller Controller
	ledger     Ledger
	registry   *asset.Registry
	settings   Settings
	logger     logger.LoggerInterface
}

// NewShortManager creates a ShortManager.
func NewShortManager(controller Controller, ledger Ledger, registry *asset.Registry,
	settings Settings, log logger.LoggerInterface) *ShortManager {
	return &ShortManager{
		controller: controller,
		ledger:     ledger,
		registry:   registry,
		settings:   settings,
		logger:     log,
	}
}

// MintAmount returns the tokens collateral backs, failing with
// COLLATERAL_TOO_SMALL below the floor or when nothing would be minted.
func (m *ShortManager) MintAmount(token domain.OptionToken, collateral *big.Int) (*big.Int, error) {
	terms := token.Terms
	if collateral == nil || collateral.Sign() <= 0 {
		return nil, apperror.Validation(apperror.CodeCollateralTooSmall, "no collateral")
	}
	if floor := m.settings.collateralFloor(terms.CollateralAsset); collateral.Cmp(floor) < 0 {
		return nil, apperror.Validation(apperror.CodeCollateralTooSmall,
			"must deposit at least "+floor.String())
	}

	decimals, err := m.registry.Decimals(terms.CollateralAsset)
	if err != nil {
		return nil, apperror.Validation(apperror.CodeInvalidOption, err.Error())
	}

	minted, err := domain.MintAmount(terms, collateral, decimals, token.Decimals, m.settings.MintRounding)
	if err != nil {
		return nil, arithError(err)
	}
	if minted.Sign() == 0 {
		return nil, apperror.Validation(apperror.CodeCollateralTooSmall, "collateral mints zero tokens")
	}
	return minted, nil
}

// CreateShort posts collateral from caller into a fresh vault, mints
// against it and hands the tokens to caller. It must run inside an Atomic
// scope. Deposit always precedes mint.
func (m *ShortManager) CreateShort(ctx context.Context, caller common.Address, token domain.OptionToken, collateral *big.Int) (domain.Vault, error) {
	minted, err := m.MintAmount(token, collateral)
	if err != nil {
		return domain.Vault{}, err
	}

	self := m.settings.Self
	collateralAsset := token.Terms.CollateralAsset

	if err := m.ledger.Transfer(ctx, collateralAsset, caller, self, collateral); err != nil {
		return domain.Vault{}, err
	}

	id, err := m.controller.OpenVault(ctx, self)
	if err != nil {
		return domain.Vault{}, err
	}
	if err := m.controller.DepositCollateral(ctx, self, id, collateralAsset, collateral); err != nil {
		return domain.Vault{}, err
	}
	if err := m.controller.MintToken(ctx, self, id, token.Address, minted, self); err != nil {
		return domain.Vault{}, err
	}
	if err := m.ledger.Transfer(ctx, token.Address, self, caller, minted); err != nil {
		return domain.Vault{}, err
	}

	vault, err := m.controller.Vault(ctx, self, id)
	if err != nil {
		return domain.Vault{}, err
	}

	m.logger.Info(ctx, "short created",
		"vault_id", uint64(id),
		"token", token.Address.Hex(),
		"collateral", collateral.String(),
		"minted", minted.String(),
	)
	return vault, nil
}
