package app

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// Resolver maps option terms to the token the protocol issued for them.
// It keeps no state and only reads from the TokenIndex.
type Resolver struct {
	index TokenIndex
	// wrapped replaces the native currency in lookups, for protocols
	// that only know ERC20 assets. Zero disables the mapping.
	wrapped common.Address
	logger  logger.LoggerInterface
}

// NewResolver creates a Resolver.
func NewResolver(index TokenIndex, wrapped common.Address, log logger.LoggerInterface) *Resolver {
	return &Resolver{index: index, wrapped: wrapped, logger: log}
}

// Resolve returns the option token for terms or UNKNOWN_OPTION.
func (r *Resolver) Resolve(ctx context.Context, terms domain.OptionTerms) (domain.OptionToken, error) {
	if err := terms.Validate(); err != nil {
		return domain.OptionToken{}, apperror.New(apperror.CodeUnknownOption,
			apperror.WithContext(err.Error()), apperror.WithCause(err))
	}

	lookup := terms
	if r.wrapped != (common.Address{}) {
		lookup = terms.WithAssets(asset.NativeAddress, r.wrapped)
	}

	addr, err := r.index.LookupToken(ctx, lookup)
	if err != nil {
		return domain.OptionToken{}, apperror.Wrap(err, apperror.CodeContractCallFailed, "lookup option token")
	}
	if addr == (common.Address{}) {
		r.logger.Debug(ctx, "no option token for terms", "terms", terms.String())
		return domain.OptionToken{}, apperror.NotFound(apperror.CodeUnknownOption, terms.String())
	}

	return r.Details(ctx, addr)
}

// Details loads the terms of an issued token.
func (r *Resolver) Details(ctx context.Context, token common.Address) (domain.OptionToken, error) {
	if token == (common.Address{}) {
		return domain.OptionToken{}, apperror.NotFound(apperror.CodeUnknownOption, "zero token address")
	}
	details, err := r.index.TokenDetails(ctx, token)
	if err != nil {
		return domain.OptionToken{}, apperror.Wrap(err, apperror.CodeUnknownOption, token.Hex())
	}
	return details, nil
}
