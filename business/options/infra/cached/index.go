// Package cached decorates a TokenIndex with an in-process cache. Issued
// option series never change, so both directions are cached; only
// positive lookups are kept so a series created later is still found.
package cached

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/cache"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// Index caches an app.TokenIndex.
type Index struct {
	next    app.TokenIndex
	byTerms *cache.Cache[common.Address]
	details *cache.Cache[domain.OptionToken]
	logger  logger.LoggerInterface
}

var _ app.TokenIndex = (*Index)(nil)

// NewIndex wraps next.
func NewIndex(next app.TokenIndex, cfg cache.Config, log logger.LoggerInterface) (*Index, error) {
	termsCfg := cfg
	termsCfg.Name = cfg.Name + "_terms"
	byTerms, err := cache.New[common.Address](termsCfg)
	if err != nil {
		return nil, err
	}

	detailsCfg := cfg
	detailsCfg.Name = cfg.Name + "_details"
	details, err := cache.New[domain.OptionToken](detailsCfg)
	if err != nil {
		byTerms.Close()
		return nil, err
	}

	return &Index{next: next, byTerms: byTerms, details: details, logger: log}, nil
}

// LookupToken implements app.TokenIndex.
func (i *Index) LookupToken(ctx context.Context, terms domain.OptionTerms) (common.Address, error) {
	key := terms.Key().Hex()
	if addr, ok := i.byTerms.Get(ctx, key); ok {
		return addr, nil
	}

	addr, err := i.next.LookupToken(ctx, terms)
	if err != nil {
		return common.Address{}, err
	}
	if addr != (common.Address{}) {
		i.byTerms.Set(ctx, key, addr, 0)
	}
	return addr, nil
}

// TokenDetails implements app.TokenIndex.
func (i *Index) TokenDetails(ctx context.Context, token common.Address) (domain.OptionToken, error) {
	key := token.Hex()
	if details, ok := i.details.Get(ctx, key); ok {
		return details, nil
	}

	details, err := i.next.TokenDetails(ctx, token)
	if err != nil {
		return domain.OptionToken{}, err
	}
	i.details.Set(ctx, key, details, 0)
	i.logger.Debug(ctx, "option token cached", "token", key)
	return details, nil
}

// Wait blocks until pending cache writes are visible.
func (i *Index) Wait() {
	i.byTerms.Wait()
	i.details.Wait()
}

// Close releases the caches.
func (i *Index) Close() {
	i.byTerms.Close()
	i.details.Close()
}
