package cached_test

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/business/options/infra/cached"
	"github.com/fd1az/otoken-adapter/internal/cache"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

type countingIndex struct {
	lookups, details int
	token            domain.OptionToken
	known            bool
}

func (c *countingIndex) LookupToken(context.Context, domain.OptionTerms) (common.Address, error) {
	c.lookups++
	if !c.known {
		return common.Address{}, nil
	}
	return c.token.Address, nil
}

func (c *countingIndex) TokenDetails(context.Context, common.Address) (domain.OptionToken, error) {
	c.details++
	return c.token, nil
}

func TestIndex_CachesPositiveLookups(t *testing.T) {
	ctx := context.Background()
	terms := domain.OptionTerms{
		Underlying:      common.HexToAddress("0x01"),
		StrikeAsset:     common.HexToAddress("0x02"),
		CollateralAsset: common.HexToAddress("0x01"),
		Expiry:          time.Date(2021, 1, 29, 8, 0, 0, 0, time.UTC),
		StrikePrice:     big.NewInt(960),
		OptionType:      domain.Call,
	}
	next := &countingIndex{token: domain.OptionToken{Address: common.HexToAddress("0xabc"), Terms: terms, Decimals: 8}}

	idx, err := cached.NewIndex(next, cache.DefaultConfig("otokens"), logger.NewNop())
	require.NoError(t, err)
	defer idx.Close()

	// unknown series are not cached
	addr, err := idx.LookupToken(ctx, terms)
	require.NoError(t, err)
	assert.Equal(t, common.Address{}, addr)
	idx.Wait()

	next.known = true
	for range 3 {
		addr, err = idx.LookupToken(ctx, terms)
		require.NoError(t, err)
		assert.Equal(t, next.token.Address, addr)
		idx.Wait()
	}
	assert.Equal(t, 2, next.lookups)

	for range 3 {
		details, err := idx.TokenDetails(ctx, next.token.Address)
		require.NoError(t, err)
		assert.Equal(t, uint8(8), details.Decimals)
		idx.Wait()
	}
	assert.Equal(t, 1, next.details)
}
