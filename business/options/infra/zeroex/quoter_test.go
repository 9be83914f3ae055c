package zeroex_test

import (
	"context"
	"fmt"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/infra/zeroex"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

var (
	exchange = common.HexToAddress("0xDef1C0ded9bec7F1a1670819833240f027b25EfF")
	otoken   = common.HexToAddress("0x006583fEea92C695A9dE02C3AC2d4cd321f2F341")
	taker    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	feeTo    = common.HexToAddress("0x1000000000000000000000000000000000000011")
)

func quoteServer(t *testing.T, to common.Address, sellToken string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "/swap/v1/quote", r.URL.Path)
		assert.Equal(t, otoken.Hex(), q.Get("buyToken"))
		assert.Equal(t, "10000000", q.Get("buyAmount"))
		fmt.Fprintf(w, `{
			"to": %q,
			"data": "0xd9627aa4000000",
			"value": "16195055430257410",
			"protocolFee": "70000000000000",
			"buyTokenAddress": %q,
			"sellTokenAddress": %q,
			"buyAmount": "10000000",
			"sellAmount": "16125055430257410",
			"orders": [{"feeRecipientAddress": %q}]
		}`, to.Hex(), otoken.Hex(), sellToken, feeTo.Hex())
	}))
}

func TestQuoter_Quote(t *testing.T) {
	srv := quoteServer(t, exchange, asset.AddrWETHEthereum.Hex())
	defer srv.Close()

	q, err := zeroex.NewQuoter(zeroex.Config{BaseURL: srv.URL, Exchange: exchange}, logger.NewNop())
	require.NoError(t, err)

	order, err := q.Quote(context.Background(), zeroex.QuoteRequest{
		BuyToken:  otoken,
		SellToken: asset.AddrWETHEthereum,
		BuyAmount: big.NewInt(10_000_000),
		Taker:     taker,
	})
	require.NoError(t, err)

	assert.Equal(t, otoken, order.BuyToken)
	assert.Equal(t, asset.AddrWETHEthereum, order.SellToken)
	assert.Equal(t, taker, order.TakerAddress)
	assert.Equal(t, feeTo, order.FeeRecipient)
	assert.Equal(t, "70000000000000", order.ProtocolFee.String())
	assert.Equal(t, "16125055430257410", order.SellAmount.String())
	assert.Equal(t, []byte{0xd9, 0x62, 0x7a, 0xa4, 0, 0, 0}, order.Payload)

	kind, err := app.NewValidator(asset.AddrWETHEthereum, nil).Validate(order, app.ExpectedOrder{
		BuyToken: otoken,
		Taker:    taker,
		Funds:    big.NewInt(16195055430257410),
	})
	require.NoError(t, err)
	assert.Equal(t, app.SellWrapped, kind)
}

func TestQuoter_NativeSellToken(t *testing.T) {
	srv := quoteServer(t, exchange, "0xeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeeee")
	defer srv.Close()

	q, err := zeroex.NewQuoter(zeroex.Config{BaseURL: srv.URL, Exchange: exchange}, logger.NewNop())
	require.NoError(t, err)

	order, err := q.Quote(context.Background(), zeroex.QuoteRequest{BuyToken: otoken, BuyAmount: big.NewInt(10_000_000)})
	require.NoError(t, err)
	assert.Equal(t, asset.NativeAddress, order.SellToken)
	assert.Equal(t, common.Address{}, order.TakerAddress)
}

func TestQuoter_WrongExchange(t *testing.T) {
	srv := quoteServer(t, common.HexToAddress("0x61935CbDd02287B511119DDb11Aeb42F1593b7Ef"), asset.AddrWETHEthereum.Hex())
	defer srv.Close()

	q, err := zeroex.NewQuoter(zeroex.Config{BaseURL: srv.URL, Exchange: exchange}, logger.NewNop())
	require.NoError(t, err)

	_, err = q.Quote(context.Background(), zeroex.QuoteRequest{BuyToken: otoken, BuyAmount: big.NewInt(10_000_000)})
	assert.Equal(t, apperror.CodeOrderMismatch, apperror.GetCode(err))
}

func TestQuoter_RejectsBadInput(t *testing.T) {
	_, err := zeroex.NewQuoter(zeroex.Config{}, logger.NewNop())
	assert.Equal(t, apperror.CodeConfigurationError, apperror.GetCode(err))

	q, err := zeroex.NewQuoter(zeroex.Config{BaseURL: "http://127.0.0.1:1"}, logger.NewNop())
	require.NoError(t, err)
	_, err = q.Quote(context.Background(), zeroex.QuoteRequest{BuyToken: otoken, BuyAmount: big.NewInt(0)})
	assert.Equal(t, apperror.CodeInvalidInput, apperror.GetCode(err))
}

func TestQuoter_TopLevelFeeRecipient(t *testing.T) {
	recipient := common.HexToAddress("0x2000000000000000000000000000000000000022")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{
			"to": %q,
			"data": "0x",
			"protocolFee": "0",
			"buyTokenAddress": %q,
			"sellTokenAddress": %q,
			"buyAmount": "10000000",
			"sellAmount": "1",
			"feeRecipient": %q,
			"orders": [{"feeRecipientAddress": %q}]
		}`, exchange.Hex(), otoken.Hex(), asset.AddrWETHEthereum.Hex(), recipient.Hex(), feeTo.Hex())
	}))
	defer srv.Close()

	q, err := zeroex.NewQuoter(zeroex.Config{BaseURL: srv.URL, Exchange: exchange}, logger.NewNop())
	require.NoError(t, err)

	order, err := q.Quote(context.Background(), zeroex.QuoteRequest{BuyToken: otoken, BuyAmount: big.NewInt(10_000_000)})
	require.NoError(t, err)
	assert.Equal(t, recipient, order.FeeRecipient)
}
