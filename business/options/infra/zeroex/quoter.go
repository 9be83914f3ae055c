// Package zeroex fetches fillable swap orders from the 0x swap API.
package zeroex

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/httpclient"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

const quotePath = "/swap/v1/quote"

// nativeSentinel is how the API denotes the native currency.
var nativeSentinel = common.HexToAddress("0xEeeeeEeeeEeEeeEeEeEeeEEEeeeeEeeeeeeeEEeE")

// Config addresses the API.
type Config struct {
	BaseURL string
	APIKey  string
	// Exchange is the proxy orders must be sent to.
	Exchange common.Address
	Timeout  time.Duration

	// RequestsPerMinute paces calls to the API quota; zero is unpaced.
	RequestsPerMinute int
}

// QuoteRequest asks for an order buying exactly BuyAmount of BuyToken.
type QuoteRequest struct {
	BuyToken  common.Address
	SellToken common.Address // zero for native currency
	BuyAmount *big.Int
	Taker     common.Address // zero leaves the order open
}

// Quoter turns API quotes into swap orders the adapter can validate.
type Quoter struct {
	http     *httpclient.Client
	exchange common.Address
	logger   logger.LoggerInterface
}

// NewQuoter creates a quoter. opts are passed to the HTTP client.
func NewQuoter(cfg Config, log logger.LoggerInterface, opts ...httpclient.Option) (*Quoter, error) {
	if cfg.BaseURL == "" {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("0x base url is required"))
	}
	base := []httpclient.Option{
		httpclient.WithBaseURL(cfg.BaseURL),
		httpclient.WithProviderName("zeroex"),
		httpclient.WithRateLimit(cfg.RequestsPerMinute),
	}
	if cfg.APIKey != "" {
		base = append(base, httpclient.WithHeaders(map[string]string{"0x-api-key": cfg.APIKey}))
	}
	if cfg.Timeout > 0 {
		base = append(base, httpclient.WithRequestTimeout(cfg.Timeout))
	}

	client, err := httpclient.New(append(base, opts...)...)
	if err != nil {
		return nil, err
	}
	return &Quoter{http: client, exchange: cfg.Exchange, logger: log}, nil
}

type quoteResponse struct {
	To               common.Address `json:"to"`
	Data             string         `json:"data"`
	Value            string         `json:"value"`
	ProtocolFee      string         `json:"protocolFee"`
	BuyTokenAddress  common.Address `json:"buyTokenAddress"`
	SellTokenAddress common.Address `json:"sellTokenAddress"`
	BuyAmount        string         `json:"buyAmount"`
	SellAmount       string         `json:"sellAmount"`
	FeeRecipient     common.Address `json:"feeRecipient"`
	Orders           []struct {
		FeeRecipientAddress common.Address `json:"feeRecipientAddress"`
	} `json:"orders"`
}

// feeRecipient is the quote's fee recipient, falling back to the first
// native order's.
func (r quoteResponse) feeRecipient() common.Address {
	if r.FeeRecipient != (common.Address{}) || len(r.Orders) == 0 {
		return r.FeeRecipient
	}
	return r.Orders[0].FeeRecipientAddress
}

// Quote fetches an order for req.
func (q *Quoter) Quote(ctx context.Context, req QuoteRequest) (domain.SwapOrder, error) {
	if req.BuyAmount == nil || req.BuyAmount.Sign() <= 0 {
		return domain.SwapOrder{}, apperror.Validation(apperror.CodeInvalidInput, "buy amount must be positive")
	}

	sell := "ETH"
	if req.SellToken != asset.NativeAddress {
		sell = req.SellToken.Hex()
	}

	r := q.http.NewRequest().
		SetQueryParam("buyToken", req.BuyToken.Hex()).
		SetQueryParam("sellToken", sell).
		SetQueryParam("buyAmount", req.BuyAmount.String())
	if req.Taker != (common.Address{}) {
		r.SetQueryParam("takerAddress", req.Taker.Hex())
	}

	var resp quoteResponse
	if _, err := r.SetResult(&resp).Get(ctx, quotePath); err != nil {
		return domain.SwapOrder{}, err
	}

	order, err := q.toOrder(resp, req.Taker)
	if err != nil {
		return domain.SwapOrder{}, err
	}
	q.logger.Debug(ctx, "0x quote",
		"buy_token", order.BuyToken.Hex(),
		"buy_amount", order.BuyAmount.String(),
		"sell_token", order.SellToken.Hex(),
		"sell_amount", order.SellAmount.String(),
		"protocol_fee", order.Fee().String(),
	)
	return order, nil
}

func (q *Quoter) toOrder(resp quoteResponse, taker common.Address) (domain.SwapOrder, error) {
	if q.exchange != (common.Address{}) && resp.To != q.exchange {
		return domain.SwapOrder{}, apperror.Validation(apperror.CodeOrderMismatch,
			"quote targets "+resp.To.Hex()+" instead of "+q.exchange.Hex())
	}

	payload, err := hexutil.Decode(resp.Data)
	if err != nil {
		return domain.SwapOrder{}, apperror.Wrap(err, apperror.CodeExternalServiceError, "quote calldata")
	}
	fee, err := parseAmount("protocolFee", resp.ProtocolFee, true)
	if err != nil {
		return domain.SwapOrder{}, err
	}
	buy, err := parseAmount("buyAmount", resp.BuyAmount, false)
	if err != nil {
		return domain.SwapOrder{}, err
	}
	sellAmount, err := parseAmount("sellAmount", resp.SellAmount, false)
	if err != nil {
		return domain.SwapOrder{}, err
	}

	sellToken := resp.SellTokenAddress
	if sellToken == nativeSentinel {
		sellToken = asset.NativeAddress
	}

	return domain.SwapOrder{
		TakerAddress: taker,
		BuyToken:     resp.BuyTokenAddress,
		SellToken:    sellToken,
		FeeRecipient: resp.feeRecipient(),
		ProtocolFee:  fee,
		BuyAmount:    buy,
		SellAmount:   sellAmount,
		Payload:      payload,
	}, nil
}

func parseAmount(field, s string, optional bool) (*big.Int, error) {
	s = strings.TrimSpace(s)
	if s == "" && optional {
		return new(big.Int), nil
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok || v.Sign() < 0 {
		return nil, apperror.New(apperror.CodeExternalServiceError,
			apperror.WithContext("malformed "+field+" "+s))
	}
	return v, nil
}
