// Package ethereum runs the options adapter against deployed contracts
// through a JSON-RPC node, signing as a single operator account.
package ethereum

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/circuitbreaker"
	"github.com/fd1az/otoken-adapter/internal/logger"
	"github.com/fd1az/otoken-adapter/internal/ratelimit"
)

const (
	tracerName = "options.ethereum"
	meterName  = "options.ethereum"
)

// Backend is the subset of *ethclient.Client the adapter uses.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

var _ Backend = (*ethclient.Client)(nil)

// ClientConfig configures the RPC client and signer.
type ClientConfig struct {
	ChainID           *big.Int
	PrivateKey        *ecdsa.PrivateKey
	RequestsPerMinute int
	ReceiptTimeout    time.Duration
	ReceiptPoll       time.Duration
	Gas               GasOracleConfig
}

// DefaultClientConfig returns defaults for chainID signing with key.
func DefaultClientConfig(chainID uint64, key *ecdsa.PrivateKey) ClientConfig {
	return ClientConfig{
		ChainID:           new(big.Int).SetUint64(chainID),
		PrivateKey:        key,
		RequestsPerMinute: 600,
		ReceiptTimeout:    2 * time.Minute,
		ReceiptPoll:       2 * time.Second,
		Gas:               DefaultGasOracleConfig(),
	}
}

// ParsePrivateKey decodes a hex private key, with or without 0x.
func ParsePrivateKey(s string) (*ecdsa.PrivateKey, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(s, "0x"))
	if err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError,
			apperror.WithCause(err),
			apperror.WithContext("invalid private key"))
	}
	return key, nil
}

type clientMetrics struct {
	calls        metric.Int64Counter
	callErrors   metric.Int64Counter
	transactions metric.Int64Counter
	txLatency    metric.Float64Histogram
}

// Client reads contract state and sends signed transactions from one account.
type Client struct {
	backend Backend
	config  ClientConfig
	from    common.Address
	signer  types.Signer
	closer  func()

	// sendMu serializes nonce assignment.
	sendMu sync.Mutex

	gas     *GasOracle
	limiter *ratelimit.Limiter
	cb      *circuitbreaker.CircuitBreaker[[]byte]

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *clientMetrics
}

// Dial connects to url and returns a client for it.
func Dial(ctx context.Context, url string, cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, url)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
			apperror.WithCause(err),
			apperror.WithContext("failed to connect to ethereum node"))
	}

	c, err := NewClient(ec, cfg, log)
	if err != nil {
		ec.Close()
		return nil, err
	}
	c.closer = ec.Close

	log.Info(ctx, "ethereum client connected", "from", c.from.Hex(), "chain_id", cfg.ChainID.String())
	return c, nil
}

// NewClient wraps backend.
func NewClient(backend Backend, cfg ClientConfig, log logger.LoggerInterface) (*Client, error) {
	if cfg.PrivateKey == nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("private key is required"))
	}
	if cfg.ChainID == nil || cfg.ChainID.Sign() <= 0 {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithContext("chain id is required"))
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 600
	}
	if cfg.ReceiptPoll <= 0 {
		cfg.ReceiptPoll = 2 * time.Second
	}

	gas, err := NewGasOracle(backend, cfg.Gas, log)
	if err != nil {
		return nil, err
	}

	cbCfg := circuitbreaker.DefaultConfig("ethereum-rpc")
	cbCfg.IsSuccessful = func(err error) bool { return err == nil || isRevert(err) }

	c := &Client{
		backend: backend,
		config:  cfg,
		from:    crypto.PubkeyToAddress(cfg.PrivateKey.PublicKey),
		signer:  types.LatestSignerForChainID(cfg.ChainID),
		gas:     gas,
		limiter: ratelimit.New(cfg.RequestsPerMinute),
		cb:      circuitbreaker.New[[]byte](cbCfg),
		logger:  log,
		tracer:  otel.Tracer(tracerName),
	}

	if err := c.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return c, nil
}

func (c *Client) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	c.metrics = &clientMetrics{}

	c.metrics.calls, err = meter.Int64Counter(
		"eth_calls_total",
		metric.WithDescription("Total contract calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.callErrors, err = meter.Int64Counter(
		"eth_call_errors_total",
		metric.WithDescription("Failed contract calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return err
	}

	c.metrics.transactions, err = meter.Int64Counter(
		"eth_transactions_total",
		metric.WithDescription("Transactions sent, by status"),
		metric.WithUnit("{tx}"),
	)
	if err != nil {
		return err
	}

	c.metrics.txLatency, err = meter.Float64Histogram(
		"eth_transaction_latency_ms",
		metric.WithDescription("Time from send to receipt"),
		metric.WithUnit("ms"),
	)
	return err
}

// From is the operator account.
func (c *Client) From() common.Address { return c.from }

// ChainID is the signing chain id.
func (c *Client) ChainID() *big.Int { return new(big.Int).Set(c.config.ChainID) }

// Gas returns the client's gas oracle.
func (c *Client) Gas() *GasOracle { return c.gas }

// Call runs a read-only call to method on contract at to and unpacks the result.
func (c *Client) Call(ctx context.Context, contract abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	ctx, span := c.tracer.Start(ctx, "eth.call",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.String("method", method),
		),
	)
	defer span.End()

	c.metrics.calls.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))

	data, err := contract.Pack(method, args...)
	if err != nil {
		span.RecordError(err)
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("pack "+method))
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	out, err := c.cb.Execute(func() ([]byte, error) {
		return c.backend.CallContract(ctx, ethereum.CallMsg{From: c.from, To: &to, Data: data}, nil)
	})
	if err != nil {
		c.metrics.callErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("method", method)))
		span.RecordError(err)
		span.SetStatus(codes.Error, "call failed")
		return nil, c.rpcError(err, method, to)
	}

	values, err := contract.Unpack(method, out)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unpack failed")
		return nil, apperror.New(apperror.CodeContractCallFailed,
			apperror.WithCause(err),
			apperror.WithContext(fmt.Sprintf("unpack %s from %s", method, to.Hex())))
	}

	span.SetStatus(codes.Ok, "")
	return values, nil
}

// Balance returns the native balance of account.
func (c *Client) Balance(ctx context.Context, account common.Address) (*big.Int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	bal, err := c.backend.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("balance of "+account.Hex()))
	}
	return bal, nil
}

// Transact packs method on contract and sends it to to with value attached.
func (c *Client) Transact(ctx context.Context, contract abi.ABI, to common.Address, value *big.Int, method string, args ...any) (*types.Receipt, error) {
	data, err := contract.Pack(method, args...)
	if err != nil {
		return nil, apperror.New(apperror.CodeInternalError,
			apperror.WithCause(err),
			apperror.WithContext("pack "+method))
	}
	return c.Send(ctx, to, value, data, method)
}

// Send signs and submits a transaction, then waits for its receipt. A
// reverted transaction is a TRANSACTION_FAILED error.
func (c *Client) Send(ctx context.Context, to common.Address, value *big.Int, data []byte, label string) (*types.Receipt, error) {
	ctx, span := c.tracer.Start(ctx, "eth.send",
		trace.WithAttributes(
			attribute.String("to", to.Hex()),
			attribute.String("label", label),
		),
	)
	defer span.End()

	if value == nil {
		value = new(big.Int)
	}
	start := time.Now()

	c.sendMu.Lock()
	tx, err := c.sign(ctx, to, value, data)
	if err == nil {
		err = c.backend.SendTransaction(ctx, tx)
	}
	c.sendMu.Unlock()

	if err != nil {
		c.metrics.transactions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "rejected")))
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		return nil, c.rpcError(err, label, to)
	}

	span.SetAttributes(attribute.String("tx_hash", tx.Hash().Hex()))
	c.logger.Debug(ctx, "transaction sent", "label", label, "tx_hash", tx.Hash().Hex(), "nonce", tx.Nonce())

	receipt, err := c.waitReceipt(ctx, tx.Hash())
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "no receipt")
		return nil, err
	}

	c.metrics.txLatency.Record(ctx, float64(time.Since(start).Milliseconds()))

	if receipt.Status != types.ReceiptStatusSuccessful {
		c.metrics.transactions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "reverted")))
		span.SetStatus(codes.Error, "reverted")
		return receipt, apperror.New(apperror.CodeTransactionFailed,
			apperror.WithContext(fmt.Sprintf("%s reverted in %s", label, tx.Hash().Hex())))
	}

	c.metrics.transactions.Add(ctx, 1, metric.WithAttributes(attribute.String("status", "success")))
	span.SetStatus(codes.Ok, "mined")
	return receipt, nil
}

func (c *Client) sign(ctx context.Context, to common.Address, value *big.Int, data []byte) (*types.Transaction, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	nonce, err := c.backend.PendingNonceAt(ctx, c.from)
	if err != nil {
		return nil, err
	}

	gasLimit, err := c.gas.EstimateGas(ctx, ethereum.CallMsg{From: c.from, To: &to, Value: value, Data: data})
	if err != nil {
		return nil, err
	}

	fees, err := c.gas.Fees(ctx)
	if err != nil {
		return nil, err
	}

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.config.ChainID,
		Nonce:     nonce,
		GasTipCap: fees.TipCap,
		GasFeeCap: fees.FeeCap,
		Gas:       gasLimit,
		To:        &to,
		Value:     value,
		Data:      data,
	})
	return types.SignTx(tx, c.signer, c.config.PrivateKey)
}

func (c *Client) waitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	if c.config.ReceiptTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.ReceiptTimeout)
		defer cancel()
	}

	ticker := time.NewTicker(c.config.ReceiptPoll)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil {
			return receipt, nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return nil, apperror.New(apperror.CodeEthereumRPCError,
				apperror.WithCause(err),
				apperror.WithContext("receipt for "+hash.Hex()))
		}

		select {
		case <-ctx.Done():
			return nil, apperror.New(apperror.CodeTransactionFailed,
				apperror.WithCause(ctx.Err()),
				apperror.WithContext("timed out waiting for "+hash.Hex()))
		case <-ticker.C:
		}
	}
}

func (c *Client) rpcError(err error, method string, to common.Address) error {
	if apperror.IsAppError(err) {
		return err
	}
	code := apperror.CodeEthereumRPCError
	if isRevert(err) {
		code = apperror.CodeContractCallFailed
	}
	return apperror.New(code,
		apperror.WithCause(err),
		apperror.WithContext(fmt.Sprintf("%s on %s", method, to.Hex())))
}

// Ping checks the node answers.
func (c *Client) Ping(ctx context.Context) error {
	if _, err := c.backend.HeaderByNumber(ctx, nil); err != nil {
		return apperror.New(apperror.CodeEthereumRPCError, apperror.WithCause(err), apperror.WithContext("ping"))
	}
	return nil
}

// Close releases the node connection, if the client owns one.
func (c *Client) Close() error {
	if c.closer != nil {
		c.closer()
	}
	c.gas.Close()
	return nil
}

func isRevert(err error) bool {
	return err != nil && strings.Contains(err.Error(), "execution reverted")
}
