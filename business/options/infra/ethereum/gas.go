package ethereum

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/cache"
	"github.com/fd1az/otoken-adapter/internal/circuitbreaker"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

const gwei = 1_000_000_000

// GasOracleConfig holds configuration for the gas oracle.
type GasOracleConfig struct {
	CacheTTL    time.Duration // how long to reuse a fee suggestion
	MaxGasPrice *big.Int      // fee cap ceiling, wei
	DefaultGas  uint64        // used when estimation fails
}

// DefaultGasOracleConfig returns sensible defaults.
func DefaultGasOracleConfig() GasOracleConfig {
	return GasOracleConfig{
		CacheTTL:    12 * time.Second, // ~1 block
		MaxGasPrice: new(big.Int).Mul(big.NewInt(500), big.NewInt(gwei)),
		DefaultGas:  500_000,
	}
}

// Fees are EIP-1559 fee parameters in wei.
type Fees struct {
	TipCap *big.Int
	FeeCap *big.Int
}

type gasOracleMetrics struct {
	feeFetches  metric.Int64Counter
	feeCapGwei  metric.Float64Gauge
	estimateGas metric.Int64Counter
}

// GasOracle suggests fees and gas limits for the operator's transactions.
type GasOracle struct {
	backend Backend
	config  GasOracleConfig
	logger  logger.LoggerInterface

	feeCache *cache.Cache[Fees]
	cb       *circuitbreaker.CircuitBreaker[Fees]

	tracer  trace.Tracer
	metrics *gasOracleMetrics
}

// NewGasOracle creates a gas oracle reading from backend.
func NewGasOracle(backend Backend, cfg GasOracleConfig, log logger.LoggerInterface) (*GasOracle, error) {
	cacheCfg := cache.DefaultConfig("gas")
	cacheCfg.DefaultTTL = cfg.CacheTTL
	feeCache, err := cache.New[Fees](cacheCfg)
	if err != nil {
		return nil, err
	}

	g := &GasOracle{
		backend:  backend,
		config:   cfg,
		logger:   log,
		feeCache: feeCache,
		cb:       circuitbreaker.New[Fees](circuitbreaker.DefaultConfig("gas-oracle")),
		tracer:   otel.Tracer(tracerName),
	}

	if err := g.initMetrics(); err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	return g, nil
}

func (g *GasOracle) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	g.metrics = &gasOracleMetrics{}

	g.metrics.feeFetches, err = meter.Int64Counter(
		"gas_fee_fetches_total",
		metric.WithDescription("Total fee suggestion fetches"),
		metric.WithUnit("{fetch}"),
	)
	if err != nil {
		return err
	}

	g.metrics.feeCapGwei, err = meter.Float64Gauge(
		"gas_fee_cap_gwei",
		metric.WithDescription("Current fee cap in gwei"),
		metric.WithUnit("gwei"),
	)
	if err != nil {
		return err
	}

	g.metrics.estimateGas, err = meter.Int64Counter(
		"gas_estimate_total",
		metric.WithDescription("Total gas estimation calls"),
		metric.WithUnit("{estimate}"),
	)
	return err
}

// Fees returns the tip and fee caps for the next transaction. The fee cap
// is twice the base fee plus the tip, bounded by MaxGasPrice.
func (g *GasOracle) Fees(ctx context.Context) (Fees, error) {
	ctx, span := g.tracer.Start(ctx, "gas.fees")
	defer span.End()

	if fees, found := g.feeCache.Get(ctx, "current"); found {
		span.AddEvent("cache_hit")
		return fees, nil
	}

	g.metrics.feeFetches.Add(ctx, 1)

	fees, err := g.cb.Execute(func() (Fees, error) {
		tip, err := g.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return Fees{}, err
		}
		head, err := g.backend.HeaderByNumber(ctx, nil)
		if err != nil {
			return Fees{}, err
		}
		base := new(big.Int)
		if head.BaseFee != nil {
			base.Set(head.BaseFee)
		}
		feeCap := new(big.Int).Add(new(big.Int).Mul(base, big.NewInt(2)), tip)
		return Fees{TipCap: tip, FeeCap: feeCap}, nil
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		if apperror.IsAppError(err) {
			return Fees{}, err
		}
		return Fees{}, apperror.New(apperror.CodeEthereumRPCError,
			apperror.WithCause(err),
			apperror.WithContext("failed to get fee suggestion"))
	}

	if ceiling := g.config.MaxGasPrice; ceiling != nil && fees.FeeCap.Cmp(ceiling) > 0 {
		span.AddEvent("fee_cap_exceeded_max",
			trace.WithAttributes(attribute.String("wei", fees.FeeCap.String())))
		g.logger.Warn(ctx, "fee cap exceeds max", "wei", fees.FeeCap.String())
		fees.FeeCap = new(big.Int).Set(ceiling)
		if fees.TipCap.Cmp(ceiling) > 0 {
			fees.TipCap = new(big.Int).Set(ceiling)
		}
	}

	g.feeCache.Set(ctx, "current", fees, 0)

	capGwei, _ := new(big.Float).Quo(new(big.Float).SetInt(fees.FeeCap), big.NewFloat(gwei)).Float64()
	g.metrics.feeCapGwei.Record(ctx, capGwei)

	span.SetAttributes(attribute.Float64("fee_cap_gwei", capGwei))
	span.SetStatus(codes.Ok, "fetched")
	return fees, nil
}

// EstimateGas estimates msg and adds a 10% margin.
func (g *GasOracle) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	ctx, span := g.tracer.Start(ctx, "gas.estimate",
		trace.WithAttributes(attribute.Int("data_len", len(msg.Data))),
	)
	defer span.End()

	g.metrics.estimateGas.Add(ctx, 1)

	gas, err := g.backend.EstimateGas(ctx, msg)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "estimate failed")
		// A revert during estimation means the transaction would revert.
		if isRevert(err) || g.config.DefaultGas == 0 {
			return 0, apperror.New(apperror.CodeGasEstimationFailed,
				apperror.WithCause(err),
				apperror.WithContext("failed to estimate gas"))
		}
		span.AddEvent("using_default_gas")
		return g.config.DefaultGas, nil
	}

	gas = gas + (gas / 10)

	span.SetAttributes(attribute.Int64("gas", int64(gas)))
	span.SetStatus(codes.Ok, "estimated")
	return gas, nil
}

// Close releases the fee cache.
func (g *GasOracle) Close() {
	g.feeCache.Close()
}
