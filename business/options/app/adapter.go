package app

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

const (
	tracerName = "options.adapter"
	meterName  = "options.adapter"
)

// Adapter is the protocol-agnostic surface a calling instrument uses.
// Amounts of options are in domain.OptionDecimals.
type Adapter interface {
	ProtocolName() string
	NonFungible() bool
	LookupOToken(ctx context.Context, terms domain.OptionTerms) (common.Address, error)
	Premium(ctx context.Context, terms domain.OptionTerms, amount *big.Int) (*big.Int, error)
	Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error)
	ExerciseProfit(ctx context.Context, token common.Address, secondaryID uint64, amount *big.Int) (*big.Int, error)
	CanExercise(ctx context.Context, token common.Address, secondaryID uint64, amount *big.Int) (bool, error)
	Exercise(ctx context.Context, req ExerciseRequest) (*big.Int, error)
	CreateShort(ctx context.Context, caller common.Address, terms domain.OptionTerms, collateral *big.Int) (domain.Vault, error)
}

// Dependencies are the collaborators an adapter is built from.
type Dependencies struct {
	Index      TokenIndex
	Controller Controller
	Oracle     Oracle
	Ledger     Ledger
	Wrapped    WrappedNative
	Venue      SwapVenue
	Exchange   Exchange
	Atomic     Atomic
	Clock      Clock
	Events     EventSink
	Registry   *asset.Registry
	Logger     logger.LoggerInterface
}

func (d Dependencies) validate() error {
	switch {
	case d.Index == nil:
		return fmt.Errorf("token index is required")
	case d.Controller == nil:
		return fmt.Errorf("controller is required")
	case d.Oracle == nil:
		return fmt.Errorf("oracle is required")
	case d.Ledger == nil:
		return fmt.Errorf("ledger is required")
	case d.Atomic == nil:
		return fmt.Errorf("atomic executor is required")
	case d.Registry == nil:
		return fmt.Errorf("asset registry is required")
	case d.Logger == nil:
		return fmt.Errorf("logger is required")
	}
	return nil
}

type adapterMetrics struct {
	operations metric.Int64Counter
	errors     metric.Int64Counter
	latency    metric.Float64Histogram
}

type purchaseFunc func(ctx context.Context, token domain.OptionToken, req PurchaseRequest) (PurchaseResult, error)

// Facade binds the services into an Adapter. Protocol variants differ in
// their TokenIndex, Pricer, purchase path and Settings.
type Facade struct {
	settings Settings
	deps     Dependencies

	resolver  *Resolver
	quoter    *Quoter
	validator *Validator
	engine    *ExerciseEngine
	shorts    *ShortManager

	purchase  purchaseFunc
	vaultsFor func(token common.Address) ([]common.Address, error)

	logger  logger.LoggerInterface
	tracer  trace.Tracer
	metrics *adapterMetrics
}

var _ Adapter = (*Facade)(nil)

func newFacade(deps Dependencies, settings Settings, pricer Pricer) (*Facade, error) {
	if err := deps.validate(); err != nil {
		return nil, apperror.New(apperror.CodeConfigurationError, apperror.WithCause(err), apperror.WithContext(err.Error()))
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock{}
	}

	var wrapped common.Address
	if deps.Wrapped != nil {
		wrapped = deps.Wrapped.Address()
	}

	resolver := NewResolver(deps.Index, wrapped, deps.Logger)
	f := &Facade{
		settings:  settings,
		deps:      deps,
		resolver:  resolver,
		quoter:    NewQuoter(resolver, pricer, deps.Logger),
		validator: NewValidator(wrapped, settings.Intermediates),
		engine:    NewExerciseEngine(deps.Controller, deps.Oracle, deps.Ledger, deps.Wrapped, deps.Clock, deps.Registry, settings, deps.Logger),
		shorts:    NewShortManager(deps.Controller, deps.Ledger, deps.Registry, settings, deps.Logger),
		logger:    deps.Logger,
		tracer:    otel.Tracer(tracerName),
	}
	if err := f.initMetrics(); err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}
	return f, nil
}

func (f *Facade) initMetrics() error {
	meter := otel.Meter(meterName)
	var err error

	f.metrics = &adapterMetrics{}

	f.metrics.operations, err = meter.Int64Counter(
		"adapter_operations_total",
		metric.WithDescription("Total adapter operations"),
	)
	if err != nil {
		return err
	}

	f.metrics.errors, err = meter.Int64Counter(
		"adapter_operation_errors_total",
		metric.WithDescription("Total failed adapter operations by error code"),
	)
	if err != nil {
		return err
	}

	f.metrics.latency, err = meter.Float64Histogram(
		"adapter_operation_latency_ms",
		metric.WithDescription("Adapter operation latency in milliseconds"),
		metric.WithUnit("ms"),
	)
	return err
}

// ProtocolName identifies the underlying protocol.
func (f *Facade) ProtocolName() string { return f.settings.Protocol }

// NonFungible reports whether positions carry a secondary id.
func (f *Facade) NonFungible() bool { return f.settings.NonFungible }

// LookupOToken returns the token issued for terms.
func (f *Facade) LookupOToken(ctx context.Context, terms domain.OptionTerms) (common.Address, error) {
	var out common.Address
	err := f.observe(ctx, "lookup", func(ctx context.Context) error {
		token, err := f.resolver.Resolve(ctx, terms)
		out = token.Address
		return err
	})
	return out, err
}

// Premium quotes amount options on terms in native currency.
func (f *Facade) Premium(ctx context.Context, terms domain.OptionTerms, amount *big.Int) (*big.Int, error) {
	var out *big.Int
	err := f.observe(ctx, "premium", func(ctx context.Context) error {
		var err error
		out, err = f.quoter.Quote(ctx, terms, amount)
		return err
	})
	return out, err
}

// ExerciseProfit returns the payoff of amount options of token.
func (f *Facade) ExerciseProfit(ctx context.Context, token common.Address, secondaryID uint64, amount *big.Int) (*big.Int, error) {
	var out *big.Int
	err := f.observe(ctx, "exercise_profit", func(ctx context.Context) error {
		details, err := f.resolver.Details(ctx, token)
		if err != nil {
			return err
		}
		out, err = f.engine.Profit(ctx, details, amount)
		return err
	})
	return out, err
}

// CanExercise reports whether amount options of token can be exercised now.
func (f *Facade) CanExercise(ctx context.Context, token common.Address, secondaryID uint64, amount *big.Int) (bool, error) {
	var out bool
	err := f.observe(ctx, "can_exercise", func(ctx context.Context) error {
		details, err := f.resolver.Details(ctx, token)
		if err != nil {
			return err
		}
		out, err = f.engine.CanExercise(ctx, details, amount)
		return err
	})
	return out, err
}

// Exercise settles an expired position and pays its profit to the recipient.
func (f *Facade) Exercise(ctx context.Context, req ExerciseRequest) (*big.Int, error) {
	var payout *big.Int
	var token domain.OptionToken

	err := f.observe(ctx, "exercise", func(ctx context.Context) error {
		var err error
		token, err = f.resolver.Details(ctx, req.Token)
		if err != nil {
			return err
		}
		if f.vaultsFor != nil && len(req.Vaults) == 0 {
			if req.Vaults, err = f.vaultsFor(req.Token); err != nil {
				return err
			}
		}

		return f.atomically(ctx, f.custodyTokens(token.Address, token.Terms.CollateralAsset), func(ctx context.Context) error {
			payout, err = f.engine.Exercise(ctx, token, req)
			return err
		})
	})
	if err != nil {
		return nil, err
	}

	if payout.Sign() > 0 {
		f.record(ctx, domain.NewExercised(f.settings.Protocol, req.Caller, token.Address, req.SecondaryID,
			req.Amount, payout, f.deps.Clock.Now()))
	}
	return payout, nil
}

// CreateShort writes options on terms against collateral.
func (f *Facade) CreateShort(ctx context.Context, caller common.Address, terms domain.OptionTerms, collateral *big.Int) (domain.Vault, error) {
	var vault domain.Vault

	err := f.observe(ctx, "create_short", func(ctx context.Context) error {
		token, err := f.resolver.Resolve(ctx, terms)
		if apperror.HasCode(err, apperror.CodeUnknownOption) {
			return apperror.New(apperror.CodeInvalidOption, apperror.WithCause(err), apperror.WithContext(terms.String()))
		}
		if err != nil {
			return err
		}

		return f.atomically(ctx, f.custodyTokens(token.Address, token.Terms.CollateralAsset), func(ctx context.Context) error {
			vault, err = f.shorts.CreateShort(ctx, caller, token, collateral)
			return err
		})
	})
	if err != nil {
		return domain.Vault{}, err
	}

	f.record(ctx, domain.NewShortCreated(f.settings.Protocol, caller, vault, f.deps.Clock.Now()))
	return vault, nil
}

// Purchase buys options for the caller. Unspent funds are refunded.
func (f *Facade) Purchase(ctx context.Context, req PurchaseRequest) (PurchaseResult, error) {
	var result PurchaseResult

	err := f.observe(ctx, "purchase", func(ctx context.Context) error {
		if req.Funds == nil || req.Funds.Sign() < 0 {
			return apperror.Validation(apperror.CodeInsufficientFunds, "no funds supplied")
		}
		token, err := f.resolver.Resolve(ctx, req.Terms)
		if err != nil {
			return err
		}
		result, err = f.purchase(ctx, token, req)
		return err
	})
	if err != nil {
		return PurchaseResult{}, err
	}

	f.record(ctx, domain.NewPurchased(f.settings.Protocol, req.Caller, result.Token, result.Amount,
		result.Premium, f.deps.Clock.Now()))
	return result, nil
}

// observe wraps an operation with a span and metrics.
func (f *Facade) observe(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	attrs := []attribute.KeyValue{
		attribute.String("protocol", f.settings.Protocol),
		attribute.String("op", op),
	}
	ctx, span := f.tracer.Start(ctx, "adapter."+op, trace.WithAttributes(attrs...))
	defer span.End()

	start := time.Now()
	f.metrics.operations.Add(ctx, 1, metric.WithAttributes(attrs...))

	err := fn(ctx)

	f.metrics.latency.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		code := apperror.GetCode(err)
		f.metrics.errors.Add(ctx, 1, metric.WithAttributes(append(attrs,
			attribute.String("code", string(code)),
			attribute.String("kind", apperror.KindOf(err).String()),
		)...))
		span.RecordError(err)
		span.SetStatus(codes.Error, string(code))
		f.logger.Debugc(ctx, 1, "adapter operation failed", "op", op, "code", string(code), "error", err)
		return err
	}
	span.SetStatus(codes.Ok, op)
	return nil
}

// atomically runs fn in an Atomic scope and fails it if the adapter ends
// up holding more of any custody token than it started with.
func (f *Facade) atomically(ctx context.Context, tokens []common.Address, fn func(ctx context.Context) error) error {
	return f.deps.Atomic.Atomically(ctx, func(ctx context.Context) error {
		guard, err := snapshotCustody(ctx, f.deps.Ledger, f.settings.Self, tokens)
		if err != nil {
			return err
		}
		if err := fn(ctx); err != nil {
			return err
		}
		return guard.verify(ctx)
	})
}

func (f *Facade) custodyTokens(extra ...common.Address) []common.Address {
	tokens := []common.Address{asset.NativeAddress}
	if f.deps.Wrapped != nil {
		tokens = append(tokens, f.deps.Wrapped.Address())
	}
	tokens = append(tokens, extra...)
	tokens = append(tokens, f.settings.Intermediates...)
	return tokens
}

func (f *Facade) record(ctx context.Context, event domain.Event) {
	if f.deps.Events == nil {
		return
	}
	if err := f.deps.Events.Record(ctx, event); err != nil {
		f.logger.Warn(ctx, "failed to record event", "type", string(event.Type), "id", event.ID.String(), "error", err)
	}
}

type custodyGuard struct {
	ledger Ledger
	self   common.Address
	before map[common.Address]*big.Int
}

func snapshotCustody(ctx context.Context, ledger Ledger, self common.Address, tokens []common.Address) (*custodyGuard, error) {
	g := &custodyGuard{ledger: ledger, self: self, before: make(map[common.Address]*big.Int, len(tokens))}
	for _, t := range tokens {
		if _, seen := g.before[t]; seen {
			continue
		}
		bal, err := ledger.BalanceOf(ctx, t, self)
		if err != nil {
			return nil, err
		}
		g.before[t] = bal
	}
	return g, nil
}

func (g *custodyGuard) verify(ctx context.Context) error {
	for t, before := range g.before {
		after, err := g.ledger.BalanceOf(ctx, t, g.self)
		if err != nil {
			return err
		}
		if after.Cmp(before) > 0 {
			return apperror.Internal(apperror.CodeResidualBalance,
				fmt.Sprintf("%s grew from %s to %s", t.Hex(), before, after), nil)
		}
	}
	return nil
}
