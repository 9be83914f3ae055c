// Package options implements the options adapter bounded context: one
// adapter per supported protocol behind a uniform interface.
package options

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"

	"github.com/fd1az/otoken-adapter/business/options/app"
	optionsDI "github.com/fd1az/otoken-adapter/business/options/di"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/business/options/infra/cached"
	"github.com/fd1az/otoken-adapter/business/options/infra/ethereum"
	"github.com/fd1az/otoken-adapter/business/options/infra/journal"
	"github.com/fd1az/otoken-adapter/business/options/infra/memory"
	"github.com/fd1az/otoken-adapter/business/options/infra/zeroex"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/cache"
	"github.com/fd1az/otoken-adapter/internal/config"
	"github.com/fd1az/otoken-adapter/internal/di"
	"github.com/fd1az/otoken-adapter/internal/logger"
	"github.com/fd1az/otoken-adapter/internal/monolith"
)

// Custody addresses of the in-memory adapters.
var (
	memoryGammaSelf  = memory.Addr("gamma-adapter")
	memoryLegacySelf = memory.Addr("legacy-adapter")
)

// Module implements the options bounded context.
type Module struct{}

// RegisterServices registers all options services with the DI container.
func (m *Module) RegisterServices(c di.Container) error {
	// Event journal - private dependency
	di.RegisterToken(c, optionsDI.EventSink, func(sr di.ServiceRegistry) journal.Sink {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)

		switch cfg.Journal.Driver {
		case "postgres":
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			sink, err := journal.OpenPostgres(ctx, cfg.Journal.DSN, cfg.Journal.Table, log)
			if err != nil {
				panic("failed to open event journal: " + err.Error())
			}
			return sink
		case "none":
			return journal.Discard{}
		default:
			return journal.NewConsole(log)
		}
	})

	// In-memory chain - private dependency, memory backend only
	di.RegisterToken(c, optionsDI.World, func(sr di.ServiceRegistry) *memory.World {
		cfg := sr.Get("config").(*config.Config)

		basis, err := domain.ParsePayoutBasis(cfg.Gamma.PayoutBasis)
		if err != nil {
			panic("invalid gamma payout basis: " + err.Error())
		}
		return memory.NewWorld(time.Now(), basis)
	})

	// On-chain bindings - private dependency, ethereum backend only
	di.RegisterToken(c, optionsDI.Deployment, func(sr di.ServiceRegistry) *ethereum.Deployment {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		ec := sr.Get("ethClient").(*ethclient.Client)

		deployment, err := newDeployment(ec, cfg, log)
		if err != nil {
			panic("failed to bind contracts: " + err.Error())
		}
		return deployment
	})

	// Gamma adapter (public)
	di.RegisterToken(c, optionsDI.GammaAdapter, func(sr di.ServiceRegistry) *app.Facade {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if !cfg.Gamma.Enabled {
			return nil
		}

		deps, self := dependencies(sr, cfg, memoryGammaSelf)
		if cfg.Cache.Enabled {
			index, err := cached.NewIndex(deps.Index, cache.Config{
				Name:        "otoken",
				NumCounters: cfg.Cache.NumCounters,
				MaxCost:     cfg.Cache.MaxCost,
				DefaultTTL:  cfg.Cache.TTL,
			}, log)
			if err != nil {
				panic("failed to create token cache: " + err.Error())
			}
			deps.Index = index
		}

		settings, err := settingsFor(cfg.Gamma.AdapterConfig, app.ProtocolGamma, self)
		if err != nil {
			panic("invalid gamma settings: " + err.Error())
		}
		adapter, err := app.NewGammaAdapter(deps, settings)
		if err != nil {
			panic("failed to create gamma adapter: " + err.Error())
		}
		return adapter
	})

	// Legacy adapter (public)
	di.RegisterToken(c, optionsDI.LegacyAdapter, func(sr di.ServiceRegistry) *app.LegacyAdapter {
		cfg := sr.Get("config").(*config.Config)
		if !cfg.Legacy.Enabled {
			return nil
		}

		deps, self := dependencies(sr, cfg, memoryLegacySelf)
		settings, err := settingsFor(cfg.Legacy.AdapterConfig, app.ProtocolLegacy, self)
		if err != nil {
			panic("invalid legacy settings: " + err.Error())
		}

		var pricer app.Pricer
		if cfg.Legacy.Pricer == "formula" {
			pricer = app.FormulaPricer{
				Oracle:     deps.Oracle,
				Clock:      deps.Clock,
				Registry:   deps.Registry,
				PriceAsset: cfg.Legacy.WETHAddress(),
				Volatility: cfg.Legacy.Volatility,
				Rate:       cfg.Legacy.RiskFree,
			}
		}

		adapter, err := app.NewLegacyAdapter(deps, settings, app.NewTokenRegistry(cfg.Legacy.OwnerAddress()), pricer)
		if err != nil {
			panic("failed to create legacy adapter: " + err.Error())
		}
		return adapter
	})

	// Every enabled adapter behind the uniform interface (public)
	di.RegisterToken(c, optionsDI.Adapters, func(sr di.ServiceRegistry) []app.Adapter {
		var out []app.Adapter
		if gamma := optionsDI.GetGammaAdapter(sr); gamma != nil {
			out = append(out, gamma)
		}
		if legacy := optionsDI.GetLegacyAdapter(sr); legacy != nil {
			out = append(out, legacy)
		}
		return out
	})

	// 0x order source (public), nil when no API is configured
	di.RegisterToken(c, optionsDI.QuoteSource, func(sr di.ServiceRegistry) *zeroex.Quoter {
		cfg := sr.Get("config").(*config.Config)
		log := sr.Get("logger").(logger.LoggerInterface)
		if !cfg.Gamma.Enabled || cfg.Gamma.QuoteAPI == "" {
			return nil
		}

		q, err := zeroex.NewQuoter(zeroex.Config{
			BaseURL:  cfg.Gamma.QuoteAPI,
			APIKey:   cfg.Gamma.QuoteAPIKey,
			Exchange: common.HexToAddress(cfg.Gamma.ExchangeProxy),
			Timeout:  10 * time.Second,

			RequestsPerMinute: 180, // public tier quota
		}, log)
		if err != nil {
			panic("failed to create 0x quoter: " + err.Error())
		}
		return q
	})

	return nil
}

// Startup resolves the adapters and registers health checks.
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	log := mono.Logger()
	cfg := mono.Config()
	sr := mono.Services()

	adapters := optionsDI.GetAdapters(sr)
	for _, a := range adapters {
		log.Info(ctx, "options adapter ready",
			"protocol", a.ProtocolName(),
			"non_fungible", a.NonFungible(),
			"backend", cfg.App.Backend,
		)
	}
	if q := optionsDI.GetQuoteSource(sr); q != nil {
		log.Info(ctx, "0x quote source configured", "url", cfg.Gamma.QuoteAPI)
	}

	if hs := mono.Health(); hs != nil {
		if cfg.App.Backend == config.BackendEthereum {
			client := optionsDI.GetDeployment(sr).Client
			hs.RegisterCheck("ethereum", func(ctx context.Context) (bool, string) {
				if err := client.Ping(ctx); err != nil {
					return false, err.Error()
				}
				return true, ""
			})
		}
		if pinger, ok := optionsDI.GetEventSink(sr).(interface{ Ping(context.Context) error }); ok {
			hs.RegisterCheck("journal", func(ctx context.Context) (bool, string) {
				if err := pinger.Ping(ctx); err != nil {
					return false, err.Error()
				}
				return true, ""
			})
		}
	}

	log.Info(ctx, "options module started", "adapters", len(adapters))
	return nil
}

// Shutdown releases the journal and the operator client.
func (m *Module) Shutdown(ctx context.Context, mono monolith.Monolith) error {
	sr := mono.Services()
	if mono.Config().App.Backend == config.BackendEthereum {
		optionsDI.GetDeployment(sr).Client.Close()
	}
	return optionsDI.GetEventSink(sr).Close()
}

// dependencies returns the collaborators of the configured backend and the
// custody address adapters on it use.
func dependencies(sr di.ServiceRegistry, cfg *config.Config, memorySelf common.Address) (app.Dependencies, common.Address) {
	log := sr.Get("logger").(logger.LoggerInterface)
	events := optionsDI.GetEventSink(sr)

	if cfg.App.Backend == config.BackendEthereum {
		d := optionsDI.GetDeployment(sr)
		registry := sr.Get("assetRegistry").(*asset.Registry)
		return d.Dependencies(registry, events, log), d.Client.From()
	}

	world := optionsDI.GetWorld(sr)
	deps := world.Dependencies(log)
	deps.Events = events
	return deps, memorySelf
}

func newDeployment(ec *ethclient.Client, cfg *config.Config, log logger.LoggerInterface) (*ethereum.Deployment, error) {
	key, err := ethereum.ParsePrivateKey(cfg.Ethereum.PrivateKey)
	if err != nil {
		return nil, err
	}

	clientCfg := ethereum.DefaultClientConfig(cfg.Ethereum.ChainID, key)
	if cfg.Ethereum.RPCRateLimit > 0 {
		clientCfg.RequestsPerMinute = cfg.Ethereum.RPCRateLimit
	}
	if cfg.Ethereum.ReceiptTimeout > 0 {
		clientCfg.ReceiptTimeout = cfg.Ethereum.ReceiptTimeout
	}
	if cfg.Ethereum.MaxGasPrice > 0 {
		clientCfg.Gas.MaxGasPrice = new(big.Int).Mul(big.NewInt(cfg.Ethereum.MaxGasPrice), big.NewInt(params.GWei))
	}

	client, err := ethereum.NewClient(ec, clientCfg, log)
	if err != nil {
		return nil, err
	}

	addrs := ethereum.GammaAddresses{
		Factory:    common.HexToAddress(cfg.Gamma.Factory),
		Controller: common.HexToAddress(cfg.Gamma.Controller),
		Oracle:     common.HexToAddress(cfg.Gamma.Oracle),
		MarginPool: common.HexToAddress(cfg.Gamma.MarginPool),
	}
	if addrs.Factory == (common.Address{}) && cfg.Gamma.AddressBook != "" {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if addrs, err = ethereum.ResolveAddressBook(ctx, client, common.HexToAddress(cfg.Gamma.AddressBook)); err != nil {
			return nil, fmt.Errorf("resolve address book: %w", err)
		}
	}

	return ethereum.NewDeployment(client, ethereum.DeploymentConfig{
		Gamma:         addrs,
		WETH:          cfg.Gamma.WETHAddress(),
		Router:        cfg.Gamma.RouterAddress(),
		ExchangeProxy: common.HexToAddress(cfg.Gamma.ExchangeProxy),
	}, log), nil
}

func settingsFor(ac config.AdapterConfig, protocol string, self common.Address) (app.Settings, error) {
	basis, err := domain.ParsePayoutBasis(ac.PayoutBasis)
	if err != nil {
		return app.Settings{}, err
	}
	rounding, err := app.ParseRounding(ac.MintRounding)
	if err != nil {
		return app.Settings{}, err
	}
	zeroProfit, err := app.ParseZeroProfitPolicy(ac.ZeroProfit)
	if err != nil {
		return app.Settings{}, err
	}
	floor, err := ac.CollateralFloorInt()
	if err != nil {
		return app.Settings{}, err
	}

	s := app.Settings{
		Protocol:      protocol,
		Self:          self,
		PayoutBasis:   basis,
		MintRounding:  rounding,
		ZeroProfit:    zeroProfit,
		Intermediates: ac.IntermediateAddresses(),
		UnwrapPayouts: ac.UnwrapPayouts,
	}
	if floor != nil && floor.Sign() > 0 {
		s.CollateralFloors = map[common.Address]*big.Int{ac.WETHAddress(): floor}
	}
	return s, nil
}
