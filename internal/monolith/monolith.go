// Package monolith provides the application container and module interface.
package monolith

import (
	"context"

	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/fd1az/otoken-adapter/internal/apperror"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/config"
	"github.com/fd1az/otoken-adapter/internal/di"
	"github.com/fd1az/otoken-adapter/internal/health"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// Monolith gives modules access to shared infrastructure.
type Monolith interface {
	Config() *config.Config
	Logger() logger.LoggerInterface
	// EthClient is nil unless the ethereum backend is configured.
	EthClient() *ethclient.Client
	AssetRegistry() *asset.Registry
	Health() *health.Server
	Services() di.ServiceRegistry
}

// Module is a bounded context that registers services and starts up.
type Module interface {
	RegisterServices(di.Container) error
	Startup(context.Context, Monolith) error
}

type app struct {
	config        *config.Config
	logger        logger.LoggerInterface
	ethClient     *ethclient.Client
	assetRegistry *asset.Registry
	health        *health.Server
	container     di.Container
}

// New creates the container. The node is dialed only for the ethereum backend.
func New(ctx context.Context, cfg *config.Config, log logger.LoggerInterface, hs *health.Server) (*app, error) {
	container := di.NewContainer()

	var ethClient *ethclient.Client
	if cfg.App.Backend == config.BackendEthereum {
		var err error
		ethClient, err = ethclient.DialContext(ctx, cfg.Ethereum.HTTPURL)
		if err != nil {
			return nil, apperror.New(apperror.CodeEthereumConnectionFailed,
				apperror.WithCause(err), apperror.WithContext(cfg.Ethereum.HTTPURL))
		}
		container.Register("ethClient", ethClient)
	}

	assetRegistry := asset.DefaultRegistry()

	container.Register("config", cfg)
	container.Register("logger", log)
	container.Register("assetRegistry", assetRegistry)
	if hs != nil {
		container.Register("health", hs)
	}

	return &app{
		config:        cfg,
		logger:        log,
		ethClient:     ethClient,
		assetRegistry: assetRegistry,
		health:        hs,
		container:     container,
	}, nil
}

func (a *app) Config() *config.Config {
	return a.config
}

func (a *app) Logger() logger.LoggerInterface {
	return a.logger
}

func (a *app) EthClient() *ethclient.Client {
	return a.ethClient
}

func (a *app) AssetRegistry() *asset.Registry {
	return a.assetRegistry
}

func (a *app) Health() *health.Server {
	return a.health
}

func (a *app) Services() di.ServiceRegistry {
	return a.container
}

// RegisterModules registers all provided modules.
func (a *app) RegisterModules(modules ...Module) error {
	for _, m := range modules {
		if err := m.RegisterServices(a.container); err != nil {
			return err
		}
	}
	return nil
}

// StartModules starts all provided modules.
func (a *app) StartModules(ctx context.Context, modules ...Module) error {
	for _, m := range modules {
		if err := m.Startup(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// Close closes all resources.
func (a *app) Close() error {
	if a.ethClient != nil {
		a.ethClient.Close()
	}
	return nil
}
