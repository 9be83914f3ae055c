package ethereum

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// DeploymentConfig locates every contract the adapter talks to.
type DeploymentConfig struct {
	Gamma         GammaAddresses
	WETH          common.Address
	Router        common.Address
	ExchangeProxy common.Address
}

// Deployment is the set of bindings sharing one operator client.
type Deployment struct {
	Client  *Client
	Ledger  *Ledger
	Session *Session
	Gamma   *Gamma
	Wrapped *Wrapped
	Venue   *Venue
	Router  *Router
}

// NewDeployment binds cfg's contracts through client.
func NewDeployment(client *Client, cfg DeploymentConfig, log logger.LoggerInterface) *Deployment {
	ledger := NewLedger(client, log)
	wrapped := NewWrapped(client, cfg.WETH)
	return &Deployment{
		Client:  client,
		Ledger:  ledger,
		Session: NewSession(ledger, wrapped, log),
		Gamma:   NewGamma(client, cfg.Gamma, ledger, log),
		Wrapped: wrapped,
		Venue:   NewVenue(client, ledger, cfg.ExchangeProxy),
		Router:  NewRouter(client, cfg.Router, cfg.WETH),
	}
}

// Dependencies wires the deployment into an adapter.
func (d *Deployment) Dependencies(registry *asset.Registry, events app.EventSink, log logger.LoggerInterface) app.Dependencies {
	return app.Dependencies{
		Index:      d.Gamma,
		Controller: d.Gamma,
		Oracle:     d.Gamma,
		Ledger:     d.Ledger,
		Wrapped:    d.Wrapped,
		Venue:      d.Venue,
		Exchange:   d.Router,
		Atomic:     d.Session,
		Clock:      app.SystemClock{},
		Events:     events,
		Registry:   registry,
		Logger:     log,
	}
}
