package memory

import (
	"time"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/asset"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// World is a fully deployed in-memory chain on mainnet addresses.
type World struct {
	Chain    *Chain
	Registry *asset.Registry
	Protocol *Protocol
	Oracle   *Oracle
	Wrapped  *Wrapped
	Venue    *Venue
	Exchange *Exchange
	Events   *Recorder
}

// NewWorld deploys every contract. The protocol settles with basis.
func NewWorld(now time.Time, basis domain.PayoutBasis) *World {
	chain := NewChain(asset.ChainIDEthereum, now)
	registry := asset.DefaultRegistry()
	return &World{
		Chain:    chain,
		Registry: registry,
		Protocol: NewProtocol(chain, registry, basis),
		Oracle:   NewOracle(chain),
		Wrapped:  NewWrapped(chain, asset.AddrWETHEthereum),
		Venue:    NewVenue(chain, Addr("market-maker")),
		Exchange: NewExchange(chain),
		Events:   NewRecorder(chain),
	}
}

// Dependencies wires the world into an adapter.
func (w *World) Dependencies(log logger.LoggerInterface) app.Dependencies {
	return app.Dependencies{
		Index:      w.Protocol,
		Controller: w.Protocol,
		Oracle:     w.Oracle,
		Ledger:     w.Chain,
		Wrapped:    w.Wrapped,
		Venue:      w.Venue,
		Exchange:   w.Exchange,
		Atomic:     w.Chain,
		Clock:      w.Chain,
		Events:     w.Events,
		Registry:   w.Registry,
		Logger:     log,
	}
}
