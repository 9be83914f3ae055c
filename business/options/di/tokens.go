// Package di contains dependency injection tokens for the options context.
package di

import (
	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/infra/ethereum"
	"github.com/fd1az/otoken-adapter/business/options/infra/journal"
	"github.com/fd1az/otoken-adapter/business/options/infra/memory"
	"github.com/fd1az/otoken-adapter/business/options/infra/zeroex"
	"github.com/fd1az/otoken-adapter/internal/di"
)

// Public service tokens - exposed to other modules
var (
	GammaAdapter  = di.NewToken[*app.Facade]("options.GammaAdapter")
	LegacyAdapter = di.NewToken[*app.LegacyAdapter]("options.LegacyAdapter")
	Adapters      = di.NewToken[[]app.Adapter]("options.Adapters")
	QuoteSource   = di.NewToken[*zeroex.Quoter]("options.QuoteSource")
)

// Private dependency tokens - internal to the options module
var (
	EventSink  = di.NewToken[journal.Sink]("options:eventSink")
	Deployment = di.NewToken[*ethereum.Deployment]("options:deployment")
	World      = di.NewToken[*memory.World]("options:world")
)

func GetGammaAdapter(c di.ServiceRegistry) *app.Facade {
	return di.GetToken(c, GammaAdapter)
}

func GetLegacyAdapter(c di.ServiceRegistry) *app.LegacyAdapter {
	return di.GetToken(c, LegacyAdapter)
}

func GetAdapters(c di.ServiceRegistry) []app.Adapter {
	return di.GetToken(c, Adapters)
}

func GetQuoteSource(c di.ServiceRegistry) *zeroex.Quoter {
	return di.GetToken(c, QuoteSource)
}

func GetEventSink(c di.ServiceRegistry) journal.Sink {
	return di.GetToken(c, EventSink)
}

func GetDeployment(c di.ServiceRegistry) *ethereum.Deployment {
	return di.GetToken(c, Deployment)
}

func GetWorld(c di.ServiceRegistry) *memory.World {
	return di.GetToken(c, World)
}
