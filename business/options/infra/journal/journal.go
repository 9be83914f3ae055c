// Package journal records completed adapter operations.
package journal

import (
	"context"
	"math/big"

	"github.com/fd1az/otoken-adapter/business/options/app"
	"github.com/fd1az/otoken-adapter/business/options/domain"
	"github.com/fd1az/otoken-adapter/internal/logger"
)

// Sink is an app.EventSink that holds resources.
type Sink interface {
	app.EventSink
	Close() error
}

// Console writes events to the structured log.
type Console struct {
	logger logger.LoggerInterface
}

// NewConsole creates a Console sink.
func NewConsole(log logger.LoggerInterface) *Console {
	return &Console{logger: log}
}

// Record implements app.EventSink.
func (c *Console) Record(ctx context.Context, e domain.Event) error {
	c.logger.Info(ctx, "adapter event",
		"event_id", e.ID.String(),
		"type", string(e.Type),
		"protocol", e.Protocol,
		"caller", e.Caller.Hex(),
		"token", e.Token.Hex(),
		"option_id", e.OptionID,
		"amount", amountString(e.Amount),
		"value", amountString(e.Value),
		"vault_id", uint64(e.VaultID),
		"at", e.At,
	)
	return nil
}

// Close is a no-op.
func (c *Console) Close() error { return nil }

// Discard drops every event.
type Discard struct{}

// Record implements app.EventSink.
func (Discard) Record(context.Context, domain.Event) error { return nil }

// Close is a no-op.
func (Discard) Close() error { return nil }

func amountString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}
