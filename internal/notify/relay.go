package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// eventPattern matches every product channel.
const eventPattern = "product:*"

// Relay feeds signal bus events into a Notifier.
type Relay struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewRelay creates a Relay.
func NewRelay(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *Relay {
	return &Relay{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "notify_relay")),
	}
}

// Run subscribes to product events and forwards them until ctx is done.
// Delivery failures are logged and the event dropped.
func (r *Relay) Run(ctx context.Context) error {
	ch, err := r.bus.Subscribe(ctx, eventPattern)
	if err != nil {
		return err
	}
	r.logger.InfoContext(ctx, "notify relay started", slog.String("pattern", eventPattern))

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case payload, ok := <-ch:
			if !ok {
				return ctx.Err()
			}
			var evt domain.Event
			if err := json.Unmarshal(payload, &evt); err != nil {
				r.logger.WarnContext(ctx, "notify relay: bad event payload", slog.String("error", err.Error()))
				continue
			}
			if err := r.notifier.Notify(ctx, evt); err != nil {
				r.logger.WarnContext(ctx, "notify relay: delivery failed",
					slog.String("event", string(evt.Type)),
					slog.String("product_id", evt.ProductID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
