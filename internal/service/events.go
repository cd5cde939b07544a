package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// Publisher fans committed market events out to the signal bus and the audit
// log. Failures are logged and never reach the caller.
type Publisher struct {
	bus    domain.SignalBus
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewPublisher creates a Publisher. bus and audit may be nil.
func NewPublisher(bus domain.SignalBus, audit domain.AuditStore, logger *slog.Logger) *Publisher {
	return &Publisher{
		bus:    bus,
		audit:  audit,
		logger: logger.With(slog.String("component", "publisher")),
	}
}

// Publish sends each event on its product channel and appends it to the
// market stream.
func (p *Publisher) Publish(ctx context.Context, events ...domain.Event) {
	if p == nil {
		return
	}
	for _, evt := range events {
		payload, err := json.Marshal(evt)
		if err != nil {
			p.logger.WarnContext(ctx, "publisher: marshal event failed",
				slog.String("type", string(evt.Type)),
				slog.String("error", err.Error()),
			)
			continue
		}

		if p.bus != nil {
			if err := p.bus.Publish(ctx, domain.ProductChannel(evt.ProductID), payload); err != nil {
				p.logger.WarnContext(ctx, "publisher: publish event failed",
					slog.String("type", string(evt.Type)),
					slog.String("product_id", evt.ProductID),
					slog.String("error", err.Error()),
				)
			}
			if err := p.bus.StreamAppend(ctx, domain.MarketStream, payload); err != nil {
				p.logger.WarnContext(ctx, "publisher: stream append failed",
					slog.String("type", string(evt.Type)),
					slog.String("product_id", evt.ProductID),
					slog.String("error", err.Error()),
				)
			}
		}

		if p.audit != nil {
			if err := p.audit.Log(ctx, string(evt.Type), auditDetail(evt)); err != nil {
				p.logger.WarnContext(ctx, "publisher: audit log failed",
					slog.String("type", string(evt.Type)),
					slog.String("product_id", evt.ProductID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func auditDetail(evt domain.Event) map[string]any {
	d := map[string]any{
		"product_id": evt.ProductID,
		"at":         evt.At,
	}
	if evt.ActorID != "" {
		d["actor_id"] = evt.ActorID
	}
	if evt.EntityID != "" {
		d["entity_id"] = evt.EntityID
	}
	if evt.Status != "" {
		d["status"] = string(evt.Status)
	}
	if evt.Amount != nil {
		d["amount"] = evt.Amount.StringFixed(domain.AmountScale)
	}
	return d
}
