package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// SettlementService settles the pending orders produced by matching.
type SettlementService struct {
	core   Core
	logger *slog.Logger
}

// NewSettlementService creates a SettlementService.
func NewSettlementService(core Core) *SettlementService {
	return &SettlementService{
		core:   core,
		logger: core.Logger.With(slog.String("component", "settlement_service")),
	}
}

// CompleteOrder is the seller confirming a matched sale. It sells the product
// to the order's buyer; a live hold of another buyer blocks it, a hold of the
// same buyer is consumed.
func (s *SettlementService) CompleteOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	o, err := s.core.Stores.Orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement_service: complete order %s: %w", orderID, err)
	}

	err = s.core.mutate(ctx, o.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		var err error
		o, err = s.core.Stores.Orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.SellerID != actorID {
			return nil, domain.ErrUnauthorized
		}
		if o.Status != domain.OrderStatusPending {
			return nil, fmt.Errorf("order is %s: %w", o.Status, domain.ErrInvalidState)
		}

		p, err := s.core.Stores.Products.GetByID(ctx, o.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Sold() {
			return nil, fmt.Errorf("product already sold: %w", domain.ErrInvalidState)
		}

		var events []domain.Event
		h, err := s.core.Stores.Holds.GetByProduct(ctx, p.ID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("get hold: %w", err)
		case !h.Expired(now) && h.BuyerID != o.BuyerID:
			return nil, fmt.Errorf("product held by another buyer: %w", domain.ErrInvalidState)
		default:
			if err := s.core.Stores.Holds.Delete(ctx, h.ID); err != nil {
				return nil, fmt.Errorf("delete hold: %w", err)
			}
			if h.Expired(now) {
				events = append(events, domain.Event{
					Type:      domain.EventHoldExpired,
					ProductID: p.ID,
					ActorID:   h.BuyerID,
					EntityID:  h.ID,
					At:        now,
				})
			}
		}

		if err := s.core.Stores.Orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCompleted, now); err != nil {
			return nil, fmt.Errorf("complete order: %w", err)
		}
		o.Status = domain.OrderStatusCompleted
		o.UpdatedAt = now

		sale, err := s.core.finalizeSale(ctx, &p, o, now)
		if err != nil {
			return nil, err
		}
		events = append(events, orderEvent(domain.EventOrderCompleted, o, actorID, now))
		return append(events, sale...), nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement_service: complete order %s: %w", orderID, err)
	}

	s.logger.InfoContext(ctx, "settlement_service: order completed",
		slog.String("order_id", o.ID),
		slog.String("product_id", o.ProductID),
		slog.String("amount", o.Amount.StringFixed(domain.AmountScale)),
	)
	return o, nil
}

// CancelOrder lets either party walk away from a pending order. The product
// and its book are left as they are.
func (s *SettlementService) CancelOrder(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	o, err := s.core.Stores.Orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement_service: cancel order %s: %w", orderID, err)
	}

	err = s.core.mutate(ctx, o.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		var err error
		o, err = s.core.Stores.Orders.GetByID(ctx, orderID)
		if err != nil {
			return nil, err
		}
		if o.BuyerID != actorID && o.SellerID != actorID {
			return nil, domain.ErrUnauthorized
		}
		if o.Status != domain.OrderStatusPending {
			return nil, fmt.Errorf("order is %s: %w", o.Status, domain.ErrInvalidState)
		}
		if err := s.core.Stores.Orders.UpdateStatus(ctx, o.ID, domain.OrderStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel order: %w", err)
		}
		o.Status = domain.OrderStatusCancelled
		o.UpdatedAt = now
		return []domain.Event{orderEvent(domain.EventOrderCancelled, o, actorID, now)}, nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement_service: cancel order %s: %w", orderID, err)
	}

	s.logger.InfoContext(ctx, "settlement_service: order cancelled",
		slog.String("order_id", o.ID),
		slog.String("product_id", o.ProductID),
		slog.String("actor_id", actorID),
	)
	return o, nil
}

// Order returns an order visible to actor.
func (s *SettlementService) Order(ctx context.Context, orderID, actorID string) (domain.Order, error) {
	o, err := s.core.Stores.Orders.GetByID(ctx, orderID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("settlement_service: get order %s: %w", orderID, err)
	}
	if o.BuyerID != actorID && o.SellerID != actorID {
		return domain.Order{}, fmt.Errorf("settlement_service: get order %s: %w", orderID, domain.ErrUnauthorized)
	}
	return o, nil
}
