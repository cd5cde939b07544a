package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// ReservationService owns the hold lifecycle: placing, cancelling and
// converting holds, and reclaiming the ones that expired.
type ReservationService struct {
	core   Core
	ttl    time.Duration
	batch  int
	logger *slog.Logger
}

// NewReservationService creates a ReservationService. A non-positive ttl
// falls back to domain.DefaultHoldTTL; batch bounds how many expired holds a
// single ReclaimExpired pass picks up.
func NewReservationService(core Core, ttl time.Duration, batch int) *ReservationService {
	if ttl <= 0 {
		ttl = domain.DefaultHoldTTL
	}
	if batch <= 0 {
		batch = 500
	}
	return &ReservationService{
		core:   core,
		ttl:    ttl,
		batch:  batch,
		logger: core.Logger.With(slog.String("component", "reservation_service")),
	}
}

// PlaceHold reserves an available product for buyer.
func (s *ReservationService) PlaceHold(ctx context.Context, productID, buyerID string) (domain.Hold, error) {
	var hold domain.Hold
	err := s.core.mutate(ctx, productID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		p, err := s.core.Stores.Products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}

		var events []domain.Event
		reclaimed, err := s.core.reclaimHold(ctx, &p, now)
		if err != nil {
			return nil, err
		}
		if reclaimed != nil {
			events = append(events, *reclaimed)
		}

		if p.Status != domain.ProductStatusAvailable {
			return nil, fmt.Errorf("product is %s: %w", p.Status, domain.ErrInvalidState)
		}
		if buyerID == p.SellerID {
			return nil, fmt.Errorf("seller cannot hold own product: %w", domain.ErrUnauthorized)
		}

		hold = domain.Hold{
			ID:        uuid.NewString(),
			ProductID: productID,
			BuyerID:   buyerID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.ttl),
		}
		if err := s.core.Stores.Holds.Create(ctx, hold); err != nil {
			return nil, fmt.Errorf("create hold: %w", err)
		}
		p.Status = domain.ProductStatusOnHold
		p.UpdatedAt = now
		if err := s.core.Stores.Products.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		return append(events, productEvent(domain.EventHoldPlaced, p, buyerID, hold.ID, now)), nil
	})
	if err != nil {
		return domain.Hold{}, fmt.Errorf("reservation_service: place hold on %s: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "reservation_service: hold placed",
		slog.String("product_id", productID),
		slog.String("hold_id", hold.ID),
		slog.String("buyer_id", buyerID),
		slog.Time("expires_at", hold.ExpiresAt),
	)
	return hold, nil
}

// CancelHold releases a live hold. Only the buyer who placed it may cancel;
// an expired hold is reported as not found.
func (s *ReservationService) CancelHold(ctx context.Context, holdID, actorID string) error {
	h, err := s.core.Stores.Holds.GetByID(ctx, holdID)
	if err != nil {
		return fmt.Errorf("reservation_service: cancel hold %s: %w", holdID, err)
	}

	err = s.core.mutate(ctx, h.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		h, err := s.core.Stores.Holds.GetByID(ctx, holdID)
		if err != nil {
			return nil, err
		}
		if h.Expired(now) {
			return nil, fmt.Errorf("hold expired at %s: %w", h.ExpiresAt.Format(time.RFC3339), domain.ErrNotFound)
		}
		if h.BuyerID != actorID {
			return nil, domain.ErrUnauthorized
		}

		p, err := s.core.Stores.Products.GetByID(ctx, h.ProductID)
		if err != nil {
			return nil, err
		}
		if err := s.core.Stores.Holds.Delete(ctx, h.ID); err != nil {
			return nil, fmt.Errorf("delete hold: %w", err)
		}
		p.Status = domain.ProductStatusAvailable
		p.UpdatedAt = now
		if err := s.core.Stores.Products.Update(ctx, p); err != nil {
			return nil, fmt.Errorf("update product: %w", err)
		}
		return []domain.Event{productEvent(domain.EventHoldCancelled, p, actorID, h.ID, now)}, nil
	})
	if err != nil {
		return fmt.Errorf("reservation_service: cancel hold %s: %w", holdID, err)
	}

	s.logger.InfoContext(ctx, "reservation_service: hold cancelled",
		slog.String("product_id", h.ProductID),
		slog.String("hold_id", holdID),
	)
	return nil
}

// ConvertHoldToOrder completes the purchase of a held product at its list
// price. An expired hold fails with domain.ErrExpired and is left for
// ReclaimExpired.
func (s *ReservationService) ConvertHoldToOrder(ctx context.Context, holdID, actorID string) (domain.Order, error) {
	h, err := s.core.Stores.Holds.GetByID(ctx, holdID)
	if err != nil {
		return domain.Order{}, fmt.Errorf("reservation_service: convert hold %s: %w", holdID, err)
	}

	var order domain.Order
	err = s.core.mutate(ctx, h.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		h, err := s.core.Stores.Holds.GetByID(ctx, holdID)
		if err != nil {
			return nil, err
		}
		if h.BuyerID != actorID {
			return nil, domain.ErrUnauthorized
		}
		if h.Expired(now) {
			return nil, fmt.Errorf("hold expired at %s: %w", h.ExpiresAt.Format(time.RFC3339), domain.ErrExpired)
		}

		p, err := s.core.Stores.Products.GetByID(ctx, h.ProductID)
		if err != nil {
			return nil, err
		}
		if p.Sold() {
			return nil, fmt.Errorf("product already sold: %w", domain.ErrInvalidState)
		}
		if err := s.core.Stores.Holds.Delete(ctx, h.ID); err != nil {
			return nil, fmt.Errorf("delete hold: %w", err)
		}

		order = domain.Order{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			BuyerID:   h.BuyerID,
			SellerID:  p.SellerID,
			Amount:    p.Price,
			Status:    domain.OrderStatusCompleted,
			Source:    domain.OrderSourceHold,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.core.Stores.Orders.Create(ctx, order); err != nil {
			return nil, fmt.Errorf("create order: %w", err)
		}

		events, err := s.core.finalizeSale(ctx, &p, order, now)
		if err != nil {
			return nil, err
		}
		return append([]domain.Event{
			productEvent(domain.EventHoldConverted, p, actorID, h.ID, now),
			orderEvent(domain.EventOrderCompleted, order, actorID, now),
		}, events...), nil
	})
	if err != nil {
		return domain.Order{}, fmt.Errorf("reservation_service: convert hold %s: %w", holdID, err)
	}

	s.logger.InfoContext(ctx, "reservation_service: hold converted",
		slog.String("product_id", order.ProductID),
		slog.String("hold_id", holdID),
		slog.String("order_id", order.ID),
		slog.String("amount", order.Amount.StringFixed(domain.AmountScale)),
	)
	return order, nil
}

// ReclaimExpired releases every hold whose expiry has passed and returns the
// ids of the products made available again. Each product is handled in its
// own critical section; a failure is logged and left for the next pass.
func (s *ReservationService) ReclaimExpired(ctx context.Context) ([]string, error) {
	reclaimed, err := s.core.reclaimExpiredHolds(ctx, s.batch, s.logger)
	if err != nil {
		return reclaimed, fmt.Errorf("reservation_service: %w", err)
	}
	if len(reclaimed) > 0 {
		s.logger.InfoContext(ctx, "reservation_service: reclaimed expired holds",
			slog.Int("count", len(reclaimed)),
		)
	}
	return reclaimed, nil
}

// ActiveHold returns the live hold on a product.
func (s *ReservationService) ActiveHold(ctx context.Context, productID string) (domain.Hold, error) {
	h, err := s.core.Stores.Holds.GetByProduct(ctx, productID)
	if err != nil {
		return domain.Hold{}, fmt.Errorf("reservation_service: active hold for %s: %w", productID, err)
	}
	if h.Expired(s.core.Clock.Now()) {
		return domain.Hold{}, fmt.Errorf("reservation_service: active hold for %s: %w", productID, domain.ErrNotFound)
	}
	return h, nil
}

// HoldsByBuyer returns the buyer's live holds.
func (s *ReservationService) HoldsByBuyer(ctx context.Context, buyerID string) ([]domain.Hold, error) {
	holds, err := s.core.Stores.Holds.ListByBuyer(ctx, buyerID)
	if err != nil {
		return nil, fmt.Errorf("reservation_service: holds for %s: %w", buyerID, err)
	}
	now := s.core.Clock.Now()
	live := holds[:0]
	for _, h := range holds {
		if !h.Expired(now) {
			live = append(live, h)
		}
	}
	return live, nil
}
