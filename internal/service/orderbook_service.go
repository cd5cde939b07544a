package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/matching"
)

// Bid TTL defaults used when no configuration is supplied.
const (
	DefaultBidTTL = 72 * time.Hour
	MaxBidTTL     = 30 * 24 * time.Hour
)

// OrderBookService maintains each product's bids and asks, keeps the derived
// quote in step with the active sets and turns crossing entries into pending
// orders.
type OrderBookService struct {
	core       Core
	defaultTTL time.Duration
	maxTTL     time.Duration
	batch      int
	logger     *slog.Logger
}

// BookOption configures an OrderBookService.
type BookOption func(*OrderBookService)

// WithBidTTL sets the default and maximum bid lifetime.
func WithBidTTL(def, limit time.Duration) BookOption {
	return func(s *OrderBookService) {
		if def > 0 {
			s.defaultTTL = def
		}
		if limit > 0 {
			s.maxTTL = limit
		}
	}
}

// WithSweepBatch bounds how many expired bids one sweep picks up.
func WithSweepBatch(n int) BookOption {
	return func(s *OrderBookService) {
		if n > 0 {
			s.batch = n
		}
	}
}

// NewOrderBookService creates an OrderBookService.
func NewOrderBookService(core Core, opts ...BookOption) *OrderBookService {
	s := &OrderBookService{
		core:       core,
		defaultTTL: DefaultBidTTL,
		maxTTL:     MaxBidTTL,
		batch:      500,
		logger:     core.Logger.With(slog.String("component", "orderbook_service")),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultTTL > s.maxTTL {
		s.defaultTTL = s.maxTTL
	}
	return s
}

// PlaceBid adds a buyer's bid and runs the matching check. The returned order
// is non-nil when the bid traded immediately. A non-positive ttl uses the
// default; longer ttls are capped.
func (s *OrderBookService) PlaceBid(ctx context.Context, productID, buyerID string, amount decimal.Decimal, ttl time.Duration) (domain.Bid, *domain.Order, error) {
	if err := domain.ValidateAmount(amount); err != nil {
		return domain.Bid{}, nil, fmt.Errorf("orderbook_service: place bid on %s: %w", productID, err)
	}
	if ttl <= 0 {
		ttl = s.defaultTTL
	}
	if ttl > s.maxTTL {
		ttl = s.maxTTL
	}

	var (
		bid   domain.Bid
		order *domain.Order
	)
	err := s.core.mutate(ctx, productID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		p, err := s.core.Stores.Products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.Sold() {
			return nil, fmt.Errorf("product sold: %w", domain.ErrInvalidState)
		}
		if buyerID == p.SellerID {
			return nil, fmt.Errorf("seller cannot bid on own product: %w", domain.ErrUnauthorized)
		}

		events, err := s.core.expireBids(ctx, productID, now)
		if err != nil {
			return nil, err
		}

		bid = domain.Bid{
			ID:        uuid.NewString(),
			ProductID: productID,
			BuyerID:   buyerID,
			Amount:    amount,
			Status:    domain.BidStatusActive,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
			UpdatedAt: now,
		}
		if err := s.core.Stores.Bids.Create(ctx, bid); err != nil {
			return nil, fmt.Errorf("create bid: %w", err)
		}

		matched, matchEvents, err := s.match(ctx, &p, matching.SideBid, now)
		if err != nil {
			return nil, err
		}
		for i := range matched {
			if matched[i].BidID == bid.ID {
				order = &matched[i]
				bid.Status = domain.BidStatusMatched
			}
		}

		amt := bid.Amount
		placed := productEvent(domain.EventBidPlaced, p, buyerID, bid.ID, now)
		placed.Amount = &amt
		events = append(events, placed)
		return append(events, matchEvents...), nil
	})
	if err != nil {
		return domain.Bid{}, nil, fmt.Errorf("orderbook_service: place bid on %s: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "orderbook_service: bid placed",
		slog.String("product_id", productID),
		slog.String("bid_id", bid.ID),
		slog.String("amount", amount.StringFixed(domain.AmountScale)),
		slog.Bool("matched", order != nil),
	)
	return bid, order, nil
}

// PlaceAsk adds the seller's ask on their own product and runs the matching
// check.
func (s *OrderBookService) PlaceAsk(ctx context.Context, productID, sellerID string, amount decimal.Decimal) (domain.Ask, *domain.Order, error) {
	var (
		ask   domain.Ask
		order *domain.Order
	)
	err := s.core.mutate(ctx, productID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		p, err := s.core.Stores.Products.GetByID(ctx, productID)
		if err != nil {
			return nil, err
		}
		if p.SellerID != sellerID {
			return nil, domain.ErrUnauthorized
		}
		if err := domain.ValidateAmount(amount); err != nil {
			return nil, err
		}
		if p.Sold() {
			return nil, fmt.Errorf("product sold: %w", domain.ErrInvalidState)
		}

		events, err := s.core.expireBids(ctx, productID, now)
		if err != nil {
			return nil, err
		}

		ask = domain.Ask{
			ID:        uuid.NewString(),
			ProductID: productID,
			SellerID:  sellerID,
			Amount:    amount,
			Status:    domain.AskStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.core.Stores.Asks.Create(ctx, ask); err != nil {
			return nil, fmt.Errorf("create ask: %w", err)
		}

		matched, matchEvents, err := s.match(ctx, &p, matching.SideAsk, now)
		if err != nil {
			return nil, err
		}
		for i := range matched {
			if matched[i].AskID == ask.ID {
				order = &matched[i]
				ask.Status = domain.AskStatusMatched
			}
		}

		amt := ask.Amount
		placed := productEvent(domain.EventAskPlaced, p, sellerID, ask.ID, now)
		placed.Amount = &amt
		events = append(events, placed)
		return append(events, matchEvents...), nil
	})
	if err != nil {
		return domain.Ask{}, nil, fmt.Errorf("orderbook_service: place ask on %s: %w", productID, err)
	}

	s.logger.InfoContext(ctx, "orderbook_service: ask placed",
		slog.String("product_id", productID),
		slog.String("ask_id", ask.ID),
		slog.String("amount", amount.StringFixed(domain.AmountScale)),
		slog.Bool("matched", order != nil),
	)
	return ask, order, nil
}

// CancelBid withdraws an active bid owned by actor.
func (s *OrderBookService) CancelBid(ctx context.Context, bidID, actorID string) error {
	b, err := s.core.Stores.Bids.GetByID(ctx, bidID)
	if err != nil {
		return fmt.Errorf("orderbook_service: cancel bid %s: %w", bidID, err)
	}

	err = s.core.mutate(ctx, b.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		b, err := s.core.Stores.Bids.GetByID(ctx, bidID)
		if err != nil {
			return nil, err
		}
		if b.BuyerID != actorID {
			return nil, domain.ErrUnauthorized
		}
		if b.Status != domain.BidStatusActive {
			return nil, fmt.Errorf("bid is %s: %w", b.Status, domain.ErrInvalidState)
		}
		if b.Expired(now) {
			return nil, fmt.Errorf("bid expired: %w", domain.ErrInvalidState)
		}

		if err := s.core.Stores.Bids.UpdateStatus(ctx, b.ID, domain.BidStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel bid: %w", err)
		}
		p, err := s.core.Stores.Products.GetByID(ctx, b.ProductID)
		if err != nil {
			return nil, err
		}
		if err := s.core.requote(ctx, &p, now); err != nil {
			return nil, err
		}
		evt := productEvent(domain.EventBidCancelled, p, actorID, b.ID, now)
		evt.Amount = &b.Amount
		return []domain.Event{evt}, nil
	})
	if err != nil {
		return fmt.Errorf("orderbook_service: cancel bid %s: %w", bidID, err)
	}

	s.logger.InfoContext(ctx, "orderbook_service: bid cancelled",
		slog.String("product_id", b.ProductID),
		slog.String("bid_id", bidID),
	)
	return nil
}

// CancelAsk withdraws an active ask owned by actor.
func (s *OrderBookService) CancelAsk(ctx context.Context, askID, actorID string) error {
	a, err := s.core.Stores.Asks.GetByID(ctx, askID)
	if err != nil {
		return fmt.Errorf("orderbook_service: cancel ask %s: %w", askID, err)
	}

	err = s.core.mutate(ctx, a.ProductID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
		a, err := s.core.Stores.Asks.GetByID(ctx, askID)
		if err != nil {
			return nil, err
		}
		if a.SellerID != actorID {
			return nil, domain.ErrUnauthorized
		}
		if a.Status != domain.AskStatusActive {
			return nil, fmt.Errorf("ask is %s: %w", a.Status, domain.ErrInvalidState)
		}

		if err := s.core.Stores.Asks.UpdateStatus(ctx, a.ID, domain.AskStatusCancelled, now); err != nil {
			return nil, fmt.Errorf("cancel ask: %w", err)
		}
		p, err := s.core.Stores.Products.GetByID(ctx, a.ProductID)
		if err != nil {
			return nil, err
		}
		if err := s.core.requote(ctx, &p, now); err != nil {
			return nil, err
		}
		evt := productEvent(domain.EventAskCancelled, p, actorID, a.ID, now)
		evt.Amount = &a.Amount
		return []domain.Event{evt}, nil
	})
	if err != nil {
		return fmt.Errorf("orderbook_service: cancel ask %s: %w", askID, err)
	}

	s.logger.InfoContext(ctx, "orderbook_service: ask cancelled",
		slog.String("product_id", a.ProductID),
		slog.String("ask_id", askID),
	)
	return nil
}

// SweepExpiredBids expires every active bid past its TTL and returns the ids
// of the products whose book changed.
func (s *OrderBookService) SweepExpiredBids(ctx context.Context) ([]string, error) {
	expired, err := s.core.Stores.Bids.ListExpired(ctx, s.core.Clock.Now(), s.batch)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service: list expired bids: %w", err)
	}

	var swept []string
	for _, productID := range dedupe(expired, func(b domain.Bid) string { return b.ProductID }) {
		if ctx.Err() != nil {
			return swept, ctx.Err()
		}

		var changed bool
		err := s.core.mutate(ctx, productID, func(ctx context.Context, now time.Time) ([]domain.Event, error) {
			events, err := s.core.expireBids(ctx, productID, now)
			if err != nil || len(events) == 0 {
				return nil, err
			}
			p, err := s.core.Stores.Products.GetByID(ctx, productID)
			if err != nil {
				return nil, err
			}
			if err := s.core.requote(ctx, &p, now); err != nil {
				return nil, err
			}
			changed = true
			return events, nil
		})
		if err != nil {
			s.logger.WarnContext(ctx, "orderbook_service: bid sweep failed",
				slog.String("product_id", productID),
				slog.String("error", err.Error()),
			)
			continue
		}
		if changed {
			swept = append(swept, productID)
		}
	}

	if len(swept) > 0 {
		s.logger.InfoContext(ctx, "orderbook_service: expired bids swept",
			slog.Int("products", len(swept)),
		)
	}
	return swept, nil
}

// Book returns the live order book of a product, best prices first. Bids
// past their TTL that the sweeper has not reached yet are left out.
func (s *OrderBookService) Book(ctx context.Context, productID string) (domain.BookView, error) {
	if _, err := s.core.Stores.Products.GetByID(ctx, productID); err != nil {
		return domain.BookView{}, fmt.Errorf("orderbook_service: book for %s: %w", productID, err)
	}
	bids, asks, err := s.core.book(ctx, productID)
	if err != nil {
		return domain.BookView{}, fmt.Errorf("orderbook_service: book for %s: %w", productID, err)
	}

	now := s.core.Clock.Now()
	live := make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		if !b.Expired(now) {
			live = append(live, b)
		}
	}
	matching.SortBids(live)
	matching.SortAsks(asks)
	if asks == nil {
		asks = []domain.Ask{}
	}
	return domain.BookView{
		ProductID: productID,
		Bids:      live,
		Asks:      asks,
		Quote:     matching.Quote(live, asks),
	}, nil
}

// BidsByBuyer lists a buyer's bids, newest first.
func (s *OrderBookService) BidsByBuyer(ctx context.Context, buyerID string, opts domain.ListOpts) ([]domain.Bid, error) {
	bids, err := s.core.Stores.Bids.ListByBuyer(ctx, buyerID, opts)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service: bids for %s: %w", buyerID, err)
	}
	return bids, nil
}

// AsksBySeller lists a seller's asks, newest first.
func (s *OrderBookService) AsksBySeller(ctx context.Context, sellerID string, opts domain.ListOpts) ([]domain.Ask, error) {
	asks, err := s.core.Stores.Asks.ListBySeller(ctx, sellerID, opts)
	if err != nil {
		return nil, fmt.Errorf("orderbook_service: asks for %s: %w", sellerID, err)
	}
	return asks, nil
}

// match trades crossing pairs until the book no longer crosses, then
// persists the recomputed quote on p. Each pass consumes one bid and one ask,
// so the loop is bounded by the size of the book it started from.
func (s *OrderBookService) match(ctx context.Context, p *domain.Product, aggressor matching.Side, now time.Time) ([]domain.Order, []domain.Event, error) {
	bids, asks, err := s.core.book(ctx, p.ID)
	if err != nil {
		return nil, nil, err
	}

	var (
		orders []domain.Order
		events []domain.Event
	)
	for passes := min(len(bids), len(asks)); passes > 0; passes-- {
		m, ok := matching.Cross(bids, asks, aggressor)
		if !ok {
			break
		}
		if err := s.core.Stores.Bids.UpdateStatus(ctx, m.Bid.ID, domain.BidStatusMatched, now); err != nil {
			return nil, nil, fmt.Errorf("match bid %s: %w", m.Bid.ID, err)
		}
		if err := s.core.Stores.Asks.UpdateStatus(ctx, m.Ask.ID, domain.AskStatusMatched, now); err != nil {
			return nil, nil, fmt.Errorf("match ask %s: %w", m.Ask.ID, err)
		}

		o := domain.Order{
			ID:        uuid.NewString(),
			ProductID: p.ID,
			BuyerID:   m.Bid.BuyerID,
			SellerID:  p.SellerID,
			Amount:    m.Price,
			Status:    domain.OrderStatusPending,
			Source:    domain.OrderSourceMatch,
			BidID:     m.Bid.ID,
			AskID:     m.Ask.ID,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.core.Stores.Orders.Create(ctx, o); err != nil {
			return nil, nil, fmt.Errorf("create order: %w", err)
		}
		orders = append(orders, o)
		events = append(events, orderEvent(domain.EventOrderMatched, o, "", now))

		s.logger.InfoContext(ctx, "orderbook_service: bid and ask matched",
			slog.String("product_id", p.ID),
			slog.String("bid_id", m.Bid.ID),
			slog.String("ask_id", m.Ask.ID),
			slog.String("price", m.Price.StringFixed(domain.AmountScale)),
		)

		bids = withoutBid(bids, m.Bid.ID)
		asks = withoutAsk(asks, m.Ask.ID)
	}

	q := matching.Quote(bids, asks)
	p.ApplyQuote(q)
	p.UpdatedAt = now
	if err := s.core.Stores.Products.Update(ctx, *p); err != nil {
		return nil, nil, fmt.Errorf("update product: %w", err)
	}
	return orders, events, nil
}

func withoutBid(bids []domain.Bid, id string) []domain.Bid {
	out := bids[:0]
	for _, b := range bids {
		if b.ID != id {
			out = append(out, b)
		}
	}
	return out
}

func withoutAsk(asks []domain.Ask, id string) []domain.Ask {
	out := asks[:0]
	for _, a := range asks {
		if a.ID != id {
			out = append(out, a)
		}
	}
	return out
}
