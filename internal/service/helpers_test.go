package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/collectibles/internal/cache/memory"
	"github.com/alanyoungcy/collectibles/internal/clock"
	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/lock"
	"github.com/alanyoungcy/collectibles/internal/store/memory"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

type harness struct {
	clock    *clock.Manual
	stores   domain.Stores
	bus      *cachemem.SignalBus
	holds    *ReservationService
	book     *OrderBookService
	dir      *DirectoryService
	settle   *SettlementService
	sweeper  *Sweeper
	products int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	return newHarnessWith(t, nil)
}

// newHarnessWith builds a harness whose services see the stores returned by
// wrap. The harness itself keeps reading the unwrapped stores.
func newHarnessWith(t *testing.T, wrap func(domain.Stores) domain.Stores) *harness {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clk := clock.NewManual(t0)
	stores := memory.New().Stores()
	served := stores
	if wrap != nil {
		served = wrap(stores)
	}
	bus := cachemem.NewSignalBus()

	core := Core{
		Stores: served,
		Locks:  lock.NewKeyed(),
		Clock:  clk,
		Events: NewPublisher(bus, stores.Audit, logger),
		Logger: logger,
	}
	h := &harness{
		clock:  clk,
		stores: stores,
		bus:    bus,
		holds:  NewReservationService(core, domain.DefaultHoldTTL, 100),
		book:   NewOrderBookService(core, WithBidTTL(72*time.Hour, 720*time.Hour)),
		dir:    NewDirectoryService(core),
		settle: NewSettlementService(core),
	}
	h.sweeper = NewSweeper(h.holds, h.book, time.Minute, logger)
	return h
}

// list creates an available product owned by seller at the current time.
func (h *harness) list(t *testing.T, seller string, price string) domain.Product {
	t.Helper()
	p, err := h.dir.ListProduct(context.Background(), seller, domain.NewProduct{
		Title:     "Base Set Charizard",
		Category:  "cards",
		Condition: "near_mint",
		Price:     dec(price),
	})
	require.NoError(t, err)
	return p
}

func (h *harness) product(t *testing.T, id string) domain.Product {
	t.Helper()
	p, err := h.stores.Products.GetByID(context.Background(), id)
	require.NoError(t, err)
	return p
}

// liveHolds counts the product's holds that have not expired.
func (h *harness) liveHolds(t *testing.T, productID string) int {
	t.Helper()
	hold, err := h.stores.Holds.GetByProduct(context.Background(), productID)
	if err != nil {
		require.ErrorIs(t, err, domain.ErrNotFound)
		return 0
	}
	if hold.Expired(h.clock.Now()) {
		return 0
	}
	return 1
}

// failingProducts fails Update for one product id while failID is set.
type failingProducts struct {
	domain.ProductStore
	failID string
}

var errStorageDown = errors.New("storage unavailable")

func (f *failingProducts) Update(ctx context.Context, p domain.Product) error {
	if f.failID != "" && p.ID == f.failID {
		return errStorageDown
	}
	return f.ProductStore.Update(ctx, p)
}

// newFailingHarness returns a harness whose product updates can be made to
// fail for a single product.
func newFailingHarness(t *testing.T) (*harness, *failingProducts) {
	t.Helper()
	fp := &failingProducts{}
	h := newHarnessWith(t, func(s domain.Stores) domain.Stores {
		fp.ProductStore = s.Products
		s.Products = fp
		return s
	})
	return h, fp
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decPtr(s string) *decimal.Decimal {
	d := dec(s)
	return &d
}

// requireQuote checks the derived fields against expectations. Empty strings
// mean null.
func requireQuote(t *testing.T, p domain.Product, highest, lowest string, count int) {
	t.Helper()
	if highest == "" {
		require.Nil(t, p.HighestBid, "highest_bid")
	} else {
		require.NotNil(t, p.HighestBid, "highest_bid")
		require.True(t, dec(highest).Equal(*p.HighestBid), "highest_bid = %s", p.HighestBid)
	}
	if lowest == "" {
		require.Nil(t, p.LowestAsk, "lowest_ask")
	} else {
		require.NotNil(t, p.LowestAsk, "lowest_ask")
		require.True(t, dec(lowest).Equal(*p.LowestAsk), "lowest_ask = %s", p.LowestAsk)
	}
	require.Equal(t, count, p.BidCount, "bid_count")
}

// streamTypes returns the event types appended to the market stream so far.
func (h *harness) streamTypes(t *testing.T) []domain.EventType {
	t.Helper()
	msgs, err := h.bus.StreamRead(context.Background(), domain.MarketStream, "0", 1000)
	require.NoError(t, err)
	out := make([]domain.EventType, 0, len(msgs))
	for _, m := range msgs {
		var evt domain.Event
		require.NoError(t, json.Unmarshal(m.Payload, &evt))
		out = append(out, evt.Type)
	}
	return out
}
