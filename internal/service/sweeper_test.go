package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

func TestSweepReclaimsHoldsAndBids(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p := h.list(t, "seller", "100")

	_, err := h.holds.PlaceHold(ctx, p.ID, "buyer")
	require.NoError(t, err)
	_, _, err = h.book.PlaceBid(ctx, p.ID, "alice", dec("10"), time.Hour)
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	h.sweeper.Sweep(ctx)

	got := h.product(t, p.ID)
	assert.Equal(t, domain.ProductStatusAvailable, got.Status)
	requireQuote(t, got, "", "", 0)
	types := h.streamTypes(t)
	assert.Contains(t, types, domain.EventHoldExpired)
	assert.Contains(t, types, domain.EventBidExpired)
}

func TestSweeperRunStopsOnCancel(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- h.sweeper.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("sweeper did not stop")
	}
}

type failingBus struct{}

func (failingBus) Publish(context.Context, string, []byte) error { return errors.New("bus down") }
func (failingBus) Subscribe(context.Context, string) (<-chan []byte, error) {
	return nil, errors.New("bus down")
}
func (failingBus) StreamAppend(context.Context, string, []byte) error { return errors.New("bus down") }
func (failingBus) StreamRead(context.Context, string, string, int) ([]domain.StreamMessage, error) {
	return nil, errors.New("bus down")
}

func TestPublishFailureDoesNotFailOperation(t *testing.T) {
	h := newHarness(t)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	core := Core{
		Stores: h.stores,
		Locks:  h.holds.core.Locks,
		Clock:  h.clock,
		Events: NewPublisher(failingBus{}, nil, logger),
		Logger: logger,
	}
	holds := NewReservationService(core, 0, 0)
	p := h.list(t, "seller", "100")

	_, err := holds.PlaceHold(context.Background(), p.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusOnHold, h.product(t, p.ID).Status)
}

func TestPublisherWritesAudit(t *testing.T) {
	h := newHarness(t)
	p := h.list(t, "seller", "100")

	entries, err := h.stores.Audit.List(context.Background(), domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, string(domain.EventProductListed), entries[0].Event)
	assert.Equal(t, p.ID, entries[0].Detail["product_id"])
}

func TestReclaimSkipsFailingProduct(t *testing.T) {
	ctx := context.Background()
	h, fp := newFailingHarness(t)
	a := h.list(t, "seller", "100")
	b := h.list(t, "seller", "120")
	_, err := h.holds.PlaceHold(ctx, a.ID, "buyer")
	require.NoError(t, err)
	_, err = h.holds.PlaceHold(ctx, b.ID, "buyer")
	require.NoError(t, err)

	h.clock.Advance(24 * time.Hour)
	fp.failID = a.ID

	reclaimed, err := h.holds.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, reclaimed)
	assert.Equal(t, domain.ProductStatusAvailable, h.product(t, b.ID).Status)

	assert.Equal(t, domain.ProductStatusOnHold, h.product(t, a.ID).Status)
	_, err = h.stores.Holds.GetByProduct(ctx, a.ID)
	require.NoError(t, err, "failed reclaim rolls the hold delete back")

	fp.failID = ""
	reclaimed, err = h.holds.ReclaimExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, reclaimed)
	assert.Equal(t, domain.ProductStatusAvailable, h.product(t, a.ID).Status)
}

func TestBidSweepSkipsFailingProduct(t *testing.T) {
	ctx := context.Background()
	h, fp := newFailingHarness(t)
	a := h.list(t, "seller", "100")
	b := h.list(t, "seller", "120")
	bidA, _, err := h.book.PlaceBid(ctx, a.ID, "alice", dec("10"), time.Hour)
	require.NoError(t, err)
	_, _, err = h.book.PlaceBid(ctx, b.ID, "alice", dec("20"), time.Hour)
	require.NoError(t, err)

	h.clock.Advance(2 * time.Hour)
	fp.failID = a.ID

	swept, err := h.book.SweepExpiredBids(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{b.ID}, swept)
	requireQuote(t, h.product(t, b.ID), "", "", 0)

	got, err := h.stores.Bids.GetByID(ctx, bidA.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BidStatusActive, got.Status, "failed sweep rolls the expiry back")
	requireQuote(t, h.product(t, a.ID), "10", "", 1)

	fp.failID = ""
	swept, err = h.book.SweepExpiredBids(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, swept)
	requireQuote(t, h.product(t, a.ID), "", "", 0)
}
