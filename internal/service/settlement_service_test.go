package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// matched lists a product and crosses a bid from buyer with a seller ask.
func matched(t *testing.T, h *harness, buyer string) (domain.Product, domain.Order) {
	t.Helper()
	ctx := context.Background()
	p := h.list(t, "seller", "100")
	_, _, err := h.book.PlaceBid(ctx, p.ID, buyer, dec("75"), 0)
	require.NoError(t, err)
	_, order, err := h.book.PlaceAsk(ctx, p.ID, "seller", dec("70"))
	require.NoError(t, err)
	require.NotNil(t, order)
	return p, *order
}

func TestCompleteOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("seller completes", func(t *testing.T) {
		h := newHarness(t)
		p, order := matched(t, h, "alice")
		_, _, err := h.book.PlaceBid(ctx, p.ID, "bob", dec("20"), 0)
		require.NoError(t, err)

		done, err := h.settle.CompleteOrder(ctx, order.ID, "seller")
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCompleted, done.Status)

		sold := h.product(t, p.ID)
		assert.Equal(t, domain.ProductStatusSold, sold.Status)
		requireQuote(t, sold, "", "", 0)

		history, err := h.dir.PriceHistory(ctx, p.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.True(t, dec("75").Equal(history[0].Price))
	})

	t.Run("buyer cannot complete", func(t *testing.T) {
		h := newHarness(t)
		_, order := matched(t, h, "alice")
		_, err := h.settle.CompleteOrder(ctx, order.ID, "alice")
		assert.ErrorIs(t, err, domain.ErrUnauthorized)
	})

	t.Run("not pending", func(t *testing.T) {
		h := newHarness(t)
		_, order := matched(t, h, "alice")
		_, err := h.settle.CancelOrder(ctx, order.ID, "alice")
		require.NoError(t, err)

		_, err = h.settle.CompleteOrder(ctx, order.ID, "seller")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})

	t.Run("held by another buyer", func(t *testing.T) {
		h := newHarness(t)
		p, order := matched(t, h, "alice")
		_, err := h.holds.PlaceHold(ctx, p.ID, "bob")
		require.NoError(t, err)

		_, err = h.settle.CompleteOrder(ctx, order.ID, "seller")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
		assert.Equal(t, domain.ProductStatusOnHold, h.product(t, p.ID).Status)
	})

	t.Run("consumes buyer's own hold", func(t *testing.T) {
		h := newHarness(t)
		p, order := matched(t, h, "alice")
		hold, err := h.holds.PlaceHold(ctx, p.ID, "alice")
		require.NoError(t, err)

		_, err = h.settle.CompleteOrder(ctx, order.ID, "seller")
		require.NoError(t, err)
		_, err = h.stores.Holds.GetByID(ctx, hold.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
		assert.Equal(t, domain.ProductStatusSold, h.product(t, p.ID).Status)
	})

	t.Run("expired hold of another buyer does not block", func(t *testing.T) {
		h := newHarness(t)
		p, order := matched(t, h, "alice")
		_, err := h.holds.PlaceHold(ctx, p.ID, "bob")
		require.NoError(t, err)
		h.clock.Advance(25 * time.Hour)

		_, err = h.settle.CompleteOrder(ctx, order.ID, "seller")
		require.NoError(t, err)
		assert.Equal(t, 0, h.liveHolds(t, p.ID))
	})

	t.Run("second sale cancels other pending orders", func(t *testing.T) {
		h := newHarness(t)
		p, first := matched(t, h, "alice")
		_, _, err := h.book.PlaceBid(ctx, p.ID, "bob", dec("72"), 0)
		require.NoError(t, err)
		_, second, err := h.book.PlaceAsk(ctx, p.ID, "seller", dec("71"))
		require.NoError(t, err)
		require.NotNil(t, second)

		_, err = h.settle.CompleteOrder(ctx, second.ID, "seller")
		require.NoError(t, err)

		got, err := h.stores.Orders.GetByID(ctx, first.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.OrderStatusCancelled, got.Status)

		_, err = h.settle.CompleteOrder(ctx, first.ID, "seller")
		assert.ErrorIs(t, err, domain.ErrInvalidState)
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()
	h := newHarness(t)
	p, order := matched(t, h, "alice")

	_, err := h.settle.CancelOrder(ctx, order.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	cancelled, err := h.settle.CancelOrder(ctx, order.ID, "seller")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, cancelled.Status)
	assert.Equal(t, domain.ProductStatusAvailable, h.product(t, p.ID).Status)

	_, err = h.settle.CancelOrder(ctx, order.ID, "alice")
	assert.ErrorIs(t, err, domain.ErrInvalidState)

	_, err = h.settle.Order(ctx, order.ID, "mallory")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
	got, err := h.settle.Order(ctx, order.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCancelled, got.Status)
}
