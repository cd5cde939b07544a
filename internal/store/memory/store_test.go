package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func seedProduct(t *testing.T, st domain.Stores, id string) domain.Product {
	t.Helper()
	p := domain.Product{
		ID:        id,
		SellerID:  "seller",
		Title:     "Base Set Charizard",
		Category:  "cards",
		Condition: "near_mint",
		Price:     decimal.NewFromInt(100),
		Status:    domain.ProductStatusAvailable,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	require.NoError(t, st.Products.Create(context.Background(), p))
	return p
}

func TestWithTxRollsBack(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()
	p := seedProduct(t, st, "p1")

	boom := errors.New("boom")
	err := st.Tx.WithTx(ctx, func(ctx context.Context) error {
		require.NoError(t, st.Holds.Create(ctx, domain.Hold{
			ID: "h1", ProductID: p.ID, BuyerID: "buyer", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
		}))
		p.Status = domain.ProductStatusOnHold
		require.NoError(t, st.Products.Update(ctx, p))
		return boom
	})
	require.ErrorIs(t, err, boom)

	_, err = st.Holds.GetByID(ctx, "h1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = st.Holds.GetByProduct(ctx, "p1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	got, err := st.Products.GetByID(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, domain.ProductStatusAvailable, got.Status)
}

func TestWithTxCommits(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()
	seedProduct(t, st, "p1")

	err := st.Tx.WithTx(ctx, func(ctx context.Context) error {
		return st.Tx.WithTx(ctx, func(ctx context.Context) error {
			return st.Holds.Create(ctx, domain.Hold{
				ID: "h1", ProductID: "p1", BuyerID: "buyer", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour),
			})
		})
	})
	require.NoError(t, err)

	h, err := st.Holds.GetByProduct(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, "h1", h.ID)
}

func TestHoldStore(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	h := domain.Hold{ID: "h1", ProductID: "p1", BuyerID: "b", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)}
	require.NoError(t, st.Holds.Create(ctx, h))

	err := st.Holds.Create(ctx, domain.Hold{ID: "h2", ProductID: "p1", BuyerID: "c", CreatedAt: t0, ExpiresAt: t0.Add(time.Hour)})
	assert.ErrorIs(t, err, domain.ErrAlreadyExists)

	expired, err := st.Holds.ListExpired(ctx, t0.Add(59*time.Minute), 10)
	require.NoError(t, err)
	assert.Empty(t, expired)

	expired, err = st.Holds.ListExpired(ctx, t0.Add(time.Hour), 10)
	require.NoError(t, err)
	assert.Len(t, expired, 1)

	require.NoError(t, st.Holds.Delete(ctx, "h1"))
	assert.ErrorIs(t, st.Holds.Delete(ctx, "h1"), domain.ErrNotFound)
}

func TestProductListFilters(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	for i, title := range []string{"Charizard Holo", "Pikachu Promo", "Blastoise"} {
		p := domain.Product{
			ID:        title,
			SellerID:  "seller",
			Title:     title,
			Category:  "cards",
			Condition: "mint",
			Price:     decimal.NewFromInt(10),
			Status:    domain.ProductStatusAvailable,
			CreatedAt: t0.Add(time.Duration(i) * time.Minute),
		}
		if i == 2 {
			p.Category = "figures"
		}
		require.NoError(t, st.Products.Create(ctx, p))
	}

	got, err := st.Products.List(ctx, domain.ProductFilter{Category: "cards"}, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "Pikachu Promo", got[0].Title)

	got, err = st.Products.List(ctx, domain.ProductFilter{Search: "chari"}, domain.ListOpts{})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Charizard Holo", got[0].Title)

	got, err = st.Products.List(ctx, domain.ProductFilter{}, domain.ListOpts{Limit: 1, Offset: 1})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Pikachu Promo", got[0].Title)
}

func TestOrderStoreRejectsSecondCompletedOrder(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	o := domain.Order{ID: "o1", ProductID: "p1", Status: domain.OrderStatusCompleted, CreatedAt: t0}
	require.NoError(t, st.Orders.Create(ctx, o))

	o.ID = "o2"
	assert.ErrorIs(t, st.Orders.Create(ctx, o), domain.ErrAlreadyExists)

	o.Status = domain.OrderStatusPending
	assert.NoError(t, st.Orders.Create(ctx, o))
}

func TestRollbackKeepsOtherCommittedPrices(t *testing.T) {
	st := New().Stores()
	ctx := context.Background()

	recorded := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- st.Tx.WithTx(ctx, func(ctx context.Context) error {
			if err := st.PriceHistory.Record(ctx, domain.PricePoint{
				ID: "pp-a", ProductID: "pA", Price: decimal.NewFromInt(10), SaleDate: t0,
			}); err != nil {
				return err
			}
			close(recorded)
			<-release
			return errors.New("sale of pA aborted")
		})
	}()

	<-recorded
	err := st.Tx.WithTx(ctx, func(ctx context.Context) error {
		return st.PriceHistory.Record(ctx, domain.PricePoint{
			ID: "pp-b", ProductID: "pB", Price: decimal.NewFromInt(20), SaleDate: t0.Add(time.Minute),
		})
	})
	require.NoError(t, err)
	close(release)
	require.Error(t, <-done)

	b, err := st.PriceHistory.ListByProduct(ctx, "pB")
	require.NoError(t, err)
	require.Len(t, b, 1)
	assert.Equal(t, "pp-b", b[0].ID)

	a, err := st.PriceHistory.ListByProduct(ctx, "pA")
	require.NoError(t, err)
	assert.Empty(t, a)
}
