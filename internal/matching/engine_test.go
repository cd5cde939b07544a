package matching

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

var t0 = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func bid(id string, amount int64, at time.Time) domain.Bid {
	return domain.Bid{
		ID:        id,
		ProductID: "p1",
		BuyerID:   "buyer-" + id,
		Amount:    decimal.NewFromInt(amount),
		Status:    domain.BidStatusActive,
		CreatedAt: at,
		ExpiresAt: at.Add(72 * time.Hour),
	}
}

func ask(id string, amount int64, at time.Time) domain.Ask {
	return domain.Ask{
		ID:        id,
		ProductID: "p1",
		SellerID:  "seller",
		Amount:    decimal.NewFromInt(amount),
		Status:    domain.AskStatusActive,
		CreatedAt: at,
	}
}

func TestQuote(t *testing.T) {
	t.Run("empty book", func(t *testing.T) {
		q := Quote(nil, nil)
		assert.Nil(t, q.HighestBid)
		assert.Nil(t, q.LowestAsk)
		assert.Equal(t, 0, q.BidCount)
	})

	t.Run("ignores inactive entries", func(t *testing.T) {
		cancelled := bid("b3", 90, t0)
		cancelled.Status = domain.BidStatusCancelled
		expired := bid("b4", 95, t0)
		expired.Status = domain.BidStatusExpired
		matched := ask("a2", 10, t0)
		matched.Status = domain.AskStatusMatched

		q := Quote(
			[]domain.Bid{bid("b1", 50, t0), bid("b2", 60, t0), cancelled, expired},
			[]domain.Ask{ask("a1", 70, t0), matched},
		)
		require.NotNil(t, q.HighestBid)
		require.NotNil(t, q.LowestAsk)
		assert.True(t, q.HighestBid.Equal(decimal.NewFromInt(60)))
		assert.True(t, q.LowestAsk.Equal(decimal.NewFromInt(70)))
		assert.Equal(t, 2, q.BidCount)
		assert.False(t, Crossed(q))
	})

	t.Run("exact decimal comparison", func(t *testing.T) {
		b := bid("b1", 0, t0)
		b.Amount = decimal.RequireFromString("10.10")
		a := ask("a1", 0, t0)
		a.Amount = decimal.RequireFromString("10.1")
		q := Quote([]domain.Bid{b}, []domain.Ask{a})
		assert.True(t, Crossed(q))
	})
}

func TestCross(t *testing.T) {
	t.Run("incoming ask matches highest resting bid", func(t *testing.T) {
		bids := []domain.Bid{bid("b50", 50, t0), bid("b60", 60, t0.Add(time.Minute))}
		asks := []domain.Ask{ask("a55", 55, t0.Add(2*time.Minute))}

		m, ok := Cross(bids, asks, SideAsk)
		require.True(t, ok)
		assert.Equal(t, "b60", m.Bid.ID)
		assert.Equal(t, "a55", m.Ask.ID)
		assert.Equal(t, SideBid, m.Resting)
		assert.True(t, m.Price.Equal(decimal.NewFromInt(60)))
	})

	t.Run("incoming bid executes at resting ask", func(t *testing.T) {
		asks := []domain.Ask{ask("a40", 40, t0), ask("a45", 45, t0)}
		bids := []domain.Bid{bid("b48", 48, t0.Add(time.Second))}

		m, ok := Cross(bids, asks, SideBid)
		require.True(t, ok)
		assert.Equal(t, "a40", m.Ask.ID)
		assert.True(t, m.Price.Equal(decimal.NewFromInt(40)))
	})

	t.Run("same timestamp uses aggressor", func(t *testing.T) {
		bids := []domain.Bid{bid("b60", 60, t0)}
		asks := []domain.Ask{ask("a55", 55, t0)}

		m, ok := Cross(bids, asks, SideAsk)
		require.True(t, ok)
		assert.True(t, m.Price.Equal(decimal.NewFromInt(60)))

		m, ok = Cross(bids, asks, SideBid)
		require.True(t, ok)
		assert.True(t, m.Price.Equal(decimal.NewFromInt(55)))
	})

	t.Run("tie on amount picks earliest", func(t *testing.T) {
		bids := []domain.Bid{bid("late", 60, t0.Add(time.Minute)), bid("early", 60, t0)}
		asks := []domain.Ask{ask("a-late", 60, t0.Add(time.Hour)), ask("a-early", 60, t0.Add(30*time.Minute))}

		m, ok := Cross(bids, asks, SideAsk)
		require.True(t, ok)
		assert.Equal(t, "early", m.Bid.ID)
		assert.Equal(t, "a-early", m.Ask.ID)
	})

	t.Run("no cross", func(t *testing.T) {
		_, ok := Cross([]domain.Bid{bid("b1", 50, t0)}, []domain.Ask{ask("a1", 51, t0)}, SideBid)
		assert.False(t, ok)

		_, ok = Cross([]domain.Bid{bid("b1", 50, t0)}, nil, SideBid)
		assert.False(t, ok)
	})
}

func TestSortBids(t *testing.T) {
	bids := []domain.Bid{
		bid("c", 50, t0),
		bid("b", 60, t0.Add(time.Second)),
		bid("a", 60, t0.Add(time.Second)),
		bid("d", 60, t0),
	}
	SortBids(bids)

	ids := make([]string, 0, len(bids))
	for _, b := range bids {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"d", "a", "b", "c"}, ids)
}
