// Package matching holds the pure order book rules: deriving a product's
// quote from its active bids and asks and selecting the pair that trades when
// the book crosses.
package matching

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// Side identifies which side of the book an order rests on.
type Side int

const (
	SideBid Side = iota
	SideAsk
)

// Match is a crossing bid/ask pair and the price it executes at.
type Match struct {
	Bid   domain.Bid
	Ask   domain.Ask
	Price decimal.Decimal
	// Resting is the side whose order was in the book first.
	Resting Side
}

// Quote recomputes the derived top-of-book fields from scratch. Entries that
// are not active are ignored.
func Quote(bids []domain.Bid, asks []domain.Ask) domain.Quote {
	var q domain.Quote
	for _, b := range bids {
		if b.Status != domain.BidStatusActive {
			continue
		}
		q.BidCount++
		if q.HighestBid == nil || b.Amount.GreaterThan(*q.HighestBid) {
			amt := b.Amount
			q.HighestBid = &amt
		}
	}
	for _, a := range asks {
		if a.Status != domain.AskStatusActive {
			continue
		}
		if q.LowestAsk == nil || a.Amount.LessThan(*q.LowestAsk) {
			amt := a.Amount
			q.LowestAsk = &amt
		}
	}
	return q
}

// Crossed reports whether the quote's best bid meets or exceeds its best ask.
func Crossed(q domain.Quote) bool {
	return q.HighestBid != nil && q.LowestAsk != nil && q.HighestBid.GreaterThanOrEqual(*q.LowestAsk)
}

// SortBids orders bids best first: highest amount, then earliest created_at,
// then id.
func SortBids(bids []domain.Bid) {
	sort.SliceStable(bids, func(i, j int) bool {
		a, b := bids[i], bids[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c > 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// SortAsks orders asks best first: lowest amount, then earliest created_at,
// then id.
func SortAsks(asks []domain.Ask) {
	sort.SliceStable(asks, func(i, j int) bool {
		a, b := asks[i], asks[j]
		if c := a.Amount.Cmp(b.Amount); c != 0 {
			return c < 0
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID < b.ID
	})
}

// Cross selects the highest active bid and the lowest active ask and returns
// them as a Match when they cross. The trade executes at the resting order's
// price; when both entries carry the same created_at, the side opposite the
// aggressor is treated as resting.
func Cross(bids []domain.Bid, asks []domain.Ask, aggressor Side) (Match, bool) {
	bestBid, ok := bestActiveBid(bids)
	if !ok {
		return Match{}, false
	}
	bestAsk, ok := bestActiveAsk(asks)
	if !ok {
		return Match{}, false
	}
	if bestBid.Amount.LessThan(bestAsk.Amount) {
		return Match{}, false
	}

	resting := restingSide(bestBid, bestAsk, aggressor)
	price := bestAsk.Amount
	if resting == SideBid {
		price = bestBid.Amount
	}
	return Match{Bid: bestBid, Ask: bestAsk, Price: price, Resting: resting}, true
}

func restingSide(b domain.Bid, a domain.Ask, aggressor Side) Side {
	switch {
	case b.CreatedAt.Before(a.CreatedAt):
		return SideBid
	case a.CreatedAt.Before(b.CreatedAt):
		return SideAsk
	case aggressor == SideBid:
		return SideAsk
	default:
		return SideBid
	}
}

func bestActiveBid(bids []domain.Bid) (domain.Bid, bool) {
	active := make([]domain.Bid, 0, len(bids))
	for _, b := range bids {
		if b.Status == domain.BidStatusActive {
			active = append(active, b)
		}
	}
	if len(active) == 0 {
		return domain.Bid{}, false
	}
	SortBids(active)
	return active[0], true
}

func bestActiveAsk(asks []domain.Ask) (domain.Ask, bool) {
	active := make([]domain.Ask, 0, len(asks))
	for _, a := range asks {
		if a.Status == domain.AskStatusActive {
			active = append(active, a)
		}
	}
	if len(active) == 0 {
		return domain.Ask{}, false
	}
	SortAsks(active)
	return active[0], true
}
