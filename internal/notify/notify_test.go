package notify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/collectibles/internal/cache/memory"
	"github.com/alanyoungcy/collectibles/internal/domain"
)

type recordingSender struct {
	mu     sync.Mutex
	titles []string
	err    error
}

func (s *recordingSender) Send(_ context.Context, title, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.titles = append(s.titles, title)
	return s.err
}

func (s *recordingSender) Name() string { return "recording" }

func (s *recordingSender) sent() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.titles...)
}

var at = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func TestNotifierFilters(t *testing.T) {
	ctx := context.Background()
	rec := &recordingSender{}
	n := NewNotifier([]Sender{rec}, []string{"order_matched", " hold_placed "}, slog.New(slog.DiscardHandler))

	require.NoError(t, n.Notify(ctx, domain.Event{Type: domain.EventBidPlaced, ProductID: "p1", At: at}))
	require.NoError(t, n.Notify(ctx, domain.Event{Type: domain.EventHoldPlaced, ProductID: "p1", At: at}))
	assert.Equal(t, []string{"Item on hold"}, rec.sent())
}

func TestNotifierCollectsFailures(t *testing.T) {
	ok := &recordingSender{}
	bad := &recordingSender{err: errors.New("boom")}
	n := NewNotifier([]Sender{bad, ok}, nil, slog.New(slog.DiscardHandler))

	err := n.Notify(context.Background(), domain.Event{Type: domain.EventOrderCompleted, ProductID: "p1", At: at})
	require.ErrorContains(t, err, "1 sender(s) failed")
	assert.Len(t, ok.sent(), 1, "a failing sender does not stop the others")
}

func TestFormat(t *testing.T) {
	price := decimal.RequireFromString("60")
	bid := decimal.RequireFromString("50")
	title, msg := Format(domain.Event{
		Type:      domain.EventOrderMatched,
		ProductID: "p1",
		Order:     &domain.Order{ID: "o1", Amount: price},
		Quote:     &domain.Quote{HighestBid: &bid, BidCount: 1},
		At:        at,
	})
	assert.Equal(t, "Bid and ask matched", title)
	assert.Contains(t, msg, "order o1: 60.00")
	assert.Contains(t, msg, "highest bid 50.00")
	assert.NotContains(t, msg, "lowest ask")
}

func TestRelayForwardsBusEvents(t *testing.T) {
	bus := cachemem.NewSignalBus()
	rec := &recordingSender{}
	relay := NewRelay(bus, NewNotifier([]Sender{rec}, nil, slog.New(slog.DiscardHandler)), slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- relay.Run(ctx) }()

	payload, err := json.Marshal(domain.Event{Type: domain.EventHoldPlaced, ProductID: "p1", At: at})
	require.NoError(t, err)

	// the subscription is registered asynchronously
	require.Eventually(t, func() bool {
		_ = bus.Publish(ctx, domain.ProductChannel("p1"), payload)
		return len(rec.sent()) > 0
	}, time.Second, 10*time.Millisecond)

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)
}

func TestDiscordSender(t *testing.T) {
	var got discordPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = discordPayload{}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	require.NoError(t, d.Send(context.Background(), "Sale completed", "product p1"))
	assert.Equal(t, "**Sale completed**\nproduct p1", got.Content)
	assert.Empty(t, got.Embeds)

	n := NewNotifier([]Sender{d}, nil, slog.New(slog.DiscardHandler))
	require.NoError(t, n.Notify(context.Background(), domain.Event{
		Type:      domain.EventOrderMatched,
		ProductID: "p1",
		Status:    domain.ProductStatusAvailable,
		Order:     &domain.Order{ID: "o1", Amount: decimal.RequireFromString("60"), Status: domain.OrderStatusPending},
		At:        at,
	}))
	require.Len(t, got.Embeds, 1, "events go out as embeds")
	embed := got.Embeds[0]
	assert.Equal(t, "Bid and ask matched", embed.Title)
	assert.Equal(t, colourSale, embed.Color)
	assert.Equal(t, "2026-05-01T10:00:00Z", embed.Timestamp)

	fields := map[string]string{}
	for _, f := range embed.Fields {
		fields[f.Name] = f.Value
	}
	assert.Equal(t, map[string]string{
		"Event":   "order_matched",
		"Product": "p1",
		"Status":  "available",
		"Amount":  "60.00",
		"Order":   "o1 (pending)",
	}, fields)
}

func TestEventColour(t *testing.T) {
	tests := map[domain.EventType]int{
		domain.EventProductListed:  colourListing,
		domain.EventHoldPlaced:     colourHold,
		domain.EventHoldConverted:  colourSale,
		domain.EventHoldExpired:    colourEnded,
		domain.EventBidPlaced:      colourBook,
		domain.EventAskCancelled:   colourEnded,
		domain.EventOrderCompleted: colourSale,
		domain.EventOrderCancelled: colourEnded,
	}
	for typ, want := range tests {
		t.Run(string(typ), func(t *testing.T) {
			assert.Equal(t, want, eventColour(typ))
		})
	}
}

func TestTelegramSender(t *testing.T) {
	var path string
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		if got["chat_id"] != "42" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42").WithAPIBase(srv.URL)
	require.NoError(t, s.Send(context.Background(), "New bid", "product p1"))
	assert.Equal(t, "/bottok/sendMessage", path)
	assert.Equal(t, "*New bid*\nproduct p1", got["text"])

	bad := NewTelegramSender("tok", "7").WithAPIBase(srv.URL)
	require.ErrorContains(t, bad.Send(context.Background(), "x", "y"), "unexpected status 400")
}
