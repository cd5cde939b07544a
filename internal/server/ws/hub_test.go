package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cachemem "github.com/alanyoungcy/collectibles/internal/cache/memory"
	"github.com/alanyoungcy/collectibles/internal/domain"
)

func readType(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func TestHubDeliversFollowedProducts(t *testing.T) {
	bus := cachemem.NewSignalBus()
	hub := NewHub(bus, slog.New(slog.DiscardHandler), Config{Mode: "full"})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.HandleWS))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "?product=p2"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "hello", readType(t, conn)["type"])

	publish := func(productID string) {
		payload, err := json.Marshal(domain.Event{Type: domain.EventBidPlaced, ProductID: productID, At: time.Now()})
		require.NoError(t, err)
		require.NoError(t, bus.Publish(ctx, domain.ProductChannel(productID), payload))
	}

	// wait for the client to be registered before publishing
	require.Eventually(t, func() bool { return hub.clientCount() == 1 }, time.Second, 10*time.Millisecond)
	publish("p1")
	publish("p2")

	msg := readType(t, conn)
	assert.Equal(t, "bid_placed", msg["type"])
	assert.Equal(t, "p2", msg["product_id"], "events of other products are filtered out")
}
