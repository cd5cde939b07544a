package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/config"
	"github.com/alanyoungcy/collectibles/internal/domain"
)

func testConfig() *config.Config {
	cfg := config.Defaults()
	cfg.Server.Enabled = false
	return &cfg
}

func TestWireMemoryBackend(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	deps, cleanup, err := Wire(context.Background(), testConfig(), logger)
	require.NoError(t, err)
	defer cleanup()

	assert.Nil(t, deps.Archiver)
	assert.False(t, deps.Notifier.Enabled())
	assert.Empty(t, deps.Probes)

	ctx := context.Background()
	p, err := deps.Directory.ListProduct(ctx, "seller", domain.NewProduct{
		Title:     "Signed baseball",
		Category:  "sports",
		Condition: "good",
		Price:     decimal.RequireFromString("75.50"),
	})
	require.NoError(t, err)

	hold, err := deps.Reservations.PlaceHold(ctx, p.ID, "buyer")
	require.NoError(t, err)
	order, err := deps.Reservations.ConvertHoldToOrder(ctx, hold.ID, "buyer")
	require.NoError(t, err)
	assert.Equal(t, domain.OrderStatusCompleted, order.Status)
}

func TestFullModeStopsOnCancel(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a := New(testConfig(), logger)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("full mode did not stop after cancel")
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	cfg := testConfig()
	cfg.Mode = "batch"
	a := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	defer a.Close()

	err := a.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported mode")
}
