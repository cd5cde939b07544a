package s3blob

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/collectibles/internal/domain"
	"github.com/alanyoungcy/collectibles/internal/store/memory"
)

type fakeBucket struct {
	mu        sync.Mutex
	objects   map[string][]byte
	multipart int
}

func newFakeBucket() *fakeBucket {
	return &fakeBucket{objects: make(map[string][]byte)}
}

func (b *fakeBucket) Put(_ context.Context, path string, data io.Reader, _ string) error {
	buf, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[path] = buf
	return nil
}

func (b *fakeBucket) PutMultipart(ctx context.Context, path string, data io.Reader, _ int64) error {
	b.mu.Lock()
	b.multipart++
	b.mu.Unlock()
	return b.Put(ctx, path, data, jsonlContentType)
}

func (b *fakeBucket) Exists(_ context.Context, path string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[path]
	return ok, nil
}

func lines(t *testing.T, data []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(data))
	for sc.Scan() {
		var m map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		out = append(out, m)
	}
	return out
}

func TestArchiveOrders(t *testing.T) {
	ctx := context.Background()
	st := memory.New().Stores()
	bucket := newFakeBucket()
	a := NewArchiver(bucket, bucket, st.Orders, st.PriceHistory, st.Audit, slog.New(slog.DiscardHandler))

	march := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2026, 4, 20, 12, 0, 0, 0, time.UTC)
	may := time.Date(2026, 5, 2, 12, 0, 0, 0, time.UTC)
	for _, o := range []domain.Order{
		{ID: "o1", ProductID: "p1", Status: domain.OrderStatusCompleted, Amount: decimal.NewFromInt(10), CreatedAt: march, UpdatedAt: march},
		{ID: "o2", ProductID: "p2", Status: domain.OrderStatusCancelled, Amount: decimal.NewFromInt(20), CreatedAt: april, UpdatedAt: april},
		{ID: "o3", ProductID: "p3", Status: domain.OrderStatusPending, Amount: decimal.NewFromInt(30), CreatedAt: march, UpdatedAt: march},
		{ID: "o4", ProductID: "p4", Status: domain.OrderStatusCompleted, Amount: decimal.NewFromInt(40), CreatedAt: may, UpdatedAt: may},
	} {
		require.NoError(t, st.Orders.Create(ctx, o))
	}

	cutoff := time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)
	n, err := a.ArchiveOrders(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	require.Contains(t, bucket.objects, "archive/orders/2026-03.jsonl")
	require.Contains(t, bucket.objects, "archive/orders/2026-04.jsonl")
	assert.NotContains(t, bucket.objects, "archive/orders/2026-05.jsonl", "open month is not archived")

	rows := lines(t, bucket.objects["archive/orders/2026-03.jsonl"])
	require.Len(t, rows, 1)
	assert.Equal(t, "o1", rows[0]["id"])

	entries, err := st.Audit.List(ctx, domain.ListOpts{})
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	t.Run("rerun skips written months", func(t *testing.T) {
		n, err := a.ArchiveOrders(ctx, cutoff)
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestArchivePriceHistory(t *testing.T) {
	ctx := context.Background()
	st := memory.New().Stores()
	bucket := newFakeBucket()
	a := NewArchiver(bucket, bucket, st.Orders, st.PriceHistory, st.Audit, slog.New(slog.DiscardHandler))

	jan := time.Date(2026, 1, 31, 23, 59, 0, 0, time.UTC)
	require.NoError(t, st.PriceHistory.Record(ctx, domain.PricePoint{ID: "pp1", ProductID: "p1", Price: decimal.RequireFromString("12.50"), SaleDate: jan}))
	require.NoError(t, st.PriceHistory.Record(ctx, domain.PricePoint{ID: "pp2", ProductID: "p1", Price: decimal.RequireFromString("13.00"), SaleDate: jan.Add(-time.Hour)}))

	n, err := a.ArchivePriceHistory(ctx, time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.Len(t, lines(t, bucket.objects["archive/price_history/2026-01.jsonl"]), 2)
	assert.Zero(t, bucket.multipart)
}

func TestArchiveNothing(t *testing.T) {
	st := memory.New().Stores()
	bucket := newFakeBucket()
	a := NewArchiver(bucket, bucket, st.Orders, st.PriceHistory, st.Audit, slog.New(slog.DiscardHandler))

	n, err := a.ArchiveOrders(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, bucket.objects)
}

func TestNormaliseEndpoint(t *testing.T) {
	assert.Equal(t, "https://s3.example.com", normaliseEndpoint("https://s3.example.com", false))
	assert.Equal(t, "http://minio:9000", normaliseEndpoint("minio:9000", false))
	assert.Equal(t, "https://minio:9000", normaliseEndpoint("minio:9000", true))
}
