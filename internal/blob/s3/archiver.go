package s3blob

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

const jsonlContentType = "application/x-ndjson"

// multipartThreshold is the payload size above which uploads go through the
// multipart manager.
const multipartThreshold = 8 * 1024 * 1024

// OrderArchiveStore provides read access to settled orders.
type OrderArchiveStore interface {
	ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error)
}

// PriceArchiveStore provides read access to recorded sale prices.
type PriceArchiveStore interface {
	ListBefore(ctx context.Context, before time.Time) ([]domain.PricePoint, error)
}

// Archiver implements domain.Archiver. Records are partitioned by the
// calendar month (UTC) of their timestamp into
// archive/<kind>/YYYY-MM.jsonl. Only months that end at or before the cutoff
// are written, and a month already present in the bucket is skipped, so
// repeated runs never rewrite an object.
//
// Archived rows are not deleted from the primary store.
type Archiver struct {
	writer domain.BlobWriter
	reader domain.BlobReader
	orders OrderArchiveStore
	prices PriceArchiveStore
	audit  domain.AuditStore
	logger *slog.Logger
}

// NewArchiver creates an Archiver.
func NewArchiver(
	writer domain.BlobWriter,
	reader domain.BlobReader,
	orders OrderArchiveStore,
	prices PriceArchiveStore,
	audit domain.AuditStore,
	logger *slog.Logger,
) *Archiver {
	return &Archiver{
		writer: writer,
		reader: reader,
		orders: orders,
		prices: prices,
		audit:  audit,
		logger: logger.With(slog.String("component", "archiver")),
	}
}

// ArchiveOrders uploads completed and cancelled orders last updated before
// the cutoff and returns how many records were written.
func (a *Archiver) ArchiveOrders(ctx context.Context, before time.Time) (int64, error) {
	orders, err := a.orders.ListSettledBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive orders query: %w", err)
	}
	return archive(ctx, a, "orders", before, orders, func(o domain.Order) time.Time { return o.UpdatedAt })
}

// ArchivePriceHistory uploads sale prices recorded before the cutoff and
// returns how many records were written.
func (a *Archiver) ArchivePriceHistory(ctx context.Context, before time.Time) (int64, error) {
	points, err := a.prices.ListBefore(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("s3blob: archive price history query: %w", err)
	}
	return archive(ctx, a, "price_history", before, points, func(p domain.PricePoint) time.Time { return p.SaleDate })
}

var _ domain.Archiver = (*Archiver)(nil)

func archive[T any](ctx context.Context, a *Archiver, kind string, before time.Time, records []T, stamp func(T) time.Time) (int64, error) {
	months := make(map[time.Time][]T)
	for _, rec := range records {
		m := monthOf(stamp(rec))
		if m.AddDate(0, 1, 0).After(before) {
			continue
		}
		months[m] = append(months[m], rec)
	}

	keys := make([]time.Time, 0, len(months))
	for m := range months {
		keys = append(keys, m)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Before(keys[j]) })

	var total int64
	for _, m := range keys {
		path := archivePath(kind, m)
		exists, err := a.reader.Exists(ctx, path)
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s: %w", kind, err)
		}
		if exists {
			a.logger.DebugContext(ctx, "archiver: partition already archived", slog.String("path", path))
			continue
		}

		buf, err := marshalJSONL(months[m])
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s marshal: %w", kind, err)
		}
		if len(buf) > multipartThreshold {
			err = a.writer.PutMultipart(ctx, path, bytes.NewReader(buf), minPartSize)
		} else {
			err = a.writer.Put(ctx, path, bytes.NewReader(buf), jsonlContentType)
		}
		if err != nil {
			return total, fmt.Errorf("s3blob: archive %s upload: %w", kind, err)
		}

		count := int64(len(months[m]))
		total += count

		if err := a.audit.Log(ctx, "archive."+kind, map[string]any{
			"path":   path,
			"count":  count,
			"before": before.Format(time.RFC3339),
		}); err != nil {
			return total, fmt.Errorf("s3blob: archive %s audit log: %w", kind, err)
		}
		a.logger.InfoContext(ctx, "archiver: partition written",
			slog.String("path", path),
			slog.Int64("count", count),
		)
	}
	return total, nil
}

// ---------------------------------------------------------------------------
// helpers
// ---------------------------------------------------------------------------

func monthOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// archivePath builds the S3 key for a monthly archive file.
//
//	archive/orders/2026-01.jsonl
//	archive/price_history/2026-01.jsonl
func archivePath(kind string, month time.Time) string {
	return fmt.Sprintf("archive/%s/%s.jsonl", kind, month.Format("2006-01"))
}

// marshalJSONL serialises a slice of values as newline-delimited JSON (JSONL).
func marshalJSONL[T any](records []T) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for i, rec := range records {
		if err := enc.Encode(rec); err != nil {
			return nil, fmt.Errorf("jsonl encode record %d: %w", i, err)
		}
	}
	return buf.Bytes(), nil
}
