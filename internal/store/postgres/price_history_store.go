package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// PriceHistoryStore implements domain.PriceHistoryStore using PostgreSQL.
type PriceHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPriceHistoryStore creates a new PriceHistoryStore backed by the given pool.
func NewPriceHistoryStore(pool *pgxpool.Pool) *PriceHistoryStore {
	return &PriceHistoryStore{pool: pool}
}

func (s *PriceHistoryStore) Record(ctx context.Context, p domain.PricePoint) error {
	_, err := conn(ctx, s.pool).Exec(ctx,
		`INSERT INTO price_history (id, product_id, price, sale_date) VALUES ($1, $2, $3, $4)`,
		p.ID, p.ProductID, p.Price, p.SaleDate)
	if err != nil {
		return wrap("record price for "+p.ProductID, err)
	}
	return nil
}

func (s *PriceHistoryStore) ListByProduct(ctx context.Context, productID string) ([]domain.PricePoint, error) {
	return s.list(ctx, "list price history for "+productID,
		`SELECT id, product_id, price, sale_date FROM price_history WHERE product_id = $1 ORDER BY sale_date, id`,
		productID)
}

func (s *PriceHistoryStore) ListBefore(ctx context.Context, before time.Time) ([]domain.PricePoint, error) {
	return s.list(ctx, "list price history",
		`SELECT id, product_id, price, sale_date FROM price_history WHERE sale_date < $1 ORDER BY sale_date, id`,
		before)
}

func (s *PriceHistoryStore) list(ctx context.Context, op, query string, args ...any) ([]domain.PricePoint, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.PricePoint
	for rows.Next() {
		var p domain.PricePoint
		if err := rows.Scan(&p.ID, &p.ProductID, &p.Price, &p.SaleDate); err != nil {
			return nil, wrap(op+": scan", err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+": rows", err)
	}
	return out, nil
}

var _ domain.PriceHistoryStore = (*PriceHistoryStore)(nil)
