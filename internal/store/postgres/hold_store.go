package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// HoldStore implements domain.HoldStore using PostgreSQL.
type HoldStore struct {
	pool *pgxpool.Pool
}

// NewHoldStore creates a new HoldStore backed by the given pool.
func NewHoldStore(pool *pgxpool.Pool) *HoldStore {
	return &HoldStore{pool: pool}
}

const holdColumns = `id, product_id, buyer_id, created_at, hold_expires_at`

// Create inserts a hold. The product_id unique constraint rejects a second
// hold on the same product with domain.ErrAlreadyExists.
func (s *HoldStore) Create(ctx context.Context, h domain.Hold) error {
	const query = `INSERT INTO holds (` + holdColumns + `) VALUES ($1, $2, $3, $4, $5)`
	_, err := conn(ctx, s.pool).Exec(ctx, query, h.ID, h.ProductID, h.BuyerID, h.CreatedAt, h.ExpiresAt)
	if err != nil {
		return wrap("create hold "+h.ID, err)
	}
	return nil
}

func (s *HoldStore) GetByID(ctx context.Context, id string) (domain.Hold, error) {
	h, err := scanHold(conn(ctx, s.pool).QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE id = $1`, id))
	if err != nil {
		return domain.Hold{}, wrap("get hold "+id, err)
	}
	return h, nil
}

func (s *HoldStore) GetByProduct(ctx context.Context, productID string) (domain.Hold, error) {
	h, err := scanHold(conn(ctx, s.pool).QueryRow(ctx, `SELECT `+holdColumns+` FROM holds WHERE product_id = $1`, productID))
	if err != nil {
		return domain.Hold{}, wrap("get hold for product "+productID, err)
	}
	return h, nil
}

func (s *HoldStore) Delete(ctx context.Context, id string) error {
	tag, err := conn(ctx, s.pool).Exec(ctx, `DELETE FROM holds WHERE id = $1`, id)
	if err != nil {
		return wrap("delete hold "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: delete hold %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *HoldStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Hold, error) {
	query := `SELECT ` + holdColumns + ` FROM holds WHERE hold_expires_at <= $1 ORDER BY hold_expires_at, id`
	query, args := paginate(query, []any{now}, domain.ListOpts{Limit: limit})
	return s.list(ctx, "list expired holds", query, args...)
}

func (s *HoldStore) ListByBuyer(ctx context.Context, buyerID string) ([]domain.Hold, error) {
	const query = `SELECT ` + holdColumns + ` FROM holds WHERE buyer_id = $1 ORDER BY created_at DESC`
	return s.list(ctx, "list holds for buyer "+buyerID, query, buyerID)
}

func (s *HoldStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Hold, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Hold
	for rows.Next() {
		h, err := scanHold(rows)
		if err != nil {
			return nil, wrap(op+": scan", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+": rows", err)
	}
	return out, nil
}

func scanHold(row pgx.Row) (domain.Hold, error) {
	var h domain.Hold
	err := row.Scan(&h.ID, &h.ProductID, &h.BuyerID, &h.CreatedAt, &h.ExpiresAt)
	return h, err
}

var _ domain.HoldStore = (*HoldStore)(nil)
