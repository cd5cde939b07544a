package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// WishlistStore implements domain.WishlistStore using PostgreSQL.
type WishlistStore struct {
	pool *pgxpool.Pool
}

// NewWishlistStore creates a new WishlistStore backed by the given pool.
func NewWishlistStore(pool *pgxpool.Pool) *WishlistStore {
	return &WishlistStore{pool: pool}
}

// Add inserts the item. Adding the same product twice is a no-op.
func (s *WishlistStore) Add(ctx context.Context, item domain.WishlistItem) error {
	const query = `
		INSERT INTO wishlist (id, user_id, product_id, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, product_id) DO NOTHING`
	_, err := conn(ctx, s.pool).Exec(ctx, query, item.ID, item.UserID, item.ProductID, item.CreatedAt)
	if err != nil {
		return wrap("add wishlist item "+item.ProductID, err)
	}
	return nil
}

func (s *WishlistStore) Remove(ctx context.Context, userID, productID string) error {
	tag, err := conn(ctx, s.pool).Exec(ctx,
		`DELETE FROM wishlist WHERE user_id = $1 AND product_id = $2`, userID, productID)
	if err != nil {
		return wrap("remove wishlist item "+productID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: remove wishlist item %s: %w", productID, domain.ErrNotFound)
	}
	return nil
}

func (s *WishlistStore) ListByUser(ctx context.Context, userID string) ([]domain.WishlistItem, error) {
	rows, err := conn(ctx, s.pool).Query(ctx,
		`SELECT id, user_id, product_id, created_at FROM wishlist WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, wrap("list wishlist for "+userID, err)
	}
	defer rows.Close()

	var out []domain.WishlistItem
	for rows.Next() {
		var it domain.WishlistItem
		if err := rows.Scan(&it.ID, &it.UserID, &it.ProductID, &it.CreatedAt); err != nil {
			return nil, wrap("scan wishlist item", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("list wishlist rows", err)
	}
	return out, nil
}

var _ domain.WishlistStore = (*WishlistStore)(nil)
