package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// OrderStore implements domain.OrderStore using PostgreSQL.
type OrderStore struct {
	pool *pgxpool.Pool
}

// NewOrderStore creates a new OrderStore backed by the given pool.
func NewOrderStore(pool *pgxpool.Pool) *OrderStore {
	return &OrderStore{pool: pool}
}

const orderColumns = `id, product_id, buyer_id, seller_id, amount, status, source, bid_id, ask_id, created_at, updated_at`

// Create inserts an order. A second completed order for a product violates
// uq_orders_completed_product and returns domain.ErrAlreadyExists.
func (s *OrderStore) Create(ctx context.Context, o domain.Order) error {
	const query = `INSERT INTO orders (` + orderColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := conn(ctx, s.pool).Exec(ctx, query,
		o.ID, o.ProductID, o.BuyerID, o.SellerID, o.Amount, string(o.Status), string(o.Source),
		nullString(o.BidID), nullString(o.AskID), o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return wrap("create order "+o.ID, err)
	}
	return nil
}

func (s *OrderStore) GetByID(ctx context.Context, id string) (domain.Order, error) {
	o, err := scanOrder(conn(ctx, s.pool).QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id))
	if err != nil {
		return domain.Order{}, wrap("get order "+id, err)
	}
	return o, nil
}

func (s *OrderStore) UpdateStatus(ctx context.Context, id string, status domain.OrderStatus, at time.Time) error {
	tag, err := conn(ctx, s.pool).Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return wrap("update order "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update order %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *OrderStore) ListByProduct(ctx context.Context, productID string) ([]domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders WHERE product_id = $1 ORDER BY created_at, id`
	return s.list(ctx, "list orders for product "+productID, query, productID)
}

func (s *OrderStore) ListByBuyer(ctx context.Context, buyerID string, opts domain.ListOpts) ([]domain.Order, error) {
	return s.listByParty(ctx, "buyer_id", buyerID, opts)
}

func (s *OrderStore) ListBySeller(ctx context.Context, sellerID string, opts domain.ListOpts) ([]domain.Order, error) {
	return s.listByParty(ctx, "seller_id", sellerID, opts)
}

func (s *OrderStore) listByParty(ctx context.Context, column, id string, opts domain.ListOpts) ([]domain.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE ` + column + ` = $1`
	args := []any{id}
	query, args = window(query, args, opts)
	query += " ORDER BY created_at DESC, id"
	query, args = paginate(query, args, opts)
	return s.list(ctx, "list orders by "+column+" "+id, query, args...)
}

func (s *OrderStore) ListSettledBefore(ctx context.Context, before time.Time) ([]domain.Order, error) {
	const query = `SELECT ` + orderColumns + ` FROM orders
		WHERE status IN ('completed', 'cancelled') AND updated_at < $1
		ORDER BY updated_at, id`
	return s.list(ctx, "list settled orders", query, before)
}

func (s *OrderStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Order, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, wrap(op+": scan", err)
		}
		out = append(out, o)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+": rows", err)
	}
	return out, nil
}

func scanOrder(row pgx.Row) (domain.Order, error) {
	var (
		o              domain.Order
		status, source string
		bidID, askID   *string
	)
	err := row.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.SellerID, &o.Amount, &status, &source,
		&bidID, &askID, &o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return domain.Order{}, err
	}
	o.Status = domain.OrderStatus(status)
	o.Source = domain.OrderSource(source)
	if bidID != nil {
		o.BidID = *bidID
	}
	if askID != nil {
		o.AskID = *askID
	}
	return o, nil
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

var _ domain.OrderStore = (*OrderStore)(nil)
