package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// BidStore implements domain.BidStore using PostgreSQL.
type BidStore struct {
	pool *pgxpool.Pool
}

// NewBidStore creates a new BidStore backed by the given pool.
func NewBidStore(pool *pgxpool.Pool) *BidStore {
	return &BidStore{pool: pool}
}

const bidColumns = `id, product_id, buyer_id, amount, status, created_at, expires_at, updated_at`

func (s *BidStore) Create(ctx context.Context, b domain.Bid) error {
	const query = `INSERT INTO bids (` + bidColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := conn(ctx, s.pool).Exec(ctx, query,
		b.ID, b.ProductID, b.BuyerID, b.Amount, string(b.Status), b.CreatedAt, b.ExpiresAt, b.UpdatedAt,
	)
	if err != nil {
		return wrap("create bid "+b.ID, err)
	}
	return nil
}

func (s *BidStore) GetByID(ctx context.Context, id string) (domain.Bid, error) {
	b, err := scanBid(conn(ctx, s.pool).QueryRow(ctx, `SELECT `+bidColumns+` FROM bids WHERE id = $1`, id))
	if err != nil {
		return domain.Bid{}, wrap("get bid "+id, err)
	}
	return b, nil
}

func (s *BidStore) UpdateStatus(ctx context.Context, id string, status domain.BidStatus, at time.Time) error {
	tag, err := conn(ctx, s.pool).Exec(ctx,
		`UPDATE bids SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return wrap("update bid "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update bid %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *BidStore) ListActiveByProduct(ctx context.Context, productID string) ([]domain.Bid, error) {
	const query = `SELECT ` + bidColumns + ` FROM bids
		WHERE product_id = $1 AND status = 'active'
		ORDER BY amount DESC, created_at, id`
	return s.list(ctx, "list active bids for "+productID, query, productID)
}

func (s *BidStore) ListExpired(ctx context.Context, now time.Time, limit int) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids
		WHERE status = 'active' AND expires_at <= $1
		ORDER BY expires_at, id`
	query, args := paginate(query, []any{now}, domain.ListOpts{Limit: limit})
	return s.list(ctx, "list expired bids", query, args...)
}

func (s *BidStore) ListByBuyer(ctx context.Context, buyerID string, opts domain.ListOpts) ([]domain.Bid, error) {
	query := `SELECT ` + bidColumns + ` FROM bids WHERE buyer_id = $1`
	args := []any{buyerID}
	query, args = window(query, args, opts)
	query += " ORDER BY created_at DESC, id"
	query, args = paginate(query, args, opts)
	return s.list(ctx, "list bids for buyer "+buyerID, query, args...)
}

func (s *BidStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Bid, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Bid
	for rows.Next() {
		b, err := scanBid(rows)
		if err != nil {
			return nil, wrap(op+": scan", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+": rows", err)
	}
	return out, nil
}

func scanBid(row pgx.Row) (domain.Bid, error) {
	var (
		b      domain.Bid
		status string
	)
	if err := row.Scan(&b.ID, &b.ProductID, &b.BuyerID, &b.Amount, &status, &b.CreatedAt, &b.ExpiresAt, &b.UpdatedAt); err != nil {
		return domain.Bid{}, err
	}
	b.Status = domain.BidStatus(status)
	return b, nil
}

// window appends created_at bounds from opts.
func window(query string, args []any, opts domain.ListOpts) (string, []any) {
	if opts.Since != nil {
		args = append(args, *opts.Since)
		query += fmt.Sprintf(" AND created_at >= $%d", len(args))
	}
	if opts.Until != nil {
		args = append(args, *opts.Until)
		query += fmt.Sprintf(" AND created_at <= $%d", len(args))
	}
	return query, args
}

var _ domain.BidStore = (*BidStore)(nil)
