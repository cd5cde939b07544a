package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/collectibles/internal/domain"
)

// AskStore implements domain.AskStore using PostgreSQL.
type AskStore struct {
	pool *pgxpool.Pool
}

// NewAskStore creates a new AskStore backed by the given pool.
func NewAskStore(pool *pgxpool.Pool) *AskStore {
	return &AskStore{pool: pool}
}

const askColumns = `id, product_id, seller_id, amount, status, created_at, updated_at`

func (s *AskStore) Create(ctx context.Context, a domain.Ask) error {
	const query = `INSERT INTO asks (` + askColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err := conn(ctx, s.pool).Exec(ctx, query,
		a.ID, a.ProductID, a.SellerID, a.Amount, string(a.Status), a.CreatedAt, a.UpdatedAt,
	)
	if err != nil {
		return wrap("create ask "+a.ID, err)
	}
	return nil
}

func (s *AskStore) GetByID(ctx context.Context, id string) (domain.Ask, error) {
	a, err := scanAsk(conn(ctx, s.pool).QueryRow(ctx, `SELECT `+askColumns+` FROM asks WHERE id = $1`, id))
	if err != nil {
		return domain.Ask{}, wrap("get ask "+id, err)
	}
	return a, nil
}

func (s *AskStore) UpdateStatus(ctx context.Context, id string, status domain.AskStatus, at time.Time) error {
	tag, err := conn(ctx, s.pool).Exec(ctx,
		`UPDATE asks SET status = $2, updated_at = $3 WHERE id = $1`, id, string(status), at)
	if err != nil {
		return wrap("update ask "+id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("postgres: update ask %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *AskStore) ListActiveByProduct(ctx context.Context, productID string) ([]domain.Ask, error) {
	const query = `SELECT ` + askColumns + ` FROM asks
		WHERE product_id = $1 AND status = 'active'
		ORDER BY amount, created_at, id`
	return s.list(ctx, "list active asks for "+productID, query, productID)
}

func (s *AskStore) ListBySeller(ctx context.Context, sellerID string, opts domain.ListOpts) ([]domain.Ask, error) {
	query := `SELECT ` + askColumns + ` FROM asks WHERE seller_id = $1`
	args := []any{sellerID}
	query, args = window(query, args, opts)
	query += " ORDER BY created_at DESC, id"
	query, args = paginate(query, args, opts)
	return s.list(ctx, "list asks for seller "+sellerID, query, args...)
}

func (s *AskStore) list(ctx context.Context, op, query string, args ...any) ([]domain.Ask, error) {
	rows, err := conn(ctx, s.pool).Query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()

	var out []domain.Ask
	for rows.Next() {
		a, err := scanAsk(rows)
		if err != nil {
			return nil, wrap(op+": scan", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, wrap(op+": rows", err)
	}
	return out, nil
}

func scanAsk(row pgx.Row) (domain.Ask, error) {
	var (
		a      domain.Ask
		status string
	)
	if err := row.Scan(&a.ID, &a.ProductID, &a.SellerID, &a.Amount, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return domain.Ask{}, err
	}
	a.Status = domain.AskStatus(status)
	return a, nil
}

var _ domain.AskStore = (*AskStore)(nil)
